package daemon

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/pigeonim/pigeon/internal/bus"
	"github.com/pigeonim/pigeon/internal/config"
	"github.com/pigeonim/pigeon/internal/conn"
	"github.com/pigeonim/pigeon/internal/ident"
	"github.com/pigeonim/pigeon/internal/ingest"
	"github.com/pigeonim/pigeon/internal/lock"
	"github.com/pigeonim/pigeon/internal/logging"
	"github.com/pigeonim/pigeon/internal/outbox"
	"github.com/pigeonim/pigeon/internal/protocol"
	"github.com/pigeonim/pigeon/internal/session"
	"github.com/pigeonim/pigeon/internal/store"
)

// Params holds the resolved identity passed to the fx module.
type Params struct {
	UID        int64
	Token      string
	ConfigPath string
}

// Module returns the fx module for the daemon, composing all providers and
// lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideLock,
			provideStore,
			provideNode,
			provideCodec,
			provideMachine,
			provideEngine,
			provideSender,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	cfg, err := config.Load(p.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	return logging.New(session.LogPath(cfg.DataDir, p.UID), p.UID)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, cfg *config.Config, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(cfg.DataDir, p.UID); err != nil {
		return nil, err
	}
	logger.Info("acquiring data dir lock", zap.Int64("uid", p.UID))
	l, err := lock.Acquire(session.Dir(cfg.DataDir, p.UID))
	if err != nil {
		return nil, err
	}
	logger.Info("data dir lock acquired")
	return l, nil
}

// provideStore opens the per-user cache. The lock dependency is deliberate:
// migration must never run in two processes at once.
func provideStore(p Params, cfg *config.Config, _ *lock.Lock, logger *zap.Logger) (*store.Store, error) {
	return store.Open(session.DBPath(cfg.DataDir, p.UID), p.UID, logger)
}

func provideNode(cfg *config.Config, logger *zap.Logger) (*ident.Node, error) {
	return ident.New(cfg.MachineID, logger)
}

func provideCodec(logger *zap.Logger) *protocol.Codec {
	return protocol.NewCodec(logger)
}

func provideMachine(cfg *config.Config, b *bus.Bus, codec *protocol.Codec, logger *zap.Logger) *conn.Machine {
	return conn.NewMachine(cfg.ServerURL, b, codec, logger)
}

func provideEngine(db *store.Store, b *bus.Bus, machine *conn.Machine, codec *protocol.Codec, logger *zap.Logger) *ingest.Engine {
	return ingest.NewEngine(db, b, machine, codec, logger)
}

func provideSender(db *store.Store, node *ident.Node, machine *conn.Machine, b *bus.Bus, codec *protocol.Codec, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(db, node, machine, b, codec, logger)
}

func registerLifecycle(lc fx.Lifecycle, p Params, cfg *config.Config, lk *lock.Lock, db *store.Store, machine *conn.Machine, engine *ingest.Engine, sender *outbox.Sender, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			engine.Start(context.Background())
			sender.Start(context.Background())

			deviceID, err := session.DeviceID(cfg.DataDir)
			if err != nil {
				return err
			}
			if err := machine.Connect(p.Token, deviceID); err != nil {
				return err
			}
			logger.Info("daemon started", zap.String("server", cfg.ServerURL))
			return nil
		},
		OnStop: func(_ context.Context) error {
			sender.Stop()
			engine.Stop()
			if err := machine.Close(); err != nil {
				logger.Warn("error closing connection", zap.Error(err))
			}
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
