package daemon

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/pigeonim/pigeon/internal/bus"
	"github.com/pigeonim/pigeon/internal/config"
	"github.com/pigeonim/pigeon/internal/conn"
	"github.com/pigeonim/pigeon/internal/ident"
	"github.com/pigeonim/pigeon/internal/ingest"
	"github.com/pigeonim/pigeon/internal/lock"
	"github.com/pigeonim/pigeon/internal/outbox"
	"github.com/pigeonim/pigeon/internal/protocol"
	"github.com/pigeonim/pigeon/internal/session"
	"github.com/pigeonim/pigeon/internal/store"
)

func TestComponentLifecycle(t *testing.T) {
	base := t.TempDir()
	var uid int64 = 424242

	if err := session.EnsureDir(base, uid); err != nil {
		t.Fatal(err)
	}
	lk, err := lock.Acquire(session.Dir(base, uid))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = lk.Release() }()

	logger := zap.NewNop()
	db, err := store.Open(session.DBPath(base, uid), uid, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	b := bus.New()
	codec := protocol.NewCodec(logger)
	machine := conn.NewMachine("ws://127.0.0.1:1", b, codec, logger)
	node, err := ident.New(5, logger)
	if err != nil {
		t.Fatal(err)
	}

	engine := ingest.NewEngine(db, b, machine, codec, logger)
	sender := outbox.NewSender(db, node, machine, b, codec, logger)

	engine.Start(context.Background())
	sender.Start(context.Background())

	sender.Stop()
	engine.Stop()
	if err := machine.Close(); err != nil {
		t.Fatal(err)
	}
	if machine.Current() != conn.Disconnected {
		t.Errorf("state = %s after close, want DISCONNECTED", machine.Current())
	}
}

func TestProvideConfigRequiresServerURL(t *testing.T) {
	t.Setenv("PIGEON_WS_URL", "")
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.Save(path, config.Default()); err != nil {
		t.Fatal(err)
	}

	if _, err := provideConfig(Params{UID: 1, ConfigPath: path}); err == nil {
		t.Error("config without server_url should not validate")
	}
}
