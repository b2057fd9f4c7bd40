package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"go.uber.org/fx"

	"github.com/pigeonim/pigeon/internal/daemon"
	"github.com/pigeonim/pigeon/internal/session"
)

func main() {
	_ = godotenv.Load()

	uidFlag := flag.Int64("uid", 0, "user id of the account to run")
	tokenFlag := flag.String("token", "", "auth token (defaults to PIGEON_TOKEN)")
	configFlag := flag.String("config", "", "config file path (defaults to ~/.pigeon/config.toml)")
	flag.Parse()

	uid := *uidFlag
	if uid == 0 {
		if v := os.Getenv("PIGEON_UID"); v != "" {
			uid, _ = strconv.ParseInt(v, 10, 64)
		}
	}
	if uid == 0 {
		fmt.Fprintln(os.Stderr, "error: -uid is required (or set PIGEON_UID)")
		os.Exit(1)
	}

	token := *tokenFlag
	if token == "" {
		token = os.Getenv("PIGEON_TOKEN")
	}
	if token == "" {
		fmt.Fprintln(os.Stderr, "error: -token is required (or set PIGEON_TOKEN)")
		os.Exit(1)
	}

	configPath := *configFlag
	if configPath == "" {
		configPath = session.ConfigPath()
	}

	app := fx.New(
		daemon.Module(daemon.Params{
			UID:        uid,
			Token:      token,
			ConfigPath: configPath,
		}),
	)

	app.Run()
}
