package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/PhazonicRidley/mod-mail-internal/pkg/config"
	"github.com/PhazonicRidley/mod-mail-internal/pkg/discord"
	"github.com/PhazonicRidley/mod-mail-internal/pkg/logging"
	"github.com/PhazonicRidley/mod-mail-internal/pkg/store"
)

func main() {
	configPath := flag.String("config", "data/config.yml", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "cannot load config:", err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel)
	defer log.Sync() //nolint:errcheck

	ctx := context.Background()
	st, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer st.Close()
	log.Info("database pool has started")

	if err := st.EnsureSchema(ctx); err != nil {
		log.Fatal("schema setup failed", zap.Error(err))
	}
	log.Info("schema configured")

	bot, err := discord.Create(cfg, st, log)
	if err != nil {
		log.Fatal("error creating Discord session", zap.Error(err))
	}
	if err := bot.Open(); err != nil {
		log.Fatal("error opening connection", zap.Error(err))
	}
	defer func() {
		if err := bot.Close(); err != nil {
			log.Error("error closing Discord session", zap.Error(err))
		}
	}()

	if err := bot.RegisterCommands(); err != nil {
		log.Fatal("error registering commands", zap.Error(err))
	}

	// Controls are identity-bound to topics; rebuild the bindings so
	// button presses from before the restart still route.
	if _, err := bot.Service().Recover(ctx); err != nil {
		log.Fatal("control recovery failed", zap.Error(err))
	}

	log.Info("bot is now running, press CTRL-C to exit")
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM)
	<-sc
}
