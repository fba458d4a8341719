package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"lyrics-backend/internal/app"
	"lyrics-backend/internal/config"
)

func main() {
	configPath := flag.String("config", config.GetConfigPath(), "path to config.toml")
	flag.Parse()

	app.ConfigureLogging("info")
	cfg, err := config.LoadFrom(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("Failed to load config")
	}
	app.ConfigureLogging(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.New(cfg).Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Lyrics backend exited")
	}
}
