package main

import (
	"flag"

	"github.com/danmuck/hxa/internal/config"
	"github.com/danmuck/hxa/internal/observability"
	"github.com/danmuck/hxa/internal/service"
	"github.com/rs/zerolog/log"
)

func main() {
	observability.InitLogger("hxad")
	configPath := flag.String("config", "", "TOML config path (defaults built in)")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load hxad config")
	}
	log.Info().Str("path", *configPath).Int64("max_file_bytes", cfg.Limits.MaxFileBytes).Msg("loaded hxad config")

	server := service.New(cfg)
	if err := server.Serve(); err != nil {
		log.Fatal().Err(err).Msg("hxad stopped")
	}
}
