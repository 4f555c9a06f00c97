package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	mcpserver "mcp-math/mcp-server"
	"mcp-math/shared"

	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := shared.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Load config failed")
	}
	shared.SetupLogger(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)

	s, err := mcpserver.NewServer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Create server failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := s.Run(ctx); err != nil {
		log.Error().Err(err).Msg("Run server failed")
		os.Exit(1)
	}
	log.Info().Msg("Server stopped")
}
