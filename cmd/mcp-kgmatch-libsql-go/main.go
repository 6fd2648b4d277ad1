package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/buildinfo"
	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/database"
	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/engine"
	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/pipeline"
	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/server"
)

var (
	libsqlURL     = flag.String("libsql-url", "", "libSQL database URL (default: file:./libsql.db)")
	authToken     = flag.String("auth-token", "", "Authentication token for remote databases")
	projectsDir   = flag.String("projects-dir", "", "Base directory for projects. Enables multi-project mode.")
	transport     = flag.String("transport", "stdio", "Transport to use: stdio or sse")
	addr          = flag.String("addr", ":8080", "Address to listen on when using SSE transport")
	sseEndpoint   = flag.String("sse-endpoint", "/sse", "SSE endpoint path when using SSE transport")
	engineConfig  = flag.String("engine-config", "", "YAML file with clustering and matching settings")
	embeddingDims = flag.Int("embedding-dims", 0, "Embedding dimensionality for new databases (default: EMBEDDING_DIMS or 4)")
	debug         = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	// stdout carries the stdio transport; logs go to stderr
	level := zerolog.InfoLevel
	if *debug {
		level = zerolog.DebugLevel
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()
	logger := log.Logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database configuration
	config := database.NewConfig()

	// Override with command line flags if provided
	if *libsqlURL != "" {
		config.URL = *libsqlURL
	}
	if *authToken != "" {
		config.AuthToken = *authToken
	}
	if *projectsDir != "" {
		config.ProjectsDir = *projectsDir
		config.MultiProjectMode = true
	}
	if *embeddingDims > 0 {
		config.EmbeddingDims = *embeddingDims
	}

	engCfg, err := engine.LoadConfig(*engineConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load engine config")
	}

	db, err := database.NewDBManager(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create database manager")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error().Err(err).Msg("Error closing database")
		}
	}()

	runner := pipeline.New(db, engine.New(engCfg, logger), logger)
	mcpServer := server.NewMCPServer(db, runner, logger)

	logger.Info().
		Str("version", buildinfo.Version).
		Str("transport", *transport).
		Bool("multi_project", config.MultiProjectMode).
		Msg("Starting MCP kgmatch libSQL server")

	switch *transport {
	case "stdio":
		err = mcpServer.Run(ctx)
	case "sse":
		err = mcpServer.RunSSE(ctx, *addr, *sseEndpoint)
	default:
		logger.Fatal().Str("transport", *transport).Msg("Unknown transport (expected: stdio or sse)")
	}
	if err != nil && ctx.Err() == nil {
		logger.Error().Err(err).Msg("Server error")
	}

	logger.Info().Msg("Server stopped")
}
