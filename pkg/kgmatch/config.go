package kgmatch

import (
	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/database"
	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/engine"
)

// EngineConfig tunes thresholds, defaults and labelling.
type EngineConfig = engine.Config

// DefaultEngineConfig returns the engine defaults.
func DefaultEngineConfig() EngineConfig { return engine.DefaultConfig() }

// LoadEngineConfig reads engine settings from a YAML file over the defaults.
func LoadEngineConfig(path string) (EngineConfig, error) { return engine.LoadConfig(path) }

// Config exposes a stable wrapper for database and engine configuration in
// package mode. Most fields map directly to internal/database.Config.
type Config struct {
	URL              string
	AuthToken        string
	ProjectsDir      string
	MultiProjectMode bool
	EmbeddingDims    int
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxIdleSec   int
	ConnMaxLifeSec   int

	// Engine defaults to DefaultEngineConfig when nil.
	Engine *EngineConfig
	// Logger defaults to a disabled logger.
	Logger zerolog.Logger
}

func (c *Config) toInternal() *database.Config {
	dims := c.EmbeddingDims
	if dims == 0 {
		dims = 4
	}
	return &database.Config{
		URL:              c.URL,
		AuthToken:        c.AuthToken,
		ProjectsDir:      c.ProjectsDir,
		MultiProjectMode: c.MultiProjectMode,
		EmbeddingDims:    dims,
		MaxOpenConns:     c.MaxOpenConns,
		MaxIdleConns:     c.MaxIdleConns,
		ConnMaxIdleSec:   c.ConnMaxIdleSec,
		ConnMaxLifeSec:   c.ConnMaxLifeSec,
	}
}

func (c *Config) engineConfig() (EngineConfig, error) {
	if c.Engine == nil {
		return engine.DefaultConfig(), nil
	}
	if err := c.Engine.Validate(); err != nil {
		return EngineConfig{}, err
	}
	return *c.Engine, nil
}
