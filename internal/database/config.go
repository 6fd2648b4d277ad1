package database

import (
	"os"
	"strconv"
)

const defaultEmbeddingDims = 4

// Config holds the database configuration
type Config struct {
	URL              string
	AuthToken        string
	ProjectsDir      string
	MultiProjectMode bool
	EmbeddingDims    int

	// Pool tuning; zero leaves the database/sql default in place.
	MaxOpenConns   int
	MaxIdleConns   int
	ConnMaxIdleSec int
	ConnMaxLifeSec int
}

// NewConfig creates a new Config from environment variables
func NewConfig() *Config {
	url := os.Getenv("LIBSQL_URL")
	if url == "" {
		url = "file:./libsql.db"
	}

	cfg := &Config{
		URL:            url,
		AuthToken:      os.Getenv("LIBSQL_AUTH_TOKEN"),
		EmbeddingDims:  envInt("EMBEDDING_DIMS", defaultEmbeddingDims),
		MaxOpenConns:   envInt("DB_MAX_OPEN_CONNS", 0),
		MaxIdleConns:   envInt("DB_MAX_IDLE_CONNS", 0),
		ConnMaxIdleSec: envInt("DB_CONN_MAX_IDLE_SEC", 0),
		ConnMaxLifeSec: envInt("DB_CONN_MAX_LIFETIME_SEC", 0),
	}
	if dir := os.Getenv("PROJECTS_DIR"); dir != "" {
		cfg.ProjectsDir = dir
		cfg.MultiProjectMode = true
	}
	return cfg
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
