package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "github.com/tursodatabase/go-libsql"

	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/metrics"
)

const defaultProject = "default"

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// DBManager handles all database operations. Each project gets its own
// libSQL database in multi-project mode; otherwise every project name maps to
// the single configured URL.
type DBManager struct {
	config *Config
	logger zerolog.Logger

	mu   sync.RWMutex
	dbs  map[string]*sql.DB
	dims map[string]int

	stmtMu    sync.RWMutex
	stmtCache map[string]map[string]*sql.Stmt
}

// NewDBManager creates a new database manager
func NewDBManager(config *Config, logger zerolog.Logger) (*DBManager, error) {
	if config.EmbeddingDims <= 0 || config.EmbeddingDims > 65536 {
		return nil, fmt.Errorf("EMBEDDING_DIMS must be between 1 and 65536 inclusive, got %d", config.EmbeddingDims)
	}
	manager := &DBManager{
		config:    config,
		logger:    logger.With().Str("component", "database").Logger(),
		dbs:       make(map[string]*sql.DB),
		dims:      make(map[string]int),
		stmtCache: make(map[string]map[string]*sql.Stmt),
	}

	// If not in multi-project mode, initialize the default database immediately
	if !config.MultiProjectMode {
		if _, err := manager.getDB(defaultProject); err != nil {
			return nil, fmt.Errorf("failed to initialize default database: %w", err)
		}
	}

	return manager, nil
}

// Config returns the manager's configuration.
func (dm *DBManager) Config() Config { return *dm.config }

// EmbeddingDims returns the vector width used by a project's database. It
// differs from the configured width when an existing database was created
// with another size.
func (dm *DBManager) EmbeddingDims(projectName string) int {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	if d, ok := dm.dims[dm.key(projectName)]; ok {
		return d
	}
	return dm.config.EmbeddingDims
}

// key folds project names onto the single database outside multi-project mode.
func (dm *DBManager) key(projectName string) string {
	if !dm.config.MultiProjectMode {
		return defaultProject
	}
	return projectName
}

// getDB retrieves a database connection for a given project, creating it if necessary
func (dm *DBManager) getDB(projectName string) (*sql.DB, string, error) {
	key := dm.key(projectName)

	dm.mu.RLock()
	db, ok := dm.dbs[key]
	dm.mu.RUnlock()
	if ok {
		return db, key, nil
	}

	dm.mu.Lock()
	defer dm.mu.Unlock()

	// Another goroutine may have opened it while we waited for the lock
	if db, ok := dm.dbs[key]; ok {
		return db, key, nil
	}

	dbURL, err := dm.projectURL(key)
	if err != nil {
		return nil, key, err
	}
	newDb, err := sql.Open("libsql", dbURL)
	if err != nil {
		return nil, key, fmt.Errorf("failed to create database connector for project %s: %w", key, err)
	}

	dims := dm.config.EmbeddingDims
	if dbDims := detectDBEmbeddingDims(newDb); dbDims > 0 && dbDims != dims {
		dm.logger.Warn().
			Str("project", key).
			Int("db_dims", dbDims).
			Int("config_dims", dims).
			Msg("Embedding dims mismatch, adopting database dims")
		dims = dbDims
	}

	if err := dm.initialize(newDb, dims); err != nil {
		newDb.Close()
		return nil, key, fmt.Errorf("failed to initialize database for project %s: %w", key, err)
	}

	if dm.config.MaxOpenConns > 0 {
		newDb.SetMaxOpenConns(dm.config.MaxOpenConns)
	}
	if dm.config.MaxIdleConns > 0 {
		newDb.SetMaxIdleConns(dm.config.MaxIdleConns)
	}
	if dm.config.ConnMaxIdleSec > 0 {
		newDb.SetConnMaxIdleTime(time.Duration(dm.config.ConnMaxIdleSec) * time.Second)
	}
	if dm.config.ConnMaxLifeSec > 0 {
		newDb.SetConnMaxLifetime(time.Duration(dm.config.ConnMaxLifeSec) * time.Second)
	}

	dm.dbs[key] = newDb
	dm.dims[key] = dims
	dm.stmtMu.Lock()
	if _, ok := dm.stmtCache[key]; !ok {
		dm.stmtCache[key] = make(map[string]*sql.Stmt)
	}
	dm.stmtMu.Unlock()

	stats := newDb.Stats()
	metrics.Default().ObservePoolStats(stats.InUse, stats.Idle)
	dm.logger.Debug().Str("project", key).Int("dims", dims).Msg("Opened project database")
	return newDb, key, nil
}

func (dm *DBManager) projectURL(projectName string) (string, error) {
	if dm.config.MultiProjectMode {
		if projectName == "" {
			return "", fmt.Errorf("project name cannot be empty in multi-project mode")
		}
		if strings.ContainsAny(projectName, `/\`) || strings.Contains(projectName, "..") {
			return "", fmt.Errorf("invalid project name %q", projectName)
		}
		dbPath := filepath.Join(dm.config.ProjectsDir, projectName, "libsql.db")
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return "", fmt.Errorf("failed to create project directory for %s: %w", projectName, err)
		}
		return "file:" + dbPath, nil
	}

	dbURL := dm.config.URL
	if strings.HasPrefix(dbURL, "file:") || dm.config.AuthToken == "" {
		return dbURL, nil
	}
	u, err := url.Parse(dbURL)
	if err != nil {
		return "", fmt.Errorf("invalid LIBSQL_URL: %w", err)
	}
	q := u.Query()
	q.Set("authToken", dm.config.AuthToken)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// detectDBEmbeddingDims reads the F32_BLOB size of items.embedding from an
// existing schema; 0 when the table does not exist yet.
func detectDBEmbeddingDims(db *sql.DB) int {
	var sqlText string
	_ = db.QueryRow("SELECT sql FROM sqlite_master WHERE type='table' AND name='items'").Scan(&sqlText)
	return parseBlobDims(sqlText)
}

func parseBlobDims(ddl string) int {
	low := strings.ToLower(ddl)
	idx := strings.Index(low, "f32_blob(")
	if idx < 0 {
		return 0
	}
	rest := low[idx+len("f32_blob("):]
	end := strings.Index(rest, ")")
	if end <= 0 {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(rest[:end]))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

// initialize creates tables and indexes if they don't exist
func (dm *DBManager) initialize(db *sql.DB, dims int) error {
	done := metrics.TimeOp("db_initialize")
	success := false
	defer func() { done(success) }()

	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for initialization: %w", err)
	}
	defer tx.Rollback()

	for _, statement := range dynamicSchema(dims) {
		if _, err := tx.Exec(statement); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	success = true
	return nil
}

// PoolStats reports connection pool usage summed over open project databases.
func (dm *DBManager) PoolStats() (inUse, idle int) {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	for _, db := range dm.dbs {
		s := db.Stats()
		inUse += s.InUse
		idle += s.Idle
	}
	return inUse, idle
}

// Close closes all cached statements and database connections
func (dm *DBManager) Close() error {
	dm.stmtMu.Lock()
	for _, stmts := range dm.stmtCache {
		for _, stmt := range stmts {
			_ = stmt.Close()
		}
	}
	dm.stmtCache = make(map[string]map[string]*sql.Stmt)
	dm.stmtMu.Unlock()

	dm.mu.Lock()
	defer dm.mu.Unlock()

	var errs []error
	for name, db := range dm.dbs {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database for project %s: %w", name, err))
		}
	}
	dm.dbs = make(map[string]*sql.DB)
	return errors.Join(errs...)
}
