package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/metrics"
)

// getPreparedStmt returns or prepares and caches a statement for the given project DB
func (dm *DBManager) getPreparedStmt(ctx context.Context, projectKey string, db *sql.DB, sqlText string) (*sql.Stmt, error) {
	// fast path read
	dm.stmtMu.RLock()
	if projCache, ok := dm.stmtCache[projectKey]; ok {
		if stmt, ok2 := projCache[sqlText]; ok2 {
			dm.stmtMu.RUnlock()
			metrics.Default().IncStmtCacheHit("prepare")
			return stmt, nil
		}
	}
	dm.stmtMu.RUnlock()
	metrics.Default().IncStmtCacheMiss("prepare")

	stmt, err := db.PrepareContext(ctx, sqlText)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	dm.stmtMu.Lock()
	defer dm.stmtMu.Unlock()
	if _, ok := dm.stmtCache[projectKey]; !ok {
		dm.stmtCache[projectKey] = make(map[string]*sql.Stmt)
	}
	if existing, ok := dm.stmtCache[projectKey][sqlText]; ok {
		_ = stmt.Close()
		return existing, nil
	}
	dm.stmtCache[projectKey][sqlText] = stmt
	return stmt, nil
}
