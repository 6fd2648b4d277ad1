package database

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/metrics"
)

const (
	insertThemeSQL = `INSERT INTO themes (id, position, name, item_count, item_ids, threshold)
        VALUES (?, ?, ?, ?, ?, ?)`
	listThemesSQL = `SELECT id, name, item_count, item_ids, threshold
        FROM themes ORDER BY position`
)

// SaveThemes replaces the project's persisted themes with the given run.
func (dm *DBManager) SaveThemes(ctx context.Context, projectName string, threshold float64, themes []apptype.Theme) error {
	done := metrics.TimeOp("db_save_themes")
	success := false
	defer func() { done(success) }()

	db, key, err := dm.getDB(projectName)
	if err != nil {
		return err
	}
	insert, err := dm.getPreparedStmt(ctx, key, db, insertThemeSQL)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM themes"); err != nil {
		return fmt.Errorf("failed to clear themes: %w", err)
	}
	txInsert := tx.StmtContext(ctx, insert)
	for i, t := range themes {
		ids := t.MemberIDs
		if ids == nil {
			ids = make([]string, len(t.Items))
			for j, it := range t.Items {
				ids[j] = it.ID
			}
		}
		encoded, err := json.Marshal(ids)
		if err != nil {
			return fmt.Errorf("failed to encode members of theme %q: %w", t.ID, err)
		}
		if _, err := txInsert.ExecContext(ctx, t.ID, i, t.Name, t.ItemCount, string(encoded), threshold); err != nil {
			return fmt.Errorf("failed to insert theme %q: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit themes: %w", err)
	}
	success = true
	return nil
}

// ListThemes returns the project's persisted themes in their saved order.
func (dm *DBManager) ListThemes(ctx context.Context, projectName string) ([]apptype.StoredTheme, error) {
	done := metrics.TimeOp("db_list_themes")
	success := false
	defer func() { done(success) }()

	db, key, err := dm.getDB(projectName)
	if err != nil {
		return nil, err
	}
	stmt, err := dm.getPreparedStmt(ctx, key, db, listThemesSQL)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query themes: %w", err)
	}
	defer rows.Close()

	themes := make([]apptype.StoredTheme, 0)
	for rows.Next() {
		var t apptype.StoredTheme
		var ids string
		if err := rows.Scan(&t.ID, &t.Name, &t.ItemCount, &ids, &t.Threshold); err != nil {
			return nil, fmt.Errorf("failed to scan theme: %w", err)
		}
		if err := json.Unmarshal([]byte(ids), &t.ItemIDs); err != nil {
			dm.logger.Warn().Err(err).Str("project", key).Str("theme", t.ID).Msg("Skipping theme with corrupt member list")
			continue
		}
		themes = append(themes, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating themes: %w", err)
	}
	success = true
	return themes, nil
}
