package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/metrics"
)

const (
	upsertItemSQL = `INSERT INTO items (id, title, description, category_id, item_type, embedding)
        VALUES (?, ?, ?, ?, ?, vector32(?))
        ON CONFLICT(id) DO UPDATE SET
            title = excluded.title,
            description = excluded.description,
            category_id = excluded.category_id,
            item_type = excluded.item_type,
            embedding = excluded.embedding`
	upsertItemNoVecSQL = `INSERT INTO items (id, title, description, category_id, item_type, embedding)
        VALUES (?, ?, ?, ?, ?, NULL)
        ON CONFLICT(id) DO UPDATE SET
            title = excluded.title,
            description = excluded.description,
            category_id = excluded.category_id,
            item_type = excluded.item_type,
            embedding = NULL`
	listItemsSQL = `SELECT id, title, description, category_id, item_type, embedding
        FROM items ORDER BY rowid`
	listItemsByTypeSQL = `SELECT id, title, description, category_id, item_type, embedding
        FROM items WHERE item_type = ? ORDER BY rowid`
)

// UpsertItems creates or replaces items in one transaction. An item without
// an embedding is stored with a NULL vector.
func (dm *DBManager) UpsertItems(ctx context.Context, projectName string, items []apptype.Item) error {
	done := metrics.TimeOp("db_upsert_items")
	success := false
	defer func() { done(success) }()

	db, key, err := dm.getDB(projectName)
	if err != nil {
		return err
	}
	dims := dm.EmbeddingDims(projectName)

	vecs := make([]string, len(items))
	for i, it := range items {
		if strings.TrimSpace(it.ID) == "" {
			return fmt.Errorf("item id must be a non-empty string")
		}
		if strings.TrimSpace(it.Title) == "" {
			return fmt.Errorf("item %q must have a title", it.ID)
		}
		if len(it.Embedding) == 0 {
			continue
		}
		if vecs[i], err = vectorToString(dims, it.Embedding); err != nil {
			return fmt.Errorf("failed to convert embedding for item %q: %w", it.ID, err)
		}
	}

	withVec, err := dm.getPreparedStmt(ctx, key, db, upsertItemSQL)
	if err != nil {
		return err
	}
	noVec, err := dm.getPreparedStmt(ctx, key, db, upsertItemNoVecSQL)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	txWithVec := tx.StmtContext(ctx, withVec)
	txNoVec := tx.StmtContext(ctx, noVec)
	for i, it := range items {
		if vecs[i] == "" {
			_, err = txNoVec.ExecContext(ctx, it.ID, it.Title, it.Description, it.CategoryID, it.ItemType)
		} else {
			_, err = txWithVec.ExecContext(ctx, it.ID, it.Title, it.Description, it.CategoryID, it.ItemType, vecs[i])
		}
		if err != nil {
			return fmt.Errorf("failed to upsert item %q: %w", it.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit items: %w", err)
	}
	success = true
	return nil
}

// ListItems returns a project's items in insertion order, optionally only
// those of one item type. Rows whose vector cannot be decoded are returned
// without an embedding.
func (dm *DBManager) ListItems(ctx context.Context, projectName string, itemType string) ([]apptype.Item, error) {
	done := metrics.TimeOp("db_list_items")
	success := false
	defer func() { done(success) }()

	db, key, err := dm.getDB(projectName)
	if err != nil {
		return nil, err
	}
	dims := dm.EmbeddingDims(projectName)

	query, args := listItemsSQL, []any{}
	if itemType != "" {
		query, args = listItemsByTypeSQL, []any{itemType}
	}
	stmt, err := dm.getPreparedStmt(ctx, key, db, query)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	items := make([]apptype.Item, 0)
	for rows.Next() {
		var it apptype.Item
		var raw any
		if err := rows.Scan(&it.ID, &it.Title, &it.Description, &it.CategoryID, &it.ItemType, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		vec, vErr := decodeVector(raw, dims)
		if vErr != nil {
			dm.logger.Warn().Err(vErr).Str("project", key).Str("item", it.ID).Msg("Dropping unreadable item embedding")
		}
		it.Embedding = vec
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}
	success = true
	return items, nil
}
