package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/metrics"
)

const (
	upsertEntitySQL = `INSERT INTO entities (id, name, entity_type, mentions, embedding)
        VALUES (?, ?, ?, ?, vector32(?))
        ON CONFLICT(id) DO UPDATE SET
            name = excluded.name,
            entity_type = excluded.entity_type,
            mentions = excluded.mentions,
            embedding = excluded.embedding`
	upsertEntityNoVecSQL = `INSERT INTO entities (id, name, entity_type, mentions, embedding)
        VALUES (?, ?, ?, ?, NULL)
        ON CONFLICT(id) DO UPDATE SET
            name = excluded.name,
            entity_type = excluded.entity_type,
            mentions = excluded.mentions,
            embedding = NULL`
	getEntitySQL = `SELECT id, name, entity_type, mentions, embedding
        FROM entities WHERE id = ?`
	listEntitiesSQL = `SELECT id, name, entity_type, mentions, embedding
        FROM entities ORDER BY mentions DESC, id LIMIT ?`
)

// UpsertEntities creates or replaces entities in one transaction.
func (dm *DBManager) UpsertEntities(ctx context.Context, projectName string, entities []apptype.Entity) error {
	done := metrics.TimeOp("db_upsert_entities")
	success := false
	defer func() { done(success) }()

	db, key, err := dm.getDB(projectName)
	if err != nil {
		return err
	}
	dims := dm.EmbeddingDims(projectName)

	vecs := make([]string, len(entities))
	for i, e := range entities {
		if strings.TrimSpace(e.ID) == "" {
			return fmt.Errorf("entity id must be a non-empty string")
		}
		if strings.TrimSpace(e.Name) == "" {
			return fmt.Errorf("entity %q must have a name", e.ID)
		}
		if e.Mentions < 0 {
			return fmt.Errorf("entity %q has negative mentions", e.ID)
		}
		if len(e.Embedding) == 0 {
			continue
		}
		if vecs[i], err = vectorToString(dims, e.Embedding); err != nil {
			return fmt.Errorf("failed to convert embedding for entity %q: %w", e.ID, err)
		}
	}

	withVec, err := dm.getPreparedStmt(ctx, key, db, upsertEntitySQL)
	if err != nil {
		return err
	}
	noVec, err := dm.getPreparedStmt(ctx, key, db, upsertEntityNoVecSQL)
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
	for i, e := range entities {
		if vecs[i] == "" {
			_, err = txNoVec.ExecContext(ctx, e.ID, e.Name, e.EntityType, e.Mentions)
		} else {
			_, err = txWithVec.ExecContext(ctx, e.ID, e.Name, e.EntityType, e.Mentions, vecs[i])
		}
		if err != nil {
			return fmt.Errorf("failed to upsert entity %q: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit entities: %w", err)
	}
	success = true
	return nil
}

// GetEntity retrieves a single entity by id. Absent ids wrap ErrNotFound.
func (dm *DBManager) GetEntity(ctx context.Context, projectName string, id string) (*apptype.Entity, error) {
	done := metrics.TimeOp("db_get_entity")
	success := false
	defer func() { done(success) }()

	db, key, err := dm.getDB(projectName)
	if err != nil {
		return nil, err
	}
	stmt, err := dm.getPreparedStmt(ctx, key, db, getEntitySQL)
	if err != nil {
		return nil, err
	}

	var e apptype.Entity
	var raw any
	err = stmt.QueryRowContext(ctx, id).Scan(&e.ID, &e.Name, &e.EntityType, &e.Mentions, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entity %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}
	if e.Embedding, err = decodeVector(raw, dm.EmbeddingDims(projectName)); err != nil {
		return nil, fmt.Errorf("failed to decode embedding for entity %q: %w", id, err)
	}
	success = true
	return &e, nil
}

// ListEntities returns up to limit entities, most mentioned first with ties
// broken by id. limit <= 0 returns all.
func (dm *DBManager) ListEntities(ctx context.Context, projectName string, limit int) ([]apptype.Entity, error) {
	done := metrics.TimeOp("db_list_entities")
	success := false
	defer func() { done(success) }()

	db, key, err := dm.getDB(projectName)
	if err != nil {
		return nil, err
	}
	dims := dm.EmbeddingDims(projectName)
	if limit <= 0 {
		limit = -1
	}

	stmt, err := dm.getPreparedStmt(ctx, key, db, listEntitiesSQL)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	entities := make([]apptype.Entity, 0)
	for rows.Next() {
		var e apptype.Entity
		var raw any
		if err := rows.Scan(&e.ID, &e.Name, &e.EntityType, &e.Mentions, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		vec, vErr := decodeVector(raw, dims)
		if vErr != nil {
			dm.logger.Warn().Err(vErr).Str("project", key).Str("entity", e.ID).Msg("Dropping unreadable entity embedding")
		}
		e.Embedding = vec
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entities: %w", err)
	}
	success = true
	return entities, nil
}
