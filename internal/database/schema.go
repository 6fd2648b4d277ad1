package database

import "fmt"

// dynamicSchema returns schema DDL using the configured embedding dimension.
// Embedding columns are nullable: a row without a vector stores NULL.
func dynamicSchema(embeddingDims int) []string {
	if embeddingDims <= 0 {
		embeddingDims = defaultEmbeddingDims
	}
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS items (
        id TEXT PRIMARY KEY,
        title TEXT NOT NULL,
        description TEXT NOT NULL DEFAULT '',
        category_id TEXT NOT NULL DEFAULT '',
        item_type TEXT NOT NULL DEFAULT '',
        embedding F32_BLOB(%d),
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    )`, embeddingDims),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS entities (
        id TEXT PRIMARY KEY,
        name TEXT NOT NULL,
        entity_type TEXT NOT NULL DEFAULT '',
        mentions INTEGER NOT NULL DEFAULT 0,
        embedding F32_BLOB(%d),
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    )`, embeddingDims),

		`CREATE TABLE IF NOT EXISTS themes (
        id TEXT PRIMARY KEY,
        position INTEGER NOT NULL,
        name TEXT NOT NULL,
        item_count INTEGER NOT NULL,
        item_ids TEXT NOT NULL,
        threshold REAL NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    )`,

		`CREATE INDEX IF NOT EXISTS idx_items_item_type ON items(item_type)`,
		`CREATE INDEX IF NOT EXISTS idx_entities_mentions ON entities(mentions DESC, id)`,
		`CREATE INDEX IF NOT EXISTS idx_themes_position ON themes(position)`,
	}
}
