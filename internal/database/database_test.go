package database

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/apptype"
)

const testProject = "test-project"

func setupTestDB(t *testing.T) *DBManager {
	t.Helper()
	config := NewConfig()
	// Use an in-memory database for testing.
	// The `cache=shared` is crucial for sharing the connection across different
	// calls to `sql.Open` within the same process; the name keeps tests apart.
	config.URL = "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	config.EmbeddingDims = 4
	config.MultiProjectMode = false
	db, err := NewDBManager(config, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, db.Close()) })
	return db
}

func TestUpsertAndListItems(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	err := db.UpsertItems(ctx, testProject, []apptype.Item{
		{ID: "i1", Title: "Dark mode", ItemType: "feature", Embedding: []float32{1, 0, 0, 0}},
		{ID: "i2", Title: "Crash on save", ItemType: "bug", CategoryID: "stability"},
		{ID: "i3", Title: "Night theme", Description: "please", ItemType: "feature", Embedding: []float32{0.5, 0.25, 0, 0}},
	})
	require.NoError(t, err)

	items, err := db.ListItems(ctx, testProject, "")
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []string{"i1", "i2", "i3"}, []string{items[0].ID, items[1].ID, items[2].ID})
	assert.Equal(t, []float32{1, 0, 0, 0}, items[0].Embedding)
	assert.Nil(t, items[1].Embedding)
	assert.Equal(t, "stability", items[1].CategoryID)
	assert.Equal(t, []float32{0.5, 0.25, 0, 0}, items[2].Embedding)
	assert.Equal(t, "please", items[2].Description)

	features, err := db.ListItems(ctx, testProject, "feature")
	require.NoError(t, err)
	assert.Len(t, features, 2)

	// updating keeps insertion order and replaces the vector
	err = db.UpsertItems(ctx, testProject, []apptype.Item{{ID: "i1", Title: "Dark mode v2"}})
	require.NoError(t, err)
	items, err = db.ListItems(ctx, testProject, "")
	require.NoError(t, err)
	assert.Equal(t, "i1", items[0].ID)
	assert.Equal(t, "Dark mode v2", items[0].Title)
	assert.Nil(t, items[0].Embedding)
}

func TestUpsertItems_Validation(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	tests := []struct {
		name string
		item apptype.Item
	}{
		{"empty id", apptype.Item{Title: "x"}},
		{"empty title", apptype.Item{ID: "a"}},
		{"wrong dims", apptype.Item{ID: "a", Title: "x", Embedding: []float32{1, 2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, db.UpsertItems(ctx, testProject, []apptype.Item{tt.item}))
		})
	}

	// a failing batch writes nothing
	err := db.UpsertItems(ctx, testProject, []apptype.Item{
		{ID: "ok", Title: "fine"},
		{ID: "bad", Title: "x", Embedding: []float32{1}},
	})
	require.Error(t, err)
	items, err := db.ListItems(ctx, testProject, "")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestEntities(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	err := db.UpsertEntities(ctx, testProject, []apptype.Entity{
		{ID: "e1", Name: "Alpha", EntityType: "person", Mentions: 3, Embedding: []float32{1, 0, 0, 0}},
		{ID: "e2", Name: "Beta", EntityType: "place", Mentions: 7},
		{ID: "e0", Name: "Gamma", EntityType: "person", Mentions: 3, Embedding: []float32{0, 1, 0, 0}},
	})
	require.NoError(t, err)

	e, err := db.GetEntity(ctx, testProject, "e1")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", e.Name)
	assert.Equal(t, 3, e.Mentions)
	assert.Equal(t, []float32{1, 0, 0, 0}, e.Embedding)

	_, err = db.GetEntity(ctx, testProject, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := db.ListEntities(ctx, testProject, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"e2", "e0", "e1"}, []string{all[0].ID, all[1].ID, all[2].ID})
	assert.Nil(t, all[0].Embedding)

	top, err := db.ListEntities(ctx, testProject, 2)
	require.NoError(t, err)
	assert.Len(t, top, 2)

	assert.Error(t, db.UpsertEntities(ctx, testProject, []apptype.Entity{{ID: "x", Name: "X", Mentions: -1}}))
	assert.Error(t, db.UpsertEntities(ctx, testProject, []apptype.Entity{{ID: "x"}}))
}

func TestThemes(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	themes, err := db.ListThemes(ctx, testProject)
	require.NoError(t, err)
	assert.Empty(t, themes)

	first := []apptype.Theme{
		{ID: "t1", Name: "Dark mode", ItemCount: 3, MemberIDs: []string{"a", "b", "c"},
			Items: []apptype.ThemeItem{{ID: "a"}}},
		{ID: "t2", Name: "Export", ItemCount: 1, Items: []apptype.ThemeItem{{ID: "d"}}},
	}
	require.NoError(t, db.SaveThemes(ctx, testProject, 0.8, first))

	themes, err = db.ListThemes(ctx, testProject)
	require.NoError(t, err)
	require.Len(t, themes, 2)
	assert.Equal(t, apptype.StoredTheme{ID: "t1", Name: "Dark mode", ItemCount: 3, ItemIDs: []string{"a", "b", "c"}, Threshold: 0.8}, themes[0])
	assert.Equal(t, []string{"d"}, themes[1].ItemIDs)

	// a new run replaces the previous one
	require.NoError(t, db.SaveThemes(ctx, testProject, 0.5, []apptype.Theme{{ID: "t3", Name: "All", ItemCount: 4, MemberIDs: []string{"a", "b", "c", "d"}}}))
	themes, err = db.ListThemes(ctx, testProject)
	require.NoError(t, err)
	require.Len(t, themes, 1)
	assert.Equal(t, "t3", themes[0].ID)
	assert.Equal(t, 0.5, themes[0].Threshold)
}

func TestMultiProject(t *testing.T) {
	dir := t.TempDir()
	config := &Config{
		ProjectsDir:      dir,
		MultiProjectMode: true,
		EmbeddingDims:    4,
	}

	db, err := NewDBManager(config, zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.UpsertEntities(ctx, "graph-a", []apptype.Entity{{ID: "entity1", Name: "One"}}))
	require.NoError(t, db.UpsertEntities(ctx, "graph-b", []apptype.Entity{{ID: "entity2", Name: "Two"}}))

	_, err = db.GetEntity(ctx, "graph-a", "entity1")
	require.NoError(t, err)
	_, err = db.GetEntity(ctx, "graph-b", "entity2")
	require.NoError(t, err)

	_, err = db.GetEntity(ctx, "graph-a", "entity2")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = db.GetEntity(ctx, "graph-b", "entity1")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = db.ListItems(ctx, "", "")
	assert.Error(t, err)
	_, err = db.ListItems(ctx, "../escape", "")
	assert.Error(t, err)
}

func TestEmbeddingDimsReconciliation(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := NewDBManager(&Config{ProjectsDir: dir, MultiProjectMode: true, EmbeddingDims: 3}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, first.UpsertItems(ctx, "p", []apptype.Item{{ID: "a", Title: "A", Embedding: []float32{1, 2, 3}}}))
	require.NoError(t, first.Close())

	second, err := NewDBManager(&Config{ProjectsDir: dir, MultiProjectMode: true, EmbeddingDims: 8}, zerolog.Nop())
	require.NoError(t, err)
	defer second.Close()

	items, err := second.ListItems(ctx, "p", "")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, []float32{1, 2, 3}, items[0].Embedding)
	assert.Equal(t, 3, second.EmbeddingDims("p"))
	assert.Equal(t, 8, second.EmbeddingDims("fresh"))
}

func TestNewDBManager_RejectsBadDims(t *testing.T) {
	_, err := NewDBManager(&Config{URL: "file:baddims?mode=memory&cache=shared", EmbeddingDims: 0}, zerolog.Nop())
	assert.Error(t, err)
}

func TestVectorCodec(t *testing.T) {
	s, err := vectorToString(3, []float32{0.5, -1, 2.25})
	require.NoError(t, err)
	assert.Equal(t, "[0.5, -1, 2.25]", s)

	_, err = vectorToString(2, []float32{1})
	assert.Error(t, err)

	vec, err := decodeVector("[0.5, 1, \"2\"]", 3)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 1, 2}, vec)

	vec, err = decodeVector(nil, 3)
	require.NoError(t, err)
	assert.Nil(t, vec)

	_, err = decodeVector([]byte{1, 2, 3}, 3)
	assert.Error(t, err)

	assert.Equal(t, 16, parseBlobDims("CREATE TABLE items (embedding F32_BLOB(16))"))
	assert.Equal(t, 0, parseBlobDims("CREATE TABLE items (embedding BLOB)"))
}

func TestVectorToString_RejectsNonFinite(t *testing.T) {
	_, err := vectorToString(2, []float32{float32(math.NaN()), 1})
	assert.Error(t, err)
	_, err = vectorToString(2, []float32{float32(math.Inf(1)), 1})
	assert.Error(t, err)
}
