package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/database"
	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/engine"
)

func setupRunner(t *testing.T) (*Runner, *database.DBManager) {
	t.Helper()
	db, err := database.NewDBManager(&database.Config{
		ProjectsDir:      t.TempDir(),
		MultiProjectMode: true,
		EmbeddingDims:    3,
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db, engine.New(engine.DefaultConfig(), zerolog.Nop()), zerolog.Nop()), db
}

func f64(v float64) *float64 { return &v }

func TestClusterProject_LoadsAndPersists(t *testing.T) {
	r, db := setupRunner(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertItems(ctx, "feedback", []apptype.Item{
		{ID: "1", Title: "Dark mode please", Embedding: []float32{1, 0, 0}},
		{ID: "2", Title: "Dark theme", Embedding: []float32{0.95, 0.05, 0}},
		{ID: "3", Title: "CSV export", Embedding: []float32{0, 1, 0}},
		{ID: "4", Title: "No vector yet"},
	}))

	resp, err := r.ClusterProject(ctx, "feedback", apptype.ClusterRequest{Threshold: 0.9}, true)
	require.NoError(t, err)
	assert.Equal(t, 4, resp.TotalItems)
	assert.Equal(t, 2, resp.ThemeCount)
	assert.Equal(t, 1, resp.SkippedItems)

	stored, err := db.ListThemes(ctx, "feedback")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, resp.Themes[0].ID, stored[0].ID)
	assert.Equal(t, []string{"1", "2"}, stored[0].ItemIDs)
	assert.Equal(t, 0.9, stored[0].Threshold)
}

func TestClusterProject_InlineItemsSkipStore(t *testing.T) {
	r, db := setupRunner(t)
	ctx := context.Background()

	resp, err := r.ClusterProject(ctx, "unused", apptype.ClusterRequest{
		Threshold: 0.5,
		Items:     []apptype.Item{{ID: "a", Title: "Alpha", Embedding: []float32{1, 0, 0}}},
	}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.ThemeCount)

	stored, err := db.ListThemes(ctx, "unused")
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestClusterProject_InvalidThreshold(t *testing.T) {
	r, _ := setupRunner(t)
	_, err := r.ClusterProject(context.Background(), "p", apptype.ClusterRequest{Threshold: 0.1}, false)
	assert.ErrorIs(t, err, engine.ErrValidation)
}

func TestMatchProjects(t *testing.T) {
	r, db := setupRunner(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertEntities(ctx, "graph-a", []apptype.Entity{
		{ID: "x", Name: "X", EntityType: "person", Mentions: 5, Embedding: []float32{1, 0, 0}},
		{ID: "w", Name: "W", EntityType: "person", Mentions: 1},
	}))
	require.NoError(t, db.UpsertEntities(ctx, "graph-b", []apptype.Entity{
		{ID: "y", Name: "Y", EntityType: "person", Mentions: 2, Embedding: []float32{1, 0, 0}},
		{ID: "z", Name: "Z", EntityType: "place", Mentions: 9, Embedding: []float32{0, 1, 0}},
	}))

	resp, err := r.MatchProjects(ctx, "graph-a", "graph-b", apptype.MatchRequest{SimilarityThreshold: f64(0.5), TopK: 5})
	require.NoError(t, err)
	require.Len(t, resp.Matches, 1)
	assert.Equal(t, "x", resp.Matches[0].EntityAID)
	assert.Equal(t, "y", resp.Matches[0].EntityBID)
	assert.InDelta(t, 1.0, resp.Matches[0].Similarity, 1e-6)
	assert.Equal(t, 2, resp.PairsScored)

	// query resolved in partition B
	resp, err = r.MatchProjects(ctx, "graph-a", "graph-b", apptype.MatchRequest{QueryEntityID: "y"})
	require.NoError(t, err)
	require.Len(t, resp.Matches, 1)
	assert.Equal(t, "x", resp.Matches[0].EntityAID)
	assert.Equal(t, 0.75, resp.Threshold)

	_, err = r.MatchProjects(ctx, "graph-a", "graph-b", apptype.MatchRequest{QueryEntityID: "nope"})
	assert.ErrorIs(t, err, engine.ErrNotFound)

	_, err = r.MatchProjects(ctx, "graph-a", "graph-b", apptype.MatchRequest{QueryEntityID: "w"})
	assert.ErrorIs(t, err, engine.ErrMissingEmbedding)
}

type failingStore struct{}

func (failingStore) ListItems(context.Context, string, string) ([]apptype.Item, error) {
	return nil, errors.New("boom")
}

func (failingStore) ListEntities(context.Context, string, int) ([]apptype.Entity, error) {
	return nil, errors.New("boom")
}

func (failingStore) SaveThemes(context.Context, string, float64, []apptype.Theme) error {
	return errors.New("boom")
}

func TestStoreErrorsAreWrapped(t *testing.T) {
	r := New(failingStore{}, engine.New(engine.DefaultConfig(), zerolog.Nop()), zerolog.Nop())
	ctx := context.Background()

	_, err := r.ClusterProject(ctx, "p", apptype.ClusterRequest{Threshold: 0.8}, false)
	require.Error(t, err)
	assert.NotErrorIs(t, err, engine.ErrValidation)
	assert.Contains(t, err.Error(), "boom")

	_, err = r.MatchProjects(ctx, "a", "b", apptype.MatchRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "partition A")

	_, err = r.ClusterProject(ctx, "p", apptype.ClusterRequest{
		Threshold: 0.8,
		Items:     []apptype.Item{{ID: "a", Title: "A"}},
	}, true)
	assert.Error(t, err)
}
