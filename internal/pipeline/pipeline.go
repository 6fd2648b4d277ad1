// Package pipeline wires the store to the engine: it loads a project's items
// or two projects' entities, runs the engine and optionally persists themes.
package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/engine"
	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/metrics"
)

// Store is the subset of the database the pipeline reads and writes.
type Store interface {
	ListItems(ctx context.Context, project string, itemType string) ([]apptype.Item, error)
	ListEntities(ctx context.Context, project string, limit int) ([]apptype.Entity, error)
	SaveThemes(ctx context.Context, project string, threshold float64, themes []apptype.Theme) error
}

// Runner executes load, compute and persist sequences.
type Runner struct {
	store  Store
	eng    *engine.Engine
	logger zerolog.Logger
}

// New creates a Runner.
func New(store Store, eng *engine.Engine, logger zerolog.Logger) *Runner {
	return &Runner{
		store:  store,
		eng:    eng,
		logger: logger.With().Str("component", "pipeline").Logger(),
	}
}

// Engine returns the engine the runner drives.
func (r *Runner) Engine() *engine.Engine { return r.eng }

// ClusterProject clusters req.Items, or the project's stored items when the
// request carries none. With persist set the resulting themes replace the
// project's saved themes.
func (r *Runner) ClusterProject(ctx context.Context, project string, req apptype.ClusterRequest, persist bool) (*apptype.ClusterResponse, error) {
	done := metrics.TimeOp("pipeline_cluster")
	success := false
	defer func() { done(success) }()

	// fail fast before touching the store
	if err := r.eng.ValidateClusterThreshold(req.Threshold); err != nil {
		return nil, err
	}

	if len(req.Items) == 0 {
		items, err := r.store.ListItems(ctx, project, req.ItemTypeFilter)
		if err != nil {
			return nil, fmt.Errorf("failed to load items for project %s: %w", project, err)
		}
		req.Items = items
	}

	resp, err := r.eng.ClusterItems(req)
	if err != nil {
		return nil, err
	}
	metrics.Default().ObserveThemeCount(resp.Mode, resp.ThemeCount)

	if persist {
		if err := r.store.SaveThemes(ctx, project, req.Threshold, resp.Themes); err != nil {
			return nil, fmt.Errorf("failed to save themes for project %s: %w", project, err)
		}
	}

	r.logger.Info().
		Str("project", project).
		Int("items", resp.TotalItems).
		Int("themes", resp.ThemeCount).
		Bool("persisted", persist).
		Msg("Clustered project")
	success = true
	return resp, nil
}

// MatchProjects matches entities of projectA (partition A) against those of
// projectB (partition B).
func (r *Runner) MatchProjects(ctx context.Context, projectA, projectB string, req apptype.MatchRequest) (*apptype.MatchResponse, error) {
	done := metrics.TimeOp("pipeline_match")
	success := false
	defer func() { done(success) }()

	if _, err := r.eng.MatchOptions(req); err != nil {
		return nil, err
	}

	partitionA, err := r.loadPartition(ctx, projectA, apptype.PartitionA)
	if err != nil {
		return nil, err
	}
	partitionB, err := r.loadPartition(ctx, projectB, apptype.PartitionB)
	if err != nil {
		return nil, err
	}

	resp, err := r.eng.MatchEntities(req, partitionA, partitionB)
	if err != nil {
		return nil, err
	}

	mode := "all_pairs"
	if req.QueryEntityID != "" {
		mode = "single"
	}
	metrics.Default().AddPairsScored(mode, resp.PairsScored)

	r.logger.Info().
		Str("partition_a", projectA).
		Str("partition_b", projectB).
		Str("mode", mode).
		Int("matches", len(resp.Matches)).
		Int("total_found", resp.TotalFound).
		Msg("Matched projects")
	success = true
	return resp, nil
}

func (r *Runner) loadPartition(ctx context.Context, project, partition string) ([]apptype.Entity, error) {
	entities, err := r.store.ListEntities(ctx, project, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load partition %s from project %s: %w", partition, project, err)
	}
	for i := range entities {
		entities[i].Partition = partition
	}
	return entities, nil
}
