package kgmatch

import (
	"context"

	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/database"
	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/engine"
	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/pipeline"
)

// Service provides a library-first API for clustering and matching stored
// data without MCP transport.
type Service struct {
	db     *database.DBManager
	runner *pipeline.Runner
}

// NewService constructs a Service with the provided config.
func NewService(cfg *Config) (*Service, error) {
	engCfg, err := cfg.engineConfig()
	if err != nil {
		return nil, err
	}
	dm, err := database.NewDBManager(cfg.toInternal(), cfg.Logger)
	if err != nil {
		return nil, err
	}
	eng := engine.New(engCfg, cfg.Logger)
	return &Service{db: dm, runner: pipeline.New(dm, eng, cfg.Logger)}, nil
}

// Close releases resources.
func (s *Service) Close() error { return s.db.Close() }

// UpsertItems creates or replaces items in a project.
func (s *Service) UpsertItems(ctx context.Context, project string, items []Item) error {
	return s.db.UpsertItems(ctx, project, items)
}

// ListItems returns a project's items in insertion order.
func (s *Service) ListItems(ctx context.Context, project, itemType string) ([]Item, error) {
	return s.db.ListItems(ctx, project, itemType)
}

// UpsertEntities creates or replaces entities in a project.
func (s *Service) UpsertEntities(ctx context.Context, project string, entities []Entity) error {
	return s.db.UpsertEntities(ctx, project, entities)
}

// GetEntity fetches one entity; absent ids wrap ErrStoreNotFound.
func (s *Service) GetEntity(ctx context.Context, project, id string) (*Entity, error) {
	return s.db.GetEntity(ctx, project, id)
}

// ClusterProject clusters req.Items, or the project's stored items when none
// are given, and optionally persists the themes.
func (s *Service) ClusterProject(ctx context.Context, project string, req ClusterRequest, persist bool) (*ClusterResponse, error) {
	return s.runner.ClusterProject(ctx, project, req, persist)
}

// MatchProjects matches projectA's entities against projectB's.
func (s *Service) MatchProjects(ctx context.Context, projectA, projectB string, req MatchRequest) (*MatchResponse, error) {
	return s.runner.MatchProjects(ctx, projectA, projectB, req)
}

// ListThemes returns the themes last persisted for a project.
func (s *Service) ListThemes(ctx context.Context, project string) ([]StoredTheme, error) {
	return s.db.ListThemes(ctx, project)
}
