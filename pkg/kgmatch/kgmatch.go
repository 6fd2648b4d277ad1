// Package kgmatch is the library entry point: similarity, theme clustering
// and cross-partition entity matching, either over caller-supplied data
// (Engine) or over libSQL-backed projects (Service).
package kgmatch

import (
	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/database"
	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/engine"
	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/similarity"
)

type (
	Item            = apptype.Item
	Entity          = apptype.Entity
	Match           = apptype.Match
	Theme           = apptype.Theme
	ThemeItem       = apptype.ThemeItem
	ThemeStats      = apptype.ThemeStats
	StoredTheme     = apptype.StoredTheme
	ClusterRequest  = apptype.ClusterRequest
	ClusterResponse = apptype.ClusterResponse
	MatchRequest    = apptype.MatchRequest
	MatchResponse   = apptype.MatchResponse
	ValidationError = engine.ValidationError
)

const (
	PartitionA = apptype.PartitionA
	PartitionB = apptype.PartitionB
)

var (
	ErrValidation       = engine.ErrValidation
	ErrNotFound         = engine.ErrNotFound
	ErrMissingEmbedding = engine.ErrMissingEmbedding
	// ErrStoreNotFound is wrapped by Service lookups of absent rows.
	ErrStoreNotFound = database.ErrNotFound
)

// Similarity returns the cosine similarity of two vectors; mismatched,
// empty or zero vectors score 0.
func Similarity(a, b []float32) float64 { return similarity.Cosine(a, b) }

// Engine runs clustering and matching over in-memory data. It is safe for
// concurrent use.
type Engine struct {
	eng *engine.Engine
}

// NewEngine creates an Engine. A zero logger disables logging.
func NewEngine(cfg EngineConfig, logger zerolog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{eng: engine.New(cfg, logger)}, nil
}

// Cluster groups items into themes.
func (e *Engine) Cluster(req ClusterRequest) (*ClusterResponse, error) {
	return e.eng.ClusterItems(req)
}

// Match finds matches between two partitions.
func (e *Engine) Match(req MatchRequest, partitionA, partitionB []Entity) (*MatchResponse, error) {
	return e.eng.MatchEntities(req, partitionA, partitionB)
}
