// Package engine validates theme and match requests, runs the clustering and
// matching engines and shapes their responses. It performs no I/O: callers
// load items and entities before the call and persist results after it.
package engine

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/clustering"
	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/matching"
)

// Engine is stateless apart from its configuration and is safe for
// concurrent use.
type Engine struct {
	cfg    Config
	logger zerolog.Logger
}

// New creates an engine with the given configuration.
func New(cfg Config, logger zerolog.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		logger: logger.With().Str("component", "engine").Logger(),
	}
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// ValidateClusterThreshold rejects thresholds outside [0, 1] or outside the
// configured clustering band.
func (e *Engine) ValidateClusterThreshold(threshold float64) error {
	if !inUnit(threshold) {
		return invalid("threshold", threshold, "must be within [0, 1]")
	}
	if threshold < e.cfg.MinClusterThreshold || threshold > e.cfg.MaxClusterThreshold {
		return invalid("threshold", threshold, fmt.Sprintf("must be within [%v, %v]", e.cfg.MinClusterThreshold, e.cfg.MaxClusterThreshold))
	}
	return nil
}

// ClusterItems groups the request's items into themes.
func (e *Engine) ClusterItems(req apptype.ClusterRequest) (*apptype.ClusterResponse, error) {
	if err := e.ValidateClusterThreshold(req.Threshold); err != nil {
		return nil, err
	}

	items := req.Items
	if req.ItemTypeFilter != "" {
		items = make([]apptype.Item, 0, len(req.Items))
		for _, it := range req.Items {
			if it.ItemType == req.ItemTypeFilter {
				items = append(items, it)
			}
		}
	}

	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if it.ID == "" {
			return nil, invalid("items.id", it.ID, "must be a non-empty string")
		}
		if seen[it.ID] {
			return nil, invalid("items.id", it.ID, "must be unique within a request")
		}
		seen[it.ID] = true
	}

	res := clustering.Group(items, req.Threshold, e.cfg.labelOptions())

	resp := &apptype.ClusterResponse{
		Themes:       make([]apptype.Theme, 0, len(res.Clusters)),
		TotalItems:   len(items),
		ThemeCount:   len(res.Clusters),
		SkippedItems: res.Skipped,
		Mode:         string(res.Mode),
	}
	clustered := 0
	for _, c := range res.Clusters {
		clustered += c.Count()
		if c.Count() == 1 {
			resp.Stats.SingleItemThemes++
		}
		if c.Count() >= e.cfg.LargeThemeSize {
			resp.Stats.LargeThemeCount++
		}

		idx := c.Indexes()
		if e.cfg.DisplayItemLimit > 0 && len(idx) > e.cfg.DisplayItemLimit {
			idx = idx[:e.cfg.DisplayItemLimit]
		}
		shown := make([]apptype.ThemeItem, len(idx))
		for i, j := range idx {
			shown[i] = apptype.ThemeItem{
				ID:          items[j].ID,
				Title:       items[j].Title,
				Description: items[j].Description,
			}
		}
		resp.Themes = append(resp.Themes, apptype.Theme{
			ID:        c.ID,
			Name:      c.Name,
			ItemCount: c.Count(),
			Items:     shown,
			MemberIDs: c.MemberIDs,
		})
	}
	if resp.ThemeCount > 0 {
		resp.Stats.AvgItemsPerTheme = float64(clustered) / float64(resp.ThemeCount)
	}

	e.logger.Debug().
		Int("items", len(items)).
		Int("themes", resp.ThemeCount).
		Int("skipped", res.Skipped).
		Str("mode", resp.Mode).
		Float64("threshold", req.Threshold).
		Msg("Clustered items")
	return resp, nil
}

// MatchOptions resolves request defaults and validates the matching
// parameters.
func (e *Engine) MatchOptions(req apptype.MatchRequest) (matching.Options, error) {
	threshold := e.cfg.DefaultMatchThreshold
	if req.SimilarityThreshold != nil {
		threshold = *req.SimilarityThreshold
	}
	if !inUnit(threshold) {
		return matching.Options{}, invalid("similarityThreshold", threshold, "must be within [0, 1]")
	}

	topK := req.TopK
	switch {
	case topK < 0:
		return matching.Options{}, invalid("topK", topK, "must be positive")
	case topK == 0:
		topK = e.cfg.DefaultTopK
	}
	if req.PartitionALimit < 0 {
		return matching.Options{}, invalid("partitionALimit", req.PartitionALimit, "must not be negative")
	}
	if req.PartitionBLimit < 0 {
		return matching.Options{}, invalid("partitionBLimit", req.PartitionBLimit, "must not be negative")
	}

	return matching.Options{
		Threshold:     threshold,
		TopK:          topK,
		LimitA:        req.PartitionALimit,
		LimitB:        req.PartitionBLimit,
		ParallelPairs: e.cfg.ParallelPairs,
	}, nil
}

// MatchEntities answers a matching request over the supplied partitions.
// When QueryEntityID is set it is looked up in partition A, then B.
func (e *Engine) MatchEntities(req apptype.MatchRequest, partitionA, partitionB []apptype.Entity) (*apptype.MatchResponse, error) {
	opts, err := e.MatchOptions(req)
	if err != nil {
		return nil, err
	}

	var query *apptype.Entity
	if req.QueryEntityID != "" {
		query = findEntity(req.QueryEntityID, partitionA, apptype.PartitionA)
		if query == nil {
			query = findEntity(req.QueryEntityID, partitionB, apptype.PartitionB)
		}
		if query == nil {
			return nil, &NotFoundError{Kind: "entity", ID: req.QueryEntityID}
		}
	}

	res, err := matching.Match(query, partitionA, partitionB, opts)
	if err != nil {
		if errors.Is(err, matching.ErrMissingEmbedding) {
			return nil, &ValidationError{
				Field:  "queryEntityId",
				Value:  req.QueryEntityID,
				Reason: "entity has no embedding",
				cause:  err,
			}
		}
		return nil, err
	}

	e.logger.Debug().
		Str("query", req.QueryEntityID).
		Int("partition_a", len(partitionA)).
		Int("partition_b", len(partitionB)).
		Int("pairs_scored", res.PairsScored).
		Int("matches", len(res.Matches)).
		Msg("Matched entities")
	return &apptype.MatchResponse{
		Matches:     res.Matches,
		TotalFound:  res.TotalFound,
		Threshold:   opts.Threshold,
		PairsScored: res.PairsScored,
	}, nil
}

func findEntity(id string, entities []apptype.Entity, partition string) *apptype.Entity {
	for i := range entities {
		if entities[i].ID == id {
			found := entities[i]
			found.Partition = partition
			return &found
		}
	}
	return nil
}
