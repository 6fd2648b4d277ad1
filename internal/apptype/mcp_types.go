package apptype

// ProjectArgs provides a standard way to pass project context to tools.
type ProjectArgs struct {
	ProjectName string `json:"projectName,omitempty" jsonschema:"The name of the project to operate on. If not provided, the default project is used."`
}

// UpsertItemsArgs represents the arguments for the upsert_items tool
type UpsertItemsArgs struct {
	ProjectArgs ProjectArgs `json:"projectArgs,omitempty" jsonschema:"Project context for the operation."`
	Items       []Item      `json:"items" jsonschema:"Items to create or replace."`
}

// UpsertEntitiesArgs represents the arguments for the upsert_entities tool
type UpsertEntitiesArgs struct {
	ProjectArgs ProjectArgs `json:"projectArgs,omitempty" jsonschema:"Project context for the operation."`
	Entities    []Entity    `json:"entities" jsonschema:"Entities to create or replace."`
}

// ClusterItemsArgs represents the arguments for the cluster_items tool
type ClusterItemsArgs struct {
	ProjectArgs    ProjectArgs `json:"projectArgs,omitempty" jsonschema:"Project whose stored items are clustered when no items are given."`
	Items          []Item      `json:"items,omitempty" jsonschema:"Items to cluster. When empty, the project's stored items are used."`
	Threshold      float64     `json:"threshold" jsonschema:"Minimum cosine similarity to join a theme (0.3 to 0.99)."`
	ItemTypeFilter string      `json:"itemTypeFilter,omitempty" jsonschema:"Only cluster items of this type."`
	Persist        bool        `json:"persist,omitempty" jsonschema:"Store the resulting themes in the project."`
}

// MatchEntitiesArgs represents the arguments for the match_entities tool
type MatchEntitiesArgs struct {
	PartitionAProject   string   `json:"partitionAProject" jsonschema:"Project holding partition A entities."`
	PartitionBProject   string   `json:"partitionBProject" jsonschema:"Project holding partition B entities."`
	QueryEntityID       string   `json:"queryEntityId,omitempty" jsonschema:"Match a single entity. When empty all of partition A is matched."`
	SimilarityThreshold *float64 `json:"similarityThreshold,omitempty" jsonschema:"Minimum cosine similarity (default 0.75)."`
	TopK                int      `json:"topK,omitempty" jsonschema:"Maximum matches per query entity (default 10)."`
	PartitionALimit     int      `json:"partitionALimit,omitempty" jsonschema:"Only match the first N entities of partition A by mentions."`
	PartitionBLimit     int      `json:"partitionBLimit,omitempty" jsonschema:"Only match against the first N entities of partition B by mentions."`
}

// Request converts tool arguments into an engine request.
func (a MatchEntitiesArgs) Request() MatchRequest {
	return MatchRequest{
		QueryEntityID:       a.QueryEntityID,
		SimilarityThreshold: a.SimilarityThreshold,
		TopK:                a.TopK,
		PartitionALimit:     a.PartitionALimit,
		PartitionBLimit:     a.PartitionBLimit,
	}
}

// ListThemesArgs represents the arguments for the list_themes tool
type ListThemesArgs struct {
	ProjectArgs ProjectArgs `json:"projectArgs,omitempty" jsonschema:"Project context for the operation."`
}

// ThemesResult is the structured output of list_themes
type ThemesResult struct {
	Themes []StoredTheme `json:"themes"`
}

// Health
type HealthArgs struct{}

type HealthResult struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	Revision      string `json:"revision"`
	BuildDate     string `json:"buildDate"`
	MultiProject  bool   `json:"multiProject"`
	EmbeddingDims int    `json:"embeddingDims"`
}
