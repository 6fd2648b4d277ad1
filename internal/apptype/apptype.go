package apptype

// Partition tags for cross-partition matching.
const (
	PartitionA = "A"
	PartitionB = "B"
)

// Item is a clustering input: a document or feature request carrying an
// optional embedding.
type Item struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	CategoryID  string    `json:"categoryId,omitempty"`
	ItemType    string    `json:"itemType,omitempty"`
	Embedding   []float32 `json:"embedding,omitempty"`
}

// Entity represents a node in one of the knowledge graphs being cross-matched
type Entity struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	EntityType string    `json:"entityType"`
	Partition  string    `json:"partition,omitempty"`
	Mentions   int       `json:"mentions,omitempty"`
	Embedding  []float32 `json:"embedding,omitempty"`
}

// Match pairs one entity from each partition with their cosine similarity
type Match struct {
	EntityAID   string  `json:"entityAId"`
	EntityAName string  `json:"entityAName"`
	EntityAType string  `json:"entityAType"`
	EntityBID   string  `json:"entityBId"`
	EntityBName string  `json:"entityBName"`
	EntityBType string  `json:"entityBType"`
	Similarity  float64 `json:"similarity"`
}

// ThemeItem is the display form of a clustered item
type ThemeItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Theme is a labelled cluster of items
type Theme struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	ItemCount int         `json:"itemCount"`
	Items     []ThemeItem `json:"items"`
	// MemberIDs lists every member even when Items is truncated for display.
	MemberIDs []string    `json:"-"`
}

// ThemeStats summarizes a clustering run
type ThemeStats struct {
	AvgItemsPerTheme float64 `json:"avgItemsPerTheme"`
	SingleItemThemes int     `json:"singleItemThemes"`
	LargeThemeCount  int     `json:"largeThemeCount"`
}

// ClusterRequest asks the engine to group items into themes.
type ClusterRequest struct {
	Items          []Item  `json:"items"`
	Threshold      float64 `json:"threshold"`
	ItemTypeFilter string  `json:"itemTypeFilter,omitempty"`
}

// ClusterResponse is the result of a clustering request.
type ClusterResponse struct {
	Themes       []Theme    `json:"themes"`
	TotalItems   int        `json:"totalItems"`
	ThemeCount   int        `json:"themeCount"`
	SkippedItems int        `json:"skippedItems"`
	Mode         string     `json:"mode"`
	Stats        ThemeStats `json:"stats"`
}

// MatchRequest asks the engine for cross-partition matches. Nil threshold
// and zero TopK take the configured defaults.
type MatchRequest struct {
	QueryEntityID       string   `json:"queryEntityId,omitempty"`
	SimilarityThreshold *float64 `json:"similarityThreshold,omitempty"`
	TopK                int      `json:"topK,omitempty"`
	PartitionALimit     int      `json:"partitionALimit,omitempty"`
	PartitionBLimit     int      `json:"partitionBLimit,omitempty"`
}

// MatchResponse is the result of a matching request.
type MatchResponse struct {
	Matches     []Match `json:"matches"`
	TotalFound  int     `json:"totalFound"`
	Threshold   float64 `json:"threshold"`
	PairsScored int     `json:"pairsScored"`
}

// StoredTheme is a theme persisted for a project
type StoredTheme struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	ItemCount int      `json:"itemCount"`
	ItemIDs   []string `json:"itemIds"`
	Threshold float64  `json:"threshold"`
}
