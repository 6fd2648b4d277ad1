package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/buildinfo"
	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/database"
	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/metrics"
	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/pipeline"
)

const (
	serverName     = "mcp-kgmatch-libsql-go"
	defaultProject = "default"
)

// MCPServer handles MCP protocol communication
type MCPServer struct {
	server *mcp.Server
	db     *database.DBManager
	runner *pipeline.Runner
	logger zerolog.Logger
}

// NewMCPServer creates a new MCP server
func NewMCPServer(db *database.DBManager, runner *pipeline.Runner, logger zerolog.Logger) *MCPServer {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: buildinfo.Version,
	}, nil)

	mcpServer := &MCPServer{
		server: server,
		db:     db,
		runner: runner,
		logger: logger.With().Str("component", "server").Logger(),
	}

	// initialize metrics from env (no-op if disabled)
	metrics.InitFromEnv()
	mcpServer.setupToolHandlers()
	return mcpServer
}

func mustSchema[T any](what string) *jsonschema.Schema {
	schema, err := jsonschema.For[T]()
	if err != nil {
		panic(fmt.Sprintf("failed to create schema for %s: %v", what, err))
	}
	return schema
}

// setupToolHandlers registers all MCP tools
func (s *MCPServer) setupToolHandlers() {
	// Tools that return plain text do not need an output schema. Only
	// tools returning structured content should declare OutputSchema.
	mcp.AddTool(s.server, &mcp.Tool{
		Annotations: &mcp.ToolAnnotations{Title: "Upsert Items"},
		Name:        "upsert_items",
		Title:       "Upsert Items",
		Description: "Create or replace clusterable items (id, title, optional description, category, type and embedding) in a project.",
		InputSchema: mustSchema[apptype.UpsertItemsArgs]("UpsertItemsArgs"),
	}, s.handleUpsertItems)

	mcp.AddTool(s.server, &mcp.Tool{
		Annotations: &mcp.ToolAnnotations{Title: "Upsert Entities"},
		Name:        "upsert_entities",
		Title:       "Upsert Entities",
		Description: "Create or replace knowledge-graph entities (id, name, type, mentions, optional embedding) in a project.",
		InputSchema: mustSchema[apptype.UpsertEntitiesArgs]("UpsertEntitiesArgs"),
	}, s.handleUpsertEntities)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "cluster_items",
		Title:        "Cluster Items",
		Description:  "Group items into labelled themes by cosine similarity. Uses the project's stored items when none are given.",
		InputSchema:  mustSchema[apptype.ClusterItemsArgs]("ClusterItemsArgs"),
		OutputSchema: mustSchema[apptype.ClusterResponse]("ClusterResponse"),
	}, s.handleClusterItems)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "match_entities",
		Title:        "Match Entities",
		Description:  "Find best-matching entities between two projects (partitions A and B), for one query entity or all of partition A.",
		InputSchema:  mustSchema[apptype.MatchEntitiesArgs]("MatchEntitiesArgs"),
		OutputSchema: mustSchema[apptype.MatchResponse]("MatchResponse"),
	}, s.handleMatchEntities)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "list_themes",
		Title:        "List Themes",
		Description:  "List the themes last persisted for a project.",
		InputSchema:  mustSchema[apptype.ListThemesArgs]("ListThemesArgs"),
		OutputSchema: mustSchema[apptype.ThemesResult]("ThemesResult"),
	}, s.handleListThemes)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "health_check",
		Title:        "Health Check",
		Description:  "Returns server and configuration information.",
		InputSchema:  mustSchema[apptype.HealthArgs]("HealthArgs"),
		OutputSchema: mustSchema[apptype.HealthResult]("HealthResult"),
	}, s.handleHealth)
}

func (s *MCPServer) getProjectName(providedName string) string {
	if providedName != "" {
		return providedName
	}
	return defaultProject
}

// handleUpsertItems handles the upsert_items tool call
func (s *MCPServer) handleUpsertItems(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.UpsertItemsArgs],
) (*mcp.CallToolResultFor[any], error) {
	done := metrics.TimeTool("upsert_items")
	var success bool
	defer func() { done(success) }()
	projectName := s.getProjectName(params.Arguments.ProjectArgs.ProjectName)
	items := params.Arguments.Items

	if err := s.db.UpsertItems(ctx, projectName, items); err != nil {
		return nil, fmt.Errorf("failed to upsert items: %w", err)
	}
	success = true
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Successfully processed %d items in project %s", len(items), projectName)}},
	}, nil
}

// handleUpsertEntities handles the upsert_entities tool call
func (s *MCPServer) handleUpsertEntities(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.UpsertEntitiesArgs],
) (*mcp.CallToolResultFor[any], error) {
	done := metrics.TimeTool("upsert_entities")
	var success bool
	defer func() { done(success) }()
	projectName := s.getProjectName(params.Arguments.ProjectArgs.ProjectName)
	entities := params.Arguments.Entities

	if err := s.db.UpsertEntities(ctx, projectName, entities); err != nil {
		return nil, fmt.Errorf("failed to upsert entities: %w", err)
	}
	success = true
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Successfully processed %d entities in project %s", len(entities), projectName)}},
	}, nil
}

// handleClusterItems handles the cluster_items tool call
func (s *MCPServer) handleClusterItems(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.ClusterItemsArgs],
) (*mcp.CallToolResultFor[apptype.ClusterResponse], error) {
	done := metrics.TimeTool("cluster_items")
	var success bool
	defer func() { done(success) }()
	args := params.Arguments
	projectName := s.getProjectName(args.ProjectArgs.ProjectName)

	resp, err := s.runner.ClusterProject(ctx, projectName, apptype.ClusterRequest{
		Items:          args.Items,
		Threshold:      args.Threshold,
		ItemTypeFilter: args.ItemTypeFilter,
	}, args.Persist)
	if err != nil {
		return nil, fmt.Errorf("clustering failed: %w", err)
	}
	success = true
	return &mcp.CallToolResultFor[apptype.ClusterResponse]{
		Content:           []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Found %d themes across %d items", resp.ThemeCount, resp.TotalItems)}},
		StructuredContent: *resp,
	}, nil
}

// handleMatchEntities handles the match_entities tool call
func (s *MCPServer) handleMatchEntities(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.MatchEntitiesArgs],
) (*mcp.CallToolResultFor[apptype.MatchResponse], error) {
	done := metrics.TimeTool("match_entities")
	var success bool
	defer func() { done(success) }()
	args := params.Arguments
	if args.PartitionAProject == "" || args.PartitionBProject == "" {
		return nil, fmt.Errorf("partitionAProject and partitionBProject are required")
	}

	resp, err := s.runner.MatchProjects(ctx, args.PartitionAProject, args.PartitionBProject, args.Request())
	if err != nil {
		return nil, fmt.Errorf("matching failed: %w", err)
	}
	success = true
	return &mcp.CallToolResultFor[apptype.MatchResponse]{
		Content:           []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Found %d matches (%d qualifying pairs)", len(resp.Matches), resp.TotalFound)}},
		StructuredContent: *resp,
	}, nil
}

// handleListThemes handles the list_themes tool call
func (s *MCPServer) handleListThemes(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.ListThemesArgs],
) (*mcp.CallToolResultFor[apptype.ThemesResult], error) {
	done := metrics.TimeTool("list_themes")
	var success bool
	defer func() { done(success) }()
	projectName := s.getProjectName(params.Arguments.ProjectArgs.ProjectName)

	themes, err := s.db.ListThemes(ctx, projectName)
	if err != nil {
		return nil, fmt.Errorf("failed to list themes: %w", err)
	}
	success = true
	return &mcp.CallToolResultFor[apptype.ThemesResult]{
		Content:           []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("%d themes in project %s", len(themes), projectName)}},
		StructuredContent: apptype.ThemesResult{Themes: themes},
	}, nil
}

// handleHealth returns basic server health information
func (s *MCPServer) handleHealth(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.HealthArgs],
) (*mcp.CallToolResultFor[apptype.HealthResult], error) {
	done := metrics.TimeTool("health_check")
	defer func() { done(true) }()
	return &mcp.CallToolResultFor[apptype.HealthResult]{
		Content:           []mcp.Content{&mcp.TextContent{Text: "ok"}},
		StructuredContent: s.health(),
	}, nil
}

func (s *MCPServer) health() apptype.HealthResult {
	cfg := s.db.Config()
	// observe current pool gauges
	inUse, idle := s.db.PoolStats()
	metrics.Default().ObservePoolStats(inUse, idle)
	return apptype.HealthResult{
		Name:          serverName,
		Version:       buildinfo.Version,
		Revision:      buildinfo.Revision,
		BuildDate:     buildinfo.BuildDate,
		MultiProject:  cfg.MultiProjectMode,
		EmbeddingDims: cfg.EmbeddingDims,
	}
}

// reportPoolStats samples pool gauges until ctx is done.
func (s *MCPServer) reportPoolStats(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				inUse, idle := s.db.PoolStats()
				metrics.Default().ObservePoolStats(inUse, idle)
			}
		}
	}()
}

// Run starts the MCP server with stdio transport
func (s *MCPServer) Run(ctx context.Context) error {
	s.reportPoolStats(ctx)
	transport := mcp.NewStdioTransport()
	return s.server.Run(ctx, transport)
}

// RunSSE starts the MCP server over SSE at the given address and endpoint.
// The JSON API and /healthz share the listener.
func (s *MCPServer) RunSSE(ctx context.Context, addr string, endpoint string) error {
	s.reportPoolStats(ctx)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(endpoint),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Str("addr", addr).Str("endpoint", endpoint).Msg("SSE MCP server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
