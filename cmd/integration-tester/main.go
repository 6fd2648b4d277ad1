package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	json "github.com/goccy/go-json"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/apptype"
)

type StepResult struct {
	Name      string `json:"name"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

type Report struct {
	SSEURL     string       `json:"sse_url"`
	StartedAt  time.Time    `json:"started_at"`
	DurationMs int64        `json:"duration_ms"`
	Steps      []StepResult `json:"steps"`
	Passed     bool         `json:"passed"`
}

func main() {
	sseURL := flag.String("sse-url", "http://localhost:8080/sse", "SSE endpoint URL")
	project := flag.String("project", "default", "Project name to use")
	dims := flag.Int("dims", 4, "Embedding dimensionality of the server")
	timeout := flag.Duration("timeout", 30*time.Second, "Overall timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := mcp.NewClient(&mcp.Implementation{Name: "integration-tester", Version: "dev"}, nil)
	transport := mcp.NewSSEClientTransport(*sseURL, nil)

	start := time.Now()
	report := Report{SSEURL: *sseURL, StartedAt: start}
	steps := make([]StepResult, 0, 8)

	// Connect
	tConn := time.Now()
	connRes := StepResult{Name: "connect"}
	session, err := client.Connect(ctx, transport)
	if err != nil {
		connRes.Error = err.Error()
		connRes.ElapsedMs = elapsedMsSince(tConn)
		report.Steps = append(steps, connRes)
		report.DurationMs = elapsedMsSince(start)
		writeReport(report)
		os.Exit(1)
	}
	defer session.Close()
	connRes.Success = true
	connRes.ElapsedMs = elapsedMsSince(tConn)
	steps = append(steps, connRes)

	projectA, projectB := *project+"-a", *project+"-b"

	steps = append(steps, runListTools(ctx, session))
	steps = append(steps, runTool(ctx, session, "upsert_items", apptype.UpsertItemsArgs{
		ProjectArgs: apptype.ProjectArgs{ProjectName: *project},
		Items: []apptype.Item{
			{ID: "i1", Title: "Dark mode", Embedding: axis(*dims, 0)},
			{ID: "i2", Title: "Dark theme", Embedding: axis(*dims, 0)},
			{ID: "i3", Title: "CSV export", Embedding: axis(*dims, 1)},
		},
	}))
	steps = append(steps, runTool(ctx, session, "cluster_items", apptype.ClusterItemsArgs{
		ProjectArgs: apptype.ProjectArgs{ProjectName: *project},
		Threshold:   0.8,
		Persist:     true,
	}))
	steps = append(steps, runTool(ctx, session, "list_themes", apptype.ListThemesArgs{
		ProjectArgs: apptype.ProjectArgs{ProjectName: *project},
	}))
	steps = append(steps, runTool(ctx, session, "upsert_entities", apptype.UpsertEntitiesArgs{
		ProjectArgs: apptype.ProjectArgs{ProjectName: projectA},
		Entities:    []apptype.Entity{{ID: "a1", Name: "Ada", EntityType: "person", Mentions: 3, Embedding: axis(*dims, 0)}},
	}))
	steps = append(steps, runTool(ctx, session, "upsert_entities", apptype.UpsertEntitiesArgs{
		ProjectArgs: apptype.ProjectArgs{ProjectName: projectB},
		Entities:    []apptype.Entity{{ID: "b1", Name: "Ada L.", EntityType: "person", Mentions: 1, Embedding: axis(*dims, 0)}},
	}))
	steps = append(steps, runTool(ctx, session, "match_entities", apptype.MatchEntitiesArgs{
		PartitionAProject: projectA,
		PartitionBProject: projectB,
		TopK:              5,
	}))
	steps = append(steps, runTool(ctx, session, "health_check", apptype.HealthArgs{}))

	// finalize report
	report.Steps = steps
	report.DurationMs = elapsedMsSince(start)
	report.Passed = true
	for _, s := range steps {
		if !s.Success {
			report.Passed = false
			break
		}
	}
	writeReport(report)

	if !report.Passed {
		os.Exit(1)
	}
}

func writeReport(report Report) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(report)
}

func runListTools(ctx context.Context, session *mcp.ClientSession) StepResult {
	t0 := time.Now()
	res := StepResult{Name: "list_tools"}
	if _, err := session.ListTools(ctx, &mcp.ListToolsParams{}); err != nil {
		res.Error = err.Error()
	} else {
		res.Success = true
	}
	res.ElapsedMs = elapsedMsSince(t0)
	return res
}

// runTool calls one tool and fails the step on transport errors and on
// tool-level errors.
func runTool(ctx context.Context, session *mcp.ClientSession, name string, args any) StepResult {
	t0 := time.Now()
	res := StepResult{Name: name}

	raw, err := json.Marshal(args)
	if err != nil {
		res.Error = fmt.Sprintf("marshal args: %v", err)
		res.ElapsedMs = elapsedMsSince(t0)
		return res
	}
	out, err := session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: json.RawMessage(raw)})
	switch {
	case err != nil:
		res.Error = err.Error()
	case out.IsError:
		res.Error = "tool returned an error result"
	default:
		res.Success = true
	}
	res.ElapsedMs = elapsedMsSince(t0)
	return res
}

// axis returns a unit vector along dimension i.
func axis(dims, i int) []float32 {
	v := make([]float32, dims)
	v[i%dims] = 1
	return v
}

// elapsedMsSince returns max(1ms, elapsed) to avoid zero durations on fast steps
func elapsedMsSince(t0 time.Time) int64 {
	d := time.Since(t0) / time.Millisecond
	if d <= 0 {
		return 1
	}
	return int64(d)
}
