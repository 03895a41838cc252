package canvasmesh

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hupe1980/canvasmesh/config"
	"github.com/hupe1980/canvasmesh/engine"
	"github.com/hupe1980/canvasmesh/graph"
	"github.com/hupe1980/canvasmesh/internal/testutil"
	"github.com/hupe1980/canvasmesh/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func summaryCanvas() *testutil.CanvasBuilder {
	return testutil.NewCanvasBuilder().
		File("src", "topics/go.md", 0, 0).
		Text("sys", "You are terse.", 300, 0).
		Text("ask", "/llm\nSummarize: {{.input}}", 0, 100).
		Text("out", "/output summaries/go.md", 0, 200).
		Edge("src", "ask", "input").
		Edge("sys", "ask", "system").
		Edge("ask", "out", "")
}

func TestExecute_WritesSummary(t *testing.T) {
	store := vault.NewInMemoryStore(map[string]string{"topics/go.md": "Go is a language."})
	m := testutil.NewScriptedModel("scripted").When("Summarize", "Go: simple.")

	mesh := New(func(o *Options) {
		o.Model = m
		o.Store = store
		o.Prices = map[string]engine.Price{"scripted": {PromptPerMillion: 1e6}}
	})
	g, err := mesh.Parse(bytes.NewReader(summaryCanvas().JSON()))
	require.NoError(t, err)

	s, err := mesh.Validate(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, graph.ReasonComplete, s.Reason)
	assert.Empty(t, m.Calls())

	s, err = mesh.Execute(context.Background(), g)
	require.NoError(t, err)
	require.Equal(t, graph.ReasonComplete, s.Reason, s.Message)

	written, err := store.Read(context.Background(), "summaries/go.md")
	require.NoError(t, err)
	assert.Equal(t, "Go: simple.", written)

	calls := m.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "You are terse.", calls[0].Contents[0].Text())
	assert.Equal(t, "Summarize: Go is a language.", calls[0].Contents[1].Text())

	// "You are terse." + "Summarize: Go is a language." = 3 + 5 words at $1 each.
	assert.InDelta(t, 8.0, s.TotalCost, 1e-9)
}

func TestValidate_ResetsGraph(t *testing.T) {
	mesh := New()
	g, err := mesh.Parse(bytes.NewReader(testutil.NewCanvasBuilder().
		Group("loop", "foreach", 0, 0, 300, 300).
		Text("body", "", 50, 50).
		Text("list", "", 500, 0).
		Edge("list", "loop", "").
		JSON()))
	require.NoError(t, err)

	s, err := mesh.Validate(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, graph.ReasonComplete, s.Reason)

	loop, _ := g.Group("loop")
	assert.Equal(t, graph.StatusPending, loop.Status())
}

func TestValidate_ReportsConflicts(t *testing.T) {
	mesh := New()
	g, err := mesh.Parse(bytes.NewReader(testutil.NewCanvasBuilder().
		Text("a", "x", 0, 0).
		Text("b", "y", 200, 0).
		Text("d", "/format\n{{.v}}", 100, 100).
		Edge("a", "d", "v").
		Edge("b", "d", "v").
		JSON()))
	require.NoError(t, err)

	s, err := mesh.Validate(context.Background(), g)
	require.ErrorIs(t, err, ErrValidationFailed)
	assert.Equal(t, graph.ReasonError, s.Reason)
	assert.Contains(t, s.Message, "conflicting alternatives")
}

func TestExecute_BudgetStopsSpending(t *testing.T) {
	m := testutil.NewScriptedModel("scripted")
	mesh := New(func(o *Options) {
		o.Model = m
		o.Prices = map[string]engine.Price{"scripted": {CompletionPerMillion: 1e6}}
		o.Budget = 1
	})
	g, err := mesh.Parse(bytes.NewReader(testutil.NewCanvasBuilder().
		Text("q", "hello there", 0, 0).
		Text("a", "/llm", 0, 100).
		Text("b", "/llm", 0, 200).
		Edge("q", "a", "").
		Edge("a", "b", "").
		JSON()))
	require.NoError(t, err)

	s, err := mesh.Execute(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, graph.ReasonError, s.Reason)
	assert.Contains(t, s.Message, "budget")
	assert.Len(t, m.Calls(), 1)
}

func TestExecute_Cancelled(t *testing.T) {
	mesh := New(func(o *Options) { o.Mock = true })
	g, err := mesh.Parse(bytes.NewReader(testutil.NewCanvasBuilder().Text("q", "hi", 0, 0).JSON()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s, err := mesh.Execute(ctx, g)
	require.NoError(t, err)
	assert.Contains(t, []graph.Reason{graph.ReasonComplete, graph.ReasonStopped}, s.Reason)
}

func TestFromConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "topic.md"), []byte("---\ntitle: Go\n---\nBody"), 0o600))
	canvasPath := filepath.Join(dir, "flow.canvas")
	require.NoError(t, os.WriteFile(canvasPath, testutil.NewCanvasBuilder().
		File("src", "topic.md", 0, 0).
		Text("fmt", "/format\n{{.title}}: {{.input}}", 0, 100).
		Edge("src", "fmt", "").
		JSON(), 0o600))

	cfg, err := config.Parse([]byte(`
log_level = "error"
provider "anthropic" {
  model = "claude-3-5-haiku-latest"
}
vault {
  root = "`+filepath.ToSlash(dir)+`"
}
`), "test.hcl")
	require.NoError(t, err)

	mesh, err := FromConfig(cfg)
	require.NoError(t, err)

	g, err := mesh.Load(canvasPath)
	require.NoError(t, err)

	s, err := mesh.Execute(context.Background(), g)
	require.NoError(t, err)
	require.Equal(t, graph.ReasonComplete, s.Reason, s.Message)

	n, _ := g.Node("fmt")
	assert.Equal(t, "Go: Body", n.Output().Text)
}

func TestFromConfig_MissingVault(t *testing.T) {
	cfg, err := config.Parse([]byte(`
vault {
  root = "`+filepath.ToSlash(filepath.Join(t.TempDir(), "absent"))+`"
}
`), "test.hcl")
	require.NoError(t, err)

	mesh, err := FromConfig(cfg)
	require.Error(t, err)
	assert.Nil(t, mesh)
	assert.Contains(t, err.Error(), "open vault")
}
