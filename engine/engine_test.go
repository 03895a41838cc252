package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/canvasmesh/core"
	"github.com/hupe1980/canvasmesh/graph"
	"github.com/hupe1980/canvasmesh/model"
	"github.com/hupe1980/canvasmesh/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(x, y float64) graph.Rect { return graph.Rect{X: x, Y: y, Width: 100, Height: 50} }

func assemble(t *testing.T, objs ...graph.Object) *graph.Graph {
	t.Helper()
	g := graph.New()
	for _, o := range objs {
		require.NoError(t, g.Add(o))
	}
	require.NoError(t, g.Assemble())
	return g
}

func startAndWait(t *testing.T, r *Run) Stoppage {
	t.Helper()
	require.NoError(t, r.Start(context.Background()))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := r.Wait(ctx)
	require.NoError(t, err)
	return s
}

func askGraph(t *testing.T) *graph.Graph {
	return assemble(t,
		graph.NewNode("ask", "hello world", graph.CompletionOp{}, at(0, 0)),
		graph.NewNode("out", "", graph.OutputOp{Path: "answers/result"}, at(0, 100)),
		graph.NewEdge("e1", "ask", "out", graph.EdgeData, ""),
	)
}

func TestRun_LedgerAndCost(t *testing.T) {
	m := model.NewMockModel("m1", "mock")
	store := vault.NewInMemoryStore(nil)

	var finished []Stoppage
	r := New(askGraph(t), func(o *Options) {
		o.Model = m
		o.Store = store
		o.Prices = map[string]Price{"m1": {PromptPerMillion: 1e6, CompletionPerMillion: 2e6}}
		o.OnFinish = func(s Stoppage) { finished = append(finished, s) }
	})

	s := startAndWait(t, r)
	assert.Equal(t, graph.ReasonComplete, s.Reason)
	assert.Empty(t, s.Message)

	u, ok := s.Usage["mock/m1"]
	require.True(t, ok)
	assert.Equal(t, 1, u.Calls)
	assert.Equal(t, 2, u.PromptTokens)
	assert.Equal(t, 5, u.CompletionTokens)
	assert.InDelta(t, 12.0, u.Cost, 1e-9)
	assert.InDelta(t, 12.0, s.TotalCost, 1e-9)
	assert.InDelta(t, 12.0, r.TotalCost(), 1e-9)
	require.Len(t, finished, 1)

	written, err := store.Read(context.Background(), "answers/result")
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: hello world", written)
}

func TestRun_MockNeverTouchesProviderOrStore(t *testing.T) {
	m := model.NewMockModel("m1", "mock")
	store := vault.NewInMemoryStore(nil)

	r := New(askGraph(t), func(o *Options) {
		o.Model = m
		o.Store = store
		o.Mock = true
	})

	s := startAndWait(t, r)
	assert.Equal(t, graph.ReasonComplete, s.Reason)
	assert.Empty(t, m.Calls())
	assert.Empty(t, s.Usage)

	exists, err := store.Exists(context.Background(), "answers/result")
	require.NoError(t, err)
	assert.False(t, exists)

	out, ok := r.Graph().Node("out")
	require.True(t, ok)
	assert.Equal(t, "hello world", out.Output().Text)
}

func TestRun_CompletionLimit(t *testing.T) {
	m := model.NewMockModel("m1", "mock")
	g := assemble(t,
		graph.NewNode("a", "first", graph.CompletionOp{}, at(0, 0)),
		graph.NewNode("b", "second", graph.CompletionOp{}, at(200, 0)),
	)
	r := New(g, func(o *Options) {
		o.Model = m
		o.MaxCompletionCalls = 1
	})

	s := startAndWait(t, r)
	assert.Equal(t, graph.ReasonError, s.Reason)
	assert.Contains(t, s.Message, "exceeded max completion calls")
	assert.Equal(t, 1, s.Usage["mock/m1"].Calls)

	var limitErr *core.LimitError
	failed := 0
	for _, id := range []string{"a", "b"} {
		n, _ := g.Node(id)
		if n.Status() == graph.StatusError {
			failed++
			assert.True(t, errors.As(n.Err(), &limitErr))
		}
	}
	assert.Equal(t, 1, failed)
}

func TestRun_NoModel(t *testing.T) {
	r := New(askGraph(t))
	s := startAndWait(t, r)
	assert.Equal(t, graph.ReasonError, s.Reason)
	assert.Contains(t, s.Message, ErrNoModel.Error())
}

// blockingModel holds every generation until the context is cancelled.
type blockingModel struct {
	called chan struct{}
	once   sync.Once
}

func (m *blockingModel) Generate(ctx context.Context, _ model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response)
	errCh := make(chan error, 1)
	m.once.Do(func() { close(m.called) })
	go func() {
		defer close(out)
		defer close(errCh)
		<-ctx.Done()
		errCh <- ctx.Err()
	}()
	return out, errCh
}

func (m *blockingModel) Info() model.Info { return model.Info{Name: "slow", Provider: "test"} }

func TestRun_StopMidRun(t *testing.T) {
	m := &blockingModel{called: make(chan struct{})}
	r := New(askGraph(t), func(o *Options) { o.Model = m })

	require.NoError(t, r.Start(context.Background()))
	assert.ErrorIs(t, r.Start(context.Background()), ErrRunning)
	assert.ErrorIs(t, r.Reset(), ErrRunning)

	select {
	case <-m.called:
	case <-time.After(5 * time.Second):
		t.Fatal("provider was never called")
	}
	r.Stop()

	s, err := r.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, graph.ReasonStopped, s.Reason)

	out, _ := r.Graph().Node("out")
	assert.Equal(t, graph.StatusPending, out.Status())
}

func TestRun_WaitBeforeStart(t *testing.T) {
	r := New(askGraph(t))
	_, err := r.Wait(context.Background())
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestRun_ResetAndRestart(t *testing.T) {
	m := model.NewMockModel("m1", "mock")
	g := assemble(t,
		graph.NewGroup("L", "repeat 3", graph.LoopRepeat, 3, graph.Rect{X: -50, Y: -50, Width: 400, Height: 300}),
		graph.NewNode("A", "step", graph.CompletionOp{}, at(0, 0)),
		graph.NewNode("B", "", graph.FormatOp{}, at(0, 100)),
		graph.NewNode("C", "", graph.OutputOp{}, at(0, 400)),
		graph.NewEdge("ab", "A", "B", graph.EdgeData, ""),
		graph.NewEdge("ba", "B", "A", graph.EdgeData, ""),
		graph.NewEdge("bc", "B", "C", graph.EdgeData, ""),
	)
	r := New(g, func(o *Options) { o.Model = m })

	first := startAndWait(t, r)
	require.Equal(t, graph.ReasonComplete, first.Reason, first.Message)
	assert.Equal(t, 3, first.Usage["mock/m1"].Calls)

	require.NoError(t, r.Reset())
	assert.Empty(t, r.Usage())
	_, ok := g.CloneOf("A", "L", 1)
	assert.False(t, ok)

	second := startAndWait(t, r)
	require.Equal(t, graph.ReasonComplete, second.Reason, second.Message)
	assert.Equal(t, 3, second.Usage["mock/m1"].Calls)
	assert.Len(t, m.Calls(), 6)
}

func TestRun_ReferenceReadsFrontMatter(t *testing.T) {
	store := vault.NewInMemoryStore(map[string]string{
		"people/ada.md": "---\nname: Ada\n---\nWrote the first program.",
	})
	g := assemble(t,
		graph.NewNode("ref", "", graph.ReferenceOp{Path: "people/ada.md"}, at(0, 0)),
		graph.NewNode("fmt", "{{.name}}: {{.input}}", graph.FormatOp{}, at(0, 100)),
		graph.NewEdge("e1", "ref", "fmt", graph.EdgeData, ""),
	)
	r := New(g, func(o *Options) { o.Store = store })

	s := startAndWait(t, r)
	require.Equal(t, graph.ReasonComplete, s.Reason, s.Message)
	n, _ := g.Node("fmt")
	assert.Equal(t, "Ada: Wrote the first program.", n.Output().Text)
}

func TestRun_Callbacks(t *testing.T) {
	m := model.NewMockModel("m1", "mock")

	var (
		mu          sync.Mutex
		transitions []string
		finished    []string
		requests    int
	)
	r := New(askGraph(t), func(o *Options) {
		o.Model = m
		o.Store = vault.NewInMemoryStore(nil)
		o.Callbacks = []Callback{
			NewLoggingCallback(CallbackOnTransition, func(msg string) {
				mu.Lock()
				transitions = append(transitions, msg)
				mu.Unlock()
			}),
			NewLoggingCallback(CallbackOnFinish, func(msg string) {
				mu.Lock()
				finished = append(finished, msg)
				mu.Unlock()
			}),
			NewFunctionCallback(CallbackBeforeCompletion, func(_ context.Context, c *CallbackContext) error {
				mu.Lock()
				defer mu.Unlock()
				requests++
				assert.Equal(t, "ask", c.ObjectID)
				assert.NotNil(t, c.Request)
				return nil
			}),
		}
	})

	s := startAndWait(t, r)
	require.Equal(t, graph.ReasonComplete, s.Reason)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, requests)
	assert.Contains(t, transitions, "[on_transition] ask: Pending -> Executing")
	assert.Contains(t, transitions, "[on_transition] out: Executing -> Complete")
	require.Len(t, finished, 1)
	assert.True(t, strings.Contains(finished[0], "complete"))
}

func TestRun_BudgetCallback(t *testing.T) {
	m := model.NewMockModel("m1", "mock")
	g := assemble(t,
		graph.NewNode("a", "one", graph.CompletionOp{}, at(0, 0)),
		graph.NewNode("b", "", graph.CompletionOp{}, at(0, 100)),
		graph.NewEdge("ab", "a", "b", graph.EdgeData, ""),
	)
	r := New(g, func(o *Options) {
		o.Model = m
		o.Prices = map[string]Price{"mock/m1": {PromptPerMillion: 1e6}}
		o.Callbacks = []Callback{NewBudgetCallback(1)}
	})

	s := startAndWait(t, r)
	assert.Equal(t, graph.ReasonError, s.Reason)

	b, _ := g.Node("b")
	var budgetErr *BudgetExceededError
	require.True(t, errors.As(b.Err(), &budgetErr))
	assert.InDelta(t, 1.0, budgetErr.Spent, 1e-9)
	assert.Len(t, m.Calls(), 1)
}

func TestRun_WaitObservesFinishHooks(t *testing.T) {
	var (
		hookDone  bool
		callbacks int
	)
	r := New(askGraph(t), func(o *Options) {
		o.Model = model.NewMockModel("m1", "mock")
		o.Store = vault.NewInMemoryStore(nil)
		o.Callbacks = []Callback{
			NewFunctionCallback(CallbackOnFinish, func(context.Context, *CallbackContext) error {
				time.Sleep(20 * time.Millisecond)
				callbacks++
				return nil
			}),
		}
		o.OnFinish = func(Stoppage) {
			time.Sleep(20 * time.Millisecond)
			hookDone = true
		}
	})

	s := startAndWait(t, r)
	require.Equal(t, graph.ReasonComplete, s.Reason, s.Message)
	assert.True(t, hookDone)
	assert.Equal(t, 1, callbacks)

	require.NoError(t, r.Reset())
}
