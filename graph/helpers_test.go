package graph

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hupe1980/canvasmesh/core"
	"github.com/hupe1980/canvasmesh/logging"
	"github.com/hupe1980/canvasmesh/model"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	mock  bool
	model *model.MockModel
	store core.ContentStore
}

func newTestEnv() *testEnv {
	return &testEnv{model: model.NewMockModel("mock-model", "mock")}
}

func (e *testEnv) Mock() bool { return e.mock }

func (e *testEnv) Complete(ctx context.Context, _ string, req model.Request) (model.Response, error) {
	return model.Collect(ctx, e.model, req)
}

func (e *testEnv) Store() core.ContentStore { return e.store }
func (e *testEnv) Logger() logging.Logger   { return logging.NoOpLogger{} }

// funcOp lets tests script a node's unit of work.
type funcOp struct {
	calls atomic.Int32
	fn    func(ctx context.Context, in Inputs) (Result, error)
}

func (o *funcOp) Name() string { return "func" }

func (o *funcOp) run(ctx context.Context, _ Env, in Inputs) (Result, error) {
	o.calls.Add(1)
	return o.fn(ctx, in)
}

func textOp(text string) *funcOp {
	return &funcOp{fn: func(context.Context, Inputs) (Result, error) {
		return Result{Output: Payload{Text: text}}, nil
	}}
}

// idOp emits the id of the node that ran it.
func idOp() *funcOp {
	return &funcOp{fn: func(_ context.Context, in Inputs) (Result, error) {
		return Result{Output: Payload{Text: in.NodeID}}, nil
	}}
}

// recorder collects the inputs every node received.
type recorder struct {
	mu     sync.Mutex
	inputs map[string]Inputs
}

func (r *recorder) op(out func(in Inputs) string) *funcOp {
	return &funcOp{fn: func(_ context.Context, in Inputs) (Result, error) {
		r.mu.Lock()
		if r.inputs == nil {
			r.inputs = make(map[string]Inputs)
		}
		r.inputs[in.NodeID] = in
		r.mu.Unlock()
		return Result{Output: Payload{Text: out(in)}}, nil
	}}
}

func (r *recorder) get(id string) (Inputs, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.inputs[id]
	return in, ok
}

// at returns a node sized rectangle at x, y.
func at(x, y float64) Rect { return Rect{X: x, Y: y, Width: 100, Height: 50} }

func box(x, y, w, h float64) Rect { return Rect{X: x, Y: y, Width: w, Height: h} }

func build(t *testing.T, objs ...Object) *Graph {
	t.Helper()
	g := New()
	for _, o := range objs {
		require.NoError(t, g.Add(o))
	}
	require.NoError(t, g.Assemble())
	return g
}

func start(t *testing.T, g *Graph, env Env) <-chan Outcome {
	t.Helper()
	done := make(chan Outcome, 1)
	require.NoError(t, g.Start(context.Background(), env, func(o Outcome) { done <- o }))
	return done
}

func wait(t *testing.T, done <-chan Outcome) Outcome {
	t.Helper()
	select {
	case o := <-done:
		return o
	case <-time.After(5 * time.Second):
		t.Fatal("graph did not settle")
		return Outcome{}
	}
}

func runGraph(t *testing.T, g *Graph, env Env) Outcome {
	t.Helper()
	return wait(t, start(t, g, env))
}

func statusOf(t *testing.T, g *Graph, id string) Status {
	t.Helper()
	o, ok := g.Get(id)
	require.True(t, ok, "object %s not found", id)
	return o.Status()
}
