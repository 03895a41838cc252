package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRejectionPropagatesTransitively(t *testing.T) {
	opA, opB, opC := textOp("a"), textOp("b"), textOp("c")
	g := build(t,
		NewNode("src", "", textOp("maybe"), at(0, 0)),
		NewNode("choose", "", ChooseOp{}, at(0, 100)),
		NewNode("A", "", opA, at(0, 200)),
		NewNode("B", "", opB, at(0, 300)),
		NewNode("C", "", opC, at(0, 400)),
		NewEdge("e0", "src", "choose", EdgeData, ""),
		NewEdge("yes", "choose", "A", EdgeData, "yes"),
		NewEdge("ab", "A", "B", EdgeData, ""),
		NewEdge("bc", "B", "C", EdgeData, ""),
	)

	out := runGraph(t, g, newTestEnv())
	assert.Equal(t, ReasonComplete, out.Reason)
	require.NoError(t, out.Err)

	assert.Equal(t, StatusComplete, statusOf(t, g, "choose"))
	for _, id := range []string{"yes", "A", "ab", "B", "bc", "C"} {
		assert.Equal(t, StatusRejected, statusOf(t, g, id), id)
	}
	assert.Zero(t, opA.calls.Load())
	assert.Zero(t, opB.calls.Load())
	assert.Zero(t, opC.calls.Load())
}

func TestManualDependenciesRejectChain(t *testing.T) {
	g := New()
	a := NewNode("A", "", textOp("a"), Rect{})
	b := NewNode("B", "", textOp("b"), Rect{})
	c := NewNode("C", "", textOp("c"), Rect{})
	gate := NewNode("gate", "", textOp("gate"), Rect{})
	require.NoError(t, a.AddDependency(Single("gate")))
	require.NoError(t, b.AddDependency(Single("A")))
	require.NoError(t, c.AddDependency(Single("B")))
	for _, o := range []Object{gate, a, b, c} {
		require.NoError(t, g.Add(o))
	}

	// reject the gate before anything runs by driving the transition directly
	g.mu.Lock()
	require.NoError(t, g.setupListeners())
	g.started = true
	g.log = newTestEnv().Logger()
	g.transition(gate, StatusRejected, nil)
	g.mu.Unlock()

	assert.Equal(t, StatusRejected, a.Status())
	assert.Equal(t, StatusRejected, b.Status())
	assert.Equal(t, StatusRejected, c.Status())
}

func TestAlternativeSetTakesTheFiredBranch(t *testing.T) {
	var rec recorder
	g := build(t,
		NewNode("src", "", textOp("left"), at(0, 0)),
		NewNode("choose", "", ChooseOp{}, at(0, 100)),
		NewNode("L", "", textOp("from-left"), at(0, 200)),
		NewNode("R", "", textOp("from-right"), at(200, 200)),
		NewNode("D", "", rec.op(func(in Inputs) string { return in.Values["branch"] }), at(0, 300)),
		NewEdge("e0", "src", "choose", EdgeData, ""),
		NewEdge("toL", "choose", "L", EdgeData, "left"),
		NewEdge("toR", "choose", "R", EdgeData, "right"),
		NewEdge("LD", "L", "D", EdgeData, "branch"),
		NewEdge("RD", "R", "D", EdgeData, "branch"),
	)

	d, ok := g.Node("D")
	require.True(t, ok)
	assert.Equal(t, []Dependency{AnyOf{"LD", "RD"}}, d.Dependencies())

	out := runGraph(t, g, newTestEnv())
	require.Equal(t, ReasonComplete, out.Reason)
	assert.Equal(t, StatusRejected, statusOf(t, g, "R"))
	assert.Equal(t, StatusRejected, statusOf(t, g, "RD"))
	assert.Equal(t, StatusComplete, statusOf(t, g, "D"))
	assert.Equal(t, "from-left", d.Output().Text)

	ready, err := g.AllDependenciesComplete("D")
	require.NoError(t, err)
	assert.True(t, ready)
}

func TestConflictingAlternativesAreFatal(t *testing.T) {
	g := build(t,
		NewNode("A", "", textOp("a"), at(0, 0)),
		NewNode("B", "", textOp("b"), at(200, 0)),
		NewNode("D", "", textOp("d"), at(0, 200)),
		NewEdge("AD", "A", "D", EdgeData, "x"),
		NewEdge("BD", "B", "D", EdgeData, "x"),
	)

	out := runGraph(t, g, newTestEnv())
	assert.Equal(t, ReasonError, out.Reason)
	var conflict *ConflictingAlternativesError
	require.ErrorAs(t, out.Err, &conflict)
	assert.Equal(t, "D", conflict.Object)
	assert.ElementsMatch(t, []string{"AD", "BD"}, conflict.Completed)
}

func TestAddDependencyRejectsDuplicates(t *testing.T) {
	n := NewNode("n", "", nil, Rect{})
	require.NoError(t, n.AddDependency(Single("a")))

	var dup *DuplicateAlternativeError
	require.ErrorAs(t, n.AddDependency(AnyOf{"b", "a"}), &dup)
	assert.Equal(t, "a", dup.ID)
	assert.ErrorAs(t, n.AddDependency(AnyOf{"c", "c"}), &dup)
	assert.ErrorIs(t, n.AddDependency(AnyOf{}), ErrInvalidGraph)

	require.NoError(t, n.AddDependency(AnyOf{"b", "c"}))
	assert.Len(t, n.Dependencies(), 2)
}

func TestUpstreamErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	failing := &funcOp{fn: func(context.Context, Inputs) (Result, error) { return Result{}, boom }}
	downstream := textOp("never")
	g := build(t,
		NewNode("A", "", failing, at(0, 0)),
		NewNode("B", "", downstream, at(0, 100)),
		NewNode("C", "", textOp("independent"), at(300, 0)),
		NewEdge("ab", "A", "B", EdgeData, ""),
	)

	out := runGraph(t, g, newTestEnv())
	assert.Equal(t, ReasonError, out.Reason)
	assert.ErrorIs(t, out.Err, boom)

	assert.Equal(t, StatusError, statusOf(t, g, "A"))
	assert.Equal(t, StatusError, statusOf(t, g, "ab"))
	assert.Equal(t, StatusComplete, statusOf(t, g, "C"))

	b, _ := g.Get("B")
	assert.Equal(t, StatusError, b.Status())
	var upstream *UpstreamError
	require.ErrorAs(t, b.Err(), &upstream)
	assert.Equal(t, "ab", upstream.Upstream)
	assert.ErrorIs(t, b.Err(), boom)
	assert.Zero(t, downstream.calls.Load())
}

func TestPanicBecomesError(t *testing.T) {
	g := build(t, NewNode("A", "", &funcOp{fn: func(context.Context, Inputs) (Result, error) {
		panic("kaboom")
	}}, at(0, 0)))

	out := runGraph(t, g, newTestEnv())
	assert.Equal(t, ReasonError, out.Reason)
	var p *PanicError
	require.ErrorAs(t, out.Err, &p)
	assert.Equal(t, "kaboom", p.Value)
}

func TestStopFreezesTimeline(t *testing.T) {
	started := make(chan struct{})
	blocking := &funcOp{fn: func(ctx context.Context, _ Inputs) (Result, error) {
		close(started)
		<-ctx.Done()
		return Result{}, ctx.Err()
	}}
	after := textOp("after")
	g := build(t,
		NewNode("A", "", blocking, at(0, 0)),
		NewNode("B", "", after, at(0, 100)),
		NewEdge("ab", "A", "B", EdgeData, ""),
	)

	calls := 0
	done := make(chan Outcome, 2)
	require.NoError(t, g.Start(context.Background(), newTestEnv(), func(o Outcome) {
		calls++
		done <- o
	}))
	<-started

	require.ErrorIs(t, g.Reset(), ErrRunning)

	g.Stop()
	g.Stop()
	out := wait(t, done)
	assert.Equal(t, ReasonStopped, out.Reason)
	assert.NoError(t, out.Err)

	assert.Equal(t, StatusExecuting, statusOf(t, g, "A"))
	assert.Equal(t, StatusPending, statusOf(t, g, "ab"))
	assert.Equal(t, StatusPending, statusOf(t, g, "B"))
	assert.Zero(t, after.calls.Load())
	assert.Equal(t, 1, calls)
}

func TestStalledGraphSettlesWithError(t *testing.T) {
	g := New()
	a := NewNode("A", "", textOp("a"), Rect{})
	b := NewNode("B", "", textOp("b"), Rect{})
	require.NoError(t, a.AddDependency(Single("B")))
	require.NoError(t, b.AddDependency(Single("A")))
	require.NoError(t, g.Add(a))
	require.NoError(t, g.Add(b))

	out := runGraph(t, g, newTestEnv())
	assert.Equal(t, ReasonError, out.Reason)
	var stalled *StalledError
	require.ErrorAs(t, out.Err, &stalled)
	assert.Equal(t, []string{"A", "B"}, stalled.Pending)
}

func TestStartValidation(t *testing.T) {
	g := New()
	n := NewNode("A", "", textOp("a"), Rect{})
	require.NoError(t, n.AddDependency(Single("ghost")))
	require.NoError(t, g.Add(n))
	err := g.Start(context.Background(), newTestEnv(), nil)
	assert.ErrorIs(t, err, ErrUnknownObject)

	g = build(t, NewNode("A", "", textOp("a"), at(0, 0)))
	assert.ErrorIs(t, g.Add(NewNode("A", "", nil, Rect{})), ErrDuplicateID)
	runGraph(t, g, newTestEnv())
	assert.ErrorIs(t, g.Start(context.Background(), newTestEnv(), nil), ErrAlreadyStarted)
	assert.ErrorIs(t, g.Add(NewNode("B", "", nil, Rect{})), ErrAlreadyStarted)
}

func TestObserverSeesEveryTransition(t *testing.T) {
	g := build(t,
		NewNode("A", "", textOp("a"), at(0, 0)),
		NewNode("B", "", textOp("b"), at(0, 100)),
		NewEdge("ab", "A", "B", EdgeData, ""),
	)
	var seen []string
	g.SetObserver(func(o Object, _, to Status) { seen = append(seen, o.ID()+":"+to.String()) })

	runGraph(t, g, newTestEnv())
	assert.Equal(t, []string{
		"A:Executing", "A:Complete",
		"ab:Executing", "ab:Complete",
		"B:Executing", "B:Complete",
	}, seen)

	seen = nil
	require.NoError(t, g.Reset())
	assert.ElementsMatch(t, []string{"A:Pending", "B:Pending", "ab:Pending"}, seen)
}

func TestDistributeRoutesItemsByPosition(t *testing.T) {
	g := build(t,
		NewNode("src", "", textOp(`["x", "y"]`), at(0, 0)),
		NewNode("dist", "", DistributeOp{}, at(0, 100)),
		NewNode("n1", "{{.input}}#{{.index}}", FormatOp{}, at(0, 200)),
		NewNode("n2", "", FormatOp{}, at(200, 200)),
		NewNode("n3", "", FormatOp{}, at(400, 200)),
		NewEdge("e0", "src", "dist", EdgeData, ""),
		NewEdge("d1", "dist", "n1", EdgeData, ""),
		NewEdge("d2", "dist", "n2", EdgeData, ""),
		NewEdge("d3", "dist", "n3", EdgeData, ""),
	)
	out := runGraph(t, g, newTestEnv())
	require.Equal(t, ReasonComplete, out.Reason)
	n1, _ := g.Node("n1")
	assert.Equal(t, "x#0", n1.Output().Text)
	assert.Equal(t, StatusComplete, statusOf(t, g, "n2"))
	assert.Equal(t, StatusRejected, statusOf(t, g, "d3"))
	assert.Equal(t, StatusRejected, statusOf(t, g, "n3"))
}

func TestCycleOutsideLoopIsRejected(t *testing.T) {
	g := New()
	for _, o := range []Object{
		NewNode("A", "", nil, at(0, 0)),
		NewNode("B", "", nil, at(0, 100)),
		NewEdge("ab", "A", "B", EdgeData, ""),
		NewEdge("ba", "B", "A", EdgeData, ""),
	} {
		require.NoError(t, g.Add(o))
	}
	var cycle *CycleError
	require.ErrorAs(t, g.Assemble(), &cycle)
	assert.Equal(t, "ba", cycle.Edge)

	g = New()
	for _, o := range []Object{
		NewGroup("G", "", LoopBasic, 0, box(0, 0, 500, 500)),
		NewNode("A", "", nil, at(10, 10)),
		NewEdge("aa", "A", "A", EdgeData, ""),
	} {
		require.NoError(t, g.Add(o))
	}
	assert.ErrorAs(t, g.Assemble(), &cycle)
}

func TestAssembleRejectsOverlappingGroups(t *testing.T) {
	g := New()
	require.NoError(t, g.Add(NewGroup("G1", "", LoopBasic, 0, box(0, 0, 100, 100))))
	require.NoError(t, g.Add(NewGroup("G2", "", LoopBasic, 0, box(50, 50, 100, 100))))
	var overlap *OverlapError
	require.ErrorAs(t, g.Assemble(), &overlap)
	assert.Equal(t, "G1", overlap.A)
	assert.Equal(t, "G2", overlap.B)
}

func TestAssembleRejectsInvalidRepeat(t *testing.T) {
	g := New()
	require.NoError(t, g.Add(NewGroup("G", "repeat 0", LoopRepeat, 0, box(0, 0, 100, 100))))
	assert.ErrorIs(t, g.Assemble(), ErrInvalidGraph)
}

func TestCompletionNodeUsesProvider(t *testing.T) {
	env := newTestEnv()
	env.model.AddResponse("Hello", "Hi there")
	g := build(t,
		NewNode("sys", "be terse", InputOp{}, at(0, 0)),
		NewNode("llm", "Hello", CompletionOp{}, at(0, 100)),
		NewEdge("s", "sys", "llm", EdgeSystem, "system"),
	)

	out := runGraph(t, g, env)
	require.Equal(t, ReasonComplete, out.Reason)

	llm, _ := g.Node("llm")
	assert.Equal(t, "Hi there", llm.Output().Text)
	require.Len(t, llm.Output().Transcript, 3)
	assert.Equal(t, "be terse", llm.Output().Transcript[0].Text())

	calls := env.model.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "Hello", calls[0].Contents[len(calls[0].Contents)-1].Text())
}

func TestMockRunNeverCallsProvider(t *testing.T) {
	env := newTestEnv()
	env.mock = true
	g := build(t,
		NewNode("in", "topic", InputOp{}, at(0, 0)),
		NewNode("llm", "Write about {{.subject}}", CompletionOp{Model: "big"}, at(0, 100)),
		NewNode("choose", "", ChooseOp{}, at(0, 200)),
		NewNode("yes", "", FormatOp{}, at(0, 300)),
		NewNode("no", "", FormatOp{}, at(200, 300)),
		NewEdge("e1", "in", "llm", EdgeData, "subject"),
		NewEdge("e2", "llm", "choose", EdgeData, ""),
		NewEdge("e3", "choose", "yes", EdgeData, "yes"),
		NewEdge("e4", "choose", "no", EdgeData, "no"),
	)

	out := runGraph(t, g, env)
	require.Equal(t, ReasonComplete, out.Reason)
	assert.Empty(t, env.model.Calls())

	llm, _ := g.Node("llm")
	assert.Equal(t, "Write about topic", llm.Output().Text)
	assert.Equal(t, StatusComplete, statusOf(t, g, "yes"))
	assert.Equal(t, StatusRejected, statusOf(t, g, "no"))
}

func TestConversationFlowsAlongDataEdges(t *testing.T) {
	env := newTestEnv()
	env.model.AddResponse("first", "one")
	env.model.AddResponse("second", "two")
	g := build(t,
		NewNode("a", "first", CompletionOp{}, at(0, 0)),
		NewNode("b", "second{{/* prev */}}", CompletionOp{}, at(0, 100)),
		NewNode("out", "", OutputOp{}, at(0, 200)),
		NewEdge("ab", "a", "b", EdgeData, "prev"),
		NewEdge("log", "b", "out", EdgeLog, "log"),
	)
	out := runGraph(t, g, env)
	require.Equal(t, ReasonComplete, out.Reason)

	calls := env.model.Calls()
	require.Len(t, calls, 2)
	assert.Len(t, calls[1].Contents, 3)

	o, _ := g.Node("out")
	assert.Contains(t, o.Output().Text, "assistant: one")
	assert.Contains(t, o.Output().Text, "assistant: two")
}
