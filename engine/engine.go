package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/canvasmesh/core"
	"github.com/hupe1980/canvasmesh/graph"
	"github.com/hupe1980/canvasmesh/logging"
	"github.com/hupe1980/canvasmesh/model"
)

var (
	// ErrRunning is returned by Start and Reset while the run is in progress.
	ErrRunning = errors.New("engine: run in progress")
	// ErrNotStarted is returned by Wait before the first Start.
	ErrNotStarted = errors.New("engine: run not started")
	// ErrNoModel is returned when a completion is requested without a provider.
	ErrNoModel = errors.New("engine: no completion model configured")
	// ErrMockCompletion is returned when a completion reaches the provider
	// layer during a mock run.
	ErrMockCompletion = errors.New("engine: completion requested in mock run")
)

// Price is the cost of a model in currency units per million tokens.
type Price struct {
	PromptPerMillion     float64
	CompletionPerMillion float64
}

// Cost returns the price of the given token counts.
func (p Price) Cost(promptTokens, completionTokens int) float64 {
	return float64(promptTokens)*p.PromptPerMillion/1e6 +
		float64(completionTokens)*p.CompletionPerMillion/1e6
}

// Usage aggregates the completion calls of one provider/model pair.
type Usage struct {
	Calls            int     `json:"calls"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	Cost             float64 `json:"cost"`
}

// Stoppage describes why and how a run ended.
type Stoppage struct {
	Reason    graph.Reason     `json:"reason"`
	Message   string           `json:"message,omitempty"`
	Usage     map[string]Usage `json:"usage"`
	TotalCost float64          `json:"total_cost"`
	Duration  time.Duration    `json:"duration"`
}

// Options configures a Run.
type Options struct {
	// Model serves completion nodes. Required unless Mock is set.
	Model model.Model

	// Store backs reference and output nodes. Optional.
	Store core.ContentStore

	// Mock routes every unit of work through a no-cost substitute: no
	// provider calls and no store access.
	Mock bool

	// Prices maps a model name (or "provider/model") to its price.
	Prices map[string]Price

	// MaxCompletionCalls caps provider calls per run; 0 means unlimited.
	MaxCompletionCalls int

	// Logger defaults to a no-op logger.
	Logger logging.Logger

	// OnFinish is called once per run when it settles. Wait returns after
	// it has run.
	OnFinish func(Stoppage)

	// Callbacks are registered with the run's callback manager.
	Callbacks []Callback
}

// Run executes a graph against a completion provider and a content store
// and keeps a usage ledger.
type Run struct {
	id        string
	graph     *graph.Graph
	opts      Options
	logger    logging.Logger
	limiter   *core.ModelLimiter
	callbacks *CallbackManager

	mu        sync.Mutex
	usage     map[string]Usage
	running   bool
	done      chan struct{}
	result    *Stoppage
	startedAt time.Time
}

// New creates a run for g.
func New(g *graph.Graph, optFns ...func(o *Options)) *Run {
	opts := Options{
		Prices: map[string]Price{},
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	id := core.NewID()
	logger := opts.Logger
	if rl, ok := logger.(*logging.RunLogger); ok {
		logger = rl.WithRun(id).WithComponent("engine")
	}

	r := &Run{
		id:        id,
		graph:     g,
		opts:      opts,
		logger:    logger,
		limiter:   core.NewModelLimiter(opts.MaxCompletionCalls),
		callbacks: NewCallbackManager(),
		usage:     make(map[string]Usage),
	}
	for _, cb := range opts.Callbacks {
		r.callbacks.RegisterCallback(cb)
	}
	if r.callbacks.Has(CallbackOnTransition) || r.callbacks.Has(CallbackOnError) {
		g.SetObserver(r.observe)
	}
	return r
}

// ID returns the run identifier.
func (r *Run) ID() string { return r.id }

// Graph returns the graph driven by the run.
func (r *Run) Graph() *graph.Graph { return r.graph }

// Start begins execution and returns immediately. Use Wait or OnFinish to
// learn the outcome.
func (r *Run) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ErrRunning
	}
	r.running = true
	r.done = make(chan struct{})
	r.result = nil
	r.startedAt = time.Now()
	r.mu.Unlock()

	r.logger.Info("Run started", "run_id", r.id, "mock", r.opts.Mock, "objects", r.graph.Len())
	if err := r.graph.Start(ctx, r, r.finish); err != nil {
		r.mu.Lock()
		r.running = false
		close(r.done)
		r.done = nil
		r.mu.Unlock()
		return err
	}
	return nil
}

// Stop cancels the run. OnFinish reports the reason "stopped".
func (r *Run) Stop() {
	r.graph.Stop()
}

// Reset returns the graph to its hydrated state and clears the ledger.
func (r *Run) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return ErrRunning
	}
	if err := r.graph.Reset(); err != nil {
		return err
	}
	r.usage = make(map[string]Usage)
	r.limiter.Reset()
	r.result = nil
	return nil
}

// Wait blocks until the current run settles or ctx is done.
func (r *Run) Wait(ctx context.Context) (Stoppage, error) {
	r.mu.Lock()
	done, result := r.done, r.result
	r.mu.Unlock()

	if done == nil {
		if result != nil {
			return *result, nil
		}
		return Stoppage{}, ErrNotStarted
	}

	select {
	case <-done:
	case <-ctx.Done():
		return Stoppage{}, ctx.Err()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.result, nil
}

// Usage returns a snapshot of the ledger keyed by "provider/model".
func (r *Run) Usage() map[string]Usage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.usageLocked()
}

// TotalCost returns the summed cost of the ledger.
func (r *Run) TotalCost() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totalCostLocked()
}

func (r *Run) usageLocked() map[string]Usage {
	out := make(map[string]Usage, len(r.usage))
	for k, v := range r.usage {
		out[k] = v
	}
	return out
}

func (r *Run) totalCostLocked() float64 {
	keys := make([]string, 0, len(r.usage))
	for k := range r.usage {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	total := 0.0
	for _, k := range keys {
		total += r.usage[k].Cost
	}
	return total
}

func (r *Run) finish(out graph.Outcome) {
	r.mu.Lock()
	s := Stoppage{
		Reason:    out.Reason,
		Usage:     r.usageLocked(),
		TotalCost: r.totalCostLocked(),
		Duration:  time.Since(r.startedAt),
	}
	if out.Err != nil {
		s.Message = out.Err.Error()
	}
	r.result = &s
	done := r.done
	onFinish := r.opts.OnFinish
	r.mu.Unlock()

	if rl, ok := r.logger.(*logging.RunLogger); ok {
		rl.LogRunFinished(string(s.Reason), r.graph.Len(), s.Duration, out.Err)
	} else {
		r.logger.Info("Run finished", "reason", string(s.Reason), "message", s.Message, "total_cost", s.TotalCost)
	}

	_ = r.callbacks.ExecuteCallbacks(context.Background(), CallbackOnFinish, &CallbackContext{
		RunID:     r.id,
		Stoppage:  &s,
		TotalCost: s.TotalCost,
	})
	if onFinish != nil {
		onFinish(s)
	}

	// Wait returns only after every finish hook has run.
	r.mu.Lock()
	r.running = false
	if done != nil && r.done == done {
		close(done)
		r.done = nil
	}
	r.mu.Unlock()
}

// observe forwards status changes to the transition and error callbacks.
// It runs under the graph's timeline lock.
func (r *Run) observe(obj graph.Object, from, to graph.Status) {
	cbCtx := &CallbackContext{RunID: r.id, ObjectID: obj.ID(), From: from, To: to}
	_ = r.callbacks.ExecuteCallbacks(context.Background(), CallbackOnTransition, cbCtx)
	if to == graph.StatusError {
		cbCtx.Err = obj.Err()
		_ = r.callbacks.ExecuteCallbacks(context.Background(), CallbackOnError, cbCtx)
	}
}

// Mock implements graph.Env.
func (r *Run) Mock() bool { return r.opts.Mock }

// Store implements graph.Env.
func (r *Run) Store() core.ContentStore {
	if r.opts.Mock {
		return nil
	}
	return r.opts.Store
}

// Logger implements graph.Env.
func (r *Run) Logger() logging.Logger { return r.logger }

// Complete implements graph.Env. It enforces the call limit, runs the
// completion callbacks and records token usage in the ledger.
func (r *Run) Complete(ctx context.Context, node string, req model.Request) (model.Response, error) {
	if r.opts.Mock {
		return model.Response{}, ErrMockCompletion
	}
	if r.opts.Model == nil {
		return model.Response{}, ErrNoModel
	}
	if err := r.limiter.Increment(); err != nil {
		return model.Response{}, err
	}

	cbCtx := &CallbackContext{RunID: r.id, ObjectID: node, Request: &req, TotalCost: r.TotalCost()}
	if err := r.callbacks.ExecuteCallbacks(ctx, CallbackBeforeCompletion, cbCtx); err != nil {
		return model.Response{}, err
	}

	info := r.opts.Model.Info()
	start := time.Now()
	resp, err := model.Collect(ctx, r.opts.Model, req)
	dur := time.Since(start)

	tokens := 0
	if resp.Usage != nil {
		tokens = resp.Usage.TotalTokens
	}
	if rl, ok := r.logger.(*logging.RunLogger); ok {
		rl.WithObject(node).LogCompletion(resp.Model, tokens, dur, err == nil, err)
	} else if err != nil {
		r.logger.Warn("Completion call failed", "node", node, "error", err.Error())
	}

	if err != nil {
		return model.Response{}, fmt.Errorf("completion via %s: %w", info.Provider, err)
	}

	r.record(info.Provider, resp)

	cbCtx.Response = &resp
	cbCtx.TotalCost = r.TotalCost()
	if err := r.callbacks.ExecuteCallbacks(ctx, CallbackAfterCompletion, cbCtx); err != nil {
		return model.Response{}, err
	}
	return resp, nil
}

func (r *Run) record(provider string, resp model.Response) {
	key := provider + "/" + resp.Model

	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.usage[key]
	u.Calls++
	if resp.Usage != nil {
		u.PromptTokens += resp.Usage.PromptTokens
		u.CompletionTokens += resp.Usage.CompletionTokens
		u.Cost += r.price(key, resp.Model).Cost(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}
	r.usage[key] = u
}

func (r *Run) price(key, name string) Price {
	if p, ok := r.opts.Prices[key]; ok {
		return p
	}
	if p, ok := r.opts.Prices[name]; ok {
		return p
	}
	return Price{}
}
