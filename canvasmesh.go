// Package canvasmesh provides a high-level façade over canvas hydration and
// the run engine. Most applications interact with this package by:
//  1. Creating a CanvasMesh via New() or FromConfig()
//  2. Loading a canvas file into a graph (Load)
//  3. Dry running it (Validate) and executing it (Execute)
//
// Validate performs a mock run that never reaches the completion provider
// or the content store, so structural faults surface before anything is
// billed. Execute performs the real run and reports its Stoppage.
package canvasmesh

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/canvasmesh/canvas"
	"github.com/hupe1980/canvasmesh/config"
	"github.com/hupe1980/canvasmesh/core"
	"github.com/hupe1980/canvasmesh/engine"
	"github.com/hupe1980/canvasmesh/graph"
	"github.com/hupe1980/canvasmesh/logging"
	"github.com/hupe1980/canvasmesh/model"
	"github.com/hupe1980/canvasmesh/model/anthropic"
	"github.com/hupe1980/canvasmesh/model/openai"
	"github.com/hupe1980/canvasmesh/vault"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
)

// ErrValidationFailed is returned by Validate when the mock run does not
// complete.
var ErrValidationFailed = errors.New("canvasmesh: validation failed")

// Options configures the CanvasMesh instance.
type Options struct {
	// Model serves completion nodes. Required for Execute unless Mock is set.
	Model model.Model

	// Store backs reference and output nodes. Defaults to an empty
	// in-memory vault.
	Store core.ContentStore

	// Mock turns Execute into a dry run.
	Mock bool

	// Prices maps model names to per-million-token prices for the ledger.
	Prices map[string]engine.Price

	// MaxCompletionCalls caps provider calls per run; 0 means unlimited.
	MaxCompletionCalls int

	// Budget refuses further provider calls once the run has spent it;
	// 0 disables the check.
	Budget float64

	// Callbacks are registered on every run.
	Callbacks []engine.Callback

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// CanvasMesh loads canvases and runs them with a shared configuration.
type CanvasMesh struct {
	opts Options
}

// New creates a new CanvasMesh instance with optional overrides.
func New(optFns ...func(o *Options)) *CanvasMesh {
	opts := Options{
		Store:  vault.NewInMemoryStore(nil),
		Prices: map[string]engine.Price{},
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &CanvasMesh{opts: opts}
}

// FromConfig builds a CanvasMesh from a decoded configuration file. The
// provider block selects the completion adapter and the vault block a
// file-system store.
func FromConfig(cfg *config.Config, optFns ...func(o *Options)) (*CanvasMesh, error) {
	m, err := providerModel(cfg)
	if err != nil {
		return nil, err
	}

	var store core.ContentStore
	if cfg.Vault != nil {
		vs, err := vault.NewFileStore(cfg.Vault.Root)
		if err != nil {
			return nil, err
		}
		store = vs
	}

	fns := []func(o *Options){func(o *Options) {
		o.Model = m
		o.Mock = cfg.Mock
		o.Prices = cfg.PriceTable()
		o.MaxCompletionCalls = cfg.MaxCompletionCalls
		o.Budget = cfg.Budget
		o.Logger = cfg.Logger()
		if store != nil {
			o.Store = store
		}
	}}

	return New(append(fns, optFns...)...), nil
}

func providerModel(cfg *config.Config) (model.Model, error) {
	p, ok := cfg.Provider()
	if !ok {
		return nil, nil
	}

	switch p.Name {
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			if p.Model != "" {
				o.Model = p.Model
			}
			o.APIKey = p.APIKey
			if p.Temperature != nil {
				o.Temperature = *p.Temperature
			}
			if p.MaxTokens > 0 {
				o.MaxCompletionTokens = p.MaxTokens
			}
		}), nil
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			if p.Model != "" {
				o.Model = anthropicsdk.Model(p.Model)
			}
			o.APIKey = p.APIKey
			if p.Temperature != nil {
				o.Temperature = *p.Temperature
			}
			if p.MaxTokens > 0 {
				o.MaxTokens = p.MaxTokens
			}
		}), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", config.ErrInvalidConfig, p.Name)
	}
}

// Load parses and hydrates the canvas file at path.
func (m *CanvasMesh) Load(path string) (*graph.Graph, error) {
	doc, err := canvas.ParseFile(path)
	if err != nil {
		return nil, err
	}
	g, err := canvas.Hydrate(doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.opts.Logger.Debug("Canvas loaded", "path", path, "objects", g.Len())
	return g, nil
}

// Parse hydrates a canvas document read from r.
func (m *CanvasMesh) Parse(r io.Reader) (*graph.Graph, error) {
	doc, err := canvas.Parse(r)
	if err != nil {
		return nil, err
	}
	return canvas.Hydrate(doc)
}

// NewRun prepares a run of g with the instance configuration.
func (m *CanvasMesh) NewRun(g *graph.Graph, mock bool) *engine.Run {
	return engine.New(g, func(o *engine.Options) {
		o.Model = m.opts.Model
		o.Store = m.opts.Store
		o.Mock = mock
		o.Prices = m.opts.Prices
		o.MaxCompletionCalls = m.opts.MaxCompletionCalls
		o.Logger = m.opts.Logger
		o.Callbacks = append([]engine.Callback(nil), m.opts.Callbacks...)
		if m.opts.Budget > 0 {
			o.Callbacks = append(o.Callbacks, engine.NewBudgetCallback(m.opts.Budget))
		}
	})
}

// Validate dry runs g and resets it afterwards. A run that does not
// complete yields ErrValidationFailed.
func (m *CanvasMesh) Validate(ctx context.Context, g *graph.Graph) (engine.Stoppage, error) {
	r := m.NewRun(g, true)
	s, err := execute(ctx, r)
	if err != nil {
		return s, err
	}
	if err := r.Reset(); err != nil {
		return s, err
	}
	if s.Reason != graph.ReasonComplete {
		return s, fmt.Errorf("%w: %s: %s", ErrValidationFailed, s.Reason, s.Message)
	}
	return s, nil
}

// Execute runs g and blocks until it settles. Cancelling ctx stops the run
// and reports the "stopped" stoppage.
func (m *CanvasMesh) Execute(ctx context.Context, g *graph.Graph) (engine.Stoppage, error) {
	return execute(ctx, m.NewRun(g, m.opts.Mock))
}

func execute(ctx context.Context, r *engine.Run) (engine.Stoppage, error) {
	if err := r.Start(ctx); err != nil {
		return engine.Stoppage{}, err
	}
	s, err := r.Wait(ctx)
	if err == nil {
		return s, nil
	}
	r.Stop()
	return r.Wait(context.Background())
}
