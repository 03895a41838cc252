// Package engine drives one execution of a canvas graph.
//
// A Run is the host environment the graph kernel talks to: it owns the
// completion provider, the content store and the logger, and it records the
// token usage and cost of every provider call in a ledger keyed by
// "provider/model".
//
// # Lifecycle
//
//	store, err := vault.NewFileStore("notes")
//	if err != nil {
//	    return err
//	}
//	run := engine.New(g, func(o *engine.Options) {
//	    o.Model = openai.NewModel()
//	    o.Store = store
//	    o.Prices = map[string]engine.Price{"gpt-4o-mini": {PromptPerMillion: 0.15, CompletionPerMillion: 0.6}}
//	})
//	if err := run.Start(ctx); err != nil {
//	    return err
//	}
//	stoppage, err := run.Wait(ctx)
//
// Start returns immediately. The run settles once with a Stoppage whose
// reason is "complete", "error" or "stopped". Reset returns the graph to its
// hydrated state so the same run can start again.
//
// # Mock runs
//
// With Options.Mock set, completion nodes echo their prompt, reference
// nodes emit their path and output nodes do not write. Nothing reaches the
// provider or the store, which makes mock runs free and deterministic.
//
// # Callbacks
//
// Callbacks hook into completion calls, status transitions and settlement.
// A before-completion callback that returns an error fails the calling node;
// BudgetCallback uses this to stop spending once a cost ceiling is reached.
package engine
