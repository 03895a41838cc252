package engine

import (
	"context"
	"fmt"

	"github.com/hupe1980/canvasmesh/graph"
	"github.com/hupe1980/canvasmesh/model"
)

// CallbackType defines the lifecycle points of a run where callbacks can be
// executed.
//
// Available callback types:
//   - BeforeCompletion/AfterCompletion: around provider calls
//   - OnTransition: every object status change
//   - OnError: objects entering the Error status
//   - OnFinish: run settlement
//
// Completion callbacks can fail the calling node by returning an error.
// Errors from the other callbacks are ignored.
type CallbackType string

const (
	// CallbackBeforeCompletion is triggered before a provider call.
	// Use for budget checks or request inspection.
	CallbackBeforeCompletion CallbackType = "before_completion"

	// CallbackAfterCompletion is triggered after a successful provider call.
	CallbackAfterCompletion CallbackType = "after_completion"

	// CallbackOnTransition is triggered for every status change. It runs
	// under the graph's timeline lock and must not block or call back into
	// the graph.
	CallbackOnTransition CallbackType = "on_transition"

	// CallbackOnError is triggered when an object enters the Error status.
	CallbackOnError CallbackType = "on_error"

	// CallbackOnFinish is triggered once the run settles.
	CallbackOnFinish CallbackType = "on_finish"
)

// CallbackContext carries the information available at a callback point.
// Fields that do not apply to the callback type are zero.
type CallbackContext struct {
	RunID    string
	ObjectID string

	Request  *model.Request
	Response *model.Response

	From graph.Status
	To   graph.Status
	Err  error

	Stoppage  *Stoppage
	TotalCost float64

	// Metadata provides extensible storage for custom callback data.
	Metadata map[string]any
}

// Callback defines the interface for run lifecycle hooks.
type Callback interface {
	// Type returns the callback type this implementation handles.
	Type() CallbackType

	// Execute performs the callback logic with the provided context.
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a callback implementation.
//
// Example:
//
//	cb := NewFunctionCallback(CallbackOnError, func(ctx context.Context, c *CallbackContext) error {
//	    log.Printf("object %s failed: %v", c.ObjectID, c.Err)
//	    return nil
//	})
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a new function-based callback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute calls the wrapped function with the provided context.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager keeps the callbacks of a run by type.
//
// Callbacks are executed in registration order, and any callback returning
// an error stops the remaining callbacks of that type. Registration is not
// synchronized; register everything before the run starts.
type CallbackManager struct {
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty callback manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// RegisterCallback adds a callback for its type.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// Has reports whether any callback is registered for callbackType.
func (cm *CallbackManager) Has(callbackType CallbackType) bool {
	return len(cm.callbacks[callbackType]) > 0
}

// ExecuteCallbacks executes all registered callbacks for the specified type
// and returns the first error.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) error {
	callbacks, exists := cm.callbacks[callbackType]
	if !exists {
		return nil // No callbacks registered for this type
	}

	for _, callback := range callbacks {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			return err
		}
	}

	return nil
}

// LoggingCallback forwards lifecycle events to a logging function.
//
// Example:
//
//	callback := NewLoggingCallback(CallbackOnTransition, func(message string) {
//	    log.Printf("[RUN] %s", message)
//	})
type LoggingCallback struct {
	callbackType CallbackType
	logger       func(message string)
}

// NewLoggingCallback creates a new logging callback.
func NewLoggingCallback(callbackType CallbackType, logger func(message string)) *LoggingCallback {
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logger,
	}
}

// Type returns the callback type this logger handles.
func (c *LoggingCallback) Type() CallbackType {
	return c.callbackType
}

// Execute logs the event with the object and status information.
func (c *LoggingCallback) Execute(_ context.Context, callbackCtx *CallbackContext) error {
	if c.logger == nil {
		return nil
	}
	switch c.callbackType {
	case CallbackOnTransition, CallbackOnError:
		c.logger(fmt.Sprintf("[%s] %s: %s -> %s", c.callbackType, callbackCtx.ObjectID, callbackCtx.From, callbackCtx.To))
	case CallbackOnFinish:
		if s := callbackCtx.Stoppage; s != nil {
			c.logger(fmt.Sprintf("[%s] run %s: %s (cost %.6f)", c.callbackType, callbackCtx.RunID, s.Reason, s.TotalCost))
		}
	default:
		c.logger(fmt.Sprintf("[%s] node %s", c.callbackType, callbackCtx.ObjectID))
	}
	return nil
}

// BudgetExceededError is returned by a BudgetCallback once the run has
// spent its budget.
type BudgetExceededError struct {
	Budget float64
	Spent  float64
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("budget of %.6f exceeded: %.6f spent", e.Budget, e.Spent)
}

// BudgetCallback refuses provider calls once the ledger's total cost has
// reached Budget.
type BudgetCallback struct {
	Budget float64
}

// NewBudgetCallback creates a budget guard for completion calls.
func NewBudgetCallback(budget float64) *BudgetCallback {
	return &BudgetCallback{Budget: budget}
}

// Type returns CallbackBeforeCompletion.
func (c *BudgetCallback) Type() CallbackType {
	return CallbackBeforeCompletion
}

// Execute fails when the spent cost has reached the budget.
func (c *BudgetCallback) Execute(_ context.Context, callbackCtx *CallbackContext) error {
	if callbackCtx.TotalCost >= c.Budget {
		return &BudgetExceededError{Budget: c.Budget, Spent: callbackCtx.TotalCost}
	}
	return nil
}
