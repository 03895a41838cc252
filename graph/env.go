package graph

import (
	"context"

	"github.com/hupe1980/canvasmesh/core"
	"github.com/hupe1980/canvasmesh/logging"
	"github.com/hupe1980/canvasmesh/model"
)

// Env is what a running graph needs from its host. engine.Run implements it.
type Env interface {
	// Mock reports a dry run: no completion provider calls, no store access.
	Mock() bool
	// Complete sends one completion request on behalf of node.
	Complete(ctx context.Context, node string, req model.Request) (model.Response, error)
	// Store returns the content store, or nil when none is configured.
	Store() core.ContentStore
	Logger() logging.Logger
}
