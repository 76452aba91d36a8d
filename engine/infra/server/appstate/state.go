package appstate

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/texlate/texlate/engine/job"
	"github.com/texlate/texlate/engine/slot"
	"github.com/texlate/texlate/engine/source"
)

type contextKey string

const stateKey contextKey = "app_state"

const defaultHeartbeat = 15 * time.Second

var ErrStateNotFound = errors.New("application state not found in context")

// HealthChecker reports whether a backing store is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// State carries the services HTTP handlers need.
type State struct {
	Runner    *job.Runner
	Slots     *slot.Manager
	Workspace *source.Workspace
	// Store is the shared counter backend; nil skips its health check.
	Store HealthChecker
	// Heartbeat is how often an idle log stream emits an empty event.
	Heartbeat time.Duration
}

func NewState(runner *job.Runner, slots *slot.Manager, workspace *source.Workspace) (*State, error) {
	if runner == nil {
		return nil, errors.New("job runner is required")
	}
	if slots == nil {
		return nil, errors.New("slot manager is required")
	}
	if workspace == nil {
		return nil, errors.New("workspace is required")
	}
	return &State{
		Runner:    runner,
		Slots:     slots,
		Workspace: workspace,
		Heartbeat: defaultHeartbeat,
	}, nil
}

func WithState(ctx context.Context, state *State) context.Context {
	return context.WithValue(ctx, stateKey, state)
}

func GetState(ctx context.Context) (*State, error) {
	state, ok := ctx.Value(stateKey).(*State)
	if !ok || state == nil {
		return nil, ErrStateNotFound
	}
	return state, nil
}

// StateMiddleware exposes state to handlers through the request context.
func StateMiddleware(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(WithState(c.Request.Context(), state))
		c.Next()
	}
}
