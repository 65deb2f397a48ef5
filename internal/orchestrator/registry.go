package orchestrator

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/ShayCichocki/taskorch/pkg/models"
)

// HandlerFunc runs one action for an agent. The payload is the task's own
// copy; the returned value becomes the task result.
type HandlerFunc func(ctx context.Context, payload models.Payload) (any, error)

// Route identifies a handler by agent and action.
type Route struct {
	Agent  models.Agent
	Action models.Action
}

func (r Route) String() string {
	return string(r.Agent) + "/" + string(r.Action)
}

// Binding attaches a handler to a route. Create bindings with Bind or
// BindFunc and pass them to NewRegistry.
type Binding struct {
	Route
	Handler HandlerFunc
}

// Bind creates a Binding for a typed handler. At dispatch the payload data
// is decoded into In; a decode failure fails the task.
func Bind[In, Out any](agent models.Agent, action models.Action, fn func(context.Context, In) (Out, error)) Binding {
	b := Binding{Route: Route{Agent: agent, Action: action}}
	if fn == nil {
		return b
	}
	b.Handler = func(ctx context.Context, payload models.Payload) (any, error) {
		var in In
		if err := payload.Decode(&in); err != nil {
			return nil, err
		}
		return fn(ctx, in)
	}
	return b
}

// BindFunc creates a Binding for a handler that consumes the raw payload.
func BindFunc(agent models.Agent, action models.Action, fn HandlerFunc) Binding {
	return Binding{Route: Route{Agent: agent, Action: action}, Handler: fn}
}

// Registry maps routes to handlers. It is immutable once built, so lookups
// need no locking.
type Registry struct {
	handlers map[Route]HandlerFunc
}

// NewRegistry validates bindings and builds a Registry from them.
func NewRegistry(bindings ...Binding) (*Registry, error) {
	r := &Registry{handlers: make(map[Route]HandlerFunc, len(bindings))}
	for _, b := range bindings {
		if !b.Agent.Valid() {
			return nil, fmt.Errorf("%w: unknown agent %q", ErrInvalidBinding, b.Agent)
		}
		if b.Action == "" {
			return nil, fmt.Errorf("%w: empty action for %s", ErrInvalidBinding, b.Agent)
		}
		if b.Handler == nil {
			return nil, fmt.Errorf("%w: nil handler for %s", ErrInvalidBinding, b.Route)
		}
		if _, exists := r.handlers[b.Route]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateBinding, b.Route)
		}
		r.handlers[b.Route] = b.Handler
	}
	return r, nil
}

// Lookup returns the handler for the route, if one is bound.
func (r *Registry) Lookup(agent models.Agent, action models.Action) (HandlerFunc, bool) {
	if r == nil {
		return nil, false
	}
	h, ok := r.handlers[Route{Agent: agent, Action: action}]
	return h, ok
}

// Routes returns the bound routes sorted by agent then action.
func (r *Registry) Routes() []Route {
	if r == nil {
		return nil
	}
	routes := make([]Route, 0, len(r.handlers))
	for route := range r.handlers {
		routes = append(routes, route)
	}
	slices.SortFunc(routes, func(a, b Route) int {
		if c := cmp.Compare(a.Agent, b.Agent); c != 0 {
			return c
		}
		return cmp.Compare(a.Action, b.Action)
	})
	return routes
}

// Len returns the number of bound routes.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.handlers)
}
