package flow

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// ActionRequest is handed to an executor when a bound action is dispatched.
type ActionRequest[S, I comparable] struct {
	Item    Item[S, I]
	Role    string
	Action  Action
	Payload map[string]any
}

// ActionExecutor performs an action against an external collaborator, such
// as the item backend.
type ActionExecutor[S, I comparable] interface {
	Execute(ctx context.Context, req ActionRequest[S, I]) error
}

// ExecutorFunc adapts a function to ActionExecutor.
type ExecutorFunc[S, I comparable] func(ctx context.Context, req ActionRequest[S, I]) error

// Execute calls the underlying function.
func (f ExecutorFunc[S, I]) Execute(ctx context.Context, req ActionRequest[S, I]) error {
	return f(ctx, req)
}

// ActionRegistry stores executors by action ID.
type ActionRegistry[S, I comparable] struct {
	executors  map[string]ActionExecutor[S, I]
	namespacer func(string, string) string
}

// NewActionRegistry creates an empty registry.
func NewActionRegistry[S, I comparable]() *ActionRegistry[S, I] {
	return &ActionRegistry[S, I]{
		executors:  make(map[string]ActionExecutor[S, I]),
		namespacer: defaultNamespace,
	}
}

// SetNamespacer customizes how action IDs are namespaced.
func (r *ActionRegistry[S, I]) SetNamespacer(fn func(string, string) string) {
	if fn != nil {
		r.namespacer = fn
	}
}

// Register adds an executor by action ID.
func (r *ActionRegistry[S, I]) Register(id string, exec ActionExecutor[S, I]) error {
	return r.RegisterNamespaced("", id, exec)
}

// RegisterFunc adds a function executor by action ID.
func (r *ActionRegistry[S, I]) RegisterFunc(id string, fn func(context.Context, ActionRequest[S, I]) error) error {
	if fn == nil {
		return fmt.Errorf("action %s: nil executor", id)
	}
	return r.Register(id, ExecutorFunc[S, I](fn))
}

// RegisterNamespaced adds an executor under namespace+id.
func (r *ActionRegistry[S, I]) RegisterNamespaced(namespace, id string, exec ActionExecutor[S, I]) error {
	if id == "" || exec == nil {
		return fmt.Errorf("action registration requires an id and an executor")
	}
	if r.executors == nil {
		r.executors = make(map[string]ActionExecutor[S, I])
	}
	key := id
	if r.namespacer != nil {
		key = r.namespacer(namespace, id)
	}
	if _, exists := r.executors[key]; exists {
		return fmt.Errorf("action %s already registered", key)
	}
	r.executors[key] = exec
	return nil
}

// Lookup retrieves an executor.
func (r *ActionRegistry[S, I]) Lookup(id string) (ActionExecutor[S, I], bool) {
	if r == nil {
		return nil, false
	}
	exec, ok := r.executors[id]
	return exec, ok
}

// IDs returns sorted action IDs.
func (r *ActionRegistry[S, I]) IDs() []string {
	if r == nil || len(r.executors) == 0 {
		return nil
	}
	ids := make([]string, 0, len(r.executors))
	for id := range r.executors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// defaultNamespace joins namespace and id with "::".
func defaultNamespace(namespace, id string) string {
	ns := strings.TrimSpace(namespace)
	ident := strings.TrimSpace(id)
	if ns == "" {
		return ident
	}
	return ns + "::" + ident
}
