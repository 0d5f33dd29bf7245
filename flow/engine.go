package flow

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Item is the caller-owned snapshot the engine walks. History holds the time
// each past state was entered, as reported by the item backend.
type Item[S, I comparable] struct {
	ID         string
	Type       I
	Current    S
	History    map[S]time.Time
	Attributes map[string]any
}

// Step is one entry of a rendered workflow.
type Step[S comparable] struct {
	State       S                 `json:"state"`
	Label       string            `json:"label"`
	VisitedAt   *time.Time        `json:"visited_at,omitempty"`
	Active      bool              `json:"active"`
	Reached     bool              `json:"reached"`
	DisplayOnly bool              `json:"display_only,omitempty"`
	Actions     *ActionDescriptor `json:"actions,omitempty"`
}

// Workflow is the ordered sequence handed to the presentation layer.
// Available is false when the item's current state cannot be reached for its
// type; callers render "no workflow" in that case.
type Workflow[S comparable] struct {
	ItemID    string    `json:"item_id,omitempty"`
	Role      string    `json:"role"`
	Available bool      `json:"available"`
	Steps     []Step[S] `json:"steps,omitempty"`
}

// ActiveStep returns the step for the item's current state.
func (w Workflow[S]) ActiveStep() (Step[S], bool) {
	for _, st := range w.Steps {
		if st.Active {
			return st, true
		}
	}
	return Step[S]{}, false
}

// States returns the graph states of the workflow, skipping display-only steps.
func (w Workflow[S]) States() []S {
	out := make([]S, 0, len(w.Steps))
	for _, st := range w.Steps {
		if !st.DisplayOnly {
			out = append(out, st.State)
		}
	}
	return out
}

// Engine assembles workflows from a graph and its role bindings. It holds no
// request state and is safe for concurrent use.
type Engine[S, I comparable] struct {
	graph   *Graph[S, I]
	binder  *Binder[S, I]
	display []DisplayStep[S, I]
	labeler func(S) string
	logger  Logger
}

// EngineOption customizes engine behavior.
type EngineOption[S, I comparable] func(*Engine[S, I])

// WithLogger sets the engine logger.
func WithLogger[S, I comparable](logger Logger) EngineOption[S, I] {
	return func(e *Engine[S, I]) {
		e.logger = normalizeLogger(logger)
	}
}

// WithDisplaySteps adds display-only overlays.
func WithDisplaySteps[S, I comparable](steps ...DisplayStep[S, I]) EngineOption[S, I] {
	return func(e *Engine[S, I]) {
		e.display = append(e.display, steps...)
	}
}

// WithLabeler sets how state labels are rendered. Defaults to fmt.Sprint.
func WithLabeler[S, I comparable](fn func(S) string) EngineOption[S, I] {
	return func(e *Engine[S, I]) {
		if fn != nil {
			e.labeler = fn
		}
	}
}

// NewEngine wires a graph and its binder.
func NewEngine[S, I comparable](graph *Graph[S, I], binder *Binder[S, I], opts ...EngineOption[S, I]) (*Engine[S, I], error) {
	if graph == nil || binder == nil {
		return nil, cloneRuntimeError(ErrGraphIntegrity, "engine requires a graph and a binder", nil, nil)
	}
	if binder.graph != graph {
		return nil, cloneRuntimeError(ErrGraphIntegrity, "binder was validated against a different graph", nil, nil)
	}
	e := &Engine[S, I]{
		graph:   graph,
		binder:  binder,
		labeler: func(s S) string { return fmt.Sprint(s) },
		logger:  normalizeLogger(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}

	var errs *multierror.Error
	for _, ov := range e.display {
		if !graph.Has(ov.After) {
			errs = multierror.Append(errs, integrityViolation{State: fmt.Sprint(ov.After), Reason: "display step anchored to unknown state"})
		}
		for _, t := range ov.Types {
			if !graph.HasType(t) {
				errs = multierror.Append(errs, integrityViolation{State: fmt.Sprint(ov.After), Reason: fmt.Sprintf("display step limited to unknown item type %v", t)})
			}
		}
	}
	if errs.ErrorOrNil() != nil {
		return nil, integrityError("display steps are inconsistent", errs)
	}
	return e, nil
}

// Graph returns the engine graph.
func (e *Engine[S, I]) Graph() *Graph[S, I] { return e.graph }

// Binder returns the engine role bindings.
func (e *Engine[S, I]) Binder() *Binder[S, I] { return e.binder }

// Label renders a state label.
func (e *Engine[S, I]) Label(s S) string { return e.labeler(s) }

// Path resolves the item's path from the start state and extends it with the
// happy-path forecast. It also returns the index of the current state.
// ok is false when the current state is unreachable for the item type.
func (e *Engine[S, I]) Path(item Item[S, I]) (path []S, current int, ok bool, err error) {
	if !e.graph.Has(item.Current) {
		return nil, -1, false, cloneRuntimeError(ErrUnknownState, "", nil, map[string]any{
			"state":   fmt.Sprint(item.Current),
			"item_id": item.ID,
		})
	}
	if !e.graph.HasType(item.Type) {
		return nil, -1, false, cloneRuntimeError(ErrUnknownItemType, "", nil, map[string]any{
			"item_type": fmt.Sprint(item.Type),
			"item_id":   item.ID,
		})
	}
	eligible := e.graph.EligibleFor(item.Type)
	resolved, found := Resolve(e.graph, e.graph.start, item.Current, eligible)
	if !found {
		return nil, -1, false, nil
	}
	return Extend(e.graph, resolved, eligible), len(resolved) - 1, true, nil
}

// Workflow builds the ordered steps for item as seen by role.
func (e *Engine[S, I]) Workflow(ctx context.Context, item Item[S, I], role string) (Workflow[S], error) {
	logger := withLoggerFields(e.logger.WithContext(ctx), map[string]any{
		"item_id":   item.ID,
		"item_type": fmt.Sprint(item.Type),
		"state":     fmt.Sprint(item.Current),
		"role":      role,
	})

	wf := Workflow[S]{ItemID: item.ID, Role: normalizeRole(role)}
	if !e.binder.HasRole(role) {
		err := cloneRuntimeError(ErrUnknownRole, "", nil, map[string]any{"role": role})
		logger.Error("workflow requested for unbound role: %v", err)
		return wf, err
	}

	path, current, ok, err := e.Path(item)
	if err != nil {
		logger.Error("workflow requested for invalid item: %v", err)
		return wf, err
	}
	if !ok {
		logger.Warn("current state unreachable for item type, no workflow available")
		return wf, nil
	}

	steps := make([]Step[S], 0, len(path))
	for i, st := range path {
		step := Step[S]{
			State:   st,
			Label:   e.labeler(st),
			Active:  i == current,
			Reached: i <= current,
		}
		if ts, visited := item.History[st]; visited {
			at := ts
			step.VisitedAt = &at
		}
		if step.Active {
			step.Actions, _ = e.binder.ActionsFor(role, st)
		}
		steps = append(steps, step)
	}

	wf.Available = true
	wf.Steps = applyDisplaySteps(steps, e.display, item.Type)
	logger.Debug("workflow resolved: %d steps, active index %d", len(wf.Steps), current)
	return wf, nil
}
