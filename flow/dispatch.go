package flow

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/goliatone/go-errors"
	"github.com/hashicorp/go-multierror"
)

// AvailableAction is a bound action annotated with its guard outcome.
type AvailableAction struct {
	Action
	Enabled bool     `json:"enabled"`
	Blocked []string `json:"blocked,omitempty"`
}

// Dispatcher runs bound actions through registered executors. It only ever
// runs actions bound for the role at the item's current state.
type Dispatcher[S, I comparable] struct {
	binder  *Binder[S, I]
	actions *ActionRegistry[S, I]
	guards  *GuardRegistry[S, I]
	retry   RetryPolicy
	logger  Logger
	subs    listeners[S, I]
}

// DispatcherOption customizes a dispatcher.
type DispatcherOption[S, I comparable] func(*Dispatcher[S, I])

// WithDispatchLogger sets the dispatcher logger.
func WithDispatchLogger[S, I comparable](logger Logger) DispatcherOption[S, I] {
	return func(d *Dispatcher[S, I]) {
		d.logger = normalizeLogger(logger)
	}
}

// WithRetryPolicy sets how executors are retried and timed out.
func WithRetryPolicy[S, I comparable](policy RetryPolicy) DispatcherOption[S, I] {
	return func(d *Dispatcher[S, I]) {
		if policy.MaxRetries < 0 {
			policy.MaxRetries = 0
		}
		d.retry = policy
	}
}

// NewDispatcher checks that every bound action has an executor and every
// required guard is registered.
func NewDispatcher[S, I comparable](
	binder *Binder[S, I],
	actions *ActionRegistry[S, I],
	guards *GuardRegistry[S, I],
	opts ...DispatcherOption[S, I],
) (*Dispatcher[S, I], error) {
	if binder == nil {
		return nil, cloneRuntimeError(ErrGraphIntegrity, "dispatcher requires a binder", nil, nil)
	}
	if actions == nil {
		actions = NewActionRegistry[S, I]()
	}
	if guards == nil {
		guards = NewGuardRegistry[S, I]()
	}

	var errs *multierror.Error
	for _, role := range binder.Roles() {
		for _, st := range binder.graph.order {
			desc := binder.roles[role][st]
			if desc == nil {
				continue
			}
			for _, a := range desc.Actions {
				if _, ok := actions.Lookup(a.ID); !ok {
					errs = multierror.Append(errs, integrityViolation{
						State:  fmt.Sprint(st),
						Reason: fmt.Sprintf("role %s action %s has no executor", role, a.ID),
					})
				}
				for _, req := range a.Requires {
					if _, ok := guards.Lookup(req); !ok {
						errs = multierror.Append(errs, integrityViolation{
							State:  fmt.Sprint(st),
							Reason: fmt.Sprintf("role %s action %s requires unknown guard %s", role, a.ID, req),
						})
					}
				}
			}
		}
	}
	if errs.ErrorOrNil() != nil {
		return nil, integrityError("bound actions are not executable", errs)
	}

	d := &Dispatcher[S, I]{
		binder:  binder,
		actions: actions,
		guards:  guards,
		logger:  normalizeLogger(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d, nil
}

// Subscribe registers a listener for successful dispatches.
func (d *Dispatcher[S, I]) Subscribe(fn Listener[S, I]) Subscription {
	if fn == nil {
		fn = func(context.Context, ActionEvent[S, I]) {}
	}
	return d.subs.add(fn)
}

// Available lists the actions bound for role at the item's current state,
// with Enabled cleared when a required guard fails.
func (d *Dispatcher[S, I]) Available(item Item[S, I], role string) ([]AvailableAction, error) {
	desc, err := d.descriptor(item, role)
	if err != nil || desc == nil {
		return nil, err
	}
	out := make([]AvailableAction, 0, len(desc.Actions))
	for _, a := range desc.Actions {
		blocked := d.blockedBy(ActionRequest[S, I]{Item: item, Role: role, Action: a})
		out = append(out, AvailableAction{Action: a, Enabled: len(blocked) == 0, Blocked: blocked})
	}
	return out, nil
}

// Dispatch runs actionID for role against item.
func (d *Dispatcher[S, I]) Dispatch(ctx context.Context, item Item[S, I], role, actionID string, payload map[string]any) error {
	logger := withLoggerFields(d.logger.WithContext(ctx), map[string]any{
		"item_id": item.ID,
		"state":   fmt.Sprint(item.Current),
		"role":    role,
		"action":  actionID,
	})

	desc, err := d.descriptor(item, role)
	if err != nil {
		logger.Error("dispatch rejected: %v", err)
		return err
	}
	action, ok := desc.Find(actionID)
	if !ok {
		return cloneRuntimeError(ErrActionNotAvailable, "", nil, map[string]any{
			"action": actionID,
			"role":   role,
			"state":  fmt.Sprint(item.Current),
		})
	}

	req := ActionRequest[S, I]{Item: item, Role: role, Action: action, Payload: payload}
	if blocked := d.blockedBy(req); len(blocked) > 0 {
		logger.Info("dispatch blocked by guards %v", blocked)
		return cloneRuntimeError(ErrGuardRejected, "", nil, map[string]any{
			"action": actionID,
			"guards": blocked,
		})
	}

	exec, ok := d.actions.Lookup(action.ID)
	if !ok {
		return cloneRuntimeError(ErrActionNotRegistered, "", nil, map[string]any{"action": actionID})
	}
	err = d.retry.run(ctx, func(ctx context.Context) error {
		return exec.Execute(ctx, req)
	}, func(attempt int, err error) {
		logger.Warn("action executor attempt %d of %d failed: %v", attempt+1, d.retry.MaxRetries+1, err)
	})
	if err != nil {
		logger.Error("action executor failed: %v", err)
		return apperrors.Wrap(err, apperrors.CategoryExternal, fmt.Sprintf("action %s failed", actionID)).
			WithTextCode(ErrCodeActionFailed).
			WithMetadata(map[string]any{
				"action":  actionID,
				"item_id": item.ID,
			})
	}
	logger.Info("action dispatched")
	d.subs.publish(ctx, ActionEvent[S, I]{
		ItemID:   item.ID,
		Role:     normalizeRole(role),
		ActionID: action.ID,
		State:    item.Current,
		Type:     item.Type,
		At:       time.Now(),
	})
	return nil
}

func (d *Dispatcher[S, I]) descriptor(item Item[S, I], role string) (*ActionDescriptor, error) {
	if !d.binder.HasRole(role) {
		return nil, cloneRuntimeError(ErrUnknownRole, "", nil, map[string]any{"role": role})
	}
	if !d.binder.graph.Has(item.Current) {
		return nil, cloneRuntimeError(ErrUnknownState, "", nil, map[string]any{
			"state":   fmt.Sprint(item.Current),
			"item_id": item.ID,
		})
	}
	desc, _ := d.binder.ActionsFor(role, item.Current)
	return desc, nil
}

func (d *Dispatcher[S, I]) blockedBy(req ActionRequest[S, I]) []string {
	var blocked []string
	for _, name := range req.Action.Requires {
		guard, ok := d.guards.Lookup(name)
		if !ok || !guard(req) {
			blocked = append(blocked, name)
		}
	}
	return blocked
}
