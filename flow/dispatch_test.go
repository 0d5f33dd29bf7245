package flow

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/goliatone/go-errors"
)

type dispatchFixture struct {
	binder  *Binder[string, string]
	actions *ActionRegistry[string, string]
	guards  *GuardRegistry[string, string]
	calls   map[string]int
}

func newDispatchFixture(t *testing.T) *dispatchFixture {
	t.Helper()
	g := mustGraph(t, diamondDefinition())
	f := &dispatchFixture{
		binder:  mustBinder(t, g, consignorBinding()),
		actions: NewActionRegistry[string, string](),
		guards:  NewGuardRegistry[string, string](),
		calls:   map[string]int{},
	}
	for _, id := range []string{"approve", "reject"} {
		id := id
		if err := f.actions.RegisterFunc(id, func(context.Context, ActionRequest[string, string]) error {
			f.calls[id]++
			return nil
		}); err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
	}
	if err := f.guards.Register("verified", func(req ActionRequest[string, string]) bool {
		v, _ := req.Item.Attributes["verified"].(bool)
		return v
	}); err != nil {
		t.Fatalf("register guard: %v", err)
	}
	return f
}

func (f *dispatchFixture) dispatcher(t *testing.T, opts ...DispatcherOption[string, string]) *Dispatcher[string, string] {
	t.Helper()
	opts = append([]DispatcherOption[string, string]{WithDispatchLogger[string, string](NopLogger{})}, opts...)
	d, err := NewDispatcher(f.binder, f.actions, f.guards, opts...)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	return d
}

func itemAt(state string, verified bool) Item[string, string] {
	return Item[string, string]{
		ID:         "item-7",
		Type:       typeAuction,
		Current:    state,
		Attributes: map[string]any{"verified": verified},
	}
}

func TestDispatcherAvailableAppliesGuards(t *testing.T) {
	f := newDispatchFixture(t)
	d := f.dispatcher(t)

	available, err := d.Available(itemAt("B", false), "consignor")
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if len(available) != 2 {
		t.Fatalf("expected two actions, got %d", len(available))
	}
	if available[0].ID != "approve" || available[0].Enabled || strings.Join(available[0].Blocked, ",") != "verified" {
		t.Fatalf("expected approve to be blocked by verified, got %+v", available[0])
	}
	if !available[1].Enabled {
		t.Fatalf("expected reject to be enabled, got %+v", available[1])
	}

	none, err := d.Available(itemAt("A", true), "consignor")
	if err != nil || len(none) != 0 {
		t.Fatalf("expected no actions at A, got %v %v", none, err)
	}
}

func TestDispatcherDispatch(t *testing.T) {
	f := newDispatchFixture(t)
	d := f.dispatcher(t)
	ctx := context.Background()

	if err := d.Dispatch(ctx, itemAt("B", true), "consignor", "approve", nil); err != nil {
		t.Fatalf("dispatch approve: %v", err)
	}
	if f.calls["approve"] != 1 {
		t.Fatalf("expected approve executor to run once, got %d", f.calls["approve"])
	}

	err := d.Dispatch(ctx, itemAt("B", false), "consignor", "approve", nil)
	if !HasErrorCode(err, ErrCodeGuardRejected) {
		t.Fatalf("expected guard rejection, got %v", err)
	}
	err = d.Dispatch(ctx, itemAt("A", true), "consignor", "approve", nil)
	if !HasErrorCode(err, ErrCodeActionNotAvailable) {
		t.Fatalf("expected action not available at A, got %v", err)
	}
	err = d.Dispatch(ctx, itemAt("B", true), "appraiser", "approve", nil)
	if !HasErrorCode(err, ErrCodeUnknownRole) {
		t.Fatalf("expected unknown role, got %v", err)
	}
	err = d.Dispatch(ctx, itemAt("Z", true), "consignor", "approve", nil)
	if !HasErrorCode(err, ErrCodeUnknownState) {
		t.Fatalf("expected unknown state, got %v", err)
	}
	if f.calls["approve"] != 1 {
		t.Fatalf("expected rejected dispatches not to run executors")
	}
}

func TestDispatcherWrapsExecutorFailure(t *testing.T) {
	f := newDispatchFixture(t)
	f.actions = NewActionRegistry[string, string]()
	boom := errors.New("backend unavailable")
	_ = f.actions.RegisterFunc("approve", func(context.Context, ActionRequest[string, string]) error { return boom })
	_ = f.actions.RegisterFunc("reject", func(context.Context, ActionRequest[string, string]) error { return nil })
	d := f.dispatcher(t)

	err := d.Dispatch(context.Background(), itemAt("B", true), "consignor", "approve", nil)
	if !HasErrorCode(err, ErrCodeActionFailed) {
		t.Fatalf("expected action failed code, got %v", err)
	}
	if src := errorSource(err); src != boom {
		t.Fatalf("expected executor error as source, got %v", src)
	}
}

func TestNewDispatcherRequiresExecutorsAndGuards(t *testing.T) {
	f := newDispatchFixture(t)
	_, err := NewDispatcher(f.binder, NewActionRegistry[string, string](), f.guards)
	if !IsGraphIntegrity(err) || !strings.Contains(errorChain(err), "has no executor") {
		t.Fatalf("expected missing executor to fail, got %v", err)
	}
	_, err = NewDispatcher(f.binder, f.actions, nil)
	if !IsGraphIntegrity(err) || !strings.Contains(errorChain(err), "unknown guard verified") {
		t.Fatalf("expected missing guard to fail, got %v", err)
	}
	if states := OffendingStates(err); strings.Join(states, ",") != "B" {
		t.Fatalf("expected B to be reported, got %v", states)
	}
}

func TestDispatcherRetriesExecutor(t *testing.T) {
	f := newDispatchFixture(t)
	f.actions = NewActionRegistry[string, string]()
	var attempts int32
	_ = f.actions.RegisterFunc("approve", func(context.Context, ActionRequest[string, string]) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	_ = f.actions.RegisterFunc("reject", func(context.Context, ActionRequest[string, string]) error { return nil })

	d := f.dispatcher(t, WithRetryPolicy[string, string](RetryPolicy{MaxRetries: 2}))
	if err := d.Dispatch(context.Background(), itemAt("B", true), "consignor", "approve", nil); err != nil {
		t.Fatalf("expected third attempt to succeed: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}

	atomic.StoreInt32(&attempts, 0)
	d = f.dispatcher(t, WithRetryPolicy[string, string](RetryPolicy{MaxRetries: 1}))
	if err := d.Dispatch(context.Background(), itemAt("B", true), "consignor", "approve", nil); !HasErrorCode(err, ErrCodeActionFailed) {
		t.Fatalf("expected failure after retries, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestDispatcherExecutorTimeout(t *testing.T) {
	f := newDispatchFixture(t)
	f.actions = NewActionRegistry[string, string]()
	_ = f.actions.RegisterFunc("approve", func(ctx context.Context, _ ActionRequest[string, string]) error {
		<-ctx.Done()
		return ctx.Err()
	})
	_ = f.actions.RegisterFunc("reject", func(context.Context, ActionRequest[string, string]) error { return nil })

	d := f.dispatcher(t, WithRetryPolicy[string, string](RetryPolicy{Timeout: 10 * time.Millisecond}))
	err := d.Dispatch(context.Background(), itemAt("B", true), "consignor", "approve", nil)
	if src := errorSource(err); src != context.DeadlineExceeded {
		t.Fatalf("expected deadline exceeded, got %v", src)
	}
}

func TestDispatcherPublishesEvents(t *testing.T) {
	f := newDispatchFixture(t)
	d := f.dispatcher(t)

	var events []ActionEvent[string, string]
	sub := d.Subscribe(func(_ context.Context, evt ActionEvent[string, string]) {
		events = append(events, evt)
	})

	if err := d.Dispatch(context.Background(), itemAt("B", true), " Consignor", "reject", nil); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	_ = d.Dispatch(context.Background(), itemAt("B", false), "consignor", "approve", nil)
	if len(events) != 1 {
		t.Fatalf("expected only successful dispatches to publish, got %d", len(events))
	}
	evt := events[0]
	if evt.ActionID != "reject" || evt.Role != "consignor" || evt.State != "B" || evt.ItemID != "item-7" || evt.At.IsZero() {
		t.Fatalf("unexpected event %+v", evt)
	}

	sub.Unsubscribe()
	sub.Unsubscribe()
	_ = d.Dispatch(context.Background(), itemAt("B", true), "consignor", "reject", nil)
	if len(events) != 1 {
		t.Fatalf("expected no events after unsubscribe, got %d", len(events))
	}
}

func TestActionRegistryRejectsDuplicates(t *testing.T) {
	r := NewActionRegistry[string, string]()
	noop := func(context.Context, ActionRequest[string, string]) error { return nil }
	if err := r.RegisterFunc("approve", noop); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.RegisterFunc("approve", noop); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
	if err := r.RegisterNamespaced("admin", "approve", ExecutorFunc[string, string](noop)); err != nil {
		t.Fatalf("register namespaced: %v", err)
	}
	if err := r.RegisterFunc("", noop); err == nil {
		t.Fatalf("expected empty id to fail")
	}
	if got := strings.Join(r.IDs(), ","); got != "admin::approve,approve" {
		t.Fatalf("unexpected ids %s", got)
	}

	g := NewGuardRegistry[string, string]()
	pass := func(ActionRequest[string, string]) bool { return true }
	if err := g.Register("verified", pass); err != nil {
		t.Fatalf("register guard: %v", err)
	}
	if err := g.Register("verified", pass); err == nil {
		t.Fatalf("expected duplicate guard to fail")
	}
	if _, ok := g.Lookup("verified"); !ok {
		t.Fatalf("expected guard lookup to succeed")
	}
}

func TestGuardRegistryNamespacing(t *testing.T) {
	g := NewGuardRegistry[string, string]()
	pass := func(ActionRequest[string, string]) bool { return true }
	if err := g.RegisterNamespaced("admin", "verified", pass); err != nil {
		t.Fatalf("register namespaced guard: %v", err)
	}
	if _, ok := g.Lookup("admin::verified"); !ok {
		t.Fatalf("expected namespaced guard lookup to succeed")
	}
	if _, ok := g.Lookup("verified"); ok {
		t.Fatalf("expected bare name to stay unregistered")
	}
	if err := g.RegisterNamespaced(" admin ", "verified", pass); err == nil {
		t.Fatalf("expected duplicate namespaced guard to fail")
	}
	if err := g.Register("verified", pass); err != nil {
		t.Fatalf("expected bare guard to coexist with namespaced one: %v", err)
	}
	if err := g.RegisterNamespaced("admin", "open", nil); err == nil {
		t.Fatalf("expected nil guard to fail")
	}
}

func errorSource(err error) error {
	var ge *apperrors.Error
	if !errors.As(err, &ge) {
		return nil
	}
	return ge.Source
}
