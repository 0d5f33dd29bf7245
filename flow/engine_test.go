package flow

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestEngine(t *testing.T, opts ...EngineOption[string, string]) *Engine[string, string] {
	t.Helper()
	def := diamondDefinition()
	// direct items skip B and only auction items may finish at D.
	def.Nodes[1].AllowedTypes = []string{typeAuction}
	g := mustGraph(t, def)
	b := mustBinder(t, g, consignorBinding())
	opts = append([]EngineOption[string, string]{WithLogger[string, string](NopLogger{})}, opts...)
	e, err := NewEngine(g, b, opts...)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func TestEngineWorkflowMarksSingleActiveStep(t *testing.T) {
	e := newTestEngine(t)
	visited := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	item := Item[string, string]{
		ID:      "item-1",
		Type:    typeAuction,
		Current: "B",
		History: map[string]time.Time{"A": visited},
	}

	wf, err := e.Workflow(context.Background(), item, "consignor")
	if err != nil {
		t.Fatalf("workflow: %v", err)
	}
	if !wf.Available {
		t.Fatalf("expected workflow to be available")
	}
	if got := strings.Join(wf.States(), ","); got != "A,B,D" {
		t.Fatalf("expected A,B,D, got %s", got)
	}

	active := 0
	for _, st := range wf.Steps {
		if st.Active {
			active++
		}
	}
	if active != 1 {
		t.Fatalf("expected exactly one active step, got %d", active)
	}

	step, ok := wf.ActiveStep()
	if !ok || step.State != "B" {
		t.Fatalf("expected B to be active, got %+v", step)
	}
	if step.Actions == nil || len(step.Actions.Actions) != 2 {
		t.Fatalf("expected actions on active step, got %+v", step.Actions)
	}
	if !wf.Steps[0].Reached || wf.Steps[2].Reached {
		t.Fatalf("expected reached flags up to the active step only")
	}
	if wf.Steps[0].VisitedAt == nil || !wf.Steps[0].VisitedAt.Equal(visited) {
		t.Fatalf("expected visit time on A, got %v", wf.Steps[0].VisitedAt)
	}
	if wf.Steps[2].VisitedAt != nil || wf.Steps[2].Actions != nil {
		t.Fatalf("expected forecast step without history or actions")
	}
}

func TestEngineWorkflowOnlyActiveStepCarriesActions(t *testing.T) {
	e := newTestEngine(t)
	wf, err := e.Workflow(context.Background(), Item[string, string]{ID: "i", Type: typeAuction, Current: "D"}, "consignor")
	if err != nil {
		t.Fatalf("workflow: %v", err)
	}
	for _, st := range wf.Steps {
		if st.Actions != nil {
			t.Fatalf("expected no actions when the active state has none, got %+v at %s", st.Actions, st.State)
		}
	}
	if step, _ := wf.ActiveStep(); step.State != "D" {
		t.Fatalf("expected D active, got %s", step.State)
	}
}

func TestEngineWorkflowUnavailableForUnreachableState(t *testing.T) {
	e := newTestEngine(t)
	wf, err := e.Workflow(context.Background(), Item[string, string]{ID: "i", Type: typeDirect, Current: "B"}, "consignor")
	if err != nil {
		t.Fatalf("expected unreachable state to be an expected outcome, got %v", err)
	}
	if wf.Available || len(wf.Steps) != 0 {
		t.Fatalf("expected no workflow, got %+v", wf)
	}
}

func TestEngineWorkflowErrors(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Workflow(ctx, Item[string, string]{Type: typeAuction, Current: "A"}, "warehouse")
	if !HasErrorCode(err, ErrCodeUnknownRole) {
		t.Fatalf("expected unknown role, got %v", err)
	}
	_, err = e.Workflow(ctx, Item[string, string]{Type: typeAuction, Current: "Z"}, "consignor")
	if !HasErrorCode(err, ErrCodeUnknownState) {
		t.Fatalf("expected unknown state, got %v", err)
	}
	_, err = e.Workflow(ctx, Item[string, string]{Type: "lease", Current: "A"}, "consignor")
	if !HasErrorCode(err, ErrCodeUnknownItemType) {
		t.Fatalf("expected unknown item type, got %v", err)
	}
}

func TestEnginePath(t *testing.T) {
	e := newTestEngine(t)
	path, current, ok, err := e.Path(Item[string, string]{Type: typeDirect, Current: "A"})
	if err != nil || !ok {
		t.Fatalf("expected path, got ok=%v err=%v", ok, err)
	}
	if strings.Join(path, ",") != "A,C,D" || current != 0 {
		t.Fatalf("expected A,C,D with current 0, got %v %d", path, current)
	}
}

func TestEngineDisplaySteps(t *testing.T) {
	e := newTestEngine(t,
		WithDisplaySteps(DisplayStep[string, string]{After: "A", Label: "Awaiting appraisal"}),
		WithDisplaySteps(DisplayStep[string, string]{After: "B", Label: "Auction only", Types: []string{typeAuction}}),
		WithLabeler[string, string](strings.ToLower),
	)

	wf, err := e.Workflow(context.Background(), Item[string, string]{Type: typeAuction, Current: "B"}, "consignor")
	if err != nil {
		t.Fatalf("workflow: %v", err)
	}
	labels := make([]string, 0, len(wf.Steps))
	for _, st := range wf.Steps {
		labels = append(labels, st.Label)
	}
	if got := strings.Join(labels, "|"); got != "a|Awaiting appraisal|b|Auction only|d" {
		t.Fatalf("unexpected steps %s", got)
	}
	if !wf.Steps[1].DisplayOnly || !wf.Steps[1].Reached || wf.Steps[1].Active {
		t.Fatalf("expected reached display-only overlay, got %+v", wf.Steps[1])
	}
	if wf.Steps[3].Reached {
		t.Fatalf("expected overlay after the active step to be pending")
	}
	if got := strings.Join(wf.States(), ","); got != "A,B,D" {
		t.Fatalf("expected overlays to stay out of the state sequence, got %s", got)
	}

	direct, _ := e.Workflow(context.Background(), Item[string, string]{Type: typeDirect, Current: "C"}, "consignor")
	for _, st := range direct.Steps {
		if st.Label == "Auction only" {
			t.Fatalf("expected type-limited overlay to be skipped for direct items")
		}
	}
}

func TestNewEngineRejectsInvalidDisplaySteps(t *testing.T) {
	g := mustGraph(t, diamondDefinition())
	b := mustBinder(t, g, consignorBinding())
	_, err := NewEngine(g, b,
		WithDisplaySteps(DisplayStep[string, string]{After: "Z", Label: "ghost"}),
		WithDisplaySteps(DisplayStep[string, string]{After: "A", Label: "lease", Types: []string{"lease"}}),
	)
	if !IsGraphIntegrity(err) {
		t.Fatalf("expected integrity error, got %v", err)
	}
	if states := strings.Join(OffendingStates(err), ","); states != "Z,A" {
		t.Fatalf("expected Z,A, got %s", states)
	}

	other := mustGraph(t, diamondDefinition())
	if _, err := NewEngine(other, b); !IsGraphIntegrity(err) {
		t.Fatalf("expected mismatched binder graph to fail, got %v", err)
	}
}

func TestEngineWorkflowConcurrentCalls(t *testing.T) {
	e := newTestEngine(t)
	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			current := []string{"A", "B", "D"}[i%3]
			wf, err := e.Workflow(context.Background(), Item[string, string]{Type: typeAuction, Current: current}, "consignor")
			if err != nil {
				errs <- err
				return
			}
			if step, _ := wf.ActiveStep(); step.State != current {
				errs <- context.DeadlineExceeded
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent workflow: %v", err)
	}
}

func TestEngineLogsUnreachableState(t *testing.T) {
	buf := &bytes.Buffer{}
	e := newTestEngine(t, WithLogger[string, string](NewFmtLogger(buf).SetLevel("debug")))
	if _, err := e.Workflow(context.Background(), Item[string, string]{ID: "item-9", Type: typeDirect, Current: "B"}, "consignor"); err != nil {
		t.Fatalf("workflow: %v", err)
	}
	logged := buf.String()
	if !strings.Contains(logged, "WARN") || !strings.Contains(logged, "item_id=item-9") {
		t.Fatalf("expected warn line with item fields, got %q", logged)
	}
}
