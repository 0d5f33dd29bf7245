package flow

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Action is one UI affordance offered at a state. The engine never
// interprets it; ID names the executor that performs it.
type Action struct {
	ID       string   `json:"id"`
	Label    string   `json:"label,omitempty"`
	Style    string   `json:"style,omitempty"`
	Confirm  string   `json:"confirm,omitempty"`
	Requires []string `json:"requires,omitempty"`
}

// ActionDescriptor groups the actions a role sees at a state.
type ActionDescriptor struct {
	Hint     string         `json:"hint,omitempty"`
	Actions  []Action       `json:"actions,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Clone returns a deep copy of the descriptor. A nil receiver clones to nil.
func (d *ActionDescriptor) Clone() *ActionDescriptor {
	if d == nil {
		return nil
	}
	cp := &ActionDescriptor{Hint: d.Hint, Metadata: copyMap(d.Metadata)}
	if d.Actions != nil {
		cp.Actions = make([]Action, len(d.Actions))
		for i, a := range d.Actions {
			a.Requires = append([]string(nil), a.Requires...)
			cp.Actions[i] = a
		}
	}
	return cp
}

// Find returns the action with the given ID.
func (d *ActionDescriptor) Find(id string) (Action, bool) {
	if d == nil {
		return Action{}, false
	}
	for _, a := range d.Actions {
		if a.ID == id {
			return a, true
		}
	}
	return Action{}, false
}

// Binding maps every state to the role's descriptor. A nil descriptor means
// the role has nothing to do at that state; a missing key is a defect.
type Binding[S comparable] struct {
	Role    string
	Actions map[S]*ActionDescriptor
}

// NodeWithActions is a graph node augmented with a role's descriptor.
type NodeWithActions[S, I comparable] struct {
	Node[S, I]
	Actions *ActionDescriptor
}

// Binder holds validated role bindings for one graph.
type Binder[S, I comparable] struct {
	graph *Graph[S, I]
	roles map[string]map[S]*ActionDescriptor
}

// NewBinder checks that every binding covers exactly the graph's states.
func NewBinder[S, I comparable](g *Graph[S, I], bindings ...Binding[S]) (*Binder[S, I], error) {
	if g == nil {
		return nil, cloneRuntimeError(ErrGraphIntegrity, "binder requires a graph", nil, nil)
	}

	var errs *multierror.Error
	roles := make(map[string]map[S]*ActionDescriptor, len(bindings))
	for _, b := range bindings {
		role := normalizeRole(b.Role)
		if role == "" {
			errs = multierror.Append(errs, integrityViolation{State: "-", Reason: "binding has empty role"})
			continue
		}
		if _, exists := roles[role]; exists {
			errs = multierror.Append(errs, integrityViolation{State: "-", Reason: fmt.Sprintf("role %s bound more than once", role)})
			continue
		}

		table := make(map[S]*ActionDescriptor, len(g.order))
		for _, st := range g.order {
			desc, ok := b.Actions[st]
			if !ok {
				errs = multierror.Append(errs, integrityViolation{
					State:  fmt.Sprint(st),
					Reason: fmt.Sprintf("role %s has no entry", role),
				})
				continue
			}
			table[st] = desc.Clone()
		}
		for st := range b.Actions {
			if !g.Has(st) {
				errs = multierror.Append(errs, integrityViolation{
					State:  fmt.Sprint(st),
					Reason: fmt.Sprintf("role %s binds a state outside the graph", role),
				})
			}
		}
		roles[role] = table
	}

	if errs.ErrorOrNil() != nil {
		sortViolations(errs)
		return nil, integrityError("role bindings are incomplete", errs)
	}
	return &Binder[S, I]{graph: g, roles: roles}, nil
}

// Graph returns the graph the bindings were validated against.
func (b *Binder[S, I]) Graph() *Graph[S, I] { return b.graph }

// Roles returns the bound roles sorted by name.
func (b *Binder[S, I]) Roles() []string {
	out := make([]string, 0, len(b.roles))
	for role := range b.roles {
		out = append(out, role)
	}
	sort.Strings(out)
	return out
}

// HasRole reports whether role has a binding.
func (b *Binder[S, I]) HasRole(role string) bool {
	_, ok := b.roles[normalizeRole(role)]
	return ok
}

// Bind returns every node of the graph merged with the role's descriptors.
func (b *Binder[S, I]) Bind(role string) (map[S]NodeWithActions[S, I], error) {
	table, ok := b.roles[normalizeRole(role)]
	if !ok {
		return nil, cloneRuntimeError(ErrUnknownRole, "", nil, map[string]any{"role": role})
	}
	out := make(map[S]NodeWithActions[S, I], len(table))
	for st, desc := range table {
		node, err := b.graph.Lookup(st)
		if err != nil {
			return nil, err
		}
		out[st] = NodeWithActions[S, I]{Node: node, Actions: desc.Clone()}
	}
	return out, nil
}

// ActionsFor returns the role's descriptor at state, if any.
func (b *Binder[S, I]) ActionsFor(role string, state S) (*ActionDescriptor, bool) {
	desc := b.roles[normalizeRole(role)][state]
	if desc == nil {
		return nil, false
	}
	return desc.Clone(), true
}

func normalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

func sortViolations(errs *multierror.Error) {
	sort.SliceStable(errs.Errors, func(i, j int) bool {
		return errs.Errors[i].Error() < errs.Errors[j].Error()
	})
}

func copyMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
