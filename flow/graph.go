package flow

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/hashicorp/go-multierror"
)

// Eligibility reports whether a state may be entered by the item being walked.
type Eligibility[S comparable] func(S) bool

// NodeDefinition is the authoring form of a graph node.
type NodeDefinition[S, I comparable] struct {
	State        S
	AllowedTypes []I
	Nexts        []S
}

// GraphDefinition declares a status graph. States and Types are the closed
// enumerations the graph is checked against.
type GraphDefinition[S, I comparable] struct {
	Start  S
	States []S
	Types  []I
	Nodes  []NodeDefinition[S, I]
}

// Node is a compiled graph node.
type Node[S, I comparable] struct {
	State        S
	AllowedTypes mapset.Set[I]
	Nexts        []S
}

// Graph is an immutable, validated status graph. It is safe for concurrent
// reads.
type Graph[S, I comparable] struct {
	start S
	order []S
	types []I
	nodes map[S]Node[S, I]
}

// NewGraph validates def and compiles it. Every violation is reported in a
// single ErrGraphIntegrity error whose metadata lists the offending states.
func NewGraph[S, I comparable](def GraphDefinition[S, I]) (*Graph[S, I], error) {
	var errs *multierror.Error
	fail := func(state S, format string, args ...any) {
		errs = multierror.Append(errs, integrityViolation{
			State:  fmt.Sprint(state),
			Reason: fmt.Sprintf(format, args...),
		})
	}

	if len(def.States) == 0 {
		return nil, cloneRuntimeError(ErrGraphIntegrity, "graph requires at least one state", nil, nil)
	}

	universe := mapset.NewThreadUnsafeSet[S]()
	order := make([]S, 0, len(def.States))
	for _, st := range def.States {
		if !universe.Add(st) {
			fail(st, "declared more than once")
			continue
		}
		order = append(order, st)
	}

	typeSet := mapset.NewThreadUnsafeSet[I]()
	types := make([]I, 0, len(def.Types))
	for _, t := range def.Types {
		if typeSet.Add(t) {
			types = append(types, t)
		}
	}

	nodes := make(map[S]Node[S, I], len(def.Nodes))
	for _, nd := range def.Nodes {
		if !universe.Contains(nd.State) {
			fail(nd.State, "node is not part of the state enumeration")
			continue
		}
		if _, exists := nodes[nd.State]; exists {
			fail(nd.State, "node defined more than once")
			continue
		}
		allowed := mapset.NewThreadUnsafeSet[I]()
		for _, t := range nd.AllowedTypes {
			if !typeSet.Contains(t) {
				fail(nd.State, "allows unknown item type %v", t)
				continue
			}
			allowed.Add(t)
		}
		nexts := make([]S, 0, len(nd.Nexts))
		seen := mapset.NewThreadUnsafeSet[S]()
		for _, next := range nd.Nexts {
			if !universe.Contains(next) {
				fail(nd.State, "transition to unknown state %v", next)
				continue
			}
			if !seen.Add(next) {
				fail(nd.State, "duplicate transition to %v", next)
				continue
			}
			nexts = append(nexts, next)
		}
		nodes[nd.State] = Node[S, I]{State: nd.State, AllowedTypes: allowed, Nexts: nexts}
	}

	for _, st := range order {
		if _, ok := nodes[st]; !ok {
			fail(st, "no node defined")
		}
	}
	if start, ok := nodes[def.Start]; !ok {
		fail(def.Start, "start state has no node")
	} else {
		for _, t := range types {
			if !start.AllowedTypes.Contains(t) {
				fail(def.Start, "start state does not allow item type %v", t)
			}
		}
	}

	g := &Graph[S, I]{start: def.Start, order: order, types: types, nodes: nodes}
	if errs.ErrorOrNil() == nil {
		for _, st := range g.unreachable() {
			fail(st, "not reachable from start %v", def.Start)
		}
		for _, t := range types {
			if st, ok := g.cycleFor(t); ok {
				fail(st, "closes a cycle for item type %v", t)
			}
		}
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, integrityError("status graph is inconsistent", errs)
	}
	return g, nil
}

func integrityError(message string, errs *multierror.Error) error {
	states := make([]string, 0, len(errs.Errors))
	seen := map[string]struct{}{}
	for _, e := range errs.Errors {
		v, ok := e.(integrityViolation)
		if !ok || v.State == "-" {
			continue
		}
		if _, dup := seen[v.State]; dup {
			continue
		}
		seen[v.State] = struct{}{}
		states = append(states, v.State)
	}
	return cloneRuntimeError(ErrGraphIntegrity, message, errs, map[string]any{
		"states":     states,
		"violations": len(errs.Errors),
	})
}

func (g *Graph[S, I]) unreachable() []S {
	reached := mapset.NewThreadUnsafeSet[S](g.start)
	queue := []S{g.start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range g.nodes[cur].Nexts {
			if reached.Add(next) {
				queue = append(queue, next)
			}
		}
	}
	var out []S
	for _, st := range g.order {
		if !reached.Contains(st) {
			out = append(out, st)
		}
	}
	return out
}

// cycleFor looks for a cycle in the subgraph an item of type t can walk and
// returns the state that closes it.
func (g *Graph[S, I]) cycleFor(t I) (S, bool) {
	const (
		white = iota
		grey
		black
	)
	color := make(map[S]int, len(g.nodes))
	var closing S
	var visit func(S) bool
	visit = func(s S) bool {
		color[s] = grey
		for _, next := range g.nodes[s].Nexts {
			if !g.nodes[next].AllowedTypes.Contains(t) {
				continue
			}
			switch color[next] {
			case grey:
				closing = next
				return true
			case white:
				if visit(next) {
					return true
				}
			}
		}
		color[s] = black
		return false
	}
	for _, st := range g.order {
		if color[st] != white {
			continue
		}
		if st != g.start && !g.nodes[st].AllowedTypes.Contains(t) {
			continue
		}
		if visit(st) {
			return closing, true
		}
	}
	return closing, false
}

// Start returns the canonical start state.
func (g *Graph[S, I]) Start() S { return g.start }

// States returns every state in declaration order.
func (g *Graph[S, I]) States() []S {
	return append([]S(nil), g.order...)
}

// Types returns the item type enumeration the graph was built with.
func (g *Graph[S, I]) Types() []I {
	return append([]I(nil), g.types...)
}

// Has reports whether state is registered.
func (g *Graph[S, I]) Has(state S) bool {
	_, ok := g.nodes[state]
	return ok
}

// HasType reports whether t belongs to the item type enumeration.
func (g *Graph[S, I]) HasType(t I) bool {
	for _, known := range g.types {
		if known == t {
			return true
		}
	}
	return false
}

// Lookup returns a copy of the node for state.
func (g *Graph[S, I]) Lookup(state S) (Node[S, I], error) {
	node, ok := g.nodes[state]
	if !ok {
		return Node[S, I]{}, cloneRuntimeError(ErrUnknownState, "", nil, map[string]any{
			"state": fmt.Sprint(state),
		})
	}
	return Node[S, I]{
		State:        node.State,
		AllowedTypes: node.AllowedTypes.Clone(),
		Nexts:        append([]S(nil), node.Nexts...),
	}, nil
}

// IsEligible reports whether an item of type t may be in state.
func (g *Graph[S, I]) IsEligible(state S, t I) bool {
	node, ok := g.nodes[state]
	return ok && node.AllowedTypes.Contains(t)
}

// EligibleFor builds the eligibility predicate for an item type.
func (g *Graph[S, I]) EligibleFor(t I) Eligibility[S] {
	return func(state S) bool {
		return g.IsEligible(state, t)
	}
}

// Terminal reports whether no eligible transition leaves state for type t.
func (g *Graph[S, I]) Terminal(state S, t I) bool {
	for _, next := range g.nodes[state].Nexts {
		if g.IsEligible(next, t) {
			return false
		}
	}
	return true
}

func (g *Graph[S, I]) nexts(state S) []S {
	return g.nodes[state].Nexts
}
