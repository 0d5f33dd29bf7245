package flow

import (
	"errors"
	"sort"
	"strings"
	"testing"

	apperrors "github.com/goliatone/go-errors"
)

const (
	typeAuction = "auction"
	typeDirect  = "direct"
)

// diamondDefinition builds A→{B,C}, B→D, C→D with every state open to both
// item types.
func diamondDefinition() GraphDefinition[string, string] {
	both := []string{typeAuction, typeDirect}
	return GraphDefinition[string, string]{
		Start:  "A",
		States: []string{"A", "B", "C", "D"},
		Types:  []string{typeAuction, typeDirect},
		Nodes: []NodeDefinition[string, string]{
			{State: "A", AllowedTypes: both, Nexts: []string{"B", "C"}},
			{State: "B", AllowedTypes: both, Nexts: []string{"D"}},
			{State: "C", AllowedTypes: both, Nexts: []string{"D"}},
			{State: "D", AllowedTypes: both},
		},
	}
}

func mustGraph(t *testing.T, def GraphDefinition[string, string]) *Graph[string, string] {
	t.Helper()
	g, err := NewGraph(def)
	if err != nil {
		t.Fatalf("new graph: %v", err)
	}
	return g
}

func TestNewGraphCompilesValidDefinition(t *testing.T) {
	g := mustGraph(t, diamondDefinition())
	if g.Start() != "A" {
		t.Fatalf("expected start A, got %s", g.Start())
	}
	if got := strings.Join(g.States(), ","); got != "A,B,C,D" {
		t.Fatalf("expected declaration order, got %s", got)
	}
	if !g.Has("C") || g.Has("Z") {
		t.Fatalf("unexpected membership")
	}
	if !g.HasType(typeDirect) || g.HasType("other") {
		t.Fatalf("unexpected type membership")
	}
	if !g.Terminal("D", typeAuction) {
		t.Fatalf("expected D to be terminal")
	}
	if g.Terminal("A", typeAuction) {
		t.Fatalf("expected A to have eligible transitions")
	}
}

func TestGraphLookupReturnsCopy(t *testing.T) {
	g := mustGraph(t, diamondDefinition())
	node, err := g.Lookup("A")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	node.Nexts[0] = "Z"
	node.AllowedTypes.Remove(typeAuction)

	again, _ := g.Lookup("A")
	if again.Nexts[0] != "B" || !again.AllowedTypes.Contains(typeAuction) {
		t.Fatalf("expected lookup to hand out copies")
	}

	_, err = g.Lookup("Z")
	if !HasErrorCode(err, ErrCodeUnknownState) {
		t.Fatalf("expected unknown state error, got %v", err)
	}
}

func TestNewGraphReportsIntegrityViolations(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*GraphDefinition[string, string])
		offending []string
		reason    string
	}{
		{
			name: "missing node",
			mutate: func(def *GraphDefinition[string, string]) {
				def.Nodes = def.Nodes[:3]
			},
			offending: []string{"D"},
			reason:    "no node defined",
		},
		{
			name: "transition outside the enumeration",
			mutate: func(def *GraphDefinition[string, string]) {
				def.Nodes[1].Nexts = []string{"D", "E"}
			},
			offending: []string{"B"},
			reason:    "transition to unknown state E",
		},
		{
			name: "duplicate transition",
			mutate: func(def *GraphDefinition[string, string]) {
				def.Nodes[0].Nexts = []string{"B", "C", "B"}
			},
			offending: []string{"A"},
			reason:    "duplicate transition to B",
		},
		{
			name: "unknown item type",
			mutate: func(def *GraphDefinition[string, string]) {
				def.Nodes[2].AllowedTypes = []string{"lease"}
			},
			offending: []string{"C"},
			reason:    "allows unknown item type lease",
		},
		{
			name: "start without node",
			mutate: func(def *GraphDefinition[string, string]) {
				def.Start = "Q"
			},
			offending: []string{"Q"},
			reason:    "start state has no node",
		},
		{
			name: "start closed to an item type",
			mutate: func(def *GraphDefinition[string, string]) {
				def.Nodes[0].AllowedTypes = []string{typeAuction}
			},
			offending: []string{"A"},
			reason:    "start state does not allow item type direct",
		},
		{
			name: "unreachable state",
			mutate: func(def *GraphDefinition[string, string]) {
				def.Nodes[0].Nexts = []string{"B"}
			},
			offending: []string{"C"},
			reason:    "not reachable from start A",
		},
		{
			name: "cycle for one type",
			mutate: func(def *GraphDefinition[string, string]) {
				def.Nodes[3].Nexts = []string{"B"}
			},
			offending: []string{"B"},
			reason:    "closes a cycle",
		},
		{
			name: "node defined twice",
			mutate: func(def *GraphDefinition[string, string]) {
				def.Nodes = append(def.Nodes, NodeDefinition[string, string]{State: "D"})
			},
			offending: []string{"D"},
			reason:    "node defined more than once",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := diamondDefinition()
			tt.mutate(&def)
			_, err := NewGraph(def)
			if err == nil {
				t.Fatalf("expected integrity error")
			}
			if !IsGraphIntegrity(err) {
				t.Fatalf("expected graph integrity code, got %q", ErrorCode(err))
			}
			states := OffendingStates(err)
			sort.Strings(states)
			if strings.Join(states, ",") != strings.Join(tt.offending, ",") {
				t.Fatalf("expected offending states %v, got %v", tt.offending, states)
			}
			if !strings.Contains(errorChain(err), tt.reason) {
				t.Fatalf("expected %q in %s", tt.reason, errorChain(err))
			}
		})
	}
}

func TestNewGraphAllowsCycleOutsideTypeSubgraph(t *testing.T) {
	def := diamondDefinition()
	// D→B only loops for auction items when D and B are both open to them.
	def.Nodes[3].Nexts = []string{"B"}
	def.Nodes[1].AllowedTypes = []string{typeDirect}
	def.Nodes[3].AllowedTypes = []string{typeAuction}
	if _, err := NewGraph(def); err != nil {
		t.Fatalf("expected graph without per-type cycle to compile: %v", err)
	}
}

func TestNewGraphRejectsEmptyDefinition(t *testing.T) {
	_, err := NewGraph(GraphDefinition[string, string]{})
	if !IsGraphIntegrity(err) {
		t.Fatalf("expected integrity error for empty graph, got %v", err)
	}
}

func TestNewGraphCollectsEveryViolation(t *testing.T) {
	def := diamondDefinition()
	def.Nodes[0].Nexts = []string{"B", "X"}
	def.Nodes[2].AllowedTypes = []string{"lease"}
	_, err := NewGraph(def)
	states := OffendingStates(err)
	sort.Strings(states)
	if strings.Join(states, ",") != "A,C" {
		t.Fatalf("expected A and C to be reported together, got %v", states)
	}
}

// errorChain joins the message and source of a go-errors value.
func errorChain(err error) string {
	var ge *apperrors.Error
	if !errors.As(err, &ge) {
		return err.Error()
	}
	if ge.Source == nil {
		return ge.Message
	}
	return ge.Message + " | " + ge.Source.Error()
}
