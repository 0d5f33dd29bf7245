package flow

import "fmt"

// Guard decides whether an action may run for a request. Guards back the
// Requires list of an Action, e.g. "consignor_verified".
type Guard[S, I comparable] func(req ActionRequest[S, I]) bool

// GuardRegistry stores named guards.
type GuardRegistry[S, I comparable] struct {
	guards     map[string]Guard[S, I]
	namespacer func(string, string) string
}

// NewGuardRegistry creates an empty registry.
func NewGuardRegistry[S, I comparable]() *GuardRegistry[S, I] {
	return &GuardRegistry[S, I]{
		guards:     make(map[string]Guard[S, I]),
		namespacer: defaultNamespace,
	}
}

// Register stores a guard by name.
func (g *GuardRegistry[S, I]) Register(name string, guard Guard[S, I]) error {
	return g.RegisterNamespaced("", name, guard)
}

// RegisterNamespaced stores a guard using namespace+name.
func (g *GuardRegistry[S, I]) RegisterNamespaced(namespace, name string, guard Guard[S, I]) error {
	if name == "" || guard == nil {
		return fmt.Errorf("guard registration requires a name and a guard")
	}
	if g.guards == nil {
		g.guards = make(map[string]Guard[S, I])
	}
	key := name
	if g.namespacer != nil {
		key = g.namespacer(namespace, name)
	}
	if _, exists := g.guards[key]; exists {
		return fmt.Errorf("guard %s already registered", key)
	}
	g.guards[key] = guard
	return nil
}

// Lookup retrieves a guard by name.
func (g *GuardRegistry[S, I]) Lookup(name string) (Guard[S, I], bool) {
	if g == nil {
		return nil, false
	}
	fn, ok := g.guards[name]
	return fn, ok
}
