package flow

// Extend appends the happy-path continuation to path: from the last state it
// keeps taking the first eligible entry of Nexts until none remains. An empty
// path is extended from the graph start. The input slice is not modified.
//
// The result is a forecast for display. The backend decides the real
// transitions.
func Extend[S, I comparable](g *Graph[S, I], path []S, eligible Eligibility[S]) []S {
	out := append([]S(nil), path...)
	if g == nil {
		return out
	}
	if eligible == nil {
		eligible = func(S) bool { return true }
	}
	if len(out) == 0 {
		out = append(out, g.start)
	}

	seen := make(map[S]struct{}, len(out))
	for _, st := range out {
		seen[st] = struct{}{}
	}
	for {
		next, ok := happyNext(g, out[len(out)-1], eligible)
		if !ok {
			return out
		}
		if _, loop := seen[next]; loop {
			return out
		}
		seen[next] = struct{}{}
		out = append(out, next)
	}
}

func happyNext[S, I comparable](g *Graph[S, I], from S, eligible Eligibility[S]) (S, bool) {
	for _, next := range g.nexts(from) {
		if eligible(next) {
			return next, true
		}
	}
	var zero S
	return zero, false
}
