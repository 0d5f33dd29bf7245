package flow

// Resolve finds the shortest path from start to target, walking only into
// states accepted by eligible. The start state itself is not filtered.
// Neighbours are expanded in Nexts order and the
// first discovery of a state wins, so ties resolve deterministically.
//
// An unreachable target is an expected outcome and returns (nil, false).
func Resolve[S, I comparable](g *Graph[S, I], start, target S, eligible Eligibility[S]) ([]S, bool) {
	if g == nil || !g.Has(start) || !g.Has(target) {
		return nil, false
	}
	if eligible == nil {
		eligible = func(S) bool { return true }
	}
	if start == target {
		return []S{start}, true
	}

	parent := map[S]S{}
	visited := map[S]struct{}{start: {}}
	queue := []S{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range g.nexts(cur) {
			if _, seen := visited[next]; seen {
				continue
			}
			if !eligible(next) {
				continue
			}
			visited[next] = struct{}{}
			parent[next] = cur
			if next == target {
				return unwindPath(parent, start, target), true
			}
			queue = append(queue, next)
		}
	}
	return nil, false
}

func unwindPath[S comparable](parent map[S]S, start, target S) []S {
	var rev []S
	for cur := target; ; cur = parent[cur] {
		rev = append(rev, cur)
		if cur == start {
			break
		}
	}
	path := make([]S, len(rev))
	for i, st := range rev {
		path[len(rev)-1-i] = st
	}
	return path
}
