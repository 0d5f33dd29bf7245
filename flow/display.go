package flow

// DisplayStep is a cosmetic step shown after its anchor state. It is layered
// on the resolved sequence only and never takes part in graph traversal.
type DisplayStep[S, I comparable] struct {
	After S
	Label string
	// Types limits the overlay to these item types. Empty means all types.
	Types []I
}

func (d DisplayStep[S, I]) appliesTo(t I) bool {
	if len(d.Types) == 0 {
		return true
	}
	for _, allowed := range d.Types {
		if allowed == t {
			return true
		}
	}
	return false
}

// applyDisplaySteps inserts overlays after their anchors. An overlay counts as
// reached when the real step following its anchor is reached.
func applyDisplaySteps[S, I comparable](steps []Step[S], overlays []DisplayStep[S, I], itemType I) []Step[S] {
	if len(overlays) == 0 {
		return steps
	}
	out := make([]Step[S], 0, len(steps)+len(overlays))
	for i, step := range steps {
		out = append(out, step)
		for _, ov := range overlays {
			if ov.After != step.State || !ov.appliesTo(itemType) {
				continue
			}
			reached := i+1 < len(steps) && steps[i+1].Reached
			out = append(out, Step[S]{
				State:       step.State,
				Label:       ov.Label,
				Reached:     reached,
				DisplayOnly: true,
			})
		}
	}
	return out
}
