package ledger

import "github.com/kalambet/ivrmap/internal/planner"

// View is the exploration state derived from a loaded leg set.
type View struct {
	// CompletedPaths holds the path of every COMPLETED leg.
	CompletedPaths map[string]bool
	// InProgress is the first IN_PROGRESS leg in canonical order, if any.
	InProgress *Leg
	// NextSuggested is the path the next call should explore. A resumable
	// in-progress leg always beats a freshly planned path: its recorded
	// nextTarget first, its own path second, the planner's suggestion last.
	NextSuggested string
	// Exhausted reports that the planner has no untried path left within
	// the depth bound and NextSuggested is only the fixed fallback.
	Exhausted bool
}

// Derive computes the View for a leg set in one pass.
func Derive(legs []Leg) View {
	v := View{CompletedPaths: make(map[string]bool, len(legs))}

	for i := range legs {
		switch legs[i].Status {
		case StatusCompleted:
			v.CompletedPaths[legs[i].Path] = true
		case StatusInProgress:
			if v.InProgress == nil {
				v.InProgress = &legs[i]
			}
		}
	}

	v.Exhausted = planner.Exhausted(v.CompletedPaths)

	switch {
	case v.InProgress != nil && v.InProgress.NextTarget != "":
		v.NextSuggested = v.InProgress.NextTarget
	case v.InProgress != nil:
		v.NextSuggested = v.InProgress.Path
	default:
		v.NextSuggested = planner.NextPath(v.CompletedPaths)
	}

	return v
}

// MaxLegNumber returns the highest legNumber in legs, or zero for an empty
// set. Producers use it to assign the next sequential leg id.
func MaxLegNumber(legs []Leg) int {
	max := 0
	for _, leg := range legs {
		if leg.LegNumber > max {
			max = leg.LegNumber
		}
	}
	return max
}
