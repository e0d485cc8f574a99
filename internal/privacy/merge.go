package privacy

import "sort"

// Overlaps reports whether two spans share at least one byte: either start
// falls inside the other span, either end does, or one contains the other.
func Overlaps(a, b Match) bool {
	return a.StartIndex < b.EndIndex && b.StartIndex < a.EndIndex
}

// Merge combines structural matches with matches from a secondary source.
// Every primary match is kept unchanged; a secondary match is accepted only
// when it overlaps nothing accepted so far. The result is sorted by start.
func Merge(primary, secondary []Match) []Match {
	merged := make([]Match, 0, len(primary)+len(secondary))
	merged = append(merged, primary...)

	for _, candidate := range secondary {
		if overlapsAny(merged, candidate) {
			continue
		}
		merged = append(merged, candidate)
	}

	sortByStart(merged)
	return merged
}

// Resolve de-overlaps a single match set: the earliest start wins, and on an
// equal start the longer span wins. Remaining ties keep input order.
func Resolve(matches []Match) []Match {
	if len(matches) == 0 {
		return nil
	}

	ordered := make([]Match, len(matches))
	copy(ordered, matches)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].StartIndex != ordered[j].StartIndex {
			return ordered[i].StartIndex < ordered[j].StartIndex
		}
		return ordered[i].Len() > ordered[j].Len()
	})

	resolved := ordered[:1]
	for _, m := range ordered[1:] {
		// Kept spans are disjoint and sorted, so only the last one can overlap
		if Overlaps(resolved[len(resolved)-1], m) {
			continue
		}
		resolved = append(resolved, m)
	}
	return resolved
}

func overlapsAny(accepted []Match, candidate Match) bool {
	for _, m := range accepted {
		if Overlaps(m, candidate) {
			return true
		}
	}
	return false
}

func sortByStart(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].StartIndex < matches[j].StartIndex
	})
}
