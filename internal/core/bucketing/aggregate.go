package bucketing

import "sort"

// RankedName is a name with its summed occurrence count across all admitted
// records for one state.
type RankedName struct {
	Name  string
	Total int
}

// Aggregate sums occurrence counts per distinct name across raw record lines,
// admitting only records whose birth year falls inside the closed interval
// [yearFrom, yearTo]. Lines that fail to parse are skipped silently.
//
// Returns the per-name totals ordered by total descending, with ties kept in
// first-seen order so the ranking is deterministic for a given input. The
// second return value is the grand total of every admitted count, reported
// independently of the ranking.
func Aggregate(lines []string, yearFrom, yearTo int) ([]RankedName, int) {
	totals := make(map[string]int)
	var order []string
	grandTotal := 0

	for _, line := range lines {
		rec, ok := ParseRecord(line)
		if !ok {
			continue
		}
		if rec.Year < yearFrom || rec.Year > yearTo {
			continue
		}

		if _, seen := totals[rec.Name]; !seen {
			order = append(order, rec.Name)
		}
		totals[rec.Name] += rec.Count
		grandTotal += rec.Count
	}

	ranked := make([]RankedName, 0, len(order))
	for _, name := range order {
		ranked = append(ranked, RankedName{Name: name, Total: totals[name]})
	}

	// Stable sort over the first-seen ordering keeps tie-breaks deterministic.
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Total > ranked[j].Total
	})

	return ranked, grandTotal
}
