// Package novelty decides which extracted records have not been seen before.
//
// Novelty is judged by lexicographic comparison of record IDs against the
// persisted cursor. That is a total-order proxy for recency: it holds only
// while the upstream site issues fixed-width, string-sortable identifiers,
// which is a documented precondition on the source, not something this
// package verifies.
package novelty

import (
	"sort"

	"postwatch/internal/scrape"
)

// Filter classifies candidates against the cursor and returns the new
// records together with the advanced cursor.
//
// Candidates are first sorted ascending by timestamp so notifications go out
// in approximate chronological order; the sort never changes which records
// are selected. A record is new when the cursor is empty (first-ever run
// notifies the whole backlog) or its ID orders strictly after the
// cursor. The returned cursor is the maximum of the old cursor and all new
// IDs, so it never decreases and stays unchanged when nothing is new.
func Filter(cursor string, candidates []scrape.Record) ([]scrape.Record, string) {
	sorted := make([]scrape.Record, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	var fresh []scrape.Record
	updated := cursor

	for _, rec := range sorted {
		if cursor != "" && rec.ID <= cursor {
			continue
		}
		fresh = append(fresh, rec)
		if rec.ID > updated {
			updated = rec.ID
		}
	}

	return fresh, updated
}
