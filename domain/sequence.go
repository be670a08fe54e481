package domain

import (
	"slices"

	"github.com/samber/lo"
)

// ReduceSnapshot rebuilds the whole ordered sequence from one snapshot.
// Previous local state is never merged in: applying the same snapshot twice,
// or an older one after a newer one, always yields the snapshot's own order.
// Entries sharing an ID are the same message delivered twice and collapse to one.
func ReduceSnapshot(snapshot []Message) []Message {
	sequence := lo.UniqBy(snapshot, func(m Message) string {
		return m.ID
	})
	slices.SortStableFunc(sequence, Compare)
	return sequence
}
