// Package transcript merges raw message batches into the canonical form a
// conversation is rendered from: unique by id, ascending by timestamp.
package transcript

import (
	"sort"

	"github.com/muhammaddzaki123/NutripathBack/internal/models"
)

// Merge combines any number of message batches into a single sequence that is
// unique by message id and sorted ascending by creation time. Entries with
// equal timestamps keep their relative input order, so the result is
// deterministic and Merge(Merge(L)) == Merge(L).
//
// When the same id appears more than once (a realtime delivery overlapping a
// bulk fetch, for example) the first occurrence wins, except that a read flag
// or confirmed status seen on any later copy is kept: both are sticky and
// never flip back.
func Merge(batches ...[]models.Message) []models.Message {
	merged := make([]models.Message, 0)
	index := make(map[string]int)

	for _, batch := range batches {
		for _, message := range batch {
			at, ok := index[message.ID]
			if !ok {
				index[message.ID] = len(merged)
				merged = append(merged, message)
				continue
			}
			if message.IsRead {
				merged[at].IsRead = true
			}
			if message.Status == models.StatusConfirmed {
				merged[at].Status = models.StatusConfirmed
			}
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.Before(merged[j].CreatedAt)
	})

	return merged
}

// Without returns the sequence with the given message id removed. Used to
// drop an optimistic placeholder after its send settles.
func Without(messages []models.Message, id string) []models.Message {
	out := make([]models.Message, 0, len(messages))
	for _, message := range messages {
		if message.ID == id {
			continue
		}
		out = append(out, message)
	}
	return out
}

// Group splits a mixed batch into per-conversation sequences, each in
// canonical merged form. Used by the nutritionist bulk-hydration path.
func Group(messages []models.Message) map[string][]models.Message {
	grouped := make(map[string][]models.Message)
	for _, message := range messages {
		grouped[message.ChatID] = append(grouped[message.ChatID], message)
	}
	for chatID, batch := range grouped {
		grouped[chatID] = Merge(batch)
	}
	return grouped
}
