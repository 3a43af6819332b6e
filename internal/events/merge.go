package events

import (
	"sort"

	"safetyrelay/pkg/models"
)

// Merge concatenates the safety and speeding batches, keeps the first event
// seen for each id and returns them in ascending occurrence order. Events
// without an id cannot be deduplicated; they are dropped and counted.
func Merge(safety, speeding []models.UnifiedEvent) (merged []models.UnifiedEvent, unkeyed int) {
	seen := make(map[string]struct{}, len(safety)+len(speeding))
	merged = make([]models.UnifiedEvent, 0, len(safety)+len(speeding))

	for _, batch := range [][]models.UnifiedEvent{safety, speeding} {
		for _, ev := range batch {
			if ev.ID == "" {
				unkeyed++
				continue
			}
			if _, dup := seen[ev.ID]; dup {
				continue
			}
			seen[ev.ID] = struct{}{}
			merged = append(merged, ev)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].OccurredAt.Before(merged[j].OccurredAt)
	})
	return merged, unkeyed
}
