package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"safetyrelay/pkg/models"
)

func TestMerge_DedupFirstWinsAndSorted(t *testing.T) {
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	safety := []models.UnifiedEvent{
		{ID: "b", Type: "first-b", OccurredAt: base.Add(2 * time.Minute)},
		{ID: "a", Type: "first-a", OccurredAt: base.Add(3 * time.Minute)},
		{ID: "b", Type: "second-b", OccurredAt: base},
	}
	speeding := []models.UnifiedEvent{
		{ID: "c", Type: "first-c", OccurredAt: base.Add(time.Minute)},
		{ID: "a", Type: "second-a", OccurredAt: base},
		{ID: "", Type: "no id", OccurredAt: base},
	}

	merged, unkeyed := Merge(safety, speeding)
	assert.Equal(t, 1, unkeyed)

	ids := make([]string, 0, len(merged))
	for _, ev := range merged {
		ids = append(ids, ev.ID)
		assert.Contains(t, ev.Type, "first-")
	}
	assert.Equal(t, []string{"c", "b", "a"}, ids)
}

func TestMerge_StableForEqualTimes(t *testing.T) {
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	merged, unkeyed := Merge(
		[]models.UnifiedEvent{{ID: "x", OccurredAt: ts}, {ID: "y", OccurredAt: ts}},
		[]models.UnifiedEvent{{ID: "z", OccurredAt: ts}},
	)
	assert.Zero(t, unkeyed)
	assert.Equal(t, "x", merged[0].ID)
	assert.Equal(t, "y", merged[1].ID)
	assert.Equal(t, "z", merged[2].ID)
}

func TestMerge_Empty(t *testing.T) {
	merged, unkeyed := Merge(nil, nil)
	assert.Empty(t, merged)
	assert.Zero(t, unkeyed)
}
