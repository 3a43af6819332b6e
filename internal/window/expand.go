package window

import (
	"context"
	"time"
)

// Attempt records one query made during an expanding search.
type Attempt struct {
	Window  Window
	Delta   time.Duration
	Records int
	Err     error
}

// SearchResult is the outcome of Expand. Records holds the first non-empty
// result, or nil when every attempt came back empty.
type SearchResult[T any] struct {
	Records  []T
	Window   Window
	Attempts []Attempt
}

func (r SearchResult[T]) Found() bool {
	return len(r.Records) > 0
}

// Expand queries base and then base widened by each delta in turn, stopping
// at the first query that returns records. A failed query counts as empty
// and the search continues. Deltas are absolute offsets from base, not
// cumulative.
func Expand[T any](ctx context.Context, base Window, deltas []time.Duration, query func(context.Context, Window) ([]T, error)) SearchResult[T] {
	if deltas == nil {
		deltas = DefaultExpansion
	}

	steps := append([]time.Duration{0}, deltas...)
	result := SearchResult[T]{Attempts: make([]Attempt, 0, len(steps))}

	for _, delta := range steps {
		if ctx.Err() != nil {
			break
		}

		w := base.Widen(delta)
		records, err := query(ctx, w)
		result.Attempts = append(result.Attempts, Attempt{Window: w, Delta: delta, Records: len(records), Err: err})

		if err == nil && len(records) > 0 {
			result.Records = records
			result.Window = w
			return result
		}
	}

	return result
}
