package ledger

import (
	"context"
	"sync"
	"time"

	"safetyrelay/pkg/models"
)

// MemoryStore keeps both logs in process. It is used when no database is
// configured and in tests; its contents do not survive a restart.
type MemoryStore struct {
	mu        sync.RWMutex
	delivered map[string]models.DeliveryRecord
	processed map[string]models.ProcessedRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		delivered: make(map[string]models.DeliveryRecord),
		processed: make(map[string]models.ProcessedRecord),
	}
}

func (s *MemoryStore) IsDelivered(_ context.Context, eventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.delivered[eventID]
	return ok, nil
}

func (s *MemoryStore) MarkDelivered(_ context.Context, rec models.DeliveryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered[rec.EventID] = rec
	return nil
}

func (s *MemoryStore) PurgeDeliveredBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, rec := range s.delivered {
		if rec.SentAt.Before(cutoff) {
			delete(s.delivered, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) IsProcessed(_ context.Context, eventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.processed[eventID]
	return ok, nil
}

func (s *MemoryStore) LogProcessed(_ context.Context, rec models.ProcessedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed[rec.EventID] = rec
	return nil
}

func (s *MemoryStore) PurgeProcessedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, rec := range s.processed {
		if rec.DecidedAt.Before(cutoff) {
			delete(s.processed, id)
			n++
		}
	}
	return n, nil
}

// Delivered returns a copy of the delivery ledger.
func (s *MemoryStore) Delivered() map[string]models.DeliveryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]models.DeliveryRecord, len(s.delivered))
	for k, v := range s.delivered {
		out[k] = v
	}
	return out
}

// Processed returns a copy of the audit log.
func (s *MemoryStore) Processed() map[string]models.ProcessedRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]models.ProcessedRecord, len(s.processed))
	for k, v := range s.processed {
		out[k] = v
	}
	return out
}
