// Package routing maps vehicles to the chats their alerts go to.
package routing

import (
	"context"
	"strings"
	"sync"

	"safetyrelay/internal/logger"
	"safetyrelay/pkg/models"
)

// Store looks up destinations. A nil destination with a nil error means
// no route exists.
type Store interface {
	FindByVehicleName(ctx context.Context, name string) (*models.Destination, error)
	FindByID(ctx context.Context, chatID int64) (*models.Destination, error)
}

// Router resolves the destination for an event, falling back to the
// configured default chat when the vehicle has no route of its own.
type Router struct {
	store         Store
	defaultChatID int64
	logger        logger.Logger
}

func NewRouter(store Store, defaultChatID int64, log logger.Logger) *Router {
	return &Router{store: store, defaultChatID: defaultChatID, logger: log}
}

// Resolve returns false when neither a vehicle route nor a default exists.
// Store errors degrade to the default route.
func (r *Router) Resolve(ctx context.Context, vehicleName string) (models.Destination, bool) {
	if r.store != nil && strings.TrimSpace(vehicleName) != "" {
		dest, err := r.store.FindByVehicleName(ctx, vehicleName)
		switch {
		case err != nil:
			r.logger.WarnwCtx(ctx, "Route lookup failed, using default destination",
				"vehicle_name", vehicleName,
				"error", err,
			)
		case dest != nil:
			return *dest, true
		}
	}

	if r.defaultChatID == 0 {
		return models.Destination{}, false
	}

	if r.store != nil {
		if dest, err := r.store.FindByID(ctx, r.defaultChatID); err == nil && dest != nil {
			return *dest, true
		}
	}
	return models.Destination{ChatID: r.defaultChatID, VehicleName: vehicleName}, true
}

// MemoryStore is a fixed routing table.
type MemoryStore struct {
	mu     sync.RWMutex
	byName map[string]models.Destination
	byID   map[int64]models.Destination
}

func NewMemoryStore(routes ...models.Destination) *MemoryStore {
	s := &MemoryStore{byName: map[string]models.Destination{}, byID: map[int64]models.Destination{}}
	for _, d := range routes {
		s.Put(d)
	}
	return s
}

func (s *MemoryStore) Put(d models.Destination) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.VehicleName != "" {
		s.byName[strings.ToLower(d.VehicleName)] = d
	}
	s.byID[d.ChatID] = d
}

func (s *MemoryStore) FindByVehicleName(_ context.Context, name string) (*models.Destination, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d, ok := s.byName[strings.ToLower(strings.TrimSpace(name))]; ok {
		return &d, nil
	}
	return nil, nil
}

func (s *MemoryStore) FindByID(_ context.Context, chatID int64) (*models.Destination, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d, ok := s.byID[chatID]; ok {
		return &d, nil
	}
	return nil, nil
}
