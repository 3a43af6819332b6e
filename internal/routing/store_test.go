package routing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"safetyrelay/internal/logger"
	"safetyrelay/pkg/models"
)

type brokenStore struct{}

func (brokenStore) FindByVehicleName(context.Context, string) (*models.Destination, error) {
	return nil, errors.New("mongo timeout")
}

func (brokenStore) FindByID(context.Context, int64) (*models.Destination, error) {
	return nil, errors.New("mongo timeout")
}

func TestRouter_Resolve(t *testing.T) {
	store := NewMemoryStore(
		models.Destination{ChatID: -1001, VehicleName: "Truck 7", Mention: "@dispatch_north"},
		models.Destination{ChatID: -2000, Label: "Safety team"},
	)

	tests := []struct {
		name      string
		store     Store
		defaultID int64
		vehicle   string
		wantOK    bool
		wantChat  int64
		wantLabel string
	}{
		{name: "vehicle route, case-insensitive", store: store, defaultID: -2000, vehicle: "truck 7", wantOK: true, wantChat: -1001},
		{name: "default route from store", store: store, defaultID: -2000, vehicle: "Truck 9", wantOK: true, wantChat: -2000, wantLabel: "Safety team"},
		{name: "default route not in store", store: store, defaultID: -3000, vehicle: "", wantOK: true, wantChat: -3000},
		{name: "no route at all", store: store, defaultID: 0, vehicle: "Truck 9", wantOK: false},
		{name: "store error degrades to default", store: brokenStore{}, defaultID: -2000, vehicle: "Truck 7", wantOK: true, wantChat: -2000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRouter(tt.store, tt.defaultID, logger.NopLogger())
			dest, ok := r.Resolve(context.Background(), tt.vehicle)

			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.wantChat, dest.ChatID)
				assert.Equal(t, tt.wantLabel, dest.Label)
			}
		})
	}
}
