package filtering

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safetyrelay/internal/config"
	"safetyrelay/internal/logger"
	"safetyrelay/pkg/models"
)

func TestService_Filter_KeywordsOnly(t *testing.T) {
	svc, err := NewService(config.FilteringConfig{}, logger.NopLogger())
	require.NoError(t, err)

	events := []models.UnifiedEvent{
		{ID: "1", Source: models.SourceSafety, Type: "following_distance"},
		{ID: "2", Source: models.SourceSafety, Type: "harsh_brake"},
		{ID: "3", Source: models.SourceSpeedingInterval, Type: models.TypeSevereSpeeding},
	}

	got := svc.Filter(context.Background(), events)
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[0].ID)
	assert.Equal(t, "3", got[1].ID)
}

func TestService_Rules(t *testing.T) {
	cfg := config.FilteringConfig{
		Rules: []config.FilterRule{
			{Name: "no_yard", Expression: `!vehicle_name.startsWith("YARD")`},
		},
	}
	svc, err := NewService(cfg, logger.NopLogger())
	require.NoError(t, err)
	assert.Equal(t, 1, svc.RuleCount())

	ctx := context.Background()
	assert.False(t, svc.Accept(ctx, models.UnifiedEvent{ID: "1", Source: models.SourceSafety, Type: "harsh_brake", VehicleName: "YARD 1"}))
	assert.True(t, svc.Accept(ctx, models.UnifiedEvent{ID: "2", Source: models.SourceSafety, Type: "harsh_brake", VehicleName: "Truck 1"}))
}

func TestService_RuleErrorFallback(t *testing.T) {
	expr := `double(details.max_speed_mph) > 10.0`
	ev := models.UnifiedEvent{ID: "1", Source: models.SourceSafety, Type: "harsh_brake"}

	allow, err := NewService(config.FilteringConfig{
		Rules:    []config.FilterRule{{Expression: expr}},
		Fallback: config.FallbackConfig{OnError: "allow"},
	}, logger.NopLogger())
	require.NoError(t, err)
	assert.True(t, allow.Accept(context.Background(), ev))

	deny, err := NewService(config.FilteringConfig{
		Rules:    []config.FilterRule{{Expression: expr}},
		Fallback: config.FallbackConfig{OnError: "deny"},
	}, logger.NopLogger())
	require.NoError(t, err)
	assert.False(t, deny.Accept(context.Background(), ev))
}

func TestNewService_BadRule(t *testing.T) {
	_, err := NewService(config.FilteringConfig{
		Rules: []config.FilterRule{{Name: "bad", Expression: `vehicle_name`}},
	}, logger.NopLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
}
