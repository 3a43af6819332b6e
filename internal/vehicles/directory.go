// Package vehicles keeps the fleet roster used to scope interval queries
// and to label events.
package vehicles

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"safetyrelay/internal/config"
	"safetyrelay/internal/logger"
	"safetyrelay/pkg/metrics"
	"safetyrelay/pkg/models"
)

const defaultCacheTTL = 10 * time.Minute

// Source is where the live roster comes from.
type Source interface {
	FetchVehicles(ctx context.Context) ([]models.Vehicle, error)
}

// SharedCache holds the roster across restarts and replicas. Optional.
type SharedCache interface {
	Load(ctx context.Context) ([]models.Vehicle, error)
	Store(ctx context.Context, roster []models.Vehicle, ttl time.Duration) error
}

// Directory is a TTL cache over the fleet roster. Refreshes replace the
// whole roster at once, so readers never see a partial update.
type Directory struct {
	source    Source
	shared    SharedCache
	ttl       time.Duration
	sharedTTL time.Duration
	overrides []models.Vehicle
	logger    logger.Logger
	now       func() time.Time

	mu        sync.RWMutex
	roster    []models.Vehicle
	names     map[string]string
	fetchedAt time.Time
}

type Option func(*Directory)

func WithSharedCache(c SharedCache) Option {
	return func(d *Directory) { d.shared = c }
}

func WithClock(now func() time.Time) Option {
	return func(d *Directory) { d.now = now }
}

func NewDirectory(source Source, cfg config.VehiclesConfig, log logger.Logger, opts ...Option) *Directory {
	d := &Directory{
		source:    source,
		ttl:       cfg.CacheTTL,
		sharedTTL: cfg.SharedTTL,
		logger:    log,
		now:       time.Now,
	}
	if d.ttl <= 0 {
		d.ttl = defaultCacheTTL
	}
	if d.sharedTTL <= 0 {
		d.sharedTTL = d.ttl
	}
	for _, o := range cfg.Overrides {
		if o.ID == "" {
			continue
		}
		name := o.Name
		if name == "" {
			name = o.ID
		}
		d.overrides = append(d.overrides, models.Vehicle{ID: o.ID, Name: name})
	}
	for _, opt := range opts {
		opt(d)
	}
	if len(d.overrides) > 0 {
		d.replace(d.overrides)
	}
	return d
}

// Get returns the roster, refreshing it when the cache has expired. When a
// refresh fails and an older roster exists, the stale roster is returned.
func (d *Directory) Get(ctx context.Context) ([]models.Vehicle, error) {
	if len(d.overrides) > 0 {
		return d.snapshot(), nil
	}

	d.mu.RLock()
	fresh := !d.fetchedAt.IsZero() && d.now().Sub(d.fetchedAt) < d.ttl
	d.mu.RUnlock()
	if fresh {
		return d.snapshot(), nil
	}

	if err := d.Refresh(ctx); err != nil {
		stale := d.snapshot()
		if len(stale) == 0 {
			return nil, err
		}
		d.logger.WarnwCtx(ctx, "Vehicle roster refresh failed, serving stale roster",
			"error", err,
			"vehicles", len(stale),
		)
		return stale, nil
	}
	return d.snapshot(), nil
}

// Refresh reloads the roster from the shared cache or, failing that, from
// the live source.
func (d *Directory) Refresh(ctx context.Context) error {
	if len(d.overrides) > 0 {
		return nil
	}

	if d.shared != nil {
		roster, err := d.shared.Load(ctx)
		if err != nil {
			d.logger.WarnwCtx(ctx, "Shared roster cache read failed", "error", err)
		} else if len(roster) > 0 {
			d.replace(roster)
			return nil
		}
	}

	roster, err := d.source.FetchVehicles(ctx)
	if err != nil {
		return fmt.Errorf("fetch vehicles: %w", err)
	}
	d.replace(roster)

	if d.shared != nil && len(roster) > 0 {
		if err := d.shared.Store(ctx, roster, d.sharedTTL); err != nil {
			d.logger.WarnwCtx(ctx, "Shared roster cache write failed", "error", err)
		}
	}
	return nil
}

// IDs returns the roster ids in a stable order.
func (d *Directory) IDs(ctx context.Context) ([]string, error) {
	roster, err := d.Get(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(roster))
	for _, v := range roster {
		ids = append(ids, v.ID)
	}
	sort.Strings(ids)
	return ids, nil
}

// NameFor resolves a display name from the cached roster. It never calls
// upstream; an unknown id yields "".
func (d *Directory) NameFor(assetID string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.names[assetID]
}

func (d *Directory) replace(roster []models.Vehicle) {
	names := make(map[string]string, len(roster))
	cp := make([]models.Vehicle, 0, len(roster))
	for _, v := range roster {
		if v.ID == "" {
			continue
		}
		cp = append(cp, v)
		names[v.ID] = v.Name
	}

	d.mu.Lock()
	d.roster = cp
	d.names = names
	d.fetchedAt = d.now()
	d.mu.Unlock()

	metrics.SetVehicleRosterSize(len(cp))
}

func (d *Directory) snapshot() []models.Vehicle {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.Vehicle, len(d.roster))
	copy(out, d.roster)
	return out
}
