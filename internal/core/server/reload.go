package server

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/solatis/itemfilter/internal/core/logging"
	"github.com/solatis/itemfilter/internal/filter"
	"go.uber.org/zap"
)

// FilterLoader reads the persisted filter set. Implemented by *db.FilterStore.
type FilterLoader interface {
	LoadAll(ctx context.Context) ([]*filter.Filter, error)
}

// Reloader refreshes a catalog from storage on a cron schedule so that
// several instances sharing a database converge on the same filters.
type Reloader struct {
	cron    *cron.Cron
	loader  FilterLoader
	catalog *filter.Catalog
	timeout time.Duration
	logger  *zap.Logger
}

// NewReloader schedules Reload using a standard cron spec or descriptor
// such as "@every 1m".
func NewReloader(schedule string, loader FilterLoader, catalog *filter.Catalog, timeout time.Duration, logger *zap.Logger) (*Reloader, error) {
	r := &Reloader{
		cron:    cron.New(),
		loader:  loader,
		catalog: catalog,
		timeout: timeout,
		logger:  logging.OrNop(logger),
	}
	_, err := r.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if err := r.Reload(ctx); err != nil {
			r.logger.Warn("filter reload failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid reload schedule %q: %w", schedule, err)
	}
	return r, nil
}

// Reload replaces the catalog with the stored filters. The snapshot is read
// under the catalog's edit lock so it cannot predate an edit that is
// published before it. On error the catalog keeps its current contents.
func (r *Reloader) Reload(ctx context.Context) error {
	var count int
	err := r.catalog.Edit(func() error {
		filters, err := r.loader.LoadAll(ctx)
		if err != nil {
			return err
		}
		count = len(filters)
		return r.catalog.Replace(filters)
	})
	if err != nil {
		return err
	}
	r.logger.Debug("filters reloaded", zap.Int("count", count))
	return nil
}

// Start runs the schedule in the background.
func (r *Reloader) Start() {
	r.cron.Start()
}

// Stop halts the schedule and waits for a running reload.
func (r *Reloader) Stop(ctx context.Context) error {
	select {
	case <-r.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
