package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/query-triage/internal/classifier"
	"github.com/spec-kit/query-triage/internal/observability"
)

// CatalogReloader refreshes the active category catalog.
type CatalogReloader interface {
	Reload() (*classifier.Catalog, error)
}

// StartCatalogRefresher reloads the catalog every interval until ctx is done.
// A failed reload keeps the previous catalog. The returned func blocks until
// the refresher has stopped.
func StartCatalogRefresher(ctx context.Context, reloader CatalogReloader, interval time.Duration, metrics *observability.Metrics, logger *zap.Logger) func() {
	if interval <= 0 || reloader == nil {
		return func() {}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		logger.Info("catalog refresher started", zap.Duration("interval", interval))
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_, err := reloader.Reload()
				metrics.RecordCatalogReload(err == nil)
			}
		}
	}()
	return wg.Wait
}
