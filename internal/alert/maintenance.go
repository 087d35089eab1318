package alert

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// startMaintenance launches a background goroutine that periodically prunes
// breaches past the retention window.
func (m *Module) startMaintenance() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.cfg.MaintenanceInterval)
		defer ticker.Stop()

		for {
			select {
			case <-m.ctx.Done():
				return
			case <-ticker.C:
				m.runMaintenance()
			}
		}
	}()
}

// runMaintenance executes a single maintenance cycle.
func (m *Module) runMaintenance() {
	if m.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(m.ctx, 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-m.cfg.BreachRetention)
	deleted, err := m.store.DeleteOldBreaches(ctx, cutoff)
	if err != nil {
		m.logger.Warn("failed to delete old breaches", zap.Error(err))
	} else if deleted > 0 {
		m.logger.Info("purged old breaches", zap.Int64("count", deleted))
	}
}
