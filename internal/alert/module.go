// Package alert implements the Alert module: persisted detector
// configurations, on-demand evaluation of submitted series, and a breach
// log. Detection itself lives in pkg/detect; this module is the service
// surface around it.
package alert

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/HerbHall/driftwatch/pkg/detect"
	"github.com/HerbHall/driftwatch/pkg/plugin"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin        = (*Module)(nil)
	_ plugin.HTTPProvider  = (*Module)(nil)
	_ plugin.HealthChecker = (*Module)(nil)
)

// Module implements the Alert plugin.
type Module struct {
	logger   *zap.Logger
	cfg      ModuleConfig
	store    *Store
	bus      plugin.EventBus
	registry *detect.Registry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Alert plugin instance.
func New() *Module {
	return &Module{registry: detect.Default()}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "alert",
		Version:     "0.1.0",
		Description: "Alert configuration, series evaluation, and breach history",
		Roles:       []string{"evaluation"},
		Required:    true,
		APIVersion:  plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(_ context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger

	m.cfg = DefaultConfig()
	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&m.cfg); err != nil {
			return fmt.Errorf("unmarshal alert config: %w", err)
		}
	}

	if deps.Store != nil {
		if err := deps.Store.Migrate(context.Background(), "alert", migrations()); err != nil {
			return fmt.Errorf("alert migrations: %w", err)
		}
		m.store = NewStore(deps.Store.DB())
	}

	m.bus = deps.Bus

	if !m.registry.Has(detect.KindIsolationForest) {
		m.logger.Warn("outlier-model detectors not linked in this build",
			zap.Strings("available", kindsAsStrings(m.registry.Kinds())),
		)
	}

	m.logger.Info("alert module initialized",
		zap.Duration("breach_retention", m.cfg.BreachRetention),
		zap.Duration("maintenance_interval", m.cfg.MaintenanceInterval),
		zap.Int("max_data_points", m.cfg.MaxDataPoints),
	)
	return nil
}

func (m *Module) Start(_ context.Context) error {
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.startMaintenance()
	m.logger.Info("alert module started")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.logger.Info("alert module stopped")
	return nil
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(ctx context.Context) plugin.HealthStatus {
	details := map[string]string{
		"detector_kinds": strconv.Itoa(len(m.registry.Kinds())),
	}

	if m.store != nil {
		alerts, err := m.store.ListAlerts(ctx)
		if err != nil {
			return plugin.HealthStatus{
				Status:  "degraded",
				Message: "alert store unavailable",
				Details: details,
			}
		}
		details["alerts_configured"] = strconv.Itoa(len(alerts))
	}

	return plugin.HealthStatus{
		Status:  "healthy",
		Details: details,
	}
}

// validateConfig walks the detector tree and constructs every leaf, so a
// bad configuration is rejected at write time rather than surfacing on the
// first evaluation.
func (m *Module) validateConfig(cfg detect.AlertConfig) error {
	for _, node := range cfg.Groups {
		if err := m.validateNode(node); err != nil {
			return err
		}
	}
	return nil
}

func (m *Module) validateNode(node detect.Node) error {
	switch {
	case node.Group != nil:
		for _, child := range node.Group.Detectors {
			if err := m.validateNode(child); err != nil {
				return err
			}
		}
		return nil
	case node.Leaf != nil:
		_, err := m.registry.Detector(*node.Leaf)
		return err
	default:
		return nil
	}
}

func kindsAsStrings(kinds []detect.Kind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}
