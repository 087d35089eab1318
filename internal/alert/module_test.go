package alert

import (
	"context"
	"testing"

	"github.com/HerbHall/driftwatch/pkg/plugin"
	"github.com/HerbHall/driftwatch/pkg/plugin/plugintest"
)

func TestContract(t *testing.T) {
	plugintest.TestPluginContract(t, func() plugin.Plugin { return New() })
}

func TestHealth(t *testing.T) {
	m := newTestModule(t, nil)
	createAlert(t, m, thresholdAlertBody("cpu high", 50))

	h := m.Health(context.Background())
	if h.Status != "healthy" {
		t.Errorf("Status = %q, want healthy", h.Status)
	}
	if h.Details["alerts_configured"] != "1" {
		t.Errorf("alerts_configured = %q, want 1", h.Details["alerts_configured"])
	}
	if h.Details["detector_kinds"] == "" {
		t.Error("detector_kinds detail missing")
	}
}

func TestRoutes_Declared(t *testing.T) {
	m := New()
	routes := m.Routes()
	if len(routes) == 0 {
		t.Fatal("Routes() returned none")
	}

	seen := make(map[string]bool)
	for _, r := range routes {
		seen[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"POST /alerts",
		"GET /alerts",
		"POST /alerts/{id}/evaluate",
		"POST /alerts/{id}/breach-points",
		"POST /evaluate",
		"GET /breaches",
	} {
		if !seen[want] {
			t.Errorf("Routes() missing %q", want)
		}
	}
}
