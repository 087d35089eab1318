package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/HerbHall/driftwatch/internal/alert"
	"github.com/HerbHall/driftwatch/pkg/plugin"
	"github.com/HerbHall/driftwatch/pkg/plugin/plugintest"
	"go.uber.org/zap"
)

func TestContract(t *testing.T) {
	plugintest.TestPluginContract(t, func() plugin.Plugin { return New() })
}

// testConfig is a minimal plugin.Config backed by a map.
type testConfig struct {
	values map[string]any
}

func (c *testConfig) Unmarshal(target any) error { return nil }
func (c *testConfig) Get(key string) any         { return c.values[key] }

func (c *testConfig) GetString(key string) string {
	if v, ok := c.values[key].(string); ok {
		return v
	}
	return ""
}

func (c *testConfig) GetInt(key string) int {
	if v, ok := c.values[key].(int); ok {
		return v
	}
	return 0
}

func (c *testConfig) GetBool(key string) bool {
	if v, ok := c.values[key].(bool); ok {
		return v
	}
	return false
}

func (c *testConfig) GetDuration(key string) time.Duration {
	if v, ok := c.values[key].(time.Duration); ok {
		return v
	}
	return 0
}

func (c *testConfig) IsSet(key string) bool {
	_, ok := c.values[key]
	return ok
}

func (c *testConfig) Sub(key string) plugin.Config { return nil }

func initModule(t *testing.T, values map[string]any) *Module {
	t.Helper()
	m := New()
	deps := plugin.Dependencies{
		Logger: zap.NewNop(),
		Config: &testConfig{values: values},
	}
	if err := m.Init(context.Background(), deps); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return m
}

func TestSubscriptions_ReturnsBreachTopic(t *testing.T) {
	m := initModule(t, map[string]any{"url": "http://example.com/hook"})

	subs := m.Subscriptions()
	if len(subs) != 1 {
		t.Fatalf("expected 1 subscription, got %d", len(subs))
	}
	if subs[0].Topic != alert.TopicBreachDetected {
		t.Errorf("expected topic %q, got %q", alert.TopicBreachDetected, subs[0].Topic)
	}
	if subs[0].Handler == nil {
		t.Error("subscription handler is nil")
	}
}

func TestHandleEvent_DeliversWebhook(t *testing.T) {
	received := make(chan *http.Request, 1)
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		received <- r
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := initModule(t, map[string]any{"url": srv.URL})

	event := plugin.Event{
		Topic:     alert.TopicBreachDetected,
		Source:    "alert",
		Timestamp: time.Now(),
		Payload: alert.BreachEvent{
			AlertID:   "a1",
			AlertName: "cpu high",
			Label:     "cpu.usage",
			Message:   "value 97 above threshold 90",
		},
	}
	m.handleEvent(context.Background(), event)

	select {
	case r := <-received:
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected Content-Type application/json, got %q", ct)
		}
		if ua := r.Header.Get("User-Agent"); ua != "Driftwatch-Notify/0.1" {
			t.Errorf("expected User-Agent Driftwatch-Notify/0.1, got %q", ua)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("webhook was not delivered")
	}

	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("invalid payload JSON: %v", err)
	}
	if payload.Event != alert.TopicBreachDetected {
		t.Errorf("expected event %q, got %q", alert.TopicBreachDetected, payload.Event)
	}
	if payload.Source != "alert" {
		t.Errorf("expected source alert, got %q", payload.Source)
	}
	data, ok := payload.Data.(map[string]any)
	if !ok {
		t.Fatalf("expected data object, got %T", payload.Data)
	}
	if data["alert_name"] != "cpu high" {
		t.Errorf("expected alert_name 'cpu high', got %v", data["alert_name"])
	}
}

func TestHandleEvent_SkipsWhenDisabled(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	m := initModule(t, map[string]any{"url": srv.URL, "enabled": false})
	m.handleEvent(context.Background(), plugin.Event{Topic: alert.TopicBreachDetected})

	if called {
		t.Error("webhook should not be called when disabled")
	}
}

func TestHandleEvent_SkipsWhenNoURL(t *testing.T) {
	m := initModule(t, map[string]any{})
	// Must not panic or attempt delivery.
	m.handleEvent(context.Background(), plugin.Event{Topic: alert.TopicBreachDetected})
}

func TestHandleEvent_ToleratesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := initModule(t, map[string]any{"url": srv.URL})
	// Delivery failure is logged, not returned.
	m.handleEvent(context.Background(), plugin.Event{Topic: alert.TopicBreachDetected})
}

func TestInit_Defaults(t *testing.T) {
	m := initModule(t, map[string]any{"url": "http://example.com"})
	if m.cfg.Timeout != 10*time.Second {
		t.Errorf("expected default timeout 10s, got %v", m.cfg.Timeout)
	}
	if !m.cfg.Enabled {
		t.Error("expected enabled by default")
	}

	m = initModule(t, map[string]any{
		"url":     "http://example.com",
		"timeout": 3 * time.Second,
	})
	if m.cfg.Timeout != 3*time.Second {
		t.Errorf("expected timeout 3s, got %v", m.cfg.Timeout)
	}
}
