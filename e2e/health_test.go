package e2e

import (
	"net/http"
	"testing"
)

func TestHealth(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodGet, "/health", "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["status"] != "ok" {
		t.Errorf("expected status ok, got %v", result["status"])
	}
	if result["storage"] != "local" {
		t.Errorf("expected storage local, got %v", result["storage"])
	}
	services, ok := result["services"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected services report, got %v", result["services"])
	}
	for _, name := range []string{"engine", "redis", "auth"} {
		if _, ok := services[name]; !ok {
			t.Errorf("services report missing %q", name)
		}
	}
}

func TestRoot(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodGet, "/", "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["service"] != "voiceforge-api" {
		t.Errorf("expected service name, got %v", result["service"])
	}
	ts, ok := result["timestamp"].(float64)
	if !ok || ts <= 0 {
		t.Errorf("expected a unix timestamp, got %v", result["timestamp"])
	}
}

func TestHealth_NoAuthRequired(t *testing.T) {
	ta := setupApp(t)

	// Health stays reachable without a token; the API group does not.
	resp, err := doRequest(ta.app, http.MethodGet, "/api/queue/status", "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusUnauthorized)
}
