package mytradelog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestStateAndActivate(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method + " " + r.URL.Path {
		case "GET /api/state":
			json.NewEncoder(w).Encode(Snapshot{Ready: true, Route: "/accounts/select"})
		case "POST /api/accounts/acc-a/activate":
			json.NewEncoder(w).Encode(Snapshot{
				Ready: true, IsSwitching: true,
				ActiveAccountID: "acc-a", Route: "/journal",
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	c := NewClient(ts.URL)
	ctx := context.Background()

	snap, err := c.State(ctx)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if snap.Route != "/accounts/select" {
		t.Fatalf("route = %q", snap.Route)
	}

	snap, err = c.Activate(ctx, "acc-a")
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if snap.ActiveAccountID != "acc-a" || !snap.IsSwitching {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestErrorResponsesSurfaceMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": "account is archived"})
	}))
	defer ts.Close()

	c := NewClient(ts.URL)
	_, err := c.Activate(context.Background(), "acc-old")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "account is archived") {
		t.Fatalf("error = %q, want archived message", err)
	}
}
