package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newStubDaemon(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	})
	mux.HandleFunc("GET /api/devices", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(DeviceList{Pending: []Device{{RequestID: "req-1"}}})
	})
	mux.HandleFunc("POST /api/devices/approve", func(w http.ResponseWriter, r *http.Request) {
		var req ApproveRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(ApproveResult{Approved: req.IDs})
	})
	mux.HandleFunc("POST /api/sync", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "sandbox unreachable"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientRoundTrips(t *testing.T) {
	srv := newStubDaemon(t)
	c := New(Config{BaseURL: srv.URL + "/api"})
	ctx := context.Background()

	if !c.IsReachable(ctx) {
		t.Fatal("expected daemon to be reachable")
	}

	list, err := c.ListDevices(ctx)
	if err != nil {
		t.Fatalf("list devices: %v", err)
	}
	if len(list.Pending) != 1 || list.Pending[0].RequestID != "req-1" {
		t.Fatalf("unexpected list: %+v", list)
	}

	res, err := c.ApproveDevices(ctx, ApproveRequest{IDs: []string{"req-1"}})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if len(res.Approved) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestClientSurfacesAPIErrors(t *testing.T) {
	srv := newStubDaemon(t)
	c := New(Config{BaseURL: srv.URL + "/api"})

	_, err := c.Sync(context.Background())
	if err == nil || err.Error() != "API error: sandbox unreachable" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClientUnreachable(t *testing.T) {
	c := New(Config{BaseURL: "http://127.0.0.1:1/api", Logger: nil})
	if c.IsReachable(context.Background()) {
		t.Fatal("expected unreachable daemon")
	}
}
