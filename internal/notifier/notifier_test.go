package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestNotify_PostsRequestIDAsJSON(t *testing.T) {
	var calls atomic.Int32
	var received payload

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(srv.URL, 5*time.Second)
	if err := n.Notify(context.Background(), "req-42"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected exactly one delivery, got %d", calls.Load())
	}
	if received.RequestID != "req-42" {
		t.Errorf("expected request id req-42, got %q", received.RequestID)
	}
}

func TestNotify_NonSuccessStatusIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := New(srv.URL, 5*time.Second)
	if err := n.Notify(context.Background(), "req-42"); err == nil {
		t.Fatal("expected error for 502 response")
	}
}

func TestNotify_UnreachableEndpointIsAnErrorNotAPanic(t *testing.T) {
	n := New("http://127.0.0.1:1/webhook", 500*time.Millisecond)
	if err := n.Notify(context.Background(), "req-42"); err == nil {
		t.Fatal("expected error for unreachable endpoint")
	}
}
