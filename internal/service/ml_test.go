package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/timmy/facecheck/internal/config"
	"github.com/timmy/facecheck/internal/domain"
	"github.com/timmy/facecheck/internal/integrity"
)

func newMLTestClient(t *testing.T, handler http.HandlerFunc) *MLClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewMLClient(config.MLConfig{
		BaseURL: srv.URL,
		APIKey:  "secret",
		Timeout: 2 * time.Second,
	})
}

func TestMLClientRegenerateDescriptor(t *testing.T) {
	client := newMLTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != regenerateDescriptor {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		var req regenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.PhotoRef != "photos/1.jpg" || req.BBox.Width != 40 {
			t.Errorf("request = %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"embedding":[0.5,0.25]}`))
	})

	got, err := client.RegenerateDescriptor(context.Background(), "photos/1.jpg", domain.BoundingBox{X: 1, Y: 2, Width: 40, Height: 40})
	if err != nil {
		t.Fatalf("RegenerateDescriptor() error = %v", err)
	}
	if len(got) != 2 || got[0] != 0.5 || got[1] != 0.25 {
		t.Errorf("RegenerateDescriptor() = %v", got)
	}
}

func TestMLClientErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		unavailable bool
	}{
		{name: "server error", status: http.StatusServiceUnavailable, body: `{"error":"warming up"}`, unavailable: true},
		{name: "bad request", status: http.StatusBadRequest, body: `{"error":"bbox out of bounds"}`},
		{name: "empty embedding", status: http.StatusOK, body: `{"embedding":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newMLTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := client.RegenerateDescriptor(context.Background(), "photos/1.jpg", domain.BoundingBox{})
			if err == nil {
				t.Fatal("RegenerateDescriptor() error = nil")
			}
			var unavailable *integrity.CollaboratorUnavailable
			if got := errors.As(err, &unavailable); got != tt.unavailable {
				t.Errorf("CollaboratorUnavailable = %v, want %v (err %v)", got, tt.unavailable, err)
			}
		})
	}
}

func TestMLClientRebuildIndexRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"indexed":12}`))
	}))
	defer srv.Close()

	client := NewMLClient(config.MLConfig{BaseURL: srv.URL, RetryCount: 1, Timeout: 2 * time.Second})
	if err := client.RebuildIndex(context.Background()); err != nil {
		t.Fatalf("RebuildIndex() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestMLClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewMLClient(config.MLConfig{BaseURL: url, Timeout: time.Second})
	err := client.RebuildIndex(context.Background())
	var unavailable *integrity.CollaboratorUnavailable
	if !errors.As(err, &unavailable) {
		t.Fatalf("RebuildIndex() error = %v, want CollaboratorUnavailable", err)
	}
}
