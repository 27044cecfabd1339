package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func embedServer(t *testing.T, status int, embeddings [][]float32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var payload struct {
			Model string `json:"model"`
			Input string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("bad payload: %v", err)
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"embeddings": embeddings})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaEmbedder(t *testing.T) {
	srv := embedServer(t, http.StatusOK, [][]float32{{0.1, 0.2, 0.3}})
	e := NewOllamaEmbedder(srv.URL, "bge-m3", "", nil)

	vec, err := e.Embed(context.Background(), "rust")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 3 || vec[1] != 0.2 {
		t.Errorf("got %v, want [0.1 0.2 0.3]", vec)
	}
}

func TestOllamaEmbedderEmptyResponse(t *testing.T) {
	srv := embedServer(t, http.StatusOK, [][]float32{})
	e := NewOllamaEmbedder(srv.URL, "bge-m3", "", nil)

	if _, err := e.Embed(context.Background(), "rust"); err == nil {
		t.Error("expected error on empty embeddings")
	}
}

func TestOllamaEmbedderThrottled(t *testing.T) {
	srv := embedServer(t, http.StatusTooManyRequests, nil)
	e := NewOllamaEmbedder(srv.URL, "bge-m3", "", nil)

	_, err := e.Embed(context.Background(), "rust")
	if !IsRateLimited(err) {
		t.Errorf("429 should classify as rate limited, got %v", err)
	}
}

type countingEmbedder struct {
	calls int
	vec   []float32
	err   error
}

func (c *countingEmbedder) Embed(context.Context, string) ([]float32, error) {
	c.calls++
	return c.vec, c.err
}

func TestGatewayCachesVectors(t *testing.T) {
	InitCache("", time.Minute, 100, 0)
	inner := &countingEmbedder{vec: []float32{1, 0}}
	g := NewGateway(inner, NewCooldownGate(), CooldownConfig{Interval: time.Millisecond, MaxAttempts: 2}, "test-model", 0)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		vec, err := g.Embed(ctx, "gateway cache probe")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(vec) != 2 {
			t.Fatalf("got %v", vec)
		}
	}
	if inner.calls != 1 {
		t.Errorf("inner embedder called %d times, want 1", inner.calls)
	}
}

func TestGatewayHardError(t *testing.T) {
	InitCache("", time.Minute, 100, 0)
	inner := &countingEmbedder{err: errors.New("model not found")}
	g := NewGateway(inner, NewCooldownGate(), CooldownConfig{Interval: time.Millisecond, MaxAttempts: 3}, "test-model", 0)

	if _, err := g.Embed(context.Background(), "gateway error probe"); err == nil {
		t.Fatal("expected error")
	}
	if inner.calls != 1 {
		t.Errorf("hard error should not retry: %d calls", inner.calls)
	}
}
