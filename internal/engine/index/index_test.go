package index

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/noahgsolomon/peerscout/internal/engine"
	"github.com/noahgsolomon/peerscout/internal/engine/rank"
)

// memStore is an in-memory EntryStore that fails on duplicate inserts, the
// same way the database's primary key would.
type memStore struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string]*Entry)}
}

func key(sig rank.Signal, value string) string { return string(sig) + "\x00" + value }

func (s *memStore) GetEntry(_ context.Context, sig rank.Signal, value string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key(sig, value)]
	if !ok {
		return nil, engine.ErrNotFound
	}
	cp := *e
	cp.MemberIDs = append([]string(nil), e.MemberIDs...)
	return &cp, nil
}

func (s *memStore) InsertEntry(_ context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(e.Signal, e.Value)
	if _, ok := s.entries[k]; ok {
		return fmt.Errorf("duplicate entry %s", k)
	}
	cp := *e
	s.entries[k] = &cp
	return nil
}

func (s *memStore) AddMember(_ context.Context, sig rank.Signal, value, profileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key(sig, value)]
	if !ok {
		return engine.ErrNotFound
	}
	for _, id := range e.MemberIDs {
		if id == profileID {
			return nil
		}
	}
	e.MemberIDs = append(e.MemberIDs, profileID)
	return nil
}

func (s *memStore) RemoveMember(_ context.Context, sig rank.Signal, value, profileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key(sig, value)]
	if !ok {
		return engine.ErrNotFound
	}
	out := e.MemberIDs[:0]
	for _, id := range e.MemberIDs {
		if id != profileID {
			out = append(out, id)
		}
	}
	e.MemberIDs = out
	return nil
}

type stubEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func TestUpsertCreatesOnce(t *testing.T) {
	store := newMemStore()
	emb := &stubEmbedder{}
	ix := New(store, emb)
	ctx := context.Background()

	vec1, err := ix.Upsert(ctx, rank.SignalSkills, "  Rust ", "p1")
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	vec2, err := ix.Upsert(ctx, rank.SignalSkills, "rust", "p2")
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	if emb.calls != 1 {
		t.Errorf("embedder called %d times, want 1", emb.calls)
	}
	if vec1[0] != vec2[0] {
		t.Errorf("both upserts should return the stored embedding")
	}

	e, err := store.GetEntry(ctx, rank.SignalSkills, "rust")
	if err != nil {
		t.Fatalf("entry missing: %v", err)
	}
	if len(e.MemberIDs) != 2 {
		t.Errorf("members = %v, want p1 and p2", e.MemberIDs)
	}
}

func TestUpsertIdempotent(t *testing.T) {
	store := newMemStore()
	ix := New(store, &stubEmbedder{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := ix.Upsert(ctx, rank.SignalCompanies, "acme", "p1"); err != nil {
			t.Fatalf("upsert %d: %v", i, err)
		}
	}

	e, _ := store.GetEntry(ctx, rank.SignalCompanies, "acme")
	if len(e.MemberIDs) != 1 {
		t.Errorf("members = %v, want exactly [p1]", e.MemberIDs)
	}
}

func TestUpsertEmptyValue(t *testing.T) {
	ix := New(newMemStore(), &stubEmbedder{})
	if _, err := ix.Upsert(context.Background(), rank.SignalSkills, "   ", "p1"); err == nil {
		t.Error("expected error for empty value")
	}
}

func TestUpsertEmbedFailureLeavesNoEntry(t *testing.T) {
	store := newMemStore()
	emb := &stubEmbedder{err: errors.New("embed down")}
	ix := New(store, emb)
	ctx := context.Background()

	if _, err := ix.Upsert(ctx, rank.SignalSkills, "rust", "p1"); err == nil {
		t.Fatal("expected embed failure to surface")
	}
	if _, err := store.GetEntry(ctx, rank.SignalSkills, "rust"); !errors.Is(err, engine.ErrNotFound) {
		t.Error("failed upsert must not leave a partial entry")
	}

	// Retry succeeds once the embedder recovers.
	emb.err = nil
	if _, err := ix.Upsert(ctx, rank.SignalSkills, "rust", "p1"); err != nil {
		t.Fatalf("retry after recovery: %v", err)
	}
}

func TestUpsertConcurrentSameValue(t *testing.T) {
	store := newMemStore()
	emb := &stubEmbedder{}
	ix := New(store, emb)
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if _, err := ix.Upsert(ctx, rank.SignalSkills, "Go", fmt.Sprintf("p%d", n)); err != nil {
				t.Errorf("worker %d: %v", n, err)
			}
		}(i)
	}
	wg.Wait()

	if emb.calls != 1 {
		t.Errorf("embedder called %d times for one value, want 1", emb.calls)
	}
	e, err := store.GetEntry(ctx, rank.SignalSkills, "go")
	if err != nil {
		t.Fatalf("entry missing: %v", err)
	}
	if len(e.MemberIDs) != workers {
		t.Errorf("members = %d, want %d", len(e.MemberIDs), workers)
	}
}

func TestRemove(t *testing.T) {
	store := newMemStore()
	ix := New(store, &stubEmbedder{})
	ctx := context.Background()

	ix.Upsert(ctx, rank.SignalSkills, "rust", "p1")
	ix.Upsert(ctx, rank.SignalSkills, "rust", "p2")

	if err := ix.Remove(ctx, rank.SignalSkills, "Rust", "p1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	e, _ := store.GetEntry(ctx, rank.SignalSkills, "rust")
	if len(e.MemberIDs) != 1 || e.MemberIDs[0] != "p2" {
		t.Errorf("members = %v, want [p2]", e.MemberIDs)
	}

	// Removing from a value that was never indexed is not an error.
	if err := ix.Remove(ctx, rank.SignalSkills, "cobol", "p1"); err != nil {
		t.Errorf("remove missing value: %v", err)
	}
}

func TestNormalizeValue(t *testing.T) {
	tests := []struct{ in, want string }{
		{"  Rust ", "rust"},
		{"GO", "go"},
		{"machine learning", "machine learning"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeValue(tt.in); got != tt.want {
			t.Errorf("NormalizeValue(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
