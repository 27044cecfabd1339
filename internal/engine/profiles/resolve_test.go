package profiles

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/noahgsolomon/peerscout/internal/engine"
	"github.com/noahgsolomon/peerscout/internal/engine/rank"
)

type fakeStore struct {
	mu       sync.Mutex
	profiles map[string]*Profile
	saves    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{profiles: make(map[string]*Profile)}
}

func (s *fakeStore) GetProfile(_ context.Context, id string) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.profiles[id]; ok {
		return p, nil
	}
	return nil, engine.ErrNotFound
}

func (s *fakeStore) SaveProfile(_ context.Context, p *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
	s.saves++
	return nil
}

type fakeIndexer struct {
	mu      sync.Mutex
	upserts []string
}

func (f *fakeIndexer) Upsert(_ context.Context, sig rank.Signal, rawValue, profileID string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, string(sig)+"/"+rawValue)
	return []float32{1, 0}, nil
}

// fakeSource serves refs with the "fake:" prefix from a fixture map.
type fakeSource struct {
	mu      sync.Mutex
	data    map[string]*RawProfile
	fetches int
}

func (f *fakeSource) Name() string          { return "fake" }
func (f *fakeSource) Match(ref string) bool { return strings.HasPrefix(ref, "fake:") }
func (f *fakeSource) ID(ref string) string  { return ref }

func (f *fakeSource) Fetch(_ context.Context, ref string) (*RawProfile, error) {
	f.mu.Lock()
	f.fetches++
	f.mu.Unlock()
	if raw, ok := f.data[ref]; ok {
		return raw, nil
	}
	return nil, errors.New("not found upstream")
}

func newResolver(store *fakeStore, src *fakeSource) *Resolver {
	return NewResolver(store, &fakeIndexer{}, nil, []Source{src}, 4)
}

func TestResolveStoredProfileSkipsFetch(t *testing.T) {
	store := newFakeStore()
	store.profiles["fake:ada"] = &Profile{ID: "fake:ada", Name: "Ada"}
	src := &fakeSource{}

	p, err := newResolver(store, src).Resolve(context.Background(), "fake:ada")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name != "Ada" {
		t.Errorf("got %q, want stored profile", p.Name)
	}
	if src.fetches != 0 {
		t.Errorf("stored profile should not hit the source, fetches=%d", src.fetches)
	}
}

func TestResolveFetchesAndIndexes(t *testing.T) {
	store := newFakeStore()
	src := &fakeSource{data: map[string]*RawProfile{
		"fake:ada": {
			ID:     "fake:ada",
			Name:   "Ada",
			Skills: []string{"Rust", "rust", "Go"}, // duplicate after normalization
		},
	}}

	p, err := newResolver(store, src).Resolve(context.Background(), "fake:ada")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != "fake:ada" {
		t.Errorf("id = %q", p.ID)
	}
	if !p.HasSource("fake") {
		t.Error("source provenance missing")
	}
	if p.Embeddings[rank.SignalSkills] == nil {
		t.Error("expected skills average embedding")
	}
	if _, err := store.GetProfile(context.Background(), "fake:ada"); err != nil {
		t.Errorf("profile not persisted: %v", err)
	}
}

func TestResolveUnknownRef(t *testing.T) {
	_, err := newResolver(newFakeStore(), &fakeSource{}).Resolve(context.Background(), "mystery-handle")
	if !errors.Is(err, engine.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestResolveFetchFailure(t *testing.T) {
	src := &fakeSource{} // no fixtures, every fetch fails
	_, err := newResolver(newFakeStore(), src).Resolve(context.Background(), "fake:ghost")
	if !errors.Is(err, engine.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestReindexDeduplicatesValues(t *testing.T) {
	ix := &fakeIndexer{}
	r := NewResolver(newFakeStore(), ix, nil, nil, 4)

	p := &Profile{
		ID:     "p1",
		Skills: []string{"Rust", " rust ", "Go"},
	}
	if err := r.Reindex(context.Background(), p); err != nil {
		t.Fatalf("reindex: %v", err)
	}
	if len(ix.upserts) != 2 {
		t.Errorf("upserts = %v, want rust and go once each", ix.upserts)
	}
}

func TestResolveBatchKeepsOrderSkipsFailures(t *testing.T) {
	store := newFakeStore()
	src := &fakeSource{data: map[string]*RawProfile{
		"fake:a": {ID: "fake:a", Name: "A"},
		"fake:c": {ID: "fake:c", Name: "C"},
	}}

	got := newResolver(store, src).ResolveBatch(context.Background(),
		[]string{"fake:a", "fake:broken", "fake:c"})

	if len(got) != 2 {
		t.Fatalf("resolved %d profiles, want 2", len(got))
	}
	if got[0].ID != "fake:a" || got[1].ID != "fake:c" {
		t.Errorf("order not preserved: %s, %s", got[0].ID, got[1].ID)
	}
}

func TestResolveNetworkBounds(t *testing.T) {
	// fake:root → a, b; a → c; c → d. Depth 1 must stop before c.
	src := &fakeSource{data: map[string]*RawProfile{
		"fake:root": {ID: "fake:root", Connections: []string{"fake:a", "fake:b"}},
		"fake:a":    {ID: "fake:a", Connections: []string{"fake:c"}},
		"fake:b":    {ID: "fake:b"},
		"fake:c":    {ID: "fake:c", Connections: []string{"fake:d"}},
		"fake:d":    {ID: "fake:d"},
	}}

	got, err := newResolver(newFakeStore(), src).ResolveNetwork(context.Background(), "fake:root", 1, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("resolved %d profiles at depth 1, want 3", len(got))
	}
	for _, p := range got {
		if p.ID == "fake:c" || p.ID == "fake:d" {
			t.Errorf("profile %s beyond the depth bound", p.ID)
		}
	}
}

func TestResolveNetworkFrontierCap(t *testing.T) {
	src := &fakeSource{data: map[string]*RawProfile{
		"fake:root": {ID: "fake:root", Connections: []string{"fake:a", "fake:b", "fake:c"}},
		"fake:a":    {ID: "fake:a"},
		"fake:b":    {ID: "fake:b"},
		"fake:c":    {ID: "fake:c"},
	}}

	got, err := newResolver(newFakeStore(), src).ResolveNetwork(context.Background(), "fake:root", 3, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("resolved %d profiles, cap is 2", len(got))
	}
}

func TestResolveNetworkCycle(t *testing.T) {
	src := &fakeSource{data: map[string]*RawProfile{
		"fake:a": {ID: "fake:a", Connections: []string{"fake:b"}},
		"fake:b": {ID: "fake:b", Connections: []string{"fake:a"}},
	}}

	got, err := newResolver(newFakeStore(), src).ResolveNetwork(context.Background(), "fake:a", 5, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("cycle resolved %d profiles, want 2", len(got))
	}
}

func TestResolveNetworkRootFailure(t *testing.T) {
	_, err := newResolver(newFakeStore(), &fakeSource{}).ResolveNetwork(context.Background(), "fake:ghost", 2, 50)
	if err == nil {
		t.Error("root resolution failure must fail the traversal")
	}
}
