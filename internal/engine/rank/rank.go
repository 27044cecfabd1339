package rank

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/noahgsolomon/peerscout/internal/engine"
)

// Request-level failures: anything less than the total absence of usable
// input is a partial result, not an error.
var (
	ErrNoSeeds   = errors.New("no seed profiles resolved")
	ErrNoSignals = errors.New("no signals accepted")
)

// Querier runs a nearest-neighbor query against one signal's attribute
// embeddings.
type Querier interface {
	Query(ctx context.Context, sig Signal, vec []float32, floor float64, topK int) ([]Match, error)
}

// ProfileMeta is the candidate-pool metadata needed for activeness scoring
// and provenance flags.
type ProfileMeta struct {
	Activeness ActivenessMetrics
	Sources    []string
}

// MetaProvider batch-loads candidate metadata.
type MetaProvider interface {
	GetProfileMeta(ctx context.Context, ids []string) (map[string]ProfileMeta, error)
}

// Seed is one resolved seed profile's contribution to a ranking request: its
// id (excluded from the results) and per-signal average embeddings.
type Seed struct {
	ID         string
	Embeddings map[Signal][]float32
}

// Options tunes a single ranking request.
type Options struct {
	TopK   int                // attribute values per vector query
	Floors map[Signal]float64 // per-signal floor overrides
}

// Result is a ranked, attributed candidate list. Empty is valid.
type Result struct {
	Profiles        []RankedProfile `json:"profiles"`
	AcceptedSignals []Signal        `json:"accepted_signals,omitempty"`
}

// Ranker runs ranking requests against the vector store.
type Ranker struct {
	querier           Querier
	meta              MetaProvider
	embedder          engine.Embedder
	floors            map[Signal]float64
	varianceThreshold float64
	topK              int
}

// NewRanker wires the ranking engine. floors may be nil to use defaults.
func NewRanker(querier Querier, meta MetaProvider, embedder engine.Embedder, floors map[Signal]float64, varianceThreshold float64, topK int) *Ranker {
	if topK <= 0 {
		topK = 25
	}
	return &Ranker{
		querier:           querier,
		meta:              meta,
		embedder:          embedder,
		floors:            floors,
		varianceThreshold: varianceThreshold,
		topK:              topK,
	}
}

func (r *Ranker) floor(opts Options, sig Signal) float64 {
	if opts.Floors != nil {
		if f, ok := opts.Floors[sig]; ok {
			return f
		}
	}
	return Floor(r.floors, sig)
}

func (r *Ranker) topk(opts Options) int {
	if opts.TopK > 0 {
		return opts.TopK
	}
	return r.topK
}

// RankBySeeds ranks the population against a seed set. Signals the seeds
// disagree on are rejected by variance gating before any scoring; gating
// must complete first because accepted-signal membership determines which
// raw-score populations exist.
func (r *Ranker) RankBySeeds(ctx context.Context, seeds []Seed, opts Options) (*Result, error) {
	engine.CountRankRequest()
	if len(seeds) == 0 {
		return &Result{}, ErrNoSeeds
	}

	seedIDs := make(map[string]bool, len(seeds))
	seedVecs := make(map[Signal][][]float32)
	for _, s := range seeds {
		seedIDs[s.ID] = true
		for _, sig := range VectorSignals {
			if vec := s.Embeddings[sig]; vec != nil {
				seedVecs[sig] = append(seedVecs[sig], vec)
			}
		}
	}

	accepted := SelectSignals(seedVecs, r.varianceThreshold)
	if len(accepted) == 0 {
		return &Result{}, ErrNoSignals
	}

	matchesBySignal, err := r.queryAccepted(ctx, seedVecs, accepted, opts)
	if err != nil {
		return &Result{}, err
	}

	pool := make(map[string]*Candidate)
	for sig, matches := range matchesBySignal {
		for _, m := range matches {
			for _, id := range m.MemberIDs {
				if seedIDs[id] {
					continue
				}
				c, ok := pool[id]
				if !ok {
					c = NewCandidate(id)
					pool[id] = c
				}
				c.AddMatch(sig, m.Value, m.Score, 1)
			}
		}
	}

	// Activeness is informational on the seed path: the flag is exposed but
	// the composite carries no ranking weight without an explicit criterion.
	r.applyMeta(ctx, pool)

	weights := make(map[Signal]float64, len(accepted))
	for sig := range accepted {
		weights[sig] = 1
	}
	return r.score(pool, accepted, weights), nil
}

// queryAccepted runs one vector query per accepted signal, concurrently.
// The query vector is the mean of the seed averages for that signal.
func (r *Ranker) queryAccepted(ctx context.Context, seedVecs map[Signal][][]float32, accepted map[Signal]bool, opts Options) (map[Signal][]Match, error) {
	var mu sync.Mutex
	out := make(map[Signal][]Match, len(accepted))

	g, ctx := errgroup.WithContext(ctx)
	for sig := range accepted {
		qvec := engine.MeanVector(seedVecs[sig])
		if qvec == nil {
			continue
		}
		g.Go(func() error {
			matches, err := r.querier.Query(ctx, sig, qvec, r.floor(opts, sig), r.topk(opts))
			if err != nil {
				return fmt.Errorf("query %s: %w", sig, err)
			}
			mu.Lock()
			out[sig] = matches
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// score normalizes each accepted signal over the full pool, renormalizes the
// weights, aggregates, and sorts.
func (r *Ranker) score(pool map[string]*Candidate, accepted map[Signal]bool, weights map[Signal]float64) *Result {
	for sig := range accepted {
		NormalizeSignal(pool, sig)
	}

	final := RenormalizeWeights(weights, accepted)
	list := make([]RankedProfile, 0, len(pool))
	for _, c := range pool {
		Aggregate(c, final)
		list = append(list, RankedProfile{
			ProfileID:    c.ProfileID,
			Score:        c.Score,
			Attributions: c.Matched,
			IsActive:     c.IsActive,
		})
	}

	res := &Result{Profiles: Merge(list)}
	for sig := range accepted {
		res.AcceptedSignals = append(res.AcceptedSignals, sig)
	}
	sort.Slice(res.AcceptedSignals, func(i, j int) bool { return res.AcceptedSignals[i] < res.AcceptedSignals[j] })
	return res
}

// applyMeta loads candidate metadata and computes activeness composites.
// A metadata failure degrades the pool (no flags) rather than failing the
// request.
func (r *Ranker) applyMeta(ctx context.Context, pool map[string]*Candidate) map[string]ProfileMeta {
	if r.meta == nil || len(pool) == 0 {
		return nil
	}
	ids := make([]string, 0, len(pool))
	for id := range pool {
		ids = append(ids, id)
	}
	metas, err := r.meta.GetProfileMeta(ctx, ids)
	if err != nil {
		return nil
	}

	activeness := make(map[string]ActivenessMetrics, len(metas))
	for id, m := range metas {
		activeness[id] = m.Activeness
	}
	ApplyActiveness(pool, activeness)
	return metas
}
