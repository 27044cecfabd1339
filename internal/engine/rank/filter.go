package rank

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/noahgsolomon/peerscout/internal/engine"
)

// WeightedValue is one filter criterion carrying a single value.
type WeightedValue struct {
	Value  string  `json:"value"`
	Weight float64 `json:"weight"`
}

// WeightedList is one filter criterion carrying several values that share a
// weight.
type WeightedList struct {
	Values []string `json:"values"`
	Weight float64  `json:"weight"`
}

// WeightedFlag is a boolean filter criterion with a weight.
type WeightedFlag struct {
	Weight float64 `json:"weight"`
}

// FilterCriteria is the declarative, seedless request shape. Fields are
// explicitly enumerated so validation stays tractable; absent criteria
// contribute nothing.
type FilterCriteria struct {
	Skills    map[string]float64 `json:"skills,omitempty"` // skill → individual weight
	Location  *WeightedValue     `json:"location,omitempty"`
	JobTitle  *WeightedValue     `json:"job_title,omitempty"`
	Companies *WeightedList      `json:"companies,omitempty"`
	Schools   *WeightedList      `json:"schools,omitempty"`
	Fields    *WeightedList      `json:"fields_of_study,omitempty"`

	IsPlatformUser *WeightedFlag `json:"is_platform_user,omitempty"`
	IsActive       *WeightedFlag `json:"is_active,omitempty"`
}

// Empty reports whether no criterion is set.
func (fc *FilterCriteria) Empty() bool {
	return len(fc.Skills) == 0 && fc.Location == nil && fc.JobTitle == nil &&
		fc.Companies == nil && fc.Schools == nil && fc.Fields == nil &&
		fc.IsPlatformUser == nil && fc.IsActive == nil
}

// filterQuery is one one-off vector lookup derived from a criterion.
type filterQuery struct {
	sig    Signal
	text   string
	weight float64 // per-value weight folded into the match (skills only)
}

// RankByFilter ranks the population against declarative criteria. Each
// criterion is a one-off query — no seed averages, no variance gating.
// Caller-supplied weights are renormalized over the signals that actually
// carried criteria.
func (r *Ranker) RankByFilter(ctx context.Context, fc FilterCriteria, opts Options) (*Result, error) {
	engine.CountRankRequest()
	if fc.Empty() {
		return &Result{}, ErrNoSignals
	}

	var queries []filterQuery
	weights := make(map[Signal]float64)
	accepted := make(map[Signal]bool)

	for skill, w := range fc.Skills {
		if w <= 0 {
			continue
		}
		queries = append(queries, filterQuery{sig: SignalSkills, text: skill, weight: w})
		weights[SignalSkills] += w
	}
	if len(fc.Skills) > 0 && weights[SignalSkills] > 0 {
		accepted[SignalSkills] = true
	}

	addValue := func(sig Signal, wv *WeightedValue) {
		if wv == nil || wv.Value == "" || wv.Weight <= 0 {
			return
		}
		queries = append(queries, filterQuery{sig: sig, text: wv.Value, weight: 1})
		weights[sig] = wv.Weight
		accepted[sig] = true
	}
	addValue(SignalLocation, fc.Location)
	addValue(SignalJobTitles, fc.JobTitle)

	addList := func(sig Signal, wl *WeightedList) {
		if wl == nil || len(wl.Values) == 0 || wl.Weight <= 0 {
			return
		}
		for _, v := range wl.Values {
			if v != "" {
				queries = append(queries, filterQuery{sig: sig, text: v, weight: 1})
			}
		}
		weights[sig] = wl.Weight
		accepted[sig] = true
	}
	addList(SignalCompanies, fc.Companies)
	addList(SignalSchools, fc.Schools)
	addList(SignalFields, fc.Fields)

	pool := make(map[string]*Candidate)
	if len(queries) > 0 {
		if err := r.runFilterQueries(ctx, queries, opts, pool); err != nil {
			return &Result{}, err
		}
	}

	metas := r.applyMeta(ctx, pool)

	if fc.IsActive != nil && fc.IsActive.Weight > 0 {
		weights[SignalActiveness] = fc.IsActive.Weight
		accepted[SignalActiveness] = true
	}
	if fc.IsPlatformUser != nil && fc.IsPlatformUser.Weight > 0 {
		for id, c := range pool {
			if meta, ok := metas[id]; ok && hasPlatformSource(meta.Sources) {
				c.Raw[SignalPlatform] = 1
			}
		}
		weights[SignalPlatform] = fc.IsPlatformUser.Weight
		accepted[SignalPlatform] = true
	}

	if len(accepted) == 0 {
		return &Result{}, ErrNoSignals
	}
	return r.score(pool, accepted, weights), nil
}

// runFilterQueries embeds every criterion value and queries its signal,
// folding matches into the pool. A single criterion that fails to embed
// reduces the feature set; it does not abort the request.
func (r *Ranker) runFilterQueries(ctx context.Context, queries []filterQuery, opts Options, pool map[string]*Candidate) error {
	type hit struct {
		q       filterQuery
		matches []Match
	}

	var mu sync.Mutex
	var hits []hit

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, q := range queries {
		g.Go(func() error {
			vec, err := r.embedder.Embed(ctx, q.text)
			if err != nil {
				slog.Warn("criterion embed failed, skipping", slog.String("signal", string(q.sig)), slog.String("value", q.text), slog.Any("error", err))
				return nil
			}
			matches, err := r.querier.Query(ctx, q.sig, vec, r.floor(opts, q.sig), r.topk(opts))
			if err != nil {
				return fmt.Errorf("query %s %q: %w", q.sig, q.text, err)
			}
			mu.Lock()
			hits = append(hits, hit{q: q, matches: matches})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, h := range hits {
		for _, m := range h.matches {
			for _, id := range m.MemberIDs {
				c, ok := pool[id]
				if !ok {
					c = NewCandidate(id)
					pool[id] = c
				}
				c.AddMatch(h.q.sig, m.Value, m.Score, h.q.weight)
			}
		}
	}
	return nil
}

func hasPlatformSource(sources []string) bool {
	for _, s := range sources {
		if s == "platform" {
			return true
		}
	}
	return false
}
