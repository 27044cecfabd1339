package profiles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/noahgsolomon/peerscout/internal/engine"
	"github.com/noahgsolomon/peerscout/internal/engine/index"
	"github.com/noahgsolomon/peerscout/internal/engine/rank"
)

// Resolver turns seed references (profile ids or source URLs) into stored
// profiles, fetching and indexing unknown ones on demand.
type Resolver struct {
	store      Store
	index      Indexer
	classifier Classifier // nil = keep raw free text
	sources    []Source
	sem        *semaphore.Weighted
}

// NewResolver builds a resolver. batch bounds concurrent outbound
// resolutions; values < 1 fall back to 16.
func NewResolver(store Store, ix Indexer, classifier Classifier, sources []Source, batch int64) *Resolver {
	if batch < 1 {
		batch = 16
	}
	return &Resolver{
		store:      store,
		index:      ix,
		classifier: classifier,
		sources:    sources,
		sem:        semaphore.NewWeighted(batch),
	}
}

// Resolve returns the profile for ref, fetching it from a matching source if
// it is not stored yet. Unknown refs with no matching source resolve to
// engine.ErrUnavailable.
func (r *Resolver) Resolve(ctx context.Context, ref string) (*Profile, error) {
	p, _, err := r.resolveOne(ctx, ref)
	return p, err
}

func (r *Resolver) resolveOne(ctx context.Context, ref string) (*Profile, []string, error) {
	var src Source
	for _, s := range r.sources {
		if s.Match(ref) {
			src = s
			break
		}
	}

	id := ref
	if src != nil {
		id = src.ID(ref)
	}

	if p, err := r.store.GetProfile(ctx, id); err == nil {
		return p, nil, nil
	} else if !errors.Is(err, engine.ErrNotFound) {
		return nil, nil, fmt.Errorf("resolve %q: %w", ref, err)
	}

	if src == nil {
		return nil, nil, fmt.Errorf("resolve %q: %w", ref, engine.ErrUnavailable)
	}

	raw, err := src.Fetch(ctx, ref)
	if err != nil || raw == nil {
		engine.CountResolveFailure()
		return nil, nil, fmt.Errorf("resolve %q via %s: %w", ref, src.Name(), engine.ErrUnavailable)
	}

	p, err := r.buildProfile(ctx, src, id, raw)
	if err != nil {
		return nil, nil, err
	}
	engine.CountSeedResolved()
	return p, raw.Connections, nil
}

// buildProfile merges raw source data into a profile, runs the classifiers,
// reindexes the attributes, and persists the result.
func (r *Resolver) buildProfile(ctx context.Context, src Source, id string, raw *RawProfile) (*Profile, error) {
	p := &Profile{
		ID:        id,
		Name:      raw.Name,
		Location:  raw.Location,
		Skills:    raw.Skills,
		JobTitles: raw.JobTitles,
		Companies: raw.Companies,
		Schools:   raw.Schools,
		Fields:    raw.Fields,
	}
	p.Activeness = raw.Activeness
	p.addSource(src.Name())

	if r.classifier != nil {
		if raw.Location != "" {
			if loc, err := r.classifier.NormalizeLocation(ctx, raw.Location); err == nil && loc != "" {
				p.Location = loc
			} else if err != nil {
				slog.Warn("location classifier failed, keeping raw", slog.String("profile", id), slog.Any("error", err))
			}
		}
		if len(p.Skills) == 0 && raw.Bio != "" {
			if skills, err := r.classifier.ExtractSkills(ctx, raw.Bio); err == nil {
				p.Skills = skills
			} else {
				slog.Warn("skill extraction failed", slog.String("profile", id), slog.Any("error", err))
			}
		}
	}

	if err := r.Reindex(ctx, p); err != nil {
		return nil, err
	}
	if err := r.store.SaveProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("save profile %s: %w", id, err)
	}
	return p, nil
}

// Reindex upserts every distinct attribute value into the attribute index
// and recomputes the profile's per-signal average embeddings from scratch.
// A value that fails to embed reduces that signal's feature set; the signal
// is dropped entirely only when no value embedded.
func (r *Resolver) Reindex(ctx context.Context, p *Profile) error {
	p.Embeddings = make(map[rank.Signal][]float32)

	for _, sig := range rank.VectorSignals {
		seen := make(map[string]bool)
		var vecs [][]float32
		for _, raw := range p.AttributeValues(sig) {
			value := index.NormalizeValue(raw)
			if value == "" || seen[value] {
				continue
			}
			seen[value] = true

			vec, err := r.index.Upsert(ctx, sig, value, p.ID)
			if err != nil {
				slog.Warn("attribute upsert failed", slog.String("profile", p.ID), slog.String("signal", string(sig)), slog.String("value", value), slog.Any("error", err))
				continue
			}
			vecs = append(vecs, vec)
		}
		if mean := engine.MeanVector(vecs); mean != nil {
			p.Embeddings[sig] = mean
		}
	}
	return nil
}

// ResolveBatch resolves refs concurrently under the batch limiter. Failures
// are logged and skipped; the returned slice holds only resolved profiles,
// in ref order.
func (r *Resolver) ResolveBatch(ctx context.Context, refs []string) []*Profile {
	results := make([]*Profile, len(refs))
	var wg sync.WaitGroup

	for i, ref := range refs {
		if err := r.sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(i int, ref string) {
			defer wg.Done()
			defer r.sem.Release(1)

			p, err := r.Resolve(ctx, ref)
			if err != nil {
				slog.Warn("seed resolution failed", slog.String("ref", ref), slog.Any("error", err))
				return
			}
			results[i] = p
		}(i, ref)
	}
	wg.Wait()

	out := make([]*Profile, 0, len(refs))
	for _, p := range results {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

// ResolveNetwork resolves ref and then its connection graph breadth first.
// The worklist carries an explicit visited set, a depth bound, and a frontier
// cap so termination and memory use are bounded regardless of graph shape.
func (r *Resolver) ResolveNetwork(ctx context.Context, ref string, maxDepth, maxProfiles int) ([]*Profile, error) {
	if maxDepth < 0 {
		maxDepth = 0
	}
	if maxProfiles < 1 {
		maxProfiles = 50
	}

	type item struct {
		ref   string
		depth int
	}

	queue := []item{{ref: ref, depth: 0}}
	visited := map[string]bool{ref: true}
	var out []*Profile

	for len(queue) > 0 && len(out) < maxProfiles {
		cur := queue[0]
		queue = queue[1:]

		p, conns, err := r.resolveOne(ctx, cur.ref)
		if err != nil {
			if cur.depth == 0 {
				return nil, err
			}
			slog.Warn("network resolution skipped", slog.String("ref", cur.ref), slog.Any("error", err))
			continue
		}
		out = append(out, p)

		if cur.depth >= maxDepth {
			continue
		}
		for _, c := range conns {
			if !visited[c] {
				visited[c] = true
				queue = append(queue, item{ref: c, depth: cur.depth + 1})
			}
		}
	}
	return out, nil
}
