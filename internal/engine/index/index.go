// Package index maintains the deduplicating attribute index: one embedding
// per distinct normalized attribute value per signal, with the set of
// profiles declaring that value.
package index

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/noahgsolomon/peerscout/internal/engine"
	"github.com/noahgsolomon/peerscout/internal/engine/rank"
)

// Entry is one attribute-index row: a normalized value within one signal,
// its embedding (computed once, immutable), and the profiles declaring it.
type Entry struct {
	Signal    rank.Signal
	Value     string
	Embedding []float32
	MemberIDs []string
}

// EntryStore is the persistence surface the index requires.
type EntryStore interface {
	// GetEntry returns the entry for (signal, value) or engine.ErrNotFound.
	GetEntry(ctx context.Context, sig rank.Signal, value string) (*Entry, error)
	// InsertEntry persists a new entry. The index guarantees single-flight
	// per value, so an existing-row conflict indicates store-level drift and
	// is an error.
	InsertEntry(ctx context.Context, e *Entry) error
	// AddMember adds profileID to the entry's membership set if absent.
	AddMember(ctx context.Context, sig rank.Signal, value, profileID string) error
	// RemoveMember removes profileID from the entry's membership set. This is
	// the only sanctioned way a membership set shrinks.
	RemoveMember(ctx context.Context, sig rank.Signal, value, profileID string) error
}

// shardCount bounds lock memory; a mutex per distinct value ever seen would
// grow without bound.
const shardCount = 64

// AttributeIndex serializes all operations on the same normalized value
// through a sharded mutex so two concurrent upserts cannot both decide
// "not found" and create duplicate entries. Operations on values in
// different shards proceed in parallel.
type AttributeIndex struct {
	store    EntryStore
	embedder engine.Embedder
	shards   [shardCount]sync.Mutex
}

// New builds an index over the given store and embedder.
func New(store EntryStore, embedder engine.Embedder) *AttributeIndex {
	return &AttributeIndex{store: store, embedder: embedder}
}

// NormalizeValue case-folds and trims an attribute value. Entries are keyed
// on the normalized form.
func NormalizeValue(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func (ix *AttributeIndex) shard(sig rank.Signal, value string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(sig))
	h.Write([]byte{0})
	h.Write([]byte(value))
	return &ix.shards[h.Sum32()%shardCount]
}

// Upsert ensures (signal, normalized value) exists with profileID in its
// membership set and returns the stored embedding. Idempotent: repeating the
// call changes nothing. An embedding failure is recoverable — no partial
// entry is left visible, the caller may retry the whole upsert.
func (ix *AttributeIndex) Upsert(ctx context.Context, sig rank.Signal, rawValue, profileID string) ([]float32, error) {
	value := NormalizeValue(rawValue)
	if value == "" {
		return nil, fmt.Errorf("index: empty attribute value for %s", sig)
	}

	// Lock covers the full lookup-embed-persist sequence for this value.
	mu := ix.shard(sig, value)
	mu.Lock()
	defer mu.Unlock()

	entry, err := ix.store.GetEntry(ctx, sig, value)
	switch {
	case err == nil:
		for _, id := range entry.MemberIDs {
			if id == profileID {
				return entry.Embedding, nil // idempotent no-op
			}
		}
		if err := ix.store.AddMember(ctx, sig, value, profileID); err != nil {
			return nil, fmt.Errorf("index: add member %s to %s/%q: %w", profileID, sig, value, err)
		}
		engine.CountIndexUpsert()
		return entry.Embedding, nil

	case errors.Is(err, engine.ErrNotFound):
		vec, err := ix.embedder.Embed(ctx, value)
		if err != nil {
			return nil, fmt.Errorf("index: embed %s/%q: %w", sig, value, err)
		}
		e := &Entry{Signal: sig, Value: value, Embedding: vec, MemberIDs: []string{profileID}}
		if err := ix.store.InsertEntry(ctx, e); err != nil {
			return nil, fmt.Errorf("index: insert %s/%q: %w", sig, value, err)
		}
		engine.CountIndexUpsert()
		return vec, nil

	default:
		return nil, fmt.Errorf("index: lookup %s/%q: %w", sig, value, err)
	}
}

// Remove detaches profileID from (signal, value). Missing entries are fine.
func (ix *AttributeIndex) Remove(ctx context.Context, sig rank.Signal, rawValue, profileID string) error {
	value := NormalizeValue(rawValue)
	mu := ix.shard(sig, value)
	mu.Lock()
	defer mu.Unlock()

	if err := ix.store.RemoveMember(ctx, sig, value, profileID); err != nil && !errors.Is(err, engine.ErrNotFound) {
		return fmt.Errorf("index: remove member %s from %s/%q: %w", profileID, sig, value, err)
	}
	return nil
}
