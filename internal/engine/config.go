package engine

import (
	"net/http"
	"time"
)

// Config holds all engine configuration, injected from main.
type Config struct {
	// Embedding service (Ollama-compatible /api/embed endpoint).
	EmbedBaseURL   string
	EmbedModel     string
	EmbedToken     string // Bearer token for hosted endpoints (empty = no auth)
	EmbedDimension int
	EmbedTimeout   time.Duration
	EmbedRPS       float64 // outbound embed calls per second (0 = unlimited)

	// Chat model for location normalization and skill extraction
	// (same Ollama endpoint as embeddings; empty = classification off).
	ChatModel string

	// Stores.
	DatabaseURL string // Postgres with pgvector
	RedisURL    string // empty = L2 cache disabled
	HistoryPath string // SQLite ranking-history DB (empty = default under ~/.peerscout)

	// External sources.
	GithubToken string

	// Ranking knobs.
	VarianceThreshold float64 // max seed dissimilarity variance per signal
	DefaultTopK       int     // attribute values returned per vector query
	ResolveBatch      int64   // concurrent seed resolutions
	NetworkDepth      int     // connection-graph traversal depth bound
	NetworkFrontier   int     // max profiles visited per traversal
	RankTimeout       time.Duration

	// Cooldown gate for rate-limited upstreams.
	CooldownInterval time.Duration
	CooldownAttempts int

	CacheTTL             time.Duration
	CacheMaxEntries      int
	CacheCleanupInterval time.Duration

	HTTPClient *http.Client
}

var cfg Config

// Cfg exposes the engine configuration for sub-packages (store, rank, profiles).
// Always points to the current cfg value.
var Cfg = &cfg

// Init initializes the engine with the given configuration.
func Init(c Config) {
	cfg = c
	Cfg = &cfg
}
