// peerscout — Candidate Similarity & Ranking MCP server.
//
// Exposes five MCP tools: similar_profiles, filter_profiles, profile_ingest,
// ranking_history, server_stats. Runs as HTTP MCP server or stdio transport.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/noahgsolomon/peerscout/internal/engine"
	"github.com/noahgsolomon/peerscout/internal/engine/index"
	"github.com/noahgsolomon/peerscout/internal/engine/profiles"
	"github.com/noahgsolomon/peerscout/internal/engine/rank"
	"github.com/noahgsolomon/peerscout/internal/engine/store"
	"github.com/noahgsolomon/peerscout/internal/env"
	"github.com/noahgsolomon/peerscout/internal/rankserver"
)

var version = "dev"

func main() {
	godotenv.Load()

	mcpPort := env.Str("MCP_PORT", "8892")
	transport := env.Str("MCP_TRANSPORT", "http")

	initEngine()

	ctx := context.Background()
	pg, err := store.Connect(ctx, engine.Cfg.DatabaseURL)
	if err != nil {
		slog.Error("postgres connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pg.Close()

	rankserver.Init(buildDeps(pg))

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "peerscout",
		Version: version,
	}, nil)
	rankserver.RegisterTools(server)
	slog.Info("tools registered", slog.Int("count", 5))

	if transport == "stdio" {
		if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
			slog.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	slog.Info("starting peerscout", slog.String("port", mcpPort))

	mux := http.NewServeMux()
	mux.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, "ok")
	})
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, engine.FormatMetrics())
	})

	srv := &http.Server{
		Addr:         ":" + mcpPort,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 600 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		slog.Error("server failed", slog.Any("error", err))
		os.Exit(1)
	}
}

// buildDeps wires the store, embedding gateway, attribute index, resolver,
// and ranker together. Both the embed and chat paths share one cooldown gate
// so a throttle from the model endpoint pauses everything that talks to it;
// GitHub gets its own gate.
func buildDeps(pg *store.Postgres) rankserver.Deps {
	c := engine.Cfg
	cc := engine.CooldownConfig{
		Interval:    c.CooldownInterval,
		MaxAttempts: c.CooldownAttempts,
	}

	modelGate := engine.NewCooldownGate()
	embedder := engine.NewGateway(
		engine.NewOllamaEmbedder(c.EmbedBaseURL, c.EmbedModel, c.EmbedToken, c.HTTPClient),
		modelGate, cc, c.EmbedModel, c.EmbedRPS,
	)
	classifier := engine.NewClassifier(c.EmbedBaseURL, c.ChatModel, c.EmbedToken, c.HTTPClient, modelGate, cc)

	ix := index.New(pg, embedder)

	githubGate := engine.NewCooldownGate()
	sources := []profiles.Source{
		profiles.NewGitHubSource(c.GithubToken, c.HTTPClient, githubGate, cc),
	}
	resolver := profiles.NewResolver(pg, ix, classifier, sources, c.ResolveBatch)

	ranker := rank.NewRanker(pg, pg, embedder, rank.DefaultFloors, c.VarianceThreshold, c.DefaultTopK)

	return rankserver.Deps{Ranker: ranker, Resolver: resolver}
}

func initEngine() {
	engine.Init(engine.Config{
		EmbedBaseURL:   env.Str("EMBED_BASE_URL", "http://127.0.0.1:11434"),
		EmbedModel:     env.Str("EMBED_MODEL", "bge-m3"),
		EmbedToken:     env.Str("EMBED_TOKEN", ""),
		EmbedDimension: env.Int("EMBED_DIMENSION", 768),
		EmbedTimeout:   env.Duration("EMBED_TIMEOUT", 30*time.Second),
		EmbedRPS:       env.Float("EMBED_RPS", 0),
		ChatModel:      env.Str("CHAT_MODEL", ""),

		DatabaseURL: env.Str("DATABASE_URL", "postgres://localhost:5432/peerscout"),
		RedisURL:    env.Str("REDIS_URL", ""),
		HistoryPath: env.Str("HISTORY_PATH", ""),

		GithubToken: env.Str("GITHUB_TOKEN", ""),

		VarianceThreshold: env.Float("VARIANCE_THRESHOLD", rank.DefaultVarianceThreshold),
		DefaultTopK:       env.Int("DEFAULT_TOP_K", 20),
		ResolveBatch:      int64(env.Int("RESOLVE_BATCH", 16)),
		NetworkDepth:      env.Int("NETWORK_DEPTH", 2),
		NetworkFrontier:   env.Int("NETWORK_FRONTIER", 100),
		RankTimeout:       env.Duration("RANK_TIMEOUT", 120*time.Second),

		CooldownInterval: env.Duration("COOLDOWN_INTERVAL", 180*time.Second),
		CooldownAttempts: env.Int("COOLDOWN_ATTEMPTS", 5),

		CacheTTL:             env.Duration("CACHE_TTL", 24*time.Hour),
		CacheMaxEntries:      env.Int("CACHE_MAX_ENTRIES", 10000),
		CacheCleanupInterval: env.Duration("CACHE_CLEANUP_INTERVAL", 300*time.Second),

		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	})

	engine.InitCache(engine.Cfg.RedisURL, engine.Cfg.CacheTTL,
		engine.Cfg.CacheMaxEntries, engine.Cfg.CacheCleanupInterval)

	if p := engine.Cfg.HistoryPath; p != "" {
		store.SetHistoryPath(p)
	}
}
