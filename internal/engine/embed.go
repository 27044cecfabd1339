package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"
)

// Embedder converts text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// OllamaEmbedder talks to an Ollama-compatible /api/embed endpoint.
type OllamaEmbedder struct {
	baseURL string
	model   string
	token   string
	client  *http.Client
}

// NewOllamaEmbedder builds an embedder from the engine config.
func NewOllamaEmbedder(baseURL, model, token string, client *http.Client) *OllamaEmbedder {
	if client == nil {
		client = http.DefaultClient
	}
	return &OllamaEmbedder{baseURL: baseURL, model: model, token: token, client: client}
}

// Embed generates a vector embedding for the given text.
func (o *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	payload := map[string]any{
		"model": o.model,
		"input": text,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	if Cfg.EmbedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, Cfg.EmbedTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if o.token != "" {
		req.Header.Set("Authorization", "Bearer "+o.token)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("embed %s: %w", o.model, &StatusError{Code: resp.StatusCode})
	}

	var out struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("embed decode: %w", err)
	}
	if len(out.Embeddings) == 0 || len(out.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("embed %s: empty response", o.model)
	}
	return out.Embeddings[0], nil
}

// Gateway is the production embedding path: tiered cache in front, an
// outbound rate limiter, and the shared cooldown gate around the actual call.
type Gateway struct {
	inner   Embedder
	gate    *CooldownGate
	limiter *rate.Limiter
	cc      CooldownConfig
	model   string
}

// NewGateway wraps inner with caching, rate limiting, and cooldown handling.
// rps <= 0 disables the limiter.
func NewGateway(inner Embedder, gate *CooldownGate, cc CooldownConfig, model string, rps float64) *Gateway {
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return &Gateway{inner: inner, gate: gate, limiter: limiter, cc: cc, model: model}
}

// Embed returns the vector for text, consulting the cache first.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	key := CacheKey("embed", g.model, text)
	if vec, ok := CacheGetVector(ctx, key); ok {
		return vec, nil
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	CountEmbedCall()
	vec, err := CallCooled(ctx, g.gate, g.cc, func() ([]float32, error) {
		return g.inner.Embed(ctx, text)
	})
	if err != nil {
		CountEmbedError()
		return nil, err
	}

	CacheSetVector(ctx, key, vec)
	return vec, nil
}
