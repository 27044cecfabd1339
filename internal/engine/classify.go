package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Classifier normalizes free text with an Ollama chat model: raw location
// strings into a canonical "city, country" form, and profile bios into
// skill lists. It shares the embed endpoint's cooldown gate so a 429 from
// either path pauses both.
type Classifier struct {
	baseURL string
	model   string
	token   string
	client  *http.Client
	gate    *CooldownGate
	cc      CooldownConfig
}

// NewClassifier builds a classifier against an Ollama-compatible /api/chat
// endpoint. model may be empty, in which case both methods return their
// input unchanged.
func NewClassifier(baseURL, model, token string, client *http.Client, gate *CooldownGate, cc CooldownConfig) *Classifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &Classifier{baseURL: baseURL, model: model, token: token, client: client, gate: gate, cc: cc}
}

const locationPrompt = `Normalize the location into "city, country" in English, lowercase. ` +
	`If only a country or region is given, return it as-is, lowercase. ` +
	`Reply with the normalized location only, no explanation.`

// NormalizeLocation canonicalizes a free-text location.
func (c *Classifier) NormalizeLocation(ctx context.Context, freeText string) (string, error) {
	freeText = strings.TrimSpace(freeText)
	if c.model == "" || freeText == "" {
		return freeText, nil
	}
	out, err := c.chat(ctx, locationPrompt, freeText)
	if err != nil {
		return "", err
	}
	loc := strings.ToLower(strings.TrimSpace(out))
	if loc == "" || len(loc) > 120 {
		return freeText, nil
	}
	return loc, nil
}

const skillsPrompt = `Extract technical skills (languages, frameworks, tools, domains) ` +
	`from the text. Reply with a JSON array of lowercase strings, nothing else. ` +
	`Reply [] if there are none.`

// ExtractSkills pulls skill keywords out of a bio or description.
func (c *Classifier) ExtractSkills(ctx context.Context, text string) ([]string, error) {
	text = strings.TrimSpace(text)
	if c.model == "" || text == "" {
		return nil, nil
	}
	out, err := c.chat(ctx, skillsPrompt, text)
	if err != nil {
		return nil, err
	}

	// Models sometimes wrap the array in code fences or prose.
	start := strings.Index(out, "[")
	end := strings.LastIndex(out, "]")
	if start < 0 || end <= start {
		return nil, nil
	}
	var skills []string
	if err := json.Unmarshal([]byte(out[start:end+1]), &skills); err != nil {
		return nil, fmt.Errorf("skills decode: %w", err)
	}
	cleaned := skills[:0]
	for _, s := range skills {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	return cleaned, nil
}

func (c *Classifier) chat(ctx context.Context, system, user string) (string, error) {
	payload := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
		"stream": false,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	if Cfg.EmbedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, Cfg.EmbedTimeout)
		defer cancel()
	}

	return CallCooled(ctx, c.gate, c.cc, func() (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return "", fmt.Errorf("chat request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			return "", fmt.Errorf("chat %s: %w", c.model, &StatusError{Code: resp.StatusCode})
		}

		var out struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", fmt.Errorf("chat decode: %w", err)
		}
		return out.Message.Content, nil
	})
}
