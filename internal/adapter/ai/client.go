// Package ai implements the LLM port against OpenAI-compatible chat
// completion and embedding endpoints.
package ai

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"log/slog"

	"github.com/hirewise/resume-matcher/internal/adapter/ai/tokencount"
	"github.com/hirewise/resume-matcher/internal/adapter/observability"
	"github.com/hirewise/resume-matcher/internal/config"
	"github.com/hirewise/resume-matcher/internal/domain"
)

// Client implements domain.AIClient over HTTPS/JSON. 429 and 5xx are
// retried with exponential backoff; 4xx are permanent.
type Client struct {
	cfg config.Config
	hc  *http.Client
}

// New constructs a client with the configured per-call timeout.
func New(cfg config.Config) *Client {
	timeout := cfg.LLMTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{cfg: cfg, hc: &http.Client{Timeout: timeout}}
}

func (c *Client) backoffPolicy(ctx domain.Context) backoff.BackOff {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = 2 * time.Second
	expo.MaxInterval = 20 * time.Second
	expo.MaxElapsedTime = 90 * time.Second
	if c.cfg.IsTest() {
		expo.InitialInterval = 100 * time.Millisecond
		expo.MaxElapsedTime = 2 * time.Second
	}
	return backoff.WithContext(expo, ctx)
}

// ChatJSON calls the chat completions endpoint and returns the message
// content. An empty response surfaces as a schema error so callers can
// fall back deterministically.
func (c *Client) ChatJSON(ctx domain.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error) {
	body := map[string]any{
		"model":       c.cfg.ChatModel,
		"temperature": temperature,
		"max_tokens":  maxTokens,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt},
		},
	}
	b, _ := json.Marshal(body)
	observability.AIPromptTokensTotal.WithLabelValues("chat").
		Add(float64(tokencount.DefaultCounter.Estimate(systemPrompt) + tokencount.DefaultCounter.Estimate(userPrompt)))
	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	op := func() error {
		start := time.Now()
		// Recreate request each attempt to avoid reusing consumed bodies
		r, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.LLMBaseURL+"/chat/completions", bytes.NewReader(b))
		if c.cfg.LLMAPIKey != "" {
			r.Header.Set("Authorization", "Bearer "+c.cfg.LLMAPIKey)
		}
		r.Header.Set("Content-Type", "application/json")
		resp, err := c.hc.Do(r)
		observability.AIRequestsTotal.WithLabelValues("chat").Inc()
		observability.AIRequestDuration.WithLabelValues("chat").Observe(time.Since(start).Seconds())
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			slog.Warn("llm rate limited", slog.String("op", "chat"), slog.Int("status", resp.StatusCode))
			return fmt.Errorf("%w: 429", domain.ErrUpstreamRateLimit)
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			slog.Warn("llm 4xx", slog.String("op", "chat"), slog.Int("status", resp.StatusCode), slog.String("body", snippet(bodyBytes, 512)))
			return backoff.Permanent(fmt.Errorf("chat status %d", resp.StatusCode))
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			slog.Error("llm non-2xx", slog.String("op", "chat"), slog.Int("status", resp.StatusCode), slog.String("body", snippet(bodyBytes, 512)))
			return fmt.Errorf("chat status %d", resp.StatusCode)
		}
		if err := json.Unmarshal(bodyBytes, &out); err != nil {
			slog.Error("llm decode error", slog.String("op", "chat"), slog.Any("error", err))
			return err
		}
		return nil
	}
	if err := backoff.Retry(op, c.backoffPolicy(ctx)); err != nil {
		return "", fmt.Errorf("op=ai.chat: %w", err)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("op=ai.chat: %w: empty completion", domain.ErrSchemaInvalid)
	}
	return out.Choices[0].Message.Content, nil
}

// Embed calls the embeddings endpoint and returns one vector per input
// text, in order. Batching and per-text fallbacks are the caller's job.
func (c *Client) Embed(ctx domain.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body := map[string]any{
		"model": c.cfg.EmbeddingsModel,
		"input": texts,
	}
	b, _ := json.Marshal(body)
	var est int
	for _, t := range texts {
		est += tokencount.DefaultCounter.Estimate(t)
	}
	observability.AIPromptTokensTotal.WithLabelValues("embed").Add(float64(est))
	var out struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	op := func() error {
		start := time.Now()
		r, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.LLMBaseURL+"/embeddings", bytes.NewReader(b))
		if c.cfg.LLMAPIKey != "" {
			r.Header.Set("Authorization", "Bearer "+c.cfg.LLMAPIKey)
		}
		r.Header.Set("Content-Type", "application/json")
		resp, err := c.hc.Do(r)
		observability.AIRequestsTotal.WithLabelValues("embed").Inc()
		observability.AIRequestDuration.WithLabelValues("embed").Observe(time.Since(start).Seconds())
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			slog.Warn("llm rate limited", slog.String("op", "embed"), slog.Int("status", resp.StatusCode))
			return fmt.Errorf("%w: 429", domain.ErrUpstreamRateLimit)
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			slog.Warn("llm 4xx", slog.String("op", "embed"), slog.Int("status", resp.StatusCode), slog.String("body", snippet(bodyBytes, 512)))
			return backoff.Permanent(fmt.Errorf("embed status %d", resp.StatusCode))
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			slog.Error("llm non-2xx", slog.String("op", "embed"), slog.Int("status", resp.StatusCode), slog.String("body", snippet(bodyBytes, 512)))
			return fmt.Errorf("embed status %d", resp.StatusCode)
		}
		if err := json.Unmarshal(bodyBytes, &out); err != nil {
			slog.Error("llm decode error", slog.String("op", "embed"), slog.Any("error", err))
			return err
		}
		return nil
	}
	if err := backoff.Retry(op, c.backoffPolicy(ctx)); err != nil {
		return nil, fmt.Errorf("op=ai.embed: %w", err)
	}
	if len(out.Data) == 0 {
		return nil, errors.New("op=ai.embed: empty data")
	}
	res := make([][]float32, len(out.Data))
	for i := range out.Data {
		v := make([]float32, len(out.Data[i].Embedding))
		for j := range out.Data[i].Embedding {
			v[j] = float32(out.Data[i].Embedding[j])
		}
		res[i] = v
	}
	return res, nil
}

func snippet(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
