package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docpipe/internal/common"
)

// Config for the chat-completions client. BaseURL may point at any
// OpenAI-compatible endpoint.
type Config struct {
	APIKey      string
	BaseURL     string        // default https://api.openai.com/v1
	Temperature float32       // 0..2
	Timeout     time.Duration // http client timeout
	MaxRetries  int           // bounded retries for transient failures
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// CompleteJSON runs one chat completion constrained to the given JSON Schema
// and returns the validated message content. Transient backend failures (429,
// 5xx, network) are retried up to Config.MaxRetries; a response that fails
// schema validation is never retried, the model is not going to do better on
// the same input.
func (c *Client) CompleteJSON(ctx context.Context, model, system, user string, schema map[string]any) ([]byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("llm.complete.start",
		"req_id", rid,
		"model", model,
		"temp", c.cfg.Temperature,
		"user_len", len(user),
	)

	body := map[string]any{
		"model":           model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": system},
			{"role": "user", "content": user + "\n\nReturn ONLY JSON that matches the provided schema."},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
		},
	}
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"

	var raw []byte
	var err error
	for attempt := 0; ; attempt++ {
		raw, err = c.post(ctx, endpoint, body)
		if err == nil {
			break
		}
		if !common.IsTransient(err) || attempt >= c.cfg.MaxRetries {
			c.logger.Error("llm.complete.http_error",
				"req_id", rid, "attempt", attempt, "error", err,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return nil, err
		}
		c.logger.Warn("llm.complete.retry", "req_id", rid, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay(err, attempt)):
		}
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("llm.complete.decode_error", "req_id", rid, "error", err, "raw_bytes", len(raw))
		return nil, common.E(common.KindPermanentBackend, "llm.complete", "decode completion response", err)
	}
	if len(cc.Choices) == 0 {
		c.logger.Error("llm.complete.no_choices", "req_id", rid, "raw", string(raw))
		return nil, common.E(common.KindPermanentBackend, "llm.complete", "no choices in completion response", nil)
	}
	content := []byte(strings.TrimSpace(cc.Choices[0].Message.Content))

	if err := ValidateJSONAgainstSchema(schema, content); err != nil {
		c.logger.Error("llm.complete.schema_validation_failed",
			"req_id", rid, "error", err, "content", string(content),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return content, common.E(common.KindPermanentBackend, "llm.complete", "schema validation failed", err)
	}

	c.logger.Info("llm.complete.ok",
		"req_id", rid,
		"model", model,
		"content_bytes", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, common.E(common.KindInternal, "llm.post", "marshal request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, common.E(common.KindInternal, "llm.post", "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, common.E(common.KindTransientBackend, "llm.post", "send request", err)
	}
	defer func(body io.ReadCloser) {
		if cerr := body.Close(); cerr != nil {
			c.logger.Warn("llm.post.body_close_error", "error", cerr)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 == 2 {
		return raw, nil
	}

	kind := common.KindPermanentBackend
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode/100 == 5 {
		kind = common.KindTransientBackend
	}
	e := common.E(kind, "llm.post",
		fmt.Sprintf("backend status %d: %s", resp.StatusCode, truncate(string(raw), 512)), nil)
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, perr := strconv.Atoi(ra); perr == nil && secs > 0 {
			return nil, &retryAfterError{err: e, after: time.Duration(secs) * time.Second}
		}
	}
	return nil, e
}

type retryAfterError struct {
	err   error
	after time.Duration
}

func (r *retryAfterError) Error() string { return r.err.Error() }
func (r *retryAfterError) Unwrap() error { return r.err }

func retryDelay(err error, attempt int) time.Duration {
	var ra *retryAfterError
	if errors.As(err, &ra) && ra.after > 0 {
		return ra.after
	}
	return time.Duration(attempt+1) * 500 * time.Millisecond
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}
