package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/joseph-ayodele/docpipe/internal/common"
)

// EmbedConfig configures the OpenAI-compatible embeddings client.
type EmbedConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint. The vector
// dimension is learned lazily from the first response. One embedder is shared
// across pipeline workers, so the field is atomic.
type OpenAIEmbedder struct {
	cfg       EmbedConfig
	client    *http.Client
	logger    *slog.Logger
	dimension atomic.Int64
}

func NewOpenAIEmbedder(cfg EmbedConfig, logger *slog.Logger) *OpenAIEmbedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIEmbedder{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

func (c *OpenAIEmbedder) Dimension() int { return int(c.dimension.Load()) }

func (c *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/embeddings"
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		vec, retryable, err := c.embedOnce(ctx, url, text)
		if err == nil {
			c.dimension.CompareAndSwap(0, int64(len(vec)))
			return vec, nil
		}
		lastErr = err
		if !retryable || attempt >= c.cfg.MaxRetries {
			break
		}
		c.logger.Warn("embed.retry", "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff(attempt)):
		}
	}
	return nil, lastErr
}

func (c *OpenAIEmbedder) embedOnce(ctx context.Context, url, text string) (vec []float32, retryable bool, err error) {
	body := map[string]any{"input": text, "model": c.cfg.Model}
	data, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, false, common.E(common.KindInternal, "embed", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, true, common.E(common.KindTransientBackend, "embed", "send request", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, perr := strconv.Atoi(ra); perr == nil && secs > 0 {
				select {
				case <-ctx.Done():
					return nil, false, ctx.Err()
				case <-time.After(time.Duration(secs) * time.Second):
				}
			}
		}
		return nil, true, common.E(common.KindTransientBackend, "embed",
			"embeddings backend status "+resp.Status, nil)
	}
	if resp.StatusCode >= 300 {
		return nil, false, common.E(common.KindPermanentBackend, "embed",
			"embeddings backend status "+resp.Status, nil)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, common.E(common.KindTransientBackend, "embed", "read response", err)
	}
	var out struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &out); err != nil || len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, false, common.E(common.KindPermanentBackend, "embed",
			fmt.Sprintf("no embedding in response (%d bytes)", len(payload)), err)
	}
	return out.Data[0].Embedding, false, nil
}

func backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := 200 * time.Millisecond << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
