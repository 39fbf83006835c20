package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joseph-ayodele/docpipe/internal/common"
)

// QdrantConfig configures the REST client. Cosine distance is assumed.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Dimension  int
	Timeout    time.Duration
}

// QdrantIndex is a minimal REST client to Qdrant implementing Index.
type QdrantIndex struct {
	cfg    QdrantConfig
	client *http.Client
	logger *slog.Logger
}

func NewQdrantIndex(cfg QdrantConfig, logger *slog.Logger) *QdrantIndex {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Collection == "" {
		cfg.Collection = "summaries"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QdrantIndex{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

func (q *QdrantIndex) EnsureCollection(ctx context.Context) error {
	if q.cfg.Dimension <= 0 {
		return common.E(common.KindValidation, "index.ensure", "vector dimension must be positive", nil)
	}
	// Qdrant answers 200 when the collection already exists with the same schema.
	body := map[string]any{
		"vectors": map[string]any{
			"size":     q.cfg.Dimension,
			"distance": "Cosine",
		},
	}
	err := q.doJSON(ctx, http.MethodPut, q.collectionURL(""), body, nil)
	if err == nil {
		q.logger.Info("index.collection.ready", "collection", q.cfg.Collection, "dimension", q.cfg.Dimension)
	}
	return err
}

func (q *QdrantIndex) Upsert(ctx context.Context, e Entry, vector []float32) error {
	if e.ID == "" {
		e.ID = EntryID(e.Date, e.Topic, e.Department)
	}
	body := map[string]any{
		"points": []map[string]any{{
			"id":     e.ID,
			"vector": vector,
			"payload": map[string]any{
				"topic":      e.Topic,
				"department": e.Department,
				"summary":    e.Summary,
				"source":     e.Source,
				"date":       e.Date.UTC().Format("2006-01-02"),
			},
		}},
	}
	if err := q.doJSON(ctx, http.MethodPut, q.collectionURL("/points?wait=true"), body, nil); err != nil {
		return err
	}
	q.logger.Debug("index.upsert.ok", "id", e.ID, "topic", e.Topic, "department", e.Department)
	return nil
}

func (q *QdrantIndex) Query(ctx context.Context, vector []float32, topK int) ([]Neighbor, error) {
	if topK <= 0 {
		topK = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float32        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := q.doJSON(ctx, http.MethodPost, q.collectionURL("/points/search"), req, &resp); err != nil {
		return nil, err
	}
	out := make([]Neighbor, 0, len(resp.Result))
	for _, r := range resp.Result {
		out = append(out, Neighbor{
			Entry: entryFromPayload(fmt.Sprintf("%v", r.ID), r.Payload),
			Score: r.Score,
		})
	}
	return out, nil
}

// Delete removes the points and then fetches them back to verify; a point that
// survives deletion is logged loudly rather than silently ignored.
func (q *QdrantIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	body := map[string]any{"points": ids}
	if err := q.doJSON(ctx, http.MethodPost, q.collectionURL("/points/delete?wait=true"), body, nil); err != nil {
		return err
	}

	var resp struct {
		Result []struct {
			ID any `json:"id"`
		} `json:"result"`
	}
	retr := map[string]any{"ids": ids, "with_payload": false, "with_vector": false}
	if err := q.doJSON(ctx, http.MethodPost, q.collectionURL("/points"), retr, &resp); err != nil {
		q.logger.Warn("index.delete.verify_failed", "error", err)
		return nil
	}
	if len(resp.Result) > 0 {
		residual := make([]string, 0, len(resp.Result))
		for _, r := range resp.Result {
			residual = append(residual, fmt.Sprintf("%v", r.ID))
		}
		q.logger.Error("index.delete.residual_points", "ids", residual)
		return common.E(common.KindPermanentBackend, "index.delete",
			fmt.Sprintf("%d points survived deletion", len(residual)), nil)
	}
	q.logger.Info("index.delete.ok", "count", len(ids))
	return nil
}

func (q *QdrantIndex) List(ctx context.Context) ([]string, error) {
	var ids []string
	var offset any
	for {
		req := map[string]any{
			"limit":        256,
			"with_payload": false,
			"with_vector":  false,
		}
		if offset != nil {
			req["offset"] = offset
		}
		var resp struct {
			Result struct {
				Points []struct {
					ID any `json:"id"`
				} `json:"points"`
				NextPageOffset any `json:"next_page_offset"`
			} `json:"result"`
		}
		if err := q.doJSON(ctx, http.MethodPost, q.collectionURL("/points/scroll"), req, &resp); err != nil {
			return nil, err
		}
		for _, p := range resp.Result.Points {
			ids = append(ids, fmt.Sprintf("%v", p.ID))
		}
		if resp.Result.NextPageOffset == nil {
			return ids, nil
		}
		offset = resp.Result.NextPageOffset
	}
}

func (q *QdrantIndex) collectionURL(suffix string) string {
	return strings.TrimRight(q.cfg.URL, "/") + "/collections/" + q.cfg.Collection + suffix
}

func (q *QdrantIndex) doJSON(ctx context.Context, method, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return common.E(common.KindInternal, "index.request", "marshal body", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return common.E(common.KindInternal, "index.request", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if q.cfg.APIKey != "" {
		req.Header.Set("api-key", q.cfg.APIKey)
	}
	resp, err := q.client.Do(req)
	if err != nil {
		return common.E(common.KindTransientBackend, "index.request", method+" "+url, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			q.logger.Warn("index.request.body_close_error", "error", cerr)
		}
	}()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		kind := common.KindPermanentBackend
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			kind = common.KindTransientBackend
		}
		return common.E(kind, "index.request",
			fmt.Sprintf("qdrant %s %s: %s: %s", method, url, resp.Status, raw), nil)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return common.E(common.KindPermanentBackend, "index.request", "decode response", err)
		}
	}
	return nil
}

func entryFromPayload(id string, payload map[string]any) Entry {
	e := Entry{ID: id}
	if v, ok := payload["topic"].(string); ok {
		e.Topic = v
	}
	if v, ok := payload["department"].(string); ok {
		e.Department = v
	}
	if v, ok := payload["summary"].(string); ok {
		e.Summary = v
	}
	if v, ok := payload["source"].(string); ok {
		e.Source = v
	}
	if v, ok := payload["date"].(string); ok {
		if d, err := time.Parse("2006-01-02", v); err == nil {
			e.Date = d
		}
	}
	return e
}
