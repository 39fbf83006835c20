package vectorindex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/joseph-ayodele/docpipe/internal/common"
)

func embedServer(t *testing.T, handler http.HandlerFunc) *OpenAIEmbedder {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAIEmbedder(EmbedConfig{BaseURL: srv.URL, APIKey: "k", MaxRetries: 2}, nil)
}

func TestEmbedHappyPath(t *testing.T) {
	e := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["input"] != "some text" {
			t.Errorf("input = %v", body["input"])
		}
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	})

	vec, err := e.Embed(context.Background(), "some text")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("vector = %v", vec)
	}
	if e.Dimension() != 3 {
		t.Errorf("dimension learned = %d", e.Dimension())
	}
}

func TestEmbedConcurrentCallsShareDimension(t *testing.T) {
	e := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.5,0.5,0.5,0.5]}]}`))
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.Embed(context.Background(), "t"); err != nil {
				t.Errorf("Embed: %v", err)
			}
		}()
	}
	wg.Wait()
	if e.Dimension() != 4 {
		t.Errorf("dimension = %d", e.Dimension())
	}
}

func TestEmbedRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	e := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"embedding":[1,2]}]}`))
	})

	if _, err := e.Embed(context.Background(), "t"); err != nil {
		t.Fatalf("expected recovery after 429: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("calls = %d", got)
	}
}

func TestEmbedEmptyResponseIsPermanent(t *testing.T) {
	var calls atomic.Int32
	e := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"data":[]}`))
	})

	_, err := e.Embed(context.Background(), "t")
	if err == nil {
		t.Fatal("expected error for empty embedding data")
	}
	if !common.IsPermanent(err) {
		t.Errorf("kind = %v", common.KindOf(err))
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("permanent failures must not be retried, calls = %d", got)
	}
}
