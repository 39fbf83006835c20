package vectorindex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docpipe/internal/common"
)

func TestEntryIDDeterministic(t *testing.T) {
	day := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	a := EntryID(day, "Train delays", "rolling_stock_operations")
	b := EntryID(day, "Train delays", "rolling_stock_operations")
	if a != b {
		t.Errorf("same identity must derive the same id: %s vs %s", a, b)
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Errorf("id must be a UUID, got %q: %v", a, err)
	}

	if c := EntryID(day, "Train delays", "procurement"); c == a {
		t.Error("different department must derive a different id")
	}
	if c := EntryID(day.AddDate(0, 0, 1), "Train delays", "rolling_stock_operations"); c == a {
		t.Error("different day must derive a different id")
	}
	// Time of day is not part of the identity.
	if c := EntryID(day.Add(6*time.Hour), "Train delays", "rolling_stock_operations"); c != a {
		t.Error("same calendar day must derive the same id")
	}
}

// fakeQdrant records requests and plays back canned responses per path.
type fakeQdrant struct {
	mux      *http.ServeMux
	upserts  []map[string]any
	deletes  [][]string
	searches int32
}

func newFakeQdrant(t *testing.T, searchResult string, scrollPages []string, retrieveResult string) (*fakeQdrant, *httptest.Server) {
	t.Helper()
	f := &fakeQdrant{mux: http.NewServeMux()}
	f.mux.HandleFunc("PUT /collections/summaries", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	f.mux.HandleFunc("PUT /collections/summaries/points", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.upserts = append(f.upserts, body)
		w.WriteHeader(http.StatusOK)
	})
	f.mux.HandleFunc("POST /collections/summaries/points/search", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.searches, 1)
		_, _ = w.Write([]byte(searchResult))
	})
	f.mux.HandleFunc("POST /collections/summaries/points/delete", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Points []string `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.deletes = append(f.deletes, body.Points)
		w.WriteHeader(http.StatusOK)
	})
	f.mux.HandleFunc("POST /collections/summaries/points", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(retrieveResult))
	})
	page := 0
	f.mux.HandleFunc("POST /collections/summaries/points/scroll", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(scrollPages[page]))
		if page < len(scrollPages)-1 {
			page++
		}
	})
	srv := httptest.NewServer(f.mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func newQdrantUnderTest(srvURL string) *QdrantIndex {
	return NewQdrantIndex(QdrantConfig{URL: srvURL, Collection: "summaries", Dimension: 4}, nil)
}

func TestQdrantUpsertDerivesID(t *testing.T) {
	f, srv := newFakeQdrant(t, `{"result":[]}`, []string{`{"result":{"points":[],"next_page_offset":null}}`}, `{"result":[]}`)
	q := newQdrantUnderTest(srv.URL)

	if err := q.EnsureCollection(context.Background()); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}

	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	e := Entry{Topic: "Train delays", Department: "rolling_stock_operations", Summary: "maintenance backlog", Date: day}
	if err := q.Upsert(context.Background(), e, []float32{0.1, 0.2, 0.3, 0.4}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if len(f.upserts) != 1 {
		t.Fatalf("expected 1 upsert, got %d", len(f.upserts))
	}
	points := f.upserts[0]["points"].([]any)
	p := points[0].(map[string]any)
	if p["id"] != EntryID(day, "Train delays", "rolling_stock_operations") {
		t.Errorf("point id = %v", p["id"])
	}
	payload := p["payload"].(map[string]any)
	if payload["date"] != "2026-03-14" || payload["topic"] != "Train delays" {
		t.Errorf("payload = %v", payload)
	}
}

func TestQdrantQueryDecodesNeighbors(t *testing.T) {
	search := `{"result":[
		{"id":"aaa","score":0.91,"payload":{"topic":"Train delays","department":"rolling_stock_operations","summary":"s1","date":"2026-03-10"}},
		{"id":"bbb","score":0.42,"payload":{"topic":"Budget","department":"executive_management","summary":"s2","date":"2026-03-11"}}
	]}`
	_, srv := newFakeQdrant(t, search, []string{`{"result":{"points":[],"next_page_offset":null}}`}, `{"result":[]}`)
	q := newQdrantUnderTest(srv.URL)

	got, err := q.Query(context.Background(), []float32{1, 0, 0, 0}, 5)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("neighbors = %d", len(got))
	}
	if got[0].Entry.Topic != "Train delays" || got[0].Score != 0.91 {
		t.Errorf("first neighbor = %+v", got[0])
	}
	if got[1].Entry.Date.Format("2006-01-02") != "2026-03-11" {
		t.Errorf("date decode: %v", got[1].Entry.Date)
	}
}

func TestQdrantDeleteVerifies(t *testing.T) {
	f, srv := newFakeQdrant(t, `{"result":[]}`, []string{`{"result":{"points":[],"next_page_offset":null}}`}, `{"result":[]}`)
	q := newQdrantUnderTest(srv.URL)

	if err := q.Delete(context.Background(), []string{"aaa", "bbb"}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(f.deletes) != 1 || len(f.deletes[0]) != 2 {
		t.Errorf("deletes = %v", f.deletes)
	}
}

func TestQdrantDeleteReportsResidualPoints(t *testing.T) {
	_, srv := newFakeQdrant(t, `{"result":[]}`, []string{`{"result":{"points":[],"next_page_offset":null}}`}, `{"result":[{"id":"aaa"}]}`)
	q := newQdrantUnderTest(srv.URL)

	err := q.Delete(context.Background(), []string{"aaa"})
	if err == nil {
		t.Fatal("expected error when a point survives deletion")
	}
	if !common.IsPermanent(err) {
		t.Errorf("kind = %v", common.KindOf(err))
	}
}

func TestQdrantListScrollsAllPages(t *testing.T) {
	pages := []string{
		`{"result":{"points":[{"id":"a"},{"id":"b"}],"next_page_offset":"cursor-1"}}`,
		`{"result":{"points":[{"id":"c"}],"next_page_offset":null}}`,
	}
	_, srv := newFakeQdrant(t, `{"result":[]}`, pages, `{"result":[]}`)
	q := newQdrantUnderTest(srv.URL)

	ids, err := q.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 3 || ids[0] != "a" || ids[2] != "c" {
		t.Errorf("ids = %v", ids)
	}
}

func TestQdrantBackendErrorKinds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	q := newQdrantUnderTest(srv.URL)

	_, err := q.Query(context.Background(), []float32{1}, 5)
	if !common.IsTransient(err) {
		t.Errorf("503 should be transient, got %v", err)
	}
}
