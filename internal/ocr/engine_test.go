package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/joseph-ayodele/docpipe/internal/common"
)

const tsvHeader = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n"

// fakeRunner plays both external binaries: for pdftoppm invocations it
// materializes the output image, for tesseract it returns canned TSV keyed by
// image name.
type fakeRunner struct {
	tsvByPage map[int]string
	failPage  int // tesseract fails for this page when > 0
}

func (f fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	if strings.Contains(name, "pdftoppm") {
		prefix := args[len(args)-1]
		img := prefix + "-1.png"
		if err := os.WriteFile(img, []byte("png"), 0o644); err != nil {
			return nil, nil, err
		}
		return nil, nil, nil
	}
	// tesseract: first arg is the image path, page-N-1.png
	var page int
	fmt.Sscanf(lastSegment(args[0]), "page-%d-1.png", &page)
	if f.failPage == page {
		return nil, []byte("Error in pixReadStream"), fmt.Errorf("exit status 1")
	}
	return []byte(tsvHeader + f.tsvByPage[page]), nil, nil
}

func lastSegment(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}

func wordRow(block, par, line, word, left, top, width, height int, conf float64, text string) string {
	return fmt.Sprintf("5\t1\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%.2f\t%s\n",
		block, par, line, word, left, top, width, height, conf, text)
}

func newTestEngine(t *testing.T, r Runner, pages int) *Engine {
	t.Helper()
	e := NewEngine(Config{Workers: 2}, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	e.runner = r
	e.pageCount = func(string) (int, error) { return pages, nil }
	return e
}

func TestExtractPagesOrderAndSpans(t *testing.T) {
	r := fakeRunner{tsvByPage: map[int]string{
		1: wordRow(1, 1, 1, 1, 10, 20, 30, 12, 96, "Fleet") +
			wordRow(1, 1, 1, 2, 45, 21, 50, 11, 88, "maintenance") +
			wordRow(1, 1, 2, 1, 10, 40, 40, 12, 90, "deferred"),
		2: wordRow(1, 1, 1, 1, 10, 20, 60, 12, 70, "Budget"),
		3: wordRow(1, 1, 1, 1, 10, 20, 60, 12, 81, "Hiring"),
	}}
	e := newTestEngine(t, r, 3)

	results, err := e.ExtractPages(context.Background(), "/tmp/doc.pdf")
	if err != nil {
		t.Fatalf("ExtractPages: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(results))
	}
	for i, res := range results {
		if res.PageNumber != i+1 {
			t.Errorf("page %d out of order: got %d", i+1, res.PageNumber)
		}
		if res.Err != nil {
			t.Errorf("page %d unexpected error: %v", i+1, res.Err)
		}
	}

	if got := results[0].Spans; len(got) != 2 {
		t.Fatalf("page 1 spans = %v, want 2 lines", got)
	}
	if results[0].Spans[0] != "Fleet maintenance" {
		t.Errorf("line grouping: got %q", results[0].Spans[0])
	}
	if results[0].Spans[1] != "deferred" {
		t.Errorf("second line: got %q", results[0].Spans[1])
	}
	if txt := results[0].Text(); txt != "Fleet maintenance\ndeferred" {
		t.Errorf("Text() = %q", txt)
	}
}

func TestExtractPagesConfidenceAndBoxes(t *testing.T) {
	r := fakeRunner{tsvByPage: map[int]string{
		1: wordRow(1, 1, 1, 1, 10, 20, 30, 12, 80, "two") +
			wordRow(1, 1, 1, 2, 50, 18, 30, 16, 60, "words"),
	}}
	e := newTestEngine(t, r, 1)

	results, err := e.ExtractPages(context.Background(), "/tmp/doc.pdf")
	if err != nil {
		t.Fatalf("ExtractPages: %v", err)
	}
	res := results[0]
	if len(res.Confidences) != 1 {
		t.Fatalf("confidences = %v", res.Confidences)
	}
	if got := res.Confidences[0]; got < 0.69 || got > 0.71 {
		t.Errorf("mean confidence = %v, want ~0.70", got)
	}
	if len(res.Boxes) != 1 {
		t.Fatalf("boxes = %v", res.Boxes)
	}
	// Union of (10,20,30x12) and (50,18,30x16): left 10, top 18, right 80, bottom 34.
	b := res.Boxes[0]
	if b.Left != 10 || b.Top != 18 || b.Width != 70 || b.Height != 16 {
		t.Errorf("union box = %+v", b)
	}
	if mc := res.MeanConfidence(); mc < 0.69 || mc > 0.71 {
		t.Errorf("MeanConfidence = %v", mc)
	}
}

func TestExtractPagesPageFailureIsIsolated(t *testing.T) {
	r := fakeRunner{
		tsvByPage: map[int]string{
			1: wordRow(1, 1, 1, 1, 0, 0, 10, 10, 90, "ok"),
			3: wordRow(1, 1, 1, 1, 0, 0, 10, 10, 90, "also"),
		},
		failPage: 2,
	}
	e := newTestEngine(t, r, 3)

	results, err := e.ExtractPages(context.Background(), "/tmp/doc.pdf")
	if err != nil {
		t.Fatalf("document-level error on page failure: %v", err)
	}
	if results[0].Err != nil || results[2].Err != nil {
		t.Errorf("healthy pages should not carry errors: %v / %v", results[0].Err, results[2].Err)
	}
	if results[1].Err == nil {
		t.Error("failed page should carry its error")
	}
	if len(results[1].Spans) != 0 {
		t.Errorf("failed page should have no spans: %v", results[1].Spans)
	}
}

func TestExtractPagesUnreadableDocument(t *testing.T) {
	e := newTestEngine(t, fakeRunner{}, 0)
	e.pageCount = func(string) (int, error) { return 0, fmt.Errorf("xref table corrupt") }

	_, err := e.ExtractPages(context.Background(), "/tmp/bad.pdf")
	if err == nil {
		t.Fatal("expected error for unreadable document")
	}
	if !common.IsValidation(err) {
		t.Errorf("expected validation kind, got %v", err)
	}
}

func TestExtractPagesMaxPagesCap(t *testing.T) {
	r := fakeRunner{tsvByPage: map[int]string{
		1: wordRow(1, 1, 1, 1, 0, 0, 10, 10, 90, "one"),
		2: wordRow(1, 1, 1, 1, 0, 0, 10, 10, 90, "two"),
	}}
	e := newTestEngine(t, r, 10)
	e.cfg.MaxPages = 2

	results, err := e.ExtractPages(context.Background(), "/tmp/long.pdf")
	if err != nil {
		t.Fatalf("ExtractPages: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected cap at 2 pages, got %d", len(results))
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"a\r\nb", "a\nb"},
		{"a\t\tb", "a b"},
		{"a   b", "a b"},
		{"a\n\n\n\nb", "a\n\nb"},
		{"line   \ntrailing", "line\ntrailing"},
		{"head\n-----\ntail", "head\n\ntail"},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseTSVSkipsLayoutRows(t *testing.T) {
	tsv := tsvHeader +
		"1\t1\t0\t0\t0\t0\t0\t0\t100\t100\t-1\t\n" +
		"4\t1\t1\t1\t1\t0\t10\t20\t80\t12\t-1\t\n" +
		wordRow(1, 1, 1, 1, 10, 20, 30, 12, 95, "real")
	spans, confs, boxes := parseTSV([]byte(tsv))
	if len(spans) != 1 || spans[0] != "real" {
		t.Fatalf("spans = %v", spans)
	}
	if len(confs) != 1 || len(boxes) != 1 {
		t.Fatalf("parallel slices misaligned: %d confs, %d boxes", len(confs), len(boxes))
	}
}
