package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/docpipe/internal/common"
)

type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	DPI           int    // rasterization DPI for scanned pages, default 300
	MaxPages      int    // 0 = no limit
	Workers       int    // page-level fan-out; <=1 means strictly sequential

	TessdataDir string
	PSM         int // e.g., 6 is good for a uniform block of text
	OEM         int // 1 = LSTM; leave 0 to use default
}

// Box is a recognized span's bounding rectangle in raster pixels, already
// normalized to plain numerics so it serializes without backend types.
type Box struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PageResult is the recognition output for one page. Pages that fail carry Err
// and empty spans; the rest of the document is unaffected.
type PageResult struct {
	PageNumber  int       // 1-based
	Spans       []string  // line-level text spans in reading order
	Confidences []float32 // 0..1, parallel to Spans
	Boxes       []Box     // parallel to Spans
	Duration    time.Duration
	Err         error
}

// Text joins the page's spans into one normalized payload.
func (p PageResult) Text() string {
	return Normalize(strings.Join(p.Spans, "\n"))
}

// MeanConfidence averages the span confidences, 0 when the page is empty.
func (p PageResult) MeanConfidence() float32 {
	if len(p.Confidences) == 0 {
		return 0
	}
	var sum float32
	for _, c := range p.Confidences {
		sum += c
	}
	return sum / float32(len(p.Confidences))
}

// Engine converts a PDF into one text payload per page. Each page is
// rasterized independently at Config.DPI and handed to tesseract in TSV mode.
type Engine struct {
	cfg    Config
	runner Runner
	logger *slog.Logger

	// pageCount is swappable so tests can skip real PDF parsing.
	pageCount func(path string) (int, error)
}

func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Engine{
		cfg:       cfg,
		runner:    execRunner{},
		logger:    logger,
		pageCount: pdfapi.PageCountFile,
	}
}

// ExtractPages runs recognition over every page of the PDF at path, strictly in
// document order. The returned slice always has one entry per page; a failure
// on one page is recorded in that entry and does not abort the remaining pages.
// A document-level error is returned only when the PDF itself is unreadable.
func (e *Engine) ExtractPages(ctx context.Context, path string) ([]PageResult, error) {
	pages, err := e.pageCount(path)
	if err != nil {
		e.logger.Error("ocr.document.unreadable", "path", path, "error", err)
		return nil, common.E(common.KindValidation, "ocr.extract", "not a readable PDF", err)
	}
	if pages <= 0 {
		return nil, common.E(common.KindValidation, "ocr.extract", "document has no pages", nil)
	}
	if e.cfg.MaxPages > 0 && pages > e.cfg.MaxPages {
		e.logger.Warn("ocr.document.truncated", "path", path, "pages", pages, "max_pages", e.cfg.MaxPages)
		pages = e.cfg.MaxPages
	}

	tmpDir, err := os.MkdirTemp("", "docpipe-ocr-*")
	if err != nil {
		return nil, err
	}
	defer func() {
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			e.logger.Warn("ocr.tmpdir.remove_failed", "dir", tmpDir, "error", rmErr)
		}
	}()

	results := make([]PageResult, pages)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i := 1; i <= pages; i++ {
		page := i
		g.Go(func() error {
			start := time.Now()
			res := e.extractPage(gctx, path, tmpDir, page)
			res.PageNumber = page
			res.Duration = time.Since(start)
			if res.Err != nil {
				e.logger.Error("ocr.page.failed", "path", path, "page", page, "error", res.Err)
			} else {
				e.logger.Debug("ocr.page.ok", "path", path, "page", page,
					"spans", len(res.Spans), "confidence", res.MeanConfidence(),
					"duration_ms", res.Duration.Milliseconds())
			}
			results[page-1] = res
			// Page failures stay page-local; only cancellation stops the group.
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func (e *Engine) extractPage(ctx context.Context, path, tmpDir string, page int) PageResult {
	img, err := e.rasterizePage(ctx, path, tmpDir, page)
	if err != nil {
		return PageResult{Err: err}
	}
	spans, confs, boxes, err := e.recognizeImage(ctx, img)
	if err != nil {
		return PageResult{Err: err}
	}
	return PageResult{Spans: spans, Confidences: confs, Boxes: boxes}
}

// rasterizePage renders a single page to PNG via
// pdftoppm -r <dpi> -png -f <page> -l <page> <in.pdf> <tmp/page-N>.
func (e *Engine) rasterizePage(ctx context.Context, path, tmpDir string, page int) (string, error) {
	prefix := filepath.Join(tmpDir, fmt.Sprintf("page-%d", page))
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm,
		"-r", fmt.Sprintf("%d", e.cfg.DPI),
		"-png",
		"-f", fmt.Sprintf("%d", page),
		"-l", fmt.Sprintf("%d", page),
		path, prefix)
	if err != nil {
		return "", fmt.Errorf("pdftoppm page %d: %w (%s)", page, err, truncate(string(errb), 512))
	}

	// pdftoppm appends its own page suffix (prefix-1.png, prefix-01.png, ...).
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if len(matches) == 0 {
		return "", fmt.Errorf("pdftoppm produced no image for page %d", page)
	}
	return matches[0], nil
}

// recognizeImage runs tesseract in TSV mode and folds words into line spans.
func (e *Engine) recognizeImage(ctx context.Context, imgPath string) ([]string, []float32, []Box, error) {
	args := []string{imgPath, "stdout", "-l", e.cfg.TesseractLang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", fmt.Sprintf("%d", e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", fmt.Sprintf("%d", e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	args = append(args, "tsv")

	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("tesseract: %w (%s)", err, truncate(string(errb), 512))
	}
	spans, confs, boxes := parseTSV(out)
	return spans, confs, boxes, nil
}
