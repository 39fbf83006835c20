package pipeline

import (
	"context"

	"github.com/joseph-ayodele/docpipe/internal/department"
	"github.com/joseph-ayodele/docpipe/internal/llm"
	"github.com/joseph-ayodele/docpipe/internal/ocr"
)

// PageRecognizer turns a stored PDF into per-page text.
type PageRecognizer interface {
	ExtractPages(ctx context.Context, path string) ([]ocr.PageResult, error)
}

// TopicClassifier assigns (department, topic) pairs to one page of text.
type TopicClassifier interface {
	Classify(ctx context.Context, text string) ([]llm.TopicAssignment, error)
}

// TopicSummarizer produces a department-scoped digest of one topic.
type TopicSummarizer interface {
	Summarize(ctx context.Context, dept department.Department, topic, pageText string) (llm.Summary, error)
}
