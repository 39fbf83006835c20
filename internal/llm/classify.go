package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/joseph-ayodele/docpipe/internal/common"
	"github.com/joseph-ayodele/docpipe/internal/department"
)

// TopicAssignment pairs a concise topic with the department most relevant to it.
type TopicAssignment struct {
	DepartmentName string `json:"department_name"`
	TopicName      string `json:"topic_name"`
}

// Classifier extracts (department, topic) pairs from one page of recognized
// text. The department vocabulary is closed: the schema enum restricts the
// model to the registry's titles.
type Classifier struct {
	client   *Client
	registry *department.Registry
	model    string
}

func NewClassifier(client *Client, registry *department.Registry, model string) *Classifier {
	return &Classifier{client: client, registry: registry, model: model}
}

func (c *Classifier) Classify(ctx context.Context, text string) ([]TopicAssignment, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	titles := c.registry.Titles()
	schema := BuildClassificationSchema(titles)
	sys := "You are a document analyst for a metropolitan transit authority. Return ONLY JSON that matches the provided JSON Schema."
	user := buildClassifyPrompt(titles, text)

	raw, err := c.client.CompleteJSON(ctx, c.model, sys, user, schema)
	if err != nil {
		return nil, err
	}

	var out struct {
		AnalysisResults []TopicAssignment `json:"analysis_results"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, common.E(common.KindPermanentBackend, "llm.classify", "unmarshal analysis results", err)
	}

	results := make([]TopicAssignment, 0, len(out.AnalysisResults))
	for _, r := range out.AnalysisResults {
		r.DepartmentName = strings.TrimSpace(r.DepartmentName)
		r.TopicName = strings.TrimSpace(r.TopicName)
		if r.DepartmentName == "" || r.TopicName == "" {
			continue
		}
		results = append(results, r)
	}
	return results, nil
}

func buildClassifyPrompt(titles []string, text string) string {
	var b strings.Builder
	b.WriteString("Analyze the text data provided below to identify key topics and the most relevant department for each topic.\n\n")
	b.WriteString("Context & Rules:\n")
	b.WriteString("The data is one page of a scanned internal document (meeting transcript, memo, or report). ")
	b.WriteString("The relevant departments are strictly limited to: ")
	for i, t := range titles {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(`"` + t + `"`)
	}
	b.WriteString(".\n")
	b.WriteString("Each topic name must be concise (a few words). Do not invent topics that are not supported by the text; an empty analysis_results list is valid when nothing actionable appears.\n\n")
	b.WriteString("Text Data to Analyze:\n")
	b.WriteString(text)
	return b.String()
}
