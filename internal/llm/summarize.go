package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/joseph-ayodele/docpipe/internal/common"
	"github.com/joseph-ayodele/docpipe/internal/department"
)

// Summary is the department-scoped digest of one topic.
type Summary struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Summarizer condenses a topic and its page context into structured content
// addressed to one department.
type Summarizer struct {
	client *Client
	model  string
}

func NewSummarizer(client *Client, model string) *Summarizer {
	return &Summarizer{client: client, model: model}
}

func (s *Summarizer) Summarize(ctx context.Context, dept department.Department, topic, pageText string) (Summary, error) {
	schema := BuildSummarySchema()
	sys := "You are an AI that reads a topic and its related context, and summarizes the information into structured content relevant to the specified department. Return ONLY JSON that matches the provided JSON Schema."
	user := buildSummaryPrompt(dept, topic, pageText)

	raw, err := s.client.CompleteJSON(ctx, s.model, sys, user, schema)
	if err != nil {
		return Summary{}, err
	}

	var out Summary
	if err := json.Unmarshal(raw, &out); err != nil {
		return Summary{}, common.E(common.KindPermanentBackend, "llm.summarize", "unmarshal summary", err)
	}
	out.Title = strings.TrimSpace(out.Title)
	out.Description = strings.TrimSpace(out.Description)
	return out, nil
}

func buildSummaryPrompt(dept department.Department, topic, pageText string) string {
	var b strings.Builder
	b.WriteString("Document Analysis Request:\n\n")
	b.WriteString("Topic: " + topic + "\n")
	b.WriteString("Context: " + pageText + "\n")
	b.WriteString("Department: " + dept.Title + "\n")
	b.WriteString("Department Description: " + dept.Description + "\n\n")
	b.WriteString("Your task: Summarize the context focusing on the topic provided, ")
	b.WriteString("highlighting actionable information and insights that are directly ")
	b.WriteString("relevant to the department specified.")
	return b.String()
}
