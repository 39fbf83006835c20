package llm

// BuildClassificationSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map. We pass this to the model as a structured output constraint and
// also use it locally to validate.
func BuildClassificationSchema(departmentTitles []string) map[string]any {
	deptProp := map[string]any{"type": "string", "minLength": 1}
	if len(departmentTitles) > 0 {
		deptProp = map[string]any{"type": "string", "enum": anySlice(departmentTitles)}
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"analysis_results": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"properties": map[string]any{
						"department_name": deptProp,
						"topic_name":      map[string]any{"type": "string", "minLength": 1},
					},
					"required": []string{"department_name", "topic_name"},
				},
			},
		},
		"required": []string{"analysis_results"},
	}
}

// BuildSummarySchema constrains the summarizer output. Both fields are
// required but may be empty; a department can legitimately have nothing
// actionable to say about a topic, and that still counts as a summary.
func BuildSummarySchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"title":       map[string]any{"type": "string"},
			"description": map[string]any{"type": "string"},
		},
		"required": []string{"title", "description"},
	}
}

func anySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
