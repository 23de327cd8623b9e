package retrieval

import (
	"encoding/json"
	"fmt"
)

// Record is one normalized result from the retrieval service. Optional fields
// default to empty values so serialized records never have missing keys.
type Record struct {
	Title       string         `json:"title"`
	URL         string         `json:"url"`
	Description string         `json:"description"`
	Content     string         `json:"content"`
	Screenshot  string         `json:"screenshot,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Result is the tagged success/failure outcome of one retrieval call.
// Failure is a normal, representable outcome, not an error return.
type Result struct {
	Query   string   `json:"query"`
	Success bool     `json:"success"`
	Results []Record `json:"results"`
	Count   int      `json:"count"`
	Error   string   `json:"error,omitempty"`
}

// ToolContent serializes the result into the content of a tool message.
func (r *Result) ToolContent() string {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf(`{"query":%q,"success":false,"results":[],"count":0,"error":"serialize result: %v"}`, r.Query, err)
	}
	return string(data)
}

// ParseToolContent decodes a tool-message content produced by ToolContent.
func ParseToolContent(content string) (*Result, error) {
	var result Result
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, fmt.Errorf("parse tool content: %w", err)
	}
	return &result, nil
}
