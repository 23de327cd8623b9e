package tools

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Args is the validated shape of a web_search invocation.
type Args struct {
	QueryOrURL string `json:"query_or_url"`
	Limit      int    `json:"limit,omitempty"`
	Language   string `json:"language,omitempty"`
	Region     string `json:"region,omitempty"`
}

// ParseArgs decodes and validates a raw tool-call argument payload. A
// malformed payload or a missing query is a validation error for the caller
// to report back to the model, never a panic.
func (r *Registry) ParseArgs(raw string) (Args, error) {
	var args Args
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return Args{}, fmt.Errorf("parse tool arguments: %w", err)
	}

	if strings.TrimSpace(args.QueryOrURL) == "" {
		return Args{}, fmt.Errorf("tool argument query_or_url is required")
	}

	if args.Limit <= 0 {
		args.Limit = r.defaults.DefaultLimit
	}
	if args.Limit > r.defaults.MaxLimit {
		args.Limit = r.defaults.MaxLimit
	}
	if args.Language == "" {
		args.Language = r.defaults.Language
	}
	if args.Region == "" {
		args.Region = r.defaults.Region
	}

	return args, nil
}
