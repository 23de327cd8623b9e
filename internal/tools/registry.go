// Package tools declares the capabilities exposed to the completion service
// and validates the argument payloads the model sends back.
package tools

import (
	"github.com/stellarlinkco/webchat/internal/completion"
	"github.com/stellarlinkco/webchat/internal/config"
)

// WebSearchToolName is the single tool declared to the model.
const WebSearchToolName = "web_search"

// Registry is static configuration: the declarative list of tools handed to
// the completion service on every first-pass request. It has no side effects.
type Registry struct {
	defaults config.RetrievalConfig
}

func NewRegistry(cfg config.RetrievalConfig) *Registry {
	return &Registry{defaults: cfg}
}

// Definitions returns the tool declarations for the completion request.
func (r *Registry) Definitions() []completion.ToolDefinition {
	return []completion.ToolDefinition{
		{
			Name: WebSearchToolName,
			Description: "Search the web for current information, or fetch the content of a " +
				"specific page by URL. Accepts a search query (which may include a " +
				"site:example.com operator to restrict results to one domain) or a full URL.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query_or_url": map[string]any{
						"type":        "string",
						"description": "Search query or full URL to fetch",
					},
					"limit": map[string]any{
						"type":        "integer",
						"description": "Number of search results to return (1-10)",
					},
					"language": map[string]any{
						"type":        "string",
						"description": "Language code for results (e.g. 'en')",
					},
					"region": map[string]any{
						"type":        "string",
						"description": "Region code for results (e.g. 'us')",
					},
				},
				"required": []string{"query_or_url"},
			},
		},
	}
}

// Known reports whether the named tool is declared by this registry.
func (r *Registry) Known(name string) bool {
	return name == WebSearchToolName
}
