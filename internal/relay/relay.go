// Package relay drives the two-phase interaction with the completion
// service: an initial call that may request the web retrieval tool, and a
// follow-up call that turns the tool results into the final answer.
package relay

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/stellarlinkco/webchat/internal/completion"
	"github.com/stellarlinkco/webchat/internal/retrieval"
	"github.com/stellarlinkco/webchat/internal/tools"
)

// FallbackResponse substitutes an empty model reply so the renderer never
// receives a blank answer.
const FallbackResponse = "I could not produce a response for that. Please try rephrasing."

// Completer is the completion-service dependency, injectable for tests.
type Completer interface {
	Complete(ctx context.Context, req completion.Request) (*completion.Response, error)
}

// Retriever is the content-retrieval dependency, injectable for tests.
type Retriever interface {
	Retrieve(ctx context.Context, req retrieval.Request) *retrieval.Result
}

// Turn is the outcome of one chat request.
type Turn struct {
	Response       string
	Usage          completion.Usage
	FunctionCalled bool
	SearchQuery    string
	ResultsCount   int
}

type Relay struct {
	completer Completer
	retriever Retriever
	registry  *tools.Registry
}

func New(completer Completer, retriever Retriever, registry *tools.Registry) *Relay {
	return &Relay{
		completer: completer,
		retriever: retriever,
		registry:  registry,
	}
}

// HandleTurn runs one conversation turn over the given history. Retrieval
// failures are reported to the model as tool content; only completion-service
// failures propagate as errors.
func (r *Relay) HandleTurn(ctx context.Context, messages []completion.Message) (*Turn, error) {
	first, err := r.completer.Complete(ctx, completion.Request{
		Messages: messages,
		Tools:    r.registry.Definitions(),
	})
	if err != nil {
		return nil, fmt.Errorf("initial completion: %w", err)
	}

	if len(first.ToolCalls) == 0 {
		return &Turn{
			Response: orFallback(first.Content),
			Usage:    first.Usage,
		}, nil
	}

	toolMessages, searchQuery, resultsCount := r.executeToolCalls(ctx, first.ToolCalls)

	// Second pass: original history, the assistant message that requested the
	// tools, then one tool message per request in the original order. Tools
	// are not offered again.
	history := make([]completion.Message, 0, len(messages)+1+len(toolMessages))
	history = append(history, messages...)
	history = append(history, completion.Message{
		Role:      completion.RoleAssistant,
		Content:   first.Content,
		ToolCalls: first.ToolCalls,
	})
	history = append(history, toolMessages...)

	second, err := r.completer.Complete(ctx, completion.Request{Messages: history})
	if err != nil {
		return nil, fmt.Errorf("final completion: %w", err)
	}

	return &Turn{
		Response:       orFallback(second.Content),
		Usage:          first.Usage.Add(second.Usage),
		FunctionCalled: true,
		SearchQuery:    searchQuery,
		ResultsCount:   resultsCount,
	}, nil
}

// executeToolCalls resolves every tool call the model issued. The retrieval
// calls are independent and run concurrently; the returned messages keep the
// order of the original requests, each tagged with its originating call ID.
func (r *Relay) executeToolCalls(ctx context.Context, calls []completion.ToolCall) ([]completion.Message, string, int) {
	results := make([]*retrieval.Result, len(calls))
	queries := make([]string, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		if !r.registry.Known(call.Name) {
			results[i] = toolFailure(call.Name, fmt.Sprintf("unknown tool %q", call.Name))
			continue
		}

		args, err := r.registry.ParseArgs(call.Arguments)
		if err != nil {
			results[i] = toolFailure(call.Name, err.Error())
			continue
		}
		queries[i] = args.QueryOrURL

		wg.Add(1)
		go func(i int, args tools.Args) {
			defer wg.Done()
			results[i] = r.retriever.Retrieve(ctx, retrieval.Request{
				QueryOrURL: args.QueryOrURL,
				Limit:      args.Limit,
				Language:   args.Language,
				Region:     args.Region,
			})
		}(i, args)
	}
	wg.Wait()

	messages := make([]completion.Message, len(calls))
	searchQuery := ""
	resultsCount := 0
	for i, call := range calls {
		if searchQuery == "" && queries[i] != "" {
			searchQuery = queries[i]
		}
		if results[i].Success {
			resultsCount += results[i].Count
		}
		messages[i] = completion.Message{
			Role:       completion.RoleTool,
			Content:    results[i].ToolContent(),
			ToolCallID: call.ID,
		}
	}

	return messages, searchQuery, resultsCount
}

func toolFailure(query, msg string) *retrieval.Result {
	return &retrieval.Result{
		Query:   query,
		Success: false,
		Results: []retrieval.Record{},
		Error:   msg,
	}
}

func orFallback(content string) string {
	if strings.TrimSpace(content) == "" {
		return FallbackResponse
	}
	return content
}
