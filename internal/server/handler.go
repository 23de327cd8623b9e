package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/stellarlinkco/webchat/internal/completion"
)

type chatRequest struct {
	Messages json.RawMessage `json:"messages"`
}

type incomingMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type usagePayload struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatResponse struct {
	Response       string       `json:"response"`
	Usage          usagePayload `json:"usage"`
	FunctionCalled bool         `json:"functionCalled"`
	SearchQuery    string       `json:"searchQuery,omitempty"`
	ResultsCount   int          `json:"resultsCount,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	reqID := uuid.NewString()[:8]

	var body chatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if len(body.Messages) == 0 || string(body.Messages) == "null" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "messages field is required"})
		return
	}

	var incoming []incomingMessage
	if err := json.Unmarshal(body.Messages, &incoming); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "messages must be an array"})
		return
	}

	if s.relay == nil || s.cfg.Completion.APIKey == "" || s.cfg.Retrieval.APIKey == "" {
		log.Printf("[server] %s rejected: service credentials not configured", reqID)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "service credentials not configured"})
		return
	}

	messages := s.buildHistory(incoming)
	log.Printf("[server] %s chat turn: %d messages", reqID, len(messages))

	turn, err := s.relay.HandleTurn(r.Context(), messages)
	if err != nil {
		log.Printf("[server] %s relay error: %v", reqID, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "completion service request failed"})
		return
	}

	if turn.FunctionCalled {
		log.Printf("[server] %s tool invoked: query=%q results=%d", reqID, turn.SearchQuery, turn.ResultsCount)
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Response: turn.Response,
		Usage: usagePayload{
			PromptTokens:     turn.Usage.PromptTokens,
			CompletionTokens: turn.Usage.CompletionTokens,
			TotalTokens:      turn.Usage.TotalTokens,
		},
		FunctionCalled: turn.FunctionCalled,
		SearchQuery:    turn.SearchQuery,
		ResultsCount:   turn.ResultsCount,
	})
}

// buildHistory maps the renderer's messages onto the completion types and
// prepends the configured system prompt when the history lacks one.
func (s *Server) buildHistory(incoming []incomingMessage) []completion.Message {
	messages := make([]completion.Message, 0, len(incoming)+1)

	prompt := strings.TrimSpace(s.cfg.Completion.SystemPrompt)
	hasSystem := len(incoming) > 0 && strings.EqualFold(incoming[0].Role, completion.RoleSystem)
	if prompt != "" && !hasSystem {
		messages = append(messages, completion.Message{
			Role:    completion.RoleSystem,
			Content: prompt,
		})
	}

	for _, msg := range incoming {
		messages = append(messages, completion.Message{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	return messages
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[server] write response: %v", err)
	}
}
