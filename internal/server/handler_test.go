package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stellarlinkco/webchat/internal/completion"
	"github.com/stellarlinkco/webchat/internal/config"
	"github.com/stellarlinkco/webchat/internal/relay"
)

type fakeTurnHandler struct {
	turn     *relay.Turn
	err      error
	calls    int
	messages []completion.Message
}

func (f *fakeTurnHandler) HandleTurn(ctx context.Context, messages []completion.Message) (*relay.Turn, error) {
	f.calls++
	f.messages = messages
	return f.turn, f.err
}

func configuredConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Completion.APIKey = "sk-test"
	cfg.Retrieval.APIKey = "fc-test"
	return cfg
}

func postChat(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.handleChat(rec, req)
	return rec
}

func TestHandleChat_Success(t *testing.T) {
	handler := &fakeTurnHandler{
		turn: &relay.Turn{
			Response:       "It rained in Berlin today.",
			Usage:          completion.Usage{PromptTokens: 50, CompletionTokens: 20, TotalTokens: 70},
			FunctionCalled: true,
			SearchQuery:    "berlin weather",
			ResultsCount:   5,
		},
	}
	srv := New(configuredConfig(), handler)

	rec := postChat(t, srv, `{"messages":[{"role":"user","content":"weather in berlin?"}]}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp chatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Response != "It rained in Berlin today." {
		t.Errorf("response = %q", resp.Response)
	}
	if resp.Usage.TotalTokens != 70 {
		t.Errorf("total tokens = %d, want 70", resp.Usage.TotalTokens)
	}
	if !resp.FunctionCalled || resp.SearchQuery != "berlin weather" || resp.ResultsCount != 5 {
		t.Errorf("tool fields = %+v", resp)
	}
	if handler.calls != 1 {
		t.Errorf("relay calls = %d, want 1", handler.calls)
	}
}

func TestHandleChat_MissingMessages(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty object", `{}`},
		{"null messages", `{"messages":null}`},
		{"not an array", `{"messages":"hello"}`},
		{"object messages", `{"messages":{"role":"user"}}`},
		{"invalid json", `{"messages":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := &fakeTurnHandler{turn: &relay.Turn{Response: "nope"}}
			srv := New(configuredConfig(), handler)

			rec := postChat(t, srv, tt.body)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if handler.calls != 0 {
				t.Errorf("relay calls = %d, want 0 for invalid request", handler.calls)
			}
		})
	}
}

func TestHandleChat_MissingCredentials(t *testing.T) {
	cfg := config.DefaultConfig() // no keys set
	srv := New(cfg, nil)

	rec := postChat(t, srv, `{"messages":[{"role":"user","content":"hi"}]}`)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.Contains(resp.Error, "credentials") {
		t.Errorf("error = %q, want credentials message", resp.Error)
	}
}

func TestHandleChat_RelayError(t *testing.T) {
	handler := &fakeTurnHandler{err: errors.New("initial completion: upstream 500")}
	srv := New(configuredConfig(), handler)

	rec := postChat(t, srv, `{"messages":[{"role":"user","content":"hi"}]}`)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestHandleChat_MethodNotAllowed(t *testing.T) {
	srv := New(configuredConfig(), &fakeTurnHandler{})

	req := httptest.NewRequest(http.MethodGet, "/api/chat", nil)
	rec := httptest.NewRecorder()
	srv.handleChat(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestHandleChat_SystemPromptPrepended(t *testing.T) {
	handler := &fakeTurnHandler{turn: &relay.Turn{Response: "ok"}}
	cfg := configuredConfig()
	cfg.Completion.SystemPrompt = "You are a concise assistant."
	srv := New(cfg, handler)

	postChat(t, srv, `{"messages":[{"role":"user","content":"hi"}]}`)

	if len(handler.messages) != 2 {
		t.Fatalf("history = %d messages, want 2", len(handler.messages))
	}
	if handler.messages[0].Role != completion.RoleSystem {
		t.Errorf("history[0] role = %q, want system", handler.messages[0].Role)
	}
}

func TestHandleChat_SystemPromptNotDuplicated(t *testing.T) {
	handler := &fakeTurnHandler{turn: &relay.Turn{Response: "ok"}}
	cfg := configuredConfig()
	cfg.Completion.SystemPrompt = "You are a concise assistant."
	srv := New(cfg, handler)

	postChat(t, srv, `{"messages":[{"role":"system","content":"custom"},{"role":"user","content":"hi"}]}`)

	if len(handler.messages) != 2 {
		t.Fatalf("history = %d messages, want 2", len(handler.messages))
	}
	if handler.messages[0].Content != "custom" {
		t.Errorf("existing system message should win, got %q", handler.messages[0].Content)
	}
}

func TestHealthz(t *testing.T) {
	srv := New(configuredConfig(), &fakeTurnHandler{})
	handler, err := srv.Handler()
	if err != nil {
		t.Fatalf("Handler: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestStaticIndexServed(t *testing.T) {
	srv := New(configuredConfig(), &fakeTurnHandler{})
	handler, err := srv.Handler()
	if err != nil {
		t.Fatalf("Handler: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "webchat") {
		t.Error("index page should be served at /")
	}
}
