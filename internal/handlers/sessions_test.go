package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ashish13377/Intellido/internal/agent"
	"github.com/ashish13377/Intellido/internal/conversation"
	"github.com/ashish13377/Intellido/internal/services/ai"
	"github.com/gorilla/mux"
)

type fakeTurnRunner struct {
	runFn func(ctx context.Context, state *conversation.State, input string) (*agent.TurnResult, error)
}

var _ TurnRunner = (*fakeTurnRunner)(nil)

func (f *fakeTurnRunner) RunTurn(ctx context.Context, state *conversation.State, input string) (*agent.TurnResult, error) {
	return f.runFn(ctx, state, input)
}

func echoRunner() *fakeTurnRunner {
	return &fakeTurnRunner{runFn: func(ctx context.Context, state *conversation.State, input string) (*agent.TurnResult, error) {
		state.AppendUser(input)
		state.AppendAssistant(`{"type":"output","output":"echo: ` + input + `"}`)
		return &agent.TurnResult{Reply: "echo: " + input, Steps: 1, Notices: []string{"session " + ai.ExtractSessionID(ctx)}}, nil
	}}
}

func newSessionRouter(runner TurnRunner) (*mux.Router, *conversation.Manager) {
	manager := conversation.NewManager("system prompt", nil, nil)
	r := mux.NewRouter()
	NewSessionHandler(manager, runner, nil).RegisterRoutes(r.PathPrefix("/api/v1").Subrouter())
	return r, manager
}

func createSession(t *testing.T, r *mux.Router) string {
	t.Helper()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil))
	if w.Code != http.StatusCreated {
		t.Fatalf("create session status = %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Data SessionResponse `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.SessionID == "" {
		t.Fatal("empty session id")
	}
	return body.Data.SessionID
}

func TestSessionHandler_Conversation(t *testing.T) {
	t.Parallel()

	r, _ := newSessionRouter(echoRunner())
	id := createSession(t, r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, newTestRequest(http.MethodPost, "/api/v1/sessions/"+id+"/messages", map[string]string{"message": "hello"}))
	if w.Code != http.StatusOK {
		t.Fatalf("send status = %d: %s", w.Code, w.Body.String())
	}
	var sent struct {
		Data MessageResponse `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&sent); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sent.Data.Reply != "echo: hello" || sent.Data.Steps != 1 {
		t.Errorf("reply = %+v", sent.Data)
	}
	if len(sent.Data.Notices) != 1 || sent.Data.Notices[0] != "session "+id {
		t.Errorf("session id not propagated: %v", sent.Data.Notices)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+id+"/messages", nil))
	var transcript struct {
		Data []TranscriptMessage `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&transcript); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(transcript.Data) != 2 || transcript.Data[0].Role != ai.RoleUser {
		t.Errorf("transcript = %+v", transcript.Data)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/"+id, nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+id+"/messages", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status after delete = %d, want 404", w.Code)
	}
}

func TestSessionHandler_ExitTokenEndsSession(t *testing.T) {
	t.Parallel()

	runner := &fakeTurnRunner{runFn: func(context.Context, *conversation.State, string) (*agent.TurnResult, error) {
		return nil, errors.New("exit tokens must not reach the model")
	}}
	r, manager := newSessionRouter(runner)
	id := createSession(t, r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, newTestRequest(http.MethodPost, "/api/v1/sessions/"+id+"/messages", map[string]string{"message": "bye"}))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if manager.Len() != 0 {
		t.Errorf("Expected session to be removed, %d remain", manager.Len())
	}
}

func TestSessionHandler_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		turnErr    error
		body       any
		unknownID  bool
		wantStatus int
	}{
		{name: "unknown session", body: map[string]string{"message": "hi"}, unknownID: true, wantStatus: http.StatusNotFound},
		{name: "missing message", body: map[string]string{}, wantStatus: http.StatusBadRequest},
		{name: "endpoint unavailable", body: map[string]string{"message": "hi"}, turnErr: fmt.Errorf("failed to complete: %w", ai.ErrEndpointUnavailable), wantStatus: http.StatusBadGateway},
		{name: "rate limited", body: map[string]string{"message": "hi"}, turnErr: &ai.APIError{StatusCode: 429, Message: "slow down"}, wantStatus: http.StatusTooManyRequests},
		{name: "parse failure", body: map[string]string{"message": "hi"}, turnErr: fmt.Errorf("%w: bad", agent.ErrParseFailure), wantStatus: http.StatusBadGateway},
		{name: "budget exceeded", body: map[string]string{"message": "hi"}, turnErr: agent.ErrTurnBudgetExceeded, wantStatus: http.StatusUnprocessableEntity},
		{name: "timeout", body: map[string]string{"message": "hi"}, turnErr: context.DeadlineExceeded, wantStatus: http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			runner := &fakeTurnRunner{runFn: func(context.Context, *conversation.State, string) (*agent.TurnResult, error) {
				if tt.turnErr != nil {
					return nil, tt.turnErr
				}
				return &agent.TurnResult{Reply: "ok"}, nil
			}}
			r, _ := newSessionRouter(runner)
			id := createSession(t, r)
			if tt.unknownID {
				id = "missing"
			}

			w := httptest.NewRecorder()
			r.ServeHTTP(w, newTestRequest(http.MethodPost, "/api/v1/sessions/"+id+"/messages", tt.body))
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}
