package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ashish13377/Intellido/internal/agent"
	"github.com/ashish13377/Intellido/internal/conversation"
	logpkg "github.com/ashish13377/Intellido/internal/logger"
	"github.com/ashish13377/Intellido/internal/services/ai"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// TurnRunner runs one conversational turn
type TurnRunner interface {
	RunTurn(ctx context.Context, state *conversation.State, input string) (*agent.TurnResult, error)
}

var _ TurnRunner = (*agent.Loop)(nil)

// SessionHandler exposes conversations over HTTP. Turns on one session are
// serialised by the session lock.
type SessionHandler struct {
	sessions *conversation.Manager
	loop     TurnRunner
	logger   *zap.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions *conversation.Manager, loop TurnRunner, logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{sessions: sessions, loop: loop, logger: logger}
}

// RegisterRoutes registers session routes
func (h *SessionHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/sessions", h.CreateSession).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}", h.DeleteSession).Methods(http.MethodDelete)
	r.HandleFunc("/sessions/{id}/messages", h.SendMessage).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/messages", h.GetMessages).Methods(http.MethodGet)
}

// SessionResponse is returned when a session is created
type SessionResponse struct {
	SessionID string    `json:"sessionId"`
	CreatedAt time.Time `json:"createdAt"`
}

// MessageRequest is one user turn
type MessageRequest struct {
	Message *string `json:"message" validate:"required"`
}

// MessageResponse is the outcome of one turn
type MessageResponse struct {
	Reply   string   `json:"reply"`
	Notices []string `json:"notices"`
	Steps   int      `json:"steps"`
	Ended   bool     `json:"ended,omitempty"`
}

// TranscriptMessage is one history entry as returned to clients
type TranscriptMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CreateSession starts a new conversation
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Create(r.Context())
	if err != nil {
		h.logger.Error("failed_to_create_session", zap.Error(err))
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "failed to create session")
		return
	}
	h.logger.Info("session_created", zap.String("session_id", session.ID()))
	respondJSON(w, http.StatusCreated, SessionResponse{SessionID: session.ID(), CreatedAt: time.Now().UTC()})
}

// SendMessage runs one turn. Exit tokens end the session instead.
func (h *SessionHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req MessageRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	if agent.IsExitToken(*req.Message) {
		if err := h.sessions.Delete(r.Context(), id); err != nil {
			h.respondSessionError(w, id, err)
			return
		}
		respondJSON(w, http.StatusOK, MessageResponse{Reply: "👋 Exiting...", Notices: []string{}, Ended: true})
		return
	}

	ctx := ai.WithSessionID(r.Context(), id)
	session, release, err := h.sessions.Acquire(ctx, id)
	if err != nil {
		h.respondSessionError(w, id, err)
		return
	}
	defer release()

	result, err := h.loop.RunTurn(ctx, session.State(), *req.Message)
	if err != nil {
		h.respondTurnError(w, id, err)
		return
	}

	notices := result.Notices
	if notices == nil {
		notices = []string{}
	}
	respondJSON(w, http.StatusOK, MessageResponse{Reply: result.Reply, Notices: notices, Steps: result.Steps})
}

// GetMessages returns the conversation without the system prompt
func (h *SessionHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	session, err := h.sessions.Get(r.Context(), id)
	if err != nil {
		h.respondSessionError(w, id, err)
		return
	}

	history := session.State().Transcript()
	out := make([]TranscriptMessage, 0, len(history))
	for _, m := range history {
		out = append(out, TranscriptMessage{Role: m.Role, Content: m.Content})
	}
	respondJSON(w, http.StatusOK, out)
}

// DeleteSession discards a conversation
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.sessions.Delete(r.Context(), id); err != nil {
		h.respondSessionError(w, id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) respondSessionError(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, conversation.ErrSessionNotFound):
		respondJSONError(w, http.StatusNotFound, "Not Found", "session not found")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		respondJSONError(w, http.StatusConflict, "Conflict", "another turn is still running for this session")
	default:
		h.logger.Error("session_store_failed",
			zap.String("session_id", logpkg.SanitizeSessionID(id)),
			zap.Error(err),
		)
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "session store unavailable")
	}
}

func (h *SessionHandler) respondTurnError(w http.ResponseWriter, id string, err error) {
	h.logger.Warn("turn_failed",
		zap.String("session_id", logpkg.SanitizeSessionID(id)),
		zap.Error(err),
	)
	switch {
	case ai.IsRateLimitError(err):
		respondJSONError(w, http.StatusTooManyRequests, "Too Many Requests", "the model is rate limited, try again shortly")
	case errors.Is(err, ai.ErrEndpointUnavailable):
		respondJSONError(w, http.StatusBadGateway, "Bad Gateway", "the model endpoint is unavailable")
	case errors.Is(err, agent.ErrParseFailure):
		respondJSONError(w, http.StatusBadGateway, "Bad Gateway", "the model reply could not be understood")
	case errors.Is(err, agent.ErrTurnBudgetExceeded):
		respondJSONError(w, http.StatusUnprocessableEntity, "Unprocessable Entity", "the request needed too many steps")
	case errors.Is(err, context.DeadlineExceeded):
		respondJSONError(w, http.StatusGatewayTimeout, "Gateway Timeout", "the turn timed out")
	default:
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "the turn failed")
	}
}
