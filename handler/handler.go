// Package handler implements the runtime invoke contract: JSON in, JSON out.
// Failures surface as a structured {"error": ...} result so a calling
// frontend always receives JSON, never a raw fault.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"agentcore-agent/internal/identity"
)

// InvokeRequest is the payload a caller posts to the runtime.
type InvokeRequest struct {
	Prompt    string `json:"prompt"`
	ActorID   string `json:"actor_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// InvokeResponse is always returned, carrying either the answer or an error.
type InvokeResponse struct {
	Response  string `json:"response,omitempty"`
	ActorID   string `json:"actor_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// TurnRunner executes one conversational turn.
type TurnRunner interface {
	Run(ctx context.Context, prompt string) (string, error)
}

// SessionFactory builds a turn runner scoped to one actor and session.
type SessionFactory func(ctx context.Context, actorID, sessionID string) (TurnRunner, error)

// Handler resolves the caller's identity and session, builds an agent for the
// pair, and runs the turn.
type Handler struct {
	newSession     SessionFactory
	defaultActorID string
	log            *slog.Logger
}

// NewHandler creates a Handler. defaultActorID is used when the request
// carries no bearer identity and no explicit actor.
func NewHandler(factory SessionFactory, defaultActorID string, log *slog.Logger) (*Handler, error) {
	if factory == nil {
		return nil, errors.New("handler: session factory must not be nil")
	}
	if strings.TrimSpace(defaultActorID) == "" {
		return nil, errors.New("handler: default actor id must not be empty")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handler{newSession: factory, defaultActorID: defaultActorID, log: log}, nil
}

// Invoke processes one request. bearerToken may be empty; identity derived
// from it wins over the actor id in the payload.
func (h *Handler) Invoke(ctx context.Context, bearerToken string, req InvokeRequest) InvokeResponse {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return InvokeResponse{Error: "prompt is required"}
	}

	actorID := req.ActorID
	if bearerToken != "" {
		if id := identity.DeriveActorIdentity(bearerToken); id.Authenticated() {
			actorID = id.ActorID
		}
	}
	if actorID == "" {
		actorID = h.defaultActorID
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = newSessionID()
	}

	h.log.Info("invoking agent", "actor_id", actorID, "session_id", sessionID)

	session, err := h.newSession(ctx, actorID, sessionID)
	if err != nil {
		h.log.Error("failed to build agent session", "actor_id", actorID, "err", err)
		return InvokeResponse{ActorID: actorID, SessionID: sessionID, Error: err.Error()}
	}

	answer, err := session.Run(ctx, prompt)
	if err != nil {
		h.log.Error("agent turn failed", "actor_id", actorID, "session_id", sessionID, "err", err)
		return InvokeResponse{ActorID: actorID, SessionID: sessionID, Error: err.Error()}
	}

	return InvokeResponse{Response: answer, ActorID: actorID, SessionID: sessionID}
}

var newSessionID = func() string {
	return uuid.NewString()
}
