package memory

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"agentcore-agent/internal/domain"
)

// PromptEditor is the slice of the agent the session-start hook may touch.
type PromptEditor interface {
	SystemPrompt() string
	SetSystemPrompt(string)
}

// SessionHooks is invoked synchronously by the agent session at two defined
// points of its turn loop: once when the session starts and once after every
// appended message. No event bus is involved; within one agent instance turns
// reach the store strictly in observation order.
type SessionHooks interface {
	OnSessionStart(ctx context.Context, agent PromptEditor)
	OnTurnAppended(ctx context.Context, turn domain.Turn)
}

// TurnStore is the persistence surface the hooks need.
type TurnStore interface {
	AppendTurn(ctx context.Context, role, text string) (domain.Turn, error)
	LastTurns(ctx context.Context, k int) ([]domain.Turn, error)
	ActorID() string
	SessionID() string
}

const historyWindow = 10

// Hooks loads prior turns into the model context on session start and
// persists new turns as they are appended. Both directions fail soft: a
// conversation must never be interrupted by its own memory.
type Hooks struct {
	store TurnStore
	log   *slog.Logger
}

// NewHooks creates session hooks over the given turn store.
func NewHooks(store TurnStore, log *slog.Logger) (*Hooks, error) {
	if store == nil {
		return nil, errors.New("memory: turn store must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Hooks{store: store, log: log}, nil
}

// OnSessionStart fetches the recent turn window and folds it into the agent's
// system prompt. On failure the agent proceeds without historical context.
func (h *Hooks) OnSessionStart(ctx context.Context, agent PromptEditor) {
	turns, err := h.store.LastTurns(ctx, historyWindow)
	if err != nil {
		h.log.Error("failed to load conversation history",
			"actor_id", h.store.ActorID(), "session_id", h.store.SessionID(), "err", err)
		return
	}
	if len(turns) == 0 {
		return
	}

	lines := make([]string, 0, len(turns))
	for _, turn := range turns {
		lines = append(lines, turn.Role+": "+turn.Text)
	}
	history := "Recent conversation:\n" + strings.Join(lines, "\n")

	if prompt := agent.SystemPrompt(); prompt != "" {
		agent.SetSystemPrompt(prompt + "\n\n" + history)
	} else {
		agent.SetSystemPrompt(history)
	}
	h.log.Info("loaded conversation history",
		"actor_id", h.store.ActorID(), "session_id", h.store.SessionID(), "turns", len(turns))
}

// OnTurnAppended persists the turn. Empty text is skipped silently;
// persistence failure is logged and swallowed.
func (h *Hooks) OnTurnAppended(ctx context.Context, turn domain.Turn) {
	if turn.Text == "" {
		return
	}

	stored, err := h.store.AppendTurn(ctx, turn.Role, turn.Text)
	if err != nil {
		h.log.Error("failed to save message",
			"actor_id", h.store.ActorID(), "session_id", h.store.SessionID(), "err", err)
		return
	}
	h.log.Info("stored message",
		"actor_id", h.store.ActorID(), "session_id", h.store.SessionID(),
		"event_id", stored.EventID, "role", stored.Role)
}
