package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentcore"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentcore/types"

	"agentcore-agent/internal/domain"
)

// eventsAPI is the minimal memory data-plane interface required by
// SessionHandle. *bedrockagentcore.Client satisfies it.
type eventsAPI interface {
	CreateEvent(ctx context.Context, in *bedrockagentcore.CreateEventInput, optFns ...func(*bedrockagentcore.Options)) (*bedrockagentcore.CreateEventOutput, error)
	ListEvents(ctx context.Context, in *bedrockagentcore.ListEventsInput, optFns ...func(*bedrockagentcore.Options)) (*bedrockagentcore.ListEventsOutput, error)
}

// SessionHandle is the per-(actor, session) view into a conversation store.
// Construction is get-or-create in shape: the handle is local state, the
// store partitions events by actor and session on first append.
type SessionHandle struct {
	api       eventsAPI
	memoryID  string
	actorID   string
	sessionID string
}

// NewSessionHandle creates a handle into the store for one actor and session.
func NewSessionHandle(api eventsAPI, memoryID, actorID, sessionID string) (*SessionHandle, error) {
	if api == nil {
		return nil, errors.New("memory: api must not be nil")
	}
	if memoryID == "" {
		return nil, errors.New("memory: memory id must not be empty")
	}
	if actorID == "" {
		return nil, errors.New("memory: actor id must not be empty")
	}
	if sessionID == "" {
		return nil, errors.New("memory: session id must not be empty")
	}
	return &SessionHandle{api: api, memoryID: memoryID, actorID: actorID, sessionID: sessionID}, nil
}

func (h *SessionHandle) ActorID() string   { return h.actorID }
func (h *SessionHandle) SessionID() string { return h.sessionID }
func (h *SessionHandle) MemoryID() string  { return h.memoryID }

// AppendTurn persists one conversation turn. Empty text is rejected here as a
// guard; the sync hooks skip such turns before reaching the store.
func (h *SessionHandle) AppendTurn(ctx context.Context, role, text string) (domain.Turn, error) {
	if text == "" {
		return domain.Turn{}, errors.New("memory: turn text must not be empty")
	}

	sdkRole := types.RoleUser
	if role == domain.RoleAssistant {
		sdkRole = types.RoleAssistant
	}

	out, err := h.api.CreateEvent(ctx, &bedrockagentcore.CreateEventInput{
		MemoryId:       aws.String(h.memoryID),
		ActorId:        aws.String(h.actorID),
		SessionId:      aws.String(h.sessionID),
		EventTimestamp: aws.Time(time.Now().UTC()),
		Payload: []types.PayloadType{
			&types.PayloadTypeMemberConversational{
				Value: types.Conversational{
					Content: &types.ContentMemberText{Value: text},
					Role:    sdkRole,
				},
			},
		},
	})
	if err != nil {
		return domain.Turn{}, fmt.Errorf("memory: append turn: %w", err)
	}

	turn := domain.Turn{Role: role, Text: text}
	if out.Event != nil {
		turn.EventID = aws.ToString(out.Event.EventId)
	}
	return turn, nil
}

// LastTurns returns the most recent k turns in chronological order,
// traversing every page of the event listing.
func (h *SessionHandle) LastTurns(ctx context.Context, k int) ([]domain.Turn, error) {
	if k <= 0 {
		return nil, nil
	}

	type stamped struct {
		turn domain.Turn
		at   time.Time
	}
	var all []stamped

	var next *string
	for {
		out, err := h.api.ListEvents(ctx, &bedrockagentcore.ListEventsInput{
			MemoryId:        aws.String(h.memoryID),
			ActorId:         aws.String(h.actorID),
			SessionId:       aws.String(h.sessionID),
			MaxResults:      aws.Int32(100),
			NextToken:       next,
			IncludePayloads: aws.Bool(true),
		})
		if err != nil {
			return nil, fmt.Errorf("memory: list events: %w", err)
		}
		for _, event := range out.Events {
			turn, ok := turnFromEvent(event)
			if !ok {
				continue
			}
			at := time.Time{}
			if event.EventTimestamp != nil {
				at = *event.EventTimestamp
			}
			all = append(all, stamped{turn: turn, at: at})
		}
		if out.NextToken == nil {
			break
		}
		next = out.NextToken
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].at.Before(all[j].at) })
	if len(all) > k {
		all = all[len(all)-k:]
	}

	turns := make([]domain.Turn, 0, len(all))
	for _, s := range all {
		turns = append(turns, s.turn)
	}
	return turns, nil
}

// turnFromEvent extracts the conversational payload of one event.
func turnFromEvent(event types.Event) (domain.Turn, bool) {
	for _, payload := range event.Payload {
		conv, ok := payload.(*types.PayloadTypeMemberConversational)
		if !ok {
			continue
		}
		text, ok := conv.Value.Content.(*types.ContentMemberText)
		if !ok || text.Value == "" {
			continue
		}
		role := domain.RoleUser
		if conv.Value.Role == types.RoleAssistant {
			role = domain.RoleAssistant
		}
		return domain.Turn{
			Role:    role,
			Text:    text.Value,
			EventID: aws.ToString(event.EventId),
		}, true
	}
	return domain.Turn{}, false
}
