package domain

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is a single persisted conversation turn. Turns are append-only,
// ordered by creation time, and partitioned by (actor, session). A turn with
// empty text is never persisted.
type Turn struct {
	Role    string
	Text    string
	EventID string
}
