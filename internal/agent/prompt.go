package agent

// DefaultSystemPrompt is the base instruction context; the session-start hook
// appends the recent conversation window to it.
const DefaultSystemPrompt = "You are a helpful assistant with access to tools. " +
	"Use the tools when a question requires calculation or current information. " +
	"Answer concisely and state clearly when you do not know something."
