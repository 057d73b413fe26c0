package models

// Chat transcript roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessageItem is a single transcript turn in a chat session.
// A transcript is owned by exactly one session and is append-only until
// the session is cleared.
type ChatMessageItem struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
