package history

// Role tags who produced a message in the brain conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one immutable turn of a conversation. Content is opaque and may
// itself be a JSON action plan.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// System, User and Assistant build messages of the matching role.
func System(content string) Message    { return Message{Role: RoleSystem, Content: content} }
func User(content string) Message      { return Message{Role: RoleUser, Content: content} }
func Assistant(content string) Message { return Message{Role: RoleAssistant, Content: content} }

// Log is the append-only, per-session conversation history.
//
// Read on an unknown session returns an empty history and no error. Delete
// is idempotent. Appends for the same session are applied in call order.
type Log interface {
	Append(sessionID string, msg Message) error
	Read(sessionID string) ([]Message, error)
	Delete(sessionID string) error
}
