package domain

// Role identifies the author of a conversation turn.
type Role string

const (
	// RoleUser is a question asked by the user.
	RoleUser Role = "user"
	// RoleAssistant is an answer produced by the model.
	RoleAssistant Role = "assistant"
	// RoleSystem is a synthetic turn holding a conversation summary.
	RoleSystem Role = "system"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Turn is a single entry of a session history.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Session is the durable conversation state for one session id.
type Session struct {
	ID      string
	History []Turn
}
