package session

import "time"

// Role identifies who spoke a turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn represents a single chat message. Turns are never edited once created.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewTurn creates a turn stamped with the current time
func NewTurn(role Role, content string) Turn {
	return Turn{Role: role, Content: content, CreatedAt: time.Now()}
}

// Format is the rendering hint attached to an assistant reply
type Format int

const (
	FormatPlain Format = iota
	FormatRich
)

func (f Format) String() string {
	if f == FormatRich {
		return "rich"
	}
	return "plain"
}

// State is the session manager's position in a submit cycle
type State int

const (
	StateIdle State = iota
	StateAwaitingResponse
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingResponse:
		return "awaiting_response"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Snapshot is a read-only copy of the live session
type Snapshot struct {
	Turns []Turn `json:"turns"`
	State State  `json:"state"`
	Model string `json:"model"`
}
