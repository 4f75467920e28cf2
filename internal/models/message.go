package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// MaxTurnContentLen is the ingress ceiling on a single message,
// counted in characters, not bytes.
const MaxTurnContentLen = 2000

// Turn is one role-tagged message within a conversation.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
