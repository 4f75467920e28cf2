package models

import "time"

// Session is the full conversational state for one visitor. Instances
// live inside the session store; access outside the store goes through
// copies so that no caller holds a live reference.
type Session struct {
	ID             string         `json:"session_id"`
	CreatedAt      time.Time      `json:"created_at"`
	LastActivityAt time.Time      `json:"last_activity"`
	Messages       []Turn         `json:"messages"`
	UserInfo       map[string]any `json:"user_info"`
}

// Snapshot returns a deep copy safe to use without store locks.
func (s *Session) Snapshot() SessionSnapshot {
	msgs := make([]Turn, len(s.Messages))
	copy(msgs, s.Messages)
	info := make(map[string]any, len(s.UserInfo))
	for k, v := range s.UserInfo {
		info[k] = v
	}
	return SessionSnapshot{
		ID:             s.ID,
		CreatedAt:      s.CreatedAt,
		LastActivityAt: s.LastActivityAt,
		Messages:       msgs,
		UserInfo:       info,
	}
}

// SessionSnapshot is a detached copy of a session used for reporting
// and export. Mutating it never affects the stored session.
type SessionSnapshot struct {
	ID             string         `json:"session_id"`
	CreatedAt      time.Time      `json:"created_at"`
	LastActivityAt time.Time      `json:"last_activity"`
	Messages       []Turn         `json:"messages"`
	UserInfo       map[string]any `json:"user_info"`
}
