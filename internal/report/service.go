// Package report derives the administrative view of the session store:
// aggregate statistics, recent conversations and full exports. It works
// on detached snapshots and tolerates in-flight writes.
package report

import (
	"sort"
	"time"

	"hoomachat/internal/models"
	"hoomachat/internal/session"
)

const (
	activeWindow       = time.Hour
	recentTurns        = 3
	truncatedIDLen     = 8
	defaultRecentLimit = 10
)

type Stats struct {
	TotalSessions             int     `json:"total_sessions"`
	ActiveSessions            int     `json:"active_sessions"`
	TotalMessages             int     `json:"total_messages"`
	AvgMessagesPerSession     float64 `json:"avg_messages_per_session"`
	AvgSessionDurationMinutes float64 `json:"avg_session_duration_minutes"`
}

type Conversation struct {
	SessionID      string         `json:"session_id"`
	LastActivity   time.Time      `json:"last_activity"`
	MessageCount   int            `json:"message_count"`
	RecentMessages []models.Turn  `json:"recent_messages"`
	UserInfo       map[string]any `json:"user_info"`
}

type Export struct {
	ExportedAt time.Time                `json:"exported_at"`
	Stats      Stats                    `json:"stats"`
	Sessions   []models.SessionSnapshot `json:"sessions"`
}

type Service struct {
	store *session.Store
	now   func() time.Time
}

func NewService(store *session.Store) *Service {
	return &Service{store: store, now: time.Now}
}

func (s *Service) Stats() Stats {
	snapshots := s.store.All()
	stats := Stats{TotalSessions: len(snapshots)}
	if len(snapshots) == 0 {
		return stats
	}
	now := s.now().UTC()
	var totalDuration time.Duration
	for _, snap := range snapshots {
		if now.Sub(snap.LastActivityAt) < activeWindow {
			stats.ActiveSessions++
		}
		stats.TotalMessages += len(snap.Messages)
		totalDuration += snap.LastActivityAt.Sub(snap.CreatedAt)
	}
	stats.AvgMessagesPerSession = float64(stats.TotalMessages) / float64(len(snapshots))
	stats.AvgSessionDurationMinutes = totalDuration.Minutes() / float64(len(snapshots))
	return stats
}

// RecentConversations lists sessions that have messages, most recent
// activity first. Session ids are truncated for privacy.
func (s *Service) RecentConversations(limit int) []Conversation {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	snapshots := s.store.All()
	conversations := make([]Conversation, 0, len(snapshots))
	for _, snap := range snapshots {
		if len(snap.Messages) == 0 {
			continue
		}
		conversations = append(conversations, Conversation{
			SessionID:      truncateID(snap.ID),
			LastActivity:   snap.LastActivityAt,
			MessageCount:   len(snap.Messages),
			RecentMessages: session.Window(snap.Messages, recentTurns),
			UserInfo:       snap.UserInfo,
		})
	}
	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].LastActivity.After(conversations[j].LastActivity)
	})
	if len(conversations) > limit {
		conversations = conversations[:limit]
	}
	return conversations
}

func (s *Service) Export() Export {
	return Export{
		ExportedAt: s.now().UTC(),
		Stats:      s.Stats(),
		Sessions:   s.store.All(),
	}
}

func (s *Service) Clear() {
	s.store.Clear()
}

func truncateID(id string) string {
	if len(id) <= truncatedIDLen {
		return id
	}
	return id[:truncatedIDLen] + "..."
}
