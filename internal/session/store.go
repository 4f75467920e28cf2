package session

import (
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"

	"hoomachat/internal/models"
)

// ErrNotFound is returned when a session was evicted between lookup and
// mutation. Callers on the chat path recover by recreating the session.
var ErrNotFound = errors.New("session not found")

const shardCount = 16

// NewID generates an opaque session identifier. IDs are never reused.
func NewID() string {
	return "session_" + uuid.NewString()
}

type shard struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
}

// Store holds all conversational state, sharded by session id so that
// traffic on distinct sessions does not contend on one lock.
type Store struct {
	shards [shardCount]*shard
	now    func() time.Time
}

func NewStore() *Store {
	s := &Store{now: time.Now}
	for i := range s.shards {
		s.shards[i] = &shard{sessions: make(map[string]*models.Session)}
	}
	return s
}

func (s *Store) shardFor(id string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return s.shards[h.Sum32()%shardCount]
}

// GetOrCreate returns a snapshot of the session with the given id,
// creating it with empty history if absent. Existing sessions get their
// last-activity timestamp refreshed. The returned bool reports whether
// a new session was created.
func (s *Store) GetOrCreate(id string) (models.SessionSnapshot, bool) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if sess, ok := sh.sessions[id]; ok {
		sess.LastActivityAt = s.now().UTC()
		return sess.Snapshot(), false
	}
	now := s.now().UTC()
	sess := &models.Session{
		ID:             id,
		CreatedAt:      now,
		LastActivityAt: now,
		UserInfo:       make(map[string]any),
	}
	sh.sessions[id] = sess
	return sess.Snapshot(), true
}

// Append adds one turn to the session atomically. Turn timestamps are
// clamped so they never decrease along the message sequence.
func (s *Store) Append(id string, turn models.Turn) error {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sess, ok := sh.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = s.now().UTC()
	}
	if n := len(sess.Messages); n > 0 && turn.Timestamp.Before(sess.Messages[n-1].Timestamp) {
		turn.Timestamp = sess.Messages[n-1].Timestamp
	}
	sess.Messages = append(sess.Messages, turn)
	sess.LastActivityAt = s.now().UTC()
	return nil
}

// Merge folds the given keys into the session's user info without
// replacing existing entries that are not named.
func (s *Store) Merge(id string, info map[string]any) error {
	if len(info) == 0 {
		return nil
	}
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sess, ok := sh.sessions[id]
	if !ok {
		return ErrNotFound
	}
	for k, v := range info {
		sess.UserInfo[k] = v
	}
	sess.LastActivityAt = s.now().UTC()
	return nil
}

// Tail returns a copy of the last n turns of the session in order. It
// copies under the shard lock so the caller can release the session
// before any slow provider call.
func (s *Store) Tail(id string, n int) ([]models.Turn, error) {
	sh := s.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	sess, ok := sh.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return Window(sess.Messages, n), nil
}

// All returns detached snapshots of every session. The view is only
// eventually consistent with in-flight writes on other shards.
func (s *Store) All() []models.SessionSnapshot {
	var out []models.SessionSnapshot
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, sess := range sh.sessions {
			out = append(out, sess.Snapshot())
		}
		sh.mu.RUnlock()
	}
	return out
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		total += len(sh.sessions)
		sh.mu.RUnlock()
	}
	return total
}

// Clear removes every session. Each shard is emptied atomically.
func (s *Store) Clear() {
	for _, sh := range s.shards {
		sh.mu.Lock()
		sh.sessions = make(map[string]*models.Session)
		sh.mu.Unlock()
	}
}

// EvictIdle removes sessions whose last activity is older than ttl and
// returns how many were evicted. Safe to call concurrently with chat
// traffic; a session evicted mid-request is recreated by the caller.
func (s *Store) EvictIdle(ttl time.Duration) int {
	cutoff := s.now().UTC().Add(-ttl)
	evicted := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for id, sess := range sh.sessions {
			if sess.LastActivityAt.Before(cutoff) {
				delete(sh.sessions, id)
				evicted++
			}
		}
		sh.mu.Unlock()
	}
	return evicted
}
