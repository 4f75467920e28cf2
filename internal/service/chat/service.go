// Package chat composes admission, session state, context windowing and
// the provider gateway into the single request/response contract of the
// chat endpoint.
package chat

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"hoomachat/internal/models"
	"hoomachat/internal/ratelimit"
	"hoomachat/internal/service/ai"
	"hoomachat/internal/session"
	"hoomachat/internal/worker"
)

var (
	// ErrRateLimited is surfaced to the transport layer as a rate-limit
	// failure; the client should back off.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrEmptyMessage and ErrMessageTooLong reject the request before
	// any session mutation happens.
	ErrEmptyMessage   = errors.New("message is required")
	ErrMessageTooLong = errors.New("message exceeds maximum length")
)

type Request struct {
	Message   string
	SessionID string
	UserInfo  map[string]any
}

type Response struct {
	Response  string
	SessionID string
	Timestamp time.Time
}

// Service drives one chat turn end to end. The provider call runs on
// the worker pool with no session lock held; everything else touches
// the store in short critical sections.
type Service struct {
	store         *session.Store
	limiter       *ratelimit.Limiter
	gateway       ai.Gateway
	pool          *worker.Pool
	reaper        *session.Reaper
	contextWindow int
}

func NewService(store *session.Store, limiter *ratelimit.Limiter, gateway ai.Gateway, pool *worker.Pool, reaper *session.Reaper) *Service {
	return &Service{
		store:         store,
		limiter:       limiter,
		gateway:       gateway,
		pool:          pool,
		reaper:        reaper,
		contextWindow: session.DefaultContextWindow,
	}
}

// Handle admits, resolves the session, appends the user turn, windows
// the context, invokes the provider once and appends its reply. Gateway
// degradation is not an error; the canned text flows through the normal
// append path.
func (s *Service) Handle(ctx context.Context, clientKey string, req Request) (Response, error) {
	if !s.limiter.Allow(clientKey) {
		log.Warn().Str("client", clientKey).Msg("request rejected by rate limiter")
		return Response{}, ErrRateLimited
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		return Response{}, ErrEmptyMessage
	}
	if utf8.RuneCountInString(req.Message) > models.MaxTurnContentLen {
		return Response{}, ErrMessageTooLong
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = session.NewID()
	}
	s.store.GetOrCreate(sessionID)
	if err := s.mergeUserInfo(sessionID, req.UserInfo); err != nil {
		return Response{}, err
	}

	userTurn := models.Turn{Role: models.RoleUser, Content: req.Message, Timestamp: time.Now().UTC()}
	if err := s.appendRecovering(sessionID, userTurn); err != nil {
		return Response{}, err
	}

	turns, err := s.store.Tail(sessionID, s.contextWindow)
	if err != nil {
		// Reaped between append and read; replay just this turn.
		s.store.GetOrCreate(sessionID)
		turns = []models.Turn{userTurn}
	}

	reply := s.invokeGateway(ctx, turns)

	assistantTurn := models.Turn{Role: models.RoleAssistant, Content: reply, Timestamp: time.Now().UTC()}
	if err := s.appendRecovering(sessionID, assistantTurn); err != nil {
		return Response{}, err
	}

	if s.reaper != nil {
		s.reaper.Kick()
	}
	return Response{Response: reply, SessionID: sessionID, Timestamp: assistantTurn.Timestamp}, nil
}

// invokeGateway runs the single provider attempt on the pool and waits
// for it. A saturated pool or a client that went away both produce the
// degraded reply; an in-flight call left behind completes on its own
// and its result is discarded.
func (s *Service) invokeGateway(ctx context.Context, turns []models.Turn) string {
	done := make(chan string, 1)
	job := func() {
		done <- s.gateway.Complete(ctx, turns)
	}
	if err := s.pool.Submit(job); err != nil {
		log.Warn().Err(err).Msg("provider pool saturated")
		return ai.ReplyTechnicalDifficulties
	}
	select {
	case reply := <-done:
		return reply
	case <-ctx.Done():
		return ai.ReplyTechnicalDifficulties
	}
}

// appendRecovering appends a turn, transparently recreating the session
// if the reaper evicted it between admission and append.
func (s *Service) appendRecovering(sessionID string, turn models.Turn) error {
	err := s.store.Append(sessionID, turn)
	if errors.Is(err, session.ErrNotFound) {
		s.store.GetOrCreate(sessionID)
		err = s.store.Append(sessionID, turn)
	}
	return err
}

func (s *Service) mergeUserInfo(sessionID string, info map[string]any) error {
	if len(info) == 0 {
		return nil
	}
	err := s.store.Merge(sessionID, info)
	if errors.Is(err, session.ErrNotFound) {
		s.store.GetOrCreate(sessionID)
		err = s.store.Merge(sessionID, info)
	}
	return err
}
