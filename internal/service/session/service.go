package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/zhouzirui/huddle/backend/internal/model/session"
)

var (
	ErrUserRequired    = errors.New("user id is required")
	ErrSessionNotFound = errors.New("session not found")
)

// Service manages the usage-session lifecycle against a Store.
//
// Start is deliberately permissive: it never rejects concurrent starts for
// the same user. Resumption across page reloads is the client's concern; the
// idle reaper bounds whatever duplicates slip through.
type Service struct {
	store             session.Store
	heartbeatInterval time.Duration
	now               func() time.Time
}

// NewService wires a lifecycle manager around the given store.
// heartbeatInterval is the client's expected heartbeat cadence; sessions
// silent for more than twice that are considered stale.
func NewService(store session.Store, heartbeatInterval time.Duration) *Service {
	return &Service{
		store:             store,
		heartbeatInterval: heartbeatInterval,
		now:               time.Now,
	}
}

// StartSession opens a new session for the user.
func (s *Service) StartSession(ctx context.Context, userID string) (session.Session, error) {
	if userID == "" {
		return session.Session{}, ErrUserRequired
	}

	now := s.now().UTC()
	rec := session.Session{
		ID:            uuid.NewString(),
		UserID:        userID,
		StartTime:     now,
		LastHeartbeat: now,
	}

	if err := s.store.Create(ctx, rec); err != nil {
		return session.Session{}, err
	}
	slog.Debug("session started", "session", rec.ID, "user", userID)
	return rec, nil
}

// Heartbeat extends a session's liveness. ErrSessionNotFound is a normal,
// non-fatal outcome: it tells the client to discard its cached id and start
// over. The extension is a single atomic store operation conditional on the
// session still being open, so a racing close always wins and is never
// rewound to an open record.
func (s *Service) Heartbeat(ctx context.Context, sessionID string) error {
	touched, err := s.store.Touch(ctx, sessionID, s.now().UTC())
	if err != nil {
		return err
	}
	if !touched {
		return ErrSessionNotFound
	}
	return nil
}

// CloseSession terminates a session, setting EndTime and the authoritative
// active duration. Idempotent: closing an already-closed or unknown session
// is a no-op, so unordered beacon redelivery never corrupts a record. A
// client-supplied duration is honored only when it does not exceed the
// wall-clock elapsed time.
func (s *Service) CloseSession(ctx context.Context, sessionID string, clientSeconds *int64) error {
	rec, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if rec == nil || rec.Closed() {
		return nil
	}

	now := s.now().UTC()
	if now.Before(rec.StartTime) {
		now = rec.StartTime
	}
	elapsed := int64(now.Sub(rec.StartTime) / time.Second)

	active := elapsed
	if clientSeconds != nil && *clientSeconds >= 0 && *clientSeconds <= elapsed {
		active = *clientSeconds
	}

	rec.EndTime = &now
	rec.ActiveDurationSeconds = &active
	if err := s.store.Update(ctx, *rec); err != nil {
		return err
	}
	slog.Debug("session closed", "session", rec.ID, "user", rec.UserID, "activeSeconds", active)
	return nil
}

// DeleteSession removes a single usage log.
func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	rec, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrSessionNotFound
	}
	return s.store.Delete(ctx, sessionID)
}

// DeleteUserSessions removes every usage log for a user.
func (s *Service) DeleteUserSessions(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, ErrUserRequired
	}
	return s.store.DeleteByUser(ctx, userID)
}

// Logs returns a user's sessions, most recent first.
func (s *Service) Logs(ctx context.Context, userID string) ([]session.Session, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}
	return s.store.ListByUser(ctx, userID)
}

// BatchLogs returns sessions for every given user, most recent first within
// each user.
func (s *Service) BatchLogs(ctx context.Context, userIDs []string) ([]session.Session, error) {
	var result []session.Session
	for _, userID := range userIDs {
		if userID == "" {
			continue
		}
		logs, err := s.store.ListByUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		result = append(result, logs...)
	}
	return result, nil
}
