package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sort"
	"time"

	"novalabs_hub/internal/common"
	"novalabs_hub/internal/domain/model"
	"novalabs_hub/internal/domain/repository"
)

type SessionService struct {
	sessionRepo   repository.SessionRepository
	ttl           time.Duration
	stateMaxBytes int
	now           func() time.Time
}

func NewSessionService(sessionRepo repository.SessionRepository, ttl time.Duration, stateMaxBytes int) *SessionService {
	return &SessionService{
		sessionRepo:   sessionRepo,
		ttl:           ttl,
		stateMaxBytes: stateMaxBytes,
		now:           time.Now,
	}
}

type CreateSessionResult struct {
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Create allocates an unguessable identifier for the caller's session.
// The response carries the identifier only; the stored credential is
// never echoed back after this call.
func (s *SessionService) Create(ctx context.Context, userID, token string) (*CreateSessionResult, error) {
	id, err := newSessionID()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}
	now := s.now().UTC()
	session := &model.Session{
		ID:           id,
		UserID:       userID,
		Token:        token,
		State:        "{}",
		CreatedAt:    now,
		LastActivity: now,
		IsActive:     true,
	}
	if err := s.sessionRepo.Save(ctx, session, s.ttl); err != nil {
		return nil, err
	}
	return &CreateSessionResult{SessionID: id, ExpiresAt: now.Add(s.ttl)}, nil
}

// Get returns a live session and slides its expiration window forward.
// Unknown, deactivated, and expired identifiers are indistinguishable to
// the caller.
func (s *SessionService) Get(ctx context.Context, id string) (*model.Session, error) {
	session, err := s.usable(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if err := s.sessionRepo.Touch(ctx, id, now, s.ttl); err != nil {
		return nil, err
	}
	if now.After(session.LastActivity) {
		session.LastActivity = now
	}
	return session, nil
}

// Update applies whichever of credential/state the caller supplied and
// refreshes the activity window.
func (s *SessionService) Update(ctx context.Context, id string, token, state *string) error {
	if state != nil && len(*state) > s.stateMaxBytes {
		return common.Errorf("session state exceeds %d bytes: %w", s.stateMaxBytes, common.ErrValidation)
	}
	if _, err := s.usable(ctx, id); err != nil {
		return err
	}
	return s.sessionRepo.Update(ctx, id, token, state, s.now().UTC(), s.ttl)
}

// Delete deactivates the session. Deleting an unknown or already
// deleted session is not an error.
func (s *SessionService) Delete(ctx context.Context, id string) error {
	return s.sessionRepo.Deactivate(ctx, id)
}

// ListByUser returns the user's live sessions, most recently used first.
// Only the owner or an admin may look.
func (s *SessionService) ListByUser(ctx context.Context, callerID string, callerRole model.Role, userID string) ([]model.Session, error) {
	if callerID != userID && !callerRole.AtLeast(model.RoleAdmin) {
		return nil, common.ErrForbidden
	}
	sessions, err := s.sessionRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	live := []model.Session{}
	for _, session := range sessions {
		if session.IsActive && !s.expired(&session, now) {
			live = append(live, session)
		}
	}
	sort.Slice(live, func(i, j int) bool {
		return live[i].LastActivity.After(live[j].LastActivity)
	})
	return live, nil
}

func (s *SessionService) usable(ctx context.Context, id string) (*model.Session, error) {
	session, err := s.sessionRepo.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	// Expiry is evaluated lazily here; the storage TTL is cleanup, not
	// the source of truth.
	if !session.IsActive || s.expired(session, s.now().UTC()) {
		return nil, common.ErrSessionNotFound
	}
	return session, nil
}

func (s *SessionService) expired(session *model.Session, now time.Time) bool {
	return now.Sub(session.LastActivity) >= s.ttl
}

// newSessionID returns 256 bits from crypto/rand, URL-safe encoded.
func newSessionID() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
