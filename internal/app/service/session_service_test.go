package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"novalabs_hub/internal/common"
	"novalabs_hub/internal/domain/model"
)

func newSessionFixture(t *testing.T, ttl time.Duration) (*SessionService, *fakeSessionRepo, *fakeClock) {
	t.Helper()
	repo := newFakeSessionRepo()
	clock := &fakeClock{t: time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)}
	svc := NewSessionService(repo, ttl, 1024)
	svc.now = clock.Now
	return svc, repo, clock
}

func TestCreateAndGetSession(t *testing.T) {
	svc, _, clock := newSessionFixture(t, time.Hour)
	ctx := context.Background()

	created, err := svc.Create(ctx, "user-1", "opaque-token")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.SessionID == "" {
		t.Fatal("empty session id")
	}
	if !created.ExpiresAt.Equal(clock.t.Add(time.Hour)) {
		t.Errorf("expires_at = %v", created.ExpiresAt)
	}

	session, err := svc.Get(ctx, created.SessionID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if session.UserID != "user-1" {
		t.Errorf("user = %q", session.UserID)
	}
	if session.State != "{}" {
		t.Errorf("fresh state = %q, want {}", session.State)
	}
}

func TestSessionIDsAreUnique(t *testing.T) {
	svc, _, _ := newSessionFixture(t, time.Hour)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		created, err := svc.Create(context.Background(), "user-1", "")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if seen[created.SessionID] {
			t.Fatalf("duplicate session id %q", created.SessionID)
		}
		seen[created.SessionID] = true
	}
}

func TestSessionSlidingWindow(t *testing.T) {
	svc, _, clock := newSessionFixture(t, time.Hour)
	ctx := context.Background()
	created, err := svc.Create(ctx, "user-1", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Each access inside the window pushes the deadline out again.
	for i := 0; i < 3; i++ {
		clock.Advance(50 * time.Minute)
		if _, err := svc.Get(ctx, created.SessionID); err != nil {
			t.Fatalf("Get after %d slides: %v", i+1, err)
		}
	}

	// Silence past the full window ends the session.
	clock.Advance(time.Hour)
	if _, err := svc.Get(ctx, created.SessionID); !errors.Is(err, common.ErrSessionNotFound) {
		t.Errorf("want ErrSessionNotFound after expiry, got %v", err)
	}
}

func TestSessionNotFoundIsUnified(t *testing.T) {
	svc, _, clock := newSessionFixture(t, time.Hour)
	ctx := context.Background()

	// Unknown id.
	if _, err := svc.Get(ctx, "no-such-session"); !errors.Is(err, common.ErrSessionNotFound) {
		t.Errorf("unknown: %v", err)
	}

	// Deleted id.
	created, err := svc.Create(ctx, "user-1", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Delete(ctx, created.SessionID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, created.SessionID); !errors.Is(err, common.ErrSessionNotFound) {
		t.Errorf("deleted: %v", err)
	}

	// Expired id.
	created, err = svc.Create(ctx, "user-1", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	clock.Advance(time.Hour)
	if _, err := svc.Get(ctx, created.SessionID); !errors.Is(err, common.ErrSessionNotFound) {
		t.Errorf("expired: %v", err)
	}

	// Updates against any of them fail the same way.
	state := `{"step":2}`
	if err := svc.Update(ctx, created.SessionID, nil, &state); !errors.Is(err, common.ErrSessionNotFound) {
		t.Errorf("update expired: %v", err)
	}
}

func TestSessionDeleteIdempotent(t *testing.T) {
	svc, _, _ := newSessionFixture(t, time.Hour)
	ctx := context.Background()
	created, err := svc.Create(ctx, "user-1", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := svc.Delete(ctx, created.SessionID); err != nil {
			t.Errorf("Delete #%d: %v", i+1, err)
		}
	}
	if err := svc.Delete(ctx, "never-existed"); err != nil {
		t.Errorf("deleting an unknown session: %v", err)
	}
}

func TestSessionUpdate(t *testing.T) {
	svc, repo, clock := newSessionFixture(t, time.Hour)
	ctx := context.Background()
	created, err := svc.Create(ctx, "user-1", "token-v1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	clock.Advance(10 * time.Minute)
	state := `{"notebook":"m31"}`
	if err := svc.Update(ctx, created.SessionID, nil, &state); err != nil {
		t.Fatalf("Update state: %v", err)
	}
	stored, _ := repo.Find(ctx, created.SessionID)
	if stored.State != state {
		t.Errorf("state = %q", stored.State)
	}
	if stored.Token != "token-v1" {
		t.Errorf("token changed on a state-only update: %q", stored.Token)
	}
	if !stored.LastActivity.Equal(clock.t) {
		t.Errorf("update did not slide the window: %v", stored.LastActivity)
	}

	token := "token-v2"
	if err := svc.Update(ctx, created.SessionID, &token, nil); err != nil {
		t.Fatalf("Update token: %v", err)
	}
	stored, _ = repo.Find(ctx, created.SessionID)
	if stored.Token != "token-v2" || stored.State != state {
		t.Errorf("partial update clobbered fields: %+v", stored)
	}
}

func TestSessionUpdateStateTooLarge(t *testing.T) {
	svc, _, _ := newSessionFixture(t, time.Hour)
	ctx := context.Background()
	created, err := svc.Create(ctx, "user-1", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	huge := `{"blob":"` + strings.Repeat("x", 2048) + `"}`
	if err := svc.Update(ctx, created.SessionID, nil, &huge); !errors.Is(err, common.ErrValidation) {
		t.Errorf("want ErrValidation, got %v", err)
	}
}

func TestListSessionsOrderingAndFiltering(t *testing.T) {
	svc, _, clock := newSessionFixture(t, time.Hour)
	ctx := context.Background()

	first, _ := svc.Create(ctx, "user-1", "")
	clock.Advance(5 * time.Minute)
	second, _ := svc.Create(ctx, "user-1", "")
	clock.Advance(5 * time.Minute)
	third, _ := svc.Create(ctx, "user-1", "")

	// Touch the oldest so it becomes the most recent.
	clock.Advance(5 * time.Minute)
	if _, err := svc.Get(ctx, first.SessionID); err != nil {
		t.Fatalf("Get: %v", err)
	}
	// Delete one outright.
	if err := svc.Delete(ctx, second.SessionID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	sessions, err := svc.ListByUser(ctx, "user-1", model.RoleStudent, "user-1")
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(sessions))
	}
	if sessions[0].ID != first.SessionID || sessions[1].ID != third.SessionID {
		t.Errorf("order = [%s %s], want most recently used first", sessions[0].ID, sessions[1].ID)
	}

	// Let everything expire; the list goes empty without any delete.
	clock.Advance(2 * time.Hour)
	sessions, err = svc.ListByUser(ctx, "user-1", model.RoleStudent, "user-1")
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("expired sessions still listed: %d", len(sessions))
	}
}

func TestListSessionsOwnership(t *testing.T) {
	svc, _, _ := newSessionFixture(t, time.Hour)
	ctx := context.Background()
	if _, err := svc.Create(ctx, "user-1", ""); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.ListByUser(ctx, "user-2", model.RoleStudent, "user-1"); !errors.Is(err, common.ErrForbidden) {
		t.Errorf("other student: want ErrForbidden, got %v", err)
	}
	if _, err := svc.ListByUser(ctx, "user-2", model.RoleInstructor, "user-1"); !errors.Is(err, common.ErrForbidden) {
		t.Errorf("instructor: want ErrForbidden, got %v", err)
	}
	if _, err := svc.ListByUser(ctx, "user-2", model.RoleAdmin, "user-1"); err != nil {
		t.Errorf("admin: %v", err)
	}
	if _, err := svc.ListByUser(ctx, "user-1", model.RoleStudent, "user-1"); err != nil {
		t.Errorf("owner: %v", err)
	}
}
