package service

import (
	"context"
	"sync"
	"time"

	"novalabs_hub/internal/common"
	"novalabs_hub/internal/domain/model"

	"github.com/google/uuid"
)

// In-memory repository fakes. They mirror the observable behavior of
// the SQL and redis implementations, including the upsert semantics the
// progress statements encode and the per-user serialization of the
// totals recompute, so service tests exercise the same state
// transitions the real store produces. All methods are safe for
// concurrent use, like their real counterparts.

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fakeLabRepo struct {
	mu   sync.Mutex
	labs []model.Lab
}

func (r *fakeLabRepo) Create(_ context.Context, lab *model.Lab) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.labs {
		if existing.Ref == lab.Ref {
			return common.ErrConflict
		}
	}
	r.labs = append(r.labs, *lab)
	return nil
}

func (r *fakeLabRepo) Update(_ context.Context, lab *model.Lab) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.labs {
		if r.labs[i].Ref == lab.Ref {
			r.labs[i] = *lab
			return nil
		}
	}
	return common.ErrNotFound
}

func (r *fakeLabRepo) DeleteByRef(_ context.Context, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.labs {
		if r.labs[i].Ref == ref {
			r.labs = append(r.labs[:i], r.labs[i+1:]...)
			return nil
		}
	}
	return common.ErrNotFound
}

func (r *fakeLabRepo) FindByRef(_ context.Context, ref string) (*model.Lab, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.labs {
		if r.labs[i].Ref == ref {
			lab := r.labs[i]
			return &lab, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeLabRepo) List(_ context.Context) ([]model.Lab, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listLocked(), nil
}

func (r *fakeLabRepo) listLocked() []model.Lab {
	out := []model.Lab{}
	for _, lab := range r.labs {
		if lab.IsActive {
			out = append(out, lab)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].SequenceOrder < out[j-1].SequenceOrder; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

type fakeProgressRepo struct {
	mu      sync.Mutex
	records map[string]*model.ProgressRecord // keyed userID|labID
}

func newFakeProgressRepo() *fakeProgressRepo {
	return &fakeProgressRepo{records: map[string]*model.ProgressRecord{}}
}

func progressKey(userID, labID string) string { return userID + "|" + labID }

func (r *fakeProgressRepo) Find(_ context.Context, userID, labID string) (*model.ProgressRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[progressKey(userID, labID)]
	if !ok {
		return nil, common.ErrNotFound
	}
	copy := *rec
	return &copy, nil
}

func (r *fakeProgressRepo) ListByUser(_ context.Context, userID string) ([]model.ProgressRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listByUserLocked(userID), nil
}

func (r *fakeProgressRepo) listByUserLocked(userID string) []model.ProgressRecord {
	out := []model.ProgressRecord{}
	for _, rec := range r.records {
		if rec.UserID == userID {
			out = append(out, *rec)
		}
	}
	return out
}

func (r *fakeProgressRepo) RecordStart(_ context.Context, userID, labID string, now time.Time) (*model.ProgressRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := progressKey(userID, labID)
	rec, ok := r.records[key]
	if !ok {
		started := now
		rec = &model.ProgressRecord{
			ID:            uuid.NewString(),
			UserID:        userID,
			LabID:         labID,
			Status:        model.StatusInProgress,
			Attempts:      1,
			StartedAt:     &started,
			LastAttemptAt: now,
		}
		r.records[key] = rec
	} else {
		if rec.Status != model.StatusInProgress {
			rec.Attempts++
		}
		rec.Status = model.StatusInProgress
		rec.LastAttemptAt = now
	}
	copy := *rec
	return &copy, nil
}

func (r *fakeProgressRepo) RecordCompletion(_ context.Context, userID, labID string, score, bonus float64, now time.Time) (*model.ProgressRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[progressKey(userID, labID)]
	if !ok {
		return nil, common.ErrNotFound
	}
	if !rec.ScoreOverridden {
		if score > rec.BestScore {
			rec.BestScore = score
		}
		if bonus > rec.BestBonus {
			rec.BestBonus = bonus
		}
	}
	if rec.Status == model.StatusCompleted {
		rec.Attempts++
	}
	rec.Status = model.StatusCompleted
	completed := now
	rec.CompletedAt = &completed
	rec.LastAttemptAt = now
	copy := *rec
	return &copy, nil
}

func (r *fakeProgressRepo) Override(_ context.Context, userID, labID string, score, bonus *float64, notes *string) (*model.ProgressRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[progressKey(userID, labID)]
	if !ok {
		return nil, common.ErrNotFound
	}
	if score != nil {
		rec.BestScore = *score
	}
	if bonus != nil {
		rec.BestBonus = *bonus
	}
	if notes != nil {
		rec.InstructorNotes = notes
	}
	if score != nil || bonus != nil {
		rec.ScoreOverridden = true
	}
	copy := *rec
	return &copy, nil
}

// fakeUserRepo holds references to the lab and progress fakes so the
// totals recompute can read live records under its own lock, the same
// way the SQL implementation reads them inside its row-locked
// transaction.
type fakeUserRepo struct {
	mu       sync.Mutex
	users    []*model.User
	labRepo  *fakeLabRepo
	progress *fakeProgressRepo
}

func (r *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return common.ErrConflict
		}
	}
	copy := *user
	r.users = append(r.users, &copy)
	return nil
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			copy := *user
			return &copy, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user := r.findLocked(id)
	if user == nil {
		return nil, common.ErrNotFound
	}
	copy := *user
	return &copy, nil
}

func (r *fakeUserRepo) findLocked(id string) *model.User {
	for _, user := range r.users {
		if user.ID == id {
			return user
		}
	}
	return nil
}

func (r *fakeUserRepo) FindFirstByRole(_ context.Context, role model.Role) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Role == role {
			copy := *user
			return &copy, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeUserRepo) UpdateRole(_ context.Context, id string, role model.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user := r.findLocked(id)
	if user == nil {
		return common.ErrNotFound
	}
	user.Role = role
	return nil
}

func (r *fakeUserRepo) RecomputeProgressTotals(_ context.Context, id string, rank func(completedLabs, totalLabs int) string) (string, float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user := r.findLocked(id)
	if user == nil {
		return "", 0, common.ErrNotFound
	}

	r.labRepo.mu.Lock()
	labs := r.labRepo.listLocked()
	r.labRepo.mu.Unlock()
	r.progress.mu.Lock()
	records := r.progress.listByUserLocked(id)
	r.progress.mu.Unlock()

	activeLabIDs := make(map[string]bool, len(labs))
	for _, lab := range labs {
		activeLabIDs[lab.ID] = true
	}
	completed := 0
	total := 0.0
	for _, rec := range records {
		if rec.Status != model.StatusCompleted || !activeLabIDs[rec.LabID] {
			continue
		}
		completed++
		total += rec.BestScore + rec.BestBonus
	}

	newRank := rank(completed, len(labs))
	user.Rank = newRank
	user.TotalScore = total
	return newRank, total, nil
}

// fakeSessionRepo never expires anything on its own; the service's lazy
// expiry check is what the tests exercise.
type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: map[string]*model.Session{}}
}

func (r *fakeSessionRepo) Save(_ context.Context, session *model.Session, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copy := *session
	r.sessions[session.ID] = &copy
	return nil
}

func (r *fakeSessionRepo) Find(_ context.Context, id string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, common.ErrSessionNotFound
	}
	copy := *session
	return &copy, nil
}

func (r *fakeSessionRepo) Touch(_ context.Context, id string, now time.Time, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return common.ErrSessionNotFound
	}
	if now.After(session.LastActivity) {
		session.LastActivity = now
	}
	return nil
}

func (r *fakeSessionRepo) Update(_ context.Context, id string, token, state *string, now time.Time, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return common.ErrSessionNotFound
	}
	if token != nil {
		session.Token = *token
	}
	if state != nil {
		session.State = *state
	}
	if now.After(session.LastActivity) {
		session.LastActivity = now
	}
	return nil
}

func (r *fakeSessionRepo) Deactivate(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session, ok := r.sessions[id]; ok {
		session.IsActive = false
	}
	return nil
}

func (r *fakeSessionRepo) ListByUser(_ context.Context, userID string) ([]model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []model.Session{}
	for _, session := range r.sessions {
		if session.UserID == userID {
			out = append(out, *session)
		}
	}
	return out, nil
}

func (r *fakeSessionRepo) PruneDeadIndexEntries(_ context.Context) (int, error) {
	return 0, nil
}
