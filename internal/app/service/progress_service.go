package service

import (
	"context"
	"errors"
	"log"
	"time"

	"novalabs_hub/internal/common"
	"novalabs_hub/internal/domain/model"
	"novalabs_hub/internal/domain/repository"
)

type ProgressService struct {
	labRepo      repository.LabRepository
	progressRepo repository.ProgressRepository
	userRepo     repository.UserRepository
	now          func() time.Time
}

func NewProgressService(
	labRepo repository.LabRepository,
	progressRepo repository.ProgressRepository,
	userRepo repository.UserRepository,
) *ProgressService {
	return &ProgressService{
		labRepo:      labRepo,
		progressRepo: progressRepo,
		userRepo:     userRepo,
		now:          time.Now,
	}
}

type UserSummary struct {
	ID         string  `json:"id"`
	Email      string  `json:"email"`
	FirstName  string  `json:"first_name"`
	LastName   string  `json:"last_name"`
	Rank       string  `json:"rank"`
	TotalScore float64 `json:"total_score"`
}

type ProgressReport struct {
	User UserSummary         `json:"user"`
	Labs []model.LabProgress `json:"labs"`
}

type CompletionResult struct {
	LabRef      string     `json:"lab_ref"`
	Status      model.ProgressStatus `json:"status"`
	BestScore   float64    `json:"best_score"`
	BestBonus   float64    `json:"best_bonus"`
	Attempts    int        `json:"attempts"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	UserRank    string     `json:"user_rank"`
	TotalScore  float64    `json:"user_total_score"`
}

// GetProgress assembles the user's standing across the whole catalog.
// Labs without a record get a computed locked/unlocked status; no row is
// written until the user acts.
func (s *ProgressService) GetProgress(ctx context.Context, userID string) (*ProgressReport, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	labs, err := s.labRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	records, err := s.progressRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	byLabID := make(map[string]*model.ProgressRecord, len(records))
	for i := range records {
		byLabID[records[i].LabID] = &records[i]
	}
	completed := CompletedRefs(labs, records)

	report := &ProgressReport{
		User: UserSummary{
			ID:         user.ID,
			Email:      user.Email,
			FirstName:  user.FirstName,
			LastName:   user.LastName,
			Rank:       user.Rank,
			TotalScore: user.TotalScore,
		},
		Labs: make([]model.LabProgress, 0, len(labs)),
	}
	for i := range labs {
		lab := labs[i]
		report.Labs = append(report.Labs, model.LabProgress{
			Lab:      lab,
			Progress: summarize(&lab, byLabID[lab.ID], completed),
		})
	}
	return report, nil
}

func (s *ProgressService) GetLabProgress(ctx context.Context, userID, ref string) (*model.LabProgress, error) {
	lab, err := s.labRepo.FindByRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	labs, err := s.labRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	records, err := s.progressRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	var rec *model.ProgressRecord
	for i := range records {
		if records[i].LabID == lab.ID {
			rec = &records[i]
			break
		}
	}
	return &model.LabProgress{
		Lab:      *lab,
		Progress: summarize(lab, rec, CompletedRefs(labs, records)),
	}, nil
}

// StartLab moves an accessible lab to in_progress. A start against a
// locked lab fails with the unmet prerequisites and writes nothing.
func (s *ProgressService) StartLab(ctx context.Context, userID, ref string) (*model.ProgressRecord, error) {
	lab, err := s.labRepo.FindByRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	labs, err := s.labRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	records, err := s.progressRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if accessible, missing := Accessibility(lab, CompletedRefs(labs, records)); !accessible {
		return nil, &common.PrereqError{LabRef: ref, Missing: missing}
	}
	return s.progressRepo.RecordStart(ctx, userID, lab.ID, s.now().UTC())
}

// CompleteLab validates the submitted score against the lab's bounds,
// folds the attempt into the record (best values via max, never
// overwrite), and refreshes the user's cached totals and rank.
func (s *ProgressService) CompleteLab(ctx context.Context, userID, ref string, score, bonus float64) (*CompletionResult, error) {
	lab, err := s.labRepo.FindByRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if score < 0 || score > lab.MaxScore {
		return nil, common.Errorf("score must be between 0 and %g: %w", lab.MaxScore, common.ErrValidation)
	}
	if bonus < 0 || bonus > lab.MaxBonusPoints {
		return nil, common.Errorf("bonus must be between 0 and %g: %w", lab.MaxBonusPoints, common.ErrValidation)
	}

	rec, err := s.progressRepo.RecordCompletion(ctx, userID, lab.ID, score, bonus, s.now().UTC())
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.Errorf("lab %q has not been started: %w", ref, common.ErrValidation)
		}
		return nil, err
	}

	rank, total, err := s.recalculateTotals(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &CompletionResult{
		LabRef:      ref,
		Status:      rec.Status,
		BestScore:   rec.BestScore,
		BestBonus:   rec.BestBonus,
		Attempts:    rec.Attempts,
		CompletedAt: rec.CompletedAt,
		UserRank:    rank,
		TotalScore:  total,
	}, nil
}

type OverrideRequest struct {
	Score           *float64 `json:"score,omitempty"`
	BonusPoints     *float64 `json:"bonus_points,omitempty"`
	InstructorNotes *string  `json:"instructor_notes,omitempty"`
}

// OverrideScore lets an admin set best values directly without driving
// the record through in_progress. The record is tagged so later retakes
// cannot silently replace the instructor's decision.
func (s *ProgressService) OverrideScore(ctx context.Context, userID, ref string, req OverrideRequest) (*model.ProgressRecord, error) {
	if _, err := s.userRepo.FindByID(ctx, userID); err != nil {
		return nil, err
	}
	lab, err := s.labRepo.FindByRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if req.Score != nil && (*req.Score < 0 || *req.Score > lab.MaxScore) {
		return nil, common.Errorf("score must be between 0 and %g: %w", lab.MaxScore, common.ErrValidation)
	}
	if req.BonusPoints != nil && (*req.BonusPoints < 0 || *req.BonusPoints > lab.MaxBonusPoints) {
		return nil, common.Errorf("bonus must be between 0 and %g: %w", lab.MaxBonusPoints, common.ErrValidation)
	}

	rec, err := s.progressRepo.Override(ctx, userID, lab.ID, req.Score, req.BonusPoints, req.InstructorNotes)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.Errorf("no progress record for lab %q: %w", ref, common.ErrNotFound)
		}
		return nil, err
	}

	if _, _, err := s.recalculateTotals(ctx, userID); err != nil {
		return nil, err
	}
	return rec, nil
}

// recalculateTotals refreshes the cached aggregate: total score is the
// sum of best score + best bonus over completed active labs, rank
// follows the completion fraction. The repository performs the whole
// read-and-write atomically per user, so two concurrent completions can
// never clobber each other's recompute with a stale snapshot.
func (s *ProgressService) recalculateTotals(ctx context.Context, userID string) (string, float64, error) {
	rank, total, err := s.userRepo.RecomputeProgressTotals(ctx, userID, CalculateRank)
	if err != nil {
		return "", 0, err
	}
	log.Printf("Recalculated totals for user %s: rank=%s total=%.1f", userID, rank, total)
	return rank, total, nil
}

// summarize derives the caller-visible status: stored records speak for
// themselves, recordless labs are locked or unlocked by the resolver.
func summarize(lab *model.Lab, rec *model.ProgressRecord, completed map[string]bool) model.ProgressSummary {
	if rec == nil {
		status := model.StatusLocked
		if accessible, _ := Accessibility(lab, completed); accessible {
			status = model.StatusUnlocked
		}
		return model.ProgressSummary{Status: status}
	}
	score := rec.BestScore
	return model.ProgressSummary{
		Status:          rec.Status,
		BestScore:       &score,
		BestBonus:       rec.BestBonus,
		Attempts:        rec.Attempts,
		StartedAt:       rec.StartedAt,
		CompletedAt:     rec.CompletedAt,
		ScoreOverridden: rec.ScoreOverridden,
		InstructorNotes: rec.InstructorNotes,
	}
}
