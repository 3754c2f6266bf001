package service

import (
	"context"

	"novalabs_hub/internal/common"
	"novalabs_hub/internal/domain/model"
	"novalabs_hub/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

const defaultLabMaxScore = 100.0

type LabService struct {
	labRepo      repository.LabRepository
	progressRepo repository.ProgressRepository
}

func NewLabService(labRepo repository.LabRepository, progressRepo repository.ProgressRepository) *LabService {
	return &LabService{labRepo: labRepo, progressRepo: progressRepo}
}

type CreateLabRequest struct {
	Ref              string   `json:"ref"` // Optional; generated from name when empty
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	Category         string   `json:"category"`
	SequenceOrder    int      `json:"sequence_order"`
	PrerequisiteRefs []string `json:"prerequisite_refs"`
	MaxScore         *float64 `json:"max_score,omitempty"`
	MaxBonusPoints   float64  `json:"max_bonus_points"`
}

type UpdateLabRequest struct {
	Name             *string   `json:"name,omitempty"`
	Description      *string   `json:"description,omitempty"`
	Category         *string   `json:"category,omitempty"`
	SequenceOrder    *int      `json:"sequence_order,omitempty"`
	PrerequisiteRefs *[]string `json:"prerequisite_refs,omitempty"`
	MaxScore         *float64  `json:"max_score,omitempty"`
	MaxBonusPoints   *float64  `json:"max_bonus_points,omitempty"`
	IsActive         *bool     `json:"is_active,omitempty"`
}

type AccessibilityResult struct {
	LabRef               string   `json:"lab_ref"`
	Accessible           bool     `json:"accessible"`
	MissingPrerequisites []string `json:"missing_prerequisites,omitempty"`
}

func (s *LabService) ListLabs(ctx context.Context) ([]model.Lab, error) {
	return s.labRepo.List(ctx)
}

func (s *LabService) GetLab(ctx context.Context, ref string) (*model.Lab, error) {
	return s.labRepo.FindByRef(ctx, ref)
}

// CheckAccessible resolves the user's completed set against the lab's
// prerequisites without creating any progress record.
func (s *LabService) CheckAccessible(ctx context.Context, userID, ref string) (*AccessibilityResult, error) {
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
	accessible, missing := Accessibility(lab, CompletedRefs(labs, records))
	return &AccessibilityResult{LabRef: ref, Accessible: accessible, MissingPrerequisites: missing}, nil
}

func (s *LabService) CreateLab(ctx context.Context, req CreateLabRequest) (*model.Lab, error) {
	if req.Name == "" {
		return nil, common.Errorf("lab name is required: %w", common.ErrValidation)
	}
	ref := req.Ref
	if ref == "" {
		ref = slug.Make(req.Name)
	}
	if !slug.IsSlug(ref) {
		return nil, common.Errorf("lab ref %q is not a valid slug: %w", ref, common.ErrValidation)
	}

	maxScore := defaultLabMaxScore
	if req.MaxScore != nil {
		maxScore = *req.MaxScore
	}
	if maxScore <= 0 {
		return nil, common.Errorf("max_score must be positive: %w", common.ErrValidation)
	}
	if req.MaxBonusPoints < 0 {
		return nil, common.Errorf("max_bonus_points must not be negative: %w", common.ErrValidation)
	}

	lab := &model.Lab{
		ID:               uuid.NewString(),
		Ref:              ref,
		Name:             req.Name,
		Description:      req.Description,
		Category:         req.Category,
		SequenceOrder:    req.SequenceOrder,
		PrerequisiteRefs: req.PrerequisiteRefs,
		MaxScore:         maxScore,
		MaxBonusPoints:   req.MaxBonusPoints,
		IsActive:         true,
	}
	if lab.PrerequisiteRefs == nil {
		lab.PrerequisiteRefs = []string{}
	}

	catalog, err := s.labRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, existing := range catalog {
		if existing.Ref == ref {
			return nil, common.Errorf("lab with ref %q already exists: %w", ref, common.ErrConflict)
		}
	}
	if err := ValidatePrerequisites(catalog, lab); err != nil {
		return nil, err
	}

	if err := s.labRepo.Create(ctx, lab); err != nil {
		return nil, err
	}
	return lab, nil
}

func (s *LabService) UpdateLab(ctx context.Context, ref string, req UpdateLabRequest) (*model.Lab, error) {
	lab, err := s.labRepo.FindByRef(ctx, ref)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		lab.Name = *req.Name
	}
	if req.Description != nil {
		lab.Description = *req.Description
	}
	if req.Category != nil {
		lab.Category = *req.Category
	}
	if req.SequenceOrder != nil {
		lab.SequenceOrder = *req.SequenceOrder
	}
	if req.PrerequisiteRefs != nil {
		lab.PrerequisiteRefs = *req.PrerequisiteRefs
		if lab.PrerequisiteRefs == nil {
			lab.PrerequisiteRefs = []string{}
		}
	}
	if req.MaxScore != nil {
		if *req.MaxScore <= 0 {
			return nil, common.Errorf("max_score must be positive: %w", common.ErrValidation)
		}
		lab.MaxScore = *req.MaxScore
	}
	if req.MaxBonusPoints != nil {
		if *req.MaxBonusPoints < 0 {
			return nil, common.Errorf("max_bonus_points must not be negative: %w", common.ErrValidation)
		}
		lab.MaxBonusPoints = *req.MaxBonusPoints
	}
	if req.IsActive != nil {
		lab.IsActive = *req.IsActive
	}

	if req.PrerequisiteRefs != nil {
		catalog, err := s.labRepo.List(ctx)
		if err != nil {
			return nil, err
		}
		if err := ValidatePrerequisites(catalog, lab); err != nil {
			return nil, err
		}
	}

	if err := s.labRepo.Update(ctx, lab); err != nil {
		return nil, err
	}
	return lab, nil
}

// DeleteLab rejects deletion while any other lab lists the ref as a
// prerequisite. Silently clearing the dangling edge could unlock labs
// nobody meant to unlock.
func (s *LabService) DeleteLab(ctx context.Context, ref string) error {
	if _, err := s.labRepo.FindByRef(ctx, ref); err != nil {
		return err
	}
	catalog, err := s.labRepo.List(ctx)
	if err != nil {
		return err
	}
	for _, lab := range catalog {
		if lab.Ref == ref {
			continue
		}
		for _, prereq := range lab.PrerequisiteRefs {
			if prereq == ref {
				return common.Errorf("lab %q is a prerequisite of %q: %w", ref, lab.Ref, common.ErrValidation)
			}
		}
	}
	return s.labRepo.DeleteByRef(ctx, ref)
}
