package model

import "time"

type Lab struct {
	ID               string    `json:"id"`
	Ref              string    `json:"ref"` // Unique slug; immutable after creation
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	Category         string    `json:"category"`
	SequenceOrder    int       `json:"sequence_order"`
	PrerequisiteRefs []string  `json:"prerequisite_refs"`
	MaxScore         float64   `json:"max_score"`
	MaxBonusPoints   float64   `json:"max_bonus_points"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
