package model

import "time"

type ProgressStatus string

const (
	// Locked and Unlocked are computed from the prerequisite graph for
	// labs the user has never started; only InProgress and Completed are
	// ever persisted.
	StatusLocked     ProgressStatus = "locked"
	StatusUnlocked   ProgressStatus = "unlocked"
	StatusInProgress ProgressStatus = "in_progress"
	StatusCompleted  ProgressStatus = "completed"
)

// ProgressRecord is the single durable row for one user's history with
// one lab. Retakes fold into BestScore/BestBonus and Attempts rather
// than creating new rows.
type ProgressRecord struct {
	ID              string         `json:"id"`
	UserID          string         `json:"user_id"`
	LabID           string         `json:"lab_id"`
	Status          ProgressStatus `json:"status"`
	BestScore       float64        `json:"best_score"`
	BestBonus       float64        `json:"best_bonus"`
	Attempts        int            `json:"attempts"`
	StartedAt       *time.Time     `json:"started_at,omitempty"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	LastAttemptAt   time.Time      `json:"last_attempt_at"`
	ScoreOverridden bool           `json:"score_overridden"`
	InstructorNotes *string        `json:"instructor_notes,omitempty"`
}

// LabProgress pairs a catalog entry with the user's (possibly computed)
// progress for it, for the progress listing endpoints.
type LabProgress struct {
	Lab      Lab             `json:"lab"`
	Progress ProgressSummary `json:"progress"`
}

type ProgressSummary struct {
	Status          ProgressStatus `json:"status"`
	BestScore       *float64       `json:"best_score,omitempty"`
	BestBonus       float64        `json:"best_bonus"`
	Attempts        int            `json:"attempts"`
	StartedAt       *time.Time     `json:"started_at,omitempty"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	ScoreOverridden bool           `json:"score_overridden,omitempty"`
	InstructorNotes *string        `json:"instructor_notes,omitempty"`
}
