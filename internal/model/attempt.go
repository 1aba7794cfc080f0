package model

import (
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "in_progress"
	AttemptStatusCompleted  AttemptStatus = "completed"
)

// AnswerRecord is one graded answer stored on an attempt.
type AnswerRecord struct {
	QuestionID    string    `json:"questionId"`
	Selected      Selection `json:"selected"`
	TimeSpentMs   int64     `json:"timeSpentMs"`
	IsCorrect     bool      `json:"isCorrect"`
	MarksObtained int       `json:"marksObtained"`
}

// swagger:model Attempt
type Attempt struct {
	UUIDBase

	QuizID      string                            `gorm:"type:varchar(36);not null;uniqueIndex:idx_attempt_slot,priority:1" json:"quizId"`
	UserID      string                            `gorm:"type:varchar(36);not null;uniqueIndex:idx_attempt_slot,priority:2;index" json:"userId"`
	AttemptNo   int                               `gorm:"not null;default:1;uniqueIndex:idx_attempt_slot,priority:3" json:"attemptNo"`
	Status      AttemptStatus                     `gorm:"size:16;not null;default:'in_progress';index" json:"status"`
	Score       int                               `gorm:"not null;default:0" json:"score"`
	TimeSpentMs int64                             `gorm:"not null;default:0" json:"timeSpentMs"`
	StartedAt   time.Time                         `gorm:"not null" json:"startedAt"`
	FinishedAt  *time.Time                        `json:"finishedAt,omitempty"`
	GradedAt    *time.Time                        `json:"gradedAt,omitempty"`
	Answers     datatypes.JSONSlice[AnswerRecord] `json:"answers"`
	UserAgent   string                            `gorm:"size:512" json:"userAgent,omitempty"`
	IP          string                            `gorm:"size:64" json:"ip,omitempty"`
	AutoGraded  bool                              `gorm:"not null;default:false" json:"autoGraded"`
	GradedBy    *string                           `gorm:"type:varchar(36)" json:"gradedBy,omitempty"`
}

func (Attempt) TableName() string {
	return "quiz_attempts"
}

func (a *Attempt) IsCompleted() bool {
	return a.Status == AttemptStatusCompleted
}

// AttemptSummary 某用户在某测验下的尝试汇总
type AttemptSummary struct {
	QuizID    string
	Total     int
	Completed int
	BestScore *int
}
