package model

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

type AttemptType string

const (
	AttemptTypeSingle   AttemptType = "Single"
	AttemptTypeMultiple AttemptType = "Multiple"
)

type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeCheckbox       QuestionType = "checkbox"
	QuestionTypeTrueFalse      QuestionType = "true_false"
)

// ParseQuestionType 兼容前端传入的展示名（"Multiple Choice"、"True/False"）
func ParseQuestionType(s string) QuestionType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "multiple_choice", "multiple choice", "multiplechoice", "mcq", "single":
		return QuestionTypeMultipleChoice
	case "checkbox", "multi_select", "multiple_select", "multiselect":
		return QuestionTypeCheckbox
	case "true_false", "true/false", "truefalse", "boolean":
		return QuestionTypeTrueFalse
	}
	return QuestionType(s)
}

// IsSingleChoice single-choice 类型按标量比较答案
func (t QuestionType) IsSingleChoice() bool {
	return t == QuestionTypeMultipleChoice || t == QuestionTypeTrueFalse
}

// swagger:model Question
type Question struct {
	UUIDBase

	QuizID        string                      `gorm:"type:varchar(36);index;not null" json:"quizId"`
	Position      int                         `gorm:"not null;default:0" json:"position"`
	Text          string                      `gorm:"type:text;not null" json:"questionText"`
	Type          QuestionType                `gorm:"size:32;not null" json:"questionType"`
	Marks         int                         `gorm:"not null" json:"marks"`
	Options       datatypes.JSONSlice[string] `json:"options"`
	CorrectAnswer Selection                   `json:"correctAnswer"`
}

func (Question) TableName() string {
	return "quiz_questions"
}

// swagger:model Quiz
type Quiz struct {
	UUIDBase

	OwnerID         string                      `gorm:"type:varchar(36);index;not null" json:"createdBy"`
	SubjectID       string                      `gorm:"size:64;index" json:"subjectId"`
	Title           string                      `gorm:"size:255;not null" json:"quizName"`
	Description     string                      `gorm:"type:text" json:"description"`
	AttemptType     AttemptType                 `gorm:"size:16;not null;default:'Single'" json:"attemptType"`
	MaxAttempts     int                         `gorm:"not null;default:0" json:"maxAttempts"` // 0 表示不限
	StartTime       time.Time                   `gorm:"not null" json:"startTime"`
	EndTime         time.Time                   `gorm:"not null" json:"endTime"`
	DurationMinutes int                         `gorm:"not null;default:1" json:"durationMinutes"`
	AssignedTo      datatypes.JSONSlice[string] `json:"assignedTo"` // 为空时对所有学生可见
	AttemptCount    int64                       `gorm:"not null;default:0" json:"attemptCount"`
	CompletedCount  int64                       `gorm:"not null;default:0" json:"completedCount"`

	Questions []Question `gorm:"foreignKey:QuizID;constraint:OnDelete:CASCADE" json:"questions"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

// EffectiveAttemptLimit returns the per-user attempt cap; 0 means unlimited.
func (q *Quiz) EffectiveAttemptLimit() int {
	if q.AttemptType != AttemptTypeMultiple {
		return 1
	}
	if q.MaxAttempts < 0 {
		return 0
	}
	return q.MaxAttempts
}

func (q *Quiz) IsAssigned(userID string) bool {
	if len(q.AssignedTo) == 0 {
		return true
	}
	for _, id := range q.AssignedTo {
		if id == userID {
			return true
		}
	}
	return false
}

// InWindow 时间窗口两端均包含
func (q *Quiz) InWindow(now time.Time) bool {
	return !now.Before(q.StartTime) && !now.After(q.EndTime)
}

func (q *Quiz) HasStarted(now time.Time) bool {
	return !now.Before(q.StartTime)
}

// QuizSummary 学生端列表项
type QuizSummary struct {
	ID              string      `json:"id"`
	Title           string      `json:"quizName"`
	SubjectID       string      `json:"subjectId"`
	AttemptType     AttemptType `json:"attemptType"`
	MaxAttempts     int         `json:"maxAttempts"`
	StartTime       time.Time   `json:"startTime"`
	EndTime         time.Time   `json:"endTime"`
	DurationMinutes int         `json:"durationMinutes"`
	QuestionCount   int         `json:"questionCount"`
	TotalMarks      int         `json:"totalMarks"`
	Status          string      `json:"status"`
	Attempted       bool        `json:"attempted"`
	Completed       int         `json:"completedAttempts"`
	BestScore       *int        `json:"bestScore,omitempty"`
}

// TotalMarks 满分
func (q *Quiz) TotalMarks() int {
	total := 0
	for _, qs := range q.Questions {
		total += qs.Marks
	}
	return total
}
