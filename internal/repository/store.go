package repository

import (
	"context"
	"errors"
	"time"

	"quizhub_backend/internal/model"
)

// ErrNotFound is returned by every store when the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// QuizStore persists quizzes together with their ordered questions.
type QuizStore interface {
	Create(ctx context.Context, quiz *model.Quiz) error
	// Update 更新测验字段，replaceQuestions 为 true 时整体替换题目；计数器不受影响
	Update(ctx context.Context, quiz *model.Quiz, replaceQuestions bool) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*model.Quiz, error)
	ListByOwner(ctx context.Context, ownerID string) ([]model.Quiz, error)
	ListAll(ctx context.Context) ([]model.Quiz, error)
	ListEndedIDs(ctx context.Context, before time.Time) ([]string, error)
	IncrementAttemptCount(ctx context.Context, id string) error
	IncrementCompletedCount(ctx context.Context, id string) error
}

// AttemptStore persists attempts. InsertIfAbsent and CompleteIfInProgress are
// single atomic operations against the backing store.
type AttemptStore interface {
	// InsertIfAbsent inserts the attempt unless one already holds the same
	// (quizId, userId, attemptNo) slot, in which case the stored one is returned.
	InsertIfAbsent(ctx context.Context, attempt *model.Attempt) (*model.Attempt, bool, error)
	FindByID(ctx context.Context, id string) (*model.Attempt, error)
	CountByQuizAndUser(ctx context.Context, quizID, userID string) (int64, error)
	MaxAttemptNo(ctx context.Context, quizID, userID string) (int, error)
	// FindInProgress 返回用户在该测验下最早的未完成尝试，没有时返回 ErrNotFound
	FindInProgress(ctx context.Context, quizID, userID string) (*model.Attempt, error)
	// CompleteIfInProgress writes the graded fields only while the attempt is
	// still in progress; false means another submission won.
	CompleteIfInProgress(ctx context.Context, attempt *model.Attempt) (bool, error)
	// UpdateGrade 重新评分，仅对已完成的尝试生效
	UpdateGrade(ctx context.Context, attempt *model.Attempt) (bool, error)
	ListByQuizAndUser(ctx context.Context, quizID, userID string) ([]model.Attempt, error)
	ListByQuiz(ctx context.Context, quizID string) ([]model.Attempt, error)
	SummariesForUser(ctx context.Context, userID string) (map[string]model.AttemptSummary, error)
	CountInProgress(ctx context.Context, quizIDs []string) (int64, error)
	DeleteByQuiz(ctx context.Context, quizID string) error
}
