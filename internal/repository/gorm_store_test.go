package repository

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"quizhub_backend/internal/model"
	"quizhub_backend/pkg/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "quizhub.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seedQuiz(t *testing.T, store *GormQuizStore) *model.Quiz {
	t.Helper()

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	quiz := &model.Quiz{
		OwnerID:         model.GenerateUUID(),
		Title:           "Capitals",
		AttemptType:     model.AttemptTypeSingle,
		StartTime:       start,
		EndTime:         start.Add(time.Hour),
		DurationMinutes: 30,
		Questions: []model.Question{
			{Position: 0, Text: "Capital of France?", Type: model.QuestionTypeMultipleChoice, Marks: 5,
				Options: []string{"Paris", "Rome"}, CorrectAnswer: model.Scalar("Paris")},
			{Position: 1, Text: "Pick primes", Type: model.QuestionTypeCheckbox, Marks: 2,
				Options: []string{"2", "3", "4"}, CorrectAnswer: model.Set("2", "3")},
		},
	}
	require.NoError(t, store.Create(context.Background(), quiz))
	return quiz
}

func newAttempt(quizID, userID string, no int) *model.Attempt {
	return &model.Attempt{
		QuizID:    quizID,
		UserID:    userID,
		AttemptNo: no,
		Status:    model.AttemptStatusInProgress,
		StartedAt: time.Now(),
	}
}

func TestGormQuizStoreRoundTrip(t *testing.T) {
	store := NewGormQuizStore(newTestDB(t))
	ctx := context.Background()
	quiz := seedQuiz(t, store)

	got, err := store.FindByID(ctx, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, "Capitals", got.Title)
	require.Len(t, got.Questions, 2)
	assert.Equal(t, "Capital of France?", got.Questions[0].Text)
	assert.True(t, got.Questions[0].CorrectAnswer.Equal(model.Scalar("Paris")))
	assert.Equal(t, []string{"2", "3"}, got.Questions[1].CorrectAnswer.Values())
	assert.Equal(t, []string{"Paris", "Rome"}, []string(got.Questions[0].Options))

	_, err = store.FindByID(ctx, model.GenerateUUID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormQuizStoreUpdateKeepsCounters(t *testing.T) {
	store := NewGormQuizStore(newTestDB(t))
	ctx := context.Background()
	quiz := seedQuiz(t, store)

	require.NoError(t, store.IncrementAttemptCount(ctx, quiz.ID))
	require.NoError(t, store.IncrementAttemptCount(ctx, quiz.ID))
	require.NoError(t, store.IncrementCompletedCount(ctx, quiz.ID))

	quiz.Title = "World capitals"
	quiz.AttemptCount = 0
	quiz.Questions = []model.Question{
		{Position: 0, Text: "Capital of Italy?", Type: model.QuestionTypeMultipleChoice, Marks: 3,
			Options: []string{"Paris", "Rome"}, CorrectAnswer: model.Scalar("Rome")},
	}
	require.NoError(t, store.Update(ctx, quiz, true))

	got, err := store.FindByID(ctx, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, "World capitals", got.Title)
	assert.Equal(t, int64(2), got.AttemptCount)
	assert.Equal(t, int64(1), got.CompletedCount)
	require.Len(t, got.Questions, 1)
	assert.Equal(t, "Capital of Italy?", got.Questions[0].Text)
}

func TestGormQuizStoreDelete(t *testing.T) {
	store := NewGormQuizStore(newTestDB(t))
	ctx := context.Background()
	quiz := seedQuiz(t, store)

	require.NoError(t, store.Delete(ctx, quiz.ID))
	_, err := store.FindByID(ctx, quiz.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, quiz.ID), ErrNotFound)
}

func TestGormQuizStoreListEndedIDs(t *testing.T) {
	store := NewGormQuizStore(newTestDB(t))
	quiz := seedQuiz(t, store)

	ids, err := store.ListEndedIDs(context.Background(), quiz.EndTime.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []string{quiz.ID}, ids)

	ids, err = store.ListEndedIDs(context.Background(), quiz.StartTime)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestGormAttemptStoreInsertIfAbsent(t *testing.T) {
	db := newTestDB(t)
	store := NewGormAttemptStore(db)
	ctx := context.Background()
	quizID, userID := model.GenerateUUID(), model.GenerateUUID()

	first, created, err := store.InsertIfAbsent(ctx, newAttempt(quizID, userID, 1))
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := store.InsertIfAbsent(ctx, newAttempt(quizID, userID, 1))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	count, err := store.CountByQuizAndUser(ctx, quizID, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestGormAttemptStoreInsertIfAbsentConcurrent(t *testing.T) {
	store := NewGormAttemptStore(newTestDB(t))
	ctx := context.Background()
	quizID, userID := model.GenerateUUID(), model.GenerateUUID()

	const workers = 8
	ids := make([]string, workers)
	createdCount := 0
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, created, err := store.InsertIfAbsent(ctx, newAttempt(quizID, userID, 1))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			ids[i] = a.ID
			if created {
				createdCount++
			}
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, createdCount)
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestGormAttemptStoreCompleteIfInProgress(t *testing.T) {
	store := NewGormAttemptStore(newTestDB(t))
	ctx := context.Background()

	attempt, _, err := store.InsertIfAbsent(ctx, newAttempt(model.GenerateUUID(), model.GenerateUUID(), 1))
	require.NoError(t, err)

	now := time.Now()
	attempt.Score = 5
	attempt.TimeSpentMs = 1500
	attempt.FinishedAt = &now
	attempt.GradedAt = &now
	attempt.AutoGraded = true
	attempt.Answers = []model.AnswerRecord{
		{QuestionID: "q1", Selected: model.Scalar("Paris"), TimeSpentMs: 1500, IsCorrect: true, MarksObtained: 5},
	}

	ok, err := store.CompleteIfInProgress(ctx, attempt)
	require.NoError(t, err)
	assert.True(t, ok)

	attempt.Score = 0
	ok, err = store.CompleteIfInProgress(ctx, attempt)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := store.FindByID(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptStatusCompleted, got.Status)
	assert.Equal(t, 5, got.Score)
	require.Len(t, got.Answers, 1)
	assert.True(t, got.Answers[0].Selected.Equal(model.Scalar("Paris")))
	assert.NotNil(t, got.FinishedAt)
}

func TestGormAttemptStoreUpdateGradeRequiresCompleted(t *testing.T) {
	store := NewGormAttemptStore(newTestDB(t))
	ctx := context.Background()

	attempt, _, err := store.InsertIfAbsent(ctx, newAttempt(model.GenerateUUID(), model.GenerateUUID(), 1))
	require.NoError(t, err)

	ok, err := store.UpdateGrade(ctx, attempt)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGormAttemptStoreSummariesAndCounts(t *testing.T) {
	store := NewGormAttemptStore(newTestDB(t))
	ctx := context.Background()
	quizID, userID := model.GenerateUUID(), model.GenerateUUID()

	a1, _, err := store.InsertIfAbsent(ctx, newAttempt(quizID, userID, 1))
	require.NoError(t, err)
	_, _, err = store.InsertIfAbsent(ctx, newAttempt(quizID, userID, 2))
	require.NoError(t, err)

	now := time.Now()
	a1.Score = 7
	a1.FinishedAt = &now
	ok, err := store.CompleteIfInProgress(ctx, a1)
	require.NoError(t, err)
	require.True(t, ok)

	maxNo, err := store.MaxAttemptNo(ctx, quizID, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, maxNo)

	maxNo, err = store.MaxAttemptNo(ctx, quizID, model.GenerateUUID())
	require.NoError(t, err)
	assert.Equal(t, 0, maxNo)

	open, err := store.FindInProgress(ctx, quizID, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, open.AttemptNo)
	_, err = store.FindInProgress(ctx, quizID, model.GenerateUUID())
	assert.ErrorIs(t, err, ErrNotFound)

	summaries, err := store.SummariesForUser(ctx, userID)
	require.NoError(t, err)
	s, ok := summaries[quizID]
	require.True(t, ok)
	assert.Equal(t, 2, s.Total)
	assert.Equal(t, 1, s.Completed)
	require.NotNil(t, s.BestScore)
	assert.Equal(t, 7, *s.BestScore)

	inProgress, err := store.CountInProgress(ctx, []string{quizID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), inProgress)

	require.NoError(t, store.DeleteByQuiz(ctx, quizID))
	attempts, err := store.ListByQuizAndUser(ctx, quizID, userID)
	require.NoError(t, err)
	assert.Empty(t, attempts)
}
