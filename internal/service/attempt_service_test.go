package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"quizhub_backend/internal/grading"
	"quizhub_backend/internal/model"
	"quizhub_backend/internal/repository"
	"quizhub_backend/internal/util"
	"quizhub_backend/pkg/clock"
	"quizhub_backend/pkg/database"
	"quizhub_backend/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var t0 = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

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

type attemptFixture struct {
	db       *gorm.DB
	quizzes  *repository.GormQuizStore
	attempts *repository.GormAttemptStore
	clock    *clock.Fixed
	events   *events.Recorder
	svc      *AttemptService
	ownerID  string
}

func newAttemptFixture(t *testing.T) *attemptFixture {
	t.Helper()

	db := newTestDB(t)
	f := &attemptFixture{
		db:       db,
		quizzes:  repository.NewGormQuizStore(db),
		attempts: repository.NewGormAttemptStore(db),
		clock:    clock.NewFixed(t0.Add(10 * time.Second)),
		events:   &events.Recorder{},
		ownerID:  model.GenerateUUID(),
	}
	f.svc = NewAttemptService(f.quizzes, f.attempts, f.clock, f.events)
	t.Cleanup(f.svc.Wait)
	return f
}

func (f *attemptFixture) createQuiz(t *testing.T, mutate func(q *model.Quiz)) *model.Quiz {
	t.Helper()

	quiz := &model.Quiz{
		OwnerID:         f.ownerID,
		Title:           "Geography",
		AttemptType:     model.AttemptTypeSingle,
		StartTime:       t0,
		EndTime:         t0.Add(3600 * time.Second),
		DurationMinutes: 30,
		Questions: []model.Question{
			{Position: 0, Text: "Capital of France?", Type: model.QuestionTypeMultipleChoice, Marks: 5,
				Options: []string{"Paris", "Lyon"}, CorrectAnswer: model.Scalar("Paris")},
			{Position: 1, Text: "Even numbers", Type: model.QuestionTypeCheckbox, Marks: 3,
				Options: []string{"1", "2", "4"}, CorrectAnswer: model.Set("2", "4")},
		},
	}
	if mutate != nil {
		mutate(quiz)
	}
	require.NoError(t, f.quizzes.Create(context.Background(), quiz))
	return quiz
}

func (f *attemptFixture) reloadQuiz(t *testing.T, id string) *model.Quiz {
	t.Helper()
	f.svc.Wait()
	quiz, err := f.quizzes.FindByID(context.Background(), id)
	require.NoError(t, err)
	return quiz
}

func answersFor(quiz *model.Quiz, first model.Selection) []grading.Answer {
	return []grading.Answer{{QuestionID: quiz.Questions[0].ID, Selected: first, TimeSpentMs: 1200}}
}

func TestStartAttemptSingleResumesSameAttempt(t *testing.T) {
	f := newAttemptFixture(t)
	quiz := f.createQuiz(t, nil)
	userID := model.GenerateUUID()
	ctx := context.Background()

	first, err := f.svc.StartAttempt(ctx, quiz.ID, userID, ClientMeta{UserAgent: "test", IP: "127.0.0.1"})
	require.NoError(t, err)
	assert.False(t, first.Resumed)
	assert.Equal(t, 1, first.AttemptNo)

	second, err := f.svc.StartAttempt(ctx, quiz.ID, userID, ClientMeta{})
	require.NoError(t, err)
	assert.True(t, second.Resumed)
	assert.Equal(t, first.AttemptID, second.AttemptID)

	assert.Equal(t, int64(1), f.reloadQuiz(t, quiz.ID).AttemptCount)
	assert.Equal(t, []string{events.AttemptStarted}, f.events.Types())
}

func TestStartAttemptSingleConcurrentStartsShareOneAttempt(t *testing.T) {
	f := newAttemptFixture(t)
	quiz := f.createQuiz(t, nil)
	userID := model.GenerateUUID()

	const workers = 10
	ids := make(chan string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.StartAttempt(context.Background(), quiz.ID, userID, ClientMeta{})
			if assert.NoError(t, err) {
				ids <- res.AttemptID
			}
		}()
	}
	wg.Wait()
	close(ids)

	unique := map[string]bool{}
	for id := range ids {
		unique[id] = true
	}
	assert.Len(t, unique, 1)

	count, err := f.attempts.CountByQuizAndUser(context.Background(), quiz.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, int64(1), f.reloadQuiz(t, quiz.ID).AttemptCount)
}

func TestStartAttemptSingleAfterCompletionIsRejected(t *testing.T) {
	f := newAttemptFixture(t)
	quiz := f.createQuiz(t, nil)
	userID := model.GenerateUUID()
	ctx := context.Background()

	started, err := f.svc.StartAttempt(ctx, quiz.ID, userID, ClientMeta{})
	require.NoError(t, err)
	_, err = f.svc.SubmitAttempt(ctx, started.AttemptID, userID, answersFor(quiz, model.Scalar("Paris")))
	require.NoError(t, err)

	_, err = f.svc.StartAttempt(ctx, quiz.ID, userID, ClientMeta{})
	assert.ErrorIs(t, err, util.ErrAttemptAlreadyCompleted)
	assert.Equal(t, util.KindAttemptAlreadyCompleted, util.KindOf(err))
}

func TestStartAttemptMultipleRespectsCap(t *testing.T) {
	f := newAttemptFixture(t)
	quiz := f.createQuiz(t, func(q *model.Quiz) {
		q.AttemptType = model.AttemptTypeMultiple
		q.MaxAttempts = 2
	})
	userID := model.GenerateUUID()
	ctx := context.Background()

	first, err := f.svc.StartAttempt(ctx, quiz.ID, userID, ClientMeta{})
	require.NoError(t, err)
	_, err = f.svc.SubmitAttempt(ctx, first.AttemptID, userID, answersFor(quiz, model.Scalar("Paris")))
	require.NoError(t, err)

	second, err := f.svc.StartAttempt(ctx, quiz.ID, userID, ClientMeta{})
	require.NoError(t, err)
	assert.NotEqual(t, first.AttemptID, second.AttemptID)
	assert.Equal(t, 2, second.AttemptNo)
	assert.False(t, second.Resumed)
	_, err = f.svc.SubmitAttempt(ctx, second.AttemptID, userID, answersFor(quiz, model.Scalar("Lyon")))
	require.NoError(t, err)

	_, err = f.svc.StartAttempt(ctx, quiz.ID, userID, ClientMeta{})
	var appErr *util.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, util.KindAttemptLimitReached, appErr.Kind)
	assert.Equal(t, int64(2), f.reloadQuiz(t, quiz.ID).AttemptCount)
}

func TestStartAttemptMultipleResumesOpenAttemptAtCap(t *testing.T) {
	f := newAttemptFixture(t)
	quiz := f.createQuiz(t, func(q *model.Quiz) {
		q.AttemptType = model.AttemptTypeMultiple
		q.MaxAttempts = 2
	})
	userID := model.GenerateUUID()
	ctx := context.Background()

	first, err := f.svc.StartAttempt(ctx, quiz.ID, userID, ClientMeta{})
	require.NoError(t, err)
	_, err = f.svc.SubmitAttempt(ctx, first.AttemptID, userID, answersFor(quiz, model.Scalar("Paris")))
	require.NoError(t, err)

	second, err := f.svc.StartAttempt(ctx, quiz.ID, userID, ClientMeta{})
	require.NoError(t, err)

	// 第二次仍未提交，达到上限后继续该尝试
	third, err := f.svc.StartAttempt(ctx, quiz.ID, userID, ClientMeta{})
	require.NoError(t, err)
	assert.True(t, third.Resumed)
	assert.Equal(t, second.AttemptID, third.AttemptID)
	assert.Equal(t, 2, third.AttemptNo)
	assert.Equal(t, model.AttemptStatusInProgress, third.Status)

	count, err := f.attempts.CountByQuizAndUser(ctx, quiz.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, int64(2), f.reloadQuiz(t, quiz.ID).AttemptCount, "resuming does not bump the counter")

	_, err = f.svc.SubmitAttempt(ctx, second.AttemptID, userID, answersFor(quiz, model.Scalar("Paris")))
	require.NoError(t, err)
	_, err = f.svc.StartAttempt(ctx, quiz.ID, userID, ClientMeta{})
	assert.Equal(t, util.KindAttemptLimitReached, util.KindOf(err))
}

func TestStartAttemptMultipleConcurrentNeverExceedsCap(t *testing.T) {
	f := newAttemptFixture(t)
	quiz := f.createQuiz(t, func(q *model.Quiz) {
		q.AttemptType = model.AttemptTypeMultiple
		q.MaxAttempts = 3
	})
	userID := model.GenerateUUID()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.svc.StartAttempt(context.Background(), quiz.ID, userID, ClientMeta{})
		}()
	}
	wg.Wait()

	count, err := f.attempts.CountByQuizAndUser(context.Background(), quiz.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestStartAttemptMultipleWithoutCap(t *testing.T) {
	f := newAttemptFixture(t)
	quiz := f.createQuiz(t, func(q *model.Quiz) {
		q.AttemptType = model.AttemptTypeMultiple
		q.MaxAttempts = 0
	})
	userID := model.GenerateUUID()

	for i := 1; i <= 4; i++ {
		res, err := f.svc.StartAttempt(context.Background(), quiz.ID, userID, ClientMeta{})
		require.NoError(t, err)
		assert.Equal(t, i, res.AttemptNo)
	}
}

func TestStartAttemptPreconditions(t *testing.T) {
	f := newAttemptFixture(t)
	assigned := model.GenerateUUID()
	quiz := f.createQuiz(t, func(q *model.Quiz) {
		q.AssignedTo = []string{assigned}
	})
	ctx := context.Background()

	_, err := f.svc.StartAttempt(ctx, "not-a-uuid", assigned, ClientMeta{})
	assert.ErrorIs(t, err, util.ErrInvalidReference)

	_, err = f.svc.StartAttempt(ctx, model.GenerateUUID(), assigned, ClientMeta{})
	assert.Equal(t, util.KindNotFound, util.KindOf(err))

	_, err = f.svc.StartAttempt(ctx, quiz.ID, model.GenerateUUID(), ClientMeta{})
	assert.ErrorIs(t, err, util.ErrNotAssigned)

	f.clock.Set(t0.Add(-time.Second))
	_, err = f.svc.StartAttempt(ctx, quiz.ID, assigned, ClientMeta{})
	assert.ErrorIs(t, err, util.ErrQuizNotRunning)

	// 窗口检查先于分配检查
	_, err = f.svc.StartAttempt(ctx, quiz.ID, model.GenerateUUID(), ClientMeta{})
	assert.ErrorIs(t, err, util.ErrQuizNotRunning)

	f.clock.Set(t0)
	_, err = f.svc.StartAttempt(ctx, quiz.ID, assigned, ClientMeta{})
	assert.NoError(t, err, "window start is inclusive")
}

func TestSubmitAttemptGradesAndCompletes(t *testing.T) {
	f := newAttemptFixture(t)
	quiz := f.createQuiz(t, nil)
	userID := model.GenerateUUID()
	ctx := context.Background()

	started, err := f.svc.StartAttempt(ctx, quiz.ID, userID, ClientMeta{})
	require.NoError(t, err)

	res, err := f.svc.SubmitAttempt(ctx, started.AttemptID, userID, []grading.Answer{
		{QuestionID: quiz.Questions[0].ID, Selected: model.Scalar("Paris"), TimeSpentMs: 1000},
		{QuestionID: quiz.Questions[1].ID, Selected: model.Set("4", "2", "4"), TimeSpentMs: 2000},
	})
	require.NoError(t, err)
	assert.Equal(t, 8, res.Score)
	assert.Equal(t, 8, res.TotalMarks)
	assert.Equal(t, int64(3000), res.TimeSpentMs)

	stored, err := f.attempts.FindByID(ctx, started.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptStatusCompleted, stored.Status)
	assert.Equal(t, 8, stored.Score)
	assert.True(t, stored.AutoGraded)
	assert.NotNil(t, stored.FinishedAt)
	assert.NotNil(t, stored.GradedAt)
	require.Len(t, stored.Answers, 2)
	assert.Equal(t, []string{"4", "2"}, stored.Answers[1].Selected.Values())

	assert.Equal(t, int64(1), f.reloadQuiz(t, quiz.ID).CompletedCount)
	assert.Contains(t, f.events.Types(), events.AttemptCompleted)
}

func TestSubmitAttemptMultipleChoiceIsCaseSensitive(t *testing.T) {
	f := newAttemptFixture(t)
	quiz := f.createQuiz(t, func(q *model.Quiz) {
		q.AttemptType = model.AttemptTypeMultiple
	})
	userID := model.GenerateUUID()
	ctx := context.Background()

	for selected, want := range map[string]int{"Paris": 5, "paris": 0} {
		started, err := f.svc.StartAttempt(ctx, quiz.ID, userID, ClientMeta{})
		require.NoError(t, err)
		res, err := f.svc.SubmitAttempt(ctx, started.AttemptID, userID, answersFor(quiz, model.Scalar(selected)))
		require.NoError(t, err)
		assert.Equal(t, want, res.Score, "selected=%s", selected)
		assert.Equal(t, want > 0, res.Answers[0].IsCorrect)
	}
}

func TestSubmitAttemptAfterWindowIsRejected(t *testing.T) {
	f := newAttemptFixture(t)
	quiz := f.createQuiz(t, nil)
	userID := model.GenerateUUID()
	ctx := context.Background()

	started, err := f.svc.StartAttempt(ctx, quiz.ID, userID, ClientMeta{})
	require.NoError(t, err)

	f.clock.Set(t0.Add(3700 * time.Second))
	_, err = f.svc.SubmitAttempt(ctx, started.AttemptID, userID, answersFor(quiz, model.Scalar("Paris")))
	assert.ErrorIs(t, err, util.ErrQuizNotRunning)

	stored, err := f.attempts.FindByID(ctx, started.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptStatusInProgress, stored.Status)
	assert.Equal(t, int64(0), f.reloadQuiz(t, quiz.ID).CompletedCount)
}

func TestSubmitAttemptTwiceIsRejected(t *testing.T) {
	f := newAttemptFixture(t)
	quiz := f.createQuiz(t, nil)
	userID := model.GenerateUUID()
	ctx := context.Background()

	started, err := f.svc.StartAttempt(ctx, quiz.ID, userID, ClientMeta{})
	require.NoError(t, err)
	_, err = f.svc.SubmitAttempt(ctx, started.AttemptID, userID, answersFor(quiz, model.Scalar("Paris")))
	require.NoError(t, err)

	_, err = f.svc.SubmitAttempt(ctx, started.AttemptID, userID, answersFor(quiz, model.Scalar("Lyon")))
	assert.ErrorIs(t, err, util.ErrAlreadySubmitted)

	// 窗口关闭后仍然返回 AlreadySubmitted
	f.clock.Set(t0.Add(2 * time.Hour))
	_, err = f.svc.SubmitAttempt(ctx, started.AttemptID, userID, answersFor(quiz, model.Scalar("Lyon")))
	assert.ErrorIs(t, err, util.ErrAlreadySubmitted)

	stored, err := f.attempts.FindByID(ctx, started.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.Score)
}

func TestSubmitAttemptConcurrentDuplicatesTransitionOnce(t *testing.T) {
	f := newAttemptFixture(t)
	quiz := f.createQuiz(t, nil)
	userID := model.GenerateUUID()
	ctx := context.Background()

	started, err := f.svc.StartAttempt(ctx, quiz.ID, userID, ClientMeta{})
	require.NoError(t, err)

	const workers = 6
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		already   int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.SubmitAttempt(ctx, started.AttemptID, userID, answersFor(quiz, model.Scalar("Paris")))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, util.ErrAlreadySubmitted):
				already++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, already)
	assert.Equal(t, int64(1), f.reloadQuiz(t, quiz.ID).CompletedCount)
}

func TestSubmitAttemptPreconditions(t *testing.T) {
	f := newAttemptFixture(t)
	quiz := f.createQuiz(t, nil)
	userID := model.GenerateUUID()
	ctx := context.Background()

	started, err := f.svc.StartAttempt(ctx, quiz.ID, userID, ClientMeta{})
	require.NoError(t, err)

	_, err = f.svc.SubmitAttempt(ctx, started.AttemptID, model.GenerateUUID(), answersFor(quiz, model.Scalar("Paris")))
	assert.ErrorIs(t, err, util.ErrPermissionDenied)

	_, err = f.svc.SubmitAttempt(ctx, "bogus", userID, answersFor(quiz, model.Scalar("Paris")))
	assert.ErrorIs(t, err, util.ErrInvalidReference)

	_, err = f.svc.SubmitAttempt(ctx, model.GenerateUUID(), userID, answersFor(quiz, model.Scalar("Paris")))
	assert.ErrorIs(t, err, util.ErrAttemptNotFound)

	_, err = f.svc.SubmitAttempt(ctx, started.AttemptID, userID, nil)
	assert.Equal(t, util.KindValidationFailure, util.KindOf(err))

	_, err = f.svc.SubmitAttempt(ctx, started.AttemptID, userID, []grading.Answer{{Selected: model.Scalar("Paris")}})
	assert.Equal(t, util.KindValidationFailure, util.KindOf(err))

	dup := quiz.Questions[0].ID
	_, err = f.svc.SubmitAttempt(ctx, started.AttemptID, userID, []grading.Answer{
		{QuestionID: dup, Selected: model.Scalar("Lyon")},
		{QuestionID: dup, Selected: model.Scalar("Paris")},
	})
	assert.Equal(t, util.KindValidationFailure, util.KindOf(err))

	_, err = f.svc.SubmitAttempt(ctx, started.AttemptID, "", answersFor(quiz, model.Scalar("Paris")))
	assert.ErrorIs(t, err, util.ErrUnauthenticated)

	// 空答案合法，得 0 分
	res, err := f.svc.SubmitAttempt(ctx, started.AttemptID, userID, []grading.Answer{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Score)
}

type failingCounters struct {
	repository.QuizStore
}

func (failingCounters) IncrementAttemptCount(context.Context, string) error {
	return errors.New("counter store down")
}

func (failingCounters) IncrementCompletedCount(context.Context, string) error {
	return errors.New("counter store down")
}

func TestCounterFailuresDoNotFailPrimaryOperations(t *testing.T) {
	f := newAttemptFixture(t)
	quiz := f.createQuiz(t, nil)
	svc := NewAttemptService(failingCounters{f.quizzes}, f.attempts, f.clock, nil)
	userID := model.GenerateUUID()
	ctx := context.Background()

	started, err := svc.StartAttempt(ctx, quiz.ID, userID, ClientMeta{})
	require.NoError(t, err)
	res, err := svc.SubmitAttempt(ctx, started.AttemptID, userID, answersFor(quiz, model.Scalar("Paris")))
	require.NoError(t, err)
	assert.Equal(t, 5, res.Score)
	svc.Wait()

	reloaded := f.reloadQuiz(t, quiz.ID)
	assert.Equal(t, int64(0), reloaded.AttemptCount)
	assert.Equal(t, int64(0), reloaded.CompletedCount)
}

func TestRegradeAttempt(t *testing.T) {
	f := newAttemptFixture(t)
	quiz := f.createQuiz(t, nil)
	userID := model.GenerateUUID()
	ctx := context.Background()

	started, err := f.svc.StartAttempt(ctx, quiz.ID, userID, ClientMeta{})
	require.NoError(t, err)

	owner := Actor{ID: f.ownerID, Role: model.Faculty}
	_, err = f.svc.RegradeAttempt(ctx, started.AttemptID, owner)
	assert.ErrorIs(t, err, util.ErrAttemptNotCompleted)

	_, err = f.svc.SubmitAttempt(ctx, started.AttemptID, userID, answersFor(quiz, model.Scalar("Lyon")))
	require.NoError(t, err)

	// 修正答案后重新评分
	require.NoError(t, f.db.Model(&model.Question{}).Where("id = ?", quiz.Questions[0].ID).
		Update("correct_answer", model.Scalar("Lyon")).Error)

	_, err = f.svc.RegradeAttempt(ctx, started.AttemptID, Actor{ID: model.GenerateUUID(), Role: model.Faculty})
	assert.ErrorIs(t, err, util.ErrPermissionDenied)

	res, err := f.svc.RegradeAttempt(ctx, started.AttemptID, owner)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Score)

	stored, err := f.attempts.FindByID(ctx, started.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptStatusCompleted, stored.Status)
	assert.False(t, stored.AutoGraded)
	require.NotNil(t, stored.GradedBy)
	assert.Equal(t, f.ownerID, *stored.GradedBy)
	assert.Equal(t, 5, stored.Score)
}

func TestShowResult(t *testing.T) {
	f := newAttemptFixture(t)
	quiz := f.createQuiz(t, nil)
	userID := model.GenerateUUID()
	ctx := context.Background()

	_, err := f.svc.ShowResult(ctx, quiz.ID, userID)
	assert.Equal(t, util.KindNotFound, util.KindOf(err))

	started, err := f.svc.StartAttempt(ctx, quiz.ID, userID, ClientMeta{})
	require.NoError(t, err)
	_, err = f.svc.SubmitAttempt(ctx, started.AttemptID, userID, answersFor(quiz, model.Scalar("Paris")))
	require.NoError(t, err)

	res, err := f.svc.ShowResult(ctx, quiz.ID, userID)
	require.NoError(t, err)
	require.Len(t, res.Attempts, 1)
	assert.Equal(t, 5, res.Attempts[0].Score)
	assert.Equal(t, StatusActive, res.Quiz.Status)
	assert.Empty(t, res.Questions, "answer key hidden while the quiz is running")

	f.clock.Set(quiz.EndTime.Add(time.Minute))
	res, err = f.svc.ShowResult(ctx, quiz.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, StatusFinished, res.Quiz.Status)
	assert.Len(t, res.Questions, 2)
}

func TestMeasureStaleAttempts(t *testing.T) {
	f := newAttemptFixture(t)
	quiz := f.createQuiz(t, nil)
	ctx := context.Background()

	_, err := f.svc.StartAttempt(ctx, quiz.ID, model.GenerateUUID(), ClientMeta{})
	require.NoError(t, err)

	count, err := f.svc.MeasureStaleAttempts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	f.clock.Set(quiz.EndTime.Add(time.Second))
	count, err = f.svc.MeasureStaleAttempts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestResolveRuntimeStatus(t *testing.T) {
	quiz := &model.Quiz{StartTime: t0, EndTime: t0.Add(time.Hour)}

	assert.Equal(t, StatusUpcoming, ResolveRuntimeStatus(quiz, false, t0.Add(-time.Second)))
	assert.Equal(t, StatusUpcoming, ResolveRuntimeStatus(quiz, true, t0.Add(-time.Second)))
	assert.Equal(t, StatusActive, ResolveRuntimeStatus(quiz, false, t0))
	assert.Equal(t, StatusActive, ResolveRuntimeStatus(quiz, true, t0.Add(time.Hour)))
	assert.Equal(t, StatusEnded, ResolveRuntimeStatus(quiz, false, t0.Add(time.Hour+time.Second)))
	assert.Equal(t, StatusFinished, ResolveRuntimeStatus(quiz, true, t0.Add(time.Hour+time.Second)))
}
