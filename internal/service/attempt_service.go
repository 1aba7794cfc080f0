package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"quizhub_backend/internal/grading"
	"quizhub_backend/internal/model"
	"quizhub_backend/internal/repository"
	"quizhub_backend/internal/util"
	"quizhub_backend/pkg/clock"
	"quizhub_backend/pkg/events"
	"quizhub_backend/pkg/logger"
	"quizhub_backend/pkg/monitoring"
	"quizhub_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// 并发开启多次尝试时抢占槽位的重试上限
const maxSlotRetries = 5

const asyncTimeout = 5 * time.Second

type AttemptService struct {
	Quizzes  repository.QuizStore
	Attempts repository.AttemptStore
	Clock    clock.Clock
	Events   events.Publisher

	wg sync.WaitGroup
}

func NewAttemptService(quizzes repository.QuizStore, attempts repository.AttemptStore, clk clock.Clock, publisher events.Publisher) *AttemptService {
	if clk == nil {
		clk = clock.Real{}
	}
	if publisher == nil {
		publisher = events.LogPublisher{}
	}
	return &AttemptService{
		Quizzes:  quizzes,
		Attempts: attempts,
		Clock:    clk,
		Events:   publisher,
	}
}

// ClientMeta 记录发起尝试的客户端信息
type ClientMeta struct {
	UserAgent string
	IP        string
}

type StartAttemptResult struct {
	AttemptID string              `json:"attemptId"`
	AttemptNo int                 `json:"attemptNo"`
	StartedAt time.Time           `json:"startedAt"`
	Status    model.AttemptStatus `json:"status"`
	Resumed   bool                `json:"resumed"`
}

type SubmitAttemptResult struct {
	AttemptID   string               `json:"attemptId"`
	Score       int                  `json:"score"`
	TotalMarks  int                  `json:"totalMarks"`
	TimeSpentMs int64                `json:"timeSpentMs"`
	GradedAt    time.Time            `json:"gradedAt"`
	Answers     []model.AnswerRecord `json:"answers"`
}

// Wait blocks until every best-effort side effect dispatched so far has finished.
func (s *AttemptService) Wait() {
	s.wg.Wait()
}

// async 派发尽力而为的副作用，失败只记录日志
func (s *AttemptService) async(name string, fn func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), asyncTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			logger.Log.Warn("best-effort side effect failed", zap.String("task", name), zap.Error(err))
		}
	}()
}

func (s *AttemptService) bumpAttemptCount(quizID string) {
	s.async("increment attemptCount", func(ctx context.Context) error {
		err := s.Quizzes.IncrementAttemptCount(ctx, quizID)
		if err != nil {
			monitoring.CounterIncrementFailures.WithLabelValues("attemptCount").Inc()
		}
		return err
	})
}

func (s *AttemptService) bumpCompletedCount(quizID string) {
	s.async("increment completedCount", func(ctx context.Context) error {
		err := s.Quizzes.IncrementCompletedCount(ctx, quizID)
		if err != nil {
			monitoring.CounterIncrementFailures.WithLabelValues("completedCount").Inc()
		}
		return err
	})
}

func (s *AttemptService) publish(eventType string, payload interface{}) {
	s.async("publish "+eventType, func(context.Context) error {
		return s.Events.Publish(eventType, payload)
	})
}

func rejected(operation string, err error) {
	if kind := util.KindOf(err); kind != "" {
		monitoring.AttemptsRejected.WithLabelValues(operation, string(kind)).Inc()
	}
}

func (s *AttemptService) loadQuiz(ctx context.Context, quizID string) (*model.Quiz, error) {
	if !model.IsValidID(quizID) {
		return nil, util.ErrInvalidReference
	}
	quiz, err := s.Quizzes.FindByID(ctx, quizID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, util.ErrQuizNotFound
	}
	if err != nil {
		return nil, util.StorageFailure("load quiz", err)
	}
	return quiz, nil
}

// CheckAdmission applies the window and assignment preconditions in order.
func CheckAdmission(quiz *model.Quiz, userID string, now time.Time) error {
	if !quiz.InWindow(now) {
		return util.ErrQuizNotRunning
	}
	if !quiz.IsAssigned(userID) {
		return util.ErrNotAssigned
	}
	return nil
}

// StartAttempt admits the user to a new attempt or resumes the one they hold.
//
// Single: one atomic insert-if-absent on slot 1. A racing loser resumes the
// winner's attempt, or gets AttemptAlreadyCompleted once it is submitted.
// Multiple: each start claims the next free slot; slots are bounded by the
// cap, so the unique slot index enforces the cap under concurrency too. At
// the cap an unfinished attempt is resumed instead of rejected.
func (s *AttemptService) StartAttempt(ctx context.Context, quizID, userID string, meta ClientMeta) (res *StartAttemptResult, err error) {
	ctx, span := tracing.Tracer.Start(ctx, "AttemptService.StartAttempt")
	span.SetAttributes(attribute.String("quiz.id", quizID), attribute.String("user.id", userID))
	defer func() {
		if err != nil {
			rejected("start", err)
		}
		tracing.EndSpan(span, err)
	}()

	if userID == "" {
		return nil, util.ErrUnauthenticated
	}
	quiz, err := s.loadQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}

	now := s.Clock.Now()
	if err := CheckAdmission(quiz, userID, now); err != nil {
		return nil, err
	}

	var (
		attempt *model.Attempt
		created bool
	)
	if quiz.AttemptType == model.AttemptTypeMultiple {
		attempt, created, err = s.claimNextSlot(ctx, quiz, userID, now, meta)
	} else {
		attempt, created, err = s.claimSingleSlot(ctx, quiz, userID, now, meta)
	}
	if err != nil {
		return nil, err
	}

	if created {
		monitoring.AttemptsStarted.WithLabelValues("created").Inc()
		s.bumpAttemptCount(quiz.ID)
		s.publish(events.AttemptStarted, map[string]interface{}{
			"attemptId": attempt.ID,
			"quizId":    quiz.ID,
			"userId":    userID,
			"attemptNo": attempt.AttemptNo,
			"startedAt": attempt.StartedAt,
		})
	} else {
		monitoring.AttemptsStarted.WithLabelValues("resumed").Inc()
	}

	return &StartAttemptResult{
		AttemptID: attempt.ID,
		AttemptNo: attempt.AttemptNo,
		StartedAt: attempt.StartedAt,
		Status:    attempt.Status,
		Resumed:   !created,
	}, nil
}

func newAttempt(quiz *model.Quiz, userID string, slot int, now time.Time, meta ClientMeta) *model.Attempt {
	return &model.Attempt{
		QuizID:    quiz.ID,
		UserID:    userID,
		AttemptNo: slot,
		Status:    model.AttemptStatusInProgress,
		StartedAt: now,
		Answers:   []model.AnswerRecord{},
		UserAgent: meta.UserAgent,
		IP:        meta.IP,
	}
}

func (s *AttemptService) claimSingleSlot(ctx context.Context, quiz *model.Quiz, userID string, now time.Time, meta ClientMeta) (*model.Attempt, bool, error) {
	stored, created, err := s.Attempts.InsertIfAbsent(ctx, newAttempt(quiz, userID, 1, now, meta))
	if err != nil {
		return nil, false, util.StorageFailure("create attempt", err)
	}
	if !created && stored.IsCompleted() {
		return nil, false, util.ErrAttemptAlreadyCompleted
	}
	return stored, created, nil
}

func (s *AttemptService) claimNextSlot(ctx context.Context, quiz *model.Quiz, userID string, now time.Time, meta ClientMeta) (*model.Attempt, bool, error) {
	limit := quiz.EffectiveAttemptLimit()
	for try := 0; try < maxSlotRetries; try++ {
		used, err := s.Attempts.MaxAttemptNo(ctx, quiz.ID, userID)
		if err != nil {
			return nil, false, util.StorageFailure("count attempts", err)
		}
		if limit > 0 && used >= limit {
			return s.resumeAtCap(ctx, quiz.ID, userID)
		}

		stored, created, err := s.Attempts.InsertIfAbsent(ctx, newAttempt(quiz, userID, used+1, now, meta))
		if err != nil {
			return nil, false, util.StorageFailure("create attempt", err)
		}
		if created {
			return stored, true, nil
		}
		// 槽位被并发请求占用，重新读取
	}
	return nil, false, util.NewError(util.KindConflict, "too many concurrent attempt starts, retry")
}

// resumeAtCap 次数用尽时继续最早的未完成尝试，全部完成才拒绝
func (s *AttemptService) resumeAtCap(ctx context.Context, quizID, userID string) (*model.Attempt, bool, error) {
	open, err := s.Attempts.FindInProgress(ctx, quizID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, false, util.ErrAttemptLimitReached
	}
	if err != nil {
		return nil, false, util.StorageFailure("find in-progress attempt", err)
	}
	return open, false, nil
}

func validateAnswers(answers []grading.Answer) error {
	if answers == nil {
		return util.Validation("answers must be a list")
	}
	seen := make(map[string]struct{}, len(answers))
	for i, a := range answers {
		if a.QuestionID == "" {
			return util.Validation("answers[%d].questionId is required", i)
		}
		if _, dup := seen[a.QuestionID]; dup {
			return util.Validation("answers[%d].questionId %q is duplicated", i, a.QuestionID)
		}
		seen[a.QuestionID] = struct{}{}
		if a.TimeSpentMs < 0 {
			return util.Validation("answers[%d].timeSpentMs must not be negative", i)
		}
	}
	return nil
}

// SubmitAttempt grades the answers and moves the attempt to completed with a
// conditional update; of two concurrent submissions exactly one succeeds.
func (s *AttemptService) SubmitAttempt(ctx context.Context, attemptID, userID string, answers []grading.Answer) (res *SubmitAttemptResult, err error) {
	ctx, span := tracing.Tracer.Start(ctx, "AttemptService.SubmitAttempt")
	span.SetAttributes(attribute.String("attempt.id", attemptID), attribute.String("user.id", userID))
	defer func() {
		if err != nil {
			rejected("submit", err)
		}
		tracing.EndSpan(span, err)
	}()

	if userID == "" {
		return nil, util.ErrUnauthenticated
	}
	if !model.IsValidID(attemptID) {
		return nil, util.ErrInvalidReference
	}
	if err := validateAnswers(answers); err != nil {
		return nil, err
	}

	attempt, err := s.Attempts.FindByID(ctx, attemptID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, util.ErrAttemptNotFound
	}
	if err != nil {
		return nil, util.StorageFailure("load attempt", err)
	}
	if attempt.UserID != userID {
		return nil, util.ErrPermissionDenied
	}
	// 已完成优先于窗口检查，窗口关闭后重复提交仍返回 AlreadySubmitted
	if attempt.IsCompleted() {
		return nil, util.ErrAlreadySubmitted
	}

	quiz, err := s.loadQuiz(ctx, attempt.QuizID)
	if err != nil {
		return nil, err
	}
	now := s.Clock.Now()
	if !quiz.InWindow(now) {
		return nil, util.ErrQuizNotRunning
	}

	result := grading.Grade(quiz, answers)

	attempt.Score = result.TotalScore
	attempt.TimeSpentMs = result.TimeSpentMs
	attempt.Answers = result.Answers
	attempt.FinishedAt = &now
	attempt.GradedAt = &now
	attempt.AutoGraded = true
	attempt.GradedBy = nil

	ok, err := s.Attempts.CompleteIfInProgress(ctx, attempt)
	if err != nil {
		return nil, util.StorageFailure("complete attempt", err)
	}
	if !ok {
		return nil, util.ErrAlreadySubmitted
	}
	attempt.Status = model.AttemptStatusCompleted

	totalMarks := quiz.TotalMarks()
	monitoring.AttemptsCompleted.Inc()
	if totalMarks > 0 {
		monitoring.AttemptScore.Observe(float64(result.TotalScore) / float64(totalMarks))
	}
	s.bumpCompletedCount(quiz.ID)
	s.publish(events.AttemptCompleted, map[string]interface{}{
		"attemptId":   attempt.ID,
		"quizId":      quiz.ID,
		"userId":      userID,
		"score":       result.TotalScore,
		"totalMarks":  totalMarks,
		"timeSpentMs": result.TimeSpentMs,
		"gradedAt":    now,
	})

	return &SubmitAttemptResult{
		AttemptID:   attempt.ID,
		Score:       result.TotalScore,
		TotalMarks:  totalMarks,
		TimeSpentMs: result.TimeSpentMs,
		GradedAt:    now,
		Answers:     result.Answers,
	}, nil
}

// GradeAttempt scores answers without touching any store.
func (s *AttemptService) GradeAttempt(quiz *model.Quiz, answers []grading.Answer) grading.Result {
	return grading.Grade(quiz, answers)
}

// RuntimeStatus 使用服务时钟计算测验状态
func (s *AttemptService) RuntimeStatus(quiz *model.Quiz, userHasAttempted bool) RuntimeStatus {
	return ResolveRuntimeStatus(quiz, userHasAttempted, s.Clock.Now())
}

// Actor is the authenticated caller.
type Actor struct {
	ID   string
	Role model.UserRole
}

func (a Actor) IsSuperadmin() bool {
	return a.Role == model.Superadmin
}

// canManage 测验所有者或超级管理员
func canManage(actor Actor, quiz *model.Quiz) bool {
	return actor.IsSuperadmin() || (actor.Role == model.Faculty && quiz.OwnerID == actor.ID)
}

type AttemptResult struct {
	Quiz     QuizResultHeader `json:"quiz"`
	Attempts []model.Attempt  `json:"attempts"`
	// Questions 含正确答案，仅在测验结束后返回
	Questions []model.Question `json:"questions,omitempty"`
}

type QuizResultHeader struct {
	ID         string        `json:"id"`
	Title      string        `json:"quizName"`
	TotalMarks int           `json:"totalMarks"`
	Status     RuntimeStatus `json:"status"`
}

// ShowResult returns the caller's completed attempts for a quiz.
func (s *AttemptService) ShowResult(ctx context.Context, quizID, userID string) (*AttemptResult, error) {
	if userID == "" {
		return nil, util.ErrUnauthenticated
	}
	quiz, err := s.loadQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}

	all, err := s.Attempts.ListByQuizAndUser(ctx, quiz.ID, userID)
	if err != nil {
		return nil, util.StorageFailure("list attempts", err)
	}
	completed := make([]model.Attempt, 0, len(all))
	for _, a := range all {
		if a.IsCompleted() {
			completed = append(completed, a)
		}
	}
	if len(completed) == 0 {
		return nil, util.NewError(util.KindNotFound, "no result found for this quiz")
	}

	now := s.Clock.Now()
	res := &AttemptResult{
		Quiz: QuizResultHeader{
			ID:         quiz.ID,
			Title:      quiz.Title,
			TotalMarks: quiz.TotalMarks(),
			Status:     ResolveRuntimeStatus(quiz, true, now),
		},
		Attempts: completed,
	}
	if now.After(quiz.EndTime) {
		res.Questions = quiz.Questions
	}
	return res, nil
}

// RegradeAttempt re-runs grading on a completed attempt against the current
// answer key. The attempt stays completed; provenance switches to the grader.
func (s *AttemptService) RegradeAttempt(ctx context.Context, attemptID string, grader Actor) (res *SubmitAttemptResult, err error) {
	ctx, span := tracing.Tracer.Start(ctx, "AttemptService.RegradeAttempt")
	span.SetAttributes(attribute.String("attempt.id", attemptID))
	defer func() { tracing.EndSpan(span, err) }()

	if !model.IsValidID(attemptID) {
		return nil, util.ErrInvalidReference
	}
	attempt, err := s.Attempts.FindByID(ctx, attemptID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, util.ErrAttemptNotFound
	}
	if err != nil {
		return nil, util.StorageFailure("load attempt", err)
	}
	quiz, err := s.loadQuiz(ctx, attempt.QuizID)
	if err != nil {
		return nil, err
	}
	if !canManage(grader, quiz) {
		return nil, util.ErrPermissionDenied
	}
	if !attempt.IsCompleted() {
		return nil, util.ErrAttemptNotCompleted
	}

	answers := make([]grading.Answer, 0, len(attempt.Answers))
	for _, a := range attempt.Answers {
		answers = append(answers, grading.Answer{QuestionID: a.QuestionID, Selected: a.Selected, TimeSpentMs: a.TimeSpentMs})
	}
	result := grading.Grade(quiz, answers)

	now := s.Clock.Now()
	graderID := grader.ID
	attempt.Score = result.TotalScore
	attempt.Answers = result.Answers
	attempt.GradedAt = &now
	attempt.AutoGraded = false
	attempt.GradedBy = &graderID

	ok, err := s.Attempts.UpdateGrade(ctx, attempt)
	if err != nil {
		return nil, util.StorageFailure("regrade attempt", err)
	}
	if !ok {
		return nil, util.ErrAttemptNotCompleted
	}

	s.publish(events.AttemptRegraded, map[string]interface{}{
		"attemptId": attempt.ID,
		"quizId":    quiz.ID,
		"gradedBy":  graderID,
		"score":     result.TotalScore,
	})

	return &SubmitAttemptResult{
		AttemptID:   attempt.ID,
		Score:       result.TotalScore,
		TotalMarks:  quiz.TotalMarks(),
		TimeSpentMs: attempt.TimeSpentMs,
		GradedAt:    now,
		Answers:     result.Answers,
	}, nil
}

// MeasureStaleAttempts counts in-progress attempts of quizzes whose window has
// closed. Such attempts never expire; the count only feeds a gauge.
func (s *AttemptService) MeasureStaleAttempts(ctx context.Context) (int64, error) {
	ids, err := s.Quizzes.ListEndedIDs(ctx, s.Clock.Now())
	if err != nil {
		return 0, err
	}
	count, err := s.Attempts.CountInProgress(ctx, ids)
	if err != nil {
		return 0, err
	}
	monitoring.StaleInProgressAttempts.Set(float64(count))
	return count, nil
}
