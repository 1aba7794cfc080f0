package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"quizhub_backend/internal/grading"
	"quizhub_backend/internal/model"
	"quizhub_backend/internal/repository"
	"quizhub_backend/internal/util"
	"quizhub_backend/pkg/clock"

	"github.com/go-playground/validator/v10"
)

type QuestionRequest struct {
	Text          string          `json:"questionText" validate:"required"`
	Type          string          `json:"questionType" validate:"required"`
	Marks         *int            `json:"marks" validate:"omitempty,min=0"`
	Options       []string        `json:"options"`
	CorrectAnswer model.Selection `json:"correctAnswer"`
}

type QuizRequest struct {
	Title           string            `json:"quizName" validate:"required,max=255"`
	SubjectID       string            `json:"subjectId" validate:"max=64"`
	Description     string            `json:"description"`
	AttemptType     string            `json:"attemptType" validate:"required,oneof=Single Multiple"`
	MaxAttempts     int               `json:"maxAttempts" validate:"min=0"`
	StartTime       time.Time         `json:"startTime" validate:"required"`
	EndTime         time.Time         `json:"endTime" validate:"required,gtfield=StartTime"`
	DurationMinutes int               `json:"durationMinutes" validate:"required,min=1"`
	AssignedTo      []string          `json:"assignedTo" validate:"omitempty,dive,uuid"`
	Questions       []QuestionRequest `json:"questions" validate:"required,min=1,dive"`
}

// UserDirectory 报表用的用户查询
type UserDirectory interface {
	FindByIDs(ctx context.Context, ids []string) (map[string]model.User, error)
}

type QuizService struct {
	Quizzes  repository.QuizStore
	Attempts repository.AttemptStore
	Users    UserDirectory
	Storage  *StorageService
	Clock    clock.Clock

	validate *validator.Validate
}

func NewQuizService(quizzes repository.QuizStore, attempts repository.AttemptStore, users UserDirectory, storage *StorageService, clk clock.Clock) *QuizService {
	if clk == nil {
		clk = clock.Real{}
	}
	return &QuizService{
		Quizzes:  quizzes,
		Attempts: attempts,
		Users:    users,
		Storage:  storage,
		Clock:    clk,
		validate: validator.New(),
	}
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return util.Validation("%v", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
	}
	return util.Validation("%s", strings.Join(msgs, "; "))
}

// buildQuestions 校验题目并规范化答案键
func buildQuestions(reqs []QuestionRequest) ([]model.Question, error) {
	questions := make([]model.Question, 0, len(reqs))
	for i, r := range reqs {
		q := model.Question{
			Position: i,
			Text:     strings.TrimSpace(r.Text),
			Type:     model.ParseQuestionType(r.Type),
			Marks:    1,
		}
		if r.Marks != nil {
			q.Marks = *r.Marks
		}

		options := make([]string, 0, len(r.Options))
		for _, o := range r.Options {
			o = strings.TrimSpace(o)
			if o == "" {
				return nil, util.Validation("questions[%d].options must not contain empty values", i)
			}
			options = append(options, o)
		}
		if q.Type == model.QuestionTypeTrueFalse && len(options) == 0 {
			options = []string{"true", "false"}
		}
		if len(options) < 2 {
			return nil, util.Validation("questions[%d] needs at least 2 options", i)
		}
		q.Options = options

		key, err := normalizeKey(q.Type, options, r.CorrectAnswer)
		if err != nil {
			return nil, util.Validation("questions[%d].correctAnswer: %s", i, err.Error())
		}
		q.CorrectAnswer = key
		q.ID = model.GenerateUUID()
		questions = append(questions, q)
	}
	return questions, nil
}

func contains(options []string, v string) bool {
	for _, o := range options {
		if o == v {
			return true
		}
	}
	return false
}

func normalizeKey(t model.QuestionType, options []string, key model.Selection) (model.Selection, error) {
	switch t {
	case model.QuestionTypeMultipleChoice:
		v, ok := singleKey(key)
		if !ok {
			return key, errors.New("a single option value is required")
		}
		if !contains(options, v) {
			return key, fmt.Errorf("%q is not one of the options", v)
		}
		return model.Scalar(v), nil

	case model.QuestionTypeTrueFalse:
		v, ok := singleKey(key)
		v = strings.ToLower(v)
		if !ok || (v != "true" && v != "false") {
			return key, errors.New("must be true or false")
		}
		return model.Scalar(v), nil

	case model.QuestionTypeCheckbox:
		if key.Kind() != model.SelectionSet {
			return key, errors.New("a list of option values is required")
		}
		seen := map[string]bool{}
		values := []string{}
		for _, v := range key.Values() {
			v = strings.TrimSpace(v)
			if !contains(options, v) {
				return key, fmt.Errorf("%q is not one of the options", v)
			}
			if !seen[v] {
				seen[v] = true
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			return key, errors.New("at least one option must be correct")
		}
		return model.Set(values...), nil
	}
	return key, fmt.Errorf("unsupported question type %q", t)
}

func singleKey(key model.Selection) (string, bool) {
	switch key.Kind() {
	case model.SelectionScalar:
		return strings.TrimSpace(key.Text()), true
	case model.SelectionSet:
		if vs := key.Values(); len(vs) == 1 {
			return strings.TrimSpace(vs[0]), true
		}
	}
	return "", false
}

func (s *QuizService) buildQuiz(req *QuizRequest) (*model.Quiz, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	questions, err := buildQuestions(req.Questions)
	if err != nil {
		return nil, err
	}
	return &model.Quiz{
		Title:           strings.TrimSpace(req.Title),
		SubjectID:       req.SubjectID,
		Description:     req.Description,
		AttemptType:     model.AttemptType(req.AttemptType),
		MaxAttempts:     req.MaxAttempts,
		StartTime:       req.StartTime.UTC(),
		EndTime:         req.EndTime.UTC(),
		DurationMinutes: req.DurationMinutes,
		AssignedTo:      req.AssignedTo,
		Questions:       questions,
	}, nil
}

func canAuthor(actor Actor) bool {
	return actor.Role == model.Faculty || actor.Role == model.Superadmin
}

func (s *QuizService) CreateQuiz(ctx context.Context, actor Actor, req *QuizRequest) (*model.Quiz, error) {
	if !canAuthor(actor) {
		return nil, util.ErrPermissionDenied
	}
	quiz, err := s.buildQuiz(req)
	if err != nil {
		return nil, err
	}
	quiz.ID = model.GenerateUUID()
	quiz.OwnerID = actor.ID
	for i := range quiz.Questions {
		quiz.Questions[i].QuizID = quiz.ID
	}
	if err := s.Quizzes.Create(ctx, quiz); err != nil {
		return nil, util.StorageFailure("create quiz", err)
	}
	return quiz, nil
}

func (s *QuizService) loadQuiz(ctx context.Context, id string) (*model.Quiz, error) {
	if !model.IsValidID(id) {
		return nil, util.ErrInvalidReference
	}
	quiz, err := s.Quizzes.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, util.ErrQuizNotFound
	}
	if err != nil {
		return nil, util.StorageFailure("load quiz", err)
	}
	return quiz, nil
}

func (s *QuizService) loadManaged(ctx context.Context, actor Actor, id string) (*model.Quiz, error) {
	quiz, err := s.loadQuiz(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, quiz) {
		return nil, util.ErrPermissionDenied
	}
	return quiz, nil
}

func sameQuestions(a, b []model.Question) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.Text != y.Text || x.Type != y.Type || x.Marks != y.Marks || !x.CorrectAnswer.Equal(y.CorrectAnswer) {
			return false
		}
		if len(x.Options) != len(y.Options) {
			return false
		}
		for j := range x.Options {
			if x.Options[j] != y.Options[j] {
				return false
			}
		}
	}
	return true
}

// UpdateQuiz replaces the quiz definition. Once the window has started the
// questions are frozen; other fields may still change.
func (s *QuizService) UpdateQuiz(ctx context.Context, actor Actor, id string, req *QuizRequest) (*model.Quiz, error) {
	current, err := s.loadManaged(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	next, err := s.buildQuiz(req)
	if err != nil {
		return nil, err
	}

	replace := !sameQuestions(current.Questions, next.Questions)
	if replace && current.HasStarted(s.Clock.Now()) {
		return nil, util.ErrQuizLive
	}

	next.ID = current.ID
	next.OwnerID = current.OwnerID
	next.CreatedAt = current.CreatedAt
	next.AttemptCount = current.AttemptCount
	next.CompletedCount = current.CompletedCount
	if !replace {
		next.Questions = current.Questions
	}
	for i := range next.Questions {
		next.Questions[i].QuizID = next.ID
	}

	if err := s.Quizzes.Update(ctx, next, replace); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, util.StorageFailure("update quiz", err)
	}
	return next, nil
}

func (s *QuizService) DeleteQuiz(ctx context.Context, actor Actor, id string) error {
	quiz, err := s.loadManaged(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.Attempts.DeleteByQuiz(ctx, quiz.ID); err != nil {
		return util.StorageFailure("delete attempts", err)
	}
	if err := s.Quizzes.Delete(ctx, quiz.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return util.ErrQuizNotFound
		}
		return util.StorageFailure("delete quiz", err)
	}
	return nil
}

// GetQuiz 管理者看到完整测验；学生只能看到分配给自己的测验且不含答案
func (s *QuizService) GetQuiz(ctx context.Context, actor Actor, id string) (*model.Quiz, error) {
	quiz, err := s.loadQuiz(ctx, id)
	if err != nil {
		return nil, err
	}
	if canManage(actor, quiz) {
		return quiz, nil
	}
	if actor.Role != model.Student {
		return nil, util.ErrPermissionDenied
	}
	if !quiz.IsAssigned(actor.ID) {
		return nil, util.ErrNotAssigned
	}
	for i := range quiz.Questions {
		quiz.Questions[i].CorrectAnswer = model.NoSelection()
	}
	return quiz, nil
}

func (s *QuizService) ListFacultyQuizzes(ctx context.Context, actor Actor) ([]model.Quiz, error) {
	if !canAuthor(actor) {
		return nil, util.ErrPermissionDenied
	}
	quizzes, err := s.Quizzes.ListByOwner(ctx, actor.ID)
	if err != nil {
		return nil, util.StorageFailure("list quizzes", err)
	}
	return quizzes, nil
}

// ListAllQuizzes 超级管理员查看全部测验
func (s *QuizService) ListAllQuizzes(ctx context.Context, actor Actor) ([]model.Quiz, error) {
	if !actor.IsSuperadmin() {
		return nil, util.ErrPermissionDenied
	}
	quizzes, err := s.Quizzes.ListAll(ctx)
	if err != nil {
		return nil, util.StorageFailure("list quizzes", err)
	}
	return quizzes, nil
}

// ListQuizzesForUser lists the quizzes visible to a student with their runtime
// status and the student's own attempt summary.
func (s *QuizService) ListQuizzesForUser(ctx context.Context, userID string) ([]model.QuizSummary, error) {
	if userID == "" {
		return nil, util.ErrUnauthenticated
	}
	quizzes, err := s.Quizzes.ListAll(ctx)
	if err != nil {
		return nil, util.StorageFailure("list quizzes", err)
	}
	summaries, err := s.Attempts.SummariesForUser(ctx, userID)
	if err != nil {
		return nil, util.StorageFailure("summarize attempts", err)
	}

	now := s.Clock.Now()
	out := make([]model.QuizSummary, 0, len(quizzes))
	for i := range quizzes {
		q := &quizzes[i]
		if !q.IsAssigned(userID) {
			continue
		}
		sum := summaries[q.ID]
		out = append(out, model.QuizSummary{
			ID:              q.ID,
			Title:           q.Title,
			SubjectID:       q.SubjectID,
			AttemptType:     q.AttemptType,
			MaxAttempts:     q.EffectiveAttemptLimit(),
			StartTime:       q.StartTime,
			EndTime:         q.EndTime,
			DurationMinutes: q.DurationMinutes,
			QuestionCount:   len(q.Questions),
			TotalMarks:      q.TotalMarks(),
			Status:          string(ResolveRuntimeStatus(q, sum.Total > 0, now)),
			Attempted:       sum.Total > 0,
			Completed:       sum.Completed,
			BestScore:       sum.BestScore,
		})
	}
	return out, nil
}

// PreviewGrade grades a set of answers against the quiz key without
// recording an attempt. Used by authors to check their answer key.
func (s *QuizService) PreviewGrade(ctx context.Context, actor Actor, quizID string, answers []grading.Answer) (*grading.Result, error) {
	quiz, err := s.loadManaged(ctx, actor, quizID)
	if err != nil {
		return nil, err
	}
	if err := validateAnswers(answers); err != nil {
		return nil, err
	}
	res := grading.Grade(quiz, answers)
	return &res, nil
}
