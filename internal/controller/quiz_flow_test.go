package controller

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"quizhub_backend/internal/config"
	"quizhub_backend/internal/middleware"
	"quizhub_backend/internal/model"
	"quizhub_backend/internal/repository"
	"quizhub_backend/internal/service"
	"quizhub_backend/internal/util"
	"quizhub_backend/pkg/clock"
	"quizhub_backend/pkg/database"
	"quizhub_backend/pkg/events"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const flowSecret = "controller-flow-secret-0123456789"

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Reason  string          `json:"reason"`
	Data    json.RawMessage `json:"data"`
}

type flowServer struct {
	router  *gin.Engine
	clock   *clock.Fixed
	attempt *service.AttemptService
}

func newFlowServer(t *testing.T) *flowServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "flow.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	clk := clock.NewFixed(time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC))
	quizzes := repository.NewGormQuizStore(db)
	attempts := repository.NewGormAttemptStore(db)
	users := repository.NewUserRepository(db)
	cfg := &config.Config{
		JWT:     config.JWTConfig{Secret: flowSecret},
		Storage: config.StorageConfig{Type: "local", LocalPath: t.TempDir()},
	}

	attemptSvc := service.NewAttemptService(quizzes, attempts, clk, &events.Recorder{})
	t.Cleanup(attemptSvc.Wait)
	quizSvc := service.NewQuizService(quizzes, attempts, users, service.NewStorageService(cfg), clk)

	quizCtl := NewQuizController(quizSvc)
	attemptCtl := NewAttemptController(attemptSvc)

	r := gin.New()
	api := r.Group("/api", middleware.AuthMiddleware(cfg, nil))
	api.GET("/quizzes", middleware.RoleMiddleware(model.Superadmin), quizCtl.ListAllQuizzes)
	api.POST("/quizzes", middleware.RoleMiddleware(model.Faculty), quizCtl.CreateQuiz)
	api.GET("/quizzes/:id", quizCtl.GetQuiz)
	api.GET("/quizzes/user", quizCtl.ListUserQuizzes)
	api.POST("/quizzes/:id/grade", middleware.RoleMiddleware(model.Faculty), quizCtl.PreviewGrade)
	api.POST("/attempts/start/:quizId", attemptCtl.StartAttempt)
	api.POST("/attempts/finish/:attemptId", attemptCtl.FinishAttempt)
	api.GET("/attempts/show-result/:quizId", attemptCtl.ShowResult)

	return &flowServer{router: r, clock: clk, attempt: attemptSvc}
}

func issueToken(t *testing.T, role model.UserRole) (string, string) {
	t.Helper()
	user := &model.User{Email: string(role) + "@example.com", Role: role}
	user.ID = model.GenerateUUID()
	token, err := util.GenerateJWT(user, flowSecret, time.Hour)
	require.NoError(t, err)
	return user.ID, token
}

func (s *flowServer) call(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func quizPayload() gin.H {
	return gin.H{
		"quizName":        "Geography",
		"attemptType":     "Single",
		"startTime":       "2026-05-04T09:00:00Z",
		"endTime":         "2026-05-04T11:00:00Z",
		"durationMinutes": 30,
		"questions": []gin.H{
			{"questionText": "Capital of France?", "questionType": "Multiple Choice", "marks": 5,
				"options": []string{"Paris", "Lyon"}, "correctAnswer": "Paris"},
			{"questionText": "Earth is round", "questionType": "True/False", "correctAnswer": true},
		},
	}
}

func TestQuizAttemptFlow(t *testing.T) {
	s := newFlowServer(t)
	_, facultyToken := issueToken(t, model.Faculty)
	_, studentToken := issueToken(t, model.Student)

	code, _ := s.call(t, http.MethodPost, "/api/quizzes", studentToken, quizPayload())
	assert.Equal(t, http.StatusForbidden, code)

	code, env := s.call(t, http.MethodPost, "/api/quizzes", facultyToken, quizPayload())
	require.Equal(t, http.StatusCreated, code, env.Message)
	var quiz model.Quiz
	require.NoError(t, json.Unmarshal(env.Data, &quiz))
	require.Len(t, quiz.Questions, 2)

	// 学生视图不含答案
	code, env = s.call(t, http.MethodGet, "/api/quizzes/"+quiz.ID, studentToken, nil)
	require.Equal(t, http.StatusOK, code)
	var studentView model.Quiz
	require.NoError(t, json.Unmarshal(env.Data, &studentView))
	assert.Equal(t, model.SelectionNone, studentView.Questions[0].CorrectAnswer.Kind())

	code, env = s.call(t, http.MethodPost, "/api/attempts/start/"+quiz.ID, studentToken, nil)
	require.Equal(t, http.StatusCreated, code, env.Message)
	var started service.StartAttemptResult
	require.NoError(t, json.Unmarshal(env.Data, &started))
	assert.False(t, started.Resumed)

	code, env = s.call(t, http.MethodPost, "/api/attempts/start/"+quiz.ID, studentToken, nil)
	require.Equal(t, http.StatusOK, code)
	var resumed service.StartAttemptResult
	require.NoError(t, json.Unmarshal(env.Data, &resumed))
	assert.True(t, resumed.Resumed)
	assert.Equal(t, started.AttemptID, resumed.AttemptID)

	answers := gin.H{"answers": []gin.H{
		{"questionId": quiz.Questions[0].ID, "selected": "Paris", "timeSpentMs": 1200},
		{"questionId": quiz.Questions[1].ID, "selected": "TRUE", "timeSpentMs": 800},
	}}
	code, env = s.call(t, http.MethodPost, "/api/attempts/finish/"+started.AttemptID, studentToken, answers)
	require.Equal(t, http.StatusOK, code, env.Message)
	var submitted service.SubmitAttemptResult
	require.NoError(t, json.Unmarshal(env.Data, &submitted))
	assert.Equal(t, 6, submitted.Score)
	assert.Equal(t, int64(2000), submitted.TimeSpentMs)

	code, env = s.call(t, http.MethodPost, "/api/attempts/finish/"+started.AttemptID, studentToken, answers)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, string(util.KindAlreadySubmitted), env.Reason)

	code, env = s.call(t, http.MethodPost, "/api/attempts/start/"+quiz.ID, studentToken, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, string(util.KindAttemptAlreadyCompleted), env.Reason)

	code, env = s.call(t, http.MethodGet, "/api/attempts/show-result/"+quiz.ID, studentToken, nil)
	require.Equal(t, http.StatusOK, code)
	var result service.AttemptResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	require.Len(t, result.Attempts, 1)
	assert.Equal(t, 6, result.Attempts[0].Score)
	assert.Empty(t, result.Questions, "answer key stays hidden until the window ends")

	code, env = s.call(t, http.MethodGet, "/api/quizzes/user", studentToken, nil)
	require.Equal(t, http.StatusOK, code)
	var list []model.QuizSummary
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Active", list[0].Status)
	assert.True(t, list[0].Attempted)
}

func TestStartAttemptErrors(t *testing.T) {
	s := newFlowServer(t)
	_, facultyToken := issueToken(t, model.Faculty)
	_, studentToken := issueToken(t, model.Student)

	code, env := s.call(t, http.MethodPost, "/api/attempts/start/not-a-uuid", studentToken, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, string(util.KindInvalidReference), env.Reason)

	code, env = s.call(t, http.MethodPost, "/api/attempts/start/"+model.GenerateUUID(), studentToken, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, string(util.KindNotFound), env.Reason)

	payload := quizPayload()
	payload["startTime"] = "2026-05-05T09:00:00Z"
	payload["endTime"] = "2026-05-05T11:00:00Z"
	code, env = s.call(t, http.MethodPost, "/api/quizzes", facultyToken, payload)
	require.Equal(t, http.StatusCreated, code, env.Message)
	var quiz model.Quiz
	require.NoError(t, json.Unmarshal(env.Data, &quiz))

	code, env = s.call(t, http.MethodPost, "/api/attempts/start/"+quiz.ID, studentToken, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, string(util.KindQuizNotRunning), env.Reason)

	payload = quizPayload()
	payload["endTime"] = "2026-05-04T08:00:00Z"
	code, env = s.call(t, http.MethodPost, "/api/quizzes", facultyToken, payload)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, string(util.KindValidationFailure), env.Reason)
}

func TestPreviewGradeEndpoint(t *testing.T) {
	s := newFlowServer(t)
	_, facultyToken := issueToken(t, model.Faculty)

	code, env := s.call(t, http.MethodPost, "/api/quizzes", facultyToken, quizPayload())
	require.Equal(t, http.StatusCreated, code)
	var quiz model.Quiz
	require.NoError(t, json.Unmarshal(env.Data, &quiz))

	code, env = s.call(t, http.MethodPost, "/api/quizzes/"+quiz.ID+"/grade", facultyToken, gin.H{"answers": []gin.H{
		{"questionId": quiz.Questions[0].ID, "selected": "paris"},
	}})
	require.Equal(t, http.StatusOK, code, env.Message)
	var res struct {
		TotalScore int `json:"totalScore"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, 0, res.TotalScore, "multiple choice comparison is case-sensitive")
}

func TestListAllQuizzesEndpoint(t *testing.T) {
	s := newFlowServer(t)
	_, facultyToken := issueToken(t, model.Faculty)
	_, otherToken := issueToken(t, model.Faculty)
	_, adminToken := issueToken(t, model.Superadmin)

	code, env := s.call(t, http.MethodPost, "/api/quizzes", facultyToken, quizPayload())
	require.Equal(t, http.StatusCreated, code, env.Message)
	code, env = s.call(t, http.MethodPost, "/api/quizzes", otherToken, quizPayload())
	require.Equal(t, http.StatusCreated, code, env.Message)

	code, _ = s.call(t, http.MethodGet, "/api/quizzes", facultyToken, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env = s.call(t, http.MethodGet, "/api/quizzes", adminToken, nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	var all []model.Quiz
	require.NoError(t, json.Unmarshal(env.Data, &all))
	assert.Len(t, all, 2)
}

func TestSubmitPayloadValidation(t *testing.T) {
	s := newFlowServer(t)
	_, facultyToken := issueToken(t, model.Faculty)
	_, studentToken := issueToken(t, model.Student)

	code, env := s.call(t, http.MethodPost, "/api/quizzes", facultyToken, quizPayload())
	require.Equal(t, http.StatusCreated, code)
	var quiz model.Quiz
	require.NoError(t, json.Unmarshal(env.Data, &quiz))

	code, env = s.call(t, http.MethodPost, "/api/attempts/start/"+quiz.ID, studentToken, nil)
	require.Equal(t, http.StatusCreated, code)
	var started service.StartAttemptResult
	require.NoError(t, json.Unmarshal(env.Data, &started))
	finishPath := "/api/attempts/finish/" + started.AttemptID

	cases := []struct {
		name    string
		path    string
		token   string
		body    interface{}
		message string
	}{
		{"answers not a list", finishPath, studentToken, gin.H{"answers": "nope"}, "answers must be a list"},
		{"answers missing", finishPath, studentToken, gin.H{}, "answers must be a list"},
		{"duplicate question", finishPath, studentToken, gin.H{"answers": []gin.H{
			{"questionId": quiz.Questions[0].ID, "selected": "Paris"},
			{"questionId": quiz.Questions[0].ID, "selected": "Lyon"},
		}}, "duplicated"},
		{"preview answers not a list", "/api/quizzes/" + quiz.ID + "/grade", facultyToken, gin.H{"answers": 42}, "answers must be a list"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, env := s.call(t, http.MethodPost, tc.path, tc.token, tc.body)
			assert.Equal(t, http.StatusUnprocessableEntity, code)
			assert.Equal(t, string(util.KindValidationFailure), env.Reason)
			assert.Contains(t, env.Message, tc.message)
		})
	}

	// 被拒绝的提交不改变尝试状态
	code, env = s.call(t, http.MethodPost, "/api/attempts/start/"+quiz.ID, studentToken, nil)
	require.Equal(t, http.StatusOK, code)
	var resumed service.StartAttemptResult
	require.NoError(t, json.Unmarshal(env.Data, &resumed))
	assert.True(t, resumed.Resumed)
	assert.Equal(t, started.AttemptID, resumed.AttemptID)
}
