package controller

import (
	"context"
	"net/http"
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

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdminServer(t *testing.T) (*flowServer, *repository.UserRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "admin.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	users := repository.NewUserRepository(db)
	clk := clock.NewFixed(time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC))
	adminCtl := NewAdminController(service.NewAdminService(users, service.LogMailer{}, clk))
	cfg := &config.Config{JWT: config.JWTConfig{Secret: flowSecret}}

	r := gin.New()
	admin := r.Group("/api/admin", middleware.AuthMiddleware(cfg, nil), middleware.RoleMiddleware(model.Superadmin))
	admin.POST("/users", adminCtl.CreateUser)
	admin.GET("/faculty/pending", adminCtl.ListPendingFaculty)
	admin.POST("/faculty/:id/approve", adminCtl.ApproveFaculty)
	admin.POST("/faculty/:id/reject", adminCtl.RejectFaculty)

	return &flowServer{router: r, clock: clk}, users
}

func seedFaculty(t *testing.T, users *repository.UserRepository, email string) *model.User {
	t.Helper()
	u := &model.User{
		FullName:       "Pending Faculty",
		Email:          email,
		Password:       "x",
		Role:           model.Faculty,
		IsVerified:     true,
		ApprovalStatus: model.ApprovalPending,
		IsActive:       true,
	}
	require.NoError(t, users.Create(context.Background(), u))
	return u
}

func TestFacultyApprovalEndpoints(t *testing.T) {
	s, users := newAdminServer(t)
	_, adminToken := issueToken(t, model.Superadmin)
	_, facultyToken := issueToken(t, model.Faculty)

	first := seedFaculty(t, users, "first@example.com")
	second := seedFaculty(t, users, "second@example.com")

	code, _ := s.call(t, http.MethodGet, "/api/admin/faculty/pending", facultyToken, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env := s.call(t, http.MethodGet, "/api/admin/faculty/pending", adminToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), first.ID)
	assert.Contains(t, string(env.Data), second.ID)

	code, env = s.call(t, http.MethodPost, "/api/admin/faculty/"+first.ID+"/approve", adminToken, nil)
	require.Equal(t, http.StatusOK, code, env.Message)

	approved, err := users.FindByID(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ApprovalApproved, approved.ApprovalStatus)
	assert.True(t, approved.IsApproved)

	// 重复审批返回冲突
	code, env = s.call(t, http.MethodPost, "/api/admin/faculty/"+first.ID+"/approve", adminToken, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, string(util.KindConflict), env.Reason)

	code, env = s.call(t, http.MethodPost, "/api/admin/faculty/"+second.ID+"/reject", adminToken, gin.H{})
	assert.Equal(t, http.StatusUnprocessableEntity, code, "reason is required")
	assert.Equal(t, string(util.KindValidationFailure), env.Reason)
	assert.Contains(t, env.Message, "Reason")

	code, env = s.call(t, http.MethodPost, "/api/admin/faculty/"+second.ID+"/reject", adminToken, gin.H{"reason": "unknown department"})
	require.Equal(t, http.StatusOK, code, env.Message)
	rejected, err := users.FindByID(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ApprovalRejected, rejected.ApprovalStatus)
	assert.Equal(t, "unknown department", rejected.RejectionReason)

	code, env = s.call(t, http.MethodPost, "/api/admin/faculty/"+model.GenerateUUID()+"/approve", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, string(util.KindNotFound), env.Reason)
}

func TestCreateUserEndpoint(t *testing.T) {
	s, users := newAdminServer(t)
	adminID, adminToken := issueToken(t, model.Superadmin)
	_, facultyToken := issueToken(t, model.Faculty)

	body := gin.H{
		"fullName":        "New Faculty",
		"email":           "new@example.com",
		"password":        "password123",
		"confirmPassword": "password123",
		"role":            "faculty",
	}

	code, _ := s.call(t, http.MethodPost, "/api/admin/users", facultyToken, body)
	assert.Equal(t, http.StatusForbidden, code)

	bad := gin.H{}
	for k, v := range body {
		bad[k] = v
	}
	bad["confirmPassword"] = "password124"
	code, env := s.call(t, http.MethodPost, "/api/admin/users", adminToken, bad)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, string(util.KindValidationFailure), env.Reason)

	bad["confirmPassword"] = "password123"
	bad["role"] = "student"
	code, env = s.call(t, http.MethodPost, "/api/admin/users", adminToken, bad)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, env.Message, "Role")

	code, env = s.call(t, http.MethodPost, "/api/admin/users", adminToken, body)
	require.Equal(t, http.StatusCreated, code, env.Message)

	created, err := users.FindByEmail(context.Background(), "new@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.Faculty, created.Role)
	assert.True(t, created.IsApproved)
	require.NotNil(t, created.ApprovedBy)
	assert.Equal(t, adminID, *created.ApprovedBy)
	assert.NotContains(t, string(env.Data), "password123")

	code, env = s.call(t, http.MethodPost, "/api/admin/users", adminToken, body)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, string(util.KindConflict), env.Reason)
}
