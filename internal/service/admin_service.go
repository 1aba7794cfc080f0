package service

import (
	"context"
	"errors"
	"strings"

	"quizhub_backend/internal/model"
	"quizhub_backend/internal/repository"
	"quizhub_backend/internal/util"
	"quizhub_backend/pkg/clock"
	"quizhub_backend/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AdminService 教师审批与超级管理员初始化
type AdminService struct {
	UserRepo *repository.UserRepository
	Mailer   Mailer
	Clock    clock.Clock
}

func NewAdminService(userRepo *repository.UserRepository, mailer Mailer, clk clock.Clock) *AdminService {
	if clk == nil {
		clk = clock.Real{}
	}
	if mailer == nil {
		mailer = LogMailer{}
	}
	return &AdminService{UserRepo: userRepo, Mailer: mailer, Clock: clk}
}

func (s *AdminService) ListPendingFaculty(ctx context.Context, actor Actor) ([]model.User, error) {
	if !actor.IsSuperadmin() {
		return nil, util.ErrPermissionDenied
	}
	users, err := s.UserRepo.ListPendingFaculty(ctx)
	if err != nil {
		return nil, util.StorageFailure("list pending faculty", err)
	}
	return users, nil
}

func (s *AdminService) ApproveFaculty(ctx context.Context, actor Actor, userID string) error {
	return s.decide(ctx, actor, userID, model.ApprovalApproved, "")
}

func (s *AdminService) RejectFaculty(ctx context.Context, actor Actor, userID, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return util.Validation("rejection reason is required")
	}
	return s.decide(ctx, actor, userID, model.ApprovalRejected, reason)
}

func (s *AdminService) decide(ctx context.Context, actor Actor, userID string, status model.ApprovalStatus, reason string) error {
	if !actor.IsSuperadmin() {
		return util.ErrPermissionDenied
	}
	if !model.IsValidID(userID) {
		return util.ErrInvalidReference
	}

	user, err := s.UserRepo.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return util.ErrUserNotFound
	}
	if err != nil {
		return util.StorageFailure("find user", err)
	}
	if user.Role != model.Faculty {
		return util.Validation("user is not a faculty account")
	}

	ok, err := s.UserRepo.SetApproval(ctx, userID, status, actor.ID, reason, s.Clock.Now())
	if err != nil {
		return util.StorageFailure("update approval", err)
	}
	if !ok {
		return util.NewError(util.KindConflict, "faculty account is not pending approval")
	}

	subject := "QuizHub faculty account approved"
	body := "Your faculty account has been approved. You can now sign in."
	if status == model.ApprovalRejected {
		subject = "QuizHub faculty account rejected"
		body = "Your faculty account request was rejected: " + reason
	}
	if err := s.Mailer.Send(ctx, user.Email, subject, body); err != nil {
		logger.Log.Warn("failed to send approval mail", zap.String("userId", userID), zap.Error(err))
	}
	return nil
}

// CreateAdminUser 初始化唯一的超级管理员，已存在时拒绝
func (s *AdminService) CreateAdminUser(ctx context.Context, fullName, email, password string) (*model.User, error) {
	return s.createPrivileged(ctx, fullName, email, password, model.Superadmin, nil)
}

type CreateUserInput struct {
	FullName        string
	Email           string
	Password        string
	ConfirmPassword string
	Role            string
}

// CreateUser 由超级管理员直接创建教师或超级管理员账号，免邮箱验证和审批
func (s *AdminService) CreateUser(ctx context.Context, actor Actor, in CreateUserInput) (*model.User, error) {
	if !actor.IsSuperadmin() {
		return nil, util.ErrPermissionDenied
	}
	role, ok := model.ParseRole(strings.ToLower(strings.TrimSpace(in.Role)))
	if !ok || role == model.Student {
		return nil, util.Validation("role must be faculty or superadmin")
	}
	if in.Password != in.ConfirmPassword {
		return nil, util.ErrPasswordMismatch
	}
	approver := actor.ID
	return s.createPrivileged(ctx, in.FullName, in.Email, in.Password, role, &approver)
}

func (s *AdminService) createPrivileged(ctx context.Context, fullName, email, password string, role model.UserRole, approvedBy *string) (*model.User, error) {
	email = normalizeEmail(email)
	if strings.TrimSpace(fullName) == "" || email == "" || len(password) < 8 {
		return nil, util.Validation("fullName, email and a password of at least 8 characters are required")
	}

	// 系统中只允许一个超级管理员
	if role == model.Superadmin {
		exists, err := s.UserRepo.ExistsByRole(ctx, model.Superadmin)
		if err != nil {
			return nil, util.StorageFailure("check superadmin", err)
		}
		if exists {
			return nil, util.ErrSuperadminExists
		}
	}
	if _, err := s.UserRepo.FindByEmail(ctx, email); err == nil {
		return nil, util.ErrEmailRegistered
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, util.StorageFailure("find user", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := s.Clock.Now()
	user := &model.User{
		FullName:       strings.TrimSpace(fullName),
		Email:          email,
		Password:       string(hashed),
		Role:           role,
		IsVerified:     true,
		IsApproved:     true,
		ApprovalStatus: model.ApprovalApproved,
		ApprovedBy:     approvedBy,
		ApprovedAt:     &now,
		IsActive:       true,
	}
	if err := s.UserRepo.Create(ctx, user); err != nil {
		return nil, util.StorageFailure("create "+string(role), err)
	}
	logger.Log.Info("privileged user created",
		zap.String("userId", user.ID),
		zap.String("email", email),
		zap.String("role", string(role)))
	return user, nil
}
