package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"quizhub_backend/internal/config"
	"quizhub_backend/internal/model"
	"quizhub_backend/internal/repository"
	"quizhub_backend/internal/util"
	"quizhub_backend/pkg/clock"
	"quizhub_backend/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	// 验证通过后多久内必须完成注册
	verifiedEmailTTL = 30 * time.Minute
	passwordResetTTL = 10 * time.Minute
)

type AuthService struct {
	UserRepo *repository.UserRepository
	OTP      OTPStore
	Sessions SessionStore
	Mailer   Mailer
	Cfg      *config.Config
	Clock    clock.Clock
}

func NewAuthService(userRepo *repository.UserRepository, otp OTPStore, sessions SessionStore, mailer Mailer, cfg *config.Config, clk clock.Clock) *AuthService {
	if clk == nil {
		clk = clock.Real{}
	}
	if mailer == nil {
		mailer = LogMailer{}
	}
	return &AuthService{
		UserRepo: userRepo,
		OTP:      otp,
		Sessions: sessions,
		Mailer:   mailer,
		Cfg:      cfg,
		Clock:    clk,
	}
}

type RegisterInput struct {
	FullName string
	Email    string
	Password string
	Role     string
}

type LoginResult struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

func (s *AuthService) otpTTL() time.Duration {
	if s.Cfg.OTP.TTLMinutes <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(s.Cfg.OTP.TTLMinutes) * time.Minute
}

func (s *AuthService) ensureUnregistered(ctx context.Context, email string) error {
	_, err := s.UserRepo.FindByEmail(ctx, email)
	if err == nil {
		return util.ErrEmailRegistered
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return util.StorageFailure("find user", err)
	}
	return nil
}

func (s *AuthService) issueOTP(ctx context.Context, email string) error {
	cooldown := time.Duration(s.Cfg.OTP.CooldownSeconds) * time.Second
	ok, err := s.OTP.AcquireCooldown(ctx, email, cooldown)
	if err != nil {
		return util.StorageFailure("otp cooldown", err)
	}
	if !ok {
		return util.ErrOTPCooldown
	}

	code, err := generateOTP(s.Cfg.OTP.Length)
	if err != nil {
		return err
	}
	// 重新发送会覆盖旧验证码
	if err := s.OTP.SaveCode(ctx, email, hashOTP(email, code), s.otpTTL()); err != nil {
		return util.StorageFailure("save otp", err)
	}

	body := fmt.Sprintf("Your QuizHub verification code is %s. It expires in %d minutes.", code, int(s.otpTTL().Minutes()))
	if err := s.Mailer.Send(ctx, email, "QuizHub verification code", body); err != nil {
		logger.Log.Warn("failed to deliver otp", zap.String("email", email), zap.Error(err))
	}
	return nil
}

// RequestOTP 为未注册邮箱发送验证码
func (s *AuthService) RequestOTP(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return util.Validation("email is required")
	}
	if err := s.ensureUnregistered(ctx, email); err != nil {
		return err
	}
	return s.issueOTP(ctx, email)
}

func (s *AuthService) ResendOTP(ctx context.Context, email string) error {
	return s.RequestOTP(ctx, email)
}

// VerifyOTP consumes the code and marks the email as verified for registration.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) error {
	email = normalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return util.Validation("email and otp are required")
	}

	hash, err := s.OTP.CodeHash(ctx, email)
	if errors.Is(err, ErrOTPMissing) {
		return util.ErrOTPExpired
	}
	if err != nil {
		return util.StorageFailure("load otp", err)
	}
	if !otpMatches(hash, email, code) {
		return util.ErrOTPInvalid
	}

	if err := s.OTP.DeleteCode(ctx, email); err != nil {
		logger.Log.Warn("failed to delete used otp", zap.String("email", email), zap.Error(err))
	}
	if err := s.OTP.MarkVerified(ctx, email, verifiedEmailTTL); err != nil {
		return util.StorageFailure("mark email verified", err)
	}
	return nil
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	email := normalizeEmail(in.Email)
	role, ok := model.ParseRole(strings.ToLower(strings.TrimSpace(in.Role)))
	if !ok || role == model.Superadmin {
		return nil, util.Validation("role must be student or faculty")
	}
	if strings.TrimSpace(in.FullName) == "" || email == "" {
		return nil, util.Validation("fullName and email are required")
	}
	if len(in.Password) < 8 {
		return nil, util.Validation("password must be at least 8 characters")
	}

	verified, err := s.OTP.IsVerified(ctx, email)
	if err != nil {
		return nil, util.StorageFailure("check email verification", err)
	}
	if !verified {
		return nil, util.ErrEmailNotVerified
	}
	if err := s.ensureUnregistered(ctx, email); err != nil {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		FullName:   strings.TrimSpace(in.FullName),
		Email:      email,
		Password:   string(hashedPassword),
		Role:       role,
		IsVerified: true,
		IsActive:   true,
	}
	if role == model.Faculty {
		user.ApprovalStatus = model.ApprovalPending
	} else {
		user.ApprovalStatus = model.ApprovalApproved
		user.IsApproved = true
	}

	if err := s.UserRepo.Create(ctx, user); err != nil {
		return nil, util.StorageFailure("create user", err)
	}
	if err := s.OTP.ClearVerified(ctx, email); err != nil {
		logger.Log.Warn("failed to clear verified marker", zap.String("email", email), zap.Error(err))
	}
	return user, nil
}

// Login 校验密码、邮箱验证和教师审批状态；role 非空时要求匹配
func (s *AuthService) Login(ctx context.Context, email, password, role string) (*LoginResult, error) {
	user, err := s.UserRepo.FindByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, util.ErrInvalidCredentials
	}
	if err != nil {
		return nil, util.StorageFailure("find user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, util.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, util.ErrPermissionDenied
	}
	if role != "" && !strings.EqualFold(role, string(user.Role)) {
		return nil, util.ErrPermissionDenied
	}
	if !user.IsVerified {
		return nil, util.ErrEmailNotVerified
	}
	if user.Role == model.Faculty && (!user.IsApproved || user.ApprovalStatus != model.ApprovalApproved) {
		return nil, util.ErrAccountNotApproved
	}

	token, err := util.GenerateJWT(user, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
	if err != nil {
		return nil, err
	}

	now := s.Clock.Now()
	if err := s.UserRepo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		logger.Log.Warn("failed to update last login", zap.String("userId", user.ID), zap.Error(err))
	} else {
		user.LastLoginAt = &now
	}
	return &LoginResult{Token: token, User: user}, nil
}

func (s *AuthService) Profile(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, util.ErrUnauthenticated
	}
	user, err := s.UserRepo.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, util.ErrUserNotFound
	}
	if err != nil {
		return nil, util.StorageFailure("find user", err)
	}
	return user, nil
}

func checkNewPassword(password, confirm string) error {
	if len(password) < 8 {
		return util.Validation("password must be at least 8 characters")
	}
	if password != confirm {
		return util.ErrPasswordMismatch
	}
	return nil
}

// ForgotPassword 生成一次性重置令牌并发邮件，库中只保存令牌摘要。
// 未注册的邮箱同样返回成功，不暴露账号是否存在。
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return util.Validation("email is required")
	}
	user, err := s.UserRepo.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		logger.Log.Info("password reset requested for unknown email", zap.String("email", email))
		return nil
	}
	if err != nil {
		return util.StorageFailure("find user", err)
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return err
	}
	token := hex.EncodeToString(raw)
	if err := s.UserRepo.SetResetToken(ctx, user.ID, hashToken(token), s.Clock.Now().Add(passwordResetTTL)); err != nil {
		return util.StorageFailure("save reset token", err)
	}

	body := fmt.Sprintf("Reset your QuizHub password within %d minutes: %s%s\nIgnore this email if you did not ask for a reset.",
		int(passwordResetTTL.Minutes()), s.Cfg.Mail.ResetURL, token)
	if err := s.Mailer.Send(ctx, email, "QuizHub password reset", body); err != nil {
		logger.Log.Warn("failed to deliver password reset", zap.String("email", email), zap.Error(err))
	}
	return nil
}

// ResetPassword 使用邮件中的令牌设置新密码，令牌只能使用一次
func (s *AuthService) ResetPassword(ctx context.Context, token, password, confirm string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return util.ErrResetTokenInvalid
	}
	if err := checkNewPassword(password, confirm); err != nil {
		return err
	}
	tokenHash := hashToken(token)
	user, err := s.UserRepo.FindByResetToken(ctx, tokenHash, s.Clock.Now())
	if errors.Is(err, repository.ErrNotFound) {
		return util.ErrResetTokenInvalid
	}
	if err != nil {
		return util.StorageFailure("find reset token", err)
	}
	return s.storePassword(ctx, user.ID, password, tokenHash)
}

// ChangePassword 校验当前密码后更新，之前签发的令牌全部失效
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, password, confirm string) error {
	user, err := s.Profile(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(current)); err != nil {
		return util.WrapError(util.KindInvalidCredentials, "current password is incorrect", err)
	}
	if err := checkNewPassword(password, confirm); err != nil {
		return err
	}
	if password == current {
		return util.Validation("new password must differ from the current one")
	}
	return s.storePassword(ctx, user.ID, password, "")
}

func (s *AuthService) storePassword(ctx context.Context, userID, password, tokenHash string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	ok, err := s.UserRepo.ChangePassword(ctx, userID, string(hashed), tokenHash, s.Clock.Now())
	if err != nil {
		return util.StorageFailure("change password", err)
	}
	if !ok {
		if tokenHash != "" {
			return util.ErrResetTokenInvalid
		}
		return util.ErrUserNotFound
	}

	user, err := s.UserRepo.FindByID(ctx, userID)
	if err != nil {
		return util.StorageFailure("find user", err)
	}
	// 版本号在令牌最长有效期内保留即可
	if err := s.Sessions.SetTokenVersion(ctx, userID, user.TokenVersion, s.Cfg.JWT.ExpireTime); err != nil {
		logger.Log.Error("failed to publish token version", zap.String("userId", userID), zap.Error(err))
	}
	logger.Log.Info("password changed", zap.String("userId", userID), zap.Bool("viaReset", tokenHash != ""))
	return nil
}

// Logout 将令牌加入黑名单直到其过期
func (s *AuthService) Logout(ctx context.Context, token string, claims *util.Claims) error {
	if token == "" || claims == nil {
		return util.ErrUnauthenticated
	}
	if claims.ExpiresAt == nil {
		return nil
	}
	// JWT 的过期时间按真实时钟签发
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	if err := s.Sessions.Blacklist(ctx, hashToken(token), ttl); err != nil {
		return util.StorageFailure("blacklist token", err)
	}
	return nil
}

// CheckToken 拒绝已注销或早于最近一次改密的令牌。
// 会话存储不可用时放行，只记录告警。
func (s *AuthService) CheckToken(ctx context.Context, token string, claims *util.Claims) error {
	revoked, err := s.Sessions.IsBlacklisted(ctx, hashToken(token))
	if err != nil {
		logger.Log.Warn("token blacklist unavailable", zap.Error(err))
		return nil
	}
	if revoked {
		return util.ErrTokenRevoked
	}

	version, ok, err := s.Sessions.TokenVersion(ctx, claims.UserID)
	if err != nil {
		logger.Log.Warn("token version unavailable", zap.String("userId", claims.UserID), zap.Error(err))
		return nil
	}
	if ok && claims.Version < version {
		return util.ErrTokenRevoked
	}
	return nil
}
