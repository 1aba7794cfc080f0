package controller

import (
	"quizhub_backend/internal/service"
	"quizhub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AuthController struct {
	AuthService *service.AuthService
}

func NewAuthController(authService *service.AuthService) *AuthController {
	return &AuthController{AuthService: authService}
}

// swagger:model OTPRequest
type OTPRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// swagger:model OTPVerifyRequest
type OTPVerifyRequest struct {
	Email string `json:"email" binding:"required,email"`
	OTP   string `json:"otp" binding:"required"`
}

// RegisterRequest defines model for registration
// swagger:model RegisterRequest
type RegisterRequest struct {
	FullName string `json:"fullName" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"required,oneof=student faculty"`
}

// swagger:model LoginRequest
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

// RequestOTP godoc
// @Summary 发送邮箱验证码
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body OTPRequest true "邮箱"
// @Success 200 {object} util.Response "已发送"
// @Failure 409 {object} util.Response "邮箱已被注册或请求过于频繁"
// @Router /api/auth/otp/request [post]
func (c *AuthController) RequestOTP(ctx *gin.Context) {
	var req OTPRequest
	if !bindJSON(ctx, &req) {
		return
	}
	if err := c.AuthService.RequestOTP(ctx.Request.Context(), req.Email); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"sent": true})
}

// ResendOTP godoc
// @Summary 重新发送邮箱验证码
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body OTPRequest true "邮箱"
// @Success 200 {object} util.Response "已发送"
// @Failure 409 {object} util.Response "请求过于频繁"
// @Router /api/auth/otp/resend [post]
func (c *AuthController) ResendOTP(ctx *gin.Context) {
	var req OTPRequest
	if !bindJSON(ctx, &req) {
		return
	}
	if err := c.AuthService.ResendOTP(ctx.Request.Context(), req.Email); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"sent": true})
}

// VerifyOTP godoc
// @Summary 校验邮箱验证码
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body OTPVerifyRequest true "邮箱和验证码"
// @Success 200 {object} util.Response "验证通过"
// @Failure 422 {object} util.Response "验证码错误或已过期"
// @Router /api/auth/otp/verify [post]
func (c *AuthController) VerifyOTP(ctx *gin.Context) {
	var req OTPVerifyRequest
	if !bindJSON(ctx, &req) {
		return
	}
	if err := c.AuthService.VerifyOTP(ctx.Request.Context(), req.Email, req.OTP); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"verified": true})
}

// Register godoc
// @Summary 注册新用户
// @Description 邮箱需先通过验证码校验；教师账号需管理员审批
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body RegisterRequest true "用户注册信息"
// @Success 201 {object} util.Response{data=object} "创建成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 403 {object} util.Response "邮箱未验证"
// @Failure 409 {object} util.Response "邮箱已被注册"
// @Router /api/auth/register [post]
func (c *AuthController) Register(ctx *gin.Context) {
	var req RegisterRequest
	if !bindJSON(ctx, &req) {
		return
	}

	user, err := c.AuthService.Register(ctx.Request.Context(), service.RegisterInput{
		FullName: req.FullName,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	util.Created(ctx, gin.H{
		"id":             user.ID,
		"role":           user.Role,
		"approvalStatus": user.ApprovalStatus,
	})
}

// Login godoc
// @Summary 用户登录
// @Description 验证用户身份并返回JWT令牌
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body LoginRequest true "用户登录凭据"
// @Success 200 {object} util.Response{data=service.LoginResult} "成功"
// @Failure 401 {object} util.Response "账号或密码错误"
// @Failure 403 {object} util.Response "未验证或未审批"
// @Router /api/auth/login [post]
func (c *AuthController) Login(ctx *gin.Context) {
	var req LoginRequest
	if !bindJSON(ctx, &req) {
		return
	}

	res, err := c.AuthService.Login(ctx.Request.Context(), req.Email, req.Password, req.Role)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, res)
}

// Profile godoc
// @Summary 获取当前用户信息
// @Tags 认证
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=model.User}
// @Failure 401 {object} util.Response
// @Router /api/profile [get]
func (c *AuthController) Profile(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	user, err := c.AuthService.Profile(ctx.Request.Context(), actor.ID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, user)
}

// swagger:model ForgotPasswordRequest
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// swagger:model ResetPasswordRequest
type ResetPasswordRequest struct {
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

// swagger:model ChangePasswordRequest
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

// ForgotPassword godoc
// @Summary 发送重置密码邮件
// @Description 邮箱未注册时同样返回成功
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body ForgotPasswordRequest true "邮箱"
// @Success 200 {object} util.Response
// @Router /api/auth/password/forgot [post]
func (c *AuthController) ForgotPassword(ctx *gin.Context) {
	var req ForgotPasswordRequest
	if !bindJSON(ctx, &req) {
		return
	}
	if err := c.AuthService.ForgotPassword(ctx.Request.Context(), req.Email); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"sent": true})
}

// ResetPassword godoc
// @Summary 通过邮件令牌重置密码
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   token path string true "重置令牌"
// @Param   body body ResetPasswordRequest true "新密码"
// @Success 200 {object} util.Response
// @Failure 422 {object} util.Response "令牌无效或两次密码不一致"
// @Router /api/auth/password/reset/{token} [post]
func (c *AuthController) ResetPassword(ctx *gin.Context) {
	var req ResetPasswordRequest
	if !bindJSON(ctx, &req) {
		return
	}
	if err := c.AuthService.ResetPassword(ctx.Request.Context(), ctx.Param("token"), req.Password, req.ConfirmPassword); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"reset": true})
}

// ChangePassword godoc
// @Summary 修改密码
// @Description 成功后之前签发的令牌全部失效
// @Tags 认证
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body ChangePasswordRequest true "当前密码和新密码"
// @Success 200 {object} util.Response
// @Failure 401 {object} util.Response "当前密码错误"
// @Router /api/password/change [post]
func (c *AuthController) ChangePassword(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	var req ChangePasswordRequest
	if !bindJSON(ctx, &req) {
		return
	}
	err := c.AuthService.ChangePassword(ctx.Request.Context(), actor.ID, req.CurrentPassword, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"changed": true})
}

// Logout godoc
// @Summary 退出登录
// @Tags 认证
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/auth/logout [post]
func (c *AuthController) Logout(ctx *gin.Context) {
	err := c.AuthService.Logout(ctx.Request.Context(), util.GetTokenFromContext(ctx), util.GetUserFromContext(ctx))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"loggedOut": true})
}
