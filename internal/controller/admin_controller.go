package controller

import (
	"quizhub_backend/internal/service"
	"quizhub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AdminController struct {
	AdminService *service.AdminService
}

func NewAdminController(adminService *service.AdminService) *AdminController {
	return &AdminController{AdminService: adminService}
}

type RejectFacultyRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// swagger:model CreateUserRequest
type CreateUserRequest struct {
	FullName        string `json:"fullName" binding:"required"`
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
	Role            string `json:"role" binding:"required,oneof=faculty superadmin"`
}

// @Summary 创建教师或超级管理员账号
// @Tags 管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body CreateUserRequest true "账号信息"
// @Success 201 {object} util.Response{data=model.User}
// @Failure 403 {object} util.Response "超级管理员已存在"
// @Failure 409 {object} util.Response "邮箱已被注册"
// @Failure 422 {object} util.Response "两次密码不一致"
// @Router /api/admin/users [post]
func (c *AdminController) CreateUser(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	var req CreateUserRequest
	if !bindJSON(ctx, &req) {
		return
	}
	user, err := c.AdminService.CreateUser(ctx.Request.Context(), actor, service.CreateUserInput{
		FullName:        req.FullName,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Role:            req.Role,
	})
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, user)
}

// @Summary 待审批教师列表
// @Tags 管理
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.User}
// @Router /api/admin/faculty/pending [get]
func (c *AdminController) ListPendingFaculty(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	users, err := c.AdminService.ListPendingFaculty(ctx.Request.Context(), actor)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, users)
}

// @Summary 审批通过教师账号
// @Tags 管理
// @Produce json
// @Security BearerAuth
// @Param id path string true "用户ID"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response "账号不在待审批状态"
// @Router /api/admin/faculty/{id}/approve [post]
func (c *AdminController) ApproveFaculty(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	if err := c.AdminService.ApproveFaculty(ctx.Request.Context(), actor, ctx.Param("id")); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"approvalStatus": "approved"})
}

// @Summary 驳回教师账号
// @Tags 管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "用户ID"
// @Param body body RejectFacultyRequest true "驳回原因"
// @Success 200 {object} util.Response
// @Router /api/admin/faculty/{id}/reject [post]
func (c *AdminController) RejectFaculty(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	var req RejectFacultyRequest
	if !bindJSON(ctx, &req) {
		return
	}
	if err := c.AdminService.RejectFaculty(ctx.Request.Context(), actor, ctx.Param("id"), req.Reason); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"approvalStatus": "rejected"})
}
