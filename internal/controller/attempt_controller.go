package controller

import (
	"net/http"

	"quizhub_backend/internal/service"
	"quizhub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AttemptController struct {
	AttemptService *service.AttemptService
}

func NewAttemptController(attemptService *service.AttemptService) *AttemptController {
	return &AttemptController{AttemptService: attemptService}
}

// @Summary 开始测验
// @Description Single 测验重复调用会继续未完成的尝试；Multiple 测验每次开启新尝试
// @Tags 答题
// @Produce json
// @Security BearerAuth
// @Param quizId path string true "测验ID"
// @Success 201 {object} util.Response{data=service.StartAttemptResult} "新尝试"
// @Success 200 {object} util.Response{data=service.StartAttemptResult} "继续未完成的尝试"
// @Failure 400 {object} util.Response "测验未在进行中"
// @Failure 403 {object} util.Response "测验未分配给该用户"
// @Failure 409 {object} util.Response "尝试次数已达上限"
// @Router /api/attempts/start/{quizId} [post]
func (c *AttemptController) StartAttempt(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	res, err := c.AttemptService.StartAttempt(ctx.Request.Context(), ctx.Param("quizId"), actor.ID, service.ClientMeta{
		UserAgent: ctx.Request.UserAgent(),
		IP:        ctx.ClientIP(),
	})
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	if res.Resumed {
		util.Success(ctx, res)
		return
	}
	ctx.JSON(http.StatusCreated, util.Response{Code: http.StatusCreated, Message: "created", Data: res})
}

// @Summary 提交测验
// @Tags 答题
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param attemptId path string true "尝试ID"
// @Param body body SubmitAnswersRequest true "答案"
// @Success 200 {object} util.Response{data=service.SubmitAttemptResult}
// @Failure 409 {object} util.Response "已提交"
// @Router /api/attempts/finish/{attemptId} [post]
func (c *AttemptController) FinishAttempt(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	var req SubmitAnswersRequest
	if !bindAnswers(ctx, &req) {
		return
	}
	res, err := c.AttemptService.SubmitAttempt(ctx.Request.Context(), ctx.Param("attemptId"), actor.ID, req.Answers)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, res)
}

// @Summary 查看测验结果
// @Tags 答题
// @Produce json
// @Security BearerAuth
// @Param quizId path string true "测验ID"
// @Success 200 {object} util.Response{data=service.AttemptResult}
// @Failure 404 {object} util.Response "没有已完成的尝试"
// @Router /api/attempts/show-result/{quizId} [get]
func (c *AttemptController) ShowResult(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	res, err := c.AttemptService.ShowResult(ctx.Request.Context(), ctx.Param("quizId"), actor.ID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, res)
}

// @Summary 重新评分
// @Tags 答题
// @Produce json
// @Security BearerAuth
// @Param attemptId path string true "尝试ID"
// @Success 200 {object} util.Response{data=service.SubmitAttemptResult}
// @Router /api/attempts/{attemptId}/regrade [post]
func (c *AttemptController) RegradeAttempt(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	res, err := c.AttemptService.RegradeAttempt(ctx.Request.Context(), ctx.Param("attemptId"), actor)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, res)
}
