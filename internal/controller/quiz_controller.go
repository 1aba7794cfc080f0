package controller

import (
	"quizhub_backend/internal/grading"
	"quizhub_backend/internal/service"
	"quizhub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuizController struct {
	QuizService *service.QuizService
}

func NewQuizController(quizService *service.QuizService) *QuizController {
	return &QuizController{QuizService: quizService}
}

// SubmitAnswersRequest 提交或预览评分的答案列表
type SubmitAnswersRequest struct {
	Answers []grading.Answer `json:"answers"`
}

// @Summary 创建测验
// @Tags 测验
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.QuizRequest true "测验定义"
// @Success 201 {object} util.Response{data=model.Quiz}
// @Failure 422 {object} util.Response "校验失败"
// @Router /api/quizzes [post]
func (c *QuizController) CreateQuiz(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	var req service.QuizRequest
	if !bindJSON(ctx, &req) {
		return
	}
	quiz, err := c.QuizService.CreateQuiz(ctx.Request.Context(), actor, &req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, quiz)
}

// @Summary 更新测验
// @Description 测验开始后题目不可修改
// @Tags 测验
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "测验ID"
// @Param body body service.QuizRequest true "测验定义"
// @Success 200 {object} util.Response{data=model.Quiz}
// @Failure 409 {object} util.Response "测验已开始"
// @Router /api/quizzes/{id} [put]
func (c *QuizController) UpdateQuiz(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	var req service.QuizRequest
	if !bindJSON(ctx, &req) {
		return
	}
	quiz, err := c.QuizService.UpdateQuiz(ctx.Request.Context(), actor, ctx.Param("id"), &req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, quiz)
}

// @Summary 删除测验
// @Tags 测验
// @Produce json
// @Security BearerAuth
// @Param id path string true "测验ID"
// @Success 200 {object} util.Response
// @Router /api/quizzes/{id} [delete]
func (c *QuizController) DeleteQuiz(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	if err := c.QuizService.DeleteQuiz(ctx.Request.Context(), actor, ctx.Param("id")); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// @Summary 获取测验详情
// @Description 学生视图不含正确答案
// @Tags 测验
// @Produce json
// @Security BearerAuth
// @Param id path string true "测验ID"
// @Success 200 {object} util.Response{data=model.Quiz}
// @Router /api/quizzes/{id} [get]
func (c *QuizController) GetQuiz(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	quiz, err := c.QuizService.GetQuiz(ctx.Request.Context(), actor, ctx.Param("id"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, quiz)
}

// @Summary 教师的测验列表
// @Tags 测验
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.Quiz}
// @Router /api/quizzes/faculty [get]
func (c *QuizController) ListFacultyQuizzes(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	quizzes, err := c.QuizService.ListFacultyQuizzes(ctx.Request.Context(), actor)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, quizzes)
}

// @Summary 全部测验
// @Tags 测验
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.Quiz}
// @Failure 403 {object} util.Response
// @Router /api/quizzes [get]
func (c *QuizController) ListAllQuizzes(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	quizzes, err := c.QuizService.ListAllQuizzes(ctx.Request.Context(), actor)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, quizzes)
}

// @Summary 学生可见的测验列表
// @Tags 测验
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.QuizSummary}
// @Router /api/quizzes/user [get]
func (c *QuizController) ListUserQuizzes(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	list, err := c.QuizService.ListQuizzesForUser(ctx.Request.Context(), actor.ID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

// @Summary 测验成绩报表
// @Tags 测验
// @Produce json
// @Security BearerAuth
// @Param id path string true "测验ID"
// @Success 200 {object} util.Response{data=service.QuizReport}
// @Router /api/quizzes/{id}/report [get]
func (c *QuizController) Report(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	report, err := c.QuizService.QuizReport(ctx.Request.Context(), actor, ctx.Param("id"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, report)
}

// @Summary 导出测验成绩报表 (CSV)
// @Tags 测验
// @Produce json
// @Security BearerAuth
// @Param id path string true "测验ID"
// @Success 200 {object} util.Response{data=object} "下载地址"
// @Router /api/quizzes/{id}/report/export [post]
func (c *QuizController) ExportReport(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	url, err := c.QuizService.ExportReport(ctx.Request.Context(), actor, ctx.Param("id"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"url": url})
}

// @Summary 预览评分
// @Description 用当前答案评分但不记录尝试
// @Tags 测验
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "测验ID"
// @Param body body SubmitAnswersRequest true "答案"
// @Success 200 {object} util.Response{data=grading.Result}
// @Router /api/quizzes/{id}/grade [post]
func (c *QuizController) PreviewGrade(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	var req SubmitAnswersRequest
	if !bindAnswers(ctx, &req) {
		return
	}
	res, err := c.QuizService.PreviewGrade(ctx.Request.Context(), actor, ctx.Param("id"), req.Answers)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, res)
}
