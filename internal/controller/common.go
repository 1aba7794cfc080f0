package controller

import (
	"errors"
	"fmt"
	"strings"

	"quizhub_backend/internal/service"
	"quizhub_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// currentActor 从 JWT claims 构造调用者，未登录时写入 401 并返回 false
func currentActor(ctx *gin.Context) (service.Actor, bool) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return service.Actor{}, false
	}
	return service.Actor{ID: claims.UserID, Role: claims.Role}, true
}

// bindJSON 解析请求体，失败时以 VALIDATION_FAILURE 响应，不回显底层解析错误
func bindJSON(ctx *gin.Context, req interface{}) bool {
	err := ctx.ShouldBindJSON(req)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
		util.RespondError(ctx, util.Validation("%s", strings.Join(fields, "; ")))
		return false
	}
	util.RespondError(ctx, util.Validation("malformed request body"))
	return false
}

// bindAnswers 答案必须是列表
func bindAnswers(ctx *gin.Context, req *SubmitAnswersRequest) bool {
	if err := ctx.ShouldBindJSON(req); err != nil {
		util.RespondError(ctx, util.Validation("answers must be a list"))
		return false
	}
	return true
}
