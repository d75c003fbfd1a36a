package controller

import (
	"elearn_backend/internal/model"
	"elearn_backend/internal/repository"
	"elearn_backend/internal/service"
	"elearn_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AttemptController struct {
	AttemptService *service.AttemptService
}

func NewAttemptController(attemptService *service.AttemptService) *AttemptController {
	return &AttemptController{AttemptService: attemptService}
}

// CanStart godoc
// @Summary 检查能否开始考试
// @Description 返回已用次数、最大次数以及不可开始的原因
// @Tags 考试
// @Produce json
// @Security ApiKeyAuth
// @Param programId path int true "课程ID"
// @Success 200 {object} util.Response{data=service.CanStartResponse}
// @Failure 404 {object} util.Response "课程不存在或未开放考试"
// @Router /api/attempts/can-start/{programId} [get]
func (c *AttemptController) CanStart(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	programID, ok := util.ParamUint(ctx, "programId")
	if !ok {
		util.BadRequest(ctx, "invalid program id")
		return
	}

	resp, err := c.AttemptService.CanStart(claims.UserID, programID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, resp)
}

// StartAttempt godoc
// @Summary 开始考试
// @Description 创建新的考试记录并返回不含答案的题目
// @Tags 考试
// @Produce json
// @Security ApiKeyAuth
// @Param programId path int true "课程ID"
// @Success 201 {object} util.Response{data=service.StartAttemptResponse}
// @Failure 403 {object} util.Response "次数用尽或无权限"
// @Failure 404 {object} util.Response "课程不存在或未开放考试"
// @Router /api/attempts/start/{programId} [post]
func (c *AttemptController) StartAttempt(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	programID, ok := util.ParamUint(ctx, "programId")
	if !ok {
		util.BadRequest(ctx, "invalid program id")
		return
	}

	resp, err := c.AttemptService.StartAttempt(claims.UserID, programID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, resp)
}

// SubmitAttempt godoc
// @Summary 提交考试
// @Description 评分并返回成绩与逐题结果
// @Tags 考试
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param attemptId path int true "考试记录ID"
// @Param body body service.SubmitAttemptRequest true "答案"
// @Success 200 {object} util.Response{data=service.AttemptResult}
// @Failure 400 {object} util.Response "答案格式错误"
// @Failure 403 {object} util.Response "次数用尽"
// @Failure 404 {object} util.Response "记录不存在或已结束"
// @Router /api/attempts/{attemptId}/submit [post]
func (c *AttemptController) SubmitAttempt(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	attemptID, ok := util.ParamUint(ctx, "attemptId")
	if !ok {
		util.BadRequest(ctx, "invalid attempt id")
		return
	}

	var req service.SubmitAttemptRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.AttemptService.SubmitAttempt(ctx.Request.Context(), attemptID, claims.UserID, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// GetResult godoc
// @Summary 获取考试结果
// @Tags 考试
// @Produce json
// @Security ApiKeyAuth
// @Param attemptId path int true "考试记录ID"
// @Success 200 {object} util.Response{data=service.AttemptResult}
// @Failure 404 {object} util.Response "记录不存在"
// @Router /api/attempts/{attemptId} [get]
func (c *AttemptController) GetResult(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	attemptID, ok := util.ParamUint(ctx, "attemptId")
	if !ok {
		util.BadRequest(ctx, "invalid attempt id")
		return
	}

	result, err := c.AttemptService.GetResult(attemptID, claims.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// AbandonAttempt godoc
// @Summary 放弃考试
// @Tags 考试
// @Produce json
// @Security ApiKeyAuth
// @Param attemptId path int true "考试记录ID"
// @Success 200 {object} util.Response{data=service.AbandonResponse}
// @Failure 404 {object} util.Response "记录不存在或已结束"
// @Router /api/attempts/{attemptId}/abandon [post]
func (c *AttemptController) AbandonAttempt(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	attemptID, ok := util.ParamUint(ctx, "attemptId")
	if !ok {
		util.BadRequest(ctx, "invalid attempt id")
		return
	}

	resp, err := c.AttemptService.AbandonAttempt(attemptID, claims.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, resp)
}

// ListUserAttempts godoc
// @Summary 我的考试记录
// @Tags 考试
// @Produce json
// @Security ApiKeyAuth
// @Param status query string false "状态" Enums(in-progress, completed, abandoned)
// @Param programId query int false "课程ID"
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(10)
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/attempts/user [get]
func (c *AttemptController) ListUserAttempts(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	page, limit := util.Pagination(ctx, 10, 100)

	programID, ok := util.QueryUint(ctx, "programId")
	if !ok {
		util.BadRequest(ctx, "invalid programId")
		return
	}

	filter := repository.AttemptFilter{
		UserID:    claims.UserID,
		ProgramID: programID,
	}
	switch status := ctx.Query("status"); status {
	case "":
	case model.AttemptInProgress, model.AttemptCompleted, model.AttemptAbandoned, model.AttemptSubmitted:
		filter.Status = status
	default:
		util.BadRequest(ctx, "invalid status")
		return
	}

	items, total, err := c.AttemptService.ListUserAttempts(filter, page, limit)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, util.NewPageResponse(items, total, page, limit))
}
