package controller

import (
	"elearn_backend/internal/repository"
	"elearn_backend/internal/service"
	"elearn_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ProgramController struct {
	ProgramService *service.ProgramService
}

func NewProgramController(programService *service.ProgramService) *ProgramController {
	return &ProgramController{ProgramService: programService}
}

func actorFrom(ctx *gin.Context) service.Actor {
	claims := util.GetUserFromContext(ctx)
	return service.Actor{UserID: claims.UserID, Role: claims.Role}
}

// ListPrograms godoc
// @Summary 课程列表
// @Description 仅返回已发布课程
// @Tags 课程
// @Produce json
// @Param category query string false "分类"
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(10)
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/programs [get]
func (c *ProgramController) ListPrograms(ctx *gin.Context) {
	page, limit := util.Pagination(ctx, 10, 100)
	filter := repository.ProgramFilter{Category: ctx.Query("category"), PublishedOnly: true}

	list, total, err := c.ProgramService.ListPrograms(filter, page, limit)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, util.NewPageResponse(list, total, page, limit))
}

// ListMyPrograms godoc
// @Summary 我管理的课程
// @Tags 课程
// @Produce json
// @Security ApiKeyAuth
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(10)
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/programs/mine [get]
func (c *ProgramController) ListMyPrograms(ctx *gin.Context) {
	page, limit := util.Pagination(ctx, 10, 100)
	filter := repository.ProgramFilter{OwnerID: actorFrom(ctx).UserID}

	list, total, err := c.ProgramService.ListPrograms(filter, page, limit)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, util.NewPageResponse(list, total, page, limit))
}

// Categories godoc
// @Summary 课程分类
// @Tags 课程
// @Produce json
// @Success 200 {object} util.Response{data=[]string}
// @Router /api/programs/categories [get]
func (c *ProgramController) Categories(ctx *gin.Context) {
	cats, err := c.ProgramService.Categories()
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, cats)
}

// GetProgram godoc
// @Summary 课程详情
// @Description 公开视图，不含答案
// @Tags 课程
// @Produce json
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response{data=service.ProgramView}
// @Failure 404 {object} util.Response "课程不存在"
// @Router /api/programs/{id} [get]
func (c *ProgramController) GetProgram(ctx *gin.Context) {
	id, ok := util.ParamUint(ctx, "id")
	if !ok {
		util.BadRequest(ctx, "invalid program id")
		return
	}

	view, err := c.ProgramService.GetProgramView(ctx.Request.Context(), id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// GetManagedProgram godoc
// @Summary 课程管理视图
// @Description 含正确答案与解析，仅课程所有者或管理员
// @Tags 课程
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response{data=service.ProgramDetail}
// @Failure 403 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/programs/{id}/manage [get]
func (c *ProgramController) GetManagedProgram(ctx *gin.Context) {
	id, ok := util.ParamUint(ctx, "id")
	if !ok {
		util.BadRequest(ctx, "invalid program id")
		return
	}

	detail, err := c.ProgramService.GetProgramDetail(actorFrom(ctx), id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

// CreateProgram godoc
// @Summary 创建课程
// @Tags 课程
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.ProgramCreateRequest true "课程信息"
// @Success 201 {object} util.Response{data=service.ProgramDetail}
// @Failure 400 {object} util.Response
// @Router /api/programs [post]
func (c *ProgramController) CreateProgram(ctx *gin.Context) {
	var req service.ProgramCreateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	detail, err := c.ProgramService.CreateProgram(actorFrom(ctx).UserID, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, detail)
}

// UpdateProgram godoc
// @Summary 更新课程
// @Tags 课程
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Param body body service.ProgramUpdateRequest true "更新字段"
// @Success 200 {object} util.Response{data=model.Program}
// @Failure 403 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/programs/{id} [put]
func (c *ProgramController) UpdateProgram(ctx *gin.Context) {
	id, ok := util.ParamUint(ctx, "id")
	if !ok {
		util.BadRequest(ctx, "invalid program id")
		return
	}
	var req service.ProgramUpdateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	program, err := c.ProgramService.UpdateProgram(actorFrom(ctx), id, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, program)
}

// UpdateExamConfig godoc
// @Summary 更新考试配置
// @Tags 课程
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Param body body service.ExamConfigRequest true "考试配置"
// @Success 200 {object} util.Response{data=model.Program}
// @Failure 400 {object} util.Response
// @Router /api/programs/{id}/exam [put]
func (c *ProgramController) UpdateExamConfig(ctx *gin.Context) {
	id, ok := util.ParamUint(ctx, "id")
	if !ok {
		util.BadRequest(ctx, "invalid program id")
		return
	}
	var req service.ExamConfigRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	program, err := c.ProgramService.UpdateExamConfig(actorFrom(ctx), id, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, program)
}

// DeleteProgram godoc
// @Summary 删除课程
// @Tags 课程
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response
// @Router /api/programs/{id} [delete]
func (c *ProgramController) DeleteProgram(ctx *gin.Context) {
	id, ok := util.ParamUint(ctx, "id")
	if !ok {
		util.BadRequest(ctx, "invalid program id")
		return
	}

	if err := c.ProgramService.DeleteProgram(actorFrom(ctx), id); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.SuccessWithMessage(ctx, "deleted", nil)
}

// AddQuestion godoc
// @Summary 添加题目
// @Tags 课程
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Param body body service.QuestionRequest true "题目"
// @Success 201 {object} util.Response{data=model.Question}
// @Router /api/programs/{id}/questions [post]
func (c *ProgramController) AddQuestion(ctx *gin.Context) {
	id, ok := util.ParamUint(ctx, "id")
	if !ok {
		util.BadRequest(ctx, "invalid program id")
		return
	}
	var req service.QuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	q, err := c.ProgramService.AddQuestion(actorFrom(ctx), id, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, q)
}

// UpdateQuestion godoc
// @Summary 更新题目
// @Tags 课程
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Param questionId path int true "题目ID"
// @Param body body service.QuestionRequest true "题目"
// @Success 200 {object} util.Response{data=model.Question}
// @Router /api/programs/{id}/questions/{questionId} [put]
func (c *ProgramController) UpdateQuestion(ctx *gin.Context) {
	id, ok := util.ParamUint(ctx, "id")
	questionID, qok := util.ParamUint(ctx, "questionId")
	if !ok || !qok {
		util.BadRequest(ctx, "invalid id")
		return
	}
	var req service.QuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	q, err := c.ProgramService.UpdateQuestion(actorFrom(ctx), id, questionID, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, q)
}

// DeleteQuestion godoc
// @Summary 删除题目
// @Tags 课程
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Param questionId path int true "题目ID"
// @Success 200 {object} util.Response
// @Router /api/programs/{id}/questions/{questionId} [delete]
func (c *ProgramController) DeleteQuestion(ctx *gin.Context) {
	id, ok := util.ParamUint(ctx, "id")
	questionID, qok := util.ParamUint(ctx, "questionId")
	if !ok || !qok {
		util.BadRequest(ctx, "invalid id")
		return
	}

	if err := c.ProgramService.DeleteQuestion(actorFrom(ctx), id, questionID); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.SuccessWithMessage(ctx, "deleted", nil)
}
