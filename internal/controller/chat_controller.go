package controller

import (
	"elearn_backend/internal/service"
	"elearn_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ChatController struct {
	ChatService *service.ChatService
}

func NewChatController(chatService *service.ChatService) *ChatController {
	return &ChatController{ChatService: chatService}
}

// CreateSession godoc
// @Summary 创建辅导会话
// @Tags AI辅导
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.CreateSessionRequest false "会话信息"
// @Success 201 {object} util.Response{data=model.ChatSession}
// @Router /api/chat/sessions [post]
func (c *ChatController) CreateSession(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)

	var req service.CreateSessionRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			util.BadRequest(ctx, err.Error())
			return
		}
	}

	session, err := c.ChatService.CreateSession(claims.UserID, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, session)
}

// ListSessions godoc
// @Summary 我的辅导会话
// @Tags AI辅导
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.ChatSession}
// @Router /api/chat/sessions [get]
func (c *ChatController) ListSessions(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)

	sessions, err := c.ChatService.ListSessions(claims.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, sessions)
}

// GetSession godoc
// @Summary 会话记录
// @Tags AI辅导
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "会话ID"
// @Success 200 {object} util.Response{data=model.ChatSession}
// @Failure 404 {object} util.Response
// @Router /api/chat/sessions/{id} [get]
func (c *ChatController) GetSession(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)

	session, err := c.ChatService.GetSession(claims.UserID, ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, session)
}

// DeleteSession godoc
// @Summary 删除会话
// @Tags AI辅导
// @Security ApiKeyAuth
// @Param id path string true "会话ID"
// @Success 200 {object} util.Response
// @Router /api/chat/sessions/{id} [delete]
func (c *ChatController) DeleteSession(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)

	if err := c.ChatService.DeleteSession(claims.UserID, ctx.Param("id")); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.SuccessWithMessage(ctx, "deleted", nil)
}

// SendMessage godoc
// @Summary 发送消息
// @Description 转发给 AI 服务，上游失败时返回 503
// @Tags AI辅导
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "会话ID"
// @Param body body service.SendMessageRequest true "消息内容"
// @Success 200 {object} util.Response{data=service.SendMessageResponse}
// @Failure 503 {object} util.Response "AI 服务不可用"
// @Router /api/chat/sessions/{id}/messages [post]
func (c *ChatController) SendMessage(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)

	var req service.SendMessageRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	resp, err := c.ChatService.SendMessage(ctx.Request.Context(), claims.UserID, ctx.Param("id"), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, resp)
}
