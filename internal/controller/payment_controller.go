package controller

import (
	"elearn_backend/internal/service"
	"elearn_backend/internal/util"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Stripe 事件体上限
const maxWebhookBody = 65536

type PaymentController struct {
	PaymentService *service.PaymentService
}

func NewPaymentController(paymentService *service.PaymentService) *PaymentController {
	return &PaymentController{PaymentService: paymentService}
}

// CreateCheckout godoc
// @Summary 创建支付会话
// @Description 购买单个课程（programId）或订阅（plan=monthly|yearly），二者取其一
// @Tags 支付
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.CheckoutRequest true "购买内容"
// @Success 200 {object} util.Response{data=service.CheckoutResponse}
// @Failure 400 {object} util.Response
// @Failure 409 {object} util.Response "已购买"
// @Failure 503 {object} util.Response "支付服务不可用"
// @Router /api/payments/checkout [post]
func (c *PaymentController) CreateCheckout(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)

	var req service.CheckoutRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	resp, err := c.PaymentService.CreateCheckout(claims.UserID, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, resp)
}

// Webhook godoc
// @Summary Stripe 回调
// @Description 校验 Stripe-Signature 后处理事件，未知事件直接确认
// @Tags 支付
// @Accept json
// @Produce json
// @Success 200 {object} util.Response
// @Failure 400 {object} util.Response "签名无效"
// @Router /api/payments/webhook [post]
func (c *PaymentController) Webhook(ctx *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(ctx.Request.Body, maxWebhookBody))
	if err != nil {
		util.BadRequest(ctx, "failed to read body")
		return
	}

	if err := c.PaymentService.HandleWebhook(payload, ctx.GetHeader("Stripe-Signature")); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.SuccessWithMessage(ctx, "received", nil)
}

// GetSubscription godoc
// @Summary 我的订阅
// @Description 无有效订阅时 data 为 null
// @Tags 支付
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=model.Subscription}
// @Router /api/subscriptions/me [get]
func (c *PaymentController) GetSubscription(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)

	sub, err := c.PaymentService.GetSubscription(claims.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true, "message": "success", "data": sub})
}
