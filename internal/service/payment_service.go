package service

import (
	"elearn_backend/internal/config"
	"elearn_backend/internal/model"
	"elearn_backend/internal/repository"
	"elearn_backend/internal/util"
	"elearn_backend/pkg/logger"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type PaymentService struct {
	PaymentRepo *repository.PaymentRepository
	ProgramRepo *repository.ProgramRepository
	UserRepo    *repository.UserRepository
	Config      config.StripeConfig

	createSession func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	now           func() time.Time
}

func NewPaymentService(
	paymentRepo *repository.PaymentRepository,
	programRepo *repository.ProgramRepository,
	userRepo *repository.UserRepository,
	cfg config.StripeConfig,
) *PaymentService {
	client := session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: cfg.SecretKey}
	return &PaymentService{
		PaymentRepo:   paymentRepo,
		ProgramRepo:   programRepo,
		UserRepo:      userRepo,
		Config:        cfg,
		createSession: client.New,
		now:           time.Now,
	}
}

type CheckoutRequest struct {
	ProgramID uint   `json:"programId"`
	Plan      string `json:"plan"`
}

type CheckoutResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

func (s *PaymentService) Enabled() bool {
	return s.Config.SecretKey != ""
}

// HasAccess 已购买该课程或订阅有效
func (s *PaymentService) HasAccess(userID uint, program *model.Program) (bool, error) {
	paid, err := s.PaymentRepo.HasPaidProgram(userID, program.ID)
	if err != nil || paid {
		return paid, err
	}
	sub, err := s.PaymentRepo.FindSubscription(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return sub.IsActive(s.now()), nil
}

func (s *PaymentService) planPrice(plan string) (string, error) {
	switch plan {
	case model.PlanMonthly:
		if s.Config.MonthlyPriceID != "" {
			return s.Config.MonthlyPriceID, nil
		}
	case model.PlanYearly:
		if s.Config.YearlyPriceID != "" {
			return s.Config.YearlyPriceID, nil
		}
	default:
		return "", util.NewValidation("unknown plan %q", plan)
	}
	return "", util.NewValidation("plan %q is not available", plan)
}

// CreateCheckout 创建 Stripe Checkout 会话并记录待支付订单
func (s *PaymentService) CreateCheckout(userID uint, req CheckoutRequest) (*CheckoutResponse, error) {
	if !s.Enabled() {
		return nil, util.ErrPaymentsNotAvailable
	}
	if (req.ProgramID == 0) == (req.Plan == "") {
		return nil, util.NewValidation("exactly one of programId or plan is required")
	}

	user, err := s.UserRepo.FindByID(userID)
	if err != nil {
		return nil, notFoundOr(err, util.ErrUserNotFound)
	}

	params := &stripe.CheckoutSessionParams{
		SuccessURL:        stripe.String(s.Config.SuccessURL),
		CancelURL:         stripe.String(s.Config.CancelURL),
		ClientReferenceID: stripe.String(strconv.FormatUint(uint64(userID), 10)),
		Metadata:          map[string]string{"user_id": strconv.FormatUint(uint64(userID), 10)},
	}
	if user.StripeCustomerID != "" {
		params.Customer = stripe.String(user.StripeCustomerID)
	} else {
		params.CustomerEmail = stripe.String(user.Email)
	}

	payment := &model.Payment{
		UserID:   userID,
		Currency: s.Config.Currency,
		Status:   model.PaymentPending,
	}

	if req.ProgramID != 0 {
		program, err := s.ProgramRepo.FindByID(req.ProgramID)
		if err != nil {
			return nil, notFoundOr(err, util.ErrProgramNotFound)
		}
		if !program.IsPublished || !program.IsPremium || program.PriceCents <= 0 {
			return nil, util.NewValidation("program %d is not for sale", program.ID)
		}
		owned, err := s.PaymentRepo.HasPaidProgram(userID, program.ID)
		if err != nil {
			return nil, err
		}
		if owned {
			return nil, util.NewConflict("program already purchased")
		}

		params.Mode = stripe.String(string(stripe.CheckoutSessionModePayment))
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(s.Config.Currency),
				UnitAmount: stripe.Int64(program.PriceCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(program.Name),
				},
			},
		}}
		params.Metadata["program_id"] = strconv.FormatUint(uint64(program.ID), 10)

		programID := program.ID
		payment.ProgramID = &programID
		payment.AmountCents = program.PriceCents
	} else {
		priceID, err := s.planPrice(req.Plan)
		if err != nil {
			return nil, err
		}
		params.Mode = stripe.String(string(stripe.CheckoutSessionModeSubscription))
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(priceID),
			Quantity: stripe.Int64(1),
		}}
		params.Metadata["plan"] = req.Plan
		payment.Plan = req.Plan
	}

	sess, err := s.createSession(params)
	if err != nil {
		return nil, util.NewServiceUnavailable("payment provider unavailable", err)
	}

	payment.StripeSessionID = sess.ID
	if err := s.PaymentRepo.Create(payment); err != nil {
		return nil, err
	}

	logger.Log.Info("Checkout session created",
		zap.Uint("userId", userID),
		zap.String("sessionId", sess.ID),
		zap.String("plan", req.Plan),
		zap.Uint("programId", req.ProgramID))

	return &CheckoutResponse{SessionID: sess.ID, URL: sess.URL}, nil
}

// HandleWebhook 校验签名并处理支付完成与订阅取消事件
func (s *PaymentService) HandleWebhook(payload []byte, signature string) error {
	if s.Config.WebhookSecret == "" {
		return util.ErrPaymentsNotAvailable
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, s.Config.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return util.NewValidation("invalid webhook signature")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return util.NewValidation("malformed checkout session payload")
		}
		return s.completeCheckout(&sess)

	case stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return util.NewValidation("malformed subscription payload")
		}
		n, err := s.PaymentRepo.CancelByStripeID(sub.ID)
		if err != nil {
			return err
		}
		logger.Log.Info("Subscription canceled", zap.String("subscriptionId", sub.ID), zap.Int64("rows", n))

	default:
		logger.Log.Debug("Ignoring webhook event", zap.String("type", string(event.Type)))
	}
	return nil
}

func (s *PaymentService) completeCheckout(sess *stripe.CheckoutSession) error {
	payment, err := s.PaymentRepo.FindBySessionID(sess.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Log.Warn("Checkout session without local payment", zap.String("sessionId", sess.ID))
		return nil
	}
	if err != nil {
		return err
	}

	now := s.now()
	marked := false
	// 支付状态、客户ID与订阅同一事务提交
	err = s.PaymentRepo.DB.Transaction(func(tx *gorm.DB) error {
		payments := s.PaymentRepo.WithTx(tx)

		ok, err := payments.MarkPaid(payment.ID, now)
		if err != nil || !ok {
			return err
		}

		if sess.Customer != nil && sess.Customer.ID != "" {
			if err := s.UserRepo.WithTx(tx).UpdateStripeCustomer(payment.UserID, sess.Customer.ID); err != nil {
				return err
			}
		}

		if payment.Plan != "" {
			sub := &model.Subscription{
				UserID:           payment.UserID,
				Plan:             payment.Plan,
				Status:           model.SubscriptionActive,
				CurrentPeriodEnd: periodEnd(payment.Plan, now),
			}
			if sess.Subscription != nil {
				sub.StripeSubscriptionID = sess.Subscription.ID
				if sess.Subscription.CurrentPeriodEnd > 0 {
					sub.CurrentPeriodEnd = time.Unix(sess.Subscription.CurrentPeriodEnd, 0)
				}
			}
			if err := payments.UpsertSubscription(sub); err != nil {
				return err
			}
		}
		marked = true
		return nil
	})
	if err != nil {
		return err
	}
	if !marked {
		// 重复投递
		return nil
	}

	logger.Log.Info("Payment completed",
		zap.Uint("paymentId", payment.ID),
		zap.Uint("userId", payment.UserID),
		zap.String("plan", payment.Plan))
	return nil
}

func periodEnd(plan string, from time.Time) time.Time {
	if plan == model.PlanYearly {
		return from.AddDate(1, 0, 0)
	}
	return from.AddDate(0, 1, 0)
}

// GetSubscription 没有订阅时返回 nil
func (s *PaymentService) GetSubscription(userID uint) (*model.Subscription, error) {
	sub, err := s.PaymentRepo.FindSubscription(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return sub, err
}
