package model

import "time"

const (
	PaymentPending = "pending"
	PaymentPaid    = "paid"
	PaymentFailed  = "failed"

	SubscriptionActive   = "active"
	SubscriptionCanceled = "canceled"

	PlanMonthly = "monthly"
	PlanYearly  = "yearly"
)

// Payment 一次 Stripe Checkout 记录，购买课程或订阅
type Payment struct {
	BaseModel
	UserID          uint       `gorm:"index;not null" json:"userId"`
	ProgramID       *uint      `gorm:"index" json:"programId,omitempty"`
	Plan            string     `gorm:"size:20" json:"plan,omitempty"`
	AmountCents     int64      `json:"amountCents"`
	Currency        string     `gorm:"size:10" json:"currency"`
	StripeSessionID string     `gorm:"size:255;uniqueIndex" json:"stripeSessionId"`
	Status          string     `gorm:"size:20;index" json:"status"`
	PaidAt          *time.Time `json:"paidAt,omitempty"`
}

func (Payment) TableName() string {
	return "payments"
}

type Subscription struct {
	BaseModel
	UserID               uint      `gorm:"uniqueIndex;not null" json:"userId"`
	Plan                 string    `gorm:"size:20" json:"plan"`
	Status               string    `gorm:"size:20;index" json:"status"`
	StripeSubscriptionID string    `gorm:"size:255;index" json:"-"`
	CurrentPeriodEnd     time.Time `json:"currentPeriodEnd"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}

// IsActive 订阅在有效期内
func (s *Subscription) IsActive(now time.Time) bool {
	return s != nil && s.Status == SubscriptionActive && s.CurrentPeriodEnd.After(now)
}
