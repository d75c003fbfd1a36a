package repository

import (
	"elearn_backend/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentRepository struct {
	DB *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{DB: db}
}

// WithTx 返回绑定到事务的仓库
func (r *PaymentRepository) WithTx(tx *gorm.DB) *PaymentRepository {
	return &PaymentRepository{DB: tx}
}

func (r *PaymentRepository) Create(p *model.Payment) error {
	return r.DB.Create(p).Error
}

func (r *PaymentRepository) FindBySessionID(sessionID string) (*model.Payment, error) {
	var p model.Payment
	if err := r.DB.Where("stripe_session_id = ?", sessionID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// MarkPaid 仅处理 pending 状态，重复的 webhook 返回 false
func (r *PaymentRepository) MarkPaid(id uint, at time.Time) (bool, error) {
	res := r.DB.Model(&model.Payment{}).
		Where("id = ? AND status = ?", id, model.PaymentPending).
		Updates(map[string]interface{}{"status": model.PaymentPaid, "paid_at": at})
	return res.RowsAffected == 1, res.Error
}

func (r *PaymentRepository) HasPaidProgram(userID, programID uint) (bool, error) {
	var count int64
	err := r.DB.Model(&model.Payment{}).
		Where("user_id = ? AND program_id = ? AND status = ?", userID, programID, model.PaymentPaid).
		Count(&count).Error
	return count > 0, err
}

func (r *PaymentRepository) FindSubscription(userID uint) (*model.Subscription, error) {
	var s model.Subscription
	if err := r.DB.Where("user_id = ?", userID).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// UpsertSubscription 以 user_id 为唯一键写入订阅
func (r *PaymentRepository) UpsertSubscription(s *model.Subscription) error {
	return r.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"plan", "status", "stripe_subscription_id", "current_period_end", "updated_at"}),
	}).Create(s).Error
}

func (r *PaymentRepository) CancelByStripeID(stripeSubscriptionID string) (int64, error) {
	res := r.DB.Model(&model.Subscription{}).
		Where("stripe_subscription_id = ?", stripeSubscriptionID).
		Update("status", model.SubscriptionCanceled)
	return res.RowsAffected, res.Error
}
