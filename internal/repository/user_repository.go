package repository

import (
	"elearn_backend/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

// WithTx 返回绑定到事务的仓库
func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{DB: tx}
}

func (r *UserRepository) Create(user *model.User) error {
	return r.DB.Create(user).Error
}

func (r *UserRepository) FindByID(id uint) (*model.User, error) {
	var user model.User
	if err := r.DB.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// LockByID 行锁读取用户，用于串行化同一用户的尝试创建与统计更新
func (r *UserRepository) LockByID(id uint) (*model.User, error) {
	var user model.User
	err := r.DB.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByEmail(email string) (*model.User, error) {
	var user model.User
	if err := r.DB.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProfile 只写资料字段，避免覆盖并发更新的统计
func (r *UserRepository) UpdateProfile(user *model.User) error {
	return r.DB.Model(&model.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]interface{}{"name": user.Name, "avatar": user.Avatar}).Error
}

func (r *UserRepository) UpdateLastLogin(userID uint, at time.Time) error {
	return r.DB.Model(&model.User{}).Where("id = ?", userID).Update("last_login", at).Error
}

func (r *UserRepository) UpdateStripeCustomer(userID uint, customerID string) error {
	return r.DB.Model(&model.User{}).Where("id = ?", userID).Update("stripe_customer_id", customerID).Error
}

// UpdateQuizStats 写入完成次数和滚动平均分
func (r *UserRepository) UpdateQuizStats(userID uint, completed int, average float64) error {
	return r.DB.Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"quizzes_completed": completed,
			"average_score":     average,
		}).Error
}
