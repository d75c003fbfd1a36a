package repository

import (
	"elearn_backend/internal/model"

	"gorm.io/gorm"
)

type QuizAttemptRepository struct {
	DB *gorm.DB
}

func NewQuizAttemptRepository(db *gorm.DB) *QuizAttemptRepository {
	return &QuizAttemptRepository{DB: db}
}

func (r *QuizAttemptRepository) WithTx(tx *gorm.DB) *QuizAttemptRepository {
	return &QuizAttemptRepository{DB: tx}
}

// AttemptFilter 用户尝试记录筛选条件
type AttemptFilter struct {
	UserID    uint
	ProgramID uint
	Status    string
}

func (r *QuizAttemptRepository) Create(attempt *model.QuizAttempt) error {
	return r.DB.Create(attempt).Error
}

// FindOwned 查找属于该用户且处于指定状态的尝试
func (r *QuizAttemptRepository) FindOwned(id, userID uint, status string) (*model.QuizAttempt, error) {
	var a model.QuizAttempt
	err := r.DB.Where("id = ? AND user_id = ? AND status = ?", id, userID, status).First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CountCounted 统计计入上限的尝试次数（completed / submitted）
func (r *QuizAttemptRepository) CountCounted(userID, programID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.QuizAttempt{}).
		Where("user_id = ? AND program_id = ? AND status IN ?", userID, programID, model.CountedAttemptStatuses).
		Count(&count).Error
	return count, err
}

// Transition 仅当当前状态为 from 时更新，返回是否命中
func (r *QuizAttemptRepository) Transition(id, userID uint, from string, updates map[string]interface{}) (bool, error) {
	res := r.DB.Model(&model.QuizAttempt{}).
		Where("id = ? AND user_id = ? AND status = ?", id, userID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *QuizAttemptRepository) List(filter AttemptFilter, page, limit int) ([]model.QuizAttempt, int64, error) {
	var attempts []model.QuizAttempt
	var total int64

	query := r.DB.Model(&model.QuizAttempt{}).Where("user_id = ?", filter.UserID)
	if filter.ProgramID != 0 {
		query = query.Where("program_id = ?", filter.ProgramID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Omit("question_snapshot").
		Order("started_at DESC").Order("id DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&attempts).Error
	return attempts, total, err
}
