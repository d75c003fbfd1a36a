package repository

import (
	"database/sql"
	"elearn_backend/internal/model"

	"gorm.io/gorm"
)

type ProgramRepository struct {
	DB *gorm.DB
}

func NewProgramRepository(db *gorm.DB) *ProgramRepository {
	return &ProgramRepository{DB: db}
}

func (r *ProgramRepository) WithTx(tx *gorm.DB) *ProgramRepository {
	return &ProgramRepository{DB: tx}
}

// ProgramFilter 课程列表筛选条件
type ProgramFilter struct {
	Category      string
	PublishedOnly bool
	OwnerID       uint
}

func orderedQuestions(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC").Order("id ASC")
}

// Create 创建课程及其题目
func (r *ProgramRepository) Create(program *model.Program) error {
	return r.DB.Create(program).Error
}

func (r *ProgramRepository) FindByID(id uint) (*model.Program, error) {
	var p model.Program
	if err := r.DB.First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// FindWithQuestions 加载课程及按顺序排列的题目
func (r *ProgramRepository) FindWithQuestions(id uint) (*model.Program, error) {
	var p model.Program
	err := r.DB.Preload("Questions", orderedQuestions).First(&p, id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProgramRepository) List(filter ProgramFilter, page, limit int) ([]model.Program, int64, error) {
	var programs []model.Program
	var total int64

	query := r.DB.Model(&model.Program{})
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.PublishedOnly {
		query = query.Where("is_published = ?", true)
	}
	if filter.OwnerID != 0 {
		query = query.Where("owner_id = ?", filter.OwnerID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	err := query.Order("created_at DESC").Order("id DESC").Offset(offset).Limit(limit).Find(&programs).Error
	return programs, total, err
}

// Categories 返回已发布课程的全部分类
func (r *ProgramRepository) Categories() ([]string, error) {
	var categories []string
	err := r.DB.Model(&model.Program{}).
		Where("is_published = ? AND category <> ''", true).
		Distinct().
		Order("category ASC").
		Pluck("category", &categories).Error
	return categories, err
}

// Update 保存课程字段，总分只通过 AdjustTotalMarks 修改
func (r *ProgramRepository) Update(program *model.Program) error {
	return r.DB.Omit("Questions", "exam_total_marks").Save(program).Error
}

// Delete 删除课程及其题目
func (r *ProgramRepository) Delete(id uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("program_id = ?", id).Delete(&model.Question{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Program{}, id).Error
	})
}

// AdjustTotalMarks 按分值差调整总分
func (r *ProgramRepository) AdjustTotalMarks(programID uint, delta int) error {
	if delta == 0 {
		return nil
	}
	return r.DB.Model(&model.Program{}).
		Where("id = ?", programID).
		Update("exam_total_marks", gorm.Expr("exam_total_marks + ?", delta)).Error
}

func (r *ProgramRepository) NextQuestionPosition(programID uint) (int, error) {
	var maxPos sql.NullInt64
	err := r.DB.Model(&model.Question{}).
		Where("program_id = ?", programID).
		Select("MAX(position)").
		Row().
		Scan(&maxPos)
	if err != nil {
		return 0, err
	}
	if !maxPos.Valid {
		return 0, nil
	}
	return int(maxPos.Int64) + 1, nil
}

func (r *ProgramRepository) CreateQuestion(q *model.Question) error {
	return r.DB.Create(q).Error
}

func (r *ProgramRepository) FindQuestion(programID, questionID uint) (*model.Question, error) {
	var q model.Question
	err := r.DB.Where("id = ? AND program_id = ?", questionID, programID).First(&q).Error
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *ProgramRepository) UpdateQuestion(q *model.Question) error {
	return r.DB.Save(q).Error
}

func (r *ProgramRepository) DeleteQuestion(q *model.Question) error {
	return r.DB.Delete(q).Error
}

// NamesByIDs 批量查询课程名称
func (r *ProgramRepository) NamesByIDs(ids []uint) (map[uint]string, error) {
	names := make(map[uint]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	var rows []struct {
		ID   uint
		Name string
	}
	err := r.DB.Model(&model.Program{}).Unscoped().
		Select("id, name").
		Where("id IN ?", ids).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		names[row.ID] = row.Name
	}
	return names, nil
}
