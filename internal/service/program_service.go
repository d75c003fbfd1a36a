package service

import (
	"context"
	"elearn_backend/internal/model"
	"elearn_backend/internal/repository"
	"elearn_backend/internal/util"
	"elearn_backend/pkg/logger"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Actor 发起操作的用户
type Actor struct {
	UserID uint
	Role   model.UserRole
}

func (a Actor) IsAdmin() bool {
	return a.Role == model.Admin
}

type ProgramService struct {
	ProgramRepo *repository.ProgramRepository
	Cache       *repository.ProgramCache
	DB          *gorm.DB
}

func NewProgramService(programRepo *repository.ProgramRepository, cache *repository.ProgramCache, db *gorm.DB) *ProgramService {
	return &ProgramService{
		ProgramRepo: programRepo,
		Cache:       cache,
		DB:          db,
	}
}

type QuestionRequest struct {
	Type           string                 `json:"type" binding:"required"`
	QuestionText   string                 `json:"questionText" binding:"required"`
	Mark           int                    `json:"mark"`
	Options        []model.QuestionOption `json:"options"`
	CorrectAnswers []string               `json:"correctAnswers"`
	Explanation    string                 `json:"explanation"`
	Position       *int                   `json:"position"`
}

type ExamConfigRequest struct {
	Enabled          *bool `json:"enabled"`
	TimeLimit        *int  `json:"timeLimit"`
	MaxAttempts      *int  `json:"maxAttempts"`
	ShuffleQuestions *bool `json:"shuffleQuestions"`
}

type ProgramCreateRequest struct {
	Name        string             `json:"name" binding:"required"`
	Description string             `json:"description"`
	Category    string             `json:"category"`
	PriceCents  int64              `json:"priceCents"`
	IsPremium   bool               `json:"isPremium"`
	IsPublished bool               `json:"isPublished"`
	Exam        *ExamConfigRequest `json:"examSimulator"`
	Questions   []QuestionRequest  `json:"questions"`
}

type ProgramUpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	PriceCents  *int64  `json:"priceCents"`
	IsPremium   *bool   `json:"isPremium"`
	IsPublished *bool   `json:"isPublished"`
}

// ExamView 学生可见的考试配置
type ExamView struct {
	Enabled          bool `json:"enabled"`
	TimeLimit        int  `json:"timeLimit"`
	TotalMarks       int  `json:"totalMarks"`
	MaxAttempts      int  `json:"maxAttempts"`
	ShuffleQuestions bool `json:"shuffleQuestions"`
	TotalQuestions   int  `json:"totalQuestions"`
}

// ProgramView 课程公开视图，不含答案
type ProgramView struct {
	ID            uint     `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Category      string   `json:"category"`
	PriceCents    int64    `json:"priceCents"`
	IsPremium     bool     `json:"isPremium"`
	ExamSimulator ExamView `json:"examSimulator"`
}

// ProgramDetail 课程管理视图，含完整题目
type ProgramDetail struct {
	*model.Program
	Questions []model.Question `json:"questions"`
}

func newProgramView(p *model.Program, questionCount int) ProgramView {
	return ProgramView{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		PriceCents:  p.PriceCents,
		IsPremium:   p.IsPremium,
		ExamSimulator: ExamView{
			Enabled:          p.ExamSimulator.Enabled,
			TimeLimit:        p.ExamSimulator.TimeLimit,
			TotalMarks:       p.ExamSimulator.TotalMarks,
			MaxAttempts:      p.ExamSimulator.MaxAttempts,
			ShuffleQuestions: p.ExamSimulator.ShuffleQuestions,
			TotalQuestions:   questionCount,
		},
	}
}

// ValidateQuestion 校验题目定义
func ValidateQuestion(req QuestionRequest) error {
	if !model.IsSupportedQuestionType(req.Type) {
		return util.NewValidation("unsupported question type %q", req.Type)
	}
	if strings.TrimSpace(req.QuestionText) == "" {
		return util.NewValidation("questionText is required")
	}
	if req.Mark < 0 {
		return util.NewValidation("mark must not be negative")
	}
	if len(req.CorrectAnswers) == 0 {
		return util.NewValidation("at least one correct answer is required")
	}

	if model.IsChoiceType(req.Type) {
		if len(req.Options) < 2 {
			return util.NewValidation("choice questions need at least two options")
		}
		keys := make(map[string]struct{}, len(req.Options))
		for _, o := range req.Options {
			if o.Key == "" {
				return util.NewValidation("option key must not be empty")
			}
			if _, dup := keys[o.Key]; dup {
				return util.NewValidation("duplicate option key %q", o.Key)
			}
			keys[o.Key] = struct{}{}
		}
		for _, c := range req.CorrectAnswers {
			if _, ok := keys[c]; !ok {
				return util.NewValidation("correct answer %q is not an option key", c)
			}
		}
		if req.Type == model.QuestionSingleChoice && len(req.CorrectAnswers) != 1 {
			return util.NewValidation("single-choice questions need exactly one correct answer")
		}
	}
	return nil
}

func applyQuestion(q *model.Question, req QuestionRequest) {
	q.Type = req.Type
	q.QuestionText = req.QuestionText
	q.Mark = req.Mark
	q.Options = req.Options
	q.CorrectAnswers = req.CorrectAnswers
	q.Explanation = req.Explanation
	if req.Position != nil {
		q.Position = *req.Position
	}
	// 文本题不保留选项
	if !model.IsChoiceType(req.Type) {
		q.Options = nil
	}
}

func applyExamConfig(exam *model.ExamSimulator, req *ExamConfigRequest) error {
	if req == nil {
		return nil
	}
	if req.TimeLimit != nil && *req.TimeLimit < 0 {
		return util.NewValidation("timeLimit must not be negative")
	}
	if req.MaxAttempts != nil && *req.MaxAttempts < 0 {
		return util.NewValidation("maxAttempts must not be negative")
	}
	if req.Enabled != nil {
		exam.Enabled = *req.Enabled
	}
	if req.TimeLimit != nil {
		exam.TimeLimit = *req.TimeLimit
	}
	if req.MaxAttempts != nil {
		exam.MaxAttempts = *req.MaxAttempts
	}
	if req.ShuffleQuestions != nil {
		exam.ShuffleQuestions = *req.ShuffleQuestions
	}
	return nil
}

func notFoundOr(err error, appErr error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return appErr
	}
	return err
}

// loadManaged 加载课程并校验所有权
func (s *ProgramService) loadManaged(actor Actor, programID uint) (*model.Program, error) {
	program, err := s.ProgramRepo.FindByID(programID)
	if err != nil {
		return nil, notFoundOr(err, util.ErrProgramNotFound)
	}
	if !actor.IsAdmin() && program.OwnerID != actor.UserID {
		return nil, util.ErrPermissionDenied
	}
	return program, nil
}

func (s *ProgramService) invalidate(programID uint) {
	if err := s.Cache.Invalidate(context.Background(), programID); err != nil {
		logger.Log.Warn("Failed to invalidate program cache", zap.Uint("programId", programID), zap.Error(err))
	}
}

// CreateProgram 创建课程，总分为题目分值之和
func (s *ProgramService) CreateProgram(ownerID uint, req ProgramCreateRequest) (*ProgramDetail, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, util.NewValidation("name is required")
	}
	if req.PriceCents < 0 {
		return nil, util.NewValidation("priceCents must not be negative")
	}

	program := &model.Program{
		OwnerID:     ownerID,
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		PriceCents:  req.PriceCents,
		IsPremium:   req.IsPremium,
		IsPublished: req.IsPublished,
	}
	if err := applyExamConfig(&program.ExamSimulator, req.Exam); err != nil {
		return nil, err
	}

	total := 0
	for i, qReq := range req.Questions {
		if err := ValidateQuestion(qReq); err != nil {
			return nil, err
		}
		q := model.Question{Position: i}
		applyQuestion(&q, qReq)
		program.Questions = append(program.Questions, q)
		total += q.Mark
	}
	program.ExamSimulator.TotalMarks = total

	if err := s.ProgramRepo.Create(program); err != nil {
		return nil, err
	}

	logger.Log.Info("Program created",
		zap.Uint("programId", program.ID),
		zap.Uint("ownerId", ownerID),
		zap.Int("questions", len(program.Questions)))

	return &ProgramDetail{Program: program, Questions: program.Questions}, nil
}

func (s *ProgramService) UpdateProgram(actor Actor, programID uint, req ProgramUpdateRequest) (*model.Program, error) {
	program, err := s.loadManaged(actor, programID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, util.NewValidation("name must not be empty")
		}
		program.Name = *req.Name
	}
	if req.Description != nil {
		program.Description = *req.Description
	}
	if req.Category != nil {
		program.Category = *req.Category
	}
	if req.PriceCents != nil {
		if *req.PriceCents < 0 {
			return nil, util.NewValidation("priceCents must not be negative")
		}
		program.PriceCents = *req.PriceCents
	}
	if req.IsPremium != nil {
		program.IsPremium = *req.IsPremium
	}
	if req.IsPublished != nil {
		program.IsPublished = *req.IsPublished
	}

	if err := s.ProgramRepo.Update(program); err != nil {
		return nil, err
	}
	s.invalidate(programID)
	return program, nil
}

func (s *ProgramService) UpdateExamConfig(actor Actor, programID uint, req ExamConfigRequest) (*model.Program, error) {
	program, err := s.loadManaged(actor, programID)
	if err != nil {
		return nil, err
	}
	if err := applyExamConfig(&program.ExamSimulator, &req); err != nil {
		return nil, err
	}
	if err := s.ProgramRepo.Update(program); err != nil {
		return nil, err
	}
	s.invalidate(programID)
	return program, nil
}

func (s *ProgramService) DeleteProgram(actor Actor, programID uint) error {
	if _, err := s.loadManaged(actor, programID); err != nil {
		return err
	}
	if err := s.ProgramRepo.Delete(programID); err != nil {
		return err
	}
	s.invalidate(programID)
	return nil
}

// GetProgramDetail 管理视图，包含正确答案
func (s *ProgramService) GetProgramDetail(actor Actor, programID uint) (*ProgramDetail, error) {
	if _, err := s.loadManaged(actor, programID); err != nil {
		return nil, err
	}
	program, err := s.ProgramRepo.FindWithQuestions(programID)
	if err != nil {
		return nil, notFoundOr(err, util.ErrProgramNotFound)
	}
	return &ProgramDetail{Program: program, Questions: program.Questions}, nil
}

// GetProgramView 公开视图，优先读缓存
func (s *ProgramService) GetProgramView(ctx context.Context, programID uint) (*ProgramView, error) {
	var cached ProgramView
	if hit, err := s.Cache.Get(ctx, programID, &cached); err != nil {
		logger.Log.Warn("Program cache read failed", zap.Uint("programId", programID), zap.Error(err))
	} else if hit {
		return &cached, nil
	}

	program, err := s.ProgramRepo.FindWithQuestions(programID)
	if err != nil {
		return nil, notFoundOr(err, util.ErrProgramNotFound)
	}
	if !program.IsPublished {
		return nil, util.ErrProgramNotFound
	}

	view := newProgramView(program, len(program.Questions))
	if err := s.Cache.Set(ctx, programID, view); err != nil {
		logger.Log.Warn("Program cache write failed", zap.Uint("programId", programID), zap.Error(err))
	}
	return &view, nil
}

func (s *ProgramService) ListPrograms(filter repository.ProgramFilter, page, limit int) ([]ProgramView, int64, error) {
	programs, total, err := s.ProgramRepo.List(filter, page, limit)
	if err != nil {
		return nil, 0, err
	}

	ids := make([]uint, 0, len(programs))
	for _, p := range programs {
		ids = append(ids, p.ID)
	}
	counts, err := s.questionCounts(ids)
	if err != nil {
		return nil, 0, err
	}

	views := make([]ProgramView, 0, len(programs))
	for i := range programs {
		views = append(views, newProgramView(&programs[i], counts[programs[i].ID]))
	}
	return views, total, nil
}

func (s *ProgramService) questionCounts(programIDs []uint) (map[uint]int, error) {
	counts := make(map[uint]int, len(programIDs))
	if len(programIDs) == 0 {
		return counts, nil
	}
	var rows []struct {
		ProgramID uint
		Total     int
	}
	err := s.DB.Model(&model.Question{}).
		Select("program_id, COUNT(*) AS total").
		Where("program_id IN ?", programIDs).
		Group("program_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		counts[r.ProgramID] = r.Total
	}
	return counts, nil
}

func (s *ProgramService) Categories() ([]string, error) {
	return s.ProgramRepo.Categories()
}

// AddQuestion 添加题目，总分增加该题分值
func (s *ProgramService) AddQuestion(actor Actor, programID uint, req QuestionRequest) (*model.Question, error) {
	if _, err := s.loadManaged(actor, programID); err != nil {
		return nil, err
	}
	if err := ValidateQuestion(req); err != nil {
		return nil, err
	}

	q := &model.Question{ProgramID: programID}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		repo := s.ProgramRepo.WithTx(tx)
		if req.Position == nil {
			pos, err := repo.NextQuestionPosition(programID)
			if err != nil {
				return err
			}
			q.Position = pos
		}
		applyQuestion(q, req)
		if err := repo.CreateQuestion(q); err != nil {
			return err
		}
		return repo.AdjustTotalMarks(programID, q.Mark)
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(programID)
	return q, nil
}

// UpdateQuestion 修改题目，总分按分值差调整
func (s *ProgramService) UpdateQuestion(actor Actor, programID, questionID uint, req QuestionRequest) (*model.Question, error) {
	if _, err := s.loadManaged(actor, programID); err != nil {
		return nil, err
	}
	if err := ValidateQuestion(req); err != nil {
		return nil, err
	}

	var updated *model.Question
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		repo := s.ProgramRepo.WithTx(tx)
		q, err := repo.FindQuestion(programID, questionID)
		if err != nil {
			return notFoundOr(err, util.ErrQuestionNotFound)
		}
		delta := req.Mark - q.Mark
		applyQuestion(q, req)
		if err := repo.UpdateQuestion(q); err != nil {
			return err
		}
		updated = q
		return repo.AdjustTotalMarks(programID, delta)
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(programID)
	return updated, nil
}

// DeleteQuestion 删除题目，总分扣除该题分值
func (s *ProgramService) DeleteQuestion(actor Actor, programID, questionID uint) error {
	if _, err := s.loadManaged(actor, programID); err != nil {
		return err
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		repo := s.ProgramRepo.WithTx(tx)
		q, err := repo.FindQuestion(programID, questionID)
		if err != nil {
			return notFoundOr(err, util.ErrQuestionNotFound)
		}
		if err := repo.DeleteQuestion(q); err != nil {
			return err
		}
		return repo.AdjustTotalMarks(programID, -q.Mark)
	})
	if err != nil {
		return err
	}
	s.invalidate(programID)
	return nil
}
