package service

import (
	"context"
	"elearn_backend/internal/config"
	"elearn_backend/internal/model"
	"elearn_backend/internal/repository"
	"elearn_backend/internal/util"
	"elearn_backend/pkg/logger"
	"elearn_backend/pkg/monitoring"
	"errors"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EntitlementChecker 判断用户是否已购买付费课程
type EntitlementChecker interface {
	HasAccess(userID uint, program *model.Program) (bool, error)
}

// CertificateIssuer 通过考试后颁发证书
type CertificateIssuer interface {
	IssueForAttempt(ctx context.Context, attempt *model.QuizAttempt, program *model.Program) (*model.Certificate, error)
}

type AttemptService struct {
	AttemptRepo     *repository.QuizAttemptRepository
	ProgramRepo     *repository.ProgramRepository
	UserRepo        *repository.UserRepository
	AchievementRepo *repository.AchievementRepository
	Entitlements    EntitlementChecker
	Certificates    CertificateIssuer
	DB              *gorm.DB

	mu     sync.RWMutex
	policy config.QuizConfig

	shuffle func(n int, swap func(i, j int))
	now     func() time.Time
}

func NewAttemptService(
	attemptRepo *repository.QuizAttemptRepository,
	programRepo *repository.ProgramRepository,
	userRepo *repository.UserRepository,
	achievementRepo *repository.AchievementRepository,
	entitlements EntitlementChecker,
	certificates CertificateIssuer,
	db *gorm.DB,
	policy config.QuizConfig,
) *AttemptService {
	return &AttemptService{
		AttemptRepo:     attemptRepo,
		ProgramRepo:     programRepo,
		UserRepo:        userRepo,
		AchievementRepo: achievementRepo,
		Entitlements:    entitlements,
		Certificates:    certificates,
		DB:              db,
		policy:          policy,
		shuffle:         rand.Shuffle,
		now:             time.Now,
	}
}

// UpdatePolicy 配置热更新时替换测验策略
func (s *AttemptService) UpdatePolicy(policy config.QuizConfig) {
	s.mu.Lock()
	s.policy = policy
	s.mu.Unlock()
	logger.Log.Info("Quiz policy updated",
		zap.Int("passThreshold", policy.PassThreshold),
		zap.Int("defaultMaxAttempts", policy.DefaultMaxAttempts),
		zap.Bool("scoreAgainstSnapshot", policy.ScoreAgainstSnapshot))
}

func (s *AttemptService) Policy() config.QuizConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy
}

func (s *AttemptService) maxAttempts(program *model.Program) int {
	if program.ExamSimulator.MaxAttempts > 0 {
		return program.ExamSimulator.MaxAttempts
	}
	return s.Policy().DefaultMaxAttempts
}

type AttemptQuestion struct {
	QuestionNumber int                    `json:"questionNumber"`
	QuestionID     uint                   `json:"questionId"`
	Type           string                 `json:"type"`
	QuestionText   string                 `json:"questionText"`
	Mark           int                    `json:"mark"`
	Options        []model.QuestionOption `json:"options"`
}

type StartAttemptResponse struct {
	AttemptID      uint              `json:"attemptId"`
	TimeLimit      int               `json:"timeLimit"`
	TotalMarks     int               `json:"totalMarks"`
	TotalQuestions int               `json:"totalQuestions"`
	Questions      []AttemptQuestion `json:"questions"`
	AttemptsUsed   int               `json:"attemptsUsed"`
	MaxAttempts    int               `json:"maxAttempts"`
	StartedAt      time.Time         `json:"startedAt"`
}

type CanStartResponse struct {
	Allowed      bool   `json:"allowed"`
	AttemptsUsed int    `json:"attemptsUsed"`
	MaxAttempts  int    `json:"maxAttempts"`
	Reason       string `json:"reason,omitempty"`
}

type SubmitAttemptRequest struct {
	Answers   []model.SubmittedAnswer `json:"answers"`
	TimeTaken int                     `json:"timeTaken"` // 秒
}

// AttemptResult 提交结果或历史结果
type AttemptResult struct {
	AttemptID   uint       `json:"attemptId"`
	ProgramID   uint       `json:"programId"`
	ProgramName string     `json:"programName"`
	Status      string     `json:"status"`
	TimeTaken   int        `json:"timeTaken"`
	StartedAt   time.Time  `json:"startedAt"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
	ScoreSummary
	Certificate *model.Certificate `json:"certificate,omitempty"`
}

type AbandonResponse struct {
	AttemptID   uint      `json:"attemptId"`
	Status      string    `json:"status"`
	AbandonedAt time.Time `json:"abandonedAt"`
}

type AttemptListItem struct {
	model.QuizAttempt
	ProgramName string `json:"programName"`
}

// loadExam 加载可作答的课程，考试未启用时视为不存在
func (s *AttemptService) loadExam(userID, programID uint) (*model.Program, error) {
	program, err := s.ProgramRepo.FindWithQuestions(programID)
	if err != nil {
		return nil, notFoundOr(err, util.ErrProgramNotFound)
	}
	if !program.IsPublished && program.OwnerID != userID {
		return nil, util.ErrProgramNotFound
	}
	if !program.ExamSimulator.Enabled {
		return nil, util.ErrExamNotAvailable
	}
	return program, nil
}

func (s *AttemptService) checkEntitlement(userID uint, program *model.Program) error {
	if !program.IsPremium || program.OwnerID == userID || s.Entitlements == nil {
		return nil
	}
	ok, err := s.Entitlements.HasAccess(userID, program)
	if err != nil {
		return err
	}
	if !ok {
		return util.ErrEntitlementRequired
	}
	return nil
}

// CanStart 判断用户能否开始新的尝试
func (s *AttemptService) CanStart(userID, programID uint) (*CanStartResponse, error) {
	program, err := s.loadExam(userID, programID)
	if err != nil {
		return nil, err
	}

	used, err := s.AttemptRepo.CountCounted(userID, programID)
	if err != nil {
		return nil, err
	}

	resp := &CanStartResponse{
		AttemptsUsed: int(used),
		MaxAttempts:  s.maxAttempts(program),
	}
	resp.Allowed = resp.AttemptsUsed < resp.MaxAttempts
	if !resp.Allowed {
		resp.Reason = util.AttemptLimitExceeded(resp.MaxAttempts).Message
		return resp, nil
	}

	if err := s.checkEntitlement(userID, program); err != nil {
		var appErr *util.AppError
		if errors.As(err, &appErr) && appErr.Kind == util.KindForbidden {
			resp.Allowed = false
			resp.Reason = appErr.Message
			return resp, nil
		}
		return nil, err
	}
	return resp, nil
}

// StartAttempt 在同一事务内检查次数并创建尝试
func (s *AttemptService) StartAttempt(userID, programID uint) (*StartAttemptResponse, error) {
	program, err := s.loadExam(userID, programID)
	if err != nil {
		return nil, err
	}
	if err := s.checkEntitlement(userID, program); err != nil {
		return nil, err
	}

	maxAttempts := s.maxAttempts(program)
	attempt := &model.QuizAttempt{
		UserID:           userID,
		ProgramID:        programID,
		Status:           model.AttemptInProgress,
		TimeAllocated:    program.ExamSimulator.TimeLimit,
		TotalMarks:       program.ExamSimulator.TotalMarks,
		QuestionSnapshot: program.Questions,
		StartedAt:        s.now(),
	}

	var used int64
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		// 锁住用户行，串行化同一用户的并发开始请求
		if _, err := s.UserRepo.WithTx(tx).LockByID(userID); err != nil {
			return notFoundOr(err, util.ErrUserNotFound)
		}

		attempts := s.AttemptRepo.WithTx(tx)
		count, err := attempts.CountCounted(userID, programID)
		if err != nil {
			return err
		}
		if int(count) >= maxAttempts {
			return util.AttemptLimitExceeded(maxAttempts)
		}
		used = count
		return attempts.Create(attempt)
	})
	if err != nil {
		return nil, err
	}

	monitoring.AttemptsStarted.Inc()
	logger.Log.Info("Quiz attempt started",
		zap.Uint("attemptId", attempt.ID),
		zap.Uint("userId", userID),
		zap.Uint("programId", programID),
		zap.Int64("attemptsUsed", used))

	questions := make([]AttemptQuestion, 0, len(program.Questions))
	for _, q := range program.Questions {
		options := []model.QuestionOption(q.Options)
		if options == nil {
			options = []model.QuestionOption{}
		}
		questions = append(questions, AttemptQuestion{
			QuestionID:   q.ID,
			Type:         q.Type,
			QuestionText: q.QuestionText,
			Mark:         q.Mark,
			Options:      options,
		})
	}
	if program.ExamSimulator.ShuffleQuestions {
		s.shuffle(len(questions), func(i, j int) {
			questions[i], questions[j] = questions[j], questions[i]
		})
	}
	for i := range questions {
		questions[i].QuestionNumber = i + 1
	}

	return &StartAttemptResponse{
		AttemptID:      attempt.ID,
		TimeLimit:      attempt.TimeAllocated,
		TotalMarks:     attempt.TotalMarks,
		TotalQuestions: len(questions),
		Questions:      questions,
		AttemptsUsed:   int(used),
		MaxAttempts:    maxAttempts,
		StartedAt:      attempt.StartedAt,
	}, nil
}

// scoringSet 选出评分使用的题目和总分
func (s *AttemptService) scoringSet(attempt *model.QuizAttempt, program *model.Program, useSnapshot bool) ([]model.Question, int) {
	if program == nil || (useSnapshot && len(attempt.QuestionSnapshot) > 0) {
		return attempt.QuestionSnapshot, attempt.TotalMarks
	}
	return program.Questions, program.ExamSimulator.TotalMarks
}

func validateAnswers(questions []model.Question, answers []model.SubmittedAnswer) error {
	known := make(map[uint]struct{}, len(questions))
	for _, q := range questions {
		known[q.ID] = struct{}{}
	}
	seen := make(map[uint]struct{}, len(answers))
	for _, a := range answers {
		if _, ok := known[a.QuestionID]; !ok {
			return util.NewValidation("question %d does not belong to this exam", a.QuestionID)
		}
		if _, dup := seen[a.QuestionID]; dup {
			return util.NewValidation("question %d answered more than once", a.QuestionID)
		}
		seen[a.QuestionID] = struct{}{}
	}
	return nil
}

func (s *AttemptService) loadProgramForScoring(programID uint) (*model.Program, error) {
	program, err := s.ProgramRepo.FindWithQuestions(programID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return program, err
}

// SubmitAttempt 评分并完成尝试，同时更新用户统计
func (s *AttemptService) SubmitAttempt(ctx context.Context, attemptID, userID uint, req SubmitAttemptRequest) (*AttemptResult, error) {
	if req.TimeTaken < 0 {
		return nil, util.NewValidation("timeTaken must not be negative")
	}

	policy := s.Policy()
	var (
		attempt *model.QuizAttempt
		program *model.Program
		summary ScoreSummary
	)

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		// 锁住用户行，串行化同一用户的开始与提交
		if _, err := s.UserRepo.WithTx(tx).LockByID(userID); err != nil {
			return notFoundOr(err, util.ErrAttemptNotFound)
		}

		attempts := s.AttemptRepo.WithTx(tx)

		var err error
		attempt, err = attempts.FindOwned(attemptID, userID, model.AttemptInProgress)
		if err != nil {
			return notFoundOr(err, util.ErrAttemptNotFound)
		}

		// 课程已删除时退回到开始时的快照
		program, err = s.ProgramRepo.WithTx(tx).FindWithQuestions(attempt.ProgramID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		questions, totalMarks := s.scoringSet(attempt, program, policy.ScoreAgainstSnapshot)
		if err := validateAnswers(questions, req.Answers); err != nil {
			return err
		}
		summary = AggregateScore(questions, req.Answers, totalMarks, policy.PassThreshold)

		// 上限可能在尝试开始后被调低
		if program != nil {
			maxAttempts := s.maxAttempts(program)
			used, err := attempts.CountCounted(userID, attempt.ProgramID)
			if err != nil {
				return err
			}
			if int(used) >= maxAttempts {
				return util.AttemptLimitExceeded(maxAttempts)
			}
		}

		submittedAt := s.now()
		ok, err := attempts.Transition(attemptID, userID, model.AttemptInProgress, map[string]interface{}{
			"status":            model.AttemptCompleted,
			"answers":           datatypes.JSONSlice[model.SubmittedAnswer](req.Answers),
			"score":             summary.Score,
			"total_marks":       summary.TotalMarks,
			"percentage":        summary.Percentage,
			"passed":            summary.Passed,
			"correct_answers":   summary.CorrectAnswers,
			"incorrect_answers": summary.IncorrectAnswers,
			"skipped_answers":   summary.SkippedAnswers,
			"time_taken":        req.TimeTaken,
			"submitted_at":      submittedAt,
		})
		if err != nil {
			return err
		}
		if !ok {
			return util.ErrAttemptNotFound
		}

		attempt.Status = model.AttemptCompleted
		attempt.Answers = req.Answers
		attempt.Score = summary.Score
		attempt.TotalMarks = summary.TotalMarks
		attempt.Percentage = summary.Percentage
		attempt.Passed = summary.Passed
		attempt.CorrectAnswers = summary.CorrectAnswers
		attempt.IncorrectAnswers = summary.IncorrectAnswers
		attempt.SkippedAnswers = summary.SkippedAnswers
		attempt.TimeTaken = req.TimeTaken
		attempt.SubmittedAt = &submittedAt

		if err := s.recordStats(tx, userID, summary.Percentage); err != nil {
			return err
		}
		if summary.Passed {
			return s.recordAchievement(tx, attempt, program)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	monitoring.ObserveAttemptFinished(model.AttemptCompleted, summary.Passed)
	logger.Log.Info("Quiz attempt submitted",
		zap.Uint("attemptId", attemptID),
		zap.Uint("userId", userID),
		zap.Int("score", summary.Score),
		zap.Int("percentage", summary.Percentage),
		zap.Bool("passed", summary.Passed))

	result := newAttemptResult(attempt, program, summary)
	if summary.Passed && program != nil && s.Certificates != nil {
		cert, err := s.Certificates.IssueForAttempt(ctx, attempt, program)
		if err != nil {
			logger.Log.Error("Failed to issue certificate",
				zap.Uint("attemptId", attemptID),
				zap.Uint("userId", userID),
				zap.Error(err))
		} else {
			result.Certificate = cert
		}
	}
	return result, nil
}

// recordStats 完成次数加一并更新滚动平均分
func (s *AttemptService) recordStats(tx *gorm.DB, userID uint, percentage int) error {
	users := s.UserRepo.WithTx(tx)
	user, err := users.LockByID(userID)
	if err != nil {
		return notFoundOr(err, util.ErrUserNotFound)
	}
	completed := user.QuizzesCompleted + 1
	average := (user.AverageScore*float64(user.QuizzesCompleted) + float64(percentage)) / float64(completed)
	return users.UpdateQuizStats(userID, completed, average)
}

func (s *AttemptService) recordAchievement(tx *gorm.DB, attempt *model.QuizAttempt, program *model.Program) error {
	name := "Quiz passed"
	if program != nil {
		name = "Passed " + program.Name
	}
	programID := attempt.ProgramID
	attemptID := attempt.ID
	return s.AchievementRepo.WithTx(tx).Create(&model.Achievement{
		UserID:    attempt.UserID,
		Type:      model.AchievementQuizPassed,
		Name:      name,
		ProgramID: &programID,
		AttemptID: &attemptID,
		Score:     attempt.Percentage,
	})
}

func newAttemptResult(attempt *model.QuizAttempt, program *model.Program, summary ScoreSummary) *AttemptResult {
	result := &AttemptResult{
		AttemptID:    attempt.ID,
		ProgramID:    attempt.ProgramID,
		Status:       attempt.Status,
		TimeTaken:    attempt.TimeTaken,
		StartedAt:    attempt.StartedAt,
		SubmittedAt:  attempt.SubmittedAt,
		ScoreSummary: summary,
	}
	if program != nil {
		result.ProgramName = program.Name
	}
	return result
}

// AbandonAttempt 放弃进行中的尝试，不评分
func (s *AttemptService) AbandonAttempt(attemptID, userID uint) (*AbandonResponse, error) {
	abandonedAt := s.now()
	ok, err := s.AttemptRepo.Transition(attemptID, userID, model.AttemptInProgress, map[string]interface{}{
		"status":       model.AttemptAbandoned,
		"abandoned_at": abandonedAt,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, util.ErrAttemptNotFound
	}

	monitoring.ObserveAttemptFinished(model.AttemptAbandoned, false)
	logger.Log.Info("Quiz attempt abandoned", zap.Uint("attemptId", attemptID), zap.Uint("userId", userID))

	return &AbandonResponse{
		AttemptID:   attemptID,
		Status:      model.AttemptAbandoned,
		AbandonedAt: abandonedAt,
	}, nil
}

// GetResult 返回已完成尝试的存储分数和逐题明细
func (s *AttemptService) GetResult(attemptID, userID uint) (*AttemptResult, error) {
	attempt, err := s.AttemptRepo.FindOwned(attemptID, userID, model.AttemptCompleted)
	if err != nil {
		return nil, notFoundOr(err, util.ErrAttemptNotFound)
	}

	program, err := s.loadProgramForScoring(attempt.ProgramID)
	if err != nil {
		return nil, err
	}

	questions, totalMarks := s.scoringSet(attempt, program, s.Policy().ScoreAgainstSnapshot)
	breakdown := AggregateScore(questions, attempt.Answers, totalMarks, s.Policy().PassThreshold)

	// 汇总字段以提交时的存储值为准
	summary := ScoreSummary{
		Score:               attempt.Score,
		TotalMarks:          attempt.TotalMarks,
		Percentage:          attempt.Percentage,
		Passed:              attempt.Passed,
		CorrectAnswers:      attempt.CorrectAnswers,
		IncorrectAnswers:    attempt.IncorrectAnswers,
		SkippedAnswers:      attempt.SkippedAnswers,
		UnansweredQuestions: breakdown.UnansweredQuestions,
		QuestionResults:     breakdown.QuestionResults,
	}
	return newAttemptResult(attempt, program, summary), nil
}

// ListUserAttempts 分页查询用户的尝试记录
func (s *AttemptService) ListUserAttempts(filter repository.AttemptFilter, page, limit int) ([]AttemptListItem, int64, error) {
	attempts, total, err := s.AttemptRepo.List(filter, page, limit)
	if err != nil {
		return nil, 0, err
	}

	ids := make([]uint, 0, len(attempts))
	for _, a := range attempts {
		ids = append(ids, a.ProgramID)
	}
	names, err := s.ProgramRepo.NamesByIDs(ids)
	if err != nil {
		return nil, 0, err
	}

	items := make([]AttemptListItem, 0, len(attempts))
	for _, a := range attempts {
		items = append(items, AttemptListItem{QuizAttempt: a, ProgramName: names[a.ProgramID]})
	}
	return items, total, nil
}
