package service

import (
	"elearn_backend/internal/model"
	"elearn_backend/internal/repository"

	"golang.org/x/sync/errgroup"
)

const dashboardRecentAttempts = 5

type DashboardService struct {
	Users        *UserService
	Attempts     *AttemptService
	Achievements *repository.AchievementRepository
	Certificates *CertificateService
	Payments     *PaymentService
}

func NewDashboardService(
	users *UserService,
	attempts *AttemptService,
	achievements *repository.AchievementRepository,
	certificates *CertificateService,
	payments *PaymentService,
) *DashboardService {
	return &DashboardService{
		Users:        users,
		Attempts:     attempts,
		Achievements: achievements,
		Certificates: certificates,
		Payments:     payments,
	}
}

type LearningStats struct {
	QuizzesCompleted int     `json:"quizzesCompleted"`
	AverageScore     float64 `json:"averageScore"`
	AttemptsTotal    int64   `json:"attemptsTotal"`
	CertificateCount int     `json:"certificateCount"`
}

type Dashboard struct {
	User           *model.User         `json:"user"`
	LearningStats  LearningStats       `json:"learningStats"`
	RecentAttempts []AttemptListItem   `json:"recentAttempts"`
	Achievements   []model.Achievement `json:"achievements"`
	Certificates   []model.Certificate `json:"certificates"`
	Subscription   *model.Subscription `json:"subscription"`
}

// GetUserDashboard 并发读取各项数据，任一失败即返回错误
func (s *DashboardService) GetUserDashboard(userID uint) (*Dashboard, error) {
	var (
		d     Dashboard
		total int64
		g     errgroup.Group
	)

	g.Go(func() error {
		user, err := s.Users.GetProfile(userID)
		d.User = user
		return err
	})
	g.Go(func() error {
		items, n, err := s.Attempts.ListUserAttempts(repository.AttemptFilter{UserID: userID}, 1, dashboardRecentAttempts)
		d.RecentAttempts, total = items, n
		return err
	})
	g.Go(func() error {
		achievements, err := s.Achievements.FindByUserID(userID)
		d.Achievements = achievements
		return err
	})
	g.Go(func() error {
		certs, err := s.Certificates.ListForUser(userID)
		d.Certificates = certs
		return err
	})
	g.Go(func() error {
		sub, err := s.Payments.GetSubscription(userID)
		d.Subscription = sub
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	d.LearningStats = LearningStats{
		QuizzesCompleted: d.User.QuizzesCompleted,
		AverageScore:     d.User.AverageScore,
		AttemptsTotal:    total,
		CertificateCount: len(d.Certificates),
	}
	return &d, nil
}
