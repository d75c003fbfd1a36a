package service

import (
	"elearn_backend/internal/config"
	"elearn_backend/internal/model"
	"elearn_backend/internal/repository"
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	err = db.AutoMigrate(model.AllModels()...)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, email string, role model.UserRole) *model.User {
	t.Helper()
	u := &model.User{Name: "User " + email, Email: email, Password: "x", Role: role}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func seedProgram(t *testing.T, db *gorm.DB, ownerID uint, exam model.ExamSimulator, questions ...model.Question) *model.Program {
	t.Helper()
	total := 0
	for i := range questions {
		questions[i].ID = 0
		questions[i].Position = i
		total += questions[i].Mark
	}
	exam.TotalMarks = total
	p := &model.Program{
		OwnerID:       ownerID,
		Name:          "Go Basics",
		Category:      "programming",
		IsPublished:   true,
		ExamSimulator: exam,
		Questions:     questions,
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("seed program: %v", err)
	}
	return p
}

type attemptFixture struct {
	db       *gorm.DB
	attempts *AttemptService
	programs *ProgramService
}

func newAttemptFixture(t *testing.T) *attemptFixture {
	t.Helper()
	db := newTestDB(t)
	programRepo := repository.NewProgramRepository(db)
	svc := NewAttemptService(
		repository.NewQuizAttemptRepository(db),
		programRepo,
		repository.NewUserRepository(db),
		repository.NewAchievementRepository(db),
		nil,
		nil,
		db,
		config.DefaultQuizConfig(),
	)
	return &attemptFixture{
		db:       db,
		attempts: svc,
		programs: NewProgramService(programRepo, repository.NewProgramCache(nil), db),
	}
}
