package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	AttemptInProgress = "in-progress"
	AttemptCompleted  = "completed"
	AttemptAbandoned  = "abandoned"
	// AttemptSubmitted 历史数据中的已提交状态，计数时等同 completed
	AttemptSubmitted = "submitted"
)

// CountedAttemptStatuses 计入尝试次数上限的状态
var CountedAttemptStatuses = []string{AttemptCompleted, AttemptSubmitted}

type SubmittedAnswer struct {
	QuestionID      uint     `json:"questionId"`
	SelectedAnswers []string `json:"selectedAnswers"`
}

// swagger:model QuizAttempt
type QuizAttempt struct {
	BaseModel

	UserID        uint   `gorm:"index:idx_attempt_user_program;not null" json:"userId"`
	ProgramID     uint   `gorm:"index:idx_attempt_user_program;not null" json:"programId"`
	Status        string `gorm:"size:20;index;not null" json:"status"`
	TimeAllocated int    `gorm:"default:0" json:"timeAllocated"` // 分钟
	TotalMarks    int    `gorm:"default:0" json:"totalMarks"`

	Answers          datatypes.JSONSlice[SubmittedAnswer] `json:"answers"`
	QuestionSnapshot datatypes.JSONSlice[Question]        `json:"-"`

	Score            int  `gorm:"default:0" json:"score"`
	Percentage       int  `gorm:"default:0" json:"percentage"`
	Passed           bool `gorm:"default:false" json:"passed"`
	CorrectAnswers   int  `gorm:"default:0" json:"correctAnswers"`
	IncorrectAnswers int  `gorm:"default:0" json:"incorrectAnswers"`
	SkippedAnswers   int  `gorm:"default:0" json:"skippedAnswers"`
	TimeTaken        int  `gorm:"default:0" json:"timeTaken"` // 秒

	StartedAt   time.Time  `json:"startedAt"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
	AbandonedAt *time.Time `json:"abandonedAt,omitempty"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}
