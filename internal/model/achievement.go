package model

const (
	AchievementQuizPassed = "quiz_passed"
)

type Achievement struct {
	BaseModel
	UserID    uint   `gorm:"index" json:"userId"`
	Type      string `gorm:"size:50;index" json:"type"`
	Name      string `gorm:"size:255;not null" json:"name"`
	ProgramID *uint  `gorm:"index" json:"programId,omitempty"`
	AttemptID *uint  `json:"attemptId,omitempty"`
	Score     int    `gorm:"default:0" json:"score"`
}

func (Achievement) TableName() string {
	return "achievements"
}
