package model

import "time"

// swagger:model Certificate
type Certificate struct {
	BaseModel
	Serial        string    `gorm:"size:36;uniqueIndex;not null" json:"serial"`
	UserID        uint      `gorm:"uniqueIndex:idx_cert_user_program;not null" json:"userId"`
	ProgramID     uint      `gorm:"uniqueIndex:idx_cert_user_program;not null" json:"programId"`
	AttemptID     uint      `json:"attemptId"`
	RecipientName string    `gorm:"size:100" json:"recipientName"`
	ProgramName   string    `gorm:"size:255" json:"programName"`
	Percentage    int       `json:"percentage"`
	URL           string    `gorm:"size:512" json:"url"`
	IssuedAt      time.Time `json:"issuedAt"`
}

func (Certificate) TableName() string {
	return "certificates"
}
