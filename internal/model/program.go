package model

import (
	"gorm.io/datatypes"
)

const (
	QuestionSingleChoice = "single-choice"
	QuestionMultiChoice  = "multi-choice"
	QuestionText         = "text"
	QuestionFillInGap    = "fill-in-gap"
)

// IsChoiceType 选择题需要选项
func IsChoiceType(t string) bool {
	return t == QuestionSingleChoice || t == QuestionMultiChoice
}

// IsSupportedQuestionType 判断题型是否受支持
func IsSupportedQuestionType(t string) bool {
	switch t {
	case QuestionSingleChoice, QuestionMultiChoice, QuestionText, QuestionFillInGap:
		return true
	}
	return false
}

// ExamSimulator 课程内嵌的考试配置
type ExamSimulator struct {
	Enabled          bool `gorm:"default:false" json:"enabled"`
	TimeLimit        int  `gorm:"default:0" json:"timeLimit"` // 分钟
	TotalMarks       int  `gorm:"default:0" json:"totalMarks"`
	MaxAttempts      int  `gorm:"default:0" json:"maxAttempts"` // 0 表示使用全局默认值
	ShuffleQuestions bool `gorm:"default:false" json:"shuffleQuestions"`
}

// swagger:model Program
type Program struct {
	BaseModel

	OwnerID       uint          `gorm:"index" json:"ownerId"`
	Name          string        `gorm:"size:255;not null" json:"name"`
	Description   string        `gorm:"type:text" json:"description"`
	Category      string        `gorm:"size:100;index" json:"category"`
	PriceCents    int64         `gorm:"default:0" json:"priceCents"`
	IsPremium     bool          `gorm:"default:false" json:"isPremium"`
	IsPublished   bool          `gorm:"default:false" json:"isPublished"`
	ExamSimulator ExamSimulator `gorm:"embedded;embeddedPrefix:exam_" json:"examSimulator"`

	Questions []Question `gorm:"foreignKey:ProgramID" json:"-"`
}

func (Program) TableName() string {
	return "programs"
}

type QuestionOption struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// swagger:model Question
type Question struct {
	BaseModel

	ProgramID      uint                                `gorm:"index;not null" json:"programId"`
	Position       int                                 `gorm:"default:0" json:"position"`
	Type           string                              `gorm:"size:20;not null" json:"type"`
	QuestionText   string                              `gorm:"type:text;not null" json:"questionText"`
	Mark           int                                 `gorm:"default:0" json:"mark"`
	Options        datatypes.JSONSlice[QuestionOption] `json:"options"`
	CorrectAnswers datatypes.JSONSlice[string]         `json:"correctAnswers"`
	Explanation    string                              `gorm:"type:text" json:"explanation"`
}

func (Question) TableName() string {
	return "program_questions"
}
