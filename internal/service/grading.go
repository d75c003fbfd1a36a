package service

import (
	"elearn_backend/internal/model"
	"strings"
)

// QuestionResult 单题评分明细
type QuestionResult struct {
	QuestionNumber  int      `json:"questionNumber"`
	QuestionID      uint     `json:"questionId"`
	Type            string   `json:"type"`
	QuestionText    string   `json:"questionText"`
	Mark            int      `json:"mark"`
	SelectedAnswers []string `json:"selectedAnswers"`
	CorrectAnswers  []string `json:"correctAnswers"`
	IsCorrect       bool     `json:"isCorrect"`
	Skipped         bool     `json:"skipped"`
	Answered        bool     `json:"answered"`
	MarksAwarded    int      `json:"marksAwarded"`
	Explanation     string   `json:"explanation"`
}

// ScoreSummary 一次提交的汇总结果
type ScoreSummary struct {
	Score               int              `json:"score"`
	TotalMarks          int              `json:"totalMarks"`
	Percentage          int              `json:"percentage"`
	Passed              bool             `json:"passed"`
	CorrectAnswers      int              `json:"correctAnswers"`
	IncorrectAnswers    int              `json:"incorrectAnswers"`
	SkippedAnswers      int              `json:"skippedAnswers"`
	UnansweredQuestions int              `json:"unansweredQuestions"`
	QuestionResults     []QuestionResult `json:"questionResults"`
}

// IsAnswerCorrect 按题型判断作答是否正确，空答案一律视为错误
func IsAnswerCorrect(q model.Question, selected []string) bool {
	if len(selected) == 0 {
		return false
	}

	switch q.Type {
	case model.QuestionSingleChoice:
		if len(selected) != 1 {
			return false
		}
		for _, c := range q.CorrectAnswers {
			if c == selected[0] {
				return true
			}
		}
		return false

	case model.QuestionMultiChoice:
		return sameSet(selected, q.CorrectAnswers)

	case model.QuestionText, model.QuestionFillInGap:
		given := normalizeText(selected[0])
		for _, c := range q.CorrectAnswers {
			if given == normalizeText(c) {
				return true
			}
		}
		return false
	}

	return false
}

func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// sameSet 集合相等，忽略顺序与重复
func sameSet(a, b []string) bool {
	left := make(map[string]struct{}, len(a))
	for _, v := range a {
		left[v] = struct{}{}
	}
	right := make(map[string]struct{}, len(b))
	for _, v := range b {
		right[v] = struct{}{}
	}
	if len(left) != len(right) {
		return false
	}
	for v := range left {
		if _, ok := right[v]; !ok {
			return false
		}
	}
	return true
}

// Percentage 四舍五入到整数百分比，总分为 0 时返回 0，结果限制在 [0,100]
func Percentage(score, totalMarks int) int {
	if totalMarks <= 0 || score <= 0 {
		return 0
	}
	p := (score*200 + totalMarks) / (2 * totalMarks)
	if p > 100 {
		return 100
	}
	return p
}

// AggregateScore 逐题评分并汇总，题目顺序决定明细顺序
func AggregateScore(questions []model.Question, answers []model.SubmittedAnswer, totalMarks, passThreshold int) ScoreSummary {
	byQuestion := make(map[uint][]string, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a.SelectedAnswers
	}

	summary := ScoreSummary{
		TotalMarks:      totalMarks,
		QuestionResults: make([]QuestionResult, 0, len(questions)),
	}

	for i, q := range questions {
		selected, answered := byQuestion[q.ID]
		res := QuestionResult{
			QuestionNumber:  i + 1,
			QuestionID:      q.ID,
			Type:            q.Type,
			QuestionText:    q.QuestionText,
			Mark:            q.Mark,
			SelectedAnswers: selected,
			CorrectAnswers:  []string(q.CorrectAnswers),
			Answered:        answered,
			Explanation:     q.Explanation,
		}
		if res.SelectedAnswers == nil {
			res.SelectedAnswers = []string{}
		}
		if res.CorrectAnswers == nil {
			res.CorrectAnswers = []string{}
		}

		switch {
		case !answered:
			summary.UnansweredQuestions++
		case len(selected) == 0:
			res.Skipped = true
			summary.SkippedAnswers++
		case IsAnswerCorrect(q, selected):
			res.IsCorrect = true
			res.MarksAwarded = q.Mark
			summary.Score += q.Mark
			summary.CorrectAnswers++
		default:
			summary.IncorrectAnswers++
		}

		summary.QuestionResults = append(summary.QuestionResults, res)
	}

	summary.Percentage = Percentage(summary.Score, totalMarks)
	summary.Passed = summary.Percentage >= passThreshold
	return summary
}
