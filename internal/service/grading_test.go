package service

import (
	"elearn_backend/internal/model"
	"testing"
)

func question(id uint, typ string, mark int, correct ...string) model.Question {
	q := model.Question{Type: typ, Mark: mark, CorrectAnswers: correct}
	q.ID = id
	return q
}

func TestIsAnswerCorrect(t *testing.T) {
	single := question(1, model.QuestionSingleChoice, 5, "a")
	multi := question(2, model.QuestionMultiChoice, 5, "a", "c")
	text := question(3, model.QuestionText, 5, "Paris", "paris city")
	gap := question(4, model.QuestionFillInGap, 5, "goroutine")

	cases := []struct {
		name     string
		q        model.Question
		selected []string
		want     bool
	}{
		{"single correct", single, []string{"a"}, true},
		{"single wrong", single, []string{"b"}, false},
		{"single two answers", single, []string{"a", "b"}, false},
		{"single duplicate correct", single, []string{"a", "a"}, false},
		{"single empty", single, []string{}, false},
		{"single nil", single, nil, false},
		{"multi exact", multi, []string{"a", "c"}, true},
		{"multi reordered", multi, []string{"c", "a"}, true},
		{"multi duplicate entries", multi, []string{"c", "a", "a"}, true},
		{"multi subset", multi, []string{"a"}, false},
		{"multi superset", multi, []string{"a", "b", "c"}, false},
		{"text case and spaces", text, []string{"  pARIS "}, true},
		{"text alternative", text, []string{"Paris City"}, true},
		{"text only first answer counts", text, []string{"london", "paris"}, false},
		{"text wrong", text, []string{"Lyon"}, false},
		{"gap", gap, []string{"Goroutine\n"}, true},
		{"unknown type", question(5, "essay", 5, "x"), []string{"x"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsAnswerCorrect(tc.q, tc.selected); got != tc.want {
				t.Fatalf("IsAnswerCorrect(%v) = %v, want %v", tc.selected, got, tc.want)
			}
		})
	}
}

func TestIsAnswerCorrectDeterministic(t *testing.T) {
	q := question(1, model.QuestionMultiChoice, 1, "x", "y", "z")
	for i := 0; i < 50; i++ {
		if !IsAnswerCorrect(q, []string{"z", "y", "x"}) {
			t.Fatalf("iteration %d: expected correct", i)
		}
	}
}

func TestPercentage(t *testing.T) {
	cases := []struct {
		score, total, want int
	}{
		{5, 10, 50},
		{0, 10, 0},
		{10, 10, 100},
		{1, 3, 33},
		{2, 3, 67},
		{1, 8, 13}, // 12.5 向上取整
		{7, 0, 0},
		{12, 10, 100},
		{-1, 10, 0},
	}
	for _, tc := range cases {
		if got := Percentage(tc.score, tc.total); got != tc.want {
			t.Errorf("Percentage(%d,%d) = %d, want %d", tc.score, tc.total, got, tc.want)
		}
	}
}

func TestAggregateScoreScenario(t *testing.T) {
	questions := []model.Question{
		question(1, model.QuestionSingleChoice, 5, "a"),
		question(2, model.QuestionSingleChoice, 5, "b"),
	}
	answers := []model.SubmittedAnswer{
		{QuestionID: 1, SelectedAnswers: []string{"a"}},
		{QuestionID: 2, SelectedAnswers: []string{"c"}},
	}

	got := AggregateScore(questions, answers, 10, 70)

	if got.Score != 5 || got.Percentage != 50 || got.Passed {
		t.Fatalf("score=%d percentage=%d passed=%v", got.Score, got.Percentage, got.Passed)
	}
	if got.CorrectAnswers != 1 || got.IncorrectAnswers != 1 || got.SkippedAnswers != 0 {
		t.Fatalf("counts correct=%d incorrect=%d skipped=%d", got.CorrectAnswers, got.IncorrectAnswers, got.SkippedAnswers)
	}
	if len(got.QuestionResults) != 2 || !got.QuestionResults[0].IsCorrect || got.QuestionResults[1].IsCorrect {
		t.Fatalf("unexpected breakdown: %+v", got.QuestionResults)
	}
}

func TestAggregateScoreSkippedAndUnanswered(t *testing.T) {
	questions := []model.Question{
		question(1, model.QuestionSingleChoice, 4, "a"),
		question(2, model.QuestionText, 3, "go"),
		question(3, model.QuestionMultiChoice, 3, "x", "y"),
	}
	answers := []model.SubmittedAnswer{
		{QuestionID: 1, SelectedAnswers: []string{}},
		{QuestionID: 2, SelectedAnswers: []string{"Go"}},
	}

	got := AggregateScore(questions, answers, 10, 70)

	if got.SkippedAnswers != 1 {
		t.Errorf("skipped = %d, want 1", got.SkippedAnswers)
	}
	if got.IncorrectAnswers != 0 {
		t.Errorf("incorrect = %d, want 0", got.IncorrectAnswers)
	}
	if got.UnansweredQuestions != 1 {
		t.Errorf("unanswered = %d, want 1", got.UnansweredQuestions)
	}
	if got.Score != 3 || got.Percentage != 30 {
		t.Errorf("score=%d percentage=%d", got.Score, got.Percentage)
	}
	if !got.QuestionResults[0].Skipped || got.QuestionResults[0].MarksAwarded != 0 {
		t.Errorf("skipped question result = %+v", got.QuestionResults[0])
	}
}

func TestAggregateScorePassThreshold(t *testing.T) {
	questions := []model.Question{
		question(1, model.QuestionSingleChoice, 7, "a"),
		question(2, model.QuestionSingleChoice, 3, "b"),
	}
	answers := []model.SubmittedAnswer{{QuestionID: 1, SelectedAnswers: []string{"a"}}}

	if got := AggregateScore(questions, answers, 10, 70); !got.Passed || got.Percentage != 70 {
		t.Fatalf("70%% should pass: %+v", got)
	}
	if got := AggregateScore(questions, answers, 10, 71); got.Passed {
		t.Fatalf("70%% should fail a 71 threshold")
	}
	if got := AggregateScore(questions, answers, 0, 70); got.Percentage != 0 || got.Passed {
		t.Fatalf("zero total marks: %+v", got)
	}
}
