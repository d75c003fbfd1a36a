package service

import (
	"context"
	"elearn_backend/internal/config"
	"elearn_backend/internal/model"
	"elearn_backend/internal/repository"
	"elearn_backend/internal/util"
	"errors"
	"sync"
	"testing"
)

type stubEntitlements struct {
	allowed bool
	calls   int
}

func (s *stubEntitlements) HasAccess(userID uint, program *model.Program) (bool, error) {
	s.calls++
	return s.allowed, nil
}

type stubIssuer struct {
	issued []uint
	err    error
}

func (s *stubIssuer) IssueForAttempt(ctx context.Context, attempt *model.QuizAttempt, program *model.Program) (*model.Certificate, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.issued = append(s.issued, attempt.ID)
	return &model.Certificate{Serial: "serial", UserID: attempt.UserID, ProgramID: program.ID, Percentage: attempt.Percentage}, nil
}

func twoQuestionExam(t *testing.T, f *attemptFixture, ownerID uint, maxAttempts int) *model.Program {
	t.Helper()
	return seedProgram(t, f.db, ownerID,
		model.ExamSimulator{Enabled: true, TimeLimit: 30, MaxAttempts: maxAttempts},
		question(0, model.QuestionSingleChoice, 5, "a"),
		question(0, model.QuestionSingleChoice, 5, "b"),
	)
}

func answersFor(p *model.Program, selected ...[]string) []model.SubmittedAnswer {
	out := make([]model.SubmittedAnswer, 0, len(selected))
	for i, s := range selected {
		out = append(out, model.SubmittedAnswer{QuestionID: p.Questions[i].ID, SelectedAnswers: s})
	}
	return out
}

func TestStartAttemptSnapshotsExam(t *testing.T) {
	f := newAttemptFixture(t)
	user := seedUser(t, f.db, "s@example.com", model.Student)
	program := twoQuestionExam(t, f, 99, 3)

	resp, err := f.attempts.StartAttempt(user.ID, program.ID)
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	if resp.TimeLimit != 30 || resp.TotalMarks != 10 || resp.TotalQuestions != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.AttemptsUsed != 0 || resp.MaxAttempts != 3 {
		t.Fatalf("attemptsUsed=%d maxAttempts=%d", resp.AttemptsUsed, resp.MaxAttempts)
	}
	for i, q := range resp.Questions {
		if q.QuestionNumber != i+1 {
			t.Errorf("question %d numbered %d", i, q.QuestionNumber)
		}
	}

	var stored model.QuizAttempt
	if err := f.db.First(&stored, resp.AttemptID).Error; err != nil {
		t.Fatalf("load attempt: %v", err)
	}
	if stored.Status != model.AttemptInProgress || stored.TimeAllocated != 30 || stored.TotalMarks != 10 {
		t.Fatalf("stored attempt: %+v", stored)
	}
	if len(stored.QuestionSnapshot) != 2 || len(stored.QuestionSnapshot[0].CorrectAnswers) != 1 {
		t.Fatalf("snapshot not stored: %+v", stored.QuestionSnapshot)
	}
}

func TestStartAttemptShuffle(t *testing.T) {
	f := newAttemptFixture(t)
	user := seedUser(t, f.db, "s@example.com", model.Student)
	program := seedProgram(t, f.db, 99,
		model.ExamSimulator{Enabled: true, ShuffleQuestions: true},
		question(0, model.QuestionSingleChoice, 1, "a"),
		question(0, model.QuestionSingleChoice, 1, "a"),
		question(0, model.QuestionSingleChoice, 1, "a"),
	)

	// 反转代替随机排列
	f.attempts.shuffle = func(n int, swap func(i, j int)) {
		for i := 0; i < n/2; i++ {
			swap(i, n-1-i)
		}
	}

	resp, err := f.attempts.StartAttempt(user.ID, program.ID)
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	if resp.Questions[0].QuestionID != program.Questions[2].ID || resp.Questions[2].QuestionID != program.Questions[0].ID {
		t.Fatalf("questions not shuffled: %+v", resp.Questions)
	}
	if resp.Questions[0].QuestionNumber != 1 {
		t.Fatalf("numbering must follow presented order")
	}
}

func TestStartAttemptExamUnavailable(t *testing.T) {
	f := newAttemptFixture(t)
	user := seedUser(t, f.db, "s@example.com", model.Student)
	disabled := seedProgram(t, f.db, 99, model.ExamSimulator{Enabled: false},
		question(0, model.QuestionText, 1, "x"))

	cases := []struct {
		name      string
		programID uint
		want      error
	}{
		{"missing program", 12345, util.ErrProgramNotFound},
		{"disabled exam", disabled.ID, util.ErrExamNotAvailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.attempts.StartAttempt(user.ID, tc.programID)
			if !errors.Is(err, tc.want) || !errors.Is(err, util.ErrNotFound) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestSubmitAttemptScenario(t *testing.T) {
	f := newAttemptFixture(t)
	user := seedUser(t, f.db, "s@example.com", model.Student)
	program := twoQuestionExam(t, f, 99, 3)

	start, err := f.attempts.StartAttempt(user.ID, program.ID)
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}

	res, err := f.attempts.SubmitAttempt(context.Background(), start.AttemptID, user.ID, SubmitAttemptRequest{
		Answers:   answersFor(program, []string{"a"}, []string{"c"}),
		TimeTaken: 120,
	})
	if err != nil {
		t.Fatalf("SubmitAttempt: %v", err)
	}
	if res.Score != 5 || res.Percentage != 50 || res.Passed {
		t.Fatalf("score=%d percentage=%d passed=%v", res.Score, res.Percentage, res.Passed)
	}
	if res.CorrectAnswers != 1 || res.IncorrectAnswers != 1 || res.SkippedAnswers != 0 {
		t.Fatalf("correct=%d incorrect=%d skipped=%d", res.CorrectAnswers, res.IncorrectAnswers, res.SkippedAnswers)
	}
	if res.Status != model.AttemptCompleted || res.SubmittedAt == nil || res.TimeTaken != 120 {
		t.Fatalf("result: %+v", res)
	}

	var stored model.QuizAttempt
	f.db.First(&stored, start.AttemptID)
	if stored.Status != model.AttemptCompleted || stored.Score != 5 || len(stored.Answers) != 2 {
		t.Fatalf("stored attempt: %+v", stored)
	}

	var u model.User
	f.db.First(&u, user.ID)
	if u.QuizzesCompleted != 1 || u.AverageScore != 50 {
		t.Fatalf("stats completed=%d average=%v", u.QuizzesCompleted, u.AverageScore)
	}

	var achievements int64
	f.db.Model(&model.Achievement{}).Where("user_id = ?", user.ID).Count(&achievements)
	if achievements != 0 {
		t.Fatalf("failed attempt must not add an achievement")
	}
}

func TestSubmitAttemptPassedSideEffects(t *testing.T) {
	f := newAttemptFixture(t)
	issuer := &stubIssuer{}
	f.attempts.Certificates = issuer
	user := seedUser(t, f.db, "s@example.com", model.Student)
	program := twoQuestionExam(t, f, 99, 3)

	for i, pct := range []int{100, 50} {
		start, err := f.attempts.StartAttempt(user.ID, program.ID)
		if err != nil {
			t.Fatalf("start %d: %v", i, err)
		}
		second := []string{"b"}
		if pct == 50 {
			second = []string{"x"}
		}
		if _, err := f.attempts.SubmitAttempt(context.Background(), start.AttemptID, user.ID, SubmitAttemptRequest{
			Answers: answersFor(program, []string{"a"}, second),
		}); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}

	var u model.User
	f.db.First(&u, user.ID)
	if u.QuizzesCompleted != 2 || u.AverageScore != 75 {
		t.Fatalf("rolling average: completed=%d average=%v", u.QuizzesCompleted, u.AverageScore)
	}

	var achievements []model.Achievement
	f.db.Where("user_id = ?", user.ID).Find(&achievements)
	if len(achievements) != 1 || achievements[0].Type != model.AchievementQuizPassed || achievements[0].Score != 100 {
		t.Fatalf("achievements: %+v", achievements)
	}
	if len(issuer.issued) != 1 {
		t.Fatalf("certificate issued %d times, want 1", len(issuer.issued))
	}
}

func TestSubmitAttemptCertificateFailureDoesNotFail(t *testing.T) {
	f := newAttemptFixture(t)
	f.attempts.Certificates = &stubIssuer{err: errors.New("storage down")}
	user := seedUser(t, f.db, "s@example.com", model.Student)
	program := twoQuestionExam(t, f, 99, 3)

	start, _ := f.attempts.StartAttempt(user.ID, program.ID)
	res, err := f.attempts.SubmitAttempt(context.Background(), start.AttemptID, user.ID, SubmitAttemptRequest{
		Answers: answersFor(program, []string{"a"}, []string{"b"}),
	})
	if err != nil {
		t.Fatalf("SubmitAttempt: %v", err)
	}
	if !res.Passed || res.Certificate != nil {
		t.Fatalf("result: %+v", res)
	}
}

func TestAttemptLimit(t *testing.T) {
	f := newAttemptFixture(t)
	user := seedUser(t, f.db, "s@example.com", model.Student)
	program := twoQuestionExam(t, f, 99, 1)

	start, err := f.attempts.StartAttempt(user.ID, program.ID)
	if err != nil {
		t.Fatalf("first start: %v", err)
	}
	if _, err := f.attempts.SubmitAttempt(context.Background(), start.AttemptID, user.ID, SubmitAttemptRequest{}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	_, err = f.attempts.StartAttempt(user.ID, program.ID)
	var appErr *util.AppError
	if !errors.As(err, &appErr) || appErr.Kind != util.KindForbidden {
		t.Fatalf("second start err = %v, want forbidden", err)
	}
	if appErr.Message != "Maximum attempts (1) reached" {
		t.Fatalf("message = %q", appErr.Message)
	}

	can, err := f.attempts.CanStart(user.ID, program.ID)
	if err != nil {
		t.Fatalf("CanStart: %v", err)
	}
	if can.Allowed || can.AttemptsUsed != 1 || can.MaxAttempts != 1 {
		t.Fatalf("CanStart = %+v", can)
	}
}

func TestConcurrentSubmitsRespectCeiling(t *testing.T) {
	f := newAttemptFixture(t)
	user := seedUser(t, f.db, "s@example.com", model.Student)
	program := twoQuestionExam(t, f, 99, 2)

	// 进行中的尝试不计数，可同时开启三个
	ids := make([]uint, 0, 3)
	for i := 0; i < 3; i++ {
		start, err := f.attempts.StartAttempt(user.ID, program.ID)
		if err != nil {
			t.Fatalf("start %d: %v", i, err)
		}
		ids = append(ids, start.AttemptID)
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(ids))
	for _, id := range ids {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			_, err := f.attempts.SubmitAttempt(context.Background(), id, user.ID, SubmitAttemptRequest{
				Answers: answersFor(program, []string{"a"}),
			})
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)

	succeeded, limited := 0, 0
	for err := range errs {
		var appErr *util.AppError
		switch {
		case err == nil:
			succeeded++
		case errors.As(err, &appErr) && appErr.Kind == util.KindForbidden:
			limited++
		default:
			t.Fatalf("unexpected err: %v", err)
		}
	}
	if succeeded != 2 || limited != 1 {
		t.Fatalf("succeeded=%d limited=%d, want 2 and 1", succeeded, limited)
	}

	var completed int64
	f.db.Model(&model.QuizAttempt{}).Where("user_id = ? AND status = ?", user.ID, model.AttemptCompleted).Count(&completed)
	if completed != 2 {
		t.Fatalf("completed = %d, want 2", completed)
	}

	var u model.User
	f.db.First(&u, user.ID)
	if u.QuizzesCompleted != 2 {
		t.Fatalf("quizzesCompleted = %d, want 2", u.QuizzesCompleted)
	}
}

func TestAttemptLimitIgnoresAbandonedAndCountsLegacySubmitted(t *testing.T) {
	f := newAttemptFixture(t)
	user := seedUser(t, f.db, "s@example.com", model.Student)
	program := twoQuestionExam(t, f, 99, 2)

	start, _ := f.attempts.StartAttempt(user.ID, program.ID)
	if _, err := f.attempts.AbandonAttempt(start.AttemptID, user.ID); err != nil {
		t.Fatalf("abandon: %v", err)
	}
	legacy := &model.QuizAttempt{UserID: user.ID, ProgramID: program.ID, Status: model.AttemptSubmitted}
	f.db.Create(legacy)

	can, err := f.attempts.CanStart(user.ID, program.ID)
	if err != nil {
		t.Fatalf("CanStart: %v", err)
	}
	if !can.Allowed || can.AttemptsUsed != 1 || can.MaxAttempts != 2 {
		t.Fatalf("CanStart = %+v", can)
	}
}

func TestDefaultMaxAttemptsFromPolicy(t *testing.T) {
	f := newAttemptFixture(t)
	user := seedUser(t, f.db, "s@example.com", model.Student)
	program := twoQuestionExam(t, f, 99, 0)

	can, err := f.attempts.CanStart(user.ID, program.ID)
	if err != nil {
		t.Fatalf("CanStart: %v", err)
	}
	if can.MaxAttempts != 3 {
		t.Fatalf("maxAttempts = %d, want default 3", can.MaxAttempts)
	}

	policy := config.DefaultQuizConfig()
	policy.DefaultMaxAttempts = 5
	f.attempts.UpdatePolicy(policy)
	can, _ = f.attempts.CanStart(user.ID, program.ID)
	if can.MaxAttempts != 5 {
		t.Fatalf("maxAttempts = %d after policy update, want 5", can.MaxAttempts)
	}
}

func TestSubmitAttemptRejectsNonInProgress(t *testing.T) {
	f := newAttemptFixture(t)
	user := seedUser(t, f.db, "s@example.com", model.Student)
	other := seedUser(t, f.db, "o@example.com", model.Student)
	program := twoQuestionExam(t, f, 99, 5)

	submitted, _ := f.attempts.StartAttempt(user.ID, program.ID)
	if _, err := f.attempts.SubmitAttempt(context.Background(), submitted.AttemptID, user.ID, SubmitAttemptRequest{}); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	abandoned, _ := f.attempts.StartAttempt(user.ID, program.ID)
	f.attempts.AbandonAttempt(abandoned.AttemptID, user.ID)
	foreign, _ := f.attempts.StartAttempt(user.ID, program.ID)

	cases := []struct {
		name      string
		attemptID uint
		userID    uint
	}{
		{"already completed", submitted.AttemptID, user.ID},
		{"abandoned", abandoned.AttemptID, user.ID},
		{"owned by someone else", foreign.AttemptID, other.ID},
		{"missing", 9999, user.ID},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.attempts.SubmitAttempt(context.Background(), tc.attemptID, tc.userID, SubmitAttemptRequest{})
			if !errors.Is(err, util.ErrAttemptNotFound) {
				t.Fatalf("err = %v, want attempt not found", err)
			}
		})
	}

	var stored model.QuizAttempt
	f.db.First(&stored, submitted.AttemptID)
	if stored.Status != model.AttemptCompleted {
		t.Fatalf("completed attempt changed to %s", stored.Status)
	}
}

func TestSubmitAttemptValidation(t *testing.T) {
	f := newAttemptFixture(t)
	user := seedUser(t, f.db, "s@example.com", model.Student)
	program := twoQuestionExam(t, f, 99, 5)
	start, _ := f.attempts.StartAttempt(user.ID, program.ID)

	q1 := program.Questions[0].ID
	cases := []struct {
		name string
		req  SubmitAttemptRequest
	}{
		{"unknown question", SubmitAttemptRequest{Answers: []model.SubmittedAnswer{{QuestionID: 4242, SelectedAnswers: []string{"a"}}}}},
		{"duplicate question", SubmitAttemptRequest{Answers: []model.SubmittedAnswer{{QuestionID: q1}, {QuestionID: q1}}}},
		{"negative time", SubmitAttemptRequest{TimeTaken: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.attempts.SubmitAttempt(context.Background(), start.AttemptID, user.ID, tc.req)
			if !errors.Is(err, util.ErrValidation) {
				t.Fatalf("err = %v, want validation error", err)
			}
		})
	}

	var stored model.QuizAttempt
	f.db.First(&stored, start.AttemptID)
	if stored.Status != model.AttemptInProgress {
		t.Fatalf("rejected submission changed status to %s", stored.Status)
	}
}

func TestSubmitAttemptSkippedAnswer(t *testing.T) {
	f := newAttemptFixture(t)
	user := seedUser(t, f.db, "s@example.com", model.Student)
	program := twoQuestionExam(t, f, 99, 3)
	start, _ := f.attempts.StartAttempt(user.ID, program.ID)

	res, err := f.attempts.SubmitAttempt(context.Background(), start.AttemptID, user.ID, SubmitAttemptRequest{
		Answers: answersFor(program, []string{"a"}, []string{}),
	})
	if err != nil {
		t.Fatalf("SubmitAttempt: %v", err)
	}
	if res.SkippedAnswers != 1 || res.IncorrectAnswers != 0 || res.Score != 5 {
		t.Fatalf("skipped=%d incorrect=%d score=%d", res.SkippedAnswers, res.IncorrectAnswers, res.Score)
	}
}

func TestScoringLiveVersusSnapshot(t *testing.T) {
	cases := []struct {
		name        string
		useSnapshot bool
		wantScore   int
	}{
		{"live questions", false, 0},
		{"snapshot", true, 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newAttemptFixture(t)
			policy := config.DefaultQuizConfig()
			policy.ScoreAgainstSnapshot = tc.useSnapshot
			f.attempts.UpdatePolicy(policy)

			owner := seedUser(t, f.db, "owner@example.com", model.Instructor)
			user := seedUser(t, f.db, "s@example.com", model.Student)
			program := seedProgram(t, f.db, owner.ID, model.ExamSimulator{Enabled: true},
				model.Question{Type: model.QuestionSingleChoice, QuestionText: "Pick", Mark: 5,
					Options:        []model.QuestionOption{{Key: "a", Value: "A"}, {Key: "b", Value: "B"}},
					CorrectAnswers: []string{"a"}},
			)
			start, _ := f.attempts.StartAttempt(user.ID, program.ID)

			// 作答期间修改正确答案
			_, err := f.programs.UpdateQuestion(Actor{UserID: owner.ID, Role: model.Instructor}, program.ID, program.Questions[0].ID, QuestionRequest{
				Type:           model.QuestionSingleChoice,
				QuestionText:   "Pick",
				Mark:           5,
				Options:        []model.QuestionOption{{Key: "a", Value: "A"}, {Key: "b", Value: "B"}},
				CorrectAnswers: []string{"b"},
			})
			if err != nil {
				t.Fatalf("UpdateQuestion: %v", err)
			}

			res, err := f.attempts.SubmitAttempt(context.Background(), start.AttemptID, user.ID, SubmitAttemptRequest{
				Answers: answersFor(program, []string{"a"}),
			})
			if err != nil {
				t.Fatalf("SubmitAttempt: %v", err)
			}
			if res.Score != tc.wantScore {
				t.Fatalf("score = %d, want %d", res.Score, tc.wantScore)
			}
		})
	}
}

func TestAbandonAttempt(t *testing.T) {
	f := newAttemptFixture(t)
	user := seedUser(t, f.db, "s@example.com", model.Student)
	program := twoQuestionExam(t, f, 99, 3)
	start, _ := f.attempts.StartAttempt(user.ID, program.ID)

	resp, err := f.attempts.AbandonAttempt(start.AttemptID, user.ID)
	if err != nil {
		t.Fatalf("AbandonAttempt: %v", err)
	}
	if resp.Status != model.AttemptAbandoned || resp.AbandonedAt.IsZero() {
		t.Fatalf("resp = %+v", resp)
	}
	if _, err := f.attempts.AbandonAttempt(start.AttemptID, user.ID); !errors.Is(err, util.ErrAttemptNotFound) {
		t.Fatalf("second abandon err = %v", err)
	}
	if _, err := f.attempts.GetResult(start.AttemptID, user.ID); !errors.Is(err, util.ErrAttemptNotFound) {
		t.Fatalf("result of abandoned attempt err = %v", err)
	}
}

func TestGetResult(t *testing.T) {
	f := newAttemptFixture(t)
	user := seedUser(t, f.db, "s@example.com", model.Student)
	program := twoQuestionExam(t, f, 99, 3)
	start, _ := f.attempts.StartAttempt(user.ID, program.ID)

	if _, err := f.attempts.GetResult(start.AttemptID, user.ID); !errors.Is(err, util.ErrAttemptNotFound) {
		t.Fatalf("in-progress result err = %v", err)
	}

	f.attempts.SubmitAttempt(context.Background(), start.AttemptID, user.ID, SubmitAttemptRequest{
		Answers: answersFor(program, []string{"a"}),
	})

	res, err := f.attempts.GetResult(start.AttemptID, user.ID)
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if res.Score != 5 || res.Percentage != 50 || res.ProgramName != "Go Basics" {
		t.Fatalf("result = %+v", res)
	}
	if len(res.QuestionResults) != 2 || !res.QuestionResults[0].IsCorrect || res.QuestionResults[1].Answered {
		t.Fatalf("breakdown = %+v", res.QuestionResults)
	}
	if res.QuestionResults[0].Explanation != "" || res.QuestionResults[0].CorrectAnswers[0] != "a" {
		t.Fatalf("breakdown must carry correct answers: %+v", res.QuestionResults[0])
	}
}

func TestPremiumProgramRequiresEntitlement(t *testing.T) {
	f := newAttemptFixture(t)
	ents := &stubEntitlements{}
	f.attempts.Entitlements = ents
	user := seedUser(t, f.db, "s@example.com", model.Student)
	program := twoQuestionExam(t, f, 99, 3)
	f.db.Model(program).Update("is_premium", true)

	if _, err := f.attempts.StartAttempt(user.ID, program.ID); !errors.Is(err, util.ErrEntitlementRequired) {
		t.Fatalf("err = %v, want entitlement required", err)
	}
	can, err := f.attempts.CanStart(user.ID, program.ID)
	if err != nil || can.Allowed {
		t.Fatalf("CanStart = %+v, %v", can, err)
	}

	ents.allowed = true
	if _, err := f.attempts.StartAttempt(user.ID, program.ID); err != nil {
		t.Fatalf("entitled start: %v", err)
	}
}

func TestListUserAttempts(t *testing.T) {
	f := newAttemptFixture(t)
	user := seedUser(t, f.db, "s@example.com", model.Student)
	program := twoQuestionExam(t, f, 99, 5)

	first, _ := f.attempts.StartAttempt(user.ID, program.ID)
	f.attempts.SubmitAttempt(context.Background(), first.AttemptID, user.ID, SubmitAttemptRequest{})
	f.attempts.StartAttempt(user.ID, program.ID)

	items, total, err := f.attempts.ListUserAttempts(repository.AttemptFilter{UserID: user.ID}, 1, 10)
	if err != nil {
		t.Fatalf("ListUserAttempts: %v", err)
	}
	if total != 2 || len(items) != 2 || items[0].ProgramName != "Go Basics" {
		t.Fatalf("total=%d items=%+v", total, items)
	}

	items, total, _ = f.attempts.ListUserAttempts(repository.AttemptFilter{UserID: user.ID, Status: model.AttemptCompleted}, 1, 10)
	if total != 1 || items[0].ID != first.AttemptID {
		t.Fatalf("completed filter: total=%d", total)
	}
}
