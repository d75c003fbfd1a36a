package service

import (
	"context"
	"elearn_backend/internal/model"
	"elearn_backend/internal/repository"
	"elearn_backend/internal/util"
	"errors"
	"testing"
)

func choice(text string, mark int, correct ...string) QuestionRequest {
	return QuestionRequest{
		Type:           model.QuestionSingleChoice,
		QuestionText:   text,
		Mark:           mark,
		Options:        []model.QuestionOption{{Key: "a", Value: "A"}, {Key: "b", Value: "B"}, {Key: "c", Value: "C"}},
		CorrectAnswers: correct,
	}
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func TestValidateQuestion(t *testing.T) {
	multi := choice("multi", 2, "a", "b")
	multi.Type = model.QuestionMultiChoice

	dupKeys := choice("dup", 1, "a")
	dupKeys.Options = []model.QuestionOption{{Key: "a"}, {Key: "a"}}

	cases := []struct {
		name    string
		req     QuestionRequest
		wantErr bool
	}{
		{"valid single", choice("q", 1, "a"), false},
		{"valid multi", multi, false},
		{"valid text", QuestionRequest{Type: model.QuestionText, QuestionText: "capital?", Mark: 1, CorrectAnswers: []string{"Paris"}}, false},
		{"unknown type", QuestionRequest{Type: "essay", QuestionText: "x", CorrectAnswers: []string{"x"}}, true},
		{"empty text", choice(" ", 1, "a"), true},
		{"negative mark", choice("q", -1, "a"), true},
		{"no correct answer", choice("q", 1), true},
		{"correct not an option", choice("q", 1, "z"), true},
		{"single with two answers", choice("q", 1, "a", "b"), true},
		{"duplicate option keys", dupKeys, true},
		{"choice without options", QuestionRequest{Type: model.QuestionMultiChoice, QuestionText: "q", CorrectAnswers: []string{"a"}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateQuestion(tc.req)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if err != nil && !errors.Is(err, util.ErrValidation) {
				t.Fatalf("err kind = %v", err)
			}
		})
	}
}

func TestProgramTotalMarksFollowsQuestions(t *testing.T) {
	f := newAttemptFixture(t)
	owner := seedUser(t, f.db, "owner@example.com", model.Instructor)
	actor := Actor{UserID: owner.ID, Role: model.Instructor}

	detail, err := f.programs.CreateProgram(owner.ID, ProgramCreateRequest{
		Name:      "Go Basics",
		Exam:      &ExamConfigRequest{Enabled: boolPtr(true), TimeLimit: intPtr(20)},
		Questions: []QuestionRequest{choice("q1", 5, "a"), choice("q2", 3, "b")},
	})
	if err != nil {
		t.Fatalf("CreateProgram: %v", err)
	}
	if detail.ExamSimulator.TotalMarks != 8 || len(detail.Questions) != 2 {
		t.Fatalf("created: total=%d questions=%d", detail.ExamSimulator.TotalMarks, len(detail.Questions))
	}

	totalMarks := func() int {
		t.Helper()
		p, err := f.programs.ProgramRepo.FindByID(detail.ID)
		if err != nil {
			t.Fatalf("reload: %v", err)
		}
		return p.ExamSimulator.TotalMarks
	}

	added, err := f.programs.AddQuestion(actor, detail.ID, choice("q3", 4, "c"))
	if err != nil {
		t.Fatalf("AddQuestion: %v", err)
	}
	if got := totalMarks(); got != 12 {
		t.Fatalf("after add total = %d, want 12", got)
	}
	if added.Position != 2 {
		t.Fatalf("position = %d, want 2", added.Position)
	}

	if _, err := f.programs.UpdateQuestion(actor, detail.ID, added.ID, choice("q3", 1, "c")); err != nil {
		t.Fatalf("UpdateQuestion: %v", err)
	}
	if got := totalMarks(); got != 9 {
		t.Fatalf("after update total = %d, want 9", got)
	}

	if err := f.programs.DeleteQuestion(actor, detail.ID, detail.Questions[0].ID); err != nil {
		t.Fatalf("DeleteQuestion: %v", err)
	}
	if got := totalMarks(); got != 4 {
		t.Fatalf("after delete total = %d, want 4", got)
	}

	if err := f.programs.DeleteQuestion(actor, detail.ID, 9999); !errors.Is(err, util.ErrQuestionNotFound) {
		t.Fatalf("missing question err = %v", err)
	}
}

func TestProgramOwnership(t *testing.T) {
	f := newAttemptFixture(t)
	owner := seedUser(t, f.db, "owner@example.com", model.Instructor)
	other := seedUser(t, f.db, "other@example.com", model.Instructor)
	admin := seedUser(t, f.db, "admin@example.com", model.Admin)

	detail, err := f.programs.CreateProgram(owner.ID, ProgramCreateRequest{Name: "Mine"})
	if err != nil {
		t.Fatalf("CreateProgram: %v", err)
	}

	name := "Renamed"
	_, err = f.programs.UpdateProgram(Actor{UserID: other.ID, Role: model.Instructor}, detail.ID, ProgramUpdateRequest{Name: &name})
	if !errors.Is(err, util.ErrPermissionDenied) {
		t.Fatalf("non-owner update err = %v", err)
	}

	updated, err := f.programs.UpdateProgram(Actor{UserID: admin.ID, Role: model.Admin}, detail.ID, ProgramUpdateRequest{Name: &name})
	if err != nil || updated.Name != name {
		t.Fatalf("admin update = %+v, %v", updated, err)
	}

	if err := f.programs.DeleteProgram(Actor{UserID: owner.ID, Role: model.Instructor}, detail.ID); err != nil {
		t.Fatalf("DeleteProgram: %v", err)
	}
	if _, err := f.programs.GetProgramDetail(Actor{UserID: owner.ID}, detail.ID); !errors.Is(err, util.ErrProgramNotFound) {
		t.Fatalf("deleted program err = %v", err)
	}
}

func TestProgramPublicView(t *testing.T) {
	f := newAttemptFixture(t)
	owner := seedUser(t, f.db, "owner@example.com", model.Instructor)

	published, _ := f.programs.CreateProgram(owner.ID, ProgramCreateRequest{
		Name: "Public", Category: "go", IsPublished: true,
		Questions: []QuestionRequest{choice("q1", 2, "a")},
	})
	draft, _ := f.programs.CreateProgram(owner.ID, ProgramCreateRequest{Name: "Draft", Category: "rust"})

	view, err := f.programs.GetProgramView(context.Background(), published.ID)
	if err != nil {
		t.Fatalf("GetProgramView: %v", err)
	}
	if view.ExamSimulator.TotalQuestions != 1 || view.ExamSimulator.TotalMarks != 2 {
		t.Fatalf("view = %+v", view)
	}
	if _, err := f.programs.GetProgramView(context.Background(), draft.ID); !errors.Is(err, util.ErrProgramNotFound) {
		t.Fatalf("draft view err = %v", err)
	}

	list, total, err := f.programs.ListPrograms(repository.ProgramFilter{PublishedOnly: true}, 1, 10)
	if err != nil || total != 1 || list[0].Name != "Public" || list[0].ExamSimulator.TotalQuestions != 1 {
		t.Fatalf("ListPrograms = %+v, %d, %v", list, total, err)
	}

	cats, err := f.programs.Categories()
	if err != nil || len(cats) != 1 || cats[0] != "go" {
		t.Fatalf("Categories = %v, %v", cats, err)
	}
}

func TestUpdateExamConfigValidation(t *testing.T) {
	f := newAttemptFixture(t)
	owner := seedUser(t, f.db, "owner@example.com", model.Instructor)
	actor := Actor{UserID: owner.ID, Role: model.Instructor}
	detail, _ := f.programs.CreateProgram(owner.ID, ProgramCreateRequest{Name: "Exam"})

	if _, err := f.programs.UpdateExamConfig(actor, detail.ID, ExamConfigRequest{MaxAttempts: intPtr(-1)}); !errors.Is(err, util.ErrValidation) {
		t.Fatalf("negative maxAttempts err = %v", err)
	}

	p, err := f.programs.UpdateExamConfig(actor, detail.ID, ExamConfigRequest{Enabled: boolPtr(true), MaxAttempts: intPtr(2), ShuffleQuestions: boolPtr(true)})
	if err != nil {
		t.Fatalf("UpdateExamConfig: %v", err)
	}
	if !p.ExamSimulator.Enabled || p.ExamSimulator.MaxAttempts != 2 || !p.ExamSimulator.ShuffleQuestions {
		t.Fatalf("exam = %+v", p.ExamSimulator)
	}
}
