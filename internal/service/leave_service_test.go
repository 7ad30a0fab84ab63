package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"leave_assessment_backend/internal/model"
	"leave_assessment_backend/internal/repository"
	"leave_assessment_backend/internal/util"
	"leave_assessment_backend/pkg/events"
)

type leaveFixture struct {
	svc      *LeaveService
	repo     *memLeaveRepo
	recorder *events.Recorder
}

func newLeaveFixture() *leaveFixture {
	af := newAssessmentFixture()
	attendance := memAttendance{
		student.UserID: {StudentID: student.UserID, Percentage: 82.5, IsEligible: true},
	}
	svc := NewLeaveService(af.repo, attendance, af.svc, af.recorder, testAssessmentConfig())
	svc.now = func() time.Time { return fixedNow }
	return &leaveFixture{svc: svc, repo: af.repo, recorder: af.recorder}
}

func validCreate() CreateLeaveRequest {
	return CreateLeaveRequest{
		LeaveType:   "Sick Leave",
		Description: "Fever and doctor's appointment",
		StartDate:   "2026-03-05",
		EndDate:     "2026-03-07",
	}
}

func TestCreateLeaveValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateLeaveRequest)
	}{
		{"unknown leave type", func(r *CreateLeaveRequest) { r.LeaveType = "Vacation" }},
		{"short description", func(r *CreateLeaveRequest) { r.Description = "sick" }},
		{"long description", func(r *CreateLeaveRequest) { r.Description = strings.Repeat("a", 501) }},
		{"bad start date", func(r *CreateLeaveRequest) { r.StartDate = "05/03/2026" }},
		{"start in the past", func(r *CreateLeaveRequest) { r.StartDate = "2026-03-01" }},
		{"end before start", func(r *CreateLeaveRequest) { r.EndDate = "2026-03-04" }},
		{"assessment without section", func(r *CreateLeaveRequest) { r.AssessmentRequired = true }},
		{"bad difficulty", func(r *CreateLeaveRequest) {
			r.AssessmentRequired = true
			r.AssessmentSection = "Backend"
			r.AssessmentDifficulty = "impossible"
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newLeaveFixture()
			req := validCreate()
			tc.mutate(&req)
			_, err := f.svc.Create(context.Background(), student, req)
			if util.KindOf(err) != util.KindValidation {
				t.Errorf("error = %v, want validation", err)
			}
			if leaves, _, _ := f.repo.List(context.Background(), repository.LeaveFilter{}); len(leaves) != 0 {
				t.Errorf("invalid request was stored")
			}
		})
	}
}

func TestCreateLeave(t *testing.T) {
	f := newLeaveFixture()

	req := validCreate()
	req.StartDate = "2026-03-02"
	leave, err := f.svc.Create(context.Background(), student, req)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if leave.Status != model.LeavePending || leave.NumberOfDays != 6 {
		t.Errorf("status = %s days = %d, want pending 6", leave.Status, leave.NumberOfDays)
	}
	if leave.AttendancePercentage != 82.5 || !leave.AttendanceEligible {
		t.Errorf("attendance snapshot = %v/%v", leave.AttendancePercentage, leave.AttendanceEligible)
	}
	if leave.Assessment.State() != model.StateNotRequired {
		t.Errorf("assessment state = %s, want not_required", leave.Assessment.State())
	}
	if got := f.recorder.Types(); len(got) != 1 || got[0] != events.LeaveCreated {
		t.Errorf("events = %v", got)
	}
}

func TestCreateLeaveWithAssessment(t *testing.T) {
	f := newLeaveFixture()

	req := validCreate()
	req.AssessmentRequired = true
	req.AssessmentSection = "Frontend"
	req.AssessmentDifficulty = "easy"
	leave, err := f.svc.Create(context.Background(), student, req)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if leave.Assessment.State() != model.StatePending || leave.Assessment.QuestionCount != 5 {
		t.Errorf("assessment = %+v", leave.Assessment)
	}
	if leave.Assessment.Questions != nil {
		t.Errorf("created leave must not expose the question set")
	}

	stored, _ := f.repo.FindByID(context.Background(), leave.ID)
	if len(stored.Assessment.Questions) != 5 || stored.Assessment.Difficulty != model.DifficultyEasy {
		t.Errorf("stored assessment = %+v", stored.Assessment)
	}
	want := []string{events.AssessmentPrepared, events.LeaveCreated}
	got := f.recorder.Types()
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestCreateLeaveAccessAndOverlap(t *testing.T) {
	f := newLeaveFixture()

	if _, err := f.svc.Create(context.Background(), teacher, validCreate()); util.KindOf(err) != util.KindForbidden {
		t.Errorf("teacher create error = %v, want forbidden", err)
	}

	first, err := f.svc.Create(context.Background(), student, validCreate())
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	overlapping := validCreate()
	overlapping.StartDate = "2026-03-07"
	overlapping.EndDate = "2026-03-09"
	if _, err := f.svc.Create(context.Background(), student, overlapping); !errors.Is(err, util.ErrOverlappingLeave) {
		t.Fatalf("overlap error = %v, want ErrOverlappingLeave", err)
	}

	if _, err := f.svc.UpdateStatus(context.Background(), first.ID, teacher, UpdateStatusRequest{Status: model.LeaveRejected}); err != nil {
		t.Fatalf("UpdateStatus returned error: %v", err)
	}
	if _, err := f.svc.Create(context.Background(), student, overlapping); err != nil {
		t.Errorf("rejected leave must not block a new request: %v", err)
	}

	other := model.Requester{UserID: 9, Role: model.Student}
	if _, err := f.svc.Create(context.Background(), other, validCreate()); err != nil {
		t.Errorf("another student's dates must not conflict: %v", err)
	}
}

func TestUpdateStatus(t *testing.T) {
	f := newLeaveFixture()
	leave, err := f.svc.Create(context.Background(), student, validCreate())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.UpdateStatus(context.Background(), leave.ID, teacher, UpdateStatusRequest{Status: model.LeavePending}); util.KindOf(err) != util.KindValidation {
		t.Errorf("pending status error = %v, want validation", err)
	}

	updated, err := f.svc.UpdateStatus(context.Background(), leave.ID, teacher, UpdateStatusRequest{Status: model.LeaveApproved, TeacherRemarks: "Get well soon"})
	if err != nil {
		t.Fatalf("UpdateStatus returned error: %v", err)
	}
	if updated.Status != model.LeaveApproved || updated.ReviewedBy == nil || *updated.ReviewedBy != teacher.UserID {
		t.Errorf("updated = %+v", updated)
	}
	if updated.ReviewedAt == nil || !updated.ReviewedAt.Equal(fixedNow) || updated.TeacherRemarks != "Get well soon" {
		t.Errorf("review fields = %v %q", updated.ReviewedAt, updated.TeacherRemarks)
	}

	if _, err := f.svc.UpdateStatus(context.Background(), leave.ID, teacher, UpdateStatusRequest{Status: model.LeaveRejected}); !errors.Is(err, util.ErrLeaveAlreadyDecided) {
		t.Errorf("second review error = %v, want ErrLeaveAlreadyDecided", err)
	}
	if _, err := f.svc.UpdateStatus(context.Background(), "nope", teacher, UpdateStatusRequest{Status: model.LeaveApproved}); !errors.Is(err, util.ErrLeaveNotFound) {
		t.Errorf("missing leave error = %v, want ErrLeaveNotFound", err)
	}

	got := f.recorder.Types()
	if len(got) != 2 || got[1] != events.LeaveReviewed {
		t.Errorf("events = %v", got)
	}
}

func TestDeleteLeave(t *testing.T) {
	f := newLeaveFixture()
	pending, err := f.svc.Create(context.Background(), student, validCreate())
	if err != nil {
		t.Fatal(err)
	}
	later := validCreate()
	later.StartDate, later.EndDate = "2026-04-01", "2026-04-02"
	decided, err := f.svc.Create(context.Background(), student, later)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.UpdateStatus(context.Background(), decided.ID, teacher, UpdateStatusRequest{Status: model.LeaveApproved}); err != nil {
		t.Fatal(err)
	}

	if err := f.svc.Delete(context.Background(), pending.ID, stranger); !errors.Is(err, util.ErrPermissionDenied) {
		t.Errorf("stranger delete error = %v, want ErrPermissionDenied", err)
	}
	if err := f.svc.Delete(context.Background(), decided.ID, student); !errors.Is(err, util.ErrLeaveAlreadyDecided) {
		t.Errorf("decided delete error = %v, want ErrLeaveAlreadyDecided", err)
	}
	if err := f.svc.Delete(context.Background(), pending.ID, student); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err := f.svc.Get(context.Background(), pending.ID, student); !errors.Is(err, util.ErrLeaveNotFound) {
		t.Errorf("deleted leave still readable: %v", err)
	}
}

func TestListAndStats(t *testing.T) {
	f := newLeaveFixture()
	dates := [][2]string{{"2026-03-05", "2026-03-06"}, {"2026-03-10", "2026-03-12"}, {"2026-03-20", "2026-03-20"}}
	var ids []string
	for i, d := range dates {
		req := validCreate()
		req.StartDate, req.EndDate = d[0], d[1]
		if i == 0 {
			req.AssessmentRequired = true
			req.AssessmentSection = "Backend"
		}
		leave, err := f.svc.Create(context.Background(), student, req)
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		ids = append(ids, leave.ID)
	}
	if _, err := f.svc.UpdateStatus(context.Background(), ids[1], teacher, UpdateStatusRequest{Status: model.LeaveApproved}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.UpdateStatus(context.Background(), ids[2], teacher, UpdateStatusRequest{Status: model.LeaveRejected}); err != nil {
		t.Fatal(err)
	}

	stats, err := f.svc.Stats(context.Background(), student.UserID)
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	want := model.LeaveStats{Total: 3, Pending: 1, Approved: 1, Rejected: 1, TotalDaysRequested: 6, TotalDaysApproved: 3}
	if *stats != want {
		t.Errorf("stats = %+v, want %+v", *stats, want)
	}

	mine, total, err := f.svc.ListMine(context.Background(), student.UserID, 1, 10)
	if err != nil || total != 3 {
		t.Fatalf("ListMine = %d, %v", total, err)
	}
	for _, l := range mine {
		if l.Assessment.Questions != nil {
			t.Errorf("listing exposes the question set of %s", l.ID)
		}
	}

	approved, total, err := f.svc.ListAll(context.Background(), "approved", 1, 10)
	if err != nil || total != 1 || approved[0].ID != ids[1] {
		t.Errorf("ListAll(approved) = %v, %d, %v", approved, total, err)
	}
	if _, _, err := f.svc.ListAll(context.Background(), "archived", 1, 10); util.KindOf(err) != util.KindValidation {
		t.Errorf("ListAll(archived) error = %v, want validation", err)
	}

	if _, err := f.svc.Get(context.Background(), ids[0], stranger); !errors.Is(err, util.ErrPermissionDenied) {
		t.Errorf("stranger Get error = %v, want ErrPermissionDenied", err)
	}
	got, err := f.svc.Get(context.Background(), ids[0], teacher)
	if err != nil || got.Assessment.Questions != nil || got.Assessment.QuestionCount != 5 {
		t.Errorf("teacher Get = %+v, %v", got, err)
	}
}
