package thesis_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/tasnifu/core/notification"
	"github.com/trezcool/tasnifu/core/thesis"
	emailsvc "github.com/trezcool/tasnifu/services/email"
	inmemdb "github.com/trezcool/tasnifu/storage/database/inmem"
	testutil "github.com/trezcool/tasnifu/tests"
)

func newTestService(t *testing.T) (thesis.Service, notification.Service, thesis.Repository) {
	t.Helper()

	db := inmemdb.NewDB()
	repo := inmemdb.NewThesisRepository(db)
	notifSvc := notification.NewService(inmemdb.NewNotificationRepository(db))
	svc := thesis.NewService(repo, notifSvc, emailsvc.NewConsoleServiceMock(), testutil.NewLogger())
	return svc, notifSvc, repo
}

func newThesisData(title string) thesis.NewThesis {
	return thesis.NewThesis{
		Title:        title,
		Abstract:     "An abstract.",
		Keywords:     []string{"iot", "sensors"},
		Members:      []string{"Jane Doe", "John Roe"},
		Category:     thesis.CategoryIoT,
		AdviserEmail: "adviser@example.edu",
		DocsLink:     "https://docs.example.com/draft",
	}
}

func Test_service_Submit(t *testing.T) {
	svc, notifSvc, _ := newTestService(t)
	ctx := context.Background()
	emailsvc.ClearSentMessages()

	th, err := svc.Submit(ctx, "jane@students.example.edu", newThesisData("Smart Irrigation"))
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	if th.ID == "" {
		t.Error("Submit() did not assign an ID")
	}
	if th.Status != thesis.StatusPending {
		t.Errorf("Status = %q; want %q", th.Status, thesis.StatusPending)
	}
	if len(th.Feedback) != 0 {
		t.Errorf("fresh submission has %d feedback entries; want 0", len(th.Feedback))
	}

	// the adviser and the submitter each get exactly one notification
	adviserNotifs, err := notifSvc.ForRecipient(ctx, "adviser@example.edu")
	if err != nil {
		t.Fatalf("ForRecipient(adviser) failed: %v", err)
	}
	studentNotifs, err := notifSvc.ForRecipient(ctx, "jane@students.example.edu")
	if err != nil {
		t.Fatalf("ForRecipient(student) failed: %v", err)
	}
	// the adviser notification also references the student, so it shows up in
	// the student's inbox query as well
	if len(studentNotifs) != 2 {
		t.Fatalf("student inbox has %d notifications; want 2", len(studentNotifs))
	}
	var adviserNotif notification.Notification
	for _, n := range adviserNotifs {
		if n.RecipientEmail == "adviser@example.edu" {
			adviserNotif = n
		}
	}
	if adviserNotif.Type != notification.TypeSubmission {
		t.Errorf("adviser notification type = %q; want %q", adviserNotif.Type, notification.TypeSubmission)
	}
	if adviserNotif.ThesisID != th.ID || adviserNotif.ThesisTitle != th.Title {
		t.Error("adviser notification does not reference the thesis")
	}

	// the adviser is also emailed
	msgs := emailsvc.GetSentMessages()
	if len(msgs) != 1 {
		t.Fatalf("sent messages = %d; want 1", len(msgs))
	}
	if msgs[0].To[0].Address != "adviser@example.edu" {
		t.Errorf("email recipient = %q; want adviser", msgs[0].To[0].Address)
	}
	if !strings.Contains(msgs[0].Body, th.Title) {
		t.Errorf("email body does not mention the thesis title: %q", msgs[0].Body)
	}
}

func Test_service_SubmitFeedback(t *testing.T) {
	svc, notifSvc, _ := newTestService(t)
	ctx := context.Background()

	th, err := svc.Submit(ctx, "jane@students.example.edu", newThesisData("Smart Irrigation"))
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	th, err = svc.SubmitFeedback(ctx, th.ID, thesis.NewFeedback{
		Comment:    "Needs a stronger literature review.",
		Status:     thesis.StatusRevision,
		ReviewedBy: "Dr. Adviser",
	})
	if err != nil {
		t.Fatalf("SubmitFeedback() failed: %v", err)
	}
	if len(th.Feedback) != 1 {
		t.Fatalf("feedback entries = %d; want 1", len(th.Feedback))
	}
	if th.Status != thesis.StatusRevision {
		t.Errorf("Status = %q; want %q", th.Status, thesis.StatusRevision)
	}
	if th.ReviewComments != "Needs a stronger literature review." || th.ReviewedBy != "Dr. Adviser" {
		t.Error("review mirror fields do not reflect the feedback entry")
	}

	// a second review appends; the mirror always tracks the last entry
	th, err = svc.SubmitFeedback(ctx, th.ID, thesis.NewFeedback{
		Comment:    "Much better, approved.",
		Status:     thesis.StatusApproved,
		ReviewedBy: "Dr. Adviser",
	})
	if err != nil {
		t.Fatalf("SubmitFeedback() failed: %v", err)
	}
	if len(th.Feedback) != 2 {
		t.Fatalf("feedback entries = %d; want 2", len(th.Feedback))
	}
	if th.Status != thesis.StatusApproved || th.CurrentStatus() != thesis.StatusApproved {
		t.Errorf("Status = %q; want %q", th.Status, thesis.StatusApproved)
	}
	if th.Feedback[0].Status != thesis.StatusRevision {
		t.Error("earlier feedback entries must be preserved in order")
	}

	// the submitter is notified of each review
	notifs, err := notifSvc.ForRecipient(ctx, "jane@students.example.edu")
	if err != nil {
		t.Fatalf("ForRecipient() failed: %v", err)
	}
	var feedbackNotifs int
	for _, n := range notifs {
		if n.Type == notification.TypeFeedback {
			feedbackNotifs++
			if n.ReviewerName != "Dr. Adviser" {
				t.Errorf("ReviewerName = %q; want %q", n.ReviewerName, "Dr. Adviser")
			}
		}
	}
	if feedbackNotifs != 2 {
		t.Errorf("feedback notifications = %d; want 2", feedbackNotifs)
	}
}

func Test_service_SubmitFeedback_invalid(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	th, err := svc.Submit(ctx, "jane@students.example.edu", newThesisData("Smart Irrigation"))
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	if _, err = svc.SubmitFeedback(ctx, "nope", thesis.NewFeedback{
		Comment: "ok", Status: thesis.StatusApproved, ReviewedBy: "Dr. A",
	}); errors.Cause(err) != thesis.ErrNotFound {
		t.Errorf("SubmitFeedback(unknown thesis) = %v; want %v", err, thesis.ErrNotFound)
	}

	if _, err = svc.SubmitFeedback(ctx, th.ID, thesis.NewFeedback{
		Status: thesis.StatusApproved, ReviewedBy: "Dr. A",
	}); err == nil {
		t.Error("SubmitFeedback(empty comment) expected an error")
	}

	// a failed review leaves the thesis untouched
	got, err := svc.GetByID(ctx, th.ID)
	if err != nil {
		t.Fatalf("GetByID() failed: %v", err)
	}
	if got.Status != thesis.StatusPending || len(got.Feedback) != 0 {
		t.Error("failed feedback must not modify the thesis")
	}
}

func Test_service_Delete(t *testing.T) {
	svc, notifSvc, _ := newTestService(t)
	ctx := context.Background()

	th, err := svc.Submit(ctx, "jane@students.example.edu", newThesisData("Smart Irrigation"))
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	// someone else's thesis looks like a miss
	if err = svc.Delete(ctx, th.ID, "mallory@students.example.edu"); errors.Cause(err) != thesis.ErrNotFound {
		t.Errorf("Delete(other student) = %v; want %v", err, thesis.ErrNotFound)
	}

	if err = svc.Delete(ctx, th.ID, "jane@students.example.edu"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err = svc.GetByID(ctx, th.ID); errors.Cause(err) != thesis.ErrNotFound {
		t.Error("deleted thesis is still retrievable")
	}

	// its notifications are gone too
	notifs, err := notifSvc.ForRecipient(ctx, "adviser@example.edu")
	if err != nil {
		t.Fatalf("ForRecipient() failed: %v", err)
	}
	if len(notifs) != 0 {
		t.Errorf("notifications after delete = %d; want 0", len(notifs))
	}

	if err = svc.Delete(ctx, th.ID, "jane@students.example.edu"); errors.Cause(err) != thesis.ErrNotFound {
		t.Errorf("Delete(twice) = %v; want %v", err, thesis.ErrNotFound)
	}
}

func Test_service_Delete_approved(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	th, err := svc.Submit(ctx, "jane@students.example.edu", newThesisData("Smart Irrigation"))
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	if _, err = svc.SubmitFeedback(ctx, th.ID, thesis.NewFeedback{
		Comment: "Approved.", Status: thesis.StatusApproved, ReviewedBy: "Dr. A",
	}); err != nil {
		t.Fatalf("SubmitFeedback() failed: %v", err)
	}

	if err = svc.Delete(ctx, th.ID, "jane@students.example.edu"); errors.Cause(err) != thesis.ErrApprovedDelete {
		t.Errorf("Delete(approved) = %v; want %v", err, thesis.ErrApprovedDelete)
	}
	if _, err = svc.GetByID(ctx, th.ID); err != nil {
		t.Error("approved thesis must survive the delete attempt")
	}
}

func Test_service_queries(t *testing.T) {
	svc, _, repo := newTestService(t)
	ctx := context.Background()

	now := time.Now()
	testutil.CreateThesis(t, repo, "Oldest", "jane@students.example.edu", "adviser@example.edu", now.Add(-2*time.Hour))
	testutil.CreateThesis(t, repo, "Middle", "jane@students.example.edu", "other@example.edu", now.Add(-time.Hour))
	testutil.CreateThesis(t, repo, "Newest", "john@students.example.edu", "adviser@example.edu", now)

	all, err := svc.QueryAll(ctx)
	if err != nil {
		t.Fatalf("QueryAll() failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("QueryAll() = %d; want 3", len(all))
	}
	if all[0].Title != "Newest" || all[2].Title != "Oldest" {
		t.Error("QueryAll() must return newest-first")
	}

	own, err := svc.QueryByStudent(ctx, "Jane@Students.Example.Edu")
	if err != nil {
		t.Fatalf("QueryByStudent() failed: %v", err)
	}
	if len(own) != 2 {
		t.Errorf("QueryByStudent() = %d; want 2", len(own))
	}

	advised, err := svc.QueryByAdviser(ctx, "adviser@example.edu")
	if err != nil {
		t.Fatalf("QueryByAdviser() failed: %v", err)
	}
	if len(advised) != 2 {
		t.Errorf("QueryByAdviser() = %d; want 2", len(advised))
	}
}
