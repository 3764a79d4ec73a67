package notification_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"

	"github.com/trezcool/tasnifu/core/notification"
	inmemdb "github.com/trezcool/tasnifu/storage/database/inmem"
)

func newTestService(t *testing.T) notification.Service {
	t.Helper()
	return notification.NewService(inmemdb.NewNotificationRepository(inmemdb.NewDB()))
}

func create(t *testing.T, svc notification.Service, nn notification.NewNotification) notification.Notification {
	t.Helper()

	notif, err := svc.Create(context.Background(), nn)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	return notif
}

func Test_service_Create(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	notif := create(t, svc, notification.NewNotification{
		RecipientEmail: "adviser@example.edu",
		StudentEmail:   "jane@students.example.edu",
		Title:          "New Thesis Submission",
		Message:        "jane submitted a thesis.",
		Type:           notification.TypeSubmission,
		ThesisID:       "th-1",
		ThesisTitle:    "Smart Irrigation",
		Status:         notification.StatusPending,
	})
	if notif.ID == "" {
		t.Error("Create() did not assign an ID")
	}
	if notif.Read {
		t.Error("fresh notification must be unread")
	}

	got, err := svc.GetByID(ctx, notif.ID)
	if err != nil {
		t.Fatalf("GetByID() failed: %v", err)
	}
	if got.ThesisTitle != "Smart Irrigation" {
		t.Errorf("ThesisTitle = %q; want %q", got.ThesisTitle, "Smart Irrigation")
	}

	if _, err = svc.GetByID(ctx, "nope"); errors.Cause(err) != notification.ErrNotFound {
		t.Errorf("GetByID(unknown) = %v; want %v", err, notification.ErrNotFound)
	}
}

func Test_service_MarkRead(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	notif := create(t, svc, notification.NewNotification{
		RecipientEmail: "jane@students.example.edu",
		Title:          "Thesis Feedback",
		Message:        "Reviewed.",
		Type:           notification.TypeFeedback,
	})

	read, err := svc.MarkRead(ctx, notif.ID)
	if err != nil {
		t.Fatalf("MarkRead() failed: %v", err)
	}
	if !read.Read {
		t.Error("MarkRead() did not set the read flag")
	}

	// marking again is a no-op success
	again, err := svc.MarkRead(ctx, notif.ID)
	if err != nil {
		t.Fatalf("MarkRead(again) failed: %v", err)
	}
	if !again.Read {
		t.Error("read flag must stay set")
	}
	if !again.UpdatedAt.Equal(read.UpdatedAt) {
		t.Error("re-marking an already-read notification must not touch the record")
	}
}

func Test_service_adminInbox(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	notif := create(t, svc, notification.NewNotification{
		RecipientEmail: "admins@example.edu",
		Title:          "New Registration",
		Message:        "A new account registered.",
		Type:           notification.TypeAdminEvent,
		ForAdmins:      true,
	})
	create(t, svc, notification.NewNotification{
		RecipientEmail: "jane@students.example.edu",
		Title:          "Thesis Feedback",
		Message:        "Reviewed.",
		Type:           notification.TypeFeedback,
	})

	// the shared inbox only carries admin notifications
	inbox, err := svc.ForAdmin(ctx, "admin-1")
	if err != nil {
		t.Fatalf("ForAdmin() failed: %v", err)
	}
	if len(inbox) != 1 || inbox[0].ID != notif.ID {
		t.Fatalf("ForAdmin() = %d notifications; want the admin event only", len(inbox))
	}

	// per-admin read tracking
	read, err := svc.MarkReadBy(ctx, notif.ID, "admin-1")
	if err != nil {
		t.Fatalf("MarkReadBy() failed: %v", err)
	}
	if !read.ReadByAdmin("admin-1") || read.ReadByAdmin("admin-2") {
		t.Error("read tracking must be per admin")
	}
	read, err = svc.MarkReadBy(ctx, notif.ID, "admin-1")
	if err != nil {
		t.Fatalf("MarkReadBy(again) failed: %v", err)
	}
	if len(read.ReadBy) != 1 {
		t.Errorf("ReadBy = %v; marking twice must not duplicate", read.ReadBy)
	}

	// per-admin delete hides the entry from that admin's view only
	if err = svc.DeleteForAdmin(ctx, notif.ID, "admin-1"); err != nil {
		t.Fatalf("DeleteForAdmin() failed: %v", err)
	}
	inbox, err = svc.ForAdmin(ctx, "admin-1")
	if err != nil {
		t.Fatalf("ForAdmin() failed: %v", err)
	}
	if len(inbox) != 0 {
		t.Error("deleted entry still visible to the deleting admin")
	}
	otherInbox, err := svc.ForAdmin(ctx, "admin-2")
	if err != nil {
		t.Fatalf("ForAdmin() failed: %v", err)
	}
	if len(otherInbox) != 1 {
		t.Error("entry must stay visible to the other admins")
	}
}

func Test_service_DeleteByThesis(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		create(t, svc, notification.NewNotification{
			RecipientEmail: "jane@students.example.edu",
			Title:          "Thesis Feedback",
			Message:        "Reviewed.",
			Type:           notification.TypeFeedback,
			ThesisID:       "th-1",
		})
	}
	keep := create(t, svc, notification.NewNotification{
		RecipientEmail: "jane@students.example.edu",
		Title:          "Thesis Feedback",
		Message:        "Reviewed.",
		Type:           notification.TypeFeedback,
		ThesisID:       "th-2",
	})

	n, err := svc.DeleteByThesis(ctx, "th-1")
	if err != nil {
		t.Fatalf("DeleteByThesis() failed: %v", err)
	}
	if n != 2 {
		t.Errorf("DeleteByThesis() = %d; want 2", n)
	}
	if _, err = svc.GetByID(ctx, keep.ID); err != nil {
		t.Error("notifications of other theses must survive")
	}
}
