package notification

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrNotFound = errors.New("notification not found")
)

type (
	Repository interface {
		CreateNotification(ctx context.Context, notif Notification) (Notification, error)
		GetNotificationByID(ctx context.Context, id string) (Notification, error)
		// QueryNotificationsByRecipient matches on recipientEmail OR studentEmail
		// equality and returns newest-first.
		QueryNotificationsByRecipient(ctx context.Context, email string) ([]Notification, error)
		QueryAdminNotifications(ctx context.Context) ([]Notification, error)
		UpdateNotification(ctx context.Context, notif Notification) (Notification, error)
		DeleteNotificationsByThesisID(ctx context.Context, thesisID string) (int, error)
	}

	Service interface {
		Create(ctx context.Context, nn NewNotification) (Notification, error)
		GetByID(ctx context.Context, id string) (Notification, error)
		ForRecipient(ctx context.Context, email string) ([]Notification, error)
		ForAdmin(ctx context.Context, adminID string) ([]Notification, error)
		MarkRead(ctx context.Context, id string) (Notification, error)
		MarkReadBy(ctx context.Context, id, adminID string) (Notification, error)
		DeleteForAdmin(ctx context.Context, id, adminID string) error
		DeleteByThesis(ctx context.Context, thesisID string) (int, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Create(ctx context.Context, nn NewNotification) (Notification, error) {
	now := time.Now().UTC()
	notif := Notification{
		RecipientEmail:   nn.RecipientEmail,
		StudentEmail:     nn.StudentEmail,
		TeacherID:        nn.TeacherID,
		Title:            nn.Title,
		Message:          nn.Message,
		Type:             nn.Type,
		ThesisID:         nn.ThesisID,
		ThesisTitle:      nn.ThesisTitle,
		Status:           nn.Status,
		ReviewerComments: nn.ReviewerComments,
		ReviewerName:     nn.ReviewerName,
		ForAdmins:        nn.ForAdmins,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	return svc.repo.CreateNotification(ctx, notif)
}

func (svc *service) GetByID(ctx context.Context, id string) (Notification, error) {
	return svc.repo.GetNotificationByID(ctx, id)
}

func (svc *service) ForRecipient(ctx context.Context, email string) ([]Notification, error) {
	return svc.repo.QueryNotificationsByRecipient(ctx, email)
}

// ForAdmin lists the shared admin inbox, minus the entries this admin removed
// from their view.
func (svc *service) ForAdmin(ctx context.Context, adminID string) ([]Notification, error) {
	notifs, err := svc.repo.QueryAdminNotifications(ctx)
	if err != nil {
		return nil, err
	}
	visible := make([]Notification, 0, len(notifs))
	for _, n := range notifs {
		if !n.DeletedByAdmin(adminID) {
			visible = append(visible, n)
		}
	}
	return visible, nil
}

// MarkRead sets the read flag; marking an already-read notification is a
// no-op success.
func (svc *service) MarkRead(ctx context.Context, id string) (Notification, error) {
	notif, err := svc.repo.GetNotificationByID(ctx, id)
	if err != nil {
		return Notification{}, err
	}
	if notif.Read {
		return notif, nil
	}
	notif.Read = true
	notif.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateNotification(ctx, notif)
}

func (svc *service) MarkReadBy(ctx context.Context, id, adminID string) (Notification, error) {
	notif, err := svc.repo.GetNotificationByID(ctx, id)
	if err != nil {
		return Notification{}, err
	}
	if notif.ReadByAdmin(adminID) {
		return notif, nil
	}
	notif.ReadBy = append(notif.ReadBy, adminID)
	notif.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateNotification(ctx, notif)
}

func (svc *service) DeleteForAdmin(ctx context.Context, id, adminID string) error {
	notif, err := svc.repo.GetNotificationByID(ctx, id)
	if err != nil {
		return err
	}
	if notif.DeletedByAdmin(adminID) {
		return nil
	}
	notif.DeletedBy = append(notif.DeletedBy, adminID)
	notif.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateNotification(ctx, notif)
	return err
}

// DeleteByThesis removes every notification referencing the given thesis.
// Called when a thesis is deleted; reports the number of removed records.
func (svc *service) DeleteByThesis(ctx context.Context, thesisID string) (int, error) {
	return svc.repo.DeleteNotificationsByThesisID(ctx, thesisID)
}
