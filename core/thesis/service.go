package thesis

import (
	"context"
	"fmt"
	"net/mail"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/tasnifu/core"
	"github.com/trezcool/tasnifu/core/notification"
)

var (
	// errors
	ErrNotFound       = errors.New("thesis not found")
	ErrApprovedDelete = errors.New("approved theses cannot be deleted")
	ErrEmptyFeedback  = errors.New("feedback comment and reviewer are required")
)

type (
	Repository interface {
		CreateThesis(ctx context.Context, th Thesis) (Thesis, error)
		GetThesisByID(ctx context.Context, id string) (Thesis, error)
		// GetThesisByIDAndStudent matches on both id and submitter email; a miss
		// on either is ErrNotFound.
		GetThesisByIDAndStudent(ctx context.Context, id, studentEmail string) (Thesis, error)
		QueryAllTheses(ctx context.Context) ([]Thesis, error)
		FilterTheses(ctx context.Context, filter QueryFilter) ([]Thesis, error)
		// AddFeedback appends the entry and mirrors its status/comment/reviewer
		// onto the thesis record in a single transaction. Empty comment or
		// reviewer is rejected at the storage level with ErrEmptyFeedback.
		AddFeedback(ctx context.Context, thesisID string, fb FeedbackEntry) (Thesis, error)
		DeleteThesis(ctx context.Context, id string) error
	}

	Service interface {
		Submit(ctx context.Context, studentEmail string, nt NewThesis) (Thesis, error)
		GetByID(ctx context.Context, id string) (Thesis, error)
		QueryAll(ctx context.Context) ([]Thesis, error)
		Filter(ctx context.Context, filter QueryFilter) ([]Thesis, error)
		QueryByStudent(ctx context.Context, email string) ([]Thesis, error)
		QueryByAdviser(ctx context.Context, email string) ([]Thesis, error)
		SubmitFeedback(ctx context.Context, thesisID string, nf NewFeedback) (Thesis, error)
		Delete(ctx context.Context, thesisID, requesterEmail string) error
	}

	service struct {
		repo     Repository
		notifSvc notification.Service
		mailSvc  core.EmailService
		logger   core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, notifSvc notification.Service, mailSvc core.EmailService, logger core.Logger) Service {
	return &service{
		repo:     repo,
		notifSvc: notifSvc,
		mailSvc:  mailSvc,
		logger:   logger,
	}
}

// Submit persists a new pending thesis, then notifies the adviser and the
// submitter. Notification failures are logged and do not undo the submission.
func (svc *service) Submit(ctx context.Context, studentEmail string, nt NewThesis) (Thesis, error) {
	now := time.Now().UTC()
	th := Thesis{
		Title:        nt.Title,
		Abstract:     nt.Abstract,
		Keywords:     nt.Keywords,
		Members:      nt.Members,
		Category:     nt.Category,
		StudentEmail: core.CleanString(studentEmail, true /* lower */),
		AdviserEmail: nt.AdviserEmail,
		DocsLink:     nt.DocsLink,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	th, err := svc.repo.CreateThesis(ctx, th)
	if err != nil {
		return Thesis{}, errors.Wrap(err, "creating thesis")
	}

	svc.createNotifications(ctx,
		notification.NewNotification{
			RecipientEmail: th.AdviserEmail,
			StudentEmail:   th.StudentEmail,
			Title:          "New Thesis Submission",
			Message:        fmt.Sprintf("%s submitted %q for your review.", th.StudentEmail, th.Title),
			Type:           notification.TypeSubmission,
			ThesisID:       th.ID,
			ThesisTitle:    th.Title,
			Status:         notification.StatusPending,
		},
		notification.NewNotification{
			RecipientEmail: th.StudentEmail,
			StudentEmail:   th.StudentEmail,
			Title:          "Thesis Submitted",
			Message:        fmt.Sprintf("Your thesis %q has been submitted to %s for review.", th.Title, th.AdviserEmail),
			Type:           notification.TypeSubmission,
			ThesisID:       th.ID,
			ThesisTitle:    th.Title,
			Status:         notification.StatusPending,
		},
	)

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Address: th.AdviserEmail}},
		Subject: "New thesis submission",
		Body: fmt.Sprintf(
			"%s submitted %q for your review.\n\nDocument: %s",
			th.StudentEmail, th.Title, th.DocsLink,
		),
	})

	return th, nil
}

// createNotifications creates the given notifications concurrently; failures
// are logged, never propagated.
func (svc *service) createNotifications(ctx context.Context, notifs ...notification.NewNotification) {
	var wg sync.WaitGroup
	wg.Add(len(notifs))
	for _, nn := range notifs {
		nn := nn
		go func() {
			defer wg.Done()
			if _, err := svc.notifSvc.Create(ctx, nn); err != nil {
				svc.logger.Error(
					fmt.Sprintf("creating %s notification for %s: %v", nn.Type, nn.RecipientEmail, err), err)
			}
		}()
	}
	wg.Wait()
}

func (svc *service) GetByID(ctx context.Context, id string) (Thesis, error) {
	return svc.repo.GetThesisByID(ctx, id)
}

func (svc *service) QueryAll(ctx context.Context) ([]Thesis, error) {
	return svc.repo.QueryAllTheses(ctx)
}

func (svc *service) Filter(ctx context.Context, filter QueryFilter) ([]Thesis, error) {
	return svc.repo.FilterTheses(ctx, filter)
}

func (svc *service) QueryByStudent(ctx context.Context, email string) ([]Thesis, error) {
	return svc.repo.FilterTheses(ctx, QueryFilter{StudentEmail: core.CleanString(email, true /* lower */)})
}

func (svc *service) QueryByAdviser(ctx context.Context, email string) ([]Thesis, error) {
	return svc.repo.FilterTheses(ctx, QueryFilter{AdviserEmail: core.CleanString(email, true /* lower */)})
}

// SubmitFeedback appends a feedback entry and moves the thesis to the entry's
// status. The top-level status always mirrors the last-appended entry; both
// writes happen in one transaction. The submitter is then notified;
// notification failure is logged and does not undo the review.
func (svc *service) SubmitFeedback(ctx context.Context, thesisID string, nf NewFeedback) (Thesis, error) {
	fb := FeedbackEntry{
		Comment:    nf.Comment,
		Status:     nf.Status,
		ReviewedBy: nf.ReviewedBy,
		ReviewDate: time.Now().UTC(),
	}
	if fb.Comment == "" || fb.ReviewedBy == "" {
		return Thesis{}, core.NewValidationError(ErrEmptyFeedback)
	}

	th, err := svc.repo.AddFeedback(ctx, thesisID, fb)
	if err != nil {
		return Thesis{}, err
	}

	svc.createNotifications(ctx, notification.NewNotification{
		RecipientEmail:   th.StudentEmail,
		StudentEmail:     th.StudentEmail,
		Title:            "Thesis Feedback",
		Message:          fmt.Sprintf("%s reviewed %q: %s.", fb.ReviewedBy, th.Title, fb.Status),
		Type:             notification.TypeFeedback,
		ThesisID:         th.ID,
		ThesisTitle:      th.Title,
		Status:           fb.Status,
		ReviewerComments: fb.Comment,
		ReviewerName:     fb.ReviewedBy,
	})

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Address: th.StudentEmail}},
		Subject: "Thesis feedback",
		Body: fmt.Sprintf(
			"%s reviewed your thesis %q.\n\nStatus: %s\nComment: %s",
			fb.ReviewedBy, th.Title, fb.Status, fb.Comment,
		),
	})

	return th, nil
}

// Delete removes a thesis owned by the requester, then removes every
// notification referencing it. Approved theses cannot be deleted. A wrong id
// and a wrong owner are indistinguishable to the caller.
func (svc *service) Delete(ctx context.Context, thesisID, requesterEmail string) error {
	th, err := svc.repo.GetThesisByIDAndStudent(ctx, thesisID, core.CleanString(requesterEmail, true /* lower */))
	if err != nil {
		return err
	}
	if th.IsApproved() {
		return ErrApprovedDelete
	}

	if err = svc.repo.DeleteThesis(ctx, th.ID); err != nil {
		return errors.Wrap(err, "deleting thesis")
	}

	if n, err := svc.notifSvc.DeleteByThesis(ctx, th.ID); err != nil {
		svc.logger.Error(fmt.Sprintf("deleting notifications for thesis %s: %v", th.ID, err), err)
	} else if n > 0 {
		svc.logger.Info(fmt.Sprintf("deleted %d notification(s) for thesis %s", n, th.ID))
	}
	return nil
}
