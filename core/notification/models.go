package notification

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/tasnifu/core"
)

// Types
const (
	TypeSubmission   = "submission"
	TypeFeedback     = "feedback"
	TypeStatusUpdate = "status_update"
	TypeReviewUpdate = "review_update"
	TypeAdminEvent   = "admin_event"
	TypeOther        = "other"
)

// Statuses. A superset of the thesis statuses: notifications also carry
// intermediate workflow states.
const (
	StatusPending       = "pending"
	StatusApproved      = "approved"
	StatusRejected      = "rejected"
	StatusRevision      = "revision"
	StatusNeedsRevision = "needs_revision"
	StatusUnderReview   = "under_review"
	StatusResubmitted   = "resubmitted"
)

var (
	AllTypes = []string{TypeSubmission, TypeFeedback, TypeStatusUpdate, TypeReviewUpdate, TypeAdminEvent, TypeOther}

	AllStatuses = []string{
		StatusPending, StatusApproved, StatusRejected, StatusRevision,
		StatusNeedsRevision, StatusUnderReview, StatusResubmitted,
	}
)

// Notification is a routed, read-trackable message tied to an email address.
// The thesis reference is a denormalized back-reference, not an ownership
// edge: the title is snapshotted so the notification stays readable after the
// thesis is gone.
type Notification struct {
	ID string `json:"id"`

	RecipientEmail string `json:"recipient_email"`
	StudentEmail   string `json:"student_email,omitempty"`
	TeacherID      string `json:"teacher_id,omitempty"`

	Title   string `json:"title"`
	Message string `json:"message"`
	Type    string `json:"type"`

	ThesisID    string `json:"thesis_id,omitempty"`
	ThesisTitle string `json:"thesis_title,omitempty"`

	Status           string `json:"status,omitempty"`
	ReviewerComments string `json:"reviewer_comments,omitempty"`
	ReviewerName     string `json:"reviewer_name,omitempty"`

	Read        bool `json:"read"`
	IsDuplicate bool `json:"is_duplicate"`

	// shared admin inbox state
	ForAdmins bool     `json:"for_admins"`
	ReadBy    []string `json:"read_by,omitempty"`
	DeletedBy []string `json:"-"`

	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// ReadByAdmin reports whether the given admin has read this notification.
func (n *Notification) ReadByAdmin(adminID string) bool {
	for _, id := range n.ReadBy {
		if id == adminID {
			return true
		}
	}
	return false
}

// DeletedByAdmin reports whether the given admin has removed this
// notification from their shared-inbox view.
func (n *Notification) DeletedByAdmin(adminID string) bool {
	for _, id := range n.DeletedBy {
		if id == adminID {
			return true
		}
	}
	return false
}

// NewNotification contains information needed to create a Notification.
type NewNotification struct {
	RecipientEmail string `json:"recipient_email" validate:"required,email"`
	StudentEmail   string `json:"student_email" validate:"omitempty,email"`
	TeacherID      string `json:"teacher_id"`

	Title   string `json:"title" validate:"required"`
	Message string `json:"message" validate:"required"`
	Type    string `json:"type" validate:"required,notiftype"`

	ThesisID    string `json:"thesis_id"`
	ThesisTitle string `json:"thesis_title"`

	Status           string `json:"status" validate:"omitempty,notifstatus"`
	ReviewerComments string `json:"reviewer_comments"`
	ReviewerName     string `json:"reviewer_name"`

	ForAdmins bool `json:"for_admins"`
}

func (nn *NewNotification) Validate(validate *validator.Validate) error {
	nn.RecipientEmail = core.CleanString(nn.RecipientEmail, true /* lower */)
	nn.StudentEmail = core.CleanString(nn.StudentEmail, true /* lower */)
	nn.Title = core.CleanString(nn.Title)
	nn.Message = core.CleanString(nn.Message)
	nn.Type = core.CleanString(nn.Type, true /* lower */)
	nn.Status = core.CleanString(nn.Status, true /* lower */)
	return validate.Struct(nn)
}
