package thesis

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/tasnifu/core"
)

// Statuses
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
	StatusRevision = "revision"
)

// Categories
const (
	CategoryIoT    = "IoT"
	CategoryAI     = "AI"
	CategoryML     = "ML"
	CategorySound  = "Sound"
	CategoryCamera = "Camera"
)

var (
	AllStatuses   = []string{StatusPending, StatusApproved, StatusRejected, StatusRevision}
	AllCategories = []string{CategoryIoT, CategoryAI, CategoryML, CategorySound, CategoryCamera}
)

// FeedbackEntry is one reviewer's comment and resulting status, appended to a
// thesis's history. Entries are strictly append-only, ordered by insertion.
type FeedbackEntry struct {
	Comment    string    `json:"comment"`
	Status     string    `json:"status"`
	ReviewedBy string    `json:"reviewed_by"`
	ReviewDate time.Time `json:"review_date"` // UTC
}

// Thesis is a submitted capstone document tracked through a review status.
// Status and the review mirror fields (ReviewComments, ReviewedBy, ReviewDate)
// always reflect the last-appended feedback entry; they are derived values and
// are never written independently.
type Thesis struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Abstract string   `json:"abstract,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
	Members  []string `json:"members"`
	Category string   `json:"category,omitempty"`

	StudentEmail string `json:"student_email"`
	AdviserEmail string `json:"adviser_email"`
	DocsLink     string `json:"docs_link"`

	Status         string    `json:"status"`
	ReviewComments string    `json:"review_comments,omitempty"`
	ReviewedBy     string    `json:"reviewed_by,omitempty"`
	ReviewDate     time.Time `json:"review_date,omitempty"`

	Feedback []FeedbackEntry `json:"feedback"`

	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

func (t *Thesis) IsApproved() bool { return t.Status == StatusApproved }

// CurrentStatus recomputes the status from the feedback log; StatusPending
// when no feedback has been left yet.
func (t *Thesis) CurrentStatus() string {
	if n := len(t.Feedback); n > 0 {
		return t.Feedback[n-1].Status
	}
	return StatusPending
}

// NewThesis contains information needed to submit a new Thesis.
type NewThesis struct {
	Title        string   `json:"title" validate:"required"`
	Abstract     string   `json:"abstract" validate:"required"`
	Keywords     []string `json:"keywords" validate:"required,min=1,dive,required"`
	Members      []string `json:"members" validate:"required,min=1,dive,required"`
	Category     string   `json:"category" validate:"required,category"`
	AdviserEmail string   `json:"adviser_email" validate:"required,email"`
	DocsLink     string   `json:"docs_link" validate:"required,url"`
}

func (nt *NewThesis) Validate(validate *validator.Validate) error {
	nt.Title = core.CleanString(nt.Title)
	nt.Abstract = core.CleanString(nt.Abstract)
	nt.AdviserEmail = core.CleanString(nt.AdviserEmail, true /* lower */)
	nt.DocsLink = core.CleanString(nt.DocsLink)
	for i, kw := range nt.Keywords {
		nt.Keywords[i] = core.CleanString(kw)
	}
	for i, m := range nt.Members {
		nt.Members[i] = core.CleanString(m)
	}
	return validate.Struct(nt)
}

// NewFeedback contains information needed to review a Thesis.
type NewFeedback struct {
	Comment    string `json:"comment" validate:"required"`
	Status     string `json:"status" validate:"required,thesisstatus"`
	ReviewedBy string `json:"reviewed_by" validate:"required"`
}

func (nf *NewFeedback) Validate(validate *validator.Validate) error {
	nf.Comment = core.CleanString(nf.Comment)
	nf.Status = core.CleanString(nf.Status, true /* lower */)
	nf.ReviewedBy = core.CleanString(nf.ReviewedBy)
	return validate.Struct(nf)
}

type QueryFilter struct {
	StudentEmail string `query:"student_email"`
	AdviserEmail string `query:"adviser_email"`
	Status       string `query:"status"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.StudentEmail == "" && qf.AdviserEmail == "" && qf.Status == ""
}

func (qf *QueryFilter) Clean() {
	qf.StudentEmail = core.CleanString(qf.StudentEmail, true /* lower */)
	qf.AdviserEmail = core.CleanString(qf.AdviserEmail, true /* lower */)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
}
