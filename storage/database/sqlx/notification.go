package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/tasnifu/core/notification"
)

type dbNotification struct {
	ID             string `db:"id"`
	RecipientEmail string `db:"recipient_email"`
	StudentEmail   string `db:"student_email"`
	TeacherID      string `db:"teacher_id"`

	Title   string `db:"title"`
	Message string `db:"message"`
	Type    string `db:"type"`

	ThesisID    string `db:"thesis_id"`
	ThesisTitle string `db:"thesis_title"`

	Status           string `db:"status"`
	ReviewerComments string `db:"reviewer_comments"`
	ReviewerName     string `db:"reviewer_name"`

	Read        bool `db:"read"`
	IsDuplicate bool `db:"is_duplicate"`

	ForAdmins bool           `db:"for_admins"`
	ReadBy    pq.StringArray `db:"read_by"`
	DeletedBy pq.StringArray `db:"deleted_by"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (row dbNotification) toNotification() notification.Notification {
	return notification.Notification{
		ID:               row.ID,
		RecipientEmail:   row.RecipientEmail,
		StudentEmail:     row.StudentEmail,
		TeacherID:        row.TeacherID,
		Title:            row.Title,
		Message:          row.Message,
		Type:             row.Type,
		ThesisID:         row.ThesisID,
		ThesisTitle:      row.ThesisTitle,
		Status:           row.Status,
		ReviewerComments: row.ReviewerComments,
		ReviewerName:     row.ReviewerName,
		Read:             row.Read,
		IsDuplicate:      row.IsDuplicate,
		ForAdmins:        row.ForAdmins,
		ReadBy:           row.ReadBy,
		DeletedBy:        row.DeletedBy,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
}

func fromNotification(notif notification.Notification) dbNotification {
	return dbNotification{
		ID:               notif.ID,
		RecipientEmail:   notif.RecipientEmail,
		StudentEmail:     notif.StudentEmail,
		TeacherID:        notif.TeacherID,
		Title:            notif.Title,
		Message:          notif.Message,
		Type:             notif.Type,
		ThesisID:         notif.ThesisID,
		ThesisTitle:      notif.ThesisTitle,
		Status:           notif.Status,
		ReviewerComments: notif.ReviewerComments,
		ReviewerName:     notif.ReviewerName,
		Read:             notif.Read,
		IsDuplicate:      notif.IsDuplicate,
		ForAdmins:        notif.ForAdmins,
		ReadBy:           stringArray(notif.ReadBy),
		DeletedBy:        stringArray(notif.DeletedBy),
		CreatedAt:        notif.CreatedAt,
		UpdatedAt:        notif.UpdatedAt,
	}
}

// stringArray never renders NULL; the columns are NOT NULL.
func stringArray(ss []string) pq.StringArray {
	if ss == nil {
		return pq.StringArray{}
	}
	return ss
}

type notificationRepository struct {
	db *sqlx.DB
}

var _ notification.Repository = (*notificationRepository)(nil)

func NewNotificationRepository(db *sqlx.DB) notification.Repository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) CreateNotification(ctx context.Context, notif notification.Notification) (notification.Notification, error) {
	if notif.ID == "" {
		notif.ID = uuid.New().String()
	}

	const query = `
		INSERT INTO notification (
			id, recipient_email, student_email, teacher_id, title, message, type,
			thesis_id, thesis_title, status, reviewer_comments, reviewer_name,
			read, is_duplicate, for_admins, read_by, deleted_by, created_at, updated_at
		) VALUES (
			:id, :recipient_email, :student_email, :teacher_id, :title, :message, :type,
			:thesis_id, :thesis_title, :status, :reviewer_comments, :reviewer_name,
			:read, :is_duplicate, :for_admins, :read_by, :deleted_by, :created_at, :updated_at
		)`
	if _, err := repo.db.NamedExecContext(ctx, query, fromNotification(notif)); err != nil {
		return notification.Notification{}, errors.Wrap(err, "inserting notification")
	}
	return notif, nil
}

func (repo *notificationRepository) GetNotificationByID(ctx context.Context, id string) (notification.Notification, error) {
	var row dbNotification
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM notification WHERE id = $1`, id); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return notification.Notification{}, notification.ErrNotFound
		}
		return notification.Notification{}, errors.Wrap(err, "getting notification by id")
	}
	return row.toNotification(), nil
}

func (repo *notificationRepository) QueryNotificationsByRecipient(ctx context.Context, email string) ([]notification.Notification, error) {
	const query = `
		SELECT * FROM notification
		WHERE recipient_email = $1 OR student_email = $1
		ORDER BY created_at DESC`
	var rows []dbNotification
	if err := repo.db.SelectContext(ctx, &rows, query, email); err != nil {
		return nil, errors.Wrap(err, "querying notifications by recipient")
	}
	return toNotifications(rows), nil
}

func (repo *notificationRepository) QueryAdminNotifications(ctx context.Context) ([]notification.Notification, error) {
	var rows []dbNotification
	const query = `SELECT * FROM notification WHERE for_admins = TRUE ORDER BY created_at DESC`
	if err := repo.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, errors.Wrap(err, "querying admin notifications")
	}
	return toNotifications(rows), nil
}

func (repo *notificationRepository) UpdateNotification(ctx context.Context, notif notification.Notification) (notification.Notification, error) {
	const query = `
		UPDATE notification SET
			read = :read, is_duplicate = :is_duplicate,
			read_by = :read_by, deleted_by = :deleted_by,
			updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, query, fromNotification(notif))
	if err != nil {
		return notification.Notification{}, errors.Wrap(err, "updating notification")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notification.Notification{}, notification.ErrNotFound
	}
	return notif, nil
}

func (repo *notificationRepository) DeleteNotificationsByThesisID(ctx context.Context, thesisID string) (int, error) {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM notification WHERE thesis_id = $1`, thesisID)
	if err != nil {
		return 0, errors.Wrap(err, "deleting notifications by thesis")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "deleting notifications by thesis")
	}
	return int(n), nil
}

func toNotifications(rows []dbNotification) []notification.Notification {
	notifs := make([]notification.Notification, 0, len(rows))
	for _, row := range rows {
		notifs = append(notifs, row.toNotification())
	}
	return notifs
}
