package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tasnifu/core/thesis"
)

type dbThesis struct {
	ID       string         `db:"id"`
	Title    string         `db:"title"`
	Abstract string         `db:"abstract"`
	Keywords pq.StringArray `db:"keywords"`
	Members  pq.StringArray `db:"members"`
	Category string         `db:"category"`

	StudentEmail string `db:"student_email"`
	AdviserEmail string `db:"adviser_email"`
	DocsLink     string `db:"docs_link"`

	Status         string    `db:"status"`
	ReviewComments string    `db:"review_comments"`
	ReviewedBy     string    `db:"reviewed_by"`
	ReviewDate     null.Time `db:"review_date"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (row dbThesis) toThesis(feedback []thesis.FeedbackEntry) thesis.Thesis {
	return thesis.Thesis{
		ID:             row.ID,
		Title:          row.Title,
		Abstract:       row.Abstract,
		Keywords:       row.Keywords,
		Members:        row.Members,
		Category:       row.Category,
		StudentEmail:   row.StudentEmail,
		AdviserEmail:   row.AdviserEmail,
		DocsLink:       row.DocsLink,
		Status:         row.Status,
		ReviewComments: row.ReviewComments,
		ReviewedBy:     row.ReviewedBy,
		ReviewDate:     row.ReviewDate.Time,
		Feedback:       feedback,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}

func fromThesis(th thesis.Thesis) dbThesis {
	return dbThesis{
		ID:             th.ID,
		Title:          th.Title,
		Abstract:       th.Abstract,
		Keywords:       th.Keywords,
		Members:        th.Members,
		Category:       th.Category,
		StudentEmail:   th.StudentEmail,
		AdviserEmail:   th.AdviserEmail,
		DocsLink:       th.DocsLink,
		Status:         th.Status,
		ReviewComments: th.ReviewComments,
		ReviewedBy:     th.ReviewedBy,
		ReviewDate:     nullTime(th.ReviewDate),
		CreatedAt:      th.CreatedAt,
		UpdatedAt:      th.UpdatedAt,
	}
}

type dbFeedback struct {
	ThesisID   string    `db:"thesis_id"`
	Comment    string    `db:"comment"`
	Status     string    `db:"status"`
	ReviewedBy string    `db:"reviewed_by"`
	ReviewDate time.Time `db:"review_date"`
}

type thesisRepository struct {
	db *sqlx.DB
}

var _ thesis.Repository = (*thesisRepository)(nil)

func NewThesisRepository(db *sqlx.DB) thesis.Repository {
	return &thesisRepository{db: db}
}

func (repo *thesisRepository) CreateThesis(ctx context.Context, th thesis.Thesis) (thesis.Thesis, error) {
	if th.ID == "" {
		th.ID = uuid.New().String()
	}

	const query = `
		INSERT INTO thesis (
			id, title, abstract, keywords, members, category,
			student_email, adviser_email, docs_link,
			status, review_comments, reviewed_by, review_date,
			created_at, updated_at
		) VALUES (
			:id, :title, :abstract, :keywords, :members, :category,
			:student_email, :adviser_email, :docs_link,
			:status, :review_comments, :reviewed_by, :review_date,
			:created_at, :updated_at
		)`
	if _, err := repo.db.NamedExecContext(ctx, query, fromThesis(th)); err != nil {
		return thesis.Thesis{}, errors.Wrap(err, "inserting thesis")
	}
	return th, nil
}

func (repo *thesisRepository) GetThesisByID(ctx context.Context, id string) (thesis.Thesis, error) {
	var row dbThesis
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM thesis WHERE id = $1`, id); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return thesis.Thesis{}, thesis.ErrNotFound
		}
		return thesis.Thesis{}, errors.Wrap(err, "getting thesis by id")
	}
	fb, err := repo.queryFeedback(ctx, id)
	if err != nil {
		return thesis.Thesis{}, err
	}
	return row.toThesis(fb), nil
}

func (repo *thesisRepository) GetThesisByIDAndStudent(ctx context.Context, id, studentEmail string) (thesis.Thesis, error) {
	var row dbThesis
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM thesis WHERE id = $1 AND student_email = $2`, id, studentEmail)
	if err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return thesis.Thesis{}, thesis.ErrNotFound
		}
		return thesis.Thesis{}, errors.Wrap(err, "getting thesis by id and student")
	}
	fb, err := repo.queryFeedback(ctx, id)
	if err != nil {
		return thesis.Thesis{}, err
	}
	return row.toThesis(fb), nil
}

func (repo *thesisRepository) QueryAllTheses(ctx context.Context) ([]thesis.Thesis, error) {
	var rows []dbThesis
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM thesis ORDER BY created_at DESC`); err != nil {
		return nil, errors.Wrap(err, "querying theses")
	}
	return repo.attachFeedback(ctx, rows)
}

func (repo *thesisRepository) FilterTheses(ctx context.Context, filter thesis.QueryFilter) ([]thesis.Thesis, error) {
	where := make([]string, 0, 3)
	args := make([]interface{}, 0, 3)

	if filter.StudentEmail != "" {
		where = append(where, `student_email = ?`)
		args = append(args, filter.StudentEmail)
	}
	if filter.AdviserEmail != "" {
		where = append(where, `adviser_email = ?`)
		args = append(args, filter.AdviserEmail)
	}
	if filter.Status != "" {
		where = append(where, `status = ?`)
		args = append(args, filter.Status)
	}

	query := `SELECT * FROM thesis`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY created_at DESC`

	var rows []dbThesis
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "filtering theses")
	}
	return repo.attachFeedback(ctx, rows)
}

// AddFeedback inserts the feedback row and mirrors it onto the thesis record
// in one transaction.
func (repo *thesisRepository) AddFeedback(ctx context.Context, thesisID string, fb thesis.FeedbackEntry) (thesis.Thesis, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return thesis.Thesis{}, errors.Wrap(err, "starting transaction")
	}
	defer func() { _ = tx.Rollback() }()

	const insert = `
		INSERT INTO thesis_feedback (thesis_id, comment, status, reviewed_by, review_date)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err = tx.ExecContext(ctx, insert, thesisID, fb.Comment, fb.Status, fb.ReviewedBy, fb.ReviewDate); err != nil {
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
			switch pqErr.Code.Name() {
			case "foreign_key_violation":
				return thesis.Thesis{}, thesis.ErrNotFound
			case "check_violation":
				return thesis.Thesis{}, thesis.ErrEmptyFeedback
			}
		}
		return thesis.Thesis{}, errors.Wrap(err, "inserting feedback")
	}

	const mirror = `
		UPDATE thesis
		SET status = $2, review_comments = $3, reviewed_by = $4, review_date = $5, updated_at = $5
		WHERE id = $1`
	res, err := tx.ExecContext(ctx, mirror, thesisID, fb.Status, fb.Comment, fb.ReviewedBy, fb.ReviewDate)
	if err != nil {
		return thesis.Thesis{}, errors.Wrap(err, "updating thesis status")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return thesis.Thesis{}, thesis.ErrNotFound
	}

	if err = tx.Commit(); err != nil {
		return thesis.Thesis{}, errors.Wrap(err, "committing feedback")
	}
	return repo.GetThesisByID(ctx, thesisID)
}

func (repo *thesisRepository) DeleteThesis(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM thesis WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting thesis")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return thesis.ErrNotFound
	}
	return nil
}

func (repo *thesisRepository) queryFeedback(ctx context.Context, thesisID string) ([]thesis.FeedbackEntry, error) {
	var rows []dbFeedback
	const query = `
		SELECT thesis_id, comment, status, reviewed_by, review_date
		FROM thesis_feedback WHERE thesis_id = $1 ORDER BY id`
	if err := repo.db.SelectContext(ctx, &rows, query, thesisID); err != nil {
		return nil, errors.Wrap(err, "querying feedback")
	}
	entries := make([]thesis.FeedbackEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, thesis.FeedbackEntry{
			Comment:    row.Comment,
			Status:     row.Status,
			ReviewedBy: row.ReviewedBy,
			ReviewDate: row.ReviewDate,
		})
	}
	return entries, nil
}

// attachFeedback loads the feedback logs for all given theses in one query.
func (repo *thesisRepository) attachFeedback(ctx context.Context, rows []dbThesis) ([]thesis.Thesis, error) {
	if len(rows) == 0 {
		return []thesis.Thesis{}, nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	query, args, err := sqlx.In(`
		SELECT thesis_id, comment, status, reviewed_by, review_date
		FROM thesis_feedback WHERE thesis_id IN (?) ORDER BY id`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "building feedback query")
	}

	var fbRows []dbFeedback
	if err = repo.db.SelectContext(ctx, &fbRows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying feedback")
	}

	byThesis := make(map[string][]thesis.FeedbackEntry, len(rows))
	for _, row := range fbRows {
		byThesis[row.ThesisID] = append(byThesis[row.ThesisID], thesis.FeedbackEntry{
			Comment:    row.Comment,
			Status:     row.Status,
			ReviewedBy: row.ReviewedBy,
			ReviewDate: row.ReviewDate,
		})
	}

	theses := make([]thesis.Thesis, 0, len(rows))
	for _, row := range rows {
		theses = append(theses, row.toThesis(byThesis[row.ID]))
	}
	return theses, nil
}
