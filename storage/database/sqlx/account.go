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

	"github.com/trezcool/tasnifu/core"
	"github.com/trezcool/tasnifu/core/account"
)

type dbAccount struct {
	ID    string `db:"id"`
	Name  string `db:"name"`
	Email string `db:"email"`
	Role  string `db:"role"`

	StudentID null.String `db:"student_id"`
	TeacherID null.String `db:"teacher_id"`
	AdminID   null.String `db:"admin_id"`

	Image         string    `db:"image"`
	ContactNumber string    `db:"contact_number"`
	Location      string    `db:"location"`
	Birthday      null.Time `db:"birthday"`
	Gender        string    `db:"gender"`
	Department    string    `db:"department"`
	Course        string    `db:"course"`
	Year          string    `db:"year"`

	PasswordHash      []byte `db:"password_hash"`
	IsProfileComplete bool   `db:"is_profile_complete"`
	Lock              bool   `db:"lock"`

	LoginAttempts int       `db:"login_attempts"`
	LockUntil     null.Time `db:"lock_until"`
	LastLogin     null.Time `db:"last_login"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (row dbAccount) toAccount() account.Account {
	return account.Account{
		ID:                row.ID,
		Name:              row.Name,
		Email:             row.Email,
		Role:              row.Role,
		StudentID:         row.StudentID.String,
		TeacherID:         row.TeacherID.String,
		AdminID:           row.AdminID.String,
		Image:             row.Image,
		ContactNumber:     row.ContactNumber,
		Location:          row.Location,
		Birthday:          row.Birthday.Time,
		Gender:            row.Gender,
		Department:        row.Department,
		Course:            row.Course,
		Year:              row.Year,
		PasswordHash:      row.PasswordHash,
		IsProfileComplete: row.IsProfileComplete,
		Lock:              row.Lock,
		LoginAttempts:     row.LoginAttempts,
		LockUntil:         row.LockUntil.Time,
		LastLogin:         row.LastLogin.Time,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}
}

func fromAccount(acct account.Account) dbAccount {
	return dbAccount{
		ID:                acct.ID,
		Name:              acct.Name,
		Email:             acct.Email,
		Role:              acct.Role,
		StudentID:         nullString(acct.StudentID),
		TeacherID:         nullString(acct.TeacherID),
		AdminID:           nullString(acct.AdminID),
		Image:             acct.Image,
		ContactNumber:     acct.ContactNumber,
		Location:          acct.Location,
		Birthday:          nullTime(acct.Birthday),
		Gender:            acct.Gender,
		Department:        acct.Department,
		Course:            acct.Course,
		Year:              acct.Year,
		PasswordHash:      acct.PasswordHash,
		IsProfileComplete: acct.IsProfileComplete,
		Lock:              acct.Lock,
		LoginAttempts:     acct.LoginAttempts,
		LockUntil:         nullTime(acct.LockUntil),
		LastLogin:         nullTime(acct.LastLogin),
		CreatedAt:         acct.CreatedAt,
		UpdatedAt:         acct.UpdatedAt,
	}
}

func nullString(s string) null.String {
	if s == "" {
		return null.String{}
	}
	return null.StringFrom(s)
}

func nullTime(t time.Time) null.Time {
	if t.IsZero() {
		return null.Time{}
	}
	return null.TimeFrom(t)
}

type accountRepository struct {
	db *sqlx.DB
}

var _ account.Repository = (*accountRepository)(nil)

func NewAccountRepository(db *sqlx.DB) account.Repository {
	return &accountRepository{db: db}
}

func (repo *accountRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedAccounts ...account.Account) error {
	query := `SELECT COUNT(*) FROM account WHERE email = ?`
	args := []interface{}{email}
	if len(excludedAccounts) > 0 {
		ids := make([]string, 0, len(excludedAccounts))
		for _, acct := range excludedAccounts {
			ids = append(ids, acct.ID)
		}
		q, inArgs, err := sqlx.In(`SELECT COUNT(*) FROM account WHERE email = ? AND id NOT IN (?)`, email, ids)
		if err != nil {
			return errors.Wrap(err, "building uniqueness query")
		}
		query, args = q, inArgs
	}

	var count int
	if err := repo.db.GetContext(ctx, &count, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if count > 0 {
		return account.ErrEmailExists
	}
	return nil
}

func (repo *accountRepository) CreateAccount(ctx context.Context, acct account.Account) (account.Account, error) {
	if acct.ID == "" {
		acct.ID = uuid.New().String()
	}

	const query = `
		INSERT INTO account (
			id, name, email, role, student_id, teacher_id, admin_id,
			image, contact_number, location, birthday, gender, department, course, year,
			password_hash, is_profile_complete, lock, login_attempts, lock_until, last_login,
			created_at, updated_at
		) VALUES (
			:id, :name, :email, :role, :student_id, :teacher_id, :admin_id,
			:image, :contact_number, :location, :birthday, :gender, :department, :course, :year,
			:password_hash, :is_profile_complete, :lock, :login_attempts, :lock_until, :last_login,
			:created_at, :updated_at
		)`
	if _, err := repo.db.NamedExecContext(ctx, query, fromAccount(acct)); err != nil {
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return account.Account{}, account.ErrEmailExists
		}
		return account.Account{}, errors.Wrap(err, "inserting account")
	}
	return acct, nil
}

func (repo *accountRepository) GetAccountByID(ctx context.Context, id string) (account.Account, error) {
	var row dbAccount
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM account WHERE id = $1`, id); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return account.Account{}, account.ErrNotFound
		}
		return account.Account{}, errors.Wrap(err, "getting account by id")
	}
	return row.toAccount(), nil
}

func (repo *accountRepository) GetAccountByEmail(ctx context.Context, email string) (account.Account, error) {
	var row dbAccount
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM account WHERE email = $1`, email); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return account.Account{}, account.ErrNotFound
		}
		return account.Account{}, errors.Wrap(err, "getting account by email")
	}
	return row.toAccount(), nil
}

func (repo *accountRepository) QueryAllAccounts(ctx context.Context) ([]account.Account, error) {
	var rows []dbAccount
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM account ORDER BY created_at DESC`); err != nil {
		return nil, errors.Wrap(err, "querying accounts")
	}
	return toAccounts(rows), nil
}

func (repo *accountRepository) FilterAccounts(ctx context.Context, filter account.QueryFilter, ordering []core.DBOrdering) ([]account.Account, error) {
	where := make([]string, 0, 4)
	args := make([]interface{}, 0, 4)

	if filter.Search != "" {
		where = append(where, `(name ILIKE ? OR email ILIKE ?)`)
		pat := "%" + filter.Search + "%"
		args = append(args, pat, pat)
	}
	if len(filter.Roles) > 0 {
		where = append(where, `role = ANY(?)`)
		args = append(args, pq.Array(filter.Roles))
	}
	if filter.IsProfileComplete != nil {
		where = append(where, `is_profile_complete = ?`)
		args = append(args, *filter.IsProfileComplete)
	}
	if !filter.CreatedFrom.IsZero() {
		where = append(where, `created_at >= ?`)
		args = append(args, filter.CreatedFrom)
	}
	if !filter.CreatedTo.IsZero() {
		where = append(where, `created_at <= ?`)
		args = append(args, filter.CreatedTo)
	}

	query := `SELECT * FROM account`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += orderBy(ordering)

	var rows []dbAccount
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "filtering accounts")
	}
	return toAccounts(rows), nil
}

func (repo *accountRepository) UpdateAccount(ctx context.Context, acct account.Account) (account.Account, error) {
	const query = `
		UPDATE account SET
			name = :name, email = :email, role = :role,
			student_id = :student_id, teacher_id = :teacher_id, admin_id = :admin_id,
			image = :image, contact_number = :contact_number, location = :location,
			birthday = :birthday, gender = :gender, department = :department,
			course = :course, year = :year,
			password_hash = :password_hash, is_profile_complete = :is_profile_complete,
			updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, query, fromAccount(acct))
	if err != nil {
		return account.Account{}, errors.Wrap(err, "updating account")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return account.Account{}, account.ErrNotFound
	}
	return acct, nil
}

func (repo *accountRepository) SetLoginState(ctx context.Context, id string, attempts int, lockUntil, lastLogin time.Time) error {
	const query = `UPDATE account SET login_attempts = $2, lock_until = $3, last_login = $4 WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, query, id, attempts, nullTime(lockUntil), nullTime(lastLogin))
	if err != nil {
		return errors.Wrap(err, "setting login state")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return account.ErrNotFound
	}
	return nil
}

func (repo *accountRepository) AcquireEditLock(ctx context.Context, id string) (bool, error) {
	res, err := repo.db.ExecContext(ctx, `UPDATE account SET lock = TRUE WHERE id = $1 AND lock = FALSE`, id)
	if err != nil {
		return false, errors.Wrap(err, "acquiring edit lock")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "acquiring edit lock")
	}
	return n == 1, nil
}

func (repo *accountRepository) ReleaseEditLock(ctx context.Context, id string) error {
	if _, err := repo.db.ExecContext(ctx, `UPDATE account SET lock = FALSE WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "releasing edit lock")
	}
	return nil
}

func (repo *accountRepository) DeleteAccountsByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM account WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "deleting accounts")
	}
	return nil
}

func toAccounts(rows []dbAccount) []account.Account {
	accts := make([]account.Account, 0, len(rows))
	for _, row := range rows {
		accts = append(accts, row.toAccount())
	}
	return accts
}

// orderBy renders an ORDER BY clause; defaults to newest-first.
func orderBy(ordering []core.DBOrdering) string {
	if len(ordering) == 0 {
		return ` ORDER BY created_at DESC`
	}
	parts := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		parts = append(parts, ord.String())
	}
	return ` ORDER BY ` + strings.Join(parts, ", ")
}
