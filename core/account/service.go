package account

import (
	"context"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/tasnifu/core"
)

var (
	// errors
	ErrNotFound    = errors.New("account not found")
	ErrEmailExists = errors.New("an account with this email already exists")

	// ErrInvalidCredentials is deliberately the only error surfaced for both
	// unknown-email and wrong-password failures.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountLocked      = errors.New("account temporarily locked, please try again later")

	ErrEditLockHeld = errors.New("account is currently being edited by another admin")

	ErrOAuthStudent    = errors.New("students are not allowed to sign in with Google")
	ErrOAuthIneligible = errors.New("this email is not eligible for Google sign-in")
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedAccounts ...Account) error
		CreateAccount(ctx context.Context, acct Account) (Account, error)
		GetAccountByID(ctx context.Context, id string) (Account, error)
		GetAccountByEmail(ctx context.Context, email string) (Account, error)
		QueryAllAccounts(ctx context.Context) ([]Account, error)
		// FilterAccounts applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on Account.Name or Account.Email.
		FilterAccounts(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Account, error)
		UpdateAccount(ctx context.Context, acct Account) (Account, error)
		SetLoginState(ctx context.Context, id string, attempts int, lockUntil, lastLogin time.Time) error
		// AcquireEditLock sets the advisory edit flag iff it is currently clear,
		// atomically. It reports whether the flag was acquired.
		AcquireEditLock(ctx context.Context, id string) (bool, error)
		ReleaseEditLock(ctx context.Context, id string) error
		DeleteAccountsByID(ctx context.Context, ids ...string) error
	}

	Service interface {
		Register(ctx context.Context, na NewAccount) (Account, error)
		Authenticate(ctx context.Context, email, password string) (Account, error)
		OAuthLogin(ctx context.Context, email, name, picture string) (Account, error)
		GetByID(ctx context.Context, id string) (Account, error)
		GetByEmail(ctx context.Context, email string) (Account, error)
		QueryAll(ctx context.Context) ([]Account, error)
		Filter(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Account, error)
		UpdateProfile(ctx context.Context, id string, up UpdateProfile) (Account, error)
		AcquireEditLock(ctx context.Context, id string) error
		ReleaseEditLock(ctx context.Context, id string) error
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, rp ResetAccountPassword) error
		CheckUniqueness(ctx context.Context, email string, exclAccounts ...Account) error
		Delete(ctx context.Context, ids ...string) error
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
		conf    *core.Config
		logger  core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config, logger core.Logger) Service {
	return &service{
		repo:    repo,
		mailSvc: mailSvc,
		conf:    conf,
		logger:  logger,
	}
}

func (svc *service) CheckUniqueness(ctx context.Context, email string, exclAccounts ...Account) error {
	if err := svc.repo.CheckEmailUniqueness(ctx, email, exclAccounts...); err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) Register(ctx context.Context, na NewAccount) (Account, error) {
	now := time.Now().UTC()
	acct := Account{
		Name:      na.Name,
		Email:     na.Email,
		Role:      na.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	switch na.Role {
	case RoleStudent:
		acct.SetRoleID(na.StudentID)
	case RoleTeacher:
		acct.SetRoleID(newTeacherID())
	case RoleAdmin:
		acct.SetRoleID(newAdminID())
	}
	if err := acct.SetPassword(na.Password); err != nil {
		return Account{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.CreateAccount(ctx, acct)
}

// Authenticate verifies the given credentials and, on success, resets the
// failed-attempt counter and records lastLogin (best effort).
func (svc *service) Authenticate(ctx context.Context, email, password string) (Account, error) {
	acct, err := svc.repo.GetAccountByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Account{}, ErrInvalidCredentials
		}
		return Account{}, errors.Wrap(err, "finding account by email")
	}

	now := time.Now().UTC()
	if acct.IsLockedOut(now) {
		return Account{}, ErrAccountLocked
	}

	if err = acct.CheckPassword(password); err != nil {
		attempts := acct.LoginAttempts + 1
		var lockUntil time.Time
		if attempts >= svc.conf.MaxLoginAttempts {
			lockUntil = now.Add(svc.conf.LoginLockoutDelta)
			attempts = 0
		}
		if stErr := svc.repo.SetLoginState(ctx, acct.ID, attempts, lockUntil, acct.LastLogin); stErr != nil {
			svc.logger.Error(fmt.Sprintf("recording failed login attempt: %v", stErr), stErr)
		}
		return Account{}, ErrInvalidCredentials
	}

	if err = svc.repo.SetLoginState(ctx, acct.ID, 0, time.Time{}, now); err != nil {
		svc.logger.Error(fmt.Sprintf("setting lastLogin: %v", err), err)
	}
	acct.LoginAttempts = 0
	acct.LockUntil = time.Time{}
	acct.LastLogin = now
	return acct, nil
}

// OAuthLogin resolves a provider-verified identity to an Account.
// Teachers are auto-provisioned with a random placeholder password and an
// incomplete profile; students are rejected outright.
func (svc *service) OAuthLogin(ctx context.Context, email, name, picture string) (Account, error) {
	email = core.CleanString(email, true /* lower */)

	acct, err := svc.repo.GetAccountByEmail(ctx, email)
	if err == nil {
		if acct.IsStudent() {
			return Account{}, ErrOAuthStudent
		}
		now := time.Now().UTC()
		if stErr := svc.repo.SetLoginState(ctx, acct.ID, 0, time.Time{}, now); stErr != nil {
			svc.logger.Error(fmt.Sprintf("setting lastLogin: %v", stErr), stErr)
		}
		acct.LastLogin = now
		return acct, nil
	}
	if errors.Cause(err) != ErrNotFound {
		return Account{}, errors.Wrap(err, "finding account by email")
	}

	switch svc.resolveOAuthRole(email) {
	case RoleStudent:
		return Account{}, ErrOAuthStudent
	case RoleAdmin:
		// admins are provisioned via the admin CLI, never on the fly
		return Account{}, ErrOAuthIneligible
	}

	now := time.Now().UTC()
	acct = Account{
		Name:      name,
		Email:     email,
		Role:      RoleTeacher,
		Image:     picture,
		LastLogin: now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	acct.SetRoleID(newTeacherID())
	if err = acct.SetPassword(uuid.New().String()); err != nil {
		return Account{}, errors.Wrap(err, "hashing placeholder password")
	}
	return svc.repo.CreateAccount(ctx, acct)
}

func (svc *service) resolveOAuthRole(email string) string {
	for _, admin := range svc.conf.AdminEmails {
		if email == admin {
			return RoleAdmin
		}
	}
	if d := svc.conf.StudentEmailDomain; d != "" && strings.HasSuffix(email, "@"+d) {
		return RoleStudent
	}
	return RoleTeacher
}

func (svc *service) GetByID(ctx context.Context, id string) (Account, error) {
	return svc.repo.GetAccountByID(ctx, id)
}

func (svc *service) GetByEmail(ctx context.Context, email string) (Account, error) {
	return svc.repo.GetAccountByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *service) QueryAll(ctx context.Context) ([]Account, error) {
	return svc.repo.QueryAllAccounts(ctx)
}

func (svc *service) Filter(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Account, error) {
	return svc.repo.FilterAccounts(ctx, filter, ordering)
}

func (svc *service) UpdateProfile(ctx context.Context, id string, up UpdateProfile) (Account, error) {
	acct, err := svc.repo.GetAccountByID(ctx, id)
	if err != nil {
		return Account{}, err
	}

	if up.Name != "" {
		acct.Name = up.Name
	}
	if up.Image != "" {
		acct.Image = up.Image
	}
	if up.ContactNumber != "" {
		acct.ContactNumber = up.ContactNumber
	}
	if up.Location != "" {
		acct.Location = up.Location
	}
	if !up.Birthday.IsZero() {
		acct.Birthday = up.Birthday
	}
	if up.Gender != "" {
		acct.Gender = up.Gender
	}
	if up.Department != "" {
		acct.Department = up.Department
	}
	if up.Course != "" {
		acct.Course = up.Course
	}
	if up.Year != "" {
		acct.Year = up.Year
	}

	acct.IsProfileComplete = acct.CheckProfileComplete()
	acct.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateAccount(ctx, acct)
}

func (svc *service) AcquireEditLock(ctx context.Context, id string) error {
	acquired, err := svc.repo.AcquireEditLock(ctx, id)
	if err != nil {
		return errors.Wrap(err, "acquiring edit lock")
	}
	if !acquired {
		return ErrEditLockHeld
	}
	return nil
}

func (svc *service) ReleaseEditLock(ctx context.Context, id string) error {
	return svc.repo.ReleaseEditLock(ctx, id)
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	acct, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	svc.sendPasswordResetMail(acct)
	return nil
}

func (svc *service) sendPasswordResetMail(acct Account) {
	token, err := MakeToken(svc.conf, acct)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("generating password reset token: %v", err), err)
		return
	}
	url := fmt.Sprintf("%s/password-reset/confirm?uid=%s&token=%s", svc.conf.FrontendBaseURL, EncodeUID(acct), token)
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: acct.Name, Address: acct.Email}},
		Subject: "Password reset",
		Body: fmt.Sprintf(
			"Hi %s,\n\nYou requested a password reset on %s. Follow the link below to set a new password:\n\n%s\n\n"+
				"If you did not request this, you can safely ignore this email.",
			acct.Name, svc.conf.AppName, url,
		),
	})
}

func (svc *service) ResetPassword(ctx context.Context, rp ResetAccountPassword) error {
	id, err := decodeUID(rp.UID)
	if err != nil {
		return core.NewValidationError(errInvalidToken)
	}
	acct, err := svc.repo.GetAccountByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return core.NewValidationError(errInvalidToken)
		}
		return errors.Wrap(err, "finding account by ID")
	}
	if err = verifyToken(svc.conf, acct, rp.Token); err != nil {
		return core.NewValidationError(err)
	}
	if err = acct.SetPassword(rp.Password); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	acct.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateAccount(ctx, acct)
	return err
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteAccountsByID(ctx, ids...)
}

// newTeacherID generates a unique teacher identifier when none is provided.
func newTeacherID() string {
	ts := strconv.FormatInt(time.Now().UnixNano()/int64(time.Millisecond), 10)
	if len(ts) > 8 {
		ts = ts[len(ts)-8:]
	}
	return fmt.Sprintf("T-%s-%s", ts, uuid.New().String()[:4])
}

func newAdminID() string {
	ts := strconv.FormatInt(time.Now().UnixNano()/int64(time.Millisecond), 10)
	if len(ts) > 8 {
		ts = ts[len(ts)-8:]
	}
	return fmt.Sprintf("A-%s-%s", ts, uuid.New().String()[:4])
}
