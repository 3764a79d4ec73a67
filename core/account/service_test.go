package account_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/tasnifu/core"
	"github.com/trezcool/tasnifu/core/account"
	emailsvc "github.com/trezcool/tasnifu/services/email"
	inmemdb "github.com/trezcool/tasnifu/storage/database/inmem"
	testutil "github.com/trezcool/tasnifu/tests"
)

func newTestService(t *testing.T) (account.Service, account.Repository, *core.Config) {
	t.Helper()

	repo := inmemdb.NewAccountRepository(inmemdb.NewDB())

	conf := *core.Conf
	conf.MaxLoginAttempts = 3
	conf.LoginLockoutDelta = 15 * time.Minute
	conf.AdminEmails = []string{"root@example.edu"}
	conf.StudentEmailDomain = "students.example.edu"

	svc := account.NewService(repo, emailsvc.NewConsoleServiceMock(), &conf, testutil.NewLogger())
	return svc, repo, &conf
}

func register(t *testing.T, svc account.Service, name, email, role, studentID, pwd string) account.Account {
	t.Helper()

	acct, err := svc.Register(context.Background(), account.NewAccount{
		Name:            name,
		Email:           email,
		Role:            role,
		StudentID:       studentID,
		Password:        pwd,
		PasswordConfirm: pwd,
	})
	if err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	return acct
}

func Test_service_Register(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	student := register(t, svc, "Jane Doe", "jane@students.example.edu", account.RoleStudent, "20251234", "s3cr3t")
	if student.StudentID != "20251234" {
		t.Errorf("StudentID = %q; want %q", student.StudentID, "20251234")
	}
	if student.TeacherID != "" || student.AdminID != "" {
		t.Error("only the student identifier should be set")
	}
	if err := student.CheckPassword("s3cr3t"); err != nil {
		t.Errorf("CheckPassword() failed: %v", err)
	}

	teacher := register(t, svc, "John Smith", "john@example.edu", account.RoleTeacher, "", "s3cr3t")
	if !strings.HasPrefix(teacher.TeacherID, "T-") {
		t.Errorf("TeacherID = %q; want generated T- identifier", teacher.TeacherID)
	}

	admin := register(t, svc, "Root", "admin@example.edu", account.RoleAdmin, "", "s3cr3t")
	if !strings.HasPrefix(admin.AdminID, "A-") {
		t.Errorf("AdminID = %q; want generated A- identifier", admin.AdminID)
	}

	// duplicate email
	if err := svc.CheckUniqueness(ctx, "jane@students.example.edu"); err == nil {
		t.Error("CheckUniqueness(duplicate) expected an error")
	} else if _, ok := errors.Cause(err).(*core.ValidationError); !ok {
		t.Errorf("CheckUniqueness(duplicate) = %T; want *core.ValidationError", errors.Cause(err))
	}
}

func Test_service_Authenticate(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	register(t, svc, "Jane Doe", "jane@students.example.edu", account.RoleStudent, "20251234", "s3cr3t")

	// unknown email and wrong password are indistinguishable
	if _, err := svc.Authenticate(ctx, "nobody@example.com", "s3cr3t"); errors.Cause(err) != account.ErrInvalidCredentials {
		t.Errorf("Authenticate(unknown email) = %v; want %v", err, account.ErrInvalidCredentials)
	}
	if _, err := svc.Authenticate(ctx, "jane@students.example.edu", "wrong"); errors.Cause(err) != account.ErrInvalidCredentials {
		t.Errorf("Authenticate(wrong password) = %v; want %v", err, account.ErrInvalidCredentials)
	}

	// success resets the failed-attempt counter and records lastLogin
	acct, err := svc.Authenticate(ctx, "jane@students.example.edu", "s3cr3t")
	if err != nil {
		t.Fatalf("Authenticate() failed: %v", err)
	}
	if acct.LastLogin.IsZero() {
		t.Error("Authenticate() did not set LastLogin")
	}
	if acct.LoginAttempts != 0 {
		t.Errorf("LoginAttempts = %d; want 0", acct.LoginAttempts)
	}
}

func Test_service_Authenticate_lockout(t *testing.T) {
	svc, _, conf := newTestService(t)
	ctx := context.Background()

	register(t, svc, "Jane Doe", "jane@students.example.edu", account.RoleStudent, "20251234", "s3cr3t")

	for i := 0; i < conf.MaxLoginAttempts; i++ {
		if _, err := svc.Authenticate(ctx, "jane@students.example.edu", "wrong"); errors.Cause(err) != account.ErrInvalidCredentials {
			t.Fatalf("Authenticate(attempt %d) = %v; want %v", i+1, err, account.ErrInvalidCredentials)
		}
	}

	// locked out now, even with the right password
	if _, err := svc.Authenticate(ctx, "jane@students.example.edu", "s3cr3t"); errors.Cause(err) != account.ErrAccountLocked {
		t.Errorf("Authenticate(locked) = %v; want %v", err, account.ErrAccountLocked)
	}
}

func Test_service_OAuthLogin(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	register(t, svc, "Jane Doe", "jane@students.example.edu", account.RoleStudent, "20251234", "s3cr3t")
	register(t, svc, "John Smith", "john@example.edu", account.RoleTeacher, "", "s3cr3t")

	// existing student is rejected
	if _, err := svc.OAuthLogin(ctx, "jane@students.example.edu", "Jane Doe", ""); errors.Cause(err) != account.ErrOAuthStudent {
		t.Errorf("OAuthLogin(student) = %v; want %v", err, account.ErrOAuthStudent)
	}

	// existing teacher signs in
	teacher, err := svc.OAuthLogin(ctx, "john@example.edu", "John Smith", "")
	if err != nil {
		t.Fatalf("OAuthLogin(teacher) failed: %v", err)
	}
	if teacher.LastLogin.IsZero() {
		t.Error("OAuthLogin() did not set LastLogin")
	}

	// unknown teacher email is auto-provisioned
	newTeacher, err := svc.OAuthLogin(ctx, "mary@example.edu", "Mary Major", "https://pics.example.com/mary")
	if err != nil {
		t.Fatalf("OAuthLogin(new teacher) failed: %v", err)
	}
	if !newTeacher.IsTeacher() {
		t.Errorf("Role = %q; want %q", newTeacher.Role, account.RoleTeacher)
	}
	if !strings.HasPrefix(newTeacher.TeacherID, "T-") {
		t.Errorf("TeacherID = %q; want generated T- identifier", newTeacher.TeacherID)
	}
	if newTeacher.IsProfileComplete {
		t.Error("auto-provisioned teacher should have an incomplete profile")
	}
	if saved, err := repo.GetAccountByEmail(ctx, "mary@example.edu"); err != nil {
		t.Errorf("auto-provisioned teacher was not persisted: %v", err)
	} else if len(saved.PasswordHash) == 0 {
		t.Error("auto-provisioned teacher has no placeholder password")
	}

	// unknown student-domain email is rejected without provisioning
	if _, err = svc.OAuthLogin(ctx, "kid@students.example.edu", "Kid", ""); errors.Cause(err) != account.ErrOAuthStudent {
		t.Errorf("OAuthLogin(student domain) = %v; want %v", err, account.ErrOAuthStudent)
	}
	if _, err = repo.GetAccountByEmail(ctx, "kid@students.example.edu"); errors.Cause(err) != account.ErrNotFound {
		t.Error("rejected student sign-in must not be provisioned")
	}

	// unknown admin email is never provisioned on the fly
	if _, err = svc.OAuthLogin(ctx, "root@example.edu", "Root", ""); errors.Cause(err) != account.ErrOAuthIneligible {
		t.Errorf("OAuthLogin(admin email) = %v; want %v", err, account.ErrOAuthIneligible)
	}
}

func Test_service_UpdateProfile(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	teacher := register(t, svc, "John Smith", "john@example.edu", account.RoleTeacher, "", "s3cr3t")
	if teacher.IsProfileComplete {
		t.Fatal("fresh teacher profile should be incomplete")
	}

	updated, err := svc.UpdateProfile(ctx, teacher.ID, account.UpdateProfile{
		ContactNumber: "09171234567",
		Location:      "Quezon City",
		Birthday:      time.Date(1985, time.March, 14, 0, 0, 0, 0, time.UTC),
		Gender:        "male",
		Department:    "Computer Science",
	})
	if err != nil {
		t.Fatalf("UpdateProfile() failed: %v", err)
	}
	if !updated.IsProfileComplete {
		t.Error("profile should be complete after all teacher fields are set")
	}
	if updated.Department != "Computer Science" {
		t.Errorf("Department = %q; want %q", updated.Department, "Computer Science")
	}
}

func Test_service_EditLock(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	acct := register(t, svc, "Jane Doe", "jane@students.example.edu", account.RoleStudent, "20251234", "s3cr3t")

	if err := svc.AcquireEditLock(ctx, acct.ID); err != nil {
		t.Fatalf("AcquireEditLock() failed: %v", err)
	}
	if err := svc.AcquireEditLock(ctx, acct.ID); errors.Cause(err) != account.ErrEditLockHeld {
		t.Errorf("AcquireEditLock(held) = %v; want %v", err, account.ErrEditLockHeld)
	}
	if err := svc.ReleaseEditLock(ctx, acct.ID); err != nil {
		t.Fatalf("ReleaseEditLock() failed: %v", err)
	}
	if err := svc.AcquireEditLock(ctx, acct.ID); err != nil {
		t.Errorf("AcquireEditLock(released) failed: %v", err)
	}
}

func Test_service_ResetPassword(t *testing.T) {
	svc, _, conf := newTestService(t)
	ctx := context.Background()
	emailsvc.ClearSentMessages()

	acct := register(t, svc, "Jane Doe", "jane@students.example.edu", account.RoleStudent, "20251234", "s3cr3t")

	if err := svc.RequestPasswordReset(ctx, acct.Email); err != nil {
		t.Fatalf("RequestPasswordReset() failed: %v", err)
	}
	msgs := emailsvc.GetSentMessages()
	if len(msgs) != 1 {
		t.Fatalf("sent messages = %d; want 1", len(msgs))
	}
	if !strings.Contains(msgs[0].Body, "password-reset/confirm") {
		t.Errorf("reset email does not carry the confirm link: %q", msgs[0].Body)
	}

	token, err := account.MakeToken(conf, acct)
	if err != nil {
		t.Fatalf("MakeToken() failed: %v", err)
	}
	rp := account.ResetAccountPassword{
		Token:           token,
		UID:             account.EncodeUID(acct),
		Password:        "n3wS3cr3t",
		PasswordConfirm: "n3wS3cr3t",
	}
	if err = svc.ResetPassword(ctx, rp); err != nil {
		t.Fatalf("ResetPassword() failed: %v", err)
	}

	if _, err = svc.Authenticate(ctx, acct.Email, "n3wS3cr3t"); err != nil {
		t.Errorf("Authenticate(new password) failed: %v", err)
	}

	// token is invalidated by use
	if err = svc.ResetPassword(ctx, rp); err == nil {
		t.Error("ResetPassword(reused token) expected an error")
	} else if _, ok := errors.Cause(err).(*core.ValidationError); !ok {
		t.Errorf("ResetPassword(reused token) = %T; want *core.ValidationError", errors.Cause(err))
	}
}
