package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/tasnifu/core"
	"github.com/trezcool/tasnifu/core/account"
	emailsvc "github.com/trezcool/tasnifu/services/email"
	inmemdb "github.com/trezcool/tasnifu/storage/database/inmem"
	testutil "github.com/trezcool/tasnifu/tests"
)

var acctRepo account.Repository

func setup(t *testing.T) *commandLine {
	t.Helper()

	acctRepo = inmemdb.NewAccountRepository(inmemdb.NewDB())
	acctSvc := account.NewService(acctRepo, emailsvc.NewConsoleServiceMock(), core.Conf, testutil.NewLogger())

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	account.InitValidators(validate, translator)

	// no DB: the migrate command is not exercised here
	return &commandLine{
		acctRepo: acctRepo,
		acctSvc:  acctSvc,
		validate: validate,
	}
}

type cliTest struct {
	name    string
	args    []string // without program name
	pwd     string   // fed to the password prompt
	wantErr error
}

func Test_commandLine_addAccount(t *testing.T) {
	cli := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no flags", args: []string{"addaccount"}, wantErr: errHelp},
		{name: "name but no email", args: []string{"addaccount", "-name", "Root"}, wantErr: errHelp},
		{name: "empty password", args: []string{"addaccount", "-name", "Root", "-email", "root@example.edu"}, wantErr: errHelp},
		{name: "admin by default", args: []string{"addaccount", "-name", "Root", "-email", "root@example.edu"}, pwd: "s3cr3t"},
		{name: "student", args: []string{"addaccount", "-name", "Jane Doe", "-email", "jane@students.example.edu", "-role", "student", "-studentid", "20251234"}, pwd: "s3cr3t"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			return []byte(tt.pwd), nil
		}

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); errors.Cause(err) != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	t.Run("accounts created", func(t *testing.T) {
		admin, err := acctRepo.GetAccountByEmail(context.Background(), "root@example.edu")
		if err != nil {
			t.Fatalf("GetAccountByEmail() failed: %v", err)
		}
		if !admin.IsAdmin() {
			t.Errorf("Role = %q; want %q", admin.Role, account.RoleAdmin)
		}
		if err = admin.CheckPassword("s3cr3t"); err != nil {
			t.Errorf("CheckPassword() failed: %v", err)
		}

		student, err := acctRepo.GetAccountByEmail(context.Background(), "jane@students.example.edu")
		if err != nil {
			t.Fatalf("GetAccountByEmail() failed: %v", err)
		}
		if student.StudentID != "20251234" {
			t.Errorf("StudentID = %q; want %q", student.StudentID, "20251234")
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		readPasswordFunc = func(fd int) ([]byte, error) {
			return []byte("s3cr3t"), nil
		}
		err := cli.run([]string{"admin", "addaccount", "-name", "Root Again", "-email", "root@example.edu"})
		if err == nil {
			t.Error("cli.run() expected an error for a duplicate email")
		}
	})
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	acct := testutil.CreateAccount(t, acctRepo, "Root", "root@example.edu", "s3cr3t", account.RoleAdmin, "A-00000001-abcd")

	tests := []cliTest{
		{name: "no flags", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", acct.Email}, wantErr: errHelp},
		{name: "account not found", args: []string{"resetpassword", "-email", "nobody@example.com"}, pwd: "n3w", wantErr: account.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-email", acct.Email}, pwd: "n3wS3cr3t"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			return []byte(tt.pwd), nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				refreshed, err := acctRepo.GetAccountByEmail(context.Background(), acct.Email)
				if err != nil {
					t.Fatalf("GetAccountByEmail() failed: %v", err)
				}
				if bytes.Equal(refreshed.PasswordHash, acct.PasswordHash) {
					t.Error("failed to update new password")
				}
			} else if errors.Cause(err) != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
