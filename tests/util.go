package testutil

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/trezcool/tasnifu/core"
	"github.com/trezcool/tasnifu/core/account"
	"github.com/trezcool/tasnifu/core/thesis"
)

// Logger is a core.Logger that writes to stdout; Fatal does not exit.
type Logger struct {
	std *log.Logger
}

var _ core.Logger = (*Logger)(nil)

func NewLogger() *Logger {
	return &Logger{std: log.New(os.Stdout, "TEST : ", log.LstdFlags)}
}

func (l Logger) print(level, msg string, args []interface{}) {
	l.std.Println(level + " " + msg)
	for _, arg := range args {
		l.std.Printf("%+v\n", arg)
	}
}

func (l Logger) Debug(msg string, args ...interface{}) { l.print("DEBUG", msg, args) }
func (l Logger) Info(msg string, args ...interface{})  { l.print("INFO", msg, args) }
func (l Logger) Warn(msg string, args ...interface{})  { l.print("WARN", msg, args) }
func (l Logger) Error(msg string, args ...interface{}) { l.print("ERROR", msg, args) }
func (l Logger) Fatal(msg string, args ...interface{}) { l.print("FATAL", msg, args) }

func CreateAccount(
	t *testing.T,
	repo account.Repository,
	name, email, pwd, role, roleID string,
	createdAt ...time.Time,
) account.Account {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	acct := account.Account{
		Name:      name,
		Email:     email,
		Role:      role,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	acct.SetRoleID(roleID)
	if pwd != "" {
		if err := acct.SetPassword(pwd); err != nil {
			t.Fatalf("CreateAccount() failed: %v", err)
		}
	}
	acct, err := repo.CreateAccount(context.Background(), acct)
	if err != nil {
		t.Fatalf("CreateAccount() failed: %v", err)
	}
	return acct
}

func CreateThesis(
	t *testing.T,
	repo thesis.Repository,
	title, studentEmail, adviserEmail string,
	createdAt ...time.Time,
) thesis.Thesis {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	th := thesis.Thesis{
		Title:        title,
		Abstract:     "An abstract.",
		Keywords:     []string{"testing"},
		Members:      []string{"Member One"},
		Category:     thesis.CategoryAI,
		StudentEmail: studentEmail,
		AdviserEmail: adviserEmail,
		DocsLink:     "https://docs.example.com/" + title,
		Status:       thesis.StatusPending,
		CreatedAt:    tstamp,
		UpdatedAt:    tstamp,
	}
	th, err := repo.CreateThesis(context.Background(), th)
	if err != nil {
		t.Fatalf("CreateThesis() failed: %v", err)
	}
	return th
}
