package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/tasnifu/core/account"
	"github.com/trezcool/tasnifu/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db       *sqlx.DB
	acctRepo account.Repository
	acctSvc  account.Service
	validate *validator.Validate
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate - run database migrations")
	fmt.Println("  addaccount -name NAME -email EMAIL -role ROLE [-studentid ID] - create an account; the password is prompted next")
	fmt.Println("  resetpassword -email EMAIL - reset an account's password")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addAccountCmd := flag.NewFlagSet("addaccount", flag.ExitOnError)
	addAccountName := addAccountCmd.String("name", "", "The account holder's full name.")
	addAccountEmail := addAccountCmd.String("email", "", "The account's email address.")
	addAccountRole := addAccountCmd.String("role", account.RoleAdmin, "One of: student, teacher, admin.")
	addAccountStudentID := addAccountCmd.String("studentid", "", "The student number; required for student accounts.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The account's email. The password will be prompted next.")

	switch args[1] {
	case "migrate":
		return database.Migrate(cli.db.DB)

	case "addaccount":
		if err := addAccountCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addAccountName == "" || *addAccountEmail == "" {
			addAccountCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addAccountCmd.Usage()
			return errHelp
		}
		return cli.addAccount(*addAccountName, *addAccountEmail, *addAccountRole, *addAccountStudentID, pwd)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordEmail, pwd)

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) addAccount(name, email, role, studentID, pwd string) error {
	ctx := context.Background()

	na := account.NewAccount{
		Name:            name,
		Email:           email,
		Role:            role,
		StudentID:       studentID,
		Password:        pwd,
		PasswordConfirm: pwd,
	}
	if err := na.Validate(ctx, cli.validate, cli.acctSvc); err != nil {
		return err
	}

	acct, err := cli.acctSvc.Register(ctx, na)
	if err != nil {
		return err
	}
	fmt.Printf("%s account created: %s <%s>\n", acct.Role, acct.Name, acct.Email)
	return nil
}

func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()

	acct, err := cli.acctSvc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err = acct.SetPassword(pwd); err != nil {
		return err
	}
	acct.UpdatedAt = time.Now().UTC()
	if _, err = cli.acctRepo.UpdateAccount(ctx, acct); err != nil {
		return err
	}
	fmt.Printf("password reset for %s\n", acct.Email)
	return nil
}
