package main

import (
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/tasnifu/core"
	"github.com/trezcool/tasnifu/core/account"
	emailsvc "github.com/trezcool/tasnifu/services/email"
	logsvc "github.com/trezcool/tasnifu/services/logger"
	"github.com/trezcool/tasnifu/storage/database"
	sqlxrepos "github.com/trezcool/tasnifu/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.Conf

	// set up DB
	errAndDie(database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(db.Ping())

	appLogger := logsvc.NewRollbarLogger(logger, conf)
	appLogger.Enable(!conf.Debug)

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	account.InitValidators(validate, translator)

	acctRepo := sqlxrepos.NewAccountRepository(db)
	acctSvc := account.NewService(acctRepo, emailsvc.NewConsoleService(), conf, appLogger)

	// start CLI
	cli := commandLine{
		db:       db,
		acctRepo: acctRepo,
		acctSvc:  acctSvc,
		validate: validate,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
