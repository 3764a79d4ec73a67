package inmemdb

import (
	"sync"

	"github.com/trezcool/tasnifu/core/account"
	"github.com/trezcool/tasnifu/core/notification"
	"github.com/trezcool/tasnifu/core/thesis"
)

// DB is an in-memory store; used in tests and local hacking.
type DB struct {
	account      *accountTable
	thesis       *thesisTable
	notification *notificationTable
}

func NewDB() *DB {
	return &DB{
		account: &accountTable{table: make(map[string]*account.Account)},
		thesis: &thesisTable{
			table:    make(map[string]*thesis.Thesis),
			feedback: make(map[string][]thesis.FeedbackEntry),
		},
		notification: &notificationTable{table: make(map[string]*notification.Notification)},
	}
}

type accountTable struct {
	mutex sync.RWMutex
	table map[string]*account.Account
}

type thesisTable struct {
	mutex    sync.RWMutex
	table    map[string]*thesis.Thesis
	feedback map[string][]thesis.FeedbackEntry
}

type notificationTable struct {
	mutex sync.RWMutex
	table map[string]*notification.Notification
}
