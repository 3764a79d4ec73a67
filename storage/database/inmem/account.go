package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/tasnifu/core"
	"github.com/trezcool/tasnifu/core/account"
)

type accountRepository struct {
	db *accountTable
}

var _ account.Repository = (*accountRepository)(nil)

func NewAccountRepository(db *DB) account.Repository {
	return &accountRepository{db: db.account}
}

func (repo *accountRepository) query() []account.Account {
	accts := make([]account.Account, 0, len(repo.db.table))
	for _, acct := range repo.db.table {
		accts = append(accts, *acct)
	}
	sort.Slice(accts, func(i, j int) bool { return accts[i].CreatedAt.After(accts[j].CreatedAt) })
	return accts
}

func (repo *accountRepository) CheckEmailUniqueness(_ context.Context, email string, excludedAccounts ...account.Account) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, acct := range repo.db.table {
		if acct.Email == email && !isExcluded(*acct, excludedAccounts) {
			return account.ErrEmailExists
		}
	}
	return nil
}

func (repo *accountRepository) CreateAccount(_ context.Context, acct account.Account) (account.Account, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if acct.ID == "" {
		acct.ID = uuid.New().String()
	}
	repo.db.table[acct.ID] = &acct
	return acct, nil
}

func (repo *accountRepository) GetAccountByID(_ context.Context, id string) (account.Account, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if acct, ok := repo.db.table[id]; ok {
		return *acct, nil
	}
	return account.Account{}, account.ErrNotFound
}

func (repo *accountRepository) GetAccountByEmail(_ context.Context, email string) (account.Account, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, acct := range repo.db.table {
		if acct.Email == email {
			return *acct, nil
		}
	}
	return account.Account{}, account.ErrNotFound
}

func (repo *accountRepository) QueryAllAccounts(_ context.Context) ([]account.Account, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.query(), nil
}

func (repo *accountRepository) FilterAccounts(_ context.Context, filter account.QueryFilter, ordering []core.DBOrdering) ([]account.Account, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	matches := make([]account.Account, 0)
	for _, acct := range repo.query() {
		if matchesFilter(acct, filter) {
			matches = append(matches, acct)
		}
	}
	applyOrdering(matches, ordering)
	return matches, nil
}

func matchesFilter(acct account.Account, filter account.QueryFilter) bool {
	if filter.Search != "" {
		s := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(acct.Name), s) && !strings.Contains(strings.ToLower(acct.Email), s) {
			return false
		}
	}
	if len(filter.Roles) > 0 {
		var found bool
		for _, role := range filter.Roles {
			if acct.Role == role {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.IsProfileComplete != nil && acct.IsProfileComplete != *filter.IsProfileComplete {
		return false
	}
	if !filter.CreatedFrom.IsZero() && acct.CreatedAt.Before(filter.CreatedFrom) {
		return false
	}
	if !filter.CreatedTo.IsZero() && acct.CreatedAt.After(filter.CreatedTo) {
		return false
	}
	return true
}

func applyOrdering(accts []account.Account, ordering []core.DBOrdering) {
	if len(ordering) == 0 {
		return
	}
	ord := ordering[0]
	sort.SliceStable(accts, func(i, j int) bool {
		var less bool
		switch ord.Field {
		case "name":
			less = accts[i].Name < accts[j].Name
		case "email":
			less = accts[i].Email < accts[j].Email
		default:
			less = accts[i].CreatedAt.Before(accts[j].CreatedAt)
		}
		if ord.Ascending {
			return less
		}
		return !less
	})
}

func (repo *accountRepository) UpdateAccount(_ context.Context, acct account.Account) (account.Account, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.table[acct.ID]
	if !ok {
		return account.Account{}, account.ErrNotFound
	}
	// login state and the edit lock are managed by their own calls
	acct.LoginAttempts = orig.LoginAttempts
	acct.LockUntil = orig.LockUntil
	acct.LastLogin = orig.LastLogin
	acct.Lock = orig.Lock

	repo.db.table[acct.ID] = &acct
	return acct, nil
}

func (repo *accountRepository) SetLoginState(_ context.Context, id string, attempts int, lockUntil, lastLogin time.Time) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	acct, ok := repo.db.table[id]
	if !ok {
		return account.ErrNotFound
	}
	acct.LoginAttempts = attempts
	acct.LockUntil = lockUntil
	acct.LastLogin = lastLogin
	return nil
}

func (repo *accountRepository) AcquireEditLock(_ context.Context, id string) (bool, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	acct, ok := repo.db.table[id]
	if !ok {
		return false, account.ErrNotFound
	}
	if acct.Lock {
		return false, nil
	}
	acct.Lock = true
	return true, nil
}

func (repo *accountRepository) ReleaseEditLock(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	acct, ok := repo.db.table[id]
	if !ok {
		return account.ErrNotFound
	}
	acct.Lock = false
	return nil
}

func (repo *accountRepository) DeleteAccountsByID(_ context.Context, ids ...string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}

func isExcluded(acct account.Account, excludedAccounts []account.Account) bool {
	for _, excl := range excludedAccounts {
		if excl.ID == acct.ID {
			return true
		}
	}
	return false
}
