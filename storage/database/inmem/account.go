package inmemdb

import (
	"context"
	"sort"

	"github.com/mzalendo/maendeleo/core"
	"github.com/mzalendo/maendeleo/core/progress"
)

type accountRepository struct {
	db *accountTable
}

var _ progress.Repository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db *DB) *accountRepository {
	return &accountRepository{db: db.account}
}

func (repo *accountRepository) query() []progress.Account {
	accts := make([]progress.Account, 0, len(repo.db.table))
	for _, acct := range repo.db.table {
		accts = append(accts, *acct)
	}
	return accts
}

func (repo *accountRepository) CreateAccount(ctx context.Context, acct progress.Account) (progress.Account, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if acct.Version == 0 {
		acct.Version = 1
	}
	repo.db.table[acct.UserID] = &acct
	return acct, nil
}

func (repo *accountRepository) GetAccountByUserID(ctx context.Context, userID string) (progress.Account, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if acct, ok := repo.db.table[userID]; ok {
		return *acct, nil
	}
	return progress.Account{}, progress.ErrNotFound
}

func (repo *accountRepository) SaveAccount(ctx context.Context, acct progress.Account) (progress.Account, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	stored, ok := repo.db.table[acct.UserID]
	if !ok {
		return progress.Account{}, progress.ErrNotFound
	}
	if stored.Version != acct.Version {
		return progress.Account{}, core.ErrVersionConflict
	}
	acct.Version++
	repo.db.table[acct.UserID] = &acct
	return acct, nil
}

func (repo *accountRepository) ListTopAccounts(ctx context.Context, metric string, limit int) ([]progress.Account, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	accts := repo.query()
	sort.SliceStable(accts, func(i, j int) bool {
		switch metric {
		case progress.MetricCups:
			return accts[i].Cups > accts[j].Cups
		case progress.MetricStreak:
			return accts[i].CurrentStreak > accts[j].CurrentStreak
		default:
			return accts[i].XP > accts[j].XP
		}
	})
	if len(accts) > limit {
		accts = accts[:limit]
	}
	return accts, nil
}

func (repo *accountRepository) CountAccountsWithMoreXP(ctx context.Context, xp int) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var count int
	for _, acct := range repo.db.table {
		if acct.XP > xp {
			count++
		}
	}
	return count, nil
}
