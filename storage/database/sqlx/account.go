package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/mzalendo/maendeleo/core"
	"github.com/mzalendo/maendeleo/core/progress"
)

type accountRepository struct {
	db *sqlx.DB
}

var _ progress.Repository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db *sqlx.DB) *accountRepository {
	return &accountRepository{db: db}
}

type accountRow struct {
	UserID          string       `db:"user_id"`
	Level           int          `db:"level"`
	XP              int          `db:"xp"`
	XPToNextLevel   int          `db:"xp_to_next_level"`
	TotalXPEarned   int          `db:"total_xp_earned"`
	Cups            int          `db:"cups"`
	TotalCupsEarned int          `db:"total_cups_earned"`
	Achievements    []byte       `db:"achievements"`
	CurrentStreak   int          `db:"current_streak"`
	LongestStreak   int          `db:"longest_streak"`
	LastActivity    sql.NullTime `db:"last_activity_date"`
	DailyGoals      []byte       `db:"daily_goals"`
	TodayProgress   []byte       `db:"today_progress"`
	Stats           []byte       `db:"stats"`
	Version         int          `db:"version"`
	CreatedAt       time.Time    `db:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at"`
}

func (repo *accountRepository) toRow(acct progress.Account) (accountRow, error) {
	achievements, err := json.Marshal(acct.Achievements)
	if err != nil {
		return accountRow{}, errors.Wrap(err, "marshaling achievements")
	}
	goals, err := json.Marshal(acct.DailyGoals)
	if err != nil {
		return accountRow{}, errors.Wrap(err, "marshaling daily goals")
	}
	today, err := json.Marshal(acct.TodayProgress)
	if err != nil {
		return accountRow{}, errors.Wrap(err, "marshaling today progress")
	}
	stats, err := json.Marshal(acct.Stats)
	if err != nil {
		return accountRow{}, errors.Wrap(err, "marshaling stats")
	}
	return accountRow{
		UserID:          acct.UserID,
		Level:           acct.Level,
		XP:              acct.XP,
		XPToNextLevel:   acct.XPToNextLevel,
		TotalXPEarned:   acct.TotalXPEarned,
		Cups:            acct.Cups,
		TotalCupsEarned: acct.TotalCupsEarned,
		Achievements:    achievements,
		CurrentStreak:   acct.CurrentStreak,
		LongestStreak:   acct.LongestStreak,
		LastActivity:    sql.NullTime{Time: acct.LastActivity, Valid: !acct.LastActivity.IsZero()},
		DailyGoals:      goals,
		TodayProgress:   today,
		Stats:           stats,
		Version:         acct.Version,
		CreatedAt:       acct.CreatedAt.UTC(),
		UpdatedAt:       acct.UpdatedAt.UTC(),
	}, nil
}

func (repo *accountRepository) fromRow(row accountRow) (progress.Account, error) {
	acct := progress.Account{
		UserID:          row.UserID,
		Level:           row.Level,
		XP:              row.XP,
		XPToNextLevel:   row.XPToNextLevel,
		TotalXPEarned:   row.TotalXPEarned,
		Cups:            row.Cups,
		TotalCupsEarned: row.TotalCupsEarned,
		CurrentStreak:   row.CurrentStreak,
		LongestStreak:   row.LongestStreak,
		Version:         row.Version,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
	if row.LastActivity.Valid {
		acct.LastActivity = row.LastActivity.Time.UTC()
	}
	if err := json.Unmarshal(row.Achievements, &acct.Achievements); err != nil {
		return progress.Account{}, errors.Wrap(err, "unmarshaling achievements")
	}
	if err := json.Unmarshal(row.DailyGoals, &acct.DailyGoals); err != nil {
		return progress.Account{}, errors.Wrap(err, "unmarshaling daily goals")
	}
	if err := json.Unmarshal(row.TodayProgress, &acct.TodayProgress); err != nil {
		return progress.Account{}, errors.Wrap(err, "unmarshaling today progress")
	}
	if err := json.Unmarshal(row.Stats, &acct.Stats); err != nil {
		return progress.Account{}, errors.Wrap(err, "unmarshaling stats")
	}
	return acct, nil
}

const accountColumns = `user_id, level, xp, xp_to_next_level, total_xp_earned, cups, total_cups_earned,
achievements, current_streak, longest_streak, last_activity_date, daily_goals, today_progress, stats,
version, created_at, updated_at`

func (repo *accountRepository) CreateAccount(ctx context.Context, acct progress.Account) (progress.Account, error) {
	acct.Version = 1
	row, err := repo.toRow(acct)
	if err != nil {
		return progress.Account{}, err
	}

	query := `
INSERT INTO progress_account (` + accountColumns + `)
VALUES (:user_id, :level, :xp, :xp_to_next_level, :total_xp_earned, :cups, :total_cups_earned,
:achievements, :current_streak, :longest_streak, :last_activity_date, :daily_goals, :today_progress, :stats,
:version, :created_at, :updated_at)`
	if _, err = repo.db.NamedExecContext(ctx, query, row); err != nil {
		return progress.Account{}, errors.Wrap(err, "inserting progress account")
	}
	return acct, nil
}

func (repo *accountRepository) GetAccountByUserID(ctx context.Context, userID string) (progress.Account, error) {
	var row accountRow
	query := `SELECT ` + accountColumns + ` FROM progress_account WHERE user_id = $1`
	if err := repo.db.GetContext(ctx, &row, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return progress.Account{}, progress.ErrNotFound
		}
		return progress.Account{}, errors.Wrap(err, "getting progress account")
	}
	return repo.fromRow(row)
}

func (repo *accountRepository) SaveAccount(ctx context.Context, acct progress.Account) (progress.Account, error) {
	row, err := repo.toRow(acct)
	if err != nil {
		return progress.Account{}, err
	}

	query := `
UPDATE progress_account SET
level = :level, xp = :xp, xp_to_next_level = :xp_to_next_level, total_xp_earned = :total_xp_earned,
cups = :cups, total_cups_earned = :total_cups_earned, achievements = :achievements,
current_streak = :current_streak, longest_streak = :longest_streak, last_activity_date = :last_activity_date,
daily_goals = :daily_goals, today_progress = :today_progress, stats = :stats,
version = version + 1, updated_at = :updated_at
WHERE user_id = :user_id AND version = :version`
	res, err := repo.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return progress.Account{}, errors.Wrap(err, "saving progress account")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return progress.Account{}, errors.Wrap(err, "saving progress account")
	}
	if n == 0 {
		// either the row is gone or someone else won the write
		if _, err = repo.GetAccountByUserID(ctx, acct.UserID); err != nil {
			return progress.Account{}, err
		}
		return progress.Account{}, core.ErrVersionConflict
	}
	acct.Version++
	return acct, nil
}

func (repo *accountRepository) ListTopAccounts(ctx context.Context, metric string, limit int) ([]progress.Account, error) {
	orderBy := "xp"
	switch metric {
	case progress.MetricCups:
		orderBy = "cups"
	case progress.MetricStreak:
		orderBy = "current_streak"
	}

	var rows []accountRow
	query := `SELECT ` + accountColumns + ` FROM progress_account ORDER BY ` + orderBy + ` DESC LIMIT $1`
	if err := repo.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, errors.Wrap(err, "listing top accounts")
	}

	accts := make([]progress.Account, 0, len(rows))
	for _, row := range rows {
		acct, err := repo.fromRow(row)
		if err != nil {
			return nil, err
		}
		accts = append(accts, acct)
	}
	return accts, nil
}

func (repo *accountRepository) CountAccountsWithMoreXP(ctx context.Context, xp int) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM progress_account WHERE xp > $1`
	if err := repo.db.GetContext(ctx, &count, query, xp); err != nil {
		return 0, errors.Wrap(err, "counting accounts")
	}
	return count, nil
}
