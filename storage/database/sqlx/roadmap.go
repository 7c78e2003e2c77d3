package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/mzalendo/maendeleo/core"
	"github.com/mzalendo/maendeleo/core/roadmap"
)

type roadmapRepository struct {
	db *sqlx.DB
}

var _ roadmap.Repository = (*roadmapRepository)(nil) // interface compliance check

func NewRoadmapRepository(db *sqlx.DB) *roadmapRepository {
	return &roadmapRepository{db: db}
}

type levelRow struct {
	ID                     string         `db:"id"`
	CourseID               string         `db:"course_id"`
	SortOrder              int            `db:"sort_order"`
	Title                  string         `db:"title"`
	Description            string         `db:"description"`
	Difficulty             string         `db:"difficulty"`
	EstimatedMinutes       int            `db:"estimated_minutes"`
	PreviousLevelID        sql.NullString `db:"previous_level_id"`
	MinXP                  int            `db:"min_xp"`
	MinCups                int            `db:"min_cups"`
	RequiredAchievements   pq.StringArray `db:"required_achievements"`
	Lessons                []byte         `db:"lessons"`
	RewardXP               int            `db:"reward_xp"`
	RewardCups             int            `db:"reward_cups"`
	RewardBadgeCode        string         `db:"reward_badge_code"`
	TotalStarted           int            `db:"total_started"`
	TotalCompleted         int            `db:"total_completed"`
	AverageCompletionHours float64        `db:"average_completion_hours"`
	IsActive               bool           `db:"is_active"`
	CreatedAt              time.Time      `db:"created_at"`
	UpdatedAt              time.Time      `db:"updated_at"`
}

func (repo *roadmapRepository) toLevelRow(lvl roadmap.Level) (levelRow, error) {
	lessons, err := json.Marshal(lvl.Lessons)
	if err != nil {
		return levelRow{}, errors.Wrap(err, "marshaling lessons")
	}
	return levelRow{
		ID:               lvl.ID,
		CourseID:         lvl.CourseID,
		SortOrder:        lvl.Order,
		Title:            lvl.Title,
		Description:      lvl.Description,
		Difficulty:       lvl.Difficulty,
		EstimatedMinutes: lvl.EstimatedMinutes,
		PreviousLevelID: sql.NullString{
			String: lvl.Requirements.PreviousLevelID,
			Valid:  lvl.Requirements.PreviousLevelID != "",
		},
		MinXP:                  lvl.Requirements.MinXP,
		MinCups:                lvl.Requirements.MinCups,
		RequiredAchievements:   lvl.Requirements.RequiredAchievements,
		Lessons:                lessons,
		RewardXP:               lvl.Rewards.XP,
		RewardCups:             lvl.Rewards.Cups,
		RewardBadgeCode:        lvl.Rewards.BadgeCode,
		TotalStarted:           lvl.Stats.TotalStarted,
		TotalCompleted:         lvl.Stats.TotalCompleted,
		AverageCompletionHours: lvl.Stats.AverageCompletionHours,
		IsActive:               lvl.IsActive,
		CreatedAt:              lvl.CreatedAt.UTC(),
		UpdatedAt:              lvl.UpdatedAt.UTC(),
	}, nil
}

func (repo *roadmapRepository) fromLevelRow(row levelRow) (roadmap.Level, error) {
	lvl := roadmap.Level{
		ID:               row.ID,
		CourseID:         row.CourseID,
		Order:            row.SortOrder,
		Title:            row.Title,
		Description:      row.Description,
		Difficulty:       row.Difficulty,
		EstimatedMinutes: row.EstimatedMinutes,
		Requirements: roadmap.UnlockRequirements{
			PreviousLevelID:      row.PreviousLevelID.String,
			MinXP:                row.MinXP,
			MinCups:              row.MinCups,
			RequiredAchievements: row.RequiredAchievements,
		},
		Rewards: roadmap.Rewards{
			XP:        row.RewardXP,
			Cups:      row.RewardCups,
			BadgeCode: row.RewardBadgeCode,
		},
		Stats: roadmap.Stats{
			TotalStarted:           row.TotalStarted,
			TotalCompleted:         row.TotalCompleted,
			AverageCompletionHours: row.AverageCompletionHours,
		},
		IsActive:  row.IsActive,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if err := json.Unmarshal(row.Lessons, &lvl.Lessons); err != nil {
		return roadmap.Level{}, errors.Wrap(err, "unmarshaling lessons")
	}
	return lvl, nil
}

const levelColumns = `id, course_id, sort_order, title, description, difficulty, estimated_minutes,
previous_level_id, min_xp, min_cups,
required_achievements, lessons, reward_xp, reward_cups, reward_badge_code,
total_started, total_completed, average_completion_hours, is_active, created_at, updated_at`

func (repo *roadmapRepository) CreateLevel(ctx context.Context, lvl roadmap.Level) (roadmap.Level, error) {
	row, err := repo.toLevelRow(lvl)
	if err != nil {
		return roadmap.Level{}, err
	}

	query := `
INSERT INTO roadmap_level (` + levelColumns + `)
VALUES (:id, :course_id, :sort_order, :title, :description, :difficulty, :estimated_minutes,
:previous_level_id, :min_xp, :min_cups,
:required_achievements, :lessons, :reward_xp, :reward_cups, :reward_badge_code,
:total_started, :total_completed, :average_completion_hours, :is_active, :created_at, :updated_at)`
	if _, err = repo.db.NamedExecContext(ctx, query, row); err != nil {
		return roadmap.Level{}, errors.Wrap(err, "inserting roadmap level")
	}
	return lvl, nil
}

func (repo *roadmapRepository) QueryLevels(ctx context.Context, courseID string, activeOnly bool) ([]roadmap.Level, error) {
	query := `SELECT ` + levelColumns + ` FROM roadmap_level WHERE ($1 = '' OR course_id = $1)`
	if activeOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY sort_order`

	var rows []levelRow
	if err := repo.db.SelectContext(ctx, &rows, query, courseID); err != nil {
		return nil, errors.Wrap(err, "querying roadmap levels")
	}

	lvls := make([]roadmap.Level, 0, len(rows))
	for _, row := range rows {
		lvl, err := repo.fromLevelRow(row)
		if err != nil {
			return nil, err
		}
		lvls = append(lvls, lvl)
	}
	return lvls, nil
}

func (repo *roadmapRepository) GetLevelByID(ctx context.Context, id string) (roadmap.Level, error) {
	var row levelRow
	query := `SELECT ` + levelColumns + ` FROM roadmap_level WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return roadmap.Level{}, roadmap.ErrLevelNotFound
		}
		return roadmap.Level{}, errors.Wrap(err, "getting roadmap level")
	}
	return repo.fromLevelRow(row)
}

func (repo *roadmapRepository) UpdateLevel(ctx context.Context, lvl roadmap.Level) (roadmap.Level, error) {
	row, err := repo.toLevelRow(lvl)
	if err != nil {
		return roadmap.Level{}, err
	}

	query := `
UPDATE roadmap_level SET
course_id = :course_id, sort_order = :sort_order, title = :title, description = :description,
difficulty = :difficulty, estimated_minutes = :estimated_minutes,
previous_level_id = :previous_level_id, min_xp = :min_xp, min_cups = :min_cups,
required_achievements = :required_achievements, lessons = :lessons,
reward_xp = :reward_xp, reward_cups = :reward_cups, reward_badge_code = :reward_badge_code,
is_active = :is_active, updated_at = :updated_at
WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return roadmap.Level{}, errors.Wrap(err, "updating roadmap level")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return roadmap.Level{}, roadmap.ErrLevelNotFound
	}
	return lvl, nil
}

func (repo *roadmapRepository) DeleteLevelByID(ctx context.Context, id string) error {
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM roadmap_level WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting roadmap level")
	}
	return nil
}

func (repo *roadmapRepository) RecordLevelStart(ctx context.Context, levelID string) error {
	query := `UPDATE roadmap_level SET total_started = total_started + 1, updated_at = now() WHERE id = $1`
	if _, err := repo.db.ExecContext(ctx, query, levelID); err != nil {
		return errors.Wrap(err, "recording level start")
	}
	return nil
}

func (repo *roadmapRepository) RecordLevelCompletion(ctx context.Context, levelID string, hours float64) error {
	// rolling average maintained in-place
	query := `
UPDATE roadmap_level SET
average_completion_hours = (average_completion_hours * total_completed + $2) / (total_completed + 1),
total_completed = total_completed + 1,
updated_at = now()
WHERE id = $1`
	if _, err := repo.db.ExecContext(ctx, query, levelID, hours); err != nil {
		return errors.Wrap(err, "recording level completion")
	}
	return nil
}

type progressRow struct {
	UserID           string         `db:"user_id"`
	CourseID         string         `db:"course_id"`
	LevelID          string         `db:"level_id"`
	Status           string         `db:"status"`
	CompletedLessons pq.StringArray `db:"completed_lessons"`
	Percentage       int            `db:"percentage"`
	UnlockedAt       time.Time      `db:"unlocked_at"`
	CompletedAt      sql.NullTime   `db:"completed_at"`
	Score            sql.NullInt64  `db:"score"`
	XPEarned         int            `db:"xp_earned"`
	CupsEarned       int            `db:"cups_earned"`
	RewardsGranted   bool           `db:"rewards_granted"`
	Version          int            `db:"version"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

func (repo *roadmapRepository) toProgressRow(prog roadmap.Progress) progressRow {
	row := progressRow{
		UserID:           prog.UserID,
		CourseID:         prog.CourseID,
		LevelID:          prog.LevelID,
		Status:           prog.Status,
		CompletedLessons: prog.CompletedLessons,
		Percentage:       prog.Percentage,
		UnlockedAt:       prog.UnlockedAt.UTC(),
		XPEarned:         prog.XPEarned,
		CupsEarned:       prog.CupsEarned,
		RewardsGranted:   prog.RewardsGranted,
		Version:          prog.Version,
		CreatedAt:        prog.CreatedAt.UTC(),
		UpdatedAt:        prog.UpdatedAt.UTC(),
	}
	if prog.CompletedAt != nil {
		row.CompletedAt = sql.NullTime{Time: prog.CompletedAt.UTC(), Valid: true}
	}
	if prog.Score != nil {
		row.Score = sql.NullInt64{Int64: int64(*prog.Score), Valid: true}
	}
	return row
}

func (repo *roadmapRepository) fromProgressRow(row progressRow) roadmap.Progress {
	prog := roadmap.Progress{
		UserID:           row.UserID,
		CourseID:         row.CourseID,
		LevelID:          row.LevelID,
		Status:           row.Status,
		CompletedLessons: row.CompletedLessons,
		Percentage:       row.Percentage,
		UnlockedAt:       row.UnlockedAt,
		XPEarned:         row.XPEarned,
		CupsEarned:       row.CupsEarned,
		RewardsGranted:   row.RewardsGranted,
		Version:          row.Version,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
	if row.CompletedAt.Valid {
		completed := row.CompletedAt.Time.UTC()
		prog.CompletedAt = &completed
	}
	if row.Score.Valid {
		score := int(row.Score.Int64)
		prog.Score = &score
	}
	return prog
}

const progressColumns = `user_id, course_id, level_id, status, completed_lessons, percentage,
unlocked_at, completed_at, score, xp_earned, cups_earned, rewards_granted,
version, created_at, updated_at`

func (repo *roadmapRepository) GetProgress(ctx context.Context, userID, levelID string) (roadmap.Progress, error) {
	var row progressRow
	query := `SELECT ` + progressColumns + ` FROM roadmap_progress WHERE user_id = $1 AND level_id = $2`
	if err := repo.db.GetContext(ctx, &row, query, userID, levelID); err != nil {
		if err == sql.ErrNoRows {
			return roadmap.Progress{}, roadmap.ErrProgressNotFound
		}
		return roadmap.Progress{}, errors.Wrap(err, "getting level progress")
	}
	return repo.fromProgressRow(row), nil
}

func (repo *roadmapRepository) QueryProgressByUser(ctx context.Context, userID, courseID string) ([]roadmap.Progress, error) {
	var rows []progressRow
	query := `SELECT ` + progressColumns + ` FROM roadmap_progress
WHERE user_id = $1 AND ($2 = '' OR course_id = $2) ORDER BY unlocked_at, level_id`
	if err := repo.db.SelectContext(ctx, &rows, query, userID, courseID); err != nil {
		return nil, errors.Wrap(err, "querying level progress")
	}

	recs := make([]roadmap.Progress, 0, len(rows))
	for _, row := range rows {
		recs = append(recs, repo.fromProgressRow(row))
	}
	return recs, nil
}

func (repo *roadmapRepository) CreateProgress(ctx context.Context, prog roadmap.Progress) (roadmap.Progress, error) {
	prog.Version = 1
	query := `
INSERT INTO roadmap_progress (` + progressColumns + `)
VALUES (:user_id, :course_id, :level_id, :status, :completed_lessons, :percentage,
:unlocked_at, :completed_at, :score, :xp_earned, :cups_earned, :rewards_granted,
:version, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, query, repo.toProgressRow(prog)); err != nil {
		return roadmap.Progress{}, errors.Wrap(err, "inserting level progress")
	}
	return prog, nil
}

func (repo *roadmapRepository) SaveProgress(ctx context.Context, prog roadmap.Progress) (roadmap.Progress, error) {
	query := `
UPDATE roadmap_progress SET
status = :status, completed_lessons = :completed_lessons, percentage = :percentage,
completed_at = :completed_at, score = :score, xp_earned = :xp_earned,
cups_earned = :cups_earned, rewards_granted = :rewards_granted,
version = version + 1, updated_at = :updated_at
WHERE user_id = :user_id AND level_id = :level_id AND version = :version`
	res, err := repo.db.NamedExecContext(ctx, query, repo.toProgressRow(prog))
	if err != nil {
		return roadmap.Progress{}, errors.Wrap(err, "saving level progress")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return roadmap.Progress{}, errors.Wrap(err, "saving level progress")
	}
	if n == 0 {
		if _, err = repo.GetProgress(ctx, prog.UserID, prog.LevelID); err != nil {
			return roadmap.Progress{}, err
		}
		return roadmap.Progress{}, core.ErrVersionConflict
	}
	prog.Version++
	return prog, nil
}
