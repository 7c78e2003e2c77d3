package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/mzalendo/maendeleo/core/achievement"
)

type achievementRepository struct {
	db *sqlx.DB
}

var _ achievement.Repository = (*achievementRepository)(nil) // interface compliance check

func NewAchievementRepository(db *sqlx.DB) *achievementRepository {
	return &achievementRepository{db: db}
}

type definitionRow struct {
	Code                 string    `db:"code"`
	Name                 string    `db:"name"`
	Description          string    `db:"description"`
	Type                 string    `db:"type"`
	Category             string    `db:"category"`
	Rarity               string    `db:"rarity"`
	Icon                 string    `db:"icon"`
	XPReward             int       `db:"xp_reward"`
	CupsReward           int       `db:"cups_reward"`
	RequirementKind      string    `db:"requirement_kind"`
	RequirementThreshold int       `db:"requirement_threshold"`
	IsActive             bool      `db:"is_active"`
	IsSecret             bool      `db:"is_secret"`
	SortOrder            int       `db:"sort_order"`
	TotalUnlocked        int       `db:"total_unlocked"`
	CreatedAt            time.Time `db:"created_at"`
	UpdatedAt            time.Time `db:"updated_at"`
}

func (repo *achievementRepository) toRow(def achievement.Definition) definitionRow {
	return definitionRow{
		Code:                 def.Code,
		Name:                 def.Name,
		Description:          def.Description,
		Type:                 def.Type,
		Category:             def.Category,
		Rarity:               def.Rarity,
		Icon:                 def.Icon,
		XPReward:             def.XPReward,
		CupsReward:           def.CupsReward,
		RequirementKind:      string(def.Requirement.Kind),
		RequirementThreshold: def.Requirement.Threshold,
		IsActive:             def.IsActive,
		IsSecret:             def.IsSecret,
		SortOrder:            def.Order,
		TotalUnlocked:        def.TotalUnlocked,
		CreatedAt:            def.CreatedAt.UTC(),
		UpdatedAt:            def.UpdatedAt.UTC(),
	}
}

func (repo *achievementRepository) fromRow(row definitionRow) achievement.Definition {
	return achievement.Definition{
		Code:        row.Code,
		Name:        row.Name,
		Description: row.Description,
		Type:        row.Type,
		Category:    row.Category,
		Rarity:      row.Rarity,
		Icon:        row.Icon,
		XPReward:    row.XPReward,
		CupsReward:  row.CupsReward,
		Requirement: achievement.Requirement{
			Kind:      achievement.RequirementKind(row.RequirementKind),
			Threshold: row.RequirementThreshold,
		},
		IsActive:      row.IsActive,
		IsSecret:      row.IsSecret,
		Order:         row.SortOrder,
		TotalUnlocked: row.TotalUnlocked,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}

const definitionColumns = `code, name, description, type, category, rarity, icon, xp_reward, cups_reward,
requirement_kind, requirement_threshold, is_active, is_secret, sort_order, total_unlocked, created_at, updated_at`

func (repo *achievementRepository) CheckCodeUniqueness(ctx context.Context, code string) error {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM achievement_definition WHERE code = $1)`
	if err := repo.db.GetContext(ctx, &exists, query, code); err != nil {
		return errors.Wrap(err, "checking code uniqueness")
	}
	if exists {
		return achievement.ErrCodeExists
	}
	return nil
}

func (repo *achievementRepository) CreateDefinition(ctx context.Context, def achievement.Definition) (achievement.Definition, error) {
	query := `
INSERT INTO achievement_definition (` + definitionColumns + `)
VALUES (:code, :name, :description, :type, :category, :rarity, :icon, :xp_reward, :cups_reward,
:requirement_kind, :requirement_threshold, :is_active, :is_secret, :sort_order, :total_unlocked, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, query, repo.toRow(def)); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return achievement.Definition{}, achievement.ErrCodeExists
		}
		return achievement.Definition{}, errors.Wrap(err, "inserting achievement definition")
	}
	return def, nil
}

func (repo *achievementRepository) QueryAllDefinitions(ctx context.Context) ([]achievement.Definition, error) {
	var rows []definitionRow
	query := `SELECT ` + definitionColumns + ` FROM achievement_definition ORDER BY sort_order, code`
	if err := repo.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, errors.Wrap(err, "querying achievement definitions")
	}

	defs := make([]achievement.Definition, 0, len(rows))
	for _, row := range rows {
		defs = append(defs, repo.fromRow(row))
	}
	return defs, nil
}

func (repo *achievementRepository) GetDefinitionByCode(ctx context.Context, code string) (achievement.Definition, error) {
	var row definitionRow
	query := `SELECT ` + definitionColumns + ` FROM achievement_definition WHERE code = $1`
	if err := repo.db.GetContext(ctx, &row, query, code); err != nil {
		if err == sql.ErrNoRows {
			return achievement.Definition{}, achievement.ErrNotFound
		}
		return achievement.Definition{}, errors.Wrap(err, "getting achievement definition")
	}
	return repo.fromRow(row), nil
}

func (repo *achievementRepository) UpdateDefinition(ctx context.Context, def achievement.Definition) (achievement.Definition, error) {
	query := `
UPDATE achievement_definition SET
name = :name, description = :description, type = :type, category = :category, rarity = :rarity,
icon = :icon, xp_reward = :xp_reward, cups_reward = :cups_reward, requirement_kind = :requirement_kind,
requirement_threshold = :requirement_threshold, is_active = :is_active, is_secret = :is_secret,
sort_order = :sort_order, updated_at = :updated_at
WHERE code = :code`
	res, err := repo.db.NamedExecContext(ctx, query, repo.toRow(def))
	if err != nil {
		return achievement.Definition{}, errors.Wrap(err, "updating achievement definition")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return achievement.Definition{}, achievement.ErrNotFound
	}
	return def, nil
}

func (repo *achievementRepository) DeleteDefinitionByCode(ctx context.Context, code string) error {
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM achievement_definition WHERE code = $1`, code); err != nil {
		return errors.Wrap(err, "deleting achievement definition")
	}
	return nil
}

func (repo *achievementRepository) IncrementUnlockCount(ctx context.Context, code string) error {
	query := `UPDATE achievement_definition SET total_unlocked = total_unlocked + 1 WHERE code = $1`
	if _, err := repo.db.ExecContext(ctx, query, code); err != nil {
		return errors.Wrap(err, "incrementing unlock count")
	}
	return nil
}
