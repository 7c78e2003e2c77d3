package inmemdb

import (
	"context"

	"github.com/mzalendo/maendeleo/core/achievement"
)

type achievementRepository struct {
	db *definitionTable
}

var _ achievement.Repository = (*achievementRepository)(nil) // interface compliance check

func NewAchievementRepository(db *DB) *achievementRepository {
	return &achievementRepository{db: db.definition}
}

func (repo *achievementRepository) CheckCodeUniqueness(ctx context.Context, code string) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if _, ok := repo.db.table[code]; ok {
		return achievement.ErrCodeExists
	}
	return nil
}

func (repo *achievementRepository) CreateDefinition(ctx context.Context, def achievement.Definition) (achievement.Definition, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[def.Code]; ok {
		return achievement.Definition{}, achievement.ErrCodeExists
	}
	repo.db.table[def.Code] = &def
	return def, nil
}

func (repo *achievementRepository) QueryAllDefinitions(ctx context.Context) ([]achievement.Definition, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	defs := make([]achievement.Definition, 0, len(repo.db.table))
	for _, def := range repo.db.table {
		defs = append(defs, *def)
	}
	return defs, nil
}

func (repo *achievementRepository) GetDefinitionByCode(ctx context.Context, code string) (achievement.Definition, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if def, ok := repo.db.table[code]; ok {
		return *def, nil
	}
	return achievement.Definition{}, achievement.ErrNotFound
}

func (repo *achievementRepository) UpdateDefinition(ctx context.Context, def achievement.Definition) (achievement.Definition, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[def.Code]; !ok {
		return achievement.Definition{}, achievement.ErrNotFound
	}
	repo.db.table[def.Code] = &def
	return def, nil
}

func (repo *achievementRepository) DeleteDefinitionByCode(ctx context.Context, code string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	delete(repo.db.table, code)
	return nil
}

func (repo *achievementRepository) IncrementUnlockCount(ctx context.Context, code string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if def, ok := repo.db.table[code]; ok {
		def.TotalUnlocked++
		return nil
	}
	return achievement.ErrNotFound
}
