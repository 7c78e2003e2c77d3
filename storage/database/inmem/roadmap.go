package inmemdb

import (
	"context"
	"sort"

	"github.com/mzalendo/maendeleo/core"
	"github.com/mzalendo/maendeleo/core/roadmap"
)

type roadmapRepository struct {
	levels   *levelTable
	progress *progressTable
}

var _ roadmap.Repository = (*roadmapRepository)(nil) // interface compliance check

func NewRoadmapRepository(db *DB) *roadmapRepository {
	return &roadmapRepository{levels: db.level, progress: db.progress}
}

func (repo *roadmapRepository) CreateLevel(ctx context.Context, lvl roadmap.Level) (roadmap.Level, error) {
	repo.levels.mutex.Lock()
	defer repo.levels.mutex.Unlock()

	repo.levels.table[lvl.ID] = &lvl
	return lvl, nil
}

func (repo *roadmapRepository) QueryLevels(ctx context.Context, courseID string, activeOnly bool) ([]roadmap.Level, error) {
	repo.levels.mutex.RLock()
	defer repo.levels.mutex.RUnlock()

	lvls := make([]roadmap.Level, 0, len(repo.levels.table))
	for _, lvl := range repo.levels.table {
		if activeOnly && !lvl.IsActive {
			continue
		}
		if courseID != "" && lvl.CourseID != courseID {
			continue
		}
		lvls = append(lvls, *lvl)
	}
	sort.SliceStable(lvls, func(i, j int) bool { return lvls[i].Order < lvls[j].Order })
	return lvls, nil
}

func (repo *roadmapRepository) GetLevelByID(ctx context.Context, id string) (roadmap.Level, error) {
	repo.levels.mutex.RLock()
	defer repo.levels.mutex.RUnlock()

	if lvl, ok := repo.levels.table[id]; ok {
		return *lvl, nil
	}
	return roadmap.Level{}, roadmap.ErrLevelNotFound
}

func (repo *roadmapRepository) UpdateLevel(ctx context.Context, lvl roadmap.Level) (roadmap.Level, error) {
	repo.levels.mutex.Lock()
	defer repo.levels.mutex.Unlock()

	if _, ok := repo.levels.table[lvl.ID]; !ok {
		return roadmap.Level{}, roadmap.ErrLevelNotFound
	}
	repo.levels.table[lvl.ID] = &lvl
	return lvl, nil
}

func (repo *roadmapRepository) DeleteLevelByID(ctx context.Context, id string) error {
	repo.levels.mutex.Lock()
	defer repo.levels.mutex.Unlock()

	delete(repo.levels.table, id)
	return nil
}

func (repo *roadmapRepository) RecordLevelStart(ctx context.Context, levelID string) error {
	repo.levels.mutex.Lock()
	defer repo.levels.mutex.Unlock()

	lvl, ok := repo.levels.table[levelID]
	if !ok {
		return roadmap.ErrLevelNotFound
	}
	lvl.Stats.TotalStarted++
	return nil
}

func (repo *roadmapRepository) RecordLevelCompletion(ctx context.Context, levelID string, hours float64) error {
	repo.levels.mutex.Lock()
	defer repo.levels.mutex.Unlock()

	lvl, ok := repo.levels.table[levelID]
	if !ok {
		return roadmap.ErrLevelNotFound
	}
	n := lvl.Stats.TotalCompleted + 1
	lvl.Stats.AverageCompletionHours = (lvl.Stats.AverageCompletionHours*float64(n-1) + hours) / float64(n)
	lvl.Stats.TotalCompleted = n
	return nil
}

func (repo *roadmapRepository) GetProgress(ctx context.Context, userID, levelID string) (roadmap.Progress, error) {
	repo.progress.mutex.RLock()
	defer repo.progress.mutex.RUnlock()

	if prog, ok := repo.progress.table[progressKey(userID, levelID)]; ok {
		return *prog, nil
	}
	return roadmap.Progress{}, roadmap.ErrProgressNotFound
}

func (repo *roadmapRepository) QueryProgressByUser(ctx context.Context, userID, courseID string) ([]roadmap.Progress, error) {
	repo.progress.mutex.RLock()
	defer repo.progress.mutex.RUnlock()

	var recs []roadmap.Progress
	for _, prog := range repo.progress.table {
		if prog.UserID != userID {
			continue
		}
		if courseID != "" && prog.CourseID != courseID {
			continue
		}
		recs = append(recs, *prog)
	}
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].UnlockedAt.Equal(recs[j].UnlockedAt) {
			return recs[i].LevelID < recs[j].LevelID
		}
		return recs[i].UnlockedAt.Before(recs[j].UnlockedAt)
	})
	return recs, nil
}

func (repo *roadmapRepository) CreateProgress(ctx context.Context, prog roadmap.Progress) (roadmap.Progress, error) {
	repo.progress.mutex.Lock()
	defer repo.progress.mutex.Unlock()

	if prog.Version == 0 {
		prog.Version = 1
	}
	repo.progress.table[progressKey(prog.UserID, prog.LevelID)] = &prog
	return prog, nil
}

func (repo *roadmapRepository) SaveProgress(ctx context.Context, prog roadmap.Progress) (roadmap.Progress, error) {
	repo.progress.mutex.Lock()
	defer repo.progress.mutex.Unlock()

	key := progressKey(prog.UserID, prog.LevelID)
	stored, ok := repo.progress.table[key]
	if !ok {
		return roadmap.Progress{}, roadmap.ErrProgressNotFound
	}
	if stored.Version != prog.Version {
		return roadmap.Progress{}, core.ErrVersionConflict
	}
	prog.Version++
	repo.progress.table[key] = &prog
	return prog, nil
}
