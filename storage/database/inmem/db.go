// Package inmemdb provides map-backed repositories with the same
// semantics as the SQL backends, for tests and local hacking.
package inmemdb

import (
	"sync"

	"github.com/mzalendo/maendeleo/core/achievement"
	"github.com/mzalendo/maendeleo/core/progress"
	"github.com/mzalendo/maendeleo/core/roadmap"
)

type (
	accountTable struct {
		mutex sync.RWMutex
		table map[string]*progress.Account // keyed by user id
	}

	definitionTable struct {
		mutex sync.RWMutex
		table map[string]*achievement.Definition // keyed by code
	}

	levelTable struct {
		mutex sync.RWMutex
		table map[string]*roadmap.Level // keyed by level id
	}

	progressTable struct {
		mutex sync.RWMutex
		table map[string]*roadmap.Progress // keyed by user id + level id
	}

	DB struct {
		account    *accountTable
		definition *definitionTable
		level      *levelTable
		progress   *progressTable
	}
)

func NewDB() *DB {
	return &DB{
		account:    &accountTable{table: make(map[string]*progress.Account)},
		definition: &definitionTable{table: make(map[string]*achievement.Definition)},
		level:      &levelTable{table: make(map[string]*roadmap.Level)},
		progress:   &progressTable{table: make(map[string]*roadmap.Progress)},
	}
}

func progressKey(userID, levelID string) string { return userID + "/" + levelID }
