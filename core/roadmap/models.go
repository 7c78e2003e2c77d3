package roadmap

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mzalendo/maendeleo/core"
)

// Progress statuses
const (
	StatusUnlocked   = "unlocked"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

type (
	// Level is an ordered step on the learning roadmap. Levels gate on the
	// learner's lifetime progression (XP, cups, achievements) and on the
	// previous level being completed.
	Level struct {
		ID               string             `json:"id"`
		CourseID         string             `json:"course_id"`
		Order            int                `json:"order"`
		Title            string             `json:"title"`
		Description      string             `json:"description"`
		Difficulty       string             `json:"difficulty"`
		EstimatedMinutes int                `json:"estimated_minutes"`
		Requirements     UnlockRequirements `json:"requirements"`
		Lessons          []Lesson           `json:"lessons"`
		Rewards          Rewards            `json:"rewards"`
		Stats            Stats              `json:"stats"`
		IsActive         bool               `json:"is_active"`
		CreatedAt        time.Time          `json:"created_at"` // UTC
		UpdatedAt        time.Time          `json:"updated_at"` // UTC
	}

	// UnlockRequirements are checked against the learner's lifetime totals,
	// not their spendable balances.
	UnlockRequirements struct {
		PreviousLevelID      string   `json:"previous_level_id"`
		MinXP                int      `json:"min_xp"`
		MinCups              int      `json:"min_cups"`
		RequiredAchievements []string `json:"required_achievements"`
	}

	Lesson struct {
		ID       string `json:"id"`
		Title    string `json:"title"`
		Order    int    `json:"order"`
		Required bool   `json:"required"`
	}

	// Rewards are granted exactly once, on first completion.
	Rewards struct {
		XP        int    `json:"xp"`
		Cups      int    `json:"cups"`
		BadgeCode string `json:"badge_code"`
	}

	Stats struct {
		TotalStarted           int     `json:"total_started"`
		TotalCompleted         int     `json:"total_completed"`
		AverageCompletionHours float64 `json:"average_completion_hours"`
	}

	// Progress is a learner's per-level record, scoped to the level's
	// course. It exists only once the level is unlocked; absent means
	// locked. Version implements the optimistic concurrency check applied
	// on save. XPEarned/CupsEarned record what this level contributed to
	// the account, so a course's running totals are the sum over its rows.
	// RewardsGranted only flips once delivery to the account succeeded;
	// a completed row without it means the grant must be retried.
	Progress struct {
		UserID           string     `json:"user_id"`
		CourseID         string     `json:"course_id"`
		LevelID          string     `json:"level_id"`
		Status           string     `json:"status"`
		CompletedLessons []string   `json:"completed_lessons"`
		Percentage       int        `json:"percentage"`
		UnlockedAt       time.Time  `json:"unlocked_at"` // UTC
		CompletedAt      *time.Time `json:"completed_at,omitempty"`
		Score            *int       `json:"score,omitempty"`
		XPEarned         int        `json:"xp_earned"`
		CupsEarned       int        `json:"cups_earned"`
		RewardsGranted   bool       `json:"-"`
		Version          int        `json:"-"`
		CreatedAt        time.Time  `json:"created_at"` // UTC
		UpdatedAt        time.Time  `json:"updated_at"` // UTC
	}

	// Eligibility is the full unlock verdict; Reasons lists every unmet
	// requirement so the learner sees what is left, not just the first gap.
	Eligibility struct {
		Eligible bool     `json:"eligible"`
		Reasons  []string `json:"reasons,omitempty"`
	}
)

// CompletionRate is the share of starters who finished, as a percentage.
func (s Stats) CompletionRate() float64 {
	if s.TotalStarted == 0 {
		return 0
	}
	return float64(s.TotalCompleted) / float64(s.TotalStarted) * 100
}

func (l *Level) HasLesson(lessonID string) bool {
	for _, lsn := range l.Lessons {
		if lsn.ID == lessonID {
			return true
		}
	}
	return false
}

func (p *Progress) HasCompletedLesson(lessonID string) bool {
	for _, id := range p.CompletedLessons {
		if id == lessonID {
			return true
		}
	}
	return false
}

func (p *Progress) IsCompleted() bool { return p.Status == StatusCompleted }

// percentage of the level's lessons completed, rounded half away from zero.
func lessonPercentage(completed, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

// LockedError reports an unlock attempt on a level whose requirements are
// not yet met.
type LockedError struct {
	LevelID string
	Reasons []string
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("level %s is locked: %s", e.LevelID, strings.Join(e.Reasons, "; "))
}

// NewLevel defines what information is required to add a level to the roadmap.
type NewLevel struct {
	CourseID         string             `json:"course_id" validate:"required"`
	Order            int                `json:"order" validate:"min=1"`
	Title            string             `json:"title" validate:"required"`
	Description      string             `json:"description"`
	Difficulty       string             `json:"difficulty" validate:"omitempty,oneof=beginner intermediate advanced"`
	EstimatedMinutes int                `json:"estimated_minutes" validate:"min=0"`
	Requirements     UnlockRequirements `json:"requirements"`
	Lessons          []Lesson           `json:"lessons" validate:"dive"`
	Rewards          Rewards            `json:"rewards"`
	IsActive         *bool              `json:"is_active"`
}

func (nl *NewLevel) Validate() error {
	nl.CourseID = core.CleanString(nl.CourseID)
	nl.Title = core.CleanString(nl.Title)
	nl.Description = core.CleanString(nl.Description)
	nl.Difficulty = core.CleanString(nl.Difficulty)
	if nl.IsActive == nil {
		active := true
		nl.IsActive = &active
	}
	return core.Validate.Struct(nl)
}

// UpdateLevel defines what information may be provided to modify a level.
// All fields are optional.
type UpdateLevel struct {
	Order            *int                `json:"order" validate:"omitempty,min=1"`
	Title            string              `json:"title"`
	Description      *string             `json:"description"`
	Difficulty       *string             `json:"difficulty" validate:"omitempty,oneof=beginner intermediate advanced"`
	EstimatedMinutes *int                `json:"estimated_minutes" validate:"omitempty,min=0"`
	Requirements     *UnlockRequirements `json:"requirements"`
	Lessons          []Lesson            `json:"lessons" validate:"omitempty,dive"`
	Rewards          *Rewards            `json:"rewards"`
	IsActive         *bool               `json:"is_active"`
}

func (ul *UpdateLevel) Validate() error {
	ul.Title = core.CleanString(ul.Title)
	return core.Validate.Struct(ul)
}
