package progress

import (
	"time"

	"github.com/mzalendo/maendeleo/core"
	"github.com/mzalendo/maendeleo/core/achievement"
)

// Leveling curve: each level requires 1.5x the XP of the previous one,
// starting at 100. Matches the product's published progression table.
const (
	BaseXPToNextLevel = 100
	XPGrowthFactor    = 1.5
)

// Default daily goals for new accounts.
const (
	DefaultXPGoal      = 50
	DefaultMinutesGoal = 30
	DefaultLessonsGoal = 3
)

// Default XP awards applied when an inbound event carries no explicit amount.
const (
	DefaultLessonXP  = 50
	DefaultQuizXP    = 75
	DefaultCheckinXP = 10
)

// streakMilestones are the streak lengths worth celebrating.
var streakMilestones = []int{7, 30, 100, 365}

type (
	// Account is a user's durable progression record. It is a contended
	// single-writer-per-user resource: Version implements the optimistic
	// concurrency check applied on save.
	Account struct {
		UserID          string                `json:"user_id"`
		Level           int                   `json:"level"`
		XP              int                   `json:"xp"`
		XPToNextLevel   int                   `json:"xp_to_next_level"`
		TotalXPEarned   int                   `json:"total_xp_earned"`
		Cups            int                   `json:"cups"`
		TotalCupsEarned int                   `json:"total_cups_earned"`
		Achievements    []UnlockedAchievement `json:"achievements"`
		CurrentStreak   int                   `json:"current_streak"`
		LongestStreak   int                   `json:"longest_streak"`
		LastActivity    time.Time             `json:"last_activity_date"` // date-only, UTC; zero when no activity yet
		DailyGoals      DailyGoals            `json:"daily_goals"`
		TodayProgress   TodayProgress         `json:"today_progress"`
		Stats           Stats                 `json:"stats"`
		Version         int                   `json:"-"`
		CreatedAt       time.Time             `json:"created_at"` // UTC
		UpdatedAt       time.Time             `json:"updated_at"` // UTC
	}

	UnlockedAchievement struct {
		Code       string    `json:"code"`
		UnlockedAt time.Time `json:"unlocked_at"`
		Progress   int       `json:"progress"` // percentage; always 100 once unlocked
	}

	DailyGoals struct {
		XPGoal      int `json:"xp_goal"`
		MinutesGoal int `json:"minutes_goal"`
		LessonsGoal int `json:"lessons_goal"`
	}

	TodayProgress struct {
		XPEarned         int       `json:"xp_earned"`
		MinutesStudied   int       `json:"minutes_studied"`
		LessonsCompleted int       `json:"lessons_completed"`
		LastResetDate    time.Time `json:"last_reset_date"` // date-only, UTC
	}

	Stats struct {
		TotalLearningMinutes  int     `json:"total_learning_minutes"`
		TotalLessonsCompleted int     `json:"total_lessons_completed"`
		TotalCoursesCompleted int     `json:"total_courses_completed"`
		TotalQuizzesPassed    int     `json:"total_quizzes_passed"`
		AverageQuizScore      float64 `json:"average_quiz_score"`
		PerfectQuizzes        int     `json:"perfect_quizzes"`
	}

	// GoalsProgress is today's completion percentage per daily goal, capped at 100.
	GoalsProgress struct {
		XP      float64 `json:"xp"`
		Minutes float64 `json:"minutes"`
		Lessons float64 `json:"lessons"`
	}
)

// NewAccount returns a fresh account for userID with the default goals.
// Accounts are created lazily, on the user's first gamification event.
func NewAccount(userID string) Account {
	now := time.Now().UTC()
	return Account{
		UserID:        userID,
		Level:         1,
		XPToNextLevel: BaseXPToNextLevel,
		DailyGoals: DailyGoals{
			XPGoal:      DefaultXPGoal,
			MinutesGoal: DefaultMinutesGoal,
			LessonsGoal: DefaultLessonsGoal,
		},
		TodayProgress: TodayProgress{LastResetDate: core.Date(now)},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (a *Account) HasAchievement(code string) bool {
	for _, ua := range a.Achievements {
		if ua.Code == code {
			return true
		}
	}
	return false
}

// Snapshot exposes the account state achievement predicates evaluate against.
func (a *Account) Snapshot() achievement.Snapshot {
	return achievement.Snapshot{
		Level:            a.Level,
		TotalXPEarned:    a.TotalXPEarned,
		TotalCupsEarned:  a.TotalCupsEarned,
		CurrentStreak:    a.CurrentStreak,
		LongestStreak:    a.LongestStreak,
		LessonsCompleted: a.Stats.TotalLessonsCompleted,
		CoursesCompleted: a.Stats.TotalCoursesCompleted,
		QuizzesPassed:    a.Stats.TotalQuizzesPassed,
		PerfectQuizzes:   a.Stats.PerfectQuizzes,
	}
}

func (a *Account) DailyGoalsProgress() GoalsProgress {
	pct := func(done, goal int) float64 {
		if goal <= 0 {
			return 0
		}
		p := float64(done) / float64(goal) * 100
		if p > 100 {
			return 100
		}
		return p
	}
	return GoalsProgress{
		XP:      pct(a.TodayProgress.XPEarned, a.DailyGoals.XPGoal),
		Minutes: pct(a.TodayProgress.MinutesStudied, a.DailyGoals.MinutesGoal),
		Lessons: pct(a.TodayProgress.LessonsCompleted, a.DailyGoals.LessonsGoal),
	}
}

// Event kinds
const (
	EventLevelUp             = "level_up"
	EventAchievementUnlocked = "achievement_unlocked"
	EventStreakMilestone     = "streak_milestone"
)

// Event is a progression side effect worth telling the user about.
// Events are handed to the Notifier after the account is durably saved.
type Event struct {
	Kind            string `json:"kind"`
	Level           int    `json:"level,omitempty"`            // level_up
	AchievementCode string `json:"achievement_code,omitempty"` // achievement_unlocked
	Streak          int    `json:"streak,omitempty"`           // streak_milestone
}

// Learning event types
const (
	EventTypeLessonCompleted = "lesson_completed"
	EventTypeQuizPassed      = "quiz_passed"
	EventTypeDailyCheckin    = "daily_checkin"
	EventTypeLevelCompleted  = "level_completed"
)

// LearningEvent is the inbound contract from lesson/quiz/login handlers.
// Zero XP/Cups fall back to the per-type defaults; OccurredAt defaults to now.
type LearningEvent struct {
	UserID     string    `json:"user_id" validate:"required"`
	Type       string    `json:"type" validate:"required,oneof=lesson_completed quiz_passed daily_checkin level_completed"`
	XP         int       `json:"xp" validate:"min=0"`
	Cups       int       `json:"cups" validate:"min=0"`
	Minutes    int       `json:"minutes" validate:"min=0"`
	QuizScore  *int      `json:"quiz_score" validate:"omitempty,min=0,max=100"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (ev *LearningEvent) Validate() error {
	ev.UserID = core.CleanString(ev.UserID)
	ev.Type = core.CleanString(ev.Type, true /* lower */)
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	return core.Validate.Struct(ev)
}

// UpdateDailyGoals defines what information may be provided to modify an account's daily goals.
type UpdateDailyGoals struct {
	XPGoal      *int `json:"xp_goal" validate:"omitempty,min=1"`
	MinutesGoal *int `json:"minutes_goal" validate:"omitempty,min=1"`
	LessonsGoal *int `json:"lessons_goal" validate:"omitempty,min=1"`
}

func (ug UpdateDailyGoals) Validate() error { return core.Validate.Struct(ug) }

// Leaderboard metrics
const (
	MetricXP     = "xp"
	MetricCups   = "cups"
	MetricStreak = "streak"
)

var AllMetrics = []string{MetricXP, MetricCups, MetricStreak}

// Ranking is a user's position relative to all other accounts.
type Ranking struct {
	Global int `json:"global"`
	XP     int `json:"xp"`
	Level  int `json:"level"`
	Cups   int `json:"cups"`
	Streak int `json:"streak"`
}
