package progress

import (
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/mzalendo/maendeleo/core"
	"github.com/mzalendo/maendeleo/core/achievement"
)

// maxLevelUps bounds the applyXP loop; hitting it means the stored curve
// state is corrupted (e.g. XPToNextLevel <= 0) and the account must not
// be saved.
const maxLevelUps = 1000

// applyXP adds amount to the account and resolves any level-ups, carrying
// surplus XP into each new level. Returns a level_up event per level gained.
func applyXP(acct *Account, amount int) ([]Event, error) {
	if amount <= 0 {
		return nil, errors.Wrapf(ErrInvalidGrant, "xp %d", amount)
	}

	acct.XP += amount
	acct.TotalXPEarned += amount
	acct.TodayProgress.XPEarned += amount

	var events []Event
	for i := 0; acct.XP >= acct.XPToNextLevel; i++ {
		if i >= maxLevelUps || acct.XPToNextLevel <= 0 {
			return nil, errors.Wrapf(ErrMalformedState, "user %s: level %d, xp_to_next_level %d", acct.UserID, acct.Level, acct.XPToNextLevel)
		}
		acct.XP -= acct.XPToNextLevel
		acct.Level++
		acct.XPToNextLevel = int(math.Floor(float64(acct.XPToNextLevel) * XPGrowthFactor))
		events = append(events, Event{Kind: EventLevelUp, Level: acct.Level})
	}
	return events, nil
}

func applyCups(acct *Account, amount int) error {
	if amount <= 0 {
		return errors.Wrapf(ErrInvalidGrant, "cups %d", amount)
	}
	acct.Cups += amount
	acct.TotalCupsEarned += amount
	return nil
}

// applyStreak advances the streak machine for activity on the given day.
// Same-day activity is a no-op, the next day extends the streak, any
// longer gap resets it to 1. Activity before the last recorded day is
// rejected so replays cannot corrupt the streak.
func applyStreak(acct *Account, activity time.Time) ([]Event, error) {
	day := core.Date(activity)

	if acct.LastActivity.IsZero() {
		acct.CurrentStreak = 1
		acct.LastActivity = day
		if acct.LongestStreak < 1 {
			acct.LongestStreak = 1
		}
		return streakEvents(acct.CurrentStreak), nil
	}

	switch days := core.DaysBetween(acct.LastActivity, day); {
	case days < 0:
		return nil, errors.Wrapf(ErrOutOfOrderEvent, "activity %s before last %s",
			day.Format("2006-01-02"), acct.LastActivity.Format("2006-01-02"))
	case days == 0:
		return nil, nil
	case days == 1:
		acct.CurrentStreak++
		if acct.CurrentStreak > acct.LongestStreak {
			acct.LongestStreak = acct.CurrentStreak
		}
	default:
		acct.CurrentStreak = 1
	}
	acct.LastActivity = day
	return streakEvents(acct.CurrentStreak), nil
}

func streakEvents(streak int) []Event {
	for _, m := range streakMilestones {
		if streak == m {
			return []Event{{Kind: EventStreakMilestone, Streak: streak}}
		}
	}
	return nil
}

// applyDailyReset zeroes today's counters when the day has rolled over
// since they were last reset. Daily goals themselves are untouched.
func applyDailyReset(acct *Account, now time.Time) {
	day := core.Date(now)
	if core.DaysBetween(acct.TodayProgress.LastResetDate, day) <= 0 {
		return
	}
	acct.TodayProgress = TodayProgress{LastResetDate: day}
}

// unlock records the achievement on the account and applies its rewards.
// Idempotent: already-held codes are a no-op. Reward XP may trigger
// level-ups; it never re-enters achievement evaluation.
func unlock(acct *Account, def achievement.Definition, now time.Time) ([]Event, error) {
	if acct.HasAchievement(def.Code) {
		return nil, nil
	}

	acct.Achievements = append(acct.Achievements, UnlockedAchievement{
		Code:       def.Code,
		UnlockedAt: now,
		Progress:   100,
	})
	events := []Event{{Kind: EventAchievementUnlocked, AchievementCode: def.Code}}

	if def.XPReward > 0 {
		levelUps, err := applyXP(acct, def.XPReward)
		if err != nil {
			return nil, err
		}
		events = append(events, levelUps...)
	}
	if def.CupsReward > 0 {
		if err := applyCups(acct, def.CupsReward); err != nil {
			return nil, err
		}
	}
	return events, nil
}

// evaluateAchievements unlocks every active achievement whose requirement
// the account now satisfies. Requirements are checked against a snapshot
// taken before any unlock, so rewards granted in this pass cannot cascade
// into further unlocks; those land on the next event.
func evaluateAchievements(acct *Account, defs []achievement.Definition, evalCtx achievement.Context, now time.Time) ([]Event, []string, error) {
	snap := acct.Snapshot()

	var (
		events []Event
		codes  []string
	)
	for _, def := range defs {
		if !def.IsActive || acct.HasAchievement(def.Code) {
			continue
		}
		ok, err := achievement.Evaluate(def, snap, evalCtx)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			continue
		}
		evs, err := unlock(acct, def, now)
		if err != nil {
			return nil, nil, err
		}
		events = append(events, evs...)
		codes = append(codes, def.Code)
	}
	return events, codes, nil
}
