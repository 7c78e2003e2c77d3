package progress

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/mzalendo/maendeleo/core"
	"github.com/mzalendo/maendeleo/core/achievement"
)

var (
	ErrNotFound        = errors.New("progress account not found")
	ErrInvalidGrant    = errors.New("grant amount must be positive")
	ErrOutOfOrderEvent = errors.New("activity predates last recorded activity")
	ErrMalformedState  = errors.New("progress account state is corrupted")
)

const (
	defaultLeaderboardSize = 100
	maxLeaderboardSize     = 500
)

// escalateMalformed turns a corrupted-curve error into a shutdown error,
// so the API signals the process to stop instead of serving from bad state.
func escalateMalformed(err error) error {
	if errors.Cause(err) == ErrMalformedState {
		return core.NewShutdownError(err.Error())
	}
	return err
}

type (
	Repository interface {
		CreateAccount(ctx context.Context, acct Account) (Account, error)
		GetAccountByUserID(ctx context.Context, userID string) (Account, error)

		// SaveAccount persists acct only if the stored version still equals
		// acct.Version, then returns the account with its version bumped.
		// A stale version yields core.ErrVersionConflict.
		SaveAccount(ctx context.Context, acct Account) (Account, error)

		ListTopAccounts(ctx context.Context, metric string, limit int) ([]Account, error)
		CountAccountsWithMoreXP(ctx context.Context, xp int) (int, error)
	}

	// Notifier receives progression events after the account is durably
	// saved. Delivery is fire-and-forget; implementations must not block
	// the progression path and failures never propagate back.
	Notifier interface {
		Notify(userID string, events []Event)
	}

	Service interface {
		// Get returns the user's account, creating it on first touch.
		Get(ctx context.Context, userID string) (Account, error)
		AddXP(ctx context.Context, userID string, amount int) (Account, []Event, error)
		AddCups(ctx context.Context, userID string, amount int) (Account, error)
		// UnlockAchievement grants the achievement directly, bypassing its
		// requirement (admin and roadmap badge grants).
		UnlockAchievement(ctx context.Context, userID, code string) (Account, []Event, error)
		HandleEvent(ctx context.Context, ev LearningEvent) (Account, []Event, error)
		UpdateDailyGoals(ctx context.Context, userID string, ug UpdateDailyGoals) (Account, error)
		Leaderboard(ctx context.Context, metric string, limit int) ([]Account, error)
		Ranking(ctx context.Context, userID string) (Ranking, error)
	}

	service struct {
		repo     Repository
		catalog  achievement.Service
		notifier Notifier
		log      core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, catalog achievement.Service, notifier Notifier, log core.Logger) Service {
	return &service{
		repo:     repo,
		catalog:  catalog,
		notifier: notifier,
		log:      log,
	}
}

func (svc *service) Get(ctx context.Context, userID string) (Account, error) {
	acct, created, err := svc.getOrCreate(ctx, userID)
	if err != nil {
		return Account{}, err
	}
	if created {
		return acct, nil
	}

	// roll today's counters over on read so clients never see yesterday's
	before := acct.TodayProgress.LastResetDate
	applyDailyReset(&acct, time.Now().UTC())
	if acct.TodayProgress.LastResetDate.Equal(before) {
		return acct, nil
	}
	return svc.save(ctx, acct)
}

func (svc *service) AddXP(ctx context.Context, userID string, amount int) (Account, []Event, error) {
	acct, _, err := svc.getOrCreate(ctx, userID)
	if err != nil {
		return Account{}, nil, err
	}
	applyDailyReset(&acct, time.Now().UTC())

	events, err := applyXP(&acct, amount)
	if err != nil {
		return Account{}, nil, escalateMalformed(err)
	}
	acct, err = svc.save(ctx, acct)
	if err != nil {
		return Account{}, nil, err
	}
	svc.notify(acct.UserID, events)
	return acct, events, nil
}

func (svc *service) AddCups(ctx context.Context, userID string, amount int) (Account, error) {
	acct, _, err := svc.getOrCreate(ctx, userID)
	if err != nil {
		return Account{}, err
	}
	if err := applyCups(&acct, amount); err != nil {
		return Account{}, err
	}
	return svc.save(ctx, acct)
}

func (svc *service) UnlockAchievement(ctx context.Context, userID, code string) (Account, []Event, error) {
	def, err := svc.catalog.GetByCode(ctx, code)
	if err != nil {
		return Account{}, nil, err
	}

	acct, _, err := svc.getOrCreate(ctx, userID)
	if err != nil {
		return Account{}, nil, err
	}
	if acct.HasAchievement(code) {
		return acct, nil, nil
	}

	events, err := unlock(&acct, def, time.Now().UTC())
	if err != nil {
		return Account{}, nil, escalateMalformed(err)
	}
	acct, err = svc.save(ctx, acct)
	if err != nil {
		return Account{}, nil, err
	}

	svc.catalog.RecordUnlock(ctx, code)
	svc.notify(acct.UserID, events)
	return acct, events, nil
}

// HandleEvent runs the full progression pipeline for one learning event:
// daily reset, streak, stat counters, XP/cups grants, then achievement
// evaluation. The account is saved once, after all transitions.
func (svc *service) HandleEvent(ctx context.Context, ev LearningEvent) (Account, []Event, error) {
	if err := ev.Validate(); err != nil {
		return Account{}, nil, err
	}

	acct, _, err := svc.getOrCreate(ctx, ev.UserID)
	if err != nil {
		return Account{}, nil, err
	}
	occurred := ev.OccurredAt.UTC()
	applyDailyReset(&acct, occurred)

	events, err := applyStreak(&acct, occurred)
	if err != nil {
		return Account{}, nil, err
	}

	xp, cups := ev.XP, ev.Cups
	switch ev.Type {
	case EventTypeLessonCompleted:
		if xp == 0 {
			xp = DefaultLessonXP
		}
		acct.Stats.TotalLessonsCompleted++
		acct.TodayProgress.LessonsCompleted++
	case EventTypeQuizPassed:
		if xp == 0 {
			xp = DefaultQuizXP
		}
		acct.Stats.TotalQuizzesPassed++
		if ev.QuizScore != nil {
			n := acct.Stats.TotalQuizzesPassed
			acct.Stats.AverageQuizScore = (acct.Stats.AverageQuizScore*float64(n-1) + float64(*ev.QuizScore)) / float64(n)
			if *ev.QuizScore == 100 {
				acct.Stats.PerfectQuizzes++
			}
		}
	case EventTypeDailyCheckin:
		if xp == 0 {
			xp = DefaultCheckinXP
		}
	case EventTypeLevelCompleted:
		// amounts come from the level's reward config; no defaults
	}
	if ev.Minutes > 0 {
		acct.Stats.TotalLearningMinutes += ev.Minutes
		acct.TodayProgress.MinutesStudied += ev.Minutes
	}

	if xp > 0 {
		evs, err := applyXP(&acct, xp)
		if err != nil {
			return Account{}, nil, escalateMalformed(err)
		}
		events = append(events, evs...)
	}
	if cups > 0 {
		if err := applyCups(&acct, cups); err != nil {
			return Account{}, nil, err
		}
	}

	defs, err := svc.catalog.Active(ctx)
	if err != nil {
		return Account{}, nil, err
	}
	evs, unlocked, err := evaluateAchievements(&acct, defs, achievement.Context{QuizScore: ev.QuizScore}, occurred)
	if err != nil {
		return Account{}, nil, escalateMalformed(err)
	}
	events = append(events, evs...)

	acct, err = svc.save(ctx, acct)
	if err != nil {
		return Account{}, nil, err
	}

	for _, code := range unlocked {
		svc.catalog.RecordUnlock(ctx, code)
	}
	svc.notify(acct.UserID, events)
	return acct, events, nil
}

func (svc *service) UpdateDailyGoals(ctx context.Context, userID string, ug UpdateDailyGoals) (Account, error) {
	if err := ug.Validate(); err != nil {
		return Account{}, err
	}

	acct, _, err := svc.getOrCreate(ctx, userID)
	if err != nil {
		return Account{}, err
	}
	if ug.XPGoal != nil {
		acct.DailyGoals.XPGoal = *ug.XPGoal
	}
	if ug.MinutesGoal != nil {
		acct.DailyGoals.MinutesGoal = *ug.MinutesGoal
	}
	if ug.LessonsGoal != nil {
		acct.DailyGoals.LessonsGoal = *ug.LessonsGoal
	}
	return svc.save(ctx, acct)
}

func (svc *service) Leaderboard(ctx context.Context, metric string, limit int) ([]Account, error) {
	switch metric {
	case MetricXP, MetricCups, MetricStreak:
	case "":
		metric = MetricXP
	default:
		return nil, core.NewValidationError(errors.New("unknown leaderboard metric"),
			core.FieldError{Field: "metric", Error: "must be one of xp, cups, streak"})
	}
	if limit <= 0 {
		limit = defaultLeaderboardSize
	} else if limit > maxLeaderboardSize {
		limit = maxLeaderboardSize
	}
	return svc.repo.ListTopAccounts(ctx, metric, limit)
}

func (svc *service) Ranking(ctx context.Context, userID string) (Ranking, error) {
	acct, _, err := svc.getOrCreate(ctx, userID)
	if err != nil {
		return Ranking{}, err
	}
	ahead, err := svc.repo.CountAccountsWithMoreXP(ctx, acct.XP)
	if err != nil {
		return Ranking{}, err
	}
	return Ranking{
		Global: ahead + 1,
		XP:     acct.XP,
		Level:  acct.Level,
		Cups:   acct.Cups,
		Streak: acct.CurrentStreak,
	}, nil
}

func (svc *service) getOrCreate(ctx context.Context, userID string) (Account, bool, error) {
	userID = core.CleanString(userID)
	if userID == "" {
		return Account{}, false, core.NewValidationError(errors.New("missing user id"),
			core.FieldError{Field: "user_id", Error: "required"})
	}

	acct, err := svc.repo.GetAccountByUserID(ctx, userID)
	if err == nil {
		return acct, false, nil
	}
	if errors.Cause(err) != ErrNotFound {
		return Account{}, false, err
	}

	acct, err = svc.repo.CreateAccount(ctx, NewAccount(userID))
	if err != nil {
		return Account{}, false, err
	}
	return acct, true, nil
}

// save persists the mutated account. Version conflicts bubble up as
// core.ErrVersionConflict; retrying with a fresh read is the caller's call.
func (svc *service) save(ctx context.Context, acct Account) (Account, error) {
	acct.UpdatedAt = time.Now().UTC()
	return svc.repo.SaveAccount(ctx, acct)
}

func (svc *service) notify(userID string, events []Event) {
	if svc.notifier == nil || len(events) == 0 {
		return
	}
	svc.notifier.Notify(userID, events)
}
