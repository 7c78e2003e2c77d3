package roadmap

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mzalendo/maendeleo/core"
	"github.com/mzalendo/maendeleo/core/progress"
)

var (
	ErrLevelNotFound    = errors.New("roadmap level not found")
	ErrProgressNotFound = errors.New("level progress not found")
	ErrNotUnlocked      = errors.New("level has not been unlocked")
	ErrUnknownLesson    = errors.New("lesson does not belong to this level")
)

type (
	Repository interface {
		CreateLevel(ctx context.Context, lvl Level) (Level, error)
		// QueryLevels lists levels, optionally narrowed to a course.
		// An empty courseID spans the whole roadmap.
		QueryLevels(ctx context.Context, courseID string, activeOnly bool) ([]Level, error)
		GetLevelByID(ctx context.Context, id string) (Level, error)
		UpdateLevel(ctx context.Context, lvl Level) (Level, error)
		DeleteLevelByID(ctx context.Context, id string) error

		// RecordLevelStart and RecordLevelCompletion update level stats
		// atomically; the rolling completion-time average is maintained
		// by the backend.
		RecordLevelStart(ctx context.Context, levelID string) error
		RecordLevelCompletion(ctx context.Context, levelID string, hours float64) error

		GetProgress(ctx context.Context, userID, levelID string) (Progress, error)
		QueryProgressByUser(ctx context.Context, userID, courseID string) ([]Progress, error)
		CreateProgress(ctx context.Context, prog Progress) (Progress, error)

		// SaveProgress persists prog only if the stored version still equals
		// prog.Version, then returns the record with its version bumped.
		// A stale version yields core.ErrVersionConflict.
		SaveProgress(ctx context.Context, prog Progress) (Progress, error)
	}

	// ProgressService is the slice of the progression engine the roadmap
	// needs: lifetime totals for gating, reward grants on completion.
	ProgressService interface {
		Get(ctx context.Context, userID string) (progress.Account, error)
		HandleEvent(ctx context.Context, ev progress.LearningEvent) (progress.Account, []progress.Event, error)
		UnlockAchievement(ctx context.Context, userID, code string) (progress.Account, []progress.Event, error)
	}

	Service interface {
		CreateLevel(ctx context.Context, nl NewLevel) (Level, error)
		QueryLevels(ctx context.Context, courseID string) ([]Level, error)
		GetLevel(ctx context.Context, id string) (Level, error)
		UpdateLevel(ctx context.Context, id string, ul UpdateLevel) (Level, error)
		DeleteLevel(ctx context.Context, id string) error

		// GetUserProgress returns the learner's records, optionally
		// narrowed to a course. First touch on a course unlocks its
		// entry level.
		GetUserProgress(ctx context.Context, userID, courseID string) ([]Progress, error)
		CheckUnlock(ctx context.Context, userID, levelID string) (Eligibility, error)
		// Unlock makes the level available. force bypasses the requirement
		// check (admin grants). Already-unlocked levels are a no-op.
		Unlock(ctx context.Context, userID, levelID string, force bool) (Progress, error)
		UpdateLessonProgress(ctx context.Context, userID, levelID, lessonID string) (Progress, error)
		// Complete finishes the level and grants its rewards exactly
		// once. score is optional (graded levels only).
		Complete(ctx context.Context, userID, levelID string, score *int) (Progress, []progress.Event, error)
	}

	service struct {
		repo    Repository
		tracker ProgressService
		log     core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, tracker ProgressService, log core.Logger) Service {
	return &service{
		repo:    repo,
		tracker: tracker,
		log:     log,
	}
}

func (svc *service) CreateLevel(ctx context.Context, nl NewLevel) (Level, error) {
	if err := nl.Validate(); err != nil {
		return Level{}, err
	}

	now := time.Now().UTC()
	lvl := Level{
		ID:               uuid.New().String(),
		CourseID:         nl.CourseID,
		Order:            nl.Order,
		Title:            nl.Title,
		Description:      nl.Description,
		Difficulty:       nl.Difficulty,
		EstimatedMinutes: nl.EstimatedMinutes,
		Requirements:     nl.Requirements,
		Lessons:          nl.Lessons,
		Rewards:          nl.Rewards,
		IsActive:         *nl.IsActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	return svc.repo.CreateLevel(ctx, lvl)
}

func (svc *service) QueryLevels(ctx context.Context, courseID string) ([]Level, error) {
	return svc.repo.QueryLevels(ctx, core.CleanString(courseID), false)
}

func (svc *service) GetLevel(ctx context.Context, id string) (Level, error) {
	return svc.repo.GetLevelByID(ctx, core.CleanString(id))
}

func (svc *service) UpdateLevel(ctx context.Context, id string, ul UpdateLevel) (Level, error) {
	if err := ul.Validate(); err != nil {
		return Level{}, err
	}

	lvl, err := svc.repo.GetLevelByID(ctx, core.CleanString(id))
	if err != nil {
		return Level{}, err
	}

	if ul.Order != nil {
		lvl.Order = *ul.Order
	}
	if ul.Title != "" {
		lvl.Title = ul.Title
	}
	if ul.Description != nil {
		lvl.Description = *ul.Description
	}
	if ul.Difficulty != nil {
		lvl.Difficulty = *ul.Difficulty
	}
	if ul.EstimatedMinutes != nil {
		lvl.EstimatedMinutes = *ul.EstimatedMinutes
	}
	if ul.Requirements != nil {
		lvl.Requirements = *ul.Requirements
	}
	if ul.Lessons != nil {
		lvl.Lessons = ul.Lessons
	}
	if ul.Rewards != nil {
		lvl.Rewards = *ul.Rewards
	}
	if ul.IsActive != nil {
		lvl.IsActive = *ul.IsActive
	}
	lvl.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateLevel(ctx, lvl)
}

func (svc *service) DeleteLevel(ctx context.Context, id string) error {
	return svc.repo.DeleteLevelByID(ctx, core.CleanString(id))
}

func (svc *service) GetUserProgress(ctx context.Context, userID, courseID string) ([]Progress, error) {
	userID, courseID = core.CleanString(userID), core.CleanString(courseID)

	recs, err := svc.repo.QueryProgressByUser(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	if len(recs) > 0 || courseID == "" {
		return recs, nil
	}

	// first touch on a course: open it by unlocking the entry level
	first, err := svc.firstLevel(ctx, courseID)
	if err != nil {
		if errors.Cause(err) == ErrLevelNotFound {
			return recs, nil // empty roadmap
		}
		return nil, err
	}
	prog, err := svc.Unlock(ctx, userID, first.ID, true)
	if err != nil {
		return nil, err
	}
	return []Progress{prog}, nil
}

// CheckUnlock evaluates every unlock requirement and reports all unmet
// ones. Gating reads the learner's lifetime totals, not spendable balances.
func (svc *service) CheckUnlock(ctx context.Context, userID, levelID string) (Eligibility, error) {
	lvl, err := svc.repo.GetLevelByID(ctx, core.CleanString(levelID))
	if err != nil {
		return Eligibility{}, err
	}

	acct, err := svc.tracker.Get(ctx, core.CleanString(userID))
	if err != nil {
		return Eligibility{}, err
	}

	var reasons []string
	req := lvl.Requirements

	if req.PreviousLevelID != "" {
		prev, err := svc.repo.GetProgress(ctx, acct.UserID, req.PreviousLevelID)
		switch {
		case err == nil:
			if !prev.IsCompleted() {
				reasons = append(reasons, "previous level not completed")
			}
		case errors.Cause(err) == ErrProgressNotFound:
			reasons = append(reasons, "previous level not completed")
		default:
			return Eligibility{}, err
		}
	}
	if acct.TotalXPEarned < req.MinXP {
		reasons = append(reasons, fmt.Sprintf("requires %d XP, have %d", req.MinXP, acct.TotalXPEarned))
	}
	if acct.TotalCupsEarned < req.MinCups {
		reasons = append(reasons, fmt.Sprintf("requires %d cups, have %d", req.MinCups, acct.TotalCupsEarned))
	}
	for _, code := range req.RequiredAchievements {
		if !acct.HasAchievement(code) {
			reasons = append(reasons, fmt.Sprintf("missing achievement %s", code))
		}
	}

	return Eligibility{Eligible: len(reasons) == 0, Reasons: reasons}, nil
}

func (svc *service) Unlock(ctx context.Context, userID, levelID string, force bool) (Progress, error) {
	userID, levelID = core.CleanString(userID), core.CleanString(levelID)

	lvl, err := svc.repo.GetLevelByID(ctx, levelID)
	if err != nil {
		return Progress{}, err
	}

	prog, err := svc.repo.GetProgress(ctx, userID, levelID)
	if err == nil {
		return prog, nil
	}
	if errors.Cause(err) != ErrProgressNotFound {
		return Progress{}, err
	}

	if !force {
		elig, err := svc.CheckUnlock(ctx, userID, levelID)
		if err != nil {
			return Progress{}, err
		}
		if !elig.Eligible {
			return Progress{}, &LockedError{LevelID: levelID, Reasons: elig.Reasons}
		}
	}

	now := time.Now().UTC()
	prog, err = svc.repo.CreateProgress(ctx, Progress{
		UserID:     userID,
		CourseID:   lvl.CourseID,
		LevelID:    levelID,
		Status:     StatusUnlocked,
		UnlockedAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return Progress{}, err
	}

	if err := svc.repo.RecordLevelStart(ctx, levelID); err != nil && svc.log != nil {
		svc.log.Warning(fmt.Sprintf("recording level start: %v", err), err)
	}
	return prog, nil
}

func (svc *service) UpdateLessonProgress(ctx context.Context, userID, levelID, lessonID string) (Progress, error) {
	userID, levelID, lessonID = core.CleanString(userID), core.CleanString(levelID), core.CleanString(lessonID)

	lvl, err := svc.repo.GetLevelByID(ctx, levelID)
	if err != nil {
		return Progress{}, err
	}
	if !lvl.HasLesson(lessonID) {
		return Progress{}, errors.Wrap(ErrUnknownLesson, lessonID)
	}

	prog, err := svc.repo.GetProgress(ctx, userID, levelID)
	if err != nil {
		if errors.Cause(err) == ErrProgressNotFound {
			return Progress{}, errors.Wrap(ErrNotUnlocked, levelID)
		}
		return Progress{}, err
	}
	if prog.IsCompleted() || prog.HasCompletedLesson(lessonID) {
		return prog, nil
	}

	prog.CompletedLessons = append(prog.CompletedLessons, lessonID)
	prog.Percentage = lessonPercentage(len(prog.CompletedLessons), len(lvl.Lessons))
	prog.Status = StatusInProgress
	prog.UpdatedAt = time.Now().UTC()
	return svc.repo.SaveProgress(ctx, prog)
}

func (svc *service) Complete(ctx context.Context, userID, levelID string, score *int) (Progress, []progress.Event, error) {
	userID, levelID = core.CleanString(userID), core.CleanString(levelID)

	lvl, err := svc.repo.GetLevelByID(ctx, levelID)
	if err != nil {
		return Progress{}, nil, err
	}

	prog, err := svc.repo.GetProgress(ctx, userID, levelID)
	if err != nil {
		if errors.Cause(err) == ErrProgressNotFound {
			return Progress{}, nil, errors.Wrap(ErrNotUnlocked, levelID)
		}
		return Progress{}, nil, err
	}
	if prog.IsCompleted() {
		if prog.RewardsGranted {
			return prog, nil, nil
		}
		// previous attempt saved the completion but the grant failed;
		// retry delivery so the rewards are not lost
		return svc.deliverRewards(ctx, lvl, prog)
	}

	now := time.Now().UTC()
	prog.Status = StatusCompleted
	prog.Percentage = 100
	prog.CompletedAt = &now
	prog.Score = score
	prog.UpdatedAt = now

	// persist before granting so a version conflict cannot double-reward
	prog, err = svc.repo.SaveProgress(ctx, prog)
	if err != nil {
		return Progress{}, nil, err
	}

	hours := now.Sub(prog.UnlockedAt).Hours()
	if err := svc.repo.RecordLevelCompletion(ctx, levelID, hours); err != nil && svc.log != nil {
		svc.log.Warning(fmt.Sprintf("recording level completion: %v", err), err)
	}

	return svc.deliverRewards(ctx, lvl, prog)
}

// deliverRewards grants the level's rewards to the account, then marks the
// row so they are never granted twice. The flag is only persisted after
// both grants succeeded; a failure leaves it unset for the next attempt.
func (svc *service) deliverRewards(ctx context.Context, lvl Level, prog Progress) (Progress, []progress.Event, error) {
	var events []progress.Event
	if lvl.Rewards.XP > 0 || lvl.Rewards.Cups > 0 {
		_, evs, err := svc.tracker.HandleEvent(ctx, progress.LearningEvent{
			UserID:     prog.UserID,
			Type:       progress.EventTypeLevelCompleted,
			XP:         lvl.Rewards.XP,
			Cups:       lvl.Rewards.Cups,
			OccurredAt: time.Now().UTC(),
		})
		if err != nil {
			return Progress{}, nil, errors.Wrap(err, "granting level rewards")
		}
		events = append(events, evs...)
	}
	if lvl.Rewards.BadgeCode != "" {
		_, evs, err := svc.tracker.UnlockAchievement(ctx, prog.UserID, lvl.Rewards.BadgeCode)
		if err != nil {
			return Progress{}, nil, errors.Wrap(err, "granting level badge")
		}
		events = append(events, evs...)
	}

	prog.RewardsGranted = true
	prog.XPEarned = lvl.Rewards.XP
	prog.CupsEarned = lvl.Rewards.Cups
	prog.UpdatedAt = time.Now().UTC()
	prog, err := svc.repo.SaveProgress(ctx, prog)
	if err != nil {
		return Progress{}, nil, err
	}
	return prog, events, nil
}

// firstLevel is the course's lowest-ordered active level.
func (svc *service) firstLevel(ctx context.Context, courseID string) (Level, error) {
	lvls, err := svc.repo.QueryLevels(ctx, courseID, true)
	if err != nil {
		return Level{}, err
	}
	if len(lvls) == 0 {
		return Level{}, ErrLevelNotFound
	}
	first := lvls[0]
	for _, lvl := range lvls[1:] {
		if lvl.Order < first.Order {
			first = lvl
		}
	}
	return first, nil
}
