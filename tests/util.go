package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/mzalendo/maendeleo/core/achievement"
	"github.com/mzalendo/maendeleo/core/progress"
	"github.com/mzalendo/maendeleo/core/roadmap"
)

func CreateAccount(
	t *testing.T,
	repo progress.Repository,
	userID string,
	xp, cups, streak int,
	lastActivity ...time.Time,
) progress.Account {
	acct := progress.NewAccount(userID)
	acct.XP = xp
	acct.TotalXPEarned = xp
	acct.Cups = cups
	acct.TotalCupsEarned = cups
	acct.CurrentStreak = streak
	acct.LongestStreak = streak
	if len(lastActivity) > 0 {
		acct.LastActivity = lastActivity[0].UTC()
	}
	acct, err := repo.CreateAccount(context.Background(), acct)
	if err != nil {
		t.Fatalf("CreateAccount() failed: %v", err)
	}
	return acct
}

func CreateDefinition(
	t *testing.T,
	repo achievement.Repository,
	code, name string,
	req achievement.Requirement,
	xpReward int,
	active bool,
) achievement.Definition {
	now := time.Now().UTC()
	def := achievement.Definition{
		Code:        code,
		Name:        name,
		Type:        achievement.TypeBadge,
		Category:    achievement.CategoryLearning,
		Rarity:      achievement.RarityCommon,
		XPReward:    xpReward,
		Requirement: req,
		IsActive:    active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	def, err := repo.CreateDefinition(context.Background(), def)
	if err != nil {
		t.Fatalf("CreateDefinition() failed: %v", err)
	}
	return def
}

func CreateLevel(
	t *testing.T,
	repo roadmap.Repository,
	courseID string,
	order int,
	title string,
	reqs roadmap.UnlockRequirements,
	lessons []roadmap.Lesson,
	rewards roadmap.Rewards,
) roadmap.Level {
	now := time.Now().UTC()
	lvl := roadmap.Level{
		ID:           title + "-id",
		CourseID:     courseID,
		Order:        order,
		Title:        title,
		Requirements: reqs,
		Lessons:      lessons,
		Rewards:      rewards,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	lvl, err := repo.CreateLevel(context.Background(), lvl)
	if err != nil {
		t.Fatalf("CreateLevel() failed: %v", err)
	}
	return lvl
}
