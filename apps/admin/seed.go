package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/mzalendo/maendeleo/core/achievement"
	"github.com/mzalendo/maendeleo/core/roadmap"
)

// defaultAchievements is the starter catalog. Seeding is idempotent: codes
// already present are left untouched.
var defaultAchievements = []achievement.NewDefinition{
	{
		Code: "FIRST_LESSON", Name: "First Steps", Description: "Complete your first lesson",
		Category: achievement.CategoryLearning, XPReward: 25,
		Requirement: achievement.Requirement{Kind: achievement.ReqLessonsCompleted, Threshold: 1},
		Order:       1,
	},
	{
		Code: "LESSONS_50", Name: "Dedicated Learner", Description: "Complete 50 lessons",
		Category: achievement.CategoryLearning, Rarity: achievement.RarityRare, XPReward: 150,
		Requirement: achievement.Requirement{Kind: achievement.ReqLessonsCompleted, Threshold: 50},
		Order:       2,
	},
	{
		Code: "STREAK_7", Name: "Week Warrior", Description: "Learn 7 days in a row",
		Category: achievement.CategoryStreak, XPReward: 70,
		Requirement: achievement.Requirement{Kind: achievement.ReqStreakDays, Threshold: 7},
		Order:       3,
	},
	{
		Code: "STREAK_30", Name: "Monthly Master", Description: "Learn 30 days in a row",
		Category: achievement.CategoryStreak, Rarity: achievement.RarityEpic, XPReward: 300, CupsReward: 10,
		Requirement: achievement.Requirement{Kind: achievement.ReqStreakDays, Threshold: 30},
		Order:       4,
	},
	{
		Code: "XP_1000", Name: "Knowledge Seeker", Description: "Earn 1000 XP",
		Category: achievement.CategoryCompletion, Rarity: achievement.RarityRare, CupsReward: 5,
		Requirement: achievement.Requirement{Kind: achievement.ReqTotalXP, Threshold: 1000},
		Order:       5,
	},
	{
		Code: "PERFECTIONIST", Name: "Perfectionist", Description: "Score 100% on 10 quizzes",
		Category: achievement.CategoryPerfection, Rarity: achievement.RarityLegendary, XPReward: 500,
		Requirement: achievement.Requirement{Kind: achievement.ReqPerfectQuizzes, Threshold: 10},
		IsSecret:    true, Order: 6,
	},
}

const defaultCourseID = "getting-started"

var defaultLevels = []roadmap.NewLevel{
	{
		CourseID: defaultCourseID,
		Order:    1, Title: "Foundations", Description: "Get comfortable with the basics",
		Difficulty: "beginner", EstimatedMinutes: 90,
		Lessons: []roadmap.Lesson{
			{ID: "found-1", Title: "Welcome", Order: 1, Required: true},
			{ID: "found-2", Title: "Core concepts", Order: 2, Required: true},
			{ID: "found-3", Title: "First practice", Order: 3},
		},
		Rewards: roadmap.Rewards{XP: 100, Cups: 5},
	},
	{
		CourseID: defaultCourseID,
		Order:    2, Title: "Explorer", Description: "Broaden your horizons",
		Difficulty: "intermediate", EstimatedMinutes: 120,
		Requirements: roadmap.UnlockRequirements{MinXP: 150},
		Lessons: []roadmap.Lesson{
			{ID: "expl-1", Title: "Going deeper", Order: 1, Required: true},
			{ID: "expl-2", Title: "Applied practice", Order: 2},
		},
		Rewards: roadmap.Rewards{XP: 200, Cups: 10},
	},
	{
		CourseID: defaultCourseID,
		Order:    3, Title: "Achiever", Description: "Prove your mastery",
		Difficulty: "advanced", EstimatedMinutes: 60,
		Requirements: roadmap.UnlockRequirements{MinXP: 500, RequiredAchievements: []string{"STREAK_7"}},
		Lessons: []roadmap.Lesson{
			{ID: "achv-1", Title: "Capstone", Order: 1, Required: true},
		},
		Rewards: roadmap.Rewards{XP: 500, Cups: 25},
	},
}

func (cli *commandLine) seed() error {
	ctx := context.Background()

	for _, nd := range defaultAchievements {
		nd := nd
		if err := nd.Validate(nil); err != nil {
			return errors.Wrapf(err, "validating achievement %s", nd.Code)
		}
		if _, err := cli.achSvc.Create(ctx, nd); err != nil {
			if errors.Cause(err) == achievement.ErrCodeExists {
				continue
			}
			return errors.Wrapf(err, "seeding achievement %s", nd.Code)
		}
		logger.Printf("seeded achievement %s", nd.Code)
	}

	existing, err := cli.rmSvc.QueryLevels(ctx, defaultCourseID)
	if err != nil {
		return errors.Wrap(err, "querying roadmap levels")
	}
	idByOrder := make(map[int]string, len(existing))
	for _, lvl := range existing {
		idByOrder[lvl.Order] = lvl.ID
	}

	var prevID string
	for _, nl := range defaultLevels {
		nl := nl
		if id, ok := idByOrder[nl.Order]; ok {
			prevID = id
			continue
		}
		if prevID != "" {
			nl.Requirements.PreviousLevelID = prevID
		}
		if err := nl.Validate(); err != nil {
			return errors.Wrapf(err, "validating level %q", nl.Title)
		}
		lvl, err := cli.rmSvc.CreateLevel(ctx, nl)
		if err != nil {
			return errors.Wrapf(err, "seeding level %q", nl.Title)
		}
		prevID = lvl.ID
		logger.Printf("seeded roadmap level %q", lvl.Title)
	}
	return nil
}
