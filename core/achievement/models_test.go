package achievement

import (
	"testing"
)

func TestEvaluate(t *testing.T) {
	snap := Snapshot{
		Level:            5,
		TotalXPEarned:    1200,
		TotalCupsEarned:  40,
		CurrentStreak:    12,
		LongestStreak:    20,
		LessonsCompleted: 30,
		CoursesCompleted: 2,
		QuizzesPassed:    15,
		PerfectQuizzes:   3,
	}
	score := func(n int) *int { return &n }

	tests := []struct {
		name    string
		req     Requirement
		evalCtx Context
		want    bool
		wantErr error
	}{
		{name: "streak met", req: Requirement{Kind: ReqStreakDays, Threshold: 12}, want: true},
		{name: "streak unmet", req: Requirement{Kind: ReqStreakDays, Threshold: 13}, want: false},
		{name: "total xp met", req: Requirement{Kind: ReqTotalXP, Threshold: 1000}, want: true},
		{name: "total cups unmet", req: Requirement{Kind: ReqTotalCups, Threshold: 41}, want: false},
		{name: "level met", req: Requirement{Kind: ReqLevelReached, Threshold: 5}, want: true},
		{name: "lessons met", req: Requirement{Kind: ReqLessonsCompleted, Threshold: 30}, want: true},
		{name: "courses unmet", req: Requirement{Kind: ReqCoursesCompleted, Threshold: 3}, want: false},
		{name: "quizzes met", req: Requirement{Kind: ReqQuizzesPassed, Threshold: 10}, want: true},
		{name: "perfect quizzes met", req: Requirement{Kind: ReqPerfectQuizzes, Threshold: 3}, want: true},
		{
			name:    "quiz score met",
			req:     Requirement{Kind: ReqQuizScore, Threshold: 90},
			evalCtx: Context{QuizScore: score(95)},
			want:    true,
		},
		{
			name:    "quiz score unmet",
			req:     Requirement{Kind: ReqQuizScore, Threshold: 90},
			evalCtx: Context{QuizScore: score(85)},
			want:    false,
		},
		{
			name: "quiz score without a quiz",
			req:  Requirement{Kind: ReqQuizScore, Threshold: 90},
			want: false,
		},
		{name: "unknown kind", req: Requirement{Kind: "moon_phase"}, wantErr: ErrUnknownRequirement},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := Definition{Code: "TEST", Requirement: tt.req}
			got, err := Evaluate(def, snap, tt.evalCtx)
			if err != tt.wantErr {
				t.Fatalf("Evaluate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQueryFilterMatch(t *testing.T) {
	active := true
	def := Definition{
		Code:     "STREAK_7",
		Type:     TypeBadge,
		Category: CategoryStreak,
		Rarity:   RarityRare,
		IsActive: true,
	}

	tests := []struct {
		name   string
		filter QueryFilter
		want   bool
	}{
		{name: "empty matches", filter: QueryFilter{}, want: true},
		{name: "category match", filter: QueryFilter{Category: CategoryStreak}, want: true},
		{name: "category mismatch", filter: QueryFilter{Category: CategoryLearning}, want: false},
		{name: "combined match", filter: QueryFilter{Category: CategoryStreak, Rarity: RarityRare, IsActive: &active}, want: true},
		{name: "rarity mismatch", filter: QueryFilter{Rarity: RarityLegendary}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Match(def); got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewDefinitionDefaults(t *testing.T) {
	nd := NewDefinition{
		Code:        "FIRST_LESSON",
		Name:        "First Steps",
		Category:    CategoryLearning,
		Requirement: Requirement{Kind: ReqLessonsCompleted, Threshold: 1},
	}
	if err := nd.Validate(nil); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if nd.Type != TypeBadge {
		t.Errorf("Type = %q, want default %q", nd.Type, TypeBadge)
	}
	if nd.Rarity != RarityCommon {
		t.Errorf("Rarity = %q, want default %q", nd.Rarity, RarityCommon)
	}
}

func TestNewDefinitionValidation(t *testing.T) {
	valid := func() NewDefinition {
		return NewDefinition{
			Code:        "STREAK_7",
			Name:        "Week Warrior",
			Category:    CategoryStreak,
			Requirement: Requirement{Kind: ReqStreakDays, Threshold: 7},
		}
	}

	tests := []struct {
		name   string
		mutate func(*NewDefinition)
	}{
		{name: "lowercase code", mutate: func(nd *NewDefinition) { nd.Code = "streak_7" }},
		{name: "missing name", mutate: func(nd *NewDefinition) { nd.Name = "" }},
		{name: "bad category", mutate: func(nd *NewDefinition) { nd.Category = "vibes" }},
		{name: "bad requirement kind", mutate: func(nd *NewDefinition) { nd.Requirement.Kind = "moon_phase" }},
		{name: "negative reward", mutate: func(nd *NewDefinition) { nd.XPReward = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nd := valid()
			tt.mutate(&nd)
			if err := nd.Validate(nil); err == nil {
				t.Error("Validate() accepted invalid definition")
			}
		})
	}
}
