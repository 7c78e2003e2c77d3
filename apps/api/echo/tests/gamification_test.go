package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mzalendo/maendeleo/core/achievement"
	"github.com/mzalendo/maendeleo/core/progress"
	testutil "github.com/mzalendo/maendeleo/tests"
)

// accountPayload mirrors the account responses returned by the gamification API.
type accountPayload struct {
	progress.Account
	GoalsProgress progress.GoalsProgress `json:"daily_goals_progress"`
	Events        []progress.Event       `json:"events"`
}

func Test_gamificationApi_me(t *testing.T) {
	app := setup(t)

	req, rec := newRequest(http.MethodGet, "/v1/gamification/me")
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}, rec)

	// first touch lazily creates the account with defaults
	req, rec = newAuthRequest(http.MethodGet, "/v1/gamification/me", getToken(t, "alice", false))
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var acct accountPayload
	unmarchallObj(t, rec, &acct)
	assert.Equal(t, "alice", acct.UserID)
	assert.Equal(t, 1, acct.Level)
	assert.Equal(t, 0, acct.XP)
	assert.Equal(t, 100, acct.XPToNextLevel)
	assert.Equal(t, progress.DefaultXPGoal, acct.DailyGoals.XPGoal)
	assert.Zero(t, acct.GoalsProgress.XP)
}

func Test_gamificationApi_userDetail(t *testing.T) {
	app := setup(t)
	testutil.CreateAccount(t, acctRepo, "bob", 120, 5, 2)

	tests := []httpTest{
		{name: "Auth required", path: "/v1/gamification/users/bob", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Owner or admin required", path: "/v1/gamification/users/bob", token: getToken(t, "alice", false),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	for name, token := range map[string]string{
		"owner": getToken(t, "bob", false),
		"admin": getToken(t, "admin", true),
	} {
		t.Run(name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/gamification/users/bob", token)
			app.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code)

			var acct accountPayload
			unmarchallObj(t, rec, &acct)
			assert.Equal(t, "bob", acct.UserID)
			assert.Equal(t, 120, acct.TotalXPEarned)
		})
	}
}

func Test_gamificationApi_events(t *testing.T) {
	app := setup(t)
	testutil.CreateDefinition(t, defRepo, "FIRST_LESSON", "First Lesson",
		achievement.Requirement{Kind: achievement.ReqLessonsCompleted, Threshold: 1}, 25, true)

	adminToken := getToken(t, "admin", true)

	t.Run("admin required", func(t *testing.T) {
		body := marchallObj(t, progress.LearningEvent{UserID: "alice", Type: progress.EventTypeLessonCompleted})
		req, rec := newAuthRequest(http.MethodPost, "/v1/gamification/events", getToken(t, "alice", false), body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}, rec)
	})

	t.Run("lesson completed", func(t *testing.T) {
		body := marchallObj(t, progress.LearningEvent{UserID: "alice", Type: progress.EventTypeLessonCompleted, Minutes: 12})
		req, rec := newAuthRequest(http.MethodPost, "/v1/gamification/events", adminToken, body)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		var acct accountPayload
		unmarchallObj(t, rec, &acct)
		// default lesson XP plus the achievement reward
		assert.Equal(t, 75, acct.TotalXPEarned)
		assert.Equal(t, 1, acct.Stats.TotalLessonsCompleted)
		assert.Equal(t, 12, acct.Stats.TotalLearningMinutes)
		assert.Equal(t, 1, acct.CurrentStreak)
		assert.True(t, acct.HasAchievement("FIRST_LESSON"))
		assert.Contains(t, acct.Events, progress.Event{Kind: progress.EventAchievementUnlocked, AchievementCode: "FIRST_LESSON"})
		assert.NotEmpty(t, notif.Events["alice"])
	})

	t.Run("unknown type rejected", func(t *testing.T) {
		body := []byte(`{"user_id": "alice", "type": "mystery"}`)
		req, rec := newAuthRequest(http.MethodPost, "/v1/gamification/events", adminToken, body)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func Test_gamificationApi_checkin(t *testing.T) {
	app := setup(t)

	req, rec := newAuthRequest(http.MethodPost, "/v1/gamification/me/checkin", getToken(t, "alice", false))
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var acct accountPayload
	unmarchallObj(t, rec, &acct)
	assert.Equal(t, 10, acct.TotalXPEarned)
	assert.Equal(t, 1, acct.CurrentStreak)

	// same-day checkin earns again but the streak holds
	req, rec = newAuthRequest(http.MethodPost, "/v1/gamification/me/checkin", getToken(t, "alice", false))
	app.ServeHTTP(rec, req)
	unmarchallObj(t, rec, &acct)
	assert.Equal(t, 20, acct.TotalXPEarned)
	assert.Equal(t, 1, acct.CurrentStreak)
}

func Test_gamificationApi_grants(t *testing.T) {
	app := setup(t)
	testutil.CreateDefinition(t, defRepo, "EARLY_BIRD", "Early Bird",
		achievement.Requirement{Kind: achievement.ReqStreakDays, Threshold: 365}, 0, true)

	adminToken := getToken(t, "admin", true)
	bobToken := getToken(t, "bob", false)

	tests := []httpTest{
		{
			name: "Admin required (xp)", method: http.MethodPost, path: "/v1/gamification/users/bob/xp",
			body: marchallObj(t, map[string]int{"amount": 10}), token: bobToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "Zero amount rejected", method: http.MethodPost, path: "/v1/gamification/users/bob/xp",
			body: marchallObj(t, map[string]int{"amount": 0}), token: adminToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"amount": "this field is required"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("xp grant levels up", func(t *testing.T) {
		body := marchallObj(t, map[string]int{"amount": 120})
		req, rec := newAuthRequest(http.MethodPost, "/v1/gamification/users/bob/xp", adminToken, body)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		var acct accountPayload
		unmarchallObj(t, rec, &acct)
		assert.Equal(t, 2, acct.Level)
		assert.Equal(t, 20, acct.XP)
		assert.Equal(t, 150, acct.XPToNextLevel)
		assert.Contains(t, acct.Events, progress.Event{Kind: progress.EventLevelUp, Level: 2})
	})

	t.Run("cups grant", func(t *testing.T) {
		body := marchallObj(t, map[string]int{"amount": 7})
		req, rec := newAuthRequest(http.MethodPost, "/v1/gamification/users/bob/cups", adminToken, body)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		var acct accountPayload
		unmarchallObj(t, rec, &acct)
		assert.Equal(t, 7, acct.Cups)
	})

	t.Run("direct achievement grant", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/gamification/users/bob/achievements/EARLY_BIRD", adminToken)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		var acct accountPayload
		unmarchallObj(t, rec, &acct)
		assert.True(t, acct.HasAchievement("EARLY_BIRD"))
	})

	t.Run("unknown achievement", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/gamification/users/bob/achievements/NOPE", adminToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "achievement not found"})}, rec)
	})
}

func Test_gamificationApi_dailyGoals(t *testing.T) {
	app := setup(t)
	goal := func(n int) *int { return &n }

	t.Run("partial update", func(t *testing.T) {
		body := marchallObj(t, progress.UpdateDailyGoals{XPGoal: goal(80)})
		req, rec := newAuthRequest(http.MethodPut, "/v1/gamification/me/daily-goals", getToken(t, "alice", false), body)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		var acct accountPayload
		unmarchallObj(t, rec, &acct)
		assert.Equal(t, 80, acct.DailyGoals.XPGoal)
		assert.Equal(t, progress.DefaultMinutesGoal, acct.DailyGoals.MinutesGoal)
	})

	t.Run("zero goal rejected", func(t *testing.T) {
		body := marchallObj(t, progress.UpdateDailyGoals{LessonsGoal: goal(0)})
		req, rec := newAuthRequest(http.MethodPut, "/v1/gamification/me/daily-goals", getToken(t, "alice", false), body)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func Test_gamificationApi_leaderboard(t *testing.T) {
	app := setup(t)
	testutil.CreateAccount(t, acctRepo, "u1", 300, 4, 1)
	testutil.CreateAccount(t, acctRepo, "u2", 100, 9, 5)
	testutil.CreateAccount(t, acctRepo, "u3", 200, 2, 3)

	token := getToken(t, "u2", false)

	t.Run("default metric", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/gamification/leaderboard", token)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		var accts []progress.Account
		unmarchallObj(t, rec, &accts)
		ids := make([]string, 0, len(accts))
		for _, a := range accts {
			ids = append(ids, a.UserID)
		}
		assert.Equal(t, []string{"u1", "u3", "u2"}, ids)
	})

	t.Run("by streak with limit", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/gamification/leaderboard?metric=streak&limit=2", token)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		var accts []progress.Account
		unmarchallObj(t, rec, &accts)
		if assert.Len(t, accts, 2) {
			assert.Equal(t, "u2", accts[0].UserID)
			assert.Equal(t, "u3", accts[1].UserID)
		}
	})

	t.Run("unknown metric", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/gamification/leaderboard?metric=karma", token)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("ranking", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/gamification/me/ranking", getToken(t, "u3", false))
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		var rank progress.Ranking
		unmarchallObj(t, rec, &rank)
		assert.Equal(t, 2, rank.Global)
		assert.Equal(t, 200, rank.XP)
	})
}
