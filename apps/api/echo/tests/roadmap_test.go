package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mzalendo/maendeleo/core/achievement"
	"github.com/mzalendo/maendeleo/core/roadmap"
	testutil "github.com/mzalendo/maendeleo/tests"
)

const courseID = "swahili-101"

func roadmapFixtures(t *testing.T) (roadmap.Level, roadmap.Level) {
	lvl1 := testutil.CreateLevel(t, lvlRepo, courseID, 1, "foundations",
		roadmap.UnlockRequirements{},
		[]roadmap.Lesson{
			{ID: "l1", Title: "Intro", Order: 1, Required: true},
			{ID: "l2", Title: "Basics", Order: 2, Required: true},
			{ID: "l3", Title: "Wrap up", Order: 3},
		},
		roadmap.Rewards{XP: 100, Cups: 10, BadgeCode: "FOUNDATIONS_DONE"},
	)
	lvl2 := testutil.CreateLevel(t, lvlRepo, courseID, 2, "explorer",
		roadmap.UnlockRequirements{PreviousLevelID: lvl1.ID, MinXP: 150},
		[]roadmap.Lesson{{ID: "l4", Title: "Deeper", Order: 1, Required: true}},
		roadmap.Rewards{XP: 200},
	)
	return lvl1, lvl2
}

func Test_roadmapApi_levels(t *testing.T) {
	app := setup(t)
	lvl1, lvl2 := roadmapFixtures(t)
	other := testutil.CreateLevel(t, lvlRepo, "arabic-201", 1, "arabic-foundations",
		roadmap.UnlockRequirements{}, nil, roadmap.Rewards{XP: 50})

	tests := []httpTest{
		{name: "Auth required", path: "/v1/roadmap/levels", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "List", path: "/v1/roadmap/levels", token: getToken(t, "alice", false),
			wantCode: http.StatusOK, wantData: marchallList(t, lvl1, other, lvl2),
		},
		{
			name: "List by course", path: "/v1/roadmap/levels?course=" + courseID, token: getToken(t, "alice", false),
			wantCode: http.StatusOK, wantData: marchallList(t, lvl1, lvl2),
		},
		{
			name: "Detail", path: "/v1/roadmap/levels/" + lvl2.ID, token: getToken(t, "alice", false),
			wantCode: http.StatusOK, wantData: marchallObj(t, lvl2),
		},
		{
			name: "Unknown level", path: "/v1/roadmap/levels/nope", token: getToken(t, "alice", false),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "roadmap level not found"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_roadmapApi_progress(t *testing.T) {
	app := setup(t)
	lvl1, lvl2 := roadmapFixtures(t)
	aliceToken := getToken(t, "alice", false)

	t.Run("first touch unlocks the first level", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/roadmap/me?course="+courseID, aliceToken)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		var progs []roadmap.Progress
		unmarchallObj(t, rec, &progs)
		if assert.Len(t, progs, 1) {
			assert.Equal(t, courseID, progs[0].CourseID)
			assert.Equal(t, lvl1.ID, progs[0].LevelID)
			assert.Equal(t, roadmap.StatusUnlocked, progs[0].Status)
		}
	})

	t.Run("unscoped read spans courses without opening any", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/roadmap/me", getToken(t, "carol", false))
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		var progs []roadmap.Progress
		unmarchallObj(t, rec, &progs)
		assert.Len(t, progs, 0)
	})

	t.Run("eligibility lists every gap", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/roadmap/me/levels/"+lvl2.ID+"/eligibility", aliceToken)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		var elig roadmap.Eligibility
		unmarchallObj(t, rec, &elig)
		assert.False(t, elig.Eligible)
		assert.Len(t, elig.Reasons, 2)
	})

	t.Run("locked unlock attempt", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/roadmap/me/levels/"+lvl2.ID+"/unlock", aliceToken)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		var body struct {
			Error   string   `json:"error"`
			Reasons []string `json:"reasons"`
		}
		unmarchallObj(t, rec, &body)
		assert.Equal(t, "level locked", body.Error)
		assert.Len(t, body.Reasons, 2)
	})

	t.Run("admin force unlock", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/roadmap/users/bob/levels/"+lvl2.ID+"/unlock", getToken(t, "admin", true))
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		var prog roadmap.Progress
		unmarchallObj(t, rec, &prog)
		assert.Equal(t, "bob", prog.UserID)
		assert.Equal(t, roadmap.StatusUnlocked, prog.Status)
	})

	t.Run("force unlock is admin only", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/roadmap/users/alice/levels/"+lvl2.ID+"/unlock", aliceToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}, rec)
	})
}

func Test_roadmapApi_completion(t *testing.T) {
	app := setup(t)
	lvl1, lvl2 := roadmapFixtures(t)
	testutil.CreateDefinition(t, defRepo, "FOUNDATIONS_DONE", "Foundations",
		achievement.Requirement{Kind: achievement.ReqStreakDays, Threshold: 9999}, 0, true)
	aliceToken := getToken(t, "alice", false)

	// open the roadmap
	req, rec := newAuthRequest(http.MethodGet, "/v1/roadmap/me?course="+courseID, aliceToken)
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	t.Run("lesson progress", func(t *testing.T) {
		steps := []struct {
			lessonID string
			wantPct  int
		}{
			{"l1", 33},
			{"l2", 67},
		}
		for _, step := range steps {
			req, rec := newAuthRequest(http.MethodPost, "/v1/roadmap/me/levels/"+lvl1.ID+"/lessons/"+step.lessonID, aliceToken)
			app.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code)

			var prog roadmap.Progress
			unmarchallObj(t, rec, &prog)
			assert.Equal(t, step.wantPct, prog.Percentage)
			assert.Equal(t, roadmap.StatusInProgress, prog.Status)
		}
	})

	t.Run("foreign lesson rejected", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/roadmap/me/levels/"+lvl1.ID+"/lessons/l4", aliceToken)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("locked level lessons rejected", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/roadmap/me/levels/"+lvl2.ID+"/lessons/l4", aliceToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "level has not been unlocked"})}, rec)
	})

	t.Run("out of range score rejected", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/roadmap/me/levels/"+lvl1.ID+"/complete", aliceToken,
			[]byte(`{"score": 150}`))
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("completion grants rewards once", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/roadmap/me/levels/"+lvl1.ID+"/complete", aliceToken,
			[]byte(`{"score": 92}`))
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Progress roadmap.Progress `json:"progress"`
			Events   []struct {
				Kind string `json:"kind"`
			} `json:"events"`
		}
		unmarchallObj(t, rec, &body)
		assert.Equal(t, roadmap.StatusCompleted, body.Progress.Status)
		assert.NotNil(t, body.Progress.CompletedAt)
		if assert.NotNil(t, body.Progress.Score) {
			assert.Equal(t, 92, *body.Progress.Score)
		}

		// rewards landed on the gamification account
		req, rec = newAuthRequest(http.MethodGet, "/v1/gamification/me", aliceToken)
		app.ServeHTTP(rec, req)
		var acct accountPayload
		unmarchallObj(t, rec, &acct)
		assert.Equal(t, 100, acct.TotalXPEarned)
		assert.Equal(t, 10, acct.TotalCupsEarned)
		assert.True(t, acct.HasAchievement("FOUNDATIONS_DONE"))

		// repeat completion is a no-op
		req, rec = newAuthRequest(http.MethodPost, "/v1/roadmap/me/levels/"+lvl1.ID+"/complete", aliceToken)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		req, rec = newAuthRequest(http.MethodGet, "/v1/gamification/me", aliceToken)
		app.ServeHTTP(rec, req)
		unmarchallObj(t, rec, &acct)
		assert.Equal(t, 100, acct.TotalXPEarned)
	})

	t.Run("level completion updates stats", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/roadmap/levels/"+lvl1.ID, aliceToken)
		app.ServeHTTP(rec, req)

		var lvl roadmap.Level
		unmarchallObj(t, rec, &lvl)
		assert.Equal(t, 1, lvl.Stats.TotalStarted)
		assert.Equal(t, 1, lvl.Stats.TotalCompleted)
	})
}

func Test_roadmapApi_levelAdmin(t *testing.T) {
	app := setup(t)
	adminToken := getToken(t, "admin", true)

	newLvl := roadmap.NewLevel{
		CourseID: courseID,
		Order:    1,
		Title:    "Getting Started",
		Lessons: []roadmap.Lesson{
			{ID: "intro", Title: "Welcome", Order: 1, Required: true},
		},
		Rewards: roadmap.Rewards{XP: 50},
	}

	t.Run("admin required", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/roadmap/levels", getToken(t, "alice", false), marchallObj(t, newLvl))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}, rec)
	})

	var created roadmap.Level
	t.Run("create", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/roadmap/levels", adminToken, marchallObj(t, newLvl))
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusCreated, rec.Code)

		unmarchallObj(t, rec, &created)
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, courseID, created.CourseID)
		assert.Equal(t, "Getting Started", created.Title)
		assert.True(t, created.IsActive)
	})

	t.Run("invalid order rejected", func(t *testing.T) {
		bad := newLvl
		bad.Order = 0
		req, rec := newAuthRequest(http.MethodPost, "/v1/roadmap/levels", adminToken, marchallObj(t, bad))
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing course rejected", func(t *testing.T) {
		bad := newLvl
		bad.CourseID = ""
		req, rec := newAuthRequest(http.MethodPost, "/v1/roadmap/levels", adminToken, marchallObj(t, bad))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"course_id": "this field is required"}),
		}, rec)
	})

	t.Run("update", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/roadmap/levels/"+created.ID, adminToken,
			marchallObj(t, roadmap.UpdateLevel{Title: "First Steps"}))
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		var lvl roadmap.Level
		unmarchallObj(t, rec, &lvl)
		assert.Equal(t, "First Steps", lvl.Title)
		assert.Len(t, lvl.Lessons, 1)
	})

	t.Run("delete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/roadmap/levels/"+created.ID, adminToken)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		req, rec = newAuthRequest(http.MethodGet, "/v1/roadmap/levels/"+created.ID, adminToken)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
