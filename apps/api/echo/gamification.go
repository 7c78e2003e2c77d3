package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mzalendo/maendeleo/core"
	"github.com/mzalendo/maendeleo/core/progress"
)

// maxConflictRetries bounds handler-level retries on concurrent account
// writes; the services themselves never retry.
const maxConflictRetries = 3

func withConflictRetry(fn func() error) error {
	var err error
	for i := 0; i < maxConflictRetries; i++ {
		if err = fn(); errors.Cause(err) != core.ErrVersionConflict {
			return err
		}
	}
	return err
}

type gamificationApi struct {
	svc progress.Service
}

func registerGamificationAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc progress.Service) {
	api := gamificationApi{svc: svc}

	gg := g.Group("/gamification", jwt)

	// own-account endpoints
	gg.GET("/me", api.retrieveMine)
	gg.GET("/me/ranking", api.ranking)
	gg.PUT("/me/daily-goals", api.updateDailyGoals)
	gg.POST("/me/checkin", api.checkin)
	gg.GET("/leaderboard", api.leaderboard)

	// learning event ingestion (lesson/quiz handlers, trusted services)
	gg.POST("/events", api.recordEvent, adminMiddleware())

	// detail endpoints
	dg := gg.Group("/users/:uid", ownerOrAdminMiddleware())
	dg.GET("", api.retrieve)

	ag := gg.Group("/users/:uid", adminMiddleware())
	ag.POST("/xp", api.grantXP)
	ag.POST("/cups", api.grantCups)
	ag.POST("/achievements/:code", api.unlockAchievement)
}

type (
	accountResponse struct {
		progress.Account
		GoalsProgress progress.GoalsProgress `json:"daily_goals_progress"`
	}

	eventsResponse struct {
		accountResponse
		Events []progress.Event `json:"events"`
	}

	grantRequest struct {
		Amount int `json:"amount" validate:"required,min=1"`
	}
)

func newAccountResponse(acct progress.Account) accountResponse {
	return accountResponse{Account: acct, GoalsProgress: acct.DailyGoalsProgress()}
}

func newEventsResponse(acct progress.Account, events []progress.Event) eventsResponse {
	if events == nil {
		events = []progress.Event{}
	}
	return eventsResponse{accountResponse: newAccountResponse(acct), Events: events}
}

func (r *grantRequest) Validate() error { return core.Validate.Struct(r) }

// Handlers

func (api *gamificationApi) retrieveMine(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	return api.getAccount(ctx, claims.Subject)
}

func (api *gamificationApi) retrieve(ctx echo.Context) error {
	return api.getAccount(ctx, ctx.Param("uid"))
}

func (api *gamificationApi) getAccount(ctx echo.Context, userID string) error {
	var acct progress.Account
	err := withConflictRetry(func() (err error) {
		acct, err = api.svc.Get(ctx.Request().Context(), userID)
		return
	})
	if err != nil {
		return errors.Wrap(err, "getting progress account")
	}
	return ctx.JSON(http.StatusOK, newAccountResponse(acct))
}

func (api *gamificationApi) ranking(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	rank, err := api.svc.Ranking(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "getting ranking")
	}
	return ctx.JSON(http.StatusOK, rank)
}

func (api *gamificationApi) leaderboard(ctx echo.Context) error {
	limit, _ := strconv.Atoi(ctx.QueryParam("limit"))

	accts, err := api.svc.Leaderboard(ctx.Request().Context(), ctx.QueryParam("metric"), limit)
	if err != nil {
		return errors.Wrap(err, "getting leaderboard")
	}
	return ctx.JSON(http.StatusOK, accts)
}

func (api *gamificationApi) updateDailyGoals(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data progress.UpdateDailyGoals
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateDailyGoals")
	}

	var acct progress.Account
	err = withConflictRetry(func() (err error) {
		acct, err = api.svc.UpdateDailyGoals(ctx.Request().Context(), claims.Subject, data)
		return
	})
	if err != nil {
		return errors.Wrap(err, "updating daily goals")
	}
	return ctx.JSON(http.StatusOK, newAccountResponse(acct))
}

func (api *gamificationApi) checkin(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var (
		acct   progress.Account
		events []progress.Event
	)
	err = withConflictRetry(func() (err error) {
		acct, events, err = api.svc.HandleEvent(ctx.Request().Context(), progress.LearningEvent{
			UserID: claims.Subject,
			Type:   progress.EventTypeDailyCheckin,
		})
		return
	})
	if err != nil {
		return errors.Wrap(err, "recording checkin")
	}
	return ctx.JSON(http.StatusOK, newEventsResponse(acct, events))
}

func (api *gamificationApi) recordEvent(ctx echo.Context) error {
	var data progress.LearningEvent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LearningEvent")
	}

	var (
		acct   progress.Account
		events []progress.Event
	)
	err := withConflictRetry(func() (err error) {
		acct, events, err = api.svc.HandleEvent(ctx.Request().Context(), data)
		return
	})
	if err != nil {
		return errors.Wrap(err, "recording learning event")
	}
	return ctx.JSON(http.StatusOK, newEventsResponse(acct, events))
}

func (api *gamificationApi) grantXP(ctx echo.Context) error {
	var data grantRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to grantRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	var (
		acct   progress.Account
		events []progress.Event
	)
	err := withConflictRetry(func() (err error) {
		acct, events, err = api.svc.AddXP(ctx.Request().Context(), ctx.Param("uid"), data.Amount)
		return
	})
	if err != nil {
		return errors.Wrap(err, "granting xp")
	}
	return ctx.JSON(http.StatusOK, newEventsResponse(acct, events))
}

func (api *gamificationApi) grantCups(ctx echo.Context) error {
	var data grantRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to grantRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	var acct progress.Account
	err := withConflictRetry(func() (err error) {
		acct, err = api.svc.AddCups(ctx.Request().Context(), ctx.Param("uid"), data.Amount)
		return
	})
	if err != nil {
		return errors.Wrap(err, "granting cups")
	}
	return ctx.JSON(http.StatusOK, newAccountResponse(acct))
}

func (api *gamificationApi) unlockAchievement(ctx echo.Context) error {
	var (
		acct   progress.Account
		events []progress.Event
	)
	err := withConflictRetry(func() (err error) {
		acct, events, err = api.svc.UnlockAchievement(ctx.Request().Context(), ctx.Param("uid"), ctx.Param("code"))
		return
	})
	if err != nil {
		return errors.Wrap(err, "unlocking achievement")
	}
	return ctx.JSON(http.StatusOK, newEventsResponse(acct, events))
}
