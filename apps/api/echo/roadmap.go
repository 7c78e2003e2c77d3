package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mzalendo/maendeleo/core"
	"github.com/mzalendo/maendeleo/core/progress"
	"github.com/mzalendo/maendeleo/core/roadmap"
)

type roadmapApi struct {
	svc roadmap.Service
}

func registerRoadmapAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc roadmap.Service) {
	api := roadmapApi{svc: svc}

	rg := g.Group("/roadmap", jwt)
	rg.GET("/levels", api.queryLevels)
	rg.GET("/levels/:id", api.retrieveLevel)

	// learner endpoints, always scoped to the caller's own account
	rg.GET("/me", api.myProgress)
	rg.GET("/me/levels/:id/eligibility", api.checkUnlock)
	rg.POST("/me/levels/:id/unlock", api.unlock)
	rg.POST("/me/levels/:id/lessons/:lid", api.completeLesson)
	rg.POST("/me/levels/:id/complete", api.complete)

	ug := rg.Group("/users/:uid", ownerOrAdminMiddleware())
	ug.GET("", api.userProgress)

	adm := rg.Group("", adminMiddleware())
	adm.POST("/levels", api.createLevel)
	adm.PUT("/levels/:id", api.updateLevel)
	adm.DELETE("/levels/:id", api.destroyLevel)
	adm.POST("/users/:uid/levels/:id/unlock", api.forceUnlock)
}

type completionResponse struct {
	Progress roadmap.Progress `json:"progress"`
	Events   []progress.Event `json:"events"`
}

type completeRequest struct {
	Score *int `json:"score" validate:"omitempty,min=0,max=100"`
}

func (r *completeRequest) Validate() error { return core.Validate.Struct(r) }

// Handlers

func (api *roadmapApi) queryLevels(ctx echo.Context) error {
	levels, err := api.svc.QueryLevels(ctx.Request().Context(), ctx.QueryParam("course"))
	if err != nil {
		return errors.Wrap(err, "querying roadmap levels")
	}
	return ctx.JSON(http.StatusOK, levels)
}

func (api *roadmapApi) retrieveLevel(ctx echo.Context) error {
	level, err := api.svc.GetLevel(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting roadmap level")
	}
	return ctx.JSON(http.StatusOK, level)
}

func (api *roadmapApi) myProgress(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	return api.getProgress(ctx, claims.Subject)
}

func (api *roadmapApi) userProgress(ctx echo.Context) error {
	return api.getProgress(ctx, ctx.Param("uid"))
}

func (api *roadmapApi) getProgress(ctx echo.Context, userID string) error {
	var progs []roadmap.Progress
	err := withConflictRetry(func() (err error) {
		progs, err = api.svc.GetUserProgress(ctx.Request().Context(), userID, ctx.QueryParam("course"))
		return
	})
	if err != nil {
		return errors.Wrap(err, "getting roadmap progress")
	}
	return ctx.JSON(http.StatusOK, progs)
}

func (api *roadmapApi) checkUnlock(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	elig, err := api.svc.CheckUnlock(ctx.Request().Context(), claims.Subject, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "checking level eligibility")
	}
	return ctx.JSON(http.StatusOK, elig)
}

func (api *roadmapApi) unlock(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	return api.doUnlock(ctx, claims.Subject, false)
}

func (api *roadmapApi) forceUnlock(ctx echo.Context) error {
	return api.doUnlock(ctx, ctx.Param("uid"), true)
}

func (api *roadmapApi) doUnlock(ctx echo.Context, userID string, force bool) error {
	var prog roadmap.Progress
	err := withConflictRetry(func() (err error) {
		prog, err = api.svc.Unlock(ctx.Request().Context(), userID, ctx.Param("id"), force)
		return
	})
	if err != nil {
		return errors.Wrap(err, "unlocking roadmap level")
	}
	return ctx.JSON(http.StatusOK, prog)
}

func (api *roadmapApi) completeLesson(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var prog roadmap.Progress
	err = withConflictRetry(func() (err error) {
		prog, err = api.svc.UpdateLessonProgress(ctx.Request().Context(), claims.Subject, ctx.Param("id"), ctx.Param("lid"))
		return
	})
	if err != nil {
		return errors.Wrap(err, "recording lesson completion")
	}
	return ctx.JSON(http.StatusOK, prog)
}

func (api *roadmapApi) complete(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data completeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to completeRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	var (
		prog   roadmap.Progress
		events []progress.Event
	)
	err = withConflictRetry(func() (err error) {
		prog, events, err = api.svc.Complete(ctx.Request().Context(), claims.Subject, ctx.Param("id"), data.Score)
		return
	})
	if err != nil {
		return errors.Wrap(err, "completing roadmap level")
	}
	if events == nil {
		events = []progress.Event{}
	}
	return ctx.JSON(http.StatusOK, completionResponse{Progress: prog, Events: events})
}

func (api *roadmapApi) createLevel(ctx echo.Context) error {
	var data roadmap.NewLevel
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLevel")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	level, err := api.svc.CreateLevel(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating roadmap level")
	}
	return ctx.JSON(http.StatusCreated, level)
}

func (api *roadmapApi) updateLevel(ctx echo.Context) error {
	var data roadmap.UpdateLevel
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateLevel")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	level, err := api.svc.UpdateLevel(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating roadmap level")
	}
	return ctx.JSON(http.StatusOK, level)
}

func (api *roadmapApi) destroyLevel(ctx echo.Context) error {
	if err := api.svc.DeleteLevel(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting roadmap level")
	}
	return ctx.NoContent(http.StatusNoContent)
}
