package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mzalendo/maendeleo/core/achievement"
	"github.com/mzalendo/maendeleo/core/progress"
)

type achievementApi struct {
	svc      achievement.Service
	accounts progress.Service
}

func registerAchievementAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc achievement.Service, accounts progress.Service) {
	api := achievementApi{svc: svc, accounts: accounts}

	ag := g.Group("/achievements", jwt)
	ag.GET("", api.query)
	ag.GET("/:code", api.retrieve)

	adm := ag.Group("", adminMiddleware())
	adm.POST("", api.create)
	adm.PUT("/:code", api.update)
	adm.DELETE("/:code", api.destroy)
}

// Handlers

func (api *achievementApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var filter achievement.QueryFilter
	if err = ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	filter.Clean()

	defs, err := api.svc.Query(ctx.Request().Context(), &filter)
	if err != nil {
		return errors.Wrap(err, "querying achievements")
	}

	// non-admins see the public catalog plus their own unlocked secrets
	if !claims.IsAdmin {
		unlocked, err := api.unlockedSet(ctx.Request().Context(), claims.Subject)
		if err != nil {
			return errors.Wrap(err, "getting unlocked achievements")
		}
		visible := make([]achievement.Definition, 0, len(defs))
		for _, def := range defs {
			if (def.IsActive && !def.IsSecret) || unlocked[def.Code] {
				visible = append(visible, def)
			}
		}
		defs = visible
	}
	return ctx.JSON(http.StatusOK, defs)
}

func (api *achievementApi) retrieve(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	def, err := api.svc.GetByCode(ctx.Request().Context(), ctx.Param("code"))
	if err != nil {
		return errors.Wrap(err, "getting achievement")
	}
	if !claims.IsAdmin && (!def.IsActive || def.IsSecret) {
		unlocked, err := api.unlockedSet(ctx.Request().Context(), claims.Subject)
		if err != nil {
			return errors.Wrap(err, "getting unlocked achievements")
		}
		if !unlocked[def.Code] {
			return achievement.ErrNotFound
		}
	}
	return ctx.JSON(http.StatusOK, def)
}

func (api *achievementApi) unlockedSet(ctx context.Context, userID string) (map[string]bool, error) {
	acct, err := api.accounts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	unlocked := make(map[string]bool, len(acct.Achievements))
	for _, ua := range acct.Achievements {
		unlocked[ua.Code] = true
	}
	return unlocked, nil
}

func (api *achievementApi) create(ctx echo.Context) error {
	var data achievement.NewDefinition
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDefinition")
	}
	if err := data.Validate(api.svc); err != nil {
		return err
	}

	def, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating achievement")
	}
	return ctx.JSON(http.StatusCreated, def)
}

func (api *achievementApi) update(ctx echo.Context) error {
	var data achievement.UpdateDefinition
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateDefinition")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	def, err := api.svc.Update(ctx.Request().Context(), ctx.Param("code"), data)
	if err != nil {
		return errors.Wrap(err, "updating achievement")
	}
	return ctx.JSON(http.StatusOK, def)
}

func (api *achievementApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("code")); err != nil {
		return errors.Wrap(err, "deleting achievement")
	}
	return ctx.NoContent(http.StatusNoContent)
}
