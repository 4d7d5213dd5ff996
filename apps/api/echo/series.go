package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tazama/core/series"
	"github.com/trezcool/tazama/core/user"
)

type seriesApi struct {
	usrSvc   *user.Service
	svc      *series.Service
	validate *validator.Validate
}

func registerSeriesAPI(
	g *echo.Group,
	jwt, optionalJWT echo.MiddlewareFunc,
	usrSvc *user.Service,
	svc *series.Service,
	validate *validator.Validate,
) {
	api := seriesApi{
		usrSvc:   usrSvc,
		svc:      svc,
		validate: validate,
	}

	sg := g.Group("/series")
	sg.GET("", api.query, optionalJWT)
	sg.GET("/:id", api.retrieve, optionalJWT)
	sg.POST("", api.create, jwt, adminMiddleware())
	sg.DELETE("/:id", api.destroy, jwt, adminMiddleware())
	sg.POST("/:id/episodes", api.addEpisode, jwt, adminMiddleware())

	eg := g.Group("/episodes")
	eg.GET("/:id", api.viewEpisode, optionalJWT)
	eg.PUT("/:id", api.updateEpisode, jwt, adminMiddleware())
	eg.DELETE("/:id", api.removeEpisode, jwt, adminMiddleware())
}

// Handlers

func (api *seriesApi) query(ctx echo.Context) error {
	filter := new(series.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []series.Series{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	list, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying series")
	}
	if list == nil {
		list = []series.Series{}
	}
	return ctx.JSON(http.StatusOK, list)
}

// retrieve returns the series with each episode flagged `is_locked` for the requester.
func (api *seriesApi) retrieve(ctx echo.Context) error {
	viewer, err := getContextViewer(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context viewer")
	}
	access, err := api.svc.GetWithLocks(ctx.Request().Context(), ctx.Param("id"), viewer)
	if err != nil {
		return errors.Wrap(err, "getting series with locks")
	}
	for i := range access.Episodes {
		access.Episodes[i].Content = "" // served by the episode endpoint, once unlocked
	}
	return ctx.JSON(http.StatusOK, access)
}

func (api *seriesApi) create(ctx echo.Context) error {
	var data series.NewSeries
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSeries")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	s, err := api.svc.Create(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "creating series")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *seriesApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting series")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *seriesApi) addEpisode(ctx echo.Context) error {
	var data series.NewEpisode
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEpisode")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	ep, err := api.svc.AddEpisode(ctx.Request().Context(), ctx.Param("id"), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "adding episode")
	}
	return ctx.JSON(http.StatusCreated, ep)
}

func (api *seriesApi) viewEpisode(ctx echo.Context) error {
	viewer, err := getContextViewer(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context viewer")
	}
	ep, err := api.svc.ViewEpisode(ctx.Request().Context(), ctx.Param("id"), viewer)
	if err != nil {
		return errors.Wrap(err, "viewing episode")
	}
	return ctx.JSON(http.StatusOK, ep)
}

func (api *seriesApi) updateEpisode(ctx echo.Context) error {
	var data series.UpdateEpisode
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateEpisode")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ep, err := api.svc.UpdateEpisode(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating episode")
	}
	return ctx.JSON(http.StatusOK, ep)
}

func (api *seriesApi) removeEpisode(ctx echo.Context) error {
	if err := api.svc.RemoveEpisode(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "removing episode")
	}
	return ctx.NoContent(http.StatusNoContent)
}
