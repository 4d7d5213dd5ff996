package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tazama/core"
	"github.com/trezcool/tazama/core/exam"
	"github.com/trezcool/tazama/core/series"
)

type (
	examApi struct {
		auth      *authenticator
		svc       *exam.Service
		seriesSvc *series.Service
		validate  *validator.Validate
		logger    core.Logger
	}

	ExamQuery struct {
		IDs []string `query:"id"`
	}

	SubmitResponse struct {
		exam.SubmissionResult
		UnlockedEpisodes []series.Episode `json:"unlocked_episodes"`
	}
)

func registerExamAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	auth *authenticator,
	svc *exam.Service,
	seriesSvc *series.Service,
	validate *validator.Validate,
	logger core.Logger,
) {
	api := examApi{
		auth:      auth,
		svc:       svc,
		seriesSvc: seriesSvc,
		validate:  validate,
		logger:    logger,
	}

	eg := g.Group("/exams", jwt)
	eg.POST("", api.create, adminMiddleware())
	eg.GET("", api.query, adminMiddleware())
	eg.GET("/:id", api.retrieve)
	eg.DELETE("/:id", api.destroy, adminMiddleware())
	eg.POST("/:id/submissions", api.submit)
}

// Handlers

func (api *examApi) create(ctx echo.Context) error {
	var data exam.NewExam
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewExam")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	e, err := api.svc.Create(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "creating exam")
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *examApi) retrieve(ctx echo.Context) error {
	e, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting exam")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *examApi) query(ctx echo.Context) error {
	var query ExamQuery
	if err := ctx.Bind(&query); err != nil {
		return ctx.JSON(http.StatusOK, []exam.Exam{})
	}

	exams, err := api.svc.Query(ctx.Request().Context(), query.IDs...)
	if err != nil {
		return errors.Wrap(err, "querying exams")
	}
	return ctx.JSON(http.StatusOK, exams)
}

// destroy deletes the exam with its submissions. Episodes it gated keep existing without an exam.
func (api *examApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting exam")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// submit grades the user's answers. On the user's first pass, the episodes it unlocks are
// returned and mailed to them.
func (api *examApi) submit(ctx echo.Context) error {
	var data exam.NewSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.auth.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	examID := ctx.Param("id")
	res, err := api.svc.Submit(ctx.Request().Context(), usr.ID, examID, data)
	if err != nil {
		return errors.Wrap(err, "submitting exam")
	}

	resp := SubmitResponse{SubmissionResult: res, UnlockedEpisodes: []series.Episode{}}
	if res.FirstPass {
		unlocked, err := api.seriesSvc.NotifyUnlocked(ctx.Request().Context(), usr, examID)
		if err != nil {
			// the submission is saved; the user still gets their result
			api.logger.Error(err.Error(), err, usr)
		}
		for _, ep := range unlocked {
			ep.Content = ""
			resp.UnlockedEpisodes = append(resp.UnlockedEpisodes, ep)
		}
	}
	return ctx.JSON(http.StatusCreated, resp)
}
