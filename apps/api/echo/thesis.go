package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tasnifu/core"
	"github.com/trezcool/tasnifu/core/thesis"
)

type thesisApi struct {
	svc      thesis.Service
	validate *validator.Validate
}

func registerThesisAPI(g *echo.Group, auth []echo.MiddlewareFunc, svc thesis.Service, validate *validator.Validate) {
	api := thesisApi{
		svc:      svc,
		validate: validate,
	}

	tg := g.Group("/thesis", auth...)
	tg.POST("/submit", api.submit, studentMiddleware())
	tg.GET("/submissions", api.query, reviewerMiddleware())
	tg.GET("/student-submissions", api.queryOwn, studentMiddleware())
	tg.GET("/submissions/adviser", api.queryByAdviser, reviewerMiddleware())
	tg.POST("/feedback/:id", api.submitFeedback, reviewerMiddleware())
	tg.GET("/:id", api.retrieve)
	tg.DELETE("/:id", api.destroy, studentMiddleware())
}

// Handlers

func (api *thesisApi) submit(ctx echo.Context) error {
	var data thesis.NewThesis
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewThesis")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	th, err := api.svc.Submit(ctx.Request().Context(), claims.Email, data)
	if err != nil {
		return errors.Wrap(err, "submitting thesis")
	}
	return ctx.JSON(http.StatusCreated, th)
}

func (api *thesisApi) query(ctx echo.Context) error {
	filter := new(thesis.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []thesis.Thesis{})
	}
	filter.Clean()

	var theses []thesis.Thesis
	var err error
	if filter.IsEmpty() {
		theses, err = api.svc.QueryAll(ctx.Request().Context())
	} else {
		theses, err = api.svc.Filter(ctx.Request().Context(), *filter)
	}
	if err != nil {
		return errors.Wrap(err, "querying theses")
	}
	return api.thesesResponse(ctx, theses)
}

func (api *thesisApi) queryOwn(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	theses, err := api.svc.QueryByStudent(ctx.Request().Context(), claims.Email)
	if err != nil {
		return errors.Wrap(err, "querying own theses")
	}
	return api.thesesResponse(ctx, theses)
}

func (api *thesisApi) queryByAdviser(ctx echo.Context) error {
	email := core.CleanString(ctx.QueryParam("email"), true /* lower */)
	if email == "" {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context claims")
		}
		email = claims.Email
	}

	theses, err := api.svc.QueryByAdviser(ctx.Request().Context(), email)
	if err != nil {
		return errors.Wrap(err, "querying theses by adviser")
	}
	return api.thesesResponse(ctx, theses)
}

func (api *thesisApi) submitFeedback(ctx echo.Context) error {
	var data thesis.NewFeedback
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFeedback")
	}

	// reviewer defaults to the signed-in teacher
	if data.ReviewedBy == "" {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context claims")
		}
		data.ReviewedBy = claims.Name
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	th, err := api.svc.SubmitFeedback(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		if errors.Cause(err) == thesis.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "submitting feedback")
	}
	return ctx.JSON(http.StatusOK, th)
}

func (api *thesisApi) retrieve(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	th, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == thesis.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding thesis by ID")
	}

	// students only ever see their own submissions
	if claims.IsStudent && th.StudentEmail != claims.Email {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, th)
}

func (api *thesisApi) destroy(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	if err = api.svc.Delete(ctx.Request().Context(), ctx.Param("id"), claims.Email); err != nil {
		switch errors.Cause(err) {
		case thesis.ErrNotFound:
			return errHttpNotFound
		case thesis.ErrApprovedDelete:
			return echo.NewHTTPError(http.StatusForbidden, thesis.ErrApprovedDelete.Error())
		}
		return errors.Wrap(err, "deleting thesis")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *thesisApi) thesesResponse(ctx echo.Context, theses []thesis.Thesis) error {
	if theses == nil {
		theses = []thesis.Thesis{}
	}
	return ctx.JSON(http.StatusOK, theses)
}
