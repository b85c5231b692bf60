package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/campusdeals/core/university"
)

type universityApi struct {
	svc      *university.Service
	validate *validator.Validate
}

func registerUniversityAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := universityApi{svc: deps.UniversitySvc, validate: deps.Validate}

	ug := g.Group("/universities")
	ug.GET("", api.query)
	ug.GET("/:id", api.retrieve)

	// a sub-group on the same prefix would shadow the public routes above
	admin := []echo.MiddlewareFunc{jwt, adminMiddleware()}
	ug.POST("", api.create, admin...)
	ug.PUT("/:id", api.update, admin...)
	ug.DELETE("/:id", api.destroy, admin...)
}

func (api *universityApi) query(ctx echo.Context) error {
	filter := new(university.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []university.University{})
	}
	filter.Clean()

	unis, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying universities")
	}
	if unis == nil {
		unis = []university.University{}
	}
	return ctx.JSON(http.StatusOK, unis)
}

func (api *universityApi) retrieve(ctx echo.Context) error {
	uni, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding university")
	}
	return ctx.JSON(http.StatusOK, uni)
}

func (api *universityApi) create(ctx echo.Context) error {
	var data university.NewUniversity
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUniversity")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	uni, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating university")
	}
	return ctx.JSON(http.StatusCreated, uni)
}

func (api *universityApi) update(ctx echo.Context) error {
	uni, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding university")
	}

	var data university.NewUniversity
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUniversity")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	uni, err = api.svc.Update(ctx.Request().Context(), uni, data)
	if err != nil {
		return errors.Wrap(err, "updating university")
	}
	return ctx.JSON(http.StatusOK, uni)
}

func (api *universityApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting university")
	}
	return ctx.NoContent(http.StatusNoContent)
}
