package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/campusdeals/core/deal"
	"github.com/trezcool/campusdeals/core/student"
	"github.com/trezcool/campusdeals/core/user"
)

type studentApi struct {
	svc      *student.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerStudentAPI(g *echo.Group, jwt, limit echo.MiddlewareFunc, deps ServerDeps) {
	api := studentApi{svc: deps.StudentSvc, usrSvc: deps.UserSvc, validate: deps.Validate}

	sg := g.Group("/students")
	sg.POST("/register", api.register, limit)

	mg := sg.Group("/me", jwt, studentMiddleware())
	mg.GET("", api.retrieve)
	mg.PUT("", api.update)
	mg.GET("/saved-deals", api.savedDeals)
	mg.PUT("/saved-deals/:dealId", api.saveDeal)
	mg.DELETE("/saved-deals/:dealId", api.unsaveDeal)
}

// getContextStudent returns the profile of the authenticated student.
func getContextStudent(ctx echo.Context, usrSvc user.Service, svc *student.Service) (user.User, student.Student, error) {
	usr, err := getContextUser(ctx, usrSvc)
	if err != nil {
		return user.User{}, student.Student{}, errors.Wrap(err, "getting context user")
	}
	stud, err := svc.Get(ctx.Request().Context(), usr.ID)
	if err != nil {
		return user.User{}, student.Student{}, errors.Wrap(err, "finding student profile")
	}
	return usr, stud, nil
}

func (api *studentApi) register(ctx echo.Context) error {
	var data student.Registration
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to student.Registration")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.usrSvc); err != nil {
		return err
	}

	stud, usr, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering student")
	}
	return ctx.JSON(http.StatusCreated, StudentResponse{User: usr, Student: stud})
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	usr, stud, err := getContextStudent(ctx, api.usrSvc, api.svc)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, StudentResponse{User: usr, Student: stud})
}

func (api *studentApi) update(ctx echo.Context) error {
	usr, stud, err := getContextStudent(ctx, api.usrSvc, api.svc)
	if err != nil {
		return err
	}

	var data student.UpdateProfile
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to student.UpdateProfile")
	}
	if err = data.Validate(stud, api.validate); err != nil {
		return err
	}

	stud, err = api.svc.Update(ctx.Request().Context(), stud, data)
	if err != nil {
		return errors.Wrap(err, "updating student profile")
	}
	return ctx.JSON(http.StatusOK, StudentResponse{User: usr, Student: stud})
}

func (api *studentApi) savedDeals(ctx echo.Context) error {
	_, stud, err := getContextStudent(ctx, api.usrSvc, api.svc)
	if err != nil {
		return err
	}
	deals, err := api.svc.SavedDeals(ctx.Request().Context(), stud)
	if err != nil {
		return errors.Wrap(err, "listing saved deals")
	}
	if deals == nil {
		deals = []deal.Deal{}
	}
	return ctx.JSON(http.StatusOK, deals)
}

func (api *studentApi) saveDeal(ctx echo.Context) error {
	_, stud, err := getContextStudent(ctx, api.usrSvc, api.svc)
	if err != nil {
		return err
	}
	if err = api.svc.SaveDeal(ctx.Request().Context(), stud, ctx.Param("dealId")); err != nil {
		return errors.Wrap(err, "saving deal")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *studentApi) unsaveDeal(ctx echo.Context) error {
	_, stud, err := getContextStudent(ctx, api.usrSvc, api.svc)
	if err != nil {
		return err
	}
	if err = api.svc.UnsaveDeal(ctx.Request().Context(), stud, ctx.Param("dealId")); err != nil {
		return errors.Wrap(err, "unsaving deal")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type StudentResponse struct {
	User    user.User       `json:"user"`
	Student student.Student `json:"student"`
}
