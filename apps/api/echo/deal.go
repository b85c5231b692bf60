package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/campusdeals/core"
	"github.com/trezcool/campusdeals/core/business"
	"github.com/trezcool/campusdeals/core/deal"
	"github.com/trezcool/campusdeals/core/student"
	"github.com/trezcool/campusdeals/core/ticket"
	"github.com/trezcool/campusdeals/core/user"
)

const (
	feedDefaultLimit = 20
	feedMaxLimit     = 100
)

type dealApi struct {
	svc        *deal.Service
	usrSvc     user.Service
	studentSvc *student.Service
	ticketSvc  *ticket.Service
	validate   *validator.Validate
}

func registerDealAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := dealApi{
		svc:        deps.DealSvc,
		usrSvc:     deps.UserSvc,
		studentSvc: deps.StudentSvc,
		ticketSvc:  deps.TicketSvc,
		validate:   deps.Validate,
	}

	dg := g.Group("/deals")
	dg.GET("", api.query)
	dg.GET("/nearby", api.nearby)
	dg.GET("/feed", api.feed, jwt, studentMiddleware())
	dg.GET("/:id", api.retrieve)
	dg.POST("/:id/claim", api.claim, jwt, studentMiddleware())

	manager := []echo.MiddlewareFunc{jwt, businessMiddleware()}
	dg.PUT("/:id", api.update, manager...)
	dg.DELETE("/:id", api.destroy, manager...)
	dg.PUT("/:id/priority", api.setPriority, jwt, adminMiddleware())
}

// managedDeal loads the deal of the :id path param, if the context user manages its business.
func (api *dealApi) managedDeal(ctx echo.Context) (deal.Deal, error) {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return deal.Deal{}, errors.Wrap(err, "getting context user")
	}
	d, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return deal.Deal{}, errors.Wrap(err, "finding deal")
	}
	if d.Business == nil || !d.Business.IsManagedBy(usr) {
		return deal.Deal{}, business.ErrNotOwner
	}
	return d, nil
}

func bindDealFilter(ctx echo.Context) deal.QueryFilter {
	var filter deal.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return deal.QueryFilter{}
	}
	filter.Clean()
	return filter
}

func (api *dealApi) query(ctx echo.Context) error {
	filter := bindDealFilter(ctx)
	filter.AvailableAt = core.NowFunc()
	var ord Ordering
	ord.Bind(ctx)

	deals, err := api.svc.Query(ctx.Request().Context(), filter, ord.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying deals")
	}
	if deals == nil {
		deals = []deal.Deal{}
	}
	return ctx.JSON(http.StatusOK, deals)
}

func (api *dealApi) nearby(ctx echo.Context) error {
	var q deal.NearbyQuery
	if err := ctx.Bind(&q); err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "lat", Error: "invalid coordinates"})
	}
	if err := q.Validate(api.validate); err != nil {
		return err
	}

	deals, err := api.svc.Nearby(ctx.Request().Context(), q.Point(), q.RadiusKm, deal.QueryFilter{Category: q.Category})
	if err != nil {
		return errors.Wrap(err, "finding nearby deals")
	}
	return ctx.JSON(http.StatusOK, deals)
}

func (api *dealApi) feed(ctx echo.Context) error {
	_, stud, err := getContextStudent(ctx, api.usrSvc, api.studentSvc)
	if err != nil {
		return err
	}
	profile, err := api.studentSvc.Profile(ctx.Request().Context(), stud)
	if err != nil {
		return errors.Wrap(err, "building feed profile")
	}

	var page core.Page
	if err = ctx.Bind(&page); err != nil {
		page = core.Page{}
	}
	page.Clean(feedDefaultLimit, feedMaxLimit)

	feed, err := api.svc.Feed(ctx.Request().Context(), profile, bindDealFilter(ctx), page)
	if err != nil {
		return errors.Wrap(err, "ranking feed")
	}
	return ctx.JSON(http.StatusOK, feed)
}

func (api *dealApi) retrieve(ctx echo.Context) error {
	d, err := api.svc.GetAvailable(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding deal")
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *dealApi) claim(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	t, err := api.ticketSvc.Claim(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "claiming deal")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *dealApi) update(ctx echo.Context) error {
	d, err := api.managedDeal(ctx)
	if err != nil {
		return err
	}

	var data deal.UpdateDeal
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to deal.UpdateDeal")
	}
	if err = data.Validate(d, api.validate); err != nil {
		return err
	}

	d, err = api.svc.Update(ctx.Request().Context(), d, data)
	if err != nil {
		return errors.Wrap(err, "updating deal")
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *dealApi) destroy(ctx echo.Context) error {
	d, err := api.managedDeal(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), d.ID); err != nil {
		return errors.Wrap(err, "deleting deal")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *dealApi) setPriority(ctx echo.Context) error {
	d, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding deal")
	}

	var data deal.PriorityUpdate
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to deal.PriorityUpdate")
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	d, err = api.svc.SetPriority(ctx.Request().Context(), d, data.Priority)
	if err != nil {
		return errors.Wrap(err, "setting deal priority")
	}
	return ctx.JSON(http.StatusOK, d)
}
