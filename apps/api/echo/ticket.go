package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/campusdeals/core/ticket"
	"github.com/trezcool/campusdeals/core/user"
)

type ticketApi struct {
	svc      *ticket.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerTicketAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := ticketApi{svc: deps.TicketSvc, usrSvc: deps.UserSvc, validate: deps.Validate}

	tg := g.Group("/tickets", jwt)
	tg.GET("/mine", api.mine, studentMiddleware())
	tg.POST("/redeem", api.redeem, studentMiddleware())
	tg.GET("/:code", api.lookup, businessMiddleware())
}

func (api *ticketApi) mine(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var filter ticket.QueryFilter
	if err = ctx.Bind(&filter); err != nil {
		filter = ticket.QueryFilter{}
	}

	tickets, err := api.svc.Mine(ctx.Request().Context(), usr, filter)
	if err != nil {
		return errors.Wrap(err, "listing tickets")
	}
	if tickets == nil {
		tickets = []ticket.Ticket{}
	}
	return ctx.JSON(http.StatusOK, tickets)
}

func (api *ticketApi) redeem(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data ticket.RedeemRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ticket.RedeemRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	red, err := api.svc.Redeem(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "redeeming ticket")
	}
	return ctx.JSON(http.StatusCreated, red)
}

// lookup lets a business check a ticket shown at the counter.
func (api *ticketApi) lookup(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	t, err := api.svc.Lookup(ctx.Request().Context(), usr, ctx.Param("code"))
	if err != nil {
		return errors.Wrap(err, "looking up ticket")
	}
	return ctx.JSON(http.StatusOK, t)
}
