package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/campusdeals/core/notification"
	"github.com/trezcool/campusdeals/core/user"
)

type notificationApi struct {
	svc      *notification.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerNotificationAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := notificationApi{svc: deps.NotificationSvc, usrSvc: deps.UserSvc, validate: deps.Validate}

	ng := g.Group("/notifications", jwt)
	ng.GET("", api.mine)
	ng.POST("/read-all", api.markAllRead)
	ng.POST("/:id/read", api.markRead)

	pg := g.Group("/push-requests", jwt, adminMiddleware())
	pg.GET("", api.queryPushRequests)
	pg.GET("/:id", api.retrievePushRequest)
	pg.POST("/:id/review", api.review)
}

func (api *notificationApi) mine(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var filter notification.NotificationFilter
	if err = ctx.Bind(&filter); err != nil {
		filter = notification.NotificationFilter{}
	}

	notifs, err := api.svc.Mine(ctx.Request().Context(), usr, filter)
	if err != nil {
		return errors.Wrap(err, "listing notifications")
	}
	if notifs == nil {
		notifs = []notification.Notification{}
	}
	return ctx.JSON(http.StatusOK, notifs)
}

func (api *notificationApi) markRead(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	n, err := api.svc.MarkRead(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	return ctx.JSON(http.StatusOK, n)
}

func (api *notificationApi) markAllRead(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.MarkAllRead(ctx.Request().Context(), usr); err != nil {
		return errors.Wrap(err, "marking notifications read")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *notificationApi) queryPushRequests(ctx echo.Context) error {
	var filter notification.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []notification.PushRequest{})
	}
	prs, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying push requests")
	}
	if prs == nil {
		prs = []notification.PushRequest{}
	}
	return ctx.JSON(http.StatusOK, prs)
}

func (api *notificationApi) retrievePushRequest(ctx echo.Context) error {
	pr, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding push request")
	}
	return ctx.JSON(http.StatusOK, pr)
}

// review approves (and sends) or rejects a push request.
func (api *notificationApi) review(ctx echo.Context) error {
	admin, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data notification.Review
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to notification.Review")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	pr, err := api.svc.Review(ctx.Request().Context(), admin, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "reviewing push request")
	}
	return ctx.JSON(http.StatusOK, pr)
}
