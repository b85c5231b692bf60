package echoapi

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/campusdeals/core"
	"github.com/trezcool/campusdeals/core/billing"
	"github.com/trezcool/campusdeals/core/business"
	"github.com/trezcool/campusdeals/core/deal"
	"github.com/trezcool/campusdeals/core/notification"
	"github.com/trezcool/campusdeals/core/stats"
	"github.com/trezcool/campusdeals/core/ticket"
	"github.com/trezcool/campusdeals/core/user"
	exportsvc "github.com/trezcool/campusdeals/services/export"
)

type businessApi struct {
	svc        *business.Service
	usrSvc     user.Service
	dealSvc    *deal.Service
	ticketSvc  *ticket.Service
	notifSvc   *notification.Service
	billingSvc *billing.Service
	statsSvc   *stats.Service
	validate   *validator.Validate
}

func registerBusinessAPI(g *echo.Group, jwt, limit echo.MiddlewareFunc, deps ServerDeps) {
	api := businessApi{
		svc:        deps.BusinessSvc,
		usrSvc:     deps.UserSvc,
		dealSvc:    deps.DealSvc,
		ticketSvc:  deps.TicketSvc,
		notifSvc:   deps.NotificationSvc,
		billingSvc: deps.BillingSvc,
		statsSvc:   deps.StatsSvc,
		validate:   deps.Validate,
	}

	bg := g.Group("/businesses")
	bg.POST("/register", api.register, limit)
	bg.GET("/nearby", api.nearby)
	bg.GET("/map", api.mapFeatures)

	bg.GET("", api.query, jwt, adminMiddleware())

	owner := []echo.MiddlewareFunc{jwt, businessMiddleware()}
	bg.POST("", api.create, owner...)
	bg.GET("/mine", api.mine, owner...)
	bg.GET("/:id", api.retrieve, owner...)
	bg.PUT("/:id", api.update, owner...)
	bg.PUT("/:id/status", api.setStatus, jwt, adminMiddleware())
	bg.POST("/:id/locations", api.addLocation, owner...)
	bg.DELETE("/:id/locations/:locationId", api.removeLocation, owner...)
	bg.POST("/:id/deals", api.createDeal, owner...)
	bg.GET("/:id/deals", api.deals, owner...)
	bg.POST("/:id/push-requests", api.submitPushRequest, owner...)
	bg.GET("/:id/push-requests", api.pushRequests, owner...)
	bg.GET("/:id/redemptions", api.redemptions, owner...)
	bg.GET("/:id/redemptions/export", api.exportRedemptions, owner...)
	bg.GET("/:id/dashboard", api.dashboard, owner...)
	bg.POST("/:id/checkout", api.checkout, owner...)
}

// managedBusiness loads the business of the :id path param, if the context user may manage it.
func (api *businessApi) managedBusiness(ctx echo.Context) (business.Business, error) {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return business.Business{}, errors.Wrap(err, "getting context user")
	}
	biz, err := api.svc.GetManaged(ctx.Request().Context(), ctx.Param("id"), usr)
	if err != nil {
		return business.Business{}, errors.Wrap(err, "finding business")
	}
	return biz, nil
}

func (api *businessApi) register(ctx echo.Context) error {
	var data business.Registration
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to business.Registration")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.usrSvc); err != nil {
		return err
	}

	biz, usr, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering business")
	}
	return ctx.JSON(http.StatusCreated, BusinessRegistrationResponse{User: usr, Business: biz})
}

func (api *businessApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data business.NewBusiness
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to business.NewBusiness")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	biz, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating business")
	}
	return ctx.JSON(http.StatusCreated, biz)
}

func (api *businessApi) query(ctx echo.Context) error {
	var filter business.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []business.Business{})
	}
	filter.Clean()
	var ord Ordering
	ord.Bind(ctx)

	bizs, err := api.svc.Query(ctx.Request().Context(), filter, ord.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying businesses")
	}
	if bizs == nil {
		bizs = []business.Business{}
	}
	return ctx.JSON(http.StatusOK, bizs)
}

func (api *businessApi) mine(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	bizs, err := api.svc.ListOwned(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "listing owned businesses")
	}
	if bizs == nil {
		bizs = []business.Business{}
	}
	return ctx.JSON(http.StatusOK, bizs)
}

func (api *businessApi) nearby(ctx echo.Context) error {
	nearby, err := api.bindNearby(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, nearby)
}

// mapFeatures renders the nearby businesses as GeoJSON; without coordinates every approved business is listed.
func (api *businessApi) mapFeatures(ctx echo.Context) error {
	var (
		nearby []business.NearbyBusiness
		err    error
	)
	if ctx.QueryParam("lat") == "" && ctx.QueryParam("lng") == "" {
		var bizs []business.Business
		if bizs, err = api.svc.Approved(ctx.Request().Context()); err != nil {
			return errors.Wrap(err, "listing approved businesses")
		}
		for _, biz := range bizs {
			nearby = append(nearby, business.NearbyBusiness{Business: biz})
		}
	} else if nearby, err = api.bindNearby(ctx); err != nil {
		return err
	}

	data, err := exportsvc.BusinessesGeoJSON(nearby)
	if err != nil {
		return errors.Wrap(err, "rendering businesses map")
	}
	return ctx.Blob(http.StatusOK, exportsvc.GeoJSONContentType, data)
}

func (api *businessApi) bindNearby(ctx echo.Context) ([]business.NearbyBusiness, error) {
	var q business.NearbyQuery
	if err := ctx.Bind(&q); err != nil {
		return nil, core.NewValidationError(err, core.FieldError{Field: "lat", Error: "invalid coordinates"})
	}
	if err := q.Validate(api.validate); err != nil {
		return nil, err
	}
	nearby, err := api.svc.Nearby(ctx.Request().Context(), q.Point(), q.RadiusKm)
	if err != nil {
		return nil, errors.Wrap(err, "finding nearby businesses")
	}
	return nearby, nil
}

func (api *businessApi) retrieve(ctx echo.Context) error {
	biz, err := api.managedBusiness(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, biz)
}

func (api *businessApi) update(ctx echo.Context) error {
	biz, err := api.managedBusiness(ctx)
	if err != nil {
		return err
	}

	var data business.UpdateBusiness
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to business.UpdateBusiness")
	}
	if err = data.Validate(biz, api.validate); err != nil {
		return err
	}

	biz, err = api.svc.Update(ctx.Request().Context(), biz, data)
	if err != nil {
		return errors.Wrap(err, "updating business")
	}
	return ctx.JSON(http.StatusOK, biz)
}

func (api *businessApi) setStatus(ctx echo.Context) error {
	biz, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding business")
	}

	var data business.StatusUpdate
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to business.StatusUpdate")
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	biz, err = api.svc.SetStatus(ctx.Request().Context(), biz, data.Status)
	if err != nil {
		return errors.Wrap(err, "setting business status")
	}
	return ctx.JSON(http.StatusOK, biz)
}

func (api *businessApi) addLocation(ctx echo.Context) error {
	biz, err := api.managedBusiness(ctx)
	if err != nil {
		return err
	}

	var data business.NewLocation
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to business.NewLocation")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	loc, err := api.svc.AddLocation(ctx.Request().Context(), biz, data)
	if err != nil {
		return errors.Wrap(err, "adding location")
	}
	return ctx.JSON(http.StatusCreated, loc)
}

func (api *businessApi) removeLocation(ctx echo.Context) error {
	biz, err := api.managedBusiness(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.RemoveLocation(ctx.Request().Context(), biz, ctx.Param("locationId")); err != nil {
		return errors.Wrap(err, "removing location")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *businessApi) createDeal(ctx echo.Context) error {
	biz, err := api.managedBusiness(ctx)
	if err != nil {
		return err
	}

	var data deal.NewDeal
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to deal.NewDeal")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	d, err := api.dealSvc.Create(ctx.Request().Context(), biz, data)
	if err != nil {
		return errors.Wrap(err, "creating deal")
	}
	return ctx.JSON(http.StatusCreated, d)
}

// deals lists every deal of the business, unavailable ones included.
func (api *businessApi) deals(ctx echo.Context) error {
	biz, err := api.managedBusiness(ctx)
	if err != nil {
		return err
	}
	var ord Ordering
	ord.Bind(ctx)

	deals, err := api.dealSvc.Query(ctx.Request().Context(), deal.QueryFilter{BusinessID: biz.ID}, ord.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying business deals")
	}
	if deals == nil {
		deals = []deal.Deal{}
	}
	return ctx.JSON(http.StatusOK, deals)
}

func (api *businessApi) submitPushRequest(ctx echo.Context) error {
	biz, err := api.managedBusiness(ctx)
	if err != nil {
		return err
	}

	var data notification.NewPushRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to notification.NewPushRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	pr, err := api.notifSvc.Submit(ctx.Request().Context(), biz, data)
	if err != nil {
		return errors.Wrap(err, "submitting push request")
	}
	return ctx.JSON(http.StatusCreated, pr)
}

func (api *businessApi) pushRequests(ctx echo.Context) error {
	biz, err := api.managedBusiness(ctx)
	if err != nil {
		return err
	}
	prs, err := api.notifSvc.Query(ctx.Request().Context(), notification.QueryFilter{
		BusinessID: biz.ID,
		Status:     ctx.QueryParam("status"),
	})
	if err != nil {
		return errors.Wrap(err, "querying push requests")
	}
	if prs == nil {
		prs = []notification.PushRequest{}
	}
	return ctx.JSON(http.StatusOK, prs)
}

func (api *businessApi) bindRedemptionQuery(ctx echo.Context) (ticket.RedemptionQuery, error) {
	var q ticket.RedemptionQuery
	if err := ctx.Bind(&q); err != nil {
		return q, errors.Wrap(err, "binding to ticket.RedemptionQuery")
	}
	if err := bindTime(ctx, "from", &q.From); err != nil {
		return q, err
	}
	if err := bindTime(ctx, "to", &q.To); err != nil {
		return q, err
	}
	return q, nil
}

func (api *businessApi) redemptions(ctx echo.Context) error {
	biz, err := api.managedBusiness(ctx)
	if err != nil {
		return err
	}
	q, err := api.bindRedemptionQuery(ctx)
	if err != nil {
		return err
	}

	rows, err := api.ticketSvc.Redemptions(ctx.Request().Context(), biz, q)
	if err != nil {
		return errors.Wrap(err, "querying redemptions")
	}
	if rows == nil {
		rows = []ticket.RedemptionRow{}
	}
	return ctx.JSON(http.StatusOK, rows)
}

func (api *businessApi) exportRedemptions(ctx echo.Context) error {
	biz, err := api.managedBusiness(ctx)
	if err != nil {
		return err
	}
	q, err := api.bindRedemptionQuery(ctx)
	if err != nil {
		return err
	}

	rows, err := api.ticketSvc.Redemptions(ctx.Request().Context(), biz, q)
	if err != nil {
		return errors.Wrap(err, "querying redemptions")
	}
	var buf bytes.Buffer
	if err = exportsvc.WriteRedemptionsXLSX(&buf, rows); err != nil {
		return errors.Wrap(err, "exporting redemptions")
	}

	filename := fmt.Sprintf("redemptions-%s-%s.xlsx", biz.ID, core.NowFunc().Format("20060102"))
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return ctx.Blob(http.StatusOK, exportsvc.XLSXContentType, buf.Bytes())
}

func (api *businessApi) dashboard(ctx echo.Context) error {
	biz, err := api.managedBusiness(ctx)
	if err != nil {
		return err
	}
	dash, err := api.statsSvc.Business(ctx.Request().Context(), biz)
	if err != nil {
		return errors.Wrap(err, "computing business dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}

func (api *businessApi) checkout(ctx echo.Context) error {
	biz, err := api.managedBusiness(ctx)
	if err != nil {
		return err
	}
	sess, err := api.billingSvc.Checkout(ctx.Request().Context(), biz)
	if err != nil {
		return errors.Wrap(err, "starting checkout")
	}
	return ctx.JSON(http.StatusCreated, sess)
}

type BusinessRegistrationResponse struct {
	User     user.User         `json:"user"`
	Business business.Business `json:"business"`
}
