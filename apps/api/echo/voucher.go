package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/campusdeals/core/student"
	"github.com/trezcool/campusdeals/core/user"
	"github.com/trezcool/campusdeals/core/voucher"
)

type voucherApi struct {
	svc        *voucher.Service
	usrSvc     user.Service
	studentSvc *student.Service
	validate   *validator.Validate
}

func registerVoucherAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := voucherApi{svc: deps.VoucherSvc, usrSvc: deps.UserSvc, studentSvc: deps.StudentSvc, validate: deps.Validate}

	sg := g.Group("/spin", jwt, studentMiddleware())
	sg.GET("", api.spinStatus)
	sg.POST("", api.spin)

	vg := g.Group("/vouchers", jwt)
	vg.GET("/mine", api.mine, studentMiddleware())
	vg.POST("/redeem", api.redeem, businessMiddleware())

	pg := g.Group("/prizes", jwt, adminMiddleware())
	pg.POST("", api.createPrize)
	pg.GET("", api.queryPrizes)
	pg.GET("/:id", api.retrievePrize)
	pg.PUT("/:id", api.updatePrize)
	pg.DELETE("/:id", api.destroyPrize)
}

func (api *voucherApi) spinStatus(ctx echo.Context) error {
	_, stud, err := getContextStudent(ctx, api.usrSvc, api.studentSvc)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.svc.SpinStatus(stud.LastSpinAt))
}

func (api *voucherApi) spin(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	res, err := api.svc.Spin(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "spinning the wheel")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *voucherApi) mine(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var filter voucher.QueryFilter
	if err = ctx.Bind(&filter); err != nil {
		filter = voucher.QueryFilter{}
	}

	vouchers, err := api.svc.Mine(ctx.Request().Context(), usr, filter)
	if err != nil {
		return errors.Wrap(err, "listing vouchers")
	}
	if vouchers == nil {
		vouchers = []voucher.Voucher{}
	}
	return ctx.JSON(http.StatusOK, vouchers)
}

func (api *voucherApi) redeem(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data voucher.RedeemRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to voucher.RedeemRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	v, err := api.svc.Redeem(ctx.Request().Context(), usr, data.Code)
	if err != nil {
		return errors.Wrap(err, "redeeming voucher")
	}
	return ctx.JSON(http.StatusOK, v)
}

func (api *voucherApi) createPrize(ctx echo.Context) error {
	var data voucher.NewPrize
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to voucher.NewPrize")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.CreatePrize(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating prize")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *voucherApi) queryPrizes(ctx echo.Context) error {
	var filter voucher.PrizeFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []voucher.Prize{})
	}
	prizes, err := api.svc.QueryPrizes(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying prizes")
	}
	if prizes == nil {
		prizes = []voucher.Prize{}
	}
	return ctx.JSON(http.StatusOK, prizes)
}

func (api *voucherApi) retrievePrize(ctx echo.Context) error {
	p, err := api.svc.GetPrize(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding prize")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *voucherApi) updatePrize(ctx echo.Context) error {
	p, err := api.svc.GetPrize(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding prize")
	}

	var data voucher.UpdatePrize
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to voucher.UpdatePrize")
	}
	if err = data.Validate(p, api.validate); err != nil {
		return err
	}

	p, err = api.svc.UpdatePrize(ctx.Request().Context(), p, data)
	if err != nil {
		return errors.Wrap(err, "updating prize")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *voucherApi) destroyPrize(ctx echo.Context) error {
	if err := api.svc.DeletePrize(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting prize")
	}
	return ctx.NoContent(http.StatusNoContent)
}
