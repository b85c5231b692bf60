package echoapi

import (
	"io/ioutil"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/campusdeals/core/billing"
)

const (
	stripeSignatureHeader = "Stripe-Signature"
	maxWebhookBodyBytes   = 64 << 10
)

type billingApi struct {
	svc *billing.Service
}

func registerBillingAPI(g *echo.Group, deps ServerDeps) {
	api := billingApi{svc: deps.BillingSvc}
	g.POST("/billing/webhook", api.webhook)
}

func (api *billingApi) webhook(ctx echo.Context) error {
	payload, err := ioutil.ReadAll(http.MaxBytesReader(ctx.Response(), ctx.Request().Body, maxWebhookBodyBytes))
	if err != nil {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "payload too large")
	}

	err = api.svc.HandleWebhook(ctx.Request().Context(), payload, ctx.Request().Header.Get(stripeSignatureHeader))
	if err != nil {
		if errors.Cause(err) == billing.ErrInvalidSignature {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return errors.Wrap(err, "handling billing webhook")
	}
	return ctx.NoContent(http.StatusOK)
}
