// Package billingsvc implements billing.Provider on top of Stripe.
package billingsvc

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
	"github.com/stripe/stripe-go/v72/webhook"

	"github.com/trezcool/campusdeals/core"
	"github.com/trezcool/campusdeals/core/billing"
)

type stripeProvider struct {
	api           *client.API
	priceID       string
	successURL    string
	cancelURL     string
	webhookSecret string
}

var _ billing.Provider = (*stripeProvider)(nil)

func NewStripeProvider(conf *core.Config) billing.Provider {
	return &stripeProvider{
		api:           client.New(conf.Stripe.SecretKey, nil),
		priceID:       conf.Stripe.PriceID,
		successURL:    conf.Stripe.SuccessURL,
		cancelURL:     conf.Stripe.CancelURL,
		webhookSecret: conf.Stripe.WebhookSecret,
	}
}

func (p *stripeProvider) CreateCheckoutSession(ctx context.Context, req billing.CheckoutRequest) (billing.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(p.priceID), Quantity: stripe.Int64(1)},
		},
		ClientReferenceID: stripe.String(req.BusinessID),
		SuccessURL:        stripe.String(p.successURL),
		CancelURL:         stripe.String(p.cancelURL),
	}
	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	} else if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.Context = ctx

	sess, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return billing.CheckoutSession{}, errors.Wrap(err, "creating stripe checkout session")
	}
	return billing.CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (p *stripeProvider) ParseEvent(payload []byte, signature string) (billing.Event, error) {
	evt, err := webhook.ConstructEvent(payload, signature, p.webhookSecret)
	if err != nil {
		switch err {
		case webhook.ErrNotSigned, webhook.ErrInvalidHeader, webhook.ErrNoValidSignature, webhook.ErrTooOld:
			return billing.Event{}, billing.ErrInvalidSignature
		}
		return billing.Event{}, errors.Wrap(err, "parsing stripe event")
	}
	return toEvent(evt)
}

func toEvent(evt stripe.Event) (billing.Event, error) {
	out := billing.Event{ID: evt.ID, Type: billing.EventType(evt.Type)}
	switch out.Type {
	case billing.EventCheckoutCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &sess); err != nil {
			return billing.Event{}, errors.Wrap(err, "decoding checkout session")
		}
		out.BusinessID = sess.ClientReferenceID
		if sess.Customer != nil {
			out.CustomerID = sess.Customer.ID
		}
		if sess.Subscription != nil {
			out.SubscriptionID = sess.Subscription.ID
		}
		out.ProviderStatus = string(stripe.SubscriptionStatusActive)
	case billing.EventSubscriptionUpdated, billing.EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(evt.Data.Raw, &sub); err != nil {
			return billing.Event{}, errors.Wrap(err, "decoding subscription")
		}
		out.SubscriptionID = sub.ID
		if sub.Customer != nil {
			out.CustomerID = sub.Customer.ID
		}
		out.ProviderStatus = string(sub.Status)
	}
	return out, nil
}
