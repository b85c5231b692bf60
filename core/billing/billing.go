// Package billing keeps business subscriptions in sync with the payment provider.
package billing

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/campusdeals/core"
	"github.com/trezcool/campusdeals/core/business"
	"github.com/trezcool/campusdeals/core/user"
)

type EventType string

const (
	EventCheckoutCompleted   EventType = "checkout.session.completed"
	EventSubscriptionUpdated EventType = "customer.subscription.updated"
	EventSubscriptionDeleted EventType = "customer.subscription.deleted"
)

var (
	// errors
	ErrInvalidSignature  = errors.New("invalid webhook signature")
	ErrAlreadySubscribed = core.NewConflictError("business already has an active subscription")
)

type (
	CheckoutRequest struct {
		BusinessID    string
		CustomerID    string // reused when the business subscribed before
		CustomerEmail string
	}

	CheckoutSession struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}

	// Event is a provider webhook, reduced to what the subscription sync needs.
	Event struct {
		ID             string
		Type           EventType
		BusinessID     string // only on checkout events
		CustomerID     string
		SubscriptionID string
		// ProviderStatus is the raw subscription status of the provider.
		ProviderStatus string
	}

	Provider interface {
		CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
		// ParseEvent verifies the signature of payload; it fails with ErrInvalidSignature on mismatch.
		ParseEvent(payload []byte, signature string) (Event, error)
	}
)

// SubscriptionStatus maps a provider subscription status onto ours.
func SubscriptionStatus(providerStatus string) business.SubscriptionStatus {
	switch providerStatus {
	case "active", "trialing":
		return business.SubscriptionActive
	case "past_due", "unpaid", "incomplete":
		return business.SubscriptionPastDue
	case "canceled", "incomplete_expired":
		return business.SubscriptionCanceled
	default:
		return business.SubscriptionNone
	}
}

type Service struct {
	provider Provider
	bizSvc   *business.Service
	usrSvc   user.Service
	logger   core.Logger
}

func NewService(provider Provider, bizSvc *business.Service, usrSvc user.Service, logger core.Logger) *Service {
	return &Service{provider: provider, bizSvc: bizSvc, usrSvc: usrSvc, logger: logger}
}

// Checkout opens a hosted checkout page where the owner of biz subscribes.
func (svc *Service) Checkout(ctx context.Context, biz business.Business) (CheckoutSession, error) {
	if biz.HasActiveSubscription() {
		return CheckoutSession{}, ErrAlreadySubscribed
	}
	owner, err := svc.usrSvc.GetByID(ctx, biz.OwnerID)
	if err != nil {
		return CheckoutSession{}, errors.Wrap(err, "loading owner")
	}
	sess, err := svc.provider.CreateCheckoutSession(ctx, CheckoutRequest{
		BusinessID:    biz.ID,
		CustomerID:    biz.StripeCustomerID,
		CustomerEmail: owner.Email,
	})
	if err != nil {
		return CheckoutSession{}, errors.Wrap(err, "creating checkout session")
	}
	return sess, nil
}

// HandleWebhook applies a signed provider event. Unknown event types are ignored.
func (svc *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	ev, err := svc.provider.ParseEvent(payload, signature)
	if err != nil {
		return err
	}

	var (
		biz business.Business
		sub = business.Subscription{CustomerID: ev.CustomerID, SubscriptionID: ev.SubscriptionID}
	)
	switch ev.Type {
	case EventCheckoutCompleted:
		if biz, err = svc.bizSvc.Get(ctx, ev.BusinessID); err != nil {
			return errors.Wrapf(err, "loading business %q of event %s", ev.BusinessID, ev.ID)
		}
		sub.Status = business.SubscriptionActive
	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		if biz, err = svc.bizSvc.GetByStripeCustomer(ctx, ev.CustomerID); err != nil {
			if core.IsNotFound(err) {
				svc.logger.Warn(fmt.Sprintf("billing event %s: no business for customer %s", ev.ID, ev.CustomerID))
				return nil
			}
			return err
		}
		sub.Status = SubscriptionStatus(ev.ProviderStatus)
		if ev.Type == EventSubscriptionDeleted {
			sub.Status = business.SubscriptionCanceled
		}
	default:
		return nil
	}

	if _, err = svc.bizSvc.SetSubscription(ctx, biz, sub); err != nil {
		return errors.Wrap(err, "updating subscription")
	}
	svc.logger.Info(fmt.Sprintf("business %s subscription %s", biz.ID, sub.Status))
	return nil
}
