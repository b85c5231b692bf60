package core

import "context"

type (
	// PushMessage is a mobile push notification for one device.
	PushMessage struct {
		To    string // device push token
		Title string
		Body  string
		Data  map[string]string
	}

	// PushService is any service that can deliver push notifications
	PushService interface {
		// Send delivers messages, batching and parallelizing as it sees fit.
		Send(ctx context.Context, messages []PushMessage) error
	}
)
