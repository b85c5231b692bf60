// Package pushsvc delivers mobile push notifications.
package pushsvc

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/campusdeals/core"
)

const (
	defaultExpoBatchSize = 100 // Expo accepts at most 100 messages per request
	expoTimeout          = 15 * time.Second
)

type (
	expoMessage struct {
		To    string            `json:"to"`
		Title string            `json:"title"`
		Body  string            `json:"body"`
		Data  map[string]string `json:"data,omitempty"`
		Sound string            `json:"sound"`
	}

	expoTicket struct {
		Status  string `json:"status"`
		ID      string `json:"id"`
		Message string `json:"message"`
	}

	expoResponse struct {
		Data   []expoTicket `json:"data"`
		Errors []struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"errors"`
	}
)

type expoService struct {
	client      *http.Client
	url         string
	accessToken string
	batchSize   int
	concurrency int
	logger      core.Logger
}

var _ core.PushService = (*expoService)(nil)

// NewExpoService sends through the Expo push API, in parallel batches.
func NewExpoService(conf *core.Config, logger core.Logger) core.PushService {
	svc := &expoService{
		client:      &http.Client{Timeout: expoTimeout},
		url:         conf.Push.ExpoURL,
		accessToken: conf.Push.ExpoAccessToken,
		batchSize:   conf.Push.BatchSize,
		concurrency: conf.Push.Concurrency,
		logger:      logger,
	}
	if svc.batchSize <= 0 || svc.batchSize > defaultExpoBatchSize {
		svc.batchSize = defaultExpoBatchSize
	}
	if svc.concurrency <= 0 {
		svc.concurrency = 1
	}
	return svc
}

func (svc *expoService) Send(ctx context.Context, messages []core.PushMessage) error {
	batches := make([][]expoMessage, 0, len(messages)/svc.batchSize+1)
	batch := make([]expoMessage, 0, svc.batchSize)
	for _, msg := range messages {
		if !isExpoToken(msg.To) {
			continue
		}
		batch = append(batch, expoMessage{To: msg.To, Title: msg.Title, Body: msg.Body, Data: msg.Data, Sound: "default"})
		if len(batch) == svc.batchSize {
			batches = append(batches, batch)
			batch = make([]expoMessage, 0, svc.batchSize)
		}
	}
	if len(batch) > 0 {
		batches = append(batches, batch)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(svc.concurrency)
	for _, b := range batches {
		b := b
		g.Go(func() error {
			return svc.sendBatch(gctx, b)
		})
	}
	return g.Wait()
}

func (svc *expoService) sendBatch(ctx context.Context, batch []expoMessage) error {
	payload, err := json.Marshal(batch)
	if err != nil {
		return errors.Wrap(err, "encoding push batch")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, svc.url, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "building push request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if svc.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+svc.accessToken)
	}

	res, err := svc.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "sending push batch")
	}
	defer func() { _ = res.Body.Close() }()

	var body expoResponse
	if err = json.NewDecoder(res.Body).Decode(&body); err != nil {
		return errors.Wrapf(err, "decoding push response (status %d)", res.StatusCode)
	}
	if res.StatusCode >= http.StatusBadRequest {
		msg := http.StatusText(res.StatusCode)
		if len(body.Errors) > 0 {
			msg = body.Errors[0].Message
		}
		return errors.Errorf("push batch rejected: %d %s", res.StatusCode, msg)
	}

	// per-device failures (e.g. unregistered devices) don't fail the batch
	for i, ticket := range body.Data {
		if ticket.Status == "error" && i < len(batch) {
			svc.logger.Warn(fmt.Sprintf("push to %s failed: %s", batch[i].To, ticket.Message))
		}
	}
	return nil
}

func isExpoToken(token string) bool {
	return (strings.HasPrefix(token, "ExponentPushToken[") || strings.HasPrefix(token, "ExpoPushToken[")) &&
		strings.HasSuffix(token, "]")
}
