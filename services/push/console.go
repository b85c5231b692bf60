package pushsvc

import (
	"context"
	"fmt"
	"sync"

	"github.com/trezcool/campusdeals/core"
)

var (
	sentMessages = make([]core.PushMessage, 0)
	mu           sync.Mutex
)

// SentMessages returns the push messages delivered by console services so far.
func SentMessages() []core.PushMessage {
	mu.Lock()
	defer mu.Unlock()
	msgs := make([]core.PushMessage, len(sentMessages))
	copy(msgs, sentMessages)
	return msgs
}

func ResetSentMessages() {
	mu.Lock()
	sentMessages = sentMessages[:0]
	mu.Unlock()
}

type consoleService struct {
	logger core.Logger
	quiet  bool
}

var _ core.PushService = (*consoleService)(nil)

// NewConsoleService logs push messages instead of delivering them.
func NewConsoleService(logger core.Logger, quiet bool) core.PushService {
	return &consoleService{logger: logger, quiet: quiet}
}

func (svc consoleService) Send(_ context.Context, messages []core.PushMessage) error {
	if !svc.quiet {
		for _, msg := range messages {
			svc.logger.Info(fmt.Sprintf("push to %s: %s - %s", msg.To, msg.Title, msg.Body))
		}
	}
	mu.Lock()
	sentMessages = append(sentMessages, messages...)
	mu.Unlock()
	return nil
}
