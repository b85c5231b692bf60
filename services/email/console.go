// Package emailsvc delivers transactional emails: to the console in development and tests,
// through SendGrid otherwise.
package emailsvc

import (
	"fmt"
	"net/mail"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/campusdeals/core"
)

// outbox records the messages delivered by the console services, for tests to inspect.
type outbox struct {
	mu   sync.Mutex
	msgs []core.EmailMessage
}

var sent outbox

// SentMessages returns the messages delivered by the console services so far.
func SentMessages() []core.EmailMessage {
	sent.mu.Lock()
	defer sent.mu.Unlock()
	return append([]core.EmailMessage(nil), sent.msgs...)
}

// ResetSentMessages empties the console outbox.
func ResetSentMessages() {
	sent.mu.Lock()
	sent.msgs = nil
	sent.mu.Unlock()
}

func (o *outbox) add(msg core.EmailMessage) {
	o.mu.Lock()
	o.msgs = append(o.msgs, msg)
	o.mu.Unlock()
}

type consoleService struct {
	from       mail.Address
	subjPrefix string
	quiet      bool
	blocking   bool
	logger     core.Logger
}

var _ core.EmailService = (*consoleService)(nil)

// NewConsoleService logs every email instead of sending it.
func NewConsoleService(conf *core.Config, logger core.Logger) core.EmailService {
	return &consoleService{
		from:       conf.DefaultFromEmail,
		subjPrefix: "[" + conf.AppName + "] ",
		logger:     logger,
	}
}

// NewConsoleServiceMock returns a silent console service that delivers synchronously; meant for tests.
func NewConsoleServiceMock(conf *core.Config, logger core.Logger) core.EmailService {
	svc := NewConsoleService(conf, logger).(*consoleService)
	svc.quiet = true
	svc.blocking = true
	return svc
}

func (svc *consoleService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		if svc.blocking {
			svc.deliver(msg)
			continue
		}
		go svc.deliver(msg)
	}
}

func (svc *consoleService) deliver(msg *core.EmailMessage) {
	if err := msg.Render(); err != nil {
		svc.logger.Error(fmt.Sprintf("rendering %q email: %v", msg.TemplateName, err), errors.Wrap(err, "rendering email"))
		return
	}
	if !msg.HasRecipients() || !(msg.HasContent() || msg.HasAttachments()) {
		return
	}
	sent.add(*msg)

	if svc.quiet {
		return
	}
	svc.logger.Info(svc.format(msg), map[string]interface{}{
		"template":    msg.TemplateName,
		"attachments": len(msg.Attachments),
	})
}

// format renders the headers and the plain text body, the way a mail client would show them.
func (svc *consoleService) format(msg *core.EmailMessage) string {
	var b strings.Builder
	_, _ = fmt.Fprintf(&b, "From: %s\n", svc.from.String())
	_, _ = fmt.Fprintf(&b, "To: %s\n", joinAddresses(msg.To))
	if len(msg.Cc) > 0 {
		_, _ = fmt.Fprintf(&b, "Cc: %s\n", joinAddresses(msg.Cc))
	}
	if len(msg.Bcc) > 0 {
		_, _ = fmt.Fprintf(&b, "Bcc: %s\n", joinAddresses(msg.Bcc))
	}
	_, _ = fmt.Fprintf(&b, "Subject: %s%s\n\n", svc.subjPrefix, msg.Subject)
	b.WriteString(msg.TextContent)
	for _, at := range msg.Attachments {
		_, _ = fmt.Fprintf(&b, "\n[attachment %s (%s)]", at.Filename, at.ContentType)
	}
	return b.String()
}

func joinAddresses(addrs []mail.Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		parts = append(parts, a.String())
	}
	return strings.Join(parts, ", ")
}
