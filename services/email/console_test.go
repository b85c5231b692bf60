package emailsvc

import (
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/trezcool/campusdeals/core"
	logsvc "github.com/trezcool/campusdeals/services/logger"
)

func TestConsoleServiceMock(t *testing.T) {
	ResetSentMessages()
	t.Cleanup(ResetSentMessages)

	svc := NewConsoleServiceMock(core.Conf, logsvc.NewZapLogger(zap.NewNop()))
	svc.SendMessages(
		&core.EmailMessage{To: []mail.Address{{Address: "a@test.tn"}}, Subject: "one", BodyStr: "hello"},
		&core.EmailMessage{Subject: "no recipient", BodyStr: "hello"},
		&core.EmailMessage{To: []mail.Address{{Address: "b@test.tn"}}, Subject: "no content"},
	)

	msgs := SentMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "one", msgs[0].Subject)
	assert.Equal(t, "hello", msgs[0].TextContent)
}

func TestConsoleService_format(t *testing.T) {
	ResetSentMessages()
	t.Cleanup(ResetSentMessages)

	obsCore, logs := observer.New(zap.InfoLevel)
	svc := &consoleService{
		from:       mail.Address{Name: "Campus Deals", Address: "no-reply@test.tn"},
		subjPrefix: "[CD] ",
		blocking:   true,
		logger:     logsvc.NewZapLogger(zap.New(obsCore)),
	}
	svc.deliver(&core.EmailMessage{
		To:           []mail.Address{{Name: "Amine", Address: "amine@test.tn"}},
		Cc:           []mail.Address{{Address: "cc@test.tn"}},
		Subject:      "Welcome",
		BodyStr:      "hello there",
		TemplateName: "welcome",
	})

	entries := logs.All()
	require.Len(t, entries, 1)
	out := entries[0].Message
	assert.Contains(t, out, "From: \"Campus Deals\" <no-reply@test.tn>\n")
	assert.Contains(t, out, "To: \"Amine\" <amine@test.tn>\n")
	assert.Contains(t, out, "Cc: <cc@test.tn>\n")
	assert.NotContains(t, out, "Bcc:")
	assert.Contains(t, out, "Subject: [CD] Welcome\n\nhello there")
	assert.Equal(t, "welcome", entries[0].ContextMap()["template"])
}
