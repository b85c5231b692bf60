package logsvc

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/trezcool/campusdeals/core/user"
)

func TestZapLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := NewZapLogger(zap.New(core))

	logger.Debug("hidden")
	logger.Warn("redeeming ticket", errors.New("boom"), user.User{ID: "u1", Email: "ama@uni.edu"}, map[string]interface{}{"code": "ABC123"})

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		e := entries[0]
		assert.Equal(t, zapcore.WarnLevel, e.Level)
		assert.Equal(t, "redeeming ticket", e.Message)
		ctx := e.ContextMap()
		assert.Equal(t, "boom", ctx["error"])
		assert.Equal(t, "u1", ctx["user_id"])
		assert.Equal(t, "ama@uni.edu", ctx["user_email"])
		assert.Equal(t, "ABC123", ctx["code"])
	}
}
