package user

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/trezcool/campusdeals/core"
)

// tokenEpoch is the origin of token timestamps, counted in hours.
var tokenEpoch = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

const purposePasswordReset = "password-reset"

var (
	errInvalidToken = errors.New("invalid token")
	errTokenExpired = errors.New("token expired")
)

// EncodeUID base64 encodes given User ID
func EncodeUID(usr User) string {
	return base64.RawURLEncoding.EncodeToString([]byte(usr.ID))
}

// DecodeUID base64 decodes given UID
func DecodeUID(uid string) (string, error) {
	idBytes, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return "", err
	}
	return string(idBytes), nil
}

// MakeToken generates a password reset token for usr, formatted "<hours since epoch, base36>-<signature>".
// The token is invalidated as soon as the user's password or last login changes.
func MakeToken(usr User) string {
	return signToken(purposePasswordReset, usr, hoursSinceEpoch(core.NowFunc()))
}

// verifyToken checks that a password reset token was issued for usr and has not expired.
func verifyToken(usr User, token string) error {
	stamp, _, ok := strings.Cut(token, "-")
	if !ok || stamp == "" {
		return errInvalidToken
	}
	issued, err := strconv.ParseInt(stamp, 36, 64)
	if err != nil {
		return errInvalidToken
	}

	expected := signToken(purposePasswordReset, usr, issued)
	if !hmac.Equal([]byte(expected), []byte(token)) {
		return errInvalidToken
	}

	age := time.Duration(hoursSinceEpoch(core.NowFunc())-issued) * time.Hour
	if age > core.Conf.Rules.PasswordResetTimeoutDelta {
		return errTokenExpired
	}
	return nil
}

func hoursSinceEpoch(t time.Time) int64 {
	return int64(t.Sub(tokenEpoch) / time.Hour)
}

// signToken signs the user state that must not change while the token is valid.
func signToken(purpose string, usr User, issued int64) string {
	key := sha256.Sum256([]byte(purpose + ":" + core.Conf.SecretKey))
	h := hmac.New(sha256.New, key[:])

	var state bytes.Buffer
	state.WriteString(usr.ID)
	state.Write(usr.PasswordHash)
	if !usr.LastLogin.IsZero() {
		state.WriteString(usr.LastLogin.UTC().Format(time.RFC3339))
	}
	state.WriteString(strconv.FormatInt(issued, 10))
	_, _ = h.Write(state.Bytes())

	return strconv.FormatInt(issued, 36) + "-" + base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
