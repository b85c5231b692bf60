package user

import (
	"github.com/trezcool/campusdeals/core"
)

// TestLoginCode is the one-time code issued by services built with NewServiceMock.
const TestLoginCode = "424242"

// NewServiceMock returns a Service issuing the predictable TestLoginCode.
func NewServiceMock(repo Repository, otpStore OTPStore, mailSvc core.EmailService, conf *core.Config) Service {
	return &service{
		repo:     repo,
		otpStore: otpStore,
		mailSvc:  mailSvc,
		conf:     conf,
		newCode:  func() (string, error) { return TestLoginCode, nil },
	}
}
