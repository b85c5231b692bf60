package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/campusdeals/core"
	"github.com/trezcool/campusdeals/core/billing"
	"github.com/trezcool/campusdeals/core/business"
	"github.com/trezcool/campusdeals/core/deal"
	"github.com/trezcool/campusdeals/core/notification"
	"github.com/trezcool/campusdeals/core/stats"
	"github.com/trezcool/campusdeals/core/student"
	"github.com/trezcool/campusdeals/core/ticket"
	"github.com/trezcool/campusdeals/core/university"
	"github.com/trezcool/campusdeals/core/user"
	"github.com/trezcool/campusdeals/core/voucher"
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator

		UserSvc         user.Service
		UniversitySvc   *university.Service
		StudentSvc      *student.Service
		BusinessSvc     *business.Service
		DealSvc         *deal.Service
		TicketSvc       *ticket.Service
		VoucherSvc      *voucher.Service
		NotificationSvc *notification.Service
		BillingSvc      *billing.Service
		StatsSvc        *stats.Service
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf
	debug := conf.Debug && !conf.TestMode

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = debug

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(appJWTConfig)
	limit := newRateLimiter(conf.Server.AuthRateLimit, conf.Server.AuthRateBurst).middleware()

	registerAuthAPI(v1, jwt, limit, s.deps)
	registerUserAPI(v1, jwt, s.deps)
	registerUniversityAPI(v1, jwt, s.deps)
	registerStudentAPI(v1, jwt, limit, s.deps)
	registerBusinessAPI(v1, jwt, limit, s.deps)
	registerDealAPI(v1, jwt, s.deps)
	registerTicketAPI(v1, jwt, s.deps)
	registerVoucherAPI(v1, jwt, s.deps)
	registerNotificationAPI(v1, jwt, s.deps)
	registerBillingAPI(v1, s.deps)
	registerStatsAPI(v1, jwt, s.deps)
}

// Start listens until the server is shut down; listener errors are reported on Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
