package testutil

import (
	"context"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/gorm"

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
	cachesvc "github.com/trezcool/campusdeals/services/cache"
	emailsvc "github.com/trezcool/campusdeals/services/email"
	logsvc "github.com/trezcool/campusdeals/services/logger"
	pushsvc "github.com/trezcool/campusdeals/services/push"
	"github.com/trezcool/campusdeals/storage/database/gormrepos"
	"github.com/trezcool/campusdeals/storage/database/sqlxrepos"
)

// App wires every service on a fresh database, the way the API server does.
type App struct {
	DB         *gorm.DB
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	Billing    *FakeBillingProvider

	UserRepo       user.Repository
	UniversityRepo university.Repository
	StudentRepo    student.Repository
	BusinessRepo   business.Repository
	DealRepo       deal.Repository
	TicketRepo     ticket.Repository
	VoucherRepo    voucher.Repository
	NotifRepo      notification.Repository

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

// NewTranslator returns the english translator of validation errors.
func NewTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// NewValidator returns a validator knowing every custom tag of the app.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	business.InitValidators(validate, translator)
	return validate, translator
}

func NewApp(t *testing.T) *App {
	t.Helper()

	conf := core.Conf
	conf.TestMode = true
	conf.Debug = false
	conf.Server.AuthRateLimit = 0

	db := OpenDB(t)
	validate, translator := NewValidator()
	logger := logsvc.NewZapLogger(zap.NewNop())
	core.ParseEmailTemplates(logger)
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	pushSvc := pushsvc.NewConsoleService(logger, true /* quiet */)
	tx := gormrepos.NewTransactor(db)

	a := &App{
		DB:             db,
		Conf:           conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		Billing:        &FakeBillingProvider{},
		UserRepo:       gormrepos.NewUserRepository(db),
		UniversityRepo: gormrepos.NewUniversityRepository(db),
		StudentRepo:    gormrepos.NewStudentRepository(db),
		BusinessRepo:   gormrepos.NewBusinessRepository(db),
		DealRepo:       gormrepos.NewDealRepository(db),
		TicketRepo:     gormrepos.NewTicketRepository(db),
		VoucherRepo:    gormrepos.NewVoucherRepository(db),
		NotifRepo:      gormrepos.NewNotificationRepository(db),
	}

	a.UserSvc = user.NewServiceMock(a.UserRepo, cachesvc.NewMemoryOTPStore(), mailSvc, conf)
	a.UniversitySvc = university.NewService(a.UniversityRepo)
	a.BusinessSvc = business.NewService(tx, a.BusinessRepo, a.UserSvc, mailSvc)
	a.DealSvc = deal.NewService(a.DealRepo)
	a.StudentSvc = student.NewService(tx, a.StudentRepo, a.UserSvc, a.UniversitySvc, a.DealSvc)
	a.TicketSvc = ticket.NewService(tx, a.TicketRepo, a.DealSvc)
	a.VoucherSvc = voucher.NewService(tx, a.VoucherRepo, a.StudentSvc, a.BusinessSvc, conf)
	a.NotificationSvc = notification.NewService(notification.Deps{
		DB:       tx,
		Repo:     a.NotifRepo,
		Business: a.BusinessSvc,
		Univ:     a.UniversitySvc,
		Student:  a.StudentSvc,
		Deal:     a.DealSvc,
		User:     a.UserSvc,
		Push:     pushSvc,
		Mail:     mailSvc,
		Logger:   logger,
	})
	a.BillingSvc = billing.NewService(a.Billing, a.BusinessSvc, a.UserSvc, logger)
	a.StatsSvc = stats.NewService(sqlxrepos.NewStatsRepository(SqlxDB(t, db)))

	emailsvc.ResetSentMessages()
	pushsvc.ResetSentMessages()
	return a
}

// FakeBillingProvider records checkouts and hands out Event as the parsed webhook.
type FakeBillingProvider struct {
	Checkouts []billing.CheckoutRequest
	Event     billing.Event
	// Signature is the only accepted webhook signature.
	Signature string
}

var _ billing.Provider = (*FakeBillingProvider)(nil)

func (p *FakeBillingProvider) CreateCheckoutSession(_ context.Context, req billing.CheckoutRequest) (billing.CheckoutSession, error) {
	p.Checkouts = append(p.Checkouts, req)
	return billing.CheckoutSession{ID: "cs_test", URL: "https://checkout.test/cs_test"}, nil
}

func (p *FakeBillingProvider) ParseEvent(_ []byte, signature string) (billing.Event, error) {
	if signature == "" || signature != p.Signature {
		return billing.Event{}, billing.ErrInvalidSignature
	}
	return p.Event, nil
}
