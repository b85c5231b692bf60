package dig_container

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"
	"go.uber.org/zap"
	"gorm.io/gorm"

	echoapi "github.com/trezcool/campusdeals/apps/api/echo"
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
	billingsvc "github.com/trezcool/campusdeals/services/billing"
	cachesvc "github.com/trezcool/campusdeals/services/cache"
	emailsvc "github.com/trezcool/campusdeals/services/email"
	logsvc "github.com/trezcool/campusdeals/services/logger"
	pushsvc "github.com/trezcool/campusdeals/services/push"
	"github.com/trezcool/campusdeals/storage/database"
	"github.com/trezcool/campusdeals/storage/database/gormrepos"
	"github.com/trezcool/campusdeals/storage/database/sqlxrepos"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newZap(conf *core.Config) *zap.Logger {
	zl, err := logsvc.NewZap(conf)
	if err != nil {
		log.Fatalf("building zap logger: %v", err)
	}
	return zl
}

func newLogger(conf *core.Config, zl *zap.Logger) core.Logger {
	logger := logsvc.NewRollbarLogger(zl.Named("api"), conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDBLogger(conf *core.Config, zl *zap.Logger) core.Logger {
	logger := logsvc.NewRollbarLogger(zl.Named("db"), conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sql.DB, *gorm.DB) {
	setUp := func() (*sql.DB, *gorm.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, nil, err
		}

		if err = database.Migrate(db); err != nil {
			return nil, nil, err
		}

		gdb, err := database.OpenGorm(db, conf)
		if err != nil {
			return nil, nil, err
		}
		return db, gdb, nil
	}

	db, gdb, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, gdb
}

func newSqlxDB(db *sql.DB, conf *core.Config) *sqlx.DB {
	return sqlx.NewDb(db, conf.Database.Engine)
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newPushService(conf *core.Config, logger core.Logger) core.PushService {
	if conf.Debug {
		return pushsvc.NewConsoleService(logger, false)
	}
	return pushsvc.NewExpoService(conf, logger)
}

// newOTPStore keeps login codes in redis, or in memory when no redis is configured (single instance only).
func newOTPStore(conf *core.Config, logger core.Logger) user.OTPStore {
	if conf.Redis.Address == "" {
		logger.Warn("no redis configured: login codes are kept in memory")
		return cachesvc.NewMemoryOTPStore()
	}
	return cachesvc.NewRedisOTPStore(cachesvc.NewRedisClient(conf))
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newSpinGate(svc *student.Service) voucher.SpinGate {
	return svc
}

type notificationParams struct {
	dig.In

	DB       core.DBTransactor
	Repo     notification.Repository
	Business *business.Service
	Univ     *university.Service
	Student  *student.Service
	Deal     *deal.Service
	User     user.Service
	Push     core.PushService
	Mail     core.EmailService
	Logger   core.Logger
}

func newNotificationService(p notificationParams) *notification.Service {
	return notification.NewService(notification.Deps{
		DB:       p.DB,
		Repo:     p.Repo,
		Business: p.Business,
		Univ:     p.Univ,
		Student:  p.Student,
		Deal:     p.Deal,
		User:     p.User,
		Push:     p.Push,
		Mail:     p.Mail,
		Logger:   p.Logger,
	})
}

type serverParams struct {
	dig.In

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

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:            p.Conf,
		Logger:          p.Logger,
		Validate:        p.Validate,
		Translator:      p.Translator,
		UserSvc:         p.UserSvc,
		UniversitySvc:   p.UniversitySvc,
		StudentSvc:      p.StudentSvc,
		BusinessSvc:     p.BusinessSvc,
		DealSvc:         p.DealSvc,
		TicketSvc:       p.TicketSvc,
		VoucherSvc:      p.VoucherSvc,
		NotificationSvc: p.NotificationSvc,
		BillingSvc:      p.BillingSvc,
		StatsSvc:        p.StatsSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	// infrastructure
	must(c.Provide(core.NewConfig))
	must(c.Provide(newZap))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newSqlxDB))
	must(c.Provide(gormrepos.NewTransactor, dig.As(new(core.DBTransactor))))
	must(c.Provide(newEmailService))
	must(c.Provide(newPushService))
	must(c.Provide(newOTPStore))
	must(c.Provide(billingsvc.NewStripeProvider))
	must(c.Provide(validator.New))
	must(c.Provide(newTranslator))

	// repositories
	must(c.Provide(gormrepos.NewUserRepository, dig.As(new(user.Repository))))
	must(c.Provide(gormrepos.NewUniversityRepository, dig.As(new(university.Repository))))
	must(c.Provide(gormrepos.NewStudentRepository, dig.As(new(student.Repository))))
	must(c.Provide(gormrepos.NewBusinessRepository, dig.As(new(business.Repository))))
	must(c.Provide(gormrepos.NewDealRepository, dig.As(new(deal.Repository))))
	must(c.Provide(gormrepos.NewTicketRepository, dig.As(new(ticket.Repository))))
	must(c.Provide(gormrepos.NewVoucherRepository, dig.As(new(voucher.Repository))))
	must(c.Provide(gormrepos.NewNotificationRepository, dig.As(new(notification.Repository))))
	must(c.Provide(sqlxrepos.NewStatsRepository, dig.As(new(stats.Repository))))

	// services
	must(c.Provide(user.NewService))
	must(c.Provide(university.NewService))
	must(c.Provide(deal.NewService))
	must(c.Provide(student.NewService))
	must(c.Provide(newSpinGate))
	must(c.Provide(business.NewService))
	must(c.Provide(ticket.NewService))
	must(c.Provide(voucher.NewService))
	must(c.Provide(newNotificationService))
	must(c.Provide(billing.NewService))
	must(c.Provide(stats.NewService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
