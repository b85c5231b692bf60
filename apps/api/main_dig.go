package main

import (
	"context"
	"database/sql"
	"expvar"
	"fmt"
	"log"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"go.uber.org/dig"
	"go.uber.org/zap"

	dig_container "github.com/trezcool/campusdeals/apps/api/di/dig"
	echoapi "github.com/trezcool/campusdeals/apps/api/echo"
	"github.com/trezcool/campusdeals/core"
	"github.com/trezcool/campusdeals/core/business"
	"github.com/trezcool/campusdeals/core/user"
)

type app struct {
	dig.In

	Conf       *core.Config
	Zap        *zap.Logger
	Logger     core.Logger
	DBLogger   core.Logger `name:"dbLogger"`
	DB         *sql.DB
	Validate   *validator.Validate
	Translator ut.Translator
	Server     *echoapi.Server
}

func startWithDig() {
	c := dig_container.New()
	must(c.Invoke(run))
}

func run(a app) {
	a.Logger.Info(fmt.Sprintf("%s initializing : version %q, env %s", a.Conf.AppName, a.Conf.Build, a.Conf.Env))
	defer func() { _ = a.Zap.Sync() }()
	defer func() {
		if err := a.DB.Close(); err != nil {
			a.DBLogger.Fatal("Failed to close", err)
		}
	}()
	defer a.Logger.Info("Application stopped")

	// validators, templates & password list are process-wide
	core.InitValidators(a.Validate, a.Translator)
	user.InitValidators(a.Validate, a.Translator)
	business.InitValidators(a.Validate, a.Translator)
	core.ParseEmailTemplates(a.Logger)
	user.LoadCommonPasswords(a.Logger)

	startDebugServer(a)
	go a.Server.Start()
	waitForShutdown(a)
}

// startDebugServer exposes /debug/pprof (net/http/pprof) and /debug/vars (expvar) on the debug address.
func startDebugServer(a app) {
	expvar.NewString("build").Set(a.Conf.Build)
	expvar.NewString("env").Set(a.Conf.Env)

	go func() {
		if err := http.ListenAndServe(a.Conf.Server.DebugAddress, http.DefaultServeMux); err != nil {
			a.Logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()
}

func waitForShutdown(a app) {
	select {
	case err := <-a.Server.Errors():
		a.Logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-a.Server.ShutdownSignal():
		a.Logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), a.Conf.Server.ShutdownTimeout)
		defer cancel()

		if err := a.Server.Shutdown(ctx); err != nil {
			a.Logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
			if err = a.Server.Close(); err != nil {
				a.Logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
