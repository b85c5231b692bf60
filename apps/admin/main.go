package main

import (
	"database/sql"
	"log"
	"os"

	"github.com/pkg/errors"

	"github.com/trezcool/campusdeals/core"
	"github.com/trezcool/campusdeals/core/university"
	logsvc "github.com/trezcool/campusdeals/services/logger"
	"github.com/trezcool/campusdeals/storage/database"
	"github.com/trezcool/campusdeals/storage/database/gormrepos"
)

func main() {
	conf := core.NewConfig()
	zl, err := logsvc.NewZap(conf)
	if err != nil {
		log.Fatalf("building zap logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	cli := &commandLine{
		conf:   conf,
		logger: logsvc.NewZapLogger(zl.Named("admin")),
		out:    os.Stdout,
	}
	cli.connect = func() error {
		db, err := database.Open(conf)
		if err != nil {
			return errors.Wrap(err, "opening database")
		}
		gdb, err := database.OpenGorm(db, conf)
		if err != nil {
			_ = db.Close()
			return errors.Wrap(err, "opening gorm session")
		}
		cli.db = db
		cli.usrRepo = gormrepos.NewUserRepository(gdb)
		cli.uniSvc = university.NewService(gormrepos.NewUniversityRepository(gdb))
		return nil
	}

	code := 0
	if err := cli.rootCmd().Execute(); err != nil {
		code = 1
	}
	if cli.db != nil {
		closeDB(cli.db)
	}
	os.Exit(code)
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		log.Printf("closing database: %v", err)
	}
}
