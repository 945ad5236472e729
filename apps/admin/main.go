package main

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/guigasprogramador/oneeduca/apps/shared"
	"github.com/guigasprogramador/oneeduca/core"
	logsvc "github.com/guigasprogramador/oneeduca/services/logger"
	"github.com/guigasprogramador/oneeduca/storage/database"
)

func main() {
	os.Exit(run())
}

func run() int {
	conf := core.NewConfig()

	logger, err := logsvc.NewLogger(conf, "ADMIN")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	app, err := shared.NewApp(conf, logger, shared.Options{SkipMigrate: true})
	if err != nil {
		logger.Error("setting up application", err)
		return 1
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("closing application", err)
		}
	}()

	var db *sql.DB
	if app.DB != nil {
		db = app.DB.DB
		if err = database.SetDialect(app.DB.DriverName()); err != nil {
			logger.Error("setting migration dialect", err)
			return 1
		}
	}

	// start CLI
	cli := commandLine{
		db:      db,
		certSvc: app.CertificateSvc,
		usrSvc:  app.UserSvc,
		conf:    conf,
		out:     os.Stdout,
	}
	if err = cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("running command", err)
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		return 1
	}
	return 0
}
