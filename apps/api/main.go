package main

import (
	"context"
	"database/sql"
	"expvar"
	"fmt"
	"net/http"
	_ "net/http/pprof" // register the /debug/pprof handlers
	"os"

	"github.com/go-playground/validator/v10"

	echoapi "github.com/trezcool/tazama/apps/api/echo"
	"github.com/trezcool/tazama/core"
	"github.com/trezcool/tazama/core/exam"
	"github.com/trezcool/tazama/core/series"
	"github.com/trezcool/tazama/core/user"
	appfs "github.com/trezcool/tazama/fs"
	emailsvc "github.com/trezcool/tazama/services/email"
	logsvc "github.com/trezcool/tazama/services/logger"
	"github.com/trezcool/tazama/storage/database"
	inmemdb "github.com/trezcool/tazama/storage/database/inmem"
	boiledrepos "github.com/trezcool/tazama/storage/database/sqlboiler"
	sqlxrepos "github.com/trezcool/tazama/storage/database/sqlx"
)

type repositories struct {
	tx     core.Transactor
	user   user.Repository
	series series.Repository
	exam   exam.Repository
}

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(os.Stdout, conf)
	logger.Enable(!conf.Debug)

	// set up DB
	ctx := context.Background()
	repos, db, err := setUpDB(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	if db != nil {
		defer func() {
			if err = db.Close(); err != nil {
				logger.Error(fmt.Sprintf("closing database: %v", err), err)
			}
		}()
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger, os.Stdout)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	usrSvc := user.NewService(repos.user, mailSvc, conf)
	examSvc := exam.NewService(repos.tx, repos.exam)
	seriesSvc := series.NewService(repos.tx, repos.series, examSvc, mailSvc)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : %s", conf))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	core.ParseEmailTemplates(appfs.FS, logger, conf.TestMode)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugAddress, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:       conf,
		Logger:     logger,
		UserSvc:    usrSvc,
		SeriesSvc:  seriesSvc,
		ExamSvc:    examSvc,
		Validate:   validate,
		Translator: translator,
	})

	go server.Start()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(ctx, conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

// setUpDB returns the repositories of the configured engine; db is nil for the in-memory engine.
func setUpDB(ctx context.Context, conf *core.Config) (repositories, *sql.DB, error) {
	if conf.Database.InMemory() {
		mem := inmemdb.Open()
		return repositories{
			tx:     core.NoTxTransactor,
			user:   inmemdb.NewUserRepository(mem),
			series: inmemdb.NewSeriesRepository(mem),
			exam:   inmemdb.NewExamRepository(mem),
		}, nil, nil
	}

	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return repositories{}, nil, err
	}
	db, err := database.Open(ctx, conf)
	if err != nil {
		return repositories{}, nil, err
	}
	if err = database.Migrate(db, "up"); err != nil {
		_ = db.Close()
		return repositories{}, nil, err
	}

	return repositories{
		tx:     core.NewTransactor(db),
		user:   boiledrepos.NewUserRepository(db),
		series: boiledrepos.NewSeriesRepository(db),
		exam:   sqlxrepos.NewExamRepository(db),
	}, db, nil
}
