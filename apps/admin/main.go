package main

import (
	"context"
	"fmt"
	"os"

	"github.com/trezcool/tazama/core"
	"github.com/trezcool/tazama/core/exam"
	"github.com/trezcool/tazama/core/series"
	logsvc "github.com/trezcool/tazama/services/logger"
	"github.com/trezcool/tazama/storage/database"
	boiledrepos "github.com/trezcool/tazama/storage/database/sqlboiler"
	sqlxrepos "github.com/trezcool/tazama/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(os.Stderr, conf)
	logger.Enable(!conf.Debug)

	// set up DB
	ctx := context.Background()
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	tx := core.NewTransactor(db)
	examSvc := exam.NewService(tx, sqlxrepos.NewExamRepository(db))

	// start CLI
	cli := commandLine{
		db:        db,
		usrRepo:   boiledrepos.NewUserRepository(db),
		seriesSvc: series.NewService(tx, boiledrepos.NewSeriesRepository(db), examSvc, nil /* no mails */),
		out:       os.Stdout,
	}
	err = cli.run(ctx, os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
