package main

import (
	"fmt"
	"log"
	"os"

	"github.com/hibiken/asynq"

	"github.com/trezcool/arifa/core"
	logsvc "github.com/trezcool/arifa/services/logger"
	"github.com/trezcool/arifa/storage/database"
	sqlxrepos "github.com/trezcool/arifa/storage/database/sqlx"
)

func main() {
	defer os.Exit(0)

	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(false) // CLI runs stay local

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	defer func() { _ = db.Close() }()
	if err = db.Ping(); err != nil {
		logger.Fatal(fmt.Sprintf("pinging database: %v", err), err)
	}

	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	defer func() { _ = client.Close() }()

	// start CLI
	cli := commandLine{
		db:      db.DB,
		repo:    sqlxrepos.NewScheduleRepository(db, nil),
		client:  client,
		logger:  logger,
		numBins: conf.Schedules.NumBins,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %s", err), err)
		}
		os.Exit(1)
	}
}
