package main

import (
	"expvar"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/hibiken/asynq"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/arifa/core"
	commercesvc "github.com/trezcool/arifa/services/commerce"
	emailsvc "github.com/trezcool/arifa/services/email"
	logsvc "github.com/trezcool/arifa/services/logger"
	"github.com/trezcool/arifa/storage/database"
	sqlxrepos "github.com/trezcool/arifa/storage/database/sqlx"
	"github.com/trezcool/arifa/tasks"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "WORKER : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up DB
	db, replica, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error("Failed to close DB", err)
		}
		if replica != nil {
			_ = replica.Close()
		}
	}()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	upsell := commercesvc.NewUpsellChecker(conf)
	repo := sqlxrepos.NewScheduleRepository(db, replica)
	updates := sqlxrepos.NewCourseUpdateRepository(db, replica)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Worker initializing : version %q", conf.Build))
	defer logger.Info("Worker stopped")

	core.ParseEmailTemplates(conf, logger)

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start Worker

	redisOpt := asynq.RedisClientOpt{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	}

	client := asynq.NewClient(redisOpt)
	defer func() { _ = client.Close() }()

	handlers := tasks.NewHandlers(repo, updates, upsell, mailSvc, client, logger, conf.Schedules.NumBins)
	mux := asynq.NewServeMux()
	handlers.Register(mux)

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 10,
		Queues: map[string]int{
			"default": 1,
		},
	})

	// Run blocks and handles TERM/INT itself
	if err = srv.Run(mux); err != nil {
		logger.Fatal(fmt.Sprintf("worker error: %v", err), err)
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, *sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, nil, err
	}

	if err = database.Migrate(db.DB); err != nil {
		return nil, nil, err
	}

	replica, err := database.OpenReplica(conf)
	if err != nil {
		return nil, nil, err
	}
	return db, replica, nil
}
