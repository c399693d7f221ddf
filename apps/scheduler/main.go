package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"github.com/trezcool/arifa/core"
	logsvc "github.com/trezcool/arifa/services/logger"
	"github.com/trezcool/arifa/tasks"
)

// The scheduler registers the recurring fan-out entries: one per message
// type and day offset. The worker picks the enqueue tasks up and expands
// them into per-site, per-bin resolution jobs.
func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "SCHEDULER : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	logger.Info(fmt.Sprintf("Scheduler initializing : version %q", conf.Build))
	defer logger.Info("Scheduler stopped")

	loc := time.UTC
	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{
			Addr:     conf.Redis.Addr,
			Password: conf.Redis.Password,
			DB:       conf.Redis.DB,
		},
		&asynq.SchedulerOpts{Location: loc},
	)

	entries := []struct {
		cron     string
		taskType string
		offsets  []int
	}{
		{conf.Schedules.RecurringNudgeCron, tasks.TypeEnqueueRecurringNudge, conf.Schedules.RecurringNudgeDayOffsets},
		{conf.Schedules.UpgradeReminderCron, tasks.TypeEnqueueUpgradeReminder, conf.Schedules.UpgradeReminderDayOffsets},
		{conf.Schedules.CourseUpdateCron, tasks.TypeEnqueueCourseUpdate, conf.Schedules.CourseUpdateDayOffsets},
	}
	for _, entry := range entries {
		for _, offset := range entry.offsets {
			payload, err := json.Marshal(tasks.EnqueuePayload{DayOffset: offset})
			if err != nil {
				logger.Fatal(fmt.Sprintf("marshaling enqueue payload: %v", err), err)
			}
			entryID, err := scheduler.Register(entry.cron, asynq.NewTask(entry.taskType, payload))
			if err != nil {
				logger.Fatal(fmt.Sprintf("registering %s (offset %d): %v", entry.taskType, offset, err), err)
			}
			logger.Info(fmt.Sprintf("registered %s offset %d as entry %s (%s)", entry.taskType, offset, entryID, entry.cron))
		}
	}

	if err := scheduler.Run(); err != nil {
		logger.Fatal(fmt.Sprintf("scheduler error: %v", err), err)
	}
}
