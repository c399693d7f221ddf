package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/trezcool/arifa/core"
	"github.com/trezcool/arifa/core/schedule"
	"github.com/trezcool/arifa/tasks"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db      *sql.DB
	repo    schedule.Repository
	client  tasks.TaskClient
	logger  core.Logger
	numBins int
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate up|down|status|version [args] - run database migrations")
	fmt.Println("  enqueue -type TYPE -site ID -date YYYY-MM-DD -offset DAYS [-orgs ORG1,ORG2] [-exclude-orgs] [-override-email EMAIL] - enqueue one notification run")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	enqueueCmd := flag.NewFlagSet("enqueue", flag.ExitOnError)
	enqueueType := enqueueCmd.String("type", "", "Message type: recurring_nudge, upgrade_reminder or course_update.")
	enqueueSite := enqueueCmd.Int("site", 0, "Site id.")
	enqueueDate := enqueueCmd.String("date", "", "Target day, YYYY-MM-DD.")
	enqueueOffset := enqueueCmd.Int("offset", 0, "Signed day offset this run represents.")
	enqueueOrgs := enqueueCmd.String("orgs", "", "Comma-separated org list to include (or exclude with -exclude-orgs).")
	enqueueExcl := enqueueCmd.Bool("exclude-orgs", false, "Exclude the orgs in -orgs instead of restricting to them.")
	enqueueEmail := enqueueCmd.String("override-email", "", "Redirect all sends to this address.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "enqueue":
		if err := enqueueCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *enqueueType == "" || *enqueueSite == 0 || *enqueueDate == "" {
			enqueueCmd.Usage()
			return errHelp
		}

		mt := schedule.MessageType(*enqueueType)
		switch mt {
		case schedule.MessageTypeRecurringNudge, schedule.MessageTypeUpgradeReminder, schedule.MessageTypeCourseUpdate:
		default:
			return fmt.Errorf("unknown message type %q", *enqueueType)
		}

		targetDay, err := time.Parse("2006-01-02", *enqueueDate)
		if err != nil {
			return fmt.Errorf("invalid -date (want YYYY-MM-DD): %v", err)
		}

		var orgList []string
		if *enqueueOrgs != "" {
			orgList = strings.Split(*enqueueOrgs, ",")
		}
		return cli.enqueue(mt, *enqueueSite, targetDay.UTC(), *enqueueOffset, orgList, *enqueueExcl, *enqueueEmail)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) enqueue(
	mt schedule.MessageType,
	siteID int,
	targetDay time.Time,
	dayOffset int,
	orgList []string,
	excludeOrgs bool,
	overrideEmail string,
) error {
	ctx := context.Background()
	site, err := cli.repo.GetSite(ctx, siteID)
	if err != nil {
		return err
	}
	enq := tasks.NewEnqueuer(cli.client, cli.repo, cli.logger, cli.numBins)
	return enq.EnqueueBins(ctx, mt, site, targetDay, dayOffset, orgList, excludeOrgs, overrideEmail)
}
