package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/pkg/errors"

	"github.com/trezcool/arifa/core"
	"github.com/trezcool/arifa/core/schedule"
)

// Enqueuer fans one notification run out into per-bin resolution tasks.
type Enqueuer struct {
	client  TaskClient
	repo    schedule.Repository
	logger  core.Logger
	numBins int
}

func NewEnqueuer(client TaskClient, repo schedule.Repository, logger core.Logger, numBins int) *Enqueuer {
	if numBins <= 0 {
		numBins = schedule.DefaultNumBins
	}
	return &Enqueuer{
		client:  client,
		repo:    repo,
		logger:  logger,
		numBins: numBins,
	}
}

// EnqueueBins enqueues one bin task per bin in [0, numBins) for the given
// site and target day, unless the site's enqueue toggle for this message
// type is off. Bins partition the user-id space disjointly, so the tasks are
// independent and may run concurrently.
func (e *Enqueuer) EnqueueBins(
	ctx context.Context,
	mt schedule.MessageType,
	site schedule.Site,
	targetDay time.Time,
	dayOffset int,
	orgList []string,
	excludeOrgs bool,
	overrideEmail string,
) error {
	cfg, err := e.repo.GetConfig(ctx, site.ID)
	if err != nil {
		return errors.Wrapf(err, "loading schedule config for site %d", site.ID)
	}
	if !cfg.Enqueue(mt) {
		e.logger.Debug(fmt.Sprintf("%s: enqueue disabled for site %s", mt, site.Domain))
		return nil
	}

	targetDayStr := schedule.BeginningOfDay(targetDay).Format(time.RFC3339)
	for bin := 0; bin < e.numBins; bin++ {
		payload, err := json.Marshal(BinPayload{
			SiteID:                 site.ID,
			TargetDay:              targetDayStr,
			DayOffset:              dayOffset,
			BinNum:                 bin,
			OrgList:                orgList,
			ExcludeOrgs:            excludeOrgs,
			OverrideRecipientEmail: overrideEmail,
		})
		if err != nil {
			return errors.Wrap(err, "marshaling bin payload")
		}
		if _, err = e.client.EnqueueContext(ctx, asynq.NewTask(binTaskType(mt), payload)); err != nil {
			return errors.Wrapf(err, "enqueueing %s bin %d", mt, bin)
		}
	}
	e.logger.Debug(fmt.Sprintf("%s: enqueued %d bins for site %s, target day %s", mt, e.numBins, site.Domain, targetDayStr))
	return nil
}

// EnqueueAllSites runs EnqueueBins for every known site.
func (e *Enqueuer) EnqueueAllSites(
	ctx context.Context,
	mt schedule.MessageType,
	targetDay time.Time,
	dayOffset int,
	orgList []string,
	excludeOrgs bool,
	overrideEmail string,
) error {
	sites, err := e.repo.ListSites(ctx)
	if err != nil {
		return errors.Wrap(err, "listing sites")
	}
	for _, site := range sites {
		if err = e.EnqueueBins(ctx, mt, site, targetDay, dayOffset, orgList, excludeOrgs, overrideEmail); err != nil {
			return err
		}
	}
	return nil
}
