package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/mail"
	"time"

	"github.com/hibiken/asynq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/arifa/core"
	"github.com/trezcool/arifa/core/schedule"
)

var nowFunc = time.Now // mockable

// Handlers executes the queued schedule-notification work.
type Handlers struct {
	repo    schedule.Repository
	updates schedule.CourseUpdateRepository
	upsell  schedule.UpsellChecker
	mailSvc core.EmailService
	client  TaskClient
	logger  core.Logger
	numBins int
}

func NewHandlers(
	repo schedule.Repository,
	updates schedule.CourseUpdateRepository,
	upsell schedule.UpsellChecker,
	mailSvc core.EmailService,
	client TaskClient,
	logger core.Logger,
	numBins int,
) *Handlers {
	if numBins <= 0 {
		numBins = schedule.DefaultNumBins
	}
	return &Handlers{
		repo:    repo,
		updates: updates,
		upsell:  upsell,
		mailSvc: mailSvc,
		client:  client,
		logger:  logger,
		numBins: numBins,
	}
}

// ----------------------------------------------------------------------------
// daily fan-out

func (h *Handlers) handleEnqueue(ctx context.Context, t *asynq.Task, mt schedule.MessageType) error {
	var p EnqueuePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return errors.Wrap(err, "unmarshaling enqueue payload")
	}

	// the target day is |DayOffset| days in the past (negative offset) or
	// future (positive offset) relative to today
	targetDay := schedule.BeginningOfDay(nowFunc().UTC()).AddDate(0, 0, p.DayOffset)
	enq := NewEnqueuer(h.client, h.repo, h.logger, h.numBins)
	return enq.EnqueueAllSites(ctx, mt, targetDay, p.DayOffset, p.OrgList, p.ExcludeOrgs, p.OverrideRecipientEmail)
}

func (h *Handlers) HandleEnqueueRecurringNudge(ctx context.Context, t *asynq.Task) error {
	return h.handleEnqueue(ctx, t, schedule.MessageTypeRecurringNudge)
}

func (h *Handlers) HandleEnqueueUpgradeReminder(ctx context.Context, t *asynq.Task) error {
	return h.handleEnqueue(ctx, t, schedule.MessageTypeUpgradeReminder)
}

func (h *Handlers) HandleEnqueueCourseUpdate(ctx context.Context, t *asynq.Task) error {
	return h.handleEnqueue(ctx, t, schedule.MessageTypeCourseUpdate)
}

// ----------------------------------------------------------------------------
// per-bin resolution

type resolver interface {
	Resolve(ctx context.Context, emit func(schedule.Message) error) error
}

func (h *Handlers) binParams(ctx context.Context, t *asynq.Task) (schedule.ResolverParams, error) {
	var p BinPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return schedule.ResolverParams{}, errors.Wrap(err, "unmarshaling bin payload")
	}
	site, err := h.repo.GetSite(ctx, p.SiteID)
	if err != nil {
		return schedule.ResolverParams{}, errors.Wrapf(err, "loading site %d", p.SiteID)
	}
	targetDay, err := time.Parse(time.RFC3339, p.TargetDay)
	if err != nil {
		return schedule.ResolverParams{}, errors.Wrap(err, "parsing target day")
	}
	return schedule.NewResolverParams(
		site,
		targetDay,
		p.DayOffset,
		p.BinNum,
		h.numBins,
		p.OrgList,
		p.ExcludeOrgs,
		p.OverrideRecipientEmail,
	)
}

// resolveBin runs a resolver and enqueues one send task per emitted message.
// Sends enqueued before a mid-run failure stay enqueued.
func (h *Handlers) resolveBin(ctx context.Context, r resolver, mt schedule.MessageType, siteID int) error {
	return r.Resolve(ctx, func(msg schedule.Message) error {
		serialized, err := msg.Serialize()
		if err != nil {
			return err
		}
		payload, err := json.Marshal(SendPayload{SiteID: siteID, Message: serialized})
		if err != nil {
			return errors.Wrap(err, "marshaling send payload")
		}
		_, err = h.client.EnqueueContext(ctx, asynq.NewTask(sendTaskType(mt), payload), asynq.MaxRetry(0))
		return errors.Wrapf(err, "enqueueing %s send", mt)
	})
}

func (h *Handlers) HandleRecurringNudgeBin(ctx context.Context, t *asynq.Task) error {
	params, err := h.binParams(ctx, t)
	if err != nil {
		return err
	}
	r := schedule.NewStartResolver(h.repo, h.upsell, h.logger, params)
	return h.resolveBin(ctx, r, schedule.MessageTypeRecurringNudge, params.Site.ID)
}

func (h *Handlers) HandleUpgradeReminderBin(ctx context.Context, t *asynq.Task) error {
	params, err := h.binParams(ctx, t)
	if err != nil {
		return err
	}
	r := schedule.NewUpgradeReminderResolver(h.repo, h.upsell, h.logger, params)
	return h.resolveBin(ctx, r, schedule.MessageTypeUpgradeReminder, params.Site.ID)
}

func (h *Handlers) HandleCourseUpdateBin(ctx context.Context, t *asynq.Task) error {
	params, err := h.binParams(ctx, t)
	if err != nil {
		return err
	}
	r := schedule.NewCourseUpdateResolver(h.repo, h.updates, h.logger, params)
	return h.resolveBin(ctx, r, schedule.MessageTypeCourseUpdate, params.Site.ID)
}

// ----------------------------------------------------------------------------
// per-recipient send

var subjects = map[schedule.MessageType]string{
	schedule.MessageTypeRecurringNudge:  "Keep learning",
	schedule.MessageTypeUpgradeReminder: "Your upgrade deadline is approaching",
	schedule.MessageTypeCourseUpdate:    "This week in your course",
}

// handleSend re-checks the site's deliver toggle right before sending;
// a disabled toggle drops the message, it is not an error.
func (h *Handlers) handleSend(ctx context.Context, t *asynq.Task, mt schedule.MessageType) error {
	var p SendPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return errors.Wrap(err, "unmarshaling send payload")
	}

	site, err := h.repo.GetSite(ctx, p.SiteID)
	if err != nil {
		return errors.Wrapf(err, "loading site %d", p.SiteID)
	}
	cfg, err := h.repo.GetConfig(ctx, site.ID)
	if err != nil {
		return errors.Wrapf(err, "loading schedule config for site %d", site.ID)
	}
	if !cfg.Deliver(mt) {
		h.logger.Debug(fmt.Sprintf("%s: message delivery disabled for site %s", mt, site.Domain))
		return nil
	}

	msg, err := schedule.DeserializeMessage(p.Message)
	if err != nil {
		return err
	}
	h.logger.Debug(fmt.Sprintf("%s: sending message %s to %s", mt, msg.ID, msg.Recipient.Username))

	// fire and forget; delivery retries are the email service's concern
	h.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: msg.Recipient.Username, Address: msg.Recipient.Email}},
		Subject:      subjects[mt],
		TemplateName: msg.Name,
		TemplateData: msg.Context,
	})
	return nil
}

func (h *Handlers) HandleRecurringNudgeSend(ctx context.Context, t *asynq.Task) error {
	return h.handleSend(ctx, t, schedule.MessageTypeRecurringNudge)
}

func (h *Handlers) HandleUpgradeReminderSend(ctx context.Context, t *asynq.Task) error {
	return h.handleSend(ctx, t, schedule.MessageTypeUpgradeReminder)
}

func (h *Handlers) HandleCourseUpdateSend(ctx context.Context, t *asynq.Task) error {
	return h.handleSend(ctx, t, schedule.MessageTypeCourseUpdate)
}

// ----------------------------------------------------------------------------
// course date-change maintenance

// HandleUpdateCourseSchedules bulk-rewrites start/upgrade_deadline on every
// schedule under a course. Known transient errors are retried by the queue
// with backoff; anything else fails permanently.
func (h *Handlers) HandleUpdateCourseSchedules(ctx context.Context, t *asynq.Task) error {
	var p UpdateCoursePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return errors.Wrap(err, "unmarshaling update-course payload")
	}

	newStart, err := time.Parse(time.RFC3339, p.NewStart)
	if err != nil {
		return fmt.Errorf("parsing new start date: %v: %w", err, asynq.SkipRetry)
	}
	var newDeadline null.Time
	if p.NewUpgradeDeadline != nil {
		dl, err := time.Parse(time.RFC3339, *p.NewUpgradeDeadline)
		if err != nil {
			return fmt.Errorf("parsing new upgrade deadline: %v: %w", err, asynq.SkipRetry)
		}
		newDeadline = null.TimeFrom(dl)
	}

	if err = h.repo.UpdateCourseSchedules(ctx, p.CourseID, newStart, newDeadline); err != nil {
		taskID, _ := asynq.GetTaskID(ctx)
		if isKnownTransient(err) {
			h.logger.Warn(fmt.Sprintf("update_course_schedules: transient failure, will retry: task id: %s, payload=%s: %v", taskID, t.Payload(), err))
			return err
		}
		h.logger.Error(fmt.Sprintf("update_course_schedules: unexpected failure: task id: %s, payload=%s: %v", taskID, t.Payload(), err), err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return nil
}
