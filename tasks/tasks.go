// Package tasks fans schedule-notification work out over the task queue:
// one fan-out task per message type and day offset, one resolution task per
// bin, one send task per recipient message, plus the course date-change
// maintenance task.
package tasks

import (
	"context"

	"github.com/hibiken/asynq"

	"github.com/trezcool/arifa/core/schedule"
)

const (
	TypeEnqueueRecurringNudge  = "schedules:enqueue_recurring_nudge"
	TypeEnqueueUpgradeReminder = "schedules:enqueue_upgrade_reminder"
	TypeEnqueueCourseUpdate    = "schedules:enqueue_course_update"

	TypeRecurringNudgeBin  = "schedules:recurring_nudge_bin"
	TypeUpgradeReminderBin = "schedules:upgrade_reminder_bin"
	TypeCourseUpdateBin    = "schedules:course_update_bin"

	TypeRecurringNudgeSend  = "schedules:recurring_nudge_send"
	TypeUpgradeReminderSend = "schedules:upgrade_reminder_send"
	TypeCourseUpdateSend    = "schedules:course_update_send"

	TypeUpdateCourseSchedules = "schedules:update_course"
)

type (
	// EnqueuePayload triggers one full bin sweep for every site.
	EnqueuePayload struct {
		DayOffset              int      `json:"day_offset"`
		OrgList                []string `json:"org_list,omitempty"`
		ExcludeOrgs            bool     `json:"exclude_orgs,omitempty"`
		OverrideRecipientEmail string   `json:"override_recipient_email,omitempty"`
	}

	// BinPayload resolves one bin of one site for one target day.
	BinPayload struct {
		SiteID                 int      `json:"site_id"`
		TargetDay              string   `json:"target_day"` // RFC3339
		DayOffset              int      `json:"day_offset"`
		BinNum                 int      `json:"bin_num"`
		OrgList                []string `json:"org_list,omitempty"`
		ExcludeOrgs            bool     `json:"exclude_orgs,omitempty"`
		OverrideRecipientEmail string   `json:"override_recipient_email,omitempty"`
	}

	// SendPayload delivers one serialized message to one recipient.
	SendPayload struct {
		SiteID  int    `json:"site_id"`
		Message string `json:"message"`
	}

	// UpdateCoursePayload bulk-rewrites the schedules under a course after
	// its dates changed.
	UpdateCoursePayload struct {
		CourseID           string  `json:"course_id"`
		NewStart           string  `json:"new_start"` // RFC3339
		NewUpgradeDeadline *string `json:"new_upgrade_deadline,omitempty"`
	}
)

// TaskClient enqueues tasks. *asynq.Client satisfies it; tests substitute a
// recording fake.
type TaskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

func binTaskType(mt schedule.MessageType) string {
	switch mt {
	case schedule.MessageTypeRecurringNudge:
		return TypeRecurringNudgeBin
	case schedule.MessageTypeUpgradeReminder:
		return TypeUpgradeReminderBin
	default:
		return TypeCourseUpdateBin
	}
}

func sendTaskType(mt schedule.MessageType) string {
	switch mt {
	case schedule.MessageTypeRecurringNudge:
		return TypeRecurringNudgeSend
	case schedule.MessageTypeUpgradeReminder:
		return TypeUpgradeReminderSend
	default:
		return TypeCourseUpdateSend
	}
}

// Register wires every handler onto the worker mux.
func (h *Handlers) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeEnqueueRecurringNudge, h.HandleEnqueueRecurringNudge)
	mux.HandleFunc(TypeEnqueueUpgradeReminder, h.HandleEnqueueUpgradeReminder)
	mux.HandleFunc(TypeEnqueueCourseUpdate, h.HandleEnqueueCourseUpdate)
	mux.HandleFunc(TypeRecurringNudgeBin, h.HandleRecurringNudgeBin)
	mux.HandleFunc(TypeUpgradeReminderBin, h.HandleUpgradeReminderBin)
	mux.HandleFunc(TypeCourseUpdateBin, h.HandleCourseUpdateBin)
	mux.HandleFunc(TypeRecurringNudgeSend, h.HandleRecurringNudgeSend)
	mux.HandleFunc(TypeUpgradeReminderSend, h.HandleUpgradeReminderSend)
	mux.HandleFunc(TypeCourseUpdateSend, h.HandleCourseUpdateSend)
	mux.HandleFunc(TypeUpdateCourseSchedules, h.HandleUpdateCourseSchedules)
}
