// Package schedule resolves which learners should receive a scheduled
// notification (recurring nudge, upgrade reminder or course update) on a
// given day, and assembles the per-recipient message for each of them.
package schedule

import (
	"time"

	"github.com/volatiletech/null/v8"
)

type (
	// Site scopes notification runs and the absolute URLs embedded in messages.
	Site struct {
		ID      int
		Domain  string
		Name    string
		BaseURL string // scheme://host, no trailing slash
	}

	User struct {
		ID       int
		Username string
		Email    string
		Name     string // profile name; may be empty
	}

	Course struct {
		ID          string // opaque course key, e.g. "course-v1:orgA+DemoX+2020"
		Org         string
		DisplayName string
		Language    string
		End         null.Time
	}

	// Enrollment ties a User to a Course. Owned by the student subsystem;
	// read-only here.
	Enrollment struct {
		ID                     int
		User                   User
		Course                 Course
		IsActive               bool
		Mode                   string // "audit", "verified", ...
		DynamicUpgradeDeadline null.Time
	}

	// Schedule tracks the notification dates for one enrollment. At most one
	// per active enrollment.
	Schedule struct {
		ID              int
		Start           time.Time
		UpgradeDeadline null.Time
		Enrollment      Enrollment
	}

	// Config holds the per-site feature toggles. Enqueue flags are checked at
	// fan-out time, deliver flags fresh at send time; resolution itself is
	// never gated.
	Config struct {
		SiteID                 int
		EnqueueRecurringNudge  bool
		DeliverRecurringNudge  bool
		EnqueueUpgradeReminder bool
		DeliverUpgradeReminder bool
		EnqueueCourseUpdate    bool
		DeliverCourseUpdate    bool
	}
)

type MessageType string

const (
	MessageTypeRecurringNudge  MessageType = "recurring_nudge"
	MessageTypeUpgradeReminder MessageType = "upgrade_reminder"
	MessageTypeCourseUpdate    MessageType = "course_update"
)

func (c Config) Enqueue(mt MessageType) bool {
	switch mt {
	case MessageTypeRecurringNudge:
		return c.EnqueueRecurringNudge
	case MessageTypeUpgradeReminder:
		return c.EnqueueUpgradeReminder
	case MessageTypeCourseUpdate:
		return c.EnqueueCourseUpdate
	}
	return false
}

func (c Config) Deliver(mt MessageType) bool {
	switch mt {
	case MessageTypeRecurringNudge:
		return c.DeliverRecurringNudge
	case MessageTypeUpgradeReminder:
		return c.DeliverUpgradeReminder
	case MessageTypeCourseUpdate:
		return c.DeliverCourseUpdate
	}
	return false
}

// PersonalAddress is the name a message greets the learner by.
func (u User) PersonalAddress() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}
