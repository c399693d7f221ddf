package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/trezcool/arifa/core"
)

// ResolverParams is the immutable parameter set of one bin-resolution run.
// Build via NewResolverParams; the zero value is not usable.
type ResolverParams struct {
	Site       Site
	TargetTime time.Time `validate:"required"`
	// DayOffset is the signed number of days between "now" and the target
	// day this run represents; negative means the date is in the past.
	DayOffset int
	BinNum    int `validate:"min=0"`
	NumBins   int `validate:"required,min=1"`
	OrgList   []string
	// ExcludeOrgs flips OrgList from an allow-list to a deny-list.
	ExcludeOrgs bool
	// OverrideRecipientEmail redirects every send to one address without
	// altering resolution. Test/debug hook.
	OverrideRecipientEmail string `validate:"omitempty,email"`
}

func NewResolverParams(site Site, target time.Time, dayOffset, binNum, numBins int, orgList []string, excludeOrgs bool, overrideEmail string) (ResolverParams, error) {
	p := ResolverParams{
		Site:                   site,
		TargetTime:             target,
		DayOffset:              dayOffset,
		BinNum:                 binNum,
		NumBins:                numBins,
		OrgList:                orgList,
		ExcludeOrgs:            excludeOrgs,
		OverrideRecipientEmail: overrideEmail,
	}
	if err := validate.Struct(p); err != nil {
		return ResolverParams{}, core.NewValidationError(err)
	}
	// validator's `required` does not catch zero structs
	if p.Site.ID == 0 {
		return ResolverParams{}, core.NewValidationError(
			errors.New("site is required"),
			core.FieldError{Field: "Site", Error: "must be a persisted site"},
		)
	}
	if p.BinNum >= p.NumBins {
		return ResolverParams{}, core.NewValidationError(
			errors.New("bin_num out of range"),
			core.FieldError{Field: "BinNum", Error: "must be < NumBins"},
		)
	}
	return p, nil
}

// CurrentTime reconstructs "now" from the target day and offset, so a bin
// task replayed later still resolves against the run it belongs to.
func (p ResolverParams) CurrentTime() time.Time {
	return p.TargetTime.AddDate(0, 0, -p.DayOffset)
}

func (p ResolverParams) recipient(u User) Recipient {
	email := u.Email
	if p.OverrideRecipientEmail != "" {
		email = p.OverrideRecipientEmail
	}
	return Recipient{Username: u.Username, Email: email}
}

type binnedResolver struct {
	repo   Repository
	logger core.Logger
	params ResolverParams
}

func (r binnedResolver) querySchedules(ctx context.Context, field DateField, orderBy OrderBy) ([]Schedule, error) {
	qp, err := NewQueryParams(
		field,
		r.params.CurrentTime(),
		r.params.TargetTime,
		r.params.BinNum,
		r.params.NumBins,
		r.params.OrgList,
		r.params.ExcludeOrgs,
		orderBy,
	)
	if err != nil {
		return nil, err
	}
	return r.repo.QuerySchedules(ctx, qp)
}

// groupByUser walks schedules pre-sorted by user id and calls fn once per
// user with that user's consecutive run of schedules. It never re-sorts:
// feeding it an unsorted sequence splits a user's courses across messages,
// which is why it only accepts ByUser.
func groupByUser(schedules ByUser, fn func(user User, group []Schedule) error) error {
	start := 0
	for i := 1; i <= len(schedules); i++ {
		if i == len(schedules) || schedules[i].Enrollment.User.ID != schedules[start].Enrollment.User.ID {
			if err := fn(schedules[start].Enrollment.User, schedules[start:i]); err != nil {
				return err
			}
			start = i
		}
	}
	return nil
}

// addUpsellContext sets the upsell fields on a template context, computed
// fresh from one schedule's enrollment.
func addUpsellContext(checker UpsellChecker, user User, sched Schedule, tctx map[string]interface{}) {
	enrollment := sched.Enrollment

	var link string
	if enrollment.DynamicUpgradeDeadline.Valid && checker.UpgradeLinkIsValid(enrollment) {
		link = checker.UpgradeLink(user, enrollment.Course)
	}

	if link != "" {
		tctx["upsell_link"] = link
		tctx["user_schedule_upgrade_deadline_time"] = formatDate(
			enrollment.DynamicUpgradeDeadline.Time,
			enrollment.Course.Language,
		)
	}
	tctx["show_upsell"] = link != ""
}

// StartResolver produces one recurring-nudge message per user whose schedule
// started DayOffset days from now, aggregating all of the user's matching
// courses.
type StartResolver struct {
	binnedResolver
	upsell UpsellChecker
}

func NewStartResolver(repo Repository, upsell UpsellChecker, logger core.Logger, params ResolverParams) *StartResolver {
	return &StartResolver{
		binnedResolver: binnedResolver{repo: repo, logger: logger, params: params},
		upsell:         upsell,
	}
}

// Resolve streams one message per matched user to emit. Single pass; emit
// errors abort the run with whatever was already emitted left as-is.
func (r *StartResolver) Resolve(ctx context.Context, emit func(Message) error) error {
	schedules, err := r.querySchedules(ctx, DateFieldStart, OrderByUser)
	if err != nil {
		return err
	}
	r.logger.Debug(fmt.Sprintf("Recurring Nudge: bin %d of %d matched %d schedules", r.params.BinNum, r.params.NumBins, len(schedules)))

	return groupByUser(ByUser(schedules), func(user User, group []Schedule) error {
		courseIDs := make([]interface{}, 0, len(group))
		for _, s := range group {
			courseIDs = append(courseIDs, s.Enrollment.Course.ID)
		}

		first := group[0]
		tctx := baseTemplateContext(r.params.Site)
		tctx["student_name"] = user.Name
		tctx["course_name"] = first.Enrollment.Course.DisplayName
		tctx["course_url"] = courseURL(r.params.Site, first.Enrollment.Course.ID)
		// course_ids drives the bulk-email opt-out policy downstream
		tctx["course_ids"] = courseIDs

		addUpsellContext(r.upsell, user, first, tctx)

		msg := NewMessage(
			MessageTypeRecurringNudge,
			NudgeName(r.params.DayOffset),
			r.params.recipient(user),
			first.Enrollment.Course.Language,
			tctx,
		)
		return emit(msg)
	})
}

// UpgradeReminderResolver produces one message per schedule whose verified
// upgrade deadline lands on the target day.
type UpgradeReminderResolver struct {
	binnedResolver
	upsell UpsellChecker
}

func NewUpgradeReminderResolver(repo Repository, upsell UpsellChecker, logger core.Logger, params ResolverParams) *UpgradeReminderResolver {
	return &UpgradeReminderResolver{
		binnedResolver: binnedResolver{repo: repo, logger: logger, params: params},
		upsell:         upsell,
	}
}

func (r *UpgradeReminderResolver) Resolve(ctx context.Context, emit func(Message) error) error {
	schedules, err := r.querySchedules(ctx, DateFieldUpgradeDeadline, OrderByUser)
	if err != nil {
		return err
	}
	r.logger.Debug(fmt.Sprintf("Upgrade Reminder: bin %d of %d matched %d schedules", r.params.BinNum, r.params.NumBins, len(schedules)))

	// TODO: group by user like the recurring nudge
	for _, sched := range schedules {
		user := sched.Enrollment.User
		course := sched.Enrollment.Course

		tctx := baseTemplateContext(r.params.Site)
		tctx["student_name"] = user.Name
		tctx["user_personal_address"] = user.PersonalAddress()
		tctx["course_name"] = course.DisplayName
		tctx["course_url"] = courseURL(r.params.Site, course.ID)
		tctx["course_ids"] = []interface{}{course.ID}
		tctx["cert_image"] = absoluteURL(r.params.Site, "/static/course_experience/images/verified-cert.png")

		addUpsellContext(r.upsell, user, sched, tctx)

		msg := NewMessage(
			MessageTypeUpgradeReminder,
			string(MessageTypeUpgradeReminder),
			r.params.recipient(user),
			course.Language,
			tctx,
		)
		if err = emit(msg); err != nil {
			return err
		}
	}
	return nil
}

// CourseUpdateResolver produces one message per schedule for courses that
// have authored an update for the current week. Ordered by course so the
// week-summary lookups hit contiguous runs of the same course.
type CourseUpdateResolver struct {
	binnedResolver
	updates CourseUpdateRepository
}

func NewCourseUpdateResolver(repo Repository, updates CourseUpdateRepository, logger core.Logger, params ResolverParams) *CourseUpdateResolver {
	return &CourseUpdateResolver{
		binnedResolver: binnedResolver{repo: repo, logger: logger, params: params},
		updates:        updates,
	}
}

func (r *CourseUpdateResolver) Resolve(ctx context.Context, emit func(Message) error) error {
	dayOffset := r.params.DayOffset
	if dayOffset < 0 {
		dayOffset = -dayOffset
	}
	weekNum := dayOffset / 7

	schedules, err := r.querySchedules(ctx, DateFieldStart, OrderByCourse)
	if err != nil {
		return err
	}
	r.logger.Debug(fmt.Sprintf("Course Update: bin %d of %d matched %d schedules", r.params.BinNum, r.params.NumBins, len(schedules)))

	for _, sched := range schedules {
		course := sched.Enrollment.Course

		weekSummary, err := r.updates.WeekSummary(ctx, course.ID, weekNum)
		if err != nil {
			if errors.Is(err, ErrCourseUpdateNotFound) {
				// courses without an update this week simply get no message
				continue
			}
			return err
		}

		user := sched.Enrollment.User
		tctx := baseTemplateContext(r.params.Site)
		tctx["student_name"] = user.Name
		tctx["user_personal_address"] = user.PersonalAddress()
		tctx["course_name"] = course.DisplayName
		tctx["course_url"] = courseURL(r.params.Site, course.ID)
		// json.Number so the value survives the queue's JSON round trip as-is
		tctx["week_num"] = json.Number(strconv.Itoa(weekNum))
		tctx["week_summary"] = weekSummary
		tctx["course_ids"] = []interface{}{course.ID}

		msg := NewMessage(
			MessageTypeCourseUpdate,
			string(MessageTypeCourseUpdate),
			r.params.recipient(user),
			course.Language,
			tctx,
		)
		if err = emit(msg); err != nil {
			return err
		}
	}
	return nil
}
