package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/arifa/core"
)

var (
	// errors
	ErrSiteNotFound = errors.New("site not found")
	// ErrCourseUpdateNotFound signals a course has no update content for the
	// requested week. Expected-absence: callers skip, not fail.
	ErrCourseUpdateNotFound = errors.New("course has no update for this week")

	validate = validator.New()
)

// DateField selects which Schedule date the query window applies to.
type DateField string

const (
	DateFieldStart           DateField = "start"
	DateFieldUpgradeDeadline DateField = "upgrade_deadline"
)

// OrderBy selects the result ordering. OrderByUser is load-bearing for the
// nudge resolver's streaming group-by; OrderByCourse keeps rows of the same
// course contiguous so the week-summary lookup stays cache-friendly.
type OrderBy string

const (
	OrderByUser   OrderBy = "user"
	OrderByCourse OrderBy = "course"
)

// ByUser is a schedule sequence guaranteed to be ordered by enrollment user
// id. Only a query issued with OrderByUser may be converted to it; the nudge
// grouping relies on the ordering and does not re-sort.
type ByUser []Schedule

type (
	// QueryParams filters and orders a schedule lookup. Build via
	// NewQueryParams so required fields and the bin range are checked.
	QueryParams struct {
		DateField   DateField `validate:"required,oneof=start upgrade_deadline"`
		CurrentTime time.Time `validate:"required"`
		TargetTime  time.Time `validate:"required"`
		BinNum      int       `validate:"min=0"`
		NumBins     int       `validate:"required,min=1"`
		OrgList     []string
		ExcludeOrgs bool
		OrderBy     OrderBy `validate:"required,oneof=user course"`
	}

	// Repository is the data access contract of the notification core.
	// QuerySchedules is the only heavy query; everything else is point
	// lookups plus the one bulk write owned by the maintenance task.
	Repository interface {
		// QuerySchedules returns the schedules whose params.DateField falls
		// on the target day, for active enrollments of users in the given
		// bin, in courses that have not ended. An empty result is not an
		// error.
		QuerySchedules(ctx context.Context, params QueryParams) ([]Schedule, error)
		GetSite(ctx context.Context, id int) (Site, error)
		ListSites(ctx context.Context) ([]Site, error)
		// GetConfig returns the current per-site toggles; a site with no row
		// yet gets the zero Config (everything off).
		GetConfig(ctx context.Context, siteID int) (Config, error)
		// UpdateCourseSchedules bulk-rewrites start/upgrade_deadline on every
		// schedule under a course, in a single transaction.
		UpdateCourseSchedules(ctx context.Context, courseID string, start time.Time, upgradeDeadline null.Time, exec ...core.DBExecutor) error
	}

	// CourseUpdateRepository looks up the weekly update content authored for
	// a course. External collaborator (course content store).
	CourseUpdateRepository interface {
		// WeekSummary returns ErrCourseUpdateNotFound when the course has no
		// update for that week.
		WeekSummary(ctx context.Context, courseID string, weekNum int) (string, error)
	}

	// UpsellChecker decides whether an enrollment still represents a valid
	// verified-certificate purchase opportunity, and builds the purchase
	// link. External collaborator (commerce).
	UpsellChecker interface {
		UpgradeLinkIsValid(enrollment Enrollment) bool
		// UpgradeLink must return an absolute URL.
		UpgradeLink(user User, course Course) string
	}
)

func NewQueryParams(field DateField, current, target time.Time, binNum, numBins int, orgList []string, excludeOrgs bool, orderBy OrderBy) (QueryParams, error) {
	p := QueryParams{
		DateField:   field,
		CurrentTime: current,
		TargetTime:  target,
		BinNum:      binNum,
		NumBins:     numBins,
		OrgList:     orgList,
		ExcludeOrgs: excludeOrgs,
		OrderBy:     orderBy,
	}
	if err := validate.Struct(p); err != nil {
		return QueryParams{}, core.NewValidationError(err)
	}
	if p.BinNum >= p.NumBins {
		return QueryParams{}, core.NewValidationError(
			errors.New("bin_num out of range"),
			core.FieldError{Field: "BinNum", Error: "must be < NumBins"},
		)
	}
	return p, nil
}

// TargetDay returns the [start, end) window of the target calendar day.
func (p QueryParams) TargetDay() (time.Time, time.Time) {
	day := BeginningOfDay(p.TargetTime)
	return day, day.AddDate(0, 0, 1)
}
