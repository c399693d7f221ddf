package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/arifa/core"
	"github.com/trezcool/arifa/core/schedule"
)

type scheduleRepository struct {
	db core.DB
	// replica, when set, serves all schedule reads. Infrastructure-level
	// optimization; invisible to callers.
	replica core.DBExecutor
}

var _ schedule.Repository = (*scheduleRepository)(nil) // interface compliance check

// NewScheduleRepository returns the postgres-backed repository. replica may
// be nil, in which case reads go to the primary.
func NewScheduleRepository(db *sqlx.DB, replica *sqlx.DB) *scheduleRepository {
	repo := &scheduleRepository{db: db}
	if replica != nil {
		repo.replica = replica
	}
	return repo
}

func (repo scheduleRepository) readExec() core.DBExecutor {
	if repo.replica != nil {
		return repo.replica
	}
	return repo.db
}

func (repo scheduleRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.db
}

type scheduleRow struct {
	ID              int       `db:"id"`
	Start           time.Time `db:"start"`
	UpgradeDeadline null.Time `db:"upgrade_deadline"`

	EnrollmentID           int       `db:"enrollment_id"`
	IsActive               bool      `db:"is_active"`
	Mode                   string    `db:"mode"`
	DynamicUpgradeDeadline null.Time `db:"dynamic_upgrade_deadline"`

	UserID   int    `db:"user_id"`
	Username string `db:"username"`
	Email    string `db:"email"`
	UserName string `db:"user_name"`

	CourseID          string    `db:"course_id"`
	CourseOrg         string    `db:"course_org"`
	CourseDisplayName string    `db:"course_display_name"`
	CourseLanguage    string    `db:"course_language"`
	CourseEnd         null.Time `db:"course_end"`
}

func (r scheduleRow) toSchedule() schedule.Schedule {
	return schedule.Schedule{
		ID:              r.ID,
		Start:           r.Start,
		UpgradeDeadline: r.UpgradeDeadline,
		Enrollment: schedule.Enrollment{
			ID:                     r.EnrollmentID,
			IsActive:               r.IsActive,
			Mode:                   r.Mode,
			DynamicUpgradeDeadline: r.DynamicUpgradeDeadline,
			User: schedule.User{
				ID:       r.UserID,
				Username: r.Username,
				Email:    r.Email,
				Name:     r.UserName,
			},
			Course: schedule.Course{
				ID:          r.CourseID,
				Org:         r.CourseOrg,
				DisplayName: r.CourseDisplayName,
				Language:    r.CourseLanguage,
				End:         r.CourseEnd,
			},
		},
	}
}

// buildSchedulesQuery assembles the filtered, joined lookup. The bin
// restriction on the user id comes first: it narrows the user set before the
// heavier joins and guarantees a user is owned by exactly one bin.
func buildSchedulesQuery(p schedule.QueryParams) (string, []interface{}, error) {
	dayStart, dayEnd := p.TargetDay()

	var b strings.Builder
	b.WriteString(`SELECT s.id, s.start, s.upgrade_deadline,
       e.id AS enrollment_id, e.is_active, e.mode, e.dynamic_upgrade_deadline,
       u.id AS user_id, u.username, u.email, u.name AS user_name,
       c.id AS course_id, c.org AS course_org, c.display_name AS course_display_name,
       c.language AS course_language, c."end" AS course_end
FROM schedule s
         JOIN enrollment e ON e.id = s.enrollment_id
         JOIN "user" u ON u.id = e.user_id
         JOIN course c ON c.id = e.course_id
WHERE u.id % ? = ?
  AND e.is_active
  AND s.`)
	b.WriteString(string(p.DateField)) // validated enum, not user input
	b.WriteString(` >= ? AND s.`)
	b.WriteString(string(p.DateField))
	b.WriteString(` < ?
  AND (c."end" IS NULL OR c."end" >= ?)`)
	args := []interface{}{p.NumBins, p.BinNum, dayStart, dayEnd, p.CurrentTime}

	if p.OrgList != nil {
		if p.ExcludeOrgs {
			b.WriteString(`
  AND c.org NOT IN (?)`)
		} else {
			b.WriteString(`
  AND c.org IN (?)`)
		}
		args = append(args, p.OrgList)
	}

	switch p.OrderBy {
	case schedule.OrderByCourse:
		b.WriteString(`
ORDER BY c.id, u.id`)
	default:
		b.WriteString(`
ORDER BY u.id, s.id`)
	}

	q, inArgs, err := sqlx.In(b.String(), args...)
	if err != nil {
		return "", nil, errors.Wrap(err, "expanding org list")
	}
	return q, inArgs, nil
}

func (repo scheduleRepository) QuerySchedules(ctx context.Context, params schedule.QueryParams) ([]schedule.Schedule, error) {
	q, args, err := buildSchedulesQuery(params)
	if err != nil {
		return nil, err
	}

	exec := repo.readExec()
	var rows []scheduleRow
	if err = exec.SelectContext(ctx, &rows, exec.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying schedules")
	}

	schedules := make([]schedule.Schedule, 0, len(rows))
	for _, r := range rows {
		schedules = append(schedules, r.toSchedule())
	}
	return schedules, nil
}

func (repo scheduleRepository) GetSite(ctx context.Context, id int) (schedule.Site, error) {
	var site schedule.Site
	err := repo.readExec().GetContext(ctx, &site,
		repo.readExec().Rebind(`SELECT id, domain, name, base_url AS baseurl FROM site WHERE id = ?`), id)
	if err == sql.ErrNoRows {
		return schedule.Site{}, schedule.ErrSiteNotFound
	}
	if err != nil {
		return schedule.Site{}, errors.Wrap(err, "getting site")
	}
	return site, nil
}

func (repo scheduleRepository) ListSites(ctx context.Context) ([]schedule.Site, error) {
	var sites []schedule.Site
	err := repo.readExec().SelectContext(ctx, &sites,
		`SELECT id, domain, name, base_url AS baseurl FROM site ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "listing sites")
	}
	return sites, nil
}

func (repo scheduleRepository) GetConfig(ctx context.Context, siteID int) (schedule.Config, error) {
	var cfg schedule.Config
	err := repo.readExec().GetContext(ctx, &cfg, repo.readExec().Rebind(`
SELECT site_id          AS siteid,
       enqueue_recurring_nudge  AS enqueuerecurringnudge,
       deliver_recurring_nudge  AS deliverrecurringnudge,
       enqueue_upgrade_reminder AS enqueueupgradereminder,
       deliver_upgrade_reminder AS deliverupgradereminder,
       enqueue_course_update    AS enqueuecourseupdate,
       deliver_course_update    AS delivercourseupdate
FROM schedule_config
WHERE site_id = ?
ORDER BY change_date DESC
LIMIT 1`), siteID)
	if err == sql.ErrNoRows {
		// no row yet: everything off
		return schedule.Config{SiteID: siteID}, nil
	}
	if err != nil {
		return schedule.Config{}, errors.Wrap(err, "getting schedule config")
	}
	return cfg, nil
}

func (repo scheduleRepository) UpdateCourseSchedules(ctx context.Context, courseID string, start time.Time, upgradeDeadline null.Time, exec ...core.DBExecutor) error {
	run := func(e core.DBExecutor) error {
		_, err := e.ExecContext(ctx, e.Rebind(`
UPDATE schedule
SET start = ?, upgrade_deadline = ?
FROM enrollment e
WHERE schedule.enrollment_id = e.id
  AND e.course_id = ?`), start.UTC(), upgradeDeadline, courseID)
		return err
	}

	if len(exec) > 0 {
		if err := run(exec[0]); err != nil {
			return errors.Wrap(err, "updating course schedules")
		}
		return nil
	}

	// one transaction per course update
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = run(tx); err != nil {
		_ = tx.Rollback()
		return errors.Wrap(err, "updating course schedules")
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing course schedules update")
	}
	return nil
}
