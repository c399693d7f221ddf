package sqlxrepos

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/arifa/core/schedule"
)

var (
	current = time.Date(2020, 1, 18, 9, 0, 0, 0, time.UTC)
	target  = time.Date(2020, 1, 15, 13, 0, 0, 0, time.UTC)
)

func queryParams(t *testing.T, orgList []string, excludeOrgs bool, orderBy schedule.OrderBy) schedule.QueryParams {
	t.Helper()
	p, err := schedule.NewQueryParams(schedule.DateFieldStart, current, target, 3, 24, orgList, excludeOrgs, orderBy)
	require.NoError(t, err)
	return p
}

func TestBuildSchedulesQuery(t *testing.T) {
	dayStart := time.Date(2020, 1, 15, 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	t.Run("no org filter", func(t *testing.T) {
		q, args, err := buildSchedulesQuery(queryParams(t, nil, false, schedule.OrderByUser))
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(q, "SELECT s.id, s.start, s.upgrade_deadline"))
		assert.Contains(t, q, "u.id % ? = ?", "bin restriction comes first")
		assert.Contains(t, q, "e.is_active")
		assert.Contains(t, q, "s.start >= ? AND s.start < ?")
		assert.Contains(t, q, `(c."end" IS NULL OR c."end" >= ?)`)
		assert.NotContains(t, q, "c.org IN")
		assert.True(t, strings.HasSuffix(q, "ORDER BY u.id, s.id"))

		assert.Equal(t, []interface{}{24, 3, dayStart, dayEnd, current}, args)
	})

	t.Run("upgrade deadline field", func(t *testing.T) {
		p, err := schedule.NewQueryParams(schedule.DateFieldUpgradeDeadline, current, target, 3, 24, nil, false, schedule.OrderByUser)
		require.NoError(t, err)
		q, _, err := buildSchedulesQuery(p)
		require.NoError(t, err)
		assert.Contains(t, q, "s.upgrade_deadline >= ? AND s.upgrade_deadline < ?")
	})

	t.Run("org allow list expands", func(t *testing.T) {
		q, args, err := buildSchedulesQuery(queryParams(t, []string{"orgA", "orgB"}, false, schedule.OrderByUser))
		require.NoError(t, err)
		assert.Contains(t, q, "c.org IN (?, ?)")
		assert.Equal(t, []interface{}{24, 3, dayStart, dayEnd, current, "orgA", "orgB"}, args)
	})

	t.Run("org deny list", func(t *testing.T) {
		q, args, err := buildSchedulesQuery(queryParams(t, []string{"orgA"}, true, schedule.OrderByUser))
		require.NoError(t, err)
		assert.Contains(t, q, "c.org NOT IN (?)")
		assert.Equal(t, "orgA", args[len(args)-1])
	})

	t.Run("order by course", func(t *testing.T) {
		q, _, err := buildSchedulesQuery(queryParams(t, nil, false, schedule.OrderByCourse))
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(q, "ORDER BY c.id, u.id"))
	})
}

func TestScheduleRow_toSchedule(t *testing.T) {
	row := scheduleRow{
		ID:                7,
		Start:             target,
		EnrollmentID:      11,
		IsActive:          true,
		Mode:              "audit",
		UserID:            2,
		Username:          "learner2",
		Email:             "learner2@test.test",
		UserName:          "Learner Two",
		CourseID:          "course-v1:orgA+A+2020",
		CourseOrg:         "orgA",
		CourseDisplayName: "Course A",
		CourseLanguage:    "en",
	}

	s := row.toSchedule()
	assert.Equal(t, 7, s.ID)
	assert.Equal(t, target, s.Start)
	assert.Equal(t, 11, s.Enrollment.ID)
	assert.True(t, s.Enrollment.IsActive)
	assert.Equal(t, "learner2", s.Enrollment.User.Username)
	assert.Equal(t, "Learner Two", s.Enrollment.User.Name)
	assert.Equal(t, "orgA", s.Enrollment.Course.Org)
	assert.False(t, s.Enrollment.Course.End.Valid)
}
