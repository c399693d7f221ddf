package commercesvc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/arifa/core"
	"github.com/trezcool/arifa/core/schedule"
)

var now = time.Date(2020, 1, 15, 12, 0, 0, 0, time.UTC)

func newChecker(baseURL string) *upsellChecker {
	return NewUpsellChecker(&core.Config{EcommerceBaseURL: baseURL})
}

func TestUpsellChecker_UpgradeLinkIsValid(t *testing.T) {
	nowFunc = func() time.Time { return now }
	defer func() { nowFunc = time.Now }()

	base := schedule.Enrollment{
		IsActive:               true,
		Mode:                   "audit",
		DynamicUpgradeDeadline: null.TimeFrom(now.AddDate(0, 0, 10)),
	}

	tests := []struct {
		name   string
		mutate func(*schedule.Enrollment)
		want   bool
	}{
		{name: "upgradeable", mutate: func(*schedule.Enrollment) {}, want: true},
		{name: "already verified", mutate: func(e *schedule.Enrollment) { e.Mode = "verified" }, want: false},
		{name: "inactive", mutate: func(e *schedule.Enrollment) { e.IsActive = false }, want: false},
		{name: "no deadline", mutate: func(e *schedule.Enrollment) { e.DynamicUpgradeDeadline = null.Time{} }, want: false},
		{name: "deadline passed", mutate: func(e *schedule.Enrollment) {
			e.DynamicUpgradeDeadline = null.TimeFrom(now.Add(-time.Minute))
		}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enrollment := base
			tt.mutate(&enrollment)
			assert.Equal(t, tt.want, newChecker("https://shop.test").UpgradeLinkIsValid(enrollment))
		})
	}
}

func TestUpsellChecker_UpgradeLink(t *testing.T) {
	course := schedule.Course{ID: "course-v1:orgA+A+2020"}
	link := newChecker("https://shop.test/").UpgradeLink(schedule.User{}, course)
	assert.Equal(t, "https://shop.test/basket/add/?course_id=course-v1%3AorgA%2BA%2B2020", link)
}
