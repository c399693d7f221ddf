// Package commercesvc implements the purchase-link collaborator against the
// e-commerce front end.
package commercesvc

import (
	"net/url"
	"strings"
	"time"

	"github.com/trezcool/arifa/core"
	"github.com/trezcool/arifa/core/schedule"
)

var nowFunc = time.Now // mockable

// upsellChecker decides whether an enrollment can still be upgraded to the
// verified track, and builds the absolute purchase link.
type upsellChecker struct {
	baseURL string
}

var _ schedule.UpsellChecker = (*upsellChecker)(nil)

func NewUpsellChecker(conf *core.Config) *upsellChecker {
	return &upsellChecker{baseURL: strings.TrimSuffix(conf.EcommerceBaseURL, "/")}
}

// UpgradeLinkIsValid reports whether the enrollment is still a valid purchase
// opportunity: audit-track, with a dynamic upgrade deadline that has not
// passed.
func (c upsellChecker) UpgradeLinkIsValid(enrollment schedule.Enrollment) bool {
	if enrollment.Mode != "audit" || !enrollment.IsActive {
		return false
	}
	deadline := enrollment.DynamicUpgradeDeadline
	return deadline.Valid && deadline.Time.After(nowFunc().UTC())
}

func (c upsellChecker) UpgradeLink(_ schedule.User, course schedule.Course) string {
	q := make(url.Values)
	q.Set("course_id", course.ID)
	return c.baseURL + "/basket/add/?" + q.Encode()
}
