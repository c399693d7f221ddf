// Package inmemdb is an in-memory implementation of the schedule
// repositories, used by tests and local development.
package inmemdb

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/arifa/core"
	"github.com/trezcool/arifa/core/schedule"
)

type DB struct {
	mutex     sync.RWMutex
	pkCount   int
	sites     map[int]schedule.Site
	configs   map[int]schedule.Config // by site id
	schedules map[int]*schedule.Schedule
}

func NewDB() *DB {
	return &DB{
		sites:     make(map[int]schedule.Site),
		configs:   make(map[int]schedule.Config),
		schedules: make(map[int]*schedule.Schedule),
	}
}

func (db *DB) AddSite(site schedule.Site) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.sites[site.ID] = site
}

func (db *DB) SetConfig(cfg schedule.Config) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.configs[cfg.SiteID] = cfg
}

func (db *DB) AddSchedule(sched schedule.Schedule) schedule.Schedule {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	if sched.ID == 0 {
		db.pkCount++
		sched.ID = db.pkCount
	}
	db.schedules[sched.ID] = &sched
	return sched
}

type scheduleRepository struct {
	db *DB
}

var _ schedule.Repository = (*scheduleRepository)(nil)

func NewScheduleRepository(db *DB) *scheduleRepository {
	return &scheduleRepository{db: db}
}

func dateField(s schedule.Schedule, field schedule.DateField) (time.Time, bool) {
	if field == schedule.DateFieldUpgradeDeadline {
		return s.UpgradeDeadline.Time, s.UpgradeDeadline.Valid
	}
	return s.Start, true
}

func orgMatches(org string, orgList []string) bool {
	for _, o := range orgList {
		if o == org {
			return true
		}
	}
	return false
}

func (repo *scheduleRepository) QuerySchedules(_ context.Context, params schedule.QueryParams) ([]schedule.Schedule, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	dayStart, dayEnd := params.TargetDay()

	matches := make([]schedule.Schedule, 0)
	for _, s := range repo.db.schedules {
		e := s.Enrollment
		if schedule.BinForUser(e.User.ID, params.NumBins) != params.BinNum {
			continue
		}
		if !e.IsActive {
			continue
		}
		dt, ok := dateField(*s, params.DateField)
		if !ok || dt.Before(dayStart) || !dt.Before(dayEnd) {
			continue
		}
		if e.Course.End.Valid && e.Course.End.Time.Before(params.CurrentTime) {
			continue
		}
		if params.OrgList != nil && orgMatches(e.Course.Org, params.OrgList) == params.ExcludeOrgs {
			continue
		}
		matches = append(matches, *s)
	}

	if params.OrderBy == schedule.OrderByCourse {
		sort.SliceStable(matches, func(i, j int) bool {
			ci, cj := matches[i].Enrollment.Course.ID, matches[j].Enrollment.Course.ID
			if ci != cj {
				return ci < cj
			}
			return matches[i].Enrollment.User.ID < matches[j].Enrollment.User.ID
		})
	} else {
		sort.SliceStable(matches, func(i, j int) bool {
			ui, uj := matches[i].Enrollment.User.ID, matches[j].Enrollment.User.ID
			if ui != uj {
				return ui < uj
			}
			return matches[i].ID < matches[j].ID
		})
	}
	return matches, nil
}

func (repo *scheduleRepository) GetSite(_ context.Context, id int) (schedule.Site, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	site, ok := repo.db.sites[id]
	if !ok {
		return schedule.Site{}, schedule.ErrSiteNotFound
	}
	return site, nil
}

func (repo *scheduleRepository) ListSites(_ context.Context) ([]schedule.Site, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	sites := make([]schedule.Site, 0, len(repo.db.sites))
	for _, site := range repo.db.sites {
		sites = append(sites, site)
	}
	sort.Slice(sites, func(i, j int) bool { return sites[i].ID < sites[j].ID })
	return sites, nil
}

func (repo *scheduleRepository) GetConfig(_ context.Context, siteID int) (schedule.Config, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	cfg, ok := repo.db.configs[siteID]
	if !ok {
		return schedule.Config{SiteID: siteID}, nil
	}
	return cfg, nil
}

func (repo *scheduleRepository) UpdateCourseSchedules(_ context.Context, courseID string, start time.Time, upgradeDeadline null.Time, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, s := range repo.db.schedules {
		if s.Enrollment.Course.ID == courseID {
			s.Start = start
			s.UpgradeDeadline = upgradeDeadline
		}
	}
	return nil
}

// courseUpdateRepository serves authored weekly update content from a map.
type courseUpdateRepository struct {
	mutex     sync.RWMutex
	summaries map[string]map[int]string // course id -> week num -> summary
}

var _ schedule.CourseUpdateRepository = (*courseUpdateRepository)(nil)

func NewCourseUpdateRepository() *courseUpdateRepository {
	return &courseUpdateRepository{summaries: make(map[string]map[int]string)}
}

func (repo *courseUpdateRepository) SetWeekSummary(courseID string, weekNum int, summary string) {
	repo.mutex.Lock()
	defer repo.mutex.Unlock()
	weeks, ok := repo.summaries[courseID]
	if !ok {
		weeks = make(map[int]string)
		repo.summaries[courseID] = weeks
	}
	weeks[weekNum] = summary
}

func (repo *courseUpdateRepository) WeekSummary(_ context.Context, courseID string, weekNum int) (string, error) {
	repo.mutex.RLock()
	defer repo.mutex.RUnlock()
	summary, ok := repo.summaries[courseID][weekNum]
	if !ok {
		return "", schedule.ErrCourseUpdateNotFound
	}
	return summary, nil
}
