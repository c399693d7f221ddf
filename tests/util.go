// Package testutil provides shared fixtures and fakes for the test suites.
package testutil

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/hibiken/asynq"

	"github.com/trezcool/arifa/core"
	"github.com/trezcool/arifa/core/schedule"
)

func Site() schedule.Site {
	return schedule.Site{
		ID:      1,
		Domain:  "lms.test",
		Name:    "Test LMS",
		BaseURL: "https://lms.test",
	}
}

func User(id int) schedule.User {
	return schedule.User{
		ID:       id,
		Username: "learner" + strconv.Itoa(id),
		Email:    "learner" + strconv.Itoa(id) + "@test.test",
		Name:     "Learner " + strconv.Itoa(id),
	}
}

func Course(id, org string) schedule.Course {
	return schedule.Course{
		ID:          id,
		Org:         org,
		DisplayName: "Course " + id,
		Language:    "en",
	}
}

// Schedule builds a schedule over an active audit enrollment.
func Schedule(user schedule.User, course schedule.Course, start time.Time) schedule.Schedule {
	return schedule.Schedule{
		Start: start,
		Enrollment: schedule.Enrollment{
			ID:       user.ID*1000 + len(course.ID),
			User:     user,
			Course:   course,
			IsActive: true,
			Mode:     "audit",
		},
	}
}

// ----------------------------------------------------------------------------
// fakes

// Logger discards everything.
type Logger struct{}

var _ core.Logger = (*Logger)(nil)

func (Logger) Enable(bool)                  {}
func (Logger) Debug(string, ...interface{}) {}
func (Logger) Info(string, ...interface{})  {}
func (Logger) Warn(string, ...interface{})  {}
func (Logger) Error(string, ...interface{}) {}
func (Logger) Fatal(string, ...interface{}) {}

// UpsellChecker answers with fixed values.
type UpsellChecker struct {
	Valid bool
	Link  string
}

var _ schedule.UpsellChecker = (*UpsellChecker)(nil)

func (c UpsellChecker) UpgradeLinkIsValid(schedule.Enrollment) bool { return c.Valid }
func (c UpsellChecker) UpgradeLink(schedule.User, schedule.Course) string {
	return c.Link
}

// TaskClient records enqueued tasks instead of talking to redis.
type TaskClient struct {
	mu    sync.Mutex
	Tasks []*asynq.Task
	Err   error // returned by every call when set
}

func (c *TaskClient) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Tasks = append(c.Tasks, task)
	return &asynq.TaskInfo{}, nil
}

// TasksOfType filters the recorded tasks.
func (c *TaskClient) TasksOfType(taskType string) []*asynq.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*asynq.Task
	for _, t := range c.Tasks {
		if t.Type() == taskType {
			out = append(out, t)
		}
	}
	return out
}

// EmailService records messages instead of delivering them.
type EmailService struct {
	mu   sync.Mutex
	Sent []*core.EmailMessage
}

var _ core.EmailService = (*EmailService)(nil)

func (svc *EmailService) SendMessages(messages ...*core.EmailMessage) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.Sent = append(svc.Sent, messages...)
}
