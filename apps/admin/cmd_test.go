package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/arifa/core/schedule"
	inmemdb "github.com/trezcool/arifa/storage/database/inmem"
	"github.com/trezcool/arifa/tasks"
	testutil "github.com/trezcool/arifa/tests"
)

func newTestCLI(client *testutil.TaskClient) *commandLine {
	db := inmemdb.NewDB()
	db.AddSite(testutil.Site())
	db.SetConfig(schedule.Config{SiteID: 1, EnqueueRecurringNudge: true})
	return &commandLine{
		repo:    inmemdb.NewScheduleRepository(db),
		client:  client,
		logger:  testutil.Logger{},
		numBins: 2,
	}
}

func TestCLI_run(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string // "" means errHelp
	}{
		{name: "no command", args: []string{"admin"}},
		{name: "unknown command", args: []string{"admin", "frobnicate"}},
		{name: "migrate without subcommand", args: []string{"admin", "migrate"}},
		{name: "enqueue without flags", args: []string{"admin", "enqueue"}},
		{name: "enqueue missing date", args: []string{"admin", "enqueue", "-type", "recurring_nudge", "-site", "1"}},
		{
			name:    "enqueue unknown type",
			args:    []string{"admin", "enqueue", "-type", "weekly_digest", "-site", "1", "-date", "2020-01-15"},
			wantErr: `unknown message type "weekly_digest"`,
		},
		{
			name:    "enqueue bad date",
			args:    []string{"admin", "enqueue", "-type", "recurring_nudge", "-site", "1", "-date", "Jan 15"},
			wantErr: "invalid -date",
		},
		{
			name:    "enqueue unknown site",
			args:    []string{"admin", "enqueue", "-type", "recurring_nudge", "-site", "99", "-date", "2020-01-15"},
			wantErr: schedule.ErrSiteNotFound.Error(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cli := newTestCLI(&testutil.TaskClient{})
			err := cli.run(tt.args)
			if tt.wantErr == "" {
				assert.ErrorIs(t, err, errHelp)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestCLI_enqueue(t *testing.T) {
	client := &testutil.TaskClient{}
	cli := newTestCLI(client)

	err := cli.run([]string{
		"admin", "enqueue",
		"-type", "recurring_nudge",
		"-site", "1",
		"-date", "2020-01-15",
		"-offset", "-3",
		"-orgs", "orgA,orgB",
		"-exclude-orgs",
		"-override-email", "qa@test.test",
	})
	require.NoError(t, err)

	binTasks := client.TasksOfType(tasks.TypeRecurringNudgeBin)
	require.Len(t, binTasks, 2)

	var p tasks.BinPayload
	require.NoError(t, json.Unmarshal(binTasks[0].Payload(), &p))
	assert.Equal(t, 1, p.SiteID)
	assert.Equal(t, time.Date(2020, 1, 15, 0, 0, 0, 0, time.UTC).Format(time.RFC3339), p.TargetDay)
	assert.Equal(t, -3, p.DayOffset)
	assert.Equal(t, []string{"orgA", "orgB"}, p.OrgList)
	assert.True(t, p.ExcludeOrgs)
	assert.Equal(t, "qa@test.test", p.OverrideRecipientEmail)
}

func TestCLI_migrate(t *testing.T) {
	cli := newTestCLI(&testutil.TaskClient{})

	var gotCommand, gotDir string
	var gotArgs []string
	restore := gooseRunFunc
	defer func() { gooseRunFunc = restore }()
	gooseRunFunc = func(command string, db *sql.DB, fsys fs.FS, dir string, args ...string) error {
		gotCommand, gotDir, gotArgs = command, dir, args
		switch command {
		case "up", "down", "status", "version":
			return nil
		default:
			return fmt.Errorf("%q: no such command", command)
		}
	}

	tests := []struct {
		name       string
		args       []string
		wantErr    error
		wantErrStr string
		wantArgs   []string
	}{
		{name: "no subcommand", args: []string{"admin", "migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"admin", "migrate", "lol"}, wantErrStr: `"lol": no such command`},
		{name: "up", args: []string{"admin", "migrate", "up"}, wantArgs: []string{}},
		{name: "down", args: []string{"admin", "migrate", "down"}, wantArgs: []string{}},
		{name: "status", args: []string{"admin", "migrate", "status"}, wantArgs: []string{}},
		{name: "extra args forwarded", args: []string{"admin", "migrate", "up", "1", "2"}, wantArgs: []string{"1", "2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(tt.args)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantErrStr != "":
				require.Error(t, err)
				assert.Equal(t, tt.wantErrStr, err.Error())
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.args[2], gotCommand)
				assert.Equal(t, "migrations", gotDir)
				assert.Equal(t, tt.wantArgs, gotArgs)
			}
		})
	}
}
