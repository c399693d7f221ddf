package core

import (
	"fmt"
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Debug    bool
		TestMode bool
		Env      string // DEV (default), TEST, QA, PROD
		Build    string
		AppName  string
		WorkDir  string

		DefaultFromName  string
		DefaultFromAddr  string
		SendgridApiKey   string
		RollbarToken     string
		EcommerceBaseURL string

		Server    ServerConfig
		Database  DatabaseConfig
		Redis     RedisConfig
		Schedules SchedulesConfig
	}

	ServerConfig struct {
		Host            string
		DebugHost       string
		ShutdownTimeout time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		// ReplicaHost routes schedule reads to a secondary when set.
		ReplicaHost string
		DisableTLS  bool
	}

	RedisConfig struct {
		Addr     string
		Password string
		DB       int
	}

	SchedulesConfig struct {
		NumBins int
		// Day offsets each daily run covers.
		RecurringNudgeDayOffsets  []int
		UpgradeReminderDayOffsets []int
		CourseUpdateDayOffsets    []int
		// Cron expressions for the daily fan-out entries.
		RecurringNudgeCron  string
		UpgradeReminderCron string
		CourseUpdateCron    string
	}
)

func (c DatabaseConfig) Address() string {
	return c.Host + ":" + c.Port
}

func (c DatabaseConfig) ReplicaAddress() string {
	if c.ReplicaHost == "" {
		return ""
	}
	return c.ReplicaHost + ":" + c.Port
}

func (c Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: c.DefaultFromName, Address: c.DefaultFromAddr}
}

func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("appName", "Arifa")
	conf.SetDefault("build", "dev")
	conf.SetDefault("defaultFromName", "Arifa")
	conf.SetDefault("defaultFromAddr", "noreply@localhost")
	conf.SetDefault("ecommerceBaseURL", "http://localhost:8130")
	conf.SetDefault("serverHost", "0.0.0.0:8000")
	conf.SetDefault("serverDebugHost", "0.0.0.0:4000")
	conf.SetDefault("serverShutdownTimeout", 5*time.Second)
	conf.SetDefault("databaseEngine", "postgres")
	conf.SetDefault("databaseHost", "localhost")
	conf.SetDefault("databasePort", "5432")
	conf.SetDefault("databaseName", "arifa")
	conf.SetDefault("databaseDisableTLS", true)
	conf.SetDefault("redisAddr", "127.0.0.1:6379")
	conf.SetDefault("redisDB", 0)
	conf.SetDefault("schedulesNumBins", 24)
	conf.SetDefault("schedulesRecurringNudgeDayOffsets", []int{-3, -10})
	conf.SetDefault("schedulesUpgradeReminderDayOffsets", []int{2})
	conf.SetDefault("schedulesCourseUpdateDayOffsets", courseUpdateDefaultOffsets())
	conf.SetDefault("schedulesRecurringNudgeCron", "0 9 * * *")
	conf.SetDefault("schedulesUpgradeReminderCron", "0 10 * * *")
	conf.SetDefault("schedulesCourseUpdateCron", "0 11 * * *")

	var testMode bool
	env := os.Getenv("ENV") // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		testMode = true
	}
	conf.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err = godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	return &Config{
		Debug:            conf.GetBool("debug"),
		TestMode:         testMode,
		Env:              env,
		Build:            conf.GetString("build"),
		AppName:          conf.GetString("appName"),
		WorkDir:          wd,
		DefaultFromName:  conf.GetString("defaultFromName"),
		DefaultFromAddr:  conf.GetString("defaultFromAddr"),
		SendgridApiKey:   conf.GetString("sendgridApiKey"),
		RollbarToken:     conf.GetString("rollbarToken"),
		EcommerceBaseURL: conf.GetString("ecommerceBaseURL"),
		Server: ServerConfig{
			Host:            conf.GetString("serverHost"),
			DebugHost:       conf.GetString("serverDebugHost"),
			ShutdownTimeout: conf.GetDuration("serverShutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("databaseEngine"),
			Host:          conf.GetString("databaseHost"),
			Port:          conf.GetString("databasePort"),
			Name:          conf.GetString("databaseName"),
			User:          conf.GetString("databaseUser"),
			Password:      conf.GetString("databasePassword"),
			AdminUser:     conf.GetString("databaseAdminUser"),
			AdminPassword: conf.GetString("databaseAdminPassword"),
			ReplicaHost:   conf.GetString("databaseReplicaHost"),
			DisableTLS:    conf.GetBool("databaseDisableTLS"),
		},
		Redis: RedisConfig{
			Addr:     conf.GetString("redisAddr"),
			Password: conf.GetString("redisPassword"),
			DB:       conf.GetInt("redisDB"),
		},
		Schedules: SchedulesConfig{
			NumBins:                   conf.GetInt("schedulesNumBins"),
			RecurringNudgeDayOffsets:  conf.GetIntSlice("schedulesRecurringNudgeDayOffsets"),
			UpgradeReminderDayOffsets: conf.GetIntSlice("schedulesUpgradeReminderDayOffsets"),
			CourseUpdateDayOffsets:    conf.GetIntSlice("schedulesCourseUpdateDayOffsets"),
			RecurringNudgeCron:        conf.GetString("schedulesRecurringNudgeCron"),
			UpgradeReminderCron:       conf.GetString("schedulesUpgradeReminderCron"),
			CourseUpdateCron:          conf.GetString("schedulesCourseUpdateCron"),
		},
	}
}

// courseUpdateDefaultOffsets covers course weeks 1 through 11, one run per elapsed week.
func courseUpdateDefaultOffsets() []int {
	offsets := make([]int, 0, 11)
	for day := -7; day >= -77; day -= 7 {
		offsets = append(offsets, day)
	}
	return offsets
}

// Getwd tries to find the project root "arifa".
// go-test changes the working directory to the test package being run during tests... this breaks our code...
// see: https://stackoverflow.com/questions/23847003/golang-tests-and-working-directory
// this is a temporary fix for now :(
func Getwd() string {
	root := "arifa"
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	currDir := wd
	for {
		if fi, err := os.Stat(currDir); err == nil {
			dirBase := filepath.Base(currDir)
			if dirBase == root && fi.IsDir() {
				return currDir
			}
		}
		newDir := filepath.Dir(currDir)
		if newDir == string(os.PathSeparator) || newDir == currDir {
			fmt.Fprintln(os.Stderr, "project root not found; falling back to working directory")
			return wd
		}
		currDir = newDir
	}
}
