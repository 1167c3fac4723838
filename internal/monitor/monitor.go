package monitor

import (
	"ceksiak/internal/assert"
	"ceksiak/internal/chrono"
	"ceksiak/internal/notifier"
	"ceksiak/internal/siak"
	"ceksiak/internal/snapshot"
	"ceksiak/internal/telemetry"
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	DefaultSchedule     = "@every 30m"
	DefaultCycleTimeout = time.Minute * 5
)

const (
	report_monitor_login = "monitor.login"
	report_monitor_check = "monitor.check"
)

// ErrNoCourseData is returned when the course table is still missing after logging in again.
var ErrNoCourseData = errors.New("monitor: course data unavailable after re-login")

// Portal is the part of siak.Client the monitor needs.
type Portal interface {
	Login(ctx context.Context, username, password string) error
	FetchCourses(ctx context.Context) (courses []siak.Course, found bool, err error)
}

type Options struct {
	Portal   Portal
	Store    snapshot.Store
	Notifier notifier.Notifier

	Username string
	Password string

	Telemetry telemetry.API
	// bounds a single scheduled check, defaults to DefaultCycleTimeout
	CycleTimeout time.Duration
}

type Result struct {
	// Updated is true when the snapshot was replaced
	Updated bool
	// Relogged is true when the session had expired and a login was performed
	Relogged bool
	Courses  []siak.Course
}

type Monitor struct {
	portal   Portal
	store    snapshot.Store
	notifier notifier.Notifier
	username string
	password string
	timeout  time.Duration
	tel      telemetry.API
}

func New(opts Options) Monitor {
	assert.NotNil(opts.Portal, "portal")
	assert.NotNil(opts.Store, "store")
	assert.NotNil(opts.Notifier, "notifier")
	assert.NotNil(opts.Telemetry, "telemetry")

	if opts.CycleTimeout <= 0 {
		opts.CycleTimeout = DefaultCycleTimeout
	}

	return Monitor{
		portal:   opts.Portal,
		store:    opts.Store,
		notifier: opts.Notifier,
		username: opts.Username,
		password: opts.Password,
		timeout:  opts.CycleTimeout,
		tel:      telemetry.NewScopedAPI("monitor", opts.Telemetry),
	}
}

func (m Monitor) Login(ctx context.Context) error {
	err := m.portal.Login(ctx, m.username, m.password)
	if err != nil {
		m.tel.ReportBroken(report_monitor_login, err)
		return err
	}
	return nil
}

// Check runs one cycle: scrape (logging in again at most once), compare with the last
// snapshot and, when something changed, save then notify.
func (m Monitor) Check(ctx context.Context) (Result, error) {
	var result Result

	courses, found, err := m.portal.FetchCourses(ctx)
	if err != nil {
		return result, err
	}
	if !found {
		m.tel.ReportWarning(report_monitor_check, "course table missing, logging in again")
		err = m.Login(ctx)
		if err != nil {
			return result, fmt.Errorf("monitor: re-login: %w", err)
		}
		result.Relogged = true

		courses, found, err = m.portal.FetchCourses(ctx)
		if err != nil {
			return result, err
		}
		if !found {
			return result, ErrNoCourseData
		}
	}
	result.Courses = courses

	previous, exists := m.store.Load(ctx)
	if exists && !snapshot.IsUpdated(courses, previous) {
		m.tel.ReportDebug("no updates found", len(courses))
		return result, nil
	}

	err = m.store.Save(ctx, courses)
	if err != nil {
		return result, fmt.Errorf("monitor: %w", err)
	}
	result.Updated = true

	err = m.notifier.Notify(ctx, courses)
	if err != nil {
		return result, fmt.Errorf("monitor: notify: %w", err)
	}
	m.tel.ReportDebug("updates found and sent", len(courses))
	return result, nil
}

func (m Monitor) cycle(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	result, err := m.Check(ctx)
	if err != nil {
		m.tel.ReportBroken(report_monitor_check, err, result.Relogged)
		return
	}
	m.tel.ReportCount(report_monitor_check, int64(len(result.Courses)))
}

// Run performs a check right away and then on every tick of `schedule` until ctx is
// done. It waits for a running check to finish before returning.
func (m Monitor) Run(ctx context.Context, cron chrono.CronAPI, schedule string) error {
	assert.NotNil(cron, "cron")
	if schedule == "" {
		schedule = DefaultSchedule
	}

	m.cycle(ctx)

	err := cron.Cron(schedule, func() {
		m.cycle(ctx)
	})
	if err != nil {
		return fmt.Errorf("monitor: schedule %q: %w", schedule, err)
	}

	<-ctx.Done()
	<-cron.Stop().Done()
	return nil
}
