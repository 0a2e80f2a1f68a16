package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// SchedulerService wraps cron-based jobs.
type SchedulerService struct {
	cron *cron.Cron
	loc  *time.Location
}

func NewSchedulerService(loc *time.Location) *SchedulerService {
	if loc == nil {
		loc = time.Local
	}
	return &SchedulerService{
		cron: cron.New(cron.WithLocation(loc), cron.WithSeconds()),
		loc:  loc,
	}
}

// ScheduleDaily registers a daily job at the given HH:MM time string.
func (s *SchedulerService) ScheduleDaily(timeStr string, job func()) (cron.EntryID, error) {
	spec, err := buildDailySpec(timeStr)
	if err != nil {
		return 0, err
	}
	return s.cron.AddFunc(spec, job)
}

// ScheduleOnce registers a job that runs a single time at the given instant. An
// instant that is already over when cron picks the entry up runs right away.
func (s *SchedulerService) ScheduleOnce(at time.Time, job func()) cron.EntryID {
	return s.cron.Schedule(&onceSchedule{at: at}, cron.FuncJob(job))
}

// Remove drops an entry. Unknown ids are ignored by cron.
func (s *SchedulerService) Remove(id cron.EntryID) {
	s.cron.Remove(id)
}

// Next returns the next activation of an entry, or false when it is gone or spent.
func (s *SchedulerService) Next(id cron.EntryID) (time.Time, bool) {
	entry := s.cron.Entry(id)
	if !entry.Valid() {
		return time.Time{}, false
	}
	if once, ok := entry.Schedule.(*onceSchedule); ok {
		return once.at.In(s.loc), true
	}
	if entry.Next.IsZero() {
		return time.Time{}, false
	}
	return entry.Next, true
}

func (s *SchedulerService) Location() *time.Location {
	return s.loc
}

func (s *SchedulerService) Start() {
	s.cron.Start()
}

func (s *SchedulerService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// ScheduleInterval registers a periodic job every given duration.
func (s *SchedulerService) ScheduleInterval(interval time.Duration, job func()) (cron.EntryID, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("interval must be positive")
	}
	// Convert to cron spec: every N seconds.
	seconds := int(interval.Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	spec := fmt.Sprintf("@every %ds", seconds)
	return s.cron.AddFunc(spec, job)
}

// onceSchedule activates a single time. The first Next hands out at, or t when at
// already passed before cron got to it; every later call returns the zero time,
// which cron never runs. Next is only called from the cron goroutine.
type onceSchedule struct {
	at     time.Time
	issued bool
}

func (o *onceSchedule) Next(t time.Time) time.Time {
	if o.issued {
		return time.Time{}
	}
	o.issued = true
	if t.Before(o.at) {
		return o.at
	}
	return t
}

func buildDailySpec(timeStr string) (string, error) {
	hour, minute, err := ParseClock(timeStr)
	if err != nil {
		return "", err
	}
	// cron format: second minute hour dom month dow
	return fmt.Sprintf("0 %d %d * * *", minute, hour), nil
}

// ParseClock validates an HH:MM string.
func ParseClock(timeStr string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(timeStr), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", timeStr)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", timeStr)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", timeStr)
	}
	return hour, minute, nil
}
