package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const notifyTimeout = 30 * time.Second

// Notifier raises a user-visible notification when an alarm fires.
type Notifier interface {
	Notify(ctx context.Context, payload Payload) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, payload Payload) error

func (f NotifierFunc) Notify(ctx context.Context, payload Payload) error {
	return f(ctx, payload)
}

// LogNotifier prints notifications to the process log.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, payload Payload) error {
	log.Printf("[info] notification title=%q message=%q", payload.Title, payload.Message)
	return nil
}

// PendingAlarm is a trigger that has not fired yet.
type PendingAlarm struct {
	Key       uint
	TriggerAt time.Time
	Exact     bool
	Payload   Payload
}

type cronAlarm struct {
	entry cron.EntryID
	gen   uint64
	PendingAlarm
}

// CronAlarms is an AlarmPlatform backed by one-shot cron entries.
type CronAlarms struct {
	scheduler     *SchedulerService
	notifier      Notifier
	exactAllowed  bool
	inexactWindow time.Duration

	mu     sync.Mutex
	gen    uint64
	alarms map[uint]cronAlarm
}

// NewCronAlarms builds the platform. When exactAllowed is false, ScheduleExact
// reports ErrExactAlarmDenied. Inexact triggers are pushed to the next multiple
// of inexactWindow.
func NewCronAlarms(scheduler *SchedulerService, notifier Notifier, exactAllowed bool, inexactWindow time.Duration) *CronAlarms {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &CronAlarms{
		scheduler:     scheduler,
		notifier:      notifier,
		exactAllowed:  exactAllowed,
		inexactWindow: inexactWindow,
		alarms:        make(map[uint]cronAlarm),
	}
}

func (c *CronAlarms) ScheduleExact(key uint, at time.Time, payload Payload) error {
	if !c.exactAllowed {
		return ErrExactAlarmDenied
	}
	c.arm(key, at, true, payload)
	return nil
}

func (c *CronAlarms) ScheduleInexact(key uint, at time.Time, payload Payload) error {
	c.arm(key, InexactTrigger(at, c.inexactWindow), false, payload)
	return nil
}

func (c *CronAlarms) Cancel(key uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.alarms[key]; ok {
		c.scheduler.Remove(existing.entry)
		delete(c.alarms, key)
	}
	return nil
}

// Pending returns the armed trigger for key.
func (c *CronAlarms) Pending(key uint) (PendingAlarm, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	alarm, ok := c.alarms[key]
	return alarm.PendingAlarm, ok
}

// Len is the number of armed triggers.
func (c *CronAlarms) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.alarms)
}

func (c *CronAlarms) arm(key uint, at time.Time, exact bool, payload Payload) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.alarms[key]; ok {
		c.scheduler.Remove(existing.entry)
	}

	c.gen++
	gen := c.gen
	entry := c.scheduler.ScheduleOnce(at, func() { c.fire(key, gen) })
	c.alarms[key] = cronAlarm{
		entry: entry,
		gen:   gen,
		PendingAlarm: PendingAlarm{
			Key:       key,
			TriggerAt: at,
			Exact:     exact,
			Payload:   payload,
		},
	}
}

// fire delivers the payload unless the entry was replaced or cancelled meanwhile.
func (c *CronAlarms) fire(key uint, gen uint64) {
	c.mu.Lock()
	alarm, ok := c.alarms[key]
	if !ok || alarm.gen != gen {
		c.mu.Unlock()
		return
	}
	delete(c.alarms, key)
	c.scheduler.Remove(alarm.entry)
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := c.notifier.Notify(ctx, alarm.Payload); err != nil {
		log.Printf("[warn] deliver alarm key=%d: %v", key, err)
	}
}

// InexactTrigger rounds at up to the next multiple of window.
func InexactTrigger(at time.Time, window time.Duration) time.Time {
	if window <= 0 {
		return at
	}
	rounded := at.Truncate(window)
	if rounded.Before(at) {
		rounded = rounded.Add(window)
	}
	return rounded
}
