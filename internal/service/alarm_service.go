package service

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"petcare/internal/model"
)

const (
	defaultAlarmTitle   = "Reminder"
	defaultAlarmMessage = "You have a pet care task!"
)

// ErrExactAlarmDenied is returned by a platform that may not fire at a precise instant.
var ErrExactAlarmDenied = errors.New("exact alarms are not permitted")

// Payload is what the user sees when an alarm fires.
type Payload struct {
	Title   string
	Message string
}

// AlarmPlatform is the timed-trigger subsystem. Key is the dedup key: scheduling
// an existing key replaces its trigger.
type AlarmPlatform interface {
	ScheduleExact(key uint, at time.Time, payload Payload) error
	ScheduleInexact(key uint, at time.Time, payload Payload) error
	Cancel(key uint) error
}

// Outcome is what happened to a schedule request. The zero value is OutcomeFailed.
type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomeExact
	OutcomeInexact
	OutcomeSkippedPast
	OutcomeUnparseable
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFailed:
		return "failed"
	case OutcomeExact:
		return "exact"
	case OutcomeInexact:
		return "inexact"
	case OutcomeSkippedPast:
		return "skipped: in the past"
	case OutcomeUnparseable:
		return "skipped: unparseable due time"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// ScheduleResult describes what Schedule did.
type ScheduleResult struct {
	ReminderID uint
	Outcome    Outcome
	TriggerAt  time.Time
}

// Scheduled reports whether a trigger is now armed.
func (r ScheduleResult) Scheduled() bool {
	return r.Outcome == OutcomeExact || r.Outcome == OutcomeInexact
}

// SchedulingError wraps an unexpected platform failure. It never invalidates
// the reminder it was raised for.
type SchedulingError struct {
	ReminderID uint
	Err        error
}

func (e *SchedulingError) Error() string {
	return fmt.Sprintf("schedule reminder %d: %v", e.ReminderID, e.Err)
}

func (e *SchedulingError) Unwrap() error {
	return e.Err
}

// Clock returns the current time.
type Clock func() time.Time

// AlarmService arms and disarms reminder alarms on a platform.
type AlarmService struct {
	platform AlarmPlatform
	now      Clock
}

type AlarmOption func(*AlarmService)

func WithClock(now Clock) AlarmOption {
	return func(s *AlarmService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewAlarmService(platform AlarmPlatform, opts ...AlarmOption) *AlarmService {
	s := &AlarmService{platform: platform, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule arms a one-shot alarm for reminderID at dueAt. Exact precision is
// tried first; a denied exact alarm degrades to an inexact one.
func (s *AlarmService) Schedule(reminderID uint, title string, dueAt time.Time) (result ScheduleResult, err error) {
	result = ScheduleResult{ReminderID: reminderID, Outcome: OutcomeFailed, TriggerAt: dueAt}

	if IsPast(dueAt, s.now()) {
		result.Outcome = OutcomeSkippedPast
		log.Printf("[info] alarm skipped reminder=%d due=%s: in the past", reminderID, model.FormatDateTime(dueAt))
		return result, nil
	}

	defer func() {
		if r := recover(); r != nil {
			result.Outcome = OutcomeFailed
			err = &SchedulingError{ReminderID: reminderID, Err: fmt.Errorf("platform panic: %v", r)}
			log.Printf("[warn] %v", err)
		}
	}()

	payload := NewPayload(title, dueAt)

	err = s.platform.ScheduleExact(reminderID, dueAt, payload)
	switch {
	case err == nil:
		result.Outcome = OutcomeExact
		log.Printf("[info] alarm scheduled reminder=%d at=%s precision=exact", reminderID, model.FormatDateTime(dueAt))
		return result, nil
	case errors.Is(err, ErrExactAlarmDenied):
		log.Printf("[warn] exact alarm denied for reminder=%d, falling back to inexact", reminderID)
	default:
		schedErr := &SchedulingError{ReminderID: reminderID, Err: err}
		log.Printf("[warn] %v", schedErr)
		return result, schedErr
	}

	if err := s.platform.ScheduleInexact(reminderID, dueAt, payload); err != nil {
		schedErr := &SchedulingError{ReminderID: reminderID, Err: err}
		log.Printf("[warn] %v", schedErr)
		return result, schedErr
	}
	result.Outcome = OutcomeInexact
	log.Printf("[info] alarm scheduled reminder=%d at=%s precision=inexact", reminderID, model.FormatDateTime(dueAt))
	return result, nil
}

// Cancel disarms the alarm keyed by reminderID. It is safe when nothing is armed.
func (s *AlarmService) Cancel(reminderID uint) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[warn] cancel alarm reminder=%d: platform panic: %v", reminderID, r)
		}
	}()
	if err := s.platform.Cancel(reminderID); err != nil {
		log.Printf("[warn] cancel alarm reminder=%d: %v", reminderID, err)
		return
	}
	log.Printf("[info] alarm cancelled reminder=%d", reminderID)
}

// NewPayload builds the notification body for a reminder.
func NewPayload(title string, dueAt time.Time) Payload {
	title = strings.TrimSpace(title)
	if title == "" {
		title = defaultAlarmTitle
	}
	message := defaultAlarmMessage
	if !dueAt.IsZero() {
		message = fmt.Sprintf("%s Due %s.", defaultAlarmMessage, model.FormatDateTime(dueAt))
	}
	return Payload{Title: title, Message: message}
}
