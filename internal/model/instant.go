package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout     = "2006-01-02"
	ClockLayout    = "15:04"
	DateTimeLayout = DateLayout + " " + ClockLayout
)

var ErrMissingDateTime = errors.New("date/time is empty")

// ParseInstant joins a calendar date and a clock time and parses them in loc.
func ParseInstant(date, clock string, loc *time.Location) (time.Time, error) {
	date, clock = strings.TrimSpace(date), strings.TrimSpace(clock)
	if date == "" || clock == "" {
		return time.Time{}, ErrMissingDateTime
	}
	return ParseDateTime(date+" "+clock, loc)
}

// ParseDateTime parses a "2006-01-02 15:04" string in loc (time.Local when nil).
func ParseDateTime(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, ErrMissingDateTime
	}
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateTimeLayout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q: %w", value, err)
	}
	return t, nil
}

// FormatDateTime renders t in the layout reminders are stored with.
func FormatDateTime(t time.Time) string {
	return t.Format(DateTimeLayout)
}
