package service

import (
	"sort"
	"time"

	"petcare/internal/model"
)

// AppointmentBuckets partitions appointments for the list and history screens.
// Other holds records whose category is not recognised, so they stay visible.
type AppointmentBuckets struct {
	UpcomingVet     []model.Appointment
	PastVet         []model.Appointment
	UpcomingVaccine []model.Appointment
	PastVaccine     []model.Appointment
	Completed       []model.Appointment
	Other           []model.Appointment
}

// Len counts every appointment across all buckets.
func (b AppointmentBuckets) Len() int {
	return len(b.UpcomingVet) + len(b.PastVet) + len(b.UpcomingVaccine) +
		len(b.PastVaccine) + len(b.Completed) + len(b.Other)
}

type ReminderBuckets struct {
	Upcoming  []model.Reminder
	Past      []model.Reminder
	Completed []model.Reminder
}

func (b ReminderBuckets) Len() int {
	return len(b.Upcoming) + len(b.Past) + len(b.Completed)
}

// IsPast reports whether at has been reached. An instant equal to now is past.
func IsPast(at, now time.Time) bool {
	return !at.After(now)
}

// timed pairs a record with its parsed instant; ok is false when parsing failed.
type timed[T any] struct {
	item T
	id   uint
	at   time.Time
	ok   bool
}

// ClassifyAppointments splits appointments into upcoming, past and completed
// buckets per category. Dates are read in now's location. Unparseable dates
// count as upcoming.
func ClassifyAppointments(appts []model.Appointment, now time.Time) AppointmentBuckets {
	loc := now.Location()
	var upVet, pastVet, upVac, pastVac, done, other []timed[model.Appointment]

	for _, a := range appts {
		at, err := a.Instant(loc)
		entry := timed[model.Appointment]{item: a, id: a.ID, at: at, ok: err == nil}

		if a.Completed {
			done = append(done, entry)
			continue
		}

		past := entry.ok && IsPast(at, now)
		switch a.Category {
		case model.CategoryVet:
			if past {
				pastVet = append(pastVet, entry)
			} else {
				upVet = append(upVet, entry)
			}
		case model.CategoryVaccination:
			if past {
				pastVac = append(pastVac, entry)
			} else {
				upVac = append(upVac, entry)
			}
		default:
			other = append(other, entry)
		}
	}

	return AppointmentBuckets{
		UpcomingVet:     sortedItems(upVet),
		PastVet:         sortedItems(pastVet),
		UpcomingVaccine: sortedItems(upVac),
		PastVaccine:     sortedItems(pastVac),
		Completed:       sortedItems(done),
		Other:           sortedItems(other),
	}
}

// ClassifyReminders is the reminder counterpart of ClassifyAppointments.
func ClassifyReminders(reminders []model.Reminder, now time.Time) ReminderBuckets {
	loc := now.Location()
	var upcoming, past, done []timed[model.Reminder]

	for _, r := range reminders {
		at, err := r.Instant(loc)
		entry := timed[model.Reminder]{item: r, id: r.ID, at: at, ok: err == nil}

		switch {
		case r.Completed:
			done = append(done, entry)
		case entry.ok && IsPast(at, now):
			past = append(past, entry)
		default:
			upcoming = append(upcoming, entry)
		}
	}

	return ReminderBuckets{
		Upcoming:  sortedItems(upcoming),
		Past:      sortedItems(past),
		Completed: sortedItems(done),
	}
}

// sortedItems orders entries by instant, putting unparseable ones last by id.
func sortedItems[T any](entries []timed[T]) []T {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		switch {
		case a.ok && b.ok:
			if a.at.Equal(b.at) {
				return a.id < b.id
			}
			return a.at.Before(b.at)
		case a.ok != b.ok:
			return a.ok
		default:
			return a.id < b.id
		}
	})

	out := make([]T, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.item)
	}
	return out
}
