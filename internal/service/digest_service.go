package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"petcare/internal/model"
	"petcare/internal/repository"
)

// DigestService builds human-readable summaries for daily notifications.
type DigestService struct {
	appointments repository.Store[model.Appointment]
	reminders    repository.Store[model.Reminder]
	horizon      time.Duration
}

func NewDigestService(appointments repository.Store[model.Appointment], reminders repository.Store[model.Reminder], horizonDays int) *DigestService {
	if horizonDays <= 0 {
		horizonDays = 7
	}
	return &DigestService{
		appointments: appointments,
		reminders:    reminders,
		horizon:      time.Duration(horizonDays) * 24 * time.Hour,
	}
}

// Summary lists overdue items and everything due within the horizon.
func (s *DigestService) Summary(ctx context.Context, now time.Time) (string, error) {
	appts, err := s.appointments.GetAll(ctx)
	if err != nil {
		return "", err
	}
	reminders, err := s.reminders.GetAll(ctx)
	if err != nil {
		return "", err
	}

	apptBuckets := ClassifyAppointments(appts, now)
	reminderBuckets := ClassifyReminders(reminders, now)
	loc := now.Location()
	until := now.Add(s.horizon)

	var builder strings.Builder
	builder.WriteString("🐾 <b>Daily pet-care digest</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", now.Format("Mon, 02 Jan 2006")))

	builder.WriteString("🩺 <b>Appointments</b>\n")
	upcoming := append(append([]model.Appointment{}, apptBuckets.UpcomingVet...), apptBuckets.UpcomingVaccine...)
	var listed int
	for _, appt := range SortAppointments(upcoming, loc) {
		at, err := appt.Instant(loc)
		if err == nil && at.After(until) {
			continue
		}
		builder.WriteString(formatDigestAppointment(appt, at, err == nil, now))
		listed++
	}
	if listed == 0 {
		builder.WriteString("— nothing in the next days\n")
	}

	builder.WriteString("\n⏰ <b>Reminders</b>\n")
	listed = 0
	for _, r := range reminderBuckets.Upcoming {
		at, err := r.Instant(loc)
		if err == nil && at.After(until) {
			continue
		}
		builder.WriteString(formatDigestReminder(r, at, err == nil, now))
		listed++
	}
	if listed == 0 {
		builder.WriteString("— nothing in the next days\n")
	}

	overdue := len(apptBuckets.PastVet) + len(apptBuckets.PastVaccine) + len(reminderBuckets.Past)
	if overdue > 0 {
		builder.WriteString(fmt.Sprintf("\n⚠️ %d past item(s) still open. Mark them done with /done.\n", overdue))
	}

	return strings.TrimSpace(builder.String()), nil
}

// SortAppointments orders appointments by instant, unparseable ones last.
func SortAppointments(appts []model.Appointment, loc *time.Location) []model.Appointment {
	entries := make([]timed[model.Appointment], 0, len(appts))
	for _, a := range appts {
		at, err := a.Instant(loc)
		entries = append(entries, timed[model.Appointment]{item: a, id: a.ID, at: at, ok: err == nil})
	}
	return sortedItems(entries)
}

func formatDigestAppointment(appt model.Appointment, at time.Time, parsed bool, now time.Time) string {
	var sb strings.Builder

	icon := "🟢"
	if parsed && at.Sub(now) <= 48*time.Hour {
		icon = "⏳"
	}
	sb.WriteString(fmt.Sprintf("%s %s", icon, html.EscapeString(appt.Category.Label())))
	if name := strings.TrimSpace(appt.ProviderName); name != "" {
		sb.WriteString(fmt.Sprintf(" · %s", html.EscapeString(name)))
	}
	if parsed {
		sb.WriteString(fmt.Sprintf("\n   📆 %s · in %s", at.Format(model.DateTimeLayout), humanizeUntil(at.Sub(now))))
	} else {
		sb.WriteString(fmt.Sprintf("\n   📆 %s %s (date not recognised)", html.EscapeString(appt.Date), html.EscapeString(appt.Time)))
	}
	if place := strings.TrimSpace(appt.LocationName); place != "" {
		sb.WriteString(fmt.Sprintf("\n   📍 %s", html.EscapeString(place)))
	}
	sb.WriteByte('\n')
	return sb.String()
}

func formatDigestReminder(r model.Reminder, at time.Time, parsed bool, now time.Time) string {
	title := html.EscapeString(strings.TrimSpace(r.Title))
	if !parsed {
		return fmt.Sprintf("🔔 %s\n   📆 %s (date not recognised)\n", title, html.EscapeString(r.DueAt))
	}
	return fmt.Sprintf("🔔 %s\n   📆 %s · in %s\n", title, at.Format(model.DateTimeLayout), humanizeUntil(at.Sub(now)))
}

func humanizeUntil(d time.Duration) string {
	switch {
	case d < time.Hour:
		return fmt.Sprintf("%d min", int(d.Minutes())+1)
	case d < 48*time.Hour:
		return fmt.Sprintf("%d h", int(d.Hours()))
	default:
		return fmt.Sprintf("%d days", int(d.Hours()/24))
	}
}
