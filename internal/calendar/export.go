// Package calendar renders the upcoming agenda as an iCalendar feed so it can be
// imported into a phone calendar.
package calendar

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"petcare/internal/model"
	"petcare/internal/service"
)

const (
	productID           = "-//petcare//agenda//EN"
	appointmentDuration = time.Hour
)

// Options tune the export.
type Options struct {
	// AppointmentLead is how long before an appointment its alarm goes off.
	AppointmentLead time.Duration
}

// Export builds a calendar with one event per open, upcoming appointment and
// reminder. Completed, past and unparseable records are left out.
func Export(appts []model.Appointment, reminders []model.Reminder, now time.Time, opts Options) string {
	if opts.AppointmentLead <= 0 {
		opts.AppointmentLead = time.Hour
	}
	loc := now.Location()

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName("Pet care")

	buckets := service.ClassifyAppointments(appts, now)
	upcoming := append(append([]model.Appointment{}, buckets.UpcomingVet...), buckets.UpcomingVaccine...)
	for _, appt := range service.SortAppointments(upcoming, loc) {
		start, err := appt.Instant(loc)
		if err != nil {
			continue
		}
		event := cal.AddEvent(fmt.Sprintf("appointment-%d@petcare", appt.ID))
		event.SetDtStampTime(now)
		event.SetStartAt(start)
		event.SetEndAt(start.Add(appointmentDuration))
		event.SetSummary(appointmentSummary(appt))
		if where := appointmentLocation(appt); where != "" {
			event.SetLocation(where)
		}
		addDisplayAlarm(event, triggerBefore(opts.AppointmentLead), appointmentSummary(appt))
	}

	for _, r := range service.ClassifyReminders(reminders, now).Upcoming {
		due, err := r.Instant(loc)
		if err != nil {
			continue
		}
		payload := service.NewPayload(r.Title, due)
		event := cal.AddEvent(fmt.Sprintf("reminder-%d@petcare", r.ID))
		event.SetDtStampTime(now)
		event.SetStartAt(due)
		event.SetEndAt(due)
		event.SetSummary(payload.Title)
		event.SetDescription(payload.Message)
		addDisplayAlarm(event, "PT0M", payload.Title)
	}

	return cal.Serialize()
}

func addDisplayAlarm(event *ical.VEvent, trigger, text string) {
	alarm := event.AddAlarm()
	alarm.SetAction(ical.ActionDisplay)
	alarm.SetTrigger(trigger)
	alarm.SetProperty(ical.ComponentPropertyDescription, text)
}

// triggerBefore formats a negative ISO 8601 duration such as -PT1H30M.
func triggerBefore(d time.Duration) string {
	minutes := int(d.Minutes())
	hours, minutes := minutes/60, minutes%60
	switch {
	case hours > 0 && minutes > 0:
		return fmt.Sprintf("-PT%dH%dM", hours, minutes)
	case hours > 0:
		return fmt.Sprintf("-PT%dH", hours)
	default:
		return fmt.Sprintf("-PT%dM", minutes)
	}
}

func appointmentSummary(appt model.Appointment) string {
	summary := appt.Category.Label()
	if name := strings.TrimSpace(appt.ProviderName); name != "" {
		summary += ": " + name
	}
	return summary
}

func appointmentLocation(appt model.Appointment) string {
	parts := make([]string, 0, 2)
	for _, p := range []string{appt.LocationName, appt.Address} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
