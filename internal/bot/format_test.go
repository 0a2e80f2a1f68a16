package bot

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"petcare/internal/model"
	"petcare/internal/service"
	"petcare/internal/viewmodel"
)

func TestParseRemindArgs(t *testing.T) {
	r, err := parseRemindArgs("2025-12-31 9:05 Give the   pill", time.UTC)
	require.NoError(t, err)
	require.Equal(t, "2025-12-31 09:05", r.DueAt)
	require.Equal(t, "Give the pill", r.Title)

	for _, bad := range []string{"", "2025-12-31 10:00", "31.12.2025 10:00 pill", "2025-12-31 25:00 pill"} {
		_, err := parseRemindArgs(bad, time.UTC)
		require.Error(t, err, bad)
	}
}

func TestParsePetArgs(t *testing.T) {
	p, err := parsePetArgs(" Luna ; cat ;Siamese; 3")
	require.NoError(t, err)
	require.Equal(t, model.Pet{Name: "Luna", Species: "cat", Breed: "Siamese", Age: "3"}, p)

	p, err = parsePetArgs("Rex")
	require.NoError(t, err)
	require.Equal(t, "Rex", p.Name)
	require.Empty(t, p.Species)

	_, err = parsePetArgs(" ;dog")
	require.Error(t, err)
}

func TestParseTarget(t *testing.T) {
	kind, id, err := parseTarget("r 3")
	require.NoError(t, err)
	require.Equal(t, targetReminder, kind)
	require.Equal(t, uint(3), id)

	kind, id, err = parseTarget("appointment #12")
	require.NoError(t, err)
	require.Equal(t, targetAppointment, kind)
	require.Equal(t, uint(12), id)

	for _, bad := range []string{"", "r", "x 1", "a 0", "a -2", "r 1 2"} {
		_, _, err := parseTarget(bad)
		require.Error(t, err, bad)
	}
}

func TestParseCallbackTarget(t *testing.T) {
	kind, id, err := parseCallbackTarget(cbConfirmPrefix+targetAppointment.code()+":7", cbConfirmPrefix)
	require.NoError(t, err)
	require.Equal(t, targetAppointment, kind)
	require.Equal(t, uint(7), id)

	_, _, err = parseCallbackTarget(cbDonePrefix+"r7", cbDonePrefix)
	require.Error(t, err)
}

func TestNormalizeClock(t *testing.T) {
	require.Equal(t, "09:05", normalizeClock(" 9:5 "))
	require.Equal(t, "later", normalizeClock("later"))
}

func TestInputHelpers(t *testing.T) {
	require.True(t, isSkipInput("-"))
	require.True(t, isSkipInput(btnSkip))
	require.False(t, isSkipInput("Dr. Ana"))
	require.True(t, isCancelDialogInput(btnCancelDialog))
	require.False(t, isCancelDialogInput("cancel my subscription"))
}

func TestItemKeyboard(t *testing.T) {
	_, ok := itemKeyboard(targetReminder, nil)
	require.False(t, ok)

	ids := make([]uint, 15)
	for i := range ids {
		ids[i] = uint(i + 1)
	}
	markup, ok := itemKeyboard(targetReminder, ids)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 10)
	require.Equal(t, "done:r:1", *markup.InlineKeyboard[0][0].CallbackData)
	require.Equal(t, "delete:r:1", *markup.InlineKeyboard[0][1].CallbackData)
}

func TestFormatting(t *testing.T) {
	buckets := service.AppointmentBuckets{
		UpcomingVet: []model.Appointment{{ID: 1, Category: model.CategoryVet, ProviderName: "Dr. <Ana>", Date: "2025-06-20", Time: "09:00"}},
		Other:       []model.Appointment{{ID: 4, Category: "grooming"}},
	}
	text := formatAppointmentBuckets(buckets)
	require.Contains(t, text, "Upcoming vet visits")
	require.Contains(t, text, "Dr. &lt;Ana&gt;")
	require.Contains(t, text, "grooming")
	require.Equal(t, []uint{1, 4}, openAppointmentIDs(buckets))

	require.Contains(t, formatAppointmentBuckets(service.AppointmentBuckets{}), "/newappointment")
	require.Contains(t, formatReminderBuckets(service.ReminderBuckets{}), "/remind")

	history := formatHistory(service.AppointmentBuckets{}, service.ReminderBuckets{
		Completed: []model.Reminder{{ID: 2, Title: "Pill", DueAt: "2025-06-01 08:00", Completed: true}},
	})
	require.Contains(t, history, "✅ 🔔 <b>#2</b> Pill")

	home := formatHome(viewmodel.HomeState{}, time.UTC)
	require.Contains(t, home, "nothing planned")

	pets := formatPets([]model.Pet{{ID: 1, Name: "Luna", Species: "cat"}})
	require.True(t, strings.Contains(pets, "Luna <i>(cat)</i>"))
}

func TestScheduleNotice(t *testing.T) {
	require.Empty(t, scheduleNotice(service.ScheduleResult{Outcome: service.OutcomeExact}, nil))
	require.Contains(t, scheduleNotice(service.ScheduleResult{Outcome: service.OutcomeInexact}, nil), "late")
	require.Contains(t, scheduleNotice(service.ScheduleResult{Outcome: service.OutcomeSkippedPast}, nil), "past")
	require.Contains(t, scheduleNotice(service.ScheduleResult{}, nil), "could not be set")

	err := &service.SchedulingError{ReminderID: 1, Err: errors.New("boom")}
	require.Contains(t, scheduleNotice(service.ScheduleResult{}, err), "could not be set")
}
