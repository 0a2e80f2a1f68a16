package bot

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"petcare/internal/model"
	"petcare/internal/service"
	"petcare/internal/viewmodel"
)

const helpText = "🐾 <b>Pet care assistant</b>\n" +
	"• /home — what is coming up\n" +
	"• /pets — your pets, /addpet name;species;breed;age, /delpet &lt;id&gt;\n" +
	"• /appointments — vet visits and vaccinations\n" +
	"• /newappointment — add an appointment step by step\n" +
	"• /reminders — reminders\n" +
	"• /remind YYYY-MM-DD HH:MM title — add a reminder with a notification\n" +
	"• /done r|a &lt;id&gt; — mark done, /undo r|a &lt;id&gt; — reopen\n" +
	"• /delete r|a &lt;id&gt; — delete (reminders also lose their alarm)\n" +
	"• /history — completed items\n" +
	"• /alarms — armed notifications\n" +
	"• /report — today's digest\n" +
	"• /export — calendar file (.ics)\n" +
	"• /cancel — cancel the current input"

type targetKind int

const (
	targetReminder targetKind = iota
	targetAppointment
)

func (k targetKind) code() string {
	if k == targetReminder {
		return "r"
	}
	return "a"
}

func (k targetKind) label() string {
	if k == targetReminder {
		return "reminder"
	}
	return "appointment"
}

func parseKind(raw string) (targetKind, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "r", "reminder", "reminders":
		return targetReminder, true
	case "a", "appt", "appointment", "appointments":
		return targetAppointment, true
	default:
		return 0, false
	}
}

// parseTarget reads "r 3" or "a 12".
func parseTarget(args string) (targetKind, uint, error) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("expected kind and id, got %q", args)
	}
	kind, ok := parseKind(fields[0])
	if !ok {
		return 0, 0, fmt.Errorf("unknown kind %q", fields[0])
	}
	id, err := parseID(fields[1])
	if err != nil {
		return 0, 0, err
	}
	return kind, id, nil
}

func parseCallbackTarget(data, prefix string) (targetKind, uint, error) {
	rest := strings.TrimPrefix(data, prefix)
	kindCode, idPart, ok := strings.Cut(rest, ":")
	if !ok {
		return 0, 0, fmt.Errorf("malformed callback %q", data)
	}
	return parseTarget(kindCode + " " + idPart)
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimSpace(raw), "#"), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("id must be a positive number")
	}
	return uint(id), nil
}

// parseRemindArgs reads "2025-12-31 10:00 Give the pill".
func parseRemindArgs(args string, loc *time.Location) (model.Reminder, error) {
	fields := strings.Fields(args)
	if len(fields) < 3 {
		return model.Reminder{}, fmt.Errorf("expected date, time and title")
	}
	clock := normalizeClock(fields[1])
	due := fields[0] + " " + clock
	if _, err := model.ParseDateTime(due, loc); err != nil {
		return model.Reminder{}, fmt.Errorf("cannot read %q as YYYY-MM-DD HH:MM", fields[0]+" "+fields[1])
	}
	return model.Reminder{
		Title: strings.Join(fields[2:], " "),
		DueAt: due,
	}, nil
}

// parsePetArgs reads "name;species;breed;age". Only the name is required.
func parsePetArgs(args string) (model.Pet, error) {
	parts := strings.Split(args, ";")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) == 0 || parts[0] == "" {
		return model.Pet{}, fmt.Errorf("pet name is required")
	}
	field := func(i int) string {
		if i < len(parts) {
			return parts[i]
		}
		return ""
	}
	return model.Pet{
		Name:    parts[0],
		Species: field(1),
		Breed:   field(2),
		Age:     field(3),
	}, nil
}

// normalizeClock pads "9:05" to "09:05"; other input is returned trimmed.
func normalizeClock(value string) string {
	value = strings.TrimSpace(value)
	hour, minute, err := service.ParseClock(value)
	if err != nil {
		return value
	}
	return fmt.Sprintf("%02d:%02d", hour, minute)
}

func formatHome(state viewmodel.HomeState, loc *time.Location) string {
	var b strings.Builder
	b.WriteString("🏠 <b>Coming up</b>\n")
	if len(state.Appointments) == 0 && len(state.Reminders) == 0 {
		b.WriteString("— nothing planned\n")
		return strings.TrimSpace(b.String())
	}
	for _, a := range state.Appointments {
		b.WriteString(fmt.Sprintf("%s %s · %s %s\n", categoryIcon(a.Category), escape(a.Category.Label()), escape(a.Date), escape(a.Time)))
	}
	for _, r := range state.Reminders {
		b.WriteString(fmt.Sprintf("🔔 %s · %s\n", escape(r.Title), escape(r.DueAt)))
	}
	return strings.TrimSpace(b.String())
}

func formatAppointment(a model.Appointment) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s <b>#%d</b> %s · %s %s\n", categoryIcon(a.Category), a.ID, escape(a.Category.Label()), escape(a.Date), escape(a.Time)))
	if a.ProviderName != "" {
		b.WriteString(fmt.Sprintf("   👩‍⚕️ %s\n", escape(a.ProviderName)))
	}
	if a.LocationName != "" || a.Address != "" {
		place := strings.Trim(strings.Join([]string{a.LocationName, a.Address}, ", "), ", ")
		b.WriteString(fmt.Sprintf("   📍 %s\n", escape(place)))
	}
	return b.String()
}

func formatAppointmentBuckets(buckets service.AppointmentBuckets) string {
	var b strings.Builder
	writeSection := func(title string, items []model.Appointment) {
		if len(items) == 0 {
			return
		}
		b.WriteString(title + "\n")
		for _, a := range items {
			b.WriteString(formatAppointment(a))
		}
		b.WriteByte('\n')
	}
	writeSection("🩺 <b>Upcoming vet visits</b>", buckets.UpcomingVet)
	writeSection("💉 <b>Upcoming vaccinations</b>", buckets.UpcomingVaccine)
	writeSection("⚠️ <b>Past vet visits</b>", buckets.PastVet)
	writeSection("⚠️ <b>Past vaccinations</b>", buckets.PastVaccine)
	writeSection("❔ <b>Other</b>", buckets.Other)
	if b.Len() == 0 {
		return "No open appointments. Add one with /newappointment."
	}
	return strings.TrimSpace(b.String())
}

func formatReminder(r model.Reminder) string {
	return fmt.Sprintf("🔔 <b>#%d</b> %s · %s\n", r.ID, escape(r.Title), escape(r.DueAt))
}

func formatReminderBuckets(buckets service.ReminderBuckets) string {
	var b strings.Builder
	if len(buckets.Upcoming) > 0 {
		b.WriteString("⏰ <b>Upcoming</b>\n")
		for _, r := range buckets.Upcoming {
			b.WriteString(formatReminder(r))
		}
		b.WriteByte('\n')
	}
	if len(buckets.Past) > 0 {
		b.WriteString("⚠️ <b>Past</b>\n")
		for _, r := range buckets.Past {
			b.WriteString(formatReminder(r))
		}
	}
	if b.Len() == 0 {
		return "No open reminders. Add one with /remind."
	}
	return strings.TrimSpace(b.String())
}

func formatHistory(appts service.AppointmentBuckets, reminders service.ReminderBuckets) string {
	var b strings.Builder
	b.WriteString("📜 <b>Completed</b>\n")
	if len(appts.Completed) == 0 && len(reminders.Completed) == 0 {
		b.WriteString("— nothing completed yet\n")
	}
	for _, a := range appts.Completed {
		b.WriteString("✅ " + formatAppointment(a))
	}
	for _, r := range reminders.Completed {
		b.WriteString("✅ " + formatReminder(r))
	}
	return strings.TrimSpace(b.String())
}

func formatPets(pets []model.Pet) string {
	if len(pets) == 0 {
		return "No pets yet. Add one: <code>/addpet Luna;cat;Siamese;3</code>"
	}
	var b strings.Builder
	b.WriteString("🐾 <b>Pets</b>\n")
	for _, p := range pets {
		b.WriteString(fmt.Sprintf("• <b>#%d</b> %s", p.ID, escape(p.Name)))
		details := make([]string, 0, 3)
		for _, d := range []string{p.Species, p.Breed, p.Age} {
			if d = strings.TrimSpace(d); d != "" {
				details = append(details, escape(d))
			}
		}
		if len(details) > 0 {
			b.WriteString(" <i>(" + strings.Join(details, ", ") + ")</i>")
		}
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String())
}

func openAppointmentIDs(buckets service.AppointmentBuckets) []uint {
	var ids []uint
	for _, group := range [][]model.Appointment{buckets.UpcomingVet, buckets.UpcomingVaccine, buckets.PastVet, buckets.PastVaccine, buckets.Other} {
		for _, a := range group {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

// itemKeyboard adds a done/delete button pair per item, capped to keep the message small.
func itemKeyboard(kind targetKind, ids []uint) (tgbotapi.InlineKeyboardMarkup, bool) {
	const maxRows = 10
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, id := range ids {
		if len(rows) == maxRows {
			break
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("✅ #%d", id), fmt.Sprintf("%s%s:%d", cbDonePrefix, kind.code(), id)),
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("🗑 #%d", id), fmt.Sprintf("%s%s:%d", cbDeletePrefix, kind.code(), id)),
		))
	}
	if len(rows) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...), true
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelHome),
			tgbotapi.NewKeyboardButton(menuLabelReminders),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelAppts),
			tgbotapi.NewKeyboardButton(menuLabelNewAppt),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelPets),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

func categoryKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnVet),
			tgbotapi.NewKeyboardButton(btnVaccination),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSkip),
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

func isSkipInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == "-" || value == strings.ToLower(btnSkip) || value == "skip"
}

func isCancelDialogInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancelDialog) || value == "cancel input"
}

func categoryIcon(c model.Category) string {
	switch c {
	case model.CategoryVet:
		return "🩺"
	case model.CategoryVaccination:
		return "💉"
	default:
		return "❔"
	}
}

func escape(s string) string {
	return html.EscapeString(s)
}
