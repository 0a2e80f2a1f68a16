package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"petcare/internal/calendar"
	"petcare/internal/config"
	"petcare/internal/model"
	"petcare/internal/service"
	"petcare/internal/viewmodel"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageCategory
	stageProvider
	stageLocation
	stageAddress
	stageDate
	stageTime
)

const (
	cbDonePrefix    = "done:"
	cbDeletePrefix  = "delete:"
	cbConfirmPrefix = "confirm:"
	cbKeep          = "keep"
)

const (
	btnSkip            = "⏭️ Skip"
	btnCancelDialog    = "⏪ Cancel input"
	btnVet             = "🩺 Vet visit"
	btnVaccination     = "💉 Vaccination"
	menuLabelHome      = "🏠 Home"
	menuLabelAppts     = "🩺 Appointments"
	menuLabelReminders = "⏰ Reminders"
	menuLabelPets      = "🐾 Pets"
	menuLabelNewAppt   = "➕ New appointment"
	menuLabelHelp      = "ℹ️ Help"
)

const defaultDigestFailed = "Could not build the digest: %s"

type conversationState struct {
	stage conversationStage
	appt  model.Appointment
}

// Deps are the view-models and services the bot presents.
type Deps struct {
	Pets         *viewmodel.PetViewModel
	Appointments *viewmodel.AppointmentViewModel
	Reminders    *viewmodel.ReminderViewModel
	Home         *viewmodel.HomeViewModel
	Digest       *service.DigestService
	Alarms       *service.CronAlarms
}

// Bot aggregates Telegram API with the view-models.
type Bot struct {
	api           *tgbotapi.BotAPI
	ownerID       int64
	deps          Deps
	config        *config.Config
	loc           *time.Location
	conversations map[int64]*conversationState
	mu            sync.Mutex
}

func New(cfg *config.Config, deps Deps) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	log.Printf("[info] bot authorized on account %s", api.Self.UserName)

	return &Bot{
		api:           api,
		ownerID:       cfg.Telegram.OwnerID,
		deps:          deps,
		config:        cfg,
		loc:           loc,
		conversations: make(map[int64]*conversationState),
	}, nil
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if !b.isOwner(update.CallbackQuery.From) {
				continue
			}
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				log.Printf("handle callback: %v", err)
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() || !b.isOwner(update.Message.From) {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				log.Printf("handle message: %v", err)
			}
		}
	}

	return ctx.Err()
}

// Notify delivers a fired alarm to the owner. It makes the bot the alarm dispatcher.
func (b *Bot) Notify(_ context.Context, payload service.Payload) error {
	text := fmt.Sprintf("🔔 <b>%s</b>\n%s", escape(payload.Title), escape(payload.Message))
	return b.sendText(b.ownerID, text)
}

// SendDigest sends the daily summary to the owner.
func (b *Bot) SendDigest(ctx context.Context) error {
	text, err := b.deps.Digest.Summary(ctx, time.Now().In(b.loc))
	if err != nil {
		return err
	}
	return b.sendText(b.ownerID, text)
}

func (b *Bot) isOwner(from *tgbotapi.User) bool {
	return from != nil && from.ID == b.ownerID
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		log.Printf("[info] command /%s %s", msg.Command(), msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	if b.hasConversation(msg.From.ID) {
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(msg.Chat.ID, "I did not get that. Try /remind, /newappointment or /help.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())
	switch msg.Command() {
	case "start", "help":
		return b.sendText(msg.Chat.ID, helpText)
	case "home":
		return b.handleHome(ctx, msg.Chat.ID)
	case "pets":
		return b.sendText(msg.Chat.ID, formatPets(b.deps.Pets.Pets()))
	case "addpet":
		return b.handleAddPet(ctx, msg.Chat.ID, args)
	case "delpet":
		return b.handleDeletePet(ctx, msg.Chat.ID, args)
	case "appointments":
		return b.sendAppointments(msg.Chat.ID)
	case "newappointment":
		b.setConversation(msg.From.ID, &conversationState{stage: stageCategory})
		return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 New appointment.\n<b>Step 1:</b> vet visit or vaccination?", categoryKeyboard())
	case "reminders":
		return b.sendReminders(msg.Chat.ID)
	case "remind":
		return b.handleRemind(ctx, msg.Chat.ID, args)
	case "done":
		return b.handleComplete(ctx, msg.Chat.ID, args, true)
	case "undo":
		return b.handleComplete(ctx, msg.Chat.ID, args, false)
	case "delete":
		return b.handleDelete(ctx, msg.Chat.ID, args)
	case "history":
		return b.sendText(msg.Chat.ID, formatHistory(b.deps.Appointments.Buckets(), b.deps.Reminders.Buckets()))
	case "alarms":
		return b.handleAlarms(msg.Chat.ID)
	case "report":
		text, err := b.deps.Digest.Summary(ctx, time.Now().In(b.loc))
		if err != nil {
			return b.sendText(msg.Chat.ID, fmt.Sprintf(defaultDigestFailed, escape(err.Error())))
		}
		return b.sendText(msg.Chat.ID, text)
	case "export":
		return b.handleExport(msg.Chat.ID)
	case "cancel":
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	switch strings.TrimSpace(msg.Text) {
	case menuLabelHome:
		return true, b.handleHome(ctx, msg.Chat.ID)
	case menuLabelAppts:
		return true, b.sendAppointments(msg.Chat.ID)
	case menuLabelReminders:
		return true, b.sendReminders(msg.Chat.ID)
	case menuLabelPets:
		return true, b.sendText(msg.Chat.ID, formatPets(b.deps.Pets.Pets()))
	case menuLabelNewAppt:
		b.setConversation(msg.From.ID, &conversationState{stage: stageCategory})
		return true, b.sendWithReplyMarkup(msg.Chat.ID, "🆕 New appointment.\n<b>Step 1:</b> vet visit or vaccination?", categoryKeyboard())
	case menuLabelHelp:
		return true, b.sendText(msg.Chat.ID, helpText)
	default:
		return false, nil
	}
}

func (b *Bot) handleHome(ctx context.Context, chatID int64) error {
	if err := b.deps.Home.Refresh(ctx); err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not load the agenda: %s", escape(err.Error())))
	}
	return b.sendText(chatID, formatHome(b.deps.Home.Snapshot(), b.loc))
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageCategory:
		category := model.ParseCategory(strings.TrimSpace(strings.TrimLeft(text, "🩺💉 ")))
		if !category.Valid() {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Pick «Vet visit» or «Vaccination».", categoryKeyboard())
		}
		state.appt.Category = category
		state.stage = stageProvider
		return b.sendWithReplyMarkup(msg.Chat.ID, "👩‍⚕️ Vet or provider name?", skipKeyboard())
	case stageProvider:
		if !isSkipInput(text) {
			state.appt.ProviderName = text
		}
		state.stage = stageLocation
		return b.sendWithReplyMarkup(msg.Chat.ID, "🏥 Clinic name?", skipKeyboard())
	case stageLocation:
		if !isSkipInput(text) {
			state.appt.LocationName = text
		}
		state.stage = stageAddress
		return b.sendWithReplyMarkup(msg.Chat.ID, "📍 Address?", skipKeyboard())
	case stageAddress:
		if !isSkipInput(text) {
			state.appt.Address = text
		}
		state.stage = stageDate
		return b.sendWithReplyMarkup(msg.Chat.ID, "📆 Date as <code>2025-11-30</code>?", cancelKeyboard())
	case stageDate:
		if _, err := time.ParseInLocation(model.DateLayout, text, b.loc); err != nil {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Cannot read that date. Use <code>2025-11-30</code>.", cancelKeyboard())
		}
		state.appt.Date = text
		state.stage = stageTime
		return b.sendWithReplyMarkup(msg.Chat.ID, "🕘 Time as <code>09:30</code> (24h)?", cancelKeyboard())
	case stageTime:
		if _, _, err := service.ParseClock(text); err != nil {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Cannot read that time. Use <code>09:30</code>.", cancelKeyboard())
		}
		state.appt.Time = normalizeClock(text)
		appt := state.appt
		b.clearConversation(msg.From.ID)
		return b.finishAppointment(ctx, msg.Chat.ID, appt)
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Input reset. Start again with /newappointment.")
	}
}

func (b *Bot) finishAppointment(ctx context.Context, chatID int64, appt model.Appointment) error {
	if err := b.deps.Appointments.Add(ctx, &appt); err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not save the appointment: %s", escape(err.Error())))
	}
	log.Printf("[info] appointment created id=%d category=%s", appt.ID, appt.Category)

	msg := tgbotapi.NewMessage(chatID, "✅ <b>Appointment saved</b>\n"+formatAppointment(appt))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) handleRemind(ctx context.Context, chatID int64, args string) error {
	reminder, err := parseRemindArgs(args, b.loc)
	if err != nil {
		return b.sendText(chatID, escape(err.Error())+"\nExample: <code>/remind 2025-12-31 10:00 Deworming pill</code>")
	}
	if err := b.deps.Reminders.Add(ctx, &reminder); err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not save the reminder: %s", escape(err.Error())))
	}
	log.Printf("[info] reminder created id=%d due=%s", reminder.ID, reminder.DueAt)

	result, schedErr := b.deps.Reminders.Schedule(reminder)
	text := fmt.Sprintf("✅ Reminder <b>#%d</b> saved: %s at %s", reminder.ID, escape(reminder.Title), escape(reminder.DueAt))
	if notice := scheduleNotice(result, schedErr); notice != "" {
		text += "\n" + notice
	}
	return b.sendText(chatID, text)
}

func (b *Bot) handleAddPet(ctx context.Context, chatID int64, args string) error {
	pet, err := parsePetArgs(args)
	if err != nil {
		return b.sendText(chatID, escape(err.Error())+"\nExample: <code>/addpet Luna;cat;Siamese;3</code>")
	}
	if err := b.deps.Pets.Add(ctx, &pet); err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not save the pet: %s", escape(err.Error())))
	}
	return b.sendText(chatID, fmt.Sprintf("🐾 %s added (#%d).", escape(pet.Name), pet.ID))
}

func (b *Bot) handleDeletePet(ctx context.Context, chatID int64, args string) error {
	id, err := parseID(args)
	if err != nil {
		return b.sendText(chatID, "Give the pet id: /delpet 2")
	}
	pet, ok := b.deps.Pets.Find(id)
	if !ok {
		return b.sendText(chatID, "Pet not found.")
	}
	if err := b.deps.Pets.Delete(ctx, pet); err != nil {
		return b.sendText(chatID, fmt.Sprintf("Error: %s", escape(err.Error())))
	}
	return b.sendText(chatID, fmt.Sprintf("🗑 %s removed.", escape(pet.Name)))
}

func (b *Bot) handleComplete(ctx context.Context, chatID int64, args string, done bool) error {
	kind, id, err := parseTarget(args)
	if err != nil {
		return b.sendText(chatID, "Usage: /done r 3 or /done a 2")
	}
	return b.completeAndReport(ctx, chatID, kind, id, done)
}

func (b *Bot) completeAndReport(ctx context.Context, chatID int64, kind targetKind, id uint, done bool) error {
	switch kind {
	case targetReminder:
		r, ok := b.deps.Reminders.Find(id)
		if !ok {
			return b.sendText(chatID, "Reminder not found.")
		}
		if err := b.deps.Reminders.MarkCompleted(ctx, r, done); err != nil {
			return b.sendText(chatID, fmt.Sprintf("Error: %s", escape(err.Error())))
		}
		if done {
			b.deps.Reminders.Cancel(r.ID)
			return b.sendText(chatID, fmt.Sprintf("✅ Reminder «%s» done.", escape(r.Title)))
		}
		r.Completed = false
		result, schedErr := b.deps.Reminders.Schedule(r)
		text := fmt.Sprintf("↩️ Reminder «%s» reopened.", escape(r.Title))
		if notice := scheduleNotice(result, schedErr); notice != "" {
			text += "\n" + notice
		}
		return b.sendText(chatID, text)
	default:
		a, ok := b.deps.Appointments.Find(id)
		if !ok {
			return b.sendText(chatID, "Appointment not found.")
		}
		if err := b.deps.Appointments.MarkCompleted(ctx, a, done); err != nil {
			return b.sendText(chatID, fmt.Sprintf("Error: %s", escape(err.Error())))
		}
		if done {
			return b.sendText(chatID, fmt.Sprintf("✅ %s marked done.", escape(a.Category.Label())))
		}
		return b.sendText(chatID, fmt.Sprintf("↩️ %s reopened.", escape(a.Category.Label())))
	}
}

func (b *Bot) handleDelete(ctx context.Context, chatID int64, args string) error {
	kind, id, err := parseTarget(args)
	if err != nil {
		return b.sendText(chatID, "Usage: /delete r 3 or /delete a 2")
	}
	return b.deleteAndReport(ctx, chatID, kind, id)
}

func (b *Bot) deleteAndReport(ctx context.Context, chatID int64, kind targetKind, id uint) error {
	switch kind {
	case targetReminder:
		r, ok := b.deps.Reminders.Find(id)
		if !ok {
			return b.sendText(chatID, "Reminder not found.")
		}
		if err := b.deps.Reminders.DeleteAndCancel(ctx, r); err != nil {
			return b.sendText(chatID, fmt.Sprintf("Error: %s", escape(err.Error())))
		}
		log.Printf("[info] reminder deleted and alarm cancelled id=%d", r.ID)
		return b.sendText(chatID, fmt.Sprintf("🗑 Reminder «%s» deleted.", escape(r.Title)))
	default:
		a, ok := b.deps.Appointments.Find(id)
		if !ok {
			return b.sendText(chatID, "Appointment not found.")
		}
		if err := b.deps.Appointments.Delete(ctx, a); err != nil {
			return b.sendText(chatID, fmt.Sprintf("Error: %s", escape(err.Error())))
		}
		return b.sendText(chatID, fmt.Sprintf("🗑 %s on %s deleted.", escape(a.Category.Label()), escape(a.Date)))
	}
}

func (b *Bot) handleAlarms(chatID int64) error {
	if b.deps.Alarms == nil {
		return b.sendText(chatID, "Alarms are not available.")
	}
	var lines []string
	for _, r := range b.deps.Reminders.Buckets().Upcoming {
		if pending, ok := b.deps.Alarms.Pending(r.ID); ok {
			precision := "exact"
			if !pending.Exact {
				precision = "inexact"
			}
			lines = append(lines, fmt.Sprintf("⏰ #%d %s · %s (%s)", r.ID, escape(pending.Payload.Title),
				pending.TriggerAt.In(b.loc).Format(model.DateTimeLayout), precision))
		}
	}
	if len(lines) == 0 {
		return b.sendText(chatID, "No alarms armed.")
	}
	return b.sendText(chatID, "🔔 <b>Armed alarms</b>\n"+strings.Join(lines, "\n"))
}

func (b *Bot) handleExport(chatID int64) error {
	appts := b.deps.Appointments.Buckets()
	all := append(append([]model.Appointment{}, appts.UpcomingVet...), appts.UpcomingVaccine...)
	body := calendar.Export(all, b.deps.Reminders.Buckets().Upcoming, time.Now().In(b.loc), calendar.Options{
		AppointmentLead: b.config.Alarms.AppointmentLead,
	})
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: "petcare.ics", Bytes: []byte(body)})
	doc.Caption = "📅 Upcoming appointments and reminders"
	_, err := b.api.Send(doc)
	return err
}

func (b *Bot) sendAppointments(chatID int64) error {
	buckets := b.deps.Appointments.Buckets()
	msg := tgbotapi.NewMessage(chatID, formatAppointmentBuckets(buckets))
	msg.ParseMode = tgbotapi.ModeHTML
	if markup, ok := itemKeyboard(targetAppointment, openAppointmentIDs(buckets)); ok {
		msg.ReplyMarkup = markup
	}
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendReminders(chatID int64) error {
	buckets := b.deps.Reminders.Buckets()
	msg := tgbotapi.NewMessage(chatID, formatReminderBuckets(buckets))
	msg.ParseMode = tgbotapi.ModeHTML
	ids := make([]uint, 0, len(buckets.Upcoming)+len(buckets.Past))
	for _, r := range append(append([]model.Reminder{}, buckets.Upcoming...), buckets.Past...) {
		ids = append(ids, r.ID)
	}
	if markup, ok := itemKeyboard(targetReminder, ids); ok {
		msg.ReplyMarkup = markup
	}
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Printf("answer callback: %v", err)
	}
	if cb.Message == nil {
		return nil
	}
	chatID := cb.Message.Chat.ID

	switch {
	case cb.Data == cbKeep:
		return b.sendText(chatID, "Kept.")
	case strings.HasPrefix(cb.Data, cbDonePrefix):
		kind, id, err := parseCallbackTarget(cb.Data, cbDonePrefix)
		if err != nil {
			return err
		}
		return b.completeAndReport(ctx, chatID, kind, id, true)
	case strings.HasPrefix(cb.Data, cbDeletePrefix):
		kind, id, err := parseCallbackTarget(cb.Data, cbDeletePrefix)
		if err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("Delete %s #%d?", kind.label(), id))
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Delete", cbConfirmPrefix+kind.code()+":"+fmt.Sprint(id)),
			tgbotapi.NewInlineKeyboardButtonData("↩️ Keep", cbKeep),
		))
		_, err = b.api.Send(msg)
		return err
	case strings.HasPrefix(cb.Data, cbConfirmPrefix):
		kind, id, err := parseCallbackTarget(cb.Data, cbConfirmPrefix)
		if err != nil {
			return err
		}
		return b.deleteAndReport(ctx, chatID, kind, id)
	default:
		return fmt.Errorf("unknown callback %q", cb.Data)
	}
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) hasConversation(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, ok := b.conversations[userID]
	return ok && state != nil && state.stage != stageNone
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}

// scheduleNotice is the non-blocking line shown after a save when the alarm
// did not go as asked. The reminder itself is already stored.
func scheduleNotice(result service.ScheduleResult, err error) string {
	var schedErr *service.SchedulingError
	switch {
	case errors.As(err, &schedErr):
		return "⚠️ Saved, but the alarm could not be set. You will not get a notification."
	case err != nil:
		return "⚠️ Saved, but the alarm could not be set."
	}
	switch result.Outcome {
	case service.OutcomeFailed:
		return "⚠️ Saved, but the alarm could not be set."
	case service.OutcomeInexact:
		return "🔕 Exact alarms are off, the notification may come a few minutes late."
	case service.OutcomeSkippedPast:
		return "ℹ️ The time is already past, no alarm set."
	case service.OutcomeUnparseable:
		return "ℹ️ The due time could not be read, no alarm set."
	default:
		return ""
	}
}
