package viewmodel

import (
	"context"
	"log"
	"time"

	"petcare/internal/model"
	"petcare/internal/repository"
	"petcare/internal/service"
)

// AlarmScheduler is the part of service.AlarmService the reminder screen uses.
type AlarmScheduler interface {
	Schedule(reminderID uint, title string, dueAt time.Time) (service.ScheduleResult, error)
	Cancel(reminderID uint)
}

// ReminderViewModel publishes reminders split into upcoming, past and completed.
type ReminderViewModel struct {
	*collection[model.Reminder, *model.Reminder, service.ReminderBuckets]
	alarms AlarmScheduler
}

// NewReminderViewModel starts loading reminders from store in the background.
// store may be nil, in which case reminders are only kept in memory.
func NewReminderViewModel(ctx context.Context, store repository.Store[model.Reminder], alarms AlarmScheduler, opts ...Option) *ReminderViewModel {
	vm := &ReminderViewModel{
		collection: newCollection[model.Reminder, *model.Reminder]("reminders", store, service.ClassifyReminders, opts),
		alarms:     alarms,
	}
	vm.start(ctx)
	return vm
}

func (vm *ReminderViewModel) Buckets() service.ReminderBuckets {
	return vm.Snapshot()
}

// Add saves a new reminder. The store assigns r.ID. Scheduling is left to the caller.
func (vm *ReminderViewModel) Add(ctx context.Context, r *model.Reminder) error {
	return vm.insert(ctx, r)
}

func (vm *ReminderViewModel) Update(ctx context.Context, r *model.Reminder) error {
	return vm.update(ctx, r)
}

func (vm *ReminderViewModel) Delete(ctx context.Context, r model.Reminder) error {
	return vm.remove(ctx, &r)
}

// MarkCompleted flips the completed flag of r and saves it.
func (vm *ReminderViewModel) MarkCompleted(ctx context.Context, r model.Reminder, done bool) error {
	r.Completed = done
	return vm.update(ctx, &r)
}

// DeleteAndCancel disarms the reminder's alarm and then deletes the record.
// The alarm goes first so that it can never fire for a record that is gone.
func (vm *ReminderViewModel) DeleteAndCancel(ctx context.Context, r model.Reminder) error {
	if vm.alarms != nil {
		vm.alarms.Cancel(r.ID)
	}
	return vm.remove(ctx, &r)
}

// Schedule arms the alarm for a saved reminder. Reminders without an id or
// with an unparseable due time report OutcomeUnparseable and never reach the
// scheduler.
func (vm *ReminderViewModel) Schedule(r model.Reminder) (service.ScheduleResult, error) {
	result := service.ScheduleResult{ReminderID: r.ID, Outcome: service.OutcomeUnparseable}
	if vm.alarms == nil || r.ID == 0 {
		return result, nil
	}
	dueAt, err := r.Instant(vm.now().Location())
	if err != nil {
		log.Printf("[warn] reminder %d not scheduled: %v", r.ID, err)
		return result, nil
	}
	return vm.alarms.Schedule(r.ID, r.Title, dueAt)
}

// Cancel disarms the reminder's alarm without touching the record.
func (vm *ReminderViewModel) Cancel(id uint) {
	if vm.alarms != nil {
		vm.alarms.Cancel(id)
	}
}

// Find looks a reminder up in the current snapshot.
func (vm *ReminderViewModel) Find(id uint) (model.Reminder, bool) {
	b := vm.Snapshot()
	for _, group := range [][]model.Reminder{b.Upcoming, b.Past, b.Completed} {
		for _, r := range group {
			if r.ID == id {
				return r, true
			}
		}
	}
	return model.Reminder{}, false
}

// RescheduleUpcoming re-arms every upcoming reminder, e.g. after a restart.
func (vm *ReminderViewModel) RescheduleUpcoming() int {
	var armed int
	for _, r := range vm.Snapshot().Upcoming {
		result, err := vm.Schedule(r)
		if err == nil && result.Scheduled() {
			armed++
		}
	}
	return armed
}
