package viewmodel

import (
	"context"
	"errors"
	"fmt"

	"petcare/internal/model"
	"petcare/internal/repository"
	"petcare/internal/service"
)

var ErrUnknownCategory = errors.New("unknown appointment category")

// AppointmentViewModel publishes appointments split by category and time.
type AppointmentViewModel struct {
	*collection[model.Appointment, *model.Appointment, service.AppointmentBuckets]
}

func NewAppointmentViewModel(ctx context.Context, store repository.Store[model.Appointment], opts ...Option) *AppointmentViewModel {
	vm := &AppointmentViewModel{
		collection: newCollection[model.Appointment, *model.Appointment]("appointments", store, service.ClassifyAppointments, opts),
	}
	vm.start(ctx)
	return vm
}

func (vm *AppointmentViewModel) Buckets() service.AppointmentBuckets {
	return vm.Snapshot()
}

// Add saves a new appointment. Categories other than vet and vaccination are rejected.
func (vm *AppointmentViewModel) Add(ctx context.Context, a *model.Appointment) error {
	if !a.Category.Valid() {
		return fmt.Errorf("add appointment: %w: %q", ErrUnknownCategory, a.Category)
	}
	return vm.insert(ctx, a)
}

func (vm *AppointmentViewModel) Update(ctx context.Context, a *model.Appointment) error {
	if !a.Category.Valid() {
		return fmt.Errorf("update appointment %d: %w: %q", a.ID, ErrUnknownCategory, a.Category)
	}
	return vm.update(ctx, a)
}

func (vm *AppointmentViewModel) Delete(ctx context.Context, a model.Appointment) error {
	return vm.remove(ctx, &a)
}

func (vm *AppointmentViewModel) MarkCompleted(ctx context.Context, a model.Appointment, done bool) error {
	a.Completed = done
	return vm.update(ctx, &a)
}

func (vm *AppointmentViewModel) Find(id uint) (model.Appointment, bool) {
	b := vm.Snapshot()
	groups := [][]model.Appointment{b.UpcomingVet, b.UpcomingVaccine, b.PastVet, b.PastVaccine, b.Completed, b.Other}
	for _, group := range groups {
		for _, a := range group {
			if a.ID == id {
				return a, true
			}
		}
	}
	return model.Appointment{}, false
}
