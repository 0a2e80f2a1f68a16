package viewmodel

import (
	"context"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"petcare/internal/model"
	"petcare/internal/repository"
	"petcare/internal/service"
)

// HomeState is the agenda on the home screen: open items that are still ahead.
type HomeState struct {
	Appointments []model.Appointment
	Reminders    []model.Reminder
}

// HomeViewModel reads both stores and publishes the upcoming agenda.
type HomeViewModel struct {
	Observable[HomeState]

	appointments repository.Store[model.Appointment]
	reminders    repository.Store[model.Reminder]
	now          service.Clock

	mu sync.Mutex
}

func NewHomeViewModel(appointments repository.Store[model.Appointment], reminders repository.Store[model.Reminder], opts ...Option) *HomeViewModel {
	o := buildOptions(opts)
	return &HomeViewModel{
		appointments: appointments,
		reminders:    reminders,
		now:          o.now,
	}
}

// Refresh loads both lists concurrently and publishes them together.
func (vm *HomeViewModel) Refresh(ctx context.Context) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	var (
		appts     []model.Appointment
		reminders []model.Reminder
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if vm.appointments == nil {
			return nil
		}
		var err error
		appts, err = vm.appointments.GetAll(gctx)
		return err
	})
	g.Go(func() error {
		if vm.reminders == nil {
			return nil
		}
		var err error
		reminders, err = vm.reminders.GetAll(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		log.Printf("[warn] refresh home: %v", err)
		return err
	}

	now := vm.now()
	apptBuckets := service.ClassifyAppointments(appts, now)
	upcoming := append(append([]model.Appointment{}, apptBuckets.UpcomingVet...), apptBuckets.UpcomingVaccine...)

	vm.publish(HomeState{
		Appointments: service.SortAppointments(upcoming, now.Location()),
		Reminders:    service.ClassifyReminders(reminders, now).Upcoming,
	})
	return nil
}
