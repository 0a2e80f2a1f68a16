package viewmodel

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"petcare/internal/model"
	"petcare/internal/repository"
	"petcare/internal/service"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func fixedNow() Option {
	return WithNow(func() time.Time { return testNow })
}

func waitLoaded(t *testing.T, loaded <-chan struct{}) {
	t.Helper()
	select {
	case <-loaded:
	case <-time.After(5 * time.Second):
		t.Fatal("initial load did not finish")
	}
}

func reminderIDs(reminders []model.Reminder) []uint {
	ids := make([]uint, 0, len(reminders))
	for _, r := range reminders {
		ids = append(ids, r.ID)
	}
	return ids
}

// eventLog collects calls from several fakes in the order they happened.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(event string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

type fakeAlarms struct {
	log       *eventLog
	result    service.ScheduleResult
	err       error
	scheduled []time.Time
}

func (f *fakeAlarms) Schedule(id uint, _ string, dueAt time.Time) (service.ScheduleResult, error) {
	f.log.add("schedule")
	f.scheduled = append(f.scheduled, dueAt)
	result := f.result
	result.ReminderID = id
	return result, f.err
}

func (f *fakeAlarms) Cancel(uint) {
	f.log.add("cancel")
}

type loggingStore struct {
	*repository.MemoryStore[model.Reminder, *model.Reminder]
	log *eventLog
}

func (s loggingStore) Delete(ctx context.Context, r *model.Reminder) error {
	s.log.add("delete")
	return s.MemoryStore.Delete(ctx, r)
}

func TestReminderViewModelInitialLoad(t *testing.T) {
	store := repository.NewMemoryStore[model.Reminder](
		model.Reminder{ID: 1, Title: "past", DueAt: "2025-06-01 10:00"},
		model.Reminder{ID: 2, Title: "next", DueAt: "2025-06-20 10:00"},
		model.Reminder{ID: 3, Title: "done", DueAt: "2025-06-20 10:00", Completed: true},
	)
	vm := NewReminderViewModel(context.Background(), store, nil, fixedNow())
	waitLoaded(t, vm.Loaded())
	require.NoError(t, vm.LoadErr())

	b := vm.Buckets()
	require.Equal(t, []uint{2}, reminderIDs(b.Upcoming))
	require.Equal(t, []uint{1}, reminderIDs(b.Past))
	require.Equal(t, []uint{3}, reminderIDs(b.Completed))
}

func TestReminderViewModelLoadError(t *testing.T) {
	store := repository.NewMemoryStore[model.Reminder]()
	store.FailNext(repository.OpGetAll, errors.New("locked"))

	vm := NewReminderViewModel(context.Background(), store, nil, fixedNow())
	waitLoaded(t, vm.Loaded())
	require.Error(t, vm.LoadErr())
	require.Zero(t, vm.Buckets().Len())
}

func TestReminderViewModelMutationsRepublish(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore[model.Reminder]()
	vm := NewReminderViewModel(ctx, store, nil, fixedNow())
	waitLoaded(t, vm.Loaded())

	var published []service.ReminderBuckets
	unsubscribe := vm.Subscribe(func(b service.ReminderBuckets) {
		published = append(published, b)
	})
	defer unsubscribe()

	r := model.Reminder{Title: "Pill", DueAt: "2025-06-16 08:00"}
	require.NoError(t, vm.Add(ctx, &r))
	require.NotZero(t, r.ID)
	require.Equal(t, []uint{r.ID}, reminderIDs(vm.Buckets().Upcoming))

	require.NoError(t, vm.MarkCompleted(ctx, r, true))
	require.Equal(t, []uint{r.ID}, reminderIDs(vm.Buckets().Completed))
	require.Empty(t, vm.Buckets().Upcoming)

	require.NoError(t, vm.Delete(ctx, r))
	require.Zero(t, vm.Buckets().Len())

	require.Len(t, published, 3)
	require.Equal(t, vm.Buckets(), published[2])
}

func TestReminderViewModelStoreFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore[model.Reminder](model.Reminder{ID: 1, Title: "a", DueAt: "2025-06-20 10:00"})
	vm := NewReminderViewModel(ctx, store, nil, fixedNow())
	waitLoaded(t, vm.Loaded())

	before := vm.Buckets()
	var publishes int
	vm.Subscribe(func(service.ReminderBuckets) { publishes++ })

	store.FailNext(repository.OpInsert, errors.New("disk full"))
	err := vm.Add(ctx, &model.Reminder{Title: "b", DueAt: "2025-06-21 10:00"})
	require.ErrorContains(t, err, "disk full")

	err = vm.Update(ctx, &model.Reminder{ID: 77, Title: "ghost"})
	require.ErrorIs(t, err, repository.ErrNotFound)

	require.Equal(t, before, vm.Buckets())
	require.Zero(t, publishes)
}

func TestReminderViewModelWithoutStore(t *testing.T) {
	ctx := context.Background()
	vm := NewReminderViewModel(ctx, nil, nil, fixedNow())
	waitLoaded(t, vm.Loaded())

	first := model.Reminder{Title: "one", DueAt: "2025-06-16 10:00"}
	second := model.Reminder{Title: "two", DueAt: "2025-06-10 10:00"}
	require.NoError(t, vm.Add(ctx, &first))
	require.NoError(t, vm.Add(ctx, &second))
	require.Equal(t, uint(1), first.ID)
	require.Equal(t, uint(2), second.ID)

	b := vm.Buckets()
	require.Equal(t, []uint{1}, reminderIDs(b.Upcoming))
	require.Equal(t, []uint{2}, reminderIDs(b.Past))

	require.ErrorIs(t, vm.Update(ctx, &model.Reminder{ID: 9}), repository.ErrNotFound)
	require.NoError(t, vm.Delete(ctx, first))
	require.Equal(t, 1, vm.Buckets().Len())
}

func TestReminderViewModelDeleteAndCancelOrder(t *testing.T) {
	ctx := context.Background()
	events := &eventLog{}
	store := loggingStore{
		MemoryStore: repository.NewMemoryStore[model.Reminder](model.Reminder{ID: 4, Title: "x", DueAt: "2025-06-20 10:00"}),
		log:         events,
	}
	vm := NewReminderViewModel(ctx, store, &fakeAlarms{log: events}, fixedNow())
	waitLoaded(t, vm.Loaded())

	r, ok := vm.Find(4)
	require.True(t, ok)
	require.NoError(t, vm.DeleteAndCancel(ctx, r))
	require.Equal(t, []string{"cancel", "delete"}, events.all())
	require.Zero(t, vm.Buckets().Len())
}

func TestReminderViewModelSchedule(t *testing.T) {
	ctx := context.Background()
	alarms := &fakeAlarms{log: &eventLog{}, result: service.ScheduleResult{Outcome: service.OutcomeExact}}
	vm := NewReminderViewModel(ctx, nil, alarms, fixedNow())
	waitLoaded(t, vm.Loaded())

	result, err := vm.Schedule(model.Reminder{Title: "unsaved", DueAt: "2025-06-20 10:00"})
	require.NoError(t, err)
	require.Equal(t, service.OutcomeUnparseable, result.Outcome)

	result, err = vm.Schedule(model.Reminder{ID: 3, DueAt: "later"})
	require.NoError(t, err)
	require.Equal(t, service.OutcomeUnparseable, result.Outcome)
	require.Empty(t, alarms.scheduled)

	result, err = vm.Schedule(model.Reminder{ID: 3, DueAt: "2025-06-20 10:00"})
	require.NoError(t, err)
	require.Equal(t, service.OutcomeExact, result.Outcome)
	require.Equal(t, []time.Time{time.Date(2025, 6, 20, 10, 0, 0, 0, time.UTC)}, alarms.scheduled)
}

func TestReminderViewModelWithCronAlarms(t *testing.T) {
	ctx := context.Background()
	clock := func() time.Time { return testNow }
	platform := service.NewCronAlarms(service.NewSchedulerService(time.UTC), service.LogNotifier{}, false, 5*time.Minute)
	vm := NewReminderViewModel(ctx, repository.NewMemoryStore[model.Reminder](
		model.Reminder{ID: 1, Title: "old", DueAt: "2025-06-01 10:00"},
		model.Reminder{ID: 2, Title: "soon", DueAt: "2025-06-15 13:02"},
		model.Reminder{ID: 3, Title: "broken", DueAt: "n/a"},
	), service.NewAlarmService(platform, service.WithClock(clock)), WithNow(clock))
	waitLoaded(t, vm.Loaded())

	require.Equal(t, 1, vm.RescheduleUpcoming())
	require.Equal(t, 1, vm.RescheduleUpcoming())
	pending, ok := platform.Pending(2)
	require.True(t, ok)
	require.False(t, pending.Exact)
	require.Equal(t, time.Date(2025, 6, 15, 13, 5, 0, 0, time.UTC), pending.TriggerAt)

	r, ok := vm.Find(2)
	require.True(t, ok)
	require.NoError(t, vm.DeleteAndCancel(ctx, r))
	require.Zero(t, platform.Len())
}

func TestAppointmentViewModel(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore[model.Appointment]()
	vm := NewAppointmentViewModel(ctx, store, fixedNow())
	waitLoaded(t, vm.Loaded())

	vet := model.Appointment{Category: model.CategoryVet, ProviderName: "Dr. Ana", Date: "2025-06-20", Time: "09:00"}
	shot := model.Appointment{Category: model.CategoryVaccination, Date: "2025-06-01", Time: "09:00"}
	require.NoError(t, vm.Add(ctx, &vet))
	require.NoError(t, vm.Add(ctx, &shot))

	b := vm.Buckets()
	require.Len(t, b.UpcomingVet, 1)
	require.Len(t, b.PastVaccine, 1)

	err := vm.Add(ctx, &model.Appointment{Category: "grooming", Date: "2025-06-20", Time: "09:00"})
	require.ErrorIs(t, err, ErrUnknownCategory)
	require.Equal(t, 2, vm.Buckets().Len())
	require.Equal(t, []repository.Op{repository.OpGetAll, repository.OpInsert, repository.OpGetAll, repository.OpInsert, repository.OpGetAll}, store.Calls())

	require.NoError(t, vm.MarkCompleted(ctx, shot, true))
	require.Len(t, vm.Buckets().Completed, 1)

	found, ok := vm.Find(vet.ID)
	require.True(t, ok)
	require.Equal(t, "Dr. Ana", found.ProviderName)

	require.NoError(t, vm.Delete(ctx, found))
	_, ok = vm.Find(vet.ID)
	require.False(t, ok)
}

func TestAppointmentViewModelKeepsUnknownStoredCategory(t *testing.T) {
	store := repository.NewMemoryStore[model.Appointment](model.Appointment{ID: 1, Category: "grooming", Date: "2025-06-20", Time: "09:00"})
	vm := NewAppointmentViewModel(context.Background(), store, fixedNow())
	waitLoaded(t, vm.Loaded())

	require.Len(t, vm.Buckets().Other, 1)
	_, ok := vm.Find(1)
	require.True(t, ok)
}

func TestPetViewModelSortsByName(t *testing.T) {
	ctx := context.Background()
	vm := NewPetViewModel(ctx, repository.NewMemoryStore[model.Pet](), fixedNow())
	waitLoaded(t, vm.Loaded())

	for _, name := range []string{"rex", "Bella", "luna"} {
		p := model.Pet{Name: name}
		require.NoError(t, vm.Add(ctx, &p))
	}
	var names []string
	for _, p := range vm.Pets() {
		names = append(names, p.Name)
	}
	require.Equal(t, []string{"Bella", "luna", "rex"}, names)

	luna, ok := vm.Find(3)
	require.True(t, ok)
	luna.Breed = "Siamese"
	require.NoError(t, vm.Update(ctx, &luna))
	require.NoError(t, vm.Delete(ctx, vm.Pets()[0]))
	require.Len(t, vm.Pets(), 2)
	require.Equal(t, "Siamese", vm.Pets()[0].Breed)
}

func TestHomeViewModelRefresh(t *testing.T) {
	ctx := context.Background()
	appts := repository.NewMemoryStore[model.Appointment](
		model.Appointment{ID: 1, Category: model.CategoryVaccination, Date: "2025-06-18", Time: "09:00"},
		model.Appointment{ID: 2, Category: model.CategoryVet, Date: "2025-06-16", Time: "09:00"},
		model.Appointment{ID: 3, Category: model.CategoryVet, Date: "2025-06-01", Time: "09:00"},
		model.Appointment{ID: 4, Category: model.CategoryVet, Date: "2025-06-30", Time: "09:00", Completed: true},
	)
	reminders := repository.NewMemoryStore[model.Reminder](
		model.Reminder{ID: 1, DueAt: "2025-06-15 18:00"},
		model.Reminder{ID: 2, DueAt: "2025-06-14 18:00"},
	)
	vm := NewHomeViewModel(appts, reminders, fixedNow())
	require.NoError(t, vm.Refresh(ctx))

	state := vm.Snapshot()
	require.Len(t, state.Appointments, 2)
	require.Equal(t, uint(2), state.Appointments[0].ID)
	require.Equal(t, uint(1), state.Appointments[1].ID)
	require.Equal(t, []uint{1}, reminderIDs(state.Reminders))

	reminders.FailNext(repository.OpGetAll, errors.New("offline"))
	require.Error(t, vm.Refresh(ctx))
	require.Equal(t, state, vm.Snapshot())
}

func TestHomeViewModelNilStores(t *testing.T) {
	vm := NewHomeViewModel(nil, nil)
	require.NoError(t, vm.Refresh(context.Background()))
	require.Empty(t, vm.Snapshot().Appointments)
}

func TestObservableUnsubscribe(t *testing.T) {
	var o Observable[int]
	var got []int
	unsubscribe := o.Subscribe(func(v int) { got = append(got, v) })

	o.publish(1)
	unsubscribe()
	unsubscribe()
	o.publish(2)

	require.Equal(t, []int{1}, got)
	require.Equal(t, 2, o.Snapshot())
}

func TestSubscriberReadsAndDefersMutations(t *testing.T) {
	ctx := context.Background()
	vm := NewReminderViewModel(ctx, repository.NewMemoryStore[model.Reminder](), nil, fixedNow())
	waitLoaded(t, vm.Loaded())

	followUp := make(chan error, 1)
	var seen int
	var once sync.Once
	vm.Subscribe(func(service.ReminderBuckets) {
		seen = vm.Buckets().Len()
		once.Do(func() {
			go func() {
				r := model.Reminder{Title: "follow-up", DueAt: "2025-06-21 10:00"}
				followUp <- vm.Add(ctx, &r)
			}()
		})
	})

	r := model.Reminder{Title: "first", DueAt: "2025-06-20 10:00"}
	require.NoError(t, vm.Add(ctx, &r))

	select {
	case err := <-followUp:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("mutation from a subscriber goroutine did not finish")
	}
	require.Equal(t, 2, vm.Buckets().Len())
	require.Equal(t, 2, seen)
}

func TestConcurrentMutationsAllLand(t *testing.T) {
	ctx := context.Background()
	vm := NewReminderViewModel(ctx, repository.NewMemoryStore[model.Reminder](), nil, fixedNow())

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := model.Reminder{Title: "r", DueAt: "2025-06-20 10:00"}
			errs <- vm.Add(ctx, &r)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	require.Len(t, vm.Buckets().Upcoming, 20)
}
