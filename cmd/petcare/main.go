package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"petcare/internal/bot"
	"petcare/internal/config"
	"petcare/internal/model"
	"petcare/internal/repository"
	"petcare/internal/service"
	"petcare/internal/viewmodel"
)

func main() {
	configPath := flag.String("config", "petcare.yaml", "path to the YAML config file (optional)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := repository.NewDB(cfg.Database.URL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	petStore := repository.NewGormStore[model.Pet](db)
	apptStore := repository.NewGormStore[model.Appointment](db)
	reminderStore := repository.NewGormStore[model.Reminder](db)

	now := func() time.Time { return time.Now().In(loc) }
	scheduler := service.NewSchedulerService(loc)

	// telegramBot is assigned before the scheduler starts, so no alarm fires without it.
	var telegramBot *bot.Bot
	notifier := service.NotifierFunc(func(ctx context.Context, payload service.Payload) error {
		return telegramBot.Notify(ctx, payload)
	})
	alarms := service.NewCronAlarms(scheduler, notifier, cfg.Alarms.Exact, cfg.Alarms.InexactWindow)
	alarmSvc := service.NewAlarmService(alarms, service.WithClock(now))

	pets := viewmodel.NewPetViewModel(ctx, petStore, viewmodel.WithNow(now))
	appointments := viewmodel.NewAppointmentViewModel(ctx, apptStore, viewmodel.WithNow(now))
	reminders := viewmodel.NewReminderViewModel(ctx, reminderStore, alarmSvc, viewmodel.WithNow(now))
	home := viewmodel.NewHomeViewModel(apptStore, reminderStore, viewmodel.WithNow(now))

	telegramBot, err = bot.New(cfg, bot.Deps{
		Pets:         pets,
		Appointments: appointments,
		Reminders:    reminders,
		Home:         home,
		Digest:       service.NewDigestService(apptStore, reminderStore, cfg.Digest.HorizonDays),
		Alarms:       alarms,
	})
	if err != nil {
		log.Fatalf("bot: %v", err)
	}

	if cfg.Digest.Enabled {
		if _, err := scheduler.ScheduleDaily(cfg.Digest.Time, func() {
			jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := telegramBot.SendDigest(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("digest: %v", err)
			}
		}); err != nil {
			log.Fatalf("schedule digest: %v", err)
		}
	}
	if cfg.Refresh.Interval > 0 {
		// Records move from upcoming to past as time goes by, so the buckets are re-derived.
		if _, err := scheduler.ScheduleInterval(cfg.Refresh.Interval, func() {
			jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			for name, refresh := range map[string]func(context.Context) error{
				"appointments": appointments.Refresh,
				"reminders":    reminders.Refresh,
				"home":         home.Refresh,
			} {
				if err := refresh(jobCtx); err != nil {
					log.Printf("refresh %s: %v", name, err)
				}
			}
		}); err != nil {
			log.Fatalf("schedule refresh: %v", err)
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Re-arm only once cron runs, so a reminder that comes due meanwhile still fires.
	<-reminders.Loaded()
	if err := reminders.LoadErr(); err != nil {
		log.Printf("[warn] reminders not loaded, alarms not re-armed: %v", err)
	} else {
		log.Printf("[info] re-armed %d reminder alarm(s)", reminders.RescheduleUpcoming())
	}

	log.Println("Pet care bot started.")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("bot stopped with error: %v", err)
	}
	log.Println("Shutdown complete.")
}
