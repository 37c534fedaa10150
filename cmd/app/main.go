package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kitcasinillo/backend-server/config"
	"github.com/kitcasinillo/backend-server/internal/bootstrap"
	"github.com/kitcasinillo/backend-server/internal/cache"
	"github.com/kitcasinillo/backend-server/internal/commission"
	"github.com/kitcasinillo/backend-server/internal/dedup"
	"github.com/kitcasinillo/backend-server/internal/dispatch"
	"github.com/kitcasinillo/backend-server/internal/email"
	"github.com/kitcasinillo/backend-server/internal/kafka"
	"github.com/kitcasinillo/backend-server/internal/notify"
	"github.com/kitcasinillo/backend-server/internal/reminder"
	"github.com/kitcasinillo/backend-server/internal/repository"
	"github.com/kitcasinillo/backend-server/internal/scheduler"
	"github.com/kitcasinillo/backend-server/internal/service/booking"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Booking.ProfilesCacheTTLSeconds)*time.Second)
	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	dispatcher := dispatch.NewDispatcher(cfg.Dispatch)
	sender := email.NewSender(cfg.Email)
	calculator := commission.NewCalculator(cfg.Commission)

	bookingRepo := repository.NewBookingRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)
	profileRepo := repository.NewProfileRepository(pool)

	bookingService := booking.NewBookingService(
		bookingRepo,
		calculator,
		dedup.NewInFlight(),
		*cfg,
		booking.WithPaymentLocker(redisCache),
		booking.WithDispatcher(dispatcher),
		booking.WithEventPublisher(producer),
		booking.WithEmailSender(sender),
	)

	aggregator := notify.NewAggregator(bookingRepo, messageRepo, profileRepo, sender,
		notify.WithProfileCache(redisCache))
	engine := reminder.NewEngine(bookingRepo, dispatcher, cfg.Reminders)

	sched := scheduler.NewOrchestrator(aggregator, engine, cfg.Notifications, cfg.Reminders)
	sched.Start()
	defer sched.Stop()

	if err := bootstrap.Run(ctx, cfg, bookingService, sched, dispatcher); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
