package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kitcasinillo/backend-server/config"
	"github.com/kitcasinillo/backend-server/internal/dispatch"
	"github.com/kitcasinillo/backend-server/internal/kafka"
	"github.com/kitcasinillo/backend-server/internal/reminder"
	"github.com/kitcasinillo/backend-server/internal/repository"
	kafkaGo "github.com/segmentio/kafka-go"
)

// The worker forwards booking lifecycle events from kafka to the automation
// receiver and runs the session reminder sweep on its own ticker, so reminders
// still go out when the API process is scaled to zero.
func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	dispatcher := dispatch.NewDispatcher(cfg.Dispatch)
	bookingRepo := repository.NewBookingRepository(pool)
	engine := reminder.NewEngine(bookingRepo, dispatcher, cfg.Reminders)

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.BookingEventsTopic)
	defer consumer.Close()

	go func() {
		if err := consumer.Consume(ctx, func(ctx context.Context, msg kafkaGo.Message) error {
			var event kafka.BookingEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				log.Printf("decode event error: %v", err)
				return nil
			}
			// Same key as the synchronous dispatch on the API path, so the
			// receiver collapses the two deliveries of one lifecycle event.
			key := event.PaymentIntentID
			if key == "" {
				key = event.BookingID
			}
			_, err := dispatcher.Send(ctx, event.Type, map[string]any{
				"bookingId":       event.BookingID,
				"paymentIntentId": event.PaymentIntentID,
				"healerEmail":     event.HealerEmail,
				"seekerEmail":     event.SeekerEmail,
				"amount":          event.Amount,
				"currency":        event.Currency,
				"sessionDate":     event.SessionDate,
			}, &dispatch.SendOptions{IdempotencyKey: key, Source: "backend:worker"})
			return err
		}); err != nil {
			log.Printf("consumer stopped: %v", err)
		}
	}()

	// A nil channel blocks forever, which is exactly what a disabled
	// reminder sweep should do.
	var reminderTicks <-chan time.Time
	if cfg.Reminders.IsEnabled() {
		ticker := time.NewTicker(time.Duration(cfg.Reminders.PollIntervalMinutes) * time.Minute)
		defer ticker.Stop()
		reminderTicks = ticker.C
	} else {
		log.Printf("session reminders disabled")
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-reminderTicks:
			result := engine.Run(ctx)
			if result.Errors > 0 {
				log.Printf("reminder sweep finished with %d errors", result.Errors)
			}
		case s := <-sig:
			log.Printf("received signal %v, shutting down", s)
			return
		}
	}
}
