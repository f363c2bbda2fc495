package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/saburov/airfare/config"
	"github.com/saburov/airfare/internal/clock"
	"github.com/saburov/airfare/internal/kafka"
	"github.com/saburov/airfare/internal/ledger"
	"github.com/saburov/airfare/internal/ticket"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	attemptLedger := ledger.NewRedisAttemptLedger(cfg.Redis, clock.NewSystem(), cfg.Pricing.AttemptRetention())
	renderer := ticket.NewRenderer(cfg.Worker.TicketsDir)

	consumer := kafka.NewTicketConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.TicketsTopic)
	defer consumer.Close()

	go func() {
		if err := consumer.Consume(ctx, func(ctx context.Context, event kafka.TicketEvent) error {
			if err := renderer.Render(ctx, event); err != nil {
				// Tickets are best effort; the booking stays committed.
				log.Printf("render ticket %s: %v", event.ReservationCode, err)
			}
			return nil
		}); err != nil {
			log.Printf("consumer stopped: %v", err)
		}
	}()

	reapTicker := time.NewTicker(time.Duration(cfg.Worker.ReapSweepMinutes) * time.Minute)
	defer reapTicker.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-reapTicker.C:
			if err := attemptLedger.Reap(ctx); err != nil {
				log.Printf("reap attempts error: %v", err)
			}
		case s := <-sig:
			log.Printf("received signal %v, shutting down", s)
			return
		}
	}
}
