package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/saburov/airfare/config"
	"github.com/saburov/airfare/internal/bootstrap"
	"github.com/saburov/airfare/internal/cache"
	"github.com/saburov/airfare/internal/clock"
	"github.com/saburov/airfare/internal/kafka"
	"github.com/saburov/airfare/internal/ledger"
	"github.com/saburov/airfare/internal/repository"
	"github.com/saburov/airfare/internal/service/booking"
	"github.com/saburov/airfare/internal/service/flights"
	"github.com/saburov/airfare/internal/service/pricing"
	"github.com/saburov/airfare/internal/service/wallet"
	"github.com/saburov/airfare/migrations"
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

	if err := migrations.Apply(ctx, pool); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}

	clk := clock.NewSystem()
	redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Pricing.FlightsCacheTTLSeconds)*time.Second)
	attemptLedger := ledger.NewWithClient(redisCache.Client(), clk, cfg.Pricing.AttemptRetention())
	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	flightRepo := repository.NewFlightRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)
	walletRepo := repository.NewWalletRepository(pool)

	pricingService := pricing.NewPricingService(
		flightRepo,
		attemptLedger,
		clk,
		pricing.WithCache(redisCache),
		pricing.WithWindows(cfg.Pricing.IncreaseWindow(), cfg.Pricing.ResetWindow()),
		pricing.WithThreshold(cfg.Pricing.AttemptsThreshold),
		pricing.WithIncreasePercentage(cfg.Pricing.IncreasePercentage),
	)
	walletService := wallet.NewWalletService(walletRepo, cfg.Wallet.DefaultBalanceCents)
	flightService := flights.NewFlightService(flightRepo, redisCache)
	bookingService := booking.NewBookingService(
		bookingRepo,
		flightRepo,
		walletService,
		pricingService,
		walletRepo,
		booking.WithTicketEvents(producer, cfg.Kafka.TicketsTopic),
	)

	if err := bootstrap.Run(ctx, cfg, flightService, bookingService, walletService); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
