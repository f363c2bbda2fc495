package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/saburov/airfare/api"
	"github.com/saburov/airfare/config"
	"github.com/saburov/airfare/internal/service/booking"
	"github.com/saburov/airfare/internal/service/flights"
	"github.com/saburov/airfare/internal/service/wallet"
	"github.com/saburov/airfare/internal/ticket"
)

// Run starts the HTTP server and blocks until the context is canceled or the
// server fails.
func Run(ctx context.Context, cfg *config.Config, flightSvc flights.FlightUseCase, bookingSvc booking.BookingUseCase, walletSvc wallet.WalletUseCase) error {
	router := gin.Default()

	tickets := ticket.NewRenderer(cfg.Worker.TicketsDir)

	api.NewFlightHandler(flightSvc).Register(router.Group("/api/flights"))
	api.NewBookingHandler(bookingSvc, tickets).Register(router.Group("/api/bookings"))
	api.NewWalletHandler(walletSvc).Register(router.Group("/api/wallet"))

	srv := &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
