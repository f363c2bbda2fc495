package api

import (
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/saburov/airfare/internal/domain"
	"github.com/saburov/airfare/internal/service/booking"
)

// TicketLocator maps a reservation code to its rendered ticket artifact.
type TicketLocator interface {
	Path(reservationCode string) string
}

type BookingHandler struct {
	service booking.BookingUseCase
	tickets TicketLocator
}

type purchaseRequest struct {
	UserID           string             `json:"user_id" binding:"required"`
	FlightCode       string             `json:"flight_code" binding:"required"`
	ReturnFlightCode string             `json:"return_flight_code"`
	PassengerCount   int                `json:"passenger_count"`
	Passengers       []domain.Passenger `json:"passengers"`
}

type bookingResponse struct {
	ID                     int64              `json:"id"`
	FlightCode             string             `json:"flight_code"`
	Airline                string             `json:"airline"`
	Route                  string             `json:"route"`
	PricePaidCents         int64              `json:"price_paid_cents"`
	PassengerCount         int                `json:"passenger_count"`
	PricePerPassengerCents int64              `json:"price_per_passenger_cents"`
	Passengers             []domain.Passenger `json:"passengers"`
	IsReturn               bool               `json:"is_return"`
	ReservationCode        string             `json:"reservation_code"`
	CreatedAt              string             `json:"created_at"`
}

type purchaseResponse struct {
	Outbound              bookingResponse  `json:"outbound"`
	Return                *bookingResponse `json:"return,omitempty"`
	TotalPriceCents       int64            `json:"total_price_cents"`
	RemainingBalanceCents int64            `json:"remaining_balance_cents"`
	Warnings              []string         `json:"warnings,omitempty"`
}

func NewBookingHandler(service booking.BookingUseCase, tickets TicketLocator) *BookingHandler {
	return &BookingHandler{service: service, tickets: tickets}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.POST("/", h.purchase)
	router.GET("/", h.list)
	router.GET("/:code", h.getByCode)
	router.GET("/:code/ticket", h.downloadTicket)
}

func (h *BookingHandler) purchase(c *gin.Context) {
	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.Purchase(c.Request.Context(), booking.PurchaseInput{
		UserID:           req.UserID,
		FlightCode:       req.FlightCode,
		ReturnFlightCode: req.ReturnFlightCode,
		PassengerCount:   req.PassengerCount,
		Passengers:       req.Passengers,
	})
	if err != nil {
		status := http.StatusBadRequest
		payload := gin.H{"error": err.Error()}
		switch {
		case errors.Is(err, domain.ErrFlightNotFound), errors.Is(err, domain.ErrUserNotFound):
			status = http.StatusNotFound
		case errors.Is(err, domain.ErrInsufficientFunds):
			status = http.StatusPaymentRequired
			var fundsErr *domain.InsufficientFundsError
			if errors.As(err, &fundsErr) {
				payload["available_cents"] = fundsErr.AvailableCents
				payload["required_cents"] = fundsErr.RequiredCents
			}
		}
		c.JSON(status, payload)
		return
	}

	resp := purchaseResponse{
		Outbound:              toBookingResponse(result.Outbound),
		TotalPriceCents:       result.TotalPriceCents,
		RemainingBalanceCents: result.RemainingBalanceCents,
		Warnings:              result.Warnings,
	}
	if result.Return != nil {
		ret := toBookingResponse(*result.Return)
		resp.Return = &ret
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *BookingHandler) list(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id query parameter is required"})
		return
	}

	bookings, err := h.service.ListByUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]bookingResponse, 0, len(bookings))
	for _, b := range bookings {
		resp = append(resp, toBookingResponse(b))
	}
	c.JSON(http.StatusOK, gin.H{"count": len(resp), "data": resp})
}

func (h *BookingHandler) getByCode(c *gin.Context) {
	b, err := h.service.GetByReservationCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		if errors.Is(err, domain.ErrBookingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(*b))
}

// downloadTicket serves the rendered ticket artifact. Rendering runs in the
// worker after the purchase commits, so a fresh booking can report its ticket
// as not ready yet.
func (h *BookingHandler) downloadTicket(c *gin.Context) {
	code := c.Param("code")
	if _, err := h.service.GetByReservationCode(c.Request.Context(), code); err != nil {
		if errors.Is(err, domain.ErrBookingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	path := h.tickets.Path(code)
	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "ticket is not available yet"})
		return
	}
	c.FileAttachment(path, "ticket_"+code+".txt")
}

func toBookingResponse(b domain.Booking) bookingResponse {
	return bookingResponse{
		ID:                     b.ID,
		FlightCode:             b.FlightCode,
		Airline:                b.Airline,
		Route:                  b.Route,
		PricePaidCents:         b.PricePaidCents,
		PassengerCount:         b.PassengerCount,
		PricePerPassengerCents: b.PricePerPassengerCents,
		Passengers:             b.Passengers,
		IsReturn:               b.IsReturn,
		ReservationCode:        b.ReservationCode,
		CreatedAt:              b.CreatedAt.Format(time.RFC3339),
	}
}
