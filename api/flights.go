package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/saburov/airfare/internal/domain"
	"github.com/saburov/airfare/internal/repository"
	"github.com/saburov/airfare/internal/service/flights"
)

type FlightHandler struct {
	service flights.FlightUseCase
}

type flightResponse struct {
	Code              string `json:"code"`
	Airline           string `json:"airline"`
	DepartureCity     string `json:"departure_city"`
	ArrivalCity       string `json:"arrival_city"`
	DepartureDate     string `json:"departure_date"`
	DepartureTime     string `json:"departure_time"`
	ArrivalTime       string `json:"arrival_time"`
	BasePriceCents    int64  `json:"base_price_cents"`
	CurrentPriceCents int64  `json:"current_price_cents"`
}

func NewFlightHandler(service flights.FlightUseCase) *FlightHandler {
	return &FlightHandler{service: service}
}

func (h *FlightHandler) Register(router *gin.RouterGroup) {
	router.GET("/", h.list)
	router.GET("/:code", h.getByCode)
}

func (h *FlightHandler) list(c *gin.Context) {
	filter := repository.FlightFilter{
		DepartureCity: c.Query("departure_city"),
		ArrivalCity:   c.Query("arrival_city"),
		Airline:       c.Query("airline"),
	}

	items, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]flightResponse, 0, len(items))
	for _, f := range items {
		resp = append(resp, toFlightResponse(f))
	}
	c.JSON(http.StatusOK, gin.H{"count": len(resp), "data": resp})
}

func (h *FlightHandler) getByCode(c *gin.Context) {
	f, err := h.service.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		if errors.Is(err, domain.ErrFlightNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toFlightResponse(*f))
}

func toFlightResponse(f domain.Flight) flightResponse {
	return flightResponse{
		Code:              f.Code,
		Airline:           f.Airline,
		DepartureCity:     f.DepartureCity,
		ArrivalCity:       f.ArrivalCity,
		DepartureDate:     f.DepartureDate.Format(time.RFC3339),
		DepartureTime:     f.DepartureTime,
		ArrivalTime:       f.ArrivalTime,
		BasePriceCents:    f.BasePriceCents,
		CurrentPriceCents: f.CurrentPriceCents,
	}
}
