package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/saburov/airfare/internal/domain"
	"github.com/saburov/airfare/internal/service/wallet"
)

type WalletHandler struct {
	service wallet.WalletUseCase
}

type walletMutationRequest struct {
	UserID      string `json:"user_id" binding:"required"`
	AmountCents int64  `json:"amount_cents" binding:"required"`
}

type walletResponse struct {
	UserID       string `json:"user_id"`
	BalanceCents int64  `json:"balance_cents"`
}

func NewWalletHandler(service wallet.WalletUseCase) *WalletHandler {
	return &WalletHandler{service: service}
}

func (h *WalletHandler) Register(router *gin.RouterGroup) {
	router.GET("/", h.balance)
	router.POST("/debit", h.debit)
	router.POST("/credit", h.credit)
}

func (h *WalletHandler) balance(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id query parameter is required"})
		return
	}

	balance, err := h.service.GetBalance(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, walletResponse{UserID: userID, BalanceCents: balance})
}

func (h *WalletHandler) debit(c *gin.Context) {
	h.mutate(c, h.service.Debit)
}

func (h *WalletHandler) credit(c *gin.Context) {
	h.mutate(c, h.service.Credit)
}

func (h *WalletHandler) mutate(c *gin.Context, op func(ctx context.Context, userID, amountCents int64) (int64, error)) {
	var req walletMutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.service.ResolveOrProvision(c.Request.Context(), req.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	balance, err := op(c.Request.Context(), user.ID, req.AmountCents)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidAmount):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrInsufficientFunds):
			c.JSON(http.StatusPaymentRequired, gin.H{
				"error":           err.Error(),
				"available_cents": user.WalletBalanceCents,
				"required_cents":  req.AmountCents,
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, walletResponse{UserID: req.UserID, BalanceCents: balance})
}
