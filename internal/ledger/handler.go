package ledger

import (
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"carbon-scribe/derivative-market/derivative-market-backend/internal/auth"
	"carbon-scribe/derivative-market/derivative-market-backend/internal/faults"
	"carbon-scribe/derivative-market/derivative-market-backend/pkg/identity"
	"carbon-scribe/derivative-market/derivative-market-backend/pkg/signature"
)

// Handler exposes the token ledger over HTTP.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a ledger handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers ledger routes. The operator group must carry
// auth middleware that sets the caller address.
func (h *Handler) RegisterRoutes(public, operator *gin.RouterGroup) {
	public.GET("/ledger", h.getInfo)
	public.GET("/ledger/balances/:owner/:unit", h.getBalance)
	public.GET("/ledger/supply/:unit", h.getSupply)

	operator.POST("/ledger/mint", h.mint)
	operator.POST("/ledger/transfers", h.transfer)
}

type mintPayload struct {
	Recipient   string `json:"recipient" binding:"required"`
	GrossAmount uint64 `json:"gross_amount" binding:"required"`
	Nonce       uint64 `json:"nonce"`
	Metadata    string `json:"metadata"`
	Signature   string `json:"signature" binding:"required"`
	Price       uint64 `json:"price"`
}

type transferPayload struct {
	From      string `json:"from" binding:"required"`
	To        string `json:"to" binding:"required"`
	UnitID    uint64 `json:"unit_id"`
	Amount    uint64 `json:"amount" binding:"required"`
	Nonce     uint64 `json:"nonce"`
	Signature string `json:"signature" binding:"required"`
}

// mint handles POST /api/v1/ledger/mint
func (h *Handler) mint(c *gin.Context) {
	operator, ok := auth.CallerAddress(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing caller identity"})
		return
	}

	var payload mintPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	recipient, err := identity.ParseAddress(payload.Recipient)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sig, err := decodeHex(payload.Signature)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	net, err := h.service.Mint(c.Request.Context(), operator, MintRequest{
		Recipient:   recipient,
		GrossAmount: payload.GrossAmount,
		Nonce:       payload.Nonce,
		Metadata:    payload.Metadata,
		Signature:   sig,
		Price:       payload.Price,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"recipient":  recipient.Hex(),
		"net_amount": net,
		"unit_id":    h.service.Info().UnitID,
	})
}

// transfer handles POST /api/v1/ledger/transfers
func (h *Handler) transfer(c *gin.Context) {
	operator, ok := auth.CallerAddress(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing caller identity"})
		return
	}

	var payload transferPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	from, err := identity.ParseAddress(payload.From)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	to, err := identity.ParseAddress(payload.To)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sig, err := decodeHex(payload.Signature)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err = h.service.TransferWithSignature(c.Request.Context(), operator, TransferRequest{
		From:      from,
		To:        to,
		UnitID:    payload.UnitID,
		Amount:    payload.Amount,
		Nonce:     payload.Nonce,
		Signature: sig,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "transferred"})
}

// getBalance handles GET /api/v1/ledger/balances/:owner/:unit
func (h *Handler) getBalance(c *gin.Context) {
	owner, err := identity.ParseAddress(c.Param("owner"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	unit, err := strconv.ParseUint(c.Param("unit"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid unit id"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"owner":   owner.Hex(),
		"unit_id": unit,
		"balance": h.service.BalanceOf(owner, unit),
	})
}

// getSupply handles GET /api/v1/ledger/supply/:unit
func (h *Handler) getSupply(c *gin.Context) {
	unit, err := strconv.ParseUint(c.Param("unit"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid unit id"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"unit_id":      unit,
		"total_supply": h.service.TotalSupply(unit),
	})
}

// getInfo handles GET /api/v1/ledger
func (h *Handler) getInfo(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Info())
}

// writeError maps failure kinds to HTTP status codes.
func (h *Handler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, faults.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, signature.ErrMalformedSignature),
		errors.Is(err, signature.ErrInvalidSignature),
		errors.Is(err, faults.ErrPriceBelowMinimum):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, faults.ErrNonceAlreadyUsed):
		status = http.StatusConflict
	case errors.Is(err, faults.ErrInsufficientBalance):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, faults.ErrNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("Ledger operation failed", zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
}
