package market

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"carbon-scribe/derivative-market/derivative-market-backend/internal/auth"
	"carbon-scribe/derivative-market/derivative-market-backend/internal/faults"
	"carbon-scribe/derivative-market/derivative-market-backend/pkg/identity"
)

// Handler exposes the marketplace over HTTP.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a market handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers market routes. The authed group must carry
// auth middleware that sets the caller address; the operator group
// additionally requires operator status.
func (h *Handler) RegisterRoutes(public, authed, operator *gin.RouterGroup) {
	public.GET("/market/items", h.listItems)
	public.GET("/market/items/:id", h.getItem)
	public.GET("/market/sources", h.listSources)
	public.GET("/market/stats", h.getStats)

	authed.POST("/market/items", h.place)
	authed.POST("/market/items/:id/unplace", h.unPlace)
	authed.POST("/market/items/:id/purchase", h.purchase)

	operator.POST("/market/sources/:ledger/verify", h.verifySource)
}

type placePayload struct {
	LedgerID  string `json:"ledger_id" binding:"required"`
	UnitID    uint64 `json:"unit_id"`
	Amount    uint64 `json:"amount" binding:"required"`
	UnitPrice uint64 `json:"unit_price" binding:"required"`
}

type amountPayload struct {
	Amount uint64 `json:"amount" binding:"required"`
}

// place handles POST /api/v1/market/items
func (h *Handler) place(c *gin.Context) {
	seller, ok := auth.CallerAddress(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing caller identity"})
		return
	}

	var payload placePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ledgerID, err := identity.ParseAddress(payload.LedgerID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.service.Place(c.Request.Context(), seller, PlaceRequest{
		Amount:    payload.Amount,
		LedgerID:  ledgerID,
		UnitID:    payload.UnitID,
		UnitPrice: payload.UnitPrice,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"item_id": id})
}

// unPlace handles POST /api/v1/market/items/:id/unplace
func (h *Handler) unPlace(c *gin.Context) {
	caller, ok := auth.CallerAddress(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing caller identity"})
		return
	}
	itemID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return
	}

	var payload amountPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.UnPlace(c.Request.Context(), caller, itemID, payload.Amount); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "unplaced"})
}

// purchase handles POST /api/v1/market/items/:id/purchase
func (h *Handler) purchase(c *gin.Context) {
	buyer, ok := auth.CallerAddress(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing caller identity"})
		return
	}
	itemID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return
	}

	var payload amountPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	receipt, err := h.service.Purchase(c.Request.Context(), buyer, itemID, payload.Amount)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

// verifySource handles POST /api/v1/market/sources/:ledger/verify
func (h *Handler) verifySource(c *gin.Context) {
	operator, ok := auth.CallerAddress(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing caller identity"})
		return
	}
	ledgerID, err := identity.ParseAddress(c.Param("ledger"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.VerifySource(c.Request.Context(), operator, ledgerID); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "verified", "ledger": ledgerID.Hex()})
}

// listItems handles GET /api/v1/market/items
func (h *Handler) listItems(c *gin.Context) {
	items := h.service.Items()
	if c.Query("active") == "true" {
		active := items[:0]
		for _, item := range items {
			if item.Amount > 0 {
				active = append(active, item)
			}
		}
		items = active
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

// getItem handles GET /api/v1/market/items/:id
func (h *Handler) getItem(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return
	}
	item, err := h.service.Item(id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// listSources handles GET /api/v1/market/sources
func (h *Handler) listSources(c *gin.Context) {
	sources := h.service.VerifiedSources()
	hexed := make([]string, 0, len(sources))
	for _, s := range sources {
		hexed = append(hexed, s.Hex())
	}
	c.JSON(http.StatusOK, gin.H{"sources": hexed})
}

// getStats handles GET /api/v1/market/stats
func (h *Handler) getStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Snapshot())
}

// writeError maps failure kinds to HTTP status codes.
func (h *Handler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, faults.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, faults.ErrNotOwner):
		status = http.StatusForbidden
	case errors.Is(err, faults.ErrUnverifiedSource),
		errors.Is(err, faults.ErrInsufficientListedAmount),
		errors.Is(err, faults.ErrInsufficientBalance):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, faults.ErrNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("Market operation failed", zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
