package registry

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"carbon-scribe/derivative-market/derivative-market-backend/internal/auth"
	"carbon-scribe/derivative-market/derivative-market-backend/internal/faults"
	"carbon-scribe/derivative-market/derivative-market-backend/pkg/identity"
)

// Handler exposes operator membership, fee policy, and approval grants
// over HTTP.
type Handler struct {
	operators *OperatorSet
	fees      *FeeManager
	approvals *ApprovalRegistry
	logger    *zap.Logger
}

// NewHandler creates a registry handler.
func NewHandler(operators *OperatorSet, fees *FeeManager, approvals *ApprovalRegistry, logger *zap.Logger) *Handler {
	return &Handler{operators: operators, fees: fees, approvals: approvals, logger: logger}
}

// RegisterRoutes registers registry routes. Approval grants are made by
// the authenticated caller over their own balance; operator and fee
// changes go through the authed group too, with ownership checks in the
// services themselves.
func (h *Handler) RegisterRoutes(public, authed *gin.RouterGroup) {
	public.GET("/operators", h.listOperators)
	public.GET("/fees", h.getFees)

	authed.POST("/operators", h.addOperator)
	authed.DELETE("/operators/:address", h.removeOperator)
	authed.PUT("/fees/rate", h.setFeeRate)
	authed.PUT("/fees/recipient", h.setFeeRecipient)
	authed.POST("/approvals", h.grant)
	authed.DELETE("/approvals", h.revoke)
}

type operatorPayload struct {
	Address string `json:"address" binding:"required"`
}

type feeRatePayload struct {
	RatePerMille uint64 `json:"rate_per_mille"`
}

type feeRecipientPayload struct {
	Recipient string `json:"recipient" binding:"required"`
}

type approvalPayload struct {
	Delegate string `json:"delegate" binding:"required"`
	Scope    string `json:"scope" binding:"required"`
}

// listOperators handles GET /api/v1/operators
func (h *Handler) listOperators(c *gin.Context) {
	members := h.operators.Operators()
	hexed := make([]string, 0, len(members))
	for _, m := range members {
		hexed = append(hexed, m.Hex())
	}
	c.JSON(http.StatusOK, gin.H{"operators": hexed})
}

// addOperator handles POST /api/v1/operators
func (h *Handler) addOperator(c *gin.Context) {
	caller, ok := auth.CallerAddress(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing caller identity"})
		return
	}
	var payload operatorPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	addr, err := identity.ParseAddress(payload.Address)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.operators.AddOperator(caller, addr); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "added", "address": addr.Hex()})
}

// removeOperator handles DELETE /api/v1/operators/:address
func (h *Handler) removeOperator(c *gin.Context) {
	caller, ok := auth.CallerAddress(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing caller identity"})
		return
	}
	addr, err := identity.ParseAddress(c.Param("address"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.operators.RemoveOperator(caller, addr); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed", "address": addr.Hex()})
}

// getFees handles GET /api/v1/fees
func (h *Handler) getFees(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"rate_per_mille": h.fees.RatePerMille(),
		"recipient":      h.fees.Recipient().Hex(),
	})
}

// setFeeRate handles PUT /api/v1/fees/rate
func (h *Handler) setFeeRate(c *gin.Context) {
	caller, ok := auth.CallerAddress(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing caller identity"})
		return
	}
	var payload feeRatePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.fees.SetRatePerMille(caller, payload.RatePerMille); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rate_per_mille": payload.RatePerMille})
}

// setFeeRecipient handles PUT /api/v1/fees/recipient
func (h *Handler) setFeeRecipient(c *gin.Context) {
	caller, ok := auth.CallerAddress(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing caller identity"})
		return
	}
	var payload feeRecipientPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	recipient, err := identity.ParseAddress(payload.Recipient)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.fees.SetRecipient(caller, recipient); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipient": recipient.Hex()})
}

// grant handles POST /api/v1/approvals. The authenticated caller grants
// over their own balance only.
func (h *Handler) grant(c *gin.Context) {
	caller, ok := auth.CallerAddress(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing caller identity"})
		return
	}
	var payload approvalPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	delegate, err := identity.ParseAddress(payload.Delegate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.approvals.Grant(caller, delegate, payload.Scope)
	c.JSON(http.StatusCreated, gin.H{
		"owner":    caller.Hex(),
		"delegate": delegate.Hex(),
		"scope":    payload.Scope,
	})
}

// revoke handles DELETE /api/v1/approvals
func (h *Handler) revoke(c *gin.Context) {
	caller, ok := auth.CallerAddress(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing caller identity"})
		return
	}
	var payload approvalPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	delegate, err := identity.ParseAddress(payload.Delegate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.approvals.Revoke(caller, delegate, payload.Scope)
	c.JSON(http.StatusOK, gin.H{"status": "revoked"})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, faults.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, faults.ErrNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
