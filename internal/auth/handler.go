package auth

import (
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"carbon-scribe/derivative-market/derivative-market-backend/pkg/identity"
)

// Handler exposes challenge issuance and login over HTTP.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers auth routes. All are public; everything else
// behind RequireAuth depends on the token issued here.
func (h *Handler) RegisterRoutes(public *gin.RouterGroup) {
	public.POST("/auth/challenge", h.challenge)
	public.POST("/auth/login", h.login)
}

type challengePayload struct {
	Address string `json:"address" binding:"required"`
}

type loginPayload struct {
	ChallengeID string `json:"challenge_id" binding:"required"`
	Signature   string `json:"signature" binding:"required"`
}

// challenge handles POST /api/v1/auth/challenge
func (h *Handler) challenge(c *gin.Context) {
	var payload challengePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	address, err := identity.ParseAddress(payload.Address)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ch, err := h.service.IssueChallenge(address)
	if err != nil {
		h.logger.Error("Failed to issue login challenge", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue challenge"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"challenge_id": ch.ID,
		"payload":      hex.EncodeToString(ch.Payload),
		"expires_at":   ch.ExpiresAt,
	})
}

// login handles POST /api/v1/auth/login
func (h *Handler) login(c *gin.Context) {
	var payload loginPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(payload.Signature), "0x"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := h.service.Login(payload.ChallengeID, sig)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}
