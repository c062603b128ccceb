// Package auth authenticates callers by wallet signature: the server
// issues a single-use challenge, the caller signs it with the key behind
// their address, and a short-lived JWT carries the proven address on
// subsequent requests.
package auth

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"carbon-scribe/derivative-market/derivative-market-backend/internal/faults"
	"carbon-scribe/derivative-market/derivative-market-backend/pkg/identity"
	"carbon-scribe/derivative-market/derivative-market-backend/pkg/signature"
)

const challengeTTL = 5 * time.Minute

// OperatorChecker answers whether an address holds operator status.
// Satisfied by the operator registry.
type OperatorChecker interface {
	IsOperator(addr identity.Address) bool
}

// Challenge is a pending login challenge. The payload bytes are what the
// caller signs (after digesting); the id ties the signature back to it.
type Challenge struct {
	ID        string           `json:"id"`
	Address   identity.Address `json:"address"`
	Payload   []byte           `json:"payload"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// Service issues challenges and exchanges signed ones for JWTs.
type Service struct {
	secret    []byte
	tokenTTL  time.Duration
	operators OperatorChecker
	logger    *zap.Logger

	mu      sync.Mutex
	pending map[string]Challenge
}

// NewService creates an auth service. The secret signs issued tokens.
func NewService(secret []byte, tokenTTL time.Duration, operators OperatorChecker, logger *zap.Logger) *Service {
	return &Service{
		secret:    secret,
		tokenTTL:  tokenTTL,
		operators: operators,
		logger:    logger,
		pending:   make(map[string]Challenge),
	}
}

// IssueChallenge creates a single-use challenge for the given address.
func (s *Service) IssueChallenge(address identity.Address) (Challenge, error) {
	payload := make([]byte, 32)
	if _, err := rand.Read(payload); err != nil {
		return Challenge{}, fmt.Errorf("issue challenge: %w", err)
	}

	ch := Challenge{
		ID:        uuid.New().String(),
		Address:   address,
		Payload:   payload,
		ExpiresAt: time.Now().Add(challengeTTL),
	}

	s.mu.Lock()
	s.pending[ch.ID] = ch
	s.expireLocked()
	s.mu.Unlock()

	return ch, nil
}

// Login consumes a challenge against its signature and returns a signed
// token for the challenged address. The challenge is spent whether or
// not the signature checks out.
func (s *Service) Login(challengeID string, sig []byte) (string, error) {
	s.mu.Lock()
	ch, ok := s.pending[challengeID]
	delete(s.pending, challengeID)
	s.mu.Unlock()

	if !ok || time.Now().After(ch.ExpiresAt) {
		return "", fmt.Errorf("login: challenge %s: %w", challengeID, faults.ErrNotFound)
	}

	digest := signature.ChallengeDigest(ch.Payload)
	if err := signature.Verify(ch.Address, digest, sig); err != nil {
		return "", fmt.Errorf("login: %w", err)
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   ch.Address.Hex(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		ID:        uuid.New().String(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("login: sign token: %w", err)
	}

	s.logger.Info("Wallet authenticated", zap.String("address", ch.Address.Hex()))
	return token, nil
}

// VerifyToken validates a token and returns the address it carries.
func (s *Service) VerifyToken(tokenString string) (identity.Address, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
			}
			return s.secret, nil
		})
	if err != nil {
		return identity.Address{}, fmt.Errorf("verify token: %w", err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return identity.Address{}, fmt.Errorf("verify token: missing subject")
	}
	return identity.ParseAddress(claims.Subject)
}

// IsOperator reports whether the address is a registered operator.
func (s *Service) IsOperator(address identity.Address) bool {
	return s.operators.IsOperator(address)
}

// expireLocked drops stale challenges. Requires s.mu held.
func (s *Service) expireLocked() {
	now := time.Now()
	for id, ch := range s.pending {
		if now.After(ch.ExpiresAt) {
			delete(s.pending, id)
		}
	}
}
