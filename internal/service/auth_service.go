package service

import (
	"context"
	"crypto/subtle"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/guild-tickets/internal/auth"
	"github.com/spec-kit/guild-tickets/internal/config"
	"github.com/spec-kit/guild-tickets/internal/domain"
	apperrors "github.com/spec-kit/guild-tickets/pkg/util/errorutil"
)

// IssuedToken is a signed access token and its expiry.
type IssuedToken struct {
	AccessToken string
	ExpiresAt   time.Time
	Subject     domain.SubjectType
}

// AuthService exchanges client credentials for access tokens.
type AuthService struct {
	tokenMgr   *auth.TokenManager
	clientID   string
	secretHash string
	logger     *zap.Logger
}

// NewAuthService builds the service from the auth config section.
func NewAuthService(cfg config.AuthConfig, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		tokenMgr:   auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		clientID:   cfg.GatewayClientID,
		secretHash: cfg.GatewaySecretHash,
		logger:     logger,
	}
}

// IssueGatewayToken authenticates the gateway client.
func (s *AuthService) IssueGatewayToken(_ context.Context, clientID, secret string) (*IssuedToken, error) {
	if s.secretHash == "" {
		return nil, apperrors.NewUnauthorized("gateway credentials are not configured")
	}
	if subtle.ConstantTimeCompare([]byte(clientID), []byte(s.clientID)) != 1 {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if err := auth.CompareSecret(s.secretHash, secret); err != nil {
		s.logger.Warn("gateway authentication failed", zap.String("client_id", clientID))
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	return s.issue(clientID, domain.SubjectTypeGateway)
}

// IssueOperatorToken mints a read-only token for dashboards. It is used by
// the operator CLI, which holds the signing secret.
func (s *AuthService) IssueOperatorToken(operatorID string) (*IssuedToken, error) {
	if operatorID == "" {
		return nil, apperrors.NewValidationError("operator id is required", nil)
	}
	return s.issue(operatorID, domain.SubjectTypeOperator)
}

func (s *AuthService) issue(clientID string, subject domain.SubjectType) (*IssuedToken, error) {
	tok, signed, err := s.tokenMgr.GenerateToken(clientID, subject)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &IssuedToken{AccessToken: signed, ExpiresAt: tok.ExpiresAt, Subject: subject}, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
