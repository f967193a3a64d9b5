package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/NordCoder/posecoach/internal/domain"
	domainauth "github.com/NordCoder/posecoach/internal/domain/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var _ domainauth.Tokens = (*TokenService)(nil)

// TokenService signs and verifies access and refresh JWTs. It holds no state
// besides its configuration and is safe for concurrent use.
type TokenService struct {
	cfg   TokenConfig
	ready bool
}

func NewTokenService(cfg TokenConfig, log *zap.Logger) *TokenService {
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	ready := cfg.AccessSecret != "" && cfg.RefreshSecret != ""
	if !ready && log != nil {
		log.Error("token service disabled: access or refresh secret is empty",
			zap.Bool("access_secret_set", cfg.AccessSecret != ""),
			zap.Bool("refresh_secret_set", cfg.RefreshSecret != ""),
		)
	}
	return &TokenService{cfg: cfg, ready: ready}
}

func (s *TokenService) Ready() bool { return s.ready }

func (s *TokenService) IssueAccess(id domainauth.Identity) (string, time.Time, error) {
	if !s.ready {
		return "", time.Time{}, domain.ErrConfiguration
	}
	now := s.cfg.Now()
	exp := now.Add(s.cfg.AccessTTL)
	claims := accessClaims{
		Username:         id.Username,
		Email:            id.Email,
		FullName:         id.FullName,
		RegisteredClaims: s.registered(id.ID, now, exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.AccessSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access: %w", err)
	}
	return signed, exp, nil
}

func (s *TokenService) IssueRefresh(userID uuid.UUID) (string, time.Time, error) {
	if !s.ready {
		return "", time.Time{}, domain.ErrConfiguration
	}
	now := s.cfg.Now()
	exp := now.Add(s.cfg.RefreshTTL)
	claims := refreshClaims{RegisteredClaims: s.registered(userID, now, exp)}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.RefreshSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign refresh: %w", err)
	}
	return signed, exp, nil
}

// Verify checks signature and expiry only. It never touches storage.
func (s *TokenService) Verify(token string, kind domainauth.TokenKind) (*domainauth.Claims, error) {
	if !s.ready {
		return nil, domain.ErrConfiguration
	}
	if token == "" {
		return nil, domainauth.ErrTokenInvalid
	}

	var (
		secret string
		target jwt.Claims
		ac     accessClaims
		rc     refreshClaims
	)
	switch kind {
	case domainauth.KindAccess:
		secret, target = s.cfg.AccessSecret, &ac
	case domainauth.KindRefresh:
		secret, target = s.cfg.RefreshSecret, &rc
	default:
		return nil, fmt.Errorf("unknown token kind %d: %w", kind, domainauth.ErrTokenInvalid)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.cfg.Now),
		jwt.WithExpirationRequired(),
	}
	if s.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.cfg.Issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, target, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domainauth.ErrTokenExpired
		}
		return nil, domainauth.ErrTokenInvalid
	}
	if !parsed.Valid {
		return nil, domainauth.ErrTokenInvalid
	}

	var rcl jwt.RegisteredClaims
	out := &domainauth.Claims{Kind: kind}
	if kind == domainauth.KindAccess {
		rcl = ac.RegisteredClaims
		out.Identity = domainauth.Identity{Username: ac.Username, Email: ac.Email, FullName: ac.FullName}
	} else {
		rcl = rc.RegisteredClaims
	}
	id, err := uuid.Parse(rcl.Subject)
	if err != nil {
		return nil, domainauth.ErrTokenInvalid
	}
	out.Identity.ID = id
	out.TokenID = rcl.ID
	if rcl.IssuedAt != nil {
		out.IssuedAt = rcl.IssuedAt.Time
	}
	out.ExpiresAt = rcl.ExpiresAt.Time
	return out, nil
}

func (s *TokenService) registered(sub uuid.UUID, now, exp time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   sub.String(),
		Issuer:    s.cfg.Issuer,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
}
