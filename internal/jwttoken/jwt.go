// Package jwttoken issues the access and refresh tokens handed out when a
// registration completes.
package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "wishguard/pkg/domain-errors"
)

type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Claims are the custom claims carried by both token kinds.
type Claims struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id,omitempty"`
	Kind      Kind   `json:"token_type"`
	jwt.RegisteredClaims
}

type Pair struct {
	Access    string `json:"access"`
	Refresh   string `json:"refresh"`
	ExpiresIn int    `json:"expires_in"`
}

type Service struct {
	signingKey []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	clock      func() time.Time
}

type Option func(*Service)

func WithTTLs(access, refresh time.Duration) Option {
	return func(s *Service) {
		if access > 0 {
			s.accessTTL = access
		}
		if refresh > 0 {
			s.refreshTTL = refresh
		}
	}
}

func WithIssuer(issuer string) Option {
	return func(s *Service) {
		s.issuer = issuer
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

func New(signingKey string, opts ...Option) (*Service, error) {
	if signingKey == "" {
		return nil, errors.New("jwt signing key is required")
	}
	s := &Service{
		signingKey: []byte(signingKey),
		issuer:     "wishguard",
		accessTTL:  15 * time.Minute,
		refreshTTL: 7 * 24 * time.Hour,
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue signs a fresh access/refresh pair for userID.
func (s *Service) Issue(userID, sessionID string) (*Pair, error) {
	access, err := s.sign(userID, sessionID, KindAccess, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sign(userID, sessionID, KindRefresh, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &Pair{Access: access, Refresh: refresh, ExpiresIn: int(s.accessTTL.Seconds())}, nil
}

func (s *Service) sign(userID, sessionID string, kind Kind, ttl time.Duration) (string, error) {
	now := s.clock()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:    userID,
		SessionID: sessionID,
		Kind:      kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token")
	}
	return signed, nil
}

// Validate parses tokenString and checks that it is a token of the wanted kind.
func (s *Service) Validate(tokenString string, want Kind) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithTimeFunc(s.clock))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	if claims.Kind != want {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "wrong token type")
	}
	return claims, nil
}
