package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "mecone-backoffice"

const (
	tokenUseAccess  = "access"
	tokenUseRefresh = "refresh"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// Claims carries the identity embedded in both access and refresh tokens.
type Claims struct {
	UserID   string `json:"uid"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	TokenUse string `json:"token_use"`
	jwt.RegisteredClaims
}

// TokenPair is the result of a successful authentication or refresh.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// TokenService signs and verifies access and refresh tokens with two
// independent HS256 secrets. Verifying a token against the other family's
// secret fails, so a leaked refresh token can never be presented as an
// access token.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// TokenOption configures a TokenService.
type TokenOption func(*TokenService)

// WithAccessTTL overrides the access token lifetime.
func WithAccessTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) {
		if ttl > 0 {
			s.accessTTL = ttl
		}
	}
}

// WithRefreshTTL overrides the refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) TokenOption {
	return func(s *TokenService) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewTokenService constructs a TokenService from the two signing secrets.
func NewTokenService(accessSecret, refreshSecret []byte, opts ...TokenOption) (*TokenService, error) {
	if len(accessSecret) == 0 || len(refreshSecret) == 0 {
		return nil, errors.New("auth: both signing secrets are required")
	}
	if string(accessSecret) == string(refreshSecret) {
		return nil, errors.New("auth: access and refresh secrets must differ")
	}
	s := &TokenService{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		accessTTL:     defaultAccessTTL,
		refreshTTL:    defaultRefreshTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AccessTTL returns the configured access token lifetime.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

// IssueTokenPair signs a short-lived access token and a long-lived refresh
// token carrying identical identity claims.
func (s *TokenService) IssueTokenPair(user *User) (TokenPair, error) {
	if user == nil || strings.TrimSpace(user.ID) == "" {
		return TokenPair{}, errors.New("auth: user is required")
	}
	now := s.now().UTC()

	accessExp := now.Add(s.accessTTL)
	access, err := s.sign(user, tokenUseAccess, now, accessExp, s.accessSecret)
	if err != nil {
		return TokenPair{}, err
	}

	refreshExp := now.Add(s.refreshTTL)
	refresh, err := s.sign(user, tokenUseRefresh, now, refreshExp, s.refreshSecret)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// VerifyAccessToken validates signature and expiry against the access secret.
// Every failure collapses to ErrInvalidToken.
func (s *TokenService) VerifyAccessToken(raw string) (*Claims, error) {
	return s.verify(raw, tokenUseAccess, s.accessSecret)
}

// VerifyRefreshToken validates signature and expiry against the refresh
// secret.
func (s *TokenService) VerifyRefreshToken(raw string) (*Claims, error) {
	return s.verify(raw, tokenUseRefresh, s.refreshSecret)
}

func (s *TokenService) sign(user *User, use string, now, exp time.Time, secret []byte) (string, error) {
	claims := Claims{
		UserID:   user.ID,
		Email:    user.Email,
		Role:     user.Role,
		TokenUse: use,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func (s *TokenService) verify(raw, use string, secret []byte) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenUse != use {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.UserID) == "" || !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
