package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for tokens that fail signature, expiry or claim checks.
var ErrInvalidToken = errors.New("invalid form token")

// FormClaims binds a token to one form instance of one survey variant.
type FormClaims struct {
	jwt.RegisteredClaims
	FormID  string `json:"form_id"`
	Variant string `json:"variant"`
}

// TokenService signs and validates form instance tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a TokenService issuing HS256 tokens valid for ttl.
func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue creates a token for formID.
func (s *TokenService) Issue(formID, variant string) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.ttl)

	claims := FormClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   formID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		FormID:  formID,
		Variant: variant,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// Validate parses tokenStr and returns its claims.
func (s *TokenService) Validate(tokenStr string) (*FormClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &FormClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*FormClaims)
	if !ok || !token.Valid || claims.FormID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
