package app

import (
	"fmt"
	"time"

	"github.com/form3tech-oss/jwt-go"

	"dragonsea/internal/domain"
)

// TokenService signs decision handles so observers can answer them from any
// client without the server keeping a global handle index.
type TokenService struct {
	secret string
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret, issuer string, ttl time.Duration) *TokenService {
	if issuer == "" {
		issuer = DefaultTokenIssuer
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: secret, issuer: issuer, ttl: ttl, now: time.Now}
}

// Issue signs a token for a decision handle held by observer.
func (s *TokenService) Issue(observer string, ref HandleRef, deckKey string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("token service is nil")
	}
	if s.secret == "" {
		return "", fmt.Errorf("token secret is not configured")
	}
	if ref.SessionKey == "" || ref.ID == "" {
		return "", fmt.Errorf("handle reference is incomplete")
	}

	claims := jwt.MapClaims{
		"iss":  s.issuer,
		"sub":  observer,
		"sid":  ref.SessionKey,
		"deck": deckKey,
		"hid":  ref.ID,
		"exp":  s.now().Add(s.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.secret))
}

// Parse verifies a token and returns the handle it refers to. Any invalid,
// expired or foreign token yields ErrUnknownHandle.
func (s *TokenService) Parse(tokenString string) (HandleRef, error) {
	ref, _, err := s.ParseHolder(tokenString)
	return ref, err
}

// ParseHolder is Parse that also returns the observer the token was issued to.
func (s *TokenService) ParseHolder(tokenString string) (HandleRef, string, error) {
	if s == nil || s.secret == "" {
		return HandleRef{}, "", fmt.Errorf("token secret is not configured")
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.secret), nil
	})
	if err != nil || !token.Valid {
		return HandleRef{}, "", fmt.Errorf("%w: %v", domain.ErrUnknownHandle, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !claims.VerifyIssuer(s.issuer, true) {
		return HandleRef{}, "", domain.ErrUnknownHandle
	}

	sid, _ := claims["sid"].(string)
	hid, _ := claims["hid"].(string)
	if sid == "" || hid == "" {
		return HandleRef{}, "", domain.ErrUnknownHandle
	}
	sub, _ := claims["sub"].(string)
	return HandleRef{SessionKey: sid, ID: hid}, sub, nil
}
