package security

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrUnauthenticated covers missing, malformed or expired access tokens.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidToken covers refresh tokens that fail signature, expiry or
	// stored-value checks.
	ErrInvalidToken = errors.New("invalid refresh token")
)

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// TokenService issues and verifies the access/refresh token pair. Both
// tokens carry only the user id as subject: role and approval are always
// re-read from storage, so admin edits take effect on the next request.
type TokenService struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Clock         Clock
}

func NewTokenService(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, issuer string) *TokenService {
	return &TokenService{
		AccessSecret:  []byte(accessSecret),
		RefreshSecret: []byte(refreshSecret),
		AccessTTL:     accessTTL,
		RefreshTTL:    refreshTTL,
		Issuer:        issuer,
		Clock:         SystemClock{},
	}
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

func (s *TokenService) IssuePair(userID string) (TokenPair, error) {
	now := s.Clock.Now()

	access, err := s.sign(userID, s.AccessSecret, s.AccessTTL, now)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.sign(userID, s.RefreshSecret, s.RefreshTTL, now)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.AccessTTL.Seconds()),
	}, nil
}

// VerifyAccess returns the principal id carried by a valid access token.
func (s *TokenService) VerifyAccess(token string) (string, error) {
	sub, err := s.verify(token, s.AccessSecret)
	if err != nil {
		return "", ErrUnauthenticated
	}
	return sub, nil
}

// VerifyRefresh checks signature and expiry only; the caller still has to
// compare the token against the value stored for the user.
func (s *TokenService) VerifyRefresh(token string) (string, error) {
	sub, err := s.verify(token, s.RefreshSecret)
	if err != nil {
		return "", ErrInvalidToken
	}
	return sub, nil
}

func (s *TokenService) sign(userID string, secret []byte, ttl time.Duration, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    s.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func (s *TokenService) verify(tokenString string, secret []byte) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	}, jwt.WithTimeFunc(s.Clock.Now))
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", errors.New("invalid claims")
	}
	return claims.Subject, nil
}

// HashToken is what gets persisted in place of the raw refresh token, so a
// leaked user row never exposes a usable credential.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func ExtractBearer(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
