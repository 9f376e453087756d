// Package auth issues and verifies the bearer tokens the server accepts.
//
// Tokens are HS256 JWTs. Only authentication is checked here: a valid token
// grants access to the whole tree.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// Issuer is written into and required from every token.
const Issuer = "remotestore"

var (
	// ErrNoToken means the request carried no bearer token.
	ErrNoToken = errors.New("no bearer token")
	// ErrInvalidToken means the token failed verification.
	ErrInvalidToken = errors.New("invalid token")
)

// Claims are the JWT claims of a storage token.
type Claims struct {
	gojwt.RegisteredClaims
}

// Authority signs and verifies tokens with one shared secret.
type Authority struct {
	secret []byte
	now    func() time.Time
}

// NewAuthority returns an Authority for secret.
func NewAuthority(secret string) *Authority {
	return &Authority{secret: []byte(secret), now: time.Now}
}

// Issue returns a signed token for subject valid for ttl.
func (a *Authority) Issue(subject string, ttl time.Duration) (string, error) {
	now := a.now()
	claims := Claims{
		RegisteredClaims: gojwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   subject,
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature, issuer and expiry of token.
func (a *Authority) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parser := gojwt.NewParser(
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithIssuer(Issuer),
		gojwt.WithExpirationRequired(),
		gojwt.WithTimeFunc(a.now),
	)
	_, err := parser.ParseWithClaims(token, claims, func(*gojwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrNoToken
	}
	return strings.TrimSpace(token), nil
}

// VerifyRequest verifies the bearer token carried by r.
func (a *Authority) VerifyRequest(r *http.Request) (*Claims, error) {
	token, err := BearerToken(r)
	if err != nil {
		return nil, err
	}
	return a.Verify(token)
}
