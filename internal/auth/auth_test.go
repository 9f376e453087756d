package auth

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueVerify(t *testing.T) {
	a := NewAuthority("s3cret")

	token, err := a.Issue("alice", time.Hour)
	require.NoError(t, err)

	claims, err := a.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, Issuer, claims.Issuer)
}

func TestVerifyRejects(t *testing.T) {
	a := NewAuthority("s3cret")

	t.Run("wrong secret", func(t *testing.T) {
		token, err := NewAuthority("other").Issue("alice", time.Hour)
		require.NoError(t, err)
		_, err = a.Verify(token)
		assert.True(t, errors.Is(err, ErrInvalidToken))
	})

	t.Run("expired", func(t *testing.T) {
		old := NewAuthority("s3cret")
		old.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		token, err := old.Issue("alice", time.Hour)
		require.NoError(t, err)
		_, err = a.Verify(token)
		assert.True(t, errors.Is(err, ErrInvalidToken))
	})

	t.Run("foreign issuer", func(t *testing.T) {
		claims := gojwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: gojwt.NewNumericDate(time.Now().Add(time.Hour)),
		}
		token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString([]byte("s3cret"))
		require.NoError(t, err)
		_, err = a.Verify(token)
		assert.True(t, errors.Is(err, ErrInvalidToken))
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := a.Verify("not.a.jwt")
		assert.True(t, errors.Is(err, ErrInvalidToken))
	})
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		err    error
	}{
		{header: "Bearer abc", token: "abc"},
		{header: "bearer  abc ", token: "abc"},
		{header: "", err: ErrNoToken},
		{header: "Basic abc", err: ErrNoToken},
		{header: "Bearer ", err: ErrNoToken},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			token, err := BearerToken(r)
			assert.Equal(t, tt.err, err)
			assert.Equal(t, tt.token, token)
		})
	}
}

func TestVerifyRequest(t *testing.T) {
	a := NewAuthority("s3cret")
	token, err := a.Issue("bob", time.Minute)
	require.NoError(t, err)

	r := httptest.NewRequest("GET", "/storage/doc", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	claims, err := a.VerifyRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "bob", claims.Subject)

	_, err = a.VerifyRequest(httptest.NewRequest("GET", "/", nil))
	assert.ErrorIs(t, err, ErrNoToken)
}
