package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestTokenService_IssueAndValidate(t *testing.T) {
	s := NewTokenService(testSecret, 0)

	tok, err := s.IssueDefault("alice")
	require.NoError(t, err)

	subject, err := s.Validate(tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", subject)
	assert.Equal(t, DefaultTokenTTL, s.TTL())
}

func TestTokenService_ClaimSet(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := NewTokenService(testSecret, time.Hour, WithClock(clock.Now))

	tok, err := s.IssueDefault("alice")
	require.NoError(t, err)

	claims := &jwt.RegisteredClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(tok, claims)
	require.NoError(t, err)

	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, clock.t.Add(time.Hour).Unix(), claims.ExpiresAt.Unix())
	assert.Equal(t, clock.t.Unix(), claims.IssuedAt.Unix())
	assert.NotEmpty(t, claims.ID)
}

func TestTokenService_UniqueTokens(t *testing.T) {
	s := NewTokenService(testSecret, time.Minute)

	a, err := s.IssueDefault("alice")
	require.NoError(t, err)
	b, err := s.IssueDefault("alice")
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "jti should make tokens unique")
}

func TestTokenService_Expired(t *testing.T) {
	s := NewTokenService(testSecret, time.Minute)

	tok, err := s.Issue("alice", -1*time.Second)
	require.NoError(t, err)

	_, err = s.Validate(tok)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenService_ExpiryBoundary(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := NewTokenService(testSecret, 30*time.Minute, WithClock(clock.Now))

	tok, err := s.IssueDefault("alice")
	require.NoError(t, err)

	clock.Advance(30*time.Minute - time.Second)
	_, err = s.Validate(tok)
	require.NoError(t, err, "token should still be valid one second before exp")

	clock.Advance(time.Second)
	_, err = s.Validate(tok)
	assert.ErrorIs(t, err, ErrTokenExpired, "exp == now must be rejected")
}

func TestTokenService_ZeroTTLIsExpired(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := NewTokenService(testSecret, time.Minute, WithClock(clock.Now))

	tok, err := s.Issue("alice", 0)
	require.NoError(t, err)

	_, err = s.Validate(tok)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenService_WrongSecret(t *testing.T) {
	issuer := NewTokenService([]byte("right-secret-right-secret-right-secret"), time.Hour)
	verifier := NewTokenService([]byte("wrong-secret-wrong-secret-wrong-secret"), time.Hour)

	tok, err := issuer.IssueDefault("alice")
	require.NoError(t, err)

	_, err = verifier.Validate(tok)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestTokenService_ExpiredAndForgedReportsSignature(t *testing.T) {
	issuer := NewTokenService([]byte("right-secret-right-secret-right-secret"), time.Hour)
	verifier := NewTokenService(testSecret, time.Hour)

	tok, err := issuer.Issue("alice", -time.Hour)
	require.NoError(t, err)

	_, err = verifier.Validate(tok)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestTokenService_RejectsOtherAlgorithms(t *testing.T) {
	s := NewTokenService(testSecret, time.Hour)
	claims := jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = s.Validate(none)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(testSecret)
	require.NoError(t, err)
	_, err = s.Validate(hs512)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestTokenService_Malformed(t *testing.T) {
	s := NewTokenService(testSecret, time.Hour)

	for _, tok := range []string{"", "not.a.jwt", "abc", "a.b.c.d"} {
		_, err := s.Validate(tok)
		assert.ErrorIs(t, err, ErrMalformedToken, "token %q", tok)
	}
}

func TestTokenService_MissingExpiry(t *testing.T) {
	s := NewTokenService(testSecret, time.Hour)

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "alice"}).SignedString(testSecret)
	require.NoError(t, err)

	_, err = s.Validate(tok)
	assert.ErrorIs(t, err, ErrMalformedToken)
}

func TestTokenService_MissingSubject(t *testing.T) {
	s := NewTokenService(testSecret, time.Hour)

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(testSecret)
	require.NoError(t, err)

	_, err = s.Validate(tok)
	assert.ErrorIs(t, err, ErrMissingSubject)
}
