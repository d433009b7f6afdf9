package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// AccessTokenCookieName is the cookie used by CookieCarrier.
const AccessTokenCookieName = "access_token"

// ErrNoCredentials is returned by Carrier.Extract when the request carries no token.
var ErrNoCredentials = errors.New("no credentials")

// Carrier moves the access token between client and server. A deployment
// runs exactly one implementation.
type Carrier interface {
	// Extract returns the raw token from r.
	Extract(r *http.Request) (string, error)
	// Deliver hands a freshly issued token to the client, if the carrier
	// needs server help for that.
	Deliver(w http.ResponseWriter, token string, ttl time.Duration)
	// Clear instructs the client to drop its token.
	Clear(w http.ResponseWriter)
}

// NewCarrier returns the carrier for mode ("bearer" or "cookie").
func NewCarrier(mode string, secureCookie bool) (Carrier, error) {
	switch strings.ToLower(mode) {
	case "", "bearer":
		return BearerCarrier{}, nil
	case "cookie":
		return CookieCarrier{Secure: secureCookie}, nil
	default:
		return nil, fmt.Errorf("unknown auth carrier %q", mode)
	}
}

// BearerCarrier reads "Authorization: Bearer <token>". The client keeps the
// token, so Deliver and Clear do nothing.
type BearerCarrier struct{}

func (BearerCarrier) Extract(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrNoCredentials
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrNoCredentials
	}
	return token, nil
}

func (BearerCarrier) Deliver(http.ResponseWriter, string, time.Duration) {}

func (BearerCarrier) Clear(http.ResponseWriter) {}

// CookieCarrier keeps the token in an HttpOnly cookie.
type CookieCarrier struct {
	Secure bool
}

func (c CookieCarrier) Extract(r *http.Request) (string, error) {
	cookie, err := r.Cookie(AccessTokenCookieName)
	if err != nil || cookie.Value == "" {
		return "", ErrNoCredentials
	}
	return cookie.Value, nil
}

func (c CookieCarrier) Deliver(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessTokenCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c CookieCarrier) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessTokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
