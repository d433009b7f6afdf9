package auth

import (
	"fmt"
	"net/http"

	"expense-tracker/internal/common"
)

// TokenValidator resolves a raw token to its subject.
type TokenValidator interface {
	Validate(token string) (string, error)
}

// Gate authorizes inbound requests. It only proves the token is genuine;
// whether the subject still exists is up to the caller.
type Gate struct {
	tokens  TokenValidator
	carrier Carrier
}

func NewGate(tokens TokenValidator, carrier Carrier) *Gate {
	return &Gate{tokens: tokens, carrier: carrier}
}

// Carrier returns the active credential carrier.
func (g *Gate) Carrier() Carrier {
	return g.carrier
}

// Authorize returns the subject of the request's token. Every failure is
// reported as common.ErrUnauthenticated; the cause is wrapped for logging.
func (g *Gate) Authorize(r *http.Request) (string, error) {
	raw, err := g.carrier.Extract(r)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrUnauthenticated, err)
	}

	subject, err := g.tokens.Validate(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrUnauthenticated, err)
	}
	return subject, nil
}
