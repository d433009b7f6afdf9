package handlers

import (
	"context"
	"net/http"
	"time"

	"expense-tracker/internal/auth"
	"expense-tracker/internal/logging"
	"expense-tracker/internal/models"
	"expense-tracker/internal/ratelimit"
)

// Context key type to avoid collisions.
type contextKey string

const (
	// SubjectContextKey is the context key for the authenticated token subject.
	SubjectContextKey contextKey = "subject"
	// RequestIDContextKey carries the request id for log correlation.
	RequestIDContextKey contextKey = "request_id"

	// RequestIDHeader is echoed on every response.
	RequestIDHeader = "X-Request-Id"
	// MaxBodyBytes caps JSON and form request bodies.
	MaxBodyBytes = 1 << 20
)

// AccountService is the account use case the handlers depend on.
type AccountService interface {
	Register(ctx context.Context, username, password string) (int64, error)
	Login(ctx context.Context, username, password string) (string, error)
	Logout(ctx context.Context)
}

// ExpenseService is the expense use case the handlers depend on.
type ExpenseService interface {
	Create(ctx context.Context, subject string, in models.NewExpense) (*models.Expense, error)
	List(ctx context.Context, subject string) ([]models.Expense, error)
	Update(ctx context.Context, subject string, id int64, patch models.ExpensePatch) (*models.Expense, error)
	Delete(ctx context.Context, subject string, id int64) error
	Summary(ctx context.Context, subject string, year, month int) (*models.MonthSummary, error)
}

// Options carries the optional collaborators of Handlers.
type Options struct {
	Limiter    *ratelimit.Limiter
	TrustProxy bool
	TokenTTL   time.Duration
	Logger     logging.Logger
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	accounts   AccountService
	expenses   ExpenseService
	gate       *auth.Gate
	limiter    *ratelimit.Limiter
	trustProxy bool
	tokenTTL   time.Duration
	logger     logging.Logger
}

// NewHandlers creates a new Handlers instance. A nil limiter disables rate
// limiting.
func NewHandlers(accounts AccountService, expenses ExpenseService, gate *auth.Gate, opts Options) *Handlers {
	h := &Handlers{
		accounts:   accounts,
		expenses:   expenses,
		gate:       gate,
		limiter:    opts.Limiter,
		trustProxy: opts.TrustProxy,
		tokenTTL:   opts.TokenTTL,
		logger:     opts.Logger,
	}
	if h.tokenTTL <= 0 {
		h.tokenTTL = auth.DefaultTokenTTL
	}
	if h.logger == nil {
		h.logger = logging.Nop{}
	}
	return h
}

// GetSubjectFromContext retrieves the authenticated subject from request context.
func GetSubjectFromContext(r *http.Request) string {
	subject, _ := r.Context().Value(SubjectContextKey).(string)
	return subject
}

// AuthMiddleware wraps handlers to require a valid access token.
func (h *Handlers) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, err := h.gate.Authorize(r)
		if err != nil {
			h.logger.Debug(r.Context(), "authorization failed",
				"path", r.URL.Path, "request_id", requestID(r.Context()), "error", err)
			h.writeUnauthenticated(w)
			return
		}

		ctx := context.WithValue(r.Context(), SubjectContextKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Home answers GET /.
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{Message: "Welcome to Expense Tracker API"})
}

// Health answers GET /health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDContextKey).(string)
	return id
}
