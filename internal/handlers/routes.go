package handlers

import "net/http"

// Routes returns the API route table wrapped in the request ID, access log
// and panic recovery middleware. Each rate-limited route has its own quota
// keyed by the endpoint name.
func (h *Handlers) Routes() http.Handler {
	mux := http.NewServeMux()

	protected := func(endpoint string, fn http.HandlerFunc) http.Handler {
		return h.RateLimit(endpoint, h.AuthMiddleware(fn))
	}

	mux.HandleFunc("GET /{$}", h.Home)
	mux.HandleFunc("GET /health", h.Health)

	mux.Handle("POST /api/register", h.RateLimit("register", http.HandlerFunc(h.Register)))
	mux.Handle("POST /api/login", h.RateLimit("login", http.HandlerFunc(h.Login)))
	mux.HandleFunc("POST /api/logout", h.Logout)

	mux.Handle("POST /api/expenses", protected("create_expense", h.CreateExpense))
	mux.Handle("GET /api/expenses", protected("list_expenses", h.ListExpenses))
	mux.Handle("GET /api/expenses/summary", protected("expense_summary", h.Statistics))
	mux.Handle("PUT /api/expenses/{id}", protected("update_expense", h.UpdateExpense))
	mux.Handle("DELETE /api/expenses/{id}", protected("delete_expense", h.DeleteExpense))

	return h.RequestID(h.Logging(h.Recover(mux)))
}
