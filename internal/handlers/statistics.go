package handlers

import (
	"net/http"
	"strconv"

	"expense-tracker/internal/common"
)

// Statistics handles GET /api/expenses/summary?year=&month=. Omitted
// parameters default to the current month.
func (h *Handlers) Statistics(w http.ResponseWriter, r *http.Request) {
	year, err := queryInt(r, "year")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	month, err := queryInt(r, "month")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	summary, err := h.expenses.Summary(r.Context(), GetSubjectFromContext(r), year, month)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func queryInt(r *http.Request, name string) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, common.NewValidationError(name, "must be an integer")
	}
	return n, nil
}
