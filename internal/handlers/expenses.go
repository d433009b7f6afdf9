package handlers

import (
	"net/http"

	"expense-tracker/internal/models"
)

// CreateExpense handles POST /api/expenses.
func (h *Handlers) CreateExpense(w http.ResponseWriter, r *http.Request) {
	var in models.NewExpense
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	e, err := h.expenses.Create(r.Context(), GetSubjectFromContext(r), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// ListExpenses handles GET /api/expenses.
func (h *Handlers) ListExpenses(w http.ResponseWriter, r *http.Request) {
	list, err := h.expenses.List(r.Context(), GetSubjectFromContext(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// UpdateExpense handles PUT /api/expenses/{id}.
func (h *Handlers) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	var patch models.ExpensePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	e, err := h.expenses.Update(r.Context(), GetSubjectFromContext(r), id, patch)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// DeleteExpense handles DELETE /api/expenses/{id}.
func (h *Handlers) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	if err := h.expenses.Delete(r.Context(), GetSubjectFromContext(r), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Expense deleted"})
}
