package models

import "time"

// Expense represents a financial expense record owned by exactly one user.
type Expense struct {
	ID          int64     `json:"id"`
	Amount      int64     `json:"amount"`
	Category    string    `json:"category"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	OwnerID     int64     `json:"owner_id"`
}

// NewExpense holds the client-supplied fields of an expense being created.
type NewExpense struct {
	Amount      int64   `json:"amount"`
	Category    string  `json:"category"`
	Description *string `json:"description,omitempty"`
}

// ExpensePatch is a partial update; nil fields are left unchanged.
type ExpensePatch struct {
	Amount      *int64  `json:"amount,omitempty"`
	Category    *string `json:"category,omitempty"`
	Description *string `json:"description,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p ExpensePatch) IsEmpty() bool {
	return p.Amount == nil && p.Category == nil && p.Description == nil
}

// CategoryTotal aggregates one category's spending.
type CategoryTotal struct {
	Category string `json:"category"`
	Total    int64  `json:"total"`
	Count    int    `json:"count"`
}

// MonthSummary is the per-category breakdown of one calendar month.
type MonthSummary struct {
	Year       int             `json:"year"`
	Month      int             `json:"month"`
	Total      int64           `json:"total"`
	Categories []CategoryTotal `json:"categories"`
}

// User represents a user account.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
