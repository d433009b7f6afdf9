package services

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"expense-tracker/internal/common"
	"expense-tracker/internal/logging"
	"expense-tracker/internal/models"
	"expense-tracker/internal/storage"
)

const (
	MaxCategoryLength    = 40
	MaxDescriptionLength = 100
)

// Expenses runs expense operations on behalf of an authenticated subject.
// Every operation resolves the subject first and scopes all store access
// to that user.
type Expenses struct {
	store  Store
	logger logging.Logger
	now    func() time.Time
}

type ExpensesOption func(*Expenses)

// WithNow overrides the clock used to pick the default summary month.
func WithNow(now func() time.Time) ExpensesOption {
	return func(e *Expenses) { e.now = now }
}

func NewExpenses(store Store, logger logging.Logger, opts ...ExpensesOption) *Expenses {
	if logger == nil {
		logger = logging.Nop{}
	}
	e := &Expenses{store: store, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (s *Expenses) owner(ctx context.Context, subject string) (int64, error) {
	user, err := s.store.GetUserByUsername(ctx, subject)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn(ctx, "token subject has no user", "subject", subject)
		}
		return 0, storeError("resolve subject", err)
	}
	return user.ID, nil
}

// Create records a new expense for subject.
func (s *Expenses) Create(ctx context.Context, subject string, in models.NewExpense) (*models.Expense, error) {
	if err := validateAmount(in.Amount); err != nil {
		return nil, err
	}
	if err := validateCategory(in.Category); err != nil {
		return nil, err
	}
	if err := validateDescription(in.Description); err != nil {
		return nil, err
	}

	ownerID, err := s.owner(ctx, subject)
	if err != nil {
		return nil, err
	}

	e, err := s.store.CreateExpense(ctx, ownerID, in)
	if err != nil {
		return nil, storeError("create expense", err)
	}
	return e, nil
}

// List returns subject's expenses in creation order.
func (s *Expenses) List(ctx context.Context, subject string) ([]models.Expense, error) {
	ownerID, err := s.owner(ctx, subject)
	if err != nil {
		return nil, err
	}
	list, err := s.store.ListExpenses(ctx, ownerID)
	if err != nil {
		return nil, storeError("list expenses", err)
	}
	return list, nil
}

// Update applies patch to one of subject's expenses. An empty patch returns
// the current row.
func (s *Expenses) Update(ctx context.Context, subject string, id int64, patch models.ExpensePatch) (*models.Expense, error) {
	if patch.Amount != nil {
		if err := validateAmount(*patch.Amount); err != nil {
			return nil, err
		}
	}
	if patch.Category != nil {
		if err := validateCategory(*patch.Category); err != nil {
			return nil, err
		}
	}
	if err := validateDescription(patch.Description); err != nil {
		return nil, err
	}

	ownerID, err := s.owner(ctx, subject)
	if err != nil {
		return nil, err
	}

	var e *models.Expense
	if patch.IsEmpty() {
		e, err = s.store.GetExpense(ctx, ownerID, id)
	} else {
		e, err = s.store.UpdateExpense(ctx, ownerID, id, patch)
	}
	if err != nil {
		return nil, storeError("update expense", err)
	}
	return e, nil
}

// Delete removes one of subject's expenses.
func (s *Expenses) Delete(ctx context.Context, subject string, id int64) error {
	ownerID, err := s.owner(ctx, subject)
	if err != nil {
		return err
	}
	if err := s.store.DeleteExpense(ctx, ownerID, id); err != nil {
		return storeError("delete expense", err)
	}
	return nil
}

// Summary totals subject's spending per category over one UTC calendar
// month. Zero year or month selects the current one.
func (s *Expenses) Summary(ctx context.Context, subject string, year, month int) (*models.MonthSummary, error) {
	now := s.now().UTC()
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}
	if year < 1 || year > 9999 {
		return nil, common.NewValidationError("year", "must be between 1 and 9999")
	}
	if month < 1 || month > 12 {
		return nil, common.NewValidationError("month", "must be between 1 and 12")
	}

	ownerID, err := s.owner(ctx, subject)
	if err != nil {
		return nil, err
	}

	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	totals, err := s.store.CategoryTotals(ctx, ownerID, from, to)
	if err != nil {
		return nil, storeError("summarize expenses", err)
	}

	summary := &models.MonthSummary{Year: year, Month: month, Categories: totals}
	for _, ct := range totals {
		summary.Total += ct.Total
	}
	return summary, nil
}

func validateAmount(amount int64) error {
	if amount <= 0 {
		return common.NewValidationError("amount", "must be greater than 0")
	}
	return nil
}

func validateCategory(category string) error {
	n := utf8.RuneCountInString(category)
	if n == 0 {
		return common.NewValidationError("category", "must not be empty")
	}
	if n > MaxCategoryLength {
		return common.NewValidationError("category", "must be at most %d characters", MaxCategoryLength)
	}
	return nil
}

func validateDescription(desc *string) error {
	if desc != nil && utf8.RuneCountInString(*desc) > MaxDescriptionLength {
		return common.NewValidationError("description", "must be at most %d characters", MaxDescriptionLength)
	}
	return nil
}
