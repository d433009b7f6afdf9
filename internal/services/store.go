// Package services holds the account and expense use cases. Handlers and
// the admin CLI call into it; it calls into a Store.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"expense-tracker/internal/common"
	"expense-tracker/internal/models"
	"expense-tracker/internal/storage"
)

// Store is the persistence contract. Implementations return
// storage.ErrNotFound, storage.ErrConflict or storage.ErrUnavailable for the
// conditions they name.
type Store interface {
	CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	UserCount(ctx context.Context) (int, error)

	CreateExpense(ctx context.Context, ownerID int64, e models.NewExpense) (*models.Expense, error)
	ListExpenses(ctx context.Context, ownerID int64) ([]models.Expense, error)
	GetExpense(ctx context.Context, ownerID, id int64) (*models.Expense, error)
	UpdateExpense(ctx context.Context, ownerID, id int64, patch models.ExpensePatch) (*models.Expense, error)
	DeleteExpense(ctx context.Context, ownerID, id int64) error
	CategoryTotals(ctx context.Context, ownerID int64, from, to time.Time) ([]models.CategoryTotal, error)
}

// storeError translates a storage error into the common taxonomy.
func storeError(op string, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("%s: %w", op, common.ErrNotFound)
	case errors.Is(err, storage.ErrConflict):
		return fmt.Errorf("%s: %w", op, common.ErrConflict)
	case errors.Is(err, storage.ErrUnavailable):
		return fmt.Errorf("%s: %w: %v", op, common.ErrStoreUnavailable, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
