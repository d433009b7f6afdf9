// Package storage persists users and expenses. DB is the default sqlite
// backend; see the postgres subpackage for the PostgreSQL one.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"expense-tracker/internal/models"
	"expense-tracker/internal/storage/migrations"

	"github.com/pressly/goose/v3"

	// Import sqlite driver
	_ "modernc.org/sqlite"
)

// DefaultMaxConns bounds the connection pool when no option is given.
const DefaultMaxConns = 5

// DB wraps a sql.DB connection.
type DB struct {
	conn *sql.DB
	now  func() time.Time
}

// Option configures NewDB.
type Option func(*dbOptions)

type dbOptions struct {
	maxConns int
	now      func() time.Time
}

// WithMaxConns sets the pool size. The pool never grows past it.
func WithMaxConns(n int) Option {
	return func(o *dbOptions) {
		if n > 0 {
			o.maxConns = n
		}
	}
}

// WithClock overrides the clock used to stamp created_at.
func WithClock(now func() time.Time) Option {
	return func(o *dbOptions) { o.now = now }
}

// NewDB opens a database connection and runs migrations.
func NewDB(path string, opts ...Option) (*DB, error) {
	o := dbOptions{maxConns: DefaultMaxConns, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	// Every connection to ":memory:" gets its own private database.
	if path == ":memory:" {
		o.maxConns = 1
	}

	conn, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(o.maxConns)
	conn.SetMaxIdleConns(o.maxConns)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn, now: o.now}
	if err := db.migrate(context.Background()); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

// dsn adds the per-connection pragmas. Times are written in sqlite's own
// format so that range comparisons on created_at sort correctly. Write
// transactions begin IMMEDIATE so that concurrent writers queue on
// busy_timeout instead of failing a lock upgrade with SQLITE_BUSY.
func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite&_txlock=immediate"
}

func (db *DB) migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrations.SQLite, "sqlite")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db.conn, fsys)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return mapError(db.conn.PingContext(ctx))
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// CreateUser inserts a user. ErrConflict is returned if the username is taken.
func (db *DB) CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	var user *models.User
	err := WithTx(ctx, db.conn, nil, func(ctx context.Context, tx DBTX) error {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM users WHERE username = ?)", username,
		).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return ErrConflict
		}

		result, err := tx.ExecContext(ctx,
			"INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)",
			username, passwordHash, db.now().UTC(),
		)
		if err != nil {
			return err
		}
		id, err := result.LastInsertId()
		if err != nil {
			return err
		}

		user, err = scanUser(tx.QueryRowContext(ctx,
			"SELECT id, username, password_hash, created_at FROM users WHERE id = ?", id,
		))
		return err
	})
	if err != nil {
		return nil, mapError(err)
	}
	return user, nil
}

// GetUserByID retrieves a user by ID.
func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		"SELECT id, username, password_hash, created_at FROM users WHERE id = ?", id,
	))
	return u, mapError(err)
}

// GetUserByUsername retrieves a user by username. Matching is case-sensitive.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		"SELECT id, username, password_hash, created_at FROM users WHERE username = ?", username,
	))
	return u, mapError(err)
}

// UserCount returns the number of users in the database.
func (db *DB) UserCount(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	return count, mapError(err)
}

const expenseColumns = "id, amount, category, description, created_at, owner_id"

// CreateExpense inserts a new expense owned by ownerID.
func (db *DB) CreateExpense(ctx context.Context, ownerID int64, e models.NewExpense) (*models.Expense, error) {
	var out *models.Expense
	err := WithTx(ctx, db.conn, nil, func(ctx context.Context, tx DBTX) error {
		result, err := tx.ExecContext(ctx,
			"INSERT INTO expenses (amount, category, description, created_at, owner_id) VALUES (?, ?, ?, ?, ?)",
			e.Amount, e.Category, e.Description, db.now().UTC(), ownerID,
		)
		if err != nil {
			return err
		}
		id, err := result.LastInsertId()
		if err != nil {
			return err
		}
		out, err = getExpense(ctx, tx, ownerID, id)
		return err
	})
	if err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

// GetExpense retrieves a single expense by ID, scoped to its owner.
func (db *DB) GetExpense(ctx context.Context, ownerID, id int64) (*models.Expense, error) {
	out, err := getExpense(ctx, db.conn, ownerID, id)
	return out, mapError(err)
}

func getExpense(ctx context.Context, q DBTX, ownerID, id int64) (*models.Expense, error) {
	return scanExpense(q.QueryRowContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE id = ? AND owner_id = ?",
		id, ownerID,
	))
}

// ListExpenses returns the owner's expenses in insertion order.
func (db *DB) ListExpenses(ctx context.Context, ownerID int64) ([]models.Expense, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE owner_id = ? ORDER BY id ASC",
		ownerID,
	)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	expenses := []models.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, mapError(err)
		}
		expenses = append(expenses, *e)
	}
	return expenses, mapError(rows.Err())
}

// UpdateExpense applies patch to the owner's expense. ErrNotFound covers
// both unknown IDs and other owners' expenses.
func (db *DB) UpdateExpense(ctx context.Context, ownerID, id int64, patch models.ExpensePatch) (*models.Expense, error) {
	var out *models.Expense
	err := WithTx(ctx, db.conn, nil, func(ctx context.Context, tx DBTX) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE expenses SET
				amount = COALESCE(?, amount),
				category = COALESCE(?, category),
				description = COALESCE(?, description)
			WHERE id = ? AND owner_id = ?`,
			patch.Amount, patch.Category, patch.Description, id, ownerID,
		)
		if err != nil {
			return err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		out, err = getExpense(ctx, tx, ownerID, id)
		return err
	})
	if err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

// DeleteExpense removes the owner's expense.
func (db *DB) DeleteExpense(ctx context.Context, ownerID, id int64) error {
	result, err := db.conn.ExecContext(ctx,
		"DELETE FROM expenses WHERE id = ? AND owner_id = ?", id, ownerID,
	)
	if err != nil {
		return mapError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return mapError(err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CategoryTotals sums the owner's expenses per category for created_at in
// [from, to), largest total first.
func (db *DB) CategoryTotals(ctx context.Context, ownerID int64, from, to time.Time) ([]models.CategoryTotal, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT category, SUM(amount), COUNT(*)
		FROM expenses
		WHERE owner_id = ? AND created_at >= ? AND created_at < ?
		GROUP BY category
		ORDER BY SUM(amount) DESC, category ASC`,
		ownerID, from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	totals := []models.CategoryTotal{}
	for rows.Next() {
		var ct models.CategoryTotal
		if err := rows.Scan(&ct.Category, &ct.Total, &ct.Count); err != nil {
			return nil, mapError(err)
		}
		totals = append(totals, ct)
	}
	return totals, mapError(rows.Err())
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

func scanExpense(row scanner) (*models.Expense, error) {
	var e models.Expense
	if err := row.Scan(&e.ID, &e.Amount, &e.Category, &e.Description, &e.CreatedAt, &e.OwnerID); err != nil {
		return nil, err
	}
	e.CreatedAt = e.CreatedAt.UTC()
	return &e, nil
}
