// Package postgres is the PostgreSQL backend of the expense store. It is
// selected when DATABASE_URL is set and shares its schema migrations and
// error values with the sqlite store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"expense-tracker/internal/models"
	"expense-tracker/internal/storage"
	"expense-tracker/internal/storage/migrations"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewStore connects to databaseURL with at most maxConns pooled
// connections and applies pending migrations.
func NewStore(ctx context.Context, databaseURL string, maxConns int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	cfg.MinConns = 0

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	// Ping to fail fast.
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	s := &Store{pool: pool, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrations.Postgres, "postgres")
	if err != nil {
		return err
	}
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return mapPgErr(s.pool.Ping(ctx))
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	var u models.User
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx,
			`select exists(select 1 from users where username = $1)`, username,
		).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return storage.ErrConflict
		}
		return tx.QueryRow(ctx, `
			insert into users (username, password_hash, created_at)
			values ($1, $2, $3)
			returning id, username, password_hash, created_at
		`, username, passwordHash, s.now().UTC()).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	})
	if err != nil {
		return nil, mapPgErr(err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.getUser(ctx, `where id = $1`, id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, `where username = $1`, username)
}

func (s *Store) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`select id, username, password_hash, created_at from users `+where, arg,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return nil, mapPgErr(err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

func (s *Store) UserCount(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `select count(*) from users`).Scan(&n)
	return n, mapPgErr(err)
}

const expenseColumns = `id, amount, category, description, created_at, owner_id`

func (s *Store) CreateExpense(ctx context.Context, ownerID int64, e models.NewExpense) (*models.Expense, error) {
	return s.queryExpense(ctx, `
		insert into expenses (amount, category, description, created_at, owner_id)
		values ($1, $2, $3, $4, $5)
		returning `+expenseColumns,
		e.Amount, e.Category, e.Description, s.now().UTC(), ownerID)
}

func (s *Store) GetExpense(ctx context.Context, ownerID, id int64) (*models.Expense, error) {
	return s.queryExpense(ctx,
		`select `+expenseColumns+` from expenses where id = $1 and owner_id = $2`,
		id, ownerID)
}

func (s *Store) ListExpenses(ctx context.Context, ownerID int64) ([]models.Expense, error) {
	rows, err := s.pool.Query(ctx,
		`select `+expenseColumns+` from expenses where owner_id = $1 order by id asc`,
		ownerID)
	if err != nil {
		return nil, mapPgErr(err)
	}
	expenses, err := pgx.CollectRows(rows, scanExpense)
	if err != nil {
		return nil, mapPgErr(err)
	}
	if expenses == nil {
		expenses = []models.Expense{}
	}
	return expenses, nil
}

// UpdateExpense is a single statement; a row owned by someone else is
// indistinguishable from a missing one.
func (s *Store) UpdateExpense(ctx context.Context, ownerID, id int64, patch models.ExpensePatch) (*models.Expense, error) {
	return s.queryExpense(ctx, `
		update expenses set
			amount = coalesce($1, amount),
			category = coalesce($2, category),
			description = coalesce($3, description)
		where id = $4 and owner_id = $5
		returning `+expenseColumns,
		patch.Amount, patch.Category, patch.Description, id, ownerID)
}

func (s *Store) DeleteExpense(ctx context.Context, ownerID, id int64) error {
	tag, err := s.pool.Exec(ctx,
		`delete from expenses where id = $1 and owner_id = $2`, id, ownerID)
	if err != nil {
		return mapPgErr(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) CategoryTotals(ctx context.Context, ownerID int64, from, to time.Time) ([]models.CategoryTotal, error) {
	rows, err := s.pool.Query(ctx, `
		select category, sum(amount)::bigint, count(*)
		from expenses
		where owner_id = $1 and created_at >= $2 and created_at < $3
		group by category
		order by sum(amount) desc, category asc
	`, ownerID, from.UTC(), to.UTC())
	if err != nil {
		return nil, mapPgErr(err)
	}
	totals, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.CategoryTotal, error) {
		var ct models.CategoryTotal
		err := row.Scan(&ct.Category, &ct.Total, &ct.Count)
		return ct, err
	})
	if err != nil {
		return nil, mapPgErr(err)
	}
	if totals == nil {
		totals = []models.CategoryTotal{}
	}
	return totals, nil
}

func (s *Store) queryExpense(ctx context.Context, sql string, args ...any) (*models.Expense, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapPgErr(err)
	}
	e, err := pgx.CollectExactlyOneRow(rows, scanExpense)
	if err != nil {
		return nil, mapPgErr(err)
	}
	return &e, nil
}

func scanExpense(row pgx.CollectableRow) (models.Expense, error) {
	var e models.Expense
	err := row.Scan(&e.ID, &e.Amount, &e.Category, &e.Description, &e.CreatedAt, &e.OwnerID)
	e.CreatedAt = e.CreatedAt.UTC()
	return e, err
}

func mapPgErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, storage.ErrNotFound) {
		return storage.ErrNotFound
	}
	if errors.Is(err, storage.ErrConflict) {
		return storage.ErrConflict
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", storage.ErrConflict, pgErr.Message)
		case "23503":
			return storage.ErrNotFound
		case "53300", "57P01", "57P03":
			return fmt.Errorf("%w: %s", storage.ErrUnavailable, pgErr.Message)
		default:
			return fmt.Errorf("db_error %s: %s", pgErr.Code, pgErr.Message)
		}
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) ||
		errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	return err
}
