package store

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres implements AccountStore and InstrumentStore on a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Connect opens a pgx pool for connStr.
func Connect(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// uniqueViolation is the Postgres SQLSTATE for duplicate keys.
const uniqueViolation = "23505"

func isDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (p *Postgres) CreateUser(ctx context.Context, username, passwordHash string) (User, error) {
	var u User
	err := p.pool.QueryRow(ctx,
		`INSERT INTO users (id, username, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id, username, password_hash, created_at`,
		uuid.NewString(), username, passwordHash,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if isDuplicate(err) {
		return User{}, ErrDuplicate
	}
	return u, err
}

func (p *Postgres) GetUser(ctx context.Context, username string) (User, error) {
	var u User
	err := p.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE username = $1`,
		username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (p *Postgres) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE users SET password_hash = $2 WHERE username = $1`,
		username, passwordHash,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) FindInstrument(ctx context.Context, ticker string) (Instrument, error) {
	var inst Instrument
	err := p.pool.QueryRow(ctx,
		`SELECT id, ticker, price, updated_at FROM instruments WHERE ticker = $1`,
		strings.ToUpper(strings.TrimSpace(ticker)),
	).Scan(&inst.ID, &inst.Ticker, &inst.Price, &inst.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Instrument{}, ErrNotFound
	}
	return inst, err
}

func (p *Postgres) SaveInstrument(ctx context.Context, inst Instrument) (Instrument, error) {
	inst.Ticker = strings.ToUpper(strings.TrimSpace(inst.Ticker))
	if inst.ID == "" {
		inst.ID = uuid.NewString()
	}
	var out Instrument
	err := p.pool.QueryRow(ctx,
		`INSERT INTO instruments (id, ticker, price)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET price = EXCLUDED.price, updated_at = now()
		 RETURNING id, ticker, price, updated_at`,
		inst.ID, inst.Ticker, inst.Price,
	).Scan(&out.ID, &out.Ticker, &out.Price, &out.UpdatedAt)
	if isDuplicate(err) {
		// Ticker uniqueness, not id; a different record owns this symbol.
		return Instrument{}, ErrDuplicate
	}
	return out, err
}

func (p *Postgres) DeleteInstrument(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM instruments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
