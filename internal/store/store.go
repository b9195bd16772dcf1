// Package store persists user accounts and registered instruments. Two
// implementations exist: Postgres (pgx) for production and an in-memory map
// for tests and keyless local runs.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// User is one account record. PasswordHash is a bcrypt hash, never the
// plaintext.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Instrument is a registered tradable symbol with its last fetched price.
type Instrument struct {
	ID        string    `json:"id"`
	Ticker    string    `json:"ticker"`
	Price     float64   `json:"current_price"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AccountStore holds user records.
type AccountStore interface {
	CreateUser(ctx context.Context, username, passwordHash string) (User, error)
	GetUser(ctx context.Context, username string) (User, error)
	UpdatePassword(ctx context.Context, username, passwordHash string) error
}

// InstrumentStore holds instrument records keyed by ticker.
type InstrumentStore interface {
	FindInstrument(ctx context.Context, ticker string) (Instrument, error)
	SaveInstrument(ctx context.Context, inst Instrument) (Instrument, error)
	DeleteInstrument(ctx context.Context, id string) error
}
