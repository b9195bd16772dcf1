package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is a map-backed store for tests and local runs without a database.
// Safe for concurrent use.
type Memory struct {
	mu          sync.RWMutex
	users       map[string]User       // key: username
	instruments map[string]Instrument // key: ticker
}

func NewMemory() *Memory {
	return &Memory{
		users:       make(map[string]User),
		instruments: make(map[string]Instrument),
	}
}

func (m *Memory) CreateUser(_ context.Context, username, passwordHash string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[username]; ok {
		return User{}, ErrDuplicate
	}
	u := User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	m.users[username] = u
	return u, nil
}

func (m *Memory) GetUser(_ context.Context, username string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[username]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *Memory) UpdatePassword(_ context.Context, username, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	m.users[username] = u
	return nil
}

func (m *Memory) FindInstrument(_ context.Context, ticker string) (Instrument, error) {
	key := strings.ToUpper(strings.TrimSpace(ticker))
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.instruments[key]
	if !ok {
		return Instrument{}, ErrNotFound
	}
	return inst, nil
}

func (m *Memory) SaveInstrument(_ context.Context, inst Instrument) (Instrument, error) {
	inst.Ticker = strings.ToUpper(strings.TrimSpace(inst.Ticker))
	if inst.ID == "" {
		inst.ID = uuid.NewString()
	}
	inst.UpdatedAt = time.Now().UTC()
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.instruments[inst.Ticker]; ok && existing.ID != inst.ID {
		return Instrument{}, ErrDuplicate
	}
	m.instruments[inst.Ticker] = inst
	return inst, nil
}

func (m *Memory) DeleteInstrument(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ticker, inst := range m.instruments {
		if inst.ID == id {
			delete(m.instruments, ticker)
			return nil
		}
	}
	return ErrNotFound
}
