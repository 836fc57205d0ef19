package inmemdb

import (
	"context"

	"github.com/ecolemoderne/campus/core/auth"
)

type attemptStore struct {
	db *attemptTable
}

func NewAttemptStore(db *DB) auth.AttemptStore {
	return &attemptStore{db: db.attempt}
}

func (store *attemptStore) GetLoginAttempt(ctx context.Context, clientID string) (auth.LoginAttempt, error) {
	store.db.mutex.RLock()
	defer store.db.mutex.RUnlock()

	// zero value for unknown clients
	return store.db.table[clientID], nil
}

func (store *attemptStore) SaveLoginAttempt(ctx context.Context, att auth.LoginAttempt) error {
	store.db.mutex.Lock()
	defer store.db.mutex.Unlock()

	store.db.table[att.ClientID] = att
	return nil
}

func (store *attemptStore) ClearLoginAttempt(ctx context.Context, clientID string) error {
	store.db.mutex.Lock()
	defer store.db.mutex.Unlock()

	delete(store.db.table, clientID)
	return nil
}
