package inmemdb

import (
	"sync"

	"github.com/ecolemoderne/campus/core/auth"
	"github.com/ecolemoderne/campus/core/user"
)

type (
	// DB is the process-lifetime in-memory store. Persistence across restarts
	// is out of scope; each table is guarded by its own RWMutex.
	DB struct {
		user    *userTable
		attempt *attemptTable
	}

	userTable struct {
		table map[string]*user.User
		mutex sync.RWMutex
	}

	attemptTable struct {
		table map[string]auth.LoginAttempt
		mutex sync.RWMutex
	}
)

func Open() *DB {
	return &DB{
		user:    &userTable{table: make(map[string]*user.User)},
		attempt: &attemptTable{table: make(map[string]auth.LoginAttempt)},
	}
}
