package auth

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/ecolemoderne/campus/core"
	"github.com/ecolemoderne/campus/core/user"
)

// Bootstrap rejection reasons, surfaced to the client as-is.
const (
	ReasonConsumed = "déjà utilisé"
	ReasonLocked   = "temporairement verrouillé"
)

var ErrAdminExists = errors.New("un administrateur existe déjà")

// bootstrapState is the guard's lifecycle: a fresh process starts Available,
// repeated key mismatches move it to Locked until the lockout expires,
// and a successful first-admin creation moves it to Consumed for good.
type bootstrapState int

const (
	stateAvailable bootstrapState = iota
	stateLocked
	stateConsumed
)

type (
	// UnavailableError is returned when the bootstrap flow is closed,
	// either consumed or locked out.
	UnavailableError struct {
		Reason       string
		LockoutUntil *time.Time
	}

	// InvalidKeyError is returned on a bootstrap key mismatch.
	InvalidKeyError struct {
		AttemptsRemaining int
	}
)

func (e *UnavailableError) Error() string { return "bootstrap non disponible: " + e.Reason }
func (e *InvalidKeyError) Error() string  { return "clé de bootstrap invalide" }

// BootstrapUserStore is the user-store surface the bootstrap guard needs.
// *user.Service satisfies it.
type BootstrapUserStore interface {
	AdminExists(ctx context.Context) (bool, error)
	CreateFirstAdmin(ctx context.Context, name, email, pwd string) (user.User, error)
}

// NewAdmin is the bootstrap first-admin request.
type NewAdmin struct {
	Name         string `json:"name" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,pwdminlen"`
	BootstrapKey string `json:"bootstrapKey" validate:"required"`
}

// Availability is the bootstrap availability report.
type Availability struct {
	Available         bool       `json:"available"`
	AttemptsRemaining int        `json:"attempts_remaining"`
	Reason            string     `json:"reason,omitempty"`
	LockoutUntil      *time.Time `json:"lockoutUntil,omitempty"`
}

// BootstrapGuard gates the one-time creation of the first administrator,
// with a bounded attempt budget on the pre-shared bootstrap key.
//
// All state transitions, including the "does an admin already exist" check,
// happen under one mutex so that two concurrent bootstrap calls can never
// both create a first admin.
type BootstrapGuard struct {
	mu       sync.Mutex
	conf     core.BootstrapConfig
	users    BootstrapUserStore
	validate *validator.Validate
	now      func() time.Time

	state        bootstrapState
	attempts     int
	lockoutUntil time.Time
}

func NewBootstrapGuard(conf core.BootstrapConfig, users BootstrapUserStore, validate *validator.Validate, now ...func() time.Time) *BootstrapGuard {
	nowFunc := time.Now
	if len(now) > 0 && now[0] != nil {
		nowFunc = now[0]
	}
	return &BootstrapGuard{
		conf:     conf,
		users:    users,
		validate: validate,
		now:      nowFunc,
	}
}

// available reports whether the bootstrap flow is open,
// lazily resetting an expired lockout. mu must be held.
func (g *BootstrapGuard) available() bool {
	switch g.state {
	case stateConsumed:
		return false
	case stateLocked:
		if g.now().Before(g.lockoutUntil) {
			return false
		}
		// lockout expired: fresh attempt budget
		g.state = stateAvailable
		g.attempts = 0
		g.lockoutUntil = time.Time{}
	}
	return true
}

// unavailableError builds the rejection for a closed bootstrap flow. mu must be held.
func (g *BootstrapGuard) unavailableError() *UnavailableError {
	if g.state == stateConsumed {
		return &UnavailableError{Reason: ReasonConsumed}
	}
	until := g.lockoutUntil
	return &UnavailableError{Reason: ReasonLocked, LockoutUntil: &until}
}

// CheckAvailability reports whether the bootstrap flow is open and how many
// key attempts remain.
func (g *BootstrapGuard) CheckAvailability() Availability {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.available() {
		unavail := g.unavailableError()
		return Availability{
			Reason:       unavail.Reason,
			LockoutUntil: unavail.LockoutUntil,
		}
	}
	return Availability{
		Available:         true,
		AttemptsRemaining: g.conf.MaxAttempts - g.attempts,
	}
}

// CreateFirstAdmin creates the one and only bootstrap administrator.
//
// The attempt counter moves only on a key mismatch; a validation failure is
// not attacker signal and leaves the budget untouched.
func (g *BootstrapGuard) CreateFirstAdmin(ctx context.Context, na NewAdmin) (user.User, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.available() {
		return user.User{}, g.unavailableError()
	}

	if subtle.ConstantTimeCompare([]byte(na.BootstrapKey), []byte(g.conf.Key)) == 0 {
		g.attempts++
		if g.attempts >= g.conf.MaxAttempts {
			g.state = stateLocked
			g.lockoutUntil = g.now().Add(g.conf.LockoutDelta)
		}
		remaining := g.conf.MaxAttempts - g.attempts
		if remaining < 0 {
			remaining = 0
		}
		return user.User{}, &InvalidKeyError{AttemptsRemaining: remaining}
	}

	na.Name = core.CleanString(na.Name)
	na.Email = core.CleanString(na.Email, true /* lower */)
	if err := g.validate.Struct(na); err != nil {
		return user.User{}, err
	}

	// the user store is the source of truth for one-time-use;
	// it must agree with the Consumed state above.
	exists, err := g.users.AdminExists(ctx)
	if err != nil {
		return user.User{}, errors.Wrap(err, "checking for existing admin")
	}
	if exists {
		return user.User{}, ErrAdminExists
	}

	usr, err := g.users.CreateFirstAdmin(ctx, na.Name, na.Email, na.Password)
	if err != nil {
		return user.User{}, errors.Wrap(err, "creating first admin")
	}
	g.state = stateConsumed
	return usr, nil
}
