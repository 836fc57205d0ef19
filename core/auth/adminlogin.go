package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/ecolemoderne/campus/core"
	"github.com/ecolemoderne/campus/core/user"
)

// Back-office login rejections. They all map to the same HTTP status class so
// a scripted attacker learns nothing beyond coarse attempt counting.
var (
	ErrForbiddenSource    = errors.New("source non autorisée pour l'accès administrateur")
	ErrUnknownAdmin       = errors.New("email non autorisé pour l'accès administrateur")
	ErrInvalidAdminKey    = errors.New("clé administrateur invalide")
	ErrInvalidCredentials = errors.New("identifiants invalides")
)

// BlockedError is returned while a client's block window is in effect.
// Credentials are not evaluated at all in that state.
type BlockedError struct {
	MinutesRemaining int
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("trop de tentatives échouées, accès bloqué pendant %d minutes", e.MinutesRemaining)
}

type (
	// LoginAttempt tracks back-office login failures for one client.
	LoginAttempt struct {
		ClientID     string
		Attempts     int
		BlockedUntil time.Time
		UpdatedAt    time.Time
	}

	// AttemptStore persists per-client attempt counters. Lookups for an
	// unknown client return a zero LoginAttempt, not an error.
	AttemptStore interface {
		GetLoginAttempt(ctx context.Context, clientID string) (LoginAttempt, error)
		SaveLoginAttempt(ctx context.Context, att LoginAttempt) error
		ClearLoginAttempt(ctx context.Context, clientID string) error
	}

	// AdminUserStore is the user-store surface the admin guard needs.
	AdminUserStore interface {
		GetByEmail(ctx context.Context, email string) (user.User, error)
	}

	// Credentials is the back-office login request.
	Credentials struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
		AdminKey string `json:"adminKey" validate:"required"`
		Source   string `json:"source"`
	}

	// Session is an elevated back-office session grant.
	Session struct {
		User      user.User
		SessionID string
		ExpiresAt time.Time
	}
)

// AdminGuard is the stricter, second authorization path for the back-office,
// independent of normal login.
type AdminGuard struct {
	conf     core.AdminConfig
	users    AdminUserStore
	attempts AttemptStore
	now      func() time.Time
}

func NewAdminGuard(conf core.AdminConfig, users AdminUserStore, attempts AttemptStore, now ...func() time.Time) *AdminGuard {
	nowFunc := time.Now
	if len(now) > 0 && now[0] != nil {
		nowFunc = now[0]
	}
	return &AdminGuard{
		conf:     conf,
		users:    users,
		attempts: attempts,
		now:      nowFunc,
	}
}

// Login runs the ordered back-office checks:
// blocked window first (before any credential comparison), then source tag,
// email allow-list, admin key and finally the account credentials.
// Every failure past the block check costs the client one attempt;
// a success clears the client's counter.
func (g *AdminGuard) Login(ctx context.Context, creds Credentials, clientID string) (Session, error) {
	now := g.now()

	att, err := g.attempts.GetLoginAttempt(ctx, clientID)
	if err != nil {
		return Session{}, errors.Wrap(err, "loading login attempts")
	}
	att.ClientID = clientID
	if !att.BlockedUntil.IsZero() {
		if now.Before(att.BlockedUntil) {
			mins := int(math.Ceil(att.BlockedUntil.Sub(now).Minutes()))
			return Session{}, &BlockedError{MinutesRemaining: mins}
		}
		// block expired: fresh budget
		att = LoginAttempt{ClientID: clientID}
	}

	if creds.Source != g.conf.SourceTag {
		return Session{}, g.fail(ctx, att, ErrForbiddenSource)
	}

	if !g.emailAllowed(creds.Email) {
		return Session{}, g.fail(ctx, att, ErrUnknownAdmin)
	}

	if subtle.ConstantTimeCompare([]byte(creds.AdminKey), []byte(g.conf.Key)) == 0 {
		return Session{}, g.fail(ctx, att, ErrInvalidAdminKey)
	}

	usr, err := g.users.GetByEmail(ctx, creds.Email)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return Session{}, g.fail(ctx, att, ErrInvalidCredentials)
		}
		return Session{}, errors.Wrap(err, "finding admin by email")
	}
	if err = usr.CheckPassword(creds.Password); err != nil {
		return Session{}, g.fail(ctx, att, ErrInvalidCredentials)
	}
	if !usr.IsAdmin() {
		return Session{}, g.fail(ctx, att, ErrInvalidCredentials)
	}

	if err = g.attempts.ClearLoginAttempt(ctx, clientID); err != nil {
		return Session{}, errors.Wrap(err, "clearing login attempts")
	}
	return Session{
		User:      usr,
		SessionID: "secure-admin-session-" + uuid.New().String(),
		ExpiresAt: now.Add(g.conf.SessionDelta),
	}, nil
}

func (g *AdminGuard) emailAllowed(email string) bool {
	for _, allowed := range g.conf.AllowedEmails {
		if email == allowed {
			return true
		}
	}
	return false
}

// fail records one failed attempt for the client and passes loginErr through.
// Reaching the attempt budget opens the block window.
func (g *AdminGuard) fail(ctx context.Context, att LoginAttempt, loginErr error) error {
	att.Attempts++
	att.UpdatedAt = g.now()
	if att.Attempts >= g.conf.MaxAttempts {
		att.BlockedUntil = g.now().Add(g.conf.BlockDelta)
	}
	if err := g.attempts.SaveLoginAttempt(ctx, att); err != nil {
		return errors.Wrap(err, "saving login attempts")
	}
	return loginErr
}
