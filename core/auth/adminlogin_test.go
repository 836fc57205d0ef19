package auth

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ecolemoderne/campus/core"
	"github.com/ecolemoderne/campus/core/user"
)

// fakeAttemptStore implements AttemptStore in memory.
type fakeAttemptStore struct {
	mu       sync.Mutex
	attempts map[string]LoginAttempt
}

func newFakeAttemptStore() *fakeAttemptStore {
	return &fakeAttemptStore{attempts: make(map[string]LoginAttempt)}
}

func (s *fakeAttemptStore) GetLoginAttempt(ctx context.Context, clientID string) (LoginAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts[clientID], nil
}

func (s *fakeAttemptStore) SaveLoginAttempt(ctx context.Context, att LoginAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[att.ClientID] = att
	return nil
}

func (s *fakeAttemptStore) ClearLoginAttempt(ctx context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempts, clientID)
	return nil
}

var adminConf = core.AdminConfig{
	Key:           "AdminKey!",
	AllowedEmails: []string{"directeur@ecole-moderne.fr"},
	SourceTag:     "admin_backoffice",
	SessionDelta:  2 * time.Hour,
	MaxAttempts:   3,
	BlockDelta:    15 * time.Minute,
}

const clientID = "203.0.113.7"

func newAdminTestStore(t *testing.T) *fakeUserStore {
	t.Helper()
	store := &fakeUserStore{}
	if _, err := store.CreateFirstAdmin(context.Background(), "Directeur", "directeur@ecole-moderne.fr", "longpassword"); err != nil {
		t.Fatal(err)
	}
	return store
}

func goodCreds() Credentials {
	return Credentials{
		Email:    "directeur@ecole-moderne.fr",
		Password: "longpassword",
		AdminKey: adminConf.Key,
		Source:   adminConf.SourceTag,
	}
}

func TestAdminGuard_checkOrder(t *testing.T) {
	now := time.Now()
	store := newAdminTestStore(t)

	// a student on the allow-list would be rejected at the role check
	student := user.User{ID: "stu", Name: "Étudiant", Email: "etudiant@ecole-moderne.fr", Role: user.RoleStudent, Status: user.StatusActive}
	if err := student.SetPassword("longpassword"); err != nil {
		t.Fatal(err)
	}
	store.users = append(store.users, student)

	tests := []struct {
		name    string
		mutate  func(*Credentials)
		wantErr error
	}{
		{"wrong source", func(c *Credentials) { c.Source = "frontend" }, ErrForbiddenSource},
		{"email not allowed", func(c *Credentials) { c.Email = "autre@ecole-moderne.fr" }, ErrUnknownAdmin},
		{"wrong admin key", func(c *Credentials) { c.AdminKey = "nope" }, ErrInvalidAdminKey},
		{"wrong password", func(c *Credentials) { c.Password = "wrongpassword" }, ErrInvalidCredentials},
		{
			"non-admin account",
			func(c *Credentials) { c.Email = "etudiant@ecole-moderne.fr" },
			ErrUnknownAdmin, // allow-list fires before the account is even looked up
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			guard := NewAdminGuard(adminConf, store, newFakeAttemptStore(), func() time.Time { return now })
			creds := goodCreds()
			tt.mutate(&creds)
			_, err := guard.Login(context.Background(), creds, clientID)
			if err != tt.wantErr {
				t.Errorf("Login() err = %v; want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAdminGuard_nonAdminRoleRejected(t *testing.T) {
	now := time.Now()
	store := &fakeUserStore{}
	student := user.User{ID: "stu", Name: "Étudiant", Email: "directeur@ecole-moderne.fr", Role: user.RoleStudent, Status: user.StatusActive}
	if err := student.SetPassword("longpassword"); err != nil {
		t.Fatal(err)
	}
	store.users = append(store.users, student)

	guard := NewAdminGuard(adminConf, store, newFakeAttemptStore(), func() time.Time { return now })
	_, err := guard.Login(context.Background(), goodCreds(), clientID)
	if err != ErrInvalidCredentials {
		t.Errorf("Login() err = %v; want ErrInvalidCredentials for non-admin role", err)
	}
}

func TestAdminGuard_blockedAfterMaxFailures(t *testing.T) {
	now := time.Now()
	store := newAdminTestStore(t)
	attempts := newFakeAttemptStore()
	guard := NewAdminGuard(adminConf, store, attempts, func() time.Time { return now })
	ctx := context.Background()

	bad := goodCreds()
	bad.Password = "wrongpassword"
	for i := 0; i < 3; i++ {
		if _, err := guard.Login(ctx, bad, clientID); err != ErrInvalidCredentials {
			t.Fatalf("attempt %d: err = %v; want ErrInvalidCredentials", i+1, err)
		}
	}

	// blocked now, even with fully valid credentials,
	// and the user store must not be consulted at all
	before := store.getByEmailCalls
	_, err := guard.Login(ctx, goodCreds(), clientID)
	blocked, ok := err.(*BlockedError)
	if !ok {
		t.Fatalf("err = %v; want *BlockedError", err)
	}
	// the whole 15-minute window is ahead of the frozen clock; never more
	if blocked.MinutesRemaining != 15 {
		t.Errorf("MinutesRemaining = %d; want 15", blocked.MinutesRemaining)
	}
	if store.getByEmailCalls != before {
		t.Error("user store was consulted while blocked")
	}

	// another client is unaffected
	if _, err := guard.Login(ctx, goodCreds(), "198.51.100.9"); err != nil {
		t.Errorf("other client Login() failed: %v", err)
	}
}

func TestAdminGuard_blockCountdown(t *testing.T) {
	now := time.Now()
	nowFunc := func() time.Time { return now }
	store := newAdminTestStore(t)
	guard := NewAdminGuard(adminConf, store, newFakeAttemptStore(), nowFunc)
	ctx := context.Background()

	bad := goodCreds()
	bad.AdminKey = "nope"
	for i := 0; i < 3; i++ {
		guard.Login(ctx, bad, clientID)
	}

	tests := []struct {
		name     string
		advance  time.Duration
		wantMins int
	}{
		{"window just opened", 0, 15},
		{"half a minute in", 30 * time.Second, 15},
		{"ten minutes in", 10 * time.Minute, 5},
		{"thirty seconds left", 14*time.Minute + 30*time.Second, 1},
	}
	start := now
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now = start.Add(tt.advance)
			_, err := guard.Login(ctx, goodCreds(), clientID)
			blocked, ok := err.(*BlockedError)
			if !ok {
				t.Fatalf("err = %v; want *BlockedError", err)
			}
			if blocked.MinutesRemaining != tt.wantMins {
				t.Errorf("MinutesRemaining = %d; want %d", blocked.MinutesRemaining, tt.wantMins)
			}
		})
	}
}

func TestAdminGuard_blockExpiry(t *testing.T) {
	now := time.Now()
	nowFunc := func() time.Time { return now }
	store := newAdminTestStore(t)
	guard := NewAdminGuard(adminConf, store, newFakeAttemptStore(), nowFunc)
	ctx := context.Background()

	bad := goodCreds()
	bad.AdminKey = "nope"
	for i := 0; i < 3; i++ {
		guard.Login(ctx, bad, clientID)
	}
	if _, err := guard.Login(ctx, goodCreds(), clientID); err == nil {
		t.Fatal("client should be blocked")
	}

	now = now.Add(16 * time.Minute)
	sess, err := guard.Login(ctx, goodCreds(), clientID)
	if err != nil {
		t.Fatalf("Login() after block expiry failed: %v", err)
	}
	if sess.User.Email != "directeur@ecole-moderne.fr" {
		t.Errorf("session user = %q", sess.User.Email)
	}
}

func TestAdminGuard_successClearsAttempts(t *testing.T) {
	now := time.Now()
	store := newAdminTestStore(t)
	attempts := newFakeAttemptStore()
	guard := NewAdminGuard(adminConf, store, attempts, func() time.Time { return now })
	ctx := context.Background()

	bad := goodCreds()
	bad.Password = "wrongpassword"
	guard.Login(ctx, bad, clientID)
	guard.Login(ctx, bad, clientID)

	if _, err := guard.Login(ctx, goodCreds(), clientID); err != nil {
		t.Fatalf("Login() failed: %v", err)
	}

	// counter starts over: two more failures must not block
	guard.Login(ctx, bad, clientID)
	guard.Login(ctx, bad, clientID)
	if _, err := guard.Login(ctx, goodCreds(), clientID); err != nil {
		t.Errorf("Login() err = %v; success should have cleared the counter", err)
	}
}

func TestAdminGuard_sessionGrant(t *testing.T) {
	now := time.Now()
	store := newAdminTestStore(t)
	guard := NewAdminGuard(adminConf, store, newFakeAttemptStore(), func() time.Time { return now })

	sess, err := guard.Login(context.Background(), goodCreds(), clientID)
	if err != nil {
		t.Fatalf("Login() failed: %v", err)
	}
	if !strings.HasPrefix(sess.SessionID, "secure-admin-session-") {
		t.Errorf("SessionID = %q; want secure-admin-session- prefix", sess.SessionID)
	}
	if !sess.ExpiresAt.Equal(now.Add(2 * time.Hour)) {
		t.Errorf("ExpiresAt = %v; want %v", sess.ExpiresAt, now.Add(2*time.Hour))
	}
	if !sess.User.IsAdmin() {
		t.Errorf("session user role = %q; want admin", sess.User.Role)
	}
}
