package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"os"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	. "github.com/ecolemoderne/campus/apps/api/echo"
	"github.com/ecolemoderne/campus/core"
	"github.com/ecolemoderne/campus/core/auth"
	"github.com/ecolemoderne/campus/core/user"
	emailsvc "github.com/ecolemoderne/campus/services/email"
	inmemdb "github.com/ecolemoderne/campus/storage/database/inmem"
)

var (
	conf = &core.Config{
		TestMode:         true,
		Env:              "TEST",
		AppName:          "Campus",
		SecretKey:        "secret-test-key",
		FrontendBaseURL:  "http://localhost:3000",
		DefaultFromEmail: mail.Address{Name: "Campus", Address: "noreply@ecole-moderne.fr"},
		Server: core.ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
		Bootstrap: core.BootstrapConfig{
			Key:          "BOOTSTRAP_TEST_KEY",
			MaxAttempts:  3,
			LockoutDelta: 15 * time.Minute,
		},
		Admin: core.AdminConfig{
			Key:           "AdminKey!",
			AllowedEmails: []string{"directeur@ecole-moderne.fr"},
			SourceTag:     "admin_backoffice",
			SessionDelta:  2 * time.Hour,
			MaxAttempts:   3,
			BlockDelta:    15 * time.Minute,
		},
	}

	usrRepo user.Repository
	usrSvc  *user.Service

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "accès refusé"}
)

// testLogger satisfies core.Logger without reporting anywhere.
type testLogger struct {
	std *log.Logger
}

func (l testLogger) Enable(bool) {}
func (l testLogger) log(msg string, args []interface{}) {
	l.std.Println(append([]interface{}{msg}, args...)...)
}
func (l testLogger) Debug(msg string, args ...interface{}) { l.log(msg, args) }
func (l testLogger) Info(msg string, args ...interface{})  { l.log(msg, args) }
func (l testLogger) Warn(msg string, args ...interface{})  { l.log(msg, args) }
func (l testLogger) Error(msg string, args ...interface{}) { l.log(msg, args) }
func (l testLogger) Fatal(msg string, args ...interface{}) { l.log(msg, args) }

func setup(t *testing.T) *Server {
	t.Helper()

	// fresh store and recorded mail per test
	emailsvc.SentMessages = emailsvc.SentMessages[:0]
	db := inmemdb.Open()
	usrRepo = inmemdb.NewUserRepository(db)
	attemptStore := inmemdb.NewAttemptStore(db)

	validate := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc = user.NewService(usrRepo, mailSvc, conf, validate)

	return NewServer(ServerDeps{
		Conf:       conf,
		Logger:     testLogger{std: log.New(os.Stdout, "TEST ", log.LstdFlags)},
		UserSvc:    usrSvc,
		Bootstrap:  auth.NewBootstrapGuard(conf.Bootstrap, usrSvc, validate),
		AdminGuard: auth.NewAdminGuard(conf.Admin, usrSvc, attemptStore),
		Validate:   validate,
		Translator: translator,
	})
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	claims := GetUserClaims(conf, usr)
	token, err := GenerateToken(conf, claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

// createUser registers a user directly through the service, optionally
// forcing a status afterwards.
func createUser(t *testing.T, name, email, pwd string, role user.Role, status ...user.Status) user.User {
	t.Helper()
	ctx := context.Background()
	usr, err := usrSvc.Register(ctx, user.NewUser{
		Name:            name,
		Email:           email,
		Password:        pwd,
		PasswordConfirm: pwd,
		Role:            role,
	})
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	if len(status) > 0 {
		usr.Status = status[0]
		if usr, err = usrRepo.UpdateUser(ctx, usr); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	return usr
}

func createAdmin(t *testing.T, name, email, pwd string) user.User {
	t.Helper()
	usr, err := usrSvc.CreateFirstAdmin(context.Background(), name, email, pwd)
	if err != nil {
		t.Fatalf("createAdmin() failed: %v", err)
	}
	return usr
}

// sentMailContains reports whether a recorded mail went to the given address
// with the given substring in its subject.
func sentMailContains(t *testing.T, to, subjPart string) bool {
	t.Helper()
	for _, msg := range emailsvc.SentMessages {
		for _, addr := range msg.To {
			if addr.Address == to && strings.Contains(msg.Subject, subjPart) {
				return true
			}
		}
	}
	return false
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
