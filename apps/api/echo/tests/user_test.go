package tests

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/ecolemoderne/campus/core/user"
)

func registerBody(name, email, pwd string, role user.Role) []byte {
	return []byte(fmt.Sprintf(
		`{"name":%q,"email":%q,"password":%q,"password_confirm":%q,"role":%q}`,
		name, email, pwd, pwd, role,
	))
}

func loginBody(email, pwd string) []byte {
	return []byte(fmt.Sprintf(`{"email":%q,"password":%q}`, email, pwd))
}

func TestUserAPI_register(t *testing.T) {
	srv := setup(t)

	req, rec := newRequest(http.MethodPost, "/v1/users/register",
		registerBody("Étudiant Test", "etudiant@ecole-moderne.fr", "S3curepass", user.RoleStudent))
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("code = %d; want 201; body %s", rec.Code, rec.Body.String())
	}
	var usr user.User
	if err := json.Unmarshal(rec.Body.Bytes(), &usr); err != nil {
		t.Fatal(err)
	}
	if usr.Role != user.RoleStudent || usr.Status != user.StatusActive {
		t.Errorf("user = %+v; want active student", usr)
	}

	// teachers start out pending validation and get notified
	req, rec = newRequest(http.MethodPost, "/v1/users/register",
		registerBody("Prof Test", "prof@ecole-moderne.fr", "S3curepass", user.RoleTeacher))
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("code = %d; want 201; body %s", rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &usr); err != nil {
		t.Fatal(err)
	}
	if usr.Status != user.StatusPendingValidation {
		t.Errorf("teacher status = %q; want pending_validation", usr.Status)
	}
	if !sentMailContains(t, "prof@ecole-moderne.fr", "en attente de validation") {
		t.Error("no pending-validation mail was sent")
	}
}

func TestUserAPI_registerValidation(t *testing.T) {
	srv := setup(t)
	createUser(t, "Étudiant", "pris@ecole-moderne.fr", "S3curepass", user.RoleStudent)

	tests := []struct {
		name      string
		body      []byte
		wantField string
	}{
		{"taken email", registerBody("Autre", "pris@ecole-moderne.fr", "S3curepass", user.RoleStudent), "email"},
		{"admin role refused", registerBody("Rusé", "ruse@ecole-moderne.fr", "S3curepass", user.RoleAdmin), "role"},
		{"password too short", registerBody("Court", "court@ecole-moderne.fr", "short", user.RoleStudent), "password"},
		{"password all numeric", registerBody("Chiffres", "chiffres@ecole-moderne.fr", "12345678", user.RoleStudent), "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/register", tt.body)
			srv.ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("code = %d; want 400; body %s", rec.Code, rec.Body.String())
			}
			var fldErrs map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &fldErrs); err != nil {
				t.Fatal(err)
			}
			if _, ok := fldErrs[tt.wantField]; !ok {
				t.Errorf("missing field error for %q: %v", tt.wantField, fldErrs)
			}
		})
	}
}

func TestUserAPI_login(t *testing.T) {
	srv := setup(t)
	createUser(t, "Étudiant", "etudiant@ecole-moderne.fr", "S3curepass", user.RoleStudent)
	createUser(t, "Suspendu", "suspendu@ecole-moderne.fr", "S3curepass", user.RoleStudent, user.StatusSuspended)

	tests := []httpTest{
		{
			name:     "valid credentials",
			body:     loginBody("etudiant@ecole-moderne.fr", "S3curepass"),
			wantCode: http.StatusOK,
		},
		{
			name:     "email is case-insensitive",
			body:     loginBody("Etudiant@Ecole-Moderne.fr", "S3curepass"),
			wantCode: http.StatusOK,
		},
		{
			name:     "wrongpassword",
			body:     loginBody("etudiant@ecole-moderne.fr", "wrongpass"),
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, httpErr{Error: "utilisateur ou mot de passe invalide"}),
		},
		{
			name:     "unknown email",
			body:     loginBody("inconnu@ecole-moderne.fr", "S3curepass"),
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, httpErr{Error: "utilisateur ou mot de passe invalide"}),
		},
		{
			name:     "suspended account",
			body:     loginBody("suspendu@ecole-moderne.fr", "S3curepass"),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "compte suspendu"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", tt.body)
			srv.ServeHTTP(rec, req)
			if tt.wantData != nil {
				checkCodeAndData(t, tt, rec)
				return
			}
			if rec.Code != tt.wantCode {
				t.Fatalf("code = %d; want %d; body %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			var resp struct {
				Token string `json:"token"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Token == "" {
				t.Error("no token issued")
			}
		})
	}
}

func TestUserAPI_me(t *testing.T) {
	srv := setup(t)
	usr := createUser(t, "Étudiant", "etudiant@ecole-moderne.fr", "S3curepass", user.RoleStudent)

	req, rec := newAuthRequest(http.MethodGet, "/v1/users/me", getToken(t, usr))
	srv.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, usr)}, rec)

	req, rec = newRequest(http.MethodGet, "/v1/users/me")
	srv.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}, rec)
}

func TestUserAPI_tokenRefresh(t *testing.T) {
	srv := setup(t)
	usr := createUser(t, "Étudiant", "etudiant@ecole-moderne.fr", "S3curepass", user.RoleStudent)

	req, rec := newAuthRequest(http.MethodPost, "/v1/users/token-refresh", getToken(t, usr))
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d; body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Token == "" {
		t.Error("no token issued")
	}
}

func TestNavigationAPI(t *testing.T) {
	srv := setup(t)
	student := createUser(t, "Étudiant", "etudiant@ecole-moderne.fr", "S3curepass", user.RoleStudent)
	pending := createUser(t, "Prof En Attente", "attente@ecole-moderne.fr", "S3curepass", user.RoleTeacher)
	admin := createAdmin(t, "Directeur", "directeur@ecole-moderne.fr", "S3curepass")

	tests := []httpTest{
		{
			name:     "anonymous on public",
			path:     "/v1/navigation?area=public",
			wantCode: http.StatusOK,
			wantData: []byte(`{"allow":true}`),
		},
		{
			name:     "anonymous on student area",
			path:     "/v1/navigation?area=student-area",
			wantCode: http.StatusOK,
			wantData: []byte(`{"allow":false,"redirect_to":"login","reason":"authentification requise"}`),
		},
		{
			name:     "student on own area",
			path:     "/v1/navigation?area=student-area",
			token:    getToken(t, student),
			wantCode: http.StatusOK,
			wantData: []byte(`{"allow":true}`),
		},
		{
			name:     "student on teacher area",
			path:     "/v1/navigation?area=teacher-area",
			token:    getToken(t, student),
			wantCode: http.StatusOK,
			wantData: []byte(`{"allow":false,"redirect_to":"public","reason":"accès non autorisé pour votre rôle"}`),
		},
		{
			name:     "pending teacher on teacher area",
			path:     "/v1/navigation?area=teacher-area",
			token:    getToken(t, pending),
			wantCode: http.StatusOK,
			wantData: []byte(`{"allow":false,"redirect_to":"public","reason":"votre compte enseignant est en attente de validation par l'administration"}`),
		},
		{
			name:     "admin landing",
			path:     "/v1/navigation?area=public&landing=true",
			token:    getToken(t, admin),
			wantCode: http.StatusOK,
			wantData: []byte(`{"allow":false,"redirect_to":"admin-area"}`),
		},
		{
			name:     "student landing stays public",
			path:     "/v1/navigation?area=public&landing=true",
			token:    getToken(t, student),
			wantCode: http.StatusOK,
			wantData: []byte(`{"allow":true}`),
		},
		{
			name:     "garbage token is anonymous",
			path:     "/v1/navigation?area=student-area",
			token:    "not-a-jwt",
			wantCode: http.StatusOK,
			wantData: []byte(`{"allow":false,"redirect_to":"login","reason":"authentification requise"}`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			srv.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func TestAreaAPI_homes(t *testing.T) {
	srv := setup(t)
	student := createUser(t, "Étudiant", "etudiant@ecole-moderne.fr", "S3curepass", user.RoleStudent)
	validated := createUser(t, "Prof Validé", "valide@ecole-moderne.fr", "S3curepass", user.RoleTeacher, user.StatusValidated)
	pending := createUser(t, "Prof En Attente", "attente@ecole-moderne.fr", "S3curepass", user.RoleTeacher)
	admin := createAdmin(t, "Directeur", "directeur@ecole-moderne.fr", "S3curepass")

	tests := []httpTest{
		{
			name:     "student home",
			path:     "/v1/student/home",
			token:    getToken(t, student),
			wantCode: http.StatusOK,
		},
		{
			name:     "student cannot enter teacher home",
			path:     "/v1/teacher/home",
			token:    getToken(t, student),
			wantCode: http.StatusForbidden,
			wantData: []byte(`{"allow":false,"redirect_to":"public","reason":"accès non autorisé pour votre rôle"}`),
		},
		{
			name:     "validated teacher home",
			path:     "/v1/teacher/home",
			token:    getToken(t, validated),
			wantCode: http.StatusOK,
		},
		{
			name:     "pending teacher is redirected",
			path:     "/v1/teacher/home",
			token:    getToken(t, pending),
			wantCode: http.StatusForbidden,
			wantData: []byte(`{"allow":false,"redirect_to":"public","reason":"votre compte enseignant est en attente de validation par l'administration"}`),
		},
		{
			name:     "admin passes every area",
			path:     "/v1/secretariat/home",
			token:    getToken(t, admin),
			wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			srv.ServeHTTP(rec, req)
			if tt.wantData != nil {
				checkCodeAndData(t, tt, rec)
				return
			}
			if rec.Code != tt.wantCode {
				t.Fatalf("code = %d; want %d; body %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			var resp struct {
				User        user.User `json:"user"`
				Permissions []string  `json:"permissions"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if len(resp.Permissions) == 0 {
				t.Error("home payload has no permissions")
			}
		})
	}
}

func TestHealthAPI(t *testing.T) {
	srv := setup(t)
	req, rec := newRequest(http.MethodGet, "/health")
	srv.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusOK,
		wantData: []byte(`{"backend":"OK","store":"OK"}`),
	}, rec)
}
