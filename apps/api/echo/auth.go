package echoapi

import (
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ecolemoderne/campus/core"
	"github.com/ecolemoderne/campus/core/auth"
	"github.com/ecolemoderne/campus/core/user"
)

const (
	jwtContextKey  = "userToken"
	contextUserKey = "user"

	// session type claim carried by elevated back-office tokens
	adminSessionType = "admin_session"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt  int64       `json:"oriat,omitempty"`
	Email         string      `json:"email,omitempty"`
	Role          user.Role   `json:"role,omitempty"`
	Status        user.Status `json:"status,omitempty"`
	IsStudent     bool        `json:"is_student,omitempty"`     // -> STUDENT AREA
	IsTeacher     bool        `json:"is_teacher,omitempty"`     // -> TEACHER AREA
	IsSecretariat bool        `json:"is_secretariat,omitempty"` // -> SECRETARIAT AREA
	IsAdmin       bool        `json:"is_admin,omitempty"`       // -> ADMIN AREA
	SessionType   string      `json:"type,omitempty"`
	SessionID     string      `json:"sid,omitempty"`
}

func (c *Claims) isAdminSession() bool {
	return c.SessionType == adminSessionType && c.IsAdmin
}

// GetUserClaims builds the claims for a normal authenticated session.
func GetUserClaims(conf *core.Config, usr user.User, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	var oriat int64
	if len(origIat) > 0 {
		oriat = origIat[0]
	} else {
		oriat = nownix
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   usr.ID,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt:  oriat,
		Email:         usr.Email,
		Role:          usr.Role,
		Status:        usr.Status,
		IsStudent:     usr.IsStudent(),
		IsTeacher:     usr.IsTeacher(),
		IsSecretariat: usr.IsSecretariat(),
		IsAdmin:       usr.IsAdmin(),
	}
}

// GetAdminSessionClaims builds the claims for an elevated back-office session
// granted by the admin secure-login guard.
func GetAdminSessionClaims(conf *core.Config, sess auth.Session) *Claims {
	claims := GetUserClaims(conf, sess.User)
	claims.ExpiresAt = sess.ExpiresAt.Unix()
	claims.SessionType = adminSessionType
	claims.SessionID = sess.SessionID
	return claims
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func authenticate(ctx echo.Context, conf *core.Config, email, pwd string, svc *user.Service) (*Claims, error) {
	c := ctx.Request().Context()
	usr, err := svc.GetByEmail(c, email)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return nil, errAuthenticationFailed
		}
		return nil, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return nil, errAuthenticationFailed
	}
	if usr.Status == user.StatusSuspended {
		return nil, errAccountSuspended
	}
	usr, err = svc.SetLastLogin(c, usr)
	if err != nil {
		return nil, errors.Wrap(err, "setting lastLogin")
	}
	return GetUserClaims(conf, usr), nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(jwtContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextUser(ctx echo.Context, svc *user.Service, clms ...Claims) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}

	var claims Claims
	var err error
	if len(clms) > 0 {
		claims = clms[0]
	} else {
		claims, err = getContextClaims(ctx)
		if err != nil {
			return user.User{}, errors.Wrap(err, "getting context claims")
		}
	}

	usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

// optionalContextUser resolves the bearer token if one is present; an absent
// or invalid token yields an anonymous (nil) user, not an error.
func optionalContextUser(ctx echo.Context, conf *core.Config, svc *user.Service) *user.User {
	header := ctx.Request().Header.Get(echo.HeaderAuthorization)
	if !strings.HasPrefix(header, "Bearer ") {
		return nil
	}

	claims := new(Claims)
	token, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(conf.SecretKey), nil
	})
	if err != nil || !token.Valid {
		return nil
	}

	usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return nil
	}
	return &usr
}

func refreshToken(ctx echo.Context, conf *core.Config, svc *user.Service) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}

	usr, err := getContextUser(ctx, svc, claims)
	if err != nil {
		return "", errors.Wrap(err, "getting context user")
	}

	if usr.Status == user.StatusSuspended {
		return "", errAccountSuspended
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	newClaims := GetUserClaims(conf, usr, claims.OrigIssuedAt)
	token, err := GenerateToken(conf, newClaims)
	return token, errors.Wrap(err, "generating token")
}
