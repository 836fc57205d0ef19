package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ecolemoderne/campus/core"
	"github.com/ecolemoderne/campus/core/auth"
	"github.com/ecolemoderne/campus/core/user"
)

type adminApi struct {
	conf     *core.Config
	guard    *auth.AdminGuard
	svc      *user.Service
	validate *validator.Validate
}

// registerAdminAPI mounts the admin area under /v1/admin, behind the role
// authorization gate.
func registerAdminAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := adminApi{
		conf:     deps.Conf,
		guard:    deps.AdminGuard,
		svc:      deps.UserSvc,
		validate: deps.Validate,
	}

	ag := g.Group("/admin", jwt, areaMiddleware(auth.AreaAdmin, deps.UserSvc))
	ag.GET("/dashboard/stats", api.stats)
	ag.GET("/teacher-validations", api.pendingTeachers)
	ag.POST("/teacher-validations/:id", api.validateTeacher)
}

// registerBackOfficeAPI mounts the back-office under /bo/admin. Everything
// except the secure login itself requires an elevated admin session token;
// a plain admin token does not pass.
func registerBackOfficeAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := adminApi{
		conf:     deps.Conf,
		guard:    deps.AdminGuard,
		svc:      deps.UserSvc,
		validate: deps.Validate,
	}

	ag := g.Group("/admin")
	ag.POST("/login", api.login)

	sg := ag.Group("", jwt, adminSessionMiddleware())
	sg.POST("/logout", api.logout)
	sg.GET("/session", api.session)
	sg.GET("/stats", api.stats)
}

// login is the triple-check back-office authentication: source tag, email
// allow-list and admin key, on top of the account credentials. Failed
// attempts are counted per client and blocked after the budget is spent.
func (api *adminApi) login(ctx echo.Context) error {
	var data auth.Credentials
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Credentials")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}
	data.Email = core.CleanString(data.Email, true /* lower */)

	sess, err := api.guard.Login(ctx.Request().Context(), data, ctx.RealIP())
	if err != nil {
		return err
	}

	token, err := GenerateToken(api.conf, GetAdminSessionClaims(api.conf, sess))
	if err != nil {
		return errors.Wrap(err, "generating admin session token")
	}
	return ctx.JSON(http.StatusOK, AdminLoginResponse{
		Token:     token,
		User:      sess.User,
		SessionID: sess.SessionID,
		ExpiresAt: sess.ExpiresAt,
	})
}

func (api *adminApi) logout(ctx echo.Context) error {
	// tokens are stateless; the client drops theirs
	return ctx.JSON(http.StatusOK, LogoutResponse{
		Message:       "Déconnexion admin réussie",
		SessionClosed: true,
	})
}

func (api *adminApi) session(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	return ctx.JSON(http.StatusOK, echo.Map{
		"sessionId": claims.SessionID,
		"expiresAt": claims.ExpiresAt,
		"email":     claims.Email,
	})
}

func (api *adminApi) stats(ctx echo.Context) error {
	stats, err := api.svc.Stats(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *adminApi) pendingTeachers(ctx echo.Context) error {
	teachers, err := api.svc.PendingTeachers(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying pending teachers")
	}
	return ctx.JSON(http.StatusOK, echo.Map{
		"requests": teachers,
		"total":    len(teachers),
	})
}

func (api *adminApi) validateTeacher(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	usr, err := api.svc.ValidateTeacher(ctx.Request().Context(), ctx.Param("id"), ctxUsr.ID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotPendingTeacher {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}
