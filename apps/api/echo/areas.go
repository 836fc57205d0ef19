package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ecolemoderne/campus/core/auth"
	"github.com/ecolemoderne/campus/core/user"
)

// registerAreaAPIs mounts the role-gated area entry points. Each one answers
// a small home payload; the actual dashboard content lives in the SPA.
func registerAreaAPIs(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	svc := deps.UserSvc

	g.GET("/student/home", areaHome(svc), jwt, areaMiddleware(auth.AreaStudent, svc))
	g.GET("/teacher/home", areaHome(svc), jwt, areaMiddleware(auth.AreaTeacher, svc))
	g.GET("/secretariat/home", areaHome(svc), jwt, areaMiddleware(auth.AreaSecretariat, svc))
}

func areaHome(svc *user.Service) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		usr, err := getContextUser(ctx, svc)
		if err != nil {
			return errors.Wrap(err, "getting context user")
		}
		return ctx.JSON(http.StatusOK, echo.Map{
			"user":        usr,
			"permissions": usr.Permissions(),
		})
	}
}
