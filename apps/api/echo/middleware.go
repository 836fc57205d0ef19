package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ecolemoderne/campus/core/auth"
	"github.com/ecolemoderne/campus/core/user"
)

// areaMiddleware gates a route group behind the role authorization gate.
// A denied request is answered with the gate's redirect decision rather
// than a bare error, so the SPA always knows where to send the user.
func areaMiddleware(area auth.Area, svc *user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx, svc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			decision := auth.Resolve(&usr, area)
			if decision.Allow {
				return next(ctx)
			}
			return ctx.JSON(errHTTPForbidden.Code, decision)
		}
	}
}

// adminSessionMiddleware requires an elevated back-office session token;
// a plain admin token does not pass.
func adminSessionMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if !claims.isAdminSession() {
				return errHTTPForbidden
			}
			return next(ctx)
		}
	}
}
