package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ecolemoderne/campus/core/auth"
)

type bootstrapApi struct {
	guard *auth.BootstrapGuard
}

// registerBootstrapAPI mounts the one-time first-admin setup flow under /bo/setup.
// These endpoints are deliberately un-authed: they only matter before any
// admin exists, and the guard carries its own key and lockout protection.
func registerBootstrapAPI(g *echo.Group, guard *auth.BootstrapGuard) {
	api := bootstrapApi{guard: guard}

	sg := g.Group("/setup")
	sg.GET("/bootstrap", api.availability)
	sg.POST("/create-admin", api.createFirstAdmin)
}

func (api *bootstrapApi) availability(ctx echo.Context) error {
	avail := api.guard.CheckAvailability()
	if !avail.Available {
		return ctx.JSON(http.StatusForbidden, echo.Map{
			"error":        "Bootstrap non disponible",
			"reason":       avail.Reason,
			"lockoutUntil": avail.LockoutUntil,
		})
	}
	return ctx.JSON(http.StatusOK, echo.Map{
		"available":          true,
		"message":            "Bootstrap disponible pour création du premier admin",
		"attempts_remaining": avail.AttemptsRemaining,
	})
}

func (api *bootstrapApi) createFirstAdmin(ctx echo.Context) error {
	var data auth.NewAdmin
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAdmin")
	}

	admin, err := api.guard.CreateFirstAdmin(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, BootstrapCreatedResponse{
		Success:           true,
		Message:           "Premier administrateur créé avec succès",
		Admin:             admin,
		BootstrapDisabled: true,
	})
}
