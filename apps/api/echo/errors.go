package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/ecolemoderne/campus/core"
	"github.com/ecolemoderne/campus/core/auth"
	"github.com/ecolemoderne/campus/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusUnauthorized, "utilisateur ou mot de passe invalide")
	errAccountSuspended     = echo.NewHTTPError(http.StatusForbidden, "compte suspendu")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHTTPForbidden        = echo.NewHTTPError(http.StatusForbidden, "accès refusé")
	errHTTPNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how
// to translate the guard error taxonomy into the wire shapes the SPA expects.
// signalShutdown is called whenever a core.shutdown error is caught.
func (s *Server) newAppHTTPErrorHandler(signalShutdown func()) echo.HTTPErrorHandler {
	logger := s.deps.Logger
	translator := s.deps.Translator

	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *auth.UnavailableError:
			code = http.StatusForbidden
			message = echo.Map{
				"error":        "Bootstrap non disponible",
				"reason":       origErr.Reason,
				"lockoutUntil": origErr.LockoutUntil,
			}
		case *auth.InvalidKeyError:
			code = http.StatusUnauthorized
			message = echo.Map{
				"error":              "Clé de bootstrap invalide",
				"attempts_remaining": origErr.AttemptsRemaining,
			}
		case *auth.BlockedError:
			code = http.StatusForbidden
			message = echo.Map{
				"error":             origErr.Error(),
				"minutes_remaining": origErr.MinutesRemaining,
			}
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default:
			switch errors.Cause(err) {
			case auth.ErrAdminExists:
				code = http.StatusConflict
				message = "Un administrateur existe déjà"
			case auth.ErrForbiddenSource, auth.ErrUnknownAdmin, auth.ErrInvalidAdminKey, auth.ErrInvalidCredentials:
				code = http.StatusUnauthorized
				message = errors.Cause(err).Error()
			case user.ErrNotFound:
				code = errHTTPNotFound.Code
				message = errHTTPNotFound.Message
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				var usr user.User
				if claims, cErr := getContextClaims(ctx); cErr == nil {
					usr.ID = claims.Subject
					usr.Email = claims.Email
				}
				logger.Error(msg, errors.Wrap(err, msg), usr)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
