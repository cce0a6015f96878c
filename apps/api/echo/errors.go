package echoapi

import (
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/mkadiri/kazi/core"
	"github.com/mkadiri/kazi/core/assignment"
	"github.com/mkadiri/kazi/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errUserNotRegistered    = echo.NewHTTPError(http.StatusNotFound, "user not registered")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusUnauthorized, "invalid email/password")
	errInvalidRefreshToken  = echo.NewHTTPError(http.StatusUnauthorized, "invalid refresh token")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
)

// errorBody is the inner payload of the error envelope:
// {"error": {"status": <int>, "message": <string>}}
type errorBody struct {
	Status  int         `json:"status"`
	Message interface{} `json:"message"`
}

// statusForDomainErr maps the sentinel domain errors to their HTTP status.
// Unknown errors map to 0 so the handler treats them as server errors.
func statusForDomainErr(err error) int {
	switch err {
	case user.ErrNotFound, assignment.ErrNotFound, assignment.ErrSubmissionNotFound:
		return http.StatusNotFound
	case user.ErrUsernameExists, user.ErrEmailExists:
		return http.StatusConflict
	case user.ErrInvalidID, user.ErrInvalidPassword,
		assignment.ErrInvalidID, assignment.ErrInvalidSubmissionID, assignment.ErrAlreadySubmitted:
		return http.StatusBadRequest
	case user.ErrNotFirstUser, assignment.ErrNotPublished, assignment.ErrSubmitUnpublished:
		return http.StatusForbidden
	}
	return 0
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that shapes every
// failure into the error envelope. signalShutdown is called in order to gracefully
// shut down the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		switch origErr := cause.(type) {
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
			msgs := make([]string, 0, len(origErr))
			for _, vErr := range origErr {
				msgs = append(msgs, vErr.Translate(core.Translator))
			}
			code = http.StatusUnprocessableEntity
			message = strings.Join(msgs, "; ")
		case *core.ValidationError:
			if origErr.Fields != nil {
				msgs := make([]string, 0, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					msgs = append(msgs, fErr.Field+": "+fErr.Error)
				}
				message = strings.Join(msgs, "; ")
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		case *assignment.MarksExceedTotalError:
			code = http.StatusBadRequest
			message = origErr.Error()
		default:
			if code = statusForDomainErr(cause); code > 0 {
				message = cause.Error()
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr.ID = claims.Subject
			}
			logger.Error(msg, errors.Wrap(err, msg), usr)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead {
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, echo.Map{"error": errorBody{Status: code, Message: message}})
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
