package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/neurobridge-mastery/internal/data/db"
	apperrors "github.com/yungbote/neurobridge-mastery/internal/pkg/errors"
	"github.com/yungbote/neurobridge-mastery/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	c.JSON(status, ErrorEnvelope{Error: newAPIError(code, err)})
}

// RespondErrorWith writes the error envelope plus extra top-level fields, e.g. a partial
// batch result.
func RespondErrorWith(c *gin.Context, status int, code string, err error, extra gin.H) {
	body := gin.H{"error": newAPIError(code, err)}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(status, body)
}

// RespondServiceError picks the status from err. An *apierr.Error carries its own status and
// code; the generic sentinels and database conflicts map to 404/400/409; anything else is 500
// with the fallback code.
func RespondServiceError(c *gin.Context, fallbackCode string, err error) {
	status, code := Classify(err, fallbackCode)
	RespondError(c, status, code, err)
}

func Classify(err error, fallbackCode string) (int, string) {
	if ae, ok := apierr.From(err); ok {
		code := ae.Code
		if code == "" {
			code = fallbackCode
		}
		return ae.Status, code
	}
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperrors.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, apperrors.ErrConflict), db.IsConflict(err):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, fallbackCode
	}
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func newAPIError(code string, err error) APIError {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return APIError{Message: msg, Code: code}
}
