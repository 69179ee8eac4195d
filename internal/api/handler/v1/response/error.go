package response

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/volunteerhub/volunteer-hub-api/internal/domain"
)

type Err struct {
	StatusCode int    `json:"-"`
	ErrorCode  string `json:"error_code,omitempty"`
	Message    string `json:"message"`
}

func (e *Err) Error() string {
	return fmt.Sprintf("%d - %v", e.StatusCode, e.Message)
}

func RenderErr(ctx *gin.Context, err *Err) {
	ctx.AbortWithStatusJSON(err.StatusCode, err)
}

func ErrBadRequest(err error) *Err {
	return &Err{
		StatusCode: http.StatusBadRequest,
		Message:    err.Error(),
	}
}

func ErrUnauthorized(err error) *Err {
	return &Err{
		StatusCode: http.StatusUnauthorized,
		Message:    err.Error(),
	}
}

func ErrWrongCredentials(err error) *Err {
	return &Err{
		StatusCode: http.StatusUnauthorized,
		Message:    "wrong email or password",
	}
}

func ErrPermissionDenied(err error) *Err {
	return &Err{
		StatusCode: http.StatusForbidden,
		Message:    err.Error(),
	}
}

func ErrNotFound(what, key string, value any) *Err {
	return &Err{
		StatusCode: http.StatusNotFound,
		Message:    fmt.Sprintf("%v not found by %v (%v)", what, key, value),
	}
}

// ErrInternalServerError hides the cause from the client and logs it with
// the request id for correlation.
func ErrInternalServerError(err error) *Err {
	zap.L().Error("internal server error", zap.Error(err))

	return &Err{
		StatusCode: http.StatusInternalServerError,
		Message:    "internal server error",
	}
}

// ErrDomain maps a workflow guard failure onto an HTTP status, keeping the
// machine-readable kind in the payload. Anything that is not a workflow
// error is treated as internal.
func ErrDomain(ctx *gin.Context, err error) *Err {
	var domainErr *domain.Error
	if !errors.As(err, &domainErr) {
		return ErrInternalServerError(fmt.Errorf("request %v -> %w", requestid.Get(ctx), err))
	}

	status := http.StatusConflict
	switch domainErr.Kind {
	case domain.KindEventNotFound, domain.KindRegistrationNotFound:
		status = http.StatusNotFound
	case domain.KindInvalidTime, domain.KindInvalidCapacity, domain.KindIncompleteEvent:
		status = http.StatusUnprocessableEntity
	}

	return &Err{
		StatusCode: status,
		ErrorCode:  string(domainErr.Kind),
		Message:    domainErr.Error(),
	}
}
