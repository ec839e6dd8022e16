package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/target/repo-analyzer/internal/errors"
)

// statusForCode maps application error codes onto HTTP status codes.
//
//nolint:gochecknoglobals // static read-only lookup
var statusForCode = map[apperrors.ErrorCode]int{
	apperrors.ErrCodeValidation:   http.StatusBadRequest,
	apperrors.ErrCodeNotFound:     http.StatusNotFound,
	apperrors.ErrCodeConflict:     http.StatusConflict,
	apperrors.ErrCodeForeignKey:   http.StatusConflict,
	apperrors.ErrCodeForbidden:    http.StatusForbidden,
	apperrors.ErrCodeUnauthorized: http.StatusUnauthorized,
	apperrors.ErrCodeUnavailable:  http.StatusServiceUnavailable,
	apperrors.ErrCodeTimeout:      http.StatusGatewayTimeout,
	apperrors.ErrCodeCanceled:     499,
}

// HTTPStatus returns the status code for err; anything that is not a known AppError is a 500.
func HTTPStatus(err error) int {
	if status, ok := statusForCode[apperrors.GetCode(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// writeServiceError renders a service error. Only the AppError message reaches the client;
// causes are logged for 5xx responses.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := HTTPStatus(err)
	code := string(apperrors.GetCode(err))
	msg := "internal server error"

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	if code == "" {
		code = string(apperrors.ErrCodeInternal)
	}
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	WriteError(w, ErrorParams{Code: status, ErrCode: code, Err: errors.New(msg)})
}
