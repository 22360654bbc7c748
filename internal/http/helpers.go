package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"eventledger/internal/core"
	applog "eventledger/internal/log"
)

// pathID parses a numeric path value. ok is false for anything that is not
// a positive integer, which callers answer with 404.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	_ = NewJSONResponse().Status(status).Body(v).Write(w)
}

// writeError maps an operation error to its status. Storage failures are
// logged here and reach the client only as an opaque message.
func writeError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		_ = BadRequestError(verr.Error()).Write(w)
	case errors.Is(err, core.ErrValidation):
		_ = BadRequestError(err.Error()).Write(w)
	case errors.Is(err, core.ErrNotFound):
		_ = NotFoundError(notFound).Write(w)
	default:
		applog.FromContext(r.Context()).WithComponent(applog.ComponentHTTP).ErrorContext(r.Context(), "Request failed",
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldErrorType, errorType(err),
			applog.FieldError, err.Error())
		_ = InternalServerError("Internal server error").Write(w)
	}
}

func errorType(err error) string {
	if errors.Is(err, core.ErrStorage) {
		return applog.ErrorTypeDatabase
	}
	return applog.ErrorTypeInternal
}
