package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/lazypower/discover/internal/apierr"
	"github.com/lazypower/discover/internal/engine"
	"github.com/lazypower/discover/internal/logger"
	"github.com/lazypower/discover/internal/reqctx"
)

// classify maps an engine error onto its HTTP status class.
func classify(err error) *apierr.Error {
	var ae *apierr.Error
	if errors.As(err, &ae) {
		return ae
	}
	switch {
	case errors.Is(err, engine.ErrUnauthenticated):
		return apierr.New(http.StatusUnauthorized, "unauthenticated", errors.New("missing or invalid token"))
	case errors.Is(err, engine.ErrValidation):
		return apierr.New(http.StatusBadRequest, "validation_failed", err)
	case errors.Is(err, engine.ErrNotFound):
		return apierr.New(http.StatusNotFound, "not_found", err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return apierr.New(http.StatusInternalServerError, "timeout", errors.New("request timed out, retry"))
	default:
		return apierr.New(http.StatusInternalServerError, "internal", errors.New("internal error, retry"))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	ae := classify(err)
	if ae.Status >= 500 {
		log.Error("request failed", append([]interface{}{"error", err, "path", r.URL.Path}, reqctx.LogFields(r.Context())...)...)
	}
	writeJSON(w, ae.Status, map[string]string{
		"error": ae.Error(),
		"code":  ae.Code,
	})
}

func badRequest(msg string) error {
	return apierr.New(http.StatusBadRequest, "validation_failed", errors.New(msg))
}
