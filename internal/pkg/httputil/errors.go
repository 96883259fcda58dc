package httputil

import (
	"context"
	"errors"
	"net/http"

	"github.com/statusdeck/statusdeck/internal/pkg/ctxlog"
)

// ErrorMapping pairs a sentinel error with the HTTP status it maps to.
// Message overrides the sentinel's text when set.
type ErrorMapping struct {
	Error   error
	Status  int
	Message string
}

// HandleError writes the response for the first mapping that matches
// err. Unmapped errors are logged with request context and answered
// with an opaque 500 so internals never leak to clients.
func HandleError(ctx context.Context, w http.ResponseWriter, err error, mappings []ErrorMapping) {
	for _, m := range mappings {
		if !errors.Is(err, m.Error) {
			continue
		}
		msg := m.Message
		if msg == "" {
			msg = err.Error()
		}
		Error(w, m.Status, msg)
		return
	}

	ctxlog.FromContext(ctx).Error("unhandled error", "error", err)
	Error(w, http.StatusInternalServerError, "internal error")
}
