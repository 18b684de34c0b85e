package middleware

import (
	"net/http"

	"github.com/angelmondragon/chatwoot-scheduler/api/responses"
	pkgerrors "github.com/angelmondragon/chatwoot-scheduler/pkg/errors"
)

// BodyLimit caps request bodies; reads past the limit fail with *http.MaxBytesError.
func BodyLimit(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				err := pkgerrors.New(pkgerrors.CodeValidation, "request body too large").
					WithDetails(map[string]any{"limit_bytes": limit})
				responses.WriteError(r.Context(), nil, w, err)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
