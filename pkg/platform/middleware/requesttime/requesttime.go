// Package requesttime captures one timestamp per HTTP request so every fact
// produced while serving it carries the same time.
package requesttime

import (
	"net/http"
	"time"

	"personsync/pkg/requestcontext"
)

// Middleware stores the request start time in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
