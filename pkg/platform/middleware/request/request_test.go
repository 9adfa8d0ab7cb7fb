package request

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"personsync/pkg/platform/middleware/admin"
	"personsync/pkg/platform/middleware/metadata"
	"personsync/pkg/requestcontext"
)

type observation struct {
	method, route string
	status        int
}

type recordingObserver struct{ seen []observation }

func (o *recordingObserver) ObserveRequest(method, route string, status int, _ float64) {
	o.seen = append(o.seen, observation{method, route, status})
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestMiddlewareChain(t *testing.T) {
	obs := &recordingObserver{}
	r := chi.NewRouter()
	r.Use(Recovery(quiet()))
	r.Use(RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(Logger(quiet(), obs))
	r.Use(ContentTypeJSON)

	var seenID, seenIP string
	r.Get("/persons/{id}", func(w http.ResponseWriter, r *http.Request) {
		seenID = GetRequestID(r)
		seenIP = requestcontext.ClientIP(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	t.Run("request id is propagated and metrics use the route pattern", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/persons/abc", nil)
		req.Header.Set(HeaderRequestID, "req-1")
		req.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "req-1", rec.Header().Get(HeaderRequestID))
		assert.Equal(t, "req-1", seenID)
		assert.Equal(t, "10.0.0.1", seenIP)
		require.NotEmpty(t, obs.seen)
		assert.Equal(t, observation{http.MethodGet, "/persons/{id}", http.StatusNoContent}, obs.seen[len(obs.seen)-1])
	})

	t.Run("missing request id is generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/persons/abc", nil))
		assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))
	})

	t.Run("panics become 500", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"error":"internal_error"}`, rec.Body.String())
	})
}

func TestRequireAdminToken(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusAccepted) })

	tests := []struct {
		name     string
		expected string
		sent     string
		status   int
	}{
		{"matching token", "s3cret", "s3cret", http.StatusAccepted},
		{"wrong token", "s3cret", "nope", http.StatusUnauthorized},
		{"unconfigured token rejects everything", "", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := admin.RequireAdminToken(tt.expected, quiet())(ok)
			req := httptest.NewRequest(http.MethodPost, "/admin/resync", nil)
			req.Header.Set("X-Admin-Token", tt.sent)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}
