package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"personsync/internal/person/metrics"
	"personsync/internal/person/models"
	"personsync/internal/person/store"
	"personsync/internal/replication"
	id "personsync/pkg/domain"
	dErrors "personsync/pkg/domain-errors"
	"personsync/pkg/personfact"
	"personsync/pkg/platform/httputil"
	"personsync/pkg/platform/middleware/admin"
	"personsync/pkg/platform/middleware/metadata"
	"personsync/pkg/platform/middleware/request"
	"personsync/pkg/platform/middleware/requesttime"
	"personsync/pkg/requestcontext"
)

// Service is the Person service surface used by the handler.
type Service interface {
	replication.PersonCommands
	GetPerson(ctx context.Context, personID id.PersonID) (*models.Person, error)
	ListPersons(ctx context.Context, filter models.Filter) ([]*models.Person, error)
	Resync(ctx context.Context) (models.ResyncResponse, error)
}

// Handler serves the Person service HTTP API.
type Handler struct {
	service    Service
	metrics    *metrics.Metrics
	logger     *slog.Logger
	adminToken string
	timeout    time.Duration
}

func New(service Service, m *metrics.Metrics, logger *slog.Logger, adminToken string) *Handler {
	return &Handler{
		service:    service,
		metrics:    m,
		logger:     logger,
		adminToken: adminToken,
		timeout:    30 * time.Second,
	}
}

// Register mounts the routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(request.Recovery(h.logger))
		r.Use(request.RequestID)
		r.Use(metadata.ClientMetadata)
		r.Use(request.Logger(h.logger, h.metrics))
		r.Use(request.Timeout(h.timeout))
		r.Use(requesttime.Middleware)
		r.Use(request.ContentTypeJSON)

		r.Route("/persons", func(r chi.Router) {
			r.Post("/", h.handleCreate)
			r.Get("/", h.handleList)
			r.Get("/{personID}", h.handleGet)
			r.Put("/{personID}", h.handleUpdate)
			r.Delete("/{personID}", h.handleDelete)
		})

		r.With(admin.RequireAdminToken(h.adminToken, h.logger)).Post("/admin/resync", h.handleResync)
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.DecodeJSON[models.PersonRequest](r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.service.CreatePerson(r.Context(), replication.CreatePerson{
		Attributes: req.Attributes(),
		Source:     personfact.SourceAPI,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeResult(w, http.StatusCreated, res)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	personID, ok := h.personID(w, r)
	if !ok {
		return
	}
	req, err := httputil.DecodeJSON[models.PersonRequest](r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.service.UpdatePerson(r.Context(), replication.UpdatePerson{
		ID:         personID,
		Attributes: req.Attributes(),
		Source:     personfact.SourceAPI,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeResult(w, http.StatusOK, res)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	personID, ok := h.personID(w, r)
	if !ok {
		return
	}
	res, err := h.service.DeletePerson(r.Context(), replication.DeletePerson{
		ID:     personID,
		Source: personfact.SourceAPI,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if res.Deferred {
		httputil.SetWarning(w, "person fact publication deferred")
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	personID, ok := h.personID(w, r)
	if !ok {
		return
	}
	p, err := h.service.GetPerson(r.Context(), personID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := h.service.ListPersons(r.Context(), models.Filter{
		FirstName:     q.Get("firstName"),
		MiddleInitial: q.Get("middleInitial"),
		LastName:      q.Get("lastName"),
		Title:         q.Get("title"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleResync(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.Resync(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, out)
}

func (h *Handler) writeResult(w http.ResponseWriter, status int, res replication.Result) {
	if res.Deferred {
		httputil.SetWarning(w, "person fact publication deferred")
	}
	resp := models.MutationResponse{Outcome: res.Outcome.String(), Published: res.Published}
	if res.Record != nil {
		resp.Person = store.ToModel(res.Record)
	}
	httputil.WriteJSON(w, status, resp)
}

func (h *Handler) personID(w http.ResponseWriter, r *http.Request) (id.PersonID, bool) {
	personID, err := id.ParsePersonID(chi.URLParam(r, "personID"))
	if err != nil {
		h.writeError(w, r, dErrors.NewField(dErrors.CodeBadRequest, "personId", "must be a valid UUID"))
		return id.PersonID{}, false
	}
	return personID, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	code := dErrors.CodeOf(err)
	if httputil.StatusFor(code) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "person request failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	} else {
		h.logger.DebugContext(ctx, "person request rejected",
			"request_id", requestcontext.RequestID(ctx),
			"code", string(code),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}
