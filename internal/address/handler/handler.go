package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"personsync/internal/address/metrics"
	"personsync/internal/address/models"
	"personsync/internal/replication"
	id "personsync/pkg/domain"
	dErrors "personsync/pkg/domain-errors"
	"personsync/pkg/personfact"
	"personsync/pkg/platform/httputil"
	"personsync/pkg/platform/middleware/metadata"
	"personsync/pkg/platform/middleware/request"
	"personsync/pkg/platform/middleware/requesttime"
	"personsync/pkg/requestcontext"
)

// AddressService is the address command and query surface.
type AddressService interface {
	Create(ctx context.Context, req models.CreateAddressRequest) (*models.Address, error)
	Update(ctx context.Context, addressID id.AddressID, req models.UpdateAddressRequest) (*models.Address, error)
	Delete(ctx context.Context, addressID id.AddressID) error
	Get(ctx context.Context, addressID id.AddressID) (*models.Address, error)
	List(ctx context.Context, filter models.Filter) ([]*models.Address, error)
	ListByPerson(ctx context.Context, personID id.PersonID) ([]*models.Address, error)
}

// PersonService applies local person mutations and reads the replica.
type PersonService interface {
	replication.PersonCommands
	GetPerson(ctx context.Context, personID id.PersonID) (*models.PersonReplica, error)
	ListPersons(ctx context.Context) ([]*models.PersonReplica, error)
}

// Handler serves the Address service HTTP API.
type Handler struct {
	addresses AddressService
	persons   PersonService
	metrics   *metrics.Metrics
	logger    *slog.Logger
	timeout   time.Duration
}

func New(addresses AddressService, persons PersonService, m *metrics.Metrics, logger *slog.Logger) *Handler {
	return &Handler{
		addresses: addresses,
		persons:   persons,
		metrics:   m,
		logger:    logger,
		timeout:   30 * time.Second,
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

		r.Route("/addresses", func(r chi.Router) {
			r.Post("/", h.handleCreateAddress)
			r.Get("/", h.handleListAddresses)
			r.Get("/{addressID}", h.handleGetAddress)
			r.Put("/{addressID}", h.handleUpdateAddress)
			r.Delete("/{addressID}", h.handleDeleteAddress)
		})

		r.Route("/persons", func(r chi.Router) {
			r.Post("/", h.handleCreatePerson)
			r.Put("/{personID}", h.handleUpdatePerson)
			r.Delete("/{personID}", h.handleDeletePerson)
			r.Get("/{personID}/addresses", h.handleListPersonAddresses)
		})

		r.Get("/replica/persons", h.handleListReplica)
		r.Get("/replica/persons/{personID}", h.handleGetReplica)
	})
}

func (h *Handler) handleCreateAddress(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.DecodeJSON[models.CreateAddressRequest](r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	a, err := h.addresses.Create(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, a)
}

func (h *Handler) handleListAddresses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.Filter{
		Type:    q.Get("type"),
		Street:  q.Get("street"),
		City:    q.Get("city"),
		State:   q.Get("state"),
		ZipCode: q.Get("zipCode"),
	}
	if raw := q.Get("personId"); raw != "" {
		personID, err := id.ParsePersonID(raw)
		if err != nil {
			h.writeError(w, r, dErrors.NewField(dErrors.CodeBadRequest, "personId", "must be a valid UUID"))
			return
		}
		filter.PersonID = personID
	}
	out, err := h.addresses.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetAddress(w http.ResponseWriter, r *http.Request) {
	addressID, ok := h.addressID(w, r)
	if !ok {
		return
	}
	a, err := h.addresses.Get(r.Context(), addressID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) handleUpdateAddress(w http.ResponseWriter, r *http.Request) {
	addressID, ok := h.addressID(w, r)
	if !ok {
		return
	}
	req, err := httputil.DecodeJSON[models.UpdateAddressRequest](r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	a, err := h.addresses.Update(r.Context(), addressID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) handleDeleteAddress(w http.ResponseWriter, r *http.Request) {
	addressID, ok := h.addressID(w, r)
	if !ok {
		return
	}
	if err := h.addresses.Delete(r.Context(), addressID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListPersonAddresses(w http.ResponseWriter, r *http.Request) {
	personID, ok := h.personID(w, r)
	if !ok {
		return
	}
	out, err := h.addresses.ListByPerson(r.Context(), personID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleCreatePerson(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.DecodeJSON[models.PersonRequest](r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.persons.CreatePerson(r.Context(), replication.CreatePerson{
		Attributes: req.Attributes(),
		Source:     personfact.SourceAPI,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writePersonResult(w, http.StatusCreated, res)
}

func (h *Handler) handleUpdatePerson(w http.ResponseWriter, r *http.Request) {
	personID, ok := h.personID(w, r)
	if !ok {
		return
	}
	req, err := httputil.DecodeJSON[models.PersonRequest](r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.persons.UpdatePerson(r.Context(), replication.UpdatePerson{
		ID:         personID,
		Attributes: req.Attributes(),
		Source:     personfact.SourceAPI,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writePersonResult(w, http.StatusOK, res)
}

func (h *Handler) handleDeletePerson(w http.ResponseWriter, r *http.Request) {
	personID, ok := h.personID(w, r)
	if !ok {
		return
	}
	res, err := h.persons.DeletePerson(r.Context(), replication.DeletePerson{
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

func (h *Handler) handleGetReplica(w http.ResponseWriter, r *http.Request) {
	personID, ok := h.personID(w, r)
	if !ok {
		return
	}
	p, err := h.persons.GetPerson(r.Context(), personID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handleListReplica(w http.ResponseWriter, r *http.Request) {
	out, err := h.persons.ListPersons(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) writePersonResult(w http.ResponseWriter, status int, res replication.Result) {
	if res.Deferred {
		httputil.SetWarning(w, "person fact publication deferred")
	}
	httputil.WriteJSON(w, status, toPersonResponse(res))
}

func (h *Handler) addressID(w http.ResponseWriter, r *http.Request) (id.AddressID, bool) {
	addressID, err := id.ParseAddressID(chi.URLParam(r, "addressID"))
	if err != nil {
		h.writeError(w, r, dErrors.NewField(dErrors.CodeBadRequest, "addressId", "must be a valid UUID"))
		return id.AddressID{}, false
	}
	return addressID, true
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
		h.logger.ErrorContext(ctx, "address request failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	} else {
		h.logger.DebugContext(ctx, "address request rejected",
			"request_id", requestcontext.RequestID(ctx),
			"code", string(code),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}
