package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/watchlist/internal/apperror"
	"github.com/sakif/watchlist/internal/model"
	"github.com/sakif/watchlist/internal/registry"
	"github.com/sakif/watchlist/internal/repository"
	"github.com/sakif/watchlist/internal/watchlist"
)

// DirectoryHandler serves the demo directory: the people and companies that
// can be put on a watchlist. Listings are annotated with per-object
// watchlist membership, and ?on_watchlist=1 narrows a listing to watched
// objects only — both through the same manager, so the flag and the filter
// can never disagree.
type DirectoryHandler struct {
	repo   repository.DirectoryRepository
	deps   watchlist.Deps
	logger *slog.Logger
}

// NewDirectoryHandler creates a DirectoryHandler.
func NewDirectoryHandler(repo repository.DirectoryRepository, deps watchlist.Deps, logger *slog.Logger) *DirectoryHandler {
	return &DirectoryHandler{
		repo:   repo,
		deps:   deps,
		logger: logger,
	}
}

// annotatedObject is one listing row: the object itself plus its membership
// flag, flattened for the client.
type annotatedObject struct {
	Object      registry.Object `json:"object"`
	OnWatchlist bool            `json:"on_watchlist"`
}

// HandleListPeople handles GET /api/people.
//
// Query: on_watchlist=1 returns only the people on the caller's watchlist.
func (h *DirectoryHandler) HandleListPeople(w http.ResponseWriter, r *http.Request) {
	people, err := h.repo.ListPeople(r.Context())
	if err != nil {
		h.logger.Error("failed to list people", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	objs := make([]registry.Object, len(people))
	for i, p := range people {
		objs[i] = p
	}
	h.respondListing(w, r, objs)
}

// HandleListCompanies handles GET /api/companies.
//
// Query: on_watchlist=1 returns only the companies on the caller's watchlist.
func (h *DirectoryHandler) HandleListCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := h.repo.ListCompanies(r.Context())
	if err != nil {
		h.logger.Error("failed to list companies", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	objs := make([]registry.Object, len(companies))
	for i, c := range companies {
		objs[i] = c
	}
	h.respondListing(w, r, objs)
}

// respondListing annotates (and optionally filters) a single-model listing
// through the caller's watchlist manager and writes it out.
func (h *DirectoryHandler) respondListing(w http.ResponseWriter, r *http.Request, objs []registry.Object) {
	m := watchlist.ForRequest(w, r, h.deps)

	if r.URL.Query().Get("on_watchlist") == "1" {
		kept, err := m.Filter(r.Context(), objs)
		if err != nil {
			h.logger.Error("failed to filter listing", slog.String("error", err.Error()))
			writeError(w, err)
			return
		}
		objs = kept
	}

	annotated, err := m.Annotate(r.Context(), objs)
	if err != nil {
		h.logger.Error("failed to annotate listing", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	resp := make([]annotatedObject, len(annotated))
	for i, a := range annotated {
		resp[i] = annotatedObject{Object: a.Object, OnWatchlist: a.OnWatchlist}
	}
	writeJSON(w, http.StatusOK, resp)
}

type createPersonRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// HandleCreatePerson handles POST /api/people.
func (h *DirectoryHandler) HandleCreatePerson(w http.ResponseWriter, r *http.Request) {
	var req createPersonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid request body"))
		return
	}
	if req.LastName == "" {
		writeError(w, apperror.ValidationFailed("last_name", "last_name is required"))
		return
	}

	person := &model.Person{FirstName: req.FirstName, LastName: req.LastName}
	if err := h.repo.CreatePerson(r.Context(), person); err != nil {
		h.logger.Error("failed to create person", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, person)
}

type createCompanyRequest struct {
	Name string `json:"name"`
}

// HandleCreateCompany handles POST /api/companies.
func (h *DirectoryHandler) HandleCreateCompany(w http.ResponseWriter, r *http.Request) {
	var req createCompanyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid request body"))
		return
	}
	if req.Name == "" {
		writeError(w, apperror.ValidationFailed("name", "name is required"))
		return
	}

	company := &model.Company{Name: req.Name}
	if err := h.repo.CreateCompany(r.Context(), company); err != nil {
		h.logger.Error("failed to create company", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, company)
}

// HandleDeletePerson handles DELETE /api/people/{id}. Deleting a row does
// NOT touch watchlist entries referencing it — they become stale and get
// cleared by the next prune.
func (h *DirectoryHandler) HandleDeletePerson(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.repo.DeletePerson(r.Context(), id); err != nil {
		h.logger.Error("failed to delete person",
			slog.Int64("id", id),
			slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleDeleteCompany handles DELETE /api/companies/{id}.
func (h *DirectoryHandler) HandleDeleteCompany(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.repo.DeleteCompany(r.Context(), id); err != nil {
		h.logger.Error("failed to delete company",
			slog.Int64("id", id),
			slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// parseIDParam reads the {id} route parameter.
func parseIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, apperror.ValidationFailed("id", "id must be an integer")
	}
	return id, nil
}
