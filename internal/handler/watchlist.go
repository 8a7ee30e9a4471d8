package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/watchlist/internal/apperror"
	"github.com/sakif/watchlist/internal/auth"
	"github.com/sakif/watchlist/internal/registry"
	"github.com/sakif/watchlist/internal/watchlist"
)

// WatchlistHandler serves the watchlist endpoints. Every request gets its
// own manager via watchlist.ForRequest, so the same routes work for
// authenticated users (durable entries) and anonymous visitors (session
// entries) without branching here.
//
// Error discipline at this boundary:
//   - malformed input (missing label, non-numeric id) -> 400
//   - unresolvable model label or stale object id -> silent no-op / false
//   - storage failure -> 500
type WatchlistHandler struct {
	deps      watchlist.Deps
	notesRepo notesUpdater
	urls      map[string]string // model label -> listing URL for that model
	logger    *slog.Logger
}

// notesUpdater is the one repository operation the handler calls directly:
// notes live only on durable entries, so they bypass the Manager interface.
type notesUpdater interface {
	UpdateNotes(ctx context.Context, userID, modelLabel string, objectID int64, notes string) error
}

// NewWatchlistHandler creates a watchlist handler. urls maps model labels to
// the listing path for that model (e.g. "app.person" -> "/api/people"); the
// overview response uses it to attach an object_url to each model block.
func NewWatchlistHandler(deps watchlist.Deps, notesRepo notesUpdater, urls map[string]string, logger *slog.Logger) *WatchlistHandler {
	return &WatchlistHandler{
		deps:      deps,
		notesRepo: notesRepo,
		urls:      urls,
		logger:    logger,
	}
}

// objectRequest is the body shared by the toggle and remove endpoints. The
// object id arrives as a string so the 400-on-garbage boundary is explicit:
// strconv.ParseInt either yields a usable id or a validation error, and
// nothing downstream ever sees the raw input.
type objectRequest struct {
	ModelLabel string `json:"model_label"`
	ObjectID   string `json:"object_id"`
}

// parse validates the request body and returns the parsed object id.
func (req *objectRequest) parse() (int64, error) {
	if req.ModelLabel == "" {
		return 0, apperror.ValidationFailed("model_label", "model_label is required")
	}
	id, err := strconv.ParseInt(req.ObjectID, 10, 64)
	if err != nil {
		return 0, apperror.ValidationFailed("object_id", "object_id must be an integer")
	}
	return id, nil
}

type toggleResponse struct {
	OnWatchlist bool `json:"on_watchlist"`
}

// HandleToggle handles POST /api/watchlist/toggle.
//
// Toggling an object that no longer resolves — unregistered label or deleted
// row — is not an error: the response simply reports the object as not on
// the watchlist. Clients toggling from a stale page should not see a 4xx.
func (h *WatchlistHandler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	var req objectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid request body"))
		return
	}

	id, err := req.parse()
	if err != nil {
		writeError(w, err)
		return
	}

	obj, ok, err := h.resolve(r, req.ModelLabel, id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, toggleResponse{OnWatchlist: false})
		return
	}

	m := watchlist.ForRequest(w, r, h.deps)
	onList, err := m.Toggle(r.Context(), obj)
	if err != nil {
		h.logger.Error("failed to toggle watchlist entry",
			slog.String("model_label", req.ModelLabel),
			slog.Int64("object_id", id),
			slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toggleResponse{OnWatchlist: onList})
}

// HandleRemove handles POST /api/watchlist/remove. Removing an absent or
// unresolvable object succeeds with an empty 200: the desired end state
// ("not on the watchlist") already holds.
func (h *WatchlistHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	var req objectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid request body"))
		return
	}

	id, err := req.parse()
	if err != nil {
		writeError(w, err)
		return
	}

	obj, ok, err := h.resolve(r, req.ModelLabel, id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, struct{}{})
		return
	}

	m := watchlist.ForRequest(w, r, h.deps)
	if err := m.Remove(r.Context(), obj); err != nil {
		h.logger.Error("failed to remove watchlist entry",
			slog.String("model_label", req.ModelLabel),
			slog.Int64("object_id", id),
			slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct{}{})
}

type removeModelRequest struct {
	ModelLabel string `json:"model_label"`
}

// HandleRemoveModel handles POST /api/watchlist/remove_model, clearing every
// entry for one model. The label does not need to resolve to a registered
// model — that is exactly the situation where clearing its leftovers is most
// useful.
func (h *WatchlistHandler) HandleRemoveModel(w http.ResponseWriter, r *http.Request) {
	var req removeModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid request body"))
		return
	}
	if req.ModelLabel == "" {
		writeError(w, apperror.ValidationFailed("model_label", "model_label is required"))
		return
	}

	m := watchlist.ForRequest(w, r, h.deps)
	if err := m.RemoveModel(r.Context(), req.ModelLabel); err != nil {
		h.logger.Error("failed to remove model watchlist",
			slog.String("model_label", req.ModelLabel),
			slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct{}{})
}

type bulkAddRequest struct {
	ModelLabel string   `json:"model_label"`
	ObjectIDs  []string `json:"object_ids"`
}

// HandleBulkAdd handles POST /api/watchlist/add. All ids must parse or the
// whole request is rejected; ids that parse but no longer resolve to live
// rows are silently skipped, so a batch built from a stale listing still
// adds whatever survives.
func (h *WatchlistHandler) HandleBulkAdd(w http.ResponseWriter, r *http.Request) {
	var req bulkAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid request body"))
		return
	}
	if req.ModelLabel == "" {
		writeError(w, apperror.ValidationFailed("model_label", "model_label is required"))
		return
	}

	ids := make([]int64, 0, len(req.ObjectIDs))
	for _, raw := range req.ObjectIDs {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, apperror.ValidationFailed("object_ids", "object_ids must be integers"))
			return
		}
		ids = append(ids, id)
	}

	accessor, ok := h.deps.Registry.Get(req.ModelLabel)
	if !ok {
		writeJSON(w, http.StatusOK, struct{}{})
		return
	}

	live, err := accessor.Existing(r.Context(), ids)
	if err != nil {
		writeError(w, err)
		return
	}

	objs := make([]registry.Object, 0, len(live))
	for _, id := range live {
		obj, err := accessor.Fetch(r.Context(), id)
		if err != nil {
			// Deleted between Existing and Fetch; treat like any other
			// stale id.
			if errors.Is(err, apperror.ErrNotFound) {
				continue
			}
			writeError(w, err)
			return
		}
		objs = append(objs, obj)
	}

	m := watchlist.ForRequest(w, r, h.deps)
	if err := m.BulkAdd(r.Context(), objs); err != nil {
		h.logger.Error("failed to bulk-add watchlist entries",
			slog.String("model_label", req.ModelLabel),
			slog.Int("count", len(objs)),
			slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct{}{})
}

// watchlistItem is one entry in the overview response.
type watchlistItem struct {
	ObjectID   int64  `json:"object_id"`
	ObjectRepr string `json:"object_repr"`
	Notes      string `json:"notes,omitempty"`
	ObjectURL  string `json:"object_url,omitempty"`
}

// HandleOverview handles GET /api/watchlist. It prunes first, so the
// response never shows entries for vanished models or deleted rows, then
// returns the surviving entries grouped by model label.
func (h *WatchlistHandler) HandleOverview(w http.ResponseWriter, r *http.Request) {
	m := watchlist.ForRequest(w, r, h.deps)

	if err := m.Prune(r.Context()); err != nil {
		h.logger.Error("failed to prune watchlist", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	dict, err := m.AsDict(r.Context())
	if err != nil {
		h.logger.Error("failed to load watchlist", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	resp := make(map[string][]watchlistItem, len(dict))
	for label, entries := range dict {
		items := make([]watchlistItem, 0, len(entries))
		for _, e := range entries {
			items = append(items, watchlistItem{
				ObjectID:   e.ObjectID,
				ObjectRepr: e.ObjectRepr,
				Notes:      e.Notes,
				ObjectURL:  h.objectURL(label, e.ObjectID),
			})
		}
		resp[label] = items
	}

	writeJSON(w, http.StatusOK, resp)
}

// objectURL builds the link target for one entry, empty if the model has no
// registered listing path.
func (h *WatchlistHandler) objectURL(label string, objectID int64) string {
	base, ok := h.urls[label]
	if !ok {
		return ""
	}
	return base + "/" + strconv.FormatInt(objectID, 10)
}

type notesRequest struct {
	ModelLabel string `json:"model_label"`
	ObjectID   string `json:"object_id"`
	Notes      string `json:"notes"`
}

// HandleUpdateNotes handles PUT /api/watchlist/notes. Notes only exist on
// durable entries, so the route sits behind RequireAuth and talks to the
// repository directly instead of going through a manager.
func (h *WatchlistHandler) HandleUpdateNotes(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Forbidden("authentication required"))
		return
	}

	var req notesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid request body"))
		return
	}

	objReq := objectRequest{ModelLabel: req.ModelLabel, ObjectID: req.ObjectID}
	id, err := objReq.parse()
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.notesRepo.UpdateNotes(r.Context(), userID, req.ModelLabel, id, req.Notes); err != nil {
		h.logger.Error("failed to update watchlist notes",
			slog.String("model_label", req.ModelLabel),
			slog.Int64("object_id", id),
			slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct{}{})
}

// resolve looks the object up through the registry. The second return value
// distinguishes "object does not resolve" (false, not an error) from real
// storage failures.
func (h *WatchlistHandler) resolve(r *http.Request, label string, id int64) (registry.Object, bool, error) {
	accessor, ok := h.deps.Registry.Get(label)
	if !ok {
		return nil, false, nil
	}
	obj, err := accessor.Fetch(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return obj, true, nil
}
