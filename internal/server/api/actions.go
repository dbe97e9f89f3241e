package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/wandsign/internal/gesture"
	"github.com/ayusman/wandsign/internal/store"
)

// ActionHandler handles HTTP requests for hook bindings.
type ActionHandler struct {
	store *store.Store
}

// NewActionHandler creates a new ActionHandler with the given store.
func NewActionHandler(s *store.Store) *ActionHandler {
	return &ActionHandler{store: s}
}

type createActionRequest struct {
	Label      *int            `json:"label"`
	HookName   string          `json:"hook"`
	ActionName string          `json:"action"`
	Config     json.RawMessage `json:"config"`
}

type updateActionRequest struct {
	HookName   string          `json:"hook"`
	ActionName string          `json:"action"`
	Config     json.RawMessage `json:"config"`
	Enabled    *bool           `json:"enabled"`
}

type actionResponse struct {
	ID         string          `json:"id"`
	SetID      string          `json:"set_id"`
	Label      int             `json:"label"`
	HookName   string          `json:"hook"`
	ActionName string          `json:"action"`
	Config     json.RawMessage `json:"config"`
	Enabled    bool            `json:"enabled"`
	CreatedAt  string          `json:"created_at"`
}

type listActionsResponse struct {
	Actions []actionResponse `json:"actions"`
}

// toActionResponse converts a store.Action to an actionResponse.
func toActionResponse(a *store.Action) actionResponse {
	config := a.Config
	if config == nil {
		config = json.RawMessage("{}")
	}
	return actionResponse{
		ID:         a.ID,
		SetID:      a.SetID,
		Label:      a.Label,
		HookName:   a.HookName,
		ActionName: a.ActionName,
		Config:     config,
		Enabled:    a.Enabled,
		CreatedAt:  a.CreatedAt.Format(timeFormat),
	}
}

func (h *ActionHandler) set(w http.ResponseWriter, r *http.Request) (*store.GestureSet, bool) {
	set, err := h.store.Sets().GetByName(chi.URLParam(r, "name"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Set not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "Failed to get set")
		return nil, false
	}
	return set, true
}

// List handles GET /api/sets/{name}/actions.
func (h *ActionHandler) List(w http.ResponseWriter, r *http.Request) {
	set, ok := h.set(w, r)
	if !ok {
		return
	}

	actions, err := h.store.Actions().ListBySet(set.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list actions")
		return
	}

	response := listActionsResponse{Actions: make([]actionResponse, 0, len(actions))}
	for _, a := range actions {
		response.Actions = append(response.Actions, toActionResponse(a))
	}
	writeJSON(w, http.StatusOK, response)
}

// Create handles POST /api/sets/{name}/actions and binds a label to a hook.
func (h *ActionHandler) Create(w http.ResponseWriter, r *http.Request) {
	set, ok := h.set(w, r)
	if !ok {
		return
	}

	var req createActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Label == nil {
		writeError(w, http.StatusBadRequest, "label is required")
		return
	}
	if req.HookName == "" {
		writeError(w, http.StatusBadRequest, "hook is required")
		return
	}
	if req.ActionName == "" {
		writeError(w, http.StatusBadRequest, "action is required")
		return
	}

	// Verify the label exists in the set
	_, bounds, err := h.store.Sets().Templates(set.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load set")
		return
	}
	if _, ok := bounds[gesture.Label(*req.Label)]; !ok {
		writeError(w, http.StatusBadRequest, "Label not in set")
		return
	}

	// Check for duplicate binding
	existing, err := h.store.Actions().GetByLabel(set.ID, *req.Label)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check existing action")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "Action already bound to this label")
		return
	}

	action := &store.Action{
		SetID:      set.ID,
		Label:      *req.Label,
		HookName:   req.HookName,
		ActionName: req.ActionName,
		Config:     req.Config,
		Enabled:    true,
	}
	if action.Config == nil {
		action.Config = json.RawMessage("{}")
	}

	if err := h.store.Actions().Create(action); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create action")
		return
	}

	writeJSON(w, http.StatusCreated, toActionResponse(action))
}

// Get handles GET /api/actions/{id}.
func (h *ActionHandler) Get(w http.ResponseWriter, r *http.Request) {
	action, ok := h.action(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toActionResponse(action))
}

// Update handles PUT /api/actions/{id}.
func (h *ActionHandler) Update(w http.ResponseWriter, r *http.Request) {
	action, ok := h.action(w, r)
	if !ok {
		return
	}

	var req updateActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.HookName != "" {
		action.HookName = req.HookName
	}
	if req.ActionName != "" {
		action.ActionName = req.ActionName
	}
	if req.Config != nil {
		action.Config = req.Config
	}
	if req.Enabled != nil {
		action.Enabled = *req.Enabled
	}

	if err := h.store.Actions().Update(action); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update action")
		return
	}

	writeJSON(w, http.StatusOK, toActionResponse(action))
}

// Delete handles DELETE /api/actions/{id}.
func (h *ActionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.store.Actions().Delete(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Action not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete action")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ActionHandler) action(w http.ResponseWriter, r *http.Request) (*store.Action, bool) {
	action, err := h.store.Actions().GetByID(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Action not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "Failed to get action")
		return nil, false
	}
	return action, true
}
