package api

import (
	"errors"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/wandsign/internal/gesture"
	"github.com/ayusman/wandsign/internal/store"
)

// SetHandler serves the stored gesture sets.
type SetHandler struct {
	store *store.Store
}

// NewSetHandler creates a new SetHandler with the given store.
func NewSetHandler(s *store.Store) *SetHandler {
	return &SetHandler{store: s}
}

type setResponse struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Version            int    `json:"version"`
	SamplesPerTemplate int    `json:"samples_per_template"`
	Description        string `json:"description,omitempty"`
	Labels             int    `json:"labels"`
	CreatedAt          string `json:"created_at"`
	UpdatedAt          string `json:"updated_at"`
}

type listSetsResponse struct {
	Sets []setResponse `json:"sets"`
}

// LabelInfo describes one label of a template library.
type LabelInfo struct {
	Label   gesture.Label  `json:"label"`
	Name    string         `json:"name,omitempty"`
	Bounds  gesture.Bounds `json:"bounds"`
	Lengths []int          `json:"lengths"` // X-axis sample lengths
}

type setDetailResponse struct {
	setResponse
	Gestures []LabelInfo `json:"gestures"`
}

func toSetResponse(s *store.GestureSet) setResponse {
	return setResponse{
		ID:                 s.ID,
		Name:               s.Name,
		Version:            s.Version,
		SamplesPerTemplate: s.SamplesPerTemplate,
		Description:        s.Description,
		Labels:             s.Labels,
		CreatedAt:          s.CreatedAt.Format(timeFormat),
		UpdatedAt:          s.UpdatedAt.Format(timeFormat),
	}
}

// DescribeTemplates summarises templates and bounds in label order.
func DescribeTemplates(templates []gesture.Template, bounds map[gesture.Label]gesture.Bounds) []LabelInfo {
	infos := make([]LabelInfo, 0, len(templates))
	for _, t := range templates {
		info := LabelInfo{Label: t.Label, Name: t.Name, Bounds: bounds[t.Label], Lengths: make([]int, 0, len(t.X))}
		for _, seq := range t.X {
			info.Lengths = append(info.Lengths, seq.Len())
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Label < infos[j].Label })
	return infos
}

// DescribeLibrary summarises every label of lib.
func DescribeLibrary(lib *gesture.Library) []LabelInfo {
	var templates []gesture.Template
	bounds := make(map[gesture.Label]gesture.Bounds)
	for _, label := range lib.Labels() {
		t, err := lib.TemplatesFor(label)
		if err != nil {
			continue
		}
		b, _ := lib.AcceptanceBoundsFor(label)
		templates = append(templates, t)
		bounds[label] = b
	}
	return DescribeTemplates(templates, bounds)
}

// List handles GET /api/sets.
func (h *SetHandler) List(w http.ResponseWriter, r *http.Request) {
	sets, err := h.store.Sets().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sets")
		return
	}

	response := listSetsResponse{Sets: make([]setResponse, 0, len(sets))}
	for _, s := range sets {
		response.Sets = append(response.Sets, toSetResponse(s))
	}
	writeJSON(w, http.StatusOK, response)
}

// Get handles GET /api/sets/{name}.
func (h *SetHandler) Get(w http.ResponseWriter, r *http.Request) {
	set, ok := h.lookup(w, chi.URLParam(r, "name"))
	if !ok {
		return
	}

	templates, bounds, err := h.store.Sets().Templates(set.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load templates")
		return
	}

	writeJSON(w, http.StatusOK, setDetailResponse{
		setResponse: toSetResponse(set),
		Gestures:    DescribeTemplates(templates, bounds),
	})
}

// Delete handles DELETE /api/sets/{name}.
func (h *SetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	set, ok := h.lookup(w, chi.URLParam(r, "name"))
	if !ok {
		return
	}

	if err := h.store.Sets().Delete(set.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete set")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SetHandler) lookup(w http.ResponseWriter, name string) (*store.GestureSet, bool) {
	set, err := h.store.Sets().GetByName(name)
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
