package api

import (
	"net/http"
	"strconv"

	"github.com/ayusman/wandsign/internal/app"
	"github.com/ayusman/wandsign/internal/store"
)

// MaxRecentLimit caps the limit query parameter.
const MaxRecentLimit = 1000

// RecognitionHandler serves the recognition history.
type RecognitionHandler struct {
	store *store.Store
}

// NewRecognitionHandler creates a new RecognitionHandler with the given store.
func NewRecognitionHandler(s *store.Store) *RecognitionHandler {
	return &RecognitionHandler{store: s}
}

type recognitionsResponse struct {
	Events     []app.Event `json:"events"`
	Recognized int         `json:"recognized"`
	NoMatch    int         `json:"no_match"`
}

// Recent handles GET /api/recognitions?limit=N.
func (h *RecognitionHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := store.DefaultRecentLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, MaxRecentLimit)
	}

	repo := h.store.Recognitions()
	events, err := repo.Recent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list recognitions")
		return
	}
	recognized, noMatch, err := repo.Counts()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count recognitions")
		return
	}

	writeJSON(w, http.StatusOK, recognitionsResponse{
		Events:     events,
		Recognized: recognized,
		NoMatch:    noMatch,
	})
}
