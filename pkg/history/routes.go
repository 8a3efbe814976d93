package history

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Routes serves GET /{playerID}/history?limit=N with the player's latest
// rounds.
func (r *Recorder) Routes(log *zap.Logger) chi.Router {
	if log == nil {
		log = zap.NewNop()
	}
	router := chi.NewRouter()
	router.Get("/{playerID}/history", func(w http.ResponseWriter, req *http.Request) {
		limit := defaultLimit
		if s := req.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = min(n, maxLimit)
		}
		playerID := chi.URLParam(req, "playerID")
		rows, err := r.Recent(req.Context(), playerID, limit)
		if err != nil {
			log.Error("listing history", zap.String("player", playerID), zap.Error(err))
			http.Error(w, "failed to list history", http.StatusInternalServerError)
			return
		}
		if rows == nil {
			rows = []Participation{}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(rows)
	})
	return router
}
