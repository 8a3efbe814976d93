package razroom

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Server struct {
	chi.Router
	engine *Engine
	hub    *Hub
	log    *zap.Logger
}

type createdRoom struct {
	Variant string `json:"variant"`
	ID      string `json:"id"`
	URL     string `json:"url"`
}

// NewServer routes room creation, the room websocket, health and metrics.
func NewServer(e *Engine, h *Hub, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	srv := &Server{
		Router: chi.NewRouter(),
		engine: e,
		hub:    h,
		log:    log,
	}
	srv.Post("/rooms/{variant}", srv.createRoom)
	srv.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv.Handle("/metrics", promhttp.Handler())
	srv.Get("/ws/{variant}/{id}", srv.serveRoom)
	return srv
}

func (srv *Server) createRoom(w http.ResponseWriter, r *http.Request) {
	variant := chi.URLParam(r, "variant")
	params := make(map[string]any)
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid room parameters", http.StatusBadRequest)
		return
	}

	id, err := srv.engine.CreateSession(r.Context(), variant, params)
	var verr *ValidationError
	switch {
	case errors.Is(err, ErrUnknownVariant):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case errors.As(err, &verr):
		http.Error(w, verr.Error(), http.StatusBadRequest)
		return
	case err != nil:
		srv.log.Error("creating room", zap.String("variant", variant), zap.Error(err))
		http.Error(w, "failed to create room", http.StatusInternalServerError)
		return
	}

	ref := Ref{Variant: strings.ToLower(variant), ID: id}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(&createdRoom{
		Variant: ref.Variant,
		ID:      ref.ID,
		URL:     "/ws/" + ref.Variant + "/" + ref.ID,
	})
}

func (srv *Server) serveRoom(w http.ResponseWriter, r *http.Request) {
	ref := Ref{
		Variant: chi.URLParam(r, "variant"),
		ID:      chi.URLParam(r, "id"),
	}
	if _, ok := srv.engine.Variant(ref.Variant); !ok {
		http.Error(w, "unknown variant", http.StatusNotFound)
		return
	}
	q := r.URL.Query()
	srv.hub.ServeRPC(w, r, ref, Player{
		ID:    q.Get("id"),
		Login: q.Get("login"),
	})
}
