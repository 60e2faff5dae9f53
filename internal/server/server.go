package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"subdigest/internal/state"
	"subdigest/internal/storage"
	"subdigest/internal/types"
)

type Config struct {
	Port     string
	FeedSize int
}

// Server is the outbound surface for the UI side: the current digest
// (or error) as JSON, the digest as RSS/Atom, and the two controls the
// UI needs (replace the subreddit list, force a refresh).
type Server struct {
	config  Config
	tracker *state.Tracker
	cycles  storage.CycleStore
	feeds   *feedRenderer
	server  *http.Server
	baseCtx context.Context
}

func New(config Config, tracker *state.Tracker, cycles storage.CycleStore) *Server {
	if config.Port == "" {
		config.Port = "8080"
	}
	if config.FeedSize == 0 {
		config.FeedSize = 50
	}

	return &Server{
		config:  config,
		tracker: tracker,
		cycles:  cycles,
		feeds:   newFeedRenderer(config.FeedSize),
		baseCtx: context.Background(),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /digest.json", s.handleDigest)
	mux.HandleFunc("GET /feed.rss", s.handleRSSFeed)
	mux.HandleFunc("GET /feed.atom", s.handleAtomFeed)
	mux.HandleFunc("GET /cycles", s.handleCycles)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /subreddits", s.handleSetSubreddits)
	mux.HandleFunc("POST /refresh", s.handleRefresh)
	return mux
}

// Start runs the HTTP server in the background. The given context
// outlives individual requests and anchors schedules started through
// POST /subreddits.
func (s *Server) Start(ctx context.Context) error {
	s.baseCtx = ctx

	s.server = &http.Server{
		Addr:    ":" + s.config.Port,
		Handler: s.Handler(),
	}

	go func() {
		slog.Info("HTTP server starting", "port", s.config.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

type digestResponse struct {
	Subreddits []string     `json:"subreddits"`
	InProgress bool         `json:"in_progress"`
	UpdatedAt  time.Time    `json:"updated_at"`
	Posts      []types.Post `json:"posts,omitempty"`
	Error      string       `json:"error,omitempty"`
}

func (s *Server) handleDigest(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()

	resp := digestResponse{
		Subreddits: snap.Subreddits,
		InProgress: snap.InProgress,
		UpdatedAt:  snap.UpdatedAt,
	}

	if snap.Error != "" {
		resp.Error = snap.Error
	} else if snap.Digest != nil {
		resp.Posts = snap.Digest.Posts
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRSSFeed(w http.ResponseWriter, r *http.Request) {
	s.serveFeed(w, feedTypeRSS)
}

func (s *Server) handleAtomFeed(w http.ResponseWriter, r *http.Request) {
	s.serveFeed(w, feedTypeAtom)
}

func (s *Server) serveFeed(w http.ResponseWriter, feedType string) {
	snap := s.tracker.Snapshot()
	if snap.Digest == nil {
		http.Error(w, "no digest available yet", http.StatusServiceUnavailable)
		return
	}

	body, contentType, err := s.feeds.Render(snap.Digest, feedType)
	if err != nil {
		slog.Error("Failed to render feed", "type", feedType, "error", err)
		http.Error(w, "failed to render feed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	fmt.Fprint(w, body)
}

func (s *Server) handleCycles(w http.ResponseWriter, r *http.Request) {
	if s.cycles == nil {
		http.Error(w, "cycle history unavailable", http.StatusServiceUnavailable)
		return
	}

	records, err := s.cycles.Recent(r.Context(), 20)
	if err != nil {
		slog.Error("Failed to load cycle history", "error", err)
		http.Error(w, "failed to load cycle history", http.StatusInternalServerError)
		return
	}

	type cycleJSON struct {
		ID         int64     `json:"id"`
		StartedAt  time.Time `json:"started_at"`
		DurationMS int64     `json:"duration_ms"`
		Subreddits []string  `json:"subreddits"`
		PostCount  int       `json:"post_count"`
		Error      string    `json:"error,omitempty"`
	}

	out := make([]cycleJSON, 0, len(records))
	for _, rec := range records {
		out = append(out, cycleJSON{
			ID:         rec.ID,
			StartedAt:  rec.StartedAt,
			DurationMS: rec.Duration.Milliseconds(),
			Subreddits: rec.Subreddits,
			PostCount:  rec.PostCount,
			Error:      rec.Error,
		})
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()

	posts := 0
	if snap.Digest != nil {
		posts = len(snap.Digest.Posts)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"posts":  posts,
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

type setSubredditsRequest struct {
	// Raw comma-separated value, exactly as typed on the UI side.
	Subreddits string `json:"subreddits"`
}

func (s *Server) handleSetSubreddits(w http.ResponseWriter, r *http.Request) {
	var req setSubredditsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	names := strings.Split(req.Subreddits, ",")

	if err := s.tracker.SetSubreddits(s.baseCtx, names); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"subreddits": s.tracker.Snapshot().Subreddits,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.Refresh(); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
