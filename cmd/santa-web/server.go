package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/unklstewy/santa-scope/internal/app"
	"github.com/unklstewy/santa-scope/internal/auth"
	"github.com/unklstewy/santa-scope/pkg/canvas"
	"github.com/unklstewy/santa-scope/pkg/chat"
	"github.com/unklstewy/santa-scope/pkg/route"
	"github.com/unklstewy/santa-scope/pkg/tracker"
)

type contextKey string

const claimsKey contextKey = "claims"

// Server holds the HTTP server and its dependencies
type Server struct {
	router   *chi.Mux
	app      *app.App
	engine   *tracker.Engine
	authSvc  *auth.Service
	logger   zerolog.Logger
	upgrader websocket.Upgrader

	width, height int
	pushInterval  time.Duration

	closeOnce sync.Once
	closing   chan struct{}
}

// NewServer builds the router for a wired tracker.
func NewServer(a *app.App, authSvc *auth.Service) *Server {
	cfg := a.Config.Server
	s := &Server{
		router:       chi.NewRouter(),
		app:          a,
		engine:       a.Engine,
		authSvc:      authSvc,
		logger:       a.Logger.With().Str("component", "http").Logger(),
		width:        cfg.CanvasWidth,
		height:       cfg.CanvasHeight,
		pushInterval: cfg.PushInterval(),
		closing:      make(chan struct{}),
	}
	if s.pushInterval <= 0 {
		s.pushInterval = 100 * time.Millisecond
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	s.setupRoutes(cfg.AllowedOrigins, cfg.StaticDir)
	return s
}

// Close ends every websocket stream with a going-away close frame.
// http.Server.Shutdown does not track hijacked connections, so it is
// registered with RegisterOnShutdown.
func (s *Server) Close() {
	s.closeOnce.Do(func() { close(s.closing) })
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(origins []string, staticDir string) {
	r := s.router

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/ws", s.handleWebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Compress(5))

		r.Get("/state", s.handleGetState)
		r.Get("/route", s.handleGetRoute)
		r.Get("/frame", s.handleGetFrame)
		r.Get("/frame.svg", s.handleGetFrameSVG)

		r.Post("/camera/drag", s.handleCameraDrag)
		r.Post("/camera/zoom", s.handleCameraZoom)
		r.Post("/camera/pointer", s.handleCameraPointer)
		r.Post("/camera/recenter", s.handleCameraRecenter)

		r.Get("/chat", s.handleGetChat)
		r.Post("/chat", s.handlePostChat)

		r.Post("/auth/login", s.handleLogin)

		// Operator routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware(auth.RoleOperator))

			r.Put("/route", s.handlePutRoute)
			r.Post("/route/next", s.handleRouteNext)
			r.Post("/route/reload", s.handleRouteReload)
			r.Delete("/chat", s.handleResetChat)
		})
	})

	if staticDir != "" {
		if info, err := os.Stat(staticDir); err == nil && info.IsDir() {
			s.logger.Info().Str("dir", staticDir).Msg("serving static files")
			r.Handle("/*", http.FileServer(http.Dir(staticDir)))
		}
	}
}

// requestLogger writes one zerolog record per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

// authMiddleware requires a bearer token carrying at least role.
func (s *Server) authMiddleware(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				respondError(w, http.StatusUnauthorized, "missing or malformed authorization header")
				return
			}

			claims, err := s.authSvc.ValidateToken(token)
			if err != nil {
				respondError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			if !auth.HasRole(claims.Role, role) {
				respondError(w, http.StatusForbidden, "insufficient role")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Health(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	resp := map[string]any{"status": "ok"}
	stats, err := s.app.Stats(r.Context())
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to read database stats")
	} else if stats != nil {
		resp["database"] = stats
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.engine.State().Snapshot())
}

func (s *Server) handleGetRoute(w http.ResponseWriter, r *http.Request) {
	state := s.engine.State()
	respondJSON(w, http.StatusOK, map[string]any{
		"waypoints": state.Route(),
		"index":     state.Index(),
	})
}

func (s *Server) handleGetFrame(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.engine.Frame(time.Now()))
}

func (s *Server) handleGetFrameSVG(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-store")
	canvas.WriteSVG(w, s.engine.Frame(time.Now()), s.width, s.height)
}

func (s *Server) handleCameraDrag(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DX float64 `json:"dx"`
		DY float64 `json:"dy"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	s.engine.Controller().Nudge(req.DX, req.DY)
	respondJSON(w, http.StatusOK, s.engine.State().Snapshot())
}

func (s *Server) handleCameraZoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Notches float64 `json:"notches"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Notches != 0 {
		s.engine.Controller().Step(req.Notches)
	}
	respondJSON(w, http.StatusOK, s.engine.State().Snapshot())
}

func (s *Server) handleCameraPointer(w http.ResponseWriter, r *http.Request) {
	var req pointerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ev, err := req.event()
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.engine.Controller().HandlePointer(ev)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCameraRecenter(w http.ResponseWriter, r *http.Request) {
	s.engine.Controller().Recenter()
	respondJSON(w, http.StatusOK, s.engine.State().Snapshot())
}

func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"messages": s.app.Chat.Messages(),
		"busy":     s.app.Chat.Busy(),
	})
}

func (s *Server) handlePostChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	reply, err := s.app.Chat.Send(r.Context(), req.Message)
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, chat.ErrBusy):
		respondError(w, http.StatusConflict, err.Error())
	case err != nil:
		respondError(w, http.StatusGone, err.Error())
	default:
		respondJSON(w, http.StatusOK, reply)
	}
}

func (s *Server) handleResetChat(w http.ResponseWriter, r *http.Request) {
	s.app.Chat.Reset(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	token, err := s.authSvc.Login(req.Password)
	switch {
	case errors.Is(err, auth.ErrDisabled):
		respondError(w, http.StatusNotFound, err.Error())
	case err != nil:
		s.logger.Warn().Str("remote", r.RemoteAddr).Msg("operator login failed")
		respondError(w, http.StatusUnauthorized, "invalid credentials")
	default:
		respondJSON(w, http.StatusOK, map[string]string{"token": token})
	}
}

func (s *Server) handlePutRoute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string           `json:"name"`
		Waypoints []route.Waypoint `json:"waypoints"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	rt := route.Route(req.Waypoints)
	if err := rt.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if s.app.Routes != nil {
		name := req.Name
		if name == "" {
			name = s.app.Config.Route.Name
		}
		if err := s.app.Routes.ReplaceRoute(r.Context(), name, rt); err != nil {
			s.logger.Error().Err(err).Str("route", name).Msg("failed to store route")
			respondError(w, http.StatusInternalServerError, "failed to store route")
			return
		}
	}

	s.engine.SetRoute(rt)
	s.logger.Info().Int("waypoints", len(rt)).Msg("route replaced by operator")
	respondJSON(w, http.StatusOK, map[string]any{"waypoints": rt, "index": 0})
}

func (s *Server) handleRouteNext(w http.ResponseWriter, r *http.Request) {
	// Caption requests outlive the HTTP request
	idx := s.engine.Scheduler().Tick(context.WithoutCancel(r.Context()))
	respondJSON(w, http.StatusOK, map[string]int{"index": idx})
}

func (s *Server) handleRouteReload(w http.ResponseWriter, r *http.Request) {
	if err := s.app.ReloadRoute(r.Context()); err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.handleGetRoute(w, r)
}

// decodeJSON reads the request body into v, answering 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
