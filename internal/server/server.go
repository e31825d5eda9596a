package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"support-chat-backend/internal/catalog"
	"support-chat-backend/internal/chat"
	"support-chat-backend/internal/config"
	"support-chat-backend/internal/db"
	"support-chat-backend/internal/diagnostics"
	"support-chat-backend/internal/inference"
	"support-chat-backend/internal/session"
	"support-chat-backend/internal/types"
)

// Deps are the collaborators a Server routes requests to.
type Deps struct {
	Sender   inference.Sender
	Sessions *session.Provider
	Memory   *session.MemoryStore
	Catalog  *catalog.Catalog
	// Database and Redis are optional and only used for health reporting and shutdown.
	Database *db.DB
	Redis    *session.RedisStore
}

type Server struct {
	router   *chi.Mux
	cfg      config.Config
	log      zerolog.Logger
	sender   inference.Sender
	sessions *session.Provider
	memory   *session.MemoryStore
	catalog  *catalog.Catalog
	database *db.DB
	redis    *session.RedisStore
	limiter  *sessionLimiter
}

// NewServer wires stores, the inference backend and the catalog from cfg.
func NewServer(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Server, error) {
	memory := session.NewMemoryStore(cfg.HistoryLimit)

	opts := session.Options{
		Memory:        memory,
		File:          session.NewFileStore(cfg.SessionFile),
		Service:       session.ServiceTokenSource(cfg),
		ServiceUserID: cfg.ServiceUserID,
		SingleUser:    cfg.SingleUserMode,
		TTL:           cfg.SessionTTL,
	}
	if cfg.SingleUserMode {
		log.Warn().Str("session_file", cfg.SessionFile).Msg("single-user mode: developer session and service account apply to every chat session")
	} else if cfg.ServiceAccountEnabled() {
		log.Warn().Msg("service account configured but SINGLE_USER_MODE is off; it will not be used")
	}

	// Initialize database if DB_URL is provided
	var database *db.DB
	if cfg.DatabaseURL != "" {
		var err error
		database, err = db.New(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		if err := database.RunMigrations(ctx, db.Migrations()); err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info().Msg("database connection established")
		opts.Database = session.NewDatabaseStore(database)
	} else {
		log.Warn().Msg("DB_URL not provided, using in-memory and file-based sessions only")
	}

	var redisStore *session.RedisStore
	if cfg.RedisURL != "" {
		var err error
		redisStore, err = session.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			if database != nil {
				database.Close()
			}
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
		log.Info().Msg("redis session store connected")
		opts.Redis = redisStore
	}
	sessions := session.NewProvider(opts, log)

	var sender inference.Sender
	switch cfg.InferenceBackend {
	case config.BackendOpenAI:
		responder, err := inference.LoadResponder(cfg.ResponderPromptFile, openai.NewClient(cfg.OpenAIAPIKey), cfg.OpenAIModel, log)
		if err != nil {
			return nil, fmt.Errorf("failed to load responder: %w", err)
		}
		sender = responder
	default:
		sender = inference.NewClient(inference.ClientOptions{
			Endpoint: cfg.InferenceURL,
			AnonKey:  cfg.InferenceAnonKey,
			Timeout:  cfg.InferenceTimeout,
		}, sessions, log)
	}
	log.Info().Str("backend", cfg.InferenceBackend).Msg("inference backend ready")

	cat, err := catalog.Default(cfg.CatalogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	return New(cfg, Deps{
		Sender:   sender,
		Sessions: sessions,
		Memory:   memory,
		Catalog:  cat,
		Database: database,
		Redis:    redisStore,
	}, log), nil
}

// New builds a Server around already constructed collaborators.
func New(cfg config.Config, deps Deps, log zerolog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", "X-Session-Id"},
		ExposedHeaders:   []string{"X-Session-Id"},
		AllowCredentials: true, // Enable credentials for cookies
		MaxAge:           300,
	}))

	s := &Server{
		router:   r,
		cfg:      cfg,
		log:      log,
		sender:   deps.Sender,
		sessions: deps.Sessions,
		memory:   deps.Memory,
		catalog:  deps.Catalog,
		database: deps.Database,
		redis:    deps.Redis,
		limiter:  newSessionLimiter(cfg.ChatRateLimit, cfg.ChatRateBurst),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)
	s.router.With(s.rateLimit).Post("/api/chat", s.handleChat)
	s.router.Get("/api/chat/history", s.handleHistory)
	s.router.Delete("/api/chat/history", s.handleResetHistory)
	// Sign-in bridge
	s.router.Get("/api/session", s.handleSessionStatus)
	s.router.Post("/api/session", s.handleSignIn)
	s.router.Delete("/api/session", s.handleSignOut)
	// Catalog
	s.router.Get("/api/products", s.handleProducts)
	s.router.Get("/api/products/{id}", s.handleProduct)
	s.router.Get("/api/categories", s.handleCategories)
	s.router.Get("/api/categories/{id}/questions", s.handleQuestions)
	s.router.Get("/api/categories/{id}/troubleshooting", s.handleTroubleshooting)
	s.router.Get("/api/answers", s.handleTopics)
	s.router.Get("/api/answers/{topic}", s.handleAnswer)
	s.router.Get("/api/starters", s.handleStarters)
	s.router.Get("/api/scenarios", s.handleScenarios)
	s.router.Get("/api/scenarios/{id}", s.handleScenario)
	s.router.With(s.rateLimit).Post("/api/diagnostics/inference", s.handleDiagnostics)
	s.router.Handle("/metrics", promhttp.Handler())
}

func (s *Server) Router() http.Handler { return s.router }

// Close releases the database and redis connections, if any.
func (s *Server) Close() error {
	var firstErr error
	if s.redis != nil {
		firstErr = s.redis.Close()
	}
	if s.database != nil {
		if err := s.database.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "ok", "backend": s.cfg.InferenceBackend}
	if s.database != nil {
		if err := s.database.HealthCheck(r.Context()); err != nil {
			s.log.Error().Err(err).Msg("database health check failed")
			resp["status"] = "degraded"
			resp["database"] = "unreachable"
		} else {
			resp["database"] = "ok"
		}
	}
	if s.redis != nil {
		if err := s.redis.HealthCheck(r.Context()); err != nil {
			s.log.Error().Err(err).Msg("redis health check failed")
			resp["status"] = "degraded"
			resp["redis"] = "unreachable"
		} else {
			resp["redis"] = "ok"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req types.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	sid := s.getOrCreateSessionID(r, w, req.SessionID)

	history := s.memory.History(sid)
	h := s.memory.Hints(sid).Observe(req.Message, len(history))
	cc := h.Context(history, req.Context.Inference())

	ctx := session.WithID(r.Context(), sid)
	resp, err := s.sender.Send(ctx, req.Message, cc)
	if err != nil {
		if inference.IsNoSession(err) {
			s.log.Info().Str("session_id", sid).Msg("chat requires sign-in")
		} else {
			s.log.Error().Err(err).Str("session_id", sid).Str("kind", string(inference.KindOf(err))).Msg("chat inference failed")
		}
		s.writeError(w, statusFor(err), err.Error())
		return
	}

	msg := chat.Normalize(resp)
	s.memory.SetHints(sid, h)
	s.memory.Append(sid,
		inference.Turn{Role: "user", Content: req.Message},
		inference.Turn{Role: "assistant", Content: msg.PlainText()},
	)

	w.Header().Set("X-Session-Id", sid)
	writeJSON(w, http.StatusOK, types.ChatResponse{
		SessionID:   sid,
		Message:     msg,
		Intent:      resp.Context.CustomerIntent,
		Category:    resp.Context.Category,
		Suggestions: resp.Message.Suggestions,
	})
}

// GET /api/chat/history
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sid := s.getOrCreateSessionID(r, w, "")
	writeJSON(w, http.StatusOK, types.HistoryResponse{
		SessionID: sid,
		Messages:  chat.Transcript(s.memory.History(sid)),
	})
}

// DELETE /api/chat/history starts a new conversation; sign-in is kept.
func (s *Server) handleResetHistory(w http.ResponseWriter, r *http.Request) {
	sid := s.getOrCreateSessionID(r, w, "")
	s.memory.Reset(sid)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	sid := s.getOrCreateSessionID(r, w, "")
	ctx, cancel := context.WithTimeout(session.WithID(r.Context(), sid), 60*time.Second)
	defer cancel()
	results := diagnostics.Run(ctx, s.sender, s.log)
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// statusFor maps inference failures to the status returned to the browser.
func statusFor(err error) int {
	switch inference.KindOf(err) {
	case inference.KindSession:
		return http.StatusUnauthorized
	case inference.KindInput:
		return http.StatusBadRequest
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, types.ErrorResponse{Error: msg})
}

// getSessionID retrieves the session ID from cookie, header or query parameter.
// Ids that were not minted by session.NewID are ignored.
func getSessionID(r *http.Request) string {
	if cookie, err := GetSessionCookie(r); err == nil && session.ValidID(cookie) {
		return cookie
	}
	if sid := r.Header.Get("X-Session-Id"); session.ValidID(sid) {
		return sid
	}
	if sid := r.URL.Query().Get("sessionId"); session.ValidID(sid) {
		return sid
	}
	return ""
}

// getOrCreateSessionID returns the request's session ID, falling back to hint (for
// example a sessionId from the request body) and finally a fresh one. The cookie is
// refreshed either way.
func (s *Server) getOrCreateSessionID(r *http.Request, w http.ResponseWriter, hint string) string {
	sid := getSessionID(r)
	if sid == "" && session.ValidID(hint) {
		sid = hint
	}
	if sid == "" {
		sid = session.NewID()
		s.log.Debug().Str("session_id", sid).Str("path", r.URL.Path).Msg("creating new session")
	}
	SetSessionCookie(w, r, sid)
	return sid
}
