package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/xside/xside-server/internal/auth"
	"github.com/xside/xside-server/internal/config"
	"github.com/xside/xside-server/internal/integration"
	"github.com/xside/xside-server/internal/media"
	"github.com/xside/xside-server/internal/storage"
	"github.com/xside/xside-server/internal/validation"
)

// RESTServer represents the REST API server
type RESTServer struct {
	config    *config.Config
	store     storage.Store
	media     media.Store
	auth      *auth.JWTManager
	validator *validation.Validator
	events    *integration.Events
	router    chi.Router
	server    *http.Server
}

// NewRESTServer creates a new REST API server. events may be nil when
// NATS is not configured.
func NewRESTServer(cfg *config.Config, store storage.Store, mediaStore media.Store, events *integration.Events) *RESTServer {
	s := &RESTServer{
		config:    cfg,
		store:     store,
		media:     mediaStore,
		auth:      auth.NewJWTManager(&cfg.JWT),
		validator: validation.NewValidator(),
		events:    events,
		router:    chi.NewRouter(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Router exposes the handler, used by tests
func (s *RESTServer) Router() http.Handler {
	return s.router
}

// setupRoutes configures all routes
func (s *RESTServer) setupRoutes() {
	// Middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// A known path hit with an unsupported verb answers 501, matching
	// the historical API contract.
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, http.StatusNotImplemented, "Wrong method")
	})

	// Public API
	s.router.Route("/api/v1", func(r chi.Router) {
		s.setupAPIRoutes(r)
	})

	// Private API for field devices
	s.router.Route("/private/api/v1", func(r chi.Router) {
		s.setupPrivateRoutes(r)
	})

	// Uploaded media, served directly when stored on local disk
	if ds, ok := s.media.(*media.DiskStore); ok {
		prefix := strings.TrimRight(s.config.Media.BaseURL, "/")
		if strings.HasPrefix(prefix, "/") {
			fs := http.StripPrefix(prefix+"/", http.FileServer(http.Dir(ds.Dir())))
			s.router.Get(prefix+"/*", fs.ServeHTTP)
		}
	}
}

// ListenAndServe starts the server
func (s *RESTServer) ListenAndServe(addr string) error {
	s.server.Addr = addr
	log.Info().Str("addr", addr).Msg("Starting REST API server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *RESTServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type contextKey string

const claimsKey contextKey = "claims"

// authMiddleware is the authentication middleware
func (s *RESTServer) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			s.respondError(w, http.StatusUnauthorized, "Not authorized")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			s.respondError(w, http.StatusUnauthorized, "Not authorized")
			return
		}

		claims, err := s.auth.ValidateToken(parts[1])
		if err != nil {
			s.respondError(w, http.StatusUnauthorized, "Not authorized")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// claimsFromContext returns the authenticated claims
func claimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}
