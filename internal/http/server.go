package http

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"transferencias/internal/api"
	"transferencias/internal/cache"
	"transferencias/internal/core"
	"transferencias/internal/session"
	"transferencias/internal/view"
	appweb "transferencias/web"
)

const tagCatalogKey = "tags"

// appMetrics tracks application-level counters exposed by the health endpoints.
type appMetrics struct {
	startedAt    time.Time
	totalCreates int64
	totalUpdates int64
	totalDeletes int64
}

type Server struct {
	http.Server
	templates *template.Template
	backend   api.Backend
	sessions  *session.Manager

	rateLimiter *rateLimiter
	metrics     securityMetrics
	appMetrics  appMetrics

	// Global tag catalog cache. Tags change rarely; singleflight collapses
	// concurrent misses into one upstream call.
	tagCache  *cache.LRU[[]core.Tag]
	tagFlight singleflight.Group

	// One snapshot store per live session, dropped on logout.
	storesMu sync.Mutex
	stores   map[string]*view.Store

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, backend api.Backend, sessions *session.Manager, tagCacheSize int, tagCacheTTL time.Duration) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		backend:          backend,
		sessions:         sessions,
		rateLimiter:      newRateLimiter(),
		appMetrics:       appMetrics{startedAt: time.Now()},
		tagCache:         cache.NewLRU[[]core.Tag](tagCacheSize, tagCacheTTL),
		stores:           make(map[string]*view.Store),
		stopCacheCleanup: make(chan struct{}),
	}

	// Snapshot stores die with their session.
	sessions.Subscribe(func(sessionID string) {
		s.storesMu.Lock()
		delete(s.stores, sessionID)
		s.storesMu.Unlock()
	})

	go s.startCacheCleanup()

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("GET /{$}", s.withSecurityHeaders(s.handleIndex))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /login", s.withSecurityHeaders(s.handleLoginPage))
	mux.HandleFunc("POST /login", s.withSecurityHeaders(s.handleLogin))
	mux.HandleFunc("GET /cadastro", s.withSecurityHeaders(s.handleSignupPage))
	mux.HandleFunc("POST /cadastro", s.withSecurityHeaders(s.handleSignup))
	mux.HandleFunc("POST /logout", s.withSecurityHeaders(s.handleLogout))

	mux.HandleFunc("GET /transferencias", s.withSecurityHeaders(s.withSession(s.handleTransfersPage)))
	mux.HandleFunc("POST /transferencias", s.withSecurityHeaders(s.withSession(s.handleCreateTransfer)))
	mux.HandleFunc("PUT /transferencias/{id}", s.withSecurityHeaders(s.withSession(s.handleUpdateTransfer)))
	mux.HandleFunc("DELETE /transferencias/{id}", s.withSecurityHeaders(s.withSession(s.handleDeleteTransfer)))
	// UI partials
	mux.HandleFunc("GET /ui/transferencias", s.withSecurityHeaders(s.withSession(s.handleTransfersTable)))
	mux.HandleFunc("GET /ui/tags", s.withSecurityHeaders(s.withSession(s.handleTagOptions)))

	return s
}

// startCacheCleanup runs periodic cleanup for the tag cache.
func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if cleaned := s.tagCache.CleanExpired(); cleaned > 0 {
				slog.Debug("Cache cleanup completed", "tag_entries_removed", cleaned)
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.stopCacheCleanup != nil {
			close(s.stopCacheCleanup)
		}
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withSecurityHeaders adds security headers, rate limiting, and request logging to responses.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP,
			"user_agent", r.Header.Get("User-Agent"))

		if detectSuspiciousRequest(r, &s.metrics) {
			slog.WarnContext(ctx, "Suspicious request pattern", "client_ip", clientIP, "url", r.URL.Path)
		}

		// Rate limit the mutating methods only; reads stay cheap.
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodDelete {
			if !s.rateLimiter.allow(clientIP, &s.metrics) {
				slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
				w.Header().Set("Retry-After", "60")
				http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				return
			}
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' https://unpkg.com 'unsafe-eval'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds(),
			"client_ip", clientIP)
	}
}

type requestIDKey struct{}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// sessionHandler receives the resolved session alongside the request.
type sessionHandler func(w http.ResponseWriter, r *http.Request, sess session.Session)

// withSession resolves the sid cookie into a session. Without a valid
// session the request is bounced to the login page before any API call is
// made.
func (s *Server) withSession(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil {
			redirectToLogin(w, r)
			return
		}
		sess, err := s.sessions.Get(r.Context(), cookie.Value)
		if err != nil {
			slog.InfoContext(r.Context(), "Session not resolved, redirecting to login", "error", err)
			clearSessionCookie(w)
			redirectToLogin(w, r)
			return
		}
		next(w, r, sess)
	}
}

// expireSession drops a session whose token the API rejected and bounces
// the browser to the login page.
func (s *Server) expireSession(w http.ResponseWriter, r *http.Request, sess session.Session) {
	slog.WarnContext(r.Context(), "API rejected session token, forcing re-login", "user_id", sess.User.ID)
	if err := s.sessions.Logout(r.Context(), sess.ID); err != nil {
		slog.ErrorContext(r.Context(), "Session cleanup failed", "error", err)
	}
	clearSessionCookie(w)
	redirectToLogin(w, r)
}

// storeFor returns the per-session snapshot store, creating it on first use.
func (s *Server) storeFor(sessionID string) *view.Store {
	s.storesMu.Lock()
	defer s.storesMu.Unlock()
	st, ok := s.stores[sessionID]
	if !ok {
		st = view.NewStore()
		s.stores[sessionID] = st
	}
	return st
}

// cachedTags returns the global tag catalog, serving from cache when fresh.
func (s *Server) cachedTags(ctx context.Context) ([]core.Tag, error) {
	if tags, ok := s.tagCache.Get(tagCatalogKey); ok {
		slog.DebugContext(ctx, "Tag catalog cache hit", "count", len(tags))
		return tags, nil
	}

	v, err, _ := s.tagFlight.Do(tagCatalogKey, func() (any, error) {
		cctx, cancel := context.WithTimeout(ctx, 7*time.Second)
		defer cancel()
		tags, err := s.backend.ListTags(cctx)
		if err != nil {
			return nil, err
		}
		s.tagCache.Set(tagCatalogKey, tags)
		slog.DebugContext(ctx, "Tag catalog cached", "count", len(tags))
		return tags, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]core.Tag), nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/transferencias", http.StatusFound)
}
