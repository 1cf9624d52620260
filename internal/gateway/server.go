// Package gateway is the HTTP delivery layer: per-network webhook
// endpoints, the manual dispatch endpoint, and a websocket feed
// mirroring bus traffic for connected operator clients.
package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/bus"
	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/config"
	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/logging"
	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/routing"
)

// Server is the bridge's HTTP server.
type Server struct {
	cfg    *config.Config
	bus    *bus.Bus
	router *routing.Router
	log    *logging.Logger

	feed       *eventFeed
	upgrader   websocket.Upgrader
	httpServer *http.Server
	startedAt  time.Time
}

// New creates a server and registers its bus feed subscription.
func New(cfg *config.Config, b *bus.Bus, router *routing.Router, log *logging.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		bus:       b,
		router:    router,
		log:       log.Sub("gateway"),
		feed:      newEventFeed(),
		startedAt: time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Webhook auth is path-token based; the feed carries no
			// secrets beyond what the operator's own helpdesk shows.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	b.Subscribe(bus.TopicAll, "gateway-feed", s.feed.broadcast)
	return s
}

// Handler builds the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID", "X-Webhook-Signature"},
		MaxAge:         86400,
	}))

	r.Get("/health", s.handleHealth)
	r.Post("/wasender/webhook/{webhookID}", s.handleWasenderWebhook)
	r.Post("/chatwoot/webhook/{webhookID}", s.handleChatwootWebhook)
	r.Post("/vk/callback/{callbackID}", s.handleVKCallback)
	r.Post("/dispatch", s.handleDispatch)
	r.Get("/ws", s.handleEventFeed)
	return r
}

// Start runs the HTTP server until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	host := "127.0.0.1"
	if s.cfg.Gateway.Bind == "lan" {
		host = "0.0.0.0"
	}
	addr := fmt.Sprintf("%s:%d", host, s.cfg.Gateway.Port)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("gateway listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	channels := make([]string, 0, len(s.cfg.Chatwoot.WebhookIDs))
	for channel := range s.cfg.Chatwoot.WebhookIDs {
		channels = append(channels, channel)
	}

	body := map[string]any{
		"ok":             true,
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
		"chatwoot": map[string]any{
			"account_id":          s.cfg.Chatwoot.AccountID,
			"base_url":            s.cfg.Chatwoot.BaseURL,
			"channels_configured": channels,
		},
		"wasender": map[string]any{"enabled": s.cfg.Wasender != nil},
		"telegram": map[string]any{"enabled": s.cfg.Telegram != nil},
		"vk":       map[string]any{"enabled": s.cfg.VK != nil},
	}
	if s.cfg.VK != nil {
		// group_id is safe to show; tokens and secrets are not.
		body["vk"].(map[string]any)["group_id"] = s.cfg.VK.GroupID
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]any{"detail": detail})
}

// requestIDMiddleware adds a unique request ID to each request/response.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs each HTTP request.
func loggingMiddleware(log *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", sw.status).
				Dur("duration", time.Since(start)).
				Str("remote", r.RemoteAddr).
				Msg("http request")
		})
	}
}

// statusWriter wraps ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Hijack passes connection hijacking through to the wrapped writer so the
// websocket upgrade on /ws works behind the logging middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}
