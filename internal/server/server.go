// Package server is a thin HTTP host over the render engine.
//
//	GET /jsonld?url=...&kind=singular&post=42   the page's JSON-LD document
//	GET /types                                  catalog types and fields
//	GET /rules                                  grouped rule options
//	GET /healthz                                liveness
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/agentic-research/sitegraph/api"
	"github.com/agentic-research/sitegraph/internal/catalog"
	"github.com/agentic-research/sitegraph/internal/graph"
	"github.com/agentic-research/sitegraph/internal/rules"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// ContentTypeLD is the media type of a JSON-LD response.
const ContentTypeLD = "application/ld+json; charset=utf-8"

// Service is the engine surface the server needs. Both *engine.Engine and
// *engine.HotSwap satisfy it.
type Service interface {
	Render(ctx context.Context, page api.Page) (*graph.Document, error)
	Types() []catalog.TypeInfo
	RuleOptions() []rules.OptionGroup
}

// Server routes HTTP requests to a Service.
type Server struct {
	svc     Service
	log     *zap.Logger
	timeout time.Duration
	mux     chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithRenderTimeout bounds each render. Zero disables the bound.
func WithRenderTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// New creates a server over svc.
func New(svc Service, opts ...Option) *Server {
	s := &Server{svc: svc, log: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.accessLog)
	r.Get("/jsonld", s.handleJSONLD)
	r.Get("/types", s.handleTypes)
	r.Get("/rules", s.handleRules)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	s.mux = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (s *Server) handleJSONLD(w http.ResponseWriter, r *http.Request) {
	page, err := PageFromQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ctx := r.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	doc, err := s.svc.Render(ctx, page)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, err)
		return
	case err != nil:
		s.log.Warn("render failed", zap.String("url", page.URL), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	if doc.Empty() {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.URL.Query().Get("format") == "script" {
		tag, err := doc.ScriptTag()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(tag))
		return
	}
	w.Header().Set("Content-Type", ContentTypeLD)
	if err := doc.Encode(w, false); err != nil {
		s.log.Warn("encode failed", zap.Error(err))
	}
}

func (s *Server) handleTypes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Types())
}

func (s *Server) handleRules(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.RuleOptions())
}

// PageFromQuery builds a page descriptor from query parameters: url, kind,
// title, post, post_type, term, taxonomy, user, search, product_type, front
// and posts_page.
func PageFromQuery(q url.Values) (api.Page, error) {
	kind, err := api.ParseKind(q.Get("kind"))
	if err != nil {
		return api.Page{}, err
	}
	page := api.Page{
		URL:         q.Get("url"),
		Title:       q.Get("title"),
		Kind:        kind,
		PostType:    q.Get("post_type"),
		Taxonomy:    q.Get("taxonomy"),
		SearchQuery: q.Get("search"),
		ProductType: q.Get("product_type"),
	}
	ids := []struct {
		key string
		dst *int64
	}{
		{"post", &page.PostID},
		{"term", &page.TermID},
		{"user", &page.UserID},
	}
	for _, id := range ids {
		if raw := q.Get(id.key); raw != "" {
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return api.Page{}, fmt.Errorf("invalid %s: %w", id.key, err)
			}
			*id.dst = n
		}
	}
	flags := []struct {
		key string
		dst *bool
	}{
		{"front", &page.IsFront},
		{"posts_page", &page.IsPostsPage},
	}
	for _, f := range flags {
		if raw := q.Get(f.key); raw != "" {
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return api.Page{}, fmt.Errorf("invalid %s: %w", f.key, err)
			}
			*f.dst = b
		}
	}
	if err := page.Validate(); err != nil {
		return api.Page{}, err
	}
	return page, nil
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: http.StatusText(status), Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
