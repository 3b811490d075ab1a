// Package server exposes editing sessions over HTTP. Each session owns its
// composition state and export pipeline; requests against one session are
// serialized by the session's mutex, except for exports, which capture a
// snapshot and then run without holding it.
package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ByLCY/vyapaarpost/catalog"
	"github.com/ByLCY/vyapaarpost/editor"
	"github.com/ByLCY/vyapaarpost/export"
	"github.com/ByLCY/vyapaarpost/intake"
	"github.com/ByLCY/vyapaarpost/layout"
	"github.com/ByLCY/vyapaarpost/notify"
	"github.com/ByLCY/vyapaarpost/renderer"
	"github.com/ByLCY/vyapaarpost/share"
)

// Options configures a Server.
type Options struct {
	Catalog     *catalog.Catalog
	Rasterizer  renderer.Rasterizer
	Layout      layout.Options
	Scale       float64
	Saver       export.Saver
	Target      share.Target
	NotifyDelay time.Duration
	Logger      *slog.Logger
	// MaxUpload bounds the multipart request body of an image upload.
	// Zero uses intake.MaxUploadBytes plus 1 MiB for the multipart framing.
	MaxUpload int64
}

// Server holds the live sessions.
type Server struct {
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	mu       sync.Mutex
	editor   *editor.Session
	pipeline *export.Pipeline
	notifier *notify.Notifier
}

// New creates a Server. A nil catalog uses the embedded default.
func New(opts Options) (*Server, error) {
	if opts.Catalog == nil {
		c, err := catalog.Default()
		if err != nil {
			return nil, err
		}
		opts.Catalog = c
	}
	if opts.Layout.Fonts == nil {
		opts.Layout.Fonts = opts.Catalog.Typography()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxUpload <= 0 {
		opts.MaxUpload = intake.MaxUploadBytes + 1<<20
	}
	return &Server{opts: opts, logger: opts.Logger, sessions: map[string]*session{}}, nil
}

// Handler returns the chi router serving all routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(recoverer(s.logger))
	r.Use(requestLogger(s.logger))

	r.Get("/health", s.health)

	r.Get("/templates", s.listTemplates)
	r.Get("/templates/{id}", s.getTemplate)
	r.Get("/categories", s.listCategories)
	r.Get("/fonts", s.listFonts)
	r.Get("/palette", s.palette)

	r.Post("/sessions", s.createSession)
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", s.getSession)
		r.Delete("/", s.deleteSession)
		r.Put("/template", s.selectTemplate)
		r.Put("/fields/{name}", s.setField)
		r.Put("/style", s.setStyle)
		r.Post("/image", s.uploadImage)
		r.Delete("/image", s.clearImage)
		r.Get("/tree", s.tree)
		r.Get("/preview", s.preview)
		r.Post("/download", s.download)
		r.Post("/share", s.share)
	})
	return r
}

func (s *Server) newSession() (string, *session) {
	n := notify.New(s.opts.NotifyDelay, s.logger)
	sess := &session{
		editor:   editor.NewSession(),
		notifier: n,
		pipeline: export.NewPipeline(s.opts.Rasterizer, export.Options{
			Scale:    s.opts.Scale,
			Layout:   s.opts.Layout,
			Saver:    s.opts.Saver,
			Target:   s.opts.Target,
			Notifier: n,
			Logger:   s.logger,
		}),
	}
	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
	return id, sess
}

func (s *Server) lookup(id string) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *Server) drop(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if ok {
		sess.notifier.Dismiss()
		delete(s.sessions, id)
	}
	return ok
}

// Len returns the number of live sessions.
func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
