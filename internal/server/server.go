package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ironsheep/perceptive-vision/internal/ocr"
	"github.com/ironsheep/perceptive-vision/internal/session"
	"github.com/ironsheep/perceptive-vision/internal/tts"
)

// Options configures a Server.
type Options struct {
	// Addr is the listen address, e.g. ":8501".
	Addr string

	// MaxUploadBytes caps the size of an upload request body.
	MaxUploadBytes int64

	// MaxPixels caps the width*height an uploaded image may declare.
	MaxPixels int64

	// PreviewMaxWidth is the widest preview sent back to the browser.
	PreviewMaxWidth int
}

// Server serves the web UI.
type Server struct {
	opts        Options
	logger      *slog.Logger
	extractor   *ocr.Extractor
	synthesizer *tts.Synthesizer
	sessions    *session.Store
	content     *content

	router *chi.Mux
	server *http.Server
}

// New creates a server around the given extractor, synthesizer and session
// store. The returned server is not listening yet; see Start.
func New(opts Options, extractor *ocr.Extractor, synthesizer *tts.Synthesizer, sessions *session.Store, logger *slog.Logger) (*Server, error) {
	c, err := loadContent()
	if err != nil {
		return nil, err
	}

	s := &Server{
		opts:        opts,
		logger:      logger,
		extractor:   extractor,
		synthesizer: synthesizer,
		sessions:    sessions,
		content:     c,
		router:      chi.NewRouter(),
	}
	s.routes()

	// No write timeout: extraction and playback hold the request open until
	// they finish.
	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s, nil
}

func (s *Server) routes() {
	r := s.router

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Post("/upload", s.handleUpload)
	r.Post("/extract", s.handleExtract)
	r.Post("/speak", s.handleSpeak)
	r.Get("/healthz", s.handleHealthz)
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening for HTTP requests. It blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
