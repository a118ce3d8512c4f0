// Package mjpeg serves the composed display as a live MJPEG stream over HTTP.
package mjpeg

import (
	"context"
	"fmt"
	"image"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	"goji.io"
	"goji.io/pat"

	"go.viam.com/facebox/logging"
	"go.viam.com/facebox/rimage"
	"go.viam.com/facebox/utils"
)

const (
	defaultFPS      = 15
	shutdownTimeout = 5 * time.Second
	boundary        = "faceboxframe"
)

// A Snapshotter produces the image to serve. Version must change whenever Snapshot would return
// something different.
type Snapshotter interface {
	Snapshot() *image.RGBA
	Version() uint64
}

// Config are the settings of the stream server.
type Config struct {
	Address string `json:"address"`
	FPS     int    `json:"fps,omitempty"`
	Quality int    `json:"quality,omitempty"`
}

// Validate checks the server settings.
func (conf *Config) Validate(path string) error {
	if conf.Address == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "address")
	}
	if _, _, err := net.SplitHostPort(conf.Address); err != nil {
		return utils.NewConfigValidationError(path+".address", err)
	}
	if conf.FPS < 0 || conf.FPS > 120 {
		return errors.Errorf("%s.fps: must be between 0 and 120, got %d", path, conf.FPS)
	}
	if conf.Quality < 0 || conf.Quality > 100 {
		return errors.Errorf("%s.quality: must be between 0 and 100, got %d", path, conf.Quality)
	}
	return nil
}

// Server streams a Snapshotter.
type Server struct {
	src     Snapshotter
	conf    Config
	logger  logging.Logger
	mux     *goji.Mux
	handler http.Handler

	// closing is cancelled before shutdown so that open streams end.
	closing context.Context
	cancel  func()

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
	workers  utils.StoppableWorkers
	clients  int
}

// NewServer returns a server for src. Nothing listens until Start.
func NewServer(src Snapshotter, conf Config, logger logging.Logger) *Server {
	if conf.FPS == 0 {
		conf.FPS = defaultFPS
	}
	closing, cancel := context.WithCancel(context.Background())
	s := &Server{src: src, conf: conf, logger: logger, closing: closing, cancel: cancel}
	s.mux = s.initMux()
	s.handler = cors.AllowAll().Handler(s.mux)
	return s
}

func (s *Server) initMux() *goji.Mux {
	mux := goji.NewMux()
	mux.HandleFunc(pat.Get("/stream.mjpg"), s.handleStream)
	mux.HandleFunc(pat.Get("/snapshot.jpg"), s.handleSnapshot)
	mux.HandleFunc(pat.Get("/healthz"), func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		//nolint:errcheck
		w.Write([]byte("ok\n"))
	})
	return mux
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return errors.New("stream server already started")
	}
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.conf.Address)
	if err != nil {
		return errors.Wrapf(err, "cannot listen on %s", s.conf.Address)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.server
	s.workers = utils.NewStoppableWorkers(func(ctx context.Context) {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorw("stream server stopped", "error", err)
		}
	})
	s.logger.Infow("serving display stream", "address", listener.Addr().String())
	return nil
}

// Addr returns the address being listened on, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Clients returns the number of connected stream clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clients
}

// Close ends all streams and shuts the server down.
func (s *Server) Close() error {
	s.cancel()
	s.mu.Lock()
	server, workers := s.server, s.workers
	s.mu.Unlock()
	if server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := server.Shutdown(ctx)
	workers.Stop()
	return err
}

func (s *Server) encode() ([]byte, error) {
	return rimage.EncodeJPEG(s.src.Snapshot(), s.conf.Quality)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	data, err := s.encode()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(data); err != nil {
		s.logger.Debugw("snapshot write failed", "error", err)
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	clientID := uuid.NewString()
	s.mu.Lock()
	s.clients++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.clients--
		s.mu.Unlock()
	}()
	s.logger.Debugw("stream client connected", "client", clientID, "remote", r.RemoteAddr)
	defer s.logger.Debugw("stream client disconnected", "client", clientID)

	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary(boundary); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+boundary)
	w.Header().Set("Cache-Control", "no-store")
	flusher, _ := w.(http.Flusher)

	ticker := time.NewTicker(time.Second / time.Duration(s.conf.FPS))
	defer ticker.Stop()
	var lastVersion uint64
	first := true
	for {
		if version := s.src.Version(); first || version != lastVersion {
			first = false
			lastVersion = version
			if err := s.writePart(mw, flusher); err != nil {
				s.logger.Debugw("stream write failed", "client", clientID, "error", err)
				return
			}
		}
		select {
		case <-r.Context().Done():
			return
		case <-s.closing.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) writePart(mw *multipart.Writer, flusher http.Flusher) error {
	data, err := s.encode()
	if err != nil {
		return err
	}
	header := textproto.MIMEHeader{}
	header.Set("Content-Type", "image/jpeg")
	header.Set("Content-Length", fmt.Sprint(len(data)))
	part, err := mw.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if flusher != nil {
		flusher.Flush()
	}
	return nil
}
