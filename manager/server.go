// Package manager serves the overlay status, client configurations and the web UI
// assets over HTTP.
package manager

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/caldog20/overlaymgr/artifact"
	"github.com/caldog20/overlaymgr/config"
	"github.com/caldog20/overlaymgr/metrics"
)

const confPrefix = "/conf/"

const (
	routeData   = "data"
	routeConf   = "conf"
	routeStatic = "static"
)

type Server struct {
	baseDomain string
	staticDir  string
	dir        artifact.Directory
	gen        artifact.ClientConfigGenerator
	logger     *slog.Logger
	metrics    *metrics.Registry
}

// NewServer builds the dispatcher. conf is only read, never modified.
func NewServer(conf *config.ServerConfig, dir artifact.Directory, gen artifact.ClientConfigGenerator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		baseDomain: conf.BaseDomain,
		staticDir:  conf.WebStaticDir,
		dir:        dir,
		gen:        gen,
		logger:     logger.With("component", "http"),
	}
}

func (s *Server) SetMetrics(m *metrics.Registry) {
	s.metrics = m
}

// ServeHTTP routes /data, /conf/<name> and falls back to static files. Errors
// returned by a route become a 503 without detail.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.accessLog(s.dispatch)(w, r)
}

// Routes match the raw, still escaped path: /%64ata is not /data and
// /conf/al%69ce looks up "al%69ce".
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) (string, error) {
	raw := r.URL.EscapedPath()
	switch {
	case raw == "/data":
		return routeData, s.handleData(w, r)
	case strings.HasPrefix(raw, confPrefix):
		return routeConf, s.handleConf(w, r, strings.TrimPrefix(raw, confPrefix))
	default:
		return routeStatic, s.handleStatic(w, r.URL.Path)
	}
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) error {
	status, err := artifact.Status(r.Context(), s.dir, s.baseDomain)
	if err != nil {
		return err
	}
	body, err := status.MarshalPretty()
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
	return nil
}

func (s *Server) handleConf(w http.ResponseWriter, r *http.Request, client string) error {
	conf, err := artifact.ClientConfig(r.Context(), s.gen, client)
	if err != nil {
		if !errors.Is(err, artifact.ErrClientNotFound) {
			return err
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(err.Error()))
		return nil
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(conf))
	return nil
}
