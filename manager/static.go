package manager

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const indexFile = "index.html"

func (s *Server) handleStatic(w http.ResponseWriter, path string) error {
	name, ok := s.resolveStatic(path)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return nil
	}

	body, err := os.ReadFile(name)
	if err != nil {
		s.logger.Debug("cannot read static file", "path", name, "error", err)
		w.WriteHeader(http.StatusNotFound)
		return nil
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
	return nil
}

// resolveStatic maps a request path to a canonical file under the static root.
// The containment check runs on canonical paths only, after symlinks and ".."
// are resolved.
func (s *Server) resolveStatic(path string) (string, bool) {
	root, err := canonicalize(s.staticDir)
	if err != nil {
		s.logger.Warn("static root unavailable", "dir", s.staticDir, "error", err)
		return "", false
	}

	rel := indexFile
	if path != "/" {
		rel = strings.TrimPrefix(path, "/")
	}

	name, err := canonicalize(filepath.Join(root, rel))
	if err != nil {
		return "", false
	}
	if !withinRoot(root, name) {
		s.logger.Warn("static path escapes root", "path", path, "resolved", name)
		return "", false
	}
	return name, true
}

func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// withinRoot compares whole path segments so that /srv/www-other is not under /srv/www.
func withinRoot(root, name string) bool {
	if name == root {
		return true
	}
	if !strings.HasSuffix(root, string(filepath.Separator)) {
		root += string(filepath.Separator)
	}
	return strings.HasPrefix(name, root)
}
