// Package assetserver serves the application under test: its static assets, its pages, and a
// collector for the coverage that instrumented pages send back.
package assetserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/webfixture/browser-acceptance-tests/coverage"
	"github.com/webfixture/browser-acceptance-tests/framework"
)

const (
	DefaultPort         = 8000
	httpListenerTimeout = time.Second * 10
	maxCoverageBytes    = 64 << 20
)

var pageNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

type Config struct {
	// Root is the directory served at "/".
	Root string
	// PagesDir holds one html/template file per page, named <page>.html. Defaults to Root/pages.
	PagesDir     string
	CoveragePath string
	// CoverageDir, if set, receives every coverage submission as a numbered JSON file.
	CoverageDir string
}

// PageData is what page templates are rendered with.
type PageData struct {
	Page      string
	Timestamp int64
}

type Server struct {
	cfg         Config
	handler     http.Handler
	submissions [][]byte
	logger      framework.Logger
	lock        sync.Mutex
}

func New(cfg Config, logger framework.Logger) *Server {
	if logger == nil {
		logger = framework.NullLogger()
	}
	if cfg.PagesDir == "" {
		cfg.PagesDir = filepath.Join(cfg.Root, "pages")
	}
	if cfg.CoveragePath == "" {
		cfg.CoveragePath = coverage.DefaultPath
	}
	s := &Server{cfg: cfg, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /pages/{page}", s.servePage)
	mux.HandleFunc("POST "+cfg.CoveragePath, s.collectCoverage)
	mux.Handle("GET /", http.FileServer(http.Dir(cfg.Root)))
	s.handler = mux
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.handler.ServeHTTP(w, req)
}

func (s *Server) servePage(w http.ResponseWriter, req *http.Request) {
	name := req.PathValue("page")
	if !pageNamePattern.MatchString(name) {
		http.NotFound(w, req)
		return
	}
	tmpl, err := template.ParseFiles(filepath.Join(s.cfg.PagesDir, name+".html"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Printf("Received request for unknown page %s", name)
			http.NotFound(w, req)
			return
		}
		s.logger.Printf("Could not parse page template %s: %s", name, err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := tmpl.Execute(w, PageData{Page: name, Timestamp: time.Now().UnixMilli()}); err != nil {
		s.logger.Printf("Could not render page %s: %s", name, err)
	}
}

func (s *Server) collectCoverage(w http.ResponseWriter, req *http.Request) {
	data, err := io.ReadAll(io.LimitReader(req.Body, maxCoverageBytes))
	_ = req.Body.Close()
	if err != nil {
		s.logger.Printf("Unexpected error trying to read coverage: %s", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if !json.Valid(data) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s.lock.Lock()
	s.submissions = append(s.submissions, data)
	n := len(s.submissions)
	s.lock.Unlock()

	if s.cfg.CoverageDir != "" {
		if err := os.MkdirAll(s.cfg.CoverageDir, 0o755); err == nil {
			err = os.WriteFile(filepath.Join(s.cfg.CoverageDir, fmt.Sprintf("client-%d.json", n)), data, 0o644)
		}
		if err != nil {
			s.logger.Printf("Could not save coverage: %s", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}
	s.logger.Printf("Received coverage submission %d (%d bytes)", n, len(data))
	w.WriteHeader(http.StatusNoContent)
}

// Submissions returns the coverage documents received so far.
func (s *Server) Submissions() [][]byte {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([][]byte(nil), s.submissions...)
}

// Start serves handler on port and returns once the listener is answering.
func Start(port int, handler http.Handler, logger framework.Logger) (*http.Server, error) {
	if logger == nil {
		logger = framework.NullLogger()
	}
	server := &http.Server{
		Addr: fmt.Sprintf(":%d", port),
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == "HEAD" && r.URL.Path == "/" {
				w.WriteHeader(200) // we use this to test whether our own listener is active yet
				return
			}
			handler.ServeHTTP(w, r)
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	failed := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("Asset server stopped: %s", err)
			failed <- err
		}
	}()

	// Wait till the server is definitely listening for requests before we run any tests
	deadline := time.NewTimer(httpListenerTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(time.Millisecond * 10)
	defer ticker.Stop()
	for {
		select {
		case err := <-failed:
			return nil, fmt.Errorf("could not start asset server: %w", err)
		case <-deadline.C:
			_ = server.Close()
			return nil, fmt.Errorf("could not detect own listener at %s", server.Addr)
		case <-ticker.C:
			resp, err := http.DefaultClient.Head(fmt.Sprintf("http://localhost:%d", port))
			if err == nil {
				_ = resp.Body.Close()
				if resp.StatusCode == 200 {
					return server, nil
				}
			}
		}
	}
}
