// Package server implements the development server that hosts the refract
// plugin: it serves project files through the transform pipeline, injects
// the refresh bootstrap into HTML documents, answers the virtual refresh
// runtime module, and pushes change notifications over a websocket.
package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/conneroisu/refract/internal/config"
	refracterrors "github.com/conneroisu/refract/internal/errors"
	"github.com/conneroisu/refract/internal/logging"
	"github.com/conneroisu/refract/internal/plugin"
	"github.com/conneroisu/refract/internal/transform"
	"github.com/conneroisu/refract/internal/watcher"
)

// Server is the refract development server.
type Server struct {
	cfg     *config.Config
	root    string // absolute project root
	adapter *plugin.Adapter
	logger  logging.Logger
	httpSrv *http.Server
	hub     *hub
	watcher *watcher.FileWatcher
}

// New creates a development server around the given adapter.
func New(cfg *config.Config, adapter *plugin.Adapter, logger logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.NewLogger(nil)
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving project root %s: %w", cfg.Root, err)
	}
	fw, err := watcher.New(time.Duration(cfg.Watch.DebounceMS)*time.Millisecond, cfg.Watch.Ignore)
	if err != nil {
		return nil, err
	}
	fw.AddFilter(watcher.SourceFilter)

	s := &Server{
		cfg:     cfg,
		root:    root,
		adapter: adapter,
		logger:  logger.WithComponent("server"),
		hub:     newHub(logger),
		watcher: fw,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(transform.RuntimeSpecifier, s.handleRuntime)
	mux.HandleFunc("/refract/ws", s.handleWebSocket)
	mux.HandleFunc("/refract/stats", s.handleStats)
	mux.HandleFunc("/", s.handleFile)

	s.httpSrv = &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, fmt.Sprintf("%d", cfg.Server.Port)),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s, nil
}

// Serve runs the session: one-time plugin initialization, the file watcher,
// and the HTTP listener, until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.adapter.ConfigResolved(ctx); err != nil {
		return fmt.Errorf("initializing plugin: %w", err)
	}

	if err := s.watcher.AddRecursive(s.root); err != nil {
		return fmt.Errorf("watching %s: %w", s.root, err)
	}
	s.watcher.AddHandler(s.onChange)
	go s.watcher.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	s.logger.Info(ctx, "Development server listening",
		"addr", s.httpSrv.Addr,
		"root", s.cfg.Root,
	)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.hub.closeAll()
		_ = s.watcher.Close()
		return s.httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// onChange pushes a debounced change batch to connected browsers.
func (s *Server) onChange(events []watcher.ChangeEvent) {
	payload := make([]map[string]string, 0, len(events))
	for _, ev := range events {
		rel, err := filepath.Rel(s.root, ev.Path)
		if err != nil {
			rel = ev.Path
		}
		payload = append(payload, map[string]string{
			"type": ev.Type.String(),
			"path": filepath.ToSlash(rel),
		})
	}
	msg, err := json.Marshal(map[string]interface{}{
		"type":    "update",
		"changes": payload,
	})
	if err != nil {
		return
	}
	s.hub.broadcast(msg)
}

// handleRuntime serves the refresh runtime module for its virtual id.
func (s *Server) handleRuntime(w http.ResponseWriter, r *http.Request) {
	code, ok := s.adapter.Load(transform.RuntimeSpecifier)
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	fmt.Fprint(w, code)
}

// handleStats reports cache activity as JSON.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.adapter.Store().GetStats())
}

// handleFile serves project files, routing component sources through the
// transform pipeline and injecting the bootstrap into HTML documents.
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	rel := strings.TrimPrefix(r.URL.Path, "/")
	if rel == "" {
		rel = "index.html"
	}
	path := filepath.Join(s.root, filepath.FromSlash(rel))

	// Keep requests inside the project root. The trailing separator stops
	// a sibling directory sharing the root as a name prefix from matching.
	if !strings.HasPrefix(path, s.root+string(os.PathSeparator)) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	switch filepath.Ext(path) {
	case ".html":
		s.serveHTML(w, r, string(data))
	case ".tsx", ".ts", ".jsx":
		s.serveModule(w, r, path, string(data))
	default:
		http.ServeFile(w, r, path)
	}
}

func (s *Server) serveHTML(w http.ResponseWriter, r *http.Request, doc string) {
	out, err := s.adapter.TransformHTML(doc)
	if err != nil {
		s.logger.Error(r.Context(), err, "HTML transform failed", "path", r.URL.Path)
		out = doc
	}
	out = strings.Replace(out, "</body>", reloadClient+"</body>", 1)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, out)
}

func (s *Server) serveModule(w http.ResponseWriter, r *http.Request, path, source string) {
	result, err := s.adapter.Transform(r.Context(), path, source, false)
	if err != nil {
		var te *refracterrors.TransformError
		if errors.As(err, &te) {
			s.logger.Warn(r.Context(), te, "Compile error", "path", r.URL.Path)
			http.Error(w, te.Error(), http.StatusInternalServerError)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")

	if result == nil {
		// Ineligible file passes through untouched.
		fmt.Fprint(w, source)
		return
	}

	fmt.Fprint(w, result.Code)
	if result.Map != nil {
		if encoded, err := json.Marshal(result.Map); err == nil {
			fmt.Fprintf(w, "\n//# sourceMappingURL=data:application/json;base64,%s\n",
				base64.StdEncoding.EncodeToString(encoded))
		}
	}
}

// reloadClient is the fallback websocket client injected into served HTML.
// Hosts with a real hot-update channel use the refresh hooks instead; this
// keeps a plain browser session current with a full reload.
const reloadClient = `<script>
(() => {
  const ws = new WebSocket("ws://" + location.host + "/refract/ws");
  ws.onmessage = (msg) => {
    const data = JSON.parse(msg.data);
    if (data.type === "update") window.location.reload();
  };
})();
</script>`
