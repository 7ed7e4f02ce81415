package server

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/segmentio/encoding/json"

	"github.com/jpalmerr/sensorboard/internal/fetch"
	"github.com/jpalmerr/sensorboard/internal/merge"
	"github.com/jpalmerr/sensorboard/internal/source"
	"github.com/jpalmerr/sensorboard/internal/store"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single SSE write operation.
	// This prevents goroutine leaks when clients are slow or disconnected.
	// Must be <= shutdown timeout to ensure clean shutdown.
	sseWriteTimeout = 5 * time.Second

	// defaultTitle is used when no custom title is configured.
	defaultTitle = "SensorBoard"

	// titlePlaceholder is the marker in HTML that gets replaced with the actual title.
	titlePlaceholder = "{{.Title}}"
)

// Control actions accepted by POST /api/control/{action}.
const (
	ActionStart = "start"
	ActionStop  = "stop"
	ActionReset = "reset"
)

// Board is the read and control surface the server exposes.
type Board interface {
	// Rows returns the rolling log oldest to newest.
	Rows() []merge.Row

	// Latest returns the newest rolling log row, if any.
	Latest() (merge.Row, bool)

	// History fetches and merges every sensor's historical records.
	History(ctx context.Context) (merge.Table, error)

	// Control forwards a start, stop or reset trigger upstream.
	Control(ctx context.Context, action string) error
}

// Update is one SSE message: the snapshot plus the newest aligned row.
type Update struct {
	Status store.Status `json:"status"`
	Row    *merge.Row   `json:"row"`
}

// Server handles HTTP requests for the SensorBoard dashboard and API.
//
// Server provides these endpoints:
//   - GET /: Serves the embedded dashboard HTML
//   - GET /api/status: Returns the current snapshot as JSON
//   - GET /api/log: Returns the rolling log, oldest row first
//   - GET /api/history: Fetches and returns the merged historical table
//   - GET /api/sse: Server-Sent Events stream for real-time updates
//   - POST /api/control/{action}: Forwards start, stop or reset upstream
//   - GET /metrics: Prometheus metrics, when a handler is configured
//
// The server is designed for graceful shutdown via context cancellation.
type Server struct {
	store      store.Store
	board      Board
	port       int
	httpServer *http.Server
	assets     fs.FS
	title      string
	metrics    http.Handler
	logger     *slog.Logger
}

// NewServer creates a new HTTP [Server].
//
// Parameters:
//   - st: Store holding the live snapshot
//   - board: Rolling log, history and control access
//   - port: TCP port to listen on
//   - assets: Embedded filesystem containing dashboard assets (may be nil)
//   - title: Dashboard title (defaults to "SensorBoard" if empty)
//   - metrics: Handler for /metrics (may be nil)
//   - logger: Logger for server events
//
// The server is not started until [Server.Start] is called.
func NewServer(st store.Store, board Board, port int, assets fs.FS, title string, metrics http.Handler, logger *slog.Logger) *Server {
	return &Server{
		store:   st,
		board:   board,
		port:    port,
		assets:  assets,
		title:   title,
		metrics: metrics,
		logger:  logger,
	}
}

// Handler returns the router for all endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// API routes
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/log", s.handleLog)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/sse", s.handleSSE)
	mux.HandleFunc("POST /api/control/{action}", s.handleControl)

	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}

	// serve dashboard assets
	if s.assets != nil {
		mux.HandleFunc("/", s.handleDashboard)
	}

	return mux
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server will continue running until the context is
// cancelled, at which point it initiates a graceful shutdown with a 5-second
// timeout.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// BaseContext derives all request contexts from the server context.
		// When ctx is cancelled, all request contexts are also cancelled,
		// enabling graceful shutdown of long-running handlers like SSE.
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()

	// shutdown on context cancellation
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

// handleDashboard serves the main dashboard page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	if s.assets == nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	// read index.html from embedded assets
	content, err := fs.ReadFile(s.assets, "assets/index.html")
	if err != nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	// apply title substitution with HTML escaping to prevent XSS
	title := s.title
	if title == "" {
		title = defaultTitle
	}
	safeTitle := html.EscapeString(title)
	rendered := strings.ReplaceAll(string(content), titlePlaceholder, safeTitle)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err = w.Write([]byte(rendered)); err != nil {
		s.logger.Error("failed to write dashboard response", "error", err)
	}
}

// handleStatus returns the current snapshot as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, s.store.Current())
}

// handleLog returns the rolling log rows, oldest first.
func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, s.board.Rows())
}

// handleHistory fetches every sensor's history and returns the merged table.
// ?order=desc returns newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	table, err := s.board.History(r.Context())
	if err != nil {
		s.logger.Warn("history fetch failed", "error", err)
		s.writeError(w, http.StatusBadGateway, err)
		return
	}

	switch r.URL.Query().Get("order") {
	case "", "asc":
	case "desc":
		table = table.Reversed()
	default:
		http.Error(w, "order must be asc or desc", http.StatusBadRequest)
		return
	}

	s.writeJSON(w, http.StatusOK, table)
}

// handleControl forwards a control trigger upstream.
func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	action := r.PathValue("action")
	switch action {
	case ActionStart, ActionStop, ActionReset:
	default:
		http.Error(w, fmt.Sprintf("unknown control action %q", action), http.StatusNotFound)
		return
	}

	if err := s.board.Control(r.Context(), action); err != nil {
		s.logger.Warn("control trigger failed", "action", action, "error", err)
		s.writeError(w, http.StatusBadGateway, err)
		return
	}

	s.logger.Info("control trigger sent", "action", action)
	s.writeJSON(w, http.StatusOK, map[string]string{"action": action, "result": "ok"})
}

// failure is one sensor's entry in an error response.
type failure struct {
	Sensor string `json:"sensor"`
	Kind   string `json:"kind"`
	Error  string `json:"error"`
}

type errorResponse struct {
	Error    string    `json:"error"`
	Failures []failure `json:"failures,omitempty"`
}

// writeError writes err as JSON, listing per-sensor failures when the error
// is a failed poll cycle.
func (s *Server) writeError(w http.ResponseWriter, code int, err error) {
	resp := errorResponse{Error: err.Error()}

	var pcf *fetch.PollCycleFailedError
	if errors.As(err, &pcf) {
		for _, f := range pcf.Failures {
			resp.Failures = append(resp.Failures, failure{
				Sensor: string(f.SensorID),
				Kind:   source.Kind(f.Err),
				Error:  f.Err.Error(),
			})
		}
	}

	s.writeJSON(w, code, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// currentUpdate builds the SSE payload from the given snapshot.
func (s *Server) currentUpdate(status store.Status) Update {
	u := Update{Status: status}
	if row, ok := s.board.Latest(); ok {
		u.Row = &row
	}
	return u
}

// handleSSE streams snapshot updates via Server-Sent Events.
//
// The handler uses write deadlines to prevent goroutine leaks when clients are
// slow or disconnected. Without deadlines, a blocked Fprintf call would prevent
// the handler from detecting context cancellation or channel closure.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	// check if flushing is supported
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)

	// track if write deadlines are supported (may not be for some ResponseWriter impls)
	deadlinesSupported := true

	// writeAndFlush writes SSE data with a deadline to prevent blocking forever.
	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				// deadline not supported by underlying connection, continue without
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}

		// ResponseController.Flush respects the write deadline
		return rc.Flush()
	}

	// set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// subscribe to store updates
	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	// send the initial snapshot (also protected by write deadline)
	if data, err := json.Marshal(s.currentUpdate(s.store.Current())); err == nil {
		if err := writeAndFlush(data); err != nil {
			return
		}
	}

	// stream updates
	for {
		select {
		case status, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(s.currentUpdate(status))
			if err != nil {
				continue
			}
			if err := writeAndFlush(data); err != nil {
				return
			}

		case <-r.Context().Done():
			// request context is derived from server context via BaseContext,
			// so this fires on both client disconnect AND server shutdown
			return
		}
	}
}
