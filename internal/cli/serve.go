package cli

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/matzehuels/pps/pkg/core"
	"github.com/matzehuels/pps/pkg/errors"
	"github.com/matzehuels/pps/pkg/httputil"
	"github.com/matzehuels/pps/pkg/inventory"
	"github.com/matzehuels/pps/pkg/pipeline"
)

const (
	defaultAddr = ":8080"

	// maxServePages caps ?pages= so one request cannot fan out unboundedly.
	maxServePages = 10

	shutdownTimeout = 5 * time.Second
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr           string
		installedFrom  string
		requestTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve package search over HTTP",
		Long: `Serve package search as a JSON API.

Endpoints:
  GET /search?q=NAME&pages=N&sort=KEY&downloads=true
  GET /healthz`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}

			var lister inventory.Lister = inventory.None{}
			if installedFrom != "" {
				lister = inventory.FileLister{Path: installedFrom, Skip: -1}
			}

			ctx := cmd.Context()
			installHooks(c.Logger)
			svc, err := newServices(ctx, cfg, lister, c.Logger)
			if err != nil {
				return err
			}
			defer svc.Close()

			srv := &server{
				runner:   svc.runner,
				breakers: svc.breakers,
				logger:   c.Logger,
				timeout:  requestTimeout,
				pages:    cfg.Pages,
			}
			return listenAndServe(ctx, addr, srv.routes(), c.Logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", defaultAddr, "listen address")
	cmd.Flags().StringVar(&installedFrom, "installed-from", "", "mark packages listed in this pip list output file as installed")
	cmd.Flags().DurationVar(&requestTimeout, "request-timeout", 2*time.Minute, "deadline for a single search request")

	return cmd
}

// listenAndServe runs h on addr until ctx is cancelled, then shuts down
// gracefully.
func listenAndServe(ctx context.Context, addr string, h http.Handler, logger *log.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	hs := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() { errc <- hs.Serve(ln) }()
	printInfo("Listening on %s", StyleHighlight.Render("http://"+ln.Addr().String()))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// server exposes the pipeline over HTTP.
type server struct {
	runner   *pipeline.Runner
	breakers *httputil.Breakers
	logger   *log.Logger
	timeout  time.Duration
	pages    int // default for requests without ?pages=
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/search", s.handleSearch)
	r.Get("/healthz", s.handleHealth)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, errors.New(errors.ErrCodeInvalidInput, "no route for %s", r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, errors.New(errors.ErrCodeInvalidInput, "method %s not allowed", r.Method))
	})
	return r
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	opts, err := s.searchOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	opts.Timeout = s.timeout

	ctx, logger := withRun(r.Context(), s.logger)
	prog := newProgress(logger)

	result, err := s.runner.Execute(ctx, opts)
	if err != nil {
		logger.Warn("search failed", "query", opts.Query, "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	prog.done("served " + strconv.Itoa(len(result.Packages)) + " packages for " + strconv.Quote(opts.Query))

	writeJSON(w, http.StatusOK, result)
}

// searchOptions parses query parameters into pipeline options.
func (s *server) searchOptions(r *http.Request) (pipeline.Options, error) {
	q := r.URL.Query()
	opts := pipeline.Options{Query: q.Get("q"), Pages: s.pages}

	if v := q.Get("pages"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, errors.New(errors.ErrCodeInvalidInput, "pages must be a number, got %q", v)
		}
		if n < 1 || n > maxServePages {
			return opts, errors.New(errors.ErrCodeInvalidInput, "pages must be between 1 and %d, got %d", maxServePages, n)
		}
		opts.Pages = n
	}

	key, err := core.ParseSortKey(q.Get("sort"))
	if err != nil {
		return opts, err
	}
	opts.SortKey = key

	if v := q.Get("downloads"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, errors.New(errors.ErrCodeInvalidInput, "downloads must be a boolean, got %q", v)
		}
		opts.Downloads = b
	}

	if err := opts.ValidateAndSetDefaults(); err != nil {
		return opts, err
	}
	return opts, nil
}

type healthResponse struct {
	Status   string            `json:"status"`
	Breakers map[string]string `json:"breakers"`
}

// handleHealth reports "ok", or "degraded" while any upstream breaker is
// open.
func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	state := s.breakers.State()
	resp := healthResponse{Status: "ok", Breakers: state}
	for _, st := range state {
		if st != "closed" {
			resp.Status = "degraded"
			break
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// statusFor maps a pipeline error to an HTTP status.
func statusFor(err error) int {
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case stderrors.Is(err, httputil.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	}
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidSortKey:
		return http.StatusBadRequest
	case errors.ErrCodeTransport, errors.ErrCodeExtraction, errors.ErrCodeEnrichment:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

type errorResponse struct {
	Error string      `json:"error"`
	Code  errors.Code `json:"code,omitempty"`
	Hint  string      `json:"hint,omitempty"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{
		Error: errors.UserMessage(err),
		Code:  errors.GetCode(err),
		Hint:  errors.Hint(err),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
