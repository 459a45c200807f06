package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/matzehuels/pps/pkg/buildinfo"
	"github.com/matzehuels/pps/pkg/cache"
	"github.com/matzehuels/pps/pkg/config"
	"github.com/matzehuels/pps/pkg/httputil"
	"github.com/matzehuels/pps/pkg/integrations"
	"github.com/matzehuels/pps/pkg/integrations/pypi"
	"github.com/matzehuels/pps/pkg/inventory"
	"github.com/matzehuels/pps/pkg/observability"
	"github.com/matzehuels/pps/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for display.
const appName = "pps"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// Out receives command output (tables, JSON). Logs go to the logger.
	Out io.Writer

	configPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Out:    os.Stdout,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Search PyPI from the command line",
		Long:         `pps searches PyPI for packages, shows which ones are installed locally and can rank them by release date, name or recent downloads.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/pps/config.toml)")

	root.AddCommand(c.searchCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.completionCommand())
	root.AddCommand(versionCommand())

	return root
}

// versionCommand prints build information.
func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), buildinfo.String())
		},
	}
}

// loadConfig reads settings from the config file and environment.
func (c *CLI) loadConfig() (*config.Config, error) {
	return config.Load(c.configPath)
}

// =============================================================================
// Runner Factory
// =============================================================================

// services bundles everything a pipeline run needs, built from a Config.
type services struct {
	client   *integrations.Client
	breakers *httputil.Breakers
	cache    cache.Cache
	runner   *pipeline.Runner
}

func (s *services) Close() error { return s.cache.Close() }

// newServices wires the HTTP client, searcher, statistics client and
// runner. The DNS cache refreshes until ctx is done.
func newServices(ctx context.Context, cfg *config.Config, lister inventory.Lister, logger *log.Logger) (*services, error) {
	mem, err := cache.NewMemoryCache(cfg.CacheEntries)
	if err != nil {
		return nil, err
	}

	resolver := httputil.NewResolver(ctx, cfg.DNSRefresh.Std())
	breakers := httputil.NewBreakers(cfg.BreakerThreshold, cfg.BreakerCooldown.Std())

	client := integrations.NewClient(
		integrations.WithHTTPClient(httputil.NewHTTPClient(cfg.Timeout.Std(), resolver)),
		integrations.WithHeaders(map[string]string{"User-Agent": cfg.UserAgent}),
		integrations.WithRateLimit(cfg.RateLimit, cfg.RateBurst),
		integrations.WithBreakers(breakers),
		integrations.WithCache(mem, "pypistats:", cfg.CacheTTL.Std()),
		integrations.WithRetryPolicy(cfg.RetryPolicy()),
	)

	searcher := pypi.NewSearcher(client, cfg.SearchURL, nil)
	stats := pypi.NewStats(client, cfg.StatsURL, cfg.Concurrency, cfg.FailurePolicy())

	return &services{
		client:   client,
		breakers: breakers,
		cache:    mem,
		runner:   pipeline.NewRunner(searcher, stats, lister, logger),
	}, nil
}

// withRun tags ctx and the logger with a fresh run id, which is also sent
// upstream as X-Request-ID.
func withRun(ctx context.Context, logger *log.Logger) (context.Context, *log.Logger) {
	id := uuid.NewString()
	logger = logger.With("run", id[:8])
	ctx = integrations.WithRequestID(ctx, id)
	return withLogger(ctx, logger), logger
}

// installHooks routes pipeline, cache and HTTP events to the logger.
func installHooks(logger *log.Logger) {
	h := &logHooks{logger: logger}
	observability.SetPipelineHooks(h)
	observability.SetHTTPHooks(h)
	observability.SetCacheHooks(h)
}
