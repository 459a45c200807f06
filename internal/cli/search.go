package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/matzehuels/pps/pkg/config"
	"github.com/matzehuels/pps/pkg/core"
	"github.com/matzehuels/pps/pkg/errors"
	"github.com/matzehuels/pps/pkg/integrations/pypi"
	"github.com/matzehuels/pps/pkg/inventory"
	"github.com/matzehuels/pps/pkg/pipeline"
)

// searchOptions holds the search command's flags.
type searchOptions struct {
	pages         int
	sortBy        string
	downloads     bool
	header        bool
	installedFrom string
	noInstalled   bool
	python        string
	interactive   bool
	output        string
	lenient       bool
	timeout       time.Duration
}

// searchCommand creates the search command.
func (c *CLI) searchCommand() *cobra.Command {
	opts := searchOptions{output: outputTable}

	cmd := &cobra.Command{
		Use:   "search NAME",
		Short: "Search PyPI for packages",
		Long: `Search PyPI for packages matching NAME.

Results are fetched from the PyPI search page, marked when installed locally
and printed as a table. Download statistics from pypistats.org are added with
--downloads or when sorting by downloads.`,
		Example: `  # First result page, in PyPI's order
  pps search gitlab

  # Three pages, most downloaded first, with a header row
  pps search gitlab --pages 3 --sort-by downloads --header

  # Compare against a saved pip list instead of the current interpreter
  pip list > installed.txt
  pps search requests --installed-from installed.txt

  # Pick a result interactively
  pps search flask -i`,
		Args: cobra.ExactArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if err := opts.apply(cfg, cmd.Flags()); err != nil {
				return err
			}
			return c.runSearch(cmd.Context(), args[0], cfg, opts)
		},
	}

	f := cmd.Flags()
	f.IntVarP(&opts.pages, "pages", "p", 0, "number of result pages to fetch (default from config, 1)")
	f.StringVarP(&opts.sortBy, "sort-by", "s", "", "sort results by pypi, date, name or downloads")
	f.BoolVarP(&opts.downloads, "downloads", "d", false, "fetch download statistics from pypistats.org")
	f.BoolVar(&opts.header, "header", false, "print a header row")
	f.StringVar(&opts.installedFrom, "installed-from", "", "read installed packages from a pip list output file")
	f.BoolVar(&opts.noInstalled, "no-installed", false, "do not look up installed packages")
	f.StringVar(&opts.python, "python", "", "python interpreter used to list installed packages")
	f.BoolVarP(&opts.interactive, "interactive", "i", false, "pick a result interactively")
	f.StringVarP(&opts.output, "output", "o", outputTable, "output format: table or json")
	f.BoolVar(&opts.lenient, "lenient", false, "show packages without download statistics instead of failing")
	f.DurationVar(&opts.timeout, "timeout", 0, "overall deadline for the search (0 for none)")

	_ = cmd.RegisterFlagCompletionFunc("sort-by", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		keys := make([]string, len(core.SortKeys))
		for i, k := range core.SortKeys {
			keys[i] = k.String()
		}
		return keys, cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("output", cobra.FixedCompletions(outputFormats, cobra.ShellCompDirectiveNoFileComp))

	cmd.MarkFlagsMutuallyExclusive("installed-from", "no-installed")
	cmd.MarkFlagsMutuallyExclusive("installed-from", "python")
	cmd.MarkFlagsMutuallyExclusive("interactive", "output")

	return cmd
}

// apply overlays flags that were set explicitly onto cfg and fills unset
// flags from cfg.
func (o *searchOptions) apply(cfg *config.Config, flags *pflag.FlagSet) error {
	if flags.Changed("pages") {
		cfg.Pages = o.pages
	}
	if flags.Changed("sort-by") {
		cfg.SortBy = o.sortBy
	}
	if flags.Changed("python") {
		cfg.Python = o.python
	}
	if o.lenient {
		cfg.OnEnrichError = pypi.Degrade.String()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	o.pages = cfg.Pages
	o.sortBy = cfg.SortBy
	o.python = cfg.Python

	switch o.output {
	case outputTable, outputJSON:
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown output format %q (want table or json)", o.output)
	}
	return nil
}

// lister returns the inventory source selected by the flags.
func (o searchOptions) lister() inventory.Lister {
	switch {
	case o.noInstalled:
		return inventory.None{}
	case o.installedFrom != "":
		return inventory.FileLister{Path: o.installedFrom, Skip: -1}
	}
	return inventory.PipLister{Python: o.python}
}

func (c *CLI) runSearch(ctx context.Context, query string, cfg *config.Config, opts searchOptions) error {
	ctx, logger := withRun(ctx, c.Logger)
	installHooks(logger)

	// A spinner replaces info logs on a terminal; debug logging keeps them.
	var spinner *Spinner
	if !opts.interactive && logger.GetLevel() > log.DebugLevel && isTerminal(statusOut) {
		logger.SetLevel(log.WarnLevel)
		spinner = newSpinnerWithContext(ctx, fmt.Sprintf("Searching PyPI for %q...", query))
		spinner.Start()
		defer spinner.Stop()
	}

	svc, err := newServices(ctx, cfg, opts.lister(), logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	sortKey, _ := core.ParseSortKey(opts.sortBy)
	prog := newProgress(logger)
	result, err := svc.runner.Execute(ctx, pipeline.Options{
		Query:     query,
		Pages:     opts.pages,
		SortKey:   sortKey,
		Downloads: opts.downloads,
		Timeout:   opts.timeout,
	})
	if spinner != nil {
		spinner.Stop()
	}
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Found %d packages", len(result.Packages)))

	if missing := result.Stats.Found - result.Stats.Enriched; result.Enriched && missing > 0 {
		printWarning("%d of %d packages have no download statistics", missing, result.Stats.Found)
	}

	switch {
	case opts.interactive:
		return c.pick(ctx, query, result)
	case opts.output == outputJSON:
		return renderJSON(c.Out, result)
	}

	if len(result.Packages) == 0 {
		printInfo("No packages found for %q", query)
		return nil
	}
	if err := renderTable(c.Out, result.Packages, tableOptions{Header: opts.header, Downloads: result.Enriched}); err != nil {
		return err
	}
	if isTerminal(statusOut) {
		printStats(result.Stats, result.Enriched)
	}
	return nil
}

// pick runs the interactive list and prints the chosen package.
func (c *CLI) pick(ctx context.Context, query string, result *pipeline.Result) error {
	if len(result.Packages) == 0 {
		printInfo("No packages found for %q", query)
		return nil
	}
	if !isTerminal(os.Stdin) {
		return errors.New(errors.ErrCodeInvalidInput, "--interactive requires a terminal")
	}

	model := NewPackageListModel(query, result.Packages, result.Enriched)
	final, err := tea.NewProgram(model, tea.WithContext(ctx), tea.WithOutput(statusOut)).Run()
	if err != nil {
		return err
	}
	if m, ok := final.(PackageListModel); ok && m.Selected != nil {
		fmt.Fprintln(c.Out, formatDetails(*m.Selected))
	}
	return nil
}
