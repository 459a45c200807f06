package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/pps/pkg/core"
	"github.com/matzehuels/pps/pkg/pipeline"
)

// Output formats accepted by --output.
const (
	outputTable = "table"
	outputJSON  = "json"
)

var outputFormats = []string{outputTable, outputJSON}

// tableOptions controls the result table.
type tableOptions struct {
	Header    bool // show the header row
	Downloads bool // add the Downloads column
}

var (
	styleHeader    = lipgloss.NewStyle().Foreground(colorGray).Bold(true).PaddingRight(2)
	styleCell      = lipgloss.NewStyle().PaddingRight(2)
	styleInstalled = lipgloss.NewStyle().Foreground(colorGreen).PaddingRight(2)
	styleOutdated  = lipgloss.NewStyle().Foreground(colorYellow).PaddingRight(2)
)

// tableColumns returns the column titles for opts.
func tableColumns(opts tableOptions) []string {
	cols := []string{"Name", "Version", "Released", "Description", "Installed"}
	if opts.Downloads {
		cols = append(cols, "Downloads")
	}
	return cols
}

// tableRow renders one package as table cells.
func tableRow(p core.Package, opts tableOptions) []string {
	installed := ""
	if p.Installed != nil {
		installed = *p.Installed
	}
	row := []string{p.Name, p.Version, p.FormatRelease(), p.Description, installed}
	if opts.Downloads {
		downloads := "-"
		if p.Downloads != nil {
			downloads = strconv.Itoa(p.Downloads.LastMonth)
		}
		row = append(row, downloads)
	}
	return row
}

// renderTable writes pkgs as a borderless, left-aligned table. Installed
// versions are green when they match the latest release and yellow
// otherwise.
func renderTable(w io.Writer, pkgs []core.Package, opts tableOptions) error {
	rows := make([][]string, len(pkgs))
	for i, p := range pkgs {
		rows[i] = tableRow(p, opts)
	}

	const installedCol = 4
	t := table.New().
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderColumn(false).
		BorderRow(false).
		BorderHeader(false).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 { // header
				return styleHeader
			}
			if col == installedCol && row >= 0 && row < len(pkgs) {
				p := pkgs[row]
				if p.Installed != nil {
					if *p.Installed == p.Version {
						return styleInstalled
					}
					return styleOutdated
				}
			}
			return styleCell
		})
	// Without headers the table drops its last row, so a blank header
	// line is rendered and cut off instead.
	headers := tableColumns(opts)
	if !opts.Header {
		headers = make([]string, len(headers))
	}
	t = t.Headers(headers...)

	if len(pkgs) == 0 {
		return nil
	}
	out := t.Render()
	if !opts.Header {
		if _, body, ok := strings.Cut(out, "\n"); ok {
			out = body
		}
	}
	_, err := fmt.Fprintln(w, out)
	return err
}

// renderJSON writes the full result, including statistics, as indented JSON.
func renderJSON(w io.Writer, result *pipeline.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
