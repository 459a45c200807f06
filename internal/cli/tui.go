package cli

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/pps/pkg/core"
)

// List styles
var (
	listDimStyle = lipgloss.NewStyle().Foreground(colorDim)
	listKeyStyle = lipgloss.NewStyle().Foreground(colorGray).Width(12)
)

// descriptionWidth truncates descriptions in the picker.
const descriptionWidth = 48

// =============================================================================
// PackageListModel - Interactive package selection
// =============================================================================

// PackageListModel is the bubbletea model for picking one search result.
type PackageListModel struct {
	Query     string
	Packages  []core.Package
	Downloads bool
	Cursor    int
	Selected  *core.Package
	Height    int
	Offset    int
}

// NewPackageListModel creates a new package list model.
func NewPackageListModel(query string, pkgs []core.Package, downloads bool) PackageListModel {
	return PackageListModel{
		Query:     query,
		Packages:  pkgs,
		Downloads: downloads,
		Height:    15,
	}
}

func (m PackageListModel) Init() tea.Cmd {
	return nil
}

func (m PackageListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Packages)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "home", "g":
			m.Cursor, m.Offset = 0, 0
		case "end", "G":
			if n := len(m.Packages); n > 0 {
				m.Cursor = n - 1
				m.Offset = max(0, n-m.Height)
			}
		case "enter":
			if len(m.Packages) == 0 {
				return m, tea.Quit
			}
			p := m.Packages[m.Cursor]
			m.Selected = &p
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-6, 5)
		if m.Cursor >= m.Offset+m.Height {
			m.Offset = m.Cursor - m.Height + 1
		}
	}
	return m, nil
}

func (m PackageListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render(fmt.Sprintf("Results for %q", m.Query)))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ select  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Packages))

	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		p := m.Packages[i]

		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		installed := ""
		if p.Installed != nil {
			installed = "✓ " + *p.Installed
		}
		row := []string{cursor, p.Name, p.Version, p.FormatRelease(), truncate(p.Description, descriptionWidth), installed}
		if m.Downloads {
			downloads := "—"
			if p.Downloads != nil {
				downloads = strconv.Itoa(p.Downloads.LastMonth)
			}
			row = append(row, downloads)
		}
		rows = append(rows, row)
	}

	headers := []string{"", "Package", "Version", "Released", "Description", "Installed"}
	if m.Downloads {
		headers = append(headers, "Downloads")
	}
	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			idx := m.Offset + row
			if idx >= len(m.Packages) {
				return lipgloss.NewStyle()
			}
			base := lipgloss.NewStyle()
			if m.Packages[idx].IsInstalled() {
				base = base.Foreground(colorGreen)
			}
			if idx == m.Cursor {
				return base.Bold(true)
			}
			if col == 3 || col == 4 {
				return base.Foreground(colorDim)
			}
			return base
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	if len(m.Packages) == 0 {
		b.WriteString(listDimStyle.Render("  no packages"))
	} else {
		b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Packages))))
	}

	return b.String()
}

// =============================================================================
// Helpers
// =============================================================================

// formatDetails renders a picked package as labelled lines followed by the
// pip command that installs it.
func formatDetails(p core.Package) string {
	var b strings.Builder
	line := func(k, v string) {
		b.WriteString(listKeyStyle.Render(k) + " " + StyleValue.Render(v) + "\n")
	}

	b.WriteString(StyleTitle.Render(p.Name) + "\n")
	line("Version", p.Version)
	line("Released", p.FormatRelease())
	if p.Description != "" {
		line("Summary", p.Description)
	}
	if p.Installed != nil {
		line("Installed", *p.Installed)
	}
	if p.Downloads != nil {
		line("Downloads", fmt.Sprintf("%d / day, %d / week, %d / month",
			p.Downloads.LastDay, p.Downloads.LastWeek, p.Downloads.LastMonth))
	}
	line("Project", "https://pypi.org/project/"+p.Name+"/")
	b.WriteString("\n" + StyleDim.Render("install:") + " " + StyleHighlight.Render(fmt.Sprintf("pip install %s==%s", p.Name, p.Version)))
	return b.String()
}

// truncate shortens s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
