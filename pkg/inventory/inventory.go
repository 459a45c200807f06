// Package inventory reads the list of locally installed Python packages.
//
// The input format is what `pip list` prints: a fixed number of header lines
// followed by one package per line, whose first two whitespace-separated
// tokens are the name and version.
//
//	Package    Version
//	---------- -------
//	requests   2.31.0
//	urllib3    2.2.1
//
// A line with fewer than two tokens is an error carrying its line number;
// malformed lines are never skipped.
package inventory

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/matzehuels/pps/pkg/core"
	"github.com/matzehuels/pps/pkg/errors"
)

// DefaultHeaderLines is the number of header lines `pip list` prints.
const DefaultHeaderLines = 2

// Parse reads (name, version) pairs from r after skipping skip header lines.
// Blank lines are ignored.
func Parse(r io.Reader, skip int) ([]core.LocalPackage, error) {
	var pkgs []core.LocalPackage
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		if line <= skip {
			continue
		}
		text := scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) < 2 {
			return nil, errors.New(errors.ErrCodeParse, "line %d: want name and version, got %q", line, text)
		}
		pkgs = append(pkgs, core.LocalPackage{Name: fields[0], Version: fields[1]})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "read inventory")
	}
	return pkgs, nil
}

// Lister produces the local inventory.
type Lister interface {
	List(ctx context.Context) ([]core.LocalPackage, error)
}

// PipLister runs `<python> -m pip list` and parses its output.
type PipLister struct {
	// Python is the interpreter to run. Empty means "python3".
	Python string
}

// List implements [Lister].
func (l PipLister) List(ctx context.Context) ([]core.LocalPackage, error) {
	python := l.Python
	if python == "" {
		python = "python3"
	}
	cmd := exec.CommandContext(ctx, python, "-m", "pip", "list", "--disable-pip-version-check")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, errors.Wrap(errors.ErrCodeParse, err, "%s -m pip list", python)
		}
		return nil, errors.Wrap(errors.ErrCodeParse, err, "%s -m pip list: %s", python, msg)
	}
	return Parse(bytes.NewReader(out), DefaultHeaderLines)
}

// FileLister reads a saved `pip list` listing from disk.
type FileLister struct {
	Path string
	// Skip is the number of header lines. A negative value means
	// DefaultHeaderLines.
	Skip int
}

// List implements [Lister].
func (l FileLister) List(ctx context.Context) ([]core.LocalPackage, error) {
	f, err := os.Open(l.Path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "open inventory")
	}
	defer f.Close()

	skip := l.Skip
	if skip < 0 {
		skip = DefaultHeaderLines
	}
	return Parse(f, skip)
}

// None is a Lister with nothing installed.
type None struct{}

// List implements [Lister].
func (None) List(context.Context) ([]core.LocalPackage, error) { return nil, nil }
