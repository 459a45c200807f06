package inventory

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/matzehuels/pps/pkg/core"
	"github.com/matzehuels/pps/pkg/errors"
)

const pipList = `Package            Version
------------------ ---------
certifi            2024.2.2
python-gitlab      4.4.0
requests           2.31.0
mypkg              0.1.0     /home/me/src/mypkg
`

func TestParse(t *testing.T) {
	pkgs, err := Parse(strings.NewReader(pipList), DefaultHeaderLines)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	want := []core.LocalPackage{
		{Name: "certifi", Version: "2024.2.2"},
		{Name: "python-gitlab", Version: "4.4.0"},
		{Name: "requests", Version: "2.31.0"},
		{Name: "mypkg", Version: "0.1.0"},
	}
	if len(pkgs) != len(want) {
		t.Fatalf("len(pkgs) = %d, want %d", len(pkgs), len(want))
	}
	for i := range want {
		if pkgs[i] != want[i] {
			t.Errorf("pkgs[%d] = %+v, want %+v", i, pkgs[i], want[i])
		}
	}
}

func TestParse_MalformedLine(t *testing.T) {
	input := "Package Version\n------- -------\nfoo 1.0\nbroken\nbar 2.0\n"
	_, err := Parse(strings.NewReader(input), DefaultHeaderLines)
	if !errors.Is(err, errors.ErrCodeParse) {
		t.Fatalf("Parse() error = %v, want %s", err, errors.ErrCodeParse)
	}
	if !strings.Contains(err.Error(), "line 4") {
		t.Errorf("Parse() error = %q, want line number 4", err)
	}
}

func TestParse_Skip(t *testing.T) {
	tests := []struct {
		name  string
		input string
		skip  int
		want  int
	}{
		{"no header", "a 1\nb 2\n", 0, 2},
		{"header only", "Package Version\n------- -------\n", 2, 0},
		{"empty", "", 2, 0},
		{"blank lines", "H\nH\n\na 1\n   \nb 2\n\n", 2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkgs, err := Parse(strings.NewReader(tt.input), tt.skip)
			if err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			if len(pkgs) != tt.want {
				t.Errorf("len(pkgs) = %d, want %d", len(pkgs), tt.want)
			}
		})
	}
}

func TestFileLister(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pip.txt")
	if err := os.WriteFile(path, []byte(pipList), 0o644); err != nil {
		t.Fatal(err)
	}

	pkgs, err := FileLister{Path: path, Skip: -1}.List(context.Background())
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(pkgs) != 4 {
		t.Errorf("len(pkgs) = %d, want 4", len(pkgs))
	}

	_, err = FileLister{Path: filepath.Join(t.TempDir(), "missing")}.List(context.Background())
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("List(missing) error = %v, want %s", err, errors.ErrCodeInvalidInput)
	}
}

func TestPipLister(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script as the interpreter")
	}

	script := filepath.Join(t.TempDir(), "python")
	body := "#!/bin/sh\ncat <<'EOF'\n" + pipList + "EOF\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}

	pkgs, err := PipLister{Python: script}.List(context.Background())
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(pkgs) != 4 || pkgs[1].Name != "python-gitlab" {
		t.Errorf("List() = %+v", pkgs)
	}
}

func TestPipLister_Failure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script as the interpreter")
	}

	script := filepath.Join(t.TempDir(), "python")
	body := "#!/bin/sh\necho 'No module named pip' >&2\nexit 1\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}

	_, err := PipLister{Python: script}.List(context.Background())
	if err == nil || !strings.Contains(err.Error(), "No module named pip") {
		t.Errorf("List() error = %v, want stderr in message", err)
	}
}

func TestNone(t *testing.T) {
	pkgs, err := None{}.List(context.Background())
	if err != nil || pkgs != nil {
		t.Errorf("None.List() = %v, %v", pkgs, err)
	}
}
