package files

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestIsAbsolute(t *testing.T) {
	tests := []struct {
		name string
		path string
		want bool
	}{
		{"posix absolute", "/etc/hosts", true},
		{"posix relative", "./a.py", false},
		{"bare name", "main.go", false},
		{"parent relative", "../x", false},
		{"windows drive backslash", `C:\repo\main.go`, true},
		{"windows drive forward slash", "D:/repo/main.go", true},
		{"not a drive", "1:/nope", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAbsolute(tt.path); got != tt.want {
				t.Fatalf("IsAbsolute(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestReadRejectsRelativePath(t *testing.T) {
	_, _, err := Read("./a.py", false)
	if !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath, got %v", err)
	}
	if !strings.Contains(err.Error(), "./a.py") {
		t.Fatalf("error should name the offending path, got %q", err)
	}
}

func TestReadUnreadableDegradesToPlaceholder(t *testing.T) {
	text, tok, err := Read("/definitely/not/a/real/file.go", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(text, "<read error: ") {
		t.Fatalf("expected read-error placeholder, got %q", text)
	}
	if tok == 0 {
		t.Fatal("placeholder should still carry a token estimate")
	}
}

func TestReadLineNumbers(t *testing.T) {
	path := writeTemp(t, "sample.go", "package main\n\nfunc main() {}\n")

	text, _, err := Read(path, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(text, "\n")
	if got, want := lines[0], "   1│ package main"; got != want {
		t.Fatalf("line 1 = %q, want %q", got, want)
	}
	if got, want := lines[1], "   2│ "; got != want {
		t.Fatalf("line 2 = %q, want %q", got, want)
	}
	if got, want := lines[2], "   3│ func main() {}"; got != want {
		t.Fatalf("line 3 = %q, want %q", got, want)
	}
}

// Round-trip property: stripping the markers from a numbered read yields the
// plain read exactly, newlines included.
func TestStripLineMarkersRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"plain source", "package main\n\nfunc main() {}\n"},
		{"no trailing newline", "one\ntwo"},
		{"empty file", ""},
		{"blank lines", "\n\n\n"},
		{"long file renumbers past width", strings.Repeat("line\n", 12000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTemp(t, "f.txt", tt.content)

			numbered, _, err := Read(path, true)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			plain, _, err := Read(path, false)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got := StripLineMarkers(numbered); got != plain {
				t.Fatalf("round trip mismatch:\n got: %q\nwant: %q", got, plain)
			}
		})
	}
}

func TestReadMany(t *testing.T) {
	a := writeTemp(t, "a.txt", strings.Repeat("a", 400))
	b := writeTemp(t, "b.txt", strings.Repeat("b", 400))

	t.Run("everything fits", func(t *testing.T) {
		text, included, err := ReadMany([]string{a, b}, 10_000, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(included) != 2 {
			t.Fatalf("included = %v, want both files", included)
		}
		for _, p := range []string{a, b} {
			if !strings.Contains(text, "=== FILE: "+p+" ===") {
				t.Errorf("missing header for %s", p)
			}
		}
		if strings.Count(text, "=== END FILE ===") != 2 {
			t.Errorf("expected two END FILE footers")
		}
	})

	t.Run("stops before exceeding the budget", func(t *testing.T) {
		// Each wrapped block is a bit over 100 tokens; allow only one.
		text, included, err := ReadMany([]string{a, b}, 150, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(included) != 1 || included[0] != a {
			t.Fatalf("included = %v, want only %s", included, a)
		}
		if strings.Contains(text, b) {
			t.Error("second file should not be embedded")
		}
	})

	t.Run("relative path is a hard error", func(t *testing.T) {
		_, _, err := ReadMany([]string{a, "./rel.txt"}, 10_000, false)
		if !errors.Is(err, ErrInvalidPath) {
			t.Fatalf("expected ErrInvalidPath, got %v", err)
		}
	})

	t.Run("zero budget embeds nothing", func(t *testing.T) {
		text, included, err := ReadMany([]string{a}, 0, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if text != "" || included != nil {
			t.Fatalf("expected empty result, got text=%q included=%v", text, included)
		}
	})
}
