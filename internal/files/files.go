// Package files reads source files for embedding into model prompts.
//
// All paths crossing this package must be absolute; relative paths are a
// contract violation, not a soft failure. Unreadable files degrade to an
// inline placeholder so that batch reads can continue.
package files

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/MrWong99/conclave/internal/tokens"
)

// ErrInvalidPath is returned when a caller passes a non-absolute path.
var ErrInvalidPath = errors.New("invalid path: must be absolute")

// lineMarkerRe matches the "%4d│ " prefix produced by Read when line
// numbering is enabled. Wider numbers (five or more digits) match too.
var lineMarkerRe = regexp.MustCompile(`(?m)^ *\d+│ `)

// IsAbsolute reports whether path is absolute, accepting both the host
// platform's convention and Windows drive-rooted paths so that requests
// authored on another OS still validate.
func IsAbsolute(path string) bool {
	if filepath.IsAbs(path) {
		return true
	}
	// Windows drive-rooted, e.g. C:\repo\main.go or C:/repo/main.go.
	if len(path) >= 3 && path[1] == ':' && (path[2] == '\\' || path[2] == '/') {
		c := path[0]
		return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
	}
	return false
}

// Read reads one file and returns its content plus an estimated token count.
//
// A non-absolute path returns [ErrInvalidPath]. An unreadable file is not an
// error: the content degrades to a "<read error: reason>" placeholder so a
// batch caller can continue with the remaining files.
//
// When lineNumbers is set, every line is prefixed with a 1-based "%4d│ "
// marker. The markers are reference anchors for the model only and must never
// appear in generated code; [StripLineMarkers] reverses them exactly.
func Read(path string, lineNumbers bool) (string, int, error) {
	if !IsAbsolute(path) {
		return "", 0, fmt.Errorf("files: %w: %q", ErrInvalidPath, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		placeholder := fmt.Sprintf("<read error: %v>", err)
		return placeholder, tokens.Estimate(placeholder), nil
	}

	content := string(data)
	if lineNumbers {
		content = addLineNumbers(content)
	}
	return content, tokens.Estimate(content), nil
}

// ReadMany reads paths in order, wrapping each file as
//
//	=== FILE: <path> ===
//	<content>
//	=== END FILE ===
//
// and concatenating the blocks. It stops before adding a file whose inclusion
// would exceed budget (in estimated tokens) and never truncates mid-file. The
// returned slice lists the paths that were actually embedded, in input order.
func ReadMany(paths []string, budget int, lineNumbers bool) (string, []string, error) {
	var b strings.Builder
	var included []string
	remaining := budget

	for _, p := range paths {
		content, _, err := Read(p, lineNumbers)
		if err != nil {
			return "", nil, err
		}
		block := fmt.Sprintf("=== FILE: %s ===\n%s\n=== END FILE ===\n", p, content)
		cost := tokens.Estimate(block)
		if cost > remaining {
			break
		}
		b.WriteString(block)
		remaining -= cost
		included = append(included, p)
	}

	return b.String(), included, nil
}

// StripLineMarkers removes the line-number markers added by Read. Text that
// never carried markers is returned unchanged.
func StripLineMarkers(s string) string {
	return lineMarkerRe.ReplaceAllString(s, "")
}

// addLineNumbers prefixes each line with a right-aligned 1-based counter.
// Newlines are preserved verbatim, including a trailing one.
func addLineNumbers(s string) string {
	lines := strings.Split(s, "\n")
	var b strings.Builder
	b.Grow(len(s) + len(lines)*7)
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%4d│ ", i+1)
		b.WriteString(line)
	}
	return b.String()
}
