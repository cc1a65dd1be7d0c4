package conversation

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MrWong99/conclave/internal/files"
)

// ErrRelativePath is returned when a caller passes a non-absolute file path.
// This is a deliberate contract violation, not a soft failure: the server
// cannot resolve relative paths against any meaningful working directory.
var ErrRelativePath = errors.New("all file paths must be absolute")

// PrepareFiles embeds the content of paths for a prompt, skipping files whose
// content is already present in the continuation thread's history (newest
// occurrence wins). budget is the remaining file-token allowance after the
// history builder took its share.
//
// The returned text wraps the embedded files in a labeled section; included
// lists the paths actually embedded, which the caller records on the next
// turn. Any non-absolute path fails the whole call with [ErrRelativePath].
func PrepareFiles(store *Store, paths []string, continuationID, label string, budget int) (string, []string, error) {
	for _, p := range paths {
		if !files.IsAbsolute(p) {
			return "", nil, fmt.Errorf("%w: received %q", ErrRelativePath, p)
		}
	}

	// Newest-wins dedup against the conversation history.
	var inHistory map[string]bool
	if continuationID != "" {
		inHistory = make(map[string]bool)
		for _, p := range store.FileList(continuationID) {
			inHistory[p] = true
		}
	}

	fresh := make([]string, 0, len(paths))
	for _, p := range paths {
		if inHistory[p] {
			slog.Debug("file already in conversation history, skipping", "path", p)
			continue
		}
		fresh = append(fresh, p)
	}
	if len(fresh) == 0 {
		return "", nil, nil
	}

	body, included, err := files.ReadMany(fresh, budget, true)
	if err != nil {
		return "", nil, err
	}
	if body == "" {
		return "", nil, nil
	}
	if len(included) < len(fresh) {
		slog.Warn("file budget exhausted before all files were embedded",
			"requested", len(fresh), "embedded", len(included), "budget", budget)
	}

	upper := strings.ToUpper(label)
	text := fmt.Sprintf("=== %s FILES ===\n%s=== END %s FILES ===\n", upper, body, upper)
	return text, included, nil
}
