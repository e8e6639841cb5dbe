package session

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ErrSessionNotFound is returned when no JSONL file matches a session id.
var ErrSessionNotFound = errors.New("session: session file not found")

// FindSessionFile locates the JSONL file for a session id under the Claude
// projects directory. Subagent files live one level deeper and are skipped;
// the relay mirrors main sessions only.
func FindSessionFile(claudeDir, sessionID string) (string, error) {
	projectsDir := filepath.Join(claudeDir, "projects")

	info, err := os.Stat(projectsDir)
	if err != nil || !info.IsDir() {
		return "", ErrSessionNotFound
	}

	var found string
	target := sessionID + ".jsonl"

	err = filepath.WalkDir(projectsDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // skip unreadable entries
		}
		if d.IsDir() || d.Name() != target {
			return nil
		}
		rel, _ := filepath.Rel(projectsDir, path)
		parts := strings.Split(rel, string(filepath.Separator))
		if len(parts) != 2 {
			return nil // subagent or stray file
		}
		found = path
		return filepath.SkipAll
	})
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", ErrSessionNotFound
	}
	return found, nil
}
