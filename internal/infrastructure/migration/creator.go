package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FilePair is the up/down SQL file pair for one schema version.
type FilePair struct {
	Version  string
	UpPath   string
	DownPath string
}

// Create writes a fresh up/down pair under dir, versioned with the current
// timestamp so files sort in creation order.
func Create(dir, name, description string) (*FilePair, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create migrations directory: %w", err)
	}

	now := time.Now()
	pair := &FilePair{Version: now.Format("20060102150405")}
	base := filepath.Join(dir, pair.Version+"_"+slugify(name))
	pair.UpPath = base + ".up.sql"
	pair.DownPath = base + ".down.sql"

	header := fmt.Sprintf("-- %s\n-- Created: %s\n", name, now.Format(time.RFC3339))
	if description != "" {
		header += "-- " + description + "\n"
	}

	if err := os.WriteFile(pair.UpPath, []byte(header+"\n"), 0644); err != nil {
		return nil, fmt.Errorf("write up migration: %w", err)
	}
	if err := os.WriteFile(pair.DownPath, []byte(header+"\n"), 0644); err != nil {
		_ = os.Remove(pair.UpPath)
		return nil, fmt.Errorf("write down migration: %w", err)
	}
	return pair, nil
}

// List returns the base names of all migrations in dir, oldest first. A
// missing directory yields an empty list.
func List(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.up.sql"))
	if err != nil {
		return nil, fmt.Errorf("scan migrations directory: %w", err)
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, strings.TrimSuffix(filepath.Base(m), ".up.sql"))
	}
	sort.Strings(names)
	return names, nil
}

// slugify lowercases a migration name and squeezes everything that is not
// alphanumeric into single underscores.
func slugify(name string) string {
	var b strings.Builder
	lastUnderscore := true // swallow leading separators
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
