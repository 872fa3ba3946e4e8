package discover

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// appendPermalinks appends links to the permalinks file, one per line,
// creating it on first use. The file is synced before the owning page
// is marked done.
func appendPermalinks(path string, links []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create permalinks directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open permalinks file: %w", err)
	}

	var sb strings.Builder
	for _, link := range links {
		sb.WriteString(link)
		sb.WriteByte('\n')
	}
	if _, err := f.WriteString(sb.String()); err != nil {
		f.Close()
		return fmt.Errorf("failed to append permalinks: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync permalinks file: %w", err)
	}
	return f.Close()
}

// ReadPermalinks loads the permalink list for the archive stage.
// Blank lines are ignored and repeated URLs collapse to their first
// occurrence, preserving file order.
func ReadPermalinks(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open permalinks file: %w", err)
	}
	defer f.Close()

	var links []string
	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		links = append(links, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read permalinks file: %w", err)
	}
	return links, nil
}

// knownPermalinks returns the set already on disk; a missing file is
// an empty set
func knownPermalinks(path string) (map[string]struct{}, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return make(map[string]struct{}), nil
		}
		return nil, err
	}

	links, err := ReadPermalinks(path)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(links))
	for _, link := range links {
		seen[link] = struct{}{}
	}
	return seen, nil
}
