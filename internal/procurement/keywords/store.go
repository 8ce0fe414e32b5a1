package keywords

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Caia-Tech/caia-harvester/internal/procurement"
	"github.com/Caia-Tech/caia-harvester/pkg/logging"
)

// SeenStore is the append-only log of keywords already used, one per line.
// The in-memory set lives in CrawlState.SeenKeywords.
type SeenStore struct {
	path  string
	state *procurement.CrawlState
	file  *os.File
}

// OpenSeenStore loads every keyword in path into state and opens the file
// for appending. A missing file is created.
func OpenSeenStore(path string, state *procurement.CrawlState) (*SeenStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create keyword log directory: %w", err)
		}
	}

	loaded, err := loadKeywords(path, state)
	if err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open keyword log: %w", err)
	}

	logger := logging.GetStageLogger("keywords", logging.StageKeyword)
	logger.Info().
		Str("path", path).
		Int("loaded", loaded).
		Msg("Seen keywords loaded")

	return &SeenStore{path: path, state: state, file: file}, nil
}

func loadKeywords(path string, state *procurement.CrawlState) (int, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read keyword log: %w", err)
	}
	defer f.Close()

	loaded := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if kw := Normalize(scanner.Text()); kw != "" && state.MarkSeen(kw) {
			loaded++
		}
	}
	if err := scanner.Err(); err != nil {
		return loaded, fmt.Errorf("failed to read keyword log: %w", err)
	}
	return loaded, nil
}

// IsSeen reports whether keyword, after normalization, was used before.
func (s *SeenStore) IsSeen(keyword string) bool {
	return s.state.IsSeen(Normalize(keyword))
}

// MarkSeen records keyword and appends it to the log. It reports whether
// the keyword was new.
func (s *SeenStore) MarkSeen(keyword string) (bool, error) {
	kw := Normalize(keyword)
	if kw == "" || !s.state.MarkSeen(kw) {
		return false, nil
	}
	if _, err := s.file.WriteString(kw + "\n"); err != nil {
		return true, fmt.Errorf("failed to append keyword: %w", err)
	}
	return true, nil
}

// Len is the number of keywords seen.
func (s *SeenStore) Len() int {
	return len(s.state.SeenKeywords)
}

// Close closes the log file.
func (s *SeenStore) Close() error {
	return s.file.Close()
}
