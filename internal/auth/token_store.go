// Package auth holds the API tokens accepted by the HTTP server.
package auth

import (
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/watch"
)

// TokenStore manages the set of API tokens backed by a single file on disk.
// The file is reloaded whenever it changes.
type TokenStore struct {
	file    string
	logger  *log.Logger
	watcher *watch.Watcher

	mu     sync.RWMutex
	tokens map[string]struct{}
}

// NewTokenStore creates a TokenStore backed by the provided token file path.
// Each non-empty trimmed line inside the file is a valid token; lines
// starting with '#' are comments.
func NewTokenStore(filePath string, debounce time.Duration, logger *log.Logger) (*TokenStore, error) {
	if logger == nil {
		logger = log.Default()
	}

	s := &TokenStore{
		file:   filepath.Clean(filePath),
		logger: logger,
		tokens: make(map[string]struct{}),
	}
	if err := s.refresh(); err != nil {
		return nil, err
	}

	w, err := watch.New(debounce, logger, func([]string) {
		if err := s.refresh(); err != nil {
			s.logger.Printf("token refresh error: %v", err)
		}
	})
	if err != nil {
		return nil, err
	}
	if err := w.AddFile(s.file); err != nil {
		w.Close()
		return nil, err
	}
	s.watcher = w
	return s, nil
}

// Close stops watching the token file.
func (s *TokenStore) Close() error {
	return s.watcher.Close()
}

// IsValidToken reports whether the provided token is authorized.
func (s *TokenStore) IsValidToken(token string) bool {
	token = strings.TrimSpace(token)
	if token == "" {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tokens[token]
	return ok
}

// Count returns the number of loaded tokens.
func (s *TokenStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}

func (s *TokenStore) refresh() error {
	data, err := os.ReadFile(s.file)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.mu.Lock()
			s.tokens = make(map[string]struct{})
			s.mu.Unlock()
			s.logger.Printf("token file %s missing; no tokens loaded", s.file)
			return nil
		}
		return err
	}

	lines := strings.Split(string(data), "\n")
	tokens := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		token := strings.TrimSpace(line)
		if token != "" && !strings.HasPrefix(token, "#") {
			tokens[token] = struct{}{}
		}
	}

	s.mu.Lock()
	s.tokens = tokens
	s.mu.Unlock()

	s.logger.Printf("loaded %d API tokens", len(tokens))
	return nil
}
