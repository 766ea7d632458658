// Package yamlstore reads and writes the YAML documents that hold episode
// metadata, the release queue and distribution profiles.
//
// Documents are handled as yaml.Node trees so that key order survives a
// read-modify-write cycle. Nothing is cached: every read parses the file
// again and every write replaces the whole file atomically.
package yamlstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"

	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/apperr"
)

const (
	filePerms      = 0o644
	lockRetryDelay = 25 * time.Millisecond
)

// Read parses the YAML document at path and returns its root mapping.
// An empty file yields an empty mapping.
func Read(path string) (*yaml.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.NotFound(path)
		}
		return nil, err
	}
	return Parse(path, data)
}

// Parse decodes data as a YAML document rooted in a mapping.
func Parse(path string, data []byte) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, apperr.Parse(path, err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return NewMapping(), nil
	}
	root := doc.Content[0]
	if root.Kind == yaml.ScalarNode && root.ShortTag() == "!!null" {
		return NewMapping(), nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, apperr.Parse(path, errors.New("document root is not a mapping"))
	}
	return root, nil
}

// Marshal serializes root with two-space indentation and no line wrapping.
func Marshal(root *yaml.Node) ([]byte, error) {
	preferDoubleQuotes(root)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write replaces the file at path with the serialized document.
func Write(path string, root *yaml.Node) error {
	data, err := Marshal(root)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return WriteFile(path, data)
}

// WriteFile atomically replaces path with data.
func WriteFile(path string, data []byte) error {
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	// atomic.WriteFile leaves a temp file's restrictive mode on new files.
	if err := os.Chmod(path, filePerms); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	return nil
}

// Store serializes read-modify-write cycles within the process and, through
// a lock file, across processes: the HTTP server and the MCP server run as
// separate processes over the same tree. Calls must not nest.
type Store struct {
	mu   sync.Mutex
	lock *flock.Flock
}

// NewStore creates a store guarded by the lock file at lockPath.
func NewStore(lockPath string) *Store {
	return &Store{lock: flock.New(lockPath)}
}

// Update reads path, applies fn and writes the result back while holding the
// store lock. When the file does not exist and init is non-nil, init provides
// the starting document; otherwise the not-found error is returned. The
// document is only written when fn succeeds.
func (s *Store) Update(ctx context.Context, path string, init func() *yaml.Node, fn func(root *yaml.Node) error) (*yaml.Node, error) {
	unlock, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	root, err := Read(path)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) || init == nil {
			return nil, err
		}
		root = init()
	}

	if err := fn(root); err != nil {
		return nil, err
	}
	if err := Write(path, root); err != nil {
		return nil, err
	}
	return root, nil
}

// Locked runs fn while holding the store lock.
func (s *Store) Locked(ctx context.Context, fn func() error) error {
	unlock, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

func (s *Store) acquire(ctx context.Context) (func(), error) {
	if s == nil || s.lock == nil {
		return func() {}, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !locked {
		s.mu.Unlock()
		if err == nil {
			err = errors.New("not acquired")
		}
		return nil, fmt.Errorf("acquire store lock: %w", err)
	}
	return func() {
		_ = s.lock.Unlock()
		s.mu.Unlock()
	}, nil
}
