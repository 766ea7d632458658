// Package assets manages the shared asset tree. Every path handled here is
// relative to the assets root and is checked against it before any
// filesystem call.
package assets

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dustin/go-humanize"

	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/apperr"
	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/models"
	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/pathutil"
)

// Dir is the assets root relative to the repository root.
const Dir = "assets"

// DefaultUploadLimit caps a single uploaded file.
const DefaultUploadLimit int64 = 100 << 20

var (
	forbiddenNameChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	dotRuns            = regexp.MustCompile(`\.{2,}`)
)

// Manager performs asset tree operations under one root.
type Manager struct {
	root        string
	uploadLimit int64
	logger      *log.Logger
}

// Option customizes a Manager.
type Option func(*Manager)

// WithUploadLimit sets the maximum size of an uploaded file in bytes.
func WithUploadLimit(limit int64) Option {
	return func(m *Manager) {
		if limit > 0 {
			m.uploadLimit = limit
		}
	}
}

// NewManager creates a manager for the assets directory root.
func NewManager(root string, logger *log.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		absRoot = filepath.Clean(root)
	}
	m := &Manager{root: absRoot, uploadLimit: DefaultUploadLimit, logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Root returns the assets root.
func (m *Manager) Root() string { return m.root }

// UploadLimit returns the per-file upload cap in bytes.
func (m *Manager) UploadLimit() int64 { return m.uploadLimit }

// SanitizeName cleans a user supplied file or folder name: the characters
// <>:"/\|?* and control characters are removed, runs of dots collapse to one
// and surrounding space is trimmed. An empty or "." result is rejected.
func SanitizeName(name string) (string, error) {
	clean := forbiddenNameChars.ReplaceAllString(name, "")
	clean = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, clean)
	clean = dotRuns.ReplaceAllString(clean, ".")
	clean = strings.TrimSpace(clean)
	if clean == "" || clean == "." {
		return "", apperr.Invalidf("Invalid name")
	}
	return clean, nil
}

// resolve rejects paths that leave the root lexically or through a symlink.
func (m *Manager) resolve(rel string) (string, error) {
	return pathutil.ResolveReal(m.root, rel)
}

func (m *Manager) rel(abs string) string {
	return pathutil.Relative(m.root, abs)
}

func isRootPath(rel string) bool {
	switch strings.TrimSpace(rel) {
	case "", ".", "/":
		return true
	}
	return false
}

// Tree lists the directory at sub (the root when empty) recursively.
// Directories come first, then files, each alphabetical. Hidden entries and
// symlinks are skipped. A non-empty pattern keeps only files whose path
// relative to the listed directory matches it, plus the directories leading
// to them.
func (m *Manager) Tree(sub, pattern string) (*models.AssetNode, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern != "" && !doublestar.ValidatePattern(pattern) {
		return nil, apperr.Invalidf("Invalid pattern: %s", pattern)
	}
	abs, err := m.resolve(sub)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.NotFound("asset path " + sub)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, apperr.Invalidf("Path is not a directory: %s", sub)
	}

	name := info.Name()
	if abs == m.root {
		name = Dir
	}
	node := &models.AssetNode{Name: name, Path: m.rel(abs), Type: models.TypeDirectory}
	if err := m.fill(node, abs, abs, pattern); err != nil {
		return nil, err
	}
	return node, nil
}

func (m *Manager) fill(node *models.AssetNode, dir, base, pattern string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	node.Children = []*models.AssetNode{}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") || entry.Type()&os.ModeSymlink != 0 {
			continue
		}
		full := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			child := &models.AssetNode{Name: entry.Name(), Path: m.rel(full), Type: models.TypeDirectory}
			if err := m.fill(child, full, base, pattern); err != nil {
				m.logger.Printf("asset tree: skipping %s: %v", full, err)
				continue
			}
			if pattern != "" && child.FileCount == 0 {
				continue
			}
			node.Children = append(node.Children, child)
			node.FileCount += child.FileCount
			continue
		}

		if pattern != "" {
			relToBase := filepath.ToSlash(strings.TrimPrefix(full, base+string(filepath.Separator)))
			if ok, _ := doublestar.Match(pattern, relToBase); !ok {
				continue
			}
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		modified := info.ModTime().UTC().Round(time.Second)
		node.Children = append(node.Children, &models.AssetNode{
			Name:     entry.Name(),
			Path:     m.rel(full),
			Type:     models.TypeFile,
			Size:     info.Size(),
			Modified: &modified,
			Ext:      strings.ToLower(filepath.Ext(entry.Name())),
		})
		node.FileCount++
	}
	sortNodes(node.Children)
	return nil
}

func sortNodes(nodes []*models.AssetNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Type != nodes[j].Type {
			return nodes[i].Type == models.TypeDirectory
		}
		a, b := strings.ToLower(nodes[i].Name), strings.ToLower(nodes[j].Name)
		if a == b {
			return nodes[i].Name < nodes[j].Name
		}
		return a < b
	})
}

// Info describes a single asset. Directories report their recursive file
// count; audio files carry tag data.
func (m *Manager) Info(rel string) (models.AssetInfo, error) {
	abs, err := m.resolve(rel)
	if err != nil {
		return models.AssetInfo{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.AssetInfo{}, apperr.NotFound("asset " + rel)
		}
		return models.AssetInfo{}, err
	}

	out := models.AssetInfo{
		Name:     info.Name(),
		Path:     m.rel(abs),
		Type:     models.TypeFile,
		Size:     info.Size(),
		Modified: info.ModTime().UTC().Round(time.Second),
	}
	if abs == m.root {
		out.Name = Dir
	}
	if info.IsDir() {
		tree, err := m.Tree(out.Path, "")
		if err != nil {
			return models.AssetInfo{}, err
		}
		total := totalSize(tree)
		out.Type = models.TypeDirectory
		out.Size = total
		out.FileCount = &tree.FileCount
	} else {
		out.Ext = strings.ToLower(filepath.Ext(info.Name()))
		if AudioExtensions[out.Ext] {
			out.Audio = readAudio(abs, info.Size())
		}
	}
	out.SizeHuman = humanize.Bytes(uint64(out.Size))
	return out, nil
}

func totalSize(node *models.AssetNode) int64 {
	var total int64
	for _, child := range node.Children {
		if child.Type == models.TypeDirectory {
			total += totalSize(child)
			continue
		}
		total += child.Size
	}
	return total
}

// CreateFolder creates a folder named name inside parent and returns its
// relative path.
func (m *Manager) CreateFolder(parent, name string) (string, error) {
	clean, err := SanitizeName(name)
	if err != nil {
		return "", err
	}
	parentAbs, err := m.resolve(parent)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(parentAbs)
	if err != nil || !info.IsDir() {
		return "", apperr.NotFound("parent folder " + parent)
	}
	target := filepath.Join(parentAbs, clean)
	if !pathutil.IsPathWithinRoot(m.root, target) {
		return "", fmt.Errorf("%w: %s", apperr.ErrTraversal, name)
	}
	if err := os.Mkdir(target, 0o755); err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", apperr.Conflict("folder " + m.rel(target) + " already exists")
		}
		return "", err
	}
	m.logger.Printf("created asset folder %s", m.rel(target))
	return m.rel(target), nil
}

// Move renames source to destination, both relative to the assets root.
func (m *Manager) Move(source, destination string) (string, error) {
	if isRootPath(source) {
		return "", apperr.Invalidf("Cannot move the assets root")
	}
	if isRootPath(destination) {
		return "", apperr.Invalidf("Destination is required")
	}
	srcAbs, err := m.resolve(source)
	if err != nil {
		return "", err
	}
	dstAbs, err := m.resolve(destination)
	if err != nil {
		return "", err
	}
	if srcAbs == m.root || dstAbs == m.root {
		return "", apperr.Invalidf("Cannot move the assets root")
	}

	srcInfo, err := os.Lstat(srcAbs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", apperr.NotFound("asset " + source)
		}
		return "", err
	}
	if _, err := os.Lstat(dstAbs); err == nil {
		return "", apperr.Conflict("asset " + m.rel(dstAbs) + " already exists")
	}
	if info, err := os.Stat(filepath.Dir(dstAbs)); err != nil || !info.IsDir() {
		return "", apperr.NotFound("destination folder " + path.Dir(m.rel(dstAbs)))
	}
	if srcInfo.IsDir() && pathutil.IsPathWithinRoot(srcAbs, dstAbs) {
		return "", apperr.Invalidf("Cannot move a folder into itself")
	}

	if err := os.Rename(srcAbs, dstAbs); err != nil {
		return "", err
	}
	m.logger.Printf("moved asset %s to %s", m.rel(srcAbs), m.rel(dstAbs))
	return m.rel(dstAbs), nil
}

// Rename gives source a new name within its current folder.
func (m *Manager) Rename(source, name string) (string, error) {
	clean, err := SanitizeName(name)
	if err != nil {
		return "", err
	}
	if isRootPath(source) {
		return "", apperr.Invalidf("Cannot move the assets root")
	}
	parent := path.Dir(strings.Trim(filepath.ToSlash(source), "/"))
	if parent == "." {
		parent = ""
	}
	return m.Move(source, path.Join(parent, clean))
}

// Delete removes a file or an empty folder. The assets root itself can never
// be deleted.
func (m *Manager) Delete(rel string) error {
	if isRootPath(rel) {
		return apperr.Invalidf("Cannot delete the assets root")
	}
	abs, err := m.resolve(rel)
	if err != nil {
		return err
	}
	if abs == m.root {
		return apperr.Invalidf("Cannot delete the assets root")
	}
	info, err := os.Lstat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.NotFound("asset " + rel)
		}
		return err
	}
	if info.IsDir() {
		entries, err := os.ReadDir(abs)
		if err != nil {
			return err
		}
		if len(entries) > 0 {
			return apperr.Conflict("folder " + m.rel(abs) + " is not empty")
		}
	}
	if err := os.Remove(abs); err != nil {
		return err
	}
	m.logger.Printf("deleted asset %s", m.rel(abs))
	return nil
}

// Upload stores the content of r as dir/filename. Existing files are never
// overwritten and content beyond the upload limit is rejected.
func (m *Manager) Upload(dir, filename string, r io.Reader) (string, error) {
	clean, err := SanitizeName(filepath.Base(filepath.ToSlash(filename)))
	if err != nil {
		return "", err
	}
	dirAbs, err := m.resolve(dir)
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(dirAbs); err != nil || !info.IsDir() {
		return "", apperr.NotFound("folder " + dir)
	}
	target := filepath.Join(dirAbs, clean)

	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", apperr.Conflict("asset " + m.rel(target) + " already exists")
		}
		return "", err
	}
	written, err := io.Copy(f, io.LimitReader(r, m.uploadLimit+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && written > m.uploadLimit {
		err = apperr.Invalidf("File exceeds the %s upload limit", humanize.Bytes(uint64(m.uploadLimit)))
	}
	if err != nil {
		_ = os.Remove(target)
		return "", err
	}
	m.logger.Printf("uploaded asset %s (%s)", m.rel(target), humanize.Bytes(uint64(written)))
	return m.rel(target), nil
}
