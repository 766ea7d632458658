// Package pathutil holds the pure naming and path helpers shared by every
// front-end: slugs, series names and root containment checks.
package pathutil

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/apperr"
)

const maxNameLength = 100

var (
	whitespaceRun  = regexp.MustCompile(`[\s\p{Zs}]+`)
	nonSlugChars   = regexp.MustCompile(`[^A-Za-z0-9_-]`)
	hyphenRun      = regexp.MustCompile(`-{2,}`)
	slugPattern    = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*[a-z0-9]$`)
	seriesPattern  = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 _-]*[A-Za-z0-9]$`)
	singleAlnum    = regexp.MustCompile(`^[A-Za-z0-9]$`)
	singleLowerNum = regexp.MustCompile(`^[a-z0-9]$`)
)

// Slugify lowercases text and reduces it to hyphen-separated [a-z0-9_-] runs.
// The result never starts or ends with a separator and is at most 100 bytes.
func Slugify(text string) string {
	slug := strings.ToLower(strings.TrimSpace(text))
	slug = whitespaceRun.ReplaceAllString(slug, "-")
	slug = nonSlugChars.ReplaceAllString(slug, "")
	slug = hyphenRun.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-_")
	if len(slug) > maxNameLength {
		slug = strings.Trim(slug[:maxNameLength], "-_")
	}
	return slug
}

// IsValidSlug reports whether s can be used as the topic part of an episode folder.
func IsValidSlug(s string) bool {
	if len(s) == 0 || len(s) > maxNameLength || hasTraversal(s) {
		return false
	}
	return slugPattern.MatchString(s) || singleLowerNum.MatchString(s)
}

// IsValidSeriesName reports whether s can name a series directory.
func IsValidSeriesName(s string) bool {
	if len(s) == 0 || len(s) > maxNameLength || hasTraversal(s) {
		return false
	}
	return seriesPattern.MatchString(s) || singleAlnum.MatchString(s)
}

// IsSafeSegment reports whether s is usable as a single existing path segment.
// It is looser than the naming rules so hand-made folders stay reachable.
func IsSafeSegment(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && s != "." && !hasTraversal(s) && !strings.ContainsRune(s, 0)
}

func hasTraversal(s string) bool {
	return strings.Contains(s, "..") || strings.ContainsAny(s, `/\`)
}

// IsPathWithinRoot resolves candidate against root and reports whether the
// result is root itself or one of its descendants.
func IsPathWithinRoot(root, candidate string) bool {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	target := candidate
	if !filepath.IsAbs(target) {
		target = filepath.Join(absRoot, filepath.FromSlash(candidate))
	}
	resolved, err := filepath.Abs(target)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absRoot, resolved)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	return rel != ".." && !strings.HasPrefix(rel, "../")
}

// Resolve joins a slash-separated relative path onto root and returns the
// absolute result. Paths escaping root fail with apperr.ErrTraversal.
func Resolve(root, rel string) (string, error) {
	if strings.ContainsRune(rel, 0) {
		return "", fmt.Errorf("%w: %q", apperr.ErrTraversal, rel)
	}
	rel = strings.TrimLeft(filepath.ToSlash(rel), "/")
	if !IsPathWithinRoot(root, rel) {
		return "", fmt.Errorf("%w: %q", apperr.ErrTraversal, rel)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	return filepath.Join(absRoot, filepath.FromSlash(rel)), nil
}

// ResolveReal is Resolve for paths that will be written or removed. The
// deepest existing ancestor of the result is evaluated through symlinks and
// must still lie within the real root.
func ResolveReal(root, rel string) (string, error) {
	target, err := Resolve(root, rel)
	if err != nil {
		return "", err
	}
	realRoot, err := filepath.EvalSymlinks(root)
	if errors.Is(err, fs.ErrNotExist) {
		return target, nil
	}
	if err != nil {
		return "", err
	}
	for existing := target; ; {
		real, err := filepath.EvalSymlinks(existing)
		if err == nil {
			if !IsPathWithinRoot(realRoot, real) {
				return "", fmt.Errorf("%w: %q", apperr.ErrTraversal, rel)
			}
			return target, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return target, nil
		}
		existing = parent
	}
}

// Relative returns target relative to root using forward slashes.
func Relative(root, target string) string {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return filepath.ToSlash(filepath.Base(target))
	}
	if rel == "." {
		return ""
	}
	return filepath.ToSlash(rel)
}
