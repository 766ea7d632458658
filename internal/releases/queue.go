// Package releases manages the global release queue and keeps it consistent
// with episode metadata.
package releases

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/apperr"
	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/episodes"
	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/metadata"
	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/pathutil"
	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/yamlstore"
)

const (
	QueueFile    = "release-queue.yml"
	ProfilesFile = "distribution-profiles.yml"

	// StagedStatus is the status given to entries added to the staged list.
	StagedStatus = "scheduled"
	// GroupStatus is the status of a release group created on demand.
	GroupStatus = "planned"
)

// Queue section names.
const (
	SectionGroups   = "release_groups"
	SectionStaged   = "staged"
	SectionBlocked  = "blocked"
	SectionReleased = "released"
)

var sections = []struct {
	name string
	kind yaml.Kind
}{
	{SectionGroups, yaml.MappingNode},
	{SectionStaged, yaml.SequenceNode},
	{SectionBlocked, yaml.SequenceNode},
	{SectionReleased, yaml.SequenceNode},
}

// Service reads and mutates the release queue.
type Service struct {
	repo   *episodes.Repository
	store  *yamlstore.Store
	logger *log.Logger
}

// New creates a release service sharing the episode repository's root.
func New(repo *episodes.Repository, store *yamlstore.Store, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{repo: repo, store: store, logger: logger}
}

// QueuePath returns the location of release-queue.yml.
func (s *Service) QueuePath() string {
	return filepath.Join(s.repo.Root(), QueueFile)
}

// ProfilesPath returns the location of distribution-profiles.yml.
func (s *Service) ProfilesPath() string {
	return filepath.Join(s.repo.Root(), ProfilesFile)
}

// NewQueue returns the empty queue document used when release-queue.yml does
// not exist yet.
func NewQueue() *yaml.Node {
	root := yamlstore.NewMapping()
	normalize(root)
	return root
}

// normalize adds any missing queue section. Sections of the wrong kind are
// replaced.
func normalize(root *yaml.Node) {
	for _, sec := range sections {
		empty := yamlstore.NewSequence
		if sec.kind == yaml.MappingNode {
			empty = yamlstore.NewMapping
		}
		yamlstore.Ensure(root, sec.name, sec.kind, empty)
	}
}

// Queue returns the release queue. A missing file yields the empty skeleton
// {release_groups: {}, staged: [], blocked: [], released: []}.
func (s *Service) Queue() (map[string]any, error) {
	root, err := yamlstore.Read(s.QueuePath())
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		root = NewQueue()
	}
	normalize(root)
	return yamlstore.ToMap(root)
}

// UpdateStatus sets the content status of the episode at path, a
// repository-relative episode path.
func (s *Service) UpdateStatus(ctx context.Context, path, status string) error {
	status = strings.TrimSpace(status)
	if !metadata.IsValidStatus(status) {
		return apperr.Invalidf("Invalid status. Must be one of: %s", strings.Join(metadata.Statuses, ", "))
	}
	dir, _, _, err := s.repo.LocatePath(path)
	if err != nil {
		return err
	}
	_, err = s.repo.Modify(ctx, dir, func(root *yaml.Node) error {
		yamlstore.Set(root, "content_status", yamlstore.NewString(status))
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Printf("release status of %s set to %s", path, status)
	return nil
}

// Schedule stages the episode at path for release on date and, when group is
// non-empty, lists it in that release group. The episode metadata is updated
// to match: content_status becomes staged and the release block records the
// date and group. Repeated calls replace the staged entry rather than
// duplicating it. The metadata is written first and restored when the queue
// cannot be written.
func (s *Service) Schedule(ctx context.Context, path, date, group string) (map[string]any, error) {
	date = strings.TrimSpace(date)
	group = strings.TrimSpace(group)
	var errs []string
	if !metadata.IsValidDate(date) {
		errs = append(errs, "Invalid date format. Use YYYY-MM-DD with a real calendar date")
	}
	if len(group) > metadata.MaxDependencyLength {
		errs = append(errs, "Release group name is too long")
	}
	if len(errs) > 0 {
		return nil, apperr.Invalid(errs...)
	}

	dir, _, _, err := s.repo.LocatePath(path)
	if err != nil {
		return nil, err
	}
	// Store the canonical form so staged entries match scan output.
	path = pathutil.Relative(s.repo.Root(), dir)

	metaPath := filepath.Join(dir, episodes.MetadataFile)
	var original []byte
	_, err = s.repo.Modify(ctx, dir, func(meta *yaml.Node) error {
		data, err := os.ReadFile(metaPath)
		if err != nil {
			return err
		}
		original = data
		yamlstore.Set(meta, "content_status", yamlstore.NewString(metadata.StatusStaged))
		release := yamlstore.Ensure(meta, "release", yaml.MappingNode, yamlstore.NewMapping)
		yamlstore.Set(release, "target_date", yamlstore.NewString(date))
		if group != "" {
			yamlstore.Set(release, "release_group", yamlstore.NewString(group))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	root, err := s.store.Update(ctx, s.QueuePath(), NewQueue, func(root *yaml.Node) error {
		normalize(root)
		upsertStaged(yamlstore.Get(root, SectionStaged), path, date)
		if group != "" {
			addToGroup(yamlstore.Get(root, SectionGroups), group, path, date)
		}
		return nil
	})
	if err != nil {
		// The episode must not claim a release the queue does not list.
		restore := func() error { return yamlstore.WriteFile(metaPath, original) }
		if rerr := s.store.Locked(context.WithoutCancel(ctx), restore); rerr != nil {
			s.logger.Printf("schedule %s: restore metadata: %v", path, rerr)
		}
		return nil, err
	}

	s.logger.Printf("scheduled %s for %s (group %q)", path, date, group)
	return yamlstore.ToMap(root)
}

func upsertStaged(staged *yaml.Node, path, date string) {
	entry := yamlstore.NewMapping()
	yamlstore.Set(entry, "path", yamlstore.NewString(path))
	yamlstore.Set(entry, "status", yamlstore.NewString(StagedStatus))
	yamlstore.Set(entry, "target_date", yamlstore.NewString(date))

	replaced := false
	kept := staged.Content[:0]
	for _, item := range staged.Content {
		if yamlstore.IsMapping(item) && yamlstore.GetString(item, "path") == path {
			if replaced {
				continue
			}
			replaced = true
			kept = append(kept, entry)
			continue
		}
		kept = append(kept, item)
	}
	staged.Content = kept
	if !replaced {
		staged.Content = append(staged.Content, entry)
	}
}

func addToGroup(groups *yaml.Node, name, path, date string) {
	group := yamlstore.Get(groups, name)
	if !yamlstore.IsMapping(group) {
		group = yamlstore.NewMapping()
		yamlstore.Set(group, "name", yamlstore.NewString(name))
		yamlstore.Set(group, "description", yamlstore.NewString(""))
		yamlstore.Set(group, "status", yamlstore.NewString(GroupStatus))
		yamlstore.Set(group, "target_date", yamlstore.NewString(date))
		yamlstore.Set(group, "items", yamlstore.NewSequence())
		yamlstore.Set(group, "dependencies", yamlstore.NewSequence())
		yamlstore.Set(groups, name, group)
	}
	items := yamlstore.Ensure(group, "items", yaml.SequenceNode, yamlstore.NewSequence)
	for _, item := range items.Content {
		if item.Kind == yaml.ScalarNode && item.Value == path {
			return
		}
	}
	items.Content = append(items.Content, yamlstore.NewString(path))
}

// DistributionProfiles returns distribution-profiles.yml, or {profiles: {}}
// when the file does not exist.
func (s *Service) DistributionProfiles() (map[string]any, error) {
	root, err := yamlstore.Read(s.ProfilesPath())
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		root = yamlstore.NewMapping()
	}
	yamlstore.Ensure(root, "profiles", yaml.MappingNode, yamlstore.NewMapping)
	return yamlstore.ToMap(root)
}
