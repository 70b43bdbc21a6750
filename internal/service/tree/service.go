// Package tree keeps the remote classification hierarchies in step with
// the resolved path set: creating missing segments, pruning abandoned
// default paths, and deleting nodes deepest-first during teardown.
package tree

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/zuercheram/DevopsAutomate/internal/domain"
	"github.com/zuercheram/DevopsAutomate/internal/remote"
	"github.com/zuercheram/DevopsAutomate/internal/service/hierarchy"
)

// Service wraps the classification collaborator with the in-memory snapshot
// caches that make repeated runs cheap and idempotent. The caches belong to
// one run; construct a fresh Service per run.
type Service struct {
	nodes  remote.ClassificationService
	logger *slog.Logger
	dryRun bool

	known   map[remote.TreeKind]map[string]bool
	rootIDs map[remote.TreeKind]int
}

// New returns a tree service with empty caches.
func New(nodes remote.ClassificationService, logger *slog.Logger, dryRun bool) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		nodes:  nodes,
		logger: logger.With("component", "tree"),
		dryRun: dryRun,
		known: map[remote.TreeKind]map[string]bool{
			remote.TreeAreas:      {},
			remote.TreeIterations: {},
		},
		rootIDs: map[remote.TreeKind]int{},
	}
}

// LoadSnapshot fetches the current hierarchy of the given kind once and
// flattens it into the known-path cache.
func (s *Service) LoadSnapshot(ctx context.Context, kind remote.TreeKind) error {
	root, err := s.nodes.GetTree(ctx, kind)
	if err != nil {
		return fmt.Errorf("fetch %s tree: %w", kind, err)
	}
	s.rootIDs[kind] = root.ID
	s.flatten(kind, root)
	return nil
}

func (s *Service) flatten(kind remote.TreeKind, node remote.Node) {
	if node.Path != "" {
		s.known[kind][node.Path] = true
	}
	for _, child := range node.Children {
		s.flatten(kind, child)
	}
}

// Known reports whether the path is present in the snapshot cache.
func (s *Service) Known(kind remote.TreeKind, path string) bool {
	return s.known[kind][domain.NormalizePath(path)]
}

// RootID returns the identifier of the tree root, used as the reclassify
// target when deleting nodes.
func (s *Service) RootID(kind remote.TreeKind) int {
	return s.rootIDs[kind]
}

// EnsurePath walks the path prefix by prefix and creates every segment not
// yet in the cache. A conflict from the remote means the node already
// exists, likely from a prior partial run, and counts as success; any other
// failure propagates.
func (s *Service) EnsurePath(ctx context.Context, kind remote.TreeKind, path string) error {
	segments := domain.SplitPath(path)
	prefix := ""
	for _, segment := range segments {
		parent := prefix
		prefix = domain.JoinPath(prefix, segment)
		if s.known[kind][prefix] {
			continue
		}
		if s.dryRun {
			s.logger.Info("would create node", "kind", kind, "path", prefix)
			s.known[kind][prefix] = true
			continue
		}
		_, err := s.nodes.CreateNode(ctx, kind, parent, segment)
		switch {
		case err == nil:
			s.logger.Info("created node", "kind", kind, "path", prefix)
		case errors.Is(err, remote.ErrAlreadyExists):
			s.logger.Info("node already present", "kind", kind, "path", prefix)
		default:
			return fmt.Errorf("create %s node %s: %w", kind, prefix, err)
		}
		s.known[kind][prefix] = true
	}
	return nil
}

// PruneOrphanedDefaults removes each custom-pathed team's hierarchy-derived
// default path when nothing uses it anymore: it must not be an in-use path,
// must not be an ancestor of one, and must still exist remotely. Deletion
// failures are downgraded to warnings so one stubborn node cannot stop the
// run.
func (s *Service) PruneOrphanedDefaults(ctx context.Context, resolver *hierarchy.Resolver, inUse []string) {
	for _, rec := range resolver.Records() {
		if !rec.HasCustomAreas() {
			continue
		}
		defaultPath := resolver.DefaultPath(rec.Name)
		if defaultPath == "" || !s.orphaned(defaultPath, inUse) {
			continue
		}
		if !s.known[remote.TreeAreas][defaultPath] {
			continue
		}
		if s.dryRun {
			s.logger.Info("would prune orphaned default path", "team", rec.Name, "path", defaultPath)
			continue
		}
		if err := s.nodes.DeleteNode(ctx, remote.TreeAreas, defaultPath, s.rootIDs[remote.TreeAreas]); err != nil {
			s.logger.Warn("could not prune orphaned default path", "team", rec.Name, "path", defaultPath, "error", err)
			continue
		}
		delete(s.known[remote.TreeAreas], defaultPath)
		s.logger.Info("pruned orphaned default path", "team", rec.Name, "path", defaultPath)
	}
}

func (s *Service) orphaned(defaultPath string, inUse []string) bool {
	for _, p := range inUse {
		if p == defaultPath || domain.IsStrictDescendant(p, defaultPath) {
			return false
		}
	}
	return true
}

// Delete removes a single node, reclassifying contained work items to the
// tree root, and drops it from the cache on success.
func (s *Service) Delete(ctx context.Context, kind remote.TreeKind, path string) error {
	path = domain.NormalizePath(path)
	if err := s.nodes.DeleteNode(ctx, kind, path, s.rootIDs[kind]); err != nil {
		return err
	}
	delete(s.known[kind], path)
	return nil
}

// DeleteDeepestFirst removes the given paths of a kind in strictly
// decreasing depth order, skipping paths no longer present. When
// withAncestors is set, the now-possibly-empty ancestor segments of each
// path are attempted afterwards; those failures are expected (node still
// has children) and silently ignored.
func (s *Service) DeleteDeepestFirst(ctx context.Context, kind remote.TreeKind, paths []string, withAncestors bool) {
	ordered := make([]string, 0, len(paths))
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		p = domain.NormalizePath(p)
		if p != "" && !seen[p] {
			seen[p] = true
			ordered = append(ordered, p)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return domain.PathDepth(ordered[i]) > domain.PathDepth(ordered[j])
	})

	var ancestors []string
	for _, p := range ordered {
		if !s.known[kind][p] {
			continue
		}
		if s.dryRun {
			s.logger.Info("would delete node", "kind", kind, "path", p)
			continue
		}
		if err := s.nodes.DeleteNode(ctx, kind, p, s.rootIDs[kind]); err != nil {
			if errors.Is(err, remote.ErrNotFound) {
				delete(s.known[kind], p)
				continue
			}
			s.logger.Warn("could not delete node", "kind", kind, "path", p, "error", err)
			continue
		}
		delete(s.known[kind], p)
		s.logger.Info("deleted node", "kind", kind, "path", p)
		if withAncestors {
			segments := domain.SplitPath(p)
			for i := len(segments) - 1; i > 0; i-- {
				ancestors = append(ancestors, domain.JoinPath(segments[:i]...))
			}
		}
	}

	if !withAncestors || s.dryRun {
		return
	}
	sort.SliceStable(ancestors, func(i, j int) bool {
		return domain.PathDepth(ancestors[i]) > domain.PathDepth(ancestors[j])
	})
	for _, p := range ancestors {
		if !s.known[kind][p] {
			continue
		}
		if err := s.nodes.DeleteNode(ctx, kind, p, s.rootIDs[kind]); err != nil {
			// Ancestors with surviving children are expected to refuse.
			continue
		}
		delete(s.known[kind], p)
	}
}
