// Package security provisions per-team permission groups and places the
// allow and deny access-control entries that scope each team to exactly its
// own classification nodes.
package security

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/zuercheram/DevopsAutomate/internal/domain"
	"github.com/zuercheram/DevopsAutomate/internal/remote"
)

// Service carries the collaborators and per-run caches for permission work.
type Service struct {
	directory remote.DirectoryService
	nodes     remote.ClassificationService
	acl       remote.AccessControlService
	logger    *slog.Logger
	dryRun    bool

	groupsByName map[string]domain.Group
	groupsLoaded bool
	identities   map[string]string
	nodeIDs      map[string]int
}

// New returns a security service with empty caches.
func New(directory remote.DirectoryService, nodes remote.ClassificationService, acl remote.AccessControlService, logger *slog.Logger, dryRun bool) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		directory:    directory,
		nodes:        nodes,
		acl:          acl,
		logger:       logger.With("component", "security"),
		dryRun:       dryRun,
		groupsByName: map[string]domain.Group{},
		identities:   map[string]string{},
		nodeIDs:      map[string]int{},
	}
}

// TeamGrant is the resolved material for one team's access-control work.
type TeamGrant struct {
	Team           string
	ReaderIdentity string
	WriterIdentity string
	Paths          []string
}

// EnsureGroups finds or creates the team's three deterministic groups and
// wires the role group into both permission groups. Lookups are by display
// name, so re-runs find what a prior run created.
func (s *Service) EnsureGroups(ctx context.Context, teamName string) (reader, writer domain.Group, err error) {
	reader, err = s.ensureGroup(ctx, domain.ReaderGroupName(teamName), "Read access to work items of team "+teamName)
	if err != nil {
		return domain.Group{}, domain.Group{}, err
	}
	writer, err = s.ensureGroup(ctx, domain.WriterGroupName(teamName), "Write access to work items of team "+teamName)
	if err != nil {
		return domain.Group{}, domain.Group{}, err
	}
	role, err := s.ensureGroup(ctx, domain.ContributorGroupName(teamName), "External contributor role for team "+teamName)
	if err != nil {
		return domain.Group{}, domain.Group{}, err
	}
	if s.dryRun {
		return reader, writer, nil
	}
	for _, perm := range []domain.Group{reader, writer} {
		if err := s.directory.AddGroupMember(ctx, role.Descriptor, perm.Descriptor); err != nil && !errors.Is(err, remote.ErrAlreadyExists) {
			s.logger.Warn("could not link role group", "team", teamName, "group", perm.DisplayName, "error", err)
		}
	}
	return reader, writer, nil
}

func (s *Service) ensureGroup(ctx context.Context, displayName, description string) (domain.Group, error) {
	if err := s.loadGroups(ctx); err != nil {
		return domain.Group{}, err
	}
	if g, ok := s.groupsByName[displayName]; ok {
		return g, nil
	}
	if s.dryRun {
		s.logger.Info("would create group", "group", displayName)
		g := domain.Group{DisplayName: displayName}
		s.groupsByName[displayName] = g
		return g, nil
	}
	g, err := s.directory.CreateGroup(ctx, displayName, description)
	if err != nil {
		return domain.Group{}, fmt.Errorf("create group %s: %w", displayName, err)
	}
	s.logger.Info("created group", "group", displayName)
	s.groupsByName[displayName] = g
	return g, nil
}

func (s *Service) loadGroups(ctx context.Context) error {
	if s.groupsLoaded {
		return nil
	}
	groups, err := s.directory.ListGroups(ctx)
	if err != nil {
		return fmt.Errorf("list groups: %w", err)
	}
	for _, g := range groups {
		s.groupsByName[g.DisplayName] = g
	}
	s.groupsLoaded = true
	return nil
}

// LookupGroup returns a cached group by display name without creating it.
func (s *Service) LookupGroup(ctx context.Context, displayName string) (domain.Group, bool, error) {
	if err := s.loadGroups(ctx); err != nil {
		return domain.Group{}, false, err
	}
	g, ok := s.groupsByName[displayName]
	return g, ok, nil
}

// Identity converts a graph descriptor into the access-control identity
// descriptor, cached per run.
func (s *Service) Identity(ctx context.Context, subjectDescriptor string) (string, error) {
	if id, ok := s.identities[subjectDescriptor]; ok {
		return id, nil
	}
	id, err := s.directory.ResolveIdentityDescriptor(ctx, subjectDescriptor)
	if err != nil {
		return "", err
	}
	s.identities[subjectDescriptor] = id
	return id, nil
}

// Token builds the security token for a path: the colon-joined chain of
// node identifiers from the tree root down to the leaf.
func (s *Service) Token(ctx context.Context, path string) (string, error) {
	segments := domain.SplitPath(path)
	ids := make([]string, 0, len(segments)+1)
	prefix := ""
	for i := -1; i < len(segments); i++ {
		if i >= 0 {
			prefix = domain.JoinPath(prefix, segments[i])
		}
		id, err := s.nodeID(ctx, prefix)
		if err != nil {
			return "", fmt.Errorf("resolve node %q: %w", prefix, err)
		}
		ids = append(ids, strconv.Itoa(id))
	}
	return strings.Join(ids, ":"), nil
}

func (s *Service) nodeID(ctx context.Context, path string) (int, error) {
	key := path
	if id, ok := s.nodeIDs[key]; ok {
		return id, nil
	}
	node, err := s.nodes.GetNodeByPath(ctx, remote.TreeAreas, path)
	if err != nil {
		return 0, err
	}
	s.nodeIDs[key] = node.ID
	return node.ID, nil
}

// RemoveEntries clears the identity's access-control entries on the node
// the token names.
func (s *Service) RemoveEntries(ctx context.Context, token, identityDescriptor string) error {
	return s.acl.RemoveEntries(ctx, token, identityDescriptor)
}

// Grant resolves the team's groups into identity descriptors and applies
// the allow entries on its own paths: view for the reader group, edit plus
// edit-comments for the writer group, merged with entries other identities
// already hold on the node.
func (s *Service) Grant(ctx context.Context, teamName string, paths []string) (TeamGrant, error) {
	reader, writer, err := s.EnsureGroups(ctx, teamName)
	if err != nil {
		return TeamGrant{}, err
	}
	if s.dryRun {
		s.logger.Info("would grant access", "team", teamName, "paths", paths)
		return TeamGrant{Team: teamName, Paths: paths}, nil
	}
	readerID, err := s.Identity(ctx, reader.Descriptor)
	if err != nil {
		return TeamGrant{}, fmt.Errorf("resolve reader identity for %s: %w", teamName, err)
	}
	writerID, err := s.Identity(ctx, writer.Descriptor)
	if err != nil {
		return TeamGrant{}, fmt.Errorf("resolve writer identity for %s: %w", teamName, err)
	}
	grant := TeamGrant{Team: teamName, ReaderIdentity: readerID, WriterIdentity: writerID, Paths: paths}
	for _, p := range paths {
		token, err := s.Token(ctx, p)
		if err != nil {
			return grant, err
		}
		if err := s.acl.SetAllow(ctx, token, readerID, domain.CapabilityView); err != nil {
			return grant, fmt.Errorf("allow view on %s: %w", p, err)
		}
		if err := s.acl.SetAllow(ctx, token, writerID, domain.CapabilityWrite); err != nil {
			return grant, fmt.Errorf("allow write on %s: %w", p, err)
		}
		s.logger.Info("granted access", "team", teamName, "path", p)
	}
	return grant, nil
}

// ApplyDenies places the explicit deny entries of the plan using the
// identities resolved during granting. A missing grant means that team's
// permission step already failed and its denies are skipped with it.
func (s *Service) ApplyDenies(ctx context.Context, plan []DenyEntry, grants map[string]TeamGrant) {
	for _, entry := range plan {
		grant, ok := grants[entry.OwnerTeam]
		if !ok {
			continue
		}
		if s.dryRun {
			s.logger.Info("would deny inherited access", "team", entry.OwnerTeam, "path", entry.Path)
			continue
		}
		token, err := s.Token(ctx, entry.Path)
		if err != nil {
			s.logger.Warn("could not resolve deny token", "team", entry.OwnerTeam, "path", entry.Path, "error", err)
			continue
		}
		if err := s.acl.SetDeny(ctx, token, grant.ReaderIdentity, domain.CapabilityView); err != nil {
			s.logger.Warn("could not deny reader access", "team", entry.OwnerTeam, "path", entry.Path, "error", err)
		}
		if err := s.acl.SetDeny(ctx, token, grant.WriterIdentity, domain.CapabilityWrite); err != nil {
			s.logger.Warn("could not deny writer access", "team", entry.OwnerTeam, "path", entry.Path, "error", err)
		}
		s.logger.Info("denied inherited access", "team", entry.OwnerTeam, "path", entry.Path)
	}
}
