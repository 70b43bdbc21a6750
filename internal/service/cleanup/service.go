// Package cleanup reverses a provisioned structure: permissions first, then
// memberships, then teams child-before-parent, then classification nodes
// deepest-first. It also hosts the narrower rename cleanup pass a forward
// run triggers when teams changed names.
package cleanup

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/zuercheram/DevopsAutomate/internal/domain"
	"github.com/zuercheram/DevopsAutomate/internal/remote"
	"github.com/zuercheram/DevopsAutomate/internal/service/hierarchy"
	"github.com/zuercheram/DevopsAutomate/internal/service/membership"
	"github.com/zuercheram/DevopsAutomate/internal/service/security"
	"github.com/zuercheram/DevopsAutomate/internal/service/tree"
)

// Service executes teardown and rename cleanup.
type Service struct {
	directory remote.DirectoryService
	trees     *tree.Service
	security  *security.Service
	logger    *slog.Logger
	dryRun    bool

	project      string
	sentinelTeam string
	ownerEmail   string
}

// New wires a cleanup service. sentinelTeam is the name the undeletable
// project default team is parked under; ownerEmail is the single member it
// keeps.
func New(directory remote.DirectoryService, trees *tree.Service, sec *security.Service, logger *slog.Logger, project, sentinelTeam, ownerEmail string, dryRun bool) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		directory:    directory,
		trees:        trees,
		security:     sec,
		logger:       logger.With("component", "cleanup"),
		dryRun:       dryRun,
		project:      project,
		sentinelTeam: sentinelTeam,
		ownerEmail:   ownerEmail,
	}
}

// Teardown reverses the forward run for the whole record set, in
// dependency-inverse order. Per-team failures degrade to warnings; only the
// initial snapshot fetches are fatal.
func (s *Service) Teardown(ctx context.Context, resolver *hierarchy.Resolver) error {
	ordered, err := resolver.Order()
	if err != nil {
		return err
	}
	inUse, err := resolver.AllPaths()
	if err != nil {
		return err
	}
	if err := s.trees.LoadSnapshot(ctx, remote.TreeAreas); err != nil {
		return err
	}
	if err := s.trees.LoadSnapshot(ctx, remote.TreeIterations); err != nil {
		return err
	}

	plan := denyPathsByTeam(resolver, ordered)
	for _, rec := range ordered {
		s.removeTeamPermissions(ctx, rec.Name, append(resolver.Paths(rec.Name), plan[rec.Name]...))
	}
	for _, rec := range ordered {
		s.clearMembership(ctx, rec)
	}
	for _, rec := range ordered {
		s.resetArea(ctx, rec)
	}

	// Children must go before their parents.
	for i := len(ordered) - 1; i >= 0; i-- {
		s.deleteTeam(ctx, ordered[i])
	}
	s.parkDefaultTeam(ctx)

	s.trees.DeleteDeepestFirst(ctx, remote.TreeAreas, inUse, true)

	var iterations []string
	for _, rec := range ordered {
		iterations = append(iterations, rec.IterationSpecs...)
	}
	s.trees.DeleteDeepestFirst(ctx, remote.TreeIterations, iterations, false)
	return nil
}

// denyPathsByTeam mirrors the forward deny plan so teardown can clear the
// deny entries each team's groups hold on other teams' paths.
func denyPathsByTeam(resolver *hierarchy.Resolver, ordered []*domain.TeamRecord) map[string][]string {
	teamPaths := make([]security.TeamPaths, 0, len(ordered))
	for _, rec := range ordered {
		teamPaths = append(teamPaths, security.TeamPaths{Team: rec.Name, Paths: resolver.Paths(rec.Name)})
	}
	byTeam := make(map[string][]string)
	for _, entry := range security.DenyPlan(teamPaths) {
		byTeam[entry.OwnerTeam] = append(byTeam[entry.OwnerTeam], entry.Path)
	}
	return byTeam
}

// removeTeamPermissions strips the team's access-control entries from every
// path its groups touch, then deletes the three groups.
func (s *Service) removeTeamPermissions(ctx context.Context, teamName string, paths []string) {
	for _, groupName := range []string{domain.ReaderGroupName(teamName), domain.WriterGroupName(teamName)} {
		group, ok, err := s.security.LookupGroup(ctx, groupName)
		if err != nil {
			s.logger.Warn("could not resolve group", "group", groupName, "error", err)
			return
		}
		if !ok {
			continue
		}
		identity, err := s.security.Identity(ctx, group.Descriptor)
		if err != nil {
			s.logger.Warn("could not resolve group identity", "group", groupName, "error", err)
			continue
		}
		for _, p := range paths {
			s.removeEntries(ctx, p, identity, groupName)
		}
	}
	for _, groupName := range domain.GroupNames(teamName) {
		s.deleteGroup(ctx, groupName)
	}
}

func (s *Service) removeEntries(ctx context.Context, path, identity, groupName string) {
	if !s.trees.Known(remote.TreeAreas, path) {
		return
	}
	token, err := s.security.Token(ctx, path)
	if err != nil {
		s.logger.Warn("could not resolve token", "path", path, "error", err)
		return
	}
	if s.dryRun {
		s.logger.Info("would remove access entries", "group", groupName, "path", path)
		return
	}
	if err := s.security.RemoveEntries(ctx, token, identity); err != nil {
		s.logger.Warn("could not remove access entries", "group", groupName, "path", path, "error", err)
	}
}

func (s *Service) deleteGroup(ctx context.Context, groupName string) {
	group, ok, err := s.security.LookupGroup(ctx, groupName)
	if err != nil || !ok {
		return
	}
	if s.dryRun {
		s.logger.Info("would delete group", "group", groupName)
		return
	}
	if err := s.directory.DeleteGroup(ctx, group.Descriptor); err != nil && !errors.Is(err, remote.ErrNotFound) {
		s.logger.Warn("could not delete group", "group", groupName, "error", err)
		return
	}
	s.logger.Info("deleted group", "group", groupName)
}

func (s *Service) clearMembership(ctx context.Context, rec *domain.TeamRecord) {
	if rec.Identity == "" {
		return
	}
	members, err := s.directory.ListTeamMembers(ctx, rec.Identity)
	if err != nil {
		s.logger.Warn("could not list members", "team", rec.Name, "error", err)
		return
	}
	for _, m := range members {
		if s.dryRun {
			s.logger.Info("would remove member", "team", rec.Name, "email", m.Email)
			continue
		}
		if err := s.directory.RemoveTeamMember(ctx, rec.Identity, m.Descriptor); err != nil {
			s.logger.Warn("could not remove member", "team", rec.Name, "email", m.Email, "error", err)
		}
	}
}

// resetArea points the team back at the tree root; a team can never be left
// without a path assignment.
func (s *Service) resetArea(ctx context.Context, rec *domain.TeamRecord) {
	if rec.Identity == "" {
		return
	}
	if s.dryRun {
		s.logger.Info("would reset area", "team", rec.Name)
		return
	}
	if err := s.directory.UpdateTeamDefaultArea(ctx, rec.Identity, ""); err != nil {
		s.logger.Warn("could not reset area", "team", rec.Name, "error", err)
	}
}

func (s *Service) deleteTeam(ctx context.Context, rec *domain.TeamRecord) {
	if rec.Identity == "" {
		return
	}
	if rec.Name == s.project {
		// The project default team is parked, never deleted.
		return
	}
	if s.dryRun {
		s.logger.Info("would delete team", "team", rec.Name)
		return
	}
	if err := s.directory.DeleteTeam(ctx, rec.Identity); err != nil && !errors.Is(err, remote.ErrNotFound) {
		s.logger.Warn("could not delete team", "team", rec.Name, "error", err)
		return
	}
	s.logger.Info("deleted team", "team", rec.Name)
}

// parkDefaultTeam renames the undeletable project default team to the
// sentinel name, resets its path to the root, and replaces its membership
// with the designated owner. A stale team already holding the sentinel name
// is deleted first.
func (s *Service) parkDefaultTeam(ctx context.Context) {
	teams, err := s.directory.ListTeams(ctx)
	if err != nil {
		s.logger.Warn("could not list teams for default-team handling", "error", err)
		return
	}
	var defaultTeam *domain.Team
	for i := range teams {
		t := teams[i]
		switch t.Name {
		case s.sentinelTeam:
			if s.dryRun {
				s.logger.Info("would delete stale sentinel team", "team", t.Name)
				continue
			}
			if err := s.directory.DeleteTeam(ctx, t.ID); err != nil {
				s.logger.Warn("could not delete stale sentinel team", "team", t.Name, "error", err)
			}
		case s.project:
			defaultTeam = &teams[i]
		}
	}
	if defaultTeam == nil {
		return
	}
	if s.dryRun {
		s.logger.Info("would park default team", "team", defaultTeam.Name, "sentinel", s.sentinelTeam)
		return
	}
	if _, err := s.directory.UpdateTeam(ctx, defaultTeam.ID, s.sentinelTeam, "Parked default team"); err != nil {
		s.logger.Warn("could not rename default team", "team", defaultTeam.Name, "error", err)
		return
	}
	if err := s.directory.UpdateTeamDefaultArea(ctx, defaultTeam.ID, ""); err != nil {
		s.logger.Warn("could not reset default team area", "error", err)
	}
	s.replaceMembershipWithOwner(ctx, defaultTeam.ID)
	s.logger.Info("parked default team", "sentinel", s.sentinelTeam)
}

func (s *Service) replaceMembershipWithOwner(ctx context.Context, teamID string) {
	owner, err := s.directory.FindUserByEmail(ctx, s.ownerEmail)
	if err != nil {
		s.logger.Warn("could not resolve designated owner", "email", s.ownerEmail, "error", err)
		return
	}
	if err := s.directory.AddTeamMember(ctx, teamID, owner.Descriptor); err != nil && !errors.Is(err, remote.ErrAlreadyExists) {
		s.logger.Warn("could not add designated owner", "email", s.ownerEmail, "error", err)
	}
	current, err := s.directory.ListTeamMembers(ctx, teamID)
	if err != nil {
		s.logger.Warn("could not list default team members", "error", err)
		return
	}
	diff := membership.Compute([]string{s.ownerEmail}, current)
	for _, m := range diff.ToRemove {
		if err := s.directory.RemoveTeamMember(ctx, teamID, m.Descriptor); err != nil {
			s.logger.Warn("could not remove default team member", "email", m.Email, "error", err)
		}
	}
}

// RenameCleanup removes what a rename leaves behind: the access entries and
// groups derived from the old name, and the old default path when nothing
// uses it anymore. The old default path is reconstructed by swapping the
// old name back in for the final segment of the new default path.
func (s *Service) RenameCleanup(ctx context.Context, resolver *hierarchy.Resolver, renames []domain.RenameEvent) {
	if len(renames) == 0 {
		return
	}
	inUse, err := resolver.AllPaths()
	if err != nil {
		s.logger.Warn("could not resolve in-use paths for rename cleanup", "error", err)
		return
	}
	for _, rename := range renames {
		s.cleanupRename(ctx, resolver, rename, inUse)
	}
}

func (s *Service) cleanupRename(ctx context.Context, resolver *hierarchy.Resolver, rename domain.RenameEvent, inUse []string) {
	oldPath := oldDefaultPath(resolver.DefaultPath(rename.NewName), rename.OldName, rename.NewName)

	for _, groupName := range []string{domain.ReaderGroupName(rename.OldName), domain.WriterGroupName(rename.OldName)} {
		group, ok, err := s.security.LookupGroup(ctx, groupName)
		if err != nil {
			s.logger.Warn("could not resolve stale group", "group", groupName, "error", err)
			return
		}
		if !ok {
			continue
		}
		identity, err := s.security.Identity(ctx, group.Descriptor)
		if err != nil {
			s.logger.Warn("could not resolve stale group identity", "group", groupName, "error", err)
			continue
		}
		if oldPath != "" && s.trees.Known(remote.TreeAreas, oldPath) {
			s.removeEntries(ctx, oldPath, identity, groupName)
		}
	}
	for _, groupName := range domain.GroupNames(rename.OldName) {
		s.deleteGroup(ctx, groupName)
	}

	if oldPath == "" || stillInUse(oldPath, inUse) {
		return
	}
	if !s.trees.Known(remote.TreeAreas, oldPath) {
		return
	}
	if s.dryRun {
		s.logger.Info("would delete stale default path", "path", oldPath, "team", rename.OldName)
		return
	}
	if err := s.trees.Delete(ctx, remote.TreeAreas, oldPath); err != nil {
		s.logger.Warn("could not delete stale default path", "path", oldPath, "error", err)
		return
	}
	s.logger.Info("deleted stale default path", "path", oldPath, "team", rename.OldName)
}

// oldDefaultPath reconstructs the pre-rename default path. The default path
// always ends with the team's own name, so only the final segment is
// substituted; occurrences of the new name in ancestor segments are left
// alone.
func oldDefaultPath(newDefault, oldName, newName string) string {
	segments := domain.SplitPath(newDefault)
	if len(segments) == 0 || segments[len(segments)-1] != newName {
		return strings.Replace(newDefault, newName, oldName, 1)
	}
	segments[len(segments)-1] = oldName
	return domain.JoinPath(segments...)
}

func stillInUse(path string, inUse []string) bool {
	for _, p := range inUse {
		if p == path || domain.IsStrictDescendant(p, path) {
			return true
		}
	}
	return false
}
