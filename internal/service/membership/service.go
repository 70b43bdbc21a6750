// Package membership computes and applies team roster changes.
package membership

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zuercheram/DevopsAutomate/internal/domain"
	"github.com/zuercheram/DevopsAutomate/internal/remote"
)

// Diff is the disjoint change set between a desired and a current roster.
// Emails are compared case-insensitively.
type Diff struct {
	ToAdd    []string
	ToRemove []domain.Member
}

// Compute diffs the desired email set against the currently resolved
// members. Desired order is preserved in ToAdd.
func Compute(desired []string, current []domain.Member) Diff {
	currentSet := make(map[string]bool, len(current))
	for _, m := range current {
		currentSet[strings.ToLower(m.Email)] = true
	}
	desiredSet := make(map[string]bool, len(desired))
	var diff Diff
	for _, email := range desired {
		key := strings.ToLower(email)
		if desiredSet[key] {
			continue
		}
		desiredSet[key] = true
		if !currentSet[key] {
			diff.ToAdd = append(diff.ToAdd, email)
		}
	}
	for _, m := range current {
		if !desiredSet[strings.ToLower(m.Email)] {
			diff.ToRemove = append(diff.ToRemove, m)
		}
	}
	return diff
}

// Service applies roster diffs through the directory.
type Service struct {
	directory remote.DirectoryService
	logger    *slog.Logger
	dryRun    bool

	contributorsName string
	contributors     string
	contributorsOK   bool
	contributorsTry  bool
}

// New returns a membership service. contributorsName is the display name of
// the global group every added member is mirrored into for baseline access.
func New(directory remote.DirectoryService, logger *slog.Logger, contributorsName string, dryRun bool) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		directory:        directory,
		logger:           logger.With("component", "membership"),
		dryRun:           dryRun,
		contributorsName: contributorsName,
	}
}

// Sync brings one team's roster in line with its record. Additions are
// applied before removals so the team never transiently drops below its
// intended membership. A failed lookup or mutation for one member is logged
// and skipped.
func (s *Service) Sync(ctx context.Context, rec *domain.TeamRecord) error {
	if rec.Identity == "" {
		return fmt.Errorf("team %s has no identity", rec.Name)
	}
	current, err := s.directory.ListTeamMembers(ctx, rec.Identity)
	if err != nil {
		return fmt.Errorf("list members of %s: %w", rec.Name, err)
	}
	diff := Compute(rec.MemberEmails, current)

	for _, email := range diff.ToAdd {
		user, err := s.directory.FindUserByEmail(ctx, email)
		if err != nil {
			s.logger.Warn("member not found in directory", "team", rec.Name, "email", email, "error", err)
			continue
		}
		if s.dryRun {
			s.logger.Info("would add member", "team", rec.Name, "email", email)
			continue
		}
		if err := s.directory.AddTeamMember(ctx, rec.Identity, user.Descriptor); err != nil {
			s.logger.Warn("could not add member", "team", rec.Name, "email", email, "error", err)
			continue
		}
		s.logger.Info("added member", "team", rec.Name, "email", email)
		s.mirrorContributor(ctx, user)
	}

	for _, member := range diff.ToRemove {
		if s.dryRun {
			s.logger.Info("would remove member", "team", rec.Name, "email", member.Email)
			continue
		}
		if err := s.directory.RemoveTeamMember(ctx, rec.Identity, member.Descriptor); err != nil {
			s.logger.Warn("could not remove member", "team", rec.Name, "email", member.Email, "error", err)
			continue
		}
		s.logger.Info("removed member", "team", rec.Name, "email", member.Email)
	}
	return nil
}

// mirrorContributor adds the user to the global contributors group when
// that group resolves. Failure here costs baseline access only, so it is a
// warning, never fatal.
func (s *Service) mirrorContributor(ctx context.Context, user domain.Member) {
	descriptor, ok := s.resolveContributors(ctx)
	if !ok {
		return
	}
	if err := s.directory.AddGroupMember(ctx, user.Descriptor, descriptor); err != nil {
		s.logger.Warn("could not mirror member into contributors group", "email", user.Email, "error", err)
	}
}

func (s *Service) resolveContributors(ctx context.Context) (string, bool) {
	if s.contributorsTry {
		return s.contributors, s.contributorsOK
	}
	s.contributorsTry = true
	if s.contributorsName == "" {
		return "", false
	}
	groups, err := s.directory.ListGroups(ctx)
	if err != nil {
		s.logger.Warn("could not list groups for contributors mirror", "error", err)
		return "", false
	}
	for _, g := range groups {
		if g.DisplayName == s.contributorsName {
			s.contributors = g.Descriptor
			s.contributorsOK = true
			return s.contributors, true
		}
	}
	s.logger.Warn("contributors group not found", "group", s.contributorsName)
	return "", false
}
