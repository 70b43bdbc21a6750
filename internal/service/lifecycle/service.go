// Package lifecycle matches declared team records against the remote team
// set and issues the create, rename and update calls that align them.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zuercheram/DevopsAutomate/internal/domain"
	"github.com/zuercheram/DevopsAutomate/internal/remote"
)

// Service reconciles team existence. Teams must exist before paths or
// permissions can be assigned, so this stage runs first.
type Service struct {
	directory remote.DirectoryService
	logger    *slog.Logger
	dryRun    bool
}

// New returns a lifecycle service.
func New(directory remote.DirectoryService, logger *slog.Logger, dryRun bool) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return Service{directory: directory, logger: logger.With("component", "lifecycle"), dryRun: dryRun}
}

// Result carries what later stages need from the lifecycle pass.
type Result struct {
	Renames []domain.RenameEvent
}

// Reconcile walks the records in processing order and settles each on one
// of three outcomes: create, update (rename or description), or no-op. A
// single team's failure is logged and skipped; it never blocks the rest.
// Afterwards every record still missing an identity is back-filled by name,
// which covers teams created moments earlier in this same pass.
func (s Service) Reconcile(ctx context.Context, ordered []*domain.TeamRecord) (Result, error) {
	teams, err := s.directory.ListTeams(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list teams: %w", err)
	}
	byID := make(map[string]domain.Team, len(teams))
	byName := make(map[string]domain.Team, len(teams))
	for _, t := range teams {
		byID[t.ID] = t
		byName[t.Name] = t
	}

	var result Result
	for _, rec := range ordered {
		existing, found := s.match(rec, byID, byName)
		if !found {
			created, err := s.create(ctx, rec)
			if err != nil {
				s.logger.Error("could not create team", "team", rec.Name, "error", err)
				continue
			}
			byID[created.ID] = created
			byName[created.Name] = created
			continue
		}

		rec.Identity = existing.ID
		if existing.Name == rec.Name && existing.Description == rec.Description {
			s.logger.Info("team up to date", "team", rec.Name)
			continue
		}
		if s.dryRun {
			s.logger.Info("would update team", "team", rec.Name, "id", existing.ID)
			if existing.Name != rec.Name {
				result.Renames = append(result.Renames, domain.RenameEvent{OldName: existing.Name, NewName: rec.Name})
			}
			continue
		}
		updated, err := s.directory.UpdateTeam(ctx, existing.ID, rec.Name, rec.Description)
		if err != nil {
			s.logger.Error("could not update team", "team", rec.Name, "id", existing.ID, "error", err)
			continue
		}
		if existing.Name != rec.Name {
			result.Renames = append(result.Renames, domain.RenameEvent{OldName: existing.Name, NewName: rec.Name})
			s.logger.Info("renamed team", "from", existing.Name, "to", rec.Name, "id", existing.ID)
		} else {
			s.logger.Info("updated team description", "team", rec.Name, "id", existing.ID)
		}
		delete(byName, existing.Name)
		byID[updated.ID] = updated
		byName[updated.Name] = updated
	}

	s.backfill(ctx, ordered)
	return result, nil
}

// match finds the remote team a record refers to: by identity when the
// record carries one that is still present, otherwise by exact name. A
// record whose identity is stale falls through to the name match, and from
// there to creation.
func (s Service) match(rec *domain.TeamRecord, byID, byName map[string]domain.Team) (domain.Team, bool) {
	if rec.Identity != "" {
		if t, ok := byID[rec.Identity]; ok {
			return t, true
		}
	}
	if t, ok := byName[rec.Name]; ok {
		return t, true
	}
	return domain.Team{}, false
}

func (s Service) create(ctx context.Context, rec *domain.TeamRecord) (domain.Team, error) {
	if s.dryRun {
		s.logger.Info("would create team", "team", rec.Name)
		return domain.Team{Name: rec.Name, Description: rec.Description}, nil
	}
	created, err := s.directory.CreateTeam(ctx, rec.Name, rec.Description)
	if err != nil {
		return domain.Team{}, err
	}
	rec.Identity = created.ID
	s.logger.Info("created team", "team", rec.Name, "id", created.ID)
	return created, nil
}

// backfill fills identities onto records that still lack one with a final
// name lookup against the remote set.
func (s Service) backfill(ctx context.Context, ordered []*domain.TeamRecord) {
	missing := false
	for _, rec := range ordered {
		if rec.Identity == "" {
			missing = true
			break
		}
	}
	if !missing || s.dryRun {
		return
	}
	teams, err := s.directory.ListTeams(ctx)
	if err != nil {
		s.logger.Warn("could not back-fill team identities", "error", err)
		return
	}
	byName := make(map[string]domain.Team, len(teams))
	for _, t := range teams {
		byName[t.Name] = t
	}
	for _, rec := range ordered {
		if rec.Identity != "" {
			continue
		}
		if t, ok := byName[rec.Name]; ok {
			rec.Identity = t.ID
		}
	}
}
