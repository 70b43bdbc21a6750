// Package reconciler drives a forward run: teams first, then trees, then
// memberships and permissions, in the strict sequential order the remote's
// read-your-own-writes behavior requires.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zuercheram/DevopsAutomate/internal/domain"
	"github.com/zuercheram/DevopsAutomate/internal/remote"
	"github.com/zuercheram/DevopsAutomate/internal/service/hierarchy"
	"github.com/zuercheram/DevopsAutomate/internal/service/lifecycle"
	"github.com/zuercheram/DevopsAutomate/internal/service/membership"
	"github.com/zuercheram/DevopsAutomate/internal/service/security"
	"github.com/zuercheram/DevopsAutomate/internal/service/tree"
)

// Reconciler owns the collaborator services of one forward run.
type Reconciler struct {
	directory  remote.DirectoryService
	trees      *tree.Service
	security   *security.Service
	lifecycle  lifecycle.Service
	membership *membership.Service
	logger     *slog.Logger
	dryRun     bool
}

// New wires a Reconciler from its collaborator services.
func New(directory remote.DirectoryService, trees *tree.Service, sec *security.Service, lc lifecycle.Service, ms *membership.Service, logger *slog.Logger, dryRun bool) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		directory:  directory,
		trees:      trees,
		security:   sec,
		lifecycle:  lc,
		membership: ms,
		logger:     logger.With("component", "reconciler"),
		dryRun:     dryRun,
	}
}

// Result reports what a forward run changed.
type Result struct {
	Renames []domain.RenameEvent
}

// Run executes the forward reconciliation over the validated record set.
// Record validation and snapshot fetches are fatal; everything after the
// first mutation degrades per item so one team cannot block the rest.
func (r *Reconciler) Run(ctx context.Context, resolver *hierarchy.Resolver) (Result, error) {
	ordered, err := resolver.Order()
	if err != nil {
		return Result{}, err
	}

	lcResult, err := r.lifecycle.Reconcile(ctx, ordered)
	if err != nil {
		return Result{}, fmt.Errorf("reconcile teams: %w", err)
	}

	if err := r.trees.LoadSnapshot(ctx, remote.TreeAreas); err != nil {
		return Result{}, err
	}
	if err := r.trees.LoadSnapshot(ctx, remote.TreeIterations); err != nil {
		return Result{}, err
	}

	inUse, err := resolver.AllPaths()
	if err != nil {
		return Result{}, err
	}
	for _, p := range inUse {
		if err := r.trees.EnsurePath(ctx, remote.TreeAreas, p); err != nil {
			return Result{}, err
		}
	}
	for _, rec := range ordered {
		for _, spec := range rec.IterationSpecs {
			if err := r.trees.EnsurePath(ctx, remote.TreeIterations, spec); err != nil {
				return Result{}, err
			}
		}
	}
	r.trees.PruneOrphanedDefaults(ctx, resolver, inUse)

	r.assignAreas(ctx, resolver, ordered)
	r.syncMemberships(ctx, ordered)
	r.applyPermissions(ctx, resolver, ordered)

	return Result{Renames: lcResult.Renames}, nil
}

// assignAreas points each team's work-item classification at its first
// resolved path.
func (r *Reconciler) assignAreas(ctx context.Context, resolver *hierarchy.Resolver, ordered []*domain.TeamRecord) {
	for _, rec := range ordered {
		paths := resolver.Paths(rec.Name)
		if len(paths) == 0 || rec.Identity == "" {
			continue
		}
		if r.dryRun {
			r.logger.Info("would assign area", "team", rec.Name, "path", paths[0])
			continue
		}
		if err := r.directory.UpdateTeamDefaultArea(ctx, rec.Identity, paths[0]); err != nil {
			r.logger.Error("could not assign area", "team", rec.Name, "path", paths[0], "error", err)
			continue
		}
		r.logger.Info("assigned area", "team", rec.Name, "path", paths[0])
	}
}

func (r *Reconciler) syncMemberships(ctx context.Context, ordered []*domain.TeamRecord) {
	for _, rec := range ordered {
		if err := r.membership.Sync(ctx, rec); err != nil {
			r.logger.Error("membership sync failed", "team", rec.Name, "error", err)
		}
	}
}

// applyPermissions grants each team access to its own paths, then applies
// the deny plan in a second pass once every team's paths are known.
func (r *Reconciler) applyPermissions(ctx context.Context, resolver *hierarchy.Resolver, ordered []*domain.TeamRecord) {
	teamPaths := make([]security.TeamPaths, 0, len(ordered))
	grants := make(map[string]security.TeamGrant, len(ordered))
	for _, rec := range ordered {
		paths := resolver.Paths(rec.Name)
		teamPaths = append(teamPaths, security.TeamPaths{Team: rec.Name, Paths: paths})
		grant, err := r.security.Grant(ctx, rec.Name, paths)
		if err != nil {
			r.logger.Error("permission grant failed", "team", rec.Name, "error", err)
			continue
		}
		grants[rec.Name] = grant
	}
	plan := security.DenyPlan(teamPaths)
	r.security.ApplyDenies(ctx, plan, grants)
}
