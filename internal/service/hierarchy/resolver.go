// Package hierarchy validates the declared team forest and derives the
// parent-first processing order and per-team classification paths every
// later stage consumes.
package hierarchy

import (
	"errors"
	"fmt"

	"github.com/zuercheram/DevopsAutomate/internal/domain"
)

var (
	errEmptyName = errors.New("team name is required")
)

// Resolver answers ordering and path questions about one validated record
// set. Construct it once per run; it never mutates the records.
type Resolver struct {
	records []*domain.TeamRecord
	byName  map[string]*domain.TeamRecord
}

// New validates the record set and builds the name index. Validation
// failures abort the run before any remote mutation: every record needs a
// non-empty unique name, and every non-empty parent reference must resolve
// to another record.
func New(records []*domain.TeamRecord) (*Resolver, error) {
	byName := make(map[string]*domain.TeamRecord, len(records))
	for _, rec := range records {
		if rec.Name == "" {
			return nil, errEmptyName
		}
		if _, dup := byName[rec.Name]; dup {
			return nil, fmt.Errorf("duplicate team name %q", rec.Name)
		}
		byName[rec.Name] = rec
	}
	for _, rec := range records {
		if rec.ParentName == "" {
			continue
		}
		if _, ok := byName[rec.ParentName]; !ok {
			return nil, fmt.Errorf("team %q references unknown parent %q", rec.Name, rec.ParentName)
		}
	}
	r := &Resolver{records: records, byName: byName}
	if _, err := r.Order(); err != nil {
		return nil, err
	}
	return r, nil
}

// Lookup returns the record with the given name, or nil.
func (r *Resolver) Lookup(name string) *domain.TeamRecord {
	return r.byName[name]
}

// Records returns the record set in input order.
func (r *Resolver) Records() []*domain.TeamRecord {
	return r.records
}

// Order returns every record in a parent-before-child total order. The walk
// visits each record's ancestor chain before the record itself, memoized by
// a visited set, so the result is deterministic for a given input order. A
// parent cycle is reported instead of looping forever.
func (r *Resolver) Order() ([]*domain.TeamRecord, error) {
	visited := make(map[string]bool, len(r.records))
	ordered := make([]*domain.TeamRecord, 0, len(r.records))

	var visit func(rec *domain.TeamRecord, trail map[string]bool) error
	visit = func(rec *domain.TeamRecord, trail map[string]bool) error {
		if visited[rec.Name] {
			return nil
		}
		if trail[rec.Name] {
			return fmt.Errorf("parent cycle involving team %q", rec.Name)
		}
		trail[rec.Name] = true
		if rec.ParentName != "" {
			if err := visit(r.byName[rec.ParentName], trail); err != nil {
				return err
			}
		}
		delete(trail, rec.Name)
		visited[rec.Name] = true
		ordered = append(ordered, rec)
		return nil
	}

	for _, rec := range r.records {
		if err := visit(rec, map[string]bool{}); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}

// DefaultPath derives the hierarchy path for a team: the chain of ancestor
// names from the root down to and including the team itself.
func (r *Resolver) DefaultPath(teamName string) string {
	var chain []string
	for name := teamName; name != ""; {
		rec := r.byName[name]
		if rec == nil {
			break
		}
		chain = append([]string{rec.Name}, chain...)
		name = rec.ParentName
	}
	return domain.JoinPath(chain...)
}

// Paths resolves the classification paths a team owns. Without custom
// specs the team owns exactly its default path. Each custom spec is either
// absolute (contains a separator, taken verbatim from the project root) or
// relative (nested under the parent's default path; for a root team the
// spec becomes a root-level path itself).
func (r *Resolver) Paths(teamName string) []string {
	rec := r.byName[teamName]
	if rec == nil {
		return nil
	}
	if !rec.HasCustomAreas() {
		return []string{r.DefaultPath(teamName)}
	}
	paths := make([]string, 0, len(rec.CustomAreaSpecs))
	for _, spec := range rec.CustomAreaSpecs {
		if domain.IsSpecAbsolute(spec) {
			paths = append(paths, domain.NormalizePath(spec))
			continue
		}
		if rec.ParentName == "" {
			paths = append(paths, domain.NormalizePath(spec))
			continue
		}
		paths = append(paths, domain.JoinPath(r.DefaultPath(rec.ParentName), spec))
	}
	return paths
}

// AllPaths is the union of every team's resolved paths, in processing
// order. This is the "in use" set orphan pruning and deny planning consume.
func (r *Resolver) AllPaths() ([]string, error) {
	ordered, err := r.Order()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var all []string
	for _, rec := range ordered {
		for _, p := range r.Paths(rec.Name) {
			if !seen[p] {
				seen[p] = true
				all = append(all, p)
			}
		}
	}
	return all, nil
}
