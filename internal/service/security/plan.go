package security

import "github.com/zuercheram/DevopsAutomate/internal/domain"

// TeamPaths pairs a team with the classification paths it owns.
type TeamPaths struct {
	Team  string
	Paths []string
}

// DenyEntry marks one descendant path a team's permission groups must carry
// an explicit deny on. The directory propagates allow grants down the tree,
// so denies on descendants are the only way to scope a grant to one node.
type DenyEntry struct {
	OwnerTeam string
	Path      string
}

// DenyPlan computes the full deny set: for every team T and every path some
// other team owns that is a strict descendant of one of T's paths, one
// entry (T, path). A team never denies its own paths, and entries are
// deduplicated. The plan requires every team's paths, so it is built in a
// second pass after path resolution completes.
func DenyPlan(teams []TeamPaths) []DenyEntry {
	var plan []DenyEntry
	seen := make(map[DenyEntry]bool)
	for _, owner := range teams {
		ownPaths := make(map[string]bool, len(owner.Paths))
		for _, p := range owner.Paths {
			ownPaths[p] = true
		}
		for _, other := range teams {
			if other.Team == owner.Team {
				continue
			}
			for _, p := range other.Paths {
				if ownPaths[p] {
					continue
				}
				if !hasStrictAncestor(p, owner.Paths) {
					continue
				}
				entry := DenyEntry{OwnerTeam: owner.Team, Path: p}
				if !seen[entry] {
					seen[entry] = true
					plan = append(plan, entry)
				}
			}
		}
	}
	return plan
}

func hasStrictAncestor(path string, ancestors []string) bool {
	for _, a := range ancestors {
		if domain.IsStrictDescendant(path, a) {
			return true
		}
	}
	return false
}
