package domain

import "strings"

// Deterministic display-name prefixes for the groups carried by every team.
const (
	ReaderGroupPrefix      = "perm-item-reader-"
	WriterGroupPrefix      = "perm-item-writer-"
	ContributorGroupPrefix = "role-external-contributor-"
)

// Work-item capability bits understood by the access control service. The
// writer grant always combines edit with edit-comments.
const (
	CapabilityView         = 16
	CapabilityEdit         = 32
	CapabilityEditComments = 512
	CapabilityWrite        = CapabilityEdit | CapabilityEditComments
)

// GroupSlug derives the deterministic name fragment for a team: lower-cased,
// whitespace replaced with hyphens.
func GroupSlug(teamName string) string {
	return strings.Join(strings.Fields(strings.ToLower(teamName)), "-")
}

// ReaderGroupName returns the display name of the team's reader permission group.
func ReaderGroupName(teamName string) string {
	return ReaderGroupPrefix + GroupSlug(teamName)
}

// WriterGroupName returns the display name of the team's writer permission group.
func WriterGroupName(teamName string) string {
	return WriterGroupPrefix + GroupSlug(teamName)
}

// ContributorGroupName returns the display name of the team's role group. The
// role group carries no access-control entries; it is a member of both
// permission groups.
func ContributorGroupName(teamName string) string {
	return ContributorGroupPrefix + GroupSlug(teamName)
}

// GroupNames lists all three deterministic display names for a team.
func GroupNames(teamName string) []string {
	return []string{
		ReaderGroupName(teamName),
		WriterGroupName(teamName),
		ContributorGroupName(teamName),
	}
}
