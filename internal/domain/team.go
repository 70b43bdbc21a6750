package domain

// TeamRecord is one desired team as declared in the input table. Identity is
// empty until the team has been created remotely at least once.
type TeamRecord struct {
	Identity        string
	Name            string
	ParentName      string
	Description     string
	CustomAreaSpecs []string
	MemberEmails    []string
	IterationSpecs  []string
}

// HasCustomAreas reports whether the record overrides its default
// hierarchy-derived area path.
func (r *TeamRecord) HasCustomAreas() bool {
	return len(r.CustomAreaSpecs) > 0
}

// Team is a team as it exists remotely.
type Team struct {
	ID          string
	Name        string
	Description string
}

// Member is a resolved team member from the directory.
type Member struct {
	Email      string
	Descriptor string
}

// Group is a directory group.
type Group struct {
	DisplayName string
	Descriptor  string
	Description string
}

// RenameEvent records that a team kept its identity while changing name
// during a forward run. Rename cleanup consumes these.
type RenameEvent struct {
	OldName string
	NewName string
}
