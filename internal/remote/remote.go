package remote

import (
	"context"

	"github.com/zuercheram/DevopsAutomate/internal/domain"
)

// TreeKind selects the classification hierarchy an operation targets.
type TreeKind string

const (
	TreeAreas      TreeKind = "areas"
	TreeIterations TreeKind = "iterations"
)

// Node is one node of a classification tree, with its children nested.
type Node struct {
	ID       int
	Name     string
	Path     string
	Children []Node
}

// DirectoryService covers team, group, user and membership operations.
type DirectoryService interface {
	ListTeams(ctx context.Context) ([]domain.Team, error)
	CreateTeam(ctx context.Context, name, description string) (domain.Team, error)
	UpdateTeam(ctx context.Context, id, name, description string) (domain.Team, error)
	DeleteTeam(ctx context.Context, id string) error
	ListTeamMembers(ctx context.Context, teamID string) ([]domain.Member, error)
	AddTeamMember(ctx context.Context, teamID, memberDescriptor string) error
	RemoveTeamMember(ctx context.Context, teamID, memberDescriptor string) error
	UpdateTeamDefaultArea(ctx context.Context, teamID, areaPath string) error

	FindUserByEmail(ctx context.Context, email string) (domain.Member, error)
	ListGroups(ctx context.Context) ([]domain.Group, error)
	CreateGroup(ctx context.Context, displayName, description string) (domain.Group, error)
	DeleteGroup(ctx context.Context, descriptor string) error
	AddGroupMember(ctx context.Context, memberDescriptor, groupDescriptor string) error
	RemoveGroupMember(ctx context.Context, memberDescriptor, groupDescriptor string) error
	ResolveIdentityDescriptor(ctx context.Context, subjectDescriptor string) (string, error)
}

// ClassificationService covers hierarchical classification node operations.
type ClassificationService interface {
	GetTree(ctx context.Context, kind TreeKind) (Node, error)
	CreateNode(ctx context.Context, kind TreeKind, parentPath, name string) (Node, error)
	DeleteNode(ctx context.Context, kind TreeKind, path string, reclassifyToID int) error
	GetNodeByPath(ctx context.Context, kind TreeKind, path string) (Node, error)
}

// AccessControlService assigns and removes access-control entries on a node
// identified by an opaque security token.
type AccessControlService interface {
	SetAllow(ctx context.Context, token, identityDescriptor string, bits int) error
	SetDeny(ctx context.Context, token, identityDescriptor string, bits int) error
	RemoveEntries(ctx context.Context, token, identityDescriptor string) error
}
