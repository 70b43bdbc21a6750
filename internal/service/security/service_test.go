package security

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/zuercheram/DevopsAutomate/internal/domain"
	"github.com/zuercheram/DevopsAutomate/internal/remote"
)

type fakeGraph struct {
	fakeDirectory
	groups      []domain.Group
	createCalls []string
	memberCalls []string
}

func (f *fakeGraph) ListGroups(ctx context.Context) ([]domain.Group, error) {
	return f.groups, nil
}

func (f *fakeGraph) CreateGroup(ctx context.Context, displayName, description string) (domain.Group, error) {
	f.createCalls = append(f.createCalls, displayName)
	g := domain.Group{DisplayName: displayName, Descriptor: "desc-" + displayName, Description: description}
	f.groups = append(f.groups, g)
	return g, nil
}

func (f *fakeGraph) AddGroupMember(ctx context.Context, memberDescriptor, groupDescriptor string) error {
	f.memberCalls = append(f.memberCalls, memberDescriptor+"->"+groupDescriptor)
	return nil
}

func (f *fakeGraph) ResolveIdentityDescriptor(ctx context.Context, subjectDescriptor string) (string, error) {
	return "identity-" + subjectDescriptor, nil
}

type fakeNodeIDs struct {
	ids map[string]int
}

func (f *fakeNodeIDs) GetTree(ctx context.Context, kind remote.TreeKind) (remote.Node, error) {
	return remote.Node{}, nil
}

func (f *fakeNodeIDs) CreateNode(ctx context.Context, kind remote.TreeKind, parentPath, name string) (remote.Node, error) {
	return remote.Node{}, nil
}

func (f *fakeNodeIDs) DeleteNode(ctx context.Context, kind remote.TreeKind, path string, reclassifyToID int) error {
	return nil
}

func (f *fakeNodeIDs) GetNodeByPath(ctx context.Context, kind remote.TreeKind, path string) (remote.Node, error) {
	id, ok := f.ids[path]
	if !ok {
		return remote.Node{}, fmt.Errorf("node %q: %w", path, remote.ErrNotFound)
	}
	return remote.Node{ID: id, Path: path}, nil
}

type aclCall struct {
	op       string
	token    string
	identity string
	bits     int
}

type fakeACL struct {
	calls []aclCall
}

func (f *fakeACL) SetAllow(ctx context.Context, token, identityDescriptor string, bits int) error {
	f.calls = append(f.calls, aclCall{"allow", token, identityDescriptor, bits})
	return nil
}

func (f *fakeACL) SetDeny(ctx context.Context, token, identityDescriptor string, bits int) error {
	f.calls = append(f.calls, aclCall{"deny", token, identityDescriptor, bits})
	return nil
}

func (f *fakeACL) RemoveEntries(ctx context.Context, token, identityDescriptor string) error {
	f.calls = append(f.calls, aclCall{"remove", token, identityDescriptor, 0})
	return nil
}

func newTestService(graph *fakeGraph, nodes *fakeNodeIDs, acl *fakeACL) *Service {
	return New(graph, nodes, acl, slog.Default(), false)
}

func TestTokenChainsNodeIdentifiersFromRoot(t *testing.T) {
	nodes := &fakeNodeIDs{ids: map[string]int{"": 1, "Alpha": 7, `Alpha\Bravo`: 9}}
	svc := newTestService(&fakeGraph{}, nodes, &fakeACL{})

	token, err := svc.Token(context.Background(), `Alpha\Bravo`)
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if token != "1:7:9" {
		t.Fatalf("token = %q, want 1:7:9", token)
	}
}

func TestEnsureGroupsCreatesMissingAndLinksRole(t *testing.T) {
	graph := &fakeGraph{}
	svc := newTestService(graph, &fakeNodeIDs{}, &fakeACL{})

	reader, writer, err := svc.EnsureGroups(context.Background(), "Platform Team")
	if err != nil {
		t.Fatalf("EnsureGroups: %v", err)
	}
	if reader.DisplayName != "perm-item-reader-platform-team" {
		t.Errorf("reader = %q", reader.DisplayName)
	}
	if writer.DisplayName != "perm-item-writer-platform-team" {
		t.Errorf("writer = %q", writer.DisplayName)
	}
	if len(graph.createCalls) != 3 {
		t.Fatalf("create calls = %v, want 3", graph.createCalls)
	}
	if len(graph.memberCalls) != 2 {
		t.Fatalf("role link calls = %v, want 2", graph.memberCalls)
	}
}

func TestEnsureGroupsFindsExistingByDisplayName(t *testing.T) {
	graph := &fakeGraph{groups: []domain.Group{
		{DisplayName: "perm-item-reader-alpha", Descriptor: "r"},
		{DisplayName: "perm-item-writer-alpha", Descriptor: "w"},
		{DisplayName: "role-external-contributor-alpha", Descriptor: "c"},
	}}
	svc := newTestService(graph, &fakeNodeIDs{}, &fakeACL{})

	if _, _, err := svc.EnsureGroups(context.Background(), "Alpha"); err != nil {
		t.Fatalf("EnsureGroups: %v", err)
	}
	if len(graph.createCalls) != 0 {
		t.Fatalf("expected idempotent lookup, created %v", graph.createCalls)
	}
}

func TestGrantAppliesAllowBits(t *testing.T) {
	graph := &fakeGraph{}
	nodes := &fakeNodeIDs{ids: map[string]int{"": 1, "Alpha": 7}}
	acl := &fakeACL{}
	svc := newTestService(graph, nodes, acl)

	grant, err := svc.Grant(context.Background(), "Alpha", []string{"Alpha"})
	if err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if len(acl.calls) != 2 {
		t.Fatalf("acl calls = %v, want 2", acl.calls)
	}
	if acl.calls[0] != (aclCall{"allow", "1:7", grant.ReaderIdentity, domain.CapabilityView}) {
		t.Errorf("reader allow = %+v", acl.calls[0])
	}
	if acl.calls[1] != (aclCall{"allow", "1:7", grant.WriterIdentity, domain.CapabilityWrite}) {
		t.Errorf("writer allow = %+v", acl.calls[1])
	}
}

func TestApplyDeniesSkipsTeamsWithoutGrant(t *testing.T) {
	acl := &fakeACL{}
	nodes := &fakeNodeIDs{ids: map[string]int{"": 1, "Alpha": 7, `Alpha\Bravo`: 9}}
	svc := newTestService(&fakeGraph{}, nodes, acl)

	plan := []DenyEntry{{OwnerTeam: "Alpha", Path: `Alpha\Bravo`}}
	grants := map[string]TeamGrant{
		"Alpha": {Team: "Alpha", ReaderIdentity: "rid", WriterIdentity: "wid"},
	}
	svc.ApplyDenies(context.Background(), plan, grants)
	if len(acl.calls) != 2 {
		t.Fatalf("acl calls = %v, want reader and writer denies", acl.calls)
	}

	acl.calls = nil
	svc.ApplyDenies(context.Background(), plan, map[string]TeamGrant{})
	if len(acl.calls) != 0 {
		t.Fatalf("denies applied without grant: %v", acl.calls)
	}
}

// fakeDirectory supplies no-op defaults for directory methods tests do not
// exercise.
type fakeDirectory struct{}

func (fakeDirectory) ListTeams(ctx context.Context) ([]domain.Team, error) { return nil, nil }
func (fakeDirectory) CreateTeam(ctx context.Context, name, description string) (domain.Team, error) {
	return domain.Team{}, nil
}
func (fakeDirectory) UpdateTeam(ctx context.Context, id, name, description string) (domain.Team, error) {
	return domain.Team{}, nil
}
func (fakeDirectory) DeleteTeam(ctx context.Context, id string) error { return nil }
func (fakeDirectory) ListTeamMembers(ctx context.Context, teamID string) ([]domain.Member, error) {
	return nil, nil
}
func (fakeDirectory) AddTeamMember(ctx context.Context, teamID, memberDescriptor string) error {
	return nil
}
func (fakeDirectory) RemoveTeamMember(ctx context.Context, teamID, memberDescriptor string) error {
	return nil
}
func (fakeDirectory) UpdateTeamDefaultArea(ctx context.Context, teamID, areaPath string) error {
	return nil
}
func (fakeDirectory) FindUserByEmail(ctx context.Context, email string) (domain.Member, error) {
	return domain.Member{}, nil
}
func (fakeDirectory) ListGroups(ctx context.Context) ([]domain.Group, error) { return nil, nil }
func (fakeDirectory) CreateGroup(ctx context.Context, displayName, description string) (domain.Group, error) {
	return domain.Group{}, nil
}
func (fakeDirectory) DeleteGroup(ctx context.Context, descriptor string) error { return nil }
func (fakeDirectory) AddGroupMember(ctx context.Context, memberDescriptor, groupDescriptor string) error {
	return nil
}
func (fakeDirectory) RemoveGroupMember(ctx context.Context, memberDescriptor, groupDescriptor string) error {
	return nil
}
func (fakeDirectory) ResolveIdentityDescriptor(ctx context.Context, subjectDescriptor string) (string, error) {
	return "", nil
}
