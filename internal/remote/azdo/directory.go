package azdo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/zuercheram/DevopsAutomate/internal/domain"
	"github.com/zuercheram/DevopsAutomate/internal/remote"
)

type teamPayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (p teamPayload) toDomain() domain.Team {
	return domain.Team{ID: p.ID, Name: p.Name, Description: p.Description}
}

type listResponse[T any] struct {
	Count int `json:"count"`
	Value []T `json:"value"`
}

// ListTeams returns every team in the project.
func (c *Client) ListTeams(ctx context.Context) ([]domain.Team, error) {
	var resp listResponse[teamPayload]
	path := fmt.Sprintf("/_apis/projects/%s/teams", url.PathEscape(c.project))
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &resp); err != nil {
		return nil, err
	}
	teams := make([]domain.Team, 0, len(resp.Value))
	for _, t := range resp.Value {
		teams = append(teams, t.toDomain())
	}
	return teams, nil
}

// CreateTeam provisions a team and returns it with its assigned identity.
func (c *Client) CreateTeam(ctx context.Context, name, description string) (domain.Team, error) {
	body := teamPayload{Name: name, Description: description}
	var resp teamPayload
	path := fmt.Sprintf("/_apis/projects/%s/teams", url.PathEscape(c.project))
	if err := c.do(ctx, http.MethodPost, path, nil, body, &resp); err != nil {
		return domain.Team{}, err
	}
	return resp.toDomain(), nil
}

// UpdateTeam changes a team's name and/or description.
func (c *Client) UpdateTeam(ctx context.Context, id, name, description string) (domain.Team, error) {
	body := teamPayload{Name: name, Description: description}
	var resp teamPayload
	path := fmt.Sprintf("/_apis/projects/%s/teams/%s", url.PathEscape(c.project), url.PathEscape(id))
	if err := c.do(ctx, http.MethodPatch, path, nil, body, &resp); err != nil {
		return domain.Team{}, err
	}
	return resp.toDomain(), nil
}

// DeleteTeam removes a team by identity.
func (c *Client) DeleteTeam(ctx context.Context, id string) error {
	path := fmt.Sprintf("/_apis/projects/%s/teams/%s", url.PathEscape(c.project), url.PathEscape(id))
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

type memberPayload struct {
	Identity struct {
		UniqueName string `json:"uniqueName"`
		Descriptor string `json:"descriptor"`
	} `json:"identity"`
}

// ListTeamMembers resolves the current roster of a team.
func (c *Client) ListTeamMembers(ctx context.Context, teamID string) ([]domain.Member, error) {
	var resp listResponse[memberPayload]
	path := fmt.Sprintf("/_apis/projects/%s/teams/%s/members", url.PathEscape(c.project), url.PathEscape(teamID))
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &resp); err != nil {
		return nil, err
	}
	members := make([]domain.Member, 0, len(resp.Value))
	for _, m := range resp.Value {
		members = append(members, domain.Member{Email: m.Identity.UniqueName, Descriptor: m.Identity.Descriptor})
	}
	return members, nil
}

// AddTeamMember adds an identity to a team's roster.
func (c *Client) AddTeamMember(ctx context.Context, teamID, memberDescriptor string) error {
	path := fmt.Sprintf("/_apis/projects/%s/teams/%s/members/%s",
		url.PathEscape(c.project), url.PathEscape(teamID), url.PathEscape(memberDescriptor))
	return c.do(ctx, http.MethodPut, path, nil, nil, nil)
}

// RemoveTeamMember removes an identity from a team's roster.
func (c *Client) RemoveTeamMember(ctx context.Context, teamID, memberDescriptor string) error {
	path := fmt.Sprintf("/_apis/projects/%s/teams/%s/members/%s",
		url.PathEscape(c.project), url.PathEscape(teamID), url.PathEscape(memberDescriptor))
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// UpdateTeamDefaultArea points the team's work-item classification at the
// given area path. Pass an empty path to reset the team to the project root.
func (c *Client) UpdateTeamDefaultArea(ctx context.Context, teamID, areaPath string) error {
	body := map[string]string{"defaultValue": areaPath}
	path := fmt.Sprintf("/%s/%s/_apis/work/teamsettings/teamfieldvalues",
		url.PathEscape(c.project), url.PathEscape(teamID))
	return c.do(ctx, http.MethodPatch, path, nil, body, nil)
}

type userPayload struct {
	PrincipalName string `json:"principalName"`
	Descriptor    string `json:"descriptor"`
}

// FindUserByEmail looks a directory user up by principal name.
func (c *Client) FindUserByEmail(ctx context.Context, email string) (domain.Member, error) {
	query := url.Values{}
	query.Set("filterValue", email)
	query.Set("subjectTypes", "aad,msa")
	var resp listResponse[userPayload]
	if err := c.do(ctx, http.MethodGet, "/_apis/graph/users", query, nil, &resp); err != nil {
		return domain.Member{}, err
	}
	for _, u := range resp.Value {
		if strings.EqualFold(u.PrincipalName, email) {
			return domain.Member{Email: u.PrincipalName, Descriptor: u.Descriptor}, nil
		}
	}
	return domain.Member{}, fmt.Errorf("user %s: %w", email, remote.ErrNotFound)
}

type groupPayload struct {
	DisplayName string `json:"displayName"`
	Descriptor  string `json:"descriptor"`
	Description string `json:"description"`
}

// ListGroups returns every directory group in the project scope.
func (c *Client) ListGroups(ctx context.Context) ([]domain.Group, error) {
	var resp listResponse[groupPayload]
	if err := c.do(ctx, http.MethodGet, "/_apis/graph/groups", nil, nil, &resp); err != nil {
		return nil, err
	}
	groups := make([]domain.Group, 0, len(resp.Value))
	for _, g := range resp.Value {
		groups = append(groups, domain.Group{DisplayName: g.DisplayName, Descriptor: g.Descriptor, Description: g.Description})
	}
	return groups, nil
}

// CreateGroup provisions a directory group in the project scope.
func (c *Client) CreateGroup(ctx context.Context, displayName, description string) (domain.Group, error) {
	body := map[string]string{"displayName": displayName, "description": description}
	var resp groupPayload
	if err := c.do(ctx, http.MethodPost, "/_apis/graph/groups", nil, body, &resp); err != nil {
		return domain.Group{}, err
	}
	return domain.Group{DisplayName: resp.DisplayName, Descriptor: resp.Descriptor, Description: resp.Description}, nil
}

// DeleteGroup removes a directory group by descriptor.
func (c *Client) DeleteGroup(ctx context.Context, descriptor string) error {
	path := "/_apis/graph/groups/" + url.PathEscape(descriptor)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// AddGroupMember adds a subject to a group.
func (c *Client) AddGroupMember(ctx context.Context, memberDescriptor, groupDescriptor string) error {
	path := fmt.Sprintf("/_apis/graph/memberships/%s/%s",
		url.PathEscape(memberDescriptor), url.PathEscape(groupDescriptor))
	return c.do(ctx, http.MethodPut, path, nil, nil, nil)
}

// RemoveGroupMember removes a subject from a group.
func (c *Client) RemoveGroupMember(ctx context.Context, memberDescriptor, groupDescriptor string) error {
	path := fmt.Sprintf("/_apis/graph/memberships/%s/%s",
		url.PathEscape(memberDescriptor), url.PathEscape(groupDescriptor))
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// ResolveIdentityDescriptor converts a graph subject descriptor into the
// legacy identity descriptor the access control service expects.
func (c *Client) ResolveIdentityDescriptor(ctx context.Context, subjectDescriptor string) (string, error) {
	query := url.Values{}
	query.Set("subjectDescriptors", subjectDescriptor)
	var resp listResponse[struct {
		Descriptor string `json:"descriptor"`
	}]
	if err := c.do(ctx, http.MethodGet, "/_apis/identities", query, nil, &resp); err != nil {
		return "", err
	}
	if len(resp.Value) == 0 {
		return "", fmt.Errorf("identity for %s: %w", subjectDescriptor, remote.ErrNotFound)
	}
	return resp.Value[0].Descriptor, nil
}
