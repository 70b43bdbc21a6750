package azdo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/zuercheram/DevopsAutomate/internal/domain"
	"github.com/zuercheram/DevopsAutomate/internal/remote"
)

type nodePayload struct {
	ID       int           `json:"id"`
	Name     string        `json:"name"`
	Path     string        `json:"path"`
	Children []nodePayload `json:"children"`
}

func (p nodePayload) toRemote(project string) remote.Node {
	n := remote.Node{ID: p.ID, Name: p.Name, Path: trimNodePath(p.Path, project)}
	for _, c := range p.Children {
		n.Children = append(n.Children, c.toRemote(project))
	}
	return n
}

// trimNodePath strips the "\Project\Area" (or Iteration) prefix the API
// reports, leaving a project-root-relative path.
func trimNodePath(p, project string) string {
	p = domain.NormalizePath(p)
	segments := domain.SplitPath(p)
	if len(segments) >= 2 && strings.EqualFold(segments[0], project) {
		segments = segments[2:]
	}
	return domain.JoinPath(segments...)
}

func kindSegment(kind remote.TreeKind) string {
	if kind == remote.TreeIterations {
		return "iterations"
	}
	return "areas"
}

// GetTree fetches the whole classification hierarchy of the given kind.
func (c *Client) GetTree(ctx context.Context, kind remote.TreeKind) (remote.Node, error) {
	query := url.Values{}
	query.Set("$depth", "20")
	var resp nodePayload
	path := fmt.Sprintf("/%s/_apis/wit/classificationnodes/%s", url.PathEscape(c.project), kindSegment(kind))
	if err := c.do(ctx, http.MethodGet, path, query, nil, &resp); err != nil {
		return remote.Node{}, err
	}
	return resp.toRemote(c.project), nil
}

// CreateNode creates a child node under parentPath. The remote responds with
// a conflict when the node already exists; callers treat that as success.
func (c *Client) CreateNode(ctx context.Context, kind remote.TreeKind, parentPath, name string) (remote.Node, error) {
	body := map[string]string{"name": name}
	var resp nodePayload
	path := fmt.Sprintf("/%s/_apis/wit/classificationnodes/%s%s",
		url.PathEscape(c.project), kindSegment(kind), escapeNodePath(parentPath))
	if err := c.do(ctx, http.MethodPost, path, nil, body, &resp); err != nil {
		return remote.Node{}, err
	}
	return resp.toRemote(c.project), nil
}

// DeleteNode removes the node at path, reclassifying contained work items to
// the node with reclassifyToID (the tree root during pruning and teardown).
func (c *Client) DeleteNode(ctx context.Context, kind remote.TreeKind, path string, reclassifyToID int) error {
	query := url.Values{}
	if reclassifyToID > 0 {
		query.Set("$reclassifyId", strconv.Itoa(reclassifyToID))
	}
	endpoint := fmt.Sprintf("/%s/_apis/wit/classificationnodes/%s%s",
		url.PathEscape(c.project), kindSegment(kind), escapeNodePath(path))
	return c.do(ctx, http.MethodDelete, endpoint, query, nil, nil)
}

// GetNodeByPath fetches a single node without its children.
func (c *Client) GetNodeByPath(ctx context.Context, kind remote.TreeKind, path string) (remote.Node, error) {
	var resp nodePayload
	endpoint := fmt.Sprintf("/%s/_apis/wit/classificationnodes/%s%s",
		url.PathEscape(c.project), kindSegment(kind), escapeNodePath(path))
	if err := c.do(ctx, http.MethodGet, endpoint, nil, nil, &resp); err != nil {
		return remote.Node{}, err
	}
	return resp.toRemote(c.project), nil
}

func escapeNodePath(p string) string {
	var b strings.Builder
	for _, segment := range domain.SplitPath(p) {
		b.WriteString("/")
		b.WriteString(url.PathEscape(segment))
	}
	return b.String()
}
