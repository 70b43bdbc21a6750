package azdo

import (
	"context"
	"net/http"
	"net/url"
)

// Security namespace covering classification node permissions.
const classificationNamespaceID = "83e28ad4-2d72-4ceb-97b0-c7726d5502c3"

type accessControlEntry struct {
	Descriptor string `json:"descriptor"`
	Allow      int    `json:"allow"`
	Deny       int    `json:"deny"`
}

type setEntriesBody struct {
	Token string               `json:"token"`
	Merge bool                 `json:"merge"`
	ACEs  []accessControlEntry `json:"accessControlEntries"`
}

// SetAllow grants capability bits to the identity on the node the token
// names. The merge flag preserves entries already present for other
// identities on the same node.
func (c *Client) SetAllow(ctx context.Context, token, identityDescriptor string, bits int) error {
	body := setEntriesBody{
		Token: token,
		Merge: true,
		ACEs:  []accessControlEntry{{Descriptor: identityDescriptor, Allow: bits}},
	}
	path := "/_apis/accesscontrolentries/" + classificationNamespaceID
	return c.do(ctx, http.MethodPost, path, nil, body, nil)
}

// SetDeny places an explicit deny for the identity on the node the token
// names, blocking capability bits that would otherwise be inherited.
func (c *Client) SetDeny(ctx context.Context, token, identityDescriptor string, bits int) error {
	body := setEntriesBody{
		Token: token,
		Merge: true,
		ACEs:  []accessControlEntry{{Descriptor: identityDescriptor, Deny: bits}},
	}
	path := "/_apis/accesscontrolentries/" + classificationNamespaceID
	return c.do(ctx, http.MethodPost, path, nil, body, nil)
}

// RemoveEntries clears every access-control entry the identity holds on the
// node the token names.
func (c *Client) RemoveEntries(ctx context.Context, token, identityDescriptor string) error {
	query := url.Values{}
	query.Set("token", token)
	query.Set("descriptors", identityDescriptor)
	path := "/_apis/accesscontrolentries/" + classificationNamespaceID
	return c.do(ctx, http.MethodDelete, path, query, nil, nil)
}
