package ado

import (
	"context"
	"net/url"
	"strconv"

	"adoinventory/internal/data"
	"adoinventory/internal/outcome"
)

// FeedCount counts the artifact feeds of a project.
func (c *Client) FeedCount(ctx context.Context, org, project string) (int, outcome.Outcome) {
	u := buildURL(c.hosts.Feeds, org, project, "packaging/feeds", nil, apiVersionPreview)
	resp, _, o := getJSON[listResponse[wireFeed]](ctx, c, u)
	if !o.OK() {
		return 0, wrapf(o, "list feeds of %s/%s", org, project)
	}
	return len(resp.Value), o
}

// WikiCount counts the wikis of a project.
func (c *Client) WikiCount(ctx context.Context, org, project string) (int, outcome.Outcome) {
	resp, _, o := getJSON[listResponse[wireWiki]](ctx, c, c.coreURL(org, project, "wiki/wikis", nil))
	if !o.OK() {
		return 0, wrapf(o, "list wikis of %s/%s", org, project)
	}
	return len(resp.Value), o
}

const latestChangeQuery = "SELECT [System.Id] FROM WorkItems WHERE [System.TeamProject] = @project ORDER BY [System.ChangedDate] DESC"

// LatestWorkItemChange returns the most recently changed work item, or nil.
// A WIQL query finds its id, then the work item itself is read.
func (c *Client) LatestWorkItemChange(ctx context.Context, org, project string) (*data.Change, outcome.Outcome) {
	q := url.Values{}
	q.Set("$top", "1")
	res, _, o := postJSON[wireWIQLResult](ctx, c, c.coreURL(org, project, "wit/wiql", q), wireWIQL{Query: latestChangeQuery})
	if !o.OK() {
		return nil, wrapf(o, "query latest work item of %s/%s", org, project)
	}
	if len(res.WorkItems) == 0 {
		return nil, o
	}

	q = url.Values{}
	q.Set("ids", strconv.Itoa(res.WorkItems[0].ID))
	q.Set("fields", "System.ChangedDate,System.ChangedBy")
	resp, _, o := getJSON[listResponse[wireWorkItem]](ctx, c, c.coreURL(org, project, "wit/workitems", q))
	if !o.OK() {
		return nil, wrapf(o, "read work item %d of %s/%s", res.WorkItems[0].ID, org, project)
	}
	if len(resp.Value) == 0 || resp.Value[0].Fields.ChangedDate.IsZero() {
		return nil, o
	}
	wi := resp.Value[0]
	return &data.Change{
		ID:     strconv.Itoa(wi.ID),
		Author: identityName(wi.Fields.ChangedBy),
		When:   wi.Fields.ChangedDate,
	}, o
}

// identityName reads System.ChangedBy, which is an identity reference object
// on current API versions and a plain "Name <mail>" string on older ones.
func identityName(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		for _, k := range []string{"displayName", "uniqueName"} {
			if s, ok := t[k].(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// Attachments lists work item attachments of a project (first page).
func (c *Client) Attachments(ctx context.Context, org, project string) ([]data.Attachment, outcome.Outcome) {
	q := url.Values{}
	q.Set("$top", "100")
	resp, _, o := getJSON[listResponse[wireAttachment]](ctx, c, c.coreURL(org, project, "wit/attachments", q))
	if !o.OK() {
		return nil, wrapf(o, "list attachments of %s/%s", org, project)
	}
	out := make([]data.Attachment, 0, len(resp.Value))
	for _, a := range resp.Value {
		out = append(out, data.Attachment{Name: a.Name, Size: a.Attributes.ResourceSize})
	}
	return out, o
}
