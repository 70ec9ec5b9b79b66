package ado

import (
	"context"
	"net/url"
	"strconv"

	"adoinventory/internal/data"
	"adoinventory/internal/outcome"
)

// HasTFVC reports whether a project has TFVC content: any item below the root,
// or failing that any changeset.
func (c *Client) HasTFVC(ctx context.Context, org, project string) (bool, outcome.Outcome) {
	q := url.Values{}
	q.Set("recursionLevel", "OneLevel")
	q.Set("$top", "1")
	items, _, o := getJSON[listResponse[wireItem]](ctx, c, c.coreURL(org, project, "tfvc/items", q))
	if o.OK() && len(items.Value) > 0 {
		return true, o
	}
	if o.Fatal() {
		return false, wrapf(o, "check tfvc items of %s/%s", org, project)
	}

	cq := url.Values{}
	cq.Set("$top", "1")
	sets, _, co := getJSON[listResponse[wireChangeset]](ctx, c, c.coreURL(org, project, "tfvc/changesets", cq))
	if co.OK() {
		return len(sets.Value) > 0, co
	}
	if !o.OK() {
		// Both checks failed; report the first failure.
		return false, wrapf(o, "check tfvc of %s/%s", org, project)
	}
	return false, wrapf(co, "check tfvc changesets of %s/%s", org, project)
}

// TFVCItems lists every TFVC item of a project.
func (c *Client) TFVCItems(ctx context.Context, org, project string) ([]data.Item, outcome.Outcome) {
	q := url.Values{}
	q.Set("recursionLevel", "Full")
	q.Set("includeContentMetadata", "true")
	resp, _, o := getJSON[listResponse[wireItem]](ctx, c, c.coreURL(org, project, "tfvc/items", q))
	if !o.OK() {
		return nil, wrapf(o, "list tfvc items of %s/%s", org, project)
	}
	out := make([]data.Item, 0, len(resp.Value))
	for _, it := range resp.Value {
		out = append(out, data.Item{Path: it.Path, IsFolder: it.IsFolder, Size: it.Size})
	}
	return out, o
}

// LatestChangeset returns the newest changeset, or nil when there is none.
func (c *Client) LatestChangeset(ctx context.Context, org, project string) (*data.Change, outcome.Outcome) {
	q := url.Values{}
	q.Set("$top", "1")
	q.Set("$orderby", "id desc")
	resp, _, o := getJSON[listResponse[wireChangeset]](ctx, c, c.coreURL(org, project, "tfvc/changesets", q))
	if !o.OK() {
		return nil, wrapf(o, "latest changeset of %s/%s", org, project)
	}
	if len(resp.Value) == 0 {
		return nil, o
	}
	cs := resp.Value[0]
	author := cs.Author.DisplayName
	if author == "" {
		author = cs.Author.UniqueName
	}
	return &data.Change{ID: strconv.Itoa(cs.ChangesetID), Author: author, When: cs.CreatedDate}, o
}
