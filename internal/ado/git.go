package ado

import (
	"context"
	"net/url"

	"adoinventory/internal/data"
	"adoinventory/internal/outcome"
)

// Repos lists the Git repositories of a project.
func (c *Client) Repos(ctx context.Context, org, project string) ([]data.RepoMeta, outcome.Outcome) {
	resp, _, o := getJSON[listResponse[wireRepo]](ctx, c, c.coreURL(org, project, "git/repositories", nil))
	if !o.OK() {
		return nil, wrapf(o, "list repositories of %s/%s", org, project)
	}
	out := make([]data.RepoMeta, 0, len(resp.Value))
	for _, r := range resp.Value {
		out = append(out, toRepoMeta(r))
	}
	return out, o
}

// Repo fetches the metadata of one repository, including its reported size.
func (c *Client) Repo(ctx context.Context, org, project, repoID string) (data.RepoMeta, outcome.Outcome) {
	r, _, o := getJSON[wireRepo](ctx, c, c.coreURL(org, project, "git/repositories/"+url.PathEscape(repoID), nil))
	if !o.OK() {
		return data.RepoMeta{}, wrapf(o, "get repository %s", repoID)
	}
	return toRepoMeta(r), o
}

func toRepoMeta(r wireRepo) data.RepoMeta {
	return data.RepoMeta{
		ID:            r.ID,
		Name:          r.Name,
		DefaultBranch: r.DefaultBranch,
		Size:          r.Size,
		Disabled:      r.IsDisabled,
	}
}

// Items lists every item of a repository's default branch.
func (c *Client) Items(ctx context.Context, org, project, repoID string) ([]data.Item, outcome.Outcome) {
	q := url.Values{}
	q.Set("recursionLevel", "Full")
	q.Set("includeContentMetadata", "true")
	resp, _, o := getJSON[listResponse[wireItem]](ctx, c, c.coreURL(org, project, "git/repositories/"+url.PathEscape(repoID)+"/items", q))
	if !o.OK() {
		return nil, wrapf(o, "list items of repository %s", repoID)
	}
	out := make([]data.Item, 0, len(resp.Value))
	for _, it := range resp.Value {
		folder := it.IsFolder
		if it.GitObjectType != "" {
			folder = it.GitObjectType != "blob"
		}
		out = append(out, data.Item{Path: it.Path, IsFolder: folder, Size: it.Size})
	}
	return out, o
}

// LatestCommit returns the most recent commit, or nil for a repository without commits.
func (c *Client) LatestCommit(ctx context.Context, org, project, repoID string) (*data.Change, outcome.Outcome) {
	q := url.Values{}
	q.Set("searchCriteria.$top", "1")
	resp, _, o := getJSON[listResponse[wireCommit]](ctx, c, c.coreURL(org, project, "git/repositories/"+url.PathEscape(repoID)+"/commits", q))
	if !o.OK() {
		return nil, wrapf(o, "latest commit of repository %s", repoID)
	}
	if len(resp.Value) == 0 {
		return nil, o
	}
	cm := resp.Value[0]
	return &data.Change{ID: cm.CommitID, Author: cm.Author.Name, When: cm.Author.Date}, o
}

// BranchCount counts the heads of a repository across every page.
func (c *Client) BranchCount(ctx context.Context, org, project, repoID string) (int, outcome.Outcome) {
	q := url.Values{}
	q.Set("filter", "heads/")
	refs, o := listAll[wireRef](ctx, c, func(q url.Values) string {
		return c.coreURL(org, project, "git/repositories/"+url.PathEscape(repoID)+"/refs", q)
	}, q)
	if !o.OK() {
		return 0, wrapf(o, "list branches of repository %s", repoID)
	}
	return len(refs), o
}
