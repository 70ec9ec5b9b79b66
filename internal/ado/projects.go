package ado

import (
	"context"
	"net/url"

	"adoinventory/internal/data"
	"adoinventory/internal/outcome"
)

// Projects lists every project of an organization.
func (c *Client) Projects(ctx context.Context, org string) ([]data.Project, outcome.Outcome) {
	q := url.Values{}
	q.Set("$top", "500")
	wire, o := listAll[wireProject](ctx, c, func(q url.Values) string {
		return c.coreURL(org, "", "projects", q)
	}, q)
	if !o.OK() {
		return nil, wrapf(o, "list projects of %s", org)
	}
	out := make([]data.Project, 0, len(wire))
	for _, p := range wire {
		proj := data.Project{ID: p.ID, Name: p.Name, Description: p.Description}
		if !p.LastUpdateTime.IsZero() {
			t := p.LastUpdateTime
			proj.LastUpdate = &t
		}
		out = append(out, proj)
	}
	return out, o
}
