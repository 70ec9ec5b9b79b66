package ado

import (
	"context"
	"net/url"
	"strings"

	"adoinventory/internal/identity"
	"adoinventory/internal/outcome"
)

// Entitlements lists the organization's licensed users (the roster).
func (c *Client) Entitlements(ctx context.Context, org string) ([]identity.Entry, outcome.Outcome) {
	pages, o := listSkip[entitlementsResponse](ctx, c, entitlementsPage, func(q url.Values) string {
		return buildURL(c.hosts.Entitlements, org, "", "userentitlements", q, apiVersionVSAEX)
	}, func(r entitlementsResponse) int {
		return len(r.Members) + len(r.Value)
	})
	if !o.OK() {
		return nil, wrapf(o, "list entitlements of %s", org)
	}
	var out []identity.Entry
	for _, page := range pages {
		for _, list := range [][]wireEntitlement{page.Members, page.Value} {
			for _, e := range list {
				out = append(out, identity.Entry{
					Source:      identity.SourceRoster,
					ID:          e.ID,
					Descriptor:  e.User.Descriptor,
					DisplayName: e.User.DisplayName,
					Principal:   e.User.PrincipalName,
					Mail:        e.User.MailAddress,
					Domain:      e.User.Domain,
					AccessLevel: accessLevel(e),
				})
			}
		}
	}
	return out, o
}

// accessLevel folds license type and status into one level. A non-active
// status wins over the license.
func accessLevel(e wireEntitlement) string {
	status := strings.ToLower(strings.TrimSpace(e.AccessLevel.Status))
	if status != "" && status != "active" {
		return "inactive"
	}
	if lt := strings.TrimSpace(e.AccessLevel.AccountLicenseType); lt != "" {
		return lt
	}
	return e.AccessLevel.LicenseDisplayName
}

// GraphUsers lists every user of the organization's identity graph.
func (c *Client) GraphUsers(ctx context.Context, org string) ([]identity.Entry, outcome.Outcome) {
	wire, o := listAll[wireGraphSubject](ctx, c, func(q url.Values) string {
		return buildURL(c.hosts.Graph, org, "", "graph/users", q, apiVersionPreview)
	}, nil)
	if !o.OK() {
		return nil, wrapf(o, "list graph users of %s", org)
	}
	out := make([]identity.Entry, 0, len(wire))
	for _, u := range wire {
		out = append(out, graphEntry(u, identity.SourceGraph))
	}
	return out, o
}

func graphEntry(u wireGraphSubject, src identity.Source) identity.Entry {
	return identity.Entry{
		Source:      src,
		ID:          u.OriginID,
		Descriptor:  u.Descriptor,
		DisplayName: u.DisplayName,
		Principal:   u.PrincipalName,
		Mail:        u.MailAddress,
		Domain:      u.Domain,
	}
}

// GraphUser resolves a user descriptor. Lookups are shared across the run.
func (c *Client) GraphUser(ctx context.Context, org, descriptor string) (identity.Entry, outcome.Outcome) {
	return c.users.Do(org+"/"+descriptor, func() (identity.Entry, outcome.Outcome) {
		u := buildURL(c.hosts.Graph, org, "", "graph/users/"+url.PathEscape(descriptor), nil, apiVersionPreview)
		w, _, o := getJSON[wireGraphSubject](ctx, c, u)
		if !o.OK() {
			return identity.Entry{}, wrapf(o, "resolve user %s", descriptor)
		}
		return graphEntry(w, identity.SourceGraph), o
	})
}

// ProjectAdmins resolves the members of the project's administrator groups.
// Group members that are themselves groups are not expanded.
func (c *Client) ProjectAdmins(ctx context.Context, org, projectID string) ([]identity.Entry, outcome.Outcome) {
	scope, _, o := getJSON[wireDescriptor](ctx, c, buildURL(c.hosts.Graph, org, "", "graph/descriptors/"+url.PathEscape(projectID), nil, apiVersionPreview))
	if !o.OK() {
		return nil, wrapf(o, "resolve scope of project %s", projectID)
	}

	q := url.Values{}
	q.Set("scopeDescriptor", scope.Value)
	groups, o := listAll[wireGraphSubject](ctx, c, func(q url.Values) string {
		return buildURL(c.hosts.Graph, org, "", "graph/groups", q, apiVersionPreview)
	}, q)
	if !o.OK() {
		return nil, wrapf(o, "list groups of project %s", projectID)
	}

	var out []identity.Entry
	for _, g := range groups {
		if !identity.IsAdminGroup(g.DisplayName) && !identity.IsAdminGroup(g.PrincipalName) {
			continue
		}
		mq := url.Values{}
		mq.Set("direction", "down")
		mem, _, mo := getJSON[listResponse[wireMembership]](ctx, c, buildURL(c.hosts.Graph, org, "", "graph/memberships/"+url.PathEscape(g.Descriptor), mq, apiVersionPreview))
		if !mo.OK() {
			return out, wrapf(mo, "list members of group %s", g.DisplayName)
		}
		for _, m := range mem.Value {
			if isGroupDescriptor(m.MemberDescriptor) {
				continue
			}
			e, uo := c.GraphUser(ctx, org, m.MemberDescriptor)
			if !uo.OK() {
				if uo.Fatal() {
					return out, uo
				}
				// A member that cannot be resolved still counts by descriptor.
				e = identity.Entry{Descriptor: m.MemberDescriptor}
			}
			e.Source = identity.SourceAdminGroup
			e.Admin = true
			out = append(out, e)
		}
	}
	return out, outcome.OK(200)
}

func isGroupDescriptor(d string) bool {
	for _, prefix := range []string{"vssgp.", "aadgp.", "r2gp."} {
		if strings.HasPrefix(d, prefix) {
			return true
		}
	}
	return false
}

// TeamMembers lists the members of every team of the project.
func (c *Client) TeamMembers(ctx context.Context, org, project string) ([]identity.Entry, outcome.Outcome) {
	teamsPath := "projects/" + url.PathEscape(project) + "/teams"
	teamPages, o := listSkip(ctx, c, teamPageSize, func(q url.Values) string {
		return c.coreURL(org, "", teamsPath, q)
	}, func(resp listResponse[wireTeam]) int { return len(resp.Value) })
	if !o.OK() {
		return nil, wrapf(o, "list teams of %s/%s", org, project)
	}

	var out []identity.Entry
	for _, page := range teamPages {
		for _, t := range page.Value {
			memberPath := teamsPath + "/" + url.PathEscape(t.ID) + "/members"
			memberPages, mo := listSkip(ctx, c, teamPageSize, func(q url.Values) string {
				return c.coreURL(org, "", memberPath, q)
			}, func(resp listResponse[wireTeamMember]) int { return len(resp.Value) })
			if !mo.OK() {
				return out, wrapf(mo, "list members of team %s", t.Name)
			}
			for _, mp := range memberPages {
				for _, m := range mp.Value {
					out = append(out, identity.Entry{
						Source:      identity.SourceMembership,
						ID:          m.Identity.ID,
						Descriptor:  m.Identity.Descriptor,
						DisplayName: m.Identity.DisplayName,
						Principal:   m.Identity.UniqueName,
					})
				}
			}
		}
	}
	return out, o
}
