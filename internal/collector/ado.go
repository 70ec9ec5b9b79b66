// Package collector holds the unit-of-work logic of each collect command: what
// an organization fans out into and which rows a unit emits.
package collector

import (
	"context"

	"adoinventory/internal/ado"
	"adoinventory/internal/config"
	"adoinventory/internal/data"
	"adoinventory/internal/detect"
	"adoinventory/internal/engine"
	"adoinventory/internal/fetcher"
	"adoinventory/internal/identity"
	"adoinventory/internal/outcome"
	"adoinventory/internal/retry"
)

// ADO is the Azure DevOps surface used by the users and inventory collectors.
type ADO interface {
	detect.Classifier
	detect.Sizer
	Projects(ctx context.Context, org string) ([]data.Project, outcome.Outcome)
	Entitlements(ctx context.Context, org string) ([]identity.Entry, outcome.Outcome)
	GraphUsers(ctx context.Context, org string) ([]identity.Entry, outcome.Outcome)
	ProjectAdmins(ctx context.Context, org, projectID string) ([]identity.Entry, outcome.Outcome)
	TeamMembers(ctx context.Context, org, project string) ([]identity.Entry, outcome.Outcome)
}

// Policy builds the retry policy from the runtime config.
func Policy(rt config.Runtime) retry.Policy {
	p := retry.Default()
	if rt.MaxAttempts > 0 {
		p.MaxAttempts = rt.MaxAttempts
	}
	if rt.BackoffBase > 0 {
		p.BaseDelay = rt.BackoffBase
	}
	if rt.BackoffMax > 0 {
		p.MaxDelay = rt.BackoffMax
	}
	return p
}

// NewADOClient wires the authenticated HTTP client, the fetcher and the
// adapters for one run. All calls of the run share one limiter and budget.
func NewADOClient(env engine.Env, token string, hosts ado.Hosts) (*ado.Client, error) {
	rt := env.Config.Runtime
	httpClient := fetcher.NewADOHTTPClient(token, rt.Verbose, env.Log)
	f, err := fetcher.New(httpClient,
		fetcher.WithTimeout(rt.RequestTimeout),
		fetcher.WithRate(rt.RPS),
		fetcher.WithBudget(fetcher.NewBudget()),
		fetcher.WithMetrics(env.Metrics),
	)
	if err != nil {
		return nil, err
	}
	return ado.NewClient(f,
		ado.WithHosts(hosts),
		ado.WithPolicy(Policy(rt)),
		ado.WithLogger(env.Log),
		ado.WithMetrics(env.Metrics),
	)
}

// BuildADO returns a collector factory that resolves ADO_PAT and wires the
// client against hosts.
func BuildADO(hosts ado.Hosts, newCollector func(api ADO) engine.Collector) func(env engine.Env) (engine.Collector, error) {
	return func(env engine.Env) (engine.Collector, error) {
		token, err := config.ResolveADOToken()
		if err != nil {
			return nil, err
		}
		client, err := NewADOClient(env, token, hosts)
		if err != nil {
			return nil, err
		}
		return newCollector(client), nil
	}
}
