// Package detect resolves what kind of content a project holds and measures it.
package detect

import (
	"context"
	"log/slog"

	"adoinventory/internal/data"
	"adoinventory/internal/outcome"
)

// Tally receives the outcome of every call that did not succeed. A non-nil
// error means the run must stop.
type Tally interface {
	Observe(o outcome.Outcome) error
	Log() *slog.Logger
}

// Classifier is the set of calls used to classify a project.
type Classifier interface {
	Repos(ctx context.Context, org, project string) ([]data.RepoMeta, outcome.Outcome)
	HasTFVC(ctx context.Context, org, project string) (bool, outcome.Outcome)
	FeedCount(ctx context.Context, org, project string) (int, outcome.Outcome)
	WikiCount(ctx context.Context, org, project string) (int, outcome.Outcome)
}

// Detection is the classification of one project.
type Detection struct {
	Kinds []data.Kind

	// Repos holds the Git repositories when KindGit was detected.
	Repos []data.RepoMeta
}

func (d Detection) Has(k data.Kind) bool {
	for _, have := range d.Kinds {
		if have == k {
			return true
		}
	}
	return false
}

// Detect classifies a project. Git and TFVC are both checked, so a project can
// resolve to both. Artifact feeds, then wikis, are checked only when neither is
// present; a project with none of them is file storage. Failed checks count as
// absent and are reported to t.
func Detect(ctx context.Context, p Classifier, t Tally, org, project string) (Detection, error) {
	var d Detection

	repos, o := p.Repos(ctx, org, project)
	if err := observe(t, o); err != nil {
		return d, err
	}
	if o.OK() && len(repos) > 0 {
		d.Kinds = append(d.Kinds, data.KindGit)
		d.Repos = repos
	}
	if !o.OK() && t != nil {
		t.Log().Info("git listing failed, checking other content", "project", project, "err", o.Err())
	}

	tfvc, o := p.HasTFVC(ctx, org, project)
	if err := observe(t, o); err != nil {
		return d, err
	}
	if o.OK() && tfvc {
		d.Kinds = append(d.Kinds, data.KindTFVC)
	}
	if len(d.Kinds) > 0 {
		return d, nil
	}

	feeds, o := p.FeedCount(ctx, org, project)
	if err := observe(t, o); err != nil {
		return d, err
	}
	if o.OK() && feeds > 0 {
		d.Kinds = []data.Kind{data.KindArtifacts}
		return d, nil
	}

	wikis, o := p.WikiCount(ctx, org, project)
	if err := observe(t, o); err != nil {
		return d, err
	}
	if o.OK() && wikis > 0 {
		d.Kinds = []data.Kind{data.KindWiki}
		return d, nil
	}

	d.Kinds = []data.Kind{data.KindFileStorage}
	return d, nil
}

func observe(t Tally, o outcome.Outcome) error {
	if o.OK() || t == nil {
		return nil
	}
	return t.Observe(o)
}
