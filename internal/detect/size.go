package detect

import (
	"context"

	"adoinventory/internal/data"
	"adoinventory/internal/outcome"
)

// Sizer is the set of calls used to measure a unit.
type Sizer interface {
	Repo(ctx context.Context, org, project, repoID string) (data.RepoMeta, outcome.Outcome)
	Items(ctx context.Context, org, project, repoID string) ([]data.Item, outcome.Outcome)
	LatestCommit(ctx context.Context, org, project, repoID string) (*data.Change, outcome.Outcome)
	BranchCount(ctx context.Context, org, project, repoID string) (int, outcome.Outcome)
	TFVCItems(ctx context.Context, org, project string) ([]data.Item, outcome.Outcome)
	LatestChangeset(ctx context.Context, org, project string) (*data.Change, outcome.Outcome)
	Attachments(ctx context.Context, org, project string) ([]data.Attachment, outcome.Outcome)
	LatestWorkItemChange(ctx context.Context, org, project string) (*data.Change, outcome.Outcome)
}

// sane accepts a size when it is non-negative and, unless the repository is
// known to be empty, non-zero.
func sane(size int64, empty bool) bool {
	if size < 0 {
		return false
	}
	return size > 0 || empty
}

// GitStats measures a Git repository. Size comes from the repository metadata
// when it passes the sanity check, otherwise from the blob sizes of a full
// items listing. Fields whose methods all failed stay nil.
func GitStats(ctx context.Context, s Sizer, t Tally, org, project string, repo data.RepoMeta) (data.RepoStats, error) {
	var st data.RepoStats

	last, o := s.LatestCommit(ctx, org, project, repo.ID)
	if err := observe(t, o); err != nil {
		return st, err
	}
	empty := o.OK() && last == nil
	if last != nil {
		when := last.When
		st.LastModified = &when
		st.LastAuthor = last.Author
	}

	size := repo.Size
	if size == nil {
		meta, o := s.Repo(ctx, org, project, repo.ID)
		if err := observe(t, o); err != nil {
			return st, err
		}
		if o.OK() {
			size = meta.Size
		}
	}
	if size != nil && sane(*size, empty) {
		st.SizeBytes = data.Ptr(*size)
	}

	items, o := s.Items(ctx, org, project, repo.ID)
	if err := observe(t, o); err != nil {
		return st, err
	}
	if o.OK() {
		agg := data.Aggregate(items)
		st.FileCount = data.Ptr(agg.Files)
		if agg.Files == 0 || agg.Largest > 0 {
			st.LargestBytes = data.Ptr(agg.Largest)
		}
		if st.SizeBytes == nil && sane(agg.Bytes, empty || agg.Files == 0) {
			st.SizeBytes = data.Ptr(agg.Bytes)
		}
	}

	branches, o := s.BranchCount(ctx, org, project, repo.ID)
	if err := observe(t, o); err != nil {
		return st, err
	}
	if o.OK() {
		st.BranchCount = data.Ptr(branches)
	}
	return st, nil
}

// GitLastChange returns the latest commit of a repository, or nil.
func GitLastChange(ctx context.Context, s Sizer, t Tally, org, project, repoID string) (*data.Change, error) {
	last, o := s.LatestCommit(ctx, org, project, repoID)
	if err := observe(t, o); err != nil {
		return nil, err
	}
	return last, nil
}

// TFVCStats measures the TFVC content of a project.
func TFVCStats(ctx context.Context, s Sizer, t Tally, org, project string) (data.RepoStats, error) {
	var st data.RepoStats

	items, o := s.TFVCItems(ctx, org, project)
	if err := observe(t, o); err != nil {
		return st, err
	}
	if o.OK() {
		applyStats(&st, data.Aggregate(items))
	}

	last, err := TFVCLastChange(ctx, s, t, org, project)
	if err != nil {
		return st, err
	}
	if last != nil {
		when := last.When
		st.LastModified = &when
		st.LastAuthor = last.Author
	}
	return st, nil
}

// TFVCLastChange returns the latest changeset of a project, or nil.
func TFVCLastChange(ctx context.Context, s Sizer, t Tally, org, project string) (*data.Change, error) {
	last, o := s.LatestChangeset(ctx, org, project)
	if err := observe(t, o); err != nil {
		return nil, err
	}
	return last, nil
}

// ContentStats measures a project without version control from its work item
// attachments.
func ContentStats(ctx context.Context, s Sizer, t Tally, org string, project data.Project) (data.RepoStats, error) {
	var st data.RepoStats

	atts, o := s.Attachments(ctx, org, project.Name)
	if err := observe(t, o); err != nil {
		return st, err
	}
	if o.OK() {
		applyStats(&st, data.AggregateAttachments(atts))
	}

	last, err := ContentLastChange(ctx, s, t, org, project)
	if err != nil {
		return st, err
	}
	if last != nil {
		when := last.When
		st.LastModified = &when
		st.LastAuthor = last.Author
	}
	return st, nil
}

// ContentLastChange is the latest work item change, falling back to the
// project's last update time.
func ContentLastChange(ctx context.Context, s Sizer, t Tally, org string, project data.Project) (*data.Change, error) {
	last, o := s.LatestWorkItemChange(ctx, org, project.Name)
	if err := observe(t, o); err != nil {
		return nil, err
	}
	if last != nil {
		return last, nil
	}
	if project.LastUpdate != nil {
		return &data.Change{When: *project.LastUpdate}, nil
	}
	return nil, nil
}

func applyStats(st *data.RepoStats, agg data.Stats) {
	st.FileCount = data.Ptr(agg.Files)
	st.SizeBytes = data.Ptr(agg.Bytes)
	st.LargestBytes = data.Ptr(agg.Largest)
}
