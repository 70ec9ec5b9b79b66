package detect

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"adoinventory/internal/data"
	"adoinventory/internal/outcome"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTally struct {
	seen []outcome.Kind
	logs bytes.Buffer
}

func (r *recordingTally) Log() *slog.Logger {
	return slog.New(slog.NewTextHandler(&r.logs, nil))
}

func (r *recordingTally) Observe(o outcome.Outcome) error {
	r.seen = append(r.seen, o.Kind)
	if o.Fatal() {
		return o.Err()
	}
	return nil
}

type fakeClassifier struct {
	repos    []data.RepoMeta
	reposOut outcome.Outcome
	tfvc     bool
	tfvcOut  outcome.Outcome
	feeds    int
	feedsOut outcome.Outcome
	wikis    int
	wikisOut outcome.Outcome

	calls []string
}

func ok() outcome.Outcome { return outcome.OK(200) }

func newClassifier() *fakeClassifier {
	return &fakeClassifier{reposOut: ok(), tfvcOut: ok(), feedsOut: ok(), wikisOut: ok()}
}

func (p *fakeClassifier) Repos(context.Context, string, string) ([]data.RepoMeta, outcome.Outcome) {
	p.calls = append(p.calls, "git")
	return p.repos, p.reposOut
}

func (p *fakeClassifier) HasTFVC(context.Context, string, string) (bool, outcome.Outcome) {
	p.calls = append(p.calls, "tfvc")
	return p.tfvc, p.tfvcOut
}

func (p *fakeClassifier) FeedCount(context.Context, string, string) (int, outcome.Outcome) {
	p.calls = append(p.calls, "feeds")
	return p.feeds, p.feedsOut
}

func (p *fakeClassifier) WikiCount(context.Context, string, string) (int, outcome.Outcome) {
	p.calls = append(p.calls, "wiki")
	return p.wikis, p.wikisOut
}

func TestDetect_LogsFailedGitListing(t *testing.T) {
	p := newClassifier()
	p.reposOut = outcome.Denied(403, errors.New("forbidden"))
	p.tfvc = true
	tally := &recordingTally{}

	d, err := Detect(context.Background(), p, tally, "o", "web")

	require.NoError(t, err)
	assert.Equal(t, []data.Kind{data.KindTFVC}, d.Kinds)
	assert.Contains(t, tally.logs.String(), "level=INFO")
	assert.Contains(t, tally.logs.String(), "git listing failed")
	assert.Contains(t, tally.logs.String(), "project=web")
}

func TestDetect(t *testing.T) {
	repo := []data.RepoMeta{{ID: "r1", Name: "site"}}

	tests := []struct {
		name      string
		setup     func(p *fakeClassifier)
		want      []data.Kind
		wantCalls []string
		wantTally []outcome.Kind
	}{
		{
			name:      "git_only",
			setup:     func(p *fakeClassifier) { p.repos = repo },
			want:      []data.Kind{data.KindGit},
			wantCalls: []string{"git", "tfvc"},
		},
		{
			name:      "git_and_tfvc",
			setup:     func(p *fakeClassifier) { p.repos = repo; p.tfvc = true },
			want:      []data.Kind{data.KindGit, data.KindTFVC},
			wantCalls: []string{"git", "tfvc"},
		},
		{
			name:      "tfvc_only",
			setup:     func(p *fakeClassifier) { p.tfvc = true },
			want:      []data.Kind{data.KindTFVC},
			wantCalls: []string{"git", "tfvc"},
		},
		{
			name:      "artifacts_before_wiki",
			setup:     func(p *fakeClassifier) { p.feeds = 2; p.wikis = 1 },
			want:      []data.Kind{data.KindArtifacts},
			wantCalls: []string{"git", "tfvc", "feeds"},
		},
		{
			name:      "wiki",
			setup:     func(p *fakeClassifier) { p.wikis = 1 },
			want:      []data.Kind{data.KindWiki},
			wantCalls: []string{"git", "tfvc", "feeds", "wiki"},
		},
		{
			name:      "file_storage",
			setup:     func(p *fakeClassifier) {},
			want:      []data.Kind{data.KindFileStorage},
			wantCalls: []string{"git", "tfvc", "feeds", "wiki"},
		},
		{
			name: "failed_checks_count_as_absent",
			setup: func(p *fakeClassifier) {
				p.reposOut = outcome.Denied(403, nil)
				p.feedsOut = outcome.Missing(404, nil)
				p.wikis = 1
			},
			want:      []data.Kind{data.KindWiki},
			wantCalls: []string{"git", "tfvc", "feeds", "wiki"},
			wantTally: []outcome.Kind{outcome.PermissionDenied, outcome.NotFound},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newClassifier()
			tt.setup(p)
			tally := &recordingTally{}

			d, err := Detect(context.Background(), p, tally, "contoso", "web")
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Kinds)
			assert.Equal(t, tt.wantCalls, p.calls)
			assert.Equal(t, tt.wantTally, tally.seen)
		})
	}
}

func TestDetect_IsDeterministic(t *testing.T) {
	for i := 0; i < 10; i++ {
		p := newClassifier()
		p.repos = []data.RepoMeta{{ID: "r1"}}
		p.tfvc = true
		d, err := Detect(context.Background(), p, nil, "o", "p")
		require.NoError(t, err)
		assert.Equal(t, []data.Kind{data.KindGit, data.KindTFVC}, d.Kinds)
		assert.True(t, d.Has(data.KindTFVC))
		assert.Len(t, d.Repos, 1)
	}
}

func TestDetect_AuthFailureAborts(t *testing.T) {
	p := newClassifier()
	p.reposOut = outcome.Auth(401, nil)

	_, err := Detect(context.Background(), p, &recordingTally{}, "o", "p")
	require.Error(t, err)
	assert.True(t, errors.Is(err, outcome.ErrAuth))
	assert.Equal(t, []string{"git"}, p.calls)
}

type fakeSizer struct {
	meta       data.RepoMeta
	metaOut    outcome.Outcome
	items      []data.Item
	itemsOut   outcome.Outcome
	commit     *data.Change
	commitOut  outcome.Outcome
	branches   int
	branchOut  outcome.Outcome
	tfvcItems  []data.Item
	tfvcOut    outcome.Outcome
	changeset  *data.Change
	csOut      outcome.Outcome
	atts       []data.Attachment
	attsOut    outcome.Outcome
	workItem   *data.Change
	workOut    outcome.Outcome
	metaCalled bool
}

func newSizer() *fakeSizer {
	return &fakeSizer{
		metaOut: ok(), itemsOut: ok(), commitOut: ok(), branchOut: ok(),
		tfvcOut: ok(), csOut: ok(), attsOut: ok(), workOut: ok(),
	}
}

func (s *fakeSizer) Repo(context.Context, string, string, string) (data.RepoMeta, outcome.Outcome) {
	s.metaCalled = true
	return s.meta, s.metaOut
}

func (s *fakeSizer) Items(context.Context, string, string, string) ([]data.Item, outcome.Outcome) {
	return s.items, s.itemsOut
}

func (s *fakeSizer) LatestCommit(context.Context, string, string, string) (*data.Change, outcome.Outcome) {
	return s.commit, s.commitOut
}

func (s *fakeSizer) BranchCount(context.Context, string, string, string) (int, outcome.Outcome) {
	return s.branches, s.branchOut
}

func (s *fakeSizer) TFVCItems(context.Context, string, string) ([]data.Item, outcome.Outcome) {
	return s.tfvcItems, s.tfvcOut
}

func (s *fakeSizer) LatestChangeset(context.Context, string, string) (*data.Change, outcome.Outcome) {
	return s.changeset, s.csOut
}

func (s *fakeSizer) Attachments(context.Context, string, string) ([]data.Attachment, outcome.Outcome) {
	return s.atts, s.attsOut
}

func (s *fakeSizer) LatestWorkItemChange(context.Context, string, string) (*data.Change, outcome.Outcome) {
	return s.workItem, s.workOut
}

func TestGitStats_PrefersMetadataSize(t *testing.T) {
	when := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newSizer()
	s.commit = &data.Change{Author: "Alice", When: when}
	s.items = []data.Item{{Path: "/a", Size: 10}, {Path: "/b", Size: 20}}
	s.branches = 3

	st, err := GitStats(context.Background(), s, nil, "o", "p", data.RepoMeta{ID: "r", Size: data.Ptr[int64](5000)})
	require.NoError(t, err)
	assert.False(t, s.metaCalled)
	assert.Equal(t, int64(5000), *st.SizeBytes)
	assert.Equal(t, 2, *st.FileCount)
	assert.Equal(t, int64(20), *st.LargestBytes)
	assert.Equal(t, 3, *st.BranchCount)
	assert.Equal(t, when, *st.LastModified)
	assert.Equal(t, "Alice", st.LastAuthor)
}

func TestGitStats_ZeroMetadataFallsBackToItems(t *testing.T) {
	s := newSizer()
	s.commit = &data.Change{When: time.Now()}
	s.items = []data.Item{{Path: "/a", Size: 10}, {Path: "/b", Size: 20}}

	st, err := GitStats(context.Background(), s, nil, "o", "p", data.RepoMeta{ID: "r", Size: data.Ptr[int64](0)})
	require.NoError(t, err)
	assert.Equal(t, int64(30), *st.SizeBytes)
}

func TestGitStats_EmptyRepositoryReportsZero(t *testing.T) {
	s := newSizer()
	s.commit = nil

	st, err := GitStats(context.Background(), s, nil, "o", "p", data.RepoMeta{ID: "r", Size: data.Ptr[int64](0)})
	require.NoError(t, err)
	require.NotNil(t, st.SizeBytes)
	assert.Zero(t, *st.SizeBytes)
	assert.Zero(t, *st.FileCount)
	assert.Zero(t, *st.LargestBytes)
	assert.Nil(t, st.LastModified)
}

func TestGitStats_DeniedSizeStaysUnknown(t *testing.T) {
	s := newSizer()
	s.commit = &data.Change{When: time.Now()}
	s.metaOut = outcome.Denied(403, nil)
	s.itemsOut = outcome.Denied(403, nil)
	s.branches = 1
	tally := &recordingTally{}

	st, err := GitStats(context.Background(), s, tally, "o", "p", data.RepoMeta{ID: "r"})
	require.NoError(t, err)
	assert.True(t, s.metaCalled)
	assert.Nil(t, st.SizeBytes)
	assert.Nil(t, st.FileCount)
	assert.Nil(t, st.LargestBytes)
	assert.Equal(t, 1, *st.BranchCount)
	assert.Equal(t, []outcome.Kind{outcome.PermissionDenied, outcome.PermissionDenied}, tally.seen)
}

func TestGitStats_MissingBlobSizesAreNotInvented(t *testing.T) {
	s := newSizer()
	s.commit = &data.Change{When: time.Now()}
	s.items = []data.Item{{Path: "/a"}, {Path: "/b"}}

	st, err := GitStats(context.Background(), s, nil, "o", "p", data.RepoMeta{ID: "r"})
	require.NoError(t, err)
	assert.Nil(t, st.SizeBytes)
	assert.Nil(t, st.LargestBytes)
	assert.Equal(t, 2, *st.FileCount)
}

func TestTFVCStats(t *testing.T) {
	when := time.Date(2020, 5, 5, 5, 5, 5, 0, time.UTC)
	s := newSizer()
	s.tfvcItems = []data.Item{{Path: "$/p", IsFolder: true}, {Path: "$/p/a", Size: 100}, {Path: "$/p/b", Size: 50}}
	s.changeset = &data.Change{Author: "Bob", When: when}

	st, err := TFVCStats(context.Background(), s, nil, "o", "p")
	require.NoError(t, err)
	assert.Equal(t, int64(150), *st.SizeBytes)
	assert.Equal(t, 2, *st.FileCount)
	assert.Equal(t, int64(100), *st.LargestBytes)
	assert.Equal(t, when, *st.LastModified)
	assert.Nil(t, st.BranchCount)
}

func TestContentStats_FallsBackToProjectUpdate(t *testing.T) {
	updated := time.Date(2022, 2, 2, 2, 2, 2, 0, time.UTC)
	s := newSizer()
	s.atts = []data.Attachment{{Size: 10}, {Size: 30}}
	s.workOut = outcome.Denied(403, nil)
	tally := &recordingTally{}

	st, err := ContentStats(context.Background(), s, tally, "o", data.Project{Name: "docs", LastUpdate: &updated})
	require.NoError(t, err)
	assert.Equal(t, int64(40), *st.SizeBytes)
	assert.Equal(t, 2, *st.FileCount)
	assert.Equal(t, updated, *st.LastModified)
	assert.Equal(t, []outcome.Kind{outcome.PermissionDenied}, tally.seen)
}

func TestContentStats_NoAttachmentsIsMeasuredZero(t *testing.T) {
	s := newSizer()
	st, err := ContentStats(context.Background(), s, nil, "o", data.Project{Name: "docs"})
	require.NoError(t, err)
	assert.Equal(t, "0", data.KB(st.SizeBytes))
	assert.Equal(t, data.Unknown, data.Timestamp(st.LastModified))
}
