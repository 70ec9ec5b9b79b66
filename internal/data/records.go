package data

import "time"

// Schema names an output row layout.
type Schema string

const (
	SchemaUsers     Schema = "users"
	SchemaInventory Schema = "inventory"
	SchemaGitHub    Schema = "github"
)

var headers = map[Schema][]string{
	SchemaUsers: {
		"Organization", "Project", "Repo Name",
		"Organizational Users", "Project Members", "Project Admins",
		"Last User Modified Repo", "Last Modified Timestamp",
	},
	SchemaInventory: {
		"Organization", "Project", "Project Type", "Repo Name",
		"Branch Count", "Size (KB)", "Size (MB)", "File Count",
		"Largest File Size (KB)", "Last Modified Time",
	},
	SchemaGitHub: {
		"Org", "Repo", "FullName", "SizeGB", "SizeMB", "SizeKB",
		"LastUpdated", "LastUpdatedDays", "LastPushed", "LastPushedDays",
		"Visibility", "Archived", "Language", "IsFork", "ForkCount",
		"IssuesOn", "ProjectsOn", "WikiOn", "PagesOn",
		"Branches", "Commits", "PullRequests", "Issues", "Environments",
		"Packages", "Webhooks", "LastCommit", "ScanDate",
	},
}

// Header returns the column names of a schema.
func Header(s Schema) []string {
	h := headers[s]
	out := make([]string, len(h))
	copy(out, h)
	return out
}

// Record is one output row. Records are immutable once built.
type Record interface {
	Schema() Schema
	Fields() []string
}

// UserRow is one row of the users report.
type UserRow struct {
	Organization   string
	Project        string
	RepoName       string
	OrgUsers       *int
	ProjectMembers *int
	ProjectAdmins  *int
	LastAuthor     string
	LastModified   *time.Time
}

func (UserRow) Schema() Schema { return SchemaUsers }

func (r UserRow) Fields() []string {
	return []string{
		r.Organization,
		r.Project,
		r.RepoName,
		Count(r.OrgUsers),
		Count(r.ProjectMembers),
		Count(r.ProjectAdmins),
		Text(r.LastAuthor),
		Timestamp(r.LastModified),
	}
}

// InventoryRow is one row of the repository inventory.
type InventoryRow struct {
	Organization string
	Project      string
	Kind         Kind
	RepoName     string
	Stats        RepoStats
}

func (InventoryRow) Schema() Schema { return SchemaInventory }

func (r InventoryRow) Fields() []string {
	branches := NotApplicable
	if r.Kind.HasBranches() {
		branches = Count(r.Stats.BranchCount)
	}
	return []string{
		r.Organization,
		r.Project,
		string(r.Kind),
		r.RepoName,
		branches,
		KB(r.Stats.SizeBytes),
		MB(r.Stats.SizeBytes),
		Count(r.Stats.FileCount),
		KB(r.Stats.LargestBytes),
		Timestamp(r.Stats.LastModified),
	}
}

// GitHubRow is one row of the GitHub organization inventory.
//
// Deep scan counters stay nil unless a deep scan ran for the repository; without
// one they render as N/A.
type GitHubRow struct {
	Org         string
	Repo        string
	FullName    string
	SizeBytes   *int64
	UpdatedAt   *time.Time
	PushedAt    *time.Time
	Visibility  string
	Archived    bool
	Language    string
	IsFork      bool
	ForkCount   int
	HasIssues   bool
	HasProjects bool
	HasWiki     bool
	HasPages    bool

	DeepScan     bool
	Branches     *int
	Commits      *int
	PullRequests *int
	Issues       *int
	Environments *int
	Packages     *int
	Webhooks     *int
	LastCommit   *time.Time

	ScanDate time.Time
}

func (GitHubRow) Schema() Schema { return SchemaGitHub }

func (r GitHubRow) Fields() []string {
	deep := func(n *int) string {
		if !r.DeepScan {
			return NotApplicable
		}
		return Count(n)
	}
	lastCommit := NotApplicable
	if r.DeepScan {
		lastCommit = Timestamp(r.LastCommit)
	}
	return []string{
		r.Org,
		r.Repo,
		r.FullName,
		GB(r.SizeBytes),
		MB(r.SizeBytes),
		KB(r.SizeBytes),
		Timestamp(r.UpdatedAt),
		DaysSince(r.UpdatedAt, r.ScanDate),
		Timestamp(r.PushedAt),
		DaysSince(r.PushedAt, r.ScanDate),
		Text(r.Visibility),
		Bool(r.Archived),
		Text(r.Language),
		Bool(r.IsFork),
		Count(&r.ForkCount),
		Bool(r.HasIssues),
		Bool(r.HasProjects),
		Bool(r.HasWiki),
		Bool(r.HasPages),
		deep(r.Branches),
		deep(r.Commits),
		deep(r.PullRequests),
		deep(r.Issues),
		deep(r.Environments),
		deep(r.Packages),
		deep(r.Webhooks),
		lastCommit,
		r.ScanDate.UTC().Format("2006-01-02"),
	}
}
