// Package data holds the canonical payloads produced by the API adapters and
// the output records built from them.
//
// Adapters translate wire formats into these types before any merge or
// detection logic runs, so nothing downstream depends on a backend's JSON shape.
package data

import "time"

// Kind is the version control or content kind of a project.
type Kind string

const (
	KindGit         Kind = "GIT"
	KindTFVC        Kind = "TFVC"
	KindArtifacts   Kind = "ARTIFACTS"
	KindWiki        Kind = "WIKI"
	KindFileStorage Kind = "FILE_STORAGE"
)

// HasBranches reports whether branch counts apply to the kind.
func (k Kind) HasBranches() bool {
	return k == KindGit
}

// Project is one Azure DevOps project.
type Project struct {
	ID          string
	Name        string
	Description string
	LastUpdate  *time.Time
}

// RepoMeta is the listing entry for a Git repository.
//
// Size is the server reported packed size; nil when the field was absent.
type RepoMeta struct {
	ID            string
	Name          string
	DefaultBranch string
	Size          *int64
	Disabled      bool
}

// Item is one entry of a Git or TFVC items listing.
type Item struct {
	Path     string
	IsFolder bool
	Size     int64
}

// Change is the latest modification of a unit: a commit, a changeset or a
// work item update.
type Change struct {
	ID     string
	Author string
	When   time.Time
}

// Attachment is a work item attachment.
type Attachment struct {
	Name string
	Size int64
}

// Team is a project team.
type Team struct {
	ID   string
	Name string
}

// Group is a graph security group scoped to a project.
type Group struct {
	Descriptor  string
	DisplayName string
	Principal   string
}

// Stats aggregates an items or attachments listing.
type Stats struct {
	Bytes   int64
	Files   int
	Largest int64
}

// Aggregate sums the non-folder items.
func Aggregate(items []Item) Stats {
	var s Stats
	for _, it := range items {
		if it.IsFolder {
			continue
		}
		s.Files++
		s.Bytes += it.Size
		if it.Size > s.Largest {
			s.Largest = it.Size
		}
	}
	return s
}

// AggregateAttachments sums work item attachments.
func AggregateAttachments(atts []Attachment) Stats {
	var s Stats
	for _, a := range atts {
		s.Files++
		s.Bytes += a.Size
		if a.Size > s.Largest {
			s.Largest = a.Size
		}
	}
	return s
}

// RepoStats are the measured facts of one inventory unit.
//
// Every field stays nil until a method resolved it. A resolved zero is a real
// measurement and is rendered as 0, never as Unknown.
type RepoStats struct {
	SizeBytes    *int64
	FileCount    *int
	LargestBytes *int64
	BranchCount  *int
	LastModified *time.Time
	LastAuthor   string
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
