// Package identity merges user records from several directory sources into one
// roster per organization or project and classifies them.
package identity

import (
	"sort"
	"strings"
)

// Source is a bit set of the directories an identity was seen in.
type Source uint8

const (
	SourceRoster Source = 1 << iota
	SourceGraph
	SourceMembership
	SourceAdminGroup
)

func (s Source) Has(other Source) bool {
	return s&other == other
}

func (s Source) String() string {
	var parts []string
	if s.Has(SourceRoster) {
		parts = append(parts, "roster")
	}
	if s.Has(SourceGraph) {
		parts = append(parts, "graph")
	}
	if s.Has(SourceMembership) {
		parts = append(parts, "membership")
	}
	if s.Has(SourceAdminGroup) {
		parts = append(parts, "admin-group")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}

// Entry is one identity as returned by a single source.
type Entry struct {
	Source      Source
	ID          string
	Descriptor  string
	DisplayName string
	Principal   string
	Mail        string
	Domain      string

	// AccessLevel is the roster license status; empty for other sources.
	AccessLevel string
	Admin       bool
}

// Record is the merged view of one identity.
type Record struct {
	Key         string
	DisplayName string
	Principal   string
	Sources     Source
	AccessLevel string
	Active      bool
	Service     bool
	Admin       bool

	nameRank int
}

// Human reports whether the record counts towards user totals.
func (r Record) Human() bool {
	return !r.Service
}

// Key returns the identity key of an entry: the lower-cased principal name or
// mail when it looks like an address, then the descriptor, then the id.
// An entry without any of those has no key.
func Key(e Entry) string {
	for _, v := range []string{e.Principal, e.Mail} {
		v = strings.TrimSpace(v)
		if strings.Contains(v, "@") {
			return strings.ToLower(v)
		}
	}
	if d := strings.TrimSpace(e.Descriptor); d != "" {
		return d
	}
	return strings.TrimSpace(e.ID)
}

func nameRank(s Source) int {
	switch {
	case s.Has(SourceGraph):
		return 3
	case s.Has(SourceRoster):
		return 2
	case s.Has(SourceMembership), s.Has(SourceAdminGroup):
		return 1
	default:
		return 0
	}
}

// Roster is a merged set of identities keyed by identity key.
// A Roster is not safe for concurrent mutation.
type Roster struct {
	records       map[string]*Record
	rosterEntries int
}

func NewRoster() *Roster {
	return &Roster{records: make(map[string]*Record)}
}

// Merge builds a roster from every entry of every source.
func Merge(sources ...[]Entry) *Roster {
	r := NewRoster()
	for _, entries := range sources {
		r.AddAll(entries)
	}
	return r
}

func (r *Roster) AddAll(entries []Entry) {
	for _, e := range entries {
		r.Add(e)
	}
}

// Add merges one entry. It reports false when the entry carries no usable key.
func (r *Roster) Add(e Entry) bool {
	key := Key(e)
	if key == "" {
		return false
	}
	if e.Source.Has(SourceRoster) {
		r.rosterEntries++
	}

	rec, ok := r.records[key]
	if !ok {
		rec = &Record{Key: key}
		r.records[key] = rec
	}

	rec.Sources |= e.Source
	rec.Admin = rec.Admin || e.Admin
	rec.Service = rec.Service || IsService(e)

	if name := strings.TrimSpace(e.DisplayName); name != "" {
		if rank := nameRank(e.Source); rec.DisplayName == "" || rank > rec.nameRank {
			rec.DisplayName = name
			rec.nameRank = rank
		}
	}
	if rec.Principal == "" {
		rec.Principal = strings.TrimSpace(e.Principal)
	}
	if e.Source.Has(SourceRoster) {
		rec.AccessLevel = e.AccessLevel
		rec.Active = ActiveAccess(e.AccessLevel)
	}
	return true
}

// Clone returns an independent copy of the roster.
func (r *Roster) Clone() *Roster {
	out := &Roster{
		records:       make(map[string]*Record, len(r.records)),
		rosterEntries: r.rosterEntries,
	}
	for k, rec := range r.records {
		cp := *rec
		out.records[k] = &cp
	}
	return out
}

func (r *Roster) Len() int {
	return len(r.records)
}

func (r *Roster) Get(key string) (Record, bool) {
	rec, ok := r.records[key]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Records returns every record ordered by key.
func (r *Roster) Records() []Record {
	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Counts are the per-roster totals reported in the users output.
type Counts struct {
	Entitled int
	Members  int
	Admins   int
	Service  int
}

// Counts computes totals over human records. Entitled users are humans with an
// active roster entitlement; when the roster source contributed nothing, humans
// seen in the graph count instead. Members are team members only: an admin
// group entry adds to Admins but not to Members.
func (r *Roster) Counts() Counts {
	var c Counts
	for _, rec := range r.records {
		if rec.Service {
			c.Service++
			continue
		}
		if r.rosterEntries > 0 {
			if rec.Sources.Has(SourceRoster) && rec.Active {
				c.Entitled++
			}
		} else if rec.Sources.Has(SourceGraph) {
			c.Entitled++
		}
		if rec.Sources.Has(SourceMembership) {
			c.Members++
		}
		if rec.Admin {
			c.Admins++
		}
	}
	return c
}
