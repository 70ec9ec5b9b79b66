package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoOrgs is returned when the organization list yields no names.
var ErrNoOrgs = errors.New("no organizations to process")

// ReadOrgList reads one organization name per line. Whitespace is trimmed, blank
// lines and '#' comments are skipped, and duplicates keep their first position.
func ReadOrgList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open organization list: %w", err)
	}
	defer f.Close()

	var names []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		names = append(names, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read organization list: %w", err)
	}
	return normalizeOrgs(names), nil
}

// Organizations resolves the configured organization list: names from OrgFile
// followed by --org values.
func (c *Config) Organizations() ([]string, error) {
	var names []string
	if c.Input.OrgFile != "" {
		fromFile, err := ReadOrgList(c.Input.OrgFile)
		if err != nil {
			return nil, err
		}
		names = append(names, fromFile...)
	}
	names = normalizeOrgs(append(names, c.Input.Orgs...))
	if len(names) == 0 {
		return nil, ErrNoOrgs
	}
	return names, nil
}

func normalizeOrgs(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, raw := range in {
		name := strings.TrimSpace(raw)
		if name == "" || strings.HasPrefix(name, "#") {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
