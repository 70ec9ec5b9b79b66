package identity

import "strings"

// serviceTokens mark built-in, build and automation identities.
var serviceTokens = []string{
	"tfs 2015 service account",
	"project collection service accounts",
	"build service",
	"svc_",
	"service",
	"build",
	"system",
	"agent",
	"pipeline",
	"noreply",
	"donotreply",
	"tfs2015",
}

var serviceDomains = map[string]struct{}{
	"build":     {},
	"agentpool": {},
}

// IsService reports whether an entry is a service or automation account.
// Matching is case-insensitive over the display name, principal name and
// descriptor.
func IsService(e Entry) bool {
	if _, ok := serviceDomains[strings.ToLower(strings.TrimSpace(e.Domain))]; ok {
		return true
	}
	for _, field := range []string{e.DisplayName, e.Principal, e.Descriptor} {
		if field == "" {
			continue
		}
		lower := strings.ToLower(field)
		for _, tok := range serviceTokens {
			if strings.Contains(lower, tok) {
				return true
			}
		}
	}
	return false
}

// ActiveAccess reports whether a roster access level grants an active entitlement.
func ActiveAccess(level string) bool {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "none", "inactive":
		return false
	default:
		return true
	}
}

// IsAdminGroup reports whether a project group name denotes administrators.
func IsAdminGroup(name string) bool {
	lower := strings.ToLower(name)
	for _, tok := range []string{"administrator", "admin", "owner", "lead"} {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}
