package entity

import "strings"

// Status is the persisted lifecycle status of an NCR
type Status string

// Status constants for NonConformanceReport
const (
	StatusOpen                   Status = "Open"
	StatusInProgress             Status = "In Progress"
	StatusWaitingForVerification Status = "Waiting for Verification"
	StatusClosed                 Status = "Closed"
)

// ComputedStatusOverdue is the derived display status; it is never stored
const ComputedStatusOverdue = "Overdue"

// Statuses lists every persisted status in lifecycle order
var Statuses = []Status{
	StatusOpen,
	StatusInProgress,
	StatusWaitingForVerification,
	StatusClosed,
}

// ParseStatus maps user input onto a persisted status.
// Matching ignores case and treats '_' and '-' as spaces.
func ParseStatus(s string) (Status, bool) {
	key := normalizeKey(s)
	for _, st := range Statuses {
		if normalizeKey(string(st)) == key {
			return st, true
		}
	}
	return "", false
}

// StatusNames returns the persisted statuses as strings
func StatusNames() []string {
	names := make([]string, len(Statuses))
	for i, st := range Statuses {
		names[i] = string(st)
	}
	return names
}

func (s Status) String() string {
	return string(s)
}

// Severity classifies defect impact
type Severity string

// Severity constants
const (
	SeverityMinor    Severity = "Minor"
	SeverityMajor    Severity = "Major"
	SeverityCritical Severity = "Critical"
)

// Severities lists the valid severities from least to most severe
var Severities = []Severity{SeverityMinor, SeverityMajor, SeverityCritical}

// ParseSeverity maps user input onto a severity, ignoring case
func ParseSeverity(s string) (Severity, bool) {
	key := normalizeKey(s)
	for _, sv := range Severities {
		if normalizeKey(string(sv)) == key {
			return sv, true
		}
	}
	return "", false
}

func (s Severity) String() string {
	return string(s)
}

// Role is the normalized role of an authenticated principal
type Role string

// Role constants
const (
	RoleInspector Role = "Inspector"
	RoleEngineer  Role = "Engineer"
	RoleManager   Role = "Manager"
	RoleAdmin     Role = "Admin"
)

// Roles lists every role from least to most privileged
var Roles = []Role{RoleInspector, RoleEngineer, RoleManager, RoleAdmin}

// ParseRole normalizes "admin", "ADMIN" and "Admin" to RoleAdmin
func ParseRole(s string) (Role, bool) {
	key := normalizeKey(s)
	for _, r := range Roles {
		if normalizeKey(string(r)) == key {
			return r, true
		}
	}
	return "", false
}

// ParseRoles parses a list of role names, returning the names it rejected
func ParseRoles(names []string) ([]Role, []string) {
	var roles []Role
	var invalid []string
	for _, n := range names {
		r, ok := ParseRole(n)
		if !ok {
			invalid = append(invalid, n)
			continue
		}
		roles = append(roles, r)
	}
	return roles, invalid
}

func (r Role) String() string {
	return string(r)
}

func normalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
