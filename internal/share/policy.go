package share

import (
	"fmt"
	"strings"
	"time"

	"github.com/alexjbarnes/nextcloud-links/internal/ocs"
)

// Permission is an OCS share permission bitmask.
type Permission int

const (
	PermRead   Permission = 1
	PermUpdate Permission = 2
	PermCreate Permission = 4
	PermDelete Permission = 8
	PermShare  Permission = 16

	// ReadOnly lets link holders view and download.
	ReadOnly = PermRead
	// ReadWrite also lets link holders upload, edit and delete.
	ReadWrite = PermRead | PermUpdate | PermCreate | PermDelete
)

var permissionNames = []struct {
	bit  Permission
	name string
}{
	{PermRead, "read"},
	{PermUpdate, "update"},
	{PermCreate, "create"},
	{PermDelete, "delete"},
	{PermShare, "share"},
}

// String names the bits set in p, e.g. "read+update".
func (p Permission) String() string {
	var parts []string

	for _, pn := range permissionNames {
		if p&pn.bit != 0 {
			parts = append(parts, pn.name)
		}
	}

	if len(parts) == 0 {
		return "none"
	}

	return strings.Join(parts, "+")
}

// Mode is one of the share permission levels offered to the user.
type Mode struct {
	Name        string
	Label       string
	Permissions Permission
}

// Modes is the closed set of offered permission levels.
var Modes = []Mode{
	{Name: "read", Label: "Read only", Permissions: ReadOnly},
	{Name: "readwrite", Label: "Read & write", Permissions: ReadWrite},
}

// ParseMode looks up a Mode by name.
func ParseMode(name string) (Mode, error) {
	for _, m := range Modes {
		if m.Name == name {
			return m, nil
		}
	}

	return Mode{}, fmt.Errorf("unknown share mode %q (want read or readwrite)", name)
}

// Duration is one of the link lifetimes offered to the user.
type Duration struct {
	Name   string
	Label  string
	days   int
	months int
}

// Never is the Duration of links without expiration.
var Never = Duration{Name: "never", Label: "Never expires"}

// Durations is the closed set of offered lifetimes.
var Durations = []Duration{
	{Name: "1d", Label: "1 day", days: 1},
	{Name: "1w", Label: "1 week", days: 7},
	{Name: "1m", Label: "1 month", months: 1},
	{Name: "6m", Label: "6 months", months: 6},
	Never,
}

// ParseDuration looks up a Duration by name.
func ParseDuration(name string) (Duration, error) {
	for _, d := range Durations {
		if d.Name == name {
			return d, nil
		}
	}

	return Duration{}, fmt.Errorf("unknown link duration %q (want 1d, 1w, 1m, 6m or never)", name)
}

// ExpireDate returns the YYYY-MM-DD expiration of a link created at now,
// or "" for Never.
func (d Duration) ExpireDate(now time.Time) string {
	if d.days == 0 && d.months == 0 {
		return ""
	}

	return now.AddDate(0, d.months, d.days).Format(time.DateOnly)
}

// Policy is the link a user asks for. ExpireDate is YYYY-MM-DD or empty
// for no expiration.
type Policy struct {
	Permissions Permission
	ExpireDate  string
}

// NewPolicy builds the policy for a mode and lifetime starting at now.
func NewPolicy(m Mode, d Duration, now time.Time) Policy {
	return Policy{
		Permissions: m.Permissions,
		ExpireDate:  d.ExpireDate(now),
	}
}

// Matches reports whether an existing share already satisfies the
// policy: a public link with exactly the same permission bits and the
// same expiration date (both absent, or equal as strings).
func (p Policy) Matches(s ocs.Share) bool {
	return s.IsPublicLink() &&
		Permission(s.Permissions) == p.Permissions &&
		s.Expiration == p.ExpireDate
}
