package types

import (
	"slices"
	"time"
)

// Decision is the effect of a permission entry.
type Decision int

const (
	Allow Decision = iota
	Deny
)

// String returns "allow" or "deny".
func (d Decision) String() string {
	if d == Deny {
		return "deny"
	}
	return "allow"
}

// PermissionEntry is one native ACE or role assignment.
type PermissionEntry struct {
	// SubjectID is a SID or a login-derived identity.
	SubjectID string
	Decision  Decision
	// RawMask is the native access mask, opaque outside pkg/access.
	RawMask uint32
}

// AccessControlList is a sorted, deduplicated set of identity tags.
type AccessControlList []string

// NewAccessControlList sorts and deduplicates tags.
func NewAccessControlList(tags ...string) AccessControlList {
	out := slices.Clone(tags)
	slices.Sort(out)
	return slices.Compact(out)
}

// Contains reports whether tag is in the list.
func (l AccessControlList) Contains(tag string) bool {
	_, found := slices.BinarySearch(l, tag)
	return found
}

// Identity names the subject of an access-control document.
type Identity struct {
	Username string `json:"username"`
	UserID   string `json:"user_id,omitempty"`
}

// AccessQuery is the search-template fragment carried by access-control
// documents; the sink substitutes AccessControl into its filter.
type AccessQuery struct {
	Template struct {
		Params struct {
			AccessControl []string `json:"access_control"`
		} `json:"params"`
	} `json:"template"`
}

// AccessDocument describes one identity for access-control sync.
type AccessDocument struct {
	ID        string      `json:"_id"`
	Identity  Identity    `json:"identity"`
	CreatedAt string      `json:"created_at"`
	Query     AccessQuery `json:"query"`
}

// NewAccessDocument builds an access document whose query grants the given
// tags.
func NewAccessDocument(id string, identity Identity, tags []string, now time.Time) AccessDocument {
	doc := AccessDocument{
		ID:        id,
		Identity:  identity,
		CreatedAt: FormatTimestamp(now),
	}
	doc.Query.Template.Params.AccessControl = tags
	return doc
}
