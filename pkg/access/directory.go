// Package access maps native permission entries onto normalized access
// control lists, applying deny precedence after group expansion.
package access

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// DirectorySource enumerates the identities of a Windows-style directory.
// Each map is keyed by account name and holds the account SID.
type DirectorySource interface {
	ListUsers(ctx context.Context) (map[string]string, error)
	ListGroups(ctx context.Context) (map[string]string, error)
	ListGroupMembers(ctx context.Context, group string) (map[string]string, error)
}

// Expander turns one permission subject into the access tags it stands for.
type Expander interface {
	Expand(subject string) []string
}

// IdentityDirectory is a snapshot of users, groups and group membership.
// It is built once per sync cycle and is read-only afterwards.
type IdentityDirectory struct {
	Users  map[string]string
	Groups map[string]string
	// Members is keyed by group RID.
	Members map[string]map[string]string
}

// BuildDirectory snapshots src. A group whose members cannot be listed is
// kept without members and logged.
func BuildDirectory(ctx context.Context, src DirectorySource, logger *zap.Logger) (*IdentityDirectory, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	users, err := src.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	groups, err := src.ListGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing groups: %w", err)
	}

	dir := &IdentityDirectory{
		Users:   users,
		Groups:  groups,
		Members: make(map[string]map[string]string, len(groups)),
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		members, err := src.ListGroupMembers(ctx, name)
		if err != nil {
			logger.Warn("cannot list group members", zap.String("group", name), zap.Error(err))
			continue
		}
		dir.Members[RID(groups[name])] = members
	}

	logger.Info("identity directory built",
		zap.Int("users", len(users)),
		zap.Int("groups", len(groups)))
	return dir, nil
}

// Expand resolves a SID to rid tags. A group SID expands to the tags of its
// members (nested groups are followed); any other SID is its own rid tag.
func (d *IdentityDirectory) Expand(sid string) []string {
	if d == nil {
		return []string{RIDTag(sid)}
	}
	var out []string
	d.expand(RID(sid), map[string]bool{}, &out)
	return out
}

func (d *IdentityDirectory) expand(rid string, visited map[string]bool, out *[]string) {
	members := d.Members[rid]
	if len(members) == 0 {
		*out = append(*out, "rid:"+rid)
		return
	}
	if visited[rid] {
		return
	}
	visited[rid] = true
	for _, sid := range members {
		d.expand(RID(sid), visited, out)
	}
}

// PrefixExpander tags subjects that are already identity names, e.g.
// SharePoint login names.
type PrefixExpander struct {
	Prefix string
}

// Expand returns Prefix+subject, or nothing for an empty subject.
func (p PrefixExpander) Expand(subject string) []string {
	if subject == "" {
		return nil
	}
	return []string{p.Prefix + subject}
}
