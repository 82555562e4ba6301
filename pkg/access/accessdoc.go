package access

import (
	"maps"
	"slices"
	"time"

	"github.com/praetorian-inc/sharecrawl/pkg/types"
)

// UserAccessDocument builds the access-control document of one directory
// user. The document is keyed by the user's RID and grants the user's rid
// tag, its prefixed name and the rid tag of every group SID given.
func UserAccessDocument(name, sid string, groupSIDs []string, now time.Time) types.AccessDocument {
	ridUser := RIDTag(sid)
	username := UserTag(name)

	tags := make([]string, 0, 2+len(groupSIDs))
	tags = append(tags, ridUser, username)
	for _, g := range groupSIDs {
		tags = append(tags, RIDTag(g))
	}

	return types.NewAccessDocument(RID(sid), types.Identity{
		Username: username,
		UserID:   ridUser,
	}, tags, now)
}

// MappingAccessDocuments builds one access document per mapping row. Each
// also grants the plain mapping name, the tag MappingTable.Expand puts on
// documents.
func MappingAccessDocuments(table *MappingTable, now time.Time) []types.AccessDocument {
	if table == nil {
		return nil
	}
	docs := make([]types.AccessDocument, 0, len(table.Mappings))
	for _, m := range table.Mappings {
		doc := UserAccessDocument(m.Name, m.UserSID, m.GroupSIDs, now)
		params := &doc.Query.Template.Params
		if !slices.Contains(params.AccessControl, m.Name) {
			params.AccessControl = append(params.AccessControl, m.Name)
		}
		docs = append(docs, doc)
	}
	return docs
}

// DirectoryAccessDocuments builds one access document per directory user,
// listing the groups the user belongs to.
func DirectoryAccessDocuments(dir *IdentityDirectory, now time.Time) []types.AccessDocument {
	if dir == nil {
		return nil
	}

	memberOf := make(map[string][]string)
	for _, groupSID := range dir.Groups {
		for _, memberSID := range dir.Members[RID(groupSID)] {
			memberOf[memberSID] = append(memberOf[memberSID], groupSID)
		}
	}

	names := slices.Sorted(maps.Keys(dir.Users))
	docs := make([]types.AccessDocument, 0, len(names))
	for _, name := range names {
		sid := dir.Users[name]
		groups := memberOf[sid]
		slices.Sort(groups)
		docs = append(docs, UserAccessDocument(name, sid, groups, now))
	}
	return docs
}
