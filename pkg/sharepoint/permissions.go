package sharepoint

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/praetorian-inc/sharecrawl/pkg/enum"
	"github.com/praetorian-inc/sharecrawl/pkg/types"
)

// principalUser is the PrincipalType of an individual user.
const principalUser = 1

// Permissions reads role assignments as permission entries. It
// implements access.PermissionReader. Site administrators are added to
// every item of their site.
type Permissions struct {
	caller enum.Caller

	mu     sync.Mutex
	admins map[string][]string
}

// NewPermissions creates a reader over caller.
func NewPermissions(caller enum.Caller) *Permissions {
	return &Permissions{
		caller: caller,
		admins: make(map[string][]string),
	}
}

// ReadPermissions returns an allow entry for every user granted a role on
// item, directly or through a group, plus the site administrators.
// SharePoint has no deny assignments.
func (p *Permissions) ReadPermissions(ctx context.Context, item types.ItemDescriptor) ([]types.PermissionEntry, error) {
	fields := Record(item.Fields)
	site := fields.Text(FieldSiteURL)
	if site == "" {
		return nil, types.ErrUnsupported
	}

	endpoint, err := roleAssignmentsEndpoint(item.Kind, fields)
	if err != nil {
		return nil, err
	}

	var logins []string
	params := url.Values{"$expand": {"Member/Users,RoleDefinitionBindings"}}
	err = p.pages(ctx, site+endpoint, params, func(rec Record) {
		logins = append(logins, assignmentLogins(rec)...)
	})
	if err != nil {
		return nil, err
	}

	admins, err := p.siteAdmins(ctx, site)
	if err != nil {
		return nil, err
	}
	logins = append(logins, admins...)

	entries := make([]types.PermissionEntry, 0, len(logins))
	for _, login := range logins {
		entries = append(entries, types.PermissionEntry{SubjectID: login, Decision: types.Allow})
	}
	return entries, nil
}

func roleAssignmentsEndpoint(kind types.ItemKind, fields Record) (string, error) {
	switch kind {
	case types.KindSite:
		return "/_api/web/roleassignments", nil
	case types.KindList:
		return "/_api/web/lists(guid'" + quote(fields.Text(FieldListID)) + "')/roleassignments", nil
	case types.KindListItem, types.KindDriveItem, types.KindFolder, types.KindFile:
		id, ok := fields.Int(FieldItemID)
		if !ok {
			return "", fmt.Errorf("%w: item has no list item id", types.ErrUnsupported)
		}
		return "/_api/web/lists(guid'" + quote(fields.Text(FieldListID)) + "')/items(" + strconv.FormatInt(id, 10) + ")/roleassignments", nil
	default:
		return "", types.ErrUnsupported
	}
}

// assignmentLogins returns the users of one role assignment: the member
// itself when it is a user, or the users of a group member.
func assignmentLogins(rec Record) []string {
	member, ok := rec.Object("Member")
	if !ok {
		return nil
	}
	if users, ok := member.List("Users"); ok {
		out := make([]string, 0, len(users))
		for _, u := range users {
			if login := LoginName(u.Text("LoginName")); login != "" {
				out = append(out, login)
			}
		}
		return out
	}
	if t, _ := member.Int("PrincipalType"); t == principalUser {
		if login := LoginName(member.Text("LoginName")); login != "" {
			return []string{login}
		}
	}
	return nil
}

func (p *Permissions) siteAdmins(ctx context.Context, site string) ([]string, error) {
	p.mu.Lock()
	cached, ok := p.admins[site]
	p.mu.Unlock()
	if ok {
		return cached, nil
	}

	admins := []string{}
	params := url.Values{"$filter": {"IsSiteAdmin eq true"}}
	err := p.pages(ctx, site+"/_api/web/siteusers", params, func(rec Record) {
		if admin, _ := rec.Bool("IsSiteAdmin"); !admin {
			return
		}
		if login := LoginName(rec.Text("LoginName")); login != "" {
			admins = append(admins, login)
		}
	})
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.admins[site] = admins
	p.mu.Unlock()
	return admins, nil
}

// pages follows next links without retrying; the caller retries the whole
// read.
func (p *Permissions) pages(ctx context.Context, endpoint string, params url.Values, fn func(Record)) error {
	for endpoint != "" {
		payload, err := p.caller.Call(ctx, endpoint, params)
		if err != nil {
			return err
		}
		for _, v := range enum.Values(payload) {
			fn(Record(v))
		}
		endpoint, params = enum.NextLink(payload), nil
	}
	return nil
}
