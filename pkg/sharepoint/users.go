package sharepoint

import (
	"context"
	"strings"
	"time"

	"github.com/praetorian-inc/sharecrawl/pkg/enum"
	"github.com/praetorian-inc/sharecrawl/pkg/types"
)

// UserPrefix tags SharePoint login names in access control lists.
const UserPrefix = "user:"

// SiteUsers calls fn for every individual user (PrincipalType 1) of site.
func (c *Crawler) SiteUsers(ctx context.Context, site string, fn func(Record) error) error {
	return c.pager.NextLinkPages(ctx, site+"/_api/web/siteusers", nil, func(p enum.Payload) error {
		rec := Record(p)
		if t, _ := rec.Int("PrincipalType"); t != principalUser {
			return nil
		}
		return fn(rec)
	})
}

// UserAccessDocument builds the access-control document of a site user.
// ok is false for records without a login name.
func UserAccessDocument(rec Record, now time.Time) (types.AccessDocument, bool) {
	login := LoginName(rec.Text("LoginName"))
	if login == "" {
		return types.AccessDocument{}, false
	}

	identity := types.Identity{
		Username: UserPrefix + login,
		UserID:   strings.ToLower(rec.Text("Email")),
	}
	return types.NewAccessDocument(login, identity, []string{UserPrefix + login}, now), true
}
