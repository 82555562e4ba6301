package sharepoint

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/praetorian-inc/sharecrawl/pkg/enum"
	"github.com/praetorian-inc/sharecrawl/pkg/retry"
	"github.com/praetorian-inc/sharecrawl/pkg/types"
)

func hrFarm(t *testing.T) *fakeFarm {
	return newFakeFarm(t, map[string]string{
		"/sites/hr/_api/web": `{
			"Id": "w1", "Title": "HR", "ServerRelativeUrl": "/sites/hr",
			"Url": "http://sp.corp.example/sites/hr",
			"Created": "2023-03-19T05:02:52Z", "LastItemModifiedDate": "2023-03-20T05:02:52Z",
			"Author": {"LoginName": "i:0#.w|corp\\admin", "Id": 1}
		}`,
		"/sites/hr/_api/web/lists": `{"value": [
			{"Id": "L1", "Title": "Tasks", "BaseType": 0, "RootFolder": {"ServerRelativeUrl": "/sites/hr/Lists/Tasks"}},
			{"Id": "D1", "Title": "Documents", "BaseType": 1, "RootFolder": {"ServerRelativeUrl": "/sites/hr/Shared Documents"}}
		]}`,
		"/sites/hr/_api/web/lists(guid'L1')/items": `{
			"value": [{
				"Id": 1, "GUID": "g-1", "Title": "Onboard", "Modified": "2023-04-01T10:00:00Z",
				"AttachmentFiles": [{"FileName": "plan.txt", "ServerRelativeUrl": "/sites/hr/Lists/Tasks/Attachments/1/plan.txt"}],
				"Author": {"Title": "Alice"}, "AuthorId": 7
			}],
			"odata.nextLink": "http://sp.corp.example/sites/hr/_api/web/lists(guid'L1')/items?$skiptoken=2"
		}`,
		"http://sp.corp.example/sites/hr/_api/web/lists(guid'L1')/items?$skiptoken=2": `{"value": [
			{"Id": 2, "GUID": "g-2", "Title": "Second", "AttachmentFiles": []}
		]}`,
		"/sites/hr/_api/web/lists(guid'D1')/items": `{"value": [
			{"Id": 3, "GUID": "g-3", "Folder": {"__deferred": {}}, "File": {
				"Name": "pay.xlsx", "ServerRelativeUrl": "/sites/hr/Shared Documents/pay.xlsx", "Length": "2048",
				"TimeCreated": "2022-05-02T07:20:33Z", "TimeLastModified": "2022-05-02T07:20:34Z"}},
			{"Id": 4, "GUID": "g-4", "File": {}, "Folder": {"Name": "Archive", "ServerRelativeUrl": "/sites/hr/Shared Documents/Archive"}},
			{"Id": 5, "GUID": "g-5"}
		]}`,
		"/sites/hr/_api/web/webs":         `{"value": [{"Id": "w2", "Title": "Payroll", "ServerRelativeUrl": "/sites/hr/payroll"}]}`,
		"/sites/hr/payroll/_api/web/lists": `{"value": []}`,
		"/sites/hr/payroll/_api/web/webs":  `{"value": []}`,
	})
}

func collect(t *testing.T, c *Crawler, collection string) ([]types.ItemDescriptor, error) {
	t.Helper()
	var items []types.ItemDescriptor
	err := c.Walk(context.Background(), collection, func(item types.ItemDescriptor) error {
		items = append(items, item)
		return nil
	})
	return items, err
}

func TestCrawler_Walk(t *testing.T) {
	farm := hrFarm(t)
	c := NewCrawler(farm, testHost, WithPolicy(retry.DefaultPolicy().NoDelay()))

	items, err := collect(t, c, "/sites/hr")

	require.NoError(t, err)
	var ids []string
	var kinds []types.ItemKind
	for _, item := range items {
		ids = append(ids, item.ID)
		kinds = append(kinds, item.Kind)
	}
	attachmentID := types.ComputeItemID("/sites/hr/Lists/Tasks/Attachments/1/plan.txt").Hex()
	assert.Equal(t, []string{"w1", "L1", "g-1", attachmentID, "g-2", "D1", "g-3", "g-4", "w2"}, ids)
	assert.Equal(t, []types.ItemKind{
		types.KindSite, types.KindList, types.KindListItem, types.KindFile, types.KindListItem,
		types.KindList, types.KindDriveItem, types.KindFolder, types.KindSite,
	}, kinds)

	site := items[0]
	assert.Equal(t, "/sites/hr", site.Path)
	assert.Equal(t, `corp\admin`, site.Fields[FieldAuthor])
	assert.Equal(t, time.Date(2023, 3, 20, 5, 2, 52, 0, time.UTC), site.ModifiedAt)

	entry := items[2]
	assert.Equal(t, "Alice", entry.Fields[FieldAuthor])
	assert.Equal(t, testHost+"/sites/hr/Lists/Tasks/DispForm.aspx?ID=1", entry.Fields[FieldURL])

	attachment := items[3]
	assert.Equal(t, "plan.txt", attachment.Title)
	assert.Equal(t, entry.ModifiedAt, attachment.ModifiedAt)
	assert.Equal(t, int64(1), attachment.Fields[FieldItemID])

	file := items[6]
	assert.Equal(t, "pay.xlsx", file.Title)
	assert.Equal(t, int64(2048), file.Size)
	assert.Equal(t, "/sites/hr", file.Fields[FieldSiteURL])

	assert.Equal(t, "File,Folder,Author,Editor", farm.params["/sites/hr/_api/web/lists(guid'D1')/items"].Get("$expand"))
}

func TestCrawler_SkipsBrokenList(t *testing.T) {
	farm := hrFarm(t)
	delete(farm.responses, "/sites/hr/_api/web/lists(guid'D1')/items")
	core, logs := observer.New(zapcore.WarnLevel)
	c := NewCrawler(farm, testHost,
		WithPolicy(retry.DefaultPolicy().NoDelay()),
		WithLogger(zap.New(core)))
	skips := &enum.Skips{}

	var items []types.ItemDescriptor
	err := c.Walk(enum.WithSkips(context.Background(), skips), "/sites/hr", func(item types.ItemDescriptor) error {
		items = append(items, item)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, "w2", items[len(items)-1].ID)
	assert.Equal(t, []string{"/sites/hr/Shared Documents"}, skips.Paths())
	entries := logs.FilterMessage("skipping list").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Documents", entries[0].ContextMap()["list"])
}

func TestCrawler_MissingCollection(t *testing.T) {
	farm := hrFarm(t)
	c := NewCrawler(farm, testHost, WithPolicy(retry.DefaultPolicy().NoDelay()))

	_, err := collect(t, c, "/sites/missing")

	var statusErr *types.StatusError
	assert.ErrorAs(t, err, &statusErr)
}

func TestCrawler_StopsOnCallbackError(t *testing.T) {
	farm := hrFarm(t)
	c := NewCrawler(farm, testHost)
	stop := assert.AnError

	n := 0
	err := c.Walk(context.Background(), "/sites/hr", func(types.ItemDescriptor) error {
		n++
		if n == 3 {
			return stop
		}
		return nil
	})

	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 3, n)
	assert.Zero(t, farm.count("/sites/hr/_api/web/webs"))
}

func TestCrawler_SiteUsers(t *testing.T) {
	farm := newFakeFarm(t, map[string]string{
		"/sites/hr/_api/web/siteusers": `{"value": [
			{"Id": 1, "LoginName": "i:0#.w|corp\\alice", "PrincipalType": 1, "Email": "Alice@corp.example"},
			{"Id": 2, "LoginName": "c:0+.w|s-1-5-21-1", "PrincipalType": 4},
			{"Id": 3, "LoginName": "i:0#.w|corp\\bob", "PrincipalType": 1}
		]}`,
	})
	c := NewCrawler(farm, testHost)

	var logins []string
	err := c.SiteUsers(context.Background(), "/sites/hr", func(rec Record) error {
		logins = append(logins, LoginName(rec.Text("LoginName")))
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{`corp\alice`, `corp\bob`}, logins)
}
