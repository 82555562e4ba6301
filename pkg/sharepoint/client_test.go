package sharepoint

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/sharecrawl/pkg/enum"
	"github.com/praetorian-inc/sharecrawl/pkg/retry"
	"github.com/praetorian-inc/sharecrawl/pkg/types"
)

func farmServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/sites/hr/_api/web/lists", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"value": [{"Id": "L1", "Title": "`+r.URL.Query().Get("$top")+`"}]}`)
	})
	mux.HandleFunc("/sites/hr/_api/web/webs", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"d": {"results": [{"Id": "w2"}], "__next": "next-page"}}`)
	})
	mux.HandleFunc("/sites/hr/_api/web", func(w http.ResponseWriter, r *http.Request) {
		user, pass, _ := r.BasicAuth()
		bearer := r.Header.Get("Authorization")
		if user == "" && bearer != "Bearer s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"d": {"Title": "HR", "User": "`+user+`:`+pass+`"}}`)
	})
	mux.HandleFunc("/sites/busy/_api/web", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sites/hr/_api/web/GetFileByServerRelativeUrl('/sites/hr/Shared Documents/it''s.txt')/$value" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, "file body")
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestClient_CallRelativeWithParams(t *testing.T) {
	server := farmServer(t)
	c, err := NewClient(Config{HostURL: server.URL + "/", Username: `corp\svc`, Password: "pw"})
	require.NoError(t, err)

	payload, err := c.Call(context.Background(), "/sites/hr/_api/web/lists", url.Values{"$top": {"50"}})

	require.NoError(t, err)
	records := enum.Values(payload)
	require.Len(t, records, 1)
	assert.Equal(t, "50", records[0]["Title"])
}

func TestClient_NormalizesVerbosePayloads(t *testing.T) {
	server := farmServer(t)
	c, err := NewClient(Config{HostURL: server.URL, Username: `corp\svc`, Password: "pw"})
	require.NoError(t, err)

	list, err := c.Call(context.Background(), "sites/hr/_api/web/webs", nil)
	require.NoError(t, err)
	assert.Len(t, enum.Values(list), 1)
	assert.Equal(t, "next-page", enum.NextLink(list))

	web, err := c.Call(context.Background(), "/sites/hr/_api/web", nil)
	require.NoError(t, err)
	assert.Equal(t, "HR", web["Title"])
	assert.Equal(t, `corp\svc:pw`, web["User"])
}

func TestClient_BearerToken(t *testing.T) {
	server := farmServer(t)
	c, err := NewClient(Config{HostURL: server.URL, Token: "s3cret"})
	require.NoError(t, err)

	require.NoError(t, c.Ping(context.Background(), "/sites/hr"))
}

func TestClient_Errors(t *testing.T) {
	server := farmServer(t)
	c, err := NewClient(Config{HostURL: server.URL})
	require.NoError(t, err)

	err = c.Ping(context.Background(), "/sites/hr")
	assert.True(t, types.IsAuthentication(err))

	_, err = c.Call(context.Background(), "/sites/busy/_api/web", nil)
	var statusErr *types.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
	assert.True(t, retry.IsTransient(err))

	_, err = NewClient(Config{})
	var validationErr *types.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestClient_Open(t *testing.T) {
	server := farmServer(t)
	c, err := NewClient(Config{HostURL: server.URL, Username: "svc"})
	require.NoError(t, err)

	rc, err := c.Open(context.Background(), types.ItemDescriptor{
		Path: "/sites/hr/Shared Documents/it's.txt",
		Fields: map[string]any{
			FieldSiteURL:           "/sites/hr",
			FieldServerRelativeURL: "/sites/hr/Shared Documents/it's.txt",
		},
	})
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "file body", string(body))

	_, err = c.Open(context.Background(), types.ItemDescriptor{Path: "x"})
	assert.Error(t, err)
}

func TestRecord(t *testing.T) {
	rec := Record{
		"Length":   "12",
		"Id":       float64(3),
		"Created":  "2023-01-30T12:48:31Z",
		"Broken":   "yesterday",
		"Deferred": map[string]any{"__deferred": map[string]any{}},
		"Users":    map[string]any{"results": []any{map[string]any{"Id": "u1"}, "junk"}},
	}

	n, ok := rec.Int("Length")
	assert.True(t, ok)
	assert.Equal(t, int64(12), n)
	id, ok := rec.ID()
	assert.True(t, ok)
	assert.Equal(t, "3", id)
	_, ok = rec.Time("Created")
	assert.True(t, ok)
	_, ok = rec.Time("Broken")
	assert.False(t, ok)
	_, ok = rec.Object("Deferred")
	assert.False(t, ok)
	users, ok := rec.List("Users")
	assert.True(t, ok)
	require.Len(t, users, 1)
	assert.Equal(t, "u1", users[0].Text("Id"))
	_, ok = rec.String("Missing")
	assert.False(t, ok)
}

func TestLoginName(t *testing.T) {
	assert.Equal(t, `corp\alice`, LoginName(`i:0#.w|corp\alice`))
	assert.Equal(t, "bob", LoginName("bob"))
	assert.Equal(t, "", LoginName("i:0#.w|"))
}
