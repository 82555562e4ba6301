// Package sharepoint reads sites, lists, items and role assignments from a
// SharePoint Server farm over its REST API.
package sharepoint

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Azure/go-ntlmssp"
	"golang.org/x/oauth2"

	"github.com/praetorian-inc/sharecrawl/pkg/enum"
	"github.com/praetorian-inc/sharecrawl/pkg/types"
)

// Config holds the connection settings of a SharePoint Server farm.
type Config struct {
	// HostURL is the farm root, e.g. http://sharepoint.corp.example.
	HostURL string

	// Username may carry a domain as DOMAIN\user. Used for NTLM.
	Username string
	Password string

	// Token is a bearer token. When set it is used instead of NTLM.
	Token string

	InsecureSkipVerify bool
	Timeout            time.Duration
}

// Client performs REST calls against a farm. It implements enum.Caller and
// content.Opener.
type Client struct {
	host     string
	username string
	password string
	http     *http.Client
}

// NewClient creates a client for cfg.
func NewClient(cfg Config) (*Client, error) {
	host := strings.TrimRight(cfg.HostURL, "/")
	if host == "" {
		return nil, &types.ValidationError{Field: "sharepoint.host_url", Message: "must not be empty"}
	}
	if _, err := url.Parse(host); err != nil {
		return nil, &types.ValidationError{Field: "sharepoint.host_url", Message: err.Error()}
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	var httpClient *http.Client
	if cfg.Token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Transport: transport})
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
		httpClient = oauth2.NewClient(ctx, ts)
		httpClient.Timeout = timeout
	} else {
		httpClient = &http.Client{
			Transport: ntlmssp.Negotiator{RoundTripper: transport},
			Timeout:   timeout,
		}
	}

	return &Client{
		host:     host,
		username: cfg.Username,
		password: cfg.Password,
		http:     httpClient,
	}, nil
}

// Host returns the farm root URL.
func (c *Client) Host() string {
	return c.host
}

// Resolve turns a server-relative endpoint into an absolute URL. Absolute
// endpoints (next links) are returned unchanged.
func (c *Client) Resolve(endpoint string, params url.Values) (string, error) {
	raw := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		raw = c.host + "/" + strings.TrimLeft(endpoint, "/")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parsing endpoint %q: %w", endpoint, err)
	}
	if len(params) > 0 {
		q := u.Query()
		for key, vals := range params {
			q[key] = vals
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Call issues a GET for endpoint and decodes the JSON object it returns.
func (c *Client) Call(ctx context.Context, endpoint string, params url.Values) (enum.Payload, error) {
	resp, err := c.get(ctx, endpoint, params, "application/json;odata=minimalmetadata")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload enum.Payload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &types.RemoteError{Op: "decode", Path: endpoint, Transient: errors.Is(err, io.ErrUnexpectedEOF), Err: err}
	}
	return normalize(payload), nil
}

// Open streams the file behind item. The item must carry the
// "server_relative_url" and "site_url" fields set by the crawler.
func (c *Client) Open(ctx context.Context, item types.ItemDescriptor) (io.ReadCloser, error) {
	fileURL, _ := item.Fields[FieldServerRelativeURL].(string)
	if fileURL == "" {
		return nil, &types.RemoteError{Op: "open", Path: item.Path, Err: errors.New("item has no server relative url")}
	}
	site, _ := item.Fields[FieldSiteURL].(string)

	endpoint := site + "/_api/web/GetFileByServerRelativeUrl('" + quote(fileURL) + "')/$value"
	resp, err := c.get(ctx, endpoint, nil, "*/*")
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Ping checks that the given site answers.
func (c *Client) Ping(ctx context.Context, site string) error {
	_, err := c.Call(ctx, site+"/_api/web", url.Values{"$select": {"Title"}})
	return err
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, accept string) (*http.Response, error) {
	target, err := c.Resolve(endpoint, params)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", accept)
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &types.RemoteError{Op: "get", Path: endpoint, Transient: true, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		resp.Body.Close()
		return nil, &types.AuthenticationError{Server: c.host, Reason: "unauthorized"}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &types.StatusError{Code: resp.StatusCode, URL: target}
	}
	return resp, nil
}

// normalize rewrites verbose payloads ({"d": {"results": [...],
// "__next": ...}}) into the minimal-metadata shape with "value".
func normalize(payload enum.Payload) enum.Payload {
	d, ok := payload["d"].(map[string]any)
	if !ok {
		return payload
	}
	out := enum.Payload{}
	if results, ok := d["results"].([]any); ok {
		out["value"] = results
		if next, ok := d["__next"].(string); ok {
			out["__next"] = next
		}
		return out
	}
	for k, v := range d {
		out[k] = v
	}
	return out
}

// quote escapes a value for use inside an OData string literal.
func quote(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
