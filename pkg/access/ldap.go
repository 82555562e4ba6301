package access

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"

	"github.com/go-ldap/ldap/v3"

	"github.com/praetorian-inc/sharecrawl/pkg/types"
)

const (
	userFilter  = "(&(objectCategory=person)(objectClass=user))"
	groupFilter = "(objectClass=group)"
	// memberFilter follows nested membership (LDAP_MATCHING_RULE_IN_CHAIN).
	memberFilter = "(&(objectClass=user)(memberOf:1.2.840.113556.1.4.1941:=%s))"

	defaultLDAPPageSize = 500
)

// LDAPConfig locates and authenticates against an Active Directory domain
// controller.
type LDAPConfig struct {
	URL    string
	BaseDN string
	// Domain selects an NTLM bind; otherwise a simple bind is used.
	Domain             string
	Username           string
	Password           string
	InsecureSkipVerify bool
	PageSize           uint32
}

type searcher interface {
	SearchWithPaging(req *ldap.SearchRequest, pagingSize uint32) (*ldap.SearchResult, error)
}

// LDAPDirectory is a DirectorySource backed by Active Directory.
type LDAPDirectory struct {
	cfg LDAPConfig

	mu       sync.Mutex
	conn     *ldap.Conn
	searcher searcher
	groupDNs map[string]string
}

// NewLDAPDirectory creates a directory that connects on first use.
func NewLDAPDirectory(cfg LDAPConfig) *LDAPDirectory {
	if cfg.PageSize == 0 {
		cfg.PageSize = defaultLDAPPageSize
	}
	return &LDAPDirectory{cfg: cfg, groupDNs: make(map[string]string)}
}

// Connect dials and binds. Bad credentials yield a
// *types.AuthenticationError.
func (d *LDAPDirectory) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.connectLocked(ctx)
	return err
}

func (d *LDAPDirectory) connectLocked(ctx context.Context) (searcher, error) {
	if d.searcher != nil {
		return d.searcher, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conn, err := ldap.DialURL(d.cfg.URL, ldap.DialWithTLSConfig(&tls.Config{
		InsecureSkipVerify: d.cfg.InsecureSkipVerify,
	}))
	if err != nil {
		return nil, &types.RemoteError{Op: "dial", Path: d.cfg.URL, Transient: true, Err: err}
	}

	if d.cfg.Domain != "" {
		err = conn.NTLMBind(d.cfg.Domain, d.cfg.Username, d.cfg.Password)
	} else {
		err = conn.Bind(d.cfg.Username, d.cfg.Password)
	}
	if err != nil {
		conn.Close()
		if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) ||
			ldap.IsErrorWithCode(err, ldap.LDAPResultInappropriateAuthentication) {
			return nil, &types.AuthenticationError{Server: d.cfg.URL, Reason: "invalid credentials", Err: err}
		}
		return nil, fmt.Errorf("binding to %s: %w", d.cfg.URL, err)
	}

	d.conn = conn
	d.searcher = conn
	return conn, nil
}

// Close releases the connection.
func (d *LDAPDirectory) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn != nil {
		d.conn.Close()
		d.conn = nil
		d.searcher = nil
	}
}

func (d *LDAPDirectory) search(ctx context.Context, filter string, attrs ...string) ([]*ldap.Entry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, err := d.connectLocked(ctx)
	if err != nil {
		return nil, err
	}
	req := ldap.NewSearchRequest(d.cfg.BaseDN, ldap.ScopeWholeSubtree, ldap.NeverDerefAliases,
		0, 0, false, filter, attrs, nil)
	result, err := s.SearchWithPaging(req, d.cfg.PageSize)
	if err != nil {
		return nil, fmt.Errorf("ldap search %s: %w", filter, err)
	}
	return result.Entries, nil
}

// accounts maps sAMAccountName to SID for every entry with a decodable SID.
func accounts(entries []*ldap.Entry, dns map[string]string) map[string]string {
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		name := e.GetAttributeValue("sAMAccountName")
		sid, _, err := ParseSID(e.GetRawAttributeValue("objectSid"))
		if name == "" || err != nil {
			continue
		}
		out[name] = sid
		if dns != nil {
			dns[name] = e.DN
		}
	}
	return out
}

// ListUsers returns every user account.
func (d *LDAPDirectory) ListUsers(ctx context.Context) (map[string]string, error) {
	entries, err := d.search(ctx, userFilter, "sAMAccountName", "objectSid")
	if err != nil {
		return nil, err
	}
	return accounts(entries, nil), nil
}

// ListGroups returns every group and remembers its DN for member lookups.
func (d *LDAPDirectory) ListGroups(ctx context.Context) (map[string]string, error) {
	entries, err := d.search(ctx, groupFilter, "sAMAccountName", "objectSid")
	if err != nil {
		return nil, err
	}
	dns := make(map[string]string)
	groups := accounts(entries, dns)

	d.mu.Lock()
	d.groupDNs = dns
	d.mu.Unlock()
	return groups, nil
}

// ListGroupMembers returns the user accounts in group, including members of
// nested groups.
func (d *LDAPDirectory) ListGroupMembers(ctx context.Context, group string) (map[string]string, error) {
	d.mu.Lock()
	dn, ok := d.groupDNs[group]
	d.mu.Unlock()

	if !ok {
		entries, err := d.search(ctx, fmt.Sprintf("(&%s(sAMAccountName=%s))", groupFilter, ldap.EscapeFilter(group)), "sAMAccountName")
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			return nil, fmt.Errorf("group %q not found", group)
		}
		dn = entries[0].DN
	}

	entries, err := d.search(ctx, fmt.Sprintf(memberFilter, ldap.EscapeFilter(dn)), "sAMAccountName", "objectSid")
	if err != nil {
		return nil, err
	}
	return accounts(entries, nil), nil
}
