package access

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/praetorian-inc/sharecrawl/pkg/retry"
	"github.com/praetorian-inc/sharecrawl/pkg/types"
)

const (
	domain  = "S-1-5-21-1004336348-1177238915-682003330"
	alice   = domain + "-1101"
	bob     = domain + "-1102"
	carol   = domain + "-1103"
	finance = domain + "-2001"
	admins  = domain + "-2002"
)

func sampleDirectory() *IdentityDirectory {
	return &IdentityDirectory{
		Users:  map[string]string{"alice": alice, "bob": bob, "carol": carol},
		Groups: map[string]string{"finance": finance, "admins": admins},
		Members: map[string]map[string]string{
			"2001": {"alice": alice, "bob": bob},
			"2002": {"carol": carol},
		},
	}
}

func allow(sid string) types.PermissionEntry {
	return types.PermissionEntry{SubjectID: sid, Decision: types.Allow, RawMask: 0x1200a9}
}

func deny(sid string) types.PermissionEntry {
	return types.PermissionEntry{SubjectID: sid, Decision: types.Deny, RawMask: 0x1f01ff}
}

func TestResolveEntries(t *testing.T) {
	dir := sampleDirectory()

	tests := []struct {
		name     string
		entries  []types.PermissionEntry
		expected types.AccessControlList
	}{
		{
			name:     "single allow",
			entries:  []types.PermissionEntry{allow(alice)},
			expected: types.AccessControlList{"rid:1101"},
		},
		{
			name:     "allow and deny same subject",
			entries:  []types.PermissionEntry{allow(alice), deny(alice)},
			expected: types.AccessControlList{},
		},
		{
			name:     "deny first is the same",
			entries:  []types.PermissionEntry{deny(alice), allow(alice)},
			expected: types.AccessControlList{},
		},
		{
			name:     "group allow expands to members",
			entries:  []types.PermissionEntry{allow(finance)},
			expected: types.AccessControlList{"rid:1101", "rid:1102"},
		},
		{
			name:     "group allow with member deny",
			entries:  []types.PermissionEntry{allow(finance), deny(bob)},
			expected: types.AccessControlList{"rid:1101"},
		},
		{
			name:     "direct allow loses to group deny",
			entries:  []types.PermissionEntry{allow(alice), allow(carol), deny(finance)},
			expected: types.AccessControlList{"rid:1103"},
		},
		{
			name:     "two allow paths deduplicate",
			entries:  []types.PermissionEntry{allow(alice), allow(finance)},
			expected: types.AccessControlList{"rid:1101", "rid:1102"},
		},
		{
			name: "deny write still grants read",
			entries: []types.PermissionEntry{
				allow(alice),
				{SubjectID: bob, Decision: types.Deny, RawMask: DenyWriteMask},
			},
			expected: types.AccessControlList{"rid:1101", "rid:1102"},
		},
		{
			name:     "unknown subject uses its rid",
			entries:  []types.PermissionEntry{allow("S-1-5-32-544")},
			expected: types.AccessControlList{"rid:544"},
		},
		{
			name:     "no entries",
			entries:  nil,
			expected: types.AccessControlList{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ResolveEntries(tt.entries, dir))
		})
	}
}

func TestResolveEntries_MappingTable(t *testing.T) {
	table := &MappingTable{Mappings: []Mapping{
		{Name: "alice", UserSID: alice, GroupSIDs: []string{finance}},
		{Name: "bob", UserSID: bob, GroupSIDs: []string{finance}},
		{Name: "carol", UserSID: carol},
	}}

	acl := ResolveEntries([]types.PermissionEntry{allow(finance), allow(carol), deny(bob)}, table)

	assert.Equal(t, types.AccessControlList{"alice", "carol"}, acl)
}

func TestResolveEntries_PrefixExpander(t *testing.T) {
	acl := ResolveEntries([]types.PermissionEntry{
		allow("jdoe"),
		allow("asmith"),
		allow(""),
	}, PrefixExpander{Prefix: "user:"})

	assert.Equal(t, types.AccessControlList{"user:asmith", "user:jdoe"}, acl)
}

type fakeReader struct {
	entries []types.PermissionEntry
	errs    []error
	calls   int
}

func (f *fakeReader) ReadPermissions(ctx context.Context, item types.ItemDescriptor) ([]types.PermissionEntry, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return f.entries, nil
}

func TestResolver_Resolve(t *testing.T) {
	reader := &fakeReader{
		entries: []types.PermissionEntry{allow(finance)},
		errs:    []error{&types.StatusError{Code: 503}},
	}
	r := NewResolver(reader, sampleDirectory(), WithPolicy(retry.DefaultPolicy().NoDelay()))

	acl := r.Resolve(context.Background(), types.ItemDescriptor{Path: "share/a.txt", Kind: types.KindFile})

	assert.Equal(t, types.AccessControlList{"rid:1101", "rid:1102"}, acl)
	assert.Equal(t, 2, reader.calls)
}

func TestResolver_ReadFailureIsEmpty(t *testing.T) {
	reader := &fakeReader{errs: []error{&types.ContentReadError{Path: "locked.xlsx", Err: errors.New("sharing violation")}}}
	core, logs := observer.New(zap.WarnLevel)
	r := NewResolver(reader, sampleDirectory(), WithLogger(zap.New(core)), WithPolicy(retry.DefaultPolicy().NoDelay()))

	acl := r.Resolve(context.Background(), types.ItemDescriptor{Path: "locked.xlsx", Kind: types.KindFile})

	require.NotNil(t, acl)
	assert.Empty(t, acl)
	assert.Equal(t, 1, logs.FilterMessage("cannot read permissions").Len())
}

func TestResolver_UnsupportedIsSilent(t *testing.T) {
	reader := &fakeReader{errs: []error{types.ErrUnsupported}}
	core, logs := observer.New(zap.WarnLevel)
	r := NewResolver(reader, sampleDirectory(), WithLogger(zap.New(core)))

	acl := r.Resolve(context.Background(), types.ItemDescriptor{Path: "x"})

	assert.Empty(t, acl)
	assert.Zero(t, logs.Len())
}

func TestDecorate(t *testing.T) {
	doc := types.Document{ID: "1", AccessControl: []string{"rid:9", "rid:1"}}

	Decorate(&doc, types.AccessControlList{"rid:1", "rid:5"})

	assert.Equal(t, []string{"rid:1", "rid:5", "rid:9"}, doc.AccessControl)
}
