package access

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/praetorian-inc/sharecrawl/pkg/retry"
	"github.com/praetorian-inc/sharecrawl/pkg/types"
)

// DenyWriteMask is the access mask of a "deny write" ACE. Such an entry
// still grants read access and counts as an allow.
const DenyWriteMask uint32 = 278

// PermissionReader reads the native permission entries of one item.
type PermissionReader interface {
	ReadPermissions(ctx context.Context, item types.ItemDescriptor) ([]types.PermissionEntry, error)
}

// ResolveEntries expands every entry and returns Allow minus Deny, computed
// on individual identities, sorted and deduplicated. Entry order does not
// matter.
func ResolveEntries(entries []types.PermissionEntry, expander Expander) types.AccessControlList {
	allow := make(map[string]struct{})
	deny := make(map[string]struct{})

	for _, e := range entries {
		target := allow
		if e.Decision == types.Deny && e.RawMask != DenyWriteMask {
			target = deny
		}
		for _, tag := range expander.Expand(e.SubjectID) {
			target[tag] = struct{}{}
		}
	}

	tags := make([]string, 0, len(allow))
	for tag := range allow {
		if _, denied := deny[tag]; !denied {
			tags = append(tags, tag)
		}
	}
	return types.NewAccessControlList(tags...)
}

// Resolver computes the access control list of an item from its native
// permissions.
type Resolver struct {
	reader   PermissionReader
	expander Expander
	policy   retry.Policy
	logger   *zap.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithLogger sets the logger for permission read failures.
func WithLogger(logger *zap.Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithPolicy sets the retry policy for permission reads.
func WithPolicy(p retry.Policy) ResolverOption {
	return func(r *Resolver) {
		r.policy = p
	}
}

// NewResolver creates a Resolver reading through reader and expanding
// subjects with expander.
func NewResolver(reader PermissionReader, expander Expander, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		reader:   reader,
		expander: expander,
		policy:   retry.DefaultPolicy(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the access control list of item. A failed permission read
// is logged and treated as an empty ACL; it never fails the document.
func (r *Resolver) Resolve(ctx context.Context, item types.ItemDescriptor) types.AccessControlList {
	entries, err := retry.Do(ctx, r.policy, "read permissions", item.Path, func(ctx context.Context) ([]types.PermissionEntry, error) {
		return r.reader.ReadPermissions(ctx, item)
	})
	if err != nil {
		if !errors.Is(err, types.ErrUnsupported) {
			r.logger.Warn("cannot read permissions",
				zap.String("path", item.Path),
				zap.String("kind", string(item.Kind)),
				zap.Error(err))
		}
		return types.AccessControlList{}
	}
	return ResolveEntries(entries, r.expander)
}

// Decorate merges acl into the document's access control field.
func Decorate(doc *types.Document, acl types.AccessControlList) {
	merged := make([]string, 0, len(doc.AccessControl)+len(acl))
	merged = append(merged, doc.AccessControl...)
	merged = append(merged, acl...)
	doc.AccessControl = types.NewAccessControlList(merged...)
}
