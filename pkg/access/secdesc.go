package access

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/praetorian-inc/sharecrawl/pkg/types"
)

const (
	aceAccessAllowed = 0
	aceAccessDenied  = 1

	securityDescriptorHeader = 20
	aclHeader                = 8
)

// ParseSecurityDescriptor reads the DACL of a self-relative NT security
// descriptor, the format exposed by SMB servers and the cifs
// "system.cifs_acl" attribute. Only access-allowed and access-denied
// entries are returned; a descriptor without a DACL has no entries.
func ParseSecurityDescriptor(b []byte) ([]types.PermissionEntry, error) {
	if len(b) < securityDescriptorHeader {
		return nil, fmt.Errorf("security descriptor too short: %d bytes", len(b))
	}
	if b[0] != 1 {
		return nil, fmt.Errorf("unsupported security descriptor revision %d", b[0])
	}

	offset := int(binary.LittleEndian.Uint32(b[16:20]))
	if offset == 0 {
		return nil, nil
	}
	if offset+aclHeader > len(b) {
		return nil, errors.New("dacl offset out of range")
	}

	acl := b[offset:]
	size := int(binary.LittleEndian.Uint16(acl[2:4]))
	count := int(binary.LittleEndian.Uint16(acl[4:6]))
	if size < aclHeader || size > len(acl) {
		return nil, fmt.Errorf("invalid dacl size %d", size)
	}
	acl = acl[:size]

	entries := make([]types.PermissionEntry, 0, count)
	pos := aclHeader
	for i := 0; i < count; i++ {
		if pos+4 > len(acl) {
			return nil, fmt.Errorf("ace %d out of range", i)
		}
		aceType := acl[pos]
		aceSize := int(binary.LittleEndian.Uint16(acl[pos+2 : pos+4]))
		if aceSize < 8 || pos+aceSize > len(acl) {
			return nil, fmt.Errorf("ace %d has invalid size %d", i, aceSize)
		}
		ace := acl[pos : pos+aceSize]
		pos += aceSize

		var decision types.Decision
		switch aceType {
		case aceAccessAllowed:
			decision = types.Allow
		case aceAccessDenied:
			decision = types.Deny
		default:
			continue
		}

		sid, _, err := ParseSID(ace[8:])
		if err != nil {
			return nil, fmt.Errorf("ace %d: %w", i, err)
		}
		entries = append(entries, types.PermissionEntry{
			SubjectID: sid,
			Decision:  decision,
			RawMask:   binary.LittleEndian.Uint32(ace[4:8]),
		})
	}
	return entries, nil
}
