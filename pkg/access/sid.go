package access

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// RID returns the relative identifier of a SID: its trailing dash-delimited
// component. A subject without dashes is returned unchanged.
func RID(sid string) string {
	if i := strings.LastIndexByte(sid, '-'); i >= 0 {
		return sid[i+1:]
	}
	return sid
}

// RIDTag returns the "rid:<n>" access tag for a SID.
func RIDTag(sid string) string {
	return "rid:" + RID(sid)
}

// UserTag returns the "user:<name>" access tag.
func UserTag(name string) string {
	return "user:" + name
}

// ParseSID decodes a binary SID (as stored in objectSid attributes and NT
// security descriptors) into its S-R-I-S-S... string form. It returns the
// number of bytes consumed.
func ParseSID(b []byte) (string, int, error) {
	if len(b) < 8 {
		return "", 0, fmt.Errorf("sid too short: %d bytes", len(b))
	}
	revision := b[0]
	count := int(b[1])
	size := 8 + 4*count
	if len(b) < size {
		return "", 0, fmt.Errorf("sid truncated: need %d bytes, have %d", size, len(b))
	}

	// The identifier authority is a 48-bit big-endian value.
	var authority uint64
	for _, v := range b[2:8] {
		authority = authority<<8 | uint64(v)
	}

	var sb strings.Builder
	sb.WriteString("S-")
	sb.WriteString(strconv.Itoa(int(revision)))
	sb.WriteByte('-')
	sb.WriteString(strconv.FormatUint(authority, 10))
	for i := 0; i < count; i++ {
		sub := binary.LittleEndian.Uint32(b[8+4*i:])
		sb.WriteByte('-')
		sb.WriteString(strconv.FormatUint(uint64(sub), 10))
	}
	return sb.String(), size, nil
}
