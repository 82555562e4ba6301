package types

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// ItemID is a SHA-1 identifier derived from an item's path, used for stores
// that expose no stable native file id.
type ItemID [20]byte

// ComputeItemID computes SHA-1("item {len}\0{path}").
func ComputeItemID(path string) ItemID {
	header := fmt.Sprintf("item %d\x00", len(path))
	h := sha1.New()
	h.Write([]byte(header))
	h.Write([]byte(path))

	var id ItemID
	copy(id[:], h.Sum(nil))
	return id
}

// Hex returns 40-character hex string.
func (id ItemID) Hex() string {
	return hex.EncodeToString(id[:])
}

// String implements Stringer (returns Hex()).
func (id ItemID) String() string {
	return id.Hex()
}
