package types

import "time"

// ItemKind identifies what an ItemDescriptor describes.
type ItemKind string

const (
	KindFile      ItemKind = "file"
	KindFolder    ItemKind = "folder"
	KindListItem  ItemKind = "list_item"
	KindDriveItem ItemKind = "drive_item"
	KindSite      ItemKind = "site"
	KindList      ItemKind = "list"
)

// IsContainer reports whether items of this kind never carry downloadable
// content of their own.
func (k ItemKind) IsContainer() bool {
	return k == KindFolder || k == KindSite || k == KindList
}

// HasContent reports whether items of this kind have a byte stream that
// can be downloaded. SharePoint list items carry only metadata; their
// attachments are emitted as files.
func (k ItemKind) HasContent() bool {
	return k == KindFile || k == KindDriveItem
}

// ItemDescriptor is one entry discovered in a remote store: a file or folder
// on a share, or a SharePoint site, list item or drive item.
type ItemDescriptor struct {
	// ID is the protocol-native identifier, unique within one traversal root.
	ID string

	// Path is the fully-qualified path in native separator form.
	Path string

	Title string
	Kind  ItemKind

	// Size in bytes. Advisory only for containers.
	Size int64

	CreatedAt  time.Time
	ModifiedAt time.Time

	// Fields holds optional protocol-specific attributes (url, author, ...)
	// copied verbatim into the formatted document.
	Fields map[string]any
}
