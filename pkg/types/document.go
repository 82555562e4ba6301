package types

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"time"
)

// TimestampLayout is the ISO-8601 layout used for every document timestamp.
// Nanoseconds are kept so formatting never loses precision.
const TimestampLayout = time.RFC3339Nano

// Document is the normalized emission unit handed to the sink.
type Document struct {
	ID         string
	Timestamp  string
	Path       string
	Title      string
	Type       ItemKind
	Size       int64
	CreatedAt  string
	ModifiedAt string

	// Fields are extra protocol-specific attributes, flattened on marshal.
	Fields map[string]any

	// AccessControl is set only when document level security is enabled.
	AccessControl []string
}

// FormatTimestamp renders t as an ISO-8601 UTC string. The zero time is "".
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp inverts FormatTimestamp.
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(TimestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// FormatDocument converts a descriptor into a Document. The document
// timestamp is the modification time.
func FormatDocument(item ItemDescriptor) Document {
	doc := Document{
		ID:         item.ID,
		Timestamp:  FormatTimestamp(item.ModifiedAt),
		Path:       item.Path,
		Title:      item.Title,
		Type:       item.Kind,
		Size:       item.Size,
		CreatedAt:  FormatTimestamp(item.CreatedAt),
		ModifiedAt: FormatTimestamp(item.ModifiedAt),
	}
	if len(item.Fields) > 0 {
		doc.Fields = maps.Clone(item.Fields)
	}
	return doc
}

// Descriptor converts the document back into the descriptor it was
// formatted from.
func (d Document) Descriptor() (ItemDescriptor, error) {
	created, err := ParseTimestamp(d.CreatedAt)
	if err != nil {
		return ItemDescriptor{}, err
	}
	modified, err := ParseTimestamp(d.ModifiedAt)
	if err != nil {
		return ItemDescriptor{}, err
	}

	item := ItemDescriptor{
		ID:         d.ID,
		Path:       d.Path,
		Title:      d.Title,
		Kind:       d.Type,
		Size:       d.Size,
		CreatedAt:  created,
		ModifiedAt: modified,
	}
	if len(d.Fields) > 0 {
		item.Fields = maps.Clone(d.Fields)
	}
	return item, nil
}

// MarshalJSON flattens Fields next to the well-known keys. Well-known keys
// win over extra fields of the same name.
func (d Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Fields)+10)
	maps.Copy(out, d.Fields)

	out["_id"] = d.ID
	out["_timestamp"] = d.Timestamp
	out["path"] = d.Path
	out["title"] = d.Title
	out["type"] = d.Type
	out["size"] = d.Size
	out["created_at"] = d.CreatedAt
	out["modified_at"] = d.ModifiedAt
	if d.AccessControl != nil {
		out["access_control"] = d.AccessControl
	}
	return json.Marshal(out)
}

// Content is the payload returned by a content fetch: either a base64
// attachment or extracted text, never both.
type Content struct {
	ID         string `json:"_id"`
	Timestamp  string `json:"_timestamp"`
	Attachment string `json:"_attachment,omitempty"`
	Body       string `json:"body,omitempty"`
}

// ContentFunc lazily fetches the content of one document. It returns a nil
// Content when the fetch is skipped.
type ContentFunc func(ctx context.Context, doit bool) (*Content, error)

// Emission pairs a document with its deferred content fetch. Content is nil
// for items that have no downloadable content.
type Emission struct {
	Document Document
	Content  ContentFunc
}
