package sharepoint

import (
	"strconv"
	"strings"

	"github.com/praetorian-inc/sharecrawl/pkg/types"
)

// Extra document fields set on SharePoint items.
const (
	FieldURL               = "url"
	FieldServerRelativeURL = "server_relative_url"
	FieldSiteURL           = "site_url"
	FieldListID            = "list_id"
	FieldItemID            = "item_id"
	FieldFileName          = "file_name"
	FieldAuthor            = "author"
	FieldAuthorID          = "author_id"
	FieldEditor            = "editor"
	FieldEditorID          = "editor_id"
)

// documentLibrary is the BaseType of lists whose items are files.
const documentLibrary = 1

// List identifies one list of a site.
type List struct {
	ID      string
	Title   string
	Site    string
	RootURL string
	// Library is true for document libraries.
	Library bool
}

// LoginName strips the claims prefix of a login name, keeping what follows
// the last "|" (i:0#.w|corp\alice becomes corp\alice).
func LoginName(raw string) string {
	if i := strings.LastIndex(raw, "|"); i >= 0 {
		return raw[i+1:]
	}
	return raw
}

// SiteItem formats a web record.
func SiteItem(host string, rec Record) (types.ItemDescriptor, bool) {
	id, ok := rec.ID()
	if !ok {
		return types.ItemDescriptor{}, false
	}
	rel := rec.Text("ServerRelativeUrl")
	siteURL := rec.Text("Url")
	if siteURL == "" {
		siteURL = host + rel
	}

	item := types.ItemDescriptor{
		ID:    id,
		Path:  rel,
		Title: rec.Text("Title"),
		Kind:  types.KindSite,
		Fields: map[string]any{
			FieldURL:               siteURL,
			FieldServerRelativeURL: rel,
			FieldSiteURL:           rel,
		},
	}
	item.CreatedAt, _ = rec.Time("Created")
	item.ModifiedAt, _ = rec.Time("LastItemModifiedDate")
	if author, ok := rec.Object("Author"); ok {
		item.Fields[FieldAuthor] = LoginName(author.Text("LoginName"))
		if n, ok := author.Int("Id"); ok {
			item.Fields[FieldAuthorID] = n
		}
	}
	return item, true
}

// ParseList reads a list record of site.
func ParseList(site string, rec Record) (List, bool) {
	id, ok := rec.ID()
	if !ok {
		return List{}, false
	}
	l := List{ID: id, Title: rec.Text("Title"), Site: site}
	if root, ok := rec.Object("RootFolder"); ok {
		l.RootURL = root.Text("ServerRelativeUrl")
	}
	if base, ok := rec.Int("BaseType"); ok && base == documentLibrary {
		l.Library = true
	}
	return l, true
}

// ListItem formats a list record.
func ListItem(host string, l List, rec Record) types.ItemDescriptor {
	item := types.ItemDescriptor{
		ID:    l.ID,
		Path:  l.RootURL,
		Title: l.Title,
		Kind:  types.KindList,
		Fields: map[string]any{
			FieldURL:               host + l.RootURL,
			FieldServerRelativeURL: l.RootURL,
			FieldSiteURL:           l.Site,
			FieldListID:            l.ID,
		},
	}
	item.CreatedAt, _ = rec.Time("Created")
	item.ModifiedAt, _ = rec.Time("LastItemModifiedDate")
	return item
}

// ListEntry formats one item of a generic list. Its URL points at the
// display form since list items have no file.
func ListEntry(host string, l List, rec Record) (types.ItemDescriptor, bool) {
	guid, ok := rec.String("GUID")
	if !ok {
		return types.ItemDescriptor{}, false
	}
	itemID, _ := rec.Int("Id")
	ref := rec.Text("FileRef")
	if ref == "" {
		ref = l.RootURL + "/" + strconv.FormatInt(itemID, 10)
	}

	item := types.ItemDescriptor{
		ID:    guid,
		Path:  ref,
		Title: rec.Text("Title"),
		Kind:  types.KindListItem,
		Fields: map[string]any{
			FieldURL:               host + l.RootURL + "/DispForm.aspx?ID=" + strconv.FormatInt(itemID, 10),
			FieldServerRelativeURL: ref,
			FieldSiteURL:           l.Site,
			FieldListID:            l.ID,
			FieldItemID:            itemID,
		},
	}
	item.CreatedAt, _ = rec.Time("Created")
	item.ModifiedAt, _ = rec.Time("Modified")
	setPeople(item.Fields, rec)
	return item, true
}

// Attachments formats the attachment files of a list item. They inherit
// the item's timestamps and permissions.
func Attachments(host string, parent types.ItemDescriptor, rec Record) []types.ItemDescriptor {
	files, ok := rec.List("AttachmentFiles")
	if !ok {
		return nil
	}
	out := make([]types.ItemDescriptor, 0, len(files))
	for _, f := range files {
		rel := f.Text("ServerRelativeUrl")
		if rel == "" {
			continue
		}
		name := f.Text("FileName")
		item := types.ItemDescriptor{
			ID:         types.ComputeItemID(rel).Hex(),
			Path:       rel,
			Title:      name,
			Kind:       types.KindFile,
			CreatedAt:  parent.CreatedAt,
			ModifiedAt: parent.ModifiedAt,
			Fields: map[string]any{
				FieldURL:               host + rel,
				FieldServerRelativeURL: rel,
				FieldSiteURL:           parent.Fields[FieldSiteURL],
				FieldListID:            parent.Fields[FieldListID],
				FieldItemID:            parent.Fields[FieldItemID],
				FieldFileName:          name,
			},
		}
		out = append(out, item)
	}
	return out
}

// DriveItem formats one item of a document library, which is either a
// file or a folder. Items with neither are skipped.
func DriveItem(host string, l List, rec Record) (types.ItemDescriptor, bool) {
	guid, ok := rec.String("GUID")
	if !ok {
		return types.ItemDescriptor{}, false
	}

	kind := types.KindDriveItem
	obj, ok := rec.Object("File")
	if !ok {
		kind = types.KindFolder
		if obj, ok = rec.Object("Folder"); !ok {
			return types.ItemDescriptor{}, false
		}
	}

	rel := obj.Text("ServerRelativeUrl")
	itemID, _ := rec.Int("Id")
	item := types.ItemDescriptor{
		ID:    guid,
		Path:  rel,
		Title: obj.Text("Name"),
		Kind:  kind,
		Fields: map[string]any{
			FieldURL:               host + rel,
			FieldServerRelativeURL: rel,
			FieldSiteURL:           l.Site,
			FieldListID:            l.ID,
			FieldItemID:            itemID,
		},
	}
	if size, ok := obj.Int("Length"); ok {
		item.Size = size
	}
	item.CreatedAt, _ = obj.Time("TimeCreated")
	item.ModifiedAt, ok = obj.Time("TimeLastModified")
	if !ok {
		item.ModifiedAt, _ = rec.Time("Modified")
	}
	setPeople(item.Fields, rec)
	return item, true
}

func setPeople(fields map[string]any, rec Record) {
	if author, ok := rec.Object("Author"); ok {
		fields[FieldAuthor] = personName(author)
	}
	if n, ok := rec.Int("AuthorId"); ok {
		fields[FieldAuthorID] = n
	}
	if editor, ok := rec.Object("Editor"); ok {
		fields[FieldEditor] = personName(editor)
	}
	if n, ok := rec.Int("EditorId"); ok {
		fields[FieldEditorID] = n
	}
}

func personName(rec Record) string {
	if name := rec.Text("Title"); name != "" {
		return name
	}
	return rec.Text("Name")
}
