package content

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"unicode"

	"github.com/bodgit/sevenzip"
	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"

	"github.com/praetorian-inc/sharecrawl/pkg/types"
)

// LocalExtractor extracts text in-process from office documents, PDFs,
// archives and plain text.
type LocalExtractor struct {
	// MaxArchiveMembers caps how many members of an archive are read.
	MaxArchiveMembers int
}

// NewLocalExtractor creates a LocalExtractor with default limits.
func NewLocalExtractor() *LocalExtractor {
	return &LocalExtractor{MaxArchiveMembers: 1000}
}

// Extract reads r fully and returns its text. Unknown binary formats
// return an error wrapping types.ErrUnsupported.
func (e *LocalExtractor) Extract(ctx context.Context, name string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return e.extractBytes(name, data, 0)
}

func (e *LocalExtractor) extractBytes(name string, data []byte, depth int) (string, error) {
	switch ext := strings.ToLower(path.Ext(name)); ext {
	case ".docx":
		return extractOOXML(data, func(n string) bool { return n == "word/document.xml" })
	case ".xlsx":
		return extractOOXML(data, func(n string) bool {
			return n == "xl/sharedStrings.xml" ||
				(strings.HasPrefix(n, "xl/worksheets/sheet") && strings.HasSuffix(n, ".xml"))
		})
	case ".pptx":
		return extractOOXML(data, func(n string) bool {
			return strings.HasPrefix(n, "ppt/slides/slide") && strings.HasSuffix(n, ".xml")
		})
	case ".odt", ".ods", ".odp":
		return extractOOXML(data, func(n string) bool { return n == "content.xml" })
	case ".pdf":
		return extractPDF(data)
	case ".zip":
		if depth > 0 {
			return "", nil
		}
		return e.extractZip(data)
	case ".7z":
		if depth > 0 {
			return "", nil
		}
		return e.extract7z(data)
	default:
		if isText(data) {
			return string(data), nil
		}
		return "", fmt.Errorf("%w: %s", types.ErrUnsupported, mimetype.Detect(data).String())
	}
}

// extractOOXML collects the text of the zip members selected by want, in
// member name order.
func extractOOXML(data []byte, want func(string) bool) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening document as zip: %w", err)
	}

	files := make([]*zip.File, 0, len(zr.File))
	for _, f := range zr.File {
		if want(f.Name) {
			files = append(files, f)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	var parts []string
	for _, f := range files {
		rc, err := f.Open()
		if err != nil {
			continue
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		if text := extractXMLText(raw); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n"), nil
}

func extractPDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}

	var text strings.Builder
	for n := 1; n <= r.NumPage(); n++ {
		page := r.Page(n)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text.WriteString(pageText)
		text.WriteString("\n")
	}
	return strings.TrimSpace(text.String()), nil
}

func (e *LocalExtractor) extractZip(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening zip: %w", err)
	}

	var parts []string
	for i, f := range zr.File {
		if i >= e.MaxArchiveMembers {
			break
		}
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			continue
		}
		parts = e.appendMember(parts, f.Name, rc)
	}
	return strings.Join(parts, "\n"), nil
}

func (e *LocalExtractor) extract7z(data []byte) (string, error) {
	zr, err := sevenzip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening 7z: %w", err)
	}

	var parts []string
	for i, f := range zr.File {
		if i >= e.MaxArchiveMembers {
			break
		}
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			continue
		}
		parts = e.appendMember(parts, f.Name, rc)
	}
	return strings.Join(parts, "\n"), nil
}

// appendMember extracts one archive member and closes rc. Members that
// cannot be read or whose format is unsupported are skipped.
func (e *LocalExtractor) appendMember(parts []string, name string, rc io.ReadCloser) []string {
	raw, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return parts
	}
	text, err := e.extractBytes(name, raw, 1)
	if err != nil || strings.TrimSpace(text) == "" {
		return parts
	}
	return append(parts, name+": "+text)
}

// isText reports whether data is detected as some text/* type.
func isText(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

// extractXMLText collects all non-blank character data of an XML document.
func extractXMLText(data []byte) string {
	var text strings.Builder
	decoder := xml.NewDecoder(bytes.NewReader(data))

	for {
		token, err := decoder.Token()
		if err != nil {
			break
		}
		if cd, ok := token.(xml.CharData); ok {
			content := string(cd)
			if strings.TrimSpace(content) == "" {
				continue
			}
			if text.Len() > 0 {
				text.WriteString(" ")
			}
			text.WriteString(cleanText(content))
		}
	}
	return text.String()
}

// cleanText collapses whitespace and drops non-printable runes.
func cleanText(s string) string {
	var result strings.Builder
	lastSpace := false

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastSpace {
				result.WriteRune(' ')
				lastSpace = true
			}
		} else if unicode.IsPrint(r) {
			result.WriteRune(r)
			lastSpace = false
		}
	}
	return strings.TrimSpace(result.String())
}
