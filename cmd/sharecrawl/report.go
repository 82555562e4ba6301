package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/praetorian-inc/sharecrawl/pkg/store"
	"github.com/praetorian-inc/sharecrawl/pkg/types"
)

var (
	reportStore  string
	reportFormat string
	reportColor  string
	reportAccess bool
)

// styles holds the color formatters of the human report.
type styles struct {
	docHeading *color.Color
	id         *color.Color
	kind       *color.Color
	heading    *color.Color
	body       *color.Color
	metadata   *color.Color
}

// newStyles creates color formatters for report output.
func newStyles(enabled bool) *styles {
	s := &styles{
		docHeading: color.New(color.Bold, color.FgHiWhite),
		id:         color.New(color.FgHiGreen),
		kind:       color.New(color.Bold, color.FgHiBlue),
		heading:    color.New(color.Bold),
		body:       color.New(color.FgYellow),
		metadata:   color.New(color.FgHiBlue),
	}

	if !enabled {
		for _, c := range []*color.Color{s.docHeading, s.id, s.kind, s.heading, s.body, s.metadata} {
			c.DisableColor()
		}
	}
	return s
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a report from sync results",
	Long:  "Read documents and access documents from a store and output a report",
	Args:  cobra.NoArgs,
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportStore, "store", "sharecrawl.db", "Path to the store database")
	reportCmd.Flags().StringVar(&reportFormat, "format", "human", "Output format: human, json")
	reportCmd.Flags().StringVar(&reportColor, "color", "auto", "Color output: auto, always, never")
	reportCmd.Flags().BoolVar(&reportAccess, "access", false, "Report access documents instead of documents")
}

// reportEntry is one document with its stored content.
type reportEntry struct {
	Document types.Document `json:"document"`
	Content  *types.Content `json:"content,omitempty"`
}

func runReport(cmd *cobra.Command, args []string) error {
	if reportStore == store.MemoryPath {
		return fmt.Errorf("cannot report from in-memory store")
	}
	if _, err := os.Stat(reportStore); err != nil {
		return fmt.Errorf("store not found: %s", reportStore)
	}

	s, err := store.New(store.Config{Path: reportStore})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	if reportAccess {
		docs, err := s.GetAccessDocuments()
		if err != nil {
			return fmt.Errorf("retrieving access documents: %w", err)
		}
		switch reportFormat {
		case "json":
			return encodeJSON(cmd.OutOrStdout(), docs)
		case "human":
			outputAccessHuman(cmd.OutOrStdout(), docs, newStyles(colorEnabled()))
			return nil
		default:
			return fmt.Errorf("unknown output format: %s", reportFormat)
		}
	}

	docs, err := s.GetDocuments()
	if err != nil {
		return fmt.Errorf("retrieving documents: %w", err)
	}
	entries := make([]reportEntry, 0, len(docs))
	for _, doc := range docs {
		c, err := s.GetContent(doc.ID)
		if err != nil {
			return fmt.Errorf("retrieving content of %s: %w", doc.Path, err)
		}
		entries = append(entries, reportEntry{Document: doc, Content: c})
	}

	switch reportFormat {
	case "json":
		return encodeJSON(cmd.OutOrStdout(), entries)
	case "human":
		outputReportHuman(cmd.OutOrStdout(), entries, newStyles(colorEnabled()))
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", reportFormat)
	}
}

// colorEnabled applies --color. auto enables color on a terminal unless
// NO_COLOR is set.
func colorEnabled() bool {
	switch reportColor {
	case "always":
		color.NoColor = false
	case "never":
		color.NoColor = true
	default:
		color.NoColor = !term.IsTerminal(int(os.Stdout.Fd())) || os.Getenv("NO_COLOR") != ""
	}
	return !color.NoColor
}

func encodeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// formatSnippet flattens whitespace in text and truncates it to maxLen
// characters.
func formatSnippet(text string, maxLen int) string {
	flat := strings.Join(strings.Fields(text), " ")
	runes := []rune(flat)
	if len(runes) <= maxLen {
		return flat
	}
	return string(runes[:maxLen-3]) + "..."
}

func outputReportHuman(out io.Writer, entries []reportEntry, s *styles) {
	total := len(entries)
	for i, e := range entries {
		doc := e.Document
		fmt.Fprintf(out, "%s (%s %s)\n",
			s.docHeading.Sprintf("Document %d/%d", i+1, total),
			s.heading.Sprint("id"),
			s.id.Sprint(doc.ID))
		fmt.Fprintf(out, "%s %s\n", s.heading.Sprint("Type:"), s.kind.Sprint(doc.Type))
		fmt.Fprintf(out, "%s %s\n", s.heading.Sprint("Path:"), s.metadata.Sprint(doc.Path))
		if doc.Type.HasContent() {
			fmt.Fprintf(out, "%s %d\n", s.heading.Sprint("Size:"), doc.Size)
		}
		if doc.ModifiedAt != "" {
			fmt.Fprintf(out, "%s %s\n", s.heading.Sprint("Modified:"), doc.ModifiedAt)
		}
		if doc.AccessControl != nil {
			fmt.Fprintf(out, "%s %s\n", s.heading.Sprint("Access:"), s.metadata.Sprint(strings.Join(doc.AccessControl, ", ")))
		}

		switch {
		case e.Content == nil:
		case e.Content.Body != "":
			fmt.Fprintf(out, "\n    %s\n", s.body.Sprint(formatSnippet(e.Content.Body, 200)))
		case e.Content.Attachment != "":
			fmt.Fprintf(out, "%s %d bytes\n", s.heading.Sprint("Attachment:"), base64.StdEncoding.DecodedLen(len(e.Content.Attachment)))
		}
		fmt.Fprintf(out, "\n")
	}
}

func outputAccessHuman(out io.Writer, docs []types.AccessDocument, s *styles) {
	total := len(docs)
	for i, doc := range docs {
		fmt.Fprintf(out, "%s (%s %s)\n",
			s.docHeading.Sprintf("Identity %d/%d", i+1, total),
			s.heading.Sprint("id"),
			s.id.Sprint(doc.ID))
		if doc.Identity.Username != "" {
			fmt.Fprintf(out, "%s %s\n", s.heading.Sprint("User:"), s.kind.Sprint(doc.Identity.Username))
		}
		fmt.Fprintf(out, "%s %s\n", s.heading.Sprint("Access:"),
			s.metadata.Sprint(strings.Join(doc.Query.Template.Params.AccessControl, ", ")))
		fmt.Fprintf(out, "\n")
	}
}
