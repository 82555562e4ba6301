// Package content decides whether a file's bytes are downloaded and turns
// them into an attachment or extracted text.
package content

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/praetorian-inc/sharecrawl/pkg/retry"
	"github.com/praetorian-inc/sharecrawl/pkg/types"
)

const (
	// DefaultChunkSize is the size of each read from the remote store.
	DefaultChunkSize = 64 * 1024
	// DefaultMaxFileSize is the download ceiling.
	DefaultMaxFileSize = 10 * 1024 * 1024
)

// DefaultUnsupportedExtensions are never downloaded.
var DefaultUnsupportedExtensions = []string{
	".exe", ".dll", ".so", ".bin", ".iso", ".dmg", ".msi",
	".mp3", ".wav", ".mp4", ".mov", ".avi", ".mkv",
}

// Opener opens the byte stream of a file.
type Opener interface {
	Open(ctx context.Context, item types.ItemDescriptor) (io.ReadCloser, error)
}

// Fetcher downloads file content behind size and extension gates.
type Fetcher struct {
	opener      Opener
	maxFileSize int64
	chunkSize   int
	unsupported map[string]bool
	extractor   Extractor
	policy      retry.Policy
	logger      *zap.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithMaxFileSize sets the download ceiling in bytes.
func WithMaxFileSize(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxFileSize = n
		}
	}
}

// WithChunkSize sets the size of each read.
func WithChunkSize(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.chunkSize = n
		}
	}
}

// WithUnsupportedExtensions replaces the set of extensions never
// downloaded. Entries may be given with or without the leading dot.
func WithUnsupportedExtensions(exts []string) Option {
	return func(f *Fetcher) {
		f.unsupported = extensionSet(exts)
	}
}

// WithExtractor switches the output from a base64 attachment to extracted
// text. A nil extractor keeps attachment mode.
func WithExtractor(e Extractor) Option {
	return func(f *Fetcher) {
		f.extractor = e
	}
}

// WithPolicy sets the retry policy used when opening files.
func WithPolicy(p retry.Policy) Option {
	return func(f *Fetcher) {
		f.policy = p
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFetcher creates a Fetcher reading through opener.
func NewFetcher(opener Opener, opts ...Option) *Fetcher {
	f := &Fetcher{
		opener:      opener,
		maxFileSize: DefaultMaxFileSize,
		chunkSize:   DefaultChunkSize,
		unsupported: extensionSet(DefaultUnsupportedExtensions),
		policy:      retry.DefaultPolicy(),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Extracting reports whether content is returned as extracted text.
func (f *Fetcher) Extracting() bool {
	return f.extractor != nil
}

// ContentFunc binds doc to a deferred fetch.
func (f *Fetcher) ContentFunc(doc types.Document) types.ContentFunc {
	return func(ctx context.Context, doit bool) (*types.Content, error) {
		return f.Fetch(ctx, doc, doit)
	}
}

// Fetch returns the content of doc, or nil when it is skipped: doit is
// false, the file exceeds the size ceiling, its extension is missing or
// unsupported, or reading it failed. Only context cancellation is returned
// as an error.
func (f *Fetcher) Fetch(ctx context.Context, doc types.Document, doit bool) (*types.Content, error) {
	if !doit {
		return nil, nil
	}

	logger := f.logger.With(zap.String("path", doc.Path))

	if doc.Size > f.maxFileSize {
		logger.Warn("file too large, skipping content",
			zap.Int64("size", doc.Size),
			zap.Int64("max_file_size", f.maxFileSize))
		return nil, nil
	}

	ext := Extension(doc)
	if ext == "" {
		logger.Debug("file has no extension, skipping content")
		return nil, nil
	}
	if f.unsupported[ext] {
		logger.Debug("unsupported extension, skipping content", zap.String("extension", ext))
		return nil, nil
	}

	item, err := doc.Descriptor()
	if err != nil {
		logger.Warn("cannot rebuild item from document", zap.Error(err))
		return nil, nil
	}

	content, err := f.download(ctx, doc, item)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn("cannot read file content", zap.Error(err))
		return nil, nil
	}
	return content, nil
}

func (f *Fetcher) download(ctx context.Context, doc types.Document, item types.ItemDescriptor) (*types.Content, error) {
	rc, err := retry.Do(ctx, f.policy, "open", item.Path, func(ctx context.Context) (io.ReadCloser, error) {
		return f.opener.Open(ctx, item)
	})
	if err != nil {
		return nil, &types.ContentReadError{Path: item.Path, Err: err}
	}
	defer rc.Close()

	content := &types.Content{ID: doc.ID, Timestamp: doc.Timestamp}

	if f.extractor != nil {
		body, err := f.extract(ctx, item, rc)
		if err != nil {
			return nil, err
		}
		content.Body = body
		return content, nil
	}

	var buf bytes.Buffer
	enc := base64.NewEncoder(base64.StdEncoding, &buf)
	if _, err := f.copyChunks(ctx, enc, rc); err != nil {
		return nil, &types.ContentReadError{Path: item.Path, Err: err}
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	content.Attachment = buf.String()
	return content, nil
}

// extract streams the file to the extractor through a pipe so the whole
// file is never buffered here.
func (f *Fetcher) extract(ctx context.Context, item types.ItemDescriptor, r io.Reader) (string, error) {
	pr, pw := io.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := f.copyChunks(ctx, pw, r)
		if err != nil {
			err = &types.ContentReadError{Path: item.Path, Err: err}
		}
		pw.CloseWithError(err)
	}()

	text, err := f.extractor.Extract(ctx, item.Title, pr)
	pr.CloseWithError(io.ErrClosedPipe)
	<-done
	if err != nil {
		return "", fmt.Errorf("extracting text from %s: %w", item.Path, err)
	}
	return text, nil
}

// copyChunks reads chunkSize pieces until a read returns no data.
func (f *Fetcher) copyChunks(ctx context.Context, w io.Writer, r io.Reader) (int64, error) {
	buf := make([]byte, f.chunkSize)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return total, werr
			}
			total += int64(n)
		}
		if errors.Is(err, io.EOF) || (n == 0 && err == nil) {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

// Extension returns the lower-cased extension of the document title (or
// path when the title has none), including the dot.
func Extension(doc types.Document) string {
	name := doc.Title
	if path.Ext(name) == "" {
		name = strings.ReplaceAll(doc.Path, `\`, "/")
	}
	return strings.ToLower(path.Ext(name))
}

func extensionSet(exts []string) map[string]bool {
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = true
	}
	return set
}
