package content

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/praetorian-inc/sharecrawl/pkg/types"
)

// Extractor turns the bytes of a named file into plain text.
type Extractor interface {
	Extract(ctx context.Context, name string, r io.Reader) (string, error)
}

// HTTPExtractor posts file bytes to a text extraction service.
type HTTPExtractor struct {
	host   string
	client *http.Client
}

// NewHTTPExtractor creates an extractor for the service at host. A nil
// client uses http.DefaultClient.
func NewHTTPExtractor(host string, client *http.Client) *HTTPExtractor {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPExtractor{
		host:   strings.TrimRight(host, "/"),
		client: client,
	}
}

type extractResponse struct {
	ExtractedText string `json:"extracted_text"`
}

// Extract streams r to the service and returns the extracted text.
func (e *HTTPExtractor) Extract(ctx context.Context, name string, r io.Reader) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, e.host+"/extract_text/", r)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if name != "" {
		req.Header.Set("X-File-Name", name)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", &types.RemoteError{Op: "extract", Path: name, Transient: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &types.StatusError{Code: resp.StatusCode, URL: req.URL.String()}
	}

	var out extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding extraction response: %w", err)
	}
	return out.ExtractedText, nil
}

// Ping reports whether the service answers.
func (e *HTTPExtractor) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.host+"/ping/", nil)
	if err != nil {
		return err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return &types.StatusError{Code: resp.StatusCode, URL: req.URL.String()}
	}
	return nil
}

// Probe returns an extractor for host when the service is reachable, and
// nil otherwise so content falls back to base64 attachments. An empty host
// returns nil without probing.
func Probe(ctx context.Context, host string, client *http.Client, logger *zap.Logger) Extractor {
	if host == "" {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	e := NewHTTPExtractor(host, client)
	if err := e.Ping(ctx); err != nil {
		logger.Warn("text extraction service unavailable, falling back to attachments",
			zap.String("host", host), zap.Error(err))
		return nil
	}
	logger.Info("using text extraction service", zap.String("host", host))
	return e
}
