package enum

import (
	"context"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/praetorian-inc/sharecrawl/pkg/retry"
)

// DefaultPageSize is the $top used when the caller passes none.
const DefaultPageSize = 500

// maxSkippedPages bounds consecutive query pages dropped after exhausted
// retries before the collection is abandoned.
const maxSkippedPages = 3

// Paginator drives paged REST collections.
type Paginator struct {
	caller Caller
	opts   options
}

// NewPaginator creates a Paginator over caller.
func NewPaginator(caller Caller, opts ...Option) *Paginator {
	return &Paginator{
		caller: caller,
		opts:   newOptions(opts),
	}
}

// QueryPages pages through endpoint with $skip/$top, calling callback for
// every record in the "value" array. A short or empty page ends the
// sequence. A page that keeps failing after all retries is logged and
// skipped; a permanent failure ends the sequence with a warning.
func (p *Paginator) QueryPages(ctx context.Context, endpoint string, params url.Values, pageSize int, callback func(Payload) error) error {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	skip := 0
	skipped := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		query := cloneValues(params)
		query.Set("$skip", strconv.Itoa(skip))
		query.Set("$top", strconv.Itoa(pageSize))

		payload, err := retry.Do(ctx, p.opts.policy, "page", endpoint, func(ctx context.Context) (Payload, error) {
			return p.caller.Call(ctx, endpoint, query)
		})
		if err != nil {
			if abortsWalk(ctx, err) {
				return err
			}
			if isFatal(err) && skipped < maxSkippedPages {
				skipped++
				NoteSkip(ctx, endpoint)
				p.opts.logger.Warn("skipping page after retries",
					zap.String("endpoint", endpoint),
					zap.Int("skip", skip),
					zap.Error(err))
				skip += pageSize
				continue
			}
			NoteSkip(ctx, endpoint)
			p.opts.logger.Warn("stopping pagination",
				zap.String("endpoint", endpoint),
				zap.Int("skip", skip),
				zap.Error(err))
			return nil
		}
		skipped = 0

		batch := Values(payload)
		for _, record := range batch {
			if err := callback(record); err != nil {
				return err
			}
		}
		if len(batch) < pageSize {
			return nil
		}
		skip += pageSize
	}
}

// NextLinkPages follows server-provided next links starting at endpoint,
// calling callback for every record. A page that exhausts its retries ends
// the sequence with the *types.FatalError since the cursor cannot be
// skipped.
func (p *Paginator) NextLinkPages(ctx context.Context, endpoint string, params url.Values, callback func(Payload) error) error {
	next := endpoint
	query := cloneValues(params)
	for next != "" {
		if err := ctx.Err(); err != nil {
			return err
		}

		link, q := next, query
		payload, err := retry.Do(ctx, p.opts.policy, "page", link, func(ctx context.Context) (Payload, error) {
			return p.caller.Call(ctx, link, q)
		})
		if err != nil {
			return err
		}

		for _, record := range Values(payload) {
			if err := callback(record); err != nil {
				return err
			}
		}

		// The link already carries its own query string.
		next, query = NextLink(payload), nil
	}
	return nil
}

// Values returns the records of a page. A missing or non-list "value" is an
// empty batch; non-object elements are ignored.
func Values(payload Payload) []Payload {
	raw, ok := payload["value"].([]any)
	if !ok {
		return nil
	}
	out := make([]Payload, 0, len(raw))
	for _, v := range raw {
		switch rec := v.(type) {
		case map[string]any:
			out = append(out, Payload(rec))
		case Payload:
			out = append(out, rec)
		}
	}
	return out
}

var nextLinkKeys = []string{"odata.nextLink", "@odata.nextLink", "__next"}

// NextLink returns the continuation link of a page, or "" on the last page.
func NextLink(payload Payload) string {
	for _, key := range nextLinkKeys {
		if link, ok := payload[key].(string); ok && link != "" {
			return link
		}
	}
	return ""
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for key, vals := range v {
		out[key] = append([]string(nil), vals...)
	}
	return out
}
