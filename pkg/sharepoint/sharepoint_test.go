package sharepoint

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/sharecrawl/pkg/enum"
	"github.com/praetorian-inc/sharecrawl/pkg/types"
)

const testHost = "http://sp.corp.example"

// fakeFarm answers calls from canned JSON keyed by endpoint. Query
// parameters are recorded but not matched.
type fakeFarm struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	calls     []string
	params    map[string]url.Values
}

func newFakeFarm(t *testing.T, responses map[string]string) *fakeFarm {
	t.Helper()
	for endpoint, body := range responses {
		require.True(t, json.Valid([]byte(body)), "invalid JSON for %s", endpoint)
	}
	return &fakeFarm{
		responses: responses,
		errs:      map[string]error{},
		params:    map[string]url.Values{},
	}
}

func (f *fakeFarm) Call(_ context.Context, endpoint string, params url.Values) (enum.Payload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, endpoint)
	f.params[endpoint] = params
	if err, ok := f.errs[endpoint]; ok {
		return nil, err
	}
	body, ok := f.responses[endpoint]
	if !ok {
		return nil, &types.StatusError{Code: 404, URL: endpoint}
	}
	var payload enum.Payload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (f *fakeFarm) count(endpoint string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == endpoint {
			n++
		}
	}
	return n
}
