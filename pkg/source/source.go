package source

import (
	"context"
	stderrors "errors"
	"os"
	"strings"
	"time"

	"github.com/lattelab/reliamap/pkg/errors"
	"github.com/lattelab/reliamap/pkg/httputil"
	"github.com/lattelab/reliamap/pkg/observability"
	"github.com/lattelab/reliamap/pkg/relmap"
)

// Sentinel errors for map API calls.
var (
	// ErrNotFound is returned when the endpoint doesn't exist.
	ErrNotFound = stderrors.New("resource not found")

	// ErrNetwork is returned for HTTP failures (timeouts, connection errors, 5xx responses).
	ErrNetwork = stderrors.New("network error")
)

// FetchFailedMessage is the user-facing message surfaced for any failed
// fetch. Transport details stay in the wrapped cause; the visible message
// never varies with the failure mode.
const FetchFailedMessage = "Failed to fetch reliability map data"

// MapPath is the canonical API path. The bare /reliability_map alias is
// also accepted server-side.
const MapPath = "/api/reliability_map"

// MapSource fetches reliability map payloads over HTTP.
// It satisfies the view.Source contract.
type MapSource struct {
	client  *Client
	baseURL string
	refresh bool
}

// MapSourceOption configures a MapSource.
type MapSourceOption func(*MapSource)

// WithCache attaches a response cache. Without it every Fetch hits the
// network.
func WithCache(c *httputil.Cache) MapSourceOption {
	return func(s *MapSource) { s.client.cache = c }
}

// WithRefresh bypasses the cache on every Fetch.
func WithRefresh(refresh bool) MapSourceOption {
	return func(s *MapSource) { s.refresh = refresh }
}

// NewMapSource creates a source for the map API at baseURL, authenticating
// every request with apiKey.
func NewMapSource(baseURL, apiKey string, opts ...MapSourceOption) *MapSource {
	headers := map[string]string{}
	if apiKey != "" {
		headers[APIKeyHeader] = apiKey
	}
	s := &MapSource{
		client:  NewClient(nil, headers),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch retrieves and validates the reliability map. Any transport or
// decode failure surfaces as FetchFailedMessage with the cause wrapped;
// payloads that decode but violate the schema surface the same way.
func (s *MapSource) Fetch(ctx context.Context) (*relmap.Map, error) {
	endpoint := s.baseURL + MapPath

	observability.Pipeline().OnFetchStart(ctx, endpoint)
	start := time.Now()

	var m relmap.Map
	err := s.client.Cached(ctx, "map:"+endpoint, s.refresh, &m, func() error {
		return s.client.Get(ctx, endpoint, &m)
	})
	if err != nil {
		observability.Pipeline().OnFetchComplete(ctx, endpoint, 0, time.Since(start), err)
		return nil, errors.Wrap(errors.ErrCodeFetchFailed, err, FetchFailedMessage)
	}

	if err := m.Validate(); err != nil {
		observability.Pipeline().OnFetchComplete(ctx, endpoint, 0, time.Since(start), err)
		return nil, errors.Wrap(errors.ErrCodeFetchFailed, err, FetchFailedMessage)
	}

	observability.Pipeline().OnFetchComplete(ctx, endpoint, len(m.Nodes), time.Since(start), nil)
	return &m, nil
}

// FileSource reads a reliability map payload from a local JSON file.
// Useful for offline rendering and tests.
type FileSource struct {
	Path string
}

// Fetch reads and validates the payload at Path.
func (s FileSource) Fetch(ctx context.Context) (*relmap.Map, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFetchFailed, err, FetchFailedMessage)
	}
	defer f.Close()
	m, err := relmap.ReadMap(f)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFetchFailed, err, FetchFailedMessage)
	}
	return m, nil
}

// StaticSource returns a fixed payload. A nil Map resolves to the empty
// state.
type StaticSource struct {
	Map *relmap.Map
	Err error
}

// Fetch returns the configured payload or error.
func (s StaticSource) Fetch(ctx context.Context) (*relmap.Map, error) {
	return s.Map, s.Err
}
