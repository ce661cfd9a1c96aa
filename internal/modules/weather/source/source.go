// Package source fetches raw station payloads.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const maxPayloadBytes = 8 << 20

// historyLayout is the date format the history endpoint expects, in the
// station's local time.
const historyLayout = "2006-01-02 15:04:05"

var (
	// ErrUpstream wraps every transport or HTTP failure of the station API.
	ErrUpstream = errors.New("upstream unavailable")
	// ErrNoHistory is returned by sources that cannot serve a backfill.
	ErrNoHistory = errors.New("history not supported by source")
)

// Source returns raw payloads. Parsing is left to the caller so the exact
// bytes can be persisted.
type Source interface {
	Current(ctx context.Context) ([]byte, error)
	History(ctx context.Context, callback string, from, to time.Time) ([]byte, error)
}

// Credentials are passed through to the station API unchanged.
type Credentials struct {
	ApplicationKey string
	APIKey         string
	MAC            string
}

type httpSource struct {
	baseURL string
	creds   Credentials
	client  *http.Client
}

// NewHTTP returns a source for the station cloud API rooted at baseURL.
func NewHTTP(baseURL string, creds Credentials, timeout time.Duration) Source {
	return &httpSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *httpSource) Current(ctx context.Context) ([]byte, error) {
	q := s.query()
	q.Set("call_back", "all")
	return s.get(ctx, "real_time", q)
}

func (s *httpSource) History(ctx context.Context, callback string, from, to time.Time) ([]byte, error) {
	q := s.query()
	q.Set("start_date", from.Format(historyLayout))
	q.Set("end_date", to.Format(historyLayout))
	q.Set("call_back", callback)
	return s.get(ctx, "history", q)
}

func (s *httpSource) query() url.Values {
	q := url.Values{}
	q.Set("application_key", s.creds.ApplicationKey)
	q.Set("api_key", s.creds.APIKey)
	q.Set("mac", s.creds.MAC)
	return q
}

func (s *httpSource) get(ctx context.Context, endpoint string, q url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/"+endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUpstream, endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s body: %w", ErrUpstream, endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %s", ErrUpstream, endpoint, resp.Status)
	}
	return body, nil
}

type fileSource struct {
	path string
}

// NewFile returns a source that replays a saved payload, e.g. a previous
// raw_last.json.
func NewFile(path string) Source {
	return &fileSource{path: path}
}

func (s *fileSource) Current(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	return b, nil
}

func (s *fileSource) History(context.Context, string, time.Time, time.Time) ([]byte, error) {
	return nil, ErrNoHistory
}
