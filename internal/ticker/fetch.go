package ticker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mr1hm/go-weather-ticker/internal/models"
)

type FetchErrorKind int

const (
	FetchTransport FetchErrorKind = iota
	FetchStatus
	FetchMalformed
)

func (k FetchErrorKind) String() string {
	switch k {
	case FetchTransport:
		return "transport"
	case FetchStatus:
		return "status"
	case FetchMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// FetchError is returned for every failed fetch.
type FetchError struct {
	Kind       FetchErrorKind
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == FetchStatus {
		return fmt.Sprintf("fetch alerts: unexpected status code %d", e.StatusCode)
	}
	return fmt.Sprintf("fetch alerts: %s: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

var errNotArray = errors.New("expected a JSON array of alerts")

// Fetcher retrieves the active alert list from a fixed endpoint.
type Fetcher struct {
	url    string
	client *http.Client
}

func NewFetcher(url string, timeout time.Duration) *Fetcher {
	return NewFetcherWithClient(url, &http.Client{Timeout: timeout})
}

func NewFetcherWithClient(url string, client *http.Client) *Fetcher {
	return &Fetcher{
		url:    url,
		client: client,
	}
}

func (f *Fetcher) Fetch(ctx context.Context) ([]models.Alert, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, &FetchError{Kind: FetchTransport, Err: fmt.Errorf("error creating request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{Kind: FetchTransport, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{
			Kind:       FetchStatus,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("status: %s", resp.Status),
		}
	}

	var alerts []models.Alert
	if err := json.NewDecoder(resp.Body).Decode(&alerts); err != nil {
		return nil, &FetchError{Kind: FetchMalformed, Err: fmt.Errorf("error decoding resp.Body: %w", err)}
	}
	if alerts == nil {
		return nil, &FetchError{Kind: FetchMalformed, Err: errNotArray}
	}

	return alerts, nil
}
