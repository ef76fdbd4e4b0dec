package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"har_importer/models"
)

// Page is one page of feed results. NextLink is the server-issued cursor
// for the following page; empty means the feed is exhausted.
type Page struct {
	Records  []models.FeedListing
	NextLink string
	Count    *int
}

// FetchError is a transport or non-2xx failure. Fatal to the current run;
// retry policy beyond the transport-level retries belongs to the caller's
// scheduler, not here.
type FetchError struct {
	Status int
	Body   string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch listings: %v", e.Err)
	}
	return fmt.Sprintf("fetch listings: status %d: %s", e.Status, e.Body)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ProtocolError means the response body did not have the OData shape the
// pager depends on. Pagination cannot safely continue past it.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string {
	return "feed protocol: " + e.Message
}

type Client struct {
	baseURL string
	token   string
	filter  string
	http    *retryablehttp.Client
}

// NewClient validates the configured feed URL up front: a URL without an
// access token or pointed at a non-OData path would not fail loudly until
// much later (or worse, page through empty results), so construction
// refuses it.
func NewClient(rawURL, filter string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("feed url: %w", err)
	}
	token := u.Query().Get("access_token")
	if token == "" {
		return nil, errors.New("feed url must include an access_token query parameter (full OData URL from HAR)")
	}
	if !strings.Contains(u.Path, "/OData/") {
		return nil, errors.New("feed url must be an OData endpoint (e.g. https://api.bridgedataoutput.com/api/v2/OData/har/Property?access_token=...)")
	}

	rc := retryablehttp.NewClient()
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.RetryMax = 3
	rc.Logger = nil
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rc.HTTPClient.Timeout = timeout

	return &Client{
		baseURL: fmt.Sprintf("%s://%s%s", u.Scheme, u.Host, u.Path),
		token:   token,
		filter:  filter,
		http:    rc,
	}, nil
}

// FetchPage retrieves one page. With an empty nextLink it builds the
// initial filtered query; a non-empty nextLink is used verbatim because
// OData next-links are self-contained (token, filter, and server-side
// paging state included) and rebuilding them would drop that state.
func (c *Client) FetchPage(ctx context.Context, nextLink string, top int) (*Page, error) {
	reqURL := nextLink
	if reqURL == "" {
		q := url.Values{}
		q.Set("access_token", c.token)
		q.Set("$filter", c.filter)
		q.Set("$top", fmt.Sprintf("%d", top))
		reqURL = c.baseURL + "?" + q.Encode()
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Status: resp.StatusCode, Body: truncate(string(body), 512)}
	}

	var envelope struct {
		Value    json.RawMessage `json:"value"`
		NextLink string          `json:"@odata.nextLink"`
		Count    *int            `json:"@odata.count"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &ProtocolError{Message: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if envelope.Value == nil {
		return nil, &ProtocolError{Message: "missing value array"}
	}

	var records []models.FeedListing
	if err := json.Unmarshal(envelope.Value, &records); err != nil {
		return nil, &ProtocolError{Message: fmt.Sprintf("value is not a record array: %v", err)}
	}

	return &Page{
		Records:  records,
		NextLink: envelope.NextLink,
		Count:    envelope.Count,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
