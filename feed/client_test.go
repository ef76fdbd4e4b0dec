package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	path := filepath.Join("testdata", name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	return data
}

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	c, err := NewClient(serverURL+"/api/v2/OData/har/Property?access_token=test-token",
		"(City eq 'Houston')", 5*time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient("https://api.example.com/api/v2/OData/har/Property", "", 0); err == nil {
		t.Fatal("expected error for URL without access_token")
	}
	if _, err := NewClient("https://api.example.com/api/v2/rest/har?access_token=x", "", 0); err == nil {
		t.Fatal("expected error for non-OData URL")
	}
	if _, err := NewClient("https://api.example.com/api/v2/OData/har/Property?access_token=x", "", 0); err != nil {
		t.Fatalf("valid URL rejected: %v", err)
	}
}

func TestFetchPageFirstRequest(t *testing.T) {
	var gotURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURL = r.URL.String()
		w.Write(loadFixture(t, "page_last.json"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	page, err := c.FetchPage(context.Background(), "", 100)
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}

	u, err := url.Parse(gotURL)
	if err != nil {
		t.Fatalf("parse request URL: %v", err)
	}
	params := u.Query()
	if params.Get("access_token") != "test-token" {
		t.Fatalf("missing access_token in %s", gotURL)
	}
	if params.Get("$filter") != "(City eq 'Houston')" {
		t.Fatalf("missing $filter in %s", gotURL)
	}
	if params.Get("$top") != "100" {
		t.Fatalf("missing $top in %s", gotURL)
	}

	if len(page.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(page.Records))
	}
	if page.NextLink != "" {
		t.Fatalf("expected no next link, got %q", page.NextLink)
	}
	if string(page.Records[0].ListingID) != "10000003" {
		t.Fatalf("unexpected ListingId %q", page.Records[0].ListingID)
	}
}

func TestFetchPageNextLinkVerbatim(t *testing.T) {
	var requests []string
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.String())
		if r.URL.Query().Get("$skiptoken") == "abc" {
			w.Write(loadFixture(t, "page_last.json"))
			return
		}
		body := strings.Replace(string(loadFixture(t, "page_first.json")),
			"__NEXT__", srv.URL+"/api/v2/OData/har/Property?access_token=test-token&%24skiptoken=abc", 1)
		w.Write([]byte(body))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	page, err := c.FetchPage(context.Background(), "", 2)
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(page.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(page.Records))
	}
	if page.NextLink == "" {
		t.Fatal("expected a next link")
	}
	if page.Count == nil || *page.Count != 3 {
		t.Fatalf("expected count 3, got %v", page.Count)
	}

	// Mixed-type scalars decode: numeric postal code, string price.
	if string(page.Records[0].PostalCode) != "77005" {
		t.Fatalf("unexpected postal code %q", page.Records[0].PostalCode)
	}
	if page.Records[1].ListPrice.Or(0) != 425000.50 {
		t.Fatalf("unexpected price %v", page.Records[1].ListPrice.Or(0))
	}

	page2, err := c.FetchPage(context.Background(), page.NextLink, 2)
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(page2.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(page2.Records))
	}
	if page2.NextLink != "" {
		t.Fatalf("expected pagination to end, got %q", page2.NextLink)
	}

	// The next-link must be requested exactly as issued, not rebuilt.
	if len(requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(requests))
	}
	want := "/api/v2/OData/har/Property?access_token=test-token&%24skiptoken=abc"
	if requests[1] != want {
		t.Fatalf("next link rewritten: got %s, want %s", requests[1], want)
	}
}

func TestFetchPageBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "invalid token"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.FetchPage(context.Background(), "", 10)

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fe.Status != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", fe.Status)
	}
	if !strings.Contains(fe.Body, "invalid token") {
		t.Fatalf("expected body in error, got %q", fe.Body)
	}
}

func TestFetchPageMissingValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(loadFixture(t, "no_value.json"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.FetchPage(context.Background(), "", 10)

	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
}

func TestFetchPageInvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>gateway error</html>"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.FetchPage(context.Background(), "", 10)

	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
}
