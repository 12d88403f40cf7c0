package baserow

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultPageSize is the row page size requested from the list endpoint (the API maximum).
const DefaultPageSize = 200

// maxPages bounds pagination in case a server keeps returning a next link.
const maxPages = 100000

// Client is a minimal HTTP client for the Baserow database endpoints used by the linker.
type Client struct {
	baseURL  *url.URL
	token    string
	http     *http.Client
	pageSize int

	// writeLimiter throttles row updates; nil disables throttling.
	writeLimiter *rate.Limiter
}

// Option customizes a Client.
type Option func(*Client)

// WithWriteRateLimit limits row updates to rps requests per second. Set to <=0 to disable.
func WithWriteRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.writeLimiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithPageSize overrides the list page size.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient constructs a client for a Baserow instance.
//
// baseURL is the instance root (e.g. https://api.baserow.io); defaultCAPath is optional and,
// when provided, will be used as the trust store for TLS.
func NewClient(baseURL, token, defaultCAPath string, opts ...Option) (*Client, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("baserow api token is required")
	}

	hc, err := newHTTPClient(defaultCAPath)
	if err != nil {
		return nil, err
	}

	c := &Client{
		baseURL:  base,
		token:    token,
		http:     hc,
		pageSize: DefaultPageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("baserow base URL is required")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse baserow base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("baserow base URL must include a host (got %q)", raw)
	}
	// Ensure the base path ends with a slash so ResolveReference treats it as a directory.
	u.Path = strings.TrimRight(u.Path, "/") + "/"
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

func newHTTPClient(defaultCAPath string) (*http.Client, error) {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if strings.TrimSpace(defaultCAPath) != "" {
		b, err := os.ReadFile(strings.TrimSpace(defaultCAPath))
		if err != nil {
			return nil, fmt.Errorf("read DEFAULT_CA_PATH file: %w", err)
		}
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(b); !ok {
			return nil, fmt.Errorf("parse DEFAULT_CA_PATH PEM: no certs found")
		}
		tr.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	}
	return &http.Client{
		Transport: tr,
		Timeout:   60 * time.Second,
	}, nil
}

// GetTable fetches the field metadata of a table. It fails if the table does not exist
// or is not readable with the configured token.
func (c *Client) GetTable(ctx context.Context, tableID string) (Table, error) {
	tableID = strings.TrimSpace(tableID)
	if tableID == "" {
		return Table{}, fmt.Errorf("table id is required")
	}

	u := c.resolve(fmt.Sprintf("api/database/fields/table/%s/", url.PathEscape(tableID)))
	b, err := c.do(ctx, "listFields", http.MethodGet, u, nil)
	if err != nil {
		return Table{}, err
	}

	var fields []Field
	if err := json.Unmarshal(b, &fields); err != nil {
		return Table{}, fmt.Errorf("parse list fields response: %w", err)
	}
	return Table{ID: tableID, Fields: fields}, nil
}

type listRowsResponse struct {
	Count   int              `json:"count"`
	Next    *string          `json:"next"`
	Results []map[string]any `json:"results"`
}

// ListRows returns every row of the table matching all filters, following pagination
// until the server reports no next page.
func (c *Client) ListRows(ctx context.Context, tableID string, filters ...Filter) ([]Row, error) {
	tableID = strings.TrimSpace(tableID)
	if tableID == "" {
		return nil, fmt.Errorf("table id is required")
	}

	var out []Row
	for page := 1; page <= maxPages; page++ {
		u := c.resolve(fmt.Sprintf("api/database/rows/table/%s/", url.PathEscape(tableID)))
		u.RawQuery = rowsQuery(page, c.pageSize, filters).Encode()

		b, err := c.do(ctx, "listRows", http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}

		var resp listRowsResponse
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.UseNumber()
		if err := dec.Decode(&resp); err != nil {
			return nil, fmt.Errorf("parse list rows response: %w", err)
		}
		for _, raw := range resp.Results {
			row, err := rowFromJSON(raw)
			if err != nil {
				return nil, fmt.Errorf("table %s page %d: %w", tableID, page, err)
			}
			out = append(out, row)
		}
		if resp.Next == nil || strings.TrimSpace(*resp.Next) == "" || len(resp.Results) == 0 {
			return out, nil
		}
	}
	return nil, fmt.Errorf("table %s: pagination exceeded %d pages", tableID, maxPages)
}

func rowsQuery(page, size int, filters []Filter) url.Values {
	q := url.Values{}
	q.Set("user_field_names", "true")
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	if len(filters) > 0 {
		q.Set("filter_type", "AND")
	}
	for _, f := range filters {
		typ := strings.TrimSpace(f.Type)
		if typ == "" {
			typ = FilterEqual
		}
		q.Add(fmt.Sprintf("filter__%s__%s", f.Field, typ), f.Value)
	}
	return q
}

// WriteRow updates the given fields of one row. The write is a single remote PATCH with
// no transactional guarantee.
func (c *Client) WriteRow(ctx context.Context, tableID string, rowID int64, fields map[string]any) error {
	tableID = strings.TrimSpace(tableID)
	if tableID == "" {
		return fmt.Errorf("table id is required")
	}
	body, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode row update: %w", err)
	}

	if c.writeLimiter != nil {
		if err := c.writeLimiter.Wait(ctx); err != nil {
			return err
		}
	}

	u := c.resolve(fmt.Sprintf(
		"api/database/rows/table/%s/%d/",
		url.PathEscape(tableID),
		rowID,
	))
	q := url.Values{}
	q.Set("user_field_names", "true")
	u.RawQuery = q.Encode()

	_, err = c.do(ctx, "updateRow", http.MethodPatch, u, body)
	return err
}

func (c *Client) do(ctx context.Context, op, method string, u *url.URL, body []byte) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		return nil, newHTTPError(op, resp, b)
	}
	return b, nil
}

func (c *Client) resolve(relPath string) *url.URL {
	relPath = strings.TrimPrefix(relPath, "/")
	rel := &url.URL{Path: relPath}
	return c.baseURL.ResolveReference(rel)
}
