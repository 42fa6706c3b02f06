package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lendconsole/dashboard/internal/dashboard"
)

// FetchError reports a non-success response from the reporting backend.
type FetchError struct {
	Report string
	Status int
	Body   string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("report: %s returned status %d", e.Report, e.Status)
}

// ClientConfig configures the HTTP report client.
type ClientConfig struct {
	BaseURL  string
	Tenant   string
	Username string
	Password string
	Timeout  time.Duration
}

// HTTPClient runs reports against the backend's /reports API.
type HTTPClient struct {
	cfg        ClientConfig
	registry   *Registry
	httpClient *http.Client
}

// NewHTTPClient constructs a client. A nil registry uses the default ids.
func NewHTTPClient(cfg ClientConfig, registry *Registry) *HTTPClient {
	if registry == nil {
		registry = NewRegistry(nil)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &HTTPClient{cfg: cfg, registry: registry, httpClient: &http.Client{Timeout: timeout}}
}

// Fetch implements dashboard.Fetcher. Failures are returned once; there is no retry.
func (c *HTTPClient) Fetch(ctx context.Context, reportName string, officeID int64) (*dashboard.RawResult, error) {
	id, err := c.registry.ID(reportName)
	if err != nil {
		return nil, err
	}
	query := url.Values{}
	query.Set("R_officeId", strconv.FormatInt(officeID, 10))
	query.Set("genericResultSet", "false")
	endpoint := fmt.Sprintf("%s/reports/%d?%s", c.cfg.BaseURL, id, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.Tenant != "" {
		req.Header.Set("Fineract-Platform-TenantId", c.cfg.Tenant)
	}
	if c.cfg.Username != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, &FetchError{Report: reportName, Status: resp.StatusCode, Body: truncate(string(body), 512)}
	}
	return Decode(body)
}

// Ping checks that the backend answers at all.
func (c *HTTPClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.cfg.BaseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("report: backend returned status %d", resp.StatusCode)
	}
	return nil
}

// Decode reads a report body. Accepted shapes are {"data": [[...], ...]}, an array of
// rows, an array of column objects (values taken in column order), and a bare array of
// scalars, which is a single row. null and {} are the empty result.
func Decode(body []byte) (*dashboard.RawResult, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return &dashboard.RawResult{}, nil
	}
	if trimmed[0] == '{' {
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("report: decode: %w", err)
		}
		trimmed = bytes.TrimSpace(envelope.Data)
		if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
			return &dashboard.RawResult{}, nil
		}
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	value, err := decodeValue(dec)
	if err != nil {
		return nil, fmt.Errorf("report: decode: %w", err)
	}
	items, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("report: decode: unexpected %T payload", value)
	}
	return &dashboard.RawResult{Data: toRows(items)}, nil
}

func toRows(items []any) []dashboard.Row {
	if len(items) == 0 {
		return nil
	}
	scalars := true
	for _, item := range items {
		switch item.(type) {
		case []any, orderedObject:
			scalars = false
		}
	}
	if scalars {
		return []dashboard.Row{dashboard.Row(items)}
	}
	rows := make([]dashboard.Row, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case []any:
			rows = append(rows, dashboard.Row(v))
		case orderedObject:
			rows = append(rows, dashboard.Row(v.values))
		default:
			rows = append(rows, dashboard.Row{v})
		}
	}
	return rows
}

// orderedObject keeps a JSON object's values in document order, since result columns are
// positional.
type orderedObject struct {
	values []any
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch delim {
	case '[':
		out := []any{}
		for dec.More() {
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		_, err = dec.Token()
		return out, err
	case '{':
		obj := orderedObject{}
		for dec.More() {
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			obj.values = append(obj.values, v)
		}
		_, err = dec.Token()
		return obj, err
	default:
		return nil, fmt.Errorf("unexpected delimiter %v", delim)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
