// Package bucketapi is a client for the leaky-bucket admission service.
//
// The service exposes four endpoints: GET /metrics (snapshot), GET /api (one
// admission attempt), POST /config (form: capacity, rate) and POST /reset.
package bucketapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	bwerrors "github.com/vnykmshr/bucketwatch/pkg/common/errors"
	"github.com/vnykmshr/bucketwatch/pkg/model"
)

const (
	pathMetrics = "/metrics"
	pathProbe   = "/api"
	pathConfig  = "/config"
	pathReset   = "/reset"

	// DefaultTimeout bounds every request made by a Client from NewClient.
	DefaultTimeout = 5 * time.Second

	maxErrorBody = 1024
)

// Outcome classifies one admission probe.
type Outcome int

const (
	// Accepted means the bucket admitted the probe.
	Accepted Outcome = iota
	// Rejected means the bucket was full (HTTP 429).
	Rejected
	// Failed means the probe did not reach a verdict.
	Failed
)

var outcomeStrings = map[Outcome]string{
	Accepted: "accepted",
	Rejected: "rejected",
	Failed:   "failed",
}

func (o Outcome) String() string {
	if s, ok := outcomeStrings[o]; ok {
		return s
	}
	return "unknown"
}

// Service is the remote surface used by the monitor.
type Service interface {
	Metrics(ctx context.Context) (model.Snapshot, error)
	Probe(ctx context.Context) (Outcome, error)
	UpdateConfig(ctx context.Context, cfg model.Config) error
	Reset(ctx context.Context) error
}

var _ Service = &Client{}

// Client talks to the service over HTTP.
type Client struct {
	BaseURL *url.URL
	HTTP    *http.Client
}

// NewClient constructs a Client for base with the given request timeout.
// A non-positive timeout selects DefaultTimeout.
func NewClient(base string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("parse api url: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse api url: missing host in %q", base)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL: u,
		HTTP:    &http.Client{Timeout: timeout},
	}, nil
}

// Metrics fetches the current snapshot.
func (c *Client) Metrics(ctx context.Context) (model.Snapshot, error) {
	resp, err := c.do(ctx, http.MethodGet, pathMetrics, nil, "")
	if err != nil {
		return model.Snapshot{}, err
	}
	defer resp.Body.Close()

	var snap model.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return model.Snapshot{}, fmt.Errorf("decode %s: %w", pathMetrics, err)
	}
	return snap, nil
}

// Probe performs one admission attempt. A 429 is a Rejected outcome, not an error.
func (c *Client) Probe(ctx context.Context) (Outcome, error) {
	resp, err := c.do(ctx, http.MethodGet, pathProbe, nil, "")
	if err != nil {
		if bwerrors.StatusCode(err) == http.StatusTooManyRequests {
			return Rejected, nil
		}
		return Failed, err
	}
	drain(resp.Body)
	return Accepted, nil
}

// UpdateConfig replaces the service configuration with cfg in one request.
func (c *Client) UpdateConfig(ctx context.Context, cfg model.Config) error {
	body := cfg.Form().Encode()
	resp, err := c.do(ctx, http.MethodPost, pathConfig, strings.NewReader(body), "application/x-www-form-urlencoded")
	if err != nil {
		return err
	}
	drain(resp.Body)
	return nil
}

// Reset zeroes the service's cumulative counters.
func (c *Client) Reset(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodPost, pathReset, nil, "")
	if err != nil {
		return err
	}
	drain(resp.Body)
	return nil
}

// do issues the request and turns non-2xx answers into *errors.StatusError.
// On success the caller owns resp.Body.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	u := *c.BaseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	u.RawPath = ""
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		buf, _ := readAllLimit(resp.Body, maxErrorBody)
		return nil, &bwerrors.StatusError{
			Method: method,
			Path:   path,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(buf)),
		}
	}
	return resp, nil
}

// drain consumes and closes body so the connection can be reused.
func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64*1024))
	_ = body.Close()
}

func readAllLimit(r io.Reader, max int64) ([]byte, error) {
	buf := &bytes.Buffer{}
	_, err := io.CopyN(buf, r, max+1)
	if err != nil && err != io.EOF {
		return nil, err
	}
	b := buf.Bytes()
	if int64(len(b)) > max {
		return b[:max], nil
	}
	return b, nil
}
