// Package objstore wraps the hosted object storage service: upload,
// download, public URL derivation, listing, and deletion of objects
// within a bucket.
package objstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Object describes one stored object under a prefix.
type Object struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Client defines the object storage operations used by this application.
type Client interface {
	// Upload stores body at path within the bucket, overwriting any
	// existing object.
	Upload(ctx context.Context, path, contentType string, body io.Reader) error
	// PublicURL returns the public download URL for a path. Purely
	// derivational; no network call.
	PublicURL(path string) string
	Download(ctx context.Context, path string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]Object, error)
	Remove(ctx context.Context, paths []string) error
}

// ClientOption configures the storage client.
type ClientOption func(*httpClient)

// WithHTTPClient overrides the transport used for API calls.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *httpClient) { c.hc = hc }
}

// WithRateLimit overrides the default request throttle (20 req/s).
func WithRateLimit(rps float64) ClientOption {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

type httpClient struct {
	baseURL string
	bucket  string
	apiKey  string
	hc      *http.Client
	limiter *rate.Limiter
}

// NewClient creates a storage client scoped to one bucket.
func NewClient(baseURL, bucket, apiKey string, opts ...ClientOption) Client {
	c := &httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		bucket:  bucket,
		apiKey:  apiKey,
		hc:      &http.Client{Timeout: 60 * time.Second},
		limiter: rate.NewLimiter(20, 20),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *httpClient) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		return nil, eris.Errorf("objstore: %s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, data)
	}
	return resp, nil
}

func (c *httpClient) Upload(ctx context.Context, path, contentType string, body io.Reader) error {
	if err := c.wait(ctx); err != nil {
		return eris.Wrap(err, "objstore: rate limit")
	}

	u := fmt.Sprintf("%s/object/%s/%s", c.baseURL, c.bucket, strings.TrimLeft(path, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, body)
	if err != nil {
		return eris.Wrap(err, "objstore: build upload request")
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	resp, err := c.do(req)
	if err != nil {
		return eris.Wrapf(err, "objstore: upload %s", path)
	}
	resp.Body.Close()
	return nil
}

func (c *httpClient) PublicURL(path string) string {
	return fmt.Sprintf("%s/object/public/%s/%s", c.baseURL, c.bucket, strings.TrimLeft(path, "/"))
}

func (c *httpClient) Download(ctx context.Context, path string) ([]byte, error) {
	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "objstore: rate limit")
	}

	u := fmt.Sprintf("%s/object/%s/%s", c.baseURL, c.bucket, strings.TrimLeft(path, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, eris.Wrap(err, "objstore: build download request")
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "objstore: download %s", path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "objstore: read %s", path)
	}
	return data, nil
}

func (c *httpClient) List(ctx context.Context, prefix string) ([]Object, error) {
	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "objstore: rate limit")
	}

	payload, err := json.Marshal(map[string]string{"prefix": prefix})
	if err != nil {
		return nil, eris.Wrap(err, "objstore: marshal list request")
	}
	u := fmt.Sprintf("%s/object/list/%s", c.baseURL, c.bucket)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "objstore: build list request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "objstore: list %s", prefix)
	}
	defer resp.Body.Close()

	var objects []Object
	if err := json.NewDecoder(resp.Body).Decode(&objects); err != nil {
		return nil, eris.Wrap(err, "objstore: decode list response")
	}
	return objects, nil
}

func (c *httpClient) Remove(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	if err := c.wait(ctx); err != nil {
		return eris.Wrap(err, "objstore: rate limit")
	}

	payload, err := json.Marshal(map[string][]string{"prefixes": paths})
	if err != nil {
		return eris.Wrap(err, "objstore: marshal remove request")
	}
	u := fmt.Sprintf("%s/object/%s", c.baseURL, c.bucket)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "objstore: build remove request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return eris.Wrap(err, "objstore: remove objects")
	}
	resp.Body.Close()
	return nil
}
