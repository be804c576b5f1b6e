// Package registry fetches package metadata from the npm registry.
//
// Lookups are retried on transient failures, deduplicated in flight, and
// memoized for the process lifetime so each unique package name costs at
// most one network call per run. An optional persistent cache keeps raw
// registry documents across runs.
package registry

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/depstale/depstale/pkg/cache"
	"github.com/depstale/depstale/pkg/errors"
	"github.com/depstale/depstale/pkg/httputil"
	"github.com/depstale/depstale/pkg/observability"
)

// DefaultBaseURL is the public npm registry endpoint.
const DefaultBaseURL = "https://registry.npmjs.org"

const (
	// DefaultTimeout bounds one lookup including all of its retries.
	DefaultTimeout = 30 * time.Second

	// DefaultCacheTTL is how long raw registry documents stay fresh in the
	// persistent cache.
	DefaultCacheTTL = 24 * time.Hour

	cacheKeyPrefix = "npm:"
)

// Options configures a Client. The zero value uses the public registry, a
// 30 second per-lookup timeout, and no persistent cache.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client

	// Cache is the persistent document cache; nil disables it.
	Cache    cache.Cache
	CacheTTL time.Duration

	// Refresh bypasses the persistent cache on read (entries are still
	// written back).
	Refresh bool

	// Timeout bounds a single lookup including retries.
	Timeout time.Duration
}

// Client retrieves and memoizes npm package metadata.
type Client struct {
	http     *http.Client
	baseURL  string
	cache    cache.Cache
	cacheTTL time.Duration
	refresh  bool
	timeout  time.Duration

	// retryDelay is the initial backoff delay, shortened in tests.
	retryDelay time.Duration

	group singleflight.Group

	mu   sync.Mutex
	memo map[string]outcome
}

// outcome is a memoized lookup result, success or terminal failure.
type outcome struct {
	meta *PackageMetadata
	err  error
}

// New creates a Client from opts.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewNullCache()
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}

	return &Client{
		http:       opts.HTTPClient,
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		cache:      opts.Cache,
		cacheTTL:   opts.CacheTTL,
		refresh:    opts.Refresh,
		timeout:    opts.Timeout,
		retryDelay: httputil.DefaultDelay,
		memo:       make(map[string]outcome),
	}
}

// Fetch returns the metadata for one package name. Results, including
// terminal failures such as PACKAGE_NOT_FOUND, are memoized for the process
// lifetime; concurrent lookups for the same name share a single in-flight
// request.
func (c *Client) Fetch(ctx context.Context, name string) (*PackageMetadata, error) {
	if err := errors.ValidateNpmPackageName(name); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if out, ok := c.memo[name]; ok {
		c.mu.Unlock()
		return out.meta, out.err
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(name, func() (any, error) {
		meta, err := c.lookup(ctx, name)
		// Cancellation is a property of the run, not the package, so it is
		// never memoized.
		if ctx.Err() == nil {
			c.mu.Lock()
			c.memo[name] = outcome{meta: meta, err: err}
			c.mu.Unlock()
		}
		return meta, err
	})
	if err != nil {
		return nil, err
	}
	return v.(*PackageMetadata), nil
}

func (c *Client) lookup(ctx context.Context, name string) (*PackageMetadata, error) {
	start := time.Now()
	observability.Registry().OnLookupStart(ctx, name)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	key := cacheKeyPrefix + name
	if !c.refresh {
		if data, ok, _ := c.cache.Get(ctx, key); ok {
			observability.Cache().OnCacheHit(ctx, "registry")
			meta, err := ParseMetadata(data)
			if err == nil {
				observability.Registry().OnLookupComplete(ctx, name, time.Since(start), nil)
				return meta, nil
			}
			// Fall through and refetch on a corrupt entry.
		} else {
			observability.Cache().OnCacheMiss(ctx, "registry")
		}
	}

	var body []byte
	err := httputil.Retry(ctx, httputil.DefaultAttempts, c.retryDelay, func() error {
		var err error
		body, err = c.get(ctx, name)
		return err
	})
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			err = errors.Wrap(errors.ErrCodeTimeout, err, "lookup for %s timed out", name)
		}
		observability.Registry().OnLookupComplete(ctx, name, time.Since(start), err)
		return nil, err
	}

	meta, err := ParseMetadata(body)
	if err == nil {
		if cerr := c.cache.Set(ctx, key, body, c.cacheTTL); cerr == nil {
			observability.Cache().OnCacheSet(ctx, "registry", len(body))
		}
	}
	observability.Registry().OnLookupComplete(ctx, name, time.Since(start), err)
	return meta, err
}

// get performs one GET against the registry's package document endpoint.
// Scoped names escape their slash, per the registry's URL scheme.
func (c *Client) get(ctx context.Context, name string) ([]byte, error) {
	endpoint := c.baseURL + "/" + url.PathEscape(name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "failed to build request for %s", name)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, httputil.Retryable(errors.Wrap(errors.ErrCodeNetwork, err, "request for %s failed", name))
	}
	defer resp.Body.Close()

	if err := checkStatus(resp.StatusCode, name); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, httputil.Retryable(errors.Wrap(errors.ErrCodeNetwork, err, "failed to read response for %s", name))
	}
	return body, nil
}

func checkStatus(code int, name string) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return errors.New(errors.ErrCodePackageNotFound, "package %s not found in registry", name)
	case code == http.StatusTooManyRequests:
		return httputil.Retryable(errors.New(errors.ErrCodeRateLimited, "registry rate limited request for %s", name))
	case code >= 500:
		return httputil.Retryable(errors.New(errors.ErrCodeNetwork, "registry returned status %d for %s", code, name))
	default:
		return errors.New(errors.ErrCodeNetwork, "registry returned unexpected status %d for %s", code, name)
	}
}
