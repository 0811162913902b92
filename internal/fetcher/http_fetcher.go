package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/genricoloni/mediagrab/internal/config"
	"github.com/genricoloni/mediagrab/internal/domain"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"resty.dev/v3"
)

const _maxErrorBody = 1024

// HTTPFetcher retrieves pages, JSON documents and cover images
type HTTPFetcher struct {
	logger       *zap.Logger
	client       *resty.Client
	timeout      time.Duration
	maxImageSize int64
	images       *cache.Cache
}

// NewHTTPFetcher creates a new HTTP-based fetcher instance
func NewHTTPFetcher(logger *zap.Logger, cfg *config.AppConfig) *HTTPFetcher {
	ttl := cfg.Cover.CacheTTL
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	maxImage := cfg.Cover.MaxBytes
	if maxImage <= 0 {
		maxImage = 10 * 1024 * 1024
	}

	return &HTTPFetcher{
		logger:       logger,
		client:       resty.New(),
		timeout:      cfg.RequestTimeout,
		maxImageSize: maxImage,
		images:       cache.New(ttl, 2*ttl),
	}
}

// Close releases idle connections held by the client
func (f *HTTPFetcher) Close() error {
	return f.client.Close()
}

// FetchPage returns the HTML body of a page
func (f *HTTPFetcher) FetchPage(ctx context.Context, url string, opts domain.RequestOptions) (string, error) {
	body, err := f.get(ctx, url, opts)
	if err != nil {
		return "", err
	}
	f.logger.Debug("Page fetched", zap.String("url", url), zap.Int("bytes", len(body)))
	return string(body), nil
}

// FetchJSON returns the raw body of a JSON endpoint; decoding is left to the caller
func (f *HTTPFetcher) FetchJSON(ctx context.Context, url string, opts domain.RequestOptions) ([]byte, error) {
	body, err := f.get(ctx, url, opts)
	if err != nil {
		return nil, err
	}
	f.logger.Debug("JSON fetched", zap.String("url", url), zap.Int("bytes", len(body)))
	return body, nil
}

func (f *HTTPFetcher) get(ctx context.Context, url string, opts domain.RequestOptions) ([]byte, error) {
	ctx, cancel := f.withTimeout(ctx)
	defer cancel()

	resp, err := f.request(ctx, opts).Get(url)
	if err != nil {
		return nil, fmt.Errorf("%w: network error: %w", domain.ErrFetch, err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status code: %d", domain.ErrFetch, resp.StatusCode())
	}
	return resp.Bytes(), nil
}

// Fetch downloads cover image data from the given URL.
// Results are cached per URL for the configured TTL.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string, opts domain.RequestOptions) ([]byte, error) {
	if cached, ok := f.images.Get(url); ok {
		f.logger.Debug("Image served from cache", zap.String("url", url))
		return cached.([]byte), nil
	}

	ctx, cancel := f.withTimeout(ctx)
	defer cancel()

	resp, err := f.request(ctx, opts).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("%w: network error: %w", domain.ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode() != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, _maxErrorBody))
		return nil, fmt.Errorf("%w: unexpected status code: %d", domain.ErrFetch, resp.StatusCode())
	}

	if ct := resp.Header().Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("%w: url is not an image: %s", domain.ErrFetch, ct)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxImageSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read body: %w", domain.ErrFetch, err)
	}

	f.images.SetDefault(url, data)
	f.logger.Debug("Image fetched successfully", zap.Int("bytes", len(data)), zap.String("url", url))
	return data, nil
}

func (f *HTTPFetcher) request(ctx context.Context, opts domain.RequestOptions) *resty.Request {
	return f.client.R().
		SetContext(ctx).
		SetHeaders(opts.Headers).
		SetCookies(Cookies(opts.Cookies))
}

func (f *HTTPFetcher) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, f.timeout)
}

// Cookies converts a name/value map into request cookies ordered by name
func Cookies(m map[string]string) []*http.Cookie {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	cookies := make([]*http.Cookie, 0, len(names))
	for _, name := range names {
		cookies = append(cookies, &http.Cookie{Name: name, Value: m[name]})
	}
	return cookies
}
