package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/genricoloni/mediagrab/internal/config"
	"github.com/genricoloni/mediagrab/internal/domain"
	"go.uber.org/zap"
)

func newTestFetcher() *HTTPFetcher {
	return NewHTTPFetcher(zap.NewNop(), &config.AppConfig{
		RequestTimeout: 2 * time.Second,
		Cover:          config.CoverConfig{MaxBytes: 10 * 1024 * 1024, CacheTTL: time.Minute},
	})
}

func TestHTTPFetcher_Fetch(t *testing.T) {
	tests := []struct {
		name           string
		contentType    string
		responseBody   []byte
		statusCode     int
		ctxFunc        func() (context.Context, context.CancelFunc)
		expectedError  string
		expectedLength int
	}{
		{
			name:           "Success - Valid Image",
			contentType:    "image/jpeg",
			responseBody:   []byte("fake-image-data"),
			statusCode:     http.StatusOK,
			expectedError:  "",
			expectedLength: 15,
		},
		{
			name:          "Error - 404 Not Found",
			contentType:   "image/jpeg",
			statusCode:    http.StatusNotFound,
			expectedError: "unexpected status code: 404",
		},
		{
			name:          "Error - Invalid Content Type",
			contentType:   "text/plain",
			responseBody:  []byte("not-an-image"),
			statusCode:    http.StatusOK,
			expectedError: "url is not an image",
		},
		{
			name:           "Truncated - Response Too Large",
			contentType:    "image/png",
			responseBody:   []byte(strings.Repeat("a", 11*1024*1024)),
			statusCode:     http.StatusOK,
			expectedError:  "",               // LimitReader truncates without error
			expectedLength: 10 * 1024 * 1024, // Limit enforced in the code
		},
		{
			name: "Error - Context Cancelled",
			ctxFunc: func() (context.Context, context.CancelFunc) {
				ctx, cancel := context.WithCancel(context.Background())
				cancel() // Cancel immediately
				return ctx, cancel
			},
			expectedError: "context canceled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write(tt.responseBody)
			}))
			defer server.Close()

			var ctx context.Context
			var cancel context.CancelFunc
			if tt.ctxFunc != nil {
				ctx, cancel = tt.ctxFunc()
			} else {
				ctx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
			}
			defer cancel()

			fetcher := newTestFetcher()
			defer fetcher.Close()
			data, err := fetcher.Fetch(ctx, server.URL, domain.RequestOptions{})

			if tt.expectedError != "" {
				if err == nil {
					t.Fatalf("expected error containing '%s', got nil", tt.expectedError)
				}
				if !strings.Contains(err.Error(), tt.expectedError) {
					t.Errorf("expected error '%s' to contain '%s'", err.Error(), tt.expectedError)
				}
				if !errors.Is(err, domain.ErrFetch) {
					t.Errorf("expected error to wrap ErrFetch, got %v", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if len(data) != tt.expectedLength {
				t.Errorf("expected data length %d, got %d", tt.expectedLength, len(data))
			}
		})
	}
}

func TestHTTPFetcher_Fetch_Cached(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png"))
	}))
	defer server.Close()

	fetcher := newTestFetcher()
	defer fetcher.Close()

	for i := 0; i < 3; i++ {
		data, err := fetcher.Fetch(context.Background(), server.URL, domain.RequestOptions{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != "png" {
			t.Fatalf("unexpected body %q", data)
		}
	}

	if got := hits.Load(); got != 1 {
		t.Errorf("expected 1 upstream request, got %d", got)
	}
}

func TestHTTPFetcher_FetchPage_SendsHeadersAndCookies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "mediagrab-test" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		c, err := r.Cookie("platform")
		if err != nil || c.Value != "pc" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer server.Close()

	fetcher := newTestFetcher()
	defer fetcher.Close()

	opts := domain.RequestOptions{
		Headers: map[string]string{"User-Agent": "mediagrab-test"},
		Cookies: map[string]string{"platform": "pc"},
	}

	html, err := fetcher.FetchPage(context.Background(), server.URL, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if html != "<html>ok</html>" {
		t.Errorf("unexpected body %q", html)
	}

	_, err = fetcher.FetchPage(context.Background(), server.URL, domain.RequestOptions{})
	if !errors.Is(err, domain.ErrFetch) {
		t.Errorf("expected ErrFetch without headers, got %v", err)
	}
}

func TestHTTPFetcher_FetchJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"quality":"720"}]`))
	}))
	defer server.Close()

	fetcher := newTestFetcher()
	defer fetcher.Close()

	body, err := fetcher.FetchJSON(context.Background(), server.URL, domain.RequestOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != `[{"quality":"720"}]` {
		t.Errorf("unexpected body %q", body)
	}
}

func TestCookies_SortedByName(t *testing.T) {
	cookies := Cookies(map[string]string{"b": "2", "a": "1", "c": "3"})
	if len(cookies) != 3 {
		t.Fatalf("expected 3 cookies, got %d", len(cookies))
	}
	for i, name := range []string{"a", "b", "c"} {
		if cookies[i].Name != name {
			t.Errorf("cookie %d: expected %s, got %s", i, name, cookies[i].Name)
		}
	}
}
