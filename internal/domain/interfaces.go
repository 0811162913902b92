// Package domain holds the types and capability interfaces shared by the pipeline.
//
//go:generate mockgen -destination=mocks/interfaces_mock.go -package=mocks github.com/genricoloni/mediagrab/internal/domain PageFetcher,Fetcher,Extractor,QualityResolver,Downloader,ImageProcessor,Notifier
package domain

import (
	"context"
	"time"
)

// PageFetcher retrieves raw documents over HTTP
type PageFetcher interface {
	// FetchPage returns the HTML body of a page
	FetchPage(ctx context.Context, url string, opts RequestOptions) (string, error)

	// FetchJSON returns the raw body of a JSON endpoint
	FetchJSON(ctx context.Context, url string, opts RequestOptions) ([]byte, error)
}

// Fetcher defines the interface for retrieving cover artwork
type Fetcher interface {
	// Fetch downloads image data from a URL
	// Returns the raw image bytes or an error
	Fetch(ctx context.Context, url string, opts RequestOptions) ([]byte, error)
}

// Extractor turns a page into a media descriptor
type Extractor interface {
	Extract(html string) (Descriptor, error)
}

// QualityResolver lists the quality variants behind a resolved media URL
type QualityResolver interface {
	Resolve(ctx context.Context, mediaURL string, opts RequestOptions) ([]QualityOption, error)
}

// Downloader streams a file to disk.
// Progress values are sent on the channel as chunks arrive; the channel is
// never closed by the downloader. Returns the final file path.
type Downloader interface {
	Download(ctx context.Context, req DownloadRequest, progress chan<- Progress) (string, error)
}

// ImageProcessor defines the interface for in-memory image processing
// This is OS-agnostic and works purely with byte streams
type ImageProcessor interface {
	// Process transforms image data (e.g., resize to a thumbnail)
	// Returns the processed image bytes or an error
	Process(ctx context.Context, imageData []byte) ([]byte, error)
}

// Notifier surfaces finished items to the desktop
type Notifier interface {
	Notify(ctx context.Context, summary, body string) error
	Close() error
}

// Config defines the interface for application configuration
type Config interface {
	// GetDownloadDir returns the directory downloaded files are written to
	GetDownloadDir() string

	// GetRequestOptions returns a fresh copy of the configured headers and cookies
	GetRequestOptions() RequestOptions

	// GetRequestTimeout bounds page, JSON and image requests
	GetRequestTimeout() time.Duration
}
