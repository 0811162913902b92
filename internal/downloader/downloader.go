package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/genricoloni/mediagrab/internal/domain"
	"github.com/genricoloni/mediagrab/internal/fetcher"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"resty.dev/v3"
)

const (
	DefaultChunkSize = 1024
	partSuffix       = ".part"
)

// Options configures a StreamDownloader
type Options struct {
	Dir         string
	ChunkSize   int
	DefaultExt  string
	KeepPartial bool          // keep <file>.part when a transfer fails
	Timeout     time.Duration // whole-transfer limit, 0 disables it
}

// StreamDownloader writes a remote file to disk chunk by chunk
type StreamDownloader struct {
	logger *zap.Logger
	client *resty.Client
	fs     afero.Fs
	opts   Options
}

// New creates a downloader writing to fs
func New(logger *zap.Logger, fs afero.Fs, opts Options) *StreamDownloader {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.DefaultExt == "" {
		opts.DefaultExt = DefaultExt
	}
	return &StreamDownloader{
		logger: logger,
		client: resty.New(),
		fs:     fs,
		opts:   opts,
	}
}

// Close releases idle connections held by the client
func (d *StreamDownloader) Close() error {
	return d.client.Close()
}

// Download streams req.URL into <dir>/<title>_<quality>.<ext>.
// Bytes go to a ".part" file that is renamed on success and removed on
// failure unless KeepPartial is set. An existing file with the final name is
// overwritten.
func (d *StreamDownloader) Download(ctx context.Context, req domain.DownloadRequest, progress chan<- domain.Progress) (string, error) {
	if d.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.Timeout)
		defer cancel()
	}

	if err := d.fs.MkdirAll(d.opts.Dir, 0755); err != nil {
		return "", fmt.Errorf("%w: failed to create output directory: %w", domain.ErrDownload, err)
	}

	finalPath := filepath.Join(d.opts.Dir, FileName(req.Title, req.Quality, Extension(req.URL, d.opts.DefaultExt)))
	partPath := finalPath + partSuffix

	resp, err := d.client.R().
		SetContext(ctx).
		SetHeaders(req.Options.Headers).
		SetHeader("Accept-Encoding", "identity"). // keep Content-Length meaningful
		SetCookies(fetcher.Cookies(req.Options.Cookies)).
		SetDoNotParseResponse(true).
		Get(req.URL)
	if err != nil {
		return "", fmt.Errorf("%w: request failed: %w", domain.ErrDownload, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("%w: unexpected status code: %d", domain.ErrDownload, resp.StatusCode())
	}

	total := resp.RawResponse.ContentLength

	file, err := d.fs.Create(partPath)
	if err != nil {
		return "", fmt.Errorf("%w: failed to create file: %w", domain.ErrDownload, err)
	}

	d.logger.Info("Download started",
		zap.String("url", req.URL),
		zap.String("path", finalPath),
		zap.Int64("total", total))

	received, err := d.copyChunks(ctx, file, resp.Body, total, progress)
	err = multierr.Append(err, file.Close())
	if err == nil && total > 0 && received != total {
		err = fmt.Errorf("incomplete download: expected %d bytes, got %d", total, received)
	}

	if err != nil {
		if !d.opts.KeepPartial {
			err = multierr.Append(err, d.fs.Remove(partPath))
		}
		return "", fmt.Errorf("%w: %w", domain.ErrDownload, err)
	}

	if err := d.fs.Rename(partPath, finalPath); err != nil {
		return "", fmt.Errorf("%w: failed to finalize file: %w", domain.ErrDownload, err)
	}

	d.logger.Info("Download finished", zap.String("path", finalPath), zap.Int64("bytes", received))
	return finalPath, nil
}

// copyChunks writes body to w in fixed-size chunks and reports progress
// after each chunk when total is known
func (d *StreamDownloader) copyChunks(ctx context.Context, w io.Writer, body io.Reader, total int64, progress chan<- domain.Progress) (int64, error) {
	buf := make([]byte, d.opts.ChunkSize)
	var received int64
	lastPercent := 0

	for {
		n, rerr := readChunk(body, buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return received, fmt.Errorf("failed to write file: %w", err)
			}
			received += int64(n)

			if total > 0 && progress != nil {
				lastPercent = max(lastPercent, Percent(received, total))
				select {
				case progress <- domain.Progress{Percent: lastPercent, Received: received, Total: total}:
				case <-ctx.Done():
					return received, ctx.Err()
				}
			}
		}

		if errors.Is(rerr, io.EOF) {
			return received, nil
		}
		if rerr != nil {
			return received, fmt.Errorf("failed to read body: %w", rerr)
		}
	}
}

// readChunk fills buf unless the reader ends or fails first.
// io.EOF is returned only for a clean end of stream.
func readChunk(r io.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// Percent is floor(received*100/total), clamped to [0,100]
func Percent(received, total int64) int {
	if total <= 0 || received <= 0 {
		return 0
	}
	if received >= total {
		return 100
	}
	return int(received * 100 / total)
}
