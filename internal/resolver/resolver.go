package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/genricoloni/mediagrab/internal/domain"
	"github.com/genricoloni/mediagrab/internal/extractor"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// QualityResolver fetches the media JSON and turns it into quality options
type QualityResolver struct {
	logger  *zap.Logger
	fetcher domain.PageFetcher
}

// New creates a resolver backed by the given fetcher
func New(logger *zap.Logger, fetcher domain.PageFetcher) *QualityResolver {
	return &QualityResolver{logger: logger, fetcher: fetcher}
}

// Resolve returns options in source order. Entries without both a quality
// and a video URL are skipped; a repeated label keeps its first URL.
// ErrEmptyResult is returned when nothing usable remains.
func (r *QualityResolver) Resolve(ctx context.Context, mediaURL string, opts domain.RequestOptions) ([]domain.QualityOption, error) {
	body, err := r.fetcher.FetchJSON(ctx, mediaURL, opts)
	if err != nil {
		return nil, err
	}

	options, err := ParseOptions(body)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("Qualities resolved",
		zap.String("url", mediaURL),
		zap.Strings("labels", lo.Map(options, func(o domain.QualityOption, _ int) string { return o.Label })))

	if len(options) == 0 {
		return nil, domain.ErrEmptyResult
	}
	return options, nil
}

// ParseOptions decodes a JSON array of media entries
func ParseOptions(body []byte) ([]domain.QualityOption, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrDecode, err)
	}

	options := lo.FilterMap(entries, func(raw json.RawMessage, _ int) (domain.QualityOption, bool) {
		return parseEntry(raw)
	})

	return lo.UniqBy(options, func(o domain.QualityOption) string { return o.Label }), nil
}

func parseEntry(raw json.RawMessage) (domain.QualityOption, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var entry map[string]any
	if err := dec.Decode(&entry); err != nil || entry == nil {
		return domain.QualityOption{}, false
	}

	quality, ok := qualityString(entry["quality"])
	if !ok {
		return domain.QualityOption{}, false
	}

	rawURL, _ := entry["videoUrl"].(string)
	url := strings.TrimSpace(extractor.Unescape(rawURL))
	if url == "" {
		return domain.QualityOption{}, false
	}

	return domain.QualityOption{Label: Label(quality), URL: url}, true
}

// qualityString accepts both "720" and 720
func qualityString(v any) (string, bool) {
	switch q := v.(type) {
	case string:
		q = strings.TrimSpace(q)
		return q, q != ""
	case json.Number:
		return q.String(), true
	default:
		return "", false
	}
}

// Label renders a quality value for display, e.g. "720" -> "720p"
func Label(quality string) string {
	return quality + "p"
}
