// Package extractor scrapes the media descriptor embedded in a video page.
//
// The descriptor is a JavaScript object literal assigned to a variable named
// flashvars_<digits> inside a <script> element of the player region. It is
// located with a non-greedy regular expression that ends at the first literal
// "};" after the opening brace. A nested object literal followed by "};"
// before the real end of the assignment truncates the capture; the truncated
// text then fails as ErrMalformedDescriptor or ErrNoMediaDefinitions.
package extractor

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/genricoloni/mediagrab/internal/domain"
	"go.uber.org/zap"
)

const (
	DefaultRegionSelector = "#player"
	DefaultTitleSelector  = ".video-wrapper .title .inlineFree"
	DefaultTitle          = "video"
)

var (
	scriptPattern     = regexp.MustCompile(`flashvars_\d+`)
	descriptorPattern = regexp.MustCompile(`(?s)flashvars_\d+\s*=\s*(\{.*?\});`)
)

// flashvars is the subset of the descriptor we read
type flashvars struct {
	MediaDefinitions []json.RawMessage `json:"mediaDefinitions"`
}

// mediaDefinition fields are loosely typed; only the last entry is decoded
type mediaDefinition struct {
	Remote   any `json:"remote"`
	VideoURL any `json:"videoUrl"`
}

// Options selects the page elements the extractor reads
type Options struct {
	RegionSelector string
	TitleSelector  string
}

// FlashvarsExtractor implements domain.Extractor on goquery
type FlashvarsExtractor struct {
	logger *zap.Logger
	opts   Options
}

// New creates an extractor; empty selectors fall back to the defaults
func New(logger *zap.Logger, opts Options) *FlashvarsExtractor {
	if opts.RegionSelector == "" {
		opts.RegionSelector = DefaultRegionSelector
	}
	if opts.TitleSelector == "" {
		opts.TitleSelector = DefaultTitleSelector
	}
	return &FlashvarsExtractor{logger: logger, opts: opts}
}

// Extract parses the page and returns title, cover image URL and resolved media URL
func (e *FlashvarsExtractor) Extract(html string) (domain.Descriptor, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return domain.Descriptor{}, fmt.Errorf("%w: failed to parse html: %w", domain.ErrRegionNotFound, err)
	}

	region := doc.Find(e.opts.RegionSelector).First()
	if region.Length() == 0 {
		return domain.Descriptor{}, fmt.Errorf("%w: %s", domain.ErrRegionNotFound, e.opts.RegionSelector)
	}

	cover := coverImage(region)

	script, ok := flashvarsScript(region)
	if !ok {
		return domain.Descriptor{}, domain.ErrScriptNotFound
	}

	mediaURL, err := parseDescriptor(script)
	if err != nil {
		return domain.Descriptor{}, err
	}

	desc := domain.Descriptor{
		Title:            e.title(doc),
		CoverImageURL:    cover,
		ResolvedMediaURL: mediaURL,
	}

	e.logger.Debug("Descriptor extracted",
		zap.String("title", desc.Title),
		zap.String("cover", desc.CoverImageURL),
		zap.String("mediaUrl", desc.ResolvedMediaURL))

	return desc, nil
}

// coverImage returns the first non-empty img src in the region
func coverImage(region *goquery.Selection) string {
	var src string
	region.Find("img").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if v, ok := s.Attr("src"); ok && strings.TrimSpace(v) != "" {
			src = Unescape(strings.TrimSpace(v))
			return false
		}
		return true
	})
	return src
}

func flashvarsScript(region *goquery.Selection) (string, bool) {
	var text string
	found := false
	region.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		body := s.Text()
		if scriptPattern.MatchString(body) {
			text = body
			found = true
			return false
		}
		return true
	})
	return text, found
}

// parseDescriptor applies the last-or-fail rule to mediaDefinitions
func parseDescriptor(script string) (string, error) {
	m := descriptorPattern.FindStringSubmatch(script)
	if m == nil {
		return "", domain.ErrDescriptorNotFound
	}

	var vars flashvars
	if err := json.Unmarshal([]byte(m[1]), &vars); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrMalformedDescriptor, err)
	}

	if len(vars.MediaDefinitions) == 0 {
		return "", domain.ErrNoMediaDefinitions
	}

	var last mediaDefinition
	if err := json.Unmarshal(vars.MediaDefinitions[len(vars.MediaDefinitions)-1], &last); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrMalformedDescriptor, err)
	}
	if remote, _ := last.Remote.(bool); !remote {
		return "", domain.ErrNotRemote
	}

	raw, _ := last.VideoURL.(string)
	url := strings.TrimSpace(Unescape(raw))
	if url == "" {
		return "", domain.ErrNoMediaURL
	}
	return url, nil
}

func (e *FlashvarsExtractor) title(doc *goquery.Document) string {
	sel := doc.Find(e.opts.TitleSelector).First()
	if sel.Length() == 0 {
		return DefaultTitle
	}
	t := strings.TrimSpace(strings.ReplaceAll(sel.Text(), "\u00a0", " "))
	if t == "" {
		return DefaultTitle
	}
	return t
}

// Unescape turns JSON-in-JS escaped slashes ("\/") into plain slashes.
// It repeats until no escaped slash is left, so Unescape(Unescape(s)) == Unescape(s).
func Unescape(s string) string {
	for strings.Contains(s, `\/`) {
		s = strings.ReplaceAll(s, `\/`, "/")
	}
	return s
}
