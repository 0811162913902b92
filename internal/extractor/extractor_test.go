package extractor

import (
	"errors"
	"strings"
	"testing"

	"github.com/genricoloni/mediagrab/internal/domain"
	"go.uber.org/zap"
)

// page wraps body content in a minimal document
func page(player string, extra string) string {
	return `<html><body>` + extra + `<div id="player">` + player + `</div></body></html>`
}

func TestFlashvarsExtractor_Extract(t *testing.T) {
	titleBlock := `<div class="video-wrapper"><h1 class="title"><span class="inlineFree">  My Clip&nbsp;Title </span></h1></div>`

	tests := []struct {
		name          string
		html          string
		expectedError error
		expected      domain.Descriptor
	}{
		{
			name: "Success - Last definition remote",
			html: page(`<img src="https:\/\/img\/cover.jpg"><script>var flashvars_123 = {"mediaDefinitions":[{"remote":false,"videoUrl":"a"},{"remote":true,"videoUrl":"https:\/\/x\/v.mp4"}]};</script>`, titleBlock),
			expected: domain.Descriptor{
				Title:            "My Clip Title",
				CoverImageURL:    "https://img/cover.jpg",
				ResolvedMediaURL: "https://x/v.mp4",
			},
		},
		{
			name: "Success - No cover image and no title",
			html: page(`<img src=""><script>flashvars_9={"mediaDefinitions":[{"remote":true,"videoUrl":"https://x/v.json"}]};</script>`, ""),
			expected: domain.Descriptor{
				Title:            "video",
				CoverImageURL:    "",
				ResolvedMediaURL: "https://x/v.json",
			},
		},
		{
			name: "Success - Script chosen among several",
			html: page(`<script>var other = 1;</script><script>
				var flashvars_42 = {
					"mediaDefinitions": [{"remote": true, "videoUrl": "https:\/\/x\/multi.json"}]
				};
				loadPlayer(flashvars_42);
			</script>`, ""),
			expected: domain.Descriptor{
				Title:            "video",
				ResolvedMediaURL: "https://x/multi.json",
			},
		},
		{
			name:          "Error - Region missing",
			html:          `<html><body><div id="other"></div></body></html>`,
			expectedError: domain.ErrRegionNotFound,
		},
		{
			name:          "Error - No flashvars script",
			html:          page(`<script>var config = {};</script>`, ""),
			expectedError: domain.ErrScriptNotFound,
		},
		{
			name:          "Error - Assignment without terminator",
			html:          page(`<script>flashvars_1 = {"mediaDefinitions":[]}</script>`, ""),
			expectedError: domain.ErrDescriptorNotFound,
		},
		{
			name:          "Error - Malformed JSON",
			html:          page(`<script>flashvars_1 = {"mediaDefinitions":[{remote:true}]};</script>`, ""),
			expectedError: domain.ErrMalformedDescriptor,
		},
		{
			name:          "Error - Nested terminator truncates capture",
			html:          page(`<script>flashvars_1 = {"a":{"b":1}};"mediaDefinitions":[]};</script>`, ""),
			expectedError: domain.ErrNoMediaDefinitions,
		},
		{
			name:          "Error - Empty mediaDefinitions",
			html:          page(`<script>flashvars_1 = {"mediaDefinitions":[]};</script>`, ""),
			expectedError: domain.ErrNoMediaDefinitions,
		},
		{
			name:          "Error - Missing mediaDefinitions",
			html:          page(`<script>flashvars_1 = {"other":true};</script>`, ""),
			expectedError: domain.ErrNoMediaDefinitions,
		},
		{
			name:          "Error - Last definition not remote",
			html:          page(`<script>flashvars_1 = {"mediaDefinitions":[{"remote":true,"videoUrl":"a"},{"remote":false,"videoUrl":"b"}]};</script>`, ""),
			expectedError: domain.ErrNotRemote,
		},
		{
			name:          "Error - Remote flag missing",
			html:          page(`<script>flashvars_1 = {"mediaDefinitions":[{"videoUrl":"b"}]};</script>`, ""),
			expectedError: domain.ErrNotRemote,
		},
		{
			name:          "Error - Empty video URL",
			html:          page(`<script>flashvars_1 = {"mediaDefinitions":[{"remote":true,"videoUrl":""}]};</script>`, ""),
			expectedError: domain.ErrNoMediaURL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext := New(zap.NewNop(), Options{})
			desc, err := ext.Extract(tt.html)

			if tt.expectedError != nil {
				if err == nil {
					t.Fatalf("expected error %v, got nil (descriptor %+v)", tt.expectedError, desc)
				}
				if !errors.Is(err, tt.expectedError) {
					t.Errorf("expected error %v, got %v", tt.expectedError, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if desc != tt.expected {
				t.Errorf("expected %+v, got %+v", tt.expected, desc)
			}
		})
	}
}

func TestFlashvarsExtractor_CustomSelectors(t *testing.T) {
	html := `<html><body><h2 class="name">Custom</h2><section class="media"><script>flashvars_7 = {"mediaDefinitions":[{"remote":true,"videoUrl":"https://x/c.json"}]};</script></section></body></html>`

	ext := New(zap.NewNop(), Options{RegionSelector: "section.media", TitleSelector: "h2.name"})
	desc, err := ext.Extract(html)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if desc.Title != "Custom" || desc.ResolvedMediaURL != "https://x/c.json" {
		t.Errorf("unexpected descriptor %+v", desc)
	}
}

func TestFlashvarsExtractor_MalformedErrorIncludesCause(t *testing.T) {
	ext := New(zap.NewNop(), Options{})
	_, err := ext.Extract(page(`<script>flashvars_1 = {"mediaDefinitions": [1,};</script>`, ""))
	if !errors.Is(err, domain.ErrMalformedDescriptor) {
		t.Fatalf("expected ErrMalformedDescriptor, got %v", err)
	}
	if !strings.Contains(err.Error(), "invalid character") {
		t.Errorf("expected parse error detail in %q", err.Error())
	}
}

func TestUnescape(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{`https:\/\/x\/v.mp4`, "https://x/v.mp4"},
		{"https://x/v.mp4", "https://x/v.mp4"},
		{`\\/`, `/`},
		{`a\b`, `a\b`},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Unescape(tt.in); got != tt.expected {
			t.Errorf("Unescape(%q) = %q, expected %q", tt.in, got, tt.expected)
		}
	}
}

func TestUnescape_Idempotent(t *testing.T) {
	inputs := []string{
		`https:\/\/x\/v.mp4`,
		`\\\/\/`,
		`\\/`,
		`plain`,
		`\`,
		`/\`,
		`\/\\/\\\/`,
	}

	for _, in := range inputs {
		once := Unescape(in)
		twice := Unescape(once)
		if once != twice {
			t.Errorf("Unescape not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}
