package domain

import "testing"

func TestItemStatus_IsActive(t *testing.T) {
	tests := []struct {
		status   ItemStatus
		expected bool
	}{
		{StatusPending, true},
		{StatusResolving, true},
		{StatusAwaitingSelection, false},
		{StatusDownloading, true},
		{StatusDone, false},
		{StatusFailed, false},
		{StatusNoOptions, false},
	}

	for _, test := range tests {
		result := test.status.IsActive()
		if result != test.expected {
			t.Errorf("ItemStatus(%s).IsActive() = %v, expected %v", test.status, result, test.expected)
		}
	}
}

func TestItemStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   ItemStatus
		expected bool
	}{
		{StatusPending, false},
		{StatusResolving, false},
		{StatusAwaitingSelection, false},
		{StatusDownloading, false},
		{StatusDone, true},
		{StatusFailed, true},
		{StatusNoOptions, true},
	}

	for _, test := range tests {
		result := test.status.IsTerminal()
		if result != test.expected {
			t.Errorf("ItemStatus(%s).IsTerminal() = %v, expected %v", test.status, result, test.expected)
		}
	}
}

func TestRequestOptions_Clone(t *testing.T) {
	orig := RequestOptions{
		Headers: map[string]string{"User-Agent": "ua"},
		Cookies: map[string]string{"platform": "pc"},
	}
	clone := orig.Clone()
	clone.Headers["User-Agent"] = "changed"
	clone.Cookies["new"] = "1"

	if orig.Headers["User-Agent"] != "ua" {
		t.Errorf("clone shares header map with original")
	}
	if _, ok := orig.Cookies["new"]; ok {
		t.Errorf("clone shares cookie map with original")
	}
}

func TestMediaItem_Quality(t *testing.T) {
	item := MediaItem{Qualities: []QualityOption{
		{Label: "720p", URL: "https://x/720.mp4"},
		{Label: "480p", URL: "https://x/480.mp4"},
	}}

	if got := item.QualityLabels(); len(got) != 2 || got[0] != "720p" || got[1] != "480p" {
		t.Errorf("QualityLabels() = %v", got)
	}
	if q, ok := item.Quality("480p"); !ok || q.URL != "https://x/480.mp4" {
		t.Errorf("Quality(480p) = %+v, %v", q, ok)
	}
	if _, ok := item.Quality("1080p"); ok {
		t.Error("Quality(1080p) should not be found")
	}
}
