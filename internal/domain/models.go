package domain

import "time"

// ItemStatus represents the pipeline state of a single media item
type ItemStatus string

const (
	// StatusPending means the item was submitted but extraction has not started
	StatusPending ItemStatus = "Pending"
	// StatusResolving means the page is being scraped and qualities resolved
	StatusResolving ItemStatus = "Resolving"
	// StatusAwaitingSelection means qualities are known and a choice is expected
	StatusAwaitingSelection ItemStatus = "AwaitingSelection"
	// StatusDownloading means the selected quality is being streamed to disk
	StatusDownloading ItemStatus = "Downloading"
	// StatusDone means the file was written successfully
	StatusDone ItemStatus = "Done"
	// StatusFailed means a stage failed; the failed stage may be retried
	StatusFailed ItemStatus = "Failed"
	// StatusNoOptions is informational: the page resolved but offered no qualities
	StatusNoOptions ItemStatus = "NoOptions"
)

// String returns the string representation of ItemStatus
func (s ItemStatus) String() string {
	return string(s)
}

// IsActive returns true while a background stage is running for the item
func (s ItemStatus) IsActive() bool {
	return s == StatusPending || s == StatusResolving || s == StatusDownloading
}

// IsTerminal returns true when no further action is possible without a retry
func (s ItemStatus) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed || s == StatusNoOptions
}

// Stage identifies the capability that produced a failure
type Stage string

const (
	StageNone     Stage = ""
	StageResolve  Stage = "resolve"
	StageDownload Stage = "download"
)

// QualityOption is a selectable variant of the media. Label looks like "720p".
type QualityOption struct {
	Label string
	URL   string
}

// Descriptor is the result of scraping a page
type Descriptor struct {
	Title            string
	CoverImageURL    string
	ResolvedMediaURL string
}

// RequestOptions carries the static headers and cookies sent with every request
type RequestOptions struct {
	Headers map[string]string
	Cookies map[string]string
}

// Clone returns a deep copy so a background stage never shares maps with its caller
func (o RequestOptions) Clone() RequestOptions {
	out := RequestOptions{
		Headers: make(map[string]string, len(o.Headers)),
		Cookies: make(map[string]string, len(o.Cookies)),
	}
	for k, v := range o.Headers {
		out.Headers[k] = v
	}
	for k, v := range o.Cookies {
		out.Cookies[k] = v
	}
	return out
}

// DownloadRequest describes a single file transfer
type DownloadRequest struct {
	URL     string
	Title   string
	Quality string // label, e.g. "720p"
	Options RequestOptions
}

// Progress is emitted by the downloader after each chunk when the total size is known
type Progress struct {
	Percent  int
	Received int64
	Total    int64
}

// MediaItem is the orchestrator-owned state of one submitted page URL.
// Values handed to callers are snapshots; mutating them has no effect.
type MediaItem struct {
	ID               string
	PageURL          string
	Title            string
	CoverImageURL    string
	CoverImage       []byte // thumbnail bytes, empty until fetched
	ResolvedMediaURL string
	Qualities        []QualityOption
	SelectedQuality  string
	Status           ItemStatus
	ProgressPercent  int
	BytesReceived    int64
	TotalBytes       int64
	OutputPath       string
	Message          string // human readable status line
	FailedStage      Stage
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// QualityLabels returns the labels in presentation order
func (m MediaItem) QualityLabels() []string {
	labels := make([]string, 0, len(m.Qualities))
	for _, q := range m.Qualities {
		labels = append(labels, q.Label)
	}
	return labels
}

// Quality looks up an option by label
func (m MediaItem) Quality(label string) (QualityOption, bool) {
	for _, q := range m.Qualities {
		if q.Label == label {
			return q, true
		}
	}
	return QualityOption{}, false
}

// EventKind tells the presentation layer what changed
type EventKind string

const (
	EventStatusChanged EventKind = "status"
	EventProgress      EventKind = "progress"
	EventCoverReady    EventKind = "cover"
)

// Event carries a snapshot of the item after the change
type Event struct {
	Kind EventKind
	Item MediaItem
}
