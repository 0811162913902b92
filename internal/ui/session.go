package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/genricoloni/mediagrab/internal/domain"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

// Engine is the part of the orchestrator a session drives
type Engine interface {
	Submit(pageURL string) (string, error)
	SelectLabel(id, label string) error
	Download(id string) error
	Events() <-chan domain.Event
}

// Mode decides how far a session takes each item
type Mode int

const (
	// ModeDownload picks a quality and downloads it
	ModeDownload Mode = iota
	// ModeList stops once the qualities are known
	ModeList
)

// Result is the final state of one submitted URL
type Result struct {
	PageURL string
	Item    domain.MediaItem
	Err     error
}

// Session renders engine events for a batch of URLs on a terminal
type Session struct {
	logger  *zap.Logger
	engine  Engine
	out     io.Writer
	mode    Mode
	quality string

	bars     map[string]*progressbar.ProgressBar
	started  map[string]bool
	settled  map[string]domain.MediaItem
	commands chan commandResult
}

type commandResult struct {
	id  string
	err error
}

// NewSession creates a session writing to out. quality is a label such as
// "720p", or "best"/"worst".
func NewSession(logger *zap.Logger, engine Engine, out io.Writer, mode Mode, quality string) *Session {
	return &Session{
		logger:  logger,
		engine:  engine,
		out:     out,
		mode:    mode,
		quality: quality,
		bars:    make(map[string]*progressbar.ProgressBar),
		started: make(map[string]bool),
		settled: make(map[string]domain.MediaItem),
	}
}

// Run submits every URL and blocks until each one settles or ctx ends
func (s *Session) Run(ctx context.Context, urls []string) ([]Result, error) {
	results := make([]Result, len(urls))
	index := make(map[string]int, len(urls))
	s.commands = make(chan commandResult, len(urls)) // at most one failure per item

	for i, u := range urls {
		results[i].PageURL = u
		id, err := s.engine.Submit(u)
		if err != nil {
			results[i].Err = err
			fmt.Fprintf(s.out, "✗ %s: %v\n", u, err)
			continue
		}
		index[id] = i
	}

	events := s.engine.Events()
	for len(s.settled) < len(index) {
		select {
		case <-ctx.Done():
			s.finishBars()
			return s.collect(results, index), ctx.Err()

		case ev, ok := <-events:
			if !ok {
				s.finishBars()
				return s.collect(results, index), domain.ErrStopped
			}
			if _, tracked := index[ev.Item.ID]; tracked {
				s.handle(ev)
			}

		case res := <-s.commands:
			if _, tracked := index[res.id]; tracked {
				results[index[res.id]].Err = res.err
				fmt.Fprintf(s.out, "✗ %v\n", res.err)
				s.settled[res.id] = domain.MediaItem{ID: res.id}
			}
		}
	}

	return s.collect(results, index), nil
}

func (s *Session) collect(results []Result, index map[string]int) []Result {
	for id, i := range index {
		if item, ok := s.settled[id]; ok && item.PageURL != "" {
			results[i].Item = item
			if item.Status == domain.StatusFailed && results[i].Err == nil {
				results[i].Err = fmt.Errorf("%s", item.Message)
			}
		}
	}
	return results
}

func (s *Session) handle(ev domain.Event) {
	item := ev.Item

	switch ev.Kind {
	case domain.EventProgress:
		s.progress(item)
		return
	case domain.EventCoverReady:
		s.logger.Debug("Cover ready", zap.String("id", item.ID), zap.Int("bytes", len(item.CoverImage)))
		return
	}

	switch item.Status {
	case domain.StatusAwaitingSelection:
		s.ready(item)

	case domain.StatusDone:
		s.finishBar(item.ID)
		size := ""
		if item.BytesReceived > 0 {
			size = " (" + humanize.Bytes(uint64(item.BytesReceived)) + ")"
		}
		fmt.Fprintf(s.out, "✓ %s → %s%s\n", item.Title, item.OutputPath, size)
		s.settled[item.ID] = item

	case domain.StatusFailed:
		s.finishBar(item.ID)
		fmt.Fprintf(s.out, "✗ %s: %s\n", displayName(item), item.Message)
		s.settled[item.ID] = item

	case domain.StatusNoOptions:
		fmt.Fprintf(s.out, "- %s: %s\n", displayName(item), item.Message)
		s.settled[item.ID] = item

	case domain.StatusDownloading:
		if _, ok := s.bars[item.ID]; !ok {
			s.logger.Info(item.Message, zap.String("title", item.Title))
		}
	}
}

func (s *Session) ready(item domain.MediaItem) {
	if s.mode == ModeList {
		fmt.Fprintf(s.out, "%s\n", item.Title)
		for _, label := range item.QualityLabels() {
			fmt.Fprintf(s.out, "  %s\n", label)
		}
		s.settled[item.ID] = item
		return
	}

	if s.started[item.ID] {
		return
	}

	label, err := Choose(item.QualityLabels(), s.quality)
	if err != nil {
		fmt.Fprintf(s.out, "✗ %s: %v (available: %s)\n", item.Title, err, strings.Join(item.QualityLabels(), ", "))
		s.settled[item.ID] = item
		return
	}
	s.started[item.ID] = true

	// commands wait on the item goroutine, which may itself be waiting for
	// this loop to drain events
	go func(id string) {
		err := s.engine.SelectLabel(id, label)
		if err == nil {
			err = s.engine.Download(id)
		}
		if err != nil {
			s.commands <- commandResult{id: id, err: err}
		}
	}(item.ID)
}

func (s *Session) progress(item domain.MediaItem) {
	if item.TotalBytes <= 0 {
		return
	}

	bar, ok := s.bars[item.ID]
	if !ok {
		bar = progressbar.NewOptions64(item.TotalBytes,
			progressbar.OptionSetWriter(s.out),
			progressbar.OptionSetDescription(fmt.Sprintf("%s [%s]", truncate(item.Title, 40), item.SelectedQuality)),
			progressbar.OptionShowBytes(true),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
		s.bars[item.ID] = bar
	}
	_ = bar.Set64(item.BytesReceived)
}

func (s *Session) finishBar(id string) {
	if bar, ok := s.bars[id]; ok {
		_ = bar.Finish()
		fmt.Fprintln(s.out)
		delete(s.bars, id)
	}
}

func (s *Session) finishBars() {
	for id := range s.bars {
		s.finishBar(id)
	}
}

func displayName(item domain.MediaItem) string {
	if item.Title != "" {
		return item.Title
	}
	return item.PageURL
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
