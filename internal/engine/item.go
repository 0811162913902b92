package engine

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"slices"

	"github.com/genricoloni/mediagrab/internal/domain"
	"go.uber.org/zap"
)

const progressBuffer = 16

type command struct {
	apply func(*actor) error
	reply chan error
}

type resolveResult struct {
	descriptor domain.Descriptor
	qualities  []domain.QualityOption
	err        error
}

type coverResult struct {
	url   string
	thumb []byte
}

type downloadResult struct {
	path string
	err  error
}

// actor owns one MediaItem. Only its run goroutine touches item.
type actor struct {
	e    *Engine
	item domain.MediaItem

	cmds       chan command
	resolved   chan resolveResult
	covers     chan coverResult
	progress   chan domain.Progress // nil while no download is running
	downloaded chan downloadResult

	ctx   context.Context
	done  chan struct{}
	final domain.MediaItem // written before done is closed
}

func newActor(e *Engine, item domain.MediaItem) *actor {
	return &actor{
		e:          e,
		item:       item,
		cmds:       make(chan command),
		resolved:   make(chan resolveResult, 1),
		covers:     make(chan coverResult, 1),
		downloaded: make(chan downloadResult, 1),
		done:       make(chan struct{}),
	}
}

func (a *actor) run(ctx context.Context) {
	a.ctx = ctx
	defer func() {
		a.final = a.snapshot()
		close(a.done)
	}()

	a.publish(ctx, domain.EventStatusChanged)
	a.startResolve(ctx)

	for {
		select {
		case <-ctx.Done():
			return

		case cmd := <-a.cmds:
			cmd.reply <- cmd.apply(a)

		case res := <-a.resolved:
			a.onResolved(ctx, res)

		case c := <-a.covers:
			a.item.CoverImageURL = c.url
			a.item.CoverImage = c.thumb
			a.touch()
			a.publish(ctx, domain.EventCoverReady)

		case p := <-a.progress:
			a.onProgress(ctx, p)

		case res := <-a.downloaded:
			a.drainProgress(ctx)
			a.onDownloaded(ctx, res)
		}
	}
}

func (a *actor) logger() *zap.Logger {
	return a.e.logger.With(zap.String("id", a.item.ID))
}

func (a *actor) touch() {
	a.item.UpdatedAt = a.e.now()
}

func (a *actor) snapshot() domain.MediaItem {
	s := a.item
	s.Qualities = slices.Clone(a.item.Qualities)
	s.CoverImage = slices.Clone(a.item.CoverImage)
	return s
}

func (a *actor) publish(ctx context.Context, kind domain.EventKind) {
	a.e.publish(ctx, domain.Event{Kind: kind, Item: a.snapshot()})
}

func (a *actor) setStatus(ctx context.Context, status domain.ItemStatus, message string) {
	a.item.Status = status
	a.item.Message = message
	a.touch()
	a.publish(ctx, domain.EventStatusChanged)
}

func (a *actor) fail(ctx context.Context, stage domain.Stage, err error) {
	a.item.FailedStage = stage
	a.setStatus(ctx, domain.StatusFailed, Message(err))

	a.logger().Warn("Item failed", zap.String("stage", string(stage)), zap.Error(err))
	a.e.notify("Download failed", a.displayName()+": "+a.item.Message)
}

func (a *actor) displayName() string {
	if a.item.Title != "" {
		return a.item.Title
	}
	return a.item.PageURL
}

// Resolve stage

func (a *actor) startResolve(ctx context.Context) {
	a.item.FailedStage = domain.StageNone
	a.setStatus(ctx, domain.StatusResolving, "Resolving media")

	pageURL := a.item.PageURL
	opts := a.e.cfg.GetRequestOptions()
	a.e.spawn(func() {
		res := a.e.resolve(ctx, pageURL, opts, a.covers)
		select {
		case a.resolved <- res:
		case <-ctx.Done():
		}
	})
}

// resolve fetches the page, extracts the descriptor and lists the qualities.
// The cover fetch is started as soon as the descriptor is known.
func (e *Engine) resolve(ctx context.Context, pageURL string, opts domain.RequestOptions, covers chan<- coverResult) resolveResult {
	html, err := e.pages.FetchPage(ctx, pageURL, opts)
	if err != nil {
		return resolveResult{err: err}
	}

	desc, err := e.extractor.Extract(html)
	if err != nil {
		return resolveResult{err: err}
	}
	desc.CoverImageURL = absoluteURL(pageURL, desc.CoverImageURL)
	desc.ResolvedMediaURL = absoluteURL(pageURL, desc.ResolvedMediaURL)

	if desc.CoverImageURL != "" {
		coverURL := desc.CoverImageURL
		e.spawn(func() { e.fetchCover(ctx, coverURL, opts.Clone(), covers) })
	}

	qualities, err := e.resolver.Resolve(ctx, desc.ResolvedMediaURL, opts)
	return resolveResult{descriptor: desc, qualities: qualities, err: err}
}

func (e *Engine) fetchCover(ctx context.Context, coverURL string, opts domain.RequestOptions, covers chan<- coverResult) {
	data, err := e.images.Fetch(ctx, coverURL, opts)
	if err != nil {
		e.logger.Warn("Failed to fetch cover", zap.String("url", coverURL), zap.Error(err))
		return
	}

	thumb, err := e.processor.Process(ctx, data)
	if err != nil {
		e.logger.Warn("Failed to process cover", zap.String("url", coverURL), zap.Error(err))
		return
	}

	select {
	case covers <- coverResult{url: coverURL, thumb: thumb}:
	case <-ctx.Done():
	}
}

func (a *actor) onResolved(ctx context.Context, res resolveResult) {
	if res.descriptor.Title != "" {
		a.item.Title = res.descriptor.Title
	}
	if res.descriptor.CoverImageURL != "" {
		a.item.CoverImageURL = res.descriptor.CoverImageURL
	}
	a.item.ResolvedMediaURL = res.descriptor.ResolvedMediaURL

	switch {
	case errors.Is(res.err, domain.ErrEmptyResult):
		a.item.Qualities = nil
		a.setStatus(ctx, domain.StatusNoOptions, Message(res.err))
		a.logger().Info("No quality options", zap.String("media_url", a.item.ResolvedMediaURL))

	case res.err != nil:
		a.fail(ctx, domain.StageResolve, res.err)

	default:
		a.item.Qualities = res.qualities
		a.item.SelectedQuality = ""
		a.setStatus(ctx, domain.StatusAwaitingSelection, fmt.Sprintf("%d qualities available", len(res.qualities)))
		a.logger().Info("Item resolved",
			zap.String("title", a.item.Title),
			zap.Strings("qualities", a.item.QualityLabels()))
	}
}

// Selection

func (a *actor) selectQuality(pick func([]domain.QualityOption) (string, bool)) error {
	if !a.canDownload() {
		return fmt.Errorf("%w: cannot select a quality while %s", domain.ErrInvalidTransition, a.item.Status)
	}

	ctx := a.ctx
	label, ok := pick(a.item.Qualities)
	if !ok {
		a.item.SelectedQuality = ""
		a.item.Message = "Invalid quality selection, choose again"
		a.touch()
		a.publish(ctx, domain.EventStatusChanged)
		return domain.ErrInvalidSelection
	}

	a.item.SelectedQuality = label
	a.item.Message = "Selected " + label
	a.touch()
	a.publish(ctx, domain.EventStatusChanged)
	return nil
}

func (a *actor) canDownload() bool {
	switch a.item.Status {
	case domain.StatusAwaitingSelection:
		return true
	case domain.StatusFailed:
		return a.item.FailedStage == domain.StageDownload
	default:
		return false
	}
}

// Download stage

func (a *actor) startDownload() error {
	if !a.canDownload() {
		return fmt.Errorf("%w: cannot download while %s", domain.ErrInvalidTransition, a.item.Status)
	}

	option, ok := a.item.Quality(a.item.SelectedQuality)
	if !ok {
		return domain.ErrInvalidSelection
	}

	ctx := a.ctx
	a.item.FailedStage = domain.StageNone
	a.item.ProgressPercent = 0
	a.item.BytesReceived = 0
	a.item.TotalBytes = 0
	a.item.OutputPath = ""
	a.setStatus(ctx, domain.StatusDownloading, "Downloading "+option.Label)

	req := domain.DownloadRequest{
		URL:     option.URL,
		Title:   a.item.Title,
		Quality: option.Label,
		Options: a.e.cfg.GetRequestOptions(),
	}
	progress := make(chan domain.Progress, progressBuffer)
	a.progress = progress

	a.logger().Info("Download requested", zap.String("quality", option.Label), zap.String("url", option.URL))

	a.e.spawn(func() {
		path, err := a.e.downloader.Download(ctx, req, progress)
		select {
		case a.downloaded <- downloadResult{path: path, err: err}:
		case <-ctx.Done():
		}
	})
	return nil
}

func (a *actor) onProgress(ctx context.Context, p domain.Progress) {
	if a.item.Status != domain.StatusDownloading {
		return
	}
	a.item.ProgressPercent = max(a.item.ProgressPercent, min(p.Percent, 100))
	a.item.BytesReceived = p.Received
	a.item.TotalBytes = p.Total
	a.touch()
	a.publish(ctx, domain.EventProgress)
}

// drainProgress applies progress values still buffered when the result arrives
func (a *actor) drainProgress(ctx context.Context) {
	for {
		select {
		case p := <-a.progress:
			a.onProgress(ctx, p)
		default:
			a.progress = nil
			return
		}
	}
}

func (a *actor) onDownloaded(ctx context.Context, res downloadResult) {
	if res.err != nil {
		a.fail(ctx, domain.StageDownload, res.err)
		return
	}

	a.item.OutputPath = res.path
	a.item.ProgressPercent = 100
	a.setStatus(ctx, domain.StatusDone, "Saved to "+res.path)

	a.logger().Info("Item done", zap.String("path", res.path))
	a.e.notify("Download complete", filepath.Base(res.path))
}

func (a *actor) retry() error {
	if a.item.Status != domain.StatusFailed {
		return fmt.Errorf("%w: nothing to retry while %s", domain.ErrInvalidTransition, a.item.Status)
	}

	switch a.item.FailedStage {
	case domain.StageDownload:
		return a.startDownload()
	default:
		a.startResolve(a.ctx)
		return nil
	}
}

// absoluteURL resolves ref against the page it was found on
func absoluteURL(pageURL, ref string) string {
	if ref == "" {
		return ""
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
