// Package slides turns a paginated document into a presentation model: slide
// numbers from page labels, speaker notes and video overlays from embedded
// sidecar files, and page rendering fitted to a viewport.
//
// A Deck owns its document handle. Calls into the handle are serialized, so a
// Deck may be shared by any number of goroutines (presenter view, audience
// view, thumbnail strip). Tables built at open time are immutable.
//
//	deck, err := slides.Open(ctx, "talk.pdf", slides.Config{})
//	if err != nil {
//		return err
//	}
//	defer deck.Close()
//	bmp, err := deck.RenderPage(ctx, slides.RenderRequest{Page: 0, Viewport: coords.Size{W: 1920, H: 1080}})
package slides

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/wudi/slidekit/container"
	"github.com/wudi/slidekit/container/mupdf"
	"github.com/wudi/slidekit/coords"
	"github.com/wudi/slidekit/labels"
	"github.com/wudi/slidekit/observability"
	"github.com/wudi/slidekit/recovery"
	"github.com/wudi/slidekit/security"
	"github.com/wudi/slidekit/sidecar"
)

var (
	// ErrClosed is returned by every Deck query after Close.
	ErrClosed = errors.New("slides: deck closed")
	// ErrNoSlide is returned when no page carries the requested slide number.
	ErrNoSlide = errors.New("slides: no such slide")
	// ErrPageRange is returned for a physical page index outside the document.
	ErrPageRange = errors.New("slides: page out of range")
)

const (
	DefaultCacheTTL     = time.Minute
	DefaultCacheCleanup = 2 * time.Minute
)

// Config controls Open. The zero value opens PDFs with MuPDF, logs nothing,
// skips malformed sidecar records and caches renders for DefaultCacheTTL.
type Config struct {
	Opener   container.Opener
	Logger   observability.Logger
	Tracer   observability.Tracer
	Limits   security.Limits
	Recovery recovery.Strategy
	// CacheTTL is how long a rendered bitmap is reused. Negative disables
	// the render cache.
	CacheTTL     time.Duration
	CacheCleanup time.Duration
}

func (c Config) withDefaults() Config {
	c.Limits = c.Limits.WithDefaults()
	if c.Opener == nil {
		c.Opener = mupdf.Opener{Limits: c.Limits}
	}
	if c.Logger == nil {
		c.Logger = observability.NopLogger{}
	}
	if c.Tracer == nil {
		c.Tracer = observability.NopTracer()
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.CacheCleanup == 0 {
		c.CacheCleanup = DefaultCacheCleanup
	}
	return c
}

// Deck is an open presentation.
type Deck struct {
	path    string
	id      string
	log     observability.Logger
	tracer  observability.Tracer
	guard   *guard
	renders *cache.Cache // nil when disabled
	notesMD *sidecar.NoteRenderer

	pages   int
	table   labels.Table
	notes   map[int]string
	videos  map[int]sidecar.Video
	skipped []sidecar.LineError

	closed    atomic.Bool
	closeOnce sync.Once
}

// Open opens the document at path and builds the slide table and sidecar
// tables. Any failure after the handle was created closes it again. Errors
// are *container.OpenError unless ctx ended first.
func Open(ctx context.Context, path string, cfg Config) (deck *Deck, err error) {
	cfg = cfg.withDefaults()
	ctx, span := cfg.Tracer.StartSpan(ctx, "slides.open")
	defer func() {
		if err != nil {
			span.SetError(err)
		}
		span.Finish()
	}()
	start := time.Now()

	doc, err := cfg.Opener.Open(ctx, path)
	if err != nil {
		var oe *container.OpenError
		if errors.As(err, &oe) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &container.OpenError{Path: path, Op: "load", Err: err}
	}

	id := uuid.New().String()
	d := &Deck{
		path:    path,
		id:      id,
		log:     cfg.Logger.With(observability.String("session", id)),
		tracer:  cfg.Tracer,
		guard:   &guard{doc: doc},
		notesMD: sidecar.NewNoteRenderer(),
	}
	if err := d.load(ctx, cfg); err != nil {
		if cerr := d.guard.release(); cerr != nil {
			d.log.Warn("close after failed open", observability.Error("error", cerr))
		}
		return nil, err
	}
	if cfg.CacheTTL > 0 {
		d.renders = cache.New(cfg.CacheTTL, cfg.CacheCleanup)
	}
	// Safety net for decks dropped without Close; release is idempotent.
	runtime.AddCleanup(d, func(g *guard) { _ = g.release() }, d.guard)

	span.SetTag(observability.MetricOpenTime, time.Since(start))
	span.SetTag(observability.MetricPageCount, d.pages)
	span.SetTag(observability.MetricSlideCount, len(d.table.Slides()))
	span.SetTag(observability.MetricSidecarSkipped, len(d.skipped))
	d.log.Info("deck opened",
		observability.String("path", path),
		observability.Int("pages", d.pages),
		observability.Int("slides", len(d.table.Slides())),
		observability.Int("notes", len(d.notes)),
		observability.Int("videos", len(d.videos)),
		observability.Int("skipped", len(d.skipped)),
		observability.Duration("elapsed", time.Since(start)),
	)
	return d, nil
}

func (d *Deck) load(ctx context.Context, cfg Config) error {
	var (
		ranges []labels.Range
		files  []container.EmbeddedFile
	)
	err := d.guard.do(func(doc container.Document) error {
		d.pages = doc.PageCount()
		if d.pages <= 0 {
			return &container.OpenError{Path: d.path, Op: "pages", Err: errors.New("document has no pages")}
		}
		var err error
		ranges, err = doc.PageLabels()
		if err != nil {
			return &container.OpenError{Path: d.path, Op: "page labels", Err: err}
		}
		// Sidecars are optional; an unreadable file table only costs notes
		// and videos.
		files, err = doc.EmbeddedFiles()
		if err != nil {
			d.log.Warn("embedded files unavailable", observability.Error("error", err))
			files = nil
		}
		return nil
	})
	if err != nil {
		return err
	}
	d.table = labels.Resolve(d.pages, ranges)

	res, err := sidecar.Parse(ctx, files, sidecar.Options{
		DocDir:   filepath.Dir(d.path),
		Limits:   cfg.Limits,
		Recovery: cfg.Recovery,
		Logger:   d.log,
	})
	if err != nil {
		if errors.Is(err, sidecar.ErrAborted) {
			return &container.OpenError{Path: d.path, Op: "sidecar", Err: err}
		}
		return err
	}
	d.notes, d.videos, d.skipped = res.Notes, res.Videos, res.Skipped
	return nil
}

// Close releases the document handle. It waits for a render in progress. Only
// the first call can return an error; later calls return nil.
func (d *Deck) Close() error {
	var err error
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		err = d.guard.release()
		if d.renders != nil {
			d.renders.Flush()
		}
		if err != nil {
			d.log.Warn("deck close", observability.Error("error", err))
			return
		}
		d.log.Info("deck closed")
	})
	return err
}

func (d *Deck) check() error {
	if d.closed.Load() {
		return ErrClosed
	}
	return nil
}

func (d *Deck) checkPage(page int) error {
	if err := d.check(); err != nil {
		return err
	}
	if page < 0 || page >= d.pages {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrPageRange, page, d.pages)
	}
	return nil
}

// SessionID identifies this deck in logs. Like Path it names the deck
// rather than querying it, and stays valid after Close.
func (d *Deck) SessionID() string { return d.id }

func (d *Deck) Path() string { return d.path }

func (d *Deck) PageCount() (int, error) {
	if err := d.check(); err != nil {
		return 0, err
	}
	return d.pages, nil
}

// PageGeometry returns the page rectangle in page units.
func (d *Deck) PageGeometry(page int) (coords.Rect, error) {
	if err := d.checkPage(page); err != nil {
		return coords.Rect{}, err
	}
	var r coords.Rect
	err := d.guard.do(func(doc container.Document) error {
		var err error
		r, err = doc.PageBounds(page)
		return err
	})
	return r, err
}

// PageAspect returns width over height of page.
func (d *Deck) PageAspect(page int) (float64, error) {
	r, err := d.PageGeometry(page)
	if err != nil {
		return 0, err
	}
	if r.Height() == 0 {
		return 0, fmt.Errorf("slides: page %d has zero height", page)
	}
	return r.Width() / r.Height(), nil
}

// SlideNumber returns the display number of page. Out-of-range pages are
// clamped to the first or last page.
func (d *Deck) SlideNumber(page int) (int, error) {
	if err := d.check(); err != nil {
		return 0, err
	}
	return d.table.SlideNumber(page), nil
}

// LastPageOfSlide returns the last physical page showing slide number n,
// which is the fully built state of an animated slide.
func (d *Deck) LastPageOfSlide(n int) (int, error) {
	if err := d.check(); err != nil {
		return 0, err
	}
	page, ok := d.table.LastPageOfSlide(n)
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrNoSlide, n)
	}
	return page, nil
}

// Slides lists the slides in page order.
func (d *Deck) Slides() ([]labels.Slide, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	return d.table.Slides(), nil
}

// Note returns the speaker note of the 0-based page, or "" if it has none.
func (d *Deck) Note(page int) (string, error) {
	if err := d.check(); err != nil {
		return "", err
	}
	return d.notes[page+1], nil
}

// NoteHTML renders the note of page as HTML.
func (d *Deck) NoteHTML(page int) (string, error) {
	note, err := d.Note(page)
	if err != nil {
		return "", err
	}
	return d.notesMD.HTML(note)
}

// Video returns the overlay of the 0-based page, if any.
func (d *Deck) Video(page int) (sidecar.Video, bool, error) {
	if err := d.check(); err != nil {
		return sidecar.Video{}, false, err
	}
	v, ok := d.videos[page+1]
	return v, ok, nil
}

// Skipped returns the sidecar records dropped while opening.
func (d *Deck) Skipped() ([]sidecar.LineError, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	out := make([]sidecar.LineError, len(d.skipped))
	copy(out, d.skipped)
	return out, nil
}
