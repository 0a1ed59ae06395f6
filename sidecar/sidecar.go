// Package sidecar recovers presentation data that export tools attach to a
// slide document as embedded files: speaker notes and video overlays.
//
// Two attachments are recognised by a fixed identifier, matched against the
// attachment's table name, file name or description:
//
//	speaker-note-list   JSON [{"page":1,"note":"..."}] or lines "<page>*<text>"
//	video-list          lines "<page>*<true|false>*<x>,<y>,<w>*<relative path>"
//
// Page numbers are 1-based physical pages. Malformed records are skipped one
// at a time and reported in Result.Skipped; they never fail the document.
package sidecar

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/wudi/slidekit/container"
	"github.com/wudi/slidekit/coords"
	"github.com/wudi/slidekit/observability"
	"github.com/wudi/slidekit/recovery"
	"github.com/wudi/slidekit/security"
)

const (
	NotesSentinel  = "speaker-note-list"
	VideosSentinel = "video-list"
)

// Video describes a clip played over a page.
type Video struct {
	Path string  // resolved against the document's directory
	X, Y float64 // top-left corner in page units
	W    float64 // width in page units; height follows the clip's aspect
	Loop bool
}

// Placement returns the overlay's position and width as fractions of page.
func (v Video) Placement(page coords.Rect) (x, y, w float64) {
	pw, ph := page.Width(), page.Height()
	if pw == 0 || ph == 0 {
		return 0, 0, 0
	}
	return (v.X - page.X0) / pw, (v.Y - page.Y0) / ph, v.W / pw
}

// Result holds the parsed tables, keyed by 1-based page number.
type Result struct {
	Notes   map[int]string
	Videos  map[int]Video
	Skipped []LineError
}

// LineError describes one skipped record.
type LineError struct {
	Payload string
	Line    int // 1-based; 0 for payload-level problems
	Reason  string
}

func (e LineError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("%s: %s", e.Payload, e.Reason)
	}
	return fmt.Sprintf("%s line %d: %s", e.Payload, e.Line, e.Reason)
}

// Options configures Parse. The zero value skips bad records and applies
// security.DefaultLimits.
type Options struct {
	// DocDir is the directory containing the document; video paths are
	// joined to it.
	DocDir   string
	Limits   security.Limits
	Recovery recovery.Strategy
	Logger   observability.Logger
}

// ErrAborted wraps the first bad record when the recovery strategy asks to fail.
var ErrAborted = errors.New("sidecar: parse aborted")

type skipAll struct{}

func (skipAll) OnError(recovery.Context, error, recovery.Location) recovery.Action {
	return recovery.ActionSkip
}

type parser struct {
	ctx    context.Context
	opts   Options
	result Result
}

// Parse scans files for the notes and video payloads and merges every match.
// Later records for the same page replace earlier ones. An error is returned
// only when ctx is done or the recovery strategy fails a record.
func Parse(ctx context.Context, files []container.EmbeddedFile, opts Options) (Result, error) {
	opts.Limits = opts.Limits.WithDefaults()
	if opts.Recovery == nil {
		opts.Recovery = skipAll{}
	}
	if opts.Logger == nil {
		opts.Logger = observability.NopLogger{}
	}
	p := &parser{
		ctx:  ctx,
		opts: opts,
		result: Result{
			Notes:  make(map[int]string),
			Videos: make(map[int]Video),
		},
	}
	if len(files) > opts.Limits.MaxEmbeddedFiles {
		opts.Logger.Warn("embedded file table truncated",
			observability.Int("files", len(files)),
			observability.Int("limit", opts.Limits.MaxEmbeddedFiles))
		files = files[:opts.Limits.MaxEmbeddedFiles]
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return p.result, err
		}
		var err error
		switch {
		case matches(f, NotesSentinel):
			err = p.payload(NotesSentinel, f.Data, p.notes)
		case matches(f, VideosSentinel):
			err = p.payload(VideosSentinel, f.Data, p.videos)
		}
		if err != nil {
			return p.result, err
		}
	}
	return p.result, nil
}

func matches(f container.EmbeddedFile, sentinel string) bool {
	return f.Name == sentinel || f.Filename == sentinel || f.Description == sentinel
}

func (p *parser) payload(name string, data []byte, parse func(string) error) error {
	if err := p.opts.Limits.CheckSidecarSize(int64(len(data))); err != nil {
		return p.skip(LineError{Payload: name, Reason: err.Error()})
	}
	text, err := decodeText(data)
	if err != nil {
		return p.skip(LineError{Payload: name, Reason: fmt.Sprintf("decode: %v", err)})
	}
	return parse(text)
}

// skip records a bad record and consults the recovery strategy.
func (p *parser) skip(le LineError) error {
	loc := recovery.Location{Component: "sidecar", Payload: le.Payload, Line: le.Line}
	log := p.opts.Logger.Debug
	switch p.opts.Recovery.OnError(p.ctx, le, loc) {
	case recovery.ActionFail:
		return fmt.Errorf("%w: %v", ErrAborted, le)
	case recovery.ActionWarn:
		log = p.opts.Logger.Warn
	}
	log("sidecar record skipped",
		observability.String("payload", le.Payload),
		observability.Int("line", le.Line),
		observability.String("reason", le.Reason))
	p.result.Skipped = append(p.result.Skipped, le)
	return nil
}

// decodeText strips a UTF-8 byte order mark and transcodes UTF-16 payloads
// that announce themselves with one.
func decodeText(data []byte) (string, error) {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(dec, data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// ResolvePath joins a payload path to the document directory.
func ResolvePath(docDir, rel string) string {
	return filepath.Join(docDir, rel)
}
