package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/wudi/slidekit/coords"
	"github.com/wudi/slidekit/observability"
	"github.com/wudi/slidekit/recovery"
	"github.com/wudi/slidekit/render"
	"github.com/wudi/slidekit/slides"
)

type options struct {
	path        string
	page        int
	pngPath     string
	width       float64
	height      float64
	scale       float64
	crop        []float64
	annotations bool
	notesHTML   bool
	thumbDir    string
	thumbWidth  int
	strict      bool
	verbose     bool
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "slideinfo: %v\n", err)
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "slideinfo: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var opts options
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: slideinfo [flags] <pdf>\n")
		flag.PrintDefaults()
	}
	flag.IntVar(&opts.page, "page", 1, "Page (1-based) to render with -png")
	flag.StringVar(&opts.pngPath, "png", "", "Render -page into this PNG file")
	flag.Float64Var(&opts.width, "width", 1920, "Viewport width in logical pixels")
	flag.Float64Var(&opts.height, "height", 1080, "Viewport height in logical pixels")
	flag.Float64Var(&opts.scale, "scale", 1, "Device pixels per logical pixel")
	crop := flag.String("crop", "", "Render only this region, as page fractions u0,v0,u1,v1")
	flag.BoolVar(&opts.annotations, "annots", false, "Render annotations")
	flag.BoolVar(&opts.notesHTML, "notes-html", false, "Include speaker notes rendered as HTML")
	flag.StringVar(&opts.thumbDir, "thumbs", "", "Write one PNG thumbnail per slide into this directory")
	flag.IntVar(&opts.thumbWidth, "thumb-width", 240, "Thumbnail width in pixels")
	flag.BoolVar(&opts.strict, "strict", false, "Fail on the first malformed sidecar record")
	flag.BoolVar(&opts.verbose, "v", false, "Debug logging on stderr")
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return options{}, fmt.Errorf("missing pdf path")
	}
	opts.path = flag.Arg(0)
	if *crop != "" {
		parts := strings.Split(*crop, ",")
		if len(parts) != 4 {
			return options{}, fmt.Errorf("-crop wants four fractions, got %q", *crop)
		}
		for _, p := range parts {
			f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return options{}, fmt.Errorf("-crop: %w", err)
			}
			opts.crop = append(opts.crop, f)
		}
	}
	return opts, nil
}

type deckSummary struct {
	Path    string `json:"path"`
	Session string `json:"session"`
	Pages   int    `json:"pages"`
	Slides  int    `json:"slides"`
}

type pageInfo struct {
	Page     int        `json:"page"`
	Slide    int        `json:"slide"`
	Width    float64    `json:"width"`
	Height   float64    `json:"height"`
	Note     string     `json:"note,omitempty"`
	NoteHTML string     `json:"noteHtml,omitempty"`
	Video    *videoInfo `json:"video,omitempty"`
}

type videoInfo struct {
	Path string  `json:"path"`
	Loop bool    `json:"loop"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	W    float64 `json:"w"`
}

func run(ctx context.Context, opts options) error {
	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := observability.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg := slides.Config{Logger: logger}
	lenient := recovery.NewLenientStrategy()
	if opts.strict {
		cfg.Recovery = recovery.NewStrictStrategy()
	} else {
		cfg.Recovery = lenient
	}
	deck, err := slides.Open(ctx, opts.path, cfg)
	if err != nil {
		return err
	}
	defer deck.Close()
	for _, err := range lenient.Errors() {
		logger.Warn("malformed sidecar record", observability.Error("error", err))
	}

	count, err := deck.PageCount()
	if err != nil {
		return err
	}
	list, err := deck.Slides()
	if err != nil {
		return err
	}
	if err := emitSection("deck", deckSummary{Path: deck.Path(), Session: deck.SessionID(), Pages: count, Slides: len(list)}); err != nil {
		return err
	}
	if err := emitSection("slides", list); err != nil {
		return err
	}

	pages, err := describePages(deck, count, opts.notesHTML)
	if err != nil {
		return err
	}
	if err := emitSection("pages", pages); err != nil {
		return err
	}
	skipped, err := deck.Skipped()
	if err != nil {
		return err
	}
	if len(skipped) > 0 {
		if err := emitSection("skipped", skipped); err != nil {
			return err
		}
	}

	if opts.pngPath != "" {
		if err := renderPNG(ctx, deck, opts); err != nil {
			return err
		}
	}
	if opts.thumbDir != "" {
		if err := writeThumbnails(ctx, deck, opts.thumbDir, opts.thumbWidth); err != nil {
			return err
		}
	}
	return nil
}

func describePages(deck *slides.Deck, count int, withHTML bool) ([]pageInfo, error) {
	out := make([]pageInfo, 0, count)
	for i := 0; i < count; i++ {
		r, err := deck.PageGeometry(i)
		if err != nil {
			return nil, err
		}
		slide, err := deck.SlideNumber(i)
		if err != nil {
			return nil, err
		}
		note, err := deck.Note(i)
		if err != nil {
			return nil, err
		}
		info := pageInfo{Page: i + 1, Slide: slide, Width: r.Width(), Height: r.Height(), Note: note}
		if withHTML && note != "" {
			if info.NoteHTML, err = deck.NoteHTML(i); err != nil {
				return nil, fmt.Errorf("page %d note: %w", i+1, err)
			}
		}
		v, ok, err := deck.Video(i)
		if err != nil {
			return nil, err
		}
		if ok {
			x, y, w := v.Placement(r)
			info.Video = &videoInfo{Path: v.Path, Loop: v.Loop, X: x, Y: y, W: w}
		}
		out = append(out, info)
	}
	return out, nil
}

func renderPNG(ctx context.Context, deck *slides.Deck, opts options) error {
	page := opts.page - 1
	req := slides.RenderRequest{
		Page:        page,
		Viewport:    coords.Size{W: opts.width, H: opts.height},
		DeviceScale: opts.scale,
		Annotations: opts.annotations,
	}
	if len(opts.crop) == 4 {
		r, err := deck.PageGeometry(page)
		if err != nil {
			return err
		}
		req.Crop = coords.CropFromFractions(coords.RectFromSize(r.Size()), opts.crop[0], opts.crop[1], opts.crop[2], opts.crop[3])
	}
	bmp, err := deck.RenderPage(ctx, req)
	if err != nil {
		return err
	}
	return writePNG(opts.pngPath, bmp)
}

func writeThumbnails(ctx context.Context, deck *slides.Deck, dir string, width int) error {
	thumbs, err := deck.Thumbnails(ctx, width)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create thumbnail dir: %w", err)
	}
	for _, th := range thumbs {
		path := filepath.Join(dir, fmt.Sprintf("slide-%03d-page-%03d.png", th.Slide.Number, th.Slide.LastPage+1))
		if err := writePNG(path, th.Bitmap); err != nil {
			return err
		}
	}
	return nil
}

func writePNG(path string, bmp *render.Bitmap) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %q: %w", path, err)
	}
	if err := png.Encode(f, bmp); err != nil {
		f.Close()
		return fmt.Errorf("encode %q: %w", path, err)
	}
	return f.Close()
}

func emitSection(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	fmt.Printf("== %s ==\n%s\n\n", name, data)
	return nil
}
