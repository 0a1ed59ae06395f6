package sidecar

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wudi/slidekit/container"
	"github.com/wudi/slidekit/coords"
	"github.com/wudi/slidekit/recovery"
	"github.com/wudi/slidekit/security"
)

func notesFile(data string) container.EmbeddedFile {
	return container.EmbeddedFile{Name: "notes.txt", Description: NotesSentinel, Data: []byte(data)}
}

func videosFile(data string) container.EmbeddedFile {
	return container.EmbeddedFile{Name: VideosSentinel, Data: []byte(data)}
}

func TestParseLineNotes(t *testing.T) {
	res, err := Parse(context.Background(), []container.EmbeddedFile{
		notesFile("1*Hello\\nWorld\r\n3*first\\second\n\nx*not a page\nno separator\n2*a*b\n"),
	}, Options{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := map[int]string{
		1: "Hello\nWorld",
		3: "first\nsecond",
		2: "a*b",
	}
	if len(res.Notes) != len(want) {
		t.Fatalf("notes: %+v", res.Notes)
	}
	for page, note := range want {
		if res.Notes[page] != note {
			t.Fatalf("page %d: got %q want %q", page, res.Notes[page], note)
		}
	}
	if len(res.Skipped) != 2 || res.Skipped[0].Line != 4 || res.Skipped[1].Line != 5 {
		t.Fatalf("skipped: %+v", res.Skipped)
	}
}

func TestParseJSONNotes(t *testing.T) {
	payload := `[{"page":1,"note":"intro"},{"page":"two","note":"bad"},{"note":"no page"},{"page":4,"note":"multi\nline"}]`
	res, err := Parse(context.Background(), []container.EmbeddedFile{notesFile(payload)}, Options{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.Notes[1] != "intro" || res.Notes[4] != "multi\nline" || len(res.Notes) != 2 {
		t.Fatalf("notes: %+v", res.Notes)
	}
	if len(res.Skipped) != 2 {
		t.Fatalf("skipped: %+v", res.Skipped)
	}

	res, _ = Parse(context.Background(), []container.EmbeddedFile{notesFile(`[{"page":1,`)}, Options{})
	if len(res.Notes) != 0 || len(res.Skipped) != 1 || res.Skipped[0].Line != 0 {
		t.Fatalf("truncated json: %+v", res)
	}
}

func TestParseVideos(t *testing.T) {
	payload := strings.Join([]string{
		"2*true*10,20.5,100*clips/intro.mp4",
		"3*false*1,2,abc*clips/bad.mp4",
		"4*maybe*1,2,3*clips/bad.mp4",
		"5*false*1,2*clips/bad.mp4",
		"six*false*1,2,3*clips/bad.mp4",
		"7*FALSE*1,2,3*outro.webm*extra*fields",
		"8*true*1,2,3",
	}, "\n")
	dir := filepath.Join("talks", "2024")
	res, err := Parse(context.Background(), []container.EmbeddedFile{videosFile(payload)}, Options{DocDir: dir})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(res.Videos) != 2 {
		t.Fatalf("videos: %+v", res.Videos)
	}
	v := res.Videos[2]
	want := Video{Path: filepath.Join(dir, "clips", "intro.mp4"), X: 10, Y: 20.5, W: 100, Loop: true}
	if v != want {
		t.Fatalf("page 2: got %+v want %+v", v, want)
	}
	if v := res.Videos[7]; v.Loop || v.Path != filepath.Join(dir, "outro.webm") {
		t.Fatalf("page 7: %+v", v)
	}
	if len(res.Skipped) != 5 {
		t.Fatalf("skipped: %+v", res.Skipped)
	}
}

func TestParseVideosSkipsNonNumericCoordinate(t *testing.T) {
	res, err := Parse(context.Background(), []container.EmbeddedFile{
		videosFile("1*true*0,0,50*a.mp4\n2*true*0,zero,50*b.mp4"),
	}, Options{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(res.Videos) != 1 {
		t.Fatalf("want exactly one video, got %+v", res.Videos)
	}
}

func TestParseMergesLastWriteWins(t *testing.T) {
	res, err := Parse(context.Background(), []container.EmbeddedFile{
		notesFile("1*old\n2*keep"),
		{Name: "unrelated", Data: []byte("1*ignored")},
		{Filename: NotesSentinel, Data: []byte("1*new")},
	}, Options{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.Notes[1] != "new" || res.Notes[2] != "keep" {
		t.Fatalf("notes: %+v", res.Notes)
	}
}

func TestParseDecodesBOM(t *testing.T) {
	utf8BOM := append([]byte{0xEF, 0xBB, 0xBF}, "1*bom"...)
	utf16 := []byte{0xFF, 0xFE, '2', 0, '*', 0, 'h', 0, 'i', 0}
	res, err := Parse(context.Background(), []container.EmbeddedFile{
		{Description: NotesSentinel, Data: utf8BOM},
		{Description: NotesSentinel, Data: utf16},
	}, Options{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.Notes[1] != "bom" || res.Notes[2] != "hi" {
		t.Fatalf("notes: %+v", res.Notes)
	}
}

func TestParseLimits(t *testing.T) {
	opts := Options{Limits: security.Limits{MaxSidecarSize: 8, MaxRecordLength: 6}}
	res, err := Parse(context.Background(), []container.EmbeddedFile{
		notesFile("1*0123456789"),
		videosFile("1*true*0,0,1*a"),
	}, opts)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(res.Notes) != 0 || len(res.Videos) != 0 || len(res.Skipped) != 2 {
		t.Fatalf("limits not applied: %+v", res)
	}

	opts = Options{Limits: security.Limits{MaxRecordLength: 5}}
	res, _ = Parse(context.Background(), []container.EmbeddedFile{notesFile("1*ok\n2*too long")}, opts)
	if res.Notes[1] != "ok" || len(res.Notes) != 1 {
		t.Fatalf("record limit: %+v", res.Notes)
	}
}

func TestParseStrictStrategyAborts(t *testing.T) {
	_, err := Parse(context.Background(), []container.EmbeddedFile{
		videosFile("1*true*0,0,1*a.mp4\nbroken"),
	}, Options{Recovery: recovery.NewStrictStrategy()})
	if !errors.Is(err, ErrAborted) {
		t.Fatalf("expected ErrAborted, got %v", err)
	}
}

func TestParseHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Parse(ctx, []container.EmbeddedFile{notesFile("1*a")}, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestVideoPlacement(t *testing.T) {
	v := Video{X: 50, Y: 25, W: 100}
	x, y, w := v.Placement(coords.Rect{X1: 200, Y1: 100})
	if x != 0.25 || y != 0.25 || w != 0.5 {
		t.Fatalf("placement %v %v %v", x, y, w)
	}
	if x, y, w := v.Placement(coords.Rect{}); x != 0 || y != 0 || w != 0 {
		t.Fatalf("empty page placement %v %v %v", x, y, w)
	}
}

func TestNoteRenderer(t *testing.T) {
	r := NewNoteRenderer()
	out, err := r.HTML("**Remember** the demo\nthen questions\n\n<script>x</script>")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"<strong>Remember</strong>", "<br", "<!-- raw HTML omitted -->"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
	if out, _ := r.HTML(""); out != "" {
		t.Fatalf("empty note rendered to %q", out)
	}
}

type warnAll struct{ seen []recovery.Location }

func (w *warnAll) OnError(_ recovery.Context, _ error, loc recovery.Location) recovery.Action {
	w.seen = append(w.seen, loc)
	return recovery.ActionWarn
}

func TestParseWarnStrategySkips(t *testing.T) {
	w := &warnAll{}
	res, err := Parse(context.Background(), []container.EmbeddedFile{
		videosFile("1*true*0,0,1*a.mp4\n2*true*0,0*b.mp4"),
	}, Options{Recovery: w})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(res.Videos) != 1 || len(res.Skipped) != 1 {
		t.Fatalf("result: %+v", res)
	}
	if len(w.seen) != 1 || w.seen[0] != (recovery.Location{Component: "sidecar", Payload: VideosSentinel, Line: 2}) {
		t.Fatalf("locations: %+v", w.seen)
	}
}

func TestParseVideoEmptyPathResolvesToDocDir(t *testing.T) {
	dir := filepath.Join("talks", "2024")
	res, err := Parse(context.Background(), []container.EmbeddedFile{videosFile("3*false*1,2,3*")}, Options{DocDir: dir})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if v, ok := res.Videos[3]; !ok || v.Path != dir {
		t.Fatalf("videos: %+v", res.Videos)
	}
}

func TestParseLineNotesEscapeWinsOverLoneBackslash(t *testing.T) {
	// A single-backslash note whose next line starts with "n" reads as the
	// \n escape and loses that letter.
	res, err := Parse(context.Background(), []container.EmbeddedFile{
		notesFile(`1*Intro\now the demo` + "\n" + `2*Intro\then questions`),
	}, Options{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got, want := res.Notes[1], "Intro\n"+"ow the demo"; got != want {
		t.Fatalf("page 1: got %q want %q", got, want)
	}
	if got, want := res.Notes[2], "Intro\n"+"then questions"; got != want {
		t.Fatalf("page 2: got %q want %q", got, want)
	}
}
