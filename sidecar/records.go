package sidecar

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// record is one line of a line-oriented payload.
type record struct {
	line int
	text string
}

// splitLines breaks text on \n, \r\n and \r. A trailing line terminator does
// not produce an empty final record.
func splitLines(text string) []record {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	parts := strings.Split(text, "\n")
	out := make([]record, len(parts))
	for i, s := range parts {
		out[i] = record{line: i + 1, text: s}
	}
	return out
}

// fields splits a record on '*' and trims the surrounding whitespace of each
// field.
func fields(s string) []string {
	parts := strings.Split(s, "*")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parsePage(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("page number %q", s)
	}
	return n, nil
}

func parseLoop(s string) (bool, error) {
	switch {
	case strings.EqualFold(s, "true"):
		return true, nil
	case strings.EqualFold(s, "false"):
		return false, nil
	}
	return false, fmt.Errorf("loop flag %q", s)
}

func parseBox(s string) (x, y, w float64, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("box %q: want 3 values, got %d", s, len(parts))
	}
	var vals [3]float64
	for i, part := range parts {
		v, perr := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if perr != nil {
			return 0, 0, 0, fmt.Errorf("box %q: value %q", s, part)
		}
		vals[i] = v
	}
	return vals[0], vals[1], vals[2], nil
}

// noteNewlines turns the newline markers of a line-oriented note into
// newlines: the two-character escape `\n` and any remaining lone backslash.
var noteNewlines = strings.NewReplacer(`\n`, "\n", `\`, "\n")

func (p *parser) notes(text string) error {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "[") {
		return p.jsonNotes(trimmed)
	}
	for _, rec := range splitLines(text) {
		if err := p.ctx.Err(); err != nil {
			return err
		}
		if len(rec.text) > p.opts.Limits.MaxRecordLength {
			if err := p.skip(LineError{Payload: NotesSentinel, Line: rec.line, Reason: "record too long"}); err != nil {
				return err
			}
			continue
		}
		idx := strings.IndexByte(rec.text, '*')
		if idx < 0 {
			if strings.TrimSpace(rec.text) == "" {
				continue
			}
			if err := p.skip(LineError{Payload: NotesSentinel, Line: rec.line, Reason: "missing '*' separator"}); err != nil {
				return err
			}
			continue
		}
		page, err := parsePage(rec.text[:idx])
		if err != nil {
			if err := p.skip(LineError{Payload: NotesSentinel, Line: rec.line, Reason: err.Error()}); err != nil {
				return err
			}
			continue
		}
		p.result.Notes[page] = noteNewlines.Replace(rec.text[idx+1:])
	}
	return nil
}

type jsonNote struct {
	Page *int   `json:"page"`
	Note string `json:"note"`
}

// jsonNotes decodes the array form. Elements are decoded one by one so a bad
// element only loses itself; the element index stands in for the line.
func (p *parser) jsonNotes(text string) error {
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(text), &elems); err != nil {
		return p.skip(LineError{Payload: NotesSentinel, Reason: fmt.Sprintf("json: %v", err)})
	}
	for i, raw := range elems {
		var n jsonNote
		if err := json.Unmarshal(raw, &n); err != nil {
			if err := p.skip(LineError{Payload: NotesSentinel, Line: i + 1, Reason: fmt.Sprintf("json: %v", err)}); err != nil {
				return err
			}
			continue
		}
		if n.Page == nil {
			if err := p.skip(LineError{Payload: NotesSentinel, Line: i + 1, Reason: "json: missing page"}); err != nil {
				return err
			}
			continue
		}
		p.result.Notes[*n.Page] = n.Note
	}
	return nil
}

func (p *parser) videos(text string) error {
	for _, rec := range splitLines(text) {
		if err := p.ctx.Err(); err != nil {
			return err
		}
		if strings.TrimSpace(rec.text) == "" {
			continue
		}
		v, page, err := p.video(rec.text)
		if err != nil {
			if err := p.skip(LineError{Payload: VideosSentinel, Line: rec.line, Reason: err.Error()}); err != nil {
				return err
			}
			continue
		}
		p.result.Videos[page] = v
	}
	return nil
}

func (p *parser) video(line string) (Video, int, error) {
	if len(line) > p.opts.Limits.MaxRecordLength {
		return Video{}, 0, fmt.Errorf("record too long")
	}
	f := fields(line)
	if len(f) < 4 {
		return Video{}, 0, fmt.Errorf("want 4 fields, got %d", len(f))
	}
	page, err := parsePage(f[0])
	if err != nil {
		return Video{}, 0, err
	}
	loop, err := parseLoop(f[1])
	if err != nil {
		return Video{}, 0, err
	}
	x, y, w, err := parseBox(f[2])
	if err != nil {
		return Video{}, 0, err
	}
	return Video{
		Path: ResolvePath(p.opts.DocDir, f[3]),
		X:    x,
		Y:    y,
		W:    w,
		Loop: loop,
	}, page, nil
}
