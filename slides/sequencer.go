package slides

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/wudi/slidekit/render"
)

// ErrStale reports a render that finished after a newer one was requested.
var ErrStale = errors.New("slides: render superseded")

// Ticket identifies one request issued through a Sequencer.
type Ticket uint64

// Sequencer tracks the latest request made for one display surface. A view
// takes a ticket whenever its current page changes and drops any result
// whose ticket is no longer current. The zero value is ready to use.
type Sequencer struct {
	gen atomic.Uint64
}

// Next supersedes all earlier tickets.
func (s *Sequencer) Next() Ticket { return Ticket(s.gen.Add(1)) }

// Current reports whether t is the most recent ticket.
func (s *Sequencer) Current(t Ticket) bool { return s.gen.Load() == uint64(t) }

// Render takes a ticket, renders req and returns ErrStale if another ticket
// was taken before the render completed.
func (s *Sequencer) Render(ctx context.Context, d *Deck, req RenderRequest) (*render.Bitmap, error) {
	t := s.Next()
	bmp, err := d.RenderPage(ctx, req)
	if !s.Current(t) {
		return nil, ErrStale
	}
	return bmp, err
}
