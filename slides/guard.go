package slides

import (
	"sync"

	"github.com/wudi/slidekit/container"
)

// guard owns the document handle. Every call into the handle happens inside
// do, so at most one call is in flight at a time. Waiters are not ordered.
type guard struct {
	mu  sync.Mutex
	doc container.Document
}

func (g *guard) do(fn func(doc container.Document) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.doc == nil {
		return ErrClosed
	}
	return fn(g.doc)
}

// release closes the handle once; later calls return nil. It waits for the
// call in flight, if any.
func (g *guard) release() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	doc := g.doc
	g.doc = nil
	if doc == nil {
		return nil
	}
	return doc.Close()
}
