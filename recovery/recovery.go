// Package recovery decides what happens when a single record inside a
// document fails to parse: skip it and carry on, or abort the whole read.
package recovery

type Strategy interface {
	OnError(ctx Context, err error, location Location) Action
}

// Location identifies the offending record.
type Location struct {
	Component string // e.g. "sidecar"
	Payload   string // sentinel or embedded file name
	Line      int    // 1-based line within the payload, 0 if not line oriented
}

type Action int

const (
	ActionFail Action = iota
	ActionSkip
	ActionWarn
)

func (a Action) String() string {
	switch a {
	case ActionFail:
		return "fail"
	case ActionSkip:
		return "skip"
	case ActionWarn:
		return "warn"
	}
	return "unknown"
}

type Context interface{ Done() <-chan struct{} }
