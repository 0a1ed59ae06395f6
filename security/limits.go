package security

import "fmt"

// Limits bounds the untrusted data read out of a document container.
// Sidecar payloads are authored by hand or by export scripts and a crafted
// document can carry arbitrarily large attachments.
type Limits struct {
	// Maximum size of a single sidecar payload in bytes. Default: 8 MB.
	MaxSidecarSize int64

	// Maximum length of one sidecar record line in bytes. Default: 64 KB.
	MaxRecordLength int

	// Maximum number of embedded files inspected per document. Default: 256.
	MaxEmbeddedFiles int

	// Maximum number of page-label ranges accepted. Default: 100,000.
	MaxLabelRanges int

	// Maximum pixels in any one raster, intermediate renders included.
	// Default: 32 Mpx (128 MB as RGBA).
	MaxRasterPixels int64
}

// DefaultLimits returns a Limits struct with safe default values.
func DefaultLimits() Limits {
	return Limits{
		MaxSidecarSize:   8 * 1024 * 1024, // 8 MB
		MaxRecordLength:  64 * 1024,       // 64 KB
		MaxEmbeddedFiles: 256,
		MaxLabelRanges:   100000,
		MaxRasterPixels:  32 << 20,
	}
}

// WithDefaults fills every zero field from DefaultLimits.
func (l Limits) WithDefaults() Limits {
	def := DefaultLimits()
	if l.MaxSidecarSize == 0 {
		l.MaxSidecarSize = def.MaxSidecarSize
	}
	if l.MaxRecordLength == 0 {
		l.MaxRecordLength = def.MaxRecordLength
	}
	if l.MaxEmbeddedFiles == 0 {
		l.MaxEmbeddedFiles = def.MaxEmbeddedFiles
	}
	if l.MaxLabelRanges == 0 {
		l.MaxLabelRanges = def.MaxLabelRanges
	}
	if l.MaxRasterPixels == 0 {
		l.MaxRasterPixels = def.MaxRasterPixels
	}
	return l
}

// LimitError reports which limit was exceeded.
type LimitError struct {
	Limit string
	Max   int64
	Got   int64
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s exceeded: %d > %d", e.Limit, e.Got, e.Max)
}

// CheckSidecarSize returns a *LimitError when n exceeds MaxSidecarSize.
func (l Limits) CheckSidecarSize(n int64) error {
	if l.MaxSidecarSize > 0 && n > l.MaxSidecarSize {
		return &LimitError{Limit: "sidecar size", Max: l.MaxSidecarSize, Got: n}
	}
	return nil
}

// CheckRasterPixels returns a *LimitError when a w by h raster exceeds
// MaxRasterPixels.
func (l Limits) CheckRasterPixels(w, h int) error {
	n := int64(w) * int64(h)
	if l.MaxRasterPixels > 0 && n > l.MaxRasterPixels {
		return &LimitError{Limit: "raster pixels", Max: l.MaxRasterPixels, Got: n}
	}
	return nil
}
