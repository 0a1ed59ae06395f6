package security

import (
	"errors"
	"testing"
)

func TestWithDefaultsKeepsOverrides(t *testing.T) {
	l := Limits{MaxRecordLength: 10}.WithDefaults()
	if l.MaxRecordLength != 10 {
		t.Fatalf("override lost: %+v", l)
	}
	if l.MaxSidecarSize != DefaultLimits().MaxSidecarSize || l.MaxEmbeddedFiles != 256 {
		t.Fatalf("defaults not applied: %+v", l)
	}
}

func TestCheckSidecarSize(t *testing.T) {
	l := Limits{MaxSidecarSize: 4}
	if err := l.CheckSidecarSize(4); err != nil {
		t.Fatalf("at limit: %v", err)
	}
	err := l.CheckSidecarSize(5)
	var le *LimitError
	if !errors.As(err, &le) || le.Got != 5 || le.Max != 4 {
		t.Fatalf("expected limit error, got %v", err)
	}
}

func TestCheckRasterPixels(t *testing.T) {
	l := Limits{MaxRasterPixels: 100}
	if err := l.CheckRasterPixels(10, 10); err != nil {
		t.Fatalf("at limit: %v", err)
	}
	var le *LimitError
	if err := l.CheckRasterPixels(11, 10); !errors.As(err, &le) || le.Got != 110 {
		t.Fatalf("expected limit error, got %v", err)
	}
	if DefaultLimits().MaxRasterPixels <= 3840*2160*2 {
		t.Fatalf("default raster limit too small for a 4K viewport at scale 2")
	}
}
