package recovery_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/wudi/slidekit/recovery"
)

func TestRecoveryStrategies(t *testing.T) {
	loc := recovery.Location{Component: "sidecar", Payload: "video-list", Line: 3}
	bad := errors.New("bad coordinates")

	strict := recovery.NewStrictStrategy()
	if got := strict.OnError(context.Background(), bad, loc); got != recovery.ActionFail {
		t.Fatalf("strict: got %v", got)
	}

	lenient := recovery.NewLenientStrategy()
	if got := lenient.OnError(context.Background(), bad, loc); got != recovery.ActionSkip {
		t.Fatalf("lenient: got %v", got)
	}
	errs := lenient.Errors()
	if len(errs) != 1 || !errors.Is(errs[0], bad) {
		t.Fatalf("lenient errors: %v", errs)
	}
	if !strings.Contains(errs[0].Error(), "video-list line 3") {
		t.Fatalf("location missing from %q", errs[0])
	}
}
