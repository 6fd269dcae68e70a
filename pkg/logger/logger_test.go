package logger

import (
	"testing"

	"github.com/theory-cloud/apistack/pkg/observability"
)

func TestLogger_DefaultIsNoOp(t *testing.T) {
	got := Logger()
	if got == nil {
		t.Fatal("expected Logger() to return a non-nil logger")
	}
	if !got.IsHealthy() {
		t.Fatal("expected default logger to be healthy")
	}
}

func TestSetLogger_ReplacesAndResets(t *testing.T) {
	t.Cleanup(func() { SetLogger(nil) })

	test := observability.NewTestLogger()
	SetLogger(test)
	Logger().Info("composed")

	if entries := test.Entries(); len(entries) != 1 || entries[0].Message != "composed" {
		t.Fatalf("expected entry on installed logger, got %#v", entries)
	}

	SetLogger(nil)
	if Logger() == observability.StructuredLogger(test) {
		t.Fatal("expected nil to reset to the no-op logger")
	}
}
