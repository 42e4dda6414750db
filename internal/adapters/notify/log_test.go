package notify_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/samirrijal/skycanvas/internal/adapters/notify"
)

func TestLog_Notify(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewLog(slog.New(slog.NewJSONHandler(&buf, nil)))

	n.Notify(context.Background(), "Location unavailable, using default location")

	if got := n.Messages(); len(got) != 1 {
		t.Fatalf("expected 1 message, got %d", len(got))
	}
	if !strings.Contains(buf.String(), `"message":"Location unavailable, using default location"`) {
		t.Errorf("expected notice in log output, got %s", buf.String())
	}
	if !strings.Contains(buf.String(), `"component":"notify"`) {
		t.Errorf("expected component attribute, got %s", buf.String())
	}
}
