package notifier

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestLogNotifier_Deliver_LogsText(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)))

	results := n.Deliver(context.Background(), "本日の求人")
	if len(results) != 1 || !results[0].Delivered || results[0].Destination != "log" {
		t.Errorf("results = %+v", results)
	}
	if !strings.Contains(buf.String(), "本日の求人") {
		t.Errorf("log output missing text: %q", buf.String())
	}
}
