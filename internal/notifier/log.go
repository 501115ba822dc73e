package notifier

import (
	"context"
	"log/slog"

	"github.com/amishk599/a11yjobs/internal/model"
)

// Ensure LogNotifier implements model.Notifier.
var _ model.Notifier = (*LogNotifier)(nil)

// LogNotifier writes messages to the logger instead of a chat service.
// Used for dry runs.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that logs each message via slog.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Deliver logs text and reports a single successful "log" destination.
func (n *LogNotifier) Deliver(_ context.Context, text string) []model.DeliveryResult {
	n.logger.Info("message", "text", text)
	return []model.DeliveryResult{{Destination: "log", Delivered: true}}
}
