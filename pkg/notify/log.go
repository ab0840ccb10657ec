package notify

import (
	"context"

	"github.com/pion/logging"
)

// LogNotifier writes alerts to a logger. It is the notifier used when no
// delivery endpoint is configured.
type LogNotifier struct {
	log logging.LeveledLogger
}

// NewLogNotifier creates a LogNotifier. A nil factory uses the default
// pion logger factory.
func NewLogNotifier(factory logging.LoggerFactory) *LogNotifier {
	if factory == nil {
		factory = logging.NewDefaultLoggerFactory()
	}
	return &LogNotifier{log: factory.NewLogger("notify")}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, alert Alert) error {
	n.log.Infof("[%s] %s: %s", alert.ID, alert.Title, alert.Body)
	return nil
}

// Verify LogNotifier implements Notifier.
var _ Notifier = (*LogNotifier)(nil)
