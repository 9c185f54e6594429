package delivery

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// logSender writes messages to the service log instead of a real channel.
// Only meant for local development.
type logSender struct{}

func init() {
	Register("log", func(args Args) (Sender, error) {
		return logSender{}, nil
	})
}

func (logSender) Send(ctx context.Context, address, text string) error {
	logutil.GetLogger(ctx).Info("delivery message",
		zap.String("address", address),
		zap.String("text", text),
	)
	return nil
}
