package observability

import (
	"context"

	"go.uber.org/zap"
)

// ZapObserver emits events to a zap.Logger. A nil logger resolves to the
// global logger at emission time, so zap.ReplaceGlobals takes effect for
// observers created before it is called.
type ZapObserver struct {
	logger *zap.Logger
}

// NewZapObserver creates a ZapObserver that emits to logger.
func NewZapObserver(logger *zap.Logger) *ZapObserver {
	return &ZapObserver{logger: logger}
}

func (o *ZapObserver) OnEvent(_ context.Context, event Event) {
	logger := o.logger
	if logger == nil {
		logger = zap.L()
	}

	ce := logger.Check(event.Level.ZapLevel(), string(event.Type))
	if ce == nil {
		return
	}

	fields := make([]zap.Field, 0, len(event.Data)+2)
	fields = append(fields, zap.String("source", event.Source))
	if event.SessionID != "" {
		fields = append(fields, zap.String("session", event.SessionID))
	}
	for k, v := range event.Data {
		fields = append(fields, zap.Any(k, v))
	}
	if !event.Timestamp.IsZero() {
		ce.Time = event.Timestamp
	}
	ce.Write(fields...)
}
