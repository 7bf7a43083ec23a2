package audit

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Sink persists or forwards audit records.
type Sink interface {
	Put(ctx context.Context, rec Record) error
}

// Fanout delivers a record to every sink. Sink failures are logged and
// never returned to the caller.
type Fanout struct {
	sinks  []Sink
	logger *zap.Logger
}

// NewFanout creates a fanout over sinks; nil sinks are skipped.
func NewFanout(logger *zap.Logger, sinks ...Sink) *Fanout {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Fanout{logger: logger}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

// RecordTrace delivers rec to each sink in order.
func (f *Fanout) RecordTrace(ctx context.Context, rec Record) {
	for _, s := range f.sinks {
		if err := deliver(ctx, s, rec); err != nil {
			f.logger.Warn("audit sink failed",
				zap.String("request_id", rec.RequestID),
				zap.String("sink", fmt.Sprintf("%T", s)),
				zap.Error(err))
		}
	}
}

func deliver(ctx context.Context, s Sink, rec Record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panic: %v", r)
		}
	}()
	return s.Put(ctx, rec)
}
