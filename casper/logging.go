package casper

import (
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("casper")

var _ Tracer = (*LogTracer)(nil)

// LogTracer is a Tracer backed by a Zap logger, logging at debug level.
type LogTracer logging.ZapEventLogger

// NewLogTracer returns a tracer that logs to the named logger.
func NewLogTracer(name string) *LogTracer {
	return (*LogTracer)(logging.WithSkip(logging.Logger(name), 2))
}

// Log fulfills the Tracer interface.
func (t *LogTracer) Log(fmt string, args ...any) {
	(*logging.ZapEventLogger)(t).Debugf(fmt, args...)
}
