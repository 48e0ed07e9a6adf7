package objalloc

import (
	"github.com/hupe1980/objalloc/codec"
)

type options struct {
	logger  *Logger
	codec   codec.Codec
	metrics MetricsCollector
}

func defaultOptions() options {
	return options{
		logger:  NoopLogger(),
		codec:   codec.Default,
		metrics: NoopMetricsCollector{},
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Option configures an Allocator.
type Option func(*options)

// WithLogger sets the logger used for operation tracing.
//
// If nil is passed, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithCodec configures the codec used by Encode and Decode.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithMetricsCollector sets the metrics collector for monitoring.
//
// If nil is passed, metrics are not collected.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metrics = mc
	}
}
