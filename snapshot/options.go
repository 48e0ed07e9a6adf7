package snapshot

import (
	"log/slog"

	"github.com/hupe1980/objalloc/codec"
	"github.com/hupe1980/objalloc/internal/compress"
	"github.com/hupe1980/objalloc/resource"
)

// Compression selects how frame payloads are compressed. Its numeric value
// is persisted in every frame.
type Compression = compress.Type

const (
	CompressionNone = compress.None
	CompressionLZ4  = compress.LZ4
	CompressionZSTD = compress.ZSTD
)

// Options configures a Manager.
type Options struct {
	// Compression applied to new frames. Loading honors whatever the frame
	// says.
	// Default: CompressionNone
	Compression Compression

	// Codec encodes new payloads. Loading resolves the codec named in the
	// frame, preferring this one when the names match.
	// Default: codec.Default
	Codec codec.Codec

	// Controller bounds concurrency, in-flight memory and IO throughput. A
	// nil Controller imposes no limits.
	Controller *resource.Controller

	// KeepVersions is the number of frames retained per snapshot after a
	// save. 0 keeps everything.
	KeepVersions int

	// Logger receives save, load and prune events.
	// Default: discard
	Logger *slog.Logger
}

// Option configures a Manager.
type Option func(*Options)

// WithCompression sets the compression for new frames.
func WithCompression(c Compression) Option {
	return func(o *Options) { o.Compression = c }
}

// WithCodec sets the payload codec. nil selects codec.Default.
func WithCodec(c codec.Codec) Option {
	return func(o *Options) { o.Codec = c }
}

// WithController sets the resource controller.
func WithController(rc *resource.Controller) Option {
	return func(o *Options) { o.Controller = rc }
}

// WithIOLimit throttles transfers to bytesPerSec with a dedicated
// controller.
func WithIOLimit(bytesPerSec int64) Option {
	return func(o *Options) {
		o.Controller = resource.NewController(resource.Config{IOLimitBytesPerSec: bytesPerSec})
	}
}

// WithKeepVersions retains only the newest n frames per snapshot.
func WithKeepVersions(n int) Option {
	return func(o *Options) { o.KeepVersions = n }
}

// WithLogger sets the logger. nil discards.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

func applyOptions(opts []Option) Options {
	o := Options{Compression: CompressionNone}
	for _, fn := range opts {
		fn(&o)
	}
	if o.Codec == nil {
		o.Codec = codec.Default
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.KeepVersions < 0 {
		o.KeepVersions = 0
	}
	return o
}
