// Package resource governs the resources snapshot transfers consume.
//
// A Controller manages three limits:
//
//   - Memory: payload bytes held in flight while encoding or decoding
//   - Concurrency: simultaneous blob transfers (SaveAll, LoadAll)
//   - IO: transfer throughput, as a token bucket
//
// # Memory
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 256 << 20,
//	})
//
//	if err := rc.AcquireMemory(ctx, int64(len(payload))); err != nil {
//	    return err
//	}
//	defer rc.ReleaseMemory(int64(len(payload)))
//
// # IO Rate Limiting
//
//	rc := resource.NewController(resource.Config{
//	    IOLimitBytesPerSec: 50 << 20,
//	})
//
//	writer := resource.NewRateLimitedWriter(ctx, file, rc)
//	reader := resource.NewRateLimitedReader(ctx, file, rc)
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully; they become no-ops.
package resource
