package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/objalloc/internal/compress"
	"github.com/hupe1980/objalloc/internal/hash"
)

const (
	frameMagic   = "OALC"
	frameVersion = 1

	// magic(4) version(2) compression(1) codec-name-len(1)
	prefixSize = 8
	// payload-len(8) crc32c(4)
	suffixSize = 12
)

// header describes a frame. The payload checksum covers the stored bytes,
// after compression.
type header struct {
	Version     uint16
	Compression compress.Type
	Codec       string
	PayloadLen  uint64
	Checksum    uint32
}

func (h header) size() int {
	return prefixSize + len(h.Codec) + suffixSize
}

// writeFrame writes the frame of an already compressed payload.
//
// Format:
// Magic (4 bytes) "OALC"
// Version (2 bytes)
// Compression (1 byte)
// CodecNameLen (1 byte)
// CodecName (CodecNameLen bytes)
// PayloadLen (8 bytes)
// Checksum (4 bytes) - CRC32C of payload
// Payload
func writeFrame(w io.Writer, c compress.Type, codecName string, payload []byte) error {
	if len(codecName) == 0 || len(codecName) > 255 {
		return fmt.Errorf("snapshot: invalid codec name %q", codecName)
	}

	h := header{
		Version:     frameVersion,
		Compression: c,
		Codec:       codecName,
		PayloadLen:  uint64(len(payload)),
		Checksum:    hash.CRC32C(payload),
	}

	buf := make([]byte, 0, h.size())
	buf = append(buf, frameMagic...)
	buf = binary.LittleEndian.AppendUint16(buf, h.Version)
	buf = append(buf, byte(h.Compression), byte(len(h.Codec)))
	buf = append(buf, h.Codec...)
	buf = binary.LittleEndian.AppendUint64(buf, h.PayloadLen)
	buf = binary.LittleEndian.AppendUint32(buf, h.Checksum)

	if _, err := w.Write(buf); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// readFrame reads a frame of at most size bytes and verifies its checksum.
// The returned payload is still compressed.
func readFrame(r io.Reader, size int64) (header, []byte, error) {
	var h header

	prefix := make([]byte, prefixSize)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return h, nil, truncated(err, "header")
	}
	if string(prefix[0:4]) != frameMagic {
		return h, nil, fmt.Errorf("%w: invalid magic %q", ErrIncompatibleFormat, prefix[0:4])
	}
	h.Version = binary.LittleEndian.Uint16(prefix[4:6])
	if h.Version != frameVersion {
		return h, nil, fmt.Errorf("%w: unsupported version %d", ErrIncompatibleFormat, h.Version)
	}
	h.Compression = compress.Type(prefix[6])
	if !h.Compression.Valid() {
		return h, nil, fmt.Errorf("%w: unknown compression %d", ErrIncompatibleFormat, prefix[6])
	}

	rest := make([]byte, int(prefix[7])+suffixSize)
	if _, err := io.ReadFull(r, rest); err != nil {
		return h, nil, truncated(err, "header")
	}
	n := int(prefix[7])
	h.Codec = string(rest[:n])
	h.PayloadLen = binary.LittleEndian.Uint64(rest[n:])
	h.Checksum = binary.LittleEndian.Uint32(rest[n+8:])

	if avail := size - int64(h.size()); avail < 0 || h.PayloadLen != uint64(avail) {
		return h, nil, fmt.Errorf("%w: payload length %d does not match blob size %d", ErrCorrupt, h.PayloadLen, size)
	}

	payload := make([]byte, h.PayloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return h, nil, truncated(err, "payload")
	}
	if got := hash.CRC32C(payload); got != h.Checksum {
		return h, nil, fmt.Errorf("%w: checksum mismatch (got %08x, want %08x)", ErrCorrupt, got, h.Checksum)
	}
	return h, payload, nil
}

func truncated(err error, what string) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: truncated %s", ErrCorrupt, what)
	}
	return err
}
