// Package wire implements Component K: the binary IPC message framing
// from spec §6 and the canonical broker tag registry, shared by both the
// native and browser hosts so a message encoded on one host means the
// same thing delivered through the other.
package wire

import (
	"encoding/binary"

	"github.com/zeroos-kernel/zeroos/internal/kernel"
)

// HeaderSize is the fixed prefix before the payload: 4-byte sender PID,
// 4-byte tag, 4-byte payload length.
const HeaderSize = 12

// CapTrailerHeaderSize is the trailer's own count byte.
const CapTrailerHeaderSize = 1

// CapEntrySize is the per-capability trailer entry: kind (1), object id (8),
// perms (1).
const CapEntrySize = 10

// Frame is one decoded wire message: the exact shape carried over IPC
// between hosts, or between a module and the supervisor.
type Frame struct {
	Sender  kernel.PID
	Tag     uint32
	Payload []byte
	Caps    []kernel.TransferredCap
}

// Encode serializes f per spec §6: sender PID, tag, payload length,
// payload, then an optional transferred-capability trailer. All integers
// little-endian.
func Encode(f Frame) []byte {
	size := HeaderSize + len(f.Payload)
	if len(f.Caps) > 0 {
		size += CapTrailerHeaderSize + len(f.Caps)*CapEntrySize
	}
	buf := make([]byte, size)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(f.Sender))
	binary.LittleEndian.PutUint32(buf[4:8], f.Tag)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(f.Payload)))
	off := HeaderSize
	off += copy(buf[off:], f.Payload)

	if len(f.Caps) > 0 {
		buf[off] = byte(len(f.Caps))
		off++
		for _, c := range f.Caps {
			buf[off] = byte(c.Kind)
			off++
			binary.LittleEndian.PutUint64(buf[off:off+8], c.ID)
			off += 8
			buf[off] = byte(c.Perms)
			off++
		}
	}
	return buf
}

// Decode parses a wire frame out of buf. It rejects anything shorter than
// the declared payload length or with a truncated capability trailer as
// ErrInvalidMessage, never panics on malformed input.
func Decode(buf []byte) (Frame, error) {
	if len(buf) < HeaderSize {
		return Frame{}, kernel.Fail(kernel.ErrInvalidMessage, "wire: frame shorter than header (%d bytes)", len(buf))
	}
	sender := kernel.PID(binary.LittleEndian.Uint32(buf[0:4]))
	tag := binary.LittleEndian.Uint32(buf[4:8])
	payloadLen := int(binary.LittleEndian.Uint32(buf[8:12]))

	off := HeaderSize
	if off+payloadLen > len(buf) {
		return Frame{}, kernel.Fail(kernel.ErrInvalidMessage, "wire: declared payload length %d exceeds frame size", payloadLen)
	}
	payload := append([]byte(nil), buf[off:off+payloadLen]...)
	off += payloadLen

	f := Frame{Sender: sender, Tag: tag, Payload: payload}

	if off < len(buf) {
		if off+CapTrailerHeaderSize > len(buf) {
			return Frame{}, kernel.Fail(kernel.ErrInvalidMessage, "wire: truncated capability trailer header")
		}
		count := int(buf[off])
		off++
		if off+count*CapEntrySize > len(buf) {
			return Frame{}, kernel.Fail(kernel.ErrInvalidMessage, "wire: truncated capability trailer entries")
		}
		caps := make([]kernel.TransferredCap, 0, count)
		for n := 0; n < count; n++ {
			kind := kernel.ObjectKind(buf[off])
			off++
			id := binary.LittleEndian.Uint64(buf[off : off+8])
			off += 8
			perms := kernel.Perm(buf[off])
			off++
			caps = append(caps, kernel.TransferredCap{Kind: kind, ID: id, Perms: perms})
		}
		f.Caps = caps
	}

	return f, nil
}
