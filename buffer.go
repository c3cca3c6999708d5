package remotemap

import (
	"github.com/hybscloud/remotemap/internal/bo"
)

// minBufferCapacity is the floor capacity any FramedBuffer is constructed
// or resized to.
const minBufferCapacity = 128

// FramedBuffer owns a single contiguous native-endian byte buffer with
// classic (capacity, position, limit) cursor semantics: 0 ≤ position ≤
// limit ≤ capacity. It is the scratch area a Client reuses across every
// operation — cleared and re-filled under the client's single mutex.
//
// Resize never shrinks and never loses already-written bytes: callers
// that hit OutOfSpace mid-encoding compute a larger capacity, call
// Resize with the offset where the failed write began (the "anchor"),
// and retry the write at that same offset.
type FramedBuffer struct {
	buf      []byte
	position int
	limit    int
	order    byteOrder
}

// byteOrder is the minimal native-endian read/write surface FramedBuffer
// needs; satisfied by encoding/binary.ByteOrder.
type byteOrder interface {
	Uint16([]byte) uint16
	Uint32([]byte) uint32
	Uint64([]byte) uint64
	PutUint16([]byte, uint16)
	PutUint32([]byte, uint32)
	PutUint64([]byte, uint64)
}

// NewFramedBuffer allocates a buffer with at least minBufferCapacity bytes,
// or capacityHint bytes if larger. The wire representation is
// native-endian.
func NewFramedBuffer(capacityHint int) *FramedBuffer {
	cap := capacityHint
	if cap < minBufferCapacity {
		cap = minBufferCapacity
	}
	return &FramedBuffer{
		buf:   make([]byte, cap),
		limit: cap,
		order: bo.Native(),
	}
}

// Capacity returns the buffer's current backing size.
func (b *FramedBuffer) Capacity() int { return len(b.buf) }

// Position returns the current cursor offset.
func (b *FramedBuffer) Position() int { return b.position }

// Limit returns the current read/write limit.
func (b *FramedBuffer) Limit() int { return b.limit }

// Remaining returns the number of bytes between position and limit.
func (b *FramedBuffer) Remaining() int { return b.limit - b.position }

// Bytes returns the full backing slice. Callers must respect Position/Limit
// themselves; this exists for Connection to hand the wire writer a slice.
func (b *FramedBuffer) Bytes() []byte { return b.buf }

// Clear resets position to 0 and limit to the buffer's capacity, as if
// newly allocated, without discarding the backing array.
func (b *FramedBuffer) Clear() {
	b.position = 0
	b.limit = len(b.buf)
}

// MarkPosition returns the current position, for use as a Resize anchor or
// as the start offset of a region to re-read/re-write later.
func (b *FramedBuffer) MarkPosition() int { return b.position }

// SetPosition moves the cursor to p. It panics if p is out of [0, limit];
// this is a programming error in the caller, never a wire condition.
func (b *FramedBuffer) SetPosition(p int) {
	if p < 0 || p > b.limit {
		panic("remotemap: FramedBuffer.SetPosition out of range")
	}
	b.position = p
}

// Skip advances the cursor by n bytes without touching their contents,
// used by RequestBuilder to reserve the size and transaction-id slots.
func (b *FramedBuffer) Skip(n int) error {
	if b.position+n > b.limit {
		return OutOfSpace(b.position + n - b.limit)
	}
	b.position += n
	return nil
}

// Resize allocates a new backing array of at least newCapacity bytes,
// copies [0, position) from the old buffer,
// swaps it in, and restores position to anchor — the offset where the
// encoding attempt that triggered the resize began. Resize never shrinks:
// if newCapacity is not larger than the current capacity it is rounded up.
func (b *FramedBuffer) Resize(newCapacity, anchor int) {
	if newCapacity <= len(b.buf) {
		newCapacity = len(b.buf) + minBufferCapacity
	}
	fresh := make([]byte, newCapacity)
	copy(fresh, b.buf[:b.position])
	b.buf = fresh
	b.limit = newCapacity
	b.position = anchor
}

// Compact shifts the unread region [position, limit) to offset 0 and
// resets position to the shifted region's new start (0) and limit to its
// length, per chunkedIterator's between-chunk bookkeeping.
// If the unread region is empty it behaves like Clear.
func (b *FramedBuffer) Compact() {
	n := b.limit - b.position
	if n <= 0 {
		b.Clear()
		return
	}
	copy(b.buf, b.buf[b.position:b.limit])
	b.position = 0
	b.limit = n
}

func (b *FramedBuffer) ensure(n int) error {
	if b.position+n > b.limit {
		return OutOfSpace(b.position + n - b.limit)
	}
	return nil
}

// WriteU8 writes a single byte and advances position.
func (b *FramedBuffer) WriteU8(v uint8) error {
	if err := b.ensure(1); err != nil {
		return err
	}
	b.buf[b.position] = v
	b.position++
	return nil
}

// WriteBool writes a single byte, 1 for true and 0 for false.
func (b *FramedBuffer) WriteBool(v bool) error {
	if v {
		return b.WriteU8(1)
	}
	return b.WriteU8(0)
}

// WriteU32 writes a native-endian uint32 and advances position.
func (b *FramedBuffer) WriteU32(v uint32) error {
	if err := b.ensure(4); err != nil {
		return err
	}
	b.order.PutUint32(b.buf[b.position:], v)
	b.position += 4
	return nil
}

// WriteI32 writes a native-endian int32 and advances position.
func (b *FramedBuffer) WriteI32(v int32) error { return b.WriteU32(uint32(v)) }

// WriteU64 writes a native-endian uint64 and advances position.
func (b *FramedBuffer) WriteU64(v uint64) error {
	if err := b.ensure(8); err != nil {
		return err
	}
	b.order.PutUint64(b.buf[b.position:], v)
	b.position += 8
	return nil
}

// WriteI64 writes a native-endian int64 and advances position.
func (b *FramedBuffer) WriteI64(v int64) error { return b.WriteU64(uint64(v)) }

// WriteBytes copies p and advances position by len(p).
func (b *FramedBuffer) WriteBytes(p []byte) error {
	if err := b.ensure(len(p)); err != nil {
		return err
	}
	copy(b.buf[b.position:], p)
	b.position += len(p)
	return nil
}

// WriteSizeAt patches the 4-byte frame size field at offset without
// moving position. The size field is always big-endian
// ("big-four"), independent of the native-endian payload encoding, so
// this does not go through the buffer's configured byteOrder.
func (b *FramedBuffer) WriteSizeAt(offset int, v uint32) error {
	if offset+4 > len(b.buf) {
		return OutOfSpace(offset + 4 - len(b.buf))
	}
	bo.PutSizeField(b.buf[offset:], v)
	return nil
}

// WriteU64At patches a native-endian uint64 at offset without moving
// position, used by RequestBuilder to back-patch the transaction-id slot.
func (b *FramedBuffer) WriteU64At(offset int, v uint64) error {
	if offset+8 > len(b.buf) {
		return OutOfSpace(offset + 8 - len(b.buf))
	}
	b.order.PutUint64(b.buf[offset:], v)
	return nil
}

func (b *FramedBuffer) ensureRead(n int) error {
	if b.position+n > b.limit {
		return ErrTruncated
	}
	return nil
}

// ReadU8 reads a single byte and advances position.
func (b *FramedBuffer) ReadU8() (uint8, error) {
	if err := b.ensureRead(1); err != nil {
		return 0, err
	}
	v := b.buf[b.position]
	b.position++
	return v, nil
}

// ReadBool reads a single byte as a boolean and advances position.
func (b *FramedBuffer) ReadBool() (bool, error) {
	v, err := b.ReadU8()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// ReadU32 reads a native-endian uint32 and advances position.
func (b *FramedBuffer) ReadU32() (uint32, error) {
	if err := b.ensureRead(4); err != nil {
		return 0, err
	}
	v := b.order.Uint32(b.buf[b.position:])
	b.position += 4
	return v, nil
}

// ReadI32 reads a native-endian int32 and advances position.
func (b *FramedBuffer) ReadI32() (int32, error) {
	v, err := b.ReadU32()
	return int32(v), err
}

// ReadU64 reads a native-endian uint64 and advances position.
func (b *FramedBuffer) ReadU64() (uint64, error) {
	if err := b.ensureRead(8); err != nil {
		return 0, err
	}
	v := b.order.Uint64(b.buf[b.position:])
	b.position += 8
	return v, nil
}

// ReadI64 reads a native-endian int64 and advances position.
func (b *FramedBuffer) ReadI64() (int64, error) {
	v, err := b.ReadU64()
	return int64(v), err
}

// ReadBytes reads n bytes and advances position, returning a copy.
func (b *FramedBuffer) ReadBytes(n int) ([]byte, error) {
	if err := b.ensureRead(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b.buf[b.position:b.position+n])
	b.position += n
	return out, nil
}

// Skip advances the read cursor past n unread bytes. Named ReadSkip to
// avoid colliding with the write-side reservation helper Skip.
func (b *FramedBuffer) ReadSkip(n int) error {
	if err := b.ensureRead(n); err != nil {
		return err
	}
	b.position += n
	return nil
}
