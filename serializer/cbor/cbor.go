// Package cbor provides a remotemap.Serializer backed by CBOR, for
// callers who want a schemaless, self-describing wire format instead of
// hand-rolling a fixed-layout one. It also implements remotemap.ObjectCodec,
// used for MapForKey/UpdateForKey function payloads and for decoding the
// server's exception object.
package cbor

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/hybscloud/remotemap"
)

// Serializer encodes/decodes values of type T as length-prefixed CBOR.
// The length prefix lets Read know exactly how many bytes to consume
// without needing CBOR's own streaming decoder to stop at a boundary.
type Serializer[T any] struct {
	EncOptions cbor.EncOptions
	DecOptions cbor.DecOptions
}

// New returns a Serializer using CBOR's canonical encoding options, which
// produce a deterministic byte sequence for a given value — useful if the
// server ever needs to compare or hash encoded entries.
func New[T any]() *Serializer[T] {
	return &Serializer[T]{
		EncOptions: cbor.CanonicalEncOptions(),
	}
}

func (s *Serializer[T]) mode() (cbor.EncMode, error) {
	return s.EncOptions.EncMode()
}

// Write CBOR-encodes v and writes it to buf as a stop-bit length prefix
// followed by the encoded bytes.
func (s *Serializer[T]) Write(v T, buf *remotemap.FramedBuffer, _ any) error {
	mode, err := s.mode()
	if err != nil {
		return err
	}
	data, err := mode.Marshal(v)
	if err != nil {
		return err
	}
	return writeFramed(buf, data)
}

// Read decodes a value previously written by Write.
func (s *Serializer[T]) Read(buf *remotemap.FramedBuffer, _ any) (T, error) {
	var zero T
	data, err := readFramed(buf)
	if err != nil {
		return zero, err
	}
	var out T
	if err := cbor.Unmarshal(data, &out); err != nil {
		return zero, err
	}
	return out, nil
}

// ObjectCodec encodes/decodes untyped `any` payloads, used for
// MapForKey/UpdateForKey function objects and for the server's exception
// object on a failed response.
type ObjectCodec struct{}

func (ObjectCodec) WriteObject(obj any, buf *remotemap.FramedBuffer) error {
	data, err := cbor.Marshal(obj)
	if err != nil {
		return err
	}
	return writeFramed(buf, data)
}

func (ObjectCodec) ReadObject(buf *remotemap.FramedBuffer) (any, error) {
	data, err := readFramed(buf)
	if err != nil {
		return nil, err
	}
	var out any
	if err := cbor.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// writeFramed and readFramed carry the stop-bit-length-prefix convention
// shared by every CBOR payload this package writes, independent of the
// surrounding wire frame's own size field.
func writeFramed(buf *remotemap.FramedBuffer, data []byte) error {
	if err := writeStopBit(buf, uint64(len(data))); err != nil {
		return err
	}
	return buf.WriteBytes(data)
}

func readFramed(buf *remotemap.FramedBuffer) ([]byte, error) {
	n, err := readStopBit(buf)
	if err != nil {
		return nil, err
	}
	return buf.ReadBytes(int(n))
}

func writeStopBit(buf *remotemap.FramedBuffer, v uint64) error {
	for v >= 0x80 {
		if err := buf.WriteU8(byte(v) | 0x80); err != nil {
			return err
		}
		v >>= 7
	}
	return buf.WriteU8(byte(v))
}

func readStopBit(buf *remotemap.FramedBuffer) (uint64, error) {
	var v uint64
	var shift uint
	for {
		b, err := buf.ReadU8()
		if err != nil {
			return 0, err
		}
		v |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return v, nil
		}
		shift += 7
	}
}
