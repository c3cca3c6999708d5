// Package text provides trivial remotemap.Serializer implementations for
// plain strings and byte slices, the types most fixtures and demos need
// without pulling in a schema.
package text

import "github.com/hybscloud/remotemap"

// String serializes Go strings as a stop-bit length prefix followed by
// their UTF-8 bytes.
type String struct{}

func (String) Write(v string, buf *remotemap.FramedBuffer, _ any) error {
	if err := writeStopBit(buf, uint64(len(v))); err != nil {
		return err
	}
	return buf.WriteBytes([]byte(v))
}

func (String) Read(buf *remotemap.FramedBuffer, _ any) (string, error) {
	n, err := readStopBit(buf)
	if err != nil {
		return "", err
	}
	b, err := buf.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Bytes serializes raw byte slices the same way String serializes
// strings, minus the UTF-8 interpretation.
type Bytes struct{}

func (Bytes) Write(v []byte, buf *remotemap.FramedBuffer, _ any) error {
	if err := writeStopBit(buf, uint64(len(v))); err != nil {
		return err
	}
	return buf.WriteBytes(v)
}

func (Bytes) Read(buf *remotemap.FramedBuffer, _ any) ([]byte, error) {
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
