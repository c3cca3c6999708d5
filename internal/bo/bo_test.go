package bo

import (
	"encoding/binary"
	"testing"
)

func TestNativeReturnsValidByteOrder(t *testing.T) {
	b := Native()
	if b != binary.BigEndian && b != binary.LittleEndian {
		t.Fatalf("unexpected byte order: %T", b)
	}
}

func TestSizeFieldRoundTrip(t *testing.T) {
	var buf [4]byte
	PutSizeField(buf[:], 0x01020304)
	want := []byte{0x01, 0x02, 0x03, 0x04}
	for i := range want {
		if buf[i] != want[i] {
			t.Fatalf("byte[%d] = %#x, want %#x", i, buf[i], want[i])
		}
	}
	if got := SizeField(buf[:]); got != 0x01020304 {
		t.Fatalf("SizeField = %#x, want 0x01020304", got)
	}
}

func TestSizeFieldIsBigEndianRegardlessOfNative(t *testing.T) {
	var buf [4]byte
	PutSizeField(buf[:], 1)
	if buf[3] != 1 || buf[0] != 0 {
		t.Fatalf("PutSizeField(1) = %v, want big-endian [0 0 0 1]", buf)
	}
}
