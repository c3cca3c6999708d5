package remotemap

import "testing"

func TestStopBitRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 127, 128, 300, 1 << 20, 1<<63 - 1}
	for _, v := range cases {
		buf := NewFramedBuffer(0)
		if err := writeStopBit(buf, v); err != nil {
			t.Fatalf("writeStopBit(%d): %v", v, err)
		}
		buf.SetPosition(0)
		got, err := readStopBit(buf)
		if err != nil {
			t.Fatalf("readStopBit(%d): %v", v, err)
		}
		if got != v {
			t.Fatalf("round trip %d => %d", v, got)
		}
	}
}

func TestStopBitSmallValuesFitOneByte(t *testing.T) {
	buf := NewFramedBuffer(0)
	if err := writeStopBit(buf, 42); err != nil {
		t.Fatalf("writeStopBit: %v", err)
	}
	if buf.Position() != 1 {
		t.Fatalf("position after writing 42 = %d, want 1", buf.Position())
	}
}

func TestStringRoundTrip(t *testing.T) {
	buf := NewFramedBuffer(0)
	want := "the quick brown fox"
	if err := writeString(buf, want); err != nil {
		t.Fatalf("writeString: %v", err)
	}
	buf.SetPosition(0)
	got, err := readString(buf)
	if err != nil {
		t.Fatalf("readString: %v", err)
	}
	if got != want {
		t.Fatalf("readString = %q, want %q", got, want)
	}
}

func TestWriteEventTagRoundTrip(t *testing.T) {
	buf := NewFramedBuffer(0)
	if err := writeEventTag(buf, PUT_IF_ABSENT); err != nil {
		t.Fatalf("writeEventTag: %v", err)
	}
	buf.SetPosition(0)
	tag, err := buf.ReadU8()
	if err != nil {
		t.Fatalf("ReadU8: %v", err)
	}
	if Event(tag) != PUT_IF_ABSENT {
		t.Fatalf("tag = %v, want PUT_IF_ABSENT", Event(tag))
	}
}
