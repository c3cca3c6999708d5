package remotemap

import "testing"

func TestTransactionClockMonotonicUnderAdvancingClock(t *testing.T) {
	var c transactionClock
	a := c.next(1000)
	b := c.next(2000)
	if b <= a {
		t.Fatalf("b=%d should be > a=%d", b, a)
	}
}

func TestTransactionClockBumpsOnRepeatedMillisecond(t *testing.T) {
	var c transactionClock
	a := c.next(1000)
	b := c.next(1000)
	if b <= a {
		t.Fatalf("repeated clock reading: b=%d should be > a=%d", b, a)
	}
}

func TestTransactionClockBumpsOnClockRegression(t *testing.T) {
	var c transactionClock
	a := c.next(5000)
	b := c.next(4000) // clock stepped backwards
	if b <= a {
		t.Fatalf("regressed clock reading: b=%d should be > a=%d", b, a)
	}
}

func TestTransactionClockNeverRepeats(t *testing.T) {
	var c transactionClock
	seen := make(map[uint64]bool)
	clock := int64(100)
	for i := 0; i < 1000; i++ {
		id := c.next(clock)
		if seen[id] {
			t.Fatalf("transaction id %d repeated at iteration %d", id, i)
		}
		seen[id] = true
		if i%3 == 0 {
			clock-- // occasionally regress to exercise the bump path
		}
	}
}
