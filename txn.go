package remotemap

// transactionClock generates strictly monotonically increasing
// transaction ids derived from wall-clock milliseconds.
// It is not safe for concurrent use by itself; the Client's operation
// mutex serializes access.
type transactionClock struct {
	last uint64
}

// next returns nowMs if it is greater than the last id issued, or
// last+1 if nowMs would repeat or regress it. Either way the returned id
// is stored as the new last, so successive calls never go backwards even
// across clock adjustments.
func (c *transactionClock) next(nowMs int64) uint64 {
	n := uint64(nowMs)
	if n <= c.last {
		c.last++
	} else {
		c.last = n
	}
	return c.last
}
