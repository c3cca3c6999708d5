package remotemap

// requestBuilder stages one request in a shared FramedBuffer: it reserves
// the size/transaction-id slots, lets the caller encode the per-operation
// payload through write, and patches the size prefix once encoding
// succeeds.
type requestBuilder struct {
	buf          *FramedBuffer
	maxEntrySize int
}

func newRequestBuilder(buf *FramedBuffer, entrySizeHint int) *requestBuilder {
	m := entrySizeHint
	if m < minBufferCapacity {
		m = minBufferCapacity
	}
	return &requestBuilder{buf: buf, maxEntrySize: m}
}

// begin clears the buffer, writes the event tag, and reserves the size
// slot (and, if the event expects a response, the transaction-id slot).
// It returns the offset of the size slot, needed by finish to patch it.
func (rb *requestBuilder) begin(e Event) (sizeSlot int, err error) {
	rb.buf.Clear()
	if err := writeEventTag(rb.buf, e); err != nil {
		return 0, err
	}
	sizeSlot = rb.buf.Position()
	if err := rb.buf.Skip(4); err != nil {
		return 0, err
	}
	if e.expectsResponse() {
		if err := rb.buf.Skip(8); err != nil {
			return 0, err
		}
	}
	return sizeSlot, nil
}

// finish patches the size slot (and, if hasTxnID, the transaction-id
// slot at sizeSlot+4 with txnID) with the now-known payload length; the size field
// excludes itself.
func (rb *requestBuilder) finish(sizeSlot int, hasTxnID bool, txnID uint64) error {
	pos := rb.buf.Position()
	if hasTxnID {
		if err := rb.buf.WriteU64At(sizeSlot+4, txnID); err != nil {
			return err
		}
		return rb.buf.WriteSizeAt(sizeSlot, uint32(pos-sizeSlot-4))
	}
	return rb.buf.WriteSizeAt(sizeSlot, uint32(pos-sizeSlot-4))
}

// encodeWriter is satisfied by a closure wrapping one write attempt
// against rb.buf; it is retried by withResize after a buffer grow.
type encodeWriter func(buf *FramedBuffer) error

// withResize runs write against rb.buf; on OutOfSpace it grows the buffer
// and retries at the same anchor. anchor is the
// position the encoding attempt started from (before write's first call).
func (rb *requestBuilder) withResize(write encodeWriter) error {
	anchor := rb.buf.Position()
	for {
		err := write(rb.buf)
		if err == nil {
			return nil
		}
		oos, ok := isOutOfSpace(err)
		if !ok {
			return err
		}
		growth := rb.maxEntrySize
		if oos.Required > 0 {
			growth = oos.Required
		}
		rb.buf.Resize(rb.buf.Capacity()+growth, anchor)
	}
}

// observeEntrySize raises maxEntrySize to the largest single PutAll entry
// ever seen.
func (rb *requestBuilder) observeEntrySize(n int) {
	if n > rb.maxEntrySize {
		rb.maxEntrySize = n
	}
}
