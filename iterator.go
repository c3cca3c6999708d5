package remotemap

import "time"

// chunkedIterator reads a multi-chunk streaming response (KeySet, Values,
// EntrySet): each chunk is itself a response frame sharing the request's
// transaction id, carrying a continuation flag and an entry count.
type chunkedIterator struct {
	reader   *responseReader
	txn      uint64
	deadline time.Time
	endpoint string

	done bool
}

// entry is one decoded key/value/entry unit, shaped by the caller's
// decode function; see decodeEntry.
type decodeEntry func(buf *FramedBuffer) (any, error)

// next reads the next chunk's entries, decoding each with decode, and
// reports whether more chunks remain after it.
func (it *chunkedIterator) next(decode decodeEntry) ([]any, error) {
	if it.done {
		return nil, nil
	}

	hasMore, err := it.reader.buf.ReadBool()
	if err != nil {
		return nil, err
	}
	count, err := it.reader.buf.ReadU32()
	if err != nil {
		return nil, err
	}

	entries := make([]any, 0, count)
	for i := uint32(0); i < count; i++ {
		v, err := decode(it.reader.buf)
		if err != nil {
			return nil, err
		}
		entries = append(entries, v)
	}

	if !hasMore {
		it.done = true
		return entries, nil
	}

	// Preserve any unread trailing bytes, then pull the next frame
	// sharing the same transaction id.
	it.reader.buf.Compact()
	if err := it.reader.read(it.txn, it.deadline, it.endpoint); err != nil {
		return nil, err
	}
	return entries, nil
}

// drain reads every remaining chunk, concatenating their entries in
// arrival order.
func (it *chunkedIterator) drain(decode decodeEntry) ([]any, error) {
	var all []any
	for !it.done {
		chunk, err := it.next(decode)
		if err != nil {
			return nil, err
		}
		all = append(all, chunk...)
	}
	return all, nil
}
