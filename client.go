package remotemap

import (
	"sync"
	"time"

	logging "gopkg.in/op/go-logging.v1"
)

// Client is a stateless remote map client: every method dispatches one
// wire operation over a single long-lived TCP connection and blocks for
// its response. A Client is safe for concurrent use; all operations
// share one mutex, one FramedBuffer, and one connection.
type Client[K any, V any] struct {
	mu sync.Mutex

	cfg     Config
	keySer  Serializer[K]
	valSer  Serializer[V]
	objects ObjectCodec

	buf   *FramedBuffer
	conn  *connection
	clock transactionClock
	rb    *requestBuilder
	rr    *responseReader
	ex    *exchange

	closed bool
	async  *asyncExecutor[K, V]
}

// NewClient constructs a Client, attempts one connect (failure is
// swallowed; the first real operation will retry via lazyConnect), and
// returns immediately — construction must never fail just because the
// server is unreachable.
func NewClient[K any, V any](cfg Config, keySer Serializer[K], valSer Serializer[V], objects ObjectCodec) *Client[K, V] {
	nc := cfg.normalized()
	buf := NewFramedBuffer(nc.EntrySizeHint)
	conn := newConnection(nc)
	rr := &responseReader{conn: conn, buf: buf, objects: objects}

	c := &Client[K, V]{
		cfg:     nc,
		keySer:  keySer,
		valSer:  valSer,
		objects: objects,
		buf:     buf,
		conn:    conn,
		rb:      newRequestBuilder(buf, nc.EntrySizeHint),
		rr:      rr,
		ex:      &exchange{conn: conn, reader: rr, log: nc.Logger, metrics: nc.Metrics},
	}
	conn.attemptConnect(time.Now().Add(nc.Timeout))
	return c
}

func (c *Client[K, V]) deadline() time.Time { return time.Now().Add(c.cfg.Timeout) }

func (c *Client[K, V]) nextTxn() uint64 { return c.clock.next(time.Now().UnixMilli()) }

// Close releases the socket and, if the async executor was ever used,
// shuts it down with a 20-second grace period.
func (c *Client[K, V]) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.conn.closeSocket()
	if c.async != nil {
		c.async.shutdown(20 * time.Second)
	}
	return nil
}

func (c *Client[K, V]) checkOpen() error {
	if c.closed {
		return ErrClientClosed
	}
	return nil
}

// ---- simple argument-less / single-value-response operations ----

func (c *Client[K, V]) simpleExchange(e Event) (uint64, error) {
	sizeSlot, err := c.rb.begin(e)
	if err != nil {
		return 0, err
	}
	txn := c.nextTxn()
	if err := c.rb.finish(sizeSlot, true, txn); err != nil {
		return 0, err
	}
	dl := c.deadline()
	req := c.buf.Bytes()[:c.buf.Position()]
	if err := c.ex.run(req, true, txn, dl); err != nil {
		return 0, err
	}
	return txn, nil
}

// Size returns the map's size as reported by SIZE, a 32-bit value; see
// LongSize for the 64-bit form.
func (c *Client[K, V]) Size() (int32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return 0, err
	}
	if _, err := c.simpleExchange(SIZE); err != nil {
		return 0, err
	}
	return c.rr.buf.ReadI32()
}

// LongSize returns the map's size via LONG_SIZE.
func (c *Client[K, V]) LongSize() (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return 0, err
	}
	if _, err := c.simpleExchange(LONG_SIZE); err != nil {
		return 0, err
	}
	return c.rr.buf.ReadI64()
}

// IsEmpty reports whether the map has no entries.
func (c *Client[K, V]) IsEmpty() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return false, err
	}
	if _, err := c.simpleExchange(IS_EMPTY); err != nil {
		return false, err
	}
	return c.rr.buf.ReadBool()
}

// Clear removes every entry from the map.
func (c *Client[K, V]) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return err
	}
	_, err := c.simpleExchange(CLEAR)
	return err
}

// HashCode returns the server-computed hash code for the map. The call
// is delegated to the server and can be expensive; it is never invoked
// implicitly.
func (c *Client[K, V]) HashCode() (int32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return 0, err
	}
	if _, err := c.simpleExchange(HASH_CODE); err != nil {
		return 0, err
	}
	return c.rr.buf.ReadI32()
}

// String returns the server-rendered string form of the map (TO_STRING).
// Like HashCode this is potentially expensive and must be called
// explicitly, never from an implicit Stringer conversion.
func (c *Client[K, V]) String() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return "", err
	}
	if _, err := c.simpleExchange(TO_STRING); err != nil {
		return "", err
	}
	return readString(c.rr.buf)
}

// ---- key-keyed operations ----

func (c *Client[K, V]) keyExchange(e Event, key K) (uint64, error) {
	sizeSlot, err := c.rb.begin(e)
	if err != nil {
		return 0, err
	}
	if err := c.rb.withResize(func(buf *FramedBuffer) error {
		buf.SetPosition(sizeSlotPayloadStart(sizeSlot, e))
		return c.keySer.Write(key, buf, nil)
	}); err != nil {
		return 0, err
	}
	txn := c.nextTxn()
	if err := c.rb.finish(sizeSlot, e.expectsResponse(), txn); err != nil {
		return 0, err
	}
	dl := c.deadline()
	req := c.buf.Bytes()[:c.buf.Position()]
	if err := c.ex.run(req, e.expectsResponse(), txn, dl); err != nil {
		return 0, err
	}
	return txn, nil
}

// sizeSlotPayloadStart returns the offset where an operation's argument
// payload begins: right after the size slot, plus the transaction-id
// slot when the event carries one.
func sizeSlotPayloadStart(sizeSlot int, e Event) int {
	if e.expectsResponse() {
		return sizeSlot + 4 + 8
	}
	return sizeSlot + 4
}

// ContainsKey reports whether key is present.
func (c *Client[K, V]) ContainsKey(key K) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return false, err
	}
	if _, err := c.keyExchange(CONTAINS_KEY, key); err != nil {
		return false, err
	}
	return c.rr.buf.ReadBool()
}

// ContainsValue reports whether value is present anywhere in the map.
func (c *Client[K, V]) ContainsValue(value V) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return false, err
	}
	sizeSlot, err := c.rb.begin(CONTAINS_VALUE)
	if err != nil {
		return false, err
	}
	if err := c.rb.withResize(func(buf *FramedBuffer) error {
		buf.SetPosition(sizeSlotPayloadStart(sizeSlot, CONTAINS_VALUE))
		return c.valSer.Write(value, buf, nil)
	}); err != nil {
		return false, err
	}
	txn := c.nextTxn()
	if err := c.rb.finish(sizeSlot, true, txn); err != nil {
		return false, err
	}
	if err := c.ex.run(c.buf.Bytes()[:c.buf.Position()], true, txn, c.deadline()); err != nil {
		return false, err
	}
	return c.rr.buf.ReadBool()
}

// Get returns the value for key, and false if key is absent.
func (c *Client[K, V]) Get(key K) (V, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero V
	if err := c.checkOpen(); err != nil {
		return zero, false, err
	}
	if _, err := c.keyExchange(GET, key); err != nil {
		return zero, false, err
	}
	return c.readOptionalValue()
}

func (c *Client[K, V]) readOptionalValue() (V, bool, error) {
	var zero V
	present, err := c.rr.buf.ReadBool()
	if err != nil {
		return zero, false, err
	}
	if !present {
		return zero, false, nil
	}
	v, err := c.valSer.Read(c.rr.buf, nil)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

// putOrRemove implements the shared shape of Put/Remove: encode key (and,
// for Put, value), pick the _WITHOUT_ACK variant when configured, and
// decode a "prior value or null" response unless the ack is suppressed.
func (c *Client[K, V]) putOrRemove(withAck, withoutAck Event, suppressAck bool, encodeExtra func(buf *FramedBuffer) error) (V, bool, error) {
	var zero V
	e := withAck
	if suppressAck {
		e = withoutAck
	}
	sizeSlot, err := c.rb.begin(e)
	if err != nil {
		return zero, false, err
	}
	if err := c.rb.withResize(func(buf *FramedBuffer) error {
		buf.SetPosition(sizeSlotPayloadStart(sizeSlot, e))
		return encodeExtra(buf)
	}); err != nil {
		return zero, false, err
	}
	txn := c.nextTxn()
	if err := c.rb.finish(sizeSlot, e.expectsResponse(), txn); err != nil {
		return zero, false, err
	}
	if err := c.ex.run(c.buf.Bytes()[:c.buf.Position()], e.expectsResponse(), txn, c.deadline()); err != nil {
		return zero, false, err
	}
	if !e.expectsResponse() {
		return zero, false, nil
	}
	return c.readOptionalValue()
}

// Put stores value under key and returns the prior value, if any. If
// Config.PutReturnsNull is set, PUT_WITHOUT_ACK is used and Put returns
// immediately without reading a response.
func (c *Client[K, V]) Put(key K, value V) (V, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero V
	if err := c.checkOpen(); err != nil {
		return zero, false, err
	}
	return c.putOrRemove(PUT, PUT_WITHOUT_ACK, c.cfg.PutReturnsNull, func(buf *FramedBuffer) error {
		if err := c.keySer.Write(key, buf, nil); err != nil {
			return err
		}
		return c.valSer.Write(value, buf, nil)
	})
}

// Remove deletes key and returns the prior value, if any. If
// Config.RemoveReturnsNull is set, REMOVE_WITHOUT_ACK is used and Remove
// returns immediately without reading a response.
func (c *Client[K, V]) Remove(key K) (V, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero V
	if err := c.checkOpen(); err != nil {
		return zero, false, err
	}
	return c.putOrRemove(REMOVE, REMOVE_WITHOUT_ACK, c.cfg.RemoveReturnsNull, func(buf *FramedBuffer) error {
		return c.keySer.Write(key, buf, nil)
	})
}

// RemoveWithValue deletes key only if its current value equals value,
// returning whether a removal happened (REMOVE_WITH_VALUE).
func (c *Client[K, V]) RemoveWithValue(key K, value V) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return false, err
	}
	sizeSlot, err := c.rb.begin(REMOVE_WITH_VALUE)
	if err != nil {
		return false, err
	}
	if err := c.rb.withResize(func(buf *FramedBuffer) error {
		buf.SetPosition(sizeSlotPayloadStart(sizeSlot, REMOVE_WITH_VALUE))
		if err := c.keySer.Write(key, buf, nil); err != nil {
			return err
		}
		return c.valSer.Write(value, buf, nil)
	}); err != nil {
		return false, err
	}
	txn := c.nextTxn()
	if err := c.rb.finish(sizeSlot, true, txn); err != nil {
		return false, err
	}
	if err := c.ex.run(c.buf.Bytes()[:c.buf.Position()], true, txn, c.deadline()); err != nil {
		return false, err
	}
	return c.rr.buf.ReadBool()
}

// Replace sets key to value only if key is already present, returning
// the prior value (REPLACE).
func (c *Client[K, V]) Replace(key K, value V) (V, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero V
	if err := c.checkOpen(); err != nil {
		return zero, false, err
	}
	sizeSlot, err := c.rb.begin(REPLACE)
	if err != nil {
		return zero, false, err
	}
	if err := c.rb.withResize(func(buf *FramedBuffer) error {
		buf.SetPosition(sizeSlotPayloadStart(sizeSlot, REPLACE))
		if err := c.keySer.Write(key, buf, nil); err != nil {
			return err
		}
		return c.valSer.Write(value, buf, nil)
	}); err != nil {
		return zero, false, err
	}
	txn := c.nextTxn()
	if err := c.rb.finish(sizeSlot, true, txn); err != nil {
		return zero, false, err
	}
	if err := c.ex.run(c.buf.Bytes()[:c.buf.Position()], true, txn, c.deadline()); err != nil {
		return zero, false, err
	}
	return c.readOptionalValue()
}

// ReplaceExact sets key to newValue only if its current value equals
// oldValue, returning whether the swap happened
// (REPLACE_WITH_OLD_AND_NEW_VALUE).
func (c *Client[K, V]) ReplaceExact(key K, oldValue, newValue V) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return false, err
	}
	sizeSlot, err := c.rb.begin(REPLACE_WITH_OLD_AND_NEW_VALUE)
	if err != nil {
		return false, err
	}
	if err := c.rb.withResize(func(buf *FramedBuffer) error {
		buf.SetPosition(sizeSlotPayloadStart(sizeSlot, REPLACE_WITH_OLD_AND_NEW_VALUE))
		if err := c.keySer.Write(key, buf, nil); err != nil {
			return err
		}
		if err := c.valSer.Write(oldValue, buf, nil); err != nil {
			return err
		}
		return c.valSer.Write(newValue, buf, nil)
	}); err != nil {
		return false, err
	}
	txn := c.nextTxn()
	if err := c.rb.finish(sizeSlot, true, txn); err != nil {
		return false, err
	}
	if err := c.ex.run(c.buf.Bytes()[:c.buf.Position()], true, txn, c.deadline()); err != nil {
		return false, err
	}
	return c.rr.buf.ReadBool()
}

// PutIfAbsent stores value under key only if key is not already present,
// returning the prior value when it was (PUT_IF_ABSENT).
func (c *Client[K, V]) PutIfAbsent(key K, value V) (V, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero V
	if err := c.checkOpen(); err != nil {
		return zero, false, err
	}
	sizeSlot, err := c.rb.begin(PUT_IF_ABSENT)
	if err != nil {
		return zero, false, err
	}
	if err := c.rb.withResize(func(buf *FramedBuffer) error {
		buf.SetPosition(sizeSlotPayloadStart(sizeSlot, PUT_IF_ABSENT))
		if err := c.keySer.Write(key, buf, nil); err != nil {
			return err
		}
		return c.valSer.Write(value, buf, nil)
	}); err != nil {
		return zero, false, err
	}
	txn := c.nextTxn()
	if err := c.rb.finish(sizeSlot, true, txn); err != nil {
		return zero, false, err
	}
	if err := c.ex.run(c.buf.Bytes()[:c.buf.Position()], true, txn, c.deadline()); err != nil {
		return zero, false, err
	}
	return c.readOptionalValue()
}

// ---- collection queries (chunked) ----

// KeySet returns every key in the map (KEY_SET, streamed).
func (c *Client[K, V]) KeySet() ([]K, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	it, err := c.startStream(KEY_SET)
	if err != nil {
		return nil, err
	}
	raw, err := it.drain(func(buf *FramedBuffer) (any, error) { return c.keySer.Read(buf, nil) })
	if err != nil {
		return nil, err
	}
	out := make([]K, len(raw))
	for i, v := range raw {
		out[i] = v.(K)
	}
	return out, nil
}

// Values returns every value in the map (VALUES, streamed).
func (c *Client[K, V]) Values() ([]V, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	it, err := c.startStream(VALUES)
	if err != nil {
		return nil, err
	}
	raw, err := it.drain(func(buf *FramedBuffer) (any, error) { return c.valSer.Read(buf, nil) })
	if err != nil {
		return nil, err
	}
	out := make([]V, len(raw))
	for i, v := range raw {
		out[i] = v.(V)
	}
	return out, nil
}

// Entry is one key/value pair, as returned by EntrySet.
type Entry[K any, V any] struct {
	Key   K
	Value V
}

// EntrySet returns every key/value pair in the map (ENTRY_SET, streamed).
func (c *Client[K, V]) EntrySet() ([]Entry[K, V], error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	it, err := c.startStream(ENTRY_SET)
	if err != nil {
		return nil, err
	}
	raw, err := it.drain(func(buf *FramedBuffer) (any, error) {
		k, err := c.keySer.Read(buf, nil)
		if err != nil {
			return nil, err
		}
		v, err := c.valSer.Read(buf, nil)
		if err != nil {
			return nil, err
		}
		return Entry[K, V]{Key: k, Value: v}, nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]Entry[K, V], len(raw))
	for i, v := range raw {
		out[i] = v.(Entry[K, V])
	}
	return out, nil
}

func (c *Client[K, V]) startStream(e Event) (*chunkedIterator, error) {
	sizeSlot, err := c.rb.begin(e)
	if err != nil {
		return nil, err
	}
	txn := c.nextTxn()
	if err := c.rb.finish(sizeSlot, true, txn); err != nil {
		return nil, err
	}
	return c.ex.runStreamed(c.buf.Bytes()[:c.buf.Position()], txn, c.deadline())
}

// ---- bulk mutation ----

// PutAll writes every entry of m to the server. If Config.PutReturnsNull
// is set, PUT_ALL_WITHOUT_ACK is used and PutAll returns as soon as the
// request is sent.
//
// The entry count is written before any entry is encoded, so once
// encoding starts the server already expects exactly that many entries.
// If an entry then turns out to carry a value the Serializer cannot
// encode for a reason other than running out of buffer space, that
// mismatch is reported as a *TypeMismatchError and the connection is
// closed rather than resynchronized.
func (c *Client[K, V]) PutAll(m map[K]V) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return err
	}
	e := PUT_ALL
	if c.cfg.PutReturnsNull {
		e = PUT_ALL_WITHOUT_ACK
	}
	sizeSlot, err := c.rb.begin(e)
	if err != nil {
		return err
	}

	total := len(m)
	entriesSoFar := 0
	index := 0
	if err := c.rb.withResize(func(buf *FramedBuffer) error {
		buf.SetPosition(sizeSlotPayloadStart(sizeSlot, e))
		return writeStopBit(buf, uint64(total))
	}); err != nil {
		return err
	}

	for k, v := range m {
		entryStart := c.buf.Position()
		if entriesSoFar > 0 && c.buf.Remaining() < c.rb.maxEntrySize {
			estimate := entryStart * total / entriesSoFar
			if estimate > c.buf.Capacity() {
				c.buf.Resize(estimate, entryStart)
			}
		}
		if err := c.rb.withResize(func(buf *FramedBuffer) error {
			buf.SetPosition(entryStart)
			if err := c.keySer.Write(k, buf, nil); err != nil {
				if _, ok := isOutOfSpace(err); ok {
					return err
				}
				return &TypeMismatchError{Index: index, Err: err}
			}
			if err := c.valSer.Write(v, buf, nil); err != nil {
				if _, ok := isOutOfSpace(err); ok {
					return err
				}
				return &TypeMismatchError{Index: index, Err: err}
			}
			return nil
		}); err != nil {
			if tm, ok := err.(*TypeMismatchError); ok {
				c.conn.closeSocket()
				return tm
			}
			return err
		}
		c.rb.observeEntrySize(c.buf.Position() - entryStart)
		entriesSoFar++
		index++
	}

	txn := c.nextTxn()
	if err := c.rb.finish(sizeSlot, e.expectsResponse(), txn); err != nil {
		return err
	}
	return c.ex.run(c.buf.Bytes()[:c.buf.Position()], e.expectsResponse(), txn, c.deadline())
}

// ---- function payload operations ----

// MapForKey sends fn, an opaque server-side function object encoded via
// the Client's ObjectCodec, to be applied to the value at key, and
// returns its result decoded the same way (MAP_FOR_KEY).
func (c *Client[K, V]) MapForKey(key K, fn any) (any, error) {
	return c.functionCall(MAP_FOR_KEY, key, fn)
}

// UpdateForKey is like MapForKey but the function is expected to mutate
// the stored value server-side (UPDATE_FOR_KEY).
func (c *Client[K, V]) UpdateForKey(key K, fn any) (any, error) {
	return c.functionCall(UPDATE_FOR_KEY, key, fn)
}

func (c *Client[K, V]) functionCall(e Event, key K, fn any) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	sizeSlot, err := c.rb.begin(e)
	if err != nil {
		return nil, err
	}
	if err := c.rb.withResize(func(buf *FramedBuffer) error {
		buf.SetPosition(sizeSlotPayloadStart(sizeSlot, e))
		if err := c.keySer.Write(key, buf, nil); err != nil {
			return err
		}
		return c.objects.WriteObject(fn, buf)
	}); err != nil {
		return nil, err
	}
	txn := c.nextTxn()
	if err := c.rb.finish(sizeSlot, true, txn); err != nil {
		return nil, err
	}
	if err := c.ex.run(c.buf.Bytes()[:c.buf.Position()], true, txn, c.deadline()); err != nil {
		return nil, err
	}
	return c.objects.ReadObject(c.rr.buf)
}

// ---- unsupported operations ----

// GetUsing, AcquireUsing, GetUsingLocked, AcquireUsingLocked, GetAllFile,
// PutAllFile, and MapFile are not reachable over the wire protocol this
// client speaks; each raises ErrUnsupported synchronously with no I/O.
func (c *Client[K, V]) GetUsing(K, V) (V, bool, error) { var z V; return z, false, ErrUnsupported }
func (c *Client[K, V]) AcquireUsing(K, V) (V, error)   { var z V; return z, ErrUnsupported }
func (c *Client[K, V]) GetUsingLocked(K, V) (V, bool, error) {
	var z V
	return z, false, ErrUnsupported
}
func (c *Client[K, V]) AcquireUsingLocked(K, V) (V, error) { var z V; return z, ErrUnsupported }
func (c *Client[K, V]) GetAllFile(path string) error       { return ErrUnsupported }
func (c *Client[K, V]) PutAllFile(path string) error       { return ErrUnsupported }
func (c *Client[K, V]) MapFile() (string, error)           { return "", ErrUnsupported }

// logger exposes the configured logger for the async wrapper (future.go),
// which lives in the same package but is constructed lazily.
func (c *Client[K, V]) logger() *logging.Logger { return c.cfg.Logger }
