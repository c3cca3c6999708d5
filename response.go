package remotemap

import (
	"time"

	"github.com/hybscloud/remotemap/internal/bo"
)

// responseHeaderLen is the fixed portion of a response frame after its
// 4-byte size field: 1 byte isException + 8 bytes echoed transaction id.
const responseHeaderLen = 1 + 8

// responseReader reads one length-prefixed response frame, validates its
// echoed transaction id, and detects the exception flag.
type responseReader struct {
	conn    *connection
	buf     *FramedBuffer
	objects ObjectCodec
}

// read pulls one full response frame off the wire and validates it,
// leaving the FramedBuffer positioned at the payload start, ready for
// the caller to decode. endpoint is used only to build a RemoteFailure's
// display string.
func (r *responseReader) read(expected uint64, deadline time.Time, endpoint string) error {
	var sizeHdr [4]byte
	if err := r.conn.recvExact(sizeHdr[:], deadline); err != nil {
		return err
	}
	size := int(bo.SizeField(sizeHdr[:]))
	if size < responseHeaderLen {
		return ErrTruncated
	}

	r.buf.Clear()
	if r.buf.Capacity() < size+4 {
		r.buf.Resize(size+4, 0)
	}
	if err := r.buf.WriteBytes(sizeHdr[:]); err != nil {
		return err
	}

	payload := make([]byte, size)
	if err := r.conn.recvExact(payload, deadline); err != nil {
		return err
	}
	if err := r.buf.WriteBytes(payload); err != nil {
		return err
	}

	// Re-read from the start, past the size field we already consumed.
	r.buf.SetPosition(4)
	isException, err := r.buf.ReadU8()
	if err != nil {
		return err
	}
	echoed, err := r.buf.ReadU64()
	if err != nil {
		return err
	}
	if echoed != expected {
		return &ProtocolViolationError{Expected: expected, Got: echoed}
	}
	if isException == 1 {
		return r.decodeRemoteFailure(endpoint)
	}
	return nil
}

// decodeRemoteFailure reconstructs a RemoteFailure from the exception
// object carried in the payload.
func (r *responseReader) decodeRemoteFailure(endpoint string) error {
	obj, err := r.objects.ReadObject(r.buf)
	if err != nil {
		return err
	}
	rf := &RemoteFailure{Endpoint: endpoint}
	if m, ok := obj.(map[string]any); ok {
		if v, ok := m["class"].(string); ok {
			rf.ServerClass = v
		}
		if v, ok := m["message"].(string); ok {
			rf.ServerMessage = v
		}
	} else if m, ok := obj.(map[any]any); ok {
		// Untyped CBOR maps decode with interface{} keys.
		if v, ok := m["class"].(string); ok {
			rf.ServerClass = v
		}
		if v, ok := m["message"].(string); ok {
			rf.ServerMessage = v
		}
	} else if s, ok := obj.(string); ok {
		rf.ServerClass = "RemoteException"
		rf.ServerMessage = s
	}
	return rf
}
