package remotemap_test

import (
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"

	"github.com/hybscloud/remotemap"
	cborser "github.com/hybscloud/remotemap/serializer/cbor"
	"github.com/hybscloud/remotemap/serializer/text"
)

// wire is the test-side encode/decode half of the protocol, kept
// independent of the client's own implementation so a test failure means
// something, not a tautology. Every test in this file assumes a common
// little-endian target architecture for the native-endian portions of
// the wire, matching the overwhelming majority of CI and developer
// machines (amd64, arm64).

const handshakeByte = 0x81

func acceptAndHandshake(t *testing.T, conn net.Conn) {
	t.Helper()
	var b [1]byte
	_, err := io.ReadFull(conn, b[:])
	require.NoError(t, err)
	require.Equal(t, byte(handshakeByte), b[0])
	_, err = conn.Write([]byte{0x01})
	require.NoError(t, err)
}

type request struct {
	event   byte
	txn     uint64
	hasTxn  bool
	payload []byte
}

// withoutAck mirrors events.go's expectsResponse for the handful of
// events these tests exercise.
func withoutAck(event byte) bool {
	switch event {
	case 9, 11, 22: // PUT_WITHOUT_ACK, REMOVE_WITHOUT_ACK, PUT_ALL_WITHOUT_ACK
		return true
	default:
		return false
	}
}

func readRequest(t *testing.T, conn net.Conn) request {
	t.Helper()
	var hdr [1]byte
	_, err := io.ReadFull(conn, hdr[:])
	require.NoError(t, err)

	var sizeHdr [4]byte
	_, err = io.ReadFull(conn, sizeHdr[:])
	require.NoError(t, err)
	size := binary.BigEndian.Uint32(sizeHdr[:])

	body := make([]byte, size)
	_, err = io.ReadFull(conn, body)
	require.NoError(t, err)

	req := request{event: hdr[0]}
	if !withoutAck(hdr[0]) {
		req.hasTxn = true
		req.txn = binary.LittleEndian.Uint64(body[:8])
		req.payload = body[8:]
	} else {
		req.payload = body
	}
	return req
}

func writeResponse(t *testing.T, conn net.Conn, txn uint64, isException bool, payload []byte) {
	t.Helper()
	body := make([]byte, 0, 9+len(payload))
	if isException {
		body = append(body, 1)
	} else {
		body = append(body, 0)
	}
	var txnBuf [8]byte
	binary.LittleEndian.PutUint64(txnBuf[:], txn)
	body = append(body, txnBuf[:]...)
	body = append(body, payload...)

	var sizeHdr [4]byte
	binary.BigEndian.PutUint32(sizeHdr[:], uint32(len(body)))
	_, err := conn.Write(sizeHdr[:])
	require.NoError(t, err)
	_, err = conn.Write(body)
	require.NoError(t, err)
}

func taggedString(s string) []byte {
	out := make([]byte, 0, len(s)+1)
	out = append(out, byte(len(s)))
	out = append(out, s...)
	return out
}

func startServer(t *testing.T, handle func(t *testing.T, conn net.Conn)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go handle(t, conn)
		}
	}()
	return ln.Addr().String()
}

func newTestClient(t *testing.T, addr string, cfg remotemap.Config) *remotemap.Client[string, string] {
	t.Helper()
	cfg.RemoteAddress = addr
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Second
	}
	c := remotemap.NewClient[string, string](cfg, text.String{}, text.String{}, cborser.ObjectCodec{})
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClientPutGetRemoveRoundTrip(t *testing.T) {
	addr := startServer(t, func(t *testing.T, conn net.Conn) {
		defer conn.Close()
		acceptAndHandshake(t, conn)

		// PUT "k" "v" -> no prior value
		req := readRequest(t, conn)
		require.Equal(t, byte(8), req.event) // PUT
		writeResponse(t, conn, req.txn, false, []byte{0})

		// GET "k" -> present, "v"
		req = readRequest(t, conn)
		require.Equal(t, byte(7), req.event) // GET
		writeResponse(t, conn, req.txn, false, append([]byte{1}, taggedString("v")...))

		// REMOVE "k" -> prior value "v"
		req = readRequest(t, conn)
		require.Equal(t, byte(10), req.event) // REMOVE
		writeResponse(t, conn, req.txn, false, append([]byte{1}, taggedString("v")...))
	})

	client := newTestClient(t, addr, remotemap.Config{})

	_, had, err := client.Put("k", "v")
	require.NoError(t, err)
	require.False(t, had)

	v, ok, err := client.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", v)

	prior, had, err := client.Remove("k")
	require.NoError(t, err)
	require.True(t, had)
	require.Equal(t, "v", prior)
}

func TestClientGetAbsentKeyReturnsFalse(t *testing.T) {
	addr := startServer(t, func(t *testing.T, conn net.Conn) {
		defer conn.Close()
		acceptAndHandshake(t, conn)
		req := readRequest(t, conn)
		writeResponse(t, conn, req.txn, false, []byte{0})
	})

	client := newTestClient(t, addr, remotemap.Config{})
	_, ok, err := client.Get("missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestClientPutReturnsNullSendsWithoutAck(t *testing.T) {
	received := make(chan byte, 1)
	addr := startServer(t, func(t *testing.T, conn net.Conn) {
		defer conn.Close()
		acceptAndHandshake(t, conn)
		req := readRequest(t, conn)
		received <- req.event
		// No response is ever sent; PUT_WITHOUT_ACK must not wait for one.
	})

	client := newTestClient(t, addr, remotemap.Config{PutReturnsNull: true})
	_, had, err := client.Put("k", "v")
	require.NoError(t, err)
	require.False(t, had)

	select {
	case event := <-received:
		require.Equal(t, byte(9), event) // PUT_WITHOUT_ACK
	case <-time.After(time.Second):
		t.Fatal("server never saw the PUT_WITHOUT_ACK request")
	}
}

func TestClientSurfacesRemoteFailure(t *testing.T) {
	addr := startServer(t, func(t *testing.T, conn net.Conn) {
		defer conn.Close()
		acceptAndHandshake(t, conn)
		req := readRequest(t, conn)

		obj := map[string]any{"class": "IllegalStateException", "message": "map closed"}
		data, err := cbor.Marshal(obj)
		require.NoError(t, err)
		framed := append(stopBit(uint64(len(data))), data...)
		writeResponse(t, conn, req.txn, true, framed)
	})

	client := newTestClient(t, addr, remotemap.Config{})
	_, _, err := client.Get("k")
	require.Error(t, err)
	rf, ok := err.(*remotemap.RemoteFailure)
	require.True(t, ok, "err = %v, want *RemoteFailure", err)
	require.Equal(t, "IllegalStateException", rf.ServerClass)
	require.Equal(t, "map closed", rf.ServerMessage)
}

func TestClientRetriesOnMidExchangeDisconnect(t *testing.T) {
	attempt := 0
	addr := startServer(t, func(t *testing.T, conn net.Conn) {
		defer conn.Close()
		acceptAndHandshake(t, conn)
		attempt++
		req := readRequest(t, conn)
		if attempt == 1 {
			// Consume the request but never answer it, forcing the client
			// to observe a disconnect on the response read and retry.
			return
		}
		writeResponse(t, conn, req.txn, false, []byte{0})
	})

	client := newTestClient(t, addr, remotemap.Config{Timeout: 3 * time.Second})
	_, had, err := client.Put("k", "v")
	require.NoError(t, err)
	require.False(t, had)
}

func TestClientKeySetDrainsMultipleChunks(t *testing.T) {
	addr := startServer(t, func(t *testing.T, conn net.Conn) {
		defer conn.Close()
		acceptAndHandshake(t, conn)
		req := readRequest(t, conn)
		require.Equal(t, byte(13), req.event) // KEY_SET

		// First chunk: hasMore=1, 2 entries.
		chunk1 := []byte{1}
		chunk1 = append(chunk1, le32(2)...)
		chunk1 = append(chunk1, taggedString("a")...)
		chunk1 = append(chunk1, taggedString("b")...)
		writeResponse(t, conn, req.txn, false, chunk1)

		// Second chunk: same transaction id, hasMore=0, 1 entry.
		chunk2 := []byte{0}
		chunk2 = append(chunk2, le32(1)...)
		chunk2 = append(chunk2, taggedString("c")...)
		writeResponse(t, conn, req.txn, false, chunk2)
	})

	client := newTestClient(t, addr, remotemap.Config{})
	keys, err := client.KeySet()
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "b", "c"}, keys)
}

func le32(v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return b[:]
}

func stopBit(v uint64) []byte {
	var out []byte
	for v >= 0x80 {
		out = append(out, byte(v)|0x80)
		v >>= 7
	}
	return append(out, byte(v))
}
