package remotemap

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"golang.org/x/time/rate"
	logging "gopkg.in/op/go-logging.v1"
)

// handshakeByte is the single byte the client sends to open a session,
// 0x81 (-127 as signed).
const handshakeByte byte = 0x81

// connection owns a TCP socket and the handshake/send/recv primitives.
// It has two states: disconnected (sock == nil) and connected. A
// connection is never exposed outside Client.
type connection struct {
	addr    string
	name    string
	log     *logging.Logger
	metrics *Metrics
	limiter *rate.Limiter

	sock       net.Conn
	serverID   byte // opaque handshake identifier from the server, logged only
	dialerFunc func(ctx context.Context, network, address string) (net.Conn, error)
}

func newConnection(cfg Config) *connection {
	return &connection{
		addr:    cfg.RemoteAddress,
		name:    cfg.Name,
		log:     cfg.Logger,
		metrics: cfg.Metrics,
		limiter: rate.NewLimiter(cfg.ReconnectRateLimit, cfg.ReconnectBurst),
		dialerFunc: func(ctx context.Context, network, address string) (net.Conn, error) {
			d := net.Dialer{}
			return d.DialContext(ctx, network, address)
		},
	}
}

// connected reports whether the connection currently holds a live socket.
func (c *connection) connected() bool { return c.sock != nil }

// attemptConnect performs a single connect attempt during Client
// construction; I/O failure is swallowed and the socket is left nil —
// the first real operation will try again via lazyConnect.
func (c *connection) attemptConnect(deadline time.Time) {
	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()
	sock, err := c.dialerFunc(ctx, "tcp", c.addr)
	if err != nil {
		c.log.Debugf("%s: initial connect to %s failed, will retry lazily: %v", c.name, c.addr, err)
		return
	}
	if err := c.finishHandshake(sock, deadline); err != nil {
		c.log.Debugf("%s: initial handshake with %s failed: %v", c.name, c.addr, err)
		_ = sock.Close()
		return
	}
	c.sock = sock
}

// lazyConnect closes any existing socket, then loops opening a fresh one
// and handshaking until it succeeds or deadline passes. Dial attempts are
// paced by c.limiter rather than a busy loop. A dial error that is a
// net.Error (which includes the *net.OpError the dialer wraps every
// failure in) is retried; any other dial error propagates immediately.
func (c *connection) lazyConnect(deadline time.Time) error {
	c.closeSocket()

	for {
		if !time.Now().Before(deadline) {
			return ErrRemoteCallTimeout
		}
		waitCtx, cancelWait := context.WithDeadline(context.Background(), deadline)
		err := c.limiter.WaitN(waitCtx, 1)
		cancelWait()
		if err != nil {
			return ErrRemoteCallTimeout
		}

		dialCtx, cancel := context.WithDeadline(context.Background(), deadline)
		sock, err := c.dialerFunc(dialCtx, "tcp", c.addr)
		cancel()
		if err != nil {
			if !time.Now().Before(deadline) {
				return ErrRemoteCallTimeout
			}
			if _, ok := err.(net.Error); ok {
				c.log.Debugf("%s: dial %s failed, retrying: %v", c.name, c.addr, err)
				continue
			}
			return &IORuntimeError{Err: err}
		}

		if err := setTCPNoDelay(sock); err != nil {
			_ = sock.Close()
			return &IORuntimeError{Err: err}
		}

		if err := c.finishHandshake(sock, deadline); err != nil {
			_ = sock.Close()
			if err == ErrRemoteCallTimeout {
				return err
			}
			c.log.Debugf("%s: handshake with %s failed, retrying: %v", c.name, c.addr, err)
			continue
		}

		c.sock = sock
		c.metrics.reconnects.Inc()
		c.log.Infof("%s: connected to %s (server id 0x%02x)", c.name, c.addr, c.serverID)
		return nil
	}
}

func setTCPNoDelay(sock net.Conn) error {
	if tc, ok := sock.(*net.TCPConn); ok {
		return tc.SetNoDelay(true)
	}
	return nil
}

// finishHandshake writes the single handshake byte and reads the server's
// one-byte identifier, both bounded by deadline.
func (c *connection) finishHandshake(sock net.Conn, deadline time.Time) error {
	if err := sock.SetDeadline(deadline); err != nil {
		return &IORuntimeError{Err: err}
	}
	if _, err := sock.Write([]byte{handshakeByte}); err != nil {
		return classifyIOError(err)
	}
	var resp [1]byte
	if _, err := io.ReadFull(sock, resp[:]); err != nil {
		return classifyIOError(err)
	}
	c.serverID = resp[0]
	return nil
}

// sendAll writes p to the socket, looping until fully drained, checking
// the deadline on every partial write.
func (c *connection) sendAll(p []byte, deadline time.Time) error {
	if c.sock == nil {
		return ErrDisconnected
	}
	if err := c.sock.SetWriteDeadline(deadline); err != nil {
		return &IORuntimeError{Err: err}
	}
	n, err := writeFull(c.sock, p)
	c.metrics.bytesSent.Add(float64(n))
	if err != nil {
		return classifyIOError(err)
	}
	return nil
}

func writeFull(w io.Writer, p []byte) (int, error) {
	total := 0
	for total < len(p) {
		n, err := w.Write(p[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.ErrShortWrite
		}
	}
	return total, nil
}

// recvExact fills buf completely from the socket, checking the deadline;
// end-of-stream before buf is full is reported as ErrDisconnected
// via io.ReadFull.
func (c *connection) recvExact(buf []byte, deadline time.Time) error {
	if c.sock == nil {
		return ErrDisconnected
	}
	if err := c.sock.SetReadDeadline(deadline); err != nil {
		return &IORuntimeError{Err: err}
	}
	n, err := io.ReadFull(c.sock, buf)
	c.metrics.bytesReceived.Add(float64(n))
	if err != nil {
		return classifyIOError(err)
	}
	return nil
}

// classifyIOError maps a raw I/O error into the client's error taxonomy,
// which exchange branches on: disconnects are retried, timeouts are
// terminal for the operation (but not the client), anything else closes
// the connection.
func classifyIOError(err error) error {
	if err == nil {
		return nil
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF || err == io.ErrClosedPipe {
		return ErrDisconnected
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return ErrRemoteCallTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrDisconnected
	}
	return &IORuntimeError{Err: err}
}

// closeSocket best-effort closes the current socket and clears it, so
// future operations see a clean disconnected state.
func (c *connection) closeSocket() {
	if c.sock != nil {
		_ = c.sock.Close()
		c.sock = nil
	}
}
