package remotemap

import (
	"time"

	logging "gopkg.in/op/go-logging.v1"
)

// exchange orchestrates a single request/response round trip: retry on
// transport-level disconnect, deadline enforcement, and reconnect.
type exchange struct {
	conn    *connection
	reader  *responseReader
	log     *logging.Logger
	metrics *Metrics
}

// run sends request and, if expectsResponse, reads and validates the
// matching response frame (leaving it decoded in ex.reader.buf for the
// caller), retrying the whole send on a detected mid-exchange disconnect.
// A retried send reuses the same transaction id both writes carry.
func (ex *exchange) run(request []byte, expectsResponse bool, txn uint64, deadline time.Time) error {
	start := time.Now()
	defer func() { ex.metrics.exchangeDuration.Observe(time.Since(start).Seconds()) }()

	// The response is read into the same FramedBuffer the request was
	// encoded in, so keep a private copy for a resend.
	request = append([]byte(nil), request...)

	for {
		if !ex.conn.connected() {
			if err := ex.conn.lazyConnect(deadline); err != nil {
				return err
			}
		}

		err := ex.conn.sendAll(request, deadline)
		if err == nil {
			if !expectsResponse {
				return nil
			}
			ex.reader.buf.Clear()
			err = ex.reader.read(txn, deadline, ex.conn.addr)
			if err == nil {
				return nil
			}
		}

		if err == ErrDisconnected {
			ex.log.Debugf("%s: disconnected mid-exchange, reconnecting", ex.conn.name)
			if !time.Now().Before(deadline) {
				return ErrRemoteCallTimeout
			}
			if cerr := ex.conn.lazyConnect(deadline); cerr != nil {
				return cerr
			}
			continue
		}

		if err == ErrRemoteCallTimeout {
			ex.conn.closeSocket()
			return err
		}

		if _, ok := err.(*ProtocolViolationError); ok {
			ex.log.Warningf("%s: %v, closing connection", ex.conn.name, err)
			ex.conn.closeSocket()
			return err
		}

		if rf, ok := err.(*RemoteFailure); ok {
			ex.metrics.remoteFailures.Inc()
			return rf
		}

		// Any other I/O error closes the connection; the next operation
		// reconnects.
		ex.conn.closeSocket()
		return err
	}
}

// runStreamed is like run but for the chunked-response operations
// (KeySet/Values/EntrySet): the caller then drives the returned iterator.
func (ex *exchange) runStreamed(request []byte, txn uint64, deadline time.Time) (*chunkedIterator, error) {
	if err := ex.run(request, true, txn, deadline); err != nil {
		return nil, err
	}
	return &chunkedIterator{
		reader:   ex.reader,
		txn:      txn,
		deadline: deadline,
		endpoint: ex.conn.addr,
	}, nil
}
