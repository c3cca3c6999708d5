package remotemap

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
	logging "gopkg.in/op/go-logging.v1"
)

// Config is the immutable collaborator struct callers build before
// constructing a Client. Loading it from a file, flags, or
// environment is explicitly out of scope for the core client — see
// config/ for an optional YAML-backed loader used by cmd/remotemapctl.
type Config struct {
	// RemoteAddress is the "host:port" the client dials.
	RemoteAddress string

	// Timeout bounds every blocking operation: connect, handshake, send,
	// recv. Each operation computes its own deadline as time.Now().Add(Timeout).
	Timeout time.Duration

	// Name identifies this client instance in logs.
	Name string

	// PutReturnsNull makes Put use PUT_WITHOUT_ACK and return immediately
	// without reading a response.
	PutReturnsNull bool

	// RemoveReturnsNull makes Remove use REMOVE_WITHOUT_ACK symmetrically.
	RemoveReturnsNull bool

	// EntrySizeHint seeds maxEntrySize; the floor is 128.
	EntrySizeHint int

	// Logger receives connection lifecycle and exchange diagnostics. A
	// nil Logger is replaced with a logger whose output goes to a
	// discarding backend (see silentLogger), so library use in tests
	// stays silent by default.
	Logger *logging.Logger

	// Metrics receives exchange/connection counters and histograms. A nil
	// Metrics uses a fresh collector set that is not registered anywhere.
	Metrics *Metrics

	// ReconnectRateLimit bounds how fast lazyConnect retries dialing
	// after a failed attempt, using a token-bucket limiter instead of a
	// busy loop. Zero selects a conservative default of 10 attempts/s
	// with a burst of 1.
	ReconnectRateLimit rate.Limit
	ReconnectBurst     int
}

const defaultReconnectRate = rate.Limit(10)

func (c *Config) normalized() Config {
	out := *c
	if out.EntrySizeHint < minBufferCapacity {
		out.EntrySizeHint = minBufferCapacity
	}
	if out.Timeout <= 0 {
		out.Timeout = 30 * time.Second
	}
	if out.Logger == nil {
		out.Logger = silentLogger()
	}
	if out.Metrics == nil {
		out.Metrics = NewMetrics(nil)
	}
	if out.ReconnectRateLimit <= 0 {
		out.ReconnectRateLimit = defaultReconnectRate
	}
	if out.ReconnectBurst <= 0 {
		out.ReconnectBurst = 1
	}
	return out
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// silentOnce installs a discarding backend exactly once. go-logging keeps
// its backend as package-level state, so the first Client constructed
// with a nil Config.Logger replaces whatever process-wide backend was
// installed before it; a backend installed afterwards (via NewLogger) is
// kept, since this default is never installed a second time.
var silentOnce sync.Once

func silentLogger() *logging.Logger {
	silentOnce.Do(func() {
		logging.SetBackend(logging.NewLogBackend(discardWriter{}, "", 0))
	})
	return logging.MustGetLogger("remotemap")
}

// NewLogger installs backend as the process-wide go-logging backend and
// returns a *logging.Logger for module. Call this once per process
// before constructing any Client that should log.
func NewLogger(backend logging.Backend, module string) *logging.Logger {
	logging.SetBackend(backend)
	return logging.MustGetLogger(module)
}
