// Package bo selects the byte order this client's FramedBuffer uses for
// everything except the wire's two fixed-big-endian size fields, which
// SizeField/PutSizeField encode regardless of the host's native order.
//
// Native byte order is resolved via build tags against the small set of
// architectures this client ships for; an unsupported GOARCH fails the
// build rather than guessing at runtime.
package bo
