// Package remotemap implements a stateless client for a distributed
// key-value map service. Every operation (Get, Put, Remove, Replace,
// iteration, …) is serialized into a framed binary request, sent over a
// single long-lived TCP connection, and matched to its response by a
// monotonically increasing transaction id.
//
// The client owns no data of its own: it is a thin request/response
// engine plus a growable send/receive buffer. Key and value encoding is
// delegated to a Serializer supplied by the caller; see the serializer/
// subpackages for reference implementations.
//
// Wire format (request):
//
//	[ 1 byte  event tag ]
//	[ 4 bytes size = payload length after this field ]
//	[ 8 bytes transaction id ]     (omitted for *_WITHOUT_ACK variants)
//	[ payload ]
//
// Wire format (response):
//
//	[ 4 bytes size = remaining frame length ]
//	[ 1 byte  isException flag ]
//	[ 8 bytes transaction id, echoing the request ]
//	[ payload | serialized remote exception ]
//
// The two 4-byte size fields are always big-endian; every other integer
// on the wire, including the transaction id, is native-endian. Collection
// queries (KeySet, Values, EntrySet) stream their result as a sequence of
// chunks sharing the request's transaction id.
//
// A Client is safe for concurrent use: every operation holds an internal
// mutex for the duration of its request/response round trip, since the
// socket and the scratch buffer are shared state. Callers needing
// parallelism should use multiple Client instances.
package remotemap
