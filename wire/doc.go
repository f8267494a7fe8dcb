// Package wire defines the inbound message payload shapes and a CBOR
// envelope codec.
//
// The engine consumes Message values directly; transports that carry
// serialized bytes use Encode/Decode at the boundary. The codec is
// deliberately minimal; delivery, ordering, and reliability are the
// transport's concern, not the engine's.
package wire
