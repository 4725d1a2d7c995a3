// Sniffer implements the prefix demux: a single,
// non-blocking-beyond-what's-needed peek at a stream's leading bytes,
// replayed to whatever reads the stream afterward regardless of the
// verdict. The protocol/handler is decided from a fixed prefix before
// any full parsing happens.
package servemux

import (
	"bytes"
	"io"
)

// HTTP2Preface is the fixed 24-byte connection preface a client sends
// before the first HTTP/2 frame.
const HTTP2Preface = "PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n"

// Sniff compares the leading len(prefix) bytes of r against prefix. It
// stops reading as soon as the verdict is known - on the first byte that
// diverges, or once the full prefix has matched - and caps every read so
// the total consumed never exceeds twice the prefix length. A short
// stream (peer closed early) is treated as a non-match rather than an
// error. The returned io.Reader always replays every byte Sniff consumed,
// so the caller sees the original stream regardless of the verdict.
func Sniff(r io.Reader, prefix string) (matched bool, rewound io.Reader, err error) {
	want := []byte(prefix)
	buf := make([]byte, 0, len(want))
	for len(buf) < len(want) {
		chunk := make([]byte, len(want)-len(buf))
		n, readErr := r.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if !bytes.HasPrefix(want, buf) {
			// Divergence is decisive; never wait on more bytes.
			return false, io.MultiReader(bytes.NewReader(buf), r), nil
		}
		if readErr == io.EOF {
			// Not enough bytes to ever match; a zero-length stream yields
			// (false, empty stream), not an error.
			return false, io.MultiReader(bytes.NewReader(buf), r), nil
		}
		if readErr != nil {
			return false, io.MultiReader(bytes.NewReader(buf), r), readErr
		}
	}
	return true, io.MultiReader(bytes.NewReader(buf), r), nil
}

// SniffHTTP2 decides whether an incoming connection opens with the HTTP/2
// preface, ahead of handing it to an HTTP/1 or HTTP/2 handler on the same
// listener.
func SniffHTTP2(r io.Reader) (isH2 bool, rewound io.Reader, err error) {
	return Sniff(r, HTTP2Preface)
}
