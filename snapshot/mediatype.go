package snapshot

import (
	"github.com/tinylib/msgp/msgp"

	"github.com/coreruntime/kernel/kerrors"
)

// MediaType is the closed set of module source kinds, serialized as a
// single byte in trailer payloads. The numbering is part of the wire
// format; append new members, never renumber.
type MediaType uint8

const (
	MediaJavaScript MediaType = iota
	MediaJsx
	MediaMjs
	MediaCjs
	MediaTypeScript
	MediaMts
	MediaCts
	MediaDts
	MediaTsx
	MediaJSON
	MediaWasm
	MediaCSS
	MediaHTML
	MediaSQL
	MediaSourceMap
	MediaUnknown
)

// NeverTranspiled reports the invariant: "a module with type
// JSON is never transpiled."
func (m MediaType) NeverTranspiled() bool { return m == MediaJSON }

func (m MediaType) valid() bool { return m <= MediaUnknown }

func writeMediaType(w *msgp.Writer, m MediaType) error {
	return w.WriteUint8(uint8(m))
}

func readMediaType(r *msgp.Reader) (MediaType, error) {
	b, err := r.ReadUint8()
	if err != nil {
		return 0, err
	}
	m := MediaType(b)
	if !m.valid() {
		return 0, kerrors.New(kerrors.KindInvalidData, "unknown media type value: %d", b)
	}
	return m, nil
}
