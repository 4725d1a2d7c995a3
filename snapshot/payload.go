package snapshot

import (
	"bytes"
	"io"

	"github.com/pierrec/lz4/v3"
	"github.com/tinylib/msgp/msgp"

	"github.com/coreruntime/kernel/kerrors"
)

// Payload is the standalone-binary trailer's content before it is wrapped
// in the outer [len][magic] framing: metadata, then the remote-module
// store, then the virtual FS tree, always in that order.
type Payload struct {
	Metadata    *Metadata
	ModuleStore *ModuleStore
	VFS         *VirtualFS
}

// compressFlag marks whether Serialize applied lz4 framing to the encoded
// sections, the one byte of structure the payload carries beyond its
// three named sections.
const (
	compressNone byte = 0
	compressLZ4  byte = 1
)

// Serialize encodes p deterministically: each section is written in a
// fixed field order (never Go map iteration order) so identical inputs
// produce byte-identical output run to run. compress selects whether the
// encoded sections are lz4-framed.
func Serialize(p *Payload, compress bool) ([]byte, error) {
	var raw bytes.Buffer
	w := msgp.NewWriter(&raw)
	if err := p.Metadata.encode(w); err != nil {
		return nil, kerrors.Wrap(kerrors.KindInvalidData, err, "encode metadata")
	}
	if err := p.ModuleStore.encode(w); err != nil {
		return nil, kerrors.Wrap(kerrors.KindInvalidData, err, "encode module store")
	}
	if err := p.VFS.encode(w); err != nil {
		return nil, kerrors.Wrap(kerrors.KindInvalidData, err, "encode vfs")
	}
	if err := w.Flush(); err != nil {
		return nil, kerrors.Wrap(kerrors.KindIo, err, "flush payload")
	}

	var out bytes.Buffer
	if !compress {
		out.WriteByte(compressNone)
		out.Write(raw.Bytes())
		return out.Bytes(), nil
	}
	out.WriteByte(compressLZ4)
	zw := lz4.NewWriter(&out)
	if _, err := zw.Write(raw.Bytes()); err != nil {
		return nil, kerrors.Wrap(kerrors.KindIo, err, "lz4-compress payload")
	}
	if err := zw.Close(); err != nil {
		return nil, kerrors.Wrap(kerrors.KindIo, err, "close lz4 writer")
	}
	return out.Bytes(), nil
}

// Deserialize parses bytes produced by Serialize.
func Deserialize(data []byte) (*Payload, error) {
	if len(data) == 0 {
		return nil, kerrors.New(kerrors.KindInvalidData, "empty payload")
	}
	flag, body := data[0], data[1:]

	var raw io.Reader = bytes.NewReader(body)
	switch flag {
	case compressNone:
	case compressLZ4:
		raw = lz4.NewReader(bytes.NewReader(body))
	default:
		return nil, kerrors.New(kerrors.KindInvalidData, "unknown payload compression flag %d", flag)
	}

	r := msgp.NewReader(raw)
	meta, err := decodeMetadata(r)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.KindInvalidData, err, "decode metadata")
	}
	store, err := decodeModuleStore(r)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.KindInvalidData, err, "decode module store")
	}
	vfs, err := decodeVirtualFS(r)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.KindInvalidData, err, "decode vfs")
	}
	return &Payload{Metadata: meta, ModuleStore: store, VFS: vfs}, nil
}
