package resource

// BufferResource is a minimal concrete Resource over an in-memory byte
// buffer, used for HTTP bodies and other framed, fully-buffered content
//. It demonstrates the
// capability-set defaults: Read is implemented via ReadInto, WriteAll via
// the default loop, and the resource latches write errors.
type BufferResource struct {
	DefaultResource
	data   []byte
	off    int
	closed bool
}

func NewBufferResource(data []byte) *BufferResource {
	return &BufferResource{data: data}
}

func (b *BufferResource) Name() string { return "BufferResource" }

func (b *BufferResource) Read(limit int) ([]byte, error) {
	return ReadViaReadInto(b, limit)
}

func (b *BufferResource) ReadInto(buf []byte) (int, error) {
	if err := b.checkLatched(); err != nil {
		return 0, err
	}
	if b.off >= len(b.data) {
		return 0, nil // EOF: zero-length read
	}
	n := copy(buf, b.data[b.off:])
	b.off += n
	return n, nil
}

func (b *BufferResource) Write(buf []byte) (WriteOutcome, error) {
	if err := b.checkLatched(); err != nil {
		return WriteOutcome{}, err
	}
	b.data = append(b.data, buf...)
	return WriteOutcome{Full: true, NWritten: len(buf)}, nil
}

func (b *BufferResource) WriteAll(buf []byte) error {
	return WriteAllVia(b, buf)
}

func (b *BufferResource) Shutdown() error {
	b.closed = true
	return nil
}

func (b *BufferResource) Close() { b.closed = true }

func (b *BufferResource) SizeHint() (uint64, uint64, bool) {
	n := uint64(len(b.data) - b.off)
	return n, n, true
}

var _ Resource = (*BufferResource)(nil)

// PartialWriteResource is used by TestWriteAllLoopsOnPartial in
// resource_test.go to exercise the WriteAll-loops-on-Partial boundary behavior.
type PartialWriteResource struct {
	DefaultResource
	written    []byte
	writeCalls int
	chunk      int // bytes accepted per call before Full
}

func NewPartialWriteResource(chunk int) *PartialWriteResource {
	return &PartialWriteResource{chunk: chunk}
}

func (p *PartialWriteResource) Write(buf []byte) (WriteOutcome, error) {
	p.writeCalls++
	if len(buf) <= p.chunk {
		p.written = append(p.written, buf...)
		return WriteOutcome{Full: true, NWritten: len(buf)}, nil
	}
	p.written = append(p.written, buf[:p.chunk]...)
	return WriteOutcome{Full: false, NWritten: p.chunk}, nil
}

func (p *PartialWriteResource) WriteAll(buf []byte) error {
	return WriteAllVia(p, buf)
}

func (p *PartialWriteResource) Written() []byte { return p.written }
func (p *PartialWriteResource) WriteCalls() int  { return p.writeCalls }

var _ Resource = (*PartialWriteResource)(nil)
