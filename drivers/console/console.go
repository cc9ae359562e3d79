// Package console writes text through the kernel console capsule.
//
// Writes are futures: a task awaits them like any other event, so the
// executor keeps polling every other task while the kernel drains the
// buffer.
package console

import (
	"fmt"

	"libtock/futures"
	"libtock/syscalls"
)

const DriverNumber = 0x00001

const (
	cmdWrite = 1

	allowWrite     = 1
	subscribeWrite = 1

	// BufferSize is the largest chunk handed to the kernel per write.
	BufferSize = 64
)

// port is the single write channel of the capsule. It is owned by one write
// at a time, from its first chunk to its last.
type port struct {
	g     *syscalls.Gateway
	buf   [BufferSize]byte
	owner *write
	sub   syscalls.Subscription
	mem   syscalls.SharedMemory
}

// Factory creates console writers. Writers created by one factory share the
// capsule and take turns.
type Factory struct {
	p *port
}

// NewFactory returns a factory bound to g.
func NewFactory(g *syscalls.Gateway) Factory { return Factory{p: &port{g: g}} }

// Create returns a console writer.
func (f Factory) Create() *Console {
	return &Console{p: f.p}
}

// Console writes to the kernel console. Each chunk is copied into a fixed
// buffer, shared with the kernel and written; the next chunk goes out after
// the kernel reports the previous one done.
type Console struct {
	p *port
}

// Write returns a future that completes once every byte of b has been
// accepted by the kernel. b is copied. Writes complete in the order they first
// get the port; a write holds it until its last chunk is done.
//
// A write that is given up before it completes must be cancelled
// (futures.Cancel) so the port is handed on.
func (c *Console) Write(b []byte) futures.Future[error] {
	return &write{p: c.p, data: append([]byte(nil), b...)}
}

// WriteString is Write for strings.
func (c *Console) WriteString(s string) futures.Future[error] {
	return &write{p: c.p, data: []byte(s)}
}

// Printf formats now and writes the result.
func (c *Console) Printf(format string, args ...any) futures.Future[error] {
	return c.WriteString(fmt.Sprintf(format, args...))
}

type write struct {
	p    *port
	data []byte
	off  int
	n    int

	inFlight bool
	done     bool
	gone     bool
	err      error
}

func (w *write) Poll() (error, bool) {
	switch {
	case w.done:
		return w.err, true
	case w.gone, w.inFlight:
		return nil, false
	case w.off >= len(w.data):
		w.finish(nil)
		return nil, true
	case w.p.owner != nil && w.p.owner != w:
		return nil, false
	}
	if err := w.p.start(w); err != nil {
		w.finish(err)
		return err, true
	}
	return nil, false
}

// Cancel abandons the write and hands the port on. The future never
// completes afterwards.
func (w *write) Cancel() {
	if w.done || w.gone {
		return
	}
	w.gone = true
	if w.p.owner == w {
		w.p.release()
	}
}

func (w *write) finish(err error) {
	w.done, w.err = true, err
	if w.p.owner == w {
		w.p.owner = nil
	}
}

// start sends the next chunk of w.
func (p *port) start(w *write) error {
	w.n = copy(p.buf[:], w.data[w.off:])
	mem, err := p.g.Allow(DriverNumber, allowWrite, p.buf[:w.n])
	if err != nil {
		return fmt.Errorf("console: allow: %w", err)
	}
	sub, err := p.g.Subscribe(DriverNumber, subscribeWrite, syscalls.ConsumerFunc(p.written))
	if err != nil {
		mem.Release()
		return fmt.Errorf("console: subscribe: %w", err)
	}
	if _, err := p.g.Command(DriverNumber, cmdWrite, uint(w.n), 0); err != nil {
		sub.Release()
		mem.Release()
		return fmt.Errorf("console: write: %w", err)
	}
	p.owner, p.sub, p.mem = w, sub, mem
	w.inFlight = true
	return nil
}

// written is the write-done upcall. It releases the chunk's subscription and
// then its grant, and frees the port after the last chunk, so that waiting
// writes see a free port on their next poll.
func (p *port) written(n, _, _ uint) {
	w := p.owner
	p.release()
	if w == nil {
		return
	}
	if n == 0 || int(n) > w.n {
		n = uint(w.n)
	}
	w.off += int(n)
	w.inFlight = false
	if w.off < len(w.data) {
		p.owner = w
	}
}

func (p *port) release() {
	p.sub.Release()
	p.mem.Release()
	p.owner = nil
}
