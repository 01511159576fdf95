// Package loopback provides an in-memory, goroutine-driven transport for
// splicing two nodes together without a real serial port. It is grounded
// on the original library's integration test harness (ThreadSafeQ.h and
// Node.h): each side runs its own receive loop pulling frames off a
// queue and feeding them to GiveRxData, decoupling transmit from receive
// so a node's tx hook never calls back into its own receive path on the
// same goroutine. The original queues raw bytes one at a time off a
// std::thread backed by a condition variable; a buffered Go channel
// drained by a goroutine is the idiomatic equivalent, and there is no
// reason to shuttle individual bytes when GiveRxData already handles
// arbitrary chunk boundaries.
package loopback

// Transport is a single directional channel of already-COBS-encoded
// frames, intended to be handed a node's tx hook as a Send and driven by
// Run on the receiving side.
type Transport struct {
	frames chan []byte
}

// NewTransport creates a Transport with the given channel buffer depth.
// A depth of 0 makes Send block until Run is actively receiving.
func NewTransport(buffer int) *Transport {
	return &Transport{frames: make(chan []byte, buffer)}
}

// Send enqueues frame for delivery. Use it directly as a node's
// TxDataReady hook: node.SetTxDataReady(transport.Send).
func (t *Transport) Send(frame []byte) {
	t.frames <- frame
}

// Run drains frames as they arrive and passes each to sink, until stop is
// closed. Call it in its own goroutine with sink set to the receiving
// node's GiveRxData (ignoring the returned status/error, or logging it).
func (t *Transport) Run(stop <-chan struct{}, sink func(frame []byte)) {
	for {
		select {
		case frame := <-t.frames:
			sink(frame)
		case <-stop:
			return
		}
	}
}

// Pipe wires two transports together so frames sent on one side arrive,
// via Run loops in background goroutines, on the other. Call Stop to shut
// both loops down.
type Pipe struct {
	AToB *Transport
	BToA *Transport
	stop chan struct{}
}

// NewPipe creates a Pipe with both directions buffered to depth.
func NewPipe(buffer int) *Pipe {
	return &Pipe{
		AToB: NewTransport(buffer),
		BToA: NewTransport(buffer),
		stop: make(chan struct{}),
	}
}

// Start launches the background goroutines that deliver frames sent on
// AToB to sinkB, and frames sent on BToA to sinkA.
func (p *Pipe) Start(sinkA, sinkB func(frame []byte)) {
	go p.AToB.Run(p.stop, sinkB)
	go p.BToA.Run(p.stop, sinkA)
}

// Stop shuts down both delivery goroutines.
func (p *Pipe) Stop() {
	close(p.stop)
}
