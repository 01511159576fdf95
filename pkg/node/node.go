package node

import (
	"sync"
	"time"

	"github.com/librescoot/serialpubsub/pkg/cobs"
	"github.com/librescoot/serialpubsub/pkg/crc16"
	"github.com/librescoot/serialpubsub/pkg/metrics"
	"github.com/librescoot/serialpubsub/pkg/wire"
)

// TxHook is called with the COBS-encoded, 0x00-terminated frame (CRC
// included before encoding) that the Node wants written to the serial line.
type TxHook func(frame []byte)

// NoSubscribersHook is called when a valid BROADCAST or PUBLISH arrives
// for a topic with no subscribers.
type NoSubscribersHook func(topic string, data []byte)

// Node is a single serial pub/sub endpoint: it owns a subscription
// registry, an ack correlator, and the packet assembler for one serial
// line. It is grounded directly on EmbeddedSerialFiller (the RTOS build
// profile) in EmbeddedSerialFiller_RTOS.cpp/.h: Publish/PublishWait/
// Subscribe/Unsubscribe/GiveRxData all take out classMutex_ on entry
// unless thread safety has been disabled, and PublishWait releases that
// lock while it blocks for an ACK, matching ThreadedAckCorrelator.Wait.
type Node struct {
	mu sync.Mutex

	assembler *wire.Assembler
	registry  *Registry
	ackCorr   *ThreadedAckCorrelator

	nextPacketID uint8
	threadSafety bool

	txReady       TxHook
	noSubscribers NoSubscribersHook
}

// NewNode creates a Node with thread safety enabled by default, an rx
// buffer of rxBufferCapacity bytes, and the given incomplete-packet
// policy (see wire.NewAssembler).
func NewNode(rxBufferCapacity int, rejectIncomplete bool) *Node {
	n := &Node{
		registry:     NewRegistry(),
		nextPacketID: 1,
		threadSafety: true,
	}
	n.assembler = wire.NewAssembler(rxBufferCapacity, rejectIncomplete)
	n.ackCorr = NewThreadedAckCorrelator(n.lock, n.unlock)
	return n
}

// SetTxDataReady installs the callback invoked whenever the Node has a
// framed packet ready to go out over the serial line.
func (n *Node) SetTxDataReady(hook TxHook) {
	n.lock()
	defer n.unlock()
	n.txReady = hook
}

// SetNoSubscribersHook installs the callback invoked when a received
// packet's topic has no subscribers.
func (n *Node) SetNoSubscribersHook(hook NoSubscribersHook) {
	n.lock()
	defer n.unlock()
	n.noSubscribers = hook
}

// SetThreadSafetyEnabled toggles internal locking (enabled by default).
// Disable it only when the caller already guarantees single-threaded
// access to this Node; PublishWait's blocking wait becomes undefined if
// thread safety is disabled while another goroutine calls GiveRxData.
func (n *Node) SetThreadSafetyEnabled(enabled bool) {
	n.lock()
	defer n.unlock()
	n.threadSafety = enabled
}

func (n *Node) lock() {
	if n.threadSafety {
		n.mu.Lock()
	}
}

func (n *Node) unlock() {
	if n.threadSafety {
		n.mu.Unlock()
	}
}

// Subscribe registers cb to be called with the payload of every BROADCAST
// or PUBLISH received on topic, and returns a subscriber ID that can be
// passed to Unsubscribe.
func (n *Node) Subscribe(topic string, cb Callback) (uint32, error) {
	n.lock()
	defer n.unlock()
	return n.registry.Subscribe(topic, cb)
}

// Unsubscribe removes the subscriber identified by id.
func (n *Node) Unsubscribe(id uint32) error {
	n.lock()
	defer n.unlock()
	return n.registry.Unsubscribe(id)
}

// UnsubscribeAll drops every subscriber on every topic.
func (n *Node) UnsubscribeAll() {
	n.lock()
	defer n.unlock()
	n.registry.UnsubscribeAll()
}

// NextPacketID reports the packet ID that will be used by the next
// Publish or PublishWait call.
func (n *Node) NextPacketID() uint8 {
	n.lock()
	defer n.unlock()
	return n.nextPacketID
}

// Publish frames data as a BROADCAST packet on topic and hands it to the
// tx hook. It does not wait for, or expect, an ACK.
func (n *Node) Publish(topic string, data []byte) error {
	n.lock()
	defer n.unlock()
	_, err := n.publishInternal(wire.BROADCAST, topic, data)
	return err
}

// PublishWait frames data as a PUBLISH packet, transmits it, and blocks
// the calling goroutine until either a matching ACK arrives or timeout
// elapses. Multiple goroutines may call PublishWait concurrently on the
// same Node, up to wire.MaxPendingAcks outstanding at once.
func (n *Node) PublishWait(topic string, data []byte, timeout time.Duration) (PublishResponse, error) {
	n.lock()
	defer n.unlock()

	packetID := n.nextPacketID
	slot, err := n.ackCorr.Begin(packetID)
	if err != nil {
		return ResponseTimeout, err
	}

	if _, err := n.publishInternal(wire.PUBLISH, topic, data); err != nil {
		n.ackCorr.release(slot)
		return ResponseTimeout, err
	}

	if n.ackCorr.Wait(slot, timeout) {
		metrics.PublishWaitSuccess.Inc()
		return ResponseSuccess, nil
	}
	metrics.PublishWaitTimeout.Inc()
	return ResponseTimeout, nil
}

// publishInternal builds and transmits one BROADCAST or PUBLISH packet,
// then advances nextPacketID (skipping 0, which is never a valid packet
// ID). Caller must hold the lock.
func (n *Node) publishInternal(packetType wire.PacketType, topic string, data []byte) (uint8, error) {
	id := n.nextPacketID
	framed, err := wire.Serialize(packetType, id, topic, data)
	if err != nil {
		return id, err
	}
	encoded := cobs.Encode(framed)
	if n.txReady != nil {
		n.txReady(encoded)
	}
	n.nextPacketID++
	if n.nextPacketID == 0 {
		n.nextPacketID++
	}
	return id, nil
}

// sendAck transmits an ACK for packetId. Caller must hold the lock.
func (n *Node) sendAck(packetID uint8) error {
	framed, err := wire.Serialize(wire.ACK, packetID, "", nil)
	if err != nil {
		return err
	}
	encoded := cobs.Encode(framed)
	if n.txReady != nil {
		n.txReady(encoded)
	}
	metrics.AcksSent.Inc()
	return nil
}

// GiveRxData feeds newly received bytes into the Node's packet assembler
// and processes every whole frame it yields: ACKs are matched against
// outstanding PublishWait calls, and BROADCAST/PUBLISH packets are
// dispatched to subscribers after (for PUBLISH) an ACK is sent back.
// Sending the ACK before invoking subscriber callbacks matters: a
// callback may itself call Publish/PublishWait, and the ACK for the
// packet that triggered it must go out first.
//
// On the first per-frame error GiveRxData returns that status and error
// and drops the rest of rxData unprocessed, including any further frames
// it contains.
func (n *Node) GiveRxData(rxData []byte) (wire.StatusCode, error) {
	n.lock()
	defer n.unlock()

	chunk := rxData
	for {
		frame, leftover, err := n.assembler.Feed(chunk)
		if err != nil {
			return statusForErr(err), err
		}
		if frame == nil {
			return wire.StatusSuccess, nil
		}

		status, err := n.processFrame(frame)
		if err != nil {
			return status, err
		}

		if len(leftover) == 0 {
			return wire.StatusSuccess, nil
		}
		chunk = leftover
	}
}

// processFrame decodes, verifies, and dispatches one COBS frame. Caller
// must hold the lock; it is released around subscriber callback
// invocations and re-acquired before returning.
func (n *Node) processFrame(frame []byte) (wire.StatusCode, error) {
	decoded, err := cobs.Decode(frame)
	if err != nil {
		return wire.StatusZeroByteNotExpected, err
	}
	if err := crc16.Verify(decoded); err != nil {
		return wire.StatusCRCCheckFailed, err
	}
	pkt, err := wire.Parse(decoded)
	if err != nil {
		return statusForErr(err), err
	}

	switch pkt.Type {
	case wire.ACK:
		if !n.ackCorr.Complete(pkt.ID) {
			return wire.StatusUnexpectedAck, ErrUnexpectedAck
		}
		return wire.StatusSuccess, nil

	case wire.PUBLISH:
		if err := n.sendAck(pkt.ID); err != nil {
			return wire.StatusCRCCheckFailed, err
		}
		n.dispatch(pkt.Topic, pkt.Data)
		return wire.StatusSuccess, nil

	case wire.BROADCAST:
		n.dispatch(pkt.Topic, pkt.Data)
		return wire.StatusSuccess, nil

	default:
		return wire.StatusUnrecognisedPacketType, wire.ErrUnrecognisedPacketType
	}
}

func (n *Node) dispatch(topic string, data []byte) {
	callbacks := n.registry.Snapshot(topic)
	if len(callbacks) == 0 {
		if n.noSubscribers != nil {
			n.unlock()
			n.noSubscribers(topic, data)
			n.lock()
		}
		return
	}
	for _, cb := range callbacks {
		n.unlock()
		cb(data)
		n.lock()
	}
}

// NumThreadsWaiting reports how many goroutines are currently blocked in
// PublishWait on this Node.
func (n *Node) NumThreadsWaiting() int {
	n.lock()
	defer n.unlock()
	return n.ackCorr.NumWaiting()
}

func statusForErr(err error) wire.StatusCode {
	switch err {
	case wire.ErrNotEnoughBytes:
		return wire.StatusNotEnoughBytes
	case wire.ErrUnrecognisedPacketType:
		return wire.StatusUnrecognisedPacketType
	case wire.ErrLengthOfTopicTooLong:
		return wire.StatusLengthOfTopicTooLong
	case wire.ErrZeroByteNotExpected:
		return wire.StatusZeroByteNotExpected
	case wire.ErrRxDataBufferFull:
		return wire.StatusRxDataBufferFull
	case wire.ErrPacketIncomplete:
		return wire.StatusPacketIncomplete
	default:
		return wire.StatusCRCCheckFailed
	}
}
