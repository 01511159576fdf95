package node

import (
	"github.com/librescoot/serialpubsub/pkg/cobs"
	"github.com/librescoot/serialpubsub/pkg/crc16"
	"github.com/librescoot/serialpubsub/pkg/metrics"
	"github.com/librescoot/serialpubsub/pkg/wire"
)

// PollingNode is the lock-free, single-threaded counterpart to Node,
// grounded on EmbeddedSerialFiller_NoRTOS.cpp: every method is meant to be
// called from one goroutine (typically a single polling loop), and
// PublishWait's ack wait is expressed as a state machine advanced one
// call cycle at a time rather than a blocking wait. Use this profile for
// bare-metal-style deployments where spinning up goroutines and mutexes
// isn't worth it, e.g. a single cooperative scheduler loop.
type PollingNode struct {
	assembler *wire.Assembler
	registry  *Registry
	ackCorr   PollingAckCorrelator

	nextPacketID uint8

	txReady       TxHook
	noSubscribers NoSubscribersHook
}

// NewPollingNode creates a PollingNode with an rx buffer of
// rxBufferCapacity bytes and the given incomplete-packet policy.
func NewPollingNode(rxBufferCapacity int, rejectIncomplete bool) *PollingNode {
	return &PollingNode{
		assembler:    wire.NewAssembler(rxBufferCapacity, rejectIncomplete),
		registry:     NewRegistry(),
		nextPacketID: 1,
	}
}

// SetTxDataReady installs the callback invoked whenever the node has a
// framed packet ready to go out over the serial line.
func (n *PollingNode) SetTxDataReady(hook TxHook) {
	n.txReady = hook
}

// SetNoSubscribersHook installs the callback invoked when a received
// packet's topic has no subscribers.
func (n *PollingNode) SetNoSubscribersHook(hook NoSubscribersHook) {
	n.noSubscribers = hook
}

// Subscribe registers cb for topic and returns a subscriber ID.
func (n *PollingNode) Subscribe(topic string, cb Callback) (uint32, error) {
	return n.registry.Subscribe(topic, cb)
}

// Unsubscribe removes the subscriber identified by id.
func (n *PollingNode) Unsubscribe(id uint32) error {
	return n.registry.Unsubscribe(id)
}

// UnsubscribeAll drops every subscriber on every topic.
func (n *PollingNode) UnsubscribeAll() {
	n.registry.UnsubscribeAll()
}

// NextPacketID reports the packet ID that will be used by the next
// Publish or PublishWait call.
func (n *PollingNode) NextPacketID() uint8 {
	return n.nextPacketID
}

// TaskPending reports whether a PublishWait operation is currently armed
// and awaiting an ACK or timeout.
func (n *PollingNode) TaskPending() bool {
	return n.ackCorr.Armed()
}

// Publish frames data as a BROADCAST packet on topic and hands it to the
// tx hook without waiting for an ACK.
func (n *PollingNode) Publish(topic string, data []byte) error {
	_, err := n.publishInternal(wire.BROADCAST, topic, data)
	return err
}

// PublishWait drives one cycle of the non-blocking publish/ack state
// machine. The first call for a given operation (while !TaskPending)
// arms the correlator and transmits the PUBLISH packet; every call,
// including that first one, then advances the cycle counter and reports
// PENDING, SUCCESS, or TIMEOUT. Call it again with the same topic/data
// from the same poll loop until it stops returning PENDING; timeout is
// expressed in call cycles, not wall-clock time.
func (n *PollingNode) PublishWait(topic string, data []byte, timeoutCycles int) (PublishResponse, error) {
	if !n.ackCorr.Armed() {
		packetID := n.nextPacketID
		n.ackCorr.Begin(packetID, timeoutCycles)
		if _, err := n.publishInternal(wire.PUBLISH, topic, data); err != nil {
			n.ackCorr.reset()
			return ResponseTimeout, err
		}
	}
	resp := n.ackCorr.Poll()
	switch resp {
	case ResponseSuccess:
		metrics.PublishWaitSuccess.Inc()
	case ResponseTimeout:
		metrics.PublishWaitTimeout.Inc()
	}
	return resp, nil
}

func (n *PollingNode) publishInternal(packetType wire.PacketType, topic string, data []byte) (uint8, error) {
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

func (n *PollingNode) sendAck(packetID uint8) error {
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

// GiveRxData feeds newly received bytes into the node's packet assembler
// and processes every whole frame it yields. See Node.GiveRxData for the
// ACK-before-dispatch ordering rationale; the same ordering applies here.
func (n *PollingNode) GiveRxData(rxData []byte) (wire.StatusCode, error) {
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

func (n *PollingNode) processFrame(frame []byte) (wire.StatusCode, error) {
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

func (n *PollingNode) dispatch(topic string, data []byte) {
	callbacks := n.registry.Snapshot(topic)
	if len(callbacks) == 0 {
		if n.noSubscribers != nil {
			n.noSubscribers(topic, data)
		}
		return
	}
	for _, cb := range callbacks {
		cb(data)
	}
}
