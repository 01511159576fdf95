package node

// pollState is the single-threaded ack state machine's current phase.
type pollState uint8

const (
	pollIdle pollState = iota
	pollArmed
)

// PollingAckCorrelator is the non-blocking counterpart to
// ThreadedAckCorrelator, grounded on EmbeddedSerialFiller_NoRTOS.cpp's
// cooperative PublishWait: no locks, no goroutines, just a state machine
// advanced one step per call. Only one publish can be outstanding at a
// time; a second PublishWait call made while one is already armed simply
// continues polling the first.
type PollingAckCorrelator struct {
	state         pollState
	packetID      uint8
	cyclesElapsed int
	timeoutCycles int
	acked         bool
}

// Armed reports whether a publish is currently outstanding.
func (c *PollingAckCorrelator) Armed() bool {
	return c.state == pollArmed
}

// Begin arms the correlator for packetID, to time out after timeoutCycles
// further Poll calls. The caller must check Armed first; arming while
// already armed clobbers the outstanding operation.
func (c *PollingAckCorrelator) Begin(packetID uint8, timeoutCycles int) {
	c.state = pollArmed
	c.packetID = packetID
	c.cyclesElapsed = 0
	c.timeoutCycles = timeoutCycles
	c.acked = false
}

// Poll advances the state machine by one call cycle and reports the
// outstanding publish's status: PENDING while still within
// timeoutCycles and unacked, SUCCESS once Complete has matched the armed
// packet ID, TIMEOUT once timeoutCycles calls have elapsed unacked. A
// SUCCESS or TIMEOUT result disarms the correlator for the next
// PublishWait.
func (c *PollingAckCorrelator) Poll() PublishResponse {
	if c.state != pollArmed {
		return ResponseUnknown
	}
	if c.acked {
		c.reset()
		return ResponseSuccess
	}
	c.cyclesElapsed++
	if c.cyclesElapsed >= c.timeoutCycles {
		c.reset()
		return ResponseTimeout
	}
	return ResponsePending
}

// Complete matches an inbound ACK's packetID against the armed slot.
// Returns false if nothing is armed or the ID doesn't match, which the
// PollingNode surfaces as ErrUnexpectedAck.
func (c *PollingAckCorrelator) Complete(packetID uint8) bool {
	if c.state == pollArmed && c.packetID == packetID && !c.acked {
		c.acked = true
		return true
	}
	return false
}

func (c *PollingAckCorrelator) reset() {
	c.state = pollIdle
	c.acked = false
}
