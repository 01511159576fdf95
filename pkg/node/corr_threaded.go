package node

import (
	"time"

	"github.com/librescoot/serialpubsub/pkg/wire"
)

// pendingAck is one reserved slot in the fixed-capacity ack pool, the Go
// equivalent of EmbeddedSerialFiller_RTOS.h's AckEvent entries.
// packetID == 0 marks a free slot; 0 is never a valid on-wire packet ID.
type pendingAck struct {
	packetID uint8
	notify   chan struct{}
}

// ThreadedAckCorrelator matches inbound ACK packet IDs against publishers
// blocked in Node.PublishWait. It is grounded on
// EmbeddedSerialFiller_RTOS.cpp's ackEvents_ pool and the lock/condvar
// hand-off between PublishWait and GiveRxData, with the RTOS condvar
// replaced by a per-slot buffered channel: Go has no cond-variable wait
// with a timeout, and a channel select against time.After is the native
// way to express that here.
//
// Begin and Complete are always called with the owning Node's mutex held.
// Wait releases that mutex while blocked so GiveRxData can call Complete
// from another goroutine, and re-acquires it before returning. lock and
// unlock are the Node's own lock()/unlock() methods rather than a raw
// *sync.Mutex, so that Wait stays a no-op pass-through when the Node has
// thread safety disabled instead of unlocking a mutex nothing locked.
type ThreadedAckCorrelator struct {
	lock   func()
	unlock func()
	slots  [wire.MaxPendingAcks]pendingAck
	active []*pendingAck
}

// NewThreadedAckCorrelator creates a correlator that releases and
// re-acquires the owning Node's lock (via lock/unlock) around its wait.
func NewThreadedAckCorrelator(lock, unlock func()) *ThreadedAckCorrelator {
	return &ThreadedAckCorrelator{lock: lock, unlock: unlock}
}

// Begin reserves a free slot for packetID. Caller must hold mu.
func (c *ThreadedAckCorrelator) Begin(packetID uint8) (*pendingAck, error) {
	if len(c.active) >= wire.MaxPendingAcks {
		return nil, ErrAckPoolFull
	}
	for i := range c.slots {
		if c.slots[i].packetID == 0 {
			c.slots[i].packetID = packetID
			c.slots[i].notify = make(chan struct{}, 1)
			c.active = append(c.active, &c.slots[i])
			return &c.slots[i], nil
		}
	}
	return nil, ErrAckPoolFull
}

// Wait blocks until slot is matched by Complete or timeout elapses,
// returning true on match. The caller must hold mu on entry; mu is
// released for the duration of the wait and re-acquired before Wait
// returns.
func (c *ThreadedAckCorrelator) Wait(slot *pendingAck, timeout time.Duration) bool {
	notify := slot.notify
	c.unlock()
	var matched bool
	select {
	case <-notify:
		matched = true
	case <-time.After(timeout):
		matched = false
	}
	c.lock()
	c.release(slot)
	return matched
}

func (c *ThreadedAckCorrelator) release(slot *pendingAck) {
	for i, s := range c.active {
		if s == slot {
			c.active = append(c.active[:i], c.active[i+1:]...)
			break
		}
	}
	slot.packetID = 0
	slot.notify = nil
}

// Complete matches an inbound ACK's packetID against a waiting slot and
// wakes it. Caller must hold mu. Returns false if no slot matches, which
// the Node surfaces as ErrUnexpectedAck.
func (c *ThreadedAckCorrelator) Complete(packetID uint8) bool {
	for _, s := range c.active {
		if s.packetID == packetID {
			select {
			case s.notify <- struct{}{}:
			default:
			}
			return true
		}
	}
	return false
}

// NumWaiting reports how many publishers are currently blocked in Wait.
// Caller must hold mu.
func (c *ThreadedAckCorrelator) NumWaiting() int {
	return len(c.active)
}
