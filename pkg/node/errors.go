package node

import "errors"

// ErrAckPoolFull is returned by PublishWait when MaxPendingAcks publishers
// are already blocked waiting for an ACK on this Node.
var ErrAckPoolFull = errors.New("node: pending-ack pool full")

// ErrUnexpectedAck is returned by GiveRxData when an inbound ACK's packet
// ID matches no pending PublishWait.
var ErrUnexpectedAck = errors.New("node: unexpected ack")

// ErrUnrecognisedSubscriber is returned by Unsubscribe when the given ID
// does not match any live subscriber.
var ErrUnrecognisedSubscriber = errors.New("node: unrecognised subscriber id")

// PublishResponse is the result of PublishWait.
type PublishResponse uint8

const (
	ResponseUnknown PublishResponse = iota
	ResponseSuccess
	ResponsePending
	ResponseTimeout
)

func (r PublishResponse) String() string {
	switch r {
	case ResponseSuccess:
		return "SUCCESS"
	case ResponsePending:
		return "PENDING"
	case ResponseTimeout:
		return "TIMEOUT"
	default:
		return "UNKNOWN"
	}
}
