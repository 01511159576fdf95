// Package wire implements the on-wire packet format for a serial pub/sub
// node: packet type tags, serialize/parse of the pre-COBS frame layout, and
// the bounded-buffer Assembler that turns a raw byte stream into whole
// frames.
package wire

import (
	"errors"
	"fmt"

	"github.com/librescoot/serialpubsub/pkg/crc16"
)

// Build-time options, mirroring the original library's compile-time
// constants (ESF_MAX_PACKET_SIZE, ESF_MAX_TOPIC_LENGTH, ...).
const (
	// MaxPacketSize bounds a decoded packet, including topic and CRC.
	MaxPacketSize = 1024
	// MaxTopicLength bounds the topic byte string.
	MaxTopicLength = 16
	// MaxSubscribers is a per-topic subscriber count. Registry does not
	// check it: a topic accepts any number of subscribers.
	MaxSubscribers = 8
	// MaxPendingAcks bounds outstanding PublishWait calls per Node.
	MaxPendingAcks = 8
	// MinFrameBytes is the smallest legal decoded frame: type + id + 2 CRC bytes.
	MinFrameBytes = 3
)

// PacketType tags the three kinds of packet that travel over the wire.
type PacketType uint8

const (
	// ACK acknowledges a received PUBLISH by packet ID; carries no topic/data.
	ACK PacketType = 0x41 // 'A'
	// BROADCAST is fire-and-forget; no ACK is expected or sent.
	BROADCAST PacketType = 0x42 // 'B'
	// PUBLISH expects the receiving node to emit an ACK before dispatch.
	PUBLISH PacketType = 0x50 // 'P'
)

func (t PacketType) String() string {
	switch t {
	case ACK:
		return "ACK"
	case BROADCAST:
		return "BROADCAST"
	case PUBLISH:
		return "PUBLISH"
	default:
		return fmt.Sprintf("PacketType(%#02x)", uint8(t))
	}
}

// StatusCode is a stable, loggable result code mirroring the status kinds
// enumerated in the original library (Utilities::StatusCodeToString).
type StatusCode uint8

const (
	StatusSuccess StatusCode = iota
	StatusCRCCheckFailed
	StatusNotEnoughBytes
	StatusUnrecognisedPacketType
	StatusUnexpectedAck
	StatusLengthOfTopicTooLong
	StatusUnrecognisedSubscriber
	StatusZeroByteNotExpected
	StatusRxDataBufferFull
	StatusPacketIncomplete
)

func (s StatusCode) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusCRCCheckFailed:
		return "ERROR_CRC_CHECK_FAILED"
	case StatusNotEnoughBytes:
		return "ERROR_NOT_ENOUGH_BYTES"
	case StatusUnrecognisedPacketType:
		return "ERROR_UNRECOGNISED_PACKET_TYPE"
	case StatusUnexpectedAck:
		return "ERROR_UNEXPECTED_ACK"
	case StatusLengthOfTopicTooLong:
		return "ERROR_LENGTH_OF_TOPIC_TOO_LONG"
	case StatusUnrecognisedSubscriber:
		return "ERROR_UNRECOGNISED_SUBSCRIBER"
	case StatusZeroByteNotExpected:
		return "ERROR_ZERO_BYTE_NOT_EXPECTED"
	case StatusRxDataBufferFull:
		return "ERROR_RX_DATA_BUFFER_FULL"
	case StatusPacketIncomplete:
		return "ERROR_PACKET_INCOMPLETE"
	default:
		return "UNKNOWN"
	}
}

// Sentinel errors, one per StatusCode that can actually surface from this
// package. pkg/node adds its own (ErrUnexpectedAck, ErrUnrecognisedSubscriber)
// for codes that only arise at the Node level.
var (
	ErrCRCCheckFailed          = errors.New("wire: crc check failed")
	ErrNotEnoughBytes          = errors.New("wire: not enough bytes")
	ErrUnrecognisedPacketType  = errors.New("wire: unrecognised packet type")
	ErrLengthOfTopicTooLong    = errors.New("wire: declared topic length too long")
	ErrZeroByteNotExpected     = errors.New("wire: zero byte not expected mid-frame")
	ErrRxDataBufferFull        = errors.New("wire: rx data buffer full")
	ErrPacketIncomplete        = errors.New("wire: packet incomplete")
	ErrTopicTooLong            = errors.New("wire: topic exceeds MaxTopicLength")
	ErrDataTooLarge            = errors.New("wire: data exceeds MaxPacketSize")
)

// Packet is the parsed, decoded form of one pre-COBS frame (CRC already
// stripped and verified by the caller).
type Packet struct {
	Type     PacketType
	ID       uint8
	Topic    string
	Data     []byte
}

// Serialize builds the pre-COBS, pre-CRC byte layout for a packet and
// appends its CRC-16/CCITT-FALSE trailer. For ACK it is [type, id, crcMSB,
// crcLSB]; for BROADCAST/PUBLISH it is [type, id, topicLen, topic..., data..., crcMSB, crcLSB].
func Serialize(packetType PacketType, id uint8, topic string, data []byte) ([]byte, error) {
	if packetType != ACK {
		if len(topic) > MaxTopicLength {
			return nil, ErrTopicTooLong
		}
		if 3+len(topic)+len(data)+2 > MaxPacketSize {
			return nil, ErrDataTooLarge
		}
	}

	buf := make([]byte, 0, 2+1+len(topic)+len(data)+2)
	buf = append(buf, byte(packetType), id)
	if packetType != ACK {
		buf = append(buf, byte(len(topic)))
		buf = append(buf, topic...)
		buf = append(buf, data...)
	}
	return crc16.Add(buf), nil
}

// Parse interprets a COBS-decoded, CRC-verified buffer (CRC bytes still
// present at the end) into a Packet. Callers must call crc16.Verify first;
// Parse does not re-check the CRC. A packet ID of 0 is reserved and is
// rejected with ErrUnrecognisedPacketType.
func Parse(decoded []byte) (Packet, error) {
	if len(decoded) < MinFrameBytes {
		return Packet{}, ErrNotEnoughBytes
	}

	packetType := PacketType(decoded[0])
	switch packetType {
	case ACK, BROADCAST, PUBLISH:
	default:
		return Packet{}, ErrUnrecognisedPacketType
	}

	id := decoded[1]
	if id == 0 {
		return Packet{}, ErrUnrecognisedPacketType
	}
	if packetType == ACK {
		return Packet{Type: packetType, ID: id}, nil
	}

	topic, data, err := SplitPacket(decoded, 2)
	if err != nil {
		return Packet{}, err
	}
	return Packet{Type: packetType, ID: id, Topic: topic, Data: data}, nil
}

// SplitPacket splits decoded[startAt:len(decoded)-2] into a topic and a data
// payload, where decoded[startAt] holds the topic length L and the topic
// bytes occupy decoded[startAt+1 : startAt+1+L]. The trailing 2 bytes
// (CRC) are excluded from the data span.
func SplitPacket(decoded []byte, startAt int) (topic string, data []byte, err error) {
	if startAt >= len(decoded) {
		return "", nil, ErrNotEnoughBytes
	}
	topicLen := int(decoded[startAt])
	available := len(decoded) - 2 - (startAt + 1)
	if topicLen > available {
		return "", nil, ErrLengthOfTopicTooLong
	}

	topicStart := startAt + 1
	topicEnd := topicStart + topicLen
	dataEnd := len(decoded) - 2

	topic = string(decoded[topicStart:topicEnd])
	data = append([]byte(nil), decoded[topicEnd:dataEnd]...)
	return topic, data, nil
}
