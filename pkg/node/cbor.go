package node

import "github.com/librescoot/serialpubsub/pkg/wire"

// PublishCBOR CBOR-encodes v and publishes it as a BROADCAST packet on
// topic, the same way the teacher's writeUARTMessage CBOR-encodes a
// value before handing it to the framing layer. Subscribers pair it with
// wire.DecodeCBOR to recover v's shape.
func (n *Node) PublishCBOR(topic string, v interface{}) error {
	data, err := wire.EncodeCBOR(v)
	if err != nil {
		return err
	}
	return n.Publish(topic, data)
}

// PublishCBOR is the PollingNode equivalent of Node.PublishCBOR.
func (n *PollingNode) PublishCBOR(topic string, v interface{}) error {
	data, err := wire.EncodeCBOR(v)
	if err != nil {
		return err
	}
	return n.Publish(topic, data)
}
