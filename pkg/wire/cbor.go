package wire

import "github.com/fxamacker/cbor/v2"

// EncodeCBOR marshals v with CBOR, the same encoding the teacher repo uses
// to pack structured values before handing them to its framing layer. It
// lets a publisher send typed payloads (maps, structs) on a topic instead
// of hand-built byte slices; subscribers pair it with DecodeCBOR.
func EncodeCBOR(v interface{}) ([]byte, error) {
	return cbor.Marshal(v)
}

// DecodeCBOR unmarshals a CBOR payload received on a topic into v.
func DecodeCBOR(data []byte, v interface{}) error {
	return cbor.Unmarshal(data, v)
}
