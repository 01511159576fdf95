package node

import (
	"testing"
	"time"

	"github.com/librescoot/serialpubsub/pkg/wire"
)

type vehicleState struct {
	Locked  bool
	Mileage uint32
}

func TestNodePublishCBORRoundTrip(t *testing.T) {
	a := NewNode(256, false)
	b := NewNode(256, false)
	stop := wireNodes(t, a, b)
	defer stop()

	received := make(chan vehicleState, 1)
	if _, err := b.Subscribe("vehicle", func(data []byte) {
		var v vehicleState
		if err := wire.DecodeCBOR(data, &v); err != nil {
			t.Errorf("DecodeCBOR: %v", err)
			return
		}
		received <- v
	}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	want := vehicleState{Locked: true, Mileage: 1234}
	if err := a.PublishCBOR("vehicle", want); err != nil {
		t.Fatalf("PublishCBOR: %v", err)
	}

	select {
	case got := <-received:
		if got != want {
			t.Fatalf("got %+v, want %+v", got, want)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for CBOR delivery")
	}
}
