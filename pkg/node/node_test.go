package node

import (
	"testing"
	"time"

	"github.com/librescoot/serialpubsub/pkg/cobs"
	"github.com/librescoot/serialpubsub/pkg/loopback"
	"github.com/librescoot/serialpubsub/pkg/wire"
)

// wireNodes splices a and b together over an in-memory transport so each
// node's outgoing frames are delivered to the other's GiveRxData on a
// separate goroutine, mirroring how two real serial endpoints never
// re-enter each other's call stack.
func wireNodes(t *testing.T, a, b *Node) func() {
	t.Helper()
	pipe := loopback.NewPipe(8)
	a.SetTxDataReady(pipe.AToB.Send)
	b.SetTxDataReady(pipe.BToA.Send)
	pipe.Start(
		func(frame []byte) {
			if _, err := a.GiveRxData(frame); err != nil {
				t.Logf("node a GiveRxData: %v", err)
			}
		},
		func(frame []byte) {
			if _, err := b.GiveRxData(frame); err != nil {
				t.Logf("node b GiveRxData: %v", err)
			}
		},
	)
	return pipe.Stop
}

func TestNodePublishSubscribe(t *testing.T) {
	a := NewNode(256, false)
	b := NewNode(256, false)
	stop := wireNodes(t, a, b)
	defer stop()

	received := make(chan []byte, 1)
	if _, err := b.Subscribe("status", func(data []byte) {
		received <- append([]byte(nil), data...)
	}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := a.Publish("status", []byte("hello")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case got := <-received:
		if string(got) != "hello" {
			t.Fatalf("got %q, want hello", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestNodePublishWaitSuccess(t *testing.T) {
	a := NewNode(256, false)
	b := NewNode(256, false)
	stop := wireNodes(t, a, b)
	defer stop()

	b.Subscribe("cmd", func(data []byte) {})

	resp, err := a.PublishWait("cmd", []byte("go"), 2*time.Second)
	if err != nil {
		t.Fatalf("PublishWait: %v", err)
	}
	if resp != ResponseSuccess {
		t.Fatalf("PublishWait = %v, want SUCCESS", resp)
	}
}

func TestNodePublishWaitTimeout(t *testing.T) {
	a := NewNode(256, false)
	// b is never wired up: no one will ever ACK.
	a.SetTxDataReady(func(frame []byte) {})

	resp, err := a.PublishWait("cmd", []byte("go"), 30*time.Millisecond)
	if err != nil {
		t.Fatalf("PublishWait: %v", err)
	}
	if resp != ResponseTimeout {
		t.Fatalf("PublishWait = %v, want TIMEOUT", resp)
	}
	if waiting := a.NumThreadsWaiting(); waiting != 0 {
		t.Fatalf("NumThreadsWaiting after timeout = %d, want 0", waiting)
	}
}

func TestNodeNoSubscribersHook(t *testing.T) {
	a := NewNode(256, false)
	b := NewNode(256, false)
	stop := wireNodes(t, a, b)
	defer stop()

	notified := make(chan string, 1)
	b.SetNoSubscribersHook(func(topic string, data []byte) {
		notified <- topic
	})

	if err := a.Publish("unheard", []byte("x")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case topic := <-notified:
		if topic != "unheard" {
			t.Fatalf("topic = %q, want unheard", topic)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for no-subscribers hook")
	}
}

func TestNodeReentrantPublishFromCallback(t *testing.T) {
	a := NewNode(256, false)
	b := NewNode(256, false)
	stop := wireNodes(t, a, b)
	defer stop()

	reply := make(chan []byte, 1)
	a.Subscribe("reply", func(data []byte) {
		reply <- append([]byte(nil), data...)
	})
	b.Subscribe("request", func(data []byte) {
		// Re-entrant publish from within a dispatch callback: this must
		// not deadlock, since dispatch releases the lock around the
		// callback invocation.
		_ = b.Publish("reply", []byte("ack:"+string(data)))
	})

	if err := a.Publish("request", []byte("ping")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case got := <-reply:
		if string(got) != "ack:ping" {
			t.Fatalf("got %q, want ack:ping", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for reentrant reply")
	}
}

func TestNodeNextPacketIDSkipsZero(t *testing.T) {
	a := NewNode(256, false)
	a.SetTxDataReady(func(frame []byte) {})
	a.nextPacketID = 255
	if err := a.Publish("t", nil); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if got := a.NextPacketID(); got != 1 {
		t.Fatalf("NextPacketID after wrap = %d, want 1", got)
	}
}

func TestNodeUnexpectedAck(t *testing.T) {
	a := NewNode(256, false)
	framed, err := wire.Serialize(wire.ACK, 99, "", nil)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	encoded := cobs.Encode(framed)
	if _, err := a.GiveRxData(encoded); err != ErrUnexpectedAck {
		t.Fatalf("GiveRxData = %v, want ErrUnexpectedAck", err)
	}
}
