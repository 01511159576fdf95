package loopback

import (
	"testing"
	"time"
)

func TestTransportDeliversInOrder(t *testing.T) {
	tr := NewTransport(4)
	stop := make(chan struct{})
	received := make(chan []byte, 4)
	go tr.Run(stop, func(frame []byte) { received <- frame })
	defer close(stop)

	tr.Send([]byte{1, 2, 3})
	tr.Send([]byte{4, 5, 6})

	for _, want := range [][]byte{{1, 2, 3}, {4, 5, 6}} {
		select {
		case got := <-received:
			if string(got) != string(want) {
				t.Fatalf("got %x, want %x", got, want)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for frame")
		}
	}
}

func TestPipeStop(t *testing.T) {
	p := NewPipe(4)
	var gotOnB []byte
	done := make(chan struct{})
	p.Start(func(frame []byte) {}, func(frame []byte) {
		gotOnB = frame
		close(done)
	})
	p.AToB.Send([]byte{0xAA})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
	if string(gotOnB) != string([]byte{0xAA}) {
		t.Fatalf("gotOnB = %x, want aa", gotOnB)
	}
	p.Stop()
}
