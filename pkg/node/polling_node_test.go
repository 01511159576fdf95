package node

import "testing"

func TestPollingNodePublishSubscribe(t *testing.T) {
	a := NewPollingNode(256, false)
	b := NewPollingNode(256, false)
	a.SetTxDataReady(func(frame []byte) { b.GiveRxData(frame) })

	var got []byte
	b.Subscribe("status", func(data []byte) { got = append([]byte(nil), data...) })

	if err := a.Publish("status", []byte("hello")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q, want hello", got)
	}
}

func TestPollingNodePublishWaitSuccess(t *testing.T) {
	a := NewPollingNode(256, false)
	b := NewPollingNode(256, false)
	a.SetTxDataReady(func(frame []byte) { b.GiveRxData(frame) })
	b.SetTxDataReady(func(frame []byte) { a.GiveRxData(frame) })
	b.Subscribe("cmd", func(data []byte) {})

	resp, err := a.PublishWait("cmd", []byte("go"), 5)
	if err != nil {
		t.Fatalf("PublishWait: %v", err)
	}
	if resp != ResponseSuccess {
		t.Fatalf("PublishWait = %v, want SUCCESS", resp)
	}
	if a.TaskPending() {
		t.Fatal("expected TaskPending false after SUCCESS")
	}
}

func TestPollingNodePublishWaitTimeout(t *testing.T) {
	a := NewPollingNode(256, false)
	a.SetTxDataReady(func(frame []byte) {}) // no peer ever acks

	var resp PublishResponse
	var err error
	for i := 0; i < 10; i++ {
		resp, err = a.PublishWait("cmd", []byte("go"), 3)
		if err != nil {
			t.Fatalf("PublishWait: %v", err)
		}
		if resp != ResponsePending {
			break
		}
		if !a.TaskPending() {
			t.Fatal("expected TaskPending true while PENDING")
		}
	}
	if resp != ResponseTimeout {
		t.Fatalf("PublishWait = %v, want TIMEOUT", resp)
	}
	if a.TaskPending() {
		t.Fatal("expected TaskPending false after TIMEOUT")
	}
}

func TestPollingNodeNextPacketIDSkipsZero(t *testing.T) {
	a := NewPollingNode(256, false)
	a.SetTxDataReady(func(frame []byte) {})
	a.nextPacketID = 255
	if err := a.Publish("t", nil); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if got := a.NextPacketID(); got != 1 {
		t.Fatalf("NextPacketID after wrap = %d, want 1", got)
	}
}
