package node

import "testing"

func TestPollingAckCorrelatorSuccess(t *testing.T) {
	var c PollingAckCorrelator
	c.Begin(5, 3)
	if !c.Armed() {
		t.Fatal("expected armed after Begin")
	}
	if got := c.Poll(); got != ResponsePending {
		t.Fatalf("Poll = %v, want PENDING", got)
	}
	if !c.Complete(5) {
		t.Fatal("Complete(5) should match armed packet id")
	}
	if c.Complete(5) {
		t.Fatal("Complete should not match twice for the same ack")
	}
	if got := c.Poll(); got != ResponseSuccess {
		t.Fatalf("Poll = %v, want SUCCESS", got)
	}
	if c.Armed() {
		t.Fatal("expected disarmed after SUCCESS")
	}
}

func TestPollingAckCorrelatorTimeout(t *testing.T) {
	var c PollingAckCorrelator
	c.Begin(9, 2)
	if got := c.Poll(); got != ResponsePending {
		t.Fatalf("Poll #1 = %v, want PENDING", got)
	}
	if got := c.Poll(); got != ResponseTimeout {
		t.Fatalf("Poll #2 = %v, want TIMEOUT", got)
	}
	if c.Armed() {
		t.Fatal("expected disarmed after TIMEOUT")
	}
}

func TestPollingAckCorrelatorCompleteWrongID(t *testing.T) {
	var c PollingAckCorrelator
	c.Begin(1, 5)
	if c.Complete(2) {
		t.Fatal("Complete with mismatched id should fail")
	}
	if got := c.Poll(); got != ResponsePending {
		t.Fatalf("Poll = %v, want PENDING", got)
	}
}
