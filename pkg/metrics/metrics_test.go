package metrics

import (
	"net/http"
	"testing"
	"time"
)

func TestPendingAcksSnapshot(t *testing.T) {
	SetPendingAcks(3)
	if got := PendingAcksSnapshot(); got != 3 {
		t.Fatalf("PendingAcksSnapshot = %d, want 3", got)
	}
	SetPendingAcks(0)
	if got := PendingAcksSnapshot(); got != 0 {
		t.Fatalf("PendingAcksSnapshot = %d, want 0", got)
	}
}

func TestStartHTTPServesMetrics(t *testing.T) {
	const addr = "127.0.0.1:18099"
	srv := StartHTTP(addr)
	defer Shutdown(srv, time.Second)

	// The server binds asynchronously; give it a moment to start listening.
	var resp *http.Response
	var err error
	for i := 0; i < 20; i++ {
		resp, err = http.Get("http://" + addr + "/metrics")
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Skipf("metrics server did not become reachable (addr %s): %v", srv.Addr, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /metrics = %d, want 200", resp.StatusCode)
	}
}
