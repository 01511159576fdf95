package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/grandcat/zeroconf"
)

const mdnsServiceType = "_serialpubsub._tcp"

// startMDNS advertises this node's serial bridge over mDNS so fleet tooling
// can discover which host owns which serial device. A no-op when disabled.
func startMDNS(ctx context.Context, cfg *appConfig) (func(), error) {
	if !cfg.mdnsEnable {
		return func() {}, nil
	}
	instance := cfg.mdnsName
	if instance == "" {
		host, _ := os.Hostname()
		instance = fmt.Sprintf("serialpubsubd-%s", host)
	}
	meta := []string{
		"serial=" + cfg.serialDevice,
		"baud=" + fmt.Sprint(cfg.baud),
	}
	// Port 0: this service advertises a serial bridge, not a TCP listener;
	// the port field is required by the zeroconf API but unused by clients.
	svc, err := zeroconf.Register(instance, mdnsServiceType, "local.", 0, meta, nil)
	if err != nil {
		return nil, fmt.Errorf("mdns register: %w", err)
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		svc.Shutdown()
	}()
	return func() { close(done); svc.Shutdown(); time.Sleep(50 * time.Millisecond) }, nil
}
