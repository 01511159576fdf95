// Command serialpubsubd bridges a serial pub/sub Node to the outside
// world: it opens the configured UART, feeds received bytes into the
// Node, writes the Node's outgoing frames back out, optionally mirrors
// traffic to and from Redis, and optionally advertises itself over
// mDNS and serves Prometheus metrics.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/librescoot/serialpubsub/pkg/bridge"
	"github.com/librescoot/serialpubsub/pkg/logging"
	"github.com/librescoot/serialpubsub/pkg/metrics"
	"github.com/librescoot/serialpubsub/pkg/node"
	"github.com/librescoot/serialpubsub/pkg/serialport"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("serialpubsubd %s (commit %s)\n", version, commit)
		return
	}
	if cfg == nil {
		os.Exit(1)
	}

	level := parseLevel(cfg.logLevel)
	logging.Set(logging.New(cfg.logFormat, level, os.Stderr))
	l := logging.L()

	l.Info("starting serialpubsubd", "serial", cfg.serialDevice, "baud", cfg.baud)

	port, err := serialport.Open(serialport.Config{
		Device:      cfg.serialDevice,
		Baud:        cfg.baud,
		ReadTimeout: 50 * time.Millisecond,
	})
	if err != nil {
		l.Error("failed to open serial device", "error", err)
		os.Exit(1)
	}

	n := node.NewNode(cfg.rxBufferSize, false)

	link := serialport.NewLink(port, 64, func(chunk []byte) {
		status, err := n.GiveRxData(chunk)
		if err != nil {
			metrics.MalformedFrames.WithLabelValues(status.String()).Inc()
			l.Warn("give_rx_data_error", "status", status, "error", err)
			return
		}
		metrics.RxFrames.Inc()
	})
	defer link.Close()

	n.SetTxDataReady(func(frame []byte) {
		metrics.TxFrames.Inc()
		link.Send(frame)
	})
	n.SetNoSubscribersHook(func(topic string, data []byte) {
		metrics.NoSubscribers.Inc()
		l.Debug("no_subscribers", "topic", topic, "bytes", len(data))
	})

	l.Info("serial link established", "device", cfg.serialDevice)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var cleanupBridge func()
	if cfg.redisAddr != "" {
		cleanupBridge, err = startBridge(cfg, n, l)
		if err != nil {
			l.Error("bridge_init_error", "error", err)
			os.Exit(1)
		}
		defer cleanupBridge()
	}

	if cfg.metricsAddr != "" {
		srv := metrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = metrics.Shutdown(srv, time.Second) }()
	}

	cleanupMDNS, err := startMDNS(ctx, cfg)
	if err != nil {
		l.Warn("mdns_start_failed", "error", err)
	} else {
		defer cleanupMDNS()
	}

	go reportPendingAcks(ctx, n, 2*time.Second)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigCh
	l.Info("shutdown_signal", "signal", s.String())
	cancel()
}

// startBridge wires the optional Redis pub/sub <-> Node topic mirror
// described by cfg.bridgeMap.
func startBridge(cfg *appConfig, n *node.Node, l *slog.Logger) (func(), error) {
	pairs, err := parseBridgeMap(cfg.bridgeMap)
	if err != nil {
		return nil, err
	}
	client, err := bridge.NewClient(cfg.redisAddr, cfg.redisPass, cfg.redisDB)
	if err != nil {
		return nil, err
	}
	mappings := make([]bridge.Mapping, 0, len(pairs))
	for _, p := range pairs {
		mappings = append(mappings, bridge.Mapping{RedisChannel: p[0], NodeTopic: p[1]})
	}
	stopToNode := bridge.RedisToNode(client, n, mappings, cfg.ackTimeout)
	stopToRedis := bridge.NodeToRedis(client, n, mappings)
	l.Info("redis bridge active", "addr", cfg.redisAddr, "mappings", len(mappings))
	return func() {
		stopToNode()
		stopToRedis()
		_ = client.Close()
	}, nil
}

// reportPendingAcks periodically mirrors the Node's outstanding
// PublishWait count into the pending-ack gauge.
func reportPendingAcks(ctx context.Context, n *node.Node, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.SetPendingAcks(n.NumThreadsWaiting())
		}
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
