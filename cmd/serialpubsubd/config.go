package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type appConfig struct {
	serialDevice string
	baud         int
	rxBufferSize int
	ackTimeout   time.Duration

	logFormat string
	logLevel  string

	metricsAddr string

	redisAddr string
	redisPass string
	redisDB   int
	bridgeMap string

	mdnsEnable bool
	mdnsName   string
}

func parseFlags() (*appConfig, bool) {
	cfg := &appConfig{}
	serialDevice := flag.String("serial", "/dev/ttyUSB0", "Serial device path")
	baud := flag.Int("baud", 115200, "Serial baud rate")
	rxBufferSize := flag.Int("rx-buffer", 1024, "Receive assembly buffer capacity in bytes")
	ackTimeout := flag.Duration("ack-timeout", 500*time.Millisecond, "Ack timeout for redis-to-node bridged publishes (PublishWait); 0 disables ack confirmation")
	logFormat := flag.String("log-format", "text", "Log format: text|json")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	metricsAddr := flag.String("metrics-addr", "", "Metrics HTTP listen address (e.g. :9100); empty disables")
	redisAddr := flag.String("redis-addr", "", "Redis server address for the pub/sub bridge; empty disables")
	redisPass := flag.String("redis-pass", "", "Redis password")
	redisDB := flag.Int("redis-db", 0, "Redis database number")
	bridgeMap := flag.String("bridge-map", "", "Comma-separated redis-channel:node-topic pairs bridged in both directions")
	mdnsEnable := flag.Bool("mdns-enable", false, "Enable mDNS advertisement of this node")
	mdnsName := flag.String("mdns-name", "", "mDNS instance name (default serialpubsubd-<hostname>)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })

	cfg.serialDevice = *serialDevice
	cfg.baud = *baud
	cfg.rxBufferSize = *rxBufferSize
	cfg.ackTimeout = *ackTimeout
	cfg.logFormat = *logFormat
	cfg.logLevel = *logLevel
	cfg.metricsAddr = *metricsAddr
	cfg.redisAddr = *redisAddr
	cfg.redisPass = *redisPass
	cfg.redisDB = *redisDB
	cfg.bridgeMap = *bridgeMap
	cfg.mdnsEnable = *mdnsEnable
	cfg.mdnsName = *mdnsName

	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		fmt.Printf("environment override error: %v\n", err)
		return nil, *showVersion
	}
	if err := cfg.validate(); err != nil {
		fmt.Printf("configuration error: %v\n", err)
		return nil, *showVersion
	}
	return cfg, *showVersion
}

func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	if c.baud <= 0 {
		return fmt.Errorf("baud must be > 0 (got %d)", c.baud)
	}
	if c.rxBufferSize <= 0 {
		return fmt.Errorf("rx-buffer must be > 0 (got %d)", c.rxBufferSize)
	}
	if c.ackTimeout < 0 {
		return fmt.Errorf("ack-timeout must be >= 0")
	}
	if c.redisDB < 0 {
		return fmt.Errorf("redis-db must be >= 0")
	}
	if c.bridgeMap != "" && c.redisAddr == "" {
		return fmt.Errorf("bridge-map requires redis-addr")
	}
	return nil
}

// parseBridgeMap turns "chan1:topic1,chan2:topic2" into channel/topic pairs.
func parseBridgeMap(raw string) ([][2]string, error) {
	if raw == "" {
		return nil, nil
	}
	var pairs [][2]string
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid bridge-map entry %q, want channel:topic", entry)
		}
		pairs = append(pairs, [2]string{parts[0], parts[1]})
	}
	return pairs, nil
}

// applyEnvOverrides maps SERIALPUBSUBD_* environment variables onto cfg
// unless the corresponding flag was explicitly set (flags win).
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }

	if _, ok := set["serial"]; !ok {
		if v, ok := get("SERIALPUBSUBD_SERIAL"); ok && v != "" {
			c.serialDevice = v
		}
	}
	if _, ok := set["baud"]; !ok {
		if v, ok := get("SERIALPUBSUBD_BAUD"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.baud = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid SERIALPUBSUBD_BAUD: %w", err)
			}
		}
	}
	if _, ok := set["rx-buffer"]; !ok {
		if v, ok := get("SERIALPUBSUBD_RX_BUFFER"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.rxBufferSize = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid SERIALPUBSUBD_RX_BUFFER: %w", err)
			}
		}
	}
	if _, ok := set["ack-timeout"]; !ok {
		if v, ok := get("SERIALPUBSUBD_ACK_TIMEOUT"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d >= 0 {
				c.ackTimeout = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid SERIALPUBSUBD_ACK_TIMEOUT: %w", err)
			}
		}
	}
	if _, ok := set["log-format"]; !ok {
		if v, ok := get("SERIALPUBSUBD_LOG_FORMAT"); ok && v != "" {
			c.logFormat = v
		}
	}
	if _, ok := set["log-level"]; !ok {
		if v, ok := get("SERIALPUBSUBD_LOG_LEVEL"); ok && v != "" {
			c.logLevel = v
		}
	}
	if _, ok := set["metrics-addr"]; !ok {
		if v, ok := get("SERIALPUBSUBD_METRICS"); ok {
			c.metricsAddr = v
		}
	}
	if _, ok := set["redis-addr"]; !ok {
		if v, ok := get("SERIALPUBSUBD_REDIS_ADDR"); ok {
			c.redisAddr = v
		}
	}
	if _, ok := set["redis-pass"]; !ok {
		if v, ok := get("SERIALPUBSUBD_REDIS_PASS"); ok {
			c.redisPass = v
		}
	}
	if _, ok := set["redis-db"]; !ok {
		if v, ok := get("SERIALPUBSUBD_REDIS_DB"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				c.redisDB = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid SERIALPUBSUBD_REDIS_DB: %w", err)
			}
		}
	}
	if _, ok := set["bridge-map"]; !ok {
		if v, ok := get("SERIALPUBSUBD_BRIDGE_MAP"); ok {
			c.bridgeMap = v
		}
	}
	if _, ok := set["mdns-enable"]; !ok {
		if v, ok := get("SERIALPUBSUBD_MDNS_ENABLE"); ok && v != "" {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "on":
				c.mdnsEnable = true
			case "0", "false", "no", "off":
				c.mdnsEnable = false
			}
		}
	}
	if _, ok := set["mdns-name"]; !ok {
		if v, ok := get("SERIALPUBSUBD_MDNS_NAME"); ok && v != "" {
			c.mdnsName = v
		}
	}
	return firstErr
}
