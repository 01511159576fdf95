// Package serialport wraps a physical UART for use as a Node's transport:
// it owns the read loop that feeds raw bytes to GiveRxData and the write
// path a Node's TxDataReady hook calls into.
package serialport

import (
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/tarm/serial"
)

// Port abstracts github.com/tarm/serial so tests can substitute an
// in-memory implementation, the same seam kstaniek-go-ampio-server's
// internal/serial package cuts around the same library.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// Config configures a physical serial connection.
type Config struct {
	Device      string
	Baud        int
	ReadTimeout time.Duration
}

// Open opens name at baud via github.com/tarm/serial.
func Open(cfg Config) (Port, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("serialport: open %s: %w", cfg.Device, err)
	}
	return port, nil
}

// Link drives a Port's read loop, handing every chunk read to onData (a
// Node or PollingNode's GiveRxData), and serializes writes from a Node's
// TxDataReady hook (Send) onto the same Port. It is grounded on the
// teacher's usock.go readLoop/Write split: a dedicated goroutine blocks on
// Read while Send is safe to call from whatever goroutine holds the
// Node's lock when it transmits.
type Link struct {
	port     Port
	wg       sync.WaitGroup
	stopChan chan struct{}
	writeMu  sync.Mutex
}

// NewLink starts the read loop immediately, calling onData with each
// non-empty read. readBufSize bounds how many bytes are read per Read
// call; the teacher reads one byte at a time for precise framing control,
// but GiveRxData already tolerates arbitrary chunk boundaries so a larger
// buffer (e.g. 64) cuts syscall overhead without changing behavior.
func NewLink(port Port, readBufSize int, onData func(chunk []byte)) *Link {
	l := &Link{port: port, stopChan: make(chan struct{})}
	l.wg.Add(1)
	go l.readLoop(readBufSize, onData)
	return l
}

func (l *Link) readLoop(readBufSize int, onData func(chunk []byte)) {
	defer l.wg.Done()
	buf := make([]byte, readBufSize)
	for {
		select {
		case <-l.stopChan:
			return
		default:
		}
		n, err := l.port.Read(buf)
		if err != nil {
			if err != io.EOF {
				log.Printf("serialport: read error: %v", err)
				time.Sleep(10 * time.Millisecond)
			}
			continue
		}
		if n == 0 {
			continue
		}
		chunk := make([]byte, n)
		copy(chunk, buf[:n])
		onData(chunk)
	}
}

// Send writes frame to the underlying port. Pass it directly as a Node's
// TxDataReady hook.
func (l *Link) Send(frame []byte) {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	if _, err := l.port.Write(frame); err != nil {
		log.Printf("serialport: write error: %v", err)
	}
}

// Close stops the read loop and closes the underlying port. The port is
// closed before waiting for the read loop so a Read blocked on it returns.
func (l *Link) Close() error {
	close(l.stopChan)
	err := l.port.Close()
	l.wg.Wait()
	return err
}
