// Package serialmux multiplexes the line-oriented link to the robot
// controller. Every line the controller sends reaches each subscriber, and
// commands written from any goroutine go out one whole line at a time. The
// link is a serial port or a TCP connection to the controller's bridge.
package serialmux

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/banshee-data/maze.explorer/internal/monitoring"
)

var (
	// ErrWriteFailed is returned when the link accepts only part of a line.
	ErrWriteFailed = errors.New("serialmux: short write to link")
	// ErrClosed is returned by SendCommand after Close.
	ErrClosed = errors.New("serialmux: link closed")
)

const (
	// subscriberBuffer is how far a subscriber may fall behind before lines
	// are dropped for it.
	subscriberBuffer = 64
	// maxLineLength bounds one controller line. Sensor frames and MDF strings
	// are far shorter.
	maxLineLength = 4096
)

// Stats counts the traffic on a link since it was opened.
type Stats struct {
	LinesRead   uint64 `json:"lines_read"`
	LinesSent   uint64 `json:"lines_sent"`
	Dropped     uint64 `json:"dropped"`
	Subscribers int    `json:"subscribers"`
}

// SerialMuxInterface is the link as the rest of the program sees it.
type SerialMuxInterface interface {
	// Subscribe returns an ID and a channel receiving every line read from
	// the link from now on.
	Subscribe() (string, chan string)
	// Unsubscribe closes and forgets the channel with the given ID.
	Unsubscribe(string)
	// SendCommand writes one command line to the link.
	SendCommand(string) error
	// Monitor reads lines and fans them out until ctx ends or the link fails.
	Monitor(context.Context) error
	// Close closes every subscriber channel and then the link.
	Close() error
	// Stats reports traffic counters.
	Stats() Stats

	// AttachAdminRoutes mounts the link console under /debug/. tsweb only
	// serves those routes to localhost and tailnet peers.
	AttachAdminRoutes(*http.ServeMux)
}

// SerialMux fans the lines read from one link out to its subscribers.
type SerialMux[T SerialPorter] struct {
	port T

	mu          sync.Mutex
	subscribers map[string]chan string

	writeMu sync.Mutex
	closed  atomic.Bool

	read    atomic.Uint64
	sent    atomic.Uint64
	dropped atomic.Uint64
}

// NewSerialMux wraps an already open link.
func NewSerialMux[T SerialPorter](port T) *SerialMux[T] {
	return &SerialMux[T]{
		port:        port,
		subscribers: make(map[string]chan string),
	}
}

func (s *SerialMux[T]) Subscribe() (string, chan string) {
	id := uuid.NewString()
	ch := make(chan string, subscriberBuffer)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		close(ch)
		return id, ch
	}
	s.subscribers[id] = ch
	return id, ch
}

func (s *SerialMux[T]) Unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// SendCommand writes command, newline terminated.
func (s *SerialMux[T]) SendCommand(command string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	line := strings.TrimRight(command, "\r\n") + "\n"

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	n, err := s.port.Write([]byte(line))
	if err != nil {
		return err
	}
	if n != len(line) {
		return ErrWriteFailed
	}
	s.sent.Add(1)
	monitoring.Debugf("serialmux: > %s", line[:len(line)-1])
	return nil
}

// Monitor reads lines until ctx is done or the link fails. Carriage returns
// and NUL terminators are stripped and blank lines skipped. It returns nil
// when the link reaches EOF or is closed with Close.
func (s *SerialMux[T]) Monitor(ctx context.Context) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)

	// Scan blocks in Read, so it runs apart from the cancellation select.
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(s.port)
		sc.Buffer(make([]byte, 0, 256), maxLineLength)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if s.closed.Load() {
						return nil
					}
					return err
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			if s.closed.Load() {
				return nil
			}
			line = strings.Map(func(r rune) rune {
				if r == '\r' || r == 0 {
					return -1
				}
				return r
			}, line)
			if line == "" {
				continue
			}
			s.read.Add(1)
			monitoring.Debugf("serialmux: < %s", line)
			s.broadcast(line)
		}
	}
}

func (s *SerialMux[T]) broadcast(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subscribers {
		select {
		case ch <- line:
		default:
			s.dropped.Add(1)
			monitoring.Logf("serialmux: subscriber %s is full, dropped %q", id, line)
		}
	}
}

// Close is safe to call more than once; only the first call closes the port.
func (s *SerialMux[T]) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.mu.Lock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	s.mu.Unlock()
	return s.port.Close()
}

func (s *SerialMux[T]) Stats() Stats {
	s.mu.Lock()
	n := len(s.subscribers)
	s.mu.Unlock()
	return Stats{
		LinesRead:   s.read.Load(),
		LinesSent:   s.sent.Load(),
		Dropped:     s.dropped.Load(),
		Subscribers: n,
	}
}

func (s *SerialMux[T]) AttachAdminRoutes(mux *http.ServeMux) {
	attachAdminRoutes(mux, s)
}
